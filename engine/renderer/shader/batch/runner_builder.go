package batch

import (
	"github.com/Carmen-Shannon/oxy-shaderc/engine/profiler"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/session"
)

// RunnerBuilderOption is a functional option for configuring a Runner via NewRunner.
type RunnerBuilderOption func(*runner)

// WithSession is an option builder that sets the session pipelines are compiled in.
//
// Parameters:
//   - s: the session
//
// Returns:
//   - RunnerBuilderOption: a function that applies the session option to a runner
func WithSession(s session.Session) RunnerBuilderOption {
	return func(r *runner) {
		r.session = s
	}
}

// WithJobs is an option builder that sets how many pipelines compile in parallel.
//
// Parameters:
//   - n: the worker count, values below 1 keep the default of one per CPU
//
// Returns:
//   - RunnerBuilderOption: a function that applies the jobs option to a runner
func WithJobs(n int) RunnerBuilderOption {
	return func(r *runner) {
		if n > 0 {
			r.jobs = n
		}
	}
}

// WithOutputDir overrides the manifest's output directory.
func WithOutputDir(dir string) RunnerBuilderOption {
	return func(r *runner) {
		r.output = dir
	}
}

// WithForce disables the up-to-date check.
func WithForce(force bool) RunnerBuilderOption {
	return func(r *runner) {
		r.force = force
	}
}

// WithProgress is an option builder that sets a callback invoked as each entry finishes.
// The callback runs on the worker goroutine and must be safe for concurrent use.
//
// Parameters:
//   - fn: the callback
//
// Returns:
//   - RunnerBuilderOption: a function that applies the progress option to a runner
func WithProgress(fn func(EntryResult)) RunnerBuilderOption {
	return func(r *runner) {
		r.progress = fn
	}
}

// WithProfiler ticks p once per finished entry.
func WithProfiler(p *profiler.Profiler) RunnerBuilderOption {
	return func(r *runner) {
		r.profiler = p
	}
}

// Package batch compiles the pipelines of a manifest ahead of time. Pipelines run in
// parallel on a worker pool, each stage's artifact is written with a sidecar next to it,
// and pipelines whose artifacts are newer than their sources are skipped.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/profiler"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/session"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/sidecar"
)

// ArtifactExtension is appended to the stage file name to name its artifact.
const ArtifactExtension = ".spv"

// Status is the outcome of one manifest entry.
type Status int

const (
	// StatusSucceeded means every stage was compiled and written.
	StatusSucceeded Status = iota

	// StatusFailed means the pipeline could not be built.
	StatusFailed

	// StatusUpToDate means every artifact was newer than its sources and nothing ran.
	StatusUpToDate
)

// String returns the status name printed by the CLI.
func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusUpToDate:
		return "up-to-date"
	default:
		return "unknown"
	}
}

// EntryResult is the outcome of one manifest entry.
type EntryResult struct {
	Pipeline  string
	Status    Status
	Artifacts []string
	Warnings  []shader.Diagnostic
	Err       error
	Elapsed   time.Duration
}

// Summary tallies a batch run. Entries are in manifest order.
type Summary struct {
	Succeeded int
	Failed    int
	UpToDate  int
	Entries   []EntryResult
}

// String formats the summary line printed at the end of a build.
func (s Summary) String() string {
	return fmt.Sprintf("succeeded:%d, failed:%d, up-to-date:%d", s.Succeeded, s.Failed, s.UpToDate)
}

// Runner builds manifests.
type Runner interface {
	// Run compiles every pipeline of the manifest. Compile errors are tallied and the
	// run continues with the next entry; every other failure is tallied too and also
	// returned, joined, as the error.
	//
	// Parameters:
	//   - ctx: cancels pending and running compiles
	//   - m: the manifest to build
	//
	// Returns:
	//   - Summary: the per-entry outcomes and their tally
	//   - error: the joined unrecoverable errors, or nil
	Run(ctx context.Context, m *Manifest) (Summary, error)
}

// runner is the implementation of the Runner interface.
type runner struct {
	session  session.Session
	jobs     int
	output   string
	force    bool
	progress func(EntryResult)
	profiler *profiler.Profiler
}

var _ Runner = &runner{}

// NewRunner creates a Runner. Without options it uses a default session and one job per CPU.
//
// Parameters:
//   - options: a variadic list of RunnerBuilderOption functions to configure the Runner
//
// Returns:
//   - Runner: the new runner
func NewRunner(options ...RunnerBuilderOption) Runner {
	r := &runner{
		jobs: runtime.NumCPU(),
	}
	for _, option := range options {
		option(r)
	}
	if r.session == nil {
		r.session = session.NewSession()
	}
	return r
}

func (r *runner) Run(ctx context.Context, m *Manifest) (Summary, error) {
	results := make([]EntryResult, len(m.Pipelines))
	if len(m.Pipelines) == 0 {
		return Summary{}, nil
	}

	pool := worker.NewDynamicWorkerPool(min(r.jobs, len(m.Pipelines)), len(m.Pipelines), time.Second)
	defer pool.Stop()

	var wg sync.WaitGroup
	for i, entry := range m.Pipelines {
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID:      i,
			Payload: entry.Name,
			Do: func() (any, error) {
				defer wg.Done()
				results[i] = r.buildEntry(ctx, m, entry)
				if r.progress != nil {
					r.progress(results[i])
				}
				if r.profiler != nil {
					r.profiler.Tick()
				}
				return nil, results[i].Err
			},
		})
	}
	wg.Wait()

	summary := Summary{Entries: results}
	var fatal []error
	for _, res := range results {
		switch res.Status {
		case StatusSucceeded:
			summary.Succeeded++
		case StatusUpToDate:
			summary.UpToDate++
		case StatusFailed:
			summary.Failed++
			if !shader.IsRecoverable(res.Err) {
				fatal = append(fatal, fmt.Errorf("pipeline %s: %w", res.Pipeline, res.Err))
			}
		}
	}
	shader.Logger().Info("batch finished", "summary", summary.String())
	return summary, errors.Join(fatal...)
}

// buildEntry builds one pipeline: skip it when every artifact is current, otherwise
// compile it and write each stage's artifact and sidecar.
func (r *runner) buildEntry(ctx context.Context, m *Manifest, entry PipelineEntry) EntryResult {
	start := time.Now()
	res := EntryResult{Pipeline: entry.Name}
	fail := func(err error) EntryResult {
		res.Status = StatusFailed
		res.Err = err
		res.Elapsed = time.Since(start)
		if shader.IsRecoverable(err) {
			shader.Logger().Warn("pipeline failed", "pipeline", entry.Name, "error", err)
		} else {
			shader.Logger().Error("pipeline failed", "pipeline", entry.Name, "error", err)
		}
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	def, err := m.Definition(entry)
	if err != nil {
		return fail(err)
	}
	dir := r.outputDir(m, entry)
	for _, stage := range def.Stages {
		res.Artifacts = append(res.Artifacts, ArtifactPath(dir, stage))
	}

	current, err := r.upToDate(def.Stages, res.Artifacts)
	if err != nil {
		return fail(err)
	}
	if current {
		res.Status = StatusUpToDate
		res.Elapsed = time.Since(start)
		shader.Logger().Debug("pipeline up to date", "pipeline", entry.Name)
		return res
	}

	p, err := r.session.CompilePipeline(ctx, def)
	if err != nil {
		return fail(err)
	}
	defer p.Release()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(fmt.Errorf("failed to create output directory: %w", err))
	}
	for i, module := range p.Modules {
		if err := writeArtifact(res.Artifacts[i], module); err != nil {
			return fail(err)
		}
	}
	res.Warnings = p.Warnings()
	res.Status = StatusSucceeded
	res.Elapsed = time.Since(start)
	return res
}

func (r *runner) outputDir(m *Manifest, entry PipelineEntry) string {
	root := r.output
	if root == "" {
		root = m.Resolve(m.Output)
	}
	return filepath.Join(root, entry.Name)
}

func (r *runner) upToDate(sources, artifacts []string) (bool, error) {
	if r.force {
		return false, nil
	}
	for i, source := range sources {
		ok, err := sidecar.UpToDate(artifacts[i], source)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// ArtifactPath returns where the artifact of a stage source is written in dir.
func ArtifactPath(dir, source string) string {
	return filepath.Join(dir, filepath.Base(source)+ArtifactExtension)
}

// writeArtifact writes the artifact and then its sidecar, so a sidecar only exists next
// to a complete artifact.
func writeArtifact(path string, m *shader.CompiledModule) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, m.Artifact, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return sidecar.Write(path, sidecar.FromModule(m))
}

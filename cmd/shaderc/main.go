// Command shaderc compiles the shader pipelines listed in a batch manifest.
//
// Usage:
//
//	shaderc [options] -manifest shaders.json
//	shaderc [options] shaders.json
//
// Every stage is written as <out>/<pipeline>/<stage file>.spv with a JSON sidecar
// describing its bindings. Pipelines whose artifacts are newer than their sources are
// skipped. The exit status is 1 when any pipeline failed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/profiler"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/batch"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/compiler"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/session"
)

var (
	manifestPath = flag.String("manifest", "", "batch manifest (JSON)")
	showAll      = flag.Bool("show-all", false, "also print up-to-date entries")
	executable   = flag.String("compiler", compiler.DefaultExecutable, "GLSL compiler executable")
	configFile   = flag.String("config", "", "resource limits file passed to the GLSL compiler")
	output       = flag.String("out", "", "output directory (default: the manifest's)")
	jobs         = flag.Int("jobs", 0, "pipelines compiled in parallel (default: CPU count)")
	timeout      = flag.Duration("timeout", compiler.DefaultTimeout, "per-stage compile timeout")
	force        = flag.Bool("force", false, "rebuild up-to-date pipelines")
	validate     = flag.Bool("validate", false, "validate WGSL modules before code generation")
	verbose      = flag.Bool("v", false, "verbose logging")
	profile      = flag.Bool("profile", false, "log build throughput and memory statistics")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	path := *manifestPath
	if path == "" && flag.NArg() > 0 {
		path = flag.Arg(0)
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "Error: no manifest specified")
		usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	shader.SetLogger(logger)

	m, err := batch.LoadManifest(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := session.NewSession(session.WithCompiler(compiler.NewCompiler(
		compiler.WithExecutable(*executable),
		compiler.WithConfigFile(*configFile),
		compiler.WithTimeout(*timeout),
		compiler.WithValidation(*validate),
	)))

	var printMu sync.Mutex
	options := []batch.RunnerBuilderOption{
		batch.WithSession(s),
		batch.WithJobs(*jobs),
		batch.WithOutputDir(*output),
		batch.WithForce(*force),
		batch.WithProgress(func(res batch.EntryResult) {
			printMu.Lock()
			defer printMu.Unlock()
			printEntry(res)
		}),
	}
	var prof *profiler.Profiler
	if *profile {
		prof = profiler.NewProfiler(profiler.WithLogger(logger.With("component", "profiler")))
		options = append(options, batch.WithProfiler(prof))
	}

	summary, err := batch.NewRunner(options...).Run(ctx, m)
	if prof != nil {
		prof.Report()
	}
	fmt.Println(summary.String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	if summary.Failed > 0 || err != nil {
		os.Exit(1)
	}
}

func printEntry(res batch.EntryResult) {
	switch res.Status {
	case batch.StatusUpToDate:
		if *showAll {
			fmt.Printf("%-10s %s\n", res.Status, res.Pipeline)
		}
	case batch.StatusSucceeded:
		fmt.Printf("%-10s %s (%s)\n", res.Status, res.Pipeline, res.Elapsed.Round(time.Millisecond))
		for _, d := range res.Warnings {
			fmt.Printf("    %s\n", d)
		}
	case batch.StatusFailed:
		fmt.Printf("%-10s %s: %v\n", res.Status, res.Pipeline, res.Err)
		if diags := diagnostics(res.Err); len(diags) > 1 {
			for _, d := range diags {
				fmt.Printf("    %s\n", d)
			}
		}
	}
}

func diagnostics(err error) []shader.Diagnostic {
	var se *shader.Error
	if !errors.As(err, &se) {
		return nil
	}
	return se.Diagnostics
}

func usage() {
	fmt.Fprintf(os.Stderr, `shaderc - shader pipeline build tool

Usage:
  shaderc [options] -manifest <manifest.json>
  shaderc [options] <manifest.json>

Options:
`)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  shaderc shaders.json                   # Build stale pipelines
  shaderc -show-all -v shaders.json      # Also list up-to-date pipelines
  shaderc -force -jobs 4 shaders.json    # Rebuild everything on 4 workers
`)
}

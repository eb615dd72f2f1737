package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/preprocessor"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/reflection"
)

// glslangCompilerBackend compiles GLSL units by spawning glslangValidator. Each compile
// works in its own scratch directory, so concurrent compiles never share a path.
type glslangCompilerBackend struct {
	executable string
	configFile string
	scratchDir string
}

var _ compilerBackend = &glslangCompilerBackend{}

func newGLSLangCompilerBackend(executable, configFile, scratchDir string) *glslangCompilerBackend {
	return &glslangCompilerBackend{
		executable: executable,
		configFile: configFile,
		scratchDir: scratchDir,
	}
}

func (b *glslangCompilerBackend) Compile(ctx context.Context, unit *preprocessor.Unit) (*Result, error) {
	abbrev := unit.Stage.Abbrev()
	if abbrev == "" {
		return nil, (&shader.Error{
			Kind:    shader.ErrUnsupportedStageExtension,
			Path:    unit.Path,
			Message: "stage has no compiler flag",
		}).WithStage(unit.Stage)
	}

	dir, err := os.MkdirTemp(b.scratchDir, "shaderc-*")
	if err != nil {
		return nil, b.invocationError(unit, "failed to create scratch directory", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "unit."+abbrev)
	out := filepath.Join(dir, "unit.spv")
	capturePath := filepath.Join(dir, "output.txt")
	if err := os.WriteFile(src, []byte(unit.Text), 0o644); err != nil {
		return nil, b.invocationError(unit, "failed to write translation unit", err)
	}
	capture, err := os.Create(capturePath)
	if err != nil {
		return nil, b.invocationError(unit, "failed to create output capture", err)
	}

	cmd := exec.CommandContext(ctx, b.executable, b.args(src, abbrev, out)...)
	cmd.Stdout = capture
	cmd.Stderr = capture
	runErr := cmd.Run()
	capture.Close()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, contextError(unit, ctxErr)
	}

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return nil, b.invocationError(unit, "failed to run "+b.executable, runErr)
	}

	output, err := os.ReadFile(capturePath)
	if err != nil {
		return nil, b.invocationError(unit, "failed to read compiler output", err)
	}
	parsed := reflection.Parse(string(output), lineMapOf(unit))

	if exitErr != nil || len(parsed.Errors()) > 0 {
		e := &shader.Error{
			Kind:        shader.ErrCompile,
			Path:        unit.Path,
			Diagnostics: parsed.Errors(),
		}
		if exitErr != nil {
			e.Message = fmt.Sprintf("%s exited with status %d", filepath.Base(b.executable), exitErr.ExitCode())
		}
		if len(e.Diagnostics) > 0 {
			e.Line = e.Diagnostics[0].Line
		}
		return nil, e.WithStage(unit.Stage)
	}

	artifact, err := os.ReadFile(out)
	if err != nil {
		return nil, (&shader.Error{
			Kind:    shader.ErrCompile,
			Path:    unit.Path,
			Message: "compiler produced no artifact",
			Err:     err,
		}).WithStage(unit.Stage)
	}

	res := &Result{
		Artifact:    artifact,
		Records:     parsed.Records,
		Diagnostics: parsed.Warnings(),
		Output:      string(output),
	}
	if unit.Stage == shader.StageVertex {
		res.VertexInputs = reflection.VertexInputs(parsed.Records)
	}
	return res, nil
}

// args builds "[config] -V <src> -S <stage> -q -o <out>".
func (b *glslangCompilerBackend) args(src, stage, out string) []string {
	var args []string
	if b.configFile != "" {
		args = append(args, b.configFile)
	}
	return append(args, "-V", src, "-S", stage, "-q", "-o", out)
}

func (b *glslangCompilerBackend) invocationError(unit *preprocessor.Unit, msg string, err error) *shader.Error {
	return (&shader.Error{
		Kind:    shader.ErrCompilerInvocationFailed,
		Path:    b.executable,
		Message: msg,
		Err:     err,
	}).WithStage(unit.Stage)
}

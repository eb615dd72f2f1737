// Package compiler turns preprocessed translation units into SPIR-V. Each shading
// language dialect is routed to a compiler backend: GLSL units go to an external
// glslangValidator process, WGSL units are compiled in-process with naga.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/preprocessor"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/reflection"

	"github.com/gogpu/naga/spirv"
)

// BackendType identifies the compiler backend used for a dialect.
type BackendType int

const (
	// BackendTypeGLSLang selects the external glslangValidator process.
	BackendTypeGLSLang BackendType = iota

	// BackendTypeNaga selects the in-process naga WGSL compiler.
	BackendTypeNaga
)

// String returns the backend name as accepted by ParseBackendType.
func (b BackendType) String() string {
	switch b {
	case BackendTypeGLSLang:
		return "glslang"
	case BackendTypeNaga:
		return "naga"
	default:
		return fmt.Sprintf("BackendType(%d)", int(b))
	}
}

// ParseBackendType parses a backend name.
func ParseBackendType(s string) (BackendType, error) {
	switch s {
	case "glslang":
		return BackendTypeGLSLang, nil
	case "naga":
		return BackendTypeNaga, nil
	}
	return 0, fmt.Errorf("unknown compiler backend %q", s)
}

const (
	// DefaultExecutable is the external compiler looked up on PATH.
	DefaultExecutable = "glslangValidator"

	// DefaultTimeout bounds a single compiler invocation.
	DefaultTimeout = 60 * time.Second
)

// Result is the outcome of a successful compilation.
type Result struct {
	// Artifact is the SPIR-V binary.
	Artifact []byte

	// Records holds the reflection records of the unit.
	Records []shader.ReflectionRecord

	// Diagnostics holds the non-fatal diagnostics, remapped to the original source.
	Diagnostics []shader.Diagnostic

	// VertexInputs holds the inputs of a vertex stage ordered by location.
	VertexInputs []shader.VertexInput

	// Output is the raw text the compiler printed, empty for in-process backends.
	Output string
}

// Warnings returns the warning-severity diagnostics.
func (r *Result) Warnings() []shader.Diagnostic {
	var out []shader.Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == shader.SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

// Compiler compiles translation units.
type Compiler interface {
	// Compile compiles one translation unit with the backend registered for its dialect.
	// The context bounds the compilation; a cancelled or expired context fails the
	// compile with a CompileError.
	//
	// Parameters:
	//   - ctx: bounds the compilation
	//   - unit: the preprocessed translation unit
	//
	// Returns:
	//   - *Result: the artifact, reflection records and warnings
	//   - error: a *shader.Error of kind CompileError, CompilerInvocationFailed or
	//     UnsupportedStageExtension
	Compile(ctx context.Context, unit *preprocessor.Unit) (*Result, error)

	// Invocations returns the number of compilations handed to a backend so far.
	Invocations() int64

	// Backend returns the backend type registered for a dialect.
	Backend(dialect shader.Dialect) BackendType
}

// compiler is the implementation of the Compiler interface.
type compiler struct {
	executable   string
	configFile   string
	scratchDir   string
	timeout      time.Duration
	spirvVersion spirv.Version
	debugInfo    bool
	validate     bool

	backendTypes map[shader.Dialect]BackendType
	backends     map[shader.Dialect]compilerBackend

	invocations atomic.Int64
}

var _ Compiler = &compiler{}

// NewCompiler creates a Compiler. GLSL units default to the glslang backend and WGSL
// units to the naga backend.
//
// Parameters:
//   - options: a variadic list of CompilerBuilderOption functions to configure the Compiler
//
// Returns:
//   - Compiler: the configured compiler
func NewCompiler(options ...CompilerBuilderOption) Compiler {
	c := &compiler{
		executable:   DefaultExecutable,
		timeout:      DefaultTimeout,
		spirvVersion: spirv.Version1_3,
		backendTypes: map[shader.Dialect]BackendType{
			shader.DialectGLSL: BackendTypeGLSLang,
			shader.DialectWGSL: BackendTypeNaga,
		},
	}
	for _, option := range options {
		option(c)
	}

	c.backends = make(map[shader.Dialect]compilerBackend, len(c.backendTypes))
	for dialect, backendType := range c.backendTypes {
		c.backends[dialect] = c.newBackend(backendType)
	}
	return c
}

func (c *compiler) newBackend(backendType BackendType) compilerBackend {
	switch backendType {
	case BackendTypeNaga:
		return newNagaCompilerBackend(c.spirvVersion, c.debugInfo, c.validate)
	default:
		return newGLSLangCompilerBackend(c.executable, c.configFile, c.scratchDir)
	}
}

func (c *compiler) Compile(ctx context.Context, unit *preprocessor.Unit) (*Result, error) {
	backend, ok := c.backends[unit.Dialect]
	if !ok {
		return nil, (&shader.Error{
			Kind:    shader.ErrCompilerInvocationFailed,
			Path:    unit.Path,
			Message: fmt.Sprintf("no compiler backend for dialect %s", unit.Dialect),
		}).WithStage(unit.Stage)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.invocations.Add(1)
	start := time.Now()
	res, err := backend.Compile(ctx, unit)
	if err != nil {
		shader.Logger().Debug("compile failed", "path", unit.Path, "stage", unit.Stage, "error", err)
		return nil, err
	}
	for _, w := range res.Warnings() {
		shader.Logger().Warn("compiler warning", "diagnostic", w.String())
	}
	shader.Logger().Debug("compiled stage",
		"path", unit.Path,
		"stage", unit.Stage,
		"backend", c.backendTypes[unit.Dialect],
		"bytes", len(res.Artifact),
		"records", len(res.Records),
		"elapsed", time.Since(start))
	return res, nil
}

func (c *compiler) Invocations() int64 {
	return c.invocations.Load()
}

func (c *compiler) Backend(dialect shader.Dialect) BackendType {
	return c.backendTypes[dialect]
}

// lineMapOf builds the diagnostic line map of a unit.
func lineMapOf(unit *preprocessor.Unit) reflection.LineMap {
	return reflection.LineMap{
		File:          unit.Path,
		Stage:         unit.Stage,
		PrologueLines: unit.PrologueLines,
		Entries:       unit.LineMap,
	}
}

// contextError converts an expired or cancelled context into a CompileError.
func contextError(unit *preprocessor.Unit, err error) *shader.Error {
	msg := "compilation cancelled"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "compilation timed out"
	}
	return (&shader.Error{
		Kind:    shader.ErrCompile,
		Path:    unit.Path,
		Message: msg,
		Err:     err,
	}).WithStage(unit.Stage)
}

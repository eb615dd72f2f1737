package compiler

import (
	"context"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/preprocessor"
)

// compilerBackend defines the interface a compiler implementation satisfies. Concrete
// implementations (glslangCompilerBackend, nagaCompilerBackend) handle one toolchain.
type compilerBackend interface {
	// Compile compiles a translation unit.
	//
	// Parameters:
	//   - ctx: bounds the compilation, already carrying the configured timeout
	//   - unit: the translation unit
	//
	// Returns:
	//   - *Result: the compiled artifact and reflection
	//   - error: a *shader.Error describing the failure
	Compile(ctx context.Context, unit *preprocessor.Unit) (*Result, error)
}

package compiler

import (
	"time"

	"github.com/Carmen-Shannon/oxy-shaderc/common"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"

	"github.com/gogpu/naga/spirv"
)

// CompilerBuilderOption is a functional option for configuring a Compiler via NewCompiler.
type CompilerBuilderOption func(*compiler)

// WithExecutable is an option builder that sets the external compiler executable.
// An empty path keeps DefaultExecutable.
//
// Parameters:
//   - path: the executable name or path
//
// Returns:
//   - CompilerBuilderOption: a function that applies the executable option to a compiler
func WithExecutable(path string) CompilerBuilderOption {
	return func(c *compiler) {
		c.executable = common.Coalesce(path, DefaultExecutable)
	}
}

// WithConfigFile is an option builder that passes a resource-limits configuration file to
// the external compiler ahead of the other arguments.
//
// Parameters:
//   - path: the configuration file, empty for none
//
// Returns:
//   - CompilerBuilderOption: a function that applies the config file option to a compiler
func WithConfigFile(path string) CompilerBuilderOption {
	return func(c *compiler) {
		c.configFile = path
	}
}

// WithTimeout is an option builder that bounds every compilation. Zero keeps
// DefaultTimeout; a negative duration disables the bound.
//
// Parameters:
//   - d: the timeout
//
// Returns:
//   - CompilerBuilderOption: a function that applies the timeout option to a compiler
func WithTimeout(d time.Duration) CompilerBuilderOption {
	return func(c *compiler) {
		c.timeout = common.Coalesce(d, DefaultTimeout)
	}
}

// WithScratchDir is an option builder that sets the parent directory of the per-compile
// scratch directories. Empty uses the system temporary directory.
func WithScratchDir(dir string) CompilerBuilderOption {
	return func(c *compiler) {
		c.scratchDir = dir
	}
}

// WithBackend is an option builder that selects the backend for a dialect.
//
// Parameters:
//   - dialect: the shading language
//   - backendType: the backend compiling it
//
// Returns:
//   - CompilerBuilderOption: a function that applies the backend option to a compiler
func WithBackend(dialect shader.Dialect, backendType BackendType) CompilerBuilderOption {
	return func(c *compiler) {
		c.backendTypes[dialect] = backendType
	}
}

// WithSPIRVVersion is an option builder that sets the SPIR-V version emitted by the naga
// backend.
func WithSPIRVVersion(v spirv.Version) CompilerBuilderOption {
	return func(c *compiler) {
		c.spirvVersion = v
	}
}

// WithDebugInfo is an option builder that makes the naga backend emit debug names.
func WithDebugInfo(enabled bool) CompilerBuilderOption {
	return func(c *compiler) {
		c.debugInfo = enabled
	}
}

// WithValidation is an option builder that makes the naga backend validate the IR before
// generating code.
func WithValidation(enabled bool) CompilerBuilderOption {
	return func(c *compiler) {
		c.validate = enabled
	}
}

package session

import (
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/cache"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/compiler"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/preprocessor"
)

// SessionBuilderOption is a functional option for configuring a Session via NewSession.
type SessionBuilderOption func(*session)

// WithModuleCache is an option builder that sets the module cache shared by the session.
//
// Parameters:
//   - c: the module cache
//
// Returns:
//   - SessionBuilderOption: a function that applies the cache option to a session
func WithModuleCache(c cache.ModuleCache) SessionBuilderOption {
	return func(s *session) {
		s.cache = c
	}
}

// WithCompiler is an option builder that sets the compiler used for cache misses.
//
// Parameters:
//   - c: the compiler
//
// Returns:
//   - SessionBuilderOption: a function that applies the compiler option to a session
func WithCompiler(c compiler.Compiler) SessionBuilderOption {
	return func(s *session) {
		s.compiler = c
	}
}

// WithPreprocessor is an option builder that sets the preprocessor.
func WithPreprocessor(p preprocessor.Preprocessor) SessionBuilderOption {
	return func(s *session) {
		s.preprocessor = p
	}
}

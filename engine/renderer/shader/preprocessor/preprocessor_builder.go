package preprocessor

// PreprocessorBuilderOption configures a Preprocessor created with NewPreprocessor.
type PreprocessorBuilderOption func(*preprocessor)

// DefaultGLSLPrologue is emitted before the macro definitions of every GLSL unit.
var DefaultGLSLPrologue = []string{
	"#version 450",
	"#extension GL_ARB_separate_shader_objects : enable",
	"#extension GL_GOOGLE_include_directive : enable",
}

// WithGLSLPrologue replaces the pragma lines emitted at the top of GLSL units.
// A nil slice restores DefaultGLSLPrologue; an empty slice emits no pragmas.
//
// Parameters:
//   - lines: the prologue lines, without trailing newlines
//
// Returns:
//   - PreprocessorBuilderOption: the option to apply
func WithGLSLPrologue(lines []string) PreprocessorBuilderOption {
	return func(p *preprocessor) {
		if lines == nil {
			lines = DefaultGLSLPrologue
		}
		p.glslPrologue = lines
	}
}

// WithReadFile replaces the function used to read sources and includes.
//
// Parameters:
//   - readFile: a function with the signature of os.ReadFile
//
// Returns:
//   - PreprocessorBuilderOption: the option to apply
func WithReadFile(readFile func(string) ([]byte, error)) PreprocessorBuilderOption {
	return func(p *preprocessor) {
		if readFile != nil {
			p.readFile = readFile
		}
	}
}

// Package preprocessor expands a stage source into a single translation unit. It
// evaluates defined()-style conditionals, inlines #include files, tracks in-file
// #define names, rewrites binding placeholders through a BindingResolver, and records
// the line bookkeeping needed to map compiler diagnostics back to the original file.
package preprocessor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
)

// BindingResolver assigns concrete binding numbers to placeholder declarations.
// Declarations are passed in source order.
type BindingResolver interface {
	// Resolve returns the binding for decl as declared by stage.
	//
	// Parameters:
	//   - decl: the placeholder declaration
	//   - stage: the stage declaring it
	//
	// Returns:
	//   - int: the binding number substituted for the placeholder
	Resolve(decl shader.Declaration, stage shader.StageKind) int
}

// Preprocessor turns stage sources into translation units.
type Preprocessor interface {
	// Process reads the source at path and emits a translation unit for the given
	// macro set. The stage and dialect are derived from the file extension.
	//
	// Parameters:
	//   - path: the stage source file
	//   - macros: the macros active for the stage
	//   - resolver: assigns bindings to placeholder declarations; nil leaves them untouched
	//
	// Returns:
	//   - *Unit: the emitted translation unit
	//   - error: a *shader.Error of kind MissingSourceFile, MissingIncludeFile,
	//     MalformedConditional or UnsupportedStageExtension
	Process(path string, macros shader.MacroSet, resolver BindingResolver) (*Unit, error)
}

// preprocessor is the implementation of the Preprocessor interface.
type preprocessor struct {
	glslPrologue []string
	readFile     func(string) ([]byte, error)
}

var _ Preprocessor = &preprocessor{}

// NewPreprocessor creates a Preprocessor using the GLSL prologue from DefaultGLSLPrologue
// and os.ReadFile unless overridden by options.
//
// Parameters:
//   - options: optional configuration functions
//
// Returns:
//   - Preprocessor: a ready-to-use preprocessor
func NewPreprocessor(options ...PreprocessorBuilderOption) Preprocessor {
	p := &preprocessor{
		glslPrologue: DefaultGLSLPrologue,
		readFile:     os.ReadFile,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *preprocessor) Process(path string, macros shader.MacroSet, resolver BindingResolver) (*Unit, error) {
	stage, dialect, err := shader.StageFromPath(path)
	if err != nil {
		return nil, err
	}
	src, err := p.readFile(path)
	if err != nil {
		return nil, &shader.Error{
			Kind:    shader.ErrMissingSourceFile,
			Path:    path,
			Message: "cannot read source",
			Err:     err,
		}
	}

	e := &emitter{
		unit: &Unit{
			Path:    path,
			Stage:   stage,
			Dialect: dialect,
		},
		defined: make(map[string]bool),
	}
	for _, name := range macros.Names() {
		e.defined[name] = true
	}

	// GLSL units get the pragmas plus one #define per macro; WGSL has no preprocessor
	// of its own, so nothing is emitted ahead of the body.
	if dialect == shader.DialectGLSL {
		for _, line := range p.glslPrologue {
			e.sb.WriteString(line)
			e.sb.WriteByte('\n')
		}
		for _, line := range macros.Defines() {
			e.sb.WriteString(line)
			e.sb.WriteByte('\n')
		}
		e.unit.PrologueLines = len(p.glslPrologue) + len(macros)
	}

	if err := p.scan(e, path, string(src), stage, dialect, resolver); err != nil {
		return nil, err
	}
	e.unit.Text = e.sb.String()
	// a source without a final line ending keeps it that way
	if e.emitted > 0 && len(src) > 0 && src[len(src)-1] != '\n' {
		e.unit.Text = strings.TrimSuffix(e.unit.Text, "\n")
	}

	shader.Logger().Debug("preprocessed stage",
		"path", path,
		"stage", stage.String(),
		"lines", e.unit.Lines(),
		"includes", len(e.unit.Includes))
	return e.unit, nil
}

// emitter accumulates the output of a single Process call.
type emitter struct {
	unit    *Unit
	sb      strings.Builder
	emitted int
	defined map[string]bool
}

func (e *emitter) emit(line string) {
	e.sb.WriteString(line)
	e.sb.WriteByte('\n')
	e.emitted++
}

// drop records an unemitted source line, extending the previous elision when the two
// are contiguous in both the source and the output.
func (e *emitter) drop(lineNum int) {
	lm := e.unit.LineMap
	if n := len(lm); n > 0 {
		last := &lm[n-1]
		if last.Kind == shader.LineMapElision &&
			last.EmittedLine == e.emitted &&
			last.OriginalLine+last.LineCount == lineNum {
			last.LineCount++
			return
		}
	}
	e.unit.LineMap = append(e.unit.LineMap, shader.LineMapEntry{
		Kind: shader.LineMapElision,
		IncludeMapping: shader.IncludeMapping{
			OriginalLine: lineNum,
			EmittedLine:  e.emitted,
			LineCount:    1,
		},
	})
}

func (e *emitter) include(lineNum int, file, text string) {
	m := shader.IncludeMapping{
		OriginalLine: lineNum,
		EmittedLine:  e.emitted,
		LineCount:    strings.Count(text, "\n"),
	}
	e.sb.WriteString(text)
	e.sb.WriteByte('\n')
	e.emitted += m.LineCount + 1

	e.unit.Includes = append(e.unit.Includes, m)
	e.unit.LineMap = append(e.unit.LineMap, shader.LineMapEntry{
		Kind:           shader.LineMapInclude,
		IncludeMapping: m,
		File:           file,
	})
	e.unit.IncludedFiles = append(e.unit.IncludedFiles, file)
}

func (p *preprocessor) scan(e *emitter, path, src string, stage shader.StageKind, dialect shader.Dialect, resolver BindingResolver) error {
	lines := strings.Split(src, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	conds := newCondStack()
	malformed := func(lineNum int, err error) error {
		return &shader.Error{
			Kind:    shader.ErrMalformedConditional,
			Path:    path,
			Line:    lineNum,
			Message: err.Error(),
		}
	}

	for i, line := range lines {
		lineNum := i + 1
		d, err := ScanDirective(line)
		if err != nil {
			if !conds.accepting() {
				e.drop(lineNum)
				continue
			}
			return &shader.Error{
				Kind:    shader.ErrMissingIncludeFile,
				Path:    path,
				Line:    lineNum,
				Message: err.Error(),
			}
		}

		switch d.Kind {
		case DirectiveIf:
			conds.push(d.Holds(e.defined), d.Passthrough, lineNum)
			if d.Passthrough && conds.accepting() {
				e.emit(line)
			} else {
				e.drop(lineNum)
			}

		case DirectiveElif, DirectiveElse, DirectiveEndif:
			passthrough := conds.depth() > 0 && conds.top().passthrough
			emitLine := passthrough && conds.top().parentAccepted
			switch d.Kind {
			case DirectiveElif:
				if d.Passthrough && !passthrough {
					return malformed(lineNum, errors.New("#elif condition must be a chain of defined() clauses"))
				}
				err = conds.elif(func() bool { return d.Holds(e.defined) })
			case DirectiveElse:
				err = conds.els()
			default:
				err = conds.pop()
			}
			if err != nil {
				return malformed(lineNum, err)
			}
			if emitLine {
				e.emit(line)
			} else {
				e.drop(lineNum)
			}

		case DirectiveDefine, DirectiveUndef:
			if !conds.accepting() {
				e.drop(lineNum)
				continue
			}
			if d.Kind == DirectiveDefine {
				e.defined[d.Name] = true
				e.unit.Defines = append(e.unit.Defines, d.Name)
			} else {
				delete(e.defined, d.Name)
			}
			if dialect == shader.DialectWGSL {
				e.drop(lineNum)
			} else {
				e.emit(line)
			}

		case DirectiveInclude:
			if !conds.accepting() {
				e.drop(lineNum)
				continue
			}
			file := d.Path
			if !filepath.IsAbs(file) {
				file = filepath.Join(filepath.Dir(path), file)
			}
			text, err := p.readFile(file)
			if err != nil {
				return &shader.Error{
					Kind:    shader.ErrMissingIncludeFile,
					Path:    path,
					Line:    lineNum,
					Message: fmt.Sprintf("cannot read include %q", d.Path),
					Err:     err,
				}
			}
			e.include(lineNum, file, string(text))

		default:
			if !conds.accepting() {
				e.drop(lineNum)
				continue
			}
			if decl, ok := parsePlaceholder(line, lineNum, dialect); ok && resolver != nil {
				binding := resolver.Resolve(decl, stage)
				e.unit.Declarations = append(e.unit.Declarations, decl)
				line = substituteBinding(line, binding)
			}
			e.emit(line)
		}
	}

	if conds.depth() > 0 {
		return &shader.Error{
			Kind:    shader.ErrMalformedConditional,
			Path:    path,
			Line:    conds.top().line,
			Message: "#if without matching #endif",
		}
	}
	return nil
}

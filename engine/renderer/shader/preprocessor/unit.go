package preprocessor

import (
	"strings"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
)

// Unit is a single translation unit ready for the compiler.
type Unit struct {
	// Path is the top-level source file.
	Path string

	// Stage is the stage the unit is compiled for.
	Stage shader.StageKind

	// Dialect is the shading language of the unit.
	Dialect shader.Dialect

	// Text is the emitted source: prologue followed by the processed body.
	Text string

	// PrologueLines is the number of lines emitted before the first body line.
	PrologueLines int

	// Includes holds one entry per expanded #include, in source order. EmittedLine is
	// relative to the first body line.
	Includes []shader.IncludeMapping

	// LineMap holds the include expansions together with the runs of source lines that
	// were not emitted, in source order. It is the table used to remap diagnostics.
	LineMap []shader.LineMapEntry

	// IncludedFiles lists the resolved paths of every expanded include, in expansion order.
	IncludedFiles []string

	// Declarations holds every placeholder declaration resolved in the unit, in source order.
	Declarations []shader.Declaration

	// Defines lists the names declared with #define in accepted regions of the source.
	Defines []string
}

// Lines returns the number of lines in Text.
func (u *Unit) Lines() int {
	n := strings.Count(u.Text, "\n")
	if u.Text != "" && !strings.HasSuffix(u.Text, "\n") {
		n++
	}
	return n
}

// Body returns Text without the prologue.
func (u *Unit) Body() string {
	text := u.Text
	for range u.PrologueLines {
		_, text, _ = strings.Cut(text, "\n")
	}
	return text
}

package reflection

import (
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
)

// LineMap translates line numbers of an emitted translation unit back to the original
// top-level source file.
type LineMap struct {
	// File is the top-level source file diagnostics are reported against.
	File string

	// Stage is the stage the unit was compiled for.
	Stage shader.StageKind

	// PrologueLines is the number of synthesized lines ahead of the body.
	PrologueLines int

	// Entries holds include expansions and elided runs in source order.
	Entries []shader.LineMapEntry
}

// Remap converts a 1-based line of the emitted unit to a line of the original file.
// Lines inside the prologue map to 0. A line inside an include expansion collapses to the
// #include directive's line, and the include target is returned alongside it.
//
// Parameters:
//   - raw: the line reported by the compiler
//
// Returns:
//   - int: the original line, or 0 if the line has no original counterpart
//   - string: the included file the line came from, or an empty string
func (m LineMap) Remap(raw int) (int, string) {
	if raw <= 0 {
		return 0, ""
	}
	n := raw - m.PrologueLines
	if n <= 0 {
		return 0, ""
	}
	return remapEntries(n, m.Entries)
}

// remapEntries scans entries from last to first and applies the first one that covers n.
func remapEntries(n int, entries []shader.LineMapEntry) (int, string) {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		switch e.Kind {
		case shader.LineMapInclude:
			if n > e.EmittedLine+e.LineCount {
				return n - e.EmittedLine + e.OriginalLine - e.LineCount - 1, ""
			}
			if n > e.EmittedLine {
				return e.OriginalLine, e.File
			}
		case shader.LineMapElision:
			if n > e.EmittedLine {
				return n - e.EmittedLine + e.OriginalLine + e.LineCount - 1, ""
			}
		}
	}
	return n, ""
}

// RemapIncludes applies the include-only remap to a body-relative line. Lines after an
// expansion shift back by the expansion's size; lines inside it collapse to the
// #include line; lines before every expansion are returned unchanged.
//
// Parameters:
//   - n: the body-relative line
//   - includes: the include mappings in source order
//
// Returns:
//   - int: the original line
func RemapIncludes(n int, includes []shader.IncludeMapping) int {
	entries := make([]shader.LineMapEntry, len(includes))
	for i, m := range includes {
		entries[i] = shader.LineMapEntry{Kind: shader.LineMapInclude, IncludeMapping: m}
	}
	line, _ := remapEntries(n, entries)
	return line
}

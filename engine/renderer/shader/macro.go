package shader

import (
	"slices"
	"strings"
)

// Macro is a pipeline-level macro definition together with the stages it applies to.
// Text is the definition as it would follow "#define", e.g. "USE_SHADOWS" or "MAX_LIGHTS 8".
type Macro struct {
	Stages StageMask
	Text   string
}

// Name returns the macro name, the first whitespace-separated token of Text.
func (m Macro) Name() string {
	return macroName(m.Text)
}

// MacroSet is the ordered list of macro definitions active for one stage.
// Equality is order-sensitive: the same macros in a different order form a different set.
type MacroSet []string

// ResolveMacros selects the macros that apply to a stage, preserving declaration order.
//
// Parameters:
//   - macros: the pipeline-level macro list
//   - stage: the stage being compiled
//
// Returns:
//   - MacroSet: the texts of every macro whose mask includes stage, in declaration order
func ResolveMacros(macros []Macro, stage StageKind) MacroSet {
	out := make(MacroSet, 0, len(macros))
	for _, m := range macros {
		if m.Stages.Has(stage) {
			out = append(out, m.Text)
		}
	}
	return out
}

// Equal reports whether both sets hold the same definitions in the same order.
func (s MacroSet) Equal(other MacroSet) bool {
	return slices.Equal(s, other)
}

// Key returns an order-sensitive string suitable for map keys.
func (s MacroSet) Key() string {
	return strings.Join(s, "\x00")
}

// Normalized returns a sorted copy of the set.
func (s MacroSet) Normalized() MacroSet {
	out := slices.Clone(s)
	slices.Sort(out)
	return out
}

// Names returns the macro names of every definition in the set.
func (s MacroSet) Names() []string {
	names := make([]string, 0, len(s))
	for _, text := range s {
		if n := macroName(text); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// Defines renders one "#define" line per macro in set order.
func (s MacroSet) Defines() []string {
	lines := make([]string, 0, len(s))
	for _, text := range s {
		lines = append(lines, "#define "+text)
	}
	return lines
}

func macroName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name := fields[0]
	// function-like macros: NAME(x) -> NAME
	if i := strings.IndexByte(name, '('); i > 0 {
		name = name[:i]
	}
	return name
}

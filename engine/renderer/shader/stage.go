package shader

import (
	"fmt"
	"path/filepath"
	"strings"
)

// StageKind identifies the graphics or compute pipeline stage a translation unit is compiled for.
type StageKind int

const (
	// StageVertex is the vertex processing stage.
	StageVertex StageKind = iota

	// StageTessControl is the tessellation control (hull) stage.
	StageTessControl

	// StageTessEvaluation is the tessellation evaluation (domain) stage.
	StageTessEvaluation

	// StageGeometry is the geometry stage.
	StageGeometry

	// StageFragment is the fragment stage.
	StageFragment

	// StageCompute is the compute stage.
	StageCompute
)

// StageMask is a bit set of stages. Bit i corresponds to StageKind(i).
type StageMask uint32

// StageMaskAll selects every stage.
const StageMaskAll StageMask = 1<<(StageCompute+1) - 1

// Dialect identifies the shading language a stage source is written in.
type Dialect int

const (
	// DialectGLSL is Vulkan-flavored GLSL compiled by an external glslang executable.
	DialectGLSL Dialect = iota

	// DialectWGSL is WGSL compiled in-process.
	DialectWGSL
)

func (d Dialect) String() string {
	switch d {
	case DialectGLSL:
		return "glsl"
	case DialectWGSL:
		return "wgsl"
	default:
		return fmt.Sprintf("Dialect(%d)", int(d))
	}
}

// stageAbbrevs maps each stage to the abbreviation used for file extensions and the
// external compiler's -S flag.
var stageAbbrevs = map[StageKind]string{
	StageVertex:         "vert",
	StageTessControl:    "tesc",
	StageTessEvaluation: "tese",
	StageGeometry:       "geom",
	StageFragment:       "frag",
	StageCompute:        "comp",
}

// Abbrev returns the short stage name ("vert", "frag", ...), or an empty string for
// an unknown stage.
func (s StageKind) Abbrev() string {
	return stageAbbrevs[s]
}

// String returns a human-readable stage name.
func (s StageKind) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageTessControl:
		return "tessellation-control"
	case StageTessEvaluation:
		return "tessellation-evaluation"
	case StageGeometry:
		return "geometry"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// Mask returns the single-bit StageMask for this stage.
func (s StageKind) Mask() StageMask {
	return 1 << StageMask(s)
}

// Has reports whether the mask includes the given stage.
func (m StageMask) Has(s StageKind) bool {
	return m&s.Mask() != 0
}

// Stages returns the stages present in the mask in pipeline order.
func (m StageMask) Stages() []StageKind {
	var out []StageKind
	for s := StageVertex; s <= StageCompute; s++ {
		if m.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// String returns the stage abbreviations in the mask joined by "|".
func (m StageMask) String() string {
	if m == 0 {
		return "none"
	}
	names := make([]string, 0, 6)
	for _, s := range m.Stages() {
		names = append(names, s.Abbrev())
	}
	return strings.Join(names, "|")
}

// MarshalText implements encoding.TextMarshaler using the String form.
func (m StageMask) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting the String form.
func (m *StageMask) UnmarshalText(b []byte) error {
	text := string(b)
	if text == "" || text == "none" {
		*m = 0
		return nil
	}
	v, err := ParseStageMask(strings.Split(text, "|"))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseStage converts a stage abbreviation ("vert", "frag", ...) into a StageKind.
//
// Parameters:
//   - abbrev: the stage abbreviation, case-insensitive
//
// Returns:
//   - StageKind: the matching stage
//   - bool: false if the abbreviation is unknown
func ParseStage(abbrev string) (StageKind, bool) {
	abbrev = strings.ToLower(strings.TrimSpace(abbrev))
	for s, a := range stageAbbrevs {
		if a == abbrev {
			return s, true
		}
	}
	return 0, false
}

// ParseStageMask converts a list of stage abbreviations into a StageMask. The special
// name "all" selects every stage.
//
// Parameters:
//   - names: stage abbreviations such as "vert" or "frag"
//
// Returns:
//   - StageMask: the combined mask
//   - error: an UnsupportedStageExtension error naming the first unknown entry
func ParseStageMask(names []string) (StageMask, error) {
	var m StageMask
	for _, n := range names {
		if strings.EqualFold(strings.TrimSpace(n), "all") {
			m |= StageMaskAll
			continue
		}
		s, ok := ParseStage(n)
		if !ok {
			return 0, &Error{Kind: ErrUnsupportedStageExtension, Message: "unknown stage " + n}
		}
		m |= s.Mask()
	}
	return m, nil
}

// StageFromPath determines the stage and dialect of a source file from its extension.
// GLSL stages use the bare stage extension (light.frag); WGSL stages carry the stage
// before the .wgsl extension (light.frag.wgsl).
//
// Parameters:
//   - path: the stage source file path
//
// Returns:
//   - StageKind: the stage the file is compiled for
//   - Dialect: the shading language of the file
//   - error: an UnsupportedStageExtension error if the extension is not recognized
func StageFromPath(path string) (StageKind, Dialect, error) {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	dialect := DialectGLSL
	if ext == ".wgsl" {
		dialect = DialectWGSL
		ext = strings.ToLower(filepath.Ext(strings.TrimSuffix(base, filepath.Ext(base))))
	}
	if s, ok := ParseStage(strings.TrimPrefix(ext, ".")); ok {
		return s, dialect, nil
	}
	return 0, dialect, &Error{
		Kind:    ErrUnsupportedStageExtension,
		Path:    path,
		Message: "unsupported stage extension " + filepath.Ext(base),
	}
}

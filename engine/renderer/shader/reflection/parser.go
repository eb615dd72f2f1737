// Package reflection parses the text an external shader compiler prints when asked to
// dump its reflection tables, and remaps compiler diagnostics from the emitted
// translation unit back to the original source.
//
// The parser is a line-oriented state machine. Section headers switch the state; entry
// lines are interpreted according to the current section; diagnostic lines are
// recognized in any state.
package reflection

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
)

// section is the parser state.
type section int

const (
	sectionNone section = iota
	sectionUniform
	sectionUniformBlock
	sectionVertexAttribute
	sectionStorageBlock
	sectionIgnored
)

// sectionHeaders maps the reflection section headers to parser states. Any other line
// ending in "reflection:" switches to sectionIgnored.
var sectionHeaders = map[string]section{
	"Uniform reflection:":          sectionUniform,
	"Uniform block reflection:":    sectionUniformBlock,
	"Vertex attribute reflection:": sectionVertexAttribute,
	"Pipeline input reflection:":   sectionVertexAttribute,
	"Buffer block reflection:":     sectionStorageBlock,
}

var (
	// diagnosticRegex matches "ERROR: file:line: message" and "WARNING: ..." lines.
	// Groups: 1 = severity, 2 = file, 3 = line, 4 = message. Groups 2 and 3 are empty
	// when the diagnostic has no position.
	diagnosticRegex = regexp.MustCompile(`^(ERROR|WARNING):\s*(?:(.+?):(\d+):\s*)?(.*)$`)

	// entryRegex matches "name: key value, key value, ...".
	entryRegex = regexp.MustCompile(`^([A-Za-z_][\w.\[\]]*)\s*:\s*(.+)$`)
)

// samplerTypes maps the GL type enums the compiler reports for sampler uniforms to
// their GLSL type names.
var samplerTypes = map[uint32]string{
	0x8b5d: "sampler1D",
	0x8b5e: "sampler2D",
	0x8b5f: "sampler3D",
	0x8b60: "samplerCube",
	0x8b61: "sampler1DShadow",
	0x8b62: "sampler2DShadow",
	0x8b63: "sampler2DRect",
	0x8b64: "sampler2DRectShadow",
	0x8dc0: "sampler1DArray",
	0x8dc1: "sampler2DArray",
	0x8dc2: "samplerBuffer",
	0x8dc3: "sampler1DArrayShadow",
	0x8dc4: "sampler2DArrayShadow",
	0x8dc5: "samplerCubeShadow",
	0x8dc9: "isampler1D",
	0x8dca: "isampler2D",
	0x8dcb: "isampler3D",
	0x8dcc: "isamplerCube",
	0x8dce: "isampler1DArray",
	0x8dcf: "isampler2DArray",
	0x8dd1: "usampler1D",
	0x8dd2: "usampler2D",
	0x8dd3: "usampler3D",
	0x8dd4: "usamplerCube",
	0x8dd6: "usampler1DArray",
	0x8dd7: "usampler2DArray",
	0x900c: "samplerCubeArray",
	0x900d: "samplerCubeArrayShadow",
	0x9108: "sampler2DMS",
	0x910b: "sampler2DMSArray",
}

// attributeTypes maps the GL type enums of vertex attributes to their WGSL spelling.
var attributeTypes = map[uint32]string{
	0x1406: "f32",
	0x8b50: "vec2<f32>",
	0x8b51: "vec3<f32>",
	0x8b52: "vec4<f32>",
	0x1404: "i32",
	0x8b53: "vec2<i32>",
	0x8b54: "vec3<i32>",
	0x8b55: "vec4<i32>",
	0x1405: "u32",
	0x8dc6: "vec2<u32>",
	0x8dc7: "vec3<u32>",
	0x8dc8: "vec4<u32>",
}

// IsSamplerType reports whether a reflected GL type enum denotes a sampler.
func IsSamplerType(t uint32) bool {
	_, ok := samplerTypes[t]
	return ok
}

// SamplerTypeName returns the GLSL name of a sampler type enum, or an empty string.
func SamplerTypeName(t uint32) string {
	return samplerTypes[t]
}

// VertexInputs collects the vertex attribute records into vertex inputs ordered by
// location. Built-in inputs (gl_*) are skipped. When the compiler does not report a
// location, the attribute's reflection index stands in for it.
//
// Parameters:
//   - records: reflection records of a vertex stage
//
// Returns:
//   - []shader.VertexInput: the inputs, nil if there are none
func VertexInputs(records []shader.ReflectionRecord) []shader.VertexInput {
	var inputs []shader.VertexInput
	for i, rec := range records {
		if rec.Kind != shader.RecordVertexAttribute || strings.HasPrefix(rec.Name, "gl_") {
			continue
		}
		loc := rec.Location
		if loc < 0 {
			loc = rec.Index
		}
		if loc < 0 {
			loc = i
		}
		inputs = append(inputs, shader.VertexInput{Location: loc, Name: rec.Name, Type: rec.TypeName})
	}
	sort.SliceStable(inputs, func(i, j int) bool {
		return inputs[i].Location < inputs[j].Location
	})
	return inputs
}

// Result is the structured form of a compiler's output.
type Result struct {
	Records     []shader.ReflectionRecord
	Diagnostics []shader.Diagnostic
}

// Errors returns the error-severity diagnostics.
func (r *Result) Errors() []shader.Diagnostic {
	var out []shader.Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == shader.SeverityError {
			out = append(out, d)
		}
	}
	return out
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

// Parse interprets the captured output of the external compiler.
//
// Parameters:
//   - output: the compiler's combined stdout and stderr
//   - lm: the line map of the translation unit that was compiled
//
// Returns:
//   - *Result: the reflection records in output order and the remapped diagnostics
func Parse(output string, lm LineMap) *Result {
	res := &Result{}
	state := sectionNone

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := diagnosticRegex.FindStringSubmatch(trimmed); m != nil {
			res.Diagnostics = append(res.Diagnostics, newDiagnostic(m, lm))
			continue
		}
		if s, ok := sectionHeaders[trimmed]; ok {
			state = s
			continue
		}
		if strings.HasSuffix(trimmed, "reflection:") {
			state = sectionIgnored
			continue
		}

		var kind shader.RecordKind
		switch state {
		case sectionUniform:
			kind = shader.RecordUniform
		case sectionUniformBlock:
			kind = shader.RecordUniformBlock
		case sectionVertexAttribute:
			kind = shader.RecordVertexAttribute
		case sectionStorageBlock:
			kind = shader.RecordStorageBlock
		default:
			continue
		}
		rec, ok := parseEntry(trimmed, kind)
		if !ok {
			continue
		}
		res.addRecord(rec)
	}
	return res
}

// addRecord appends rec, collapsing a bound uniform block into an earlier record with the
// same binding and base name so that block arrays aggregate into one record.
func (r *Result) addRecord(rec shader.ReflectionRecord) {
	if rec.Kind == shader.RecordUniformBlock && rec.Binding != -1 {
		base := rec.BaseName()
		for i := range r.Records {
			existing := &r.Records[i]
			if existing.Kind == shader.RecordUniformBlock &&
				existing.Binding == rec.Binding &&
				existing.Name == base {
				existing.ArrayCount++
				return
			}
		}
		rec.Name = base
	}
	r.Records = append(r.Records, rec)
}

func newDiagnostic(m []string, lm LineMap) shader.Diagnostic {
	d := shader.Diagnostic{
		Message:  strings.TrimSpace(m[4]),
		Severity: shader.SeverityError,
		File:     lm.File,
		Stage:    lm.Stage,
	}
	if m[1] == "WARNING" {
		d.Severity = shader.SeverityWarning
	}
	if m[3] != "" {
		raw, _ := strconv.Atoi(m[3])
		line, included := lm.Remap(raw)
		d.Line = line
		if included != "" {
			d.Message = fmt.Sprintf("%s (in included file %s)", d.Message, included)
		}
	}
	return d
}

// parseEntry parses "name: offset X, type Y, size Z, index I, binding B[, ...]".
// Unknown keys are ignored; missing keys keep their defaults.
func parseEntry(line string, kind shader.RecordKind) (shader.ReflectionRecord, bool) {
	m := entryRegex.FindStringSubmatch(line)
	if m == nil {
		return shader.ReflectionRecord{}, false
	}
	rec := shader.ReflectionRecord{
		Kind:       kind,
		Name:       m[1],
		Offset:     -1,
		Index:      -1,
		Binding:    -1,
		ArrayCount: 1,
	}

	if kind == shader.RecordVertexAttribute {
		rec.Location = -1
	}

	fields := 0
	for _, part := range strings.Split(m[2], ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), " ")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "type":
			t, err := strconv.ParseUint(strings.TrimPrefix(value, "0x"), 16, 32)
			if err != nil {
				return shader.ReflectionRecord{}, false
			}
			rec.Type = uint32(t)
			fields++
			continue
		case "offset", "size", "index", "binding", "set", "location":
		default:
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return shader.ReflectionRecord{}, false
		}
		switch key {
		case "offset":
			rec.Offset = n
		case "size":
			rec.Size = n
		case "index":
			rec.Index = n
		case "binding":
			rec.Binding = n
		case "set":
			rec.Set = n
		case "location":
			rec.Location = n
		}
		fields++
	}
	if fields == 0 {
		return shader.ReflectionRecord{}, false
	}
	if name, ok := samplerTypes[rec.Type]; ok && kind == shader.RecordUniform {
		rec.Resource = shader.ResourceCombinedImageSampler
		rec.TypeName = name
	}
	if kind == shader.RecordVertexAttribute {
		rec.TypeName = attributeTypes[rec.Type]
	}
	return rec, true
}

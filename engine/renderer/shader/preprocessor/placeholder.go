package preprocessor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
)

var (
	// glslPlaceholderRegex matches layout(..., binding = TKE_UBO_BINDING, ...) uniform [type] NAME [ '[' N ']' ].
	// Groups: 1 = layout qualifiers, 2 = optional type token, 3 = name, 4 = optional array length.
	glslPlaceholderRegex = regexp.MustCompile(`layout\s*\(([^)]*)\)\s*uniform\s+(?:(\w+)\s+)?(\w+)\s*(?:\[\s*(\d+)\s*\])?`)

	// glslSetRegex extracts the descriptor set from the layout qualifiers.
	glslSetRegex = regexp.MustCompile(`\bset\s*=\s*(\d+)`)

	// glslBindingRegex checks that the binding qualifier carries the placeholder.
	glslBindingRegex = regexp.MustCompile(`\bbinding\s*=\s*` + shader.BindingPlaceholder + `\b`)

	// wgslPlaceholderRegex matches @group(S) @binding(TKE_UBO_BINDING) var[<space>] NAME : TYPE.
	// Groups: 1 = group, 2 = optional address space, 3 = name, 4 = type.
	wgslPlaceholderRegex = regexp.MustCompile(`@group\(\s*(\d+)\s*\)\s*@binding\(\s*` + shader.BindingPlaceholder + `\s*\)\s*var(?:\s*<([^>]*)>)?\s+(\w+)\s*:\s*([^;=]+)`)

	// wgslBindingArrayRegex extracts the element count of binding_array<T, N>.
	wgslBindingArrayRegex = regexp.MustCompile(`^binding_array\s*<.*,\s*(\d+)\s*>$`)
)

// parsePlaceholder recognizes a resource declaration carrying the binding placeholder.
//
// Parameters:
//   - line: the raw source line
//   - lineNum: the 1-based line number recorded on the declaration
//   - dialect: the shading language of the source
//
// Returns:
//   - shader.Declaration: the parsed declaration
//   - bool: false if the line does not declare a placeholder binding
func parsePlaceholder(line string, lineNum int, dialect shader.Dialect) (shader.Declaration, bool) {
	if !strings.Contains(line, shader.BindingPlaceholder) {
		return shader.Declaration{}, false
	}
	if dialect == shader.DialectWGSL {
		return parseWGSLPlaceholder(line, lineNum)
	}
	return parseGLSLPlaceholder(line, lineNum)
}

func parseGLSLPlaceholder(line string, lineNum int) (shader.Declaration, bool) {
	m := glslPlaceholderRegex.FindStringSubmatch(line)
	if m == nil || !glslBindingRegex.MatchString(m[1]) {
		return shader.Declaration{}, false
	}
	decl := shader.Declaration{
		Name:  m[3],
		Kind:  shader.DescriptorUniformBuffer,
		Count: 1,
		Line:  lineNum,
	}
	if s := glslSetRegex.FindStringSubmatch(m[1]); s != nil {
		decl.Set, _ = strconv.Atoi(s[1])
	}
	if strings.HasPrefix(m[2], "sampler") {
		decl.Kind = shader.DescriptorCombinedImageSampler
		decl.Type = m[2]
	}
	if m[4] != "" {
		decl.Count, _ = strconv.Atoi(m[4])
	}
	return decl, true
}

func parseWGSLPlaceholder(line string, lineNum int) (shader.Declaration, bool) {
	m := wgslPlaceholderRegex.FindStringSubmatch(line)
	if m == nil {
		return shader.Declaration{}, false
	}
	decl := shader.Declaration{
		Name:  m[3],
		Count: 1,
		Line:  lineNum,
	}
	decl.Set, _ = strconv.Atoi(m[1])

	space := strings.TrimSpace(m[2])
	typ := strings.TrimSpace(m[4])
	if n := wgslBindingArrayRegex.FindStringSubmatch(typ); n != nil {
		decl.Count, _ = strconv.Atoi(n[1])
		inner := strings.TrimSpace(strings.TrimPrefix(typ, "binding_array"))
		inner = strings.TrimSpace(strings.TrimPrefix(inner, "<"))
		if i := strings.LastIndex(inner, ","); i >= 0 {
			inner = inner[:i]
		}
		typ = strings.TrimSpace(inner)
	}

	switch {
	case strings.HasPrefix(space, "uniform"):
		decl.Kind = shader.DescriptorUniformBuffer
		decl.Type = space
	case strings.HasPrefix(space, "storage"):
		decl.Kind = shader.DescriptorStorageBuffer
		decl.Type = space
	case strings.HasPrefix(typ, "texture_"):
		decl.Kind = shader.DescriptorSampledImage
		decl.Type = typ
	case strings.HasPrefix(typ, "sampler"):
		decl.Kind = shader.DescriptorSampler
		decl.Type = typ
	default:
		return shader.Declaration{}, false
	}
	return decl, true
}

// substituteBinding replaces the first placeholder token in line with binding.
func substituteBinding(line string, binding int) string {
	return strings.Replace(line, shader.BindingPlaceholder, strconv.Itoa(binding), 1)
}

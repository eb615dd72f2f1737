package preprocessor

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
)

const glslPrologue = "#version 450\n" +
	"#extension GL_ARB_separate_shader_objects : enable\n" +
	"#extension GL_GOOGLE_include_directive : enable\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// countingResolver hands out bindings per set in declaration order and reuses the
// binding of a repeated name.
type countingResolver struct {
	next  map[int]int
	named map[string]int
	calls []shader.Declaration
}

func (r *countingResolver) Resolve(decl shader.Declaration, _ shader.StageKind) int {
	if r.next == nil {
		r.next = make(map[int]int)
		r.named = make(map[string]int)
	}
	r.calls = append(r.calls, decl)
	if b, ok := r.named[decl.Name]; ok {
		return b
	}
	b := r.next[decl.Set]
	r.next[decl.Set]++
	r.named[decl.Name] = b
	return b
}

func TestProcessVerbatim(t *testing.T) {
	src := "layout(location = 0) out vec4 color;\nvoid main() {\n    color = vec4(1.0);\n}\n"
	path := writeFile(t, t.TempDir(), "plain.frag", src)

	tests := []struct {
		name   string
		macros shader.MacroSet
		want   string
	}{
		{"no macros", nil, glslPrologue + src},
		{"with macros", shader.MacroSet{"USE_FOO", "MAX_LIGHTS 8"}, glslPrologue + "#define USE_FOO\n#define MAX_LIGHTS 8\n" + src},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, err := NewPreprocessor().Process(path, tt.macros, nil)
			if err != nil {
				t.Fatalf("Process() error: %v", err)
			}
			if unit.Text != tt.want {
				t.Errorf("Text = %q, want %q", unit.Text, tt.want)
			}
			if unit.PrologueLines != 3+len(tt.macros) {
				t.Errorf("PrologueLines = %d, want %d", unit.PrologueLines, 3+len(tt.macros))
			}
			if len(unit.LineMap) != 0 {
				t.Errorf("LineMap = %+v, want empty", unit.LineMap)
			}
			if unit.Body() != src {
				t.Errorf("Body() = %q, want %q", unit.Body(), src)
			}
		})
	}
}

func TestProcessKeepsMissingFinalNewline(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name  string
		file  string
		src   string
		want  string
		lines int
	}{
		{"unterminated", "a.frag", "void main() {\n}", "void main() {\n}", 5},
		{"terminated", "b.frag", "void main() {\n}\n", "void main() {\n}\n", 5},
		{"ends in dropped block", "c.frag", "void main() {}\n#if defined(A)\nfloat a;\n#endif", "void main() {}", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.src)
			unit, err := NewPreprocessor().Process(path, nil, nil)
			if err != nil {
				t.Fatalf("Process() error: %v", err)
			}
			if unit.Text != glslPrologue+tt.want {
				t.Errorf("Text = %q, want %q", unit.Text, glslPrologue+tt.want)
			}
			if got := unit.Lines(); got != tt.lines {
				t.Errorf("Lines() = %d, want %d", got, tt.lines)
			}
		})
	}
}

func TestProcessExactlyOneBranch(t *testing.T) {
	src := "top\n#if defined(A)\nbranch_a\n#else\nbranch_b\n#endif\nbottom\n"
	path := writeFile(t, t.TempDir(), "branch.vert", src)

	tests := []struct {
		name   string
		macros shader.MacroSet
		want   string
		absent string
	}{
		{"defined", shader.MacroSet{"A"}, "branch_a", "branch_b"},
		{"undefined", nil, "branch_b", "branch_a"},
		{"other macro", shader.MacroSet{"B"}, "branch_b", "branch_a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, err := NewPreprocessor(WithGLSLPrologue([]string{})).Process(path, tt.macros, nil)
			if err != nil {
				t.Fatalf("Process() error: %v", err)
			}
			body := unit.Body()
			if !strings.Contains(body, tt.want) {
				t.Errorf("body %q missing %q", body, tt.want)
			}
			if strings.Contains(body, tt.absent) {
				t.Errorf("body %q contains %q", body, tt.absent)
			}
			if strings.Contains(body, "#if") || strings.Contains(body, "#else") || strings.Contains(body, "#endif") {
				t.Errorf("body %q still contains conditional directives", body)
			}
		})
	}
}

func TestProcessLocalDefine(t *testing.T) {
	src := "#define USE_FOO\n#if defined(USE_FOO)\nA\n#else\nB\n#endif\n"
	path := writeFile(t, t.TempDir(), "local.frag", src)

	unit, err := NewPreprocessor().Process(path, shader.MacroSet{}, nil)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	lines := strings.Split(unit.Body(), "\n")
	if !slicesContains(lines, "A") {
		t.Errorf("emitted lines %q missing A", lines)
	}
	if slicesContains(lines, "B") {
		t.Errorf("emitted lines %q contain B", lines)
	}
	if !slicesContains(lines, "#define USE_FOO") {
		t.Errorf("GLSL #define not copied through: %q", lines)
	}
	if !reflect.DeepEqual(unit.Defines, []string{"USE_FOO"}) {
		t.Errorf("Defines = %q, want [USE_FOO]", unit.Defines)
	}
}

func slicesContains(lines []string, s string) bool {
	for _, l := range lines {
		if l == s {
			return true
		}
	}
	return false
}

func TestProcessNestedConditionals(t *testing.T) {
	src := strings.Join([]string{
		"#if defined(A)",
		"#if defined(B) && !defined(C)",
		"ab",
		"#elif defined(C)",
		"ac",
		"#else",
		"a",
		"#endif",
		"#else",
		"#ifdef B",
		"b",
		"#endif",
		"none",
		"#endif",
		"",
	}, "\n")
	path := writeFile(t, t.TempDir(), "nested.comp", src)

	tests := []struct {
		macros shader.MacroSet
		want   string
	}{
		{shader.MacroSet{"A", "B"}, "ab\n"},
		{shader.MacroSet{"A", "B", "C"}, "ac\n"},
		{shader.MacroSet{"A"}, "a\n"},
		{shader.MacroSet{"B"}, "b\nnone\n"},
		{nil, "none\n"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.macros, ","), func(t *testing.T) {
			unit, err := NewPreprocessor(WithGLSLPrologue([]string{})).Process(path, tt.macros, nil)
			if err != nil {
				t.Fatalf("Process() error: %v", err)
			}
			body := unit.Body()
			if body != tt.want {
				t.Errorf("body = %q, want %q", body, tt.want)
			}
		})
	}
}

func TestProcessPassthroughConditional(t *testing.T) {
	src := "#if MAX_LIGHTS > 4\nmany\n#else\nfew\n#endif\n"
	path := writeFile(t, t.TempDir(), "pass.frag", src)

	unit, err := NewPreprocessor(WithGLSLPrologue([]string{})).Process(path, nil, nil)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if unit.Body() != src {
		t.Errorf("body = %q, want %q", unit.Body(), src)
	}
}

func TestProcessMalformed(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"endif without if", "a\n#endif\n", 2},
		{"else without if", "#else\n", 1},
		{"unclosed if", "#if defined(A)\na\n", 1},
		{"elif after else", "#if defined(A)\n#else\n#elif defined(B)\n#endif\n", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "bad.frag", tt.src)
			_, err := NewPreprocessor().Process(path, nil, nil)
			if !errors.Is(err, shader.ErrMalformed) {
				t.Fatalf("Process() error = %v, want MalformedConditional", err)
			}
			var serr *shader.Error
			if errors.As(err, &serr) && serr.Line != tt.line {
				t.Errorf("Line = %d, want %d", serr.Line, tt.line)
			}
		})
	}
}

func TestProcessMissingFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := NewPreprocessor().Process(filepath.Join(dir, "absent.vert"), nil, nil)
	if !errors.Is(err, shader.ErrMissingSource) {
		t.Errorf("missing source error = %v, want MissingSourceFile", err)
	}

	path := writeFile(t, dir, "inc.vert", "a\n#include \"nope.glsl\"\nb\n")
	unit, err := NewPreprocessor().Process(path, nil, nil)
	if !errors.Is(err, shader.ErrMissingInclude) {
		t.Errorf("missing include error = %v, want MissingIncludeFile", err)
	}
	if unit != nil {
		t.Error("unit returned alongside a missing include error")
	}

	// a missing include in a rejected branch is never read
	path = writeFile(t, dir, "guarded.vert", "#if defined(NOPE)\n#include \"nope.glsl\"\n#endif\n")
	if _, err := NewPreprocessor().Process(path, nil, nil); err != nil {
		t.Errorf("rejected include error = %v, want nil", err)
	}

	_, err = NewPreprocessor().Process(writeFile(t, dir, "x.glsl", ""), nil, nil)
	if !errors.Is(err, shader.ErrUnsupportedStage) {
		t.Errorf("unsupported extension error = %v, want UnsupportedStageExtension", err)
	}
}

func TestProcessIncludeMapping(t *testing.T) {
	dir := t.TempDir()
	inc := writeFile(t, dir, "lib/light.glsl", "struct Light {\n    vec4 color;\n};\n")
	src := "line1\nline2\n#include \"lib/light.glsl\"\nline4\n#include \"lib/light.glsl\"\nline6\n"
	path := writeFile(t, dir, "lit.frag", src)

	unit, err := NewPreprocessor().Process(path, nil, nil)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	want := []shader.IncludeMapping{
		{OriginalLine: 3, EmittedLine: 2, LineCount: 3},
		{OriginalLine: 5, EmittedLine: 7, LineCount: 3},
	}
	if !reflect.DeepEqual(unit.Includes, want) {
		t.Errorf("Includes = %+v, want %+v", unit.Includes, want)
	}
	if !reflect.DeepEqual(unit.IncludedFiles, []string{inc, inc}) {
		t.Errorf("IncludedFiles = %q", unit.IncludedFiles)
	}
	if got := strings.Count(unit.Body(), "struct Light"); got != 2 {
		t.Errorf("include expanded %d times, want 2", got)
	}
	for i := 1; i < len(unit.Includes); i++ {
		if unit.Includes[i].EmittedLine < unit.Includes[i-1].EmittedLine {
			t.Errorf("Includes not monotonic: %+v", unit.Includes)
		}
	}
}

func TestProcessElisionLineMap(t *testing.T) {
	src := "a\n#if defined(X)\nx1\nx2\n#endif\nb\n"
	path := writeFile(t, t.TempDir(), "elide.frag", src)

	unit, err := NewPreprocessor().Process(path, nil, nil)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	want := []shader.LineMapEntry{{
		Kind:           shader.LineMapElision,
		IncludeMapping: shader.IncludeMapping{OriginalLine: 2, EmittedLine: 1, LineCount: 4},
	}}
	if !reflect.DeepEqual(unit.LineMap, want) {
		t.Errorf("LineMap = %+v, want %+v", unit.LineMap, want)
	}
	if unit.Body() != "a\nb\n" {
		t.Errorf("body = %q, want %q", unit.Body(), "a\nb\n")
	}
}

func TestProcessGLSLPlaceholders(t *testing.T) {
	src := strings.Join([]string{
		"layout(binding = TKE_UBO_BINDING) uniform Light {",
		"    vec4 color;",
		"} light;",
		"layout(set = 1, binding = TKE_UBO_BINDING) uniform sampler2D shadowMaps[4];",
		"layout(std140, binding = TKE_UBO_BINDING) uniform Camera {",
		"    mat4 view;",
		"};",
		"#if defined(SKIP)",
		"layout(binding = TKE_UBO_BINDING) uniform Skipped {",
		"#endif",
		"",
	}, "\n")
	path := writeFile(t, t.TempDir(), "bind.frag", src)

	r := &countingResolver{}
	unit, err := NewPreprocessor().Process(path, nil, r)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	wantDecls := []shader.Declaration{
		{Name: "Light", Set: 0, Kind: shader.DescriptorUniformBuffer, Count: 1, Line: 1},
		{Name: "shadowMaps", Set: 1, Kind: shader.DescriptorCombinedImageSampler, Count: 4, Type: "sampler2D", Line: 4},
		{Name: "Camera", Set: 0, Kind: shader.DescriptorUniformBuffer, Count: 1, Line: 5},
	}
	if !reflect.DeepEqual(r.calls, wantDecls) {
		t.Errorf("resolver calls = %+v, want %+v", r.calls, wantDecls)
	}
	if !reflect.DeepEqual(unit.Declarations, wantDecls) {
		t.Errorf("Declarations = %+v, want %+v", unit.Declarations, wantDecls)
	}
	body := unit.Body()
	for _, want := range []string{
		"layout(binding = 0) uniform Light {",
		"layout(set = 1, binding = 0) uniform sampler2D shadowMaps[4];",
		"layout(std140, binding = 1) uniform Camera {",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, shader.BindingPlaceholder) {
		t.Errorf("placeholder left in body:\n%s", body)
	}
}

func TestProcessWGSL(t *testing.T) {
	src := strings.Join([]string{
		"#define USE_SHADOWS",
		"@group(0) @binding(TKE_UBO_BINDING) var<uniform> camera : Camera;",
		"#if defined(USE_SHADOWS)",
		"@group(1) @binding(TKE_UBO_BINDING) var shadow_map : texture_depth_2d;",
		"@group(1) @binding(TKE_UBO_BINDING) var shadow_sampler : sampler_comparison;",
		"#endif",
		"@group(2) @binding(TKE_UBO_BINDING) var<storage, read> lights : array<Light>;",
		"@group(2) @binding(TKE_UBO_BINDING) var textures : binding_array<texture_2d<f32>, 8>;",
		"",
	}, "\n")
	path := writeFile(t, t.TempDir(), "lit.frag.wgsl", src)

	r := &countingResolver{}
	unit, err := NewPreprocessor().Process(path, shader.MacroSet{"UNUSED"}, r)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if unit.Dialect != shader.DialectWGSL || unit.Stage != shader.StageFragment {
		t.Errorf("Dialect, Stage = %v, %v, want WGSL, fragment", unit.Dialect, unit.Stage)
	}
	if unit.PrologueLines != 0 {
		t.Errorf("PrologueLines = %d, want 0", unit.PrologueLines)
	}
	if strings.Contains(unit.Text, "#") {
		t.Errorf("WGSL unit contains preprocessor lines:\n%s", unit.Text)
	}
	wantKinds := []shader.DescriptorKind{
		shader.DescriptorUniformBuffer,
		shader.DescriptorSampledImage,
		shader.DescriptorSampler,
		shader.DescriptorStorageBuffer,
		shader.DescriptorSampledImage,
	}
	if len(r.calls) != len(wantKinds) {
		t.Fatalf("resolver called %d times, want %d", len(r.calls), len(wantKinds))
	}
	for i, k := range wantKinds {
		if r.calls[i].Kind != k {
			t.Errorf("declaration %d (%s) kind = %v, want %v", i, r.calls[i].Name, r.calls[i].Kind, k)
		}
	}
	if r.calls[4].Count != 8 {
		t.Errorf("binding_array count = %d, want 8", r.calls[4].Count)
	}
	wantTypes := []string{"uniform", "texture_depth_2d", "sampler_comparison", "storage, read", "texture_2d<f32>"}
	for i, typ := range wantTypes {
		if r.calls[i].Type != typ {
			t.Errorf("declaration %d (%s) type = %q, want %q", i, r.calls[i].Name, r.calls[i].Type, typ)
		}
	}
	for _, want := range []string{
		"@group(0) @binding(0) var<uniform> camera : Camera;",
		"@group(1) @binding(1) var shadow_sampler : sampler_comparison;",
		"@group(2) @binding(1) var textures : binding_array<texture_2d<f32>, 8>;",
	} {
		if !strings.Contains(unit.Text, want) {
			t.Errorf("text missing %q:\n%s", want, unit.Text)
		}
	}
}

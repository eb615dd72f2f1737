package shader

import "testing"

func TestResolveMacros(t *testing.T) {
	vert, frag := StageVertex.Mask(), StageFragment.Mask()
	macros := []Macro{
		{Stages: frag, Text: "USE_TEXTURE"},
		{Stages: vert | frag, Text: "MAX_LIGHTS 8"},
		{Stages: vert, Text: "SKINNED"},
	}

	tests := []struct {
		stage StageKind
		want  MacroSet
	}{
		{StageVertex, MacroSet{"MAX_LIGHTS 8", "SKINNED"}},
		{StageFragment, MacroSet{"USE_TEXTURE", "MAX_LIGHTS 8"}},
		{StageCompute, MacroSet{}},
	}
	for _, tt := range tests {
		t.Run(tt.stage.String(), func(t *testing.T) {
			if got := ResolveMacros(macros, tt.stage); !got.Equal(tt.want) {
				t.Errorf("ResolveMacros() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := ResolveMacros(nil, StageVertex); len(got) != 0 {
		t.Errorf("ResolveMacros(nil) = %q, want empty", got)
	}
}

func TestMacroSetOrder(t *testing.T) {
	a := MacroSet{"B", "A"}
	b := MacroSet{"A", "B"}

	if a.Equal(b) || a.Key() == b.Key() {
		t.Error("sets in different order compare equal")
	}
	if !a.Normalized().Equal(b) || a.Normalized().Key() != b.Key() {
		t.Errorf("Normalized() = %q, want %q", a.Normalized(), b)
	}
	if a[0] != "B" {
		t.Error("Normalized() modified the receiver")
	}
}

func TestMacroNames(t *testing.T) {
	s := MacroSet{"USE_FOO", "MAX_LIGHTS 8", "SQR(x) ((x)*(x))"}
	want := []string{"USE_FOO", "MAX_LIGHTS", "SQR"}
	got := s.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if d := s.Defines(); d[1] != "#define MAX_LIGHTS 8" {
		t.Errorf("Defines()[1] = %q", d[1])
	}
}

package binding

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
)

func ubo(name string, set int) shader.Declaration {
	return shader.Declaration{Name: name, Set: set, Kind: shader.DescriptorUniformBuffer, Count: 1}
}

func TestResolveSharedAcrossStages(t *testing.T) {
	tbl := NewTable()

	vertLight := tbl.Resolve(ubo("Light", 0), shader.StageVertex)
	vertCamera := tbl.Resolve(ubo("Camera", 0), shader.StageVertex)
	fragLight := tbl.Resolve(ubo("Light", 0), shader.StageFragment)

	if vertLight != 0 || vertCamera != 1 {
		t.Errorf("vertex bindings = (%d, %d), want (0, 1)", vertLight, vertCamera)
	}
	if fragLight != vertLight {
		t.Errorf("fragment Light binding = %d, want %d", fragLight, vertLight)
	}

	got := tbl.Descriptors()
	want := []shader.Descriptor{
		{Kind: shader.DescriptorUniformBuffer, Name: "Light", Set: 0, Binding: 0, Count: 1,
			Stages: shader.StageVertex.Mask() | shader.StageFragment.Mask()},
		{Kind: shader.DescriptorUniformBuffer, Name: "Camera", Set: 0, Binding: 1, Count: 1,
			Stages: shader.StageVertex.Mask()},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Descriptors() = %+v, want %+v", got, want)
	}
}

func TestResolvePerSetCounters(t *testing.T) {
	tbl := NewTable()
	tests := []struct {
		decl shader.Declaration
		want int
	}{
		{ubo("A", 0), 0},
		{ubo("B", 1), 0},
		{shader.Declaration{Name: "tex", Set: 1, Kind: shader.DescriptorCombinedImageSampler, Count: 4}, 1},
		{ubo("C", 0), 1},
		{ubo("B", 1), 0},
		// same name in another set is a distinct resource
		{ubo("A", 1), 2},
	}
	for _, tt := range tests {
		if got := tbl.Resolve(tt.decl, shader.StageFragment); got != tt.want {
			t.Errorf("Resolve(%s@%d) = %d, want %d", tt.decl.Name, tt.decl.Set, got, tt.want)
		}
	}

	bySet := tbl.DescriptorsBySet()
	if len(bySet) != 2 || len(bySet[0]) != 2 || len(bySet[1]) != 3 {
		t.Fatalf("DescriptorsBySet() = %+v", bySet)
	}
	if d := bySet[1][1]; d.Name != "tex" || d.Kind != shader.DescriptorCombinedImageSampler || d.Count != 4 {
		t.Errorf("set 1 binding 1 = %+v, want tex combined image sampler x4", d)
	}
}

func TestResolveKeepsFirstKindAndCount(t *testing.T) {
	tbl := NewTable()
	tbl.Resolve(shader.Declaration{Name: "shadow", Kind: shader.DescriptorCombinedImageSampler, Count: 2}, shader.StageVertex)
	tbl.Resolve(shader.Declaration{Name: "shadow", Kind: shader.DescriptorUniformBuffer, Count: 1}, shader.StageFragment)

	d := tbl.Descriptors()[0]
	if d.Kind != shader.DescriptorCombinedImageSampler || d.Count != 2 {
		t.Errorf("descriptor = %+v, want the first declaration's kind and count", d)
	}
}

func TestReconcilePushConstants(t *testing.T) {
	tbl := NewTable()
	tbl.Resolve(ubo("Light", 0), shader.StageVertex)

	records := []shader.ReflectionRecord{
		{Kind: shader.RecordUniformBlock, Name: "PushData", Size: 64, Binding: -1, ArrayCount: 1},
		{Kind: shader.RecordUniformBlock, Name: "Light", Size: 32, Binding: 0, ArrayCount: 1},
		{Kind: shader.RecordUniform, Name: "PushData.model", Type: 0x8b5c, Size: 1, Binding: -1, ArrayCount: 1},
		{Kind: shader.RecordVertexAttribute, Name: "inPosition", Type: 0x8b51, Size: 1, Binding: -1, ArrayCount: 1},
	}
	bySet, pcs, err := tbl.Reconcile(records, shader.StageVertex)
	if err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}

	for _, set := range bySet {
		for _, d := range set {
			if d.Name == "PushData" {
				t.Errorf("push-constant block reported as descriptor %+v", d)
			}
		}
	}
	wantPC := []shader.PushConstantRange{{Offset: 0, Size: 64, Stages: shader.StageVertex.Mask()}}
	if !reflect.DeepEqual(pcs, wantPC) {
		t.Errorf("push constants = %+v, want %+v", pcs, wantPC)
	}
	if len(bySet) != 1 || len(bySet[0]) != 1 || bySet[0][0].Name != "Light" {
		t.Errorf("descriptors = %+v, want only Light", bySet)
	}

	// a second stage with the same block shares the range
	if _, _, err := tbl.Reconcile(records[:1], shader.StageFragment); err != nil {
		t.Fatal(err)
	}
	merged := tbl.PushConstantRanges()
	if len(merged) != 1 || merged[0].Stages != shader.StageVertex.Mask()|shader.StageFragment.Mask() {
		t.Errorf("PushConstantRanges() = %+v, want one range for vert|frag", merged)
	}
}

func TestReconcileImportsCounts(t *testing.T) {
	tbl := NewTable()
	tbl.Resolve(ubo("Lights", 0), shader.StageFragment)
	tbl.Resolve(shader.Declaration{Name: "shadowMaps", Kind: shader.DescriptorCombinedImageSampler, Count: 1}, shader.StageFragment)

	records := []shader.ReflectionRecord{
		{Kind: shader.RecordUniformBlock, Name: "Lights", Size: 32, Binding: 0, ArrayCount: 4},
		{Kind: shader.RecordUniform, Name: "shadowMaps", Type: 0x8b5e, Size: 3, Binding: 1, ArrayCount: 1, Resource: shader.ResourceCombinedImageSampler},
	}
	bySet, _, err := tbl.Reconcile(records, shader.StageFragment)
	if err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}
	if got := bySet[0][0].Count; got != 4 {
		t.Errorf("Lights count = %d, want 4", got)
	}
	if got := bySet[0][1].Count; got != 3 {
		t.Errorf("shadowMaps count = %d, want 3", got)
	}
}

func TestReconcileFixedBindings(t *testing.T) {
	tbl := NewTable()
	tbl.Resolve(ubo("Camera", 0), shader.StageVertex)

	// a block with a hard-coded binding is registered where the compiler put it
	bySet, _, err := tbl.Reconcile([]shader.ReflectionRecord{
		{Kind: shader.RecordUniformBlock, Name: "Fixed", Size: 16, Binding: 3, ArrayCount: 1},
	}, shader.StageVertex)
	if err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}
	if len(bySet[0]) != 2 || bySet[0][1].Binding != 3 {
		t.Errorf("descriptors = %+v, want Camera@0 and Fixed@3", bySet)
	}

	// the allocator skips the occupied binding
	if got := tbl.Resolve(ubo("Next", 0), shader.StageVertex); got != 1 {
		t.Errorf("next binding = %d, want 1", got)
	}
	tbl.Resolve(ubo("Next2", 0), shader.StageVertex)
	if got := tbl.Resolve(ubo("Next3", 0), shader.StageVertex); got != 4 {
		t.Errorf("binding after the fixed slot = %d, want 4", got)
	}

	_, _, err = tbl.Reconcile([]shader.ReflectionRecord{
		{Kind: shader.RecordUniformBlock, Name: "Clash", Size: 16, Binding: 0, ArrayCount: 1},
	}, shader.StageFragment)
	if !errors.Is(err, shader.ErrBindingCollision) {
		t.Errorf("Reconcile() error = %v, want BindingConflict", err)
	}
}

func TestAdopt(t *testing.T) {
	cached := &shader.CompiledModule{
		CanonicalPath: "/shaders/lit.frag",
		Stage:         shader.StageFragment,
		DescriptorsBySet: [][]shader.Descriptor{{
			{Kind: shader.DescriptorUniformBuffer, Name: "Light", Binding: 0, Count: 1, Stages: shader.StageFragment.Mask()},
			{Kind: shader.DescriptorCombinedImageSampler, Name: "albedo", Binding: 1, Count: 1, Stages: shader.StageFragment.Mask()},
		}},
		PushConstantRanges: []shader.PushConstantRange{{Size: 16}},
	}

	t.Run("compatible", func(t *testing.T) {
		tbl := NewTable()
		tbl.Resolve(ubo("Light", 0), shader.StageVertex)
		if err := tbl.Adopt(cached); err != nil {
			t.Fatalf("Adopt() error: %v", err)
		}
		got := tbl.Descriptors()
		if len(got) != 2 || got[0].Stages != shader.StageVertex.Mask()|shader.StageFragment.Mask() {
			t.Errorf("Descriptors() = %+v", got)
		}
		if pcs := tbl.PushConstantRanges(); len(pcs) != 1 || pcs[0].Stages != shader.StageFragment.Mask() {
			t.Errorf("PushConstantRanges() = %+v", pcs)
		}
		if got := tbl.Resolve(ubo("Extra", 0), shader.StageVertex); got != 2 {
			t.Errorf("binding after adopted slots = %d, want 2", got)
		}
	})

	t.Run("name clash", func(t *testing.T) {
		tbl := NewTable()
		tbl.Resolve(ubo("Camera", 0), shader.StageVertex)
		tbl.Resolve(ubo("Light", 0), shader.StageVertex)
		err := tbl.Adopt(cached)
		if !errors.Is(err, shader.ErrBindingCollision) {
			t.Errorf("Adopt() error = %v, want BindingConflict", err)
		}
	})

	t.Run("slot clash", func(t *testing.T) {
		tbl := NewTable()
		tbl.Resolve(ubo("Camera", 0), shader.StageVertex)
		err := tbl.Adopt(cached)
		if !errors.Is(err, shader.ErrBindingCollision) {
			t.Errorf("Adopt() error = %v, want BindingConflict", err)
		}
	})

	t.Run("conflict leaves table unchanged", func(t *testing.T) {
		tbl := NewTable()
		tbl.Resolve(ubo("Light", 0), shader.StageVertex)
		tbl.Resolve(ubo("Camera", 0), shader.StageVertex)
		clash := &shader.CompiledModule{
			Stage: shader.StageFragment,
			DescriptorsBySet: [][]shader.Descriptor{{
				{Kind: shader.DescriptorUniformBuffer, Name: "Light", Binding: 0, Count: 1},
				{Kind: shader.DescriptorCombinedImageSampler, Name: "albedo", Binding: 2, Count: 1},
				{Kind: shader.DescriptorUniformBuffer, Name: "Camera", Binding: 3, Count: 1},
			}},
			PushConstantRanges: []shader.PushConstantRange{{Size: 16}},
		}
		if err := tbl.Adopt(clash); !errors.Is(err, shader.ErrBindingCollision) {
			t.Fatalf("Adopt() error = %v, want BindingConflict", err)
		}
		got := tbl.Descriptors()
		if len(got) != 2 || got[0].Stages != shader.StageVertex.Mask() {
			t.Errorf("Descriptors() after conflict = %+v", got)
		}
		if pcs := tbl.PushConstantRanges(); len(pcs) != 0 {
			t.Errorf("PushConstantRanges() after conflict = %+v", pcs)
		}
	})
}

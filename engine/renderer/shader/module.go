package shader

import "sort"

// CompiledModule is a compiled stage: the binary artifact and the binding layout the
// stage resolved to. Modules are owned by the module cache; requesters hold a
// non-owning reference and must release it through the cache.
type CompiledModule struct {
	// CanonicalPath is the absolute, symlink-resolved source path.
	CanonicalPath string

	// Macros is the macro set the module was compiled with.
	Macros MacroSet

	// Stage is the stage the module was compiled for.
	Stage StageKind

	// Artifact is the compiled binary (SPIR-V). Nil after the module is freed.
	Artifact []byte

	// DescriptorsBySet holds the stage's descriptors indexed by descriptor set, each
	// slice ordered by binding.
	DescriptorsBySet [][]Descriptor

	// PushConstantRanges holds the stage's push-constant blocks.
	PushConstantRanges []PushConstantRange

	// VertexInputs holds the inputs of a vertex stage ordered by location.
	VertexInputs []VertexInput

	// Includes lists the files expanded into the translation unit, in expansion order.
	Includes []string

	// Warnings holds non-fatal remapped diagnostics.
	Warnings []Diagnostic
}

// Descriptors returns every descriptor of the module, ordered by set then binding.
func (m *CompiledModule) Descriptors() []Descriptor {
	var out []Descriptor
	for _, set := range m.DescriptorsBySet {
		out = append(out, set...)
	}
	return out
}

// Words returns the artifact as little-endian 32-bit SPIR-V words.
func (m *CompiledModule) Words() []uint32 {
	words := make([]uint32, len(m.Artifact)/4)
	for i := range words {
		words[i] = uint32(m.Artifact[i*4]) |
			uint32(m.Artifact[i*4+1])<<8 |
			uint32(m.Artifact[i*4+2])<<16 |
			uint32(m.Artifact[i*4+3])<<24
	}
	return words
}

// GroupBySet arranges descriptors into a slice indexed by set, each set sorted by binding.
// Sets without descriptors are present as empty slices so the index equals the set number.
//
// Parameters:
//   - descriptors: descriptors in any order
//
// Returns:
//   - [][]Descriptor: descriptors indexed by set
func GroupBySet(descriptors []Descriptor) [][]Descriptor {
	maxSet := -1
	for _, d := range descriptors {
		if d.Set > maxSet {
			maxSet = d.Set
		}
	}
	out := make([][]Descriptor, maxSet+1)
	for _, d := range descriptors {
		out[d.Set] = append(out[d.Set], d)
	}
	for _, set := range out {
		sort.Slice(set, func(i, j int) bool {
			return set[i].Binding < set[j].Binding
		})
	}
	return out
}

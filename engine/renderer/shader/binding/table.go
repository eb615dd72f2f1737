// Package binding assigns descriptor bindings for the stages of one pipeline. A Table is
// shared by every stage of a pipeline so that a resource declared in several stages
// resolves to a single (set, binding) pair, and reconciles the compiler's reflection
// records with the bindings handed out during preprocessing.
package binding

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
)

// Table is the pipeline-scoped binding table.
type Table interface {
	// Resolve returns the binding for a placeholder declaration. A declaration whose name
	// already exists in the same set reuses that descriptor's binding, kind and count and
	// only gains the stage's visibility. Otherwise the smallest unused binding of the set
	// is allocated.
	//
	// Parameters:
	//   - decl: the placeholder declaration, in source order
	//   - stage: the stage declaring it
	//
	// Returns:
	//   - int: the binding number
	Resolve(decl shader.Declaration, stage shader.StageKind) int

	// Reconcile folds a stage's reflection records into the table. Uniform blocks without
	// a binding become push-constant ranges; uniform blocks and sampler uniforms with a
	// binding are matched by name and take the array count the compiler reported.
	// Resources with a fixed binding that were never declared with a placeholder are
	// registered at the binding the compiler reported.
	//
	// Parameters:
	//   - records: the stage's reflection records
	//   - stage: the stage the records belong to
	//
	// Returns:
	//   - [][]shader.Descriptor: the stage's descriptors indexed by set
	//   - []shader.PushConstantRange: the stage's push-constant ranges
	//   - error: a BindingConflict error if a fixed binding collides with another resource
	Reconcile(records []shader.ReflectionRecord, stage shader.StageKind) ([][]shader.Descriptor, []shader.PushConstantRange, error)

	// Adopt registers the bindings of a module compiled earlier, typically served from the
	// module cache for another pipeline, as if the stage had declared them here. On a
	// conflict the table is left unchanged.
	//
	// Parameters:
	//   - m: the compiled module
	//
	// Returns:
	//   - error: a BindingConflict error if the module's bindings clash with the table
	Adopt(m *shader.CompiledModule) error

	// Descriptors returns every descriptor of the pipeline ordered by set then binding.
	//
	// Returns:
	//   - []shader.Descriptor: a copy of the pipeline's descriptors
	Descriptors() []shader.Descriptor

	// DescriptorsBySet returns the pipeline's descriptors indexed by set.
	//
	// Returns:
	//   - [][]shader.Descriptor: descriptors indexed by set, each ordered by binding
	DescriptorsBySet() [][]shader.Descriptor

	// PushConstantRanges returns the pipeline's push-constant ranges. Stages declaring a
	// block of the same size share one range.
	//
	// Returns:
	//   - []shader.PushConstantRange: the merged ranges
	PushConstantRanges() []shader.PushConstantRange
}

// slot identifies a binding within a descriptor set.
type slot struct {
	set     int
	binding int
}

// table is the implementation of the Table interface.
type table struct {
	mu sync.Mutex

	// counters holds the next candidate binding per set.
	counters map[int]int

	// descriptors holds every descriptor in assignment order.
	descriptors []shader.Descriptor

	// bySlot maps an occupied (set, binding) pair to its index in descriptors.
	bySlot map[slot]int

	// pushConstants holds the merged push-constant ranges.
	pushConstants []shader.PushConstantRange
}

var _ Table = &table{}

// NewTable creates an empty binding table for one pipeline.
//
// Returns:
//   - Table: the new table
func NewTable() Table {
	return &table{
		counters: make(map[int]int),
		bySlot:   make(map[slot]int),
	}
}

func (t *table) Resolve(decl shader.Declaration, stage shader.StageKind) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i := t.find(decl.Set, decl.Name); i >= 0 {
		t.descriptors[i].Stages |= stage.Mask()
		return t.descriptors[i].Binding
	}

	binding := t.nextFree(decl.Set)
	t.insert(shader.Descriptor{
		Kind:    decl.Kind,
		Name:    decl.Name,
		Set:     decl.Set,
		Binding: binding,
		Count:   max(decl.Count, 1),
		Type:    decl.Type,
		Stages:  stage.Mask(),
	})
	return binding
}

func (t *table) Reconcile(records []shader.ReflectionRecord, stage shader.StageKind) ([][]shader.Descriptor, []shader.PushConstantRange, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pushConstants []shader.PushConstantRange
	for _, rec := range records {
		if rec.IsPushConstant() {
			pc := shader.PushConstantRange{Offset: 0, Size: rec.Size, Stages: stage.Mask()}
			pushConstants = append(pushConstants, pc)
			t.mergePushConstant(pc)
			continue
		}
		kind, count, ok := descriptorFromRecord(rec)
		if !ok || rec.Binding < 0 {
			continue
		}

		// reflection dumps do not always carry the set, so fall back to a name match
		// across sets before treating the record as a new fixed binding
		name := rec.BaseName()
		i := t.find(rec.Set, name)
		if i < 0 {
			i = t.findName(name)
		}
		if i >= 0 {
			d := &t.descriptors[i]
			d.Count = count
			d.Stages |= stage.Mask()
			applyRecordDetails(d, rec)
			continue
		}

		if i, taken := t.bySlot[slot{rec.Set, rec.Binding}]; taken {
			return nil, nil, &shader.Error{
				Kind: shader.ErrBindingConflict,
				Message: fmt.Sprintf("%q at set %d binding %d collides with %q",
					name, rec.Set, rec.Binding, t.descriptors[i].Name),
			}
		}
		d := shader.Descriptor{
			Kind:    kind,
			Name:    name,
			Set:     rec.Set,
			Binding: rec.Binding,
			Count:   count,
			Stages:  stage.Mask(),
		}
		applyRecordDetails(&d, rec)
		t.insert(d)
	}
	return shader.GroupBySet(t.stageDescriptors(stage)), pushConstants, nil
}

func (t *table) Adopt(m *shader.CompiledModule) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	descriptors := m.Descriptors()
	for _, d := range descriptors {
		if i := t.find(d.Set, d.Name); i >= 0 {
			if existing := t.descriptors[i]; existing.Binding != d.Binding {
				return &shader.Error{
					Kind: shader.ErrBindingConflict,
					Path: m.CanonicalPath,
					Message: fmt.Sprintf("cached %q is bound at set %d binding %d, pipeline assigned binding %d",
						d.Name, d.Set, d.Binding, existing.Binding),
				}
			}
			continue
		}
		if i, taken := t.bySlot[slot{d.Set, d.Binding}]; taken {
			return &shader.Error{
				Kind: shader.ErrBindingConflict,
				Path: m.CanonicalPath,
				Message: fmt.Sprintf("cached %q at set %d binding %d collides with %q",
					d.Name, d.Set, d.Binding, t.descriptors[i].Name),
			}
		}
	}

	// nothing is registered until every descriptor fits
	mask := m.Stage.Mask()
	for _, d := range descriptors {
		if i := t.find(d.Set, d.Name); i >= 0 {
			t.descriptors[i].Stages |= mask
			continue
		}
		d.Stages = mask
		t.insert(d)
	}
	for _, pc := range m.PushConstantRanges {
		pc.Stages = mask
		t.mergePushConstant(pc)
	}
	return nil
}

func (t *table) Descriptors() []shader.Descriptor {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]shader.Descriptor, len(t.descriptors))
	copy(out, t.descriptors)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Set != out[j].Set {
			return out[i].Set < out[j].Set
		}
		return out[i].Binding < out[j].Binding
	})
	return out
}

func (t *table) DescriptorsBySet() [][]shader.Descriptor {
	return shader.GroupBySet(t.Descriptors())
}

func (t *table) PushConstantRanges() []shader.PushConstantRange {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]shader.PushConstantRange, len(t.pushConstants))
	copy(out, t.pushConstants)
	return out
}

// find returns the index of the descriptor named name in set, or -1.
func (t *table) find(set int, name string) int {
	for i, d := range t.descriptors {
		if d.Set == set && d.Name == name {
			return i
		}
	}
	return -1
}

// findName returns the index of the first descriptor named name in any set, or -1.
func (t *table) findName(name string) int {
	for i, d := range t.descriptors {
		if d.Name == name {
			return i
		}
	}
	return -1
}

// nextFree returns the smallest binding of set at or above the set's counter that is not
// occupied, and advances the counter past it.
func (t *table) nextFree(set int) int {
	b := t.counters[set]
	for {
		if _, taken := t.bySlot[slot{set, b}]; !taken {
			break
		}
		b++
	}
	t.counters[set] = b + 1
	return b
}

func (t *table) insert(d shader.Descriptor) {
	t.bySlot[slot{d.Set, d.Binding}] = len(t.descriptors)
	t.descriptors = append(t.descriptors, d)
}

// stageDescriptors returns copies of the descriptors visible to stage, with Stages
// narrowed to that stage.
func (t *table) stageDescriptors(stage shader.StageKind) []shader.Descriptor {
	var out []shader.Descriptor
	for _, d := range t.descriptors {
		if d.Stages.Has(stage) {
			d.Stages = stage.Mask()
			out = append(out, d)
		}
	}
	return out
}

func (t *table) mergePushConstant(pc shader.PushConstantRange) {
	for i := range t.pushConstants {
		if t.pushConstants[i].Offset == pc.Offset && t.pushConstants[i].Size == pc.Size {
			t.pushConstants[i].Stages |= pc.Stages
			return
		}
	}
	t.pushConstants = append(t.pushConstants, pc)
}

// descriptorFromRecord classifies a reflection record. Records that do not describe a
// bound resource report false.
func descriptorFromRecord(rec shader.ReflectionRecord) (shader.DescriptorKind, int, bool) {
	switch rec.Kind {
	case shader.RecordUniformBlock:
		return shader.DescriptorUniformBuffer, max(rec.ArrayCount, 1), true
	case shader.RecordStorageBlock:
		return shader.DescriptorStorageBuffer, max(rec.ArrayCount, 1), true
	case shader.RecordUniform:
		count := max(rec.ArrayCount, rec.Size, 1)
		switch rec.Resource {
		case shader.ResourceCombinedImageSampler:
			return shader.DescriptorCombinedImageSampler, count, true
		case shader.ResourceSampledImage:
			return shader.DescriptorSampledImage, count, true
		case shader.ResourceSampler:
			return shader.DescriptorSampler, count, true
		}
	}
	return 0, 0, false
}

// applyRecordDetails copies the block size and type name a compiler reported onto d.
// A type already taken from the declaration is kept.
func applyRecordDetails(d *shader.Descriptor, rec shader.ReflectionRecord) {
	if rec.Kind == shader.RecordUniformBlock || rec.Kind == shader.RecordStorageBlock {
		d.Size = max(d.Size, rec.Size)
	}
	if d.Type == "" {
		d.Type = rec.TypeName
	}
}

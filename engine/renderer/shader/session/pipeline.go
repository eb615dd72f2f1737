package session

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/cache"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/layout"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

// Pipeline is a compiled pipeline. Its modules are references into the session's module
// cache and stay valid until Release. A stage whose cached module did not fit the
// pipeline's bindings is compiled privately and is not shared through the cache.
type Pipeline struct {
	// Name is the pipeline name from its definition.
	Name string

	// Modules holds one compiled module per stage, in declaration order.
	Modules []*shader.CompiledModule

	// DescriptorsBySet is the merged descriptor table of every stage, indexed by set.
	DescriptorsBySet [][]shader.Descriptor

	// PushConstantRanges holds the merged push-constant ranges.
	PushConstantRanges []shader.PushConstantRange

	// CacheHits counts the stages served from the module cache.
	CacheHits int

	cache       cache.ModuleCache
	releaseOnce sync.Once
}

// Module returns the module compiled for stage, or nil.
func (p *Pipeline) Module(stage shader.StageKind) *shader.CompiledModule {
	for _, m := range p.Modules {
		if m.Stage == stage {
			return m
		}
	}
	return nil
}

// Descriptors returns every descriptor of the pipeline ordered by set then binding.
func (p *Pipeline) Descriptors() []shader.Descriptor {
	var out []shader.Descriptor
	for _, set := range p.DescriptorsBySet {
		out = append(out, set...)
	}
	return out
}

// Warnings returns the compiler warnings of every stage.
func (p *Pipeline) Warnings() []shader.Diagnostic {
	var out []shader.Diagnostic
	for _, m := range p.Modules {
		out = append(out, m.Warnings...)
	}
	return out
}

// BindGroupLayouts returns the pipeline's wgpu bind group layouts keyed by set.
func (p *Pipeline) BindGroupLayouts() map[int]wgpu.BindGroupLayoutDescriptor {
	return layout.ToWGPU(p.Name, p.DescriptorsBySet)
}

// GPUTypesLayout returns the pipeline's bind group layouts indexed by set and its
// push-constant ranges as gputypes descriptors.
func (p *Pipeline) GPUTypesLayout() ([]gputypes.BindGroupLayoutDescriptor, []gputypes.PushConstantRange) {
	return layout.ToGPUTypes(p.Name, p.DescriptorsBySet), layout.PushConstantsToGPUTypes(p.PushConstantRanges)
}

// VertexBufferLayout returns a tightly packed wgpu vertex buffer layout for the vertex
// stage's inputs. ok is false when the pipeline has no vertex stage or an input type has
// no vertex format.
func (p *Pipeline) VertexBufferLayout() (wgpu.VertexBufferLayout, bool) {
	vert := p.Module(shader.StageVertex)
	if vert == nil {
		return wgpu.VertexBufferLayout{}, false
	}
	return layout.VertexBufferLayoutToWGPU(vert.VertexInputs)
}

// Release gives every module reference back to the cache. Calling it more than once
// has no further effect.
func (p *Pipeline) Release() {
	p.releaseOnce.Do(func() {
		for _, m := range p.Modules {
			p.cache.Release(m)
		}
	})
}

// Package layout exports the binding tables of compiled pipelines as bind group layout
// descriptors for the wgpu bindings (github.com/cogentcore/webgpu) and for the
// backend-neutral gputypes descriptors (github.com/gogpu/gputypes).
package layout

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

// ToWGPU converts a descriptor table into one wgpu bind group layout per non-empty set.
// GLSL combined image samplers have no WebGPU equivalent and are exported as the texture
// half only. Tessellation and geometry visibility is dropped with a warning.
//
// Parameters:
//   - label: the label prefix, usually the pipeline name
//   - bySet: descriptors indexed by set, ordered by binding
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the layouts keyed by set
func ToWGPU(label string, bySet [][]shader.Descriptor) map[int]wgpu.BindGroupLayoutDescriptor {
	out := make(map[int]wgpu.BindGroupLayoutDescriptor, len(bySet))
	for set, descriptors := range bySet {
		if len(descriptors) == 0 {
			continue
		}
		entries := make([]wgpu.BindGroupLayoutEntry, 0, len(descriptors))
		for _, d := range descriptors {
			c := classify(d)
			if c.class == classUnknown {
				continue
			}
			entries = append(entries, wgpuEntry(d, c))
		}
		out[set] = wgpu.BindGroupLayoutDescriptor{
			Label:   setLabel(label, set),
			Entries: entries,
		}
	}
	return out
}

// ToGPUTypes converts a descriptor table into gputypes bind group layouts indexed by set.
// Empty sets yield an empty layout so the slice index matches the set number.
//
// Parameters:
//   - label: the label prefix, usually the pipeline name
//   - bySet: descriptors indexed by set, ordered by binding
//
// Returns:
//   - []gputypes.BindGroupLayoutDescriptor: one layout per set
func ToGPUTypes(label string, bySet [][]shader.Descriptor) []gputypes.BindGroupLayoutDescriptor {
	out := make([]gputypes.BindGroupLayoutDescriptor, len(bySet))
	for set, descriptors := range bySet {
		out[set].Label = setLabel(label, set)
		for _, d := range descriptors {
			c := classify(d)
			if c.class == classUnknown {
				continue
			}
			out[set].Entries = append(out[set].Entries, gpuEntry(d, c))
		}
	}
	return out
}

// PushConstantsToGPUTypes converts push-constant ranges into gputypes ranges.
func PushConstantsToGPUTypes(ranges []shader.PushConstantRange) []gputypes.PushConstantRange {
	out := make([]gputypes.PushConstantRange, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, gputypes.PushConstantRange{
			Stages: gpuVisibility(r.Stages, "push constants"),
			Start:  uint32(r.Offset),
			End:    uint32(r.Offset + r.Size),
		})
	}
	return out
}

func setLabel(label string, set int) string {
	if label == "" {
		return fmt.Sprintf("set%d", set)
	}
	return fmt.Sprintf("%s.set%d", label, set)
}

// classify reduces a descriptor to its binding class and, for textures, its shape.
func classify(d shader.Descriptor) classified {
	switch d.Kind {
	case shader.DescriptorUniformBuffer:
		return classified{class: classUniformBuffer}
	case shader.DescriptorStorageBuffer:
		if strings.Contains(d.Type, "read_write") {
			return classified{class: classStorageBuffer}
		}
		return classified{class: classReadOnlyStorageBuffer}
	case shader.DescriptorSampler:
		if d.Type == "sampler_comparison" {
			return classified{class: classComparisonSampler}
		}
		return classified{class: classFilteringSampler}
	case shader.DescriptorSampledImage:
		return classified{class: classTexture, texture: wgslTextureShape(d.Type)}
	case shader.DescriptorCombinedImageSampler:
		shape, ok := glslSamplerShapes[d.Type]
		if !ok {
			shape = textureShape{dimension: dim2D}
		}
		shader.Logger().Debug("combined image sampler exported as texture", "name", d.Name, "type", d.Type)
		return classified{class: classTexture, texture: shape}
	}
	shader.Logger().Warn("descriptor kind has no layout equivalent", "name", d.Name, "kind", d.Kind)
	return classified{}
}

// wgslTextureShape parses a WGSL texture type (e.g. "texture_2d<u32>", "texture_depth_cube").
func wgslTextureShape(typeName string) textureShape {
	base, param := splitTypeParams(typeName)
	shape, ok := wgslTextureShapes[base]
	if !ok {
		shape = textureShape{dimension: dim2D}
	}
	if kind, ok := wgslSampleKinds[param]; ok && shape.sample != sampleDepth {
		shape.sample = kind
	}
	return shape
}

// splitTypeParams splits a WGSL parameterized type into its base name and parameter string.
// For "texture_2d<f32>" returns ("texture_2d", "f32").
// For "texture_depth_2d" (no params) returns ("texture_depth_2d", "").
func splitTypeParams(typeName string) (base string, params string) {
	before, after, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return before, strings.TrimSpace(strings.TrimSuffix(after, ">"))
}

func wgpuEntry(d shader.Descriptor, c classified) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    uint32(d.Binding),
		Visibility: wgpuVisibility(d.Stages, d.Name),
	}
	switch c.class {
	case classUniformBuffer:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		entry.Buffer.MinBindingSize = uint64(d.Size)
	case classStorageBuffer:
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		entry.Buffer.MinBindingSize = uint64(d.Size)
	case classReadOnlyStorageBuffer:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		entry.Buffer.MinBindingSize = uint64(d.Size)
	case classFilteringSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case classComparisonSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case classTexture:
		entry.Texture.SampleType = wgpuSampleTypes[c.texture.sample]
		entry.Texture.ViewDimension = wgpuViewDimensions[c.texture.dimension]
		entry.Texture.Multisampled = c.texture.multisampled
	}
	return entry
}

func gpuEntry(d shader.Descriptor, c classified) gputypes.BindGroupLayoutEntry {
	entry := gputypes.BindGroupLayoutEntry{
		Binding:    uint32(d.Binding),
		Visibility: gpuVisibility(d.Stages, d.Name),
	}
	switch c.class {
	case classUniformBuffer:
		entry.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, MinBindingSize: uint64(d.Size)}
	case classStorageBuffer:
		entry.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage, MinBindingSize: uint64(d.Size)}
	case classReadOnlyStorageBuffer:
		entry.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage, MinBindingSize: uint64(d.Size)}
	case classFilteringSampler:
		entry.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	case classComparisonSampler:
		entry.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeComparison}
	case classTexture:
		entry.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gpuSampleTypes[c.texture.sample],
			ViewDimension: gpuViewDimensions[c.texture.dimension],
			Multisampled:  c.texture.multisampled,
		}
	}
	return entry
}

// wgpuVisibility maps a stage mask onto the stages WebGPU can see.
func wgpuVisibility(mask shader.StageMask, name string) wgpu.ShaderStage {
	visibility := wgpu.ShaderStageNone
	if mask.Has(shader.StageVertex) {
		visibility |= wgpu.ShaderStageVertex
	}
	if mask.Has(shader.StageFragment) {
		visibility |= wgpu.ShaderStageFragment
	}
	if mask.Has(shader.StageCompute) {
		visibility |= wgpu.ShaderStageCompute
	}
	warnDropped(mask, name)
	return visibility
}

func gpuVisibility(mask shader.StageMask, name string) gputypes.ShaderStages {
	var visibility gputypes.ShaderStages
	if mask.Has(shader.StageVertex) {
		visibility |= gputypes.ShaderStageVertex
	}
	if mask.Has(shader.StageFragment) {
		visibility |= gputypes.ShaderStageFragment
	}
	if mask.Has(shader.StageCompute) {
		visibility |= gputypes.ShaderStageCompute
	}
	warnDropped(mask, name)
	return visibility
}

// droppedStages are the stages WebGPU has no visibility bit for.
const droppedStages = shader.StageMask(1<<shader.StageTessControl | 1<<shader.StageTessEvaluation | 1<<shader.StageGeometry)

func warnDropped(mask shader.StageMask, name string) {
	if dropped := mask & droppedStages; dropped != 0 {
		shader.Logger().Warn("visibility dropped for stages without a WebGPU equivalent", "name", name, "stages", dropped.String())
	}
}

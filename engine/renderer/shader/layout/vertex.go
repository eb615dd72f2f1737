package layout

import (
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

// vertexFormat holds the vertex formats of one input type and its byte size for offset calculation
type vertexFormat struct {
	wgpu wgpu.VertexFormat
	gpu  gputypes.VertexFormat
	size uint64
}

// vertexFormats maps WGSL type names to their vertex formats and byte size
var vertexFormats = map[string]vertexFormat{
	"f32":       {wgpu.VertexFormatFloat32, gputypes.VertexFormatFloat32, 4},
	"vec2f":     {wgpu.VertexFormatFloat32x2, gputypes.VertexFormatFloat32x2, 8},
	"vec2<f32>": {wgpu.VertexFormatFloat32x2, gputypes.VertexFormatFloat32x2, 8},
	"vec3f":     {wgpu.VertexFormatFloat32x3, gputypes.VertexFormatFloat32x3, 12},
	"vec3<f32>": {wgpu.VertexFormatFloat32x3, gputypes.VertexFormatFloat32x3, 12},
	"vec4f":     {wgpu.VertexFormatFloat32x4, gputypes.VertexFormatFloat32x4, 16},
	"vec4<f32>": {wgpu.VertexFormatFloat32x4, gputypes.VertexFormatFloat32x4, 16},
	"i32":       {wgpu.VertexFormatSint32, gputypes.VertexFormatSint32, 4},
	"vec2i":     {wgpu.VertexFormatSint32x2, gputypes.VertexFormatSint32x2, 8},
	"vec2<i32>": {wgpu.VertexFormatSint32x2, gputypes.VertexFormatSint32x2, 8},
	"vec3i":     {wgpu.VertexFormatSint32x3, gputypes.VertexFormatSint32x3, 12},
	"vec3<i32>": {wgpu.VertexFormatSint32x3, gputypes.VertexFormatSint32x3, 12},
	"vec4i":     {wgpu.VertexFormatSint32x4, gputypes.VertexFormatSint32x4, 16},
	"vec4<i32>": {wgpu.VertexFormatSint32x4, gputypes.VertexFormatSint32x4, 16},
	"u32":       {wgpu.VertexFormatUint32, gputypes.VertexFormatUint32, 4},
	"vec2u":     {wgpu.VertexFormatUint32x2, gputypes.VertexFormatUint32x2, 8},
	"vec2<u32>": {wgpu.VertexFormatUint32x2, gputypes.VertexFormatUint32x2, 8},
	"vec3u":     {wgpu.VertexFormatUint32x3, gputypes.VertexFormatUint32x3, 12},
	"vec3<u32>": {wgpu.VertexFormatUint32x3, gputypes.VertexFormatUint32x3, 12},
	"vec4u":     {wgpu.VertexFormatUint32x4, gputypes.VertexFormatUint32x4, 16},
	"vec4<u32>": {wgpu.VertexFormatUint32x4, gputypes.VertexFormatUint32x4, 16},
	"vec2<f16>": {wgpu.VertexFormatFloat16x2, gputypes.VertexFormatFloat16x2, 4},
	"vec2h":     {wgpu.VertexFormatFloat16x2, gputypes.VertexFormatFloat16x2, 4},
	"vec4<f16>": {wgpu.VertexFormatFloat16x4, gputypes.VertexFormatFloat16x4, 8},
	"vec4h":     {wgpu.VertexFormatFloat16x4, gputypes.VertexFormatFloat16x4, 8},
}

// VertexBufferLayoutToWGPU converts vertex inputs into a single wgpu.VertexBufferLayout.
// Inputs are packed in location order at sequential byte offsets and the total becomes
// the array stride. Returns false if any input has an unrecognized type.
//
// Parameters:
//   - inputs: the vertex stage inputs ordered by location
//
// Returns:
//   - wgpu.VertexBufferLayout: the constructed vertex buffer layout
//   - bool: false if an input type could not be mapped to a vertex format
func VertexBufferLayoutToWGPU(inputs []shader.VertexInput) (wgpu.VertexBufferLayout, bool) {
	attrs := make([]wgpu.VertexAttribute, 0, len(inputs))
	var offset uint64

	for _, in := range inputs {
		info, ok := vertexFormats[in.Type]
		if !ok {
			shader.Logger().Warn("vertex input has no vertex format", "name", in.Name, "type", in.Type)
			return wgpu.VertexBufferLayout{}, false
		}
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         info.wgpu,
			Offset:         offset,
			ShaderLocation: uint32(in.Location),
		})
		offset += info.size
	}

	return wgpu.VertexBufferLayout{
		ArrayStride: offset,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}, true
}

// VertexBufferLayoutToGPUTypes is VertexBufferLayoutToWGPU for gputypes.
func VertexBufferLayoutToGPUTypes(inputs []shader.VertexInput) (gputypes.VertexBufferLayout, bool) {
	attrs := make([]gputypes.VertexAttribute, 0, len(inputs))
	var offset uint64

	for _, in := range inputs {
		info, ok := vertexFormats[in.Type]
		if !ok {
			return gputypes.VertexBufferLayout{}, false
		}
		attrs = append(attrs, gputypes.VertexAttribute{
			Format:         info.gpu,
			Offset:         offset,
			ShaderLocation: uint32(in.Location),
		})
		offset += info.size
	}

	return gputypes.VertexBufferLayout{
		ArrayStride: offset,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes:  attrs,
	}, true
}

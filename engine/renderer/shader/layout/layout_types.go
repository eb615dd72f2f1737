package layout

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

// bindingClass is the target-neutral classification of a descriptor.
type bindingClass int

const (
	classUnknown bindingClass = iota
	classUniformBuffer
	classStorageBuffer
	classReadOnlyStorageBuffer
	classFilteringSampler
	classComparisonSampler
	classTexture
)

// viewDimension is the target-neutral texture view dimension.
type viewDimension int

const (
	dim1D viewDimension = iota
	dim2D
	dim2DArray
	dim3D
	dimCube
	dimCubeArray
)

// sampleKind is the target-neutral texture sample type.
type sampleKind int

const (
	sampleFloat sampleKind = iota
	sampleSint
	sampleUint
	sampleDepth
)

// textureShape describes the texture half of a binding.
type textureShape struct {
	dimension    viewDimension
	sample       sampleKind
	multisampled bool
}

// classified is a descriptor reduced to what bind group layouts need.
type classified struct {
	class   bindingClass
	texture textureShape
}

// wgslTextureShapes maps WGSL texture base names to their view dimension and multisampled flag
var wgslTextureShapes = map[string]textureShape{
	"texture_1d":                    {dim1D, sampleFloat, false},
	"texture_2d":                    {dim2D, sampleFloat, false},
	"texture_2d_array":              {dim2DArray, sampleFloat, false},
	"texture_3d":                    {dim3D, sampleFloat, false},
	"texture_cube":                  {dimCube, sampleFloat, false},
	"texture_cube_array":            {dimCubeArray, sampleFloat, false},
	"texture_multisampled_2d":       {dim2D, sampleFloat, true},
	"texture_depth_2d":              {dim2D, sampleDepth, false},
	"texture_depth_2d_array":        {dim2DArray, sampleDepth, false},
	"texture_depth_cube":            {dimCube, sampleDepth, false},
	"texture_depth_cube_array":      {dimCubeArray, sampleDepth, false},
	"texture_depth_multisampled_2d": {dim2D, sampleDepth, true},
}

// wgslSampleKinds maps WGSL scalar type parameters to their sample kind
var wgslSampleKinds = map[string]sampleKind{
	"f32": sampleFloat,
	"i32": sampleSint,
	"u32": sampleUint,
}

// glslSamplerShapes maps GLSL combined sampler type names to the texture they sample.
var glslSamplerShapes = map[string]textureShape{
	"sampler1D":              {dim1D, sampleFloat, false},
	"sampler2D":              {dim2D, sampleFloat, false},
	"sampler3D":              {dim3D, sampleFloat, false},
	"samplerCube":            {dimCube, sampleFloat, false},
	"sampler2DArray":         {dim2DArray, sampleFloat, false},
	"samplerCubeArray":       {dimCubeArray, sampleFloat, false},
	"sampler2DMS":            {dim2D, sampleFloat, true},
	"sampler2DShadow":        {dim2D, sampleDepth, false},
	"sampler2DArrayShadow":   {dim2DArray, sampleDepth, false},
	"samplerCubeShadow":      {dimCube, sampleDepth, false},
	"samplerCubeArrayShadow": {dimCubeArray, sampleDepth, false},
	"isampler2D":             {dim2D, sampleSint, false},
	"isampler3D":             {dim3D, sampleSint, false},
	"isampler2DArray":        {dim2DArray, sampleSint, false},
	"usampler2D":             {dim2D, sampleUint, false},
	"usampler3D":             {dim3D, sampleUint, false},
	"usampler2DArray":        {dim2DArray, sampleUint, false},
}

var wgpuViewDimensions = map[viewDimension]wgpu.TextureViewDimension{
	dim1D:        wgpu.TextureViewDimension1D,
	dim2D:        wgpu.TextureViewDimension2D,
	dim2DArray:   wgpu.TextureViewDimension2DArray,
	dim3D:        wgpu.TextureViewDimension3D,
	dimCube:      wgpu.TextureViewDimensionCube,
	dimCubeArray: wgpu.TextureViewDimensionCubeArray,
}

var wgpuSampleTypes = map[sampleKind]wgpu.TextureSampleType{
	sampleFloat: wgpu.TextureSampleTypeFloat,
	sampleSint:  wgpu.TextureSampleTypeSint,
	sampleUint:  wgpu.TextureSampleTypeUint,
	sampleDepth: wgpu.TextureSampleTypeDepth,
}

var gpuViewDimensions = map[viewDimension]gputypes.TextureViewDimension{
	dim1D:        gputypes.TextureViewDimension1D,
	dim2D:        gputypes.TextureViewDimension2D,
	dim2DArray:   gputypes.TextureViewDimension2DArray,
	dim3D:        gputypes.TextureViewDimension3D,
	dimCube:      gputypes.TextureViewDimensionCube,
	dimCubeArray: gputypes.TextureViewDimensionCubeArray,
}

var gpuSampleTypes = map[sampleKind]gputypes.TextureSampleType{
	sampleFloat: gputypes.TextureSampleTypeFloat,
	sampleSint:  gputypes.TextureSampleTypeSint,
	sampleUint:  gputypes.TextureSampleTypeUint,
	sampleDepth: gputypes.TextureSampleTypeDepth,
}

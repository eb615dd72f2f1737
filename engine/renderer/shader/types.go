package shader

import (
	"fmt"
	"regexp"
	"strconv"
)

// DescriptorKind identifies the kind of GPU resource bound at a descriptor slot.
type DescriptorKind int

const (
	// DescriptorUniformBuffer is a uniform buffer (UBO).
	DescriptorUniformBuffer DescriptorKind = iota

	// DescriptorCombinedImageSampler is a GLSL sampler2D-style combined image and sampler.
	DescriptorCombinedImageSampler

	// DescriptorSampledImage is a texture without a sampler (WGSL texture_*).
	DescriptorSampledImage

	// DescriptorSampler is a standalone sampler (WGSL sampler / sampler_comparison).
	DescriptorSampler

	// DescriptorStorageBuffer is a storage buffer (WGSL var<storage>).
	DescriptorStorageBuffer
)

// String returns the descriptor kind name used in sidecar files.
func (k DescriptorKind) String() string {
	switch k {
	case DescriptorUniformBuffer:
		return "uniform_buffer"
	case DescriptorCombinedImageSampler:
		return "combined_image_sampler"
	case DescriptorSampledImage:
		return "sampled_image"
	case DescriptorSampler:
		return "sampler"
	case DescriptorStorageBuffer:
		return "storage_buffer"
	default:
		return "unknown"
	}
}

// ParseDescriptorKind is the inverse of DescriptorKind.String.
func ParseDescriptorKind(s string) (DescriptorKind, bool) {
	for k := DescriptorUniformBuffer; k <= DescriptorStorageBuffer; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (k DescriptorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *DescriptorKind) UnmarshalText(b []byte) error {
	v, ok := ParseDescriptorKind(string(b))
	if !ok {
		return fmt.Errorf("unknown descriptor kind %q", b)
	}
	*k = v
	return nil
}

// Descriptor is a named resource slot at a (set, binding) pair.
type Descriptor struct {
	Kind    DescriptorKind `json:"kind"`
	Name    string         `json:"name"`
	Set     int            `json:"set"`
	Binding int            `json:"binding"`
	Count   int            `json:"count"`

	// Type is the declared resource type used when exporting layouts: the sampler or
	// texture type ("sampler2DShadow", "texture_depth_2d"), or the address space of a
	// WGSL buffer ("uniform", "storage, read").
	Type string `json:"type,omitempty"`

	// Size is the block size in bytes reported by the compiler, 0 if unknown.
	Size int `json:"size,omitempty"`

	// Stages records every stage of the pipeline that declared the resource.
	Stages StageMask `json:"stages"`
}

// PushConstantRange is a push-constant block visible to the stages in Stages.
type PushConstantRange struct {
	Offset int       `json:"offset"`
	Size   int       `json:"size"`
	Stages StageMask `json:"stages"`
}

// RecordKind identifies which reflection section a record came from.
type RecordKind int

const (
	// RecordUniform is a loose uniform (including samplers and block members).
	RecordUniform RecordKind = iota

	// RecordUniformBlock is a uniform block (UBO) or push-constant block.
	RecordUniformBlock

	// RecordVertexAttribute is a vertex shader input.
	RecordVertexAttribute

	// RecordStorageBlock is a storage buffer block.
	RecordStorageBlock
)

// String returns the record kind name.
func (k RecordKind) String() string {
	switch k {
	case RecordUniform:
		return "Uniform"
	case RecordUniformBlock:
		return "UniformBlock"
	case RecordVertexAttribute:
		return "VertexAttribute"
	case RecordStorageBlock:
		return "StorageBlock"
	default:
		return "Unknown"
	}
}

// ResourceClass classifies opaque resources found in reflection.
type ResourceClass int

const (
	// ResourceNone is a plain value (scalar, vector, block member).
	ResourceNone ResourceClass = iota

	// ResourceCombinedImageSampler is a sampler-typed uniform.
	ResourceCombinedImageSampler

	// ResourceSampledImage is a texture without sampler.
	ResourceSampledImage

	// ResourceSampler is a standalone sampler.
	ResourceSampler
)

// ReflectionRecord is one entry of the compiler's reflection output.
type ReflectionRecord struct {
	Kind       RecordKind
	Name       string
	Offset     int
	Type       uint32
	Size       int
	Index      int
	Binding    int
	Set        int
	ArrayCount int
	Resource   ResourceClass

	// TypeName is the resource type as written in source, when the compiler reports it.
	// Vertex attributes carry their type in WGSL spelling ("vec3<f32>").
	TypeName string

	// Location is the input location of a VertexAttribute record, -1 if not reported.
	Location int
}

// VertexInput is a vertex stage input at a shader location.
type VertexInput struct {
	Location int    `json:"location"`
	Name     string `json:"name"`

	// Type is the input type in WGSL spelling ("vec3<f32>", "u32"), for GLSL sources too.
	Type string `json:"type"`
}

// IsPushConstant reports whether the record is a push-constant block: a uniform block
// without a binding.
func (r ReflectionRecord) IsPushConstant() bool {
	return r.Kind == RecordUniformBlock && r.Binding == -1
}

// arrayIndexRegex matches a trailing element index such as "Lights[2]".
var arrayIndexRegex = regexp.MustCompile(`^(.*?)\[(\d+)\]$`)

// BaseName returns the record name without a trailing array element index.
func (r ReflectionRecord) BaseName() string {
	if m := arrayIndexRegex.FindStringSubmatch(r.Name); m != nil {
		return m[1]
	}
	return r.Name
}

// ElementIndex returns the trailing array element index of the record name, or -1.
func (r ReflectionRecord) ElementIndex() int {
	if m := arrayIndexRegex.FindStringSubmatch(r.Name); m != nil {
		n, _ := strconv.Atoi(m[2])
		return n
	}
	return -1
}

// IncludeMapping records one #include expansion: the include directive's line in the
// original file, the number of lines emitted before the inclusion, and the newline count
// of the included file.
type IncludeMapping struct {
	OriginalLine int
	EmittedLine  int
	LineCount    int
}

// LineMapKind distinguishes include expansions from elided (dropped) source lines.
type LineMapKind int

const (
	// LineMapInclude is an #include expansion.
	LineMapInclude LineMapKind = iota

	// LineMapElision is a run of source lines that were not emitted.
	LineMapElision
)

// LineMapEntry is one entry of the table used to translate emitted line numbers back to
// original lines. For elisions, OriginalLine is the first dropped line and LineCount the
// number of consecutive dropped lines.
type LineMapEntry struct {
	Kind LineMapKind
	IncludeMapping

	// File is the include target for LineMapInclude entries.
	File string
}

// Severity is the severity of a compiler diagnostic.
type Severity int

const (
	// SeverityError marks a diagnostic that fails compilation.
	SeverityError Severity = iota

	// SeverityWarning marks a diagnostic that does not fail compilation.
	SeverityWarning
)

// String returns the severity name.
func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is a compiler message whose line has been remapped to the original file.
type Diagnostic struct {
	Line     int
	Message  string
	Severity Severity
	File     string
	Stage    StageKind
}

// String formats the diagnostic as "file:line: severity: message".
func (d Diagnostic) String() string {
	loc := d.File
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d", d.File, d.Line)
	}
	if loc == "" {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", loc, d.Severity, d.Message)
}

// BindingPlaceholder is the sentinel token that stands in for a binding number in
// source and is rewritten to a concrete binding before compilation.
const BindingPlaceholder = "TKE_UBO_BINDING"

// Declaration is a resource declaration carrying a binding placeholder, as found by the
// preprocessor in source order.
type Declaration struct {
	// Name is the block or variable name.
	Name string

	// Set is the descriptor set (GLSL set = S, WGSL @group(S)). Defaults to 0.
	Set int

	// Kind is the descriptor kind implied by the declared type.
	Kind DescriptorKind

	// Count is the array length from an optional [N] suffix, 1 otherwise.
	Count int

	// Type is the declared type token, see Descriptor.Type.
	Type string

	// Line is the 1-based source line of the declaration.
	Line int
}

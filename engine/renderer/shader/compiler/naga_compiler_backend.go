package compiler

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/preprocessor"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/reflection"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/naga/wgsl"
)

// nagaStages maps pipeline stages to naga entry point stages. naga has no
// tessellation or geometry stages.
var nagaStages = map[shader.StageKind]ir.ShaderStage{
	shader.StageVertex:   ir.StageVertex,
	shader.StageFragment: ir.StageFragment,
	shader.StageCompute:  ir.StageCompute,
}

var nagaStageAttributes = map[ir.ShaderStage]string{
	ir.StageVertex:   "@vertex",
	ir.StageFragment: "@fragment",
	ir.StageCompute:  "@compute",
}

// nagaPositionRegex extracts the position from naga's error text. The parser reports
// "line L, column C: msg"; the lowering pass reports "L:C: msg".
// Groups: 1/3 = line, 2/4 = column, 5 = message.
var nagaPositionRegex = regexp.MustCompile(`(?:line (\d+), column (\d+)|(\d+):(\d+)): (.*)$`)

// nagaCompilerBackend compiles WGSL units in-process.
type nagaCompilerBackend struct {
	version  spirv.Version
	debug    bool
	validate bool
}

var _ compilerBackend = &nagaCompilerBackend{}

func newNagaCompilerBackend(version spirv.Version, debug, validate bool) *nagaCompilerBackend {
	return &nagaCompilerBackend{version: version, debug: debug, validate: validate}
}

func (b *nagaCompilerBackend) Compile(ctx context.Context, unit *preprocessor.Unit) (*Result, error) {
	if unit.Dialect != shader.DialectWGSL {
		return nil, (&shader.Error{
			Kind:    shader.ErrCompilerInvocationFailed,
			Path:    unit.Path,
			Message: "naga compiles WGSL units only",
		}).WithStage(unit.Stage)
	}
	stage, ok := nagaStages[unit.Stage]
	if !ok {
		return nil, (&shader.Error{
			Kind:    shader.ErrUnsupportedStageExtension,
			Path:    unit.Path,
			Message: fmt.Sprintf("%s stage is not supported for WGSL", unit.Stage),
		}).WithStage(unit.Stage)
	}

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := b.compile(unit, stage)
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, contextError(unit, ctx.Err())
	case o := <-done:
		return o.res, o.err
	}
}

func (b *nagaCompilerBackend) compile(unit *preprocessor.Unit, stage ir.ShaderStage) (*Result, error) {
	lm := lineMapOf(unit)

	ast, err := naga.Parse(unit.Text)
	if err != nil {
		return nil, compileError(unit, lm, err)
	}
	lowered, err := wgsl.LowerWithWarnings(ast, unit.Text)
	if err != nil {
		return nil, compileError(unit, lm, err)
	}
	module := lowered.Module

	if b.validate {
		problems, err := naga.Validate(module)
		if err != nil {
			return nil, compileError(unit, lm, err)
		}
		if len(problems) > 0 {
			diags := make([]shader.Diagnostic, len(problems))
			for i, p := range problems {
				diags[i] = shader.Diagnostic{
					Message:  p.Error(),
					Severity: shader.SeverityError,
					File:     unit.Path,
					Stage:    unit.Stage,
				}
			}
			return nil, (&shader.Error{Kind: shader.ErrCompile, Path: unit.Path, Diagnostics: diags}).WithStage(unit.Stage)
		}
	}

	if !hasEntryPoint(module, stage) {
		return nil, (&shader.Error{
			Kind:    shader.ErrCompile,
			Path:    unit.Path,
			Message: "no " + nagaStageAttributes[stage] + " entry point",
		}).WithStage(unit.Stage)
	}

	artifact, err := naga.GenerateSPIRV(module, spirv.Options{Version: b.version, Debug: b.debug})
	if err != nil {
		return nil, compileError(unit, lm, err)
	}

	var warnings []shader.Diagnostic
	for _, w := range lowered.Warnings {
		line, included := lm.Remap(w.Span.Start.Line)
		msg := w.Message
		if included != "" {
			msg = fmt.Sprintf("%s (in included file %s)", msg, included)
		}
		warnings = append(warnings, shader.Diagnostic{
			Line:     line,
			Message:  msg,
			Severity: shader.SeverityWarning,
			File:     unit.Path,
			Stage:    unit.Stage,
		})
	}

	res := &Result{
		Artifact:    artifact,
		Records:     moduleRecords(module),
		Diagnostics: warnings,
	}
	if stage == ir.StageVertex {
		res.VertexInputs = vertexInputs(module)
	}
	return res, nil
}

// compileError converts a naga error into a CompileError carrying one remapped
// diagnostic.
func compileError(unit *preprocessor.Unit, lm reflection.LineMap, err error) *shader.Error {
	d := shader.Diagnostic{
		Message:  err.Error(),
		Severity: shader.SeverityError,
		File:     unit.Path,
		Stage:    unit.Stage,
	}
	if m := nagaPositionRegex.FindStringSubmatch(err.Error()); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[3]
		}
		n, _ := strconv.Atoi(raw)
		line, included := lm.Remap(n)
		d.Line = line
		d.Message = m[5]
		if included != "" {
			d.Message = fmt.Sprintf("%s (in included file %s)", d.Message, included)
		}
	}
	return (&shader.Error{
		Kind:        shader.ErrCompile,
		Path:        unit.Path,
		Line:        d.Line,
		Diagnostics: []shader.Diagnostic{d},
	}).WithStage(unit.Stage)
}

func hasEntryPoint(module *ir.Module, stage ir.ShaderStage) bool {
	for _, ep := range module.EntryPoints {
		if ep.Stage == stage {
			return true
		}
	}
	return false
}

// moduleRecords derives reflection records from the module's global variables, in the
// shape the external compiler's reflection dump would have produced.
func moduleRecords(module *ir.Module) []shader.ReflectionRecord {
	var records []shader.ReflectionRecord
	for _, gv := range module.GlobalVariables {
		rec := shader.ReflectionRecord{
			Name:       gv.Name,
			Offset:     -1,
			Index:      -1,
			Binding:    -1,
			ArrayCount: 1,
		}
		if gv.Binding != nil {
			rec.Set = int(gv.Binding.Group)
			rec.Binding = int(gv.Binding.Binding)
		}

		inner := typeInner(module, gv.Type)
		if ba, ok := inner.(ir.BindingArrayType); ok {
			if ba.Size != nil {
				rec.ArrayCount = int(*ba.Size)
			}
			inner = typeInner(module, ba.Base)
		}

		switch gv.Space {
		case ir.SpaceUniform:
			rec.Kind = shader.RecordUniformBlock
			rec.Size = int(typeSize(module, gv.Type))
			rec.TypeName = "uniform"
		case ir.SpaceStorage:
			rec.Kind = shader.RecordStorageBlock
			rec.Size = int(typeSize(module, gv.Type))
			rec.TypeName = "storage, read_write"
			if gv.Access == ir.StorageRead {
				rec.TypeName = "storage, read"
			}
		case ir.SpacePushConstant, ir.SpaceImmediate:
			rec.Kind = shader.RecordUniformBlock
			rec.Binding = -1
			rec.Size = int(typeSize(module, gv.Type))
		case ir.SpaceHandle:
			rec.Kind = shader.RecordUniform
			rec.Size = rec.ArrayCount
			switch t := inner.(type) {
			case ir.SamplerType:
				rec.Resource = shader.ResourceSampler
				rec.TypeName = "sampler"
				if t.Comparison {
					rec.TypeName = "sampler_comparison"
				}
			case ir.ImageType:
				if t.Class == ir.ImageClassStorage {
					continue
				}
				rec.Resource = shader.ResourceSampledImage
				rec.TypeName = imageTypeName(t)
			default:
				continue
			}
		default:
			continue
		}
		records = append(records, rec)
	}
	return records
}

// vertexInputs collects the location-bound arguments of the vertex entry point,
// looking inside struct arguments.
func vertexInputs(module *ir.Module) []shader.VertexInput {
	var inputs []shader.VertexInput
	add := func(name string, binding *ir.Binding, h ir.TypeHandle) {
		if binding == nil {
			return
		}
		if loc, ok := (*binding).(ir.LocationBinding); ok {
			inputs = append(inputs, shader.VertexInput{Location: int(loc.Location), Name: name, Type: valueTypeName(module, h)})
		}
	}
	for _, ep := range module.EntryPoints {
		if ep.Stage != ir.StageVertex {
			continue
		}
		for _, arg := range ep.Function.Arguments {
			if st, ok := typeInner(module, arg.Type).(ir.StructType); ok && arg.Binding == nil {
				for _, member := range st.Members {
					add(member.Name, member.Binding, member.Type)
				}
				continue
			}
			add(arg.Name, arg.Binding, arg.Type)
		}
		break
	}
	sort.SliceStable(inputs, func(i, j int) bool {
		return inputs[i].Location < inputs[j].Location
	})
	return inputs
}

// valueTypeName spells a scalar or vector type the way it is written in WGSL.
func valueTypeName(module *ir.Module, h ir.TypeHandle) string {
	switch t := typeInner(module, h).(type) {
	case ir.ScalarType:
		return scalarTypeName(t)
	case ir.VectorType:
		return fmt.Sprintf("vec%d<%s>", t.Size, scalarTypeName(t.Scalar))
	default:
		return ""
	}
}

func scalarTypeName(t ir.ScalarType) string {
	if t.Kind == ir.ScalarFloat && t.Width == 2 {
		return "f16"
	}
	return sampledKinds[t.Kind]
}

func typeInner(module *ir.Module, h ir.TypeHandle) ir.TypeInner {
	if int(h) >= len(module.Types) {
		return nil
	}
	return module.Types[h].Inner
}

// typeSize returns the host-shareable size of a type in bytes. Runtime-sized arrays
// contribute nothing.
func typeSize(module *ir.Module, h ir.TypeHandle) uint32 {
	switch t := typeInner(module, h).(type) {
	case ir.ScalarType:
		return uint32(t.Width)
	case ir.AtomicType:
		return uint32(t.Scalar.Width)
	case ir.VectorType:
		return uint32(t.Size) * uint32(t.Scalar.Width)
	case ir.MatrixType:
		rows := uint32(t.Rows)
		if rows == 3 {
			rows = 4
		}
		return uint32(t.Columns) * rows * uint32(t.Scalar.Width)
	case ir.ArrayType:
		if t.Size.Constant == nil {
			return 0
		}
		stride := t.Stride
		if stride == 0 {
			stride = typeSize(module, t.Base)
		}
		return *t.Size.Constant * stride
	case ir.StructType:
		return t.Span
	default:
		return 0
	}
}

var imageDimensions = map[ir.ImageDimension]string{
	ir.Dim1D:   "1d",
	ir.Dim2D:   "2d",
	ir.Dim3D:   "3d",
	ir.DimCube: "cube",
}

var sampledKinds = map[ir.ScalarKind]string{
	ir.ScalarFloat: "f32",
	ir.ScalarSint:  "i32",
	ir.ScalarUint:  "u32",
}

// imageTypeName spells an image type the way it is written in WGSL.
func imageTypeName(t ir.ImageType) string {
	dim := imageDimensions[t.Dim]
	if t.Arrayed {
		dim += "_array"
	}
	switch t.Class {
	case ir.ImageClassDepth:
		if t.Multisampled {
			return "texture_depth_multisampled_" + dim
		}
		return "texture_depth_" + dim
	case ir.ImageClassExternal:
		return "texture_external"
	}
	kind := sampledKinds[t.SampledKind]
	if kind == "" {
		kind = "f32"
	}
	if t.Multisampled {
		return "texture_multisampled_" + dim + "<" + kind + ">"
	}
	return "texture_" + dim + "<" + kind + ">"
}

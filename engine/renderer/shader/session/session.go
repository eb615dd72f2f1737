// Package session drives the build of whole pipelines. A Session owns the module cache
// and the compiler; every pipeline gets its own binding table so resources shared
// between its stages resolve to one binding.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/binding"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/cache"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/compiler"
	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader/preprocessor"
)

// PipelineDefinition names the stage sources of a pipeline and the macros active for it.
type PipelineDefinition struct {
	// Name identifies the pipeline. Compiles of the same name are serialized.
	Name string

	// Stages lists the stage source paths in declaration order.
	Stages []string

	// Macros lists the pipeline macros with the stages each applies to.
	Macros []shader.Macro
}

// Session builds pipelines against a shared module cache.
type Session interface {
	// CompilePipeline compiles every stage of a pipeline in declaration order. Stages
	// already in the cache for the same macro set are served from it without invoking
	// the compiler. On failure every module acquired so far is released.
	//
	// Parameters:
	//   - ctx: bounds the compiles
	//   - def: the pipeline definition
	//
	// Returns:
	//   - *Pipeline: the compiled stages and the merged binding layout
	//   - error: the first failure as a *shader.Error
	CompilePipeline(ctx context.Context, def PipelineDefinition) (*Pipeline, error)

	// Cache returns the session's module cache.
	Cache() cache.ModuleCache

	// Compiler returns the session's compiler.
	Compiler() compiler.Compiler
}

// session is the implementation of the Session interface.
type session struct {
	cache        cache.ModuleCache
	compiler     compiler.Compiler
	preprocessor preprocessor.Preprocessor

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

var _ Session = &session{}

// NewSession creates a Session. Components not supplied through options are created
// with their defaults.
//
// Parameters:
//   - options: a variadic list of SessionBuilderOption functions to configure the Session
//
// Returns:
//   - Session: the new session
func NewSession(options ...SessionBuilderOption) Session {
	s := &session{
		locks: make(map[string]*sync.Mutex),
	}
	for _, option := range options {
		option(s)
	}
	if s.cache == nil {
		s.cache = cache.NewModuleCache()
	}
	if s.compiler == nil {
		s.compiler = compiler.NewCompiler()
	}
	if s.preprocessor == nil {
		s.preprocessor = preprocessor.NewPreprocessor()
	}
	return s
}

func (s *session) CompilePipeline(ctx context.Context, def PipelineDefinition) (*Pipeline, error) {
	lock := s.pipelineLock(def.Name)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	table := binding.NewTable()
	p := &Pipeline{Name: def.Name, cache: s.cache}

	for _, path := range def.Stages {
		m, hit, err := s.compileStage(ctx, path, def.Macros, table)
		if err != nil {
			p.Release()
			shader.Logger().Debug("pipeline failed", "pipeline", def.Name, "path", path, "error", err)
			return nil, err
		}
		p.Modules = append(p.Modules, m)
		if hit {
			p.CacheHits++
		}
	}

	p.DescriptorsBySet = table.DescriptorsBySet()
	p.PushConstantRanges = table.PushConstantRanges()

	shader.Logger().Info("compiled pipeline",
		"pipeline", def.Name,
		"stages", len(p.Modules),
		"cached", p.CacheHits,
		"descriptors", len(table.Descriptors()),
		"elapsed", time.Since(start))
	return p, nil
}

// compileStage compiles one stage through the cache. On a miss the stage is
// preprocessed with the pipeline's binding table as resolver, compiled, and its
// reflection reconciled with the table. A hit whose bindings do not fit the table is
// given back and the stage is compiled for this pipeline alone, outside the cache.
func (s *session) compileStage(ctx context.Context, path string, macros []shader.Macro, table binding.Table) (*shader.CompiledModule, bool, error) {
	stage, _, err := shader.StageFromPath(path)
	if err != nil {
		return nil, false, err
	}
	active := shader.ResolveMacros(macros, stage)

	m, hit, err := s.cache.GetOrCompile(ctx, path, active, func(ctx context.Context, canonicalPath string) (*shader.CompiledModule, error) {
		return s.compileUnit(ctx, canonicalPath, stage, active, table)
	})
	if err != nil {
		return nil, false, withStage(err, stage)
	}
	if !hit {
		return m, false, nil
	}

	err = table.Adopt(m)
	if err == nil {
		return m, true, nil
	}
	canonical := m.CanonicalPath
	s.cache.Release(m)
	shader.Logger().Debug("cached module bindings do not fit pipeline, recompiling",
		"path", canonical, "stage", stage, "reason", err)

	m, err = s.compileUnit(ctx, canonical, stage, active, table)
	if err != nil {
		return nil, false, withStage(err, stage)
	}
	m.CanonicalPath = canonical
	m.Macros = append(shader.MacroSet(nil), active...)
	return m, false, nil
}

// compileUnit preprocesses and compiles one stage against table.
func (s *session) compileUnit(ctx context.Context, canonicalPath string, stage shader.StageKind, active shader.MacroSet, table binding.Table) (*shader.CompiledModule, error) {
	unit, err := s.preprocessor.Process(canonicalPath, active, table)
	if err != nil {
		return nil, err
	}
	res, err := s.compiler.Compile(ctx, unit)
	if err != nil {
		return nil, err
	}
	bySet, pushConstants, err := table.Reconcile(res.Records, stage)
	if err != nil {
		return nil, err
	}
	return &shader.CompiledModule{
		Stage:              stage,
		Artifact:           res.Artifact,
		DescriptorsBySet:   bySet,
		PushConstantRanges: pushConstants,
		VertexInputs:       res.VertexInputs,
		Includes:           unit.IncludedFiles,
		Warnings:           res.Warnings(),
	}, nil
}

func (s *session) Cache() cache.ModuleCache {
	return s.cache
}

func (s *session) Compiler() compiler.Compiler {
	return s.compiler
}

func (s *session) pipelineLock(name string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[name] = lock
	}
	return lock
}

// withStage attaches the stage to a *shader.Error that does not carry one yet. The
// error is copied because coalesced cache requests share it.
func withStage(err error, stage shader.StageKind) error {
	se, ok := err.(*shader.Error)
	if !ok || se.Stage != nil {
		return err
	}
	c := *se
	return c.WithStage(stage)
}

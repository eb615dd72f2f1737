// Package cache holds compiled shader modules keyed by canonical source path and macro
// set. Entries are reference counted: every successful GetOrCompile takes a reference
// that the caller gives back with Release, and an entry is freed when its last
// reference is released.
package cache

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
)

// CompileFunc produces the module for a cache miss.
//
// Parameters:
//   - ctx: the context passed to GetOrCompile
//   - canonicalPath: the absolute, symlink-resolved source path
//
// Returns:
//   - *shader.CompiledModule: the compiled module
//   - error: the compile failure; failures are never cached
type CompileFunc func(ctx context.Context, canonicalPath string) (*shader.CompiledModule, error)

// Stats is a snapshot of cache activity.
type Stats struct {
	// Hits counts requests served by an existing or in-flight entry.
	Hits int64

	// Misses counts requests that ran a compile.
	Misses int64

	// Live is the number of entries currently held.
	Live int
}

// ModuleCache is the shared store of compiled modules.
type ModuleCache interface {
	// GetOrCompile returns the module for (path, macros), compiling it on a miss. A hit
	// takes another reference on the entry. Concurrent requests for the same key wait for
	// a single compile.
	//
	// Parameters:
	//   - ctx: bounds waiting and is passed to compile
	//   - path: the source path, canonicalized before lookup
	//   - macros: the macro set the stage is compiled with
	//   - compile: produces the module on a miss
	//
	// Returns:
	//   - *shader.CompiledModule: the cached module
	//   - bool: true if the module came from an existing entry
	//   - error: a MissingSourceFile error, or the compile failure
	GetOrCompile(ctx context.Context, path string, macros shader.MacroSet, compile CompileFunc) (*shader.CompiledModule, bool, error)

	// Release gives back one reference. The last release removes the entry and drops the
	// module's artifact. Releasing a module the cache does not hold is a no-op.
	//
	// Parameters:
	//   - m: the module returned by GetOrCompile
	Release(m *shader.CompiledModule)

	// RefCount returns the number of outstanding references on m, 0 if it is not held.
	RefCount(m *shader.CompiledModule) int

	// Stats returns a snapshot of cache activity.
	Stats() Stats
}

type key struct {
	path   string
	macros string
}

// entry is a cache slot. ready is closed once the compile finished; module and err are
// only read after that.
type entry struct {
	module *shader.CompiledModule
	err    error
	refs   int
	ready  chan struct{}
}

// moduleCache is the implementation of the ModuleCache interface.
type moduleCache struct {
	mu sync.Mutex

	entries  map[key]*entry
	byModule map[*shader.CompiledModule]key

	// normalizeMacros makes macro sets that differ only in order share an entry.
	normalizeMacros bool

	hits   int64
	misses int64
}

var _ ModuleCache = &moduleCache{}

// NewModuleCache creates an empty ModuleCache.
//
// Parameters:
//   - options: a variadic list of ModuleCacheBuilderOption functions to configure the cache
//
// Returns:
//   - ModuleCache: the new cache
func NewModuleCache(options ...ModuleCacheBuilderOption) ModuleCache {
	c := &moduleCache{
		entries:  make(map[key]*entry),
		byModule: make(map[*shader.CompiledModule]key),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Canonicalize returns the absolute, symlink-resolved form of path.
//
// Parameters:
//   - path: a source path
//
// Returns:
//   - string: the canonical path
//   - error: a MissingSourceFile error if the file does not exist
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &shader.Error{Kind: shader.ErrMissingSourceFile, Path: path, Err: err}
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &shader.Error{Kind: shader.ErrMissingSourceFile, Path: path, Message: "source file not found"}
		}
		return "", &shader.Error{Kind: shader.ErrMissingSourceFile, Path: path, Err: err}
	}
	return resolved, nil
}

func (c *moduleCache) GetOrCompile(ctx context.Context, path string, macros shader.MacroSet, compile CompileFunc) (*shader.CompiledModule, bool, error) {
	canonical, err := Canonicalize(path)
	if err != nil {
		return nil, false, err
	}
	k := key{path: canonical, macros: c.macroKey(macros)}

	c.mu.Lock()
	if e, ok := c.entries[k]; ok {
		e.refs++
		c.hits++
		c.mu.Unlock()
		return c.wait(ctx, e)
	}
	e := &entry{refs: 1, ready: make(chan struct{})}
	c.entries[k] = e
	c.misses++
	c.mu.Unlock()

	shader.Logger().Debug("module cache miss", "path", canonical, "macros", macros.Names())
	m, err := compile(ctx, canonical)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		delete(c.entries, k)
		e.err = err
		close(e.ready)
		return nil, false, err
	}
	m.CanonicalPath = canonical
	m.Macros = append(shader.MacroSet(nil), macros...)
	e.module = m
	c.byModule[m] = k
	close(e.ready)
	return m, false, nil
}

// wait blocks until an existing entry is ready. A waiter that gives up drops the
// reference it took.
func (c *moduleCache) wait(ctx context.Context, e *entry) (*shader.CompiledModule, bool, error) {
	select {
	case <-e.ready:
	case <-ctx.Done():
		c.mu.Lock()
		e.refs--
		c.mu.Unlock()
		return nil, false, &shader.Error{Kind: shader.ErrCompile, Message: "cancelled while waiting for an in-flight compile", Err: ctx.Err()}
	}
	if e.err != nil {
		return nil, false, e.err
	}
	return e.module, true, nil
}

func (c *moduleCache) Release(m *shader.CompiledModule) {
	if m == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	k, ok := c.byModule[m]
	if !ok {
		return
	}
	e := c.entries[k]
	e.refs--
	if e.refs > 0 {
		return
	}
	delete(c.entries, k)
	delete(c.byModule, m)
	m.Artifact = nil
	shader.Logger().Debug("module freed", "path", k.path, "stage", m.Stage)
}

func (c *moduleCache) RefCount(m *shader.CompiledModule) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	k, ok := c.byModule[m]
	if !ok {
		return 0
	}
	return c.entries[k].refs
}

func (c *moduleCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Live: len(c.byModule)}
}

func (c *moduleCache) macroKey(macros shader.MacroSet) string {
	if c.normalizeMacros {
		return macros.Normalized().Key()
	}
	return macros.Key()
}

package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-shaderc/engine/renderer/shader"
)

func sourceFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lit.frag")
	if err := os.WriteFile(path, []byte("void main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// countingCompile returns a CompileFunc that counts its calls.
func countingCompile(calls *atomic.Int32) CompileFunc {
	return func(ctx context.Context, canonicalPath string) (*shader.CompiledModule, error) {
		calls.Add(1)
		return &shader.CompiledModule{Stage: shader.StageFragment, Artifact: []byte{3, 2, 35, 7}}, nil
	}
}

func TestGetOrCompileHitAndRelease(t *testing.T) {
	c := NewModuleCache()
	path := sourceFile(t)
	var calls atomic.Int32
	macros := shader.MacroSet{"USE_SHADOWS"}

	first, hit, err := c.GetOrCompile(context.Background(), path, macros, countingCompile(&calls))
	if err != nil || hit {
		t.Fatalf("first GetOrCompile() = hit %v, err %v", hit, err)
	}
	second, hit, err := c.GetOrCompile(context.Background(), path, macros, countingCompile(&calls))
	if err != nil || !hit {
		t.Fatalf("second GetOrCompile() = hit %v, err %v", hit, err)
	}

	if first != second {
		t.Error("second request returned a different module")
	}
	if calls.Load() != 1 {
		t.Errorf("compile ran %d times, want 1", calls.Load())
	}
	if got := c.RefCount(first); got != 2 {
		t.Errorf("RefCount() = %d, want 2", got)
	}
	if !first.Macros.Equal(macros) || !filepath.IsAbs(first.CanonicalPath) {
		t.Errorf("module key = (%q, %v)", first.CanonicalPath, first.Macros)
	}
	if s := c.Stats(); s != (Stats{Hits: 1, Misses: 1, Live: 1}) {
		t.Errorf("Stats() = %+v", s)
	}

	c.Release(first)
	if first.Artifact == nil {
		t.Fatal("artifact dropped while a reference is outstanding")
	}
	c.Release(second)
	if first.Artifact != nil {
		t.Error("artifact kept after the last release")
	}
	if c.Stats().Live != 0 || c.RefCount(first) != 0 {
		t.Errorf("entry still live after the last release: %+v", c.Stats())
	}

	// releasing again is harmless
	c.Release(first)
}

func TestMacroKeys(t *testing.T) {
	tests := []struct {
		name      string
		options   []ModuleCacheBuilderOption
		wantCalls int32
	}{
		{"order-sensitive by default", nil, 2},
		{"normalized", []ModuleCacheBuilderOption{WithNormalizedMacroKeys()}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewModuleCache(tt.options...)
			path := sourceFile(t)
			var calls atomic.Int32

			if _, _, err := c.GetOrCompile(context.Background(), path, shader.MacroSet{"A", "B"}, countingCompile(&calls)); err != nil {
				t.Fatal(err)
			}
			if _, _, err := c.GetOrCompile(context.Background(), path, shader.MacroSet{"B", "A"}, countingCompile(&calls)); err != nil {
				t.Fatal(err)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("compile ran %d times, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestSymlinkSharesEntry(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	path := sourceFile(t)
	link := filepath.Join(t.TempDir(), "alias.frag")
	if err := os.Symlink(path, link); err != nil {
		t.Fatal(err)
	}

	c := NewModuleCache()
	var calls atomic.Int32
	a, _, err := c.GetOrCompile(context.Background(), path, nil, countingCompile(&calls))
	if err != nil {
		t.Fatal(err)
	}
	b, hit, err := c.GetOrCompile(context.Background(), link, nil, countingCompile(&calls))
	if err != nil {
		t.Fatal(err)
	}
	if !hit || a != b || calls.Load() != 1 {
		t.Errorf("symlinked path did not hit the cache (hit %v, calls %d)", hit, calls.Load())
	}
}

func TestMissingSource(t *testing.T) {
	c := NewModuleCache()
	var calls atomic.Int32
	_, _, err := c.GetOrCompile(context.Background(), filepath.Join(t.TempDir(), "nope.frag"), nil, countingCompile(&calls))
	if !errors.Is(err, shader.ErrMissingSource) {
		t.Errorf("GetOrCompile() error = %v, want MissingSourceFile", err)
	}
	if calls.Load() != 0 {
		t.Error("compile ran for a missing source")
	}
}

func TestFailuresAreNotCached(t *testing.T) {
	c := NewModuleCache()
	path := sourceFile(t)
	compileErr := &shader.Error{Kind: shader.ErrCompile, Message: "boom"}

	var calls atomic.Int32
	failing := func(ctx context.Context, canonicalPath string) (*shader.CompiledModule, error) {
		calls.Add(1)
		return nil, compileErr
	}
	for range 2 {
		if _, _, err := c.GetOrCompile(context.Background(), path, nil, failing); !errors.Is(err, shader.ErrCompileFailed) {
			t.Fatalf("GetOrCompile() error = %v, want CompileError", err)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("compile ran %d times, want 2", calls.Load())
	}
	if c.Stats().Live != 0 {
		t.Errorf("failed compile left a live entry: %+v", c.Stats())
	}
}

func TestConcurrentRequestsCoalesce(t *testing.T) {
	c := NewModuleCache()
	path := sourceFile(t)

	var calls atomic.Int32
	release := make(chan struct{})
	slow := func(ctx context.Context, canonicalPath string) (*shader.CompiledModule, error) {
		calls.Add(1)
		<-release
		return &shader.CompiledModule{Artifact: []byte{1}}, nil
	}

	const requests = 16
	results := make([]*shader.CompiledModule, requests)
	var wg sync.WaitGroup
	for i := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, _, err := c.GetOrCompile(context.Background(), path, shader.MacroSet{"X"}, slow)
			if err != nil {
				t.Errorf("GetOrCompile() error: %v", err)
				return
			}
			results[i] = m
		}()
	}

	// every request has either started the compile or is waiting on it
	deadline := time.Now().Add(5 * time.Second)
	for {
		s := c.Stats()
		if s.Hits+s.Misses == requests {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("requests did not arrive: %+v", s)
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("compile ran %d times, want 1", calls.Load())
	}
	for i, m := range results {
		if m != results[0] {
			t.Errorf("request %d got a different module", i)
		}
	}
	if got := c.RefCount(results[0]); got != requests {
		t.Errorf("RefCount() = %d, want %d", got, requests)
	}
}

func TestWaiterCancellation(t *testing.T) {
	c := NewModuleCache()
	path := sourceFile(t)

	started := make(chan struct{})
	release := make(chan struct{})
	slow := func(ctx context.Context, canonicalPath string) (*shader.CompiledModule, error) {
		close(started)
		<-release
		return &shader.CompiledModule{Artifact: []byte{1}}, nil
	}

	done := make(chan *shader.CompiledModule)
	go func() {
		m, _, _ := c.GetOrCompile(context.Background(), path, nil, slow)
		done <- m
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := c.GetOrCompile(ctx, path, nil, slow); !errors.Is(err, context.Canceled) {
		t.Errorf("waiter error = %v, want context.Canceled", err)
	}

	close(release)
	m := <-done
	if got := c.RefCount(m); got != 1 {
		t.Errorf("RefCount() = %d, want 1 after the waiter gave up", got)
	}
}

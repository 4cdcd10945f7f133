// Package internal holds test helpers shared by the packages of this module.
package internal

import (
	"context"
	"sync"
	"testing/fstest"

	"github.com/eak1mov/go-tmx/tmx"
)

// CountingReader wraps a tmx.ReadFunc and records how often each path was
// fetched.
type CountingReader struct {
	read   tmx.ReadFunc
	mu     sync.Mutex
	counts map[string]int
}

func NewCountingReader(read tmx.ReadFunc) *CountingReader {
	return &CountingReader{read: read, counts: make(map[string]int)}
}

func (r *CountingReader) Read(ctx context.Context, name string) ([]byte, error) {
	r.mu.Lock()
	r.counts[name]++
	r.mu.Unlock()
	return r.read(ctx, name)
}

func (r *CountingReader) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

// Total returns the number of fetches of all paths.
func (r *CountingReader) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.counts {
		total += n
	}
	return total
}

// MapFS builds an in-memory filesystem from file contents keyed by path.
func MapFS(files map[string]string) fstest.MapFS {
	fsys := make(fstest.MapFS, len(files))
	for name, data := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(data)}
	}
	return fsys
}

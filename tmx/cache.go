package tmx

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache holds external tilesets and templates by canonical path. It is safe
// for concurrent use and may be shared by several Loaders, in which case the
// loaded values are shared too. Entries are never evicted.
type Cache struct {
	mu        sync.Mutex
	tilesets  map[string]*Tileset
	templates map[string]*Template
	group     singleflight.Group
}

func NewCache() *Cache {
	return &Cache{
		tilesets:  make(map[string]*Tileset),
		templates: make(map[string]*Template),
	}
}

// Tileset returns the cached tileset loaded from path.
func (c *Cache) Tileset(path string) (*Tileset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, ok := c.tilesets[path]
	return ts, ok
}

// Template returns the cached template loaded from path.
func (c *Cache) Template(path string) (*Template, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.templates[path]
	return t, ok
}

// Len returns the number of cached tilesets and templates.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tilesets) + len(c.templates)
}

func (c *Cache) tileset(ctx context.Context, path string, load func(context.Context) (*Tileset, error)) (*Tileset, bool, error) {
	return cached(ctx, c, c.tilesets, "tileset:"+path, path, load)
}

func (c *Cache) template(ctx context.Context, path string, load func(context.Context) (*Template, error)) (*Template, bool, error) {
	return cached(ctx, c, c.templates, "template:"+path, path, load)
}

// cached returns entries[path], loading it at most once at a time. The
// second result reports a cache hit. A failed load is not stored, so a later
// call retries it. Concurrent callers share one load. It keeps the values of
// the first caller's context but not its cancellation, so a caller giving up
// does not fail the others; each caller stops waiting when its own ctx is done.
func cached[T any](ctx context.Context, c *Cache, entries map[string]T, key, path string, load func(context.Context) (T, error)) (T, bool, error) {
	c.mu.Lock()
	value, ok := entries[path]
	c.mu.Unlock()
	if ok {
		return value, true, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		c.mu.Lock()
		value, ok := entries[path]
		c.mu.Unlock()
		if ok {
			return value, nil
		}
		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		entries[path] = value
		c.mu.Unlock()
		return value, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		return res.Val.(T), false, nil
	}
}

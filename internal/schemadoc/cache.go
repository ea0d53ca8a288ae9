package schemadoc

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// LoadFunc produces the document text.
type LoadFunc func(ctx context.Context) (string, error)

// Cache holds the schema context after the first successful load. Concurrent
// first calls share one load. A failed load is not remembered, so the next
// caller tries again.
type Cache struct {
	load   LoadFunc
	logger *slog.Logger

	mu     sync.RWMutex
	text   string
	loaded bool

	group singleflight.Group
}

// NewCache returns a Cache around load. Nothing is read until the first Get.
func NewCache(load LoadFunc, logger *slog.Logger) *Cache {
	return &Cache{load: load, logger: logger}
}

// NewFileCache caches the document at path.
func NewFileCache(path string, logger *slog.Logger) *Cache {
	return NewCache(func(context.Context) (string, error) {
		return LoadFile(path)
	}, logger)
}

// Get returns the cached text, loading it on first use.
func (c *Cache) Get(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.loaded {
		text := c.text
		c.mu.RUnlock()
		return text, nil
	}
	c.mu.RUnlock()

	v, err, shared := c.group.Do("doc", func() (any, error) {
		c.mu.RLock()
		if c.loaded {
			text := c.text
			c.mu.RUnlock()
			return text, nil
		}
		c.mu.RUnlock()

		text, err := c.load(ctx)
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		c.text, c.loaded = text, true
		c.mu.Unlock()

		c.logger.Info("schemadoc: context loaded", "bytes", len(text))
		return text, nil
	})
	if err != nil {
		c.logger.Warn("schemadoc: load failed", "error", err, "shared", shared)
		return "", err
	}
	return v.(string), nil
}

// Loaded reports whether the document has been cached.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

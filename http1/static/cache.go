package static

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 1024

// Cache remembers paths that were found on disk. Only positive results are
// ever stored, so a miss must always be checked against the filesystem.
// Implementations must be safe for concurrent use.
type Cache interface {
	Contains(path string) bool
	Add(path string)
}

type lruCache struct {
	c *lru.Cache[string, struct{}]
}

// NewCache returns a bounded Cache. An evicted path is simply stat'ed again
// on its next lookup.
func NewCache(size int) (Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &lruCache{c: c}, nil
}

func (c *lruCache) Contains(path string) bool { return c.c.Contains(path) }
func (c *lruCache) Add(path string)           { c.c.Add(path, struct{}{}) }

// Package cache keeps rendered dashboard pages and drops them when the
// data behind a view path changes.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	goCache "github.com/patrickmn/go-cache"
)

// DefaultTTL bounds how long a page is served without being revalidated.
const DefaultTTL = 5 * time.Minute

// Revalidator marks a view path as stale so its next read recomputes it.
type Revalidator interface {
	Revalidate(ctx context.Context, path string) error
}

// PageCache stores rendered pages keyed by request path and query.
// Every purge of a path bumps its generation; a page rendered from data
// read before the purge is not stored.
type PageCache struct {
	cache *goCache.Cache

	mu   sync.Mutex
	gens map[string]uint64
}

// NewPageCache creates a cache whose entries expire after ttl.
func NewPageCache(ttl time.Duration) *PageCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PageCache{
		cache: goCache.New(ttl, 2*ttl),
		gens:  map[string]uint64{},
	}
}

// Key builds the cache key for a path and its raw query string.
func Key(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}
	return path + "?" + rawQuery
}

// Get returns the cached page body for key.
func (p *PageCache) Get(key string) ([]byte, bool) {
	v, ok := p.cache.Get(key)
	if !ok {
		return nil, false
	}
	body, ok := v.([]byte)
	return body, ok
}

// Set stores a page body under key with the default expiration.
func (p *PageCache) Set(key string, body []byte) {
	p.cache.Set(key, body, goCache.DefaultExpiration)
}

// Generation returns the current generation of path. Capture it before
// reading the data a page is rendered from.
func (p *PageCache) Generation(path string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gens[path]
}

// SetIfCurrent stores body under key unless path was purged since gen was
// captured. It reports whether the body was stored.
func (p *PageCache) SetIfCurrent(path, key string, gen uint64, body []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gens[path] != gen {
		return false
	}
	p.cache.Set(key, body, goCache.DefaultExpiration)
	return true
}

// Purge drops path and every query variant of it and bumps the path
// generation. It returns the number of entries removed.
func (p *PageCache) Purge(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gens[path]++

	removed := 0
	for k := range p.cache.Items() {
		if k == path || strings.HasPrefix(k, path+"?") {
			p.cache.Delete(k)
			removed++
		}
	}
	return removed
}

// Revalidate implements Revalidator for a single process.
func (p *PageCache) Revalidate(_ context.Context, path string) error {
	p.Purge(path)
	return nil
}

// Len returns the number of live entries.
func (p *PageCache) Len() int {
	return p.cache.ItemCount()
}

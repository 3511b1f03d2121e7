package project

import (
	"sync"

	"github.com/netsblox/cloud/internal/metrics"
	"github.com/netsblox/cloud/internal/store"
	lru "github.com/hashicorp/golang-lru/v2"
)

// metadataCache is the bounded project_id -> ProjectMetadata cache spec.md
// §4.5 requires ("every write path ... must put into the cache; reads may
// consult the cache but must tolerate staleness"). It is the only mutable
// state C7 touches from multiple request-handling goroutines, so unlike
// internal/network's indices it needs a lock (spec.md §5's "Shared
// resources" note).
type metadataCache struct {
	mu    sync.Mutex
	inner *lru.Cache[string, store.ProjectMetadata]
}

// newMetadataCache builds a cache with the given capacity (SPEC_FULL.md
// §13's ProjectCacheCapacity, default 500).
func newMetadataCache(capacity int) *metadataCache {
	inner, _ := lru.New[string, store.ProjectMetadata](capacity)
	return &metadataCache{inner: inner}
}

func (c *metadataCache) put(md store.ProjectMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Add(md.ID, md)
	metrics.ProjectCacheSize.Set(float64(c.inner.Len()))
}

func (c *metadataCache) get(id string) (store.ProjectMetadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	md, ok := c.inner.Get(id)
	if ok {
		metrics.ProjectCacheHits.WithLabelValues("hit").Inc()
	} else {
		metrics.ProjectCacheHits.WithLabelValues("miss").Inc()
	}
	return md, ok
}

func (c *metadataCache) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Remove(id)
	metrics.ProjectCacheSize.Set(float64(c.inner.Len()))
}

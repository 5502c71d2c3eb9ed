// Package cache implements the Tag Cache: a NodeId -> Tag mapping sitting
// in front of the Metadata Repository, populated lazily and invalidated
// wholesale by an operator-triggered reload.
package cache

import (
	"context"
	"sync"

	"github.com/cuemby/acquisitiond/pkg/storage"
	"github.com/cuemby/acquisitiond/pkg/types"
)

// TagCache resolves a NodeId to its Tag, consulting the Metadata
// Repository on a miss and caching the result. It never negative-caches:
// a lookup for a tag that does not yet exist is retried against the
// Repository on every call, so the first Resolve after the tag is added
// finds it without a reload. Entries already cached are refreshed only by
// an explicit Invalidate.
//
// Concurrency: concurrent readers proceed under a shared lock; Invalidate
// takes an exclusive lock. Under contention the last writer to populate a
// given key wins — a harmless race, since all writers agree on what the
// Repository says for that NodeId at the time they read it.
type TagCache struct {
	repo storage.Store

	mu      sync.RWMutex
	entries map[string]*types.Tag
}

// New creates a TagCache backed by repo.
func New(repo storage.Store) *TagCache {
	return &TagCache{
		repo:    repo,
		entries: make(map[string]*types.Tag),
	}
}

// Resolve returns the Tag for nodeID, consulting the Repository on a
// cache miss. It returns storage.ErrNotFound if no tag with that NodeId
// exists (this is not logged as an error in the cache itself — the
// Ingestion Pipeline decides how to treat an absent tag).
func (c *TagCache) Resolve(ctx context.Context, nodeID string) (*types.Tag, error) {
	c.mu.RLock()
	if tag, ok := c.entries[nodeID]; ok {
		c.mu.RUnlock()
		return tag, nil
	}
	c.mu.RUnlock()

	tag, err := c.repo.GetTagByNodeID(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[nodeID] = tag
	c.mu.Unlock()

	return tag, nil
}

// Invalidate empties the cache. The next Resolve for any NodeId will
// consult the Repository again.
func (c *TagCache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]*types.Tag)
	c.mu.Unlock()
}

// Len reports the number of currently cached entries, used by the health
// surface and tests; it is not part of the resolve/invalidate contract.
func (c *TagCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

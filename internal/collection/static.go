package collection

import (
	"context"
	"fmt"
	"sync"

	"github.com/stwalsh4118/airwave/internal/schedule"
)

// StaticResolver serves collections from memory. It backs schedule previews
// and tests.
type StaticResolver struct {
	mu          sync.RWMutex
	collections map[string][]MediaItem
	calls       map[string]int
}

// NewStaticResolver creates a resolver over a fixed set of collections
func NewStaticResolver(collections map[string][]MediaItem) *StaticResolver {
	r := &StaticResolver{
		collections: make(map[string][]MediaItem, len(collections)),
		calls:       make(map[string]int),
	}
	for name, items := range collections {
		r.Put(name, items)
	}
	return r
}

// Put replaces the members of a collection
func (r *StaticResolver) Put(name string, items []MediaItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections[name] = append([]MediaItem(nil), items...)
}

// ResolveCollection implements Resolver
func (r *StaticResolver) ResolveCollection(_ context.Context, name string, order schedule.Order, seed int64) ([]MediaItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls[name]++
	items, ok := r.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, name)
	}
	return Arrange(items, order, seed), nil
}

// Calls reports how many times a collection was resolved
func (r *StaticResolver) Calls(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.calls[name]
}

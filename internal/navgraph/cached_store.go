// File: internal/navgraph/cached_store.go
package navgraph

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// CachedStore fronts a persistent Store with a write-through in-memory
// cache. Seeded at startup from the persistent backend so the service
// resumes with the graphs it had before a restart, without a database round
// trip per lookup.
type CachedStore struct {
	backing Store
	mu      sync.RWMutex
	graphs  map[string]*Graph
	log     *zap.Logger
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore wraps backing, seeding the cache with previously persisted
// graphs keyed by app.
func NewCachedStore(backing Store, seed map[string]*Graph, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	graphs := make(map[string]*Graph, len(seed))
	for app, g := range seed {
		graphs[app] = g
	}
	return &CachedStore{
		backing: backing,
		graphs:  graphs,
		log:     logger.Named("cached_store"),
	}
}

// Put persists the graph, then replaces the cached copy. The cache is not
// touched when persistence fails, so it never gets ahead of the backend.
func (s *CachedStore) Put(ctx context.Context, g *Graph) error {
	if err := s.backing.Put(ctx, g); err != nil {
		return err
	}
	s.mu.Lock()
	s.graphs[g.App] = g
	s.mu.Unlock()
	return nil
}

// Get serves from the cache, falling through to the backend on a miss and
// caching whatever it finds.
func (s *CachedStore) Get(ctx context.Context, app string) (*Graph, bool, error) {
	s.mu.RLock()
	g, ok := s.graphs[app]
	s.mu.RUnlock()
	if ok {
		return g, true, nil
	}

	g, found, err := s.backing.Get(ctx, app)
	if err != nil || !found {
		return nil, false, err
	}
	s.log.Debug("Cache miss filled from backend", zap.String("app", app))
	s.mu.Lock()
	s.graphs[app] = g
	s.mu.Unlock()
	return g, true, nil
}

// Delete removes the graph from the backend and the cache.
func (s *CachedStore) Delete(ctx context.Context, app string) error {
	if err := s.backing.Delete(ctx, app); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.graphs, app)
	s.mu.Unlock()
	return nil
}

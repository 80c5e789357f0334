// File: internal/navgraph/store.go
package navgraph

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Store is the per-application graph table. One graph exists per app
// package and is replaced wholesale on each update.
type Store interface {
	// Put stores or replaces the graph for its application package.
	Put(ctx context.Context, g *Graph) error
	// Get retrieves the graph for an application package, if present.
	Get(ctx context.Context, app string) (*Graph, bool, error)
	// Delete removes the graph for an application package.
	Delete(ctx context.Context, app string) error
}

// MemoryStore is a fast, ephemeral Store. It is the default backend and the
// one used by tests and offline tooling.
type MemoryStore struct {
	graphs map[string]*Graph
	mu     sync.RWMutex
	log    *zap.Logger
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory graph store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		graphs: make(map[string]*Graph),
		log:    logger.Named("graph_store"),
	}
}

// Put stores or replaces the graph for g.App.
func (s *MemoryStore) Put(ctx context.Context, g *Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[g.App] = g
	s.log.Debug("Graph stored",
		zap.String("app", g.App),
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)))
	return nil
}

// Get retrieves the graph for an application package.
func (s *MemoryStore) Get(ctx context.Context, app string) (*Graph, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.graphs[app]
	return g, ok, nil
}

// Delete removes the graph for an application package.
func (s *MemoryStore) Delete(ctx context.Context, app string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.graphs, app)
	return nil
}

// File: internal/navgraph/postgres_store.go
package navgraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// DBPool abstracts pgxpool.Pool so the store can be exercised with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists discovered navigation graphs across restarts. Each
// application package maps to a single row holding the whole graph document,
// matching the wholesale-replace update model.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore verifies the connection and returns a persistent Store.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{
		pool: pool,
		log:  logger.Named("graph_store"),
	}, nil
}

// Put upserts the graph document for g.App.
func (s *PostgresStore) Put(ctx context.Context, g *Graph) error {
	doc, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal graph for %q: %w", g.App, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO nav_graphs (app, version, document, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (app) DO UPDATE SET
			version = EXCLUDED.version,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at;
	`, g.App, g.Version, doc)
	if err != nil {
		return fmt.Errorf("failed to upsert graph for %q: %w", g.App, err)
	}

	s.log.Debug("Graph persisted", zap.String("app", g.App), zap.Int("nodes", len(g.Nodes)))
	return nil
}

// Get loads the graph document for an application package.
func (s *PostgresStore) Get(ctx context.Context, app string) (*Graph, bool, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM nav_graphs WHERE app = $1;`, app,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to query graph for %q: %w", app, err)
	}

	var g Graph
	if err := json.Unmarshal(doc, &g); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal graph for %q: %w", app, err)
	}
	return &g, true, nil
}

// Delete removes the graph for an application package.
func (s *PostgresStore) Delete(ctx context.Context, app string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM nav_graphs WHERE app = $1;`, app); err != nil {
		return fmt.Errorf("failed to delete graph for %q: %w", app, err)
	}
	return nil
}

// LoadAll returns every persisted graph keyed by app. Used at startup so the
// service resumes with the graphs it had before a restart.
func (s *PostgresStore) LoadAll(ctx context.Context) (map[string]*Graph, error) {
	rows, err := s.pool.Query(ctx, `SELECT app, document FROM nav_graphs;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query graphs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*Graph)
	for rows.Next() {
		var app string
		var doc []byte
		if err := rows.Scan(&app, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan graph row: %w", err)
		}
		var g Graph
		if err := json.Unmarshal(doc, &g); err != nil {
			s.log.Warn("Skipping undecodable persisted graph", zap.String("app", app), zap.Error(err))
			continue
		}
		out[app] = &g
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

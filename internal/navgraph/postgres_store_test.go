// File: internal/navgraph/postgres_store_test.go
package navgraph

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectPing()
	store, err := NewPostgresStore(context.Background(), mock, nil)
	require.NoError(t, err)
	return store, mock
}

func TestNewPostgresStorePingFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	_, err = NewPostgresStore(context.Background(), mock, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping database")
}

func TestPostgresStorePut(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	g, err := Parse("com.test.app", []byte(sampleDoc))
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO nav_graphs").
		WithArgs("com.test.app", g.Version, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Put(context.Background(), g))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGet(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT document FROM nav_graphs").
			WithArgs("com.test.app").
			WillReturnRows(pgxmock.NewRows([]string{"document"}).AddRow([]byte(sampleDoc)))

		g, ok, err := store.Get(context.Background(), "com.test.app")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Len(t, g.Nodes, 4)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT document FROM nav_graphs").
			WithArgs("com.missing.app").
			WillReturnError(pgx.ErrNoRows)

		g, ok, err := store.Get(context.Background(), "com.missing.app")
		require.NoError(t, err, "a missing graph is not an error")
		assert.False(t, ok)
		assert.Nil(t, g)
	})

	t.Run("undecodable document", func(t *testing.T) {
		mock.ExpectQuery("SELECT document FROM nav_graphs").
			WithArgs("com.broken.app").
			WillReturnRows(pgxmock.NewRows([]string{"document"}).AddRow([]byte(`{"nodes": 42}`)))

		_, _, err := store.Get(context.Background(), "com.broken.app")
		require.Error(t, err)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreDelete(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM nav_graphs").
		WithArgs("com.test.app").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.Delete(context.Background(), "com.test.app"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLoadAll(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT app, document FROM nav_graphs").
		WillReturnRows(pgxmock.NewRows([]string{"app", "document"}).
			AddRow("com.test.app", []byte(sampleDoc)).
			AddRow("com.broken.app", []byte(`{"nodes": 42}`)).
			AddRow("com.other.app", []byte(`{"nodes": {"home": {"edges": []}}}`)))

	graphs, err := store.LoadAll(context.Background())
	require.NoError(t, err)

	// The undecodable row is skipped, not fatal.
	require.Len(t, graphs, 2)
	assert.Contains(t, graphs, "com.test.app")
	assert.Contains(t, graphs, "com.other.app")
	require.NoError(t, mock.ExpectationsWereMet())
}

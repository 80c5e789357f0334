// File: internal/solver/fallback_test.go
package solver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

func staticSolver(path [][2]int, ok bool, err error) schemas.SolverFunc {
	return func(ctx context.Context, grid []int, width, height int) ([][2]int, bool, error) {
		return path, ok, err
	}
}

func TestFallbackPrefersPrimary(t *testing.T) {
	t.Parallel()

	primary := staticSolver([][2]int{{0, 0}, {0, 1}}, true, nil)
	secondary := staticSolver([][2]int{{9, 9}}, true, nil)

	path, ok, err := NewFallback(primary, secondary, nil).Solve(context.Background(), nil, 2, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, [][2]int{{0, 0}, {0, 1}}, path)
}

func TestFallbackOnPrimaryError(t *testing.T) {
	t.Parallel()

	primary := staticSolver(nil, false, errors.New("oracle unreachable"))
	secondary := staticSolver([][2]int{{1, 1}, {1, 2}}, true, nil)

	path, ok, err := NewFallback(primary, secondary, nil).Solve(context.Background(), nil, 2, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, [][2]int{{1, 1}, {1, 2}}, path)
}

func TestFallbackOnPrimaryNoPath(t *testing.T) {
	t.Parallel()

	primary := staticSolver(nil, false, nil)
	secondary := staticSolver([][2]int{{2, 2}}, true, nil)

	path, ok, err := NewFallback(primary, secondary, nil).Solve(context.Background(), nil, 1, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, [][2]int{{2, 2}}, path)
}

func TestFallbackPropagatesSecondaryResult(t *testing.T) {
	t.Parallel()

	primary := staticSolver(nil, false, errors.New("down"))
	secondary := staticSolver(nil, false, nil)

	path, ok, err := NewFallback(primary, secondary, nil).Solve(context.Background(), nil, 1, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, path)
}

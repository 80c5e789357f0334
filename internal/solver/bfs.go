// File: internal/solver/bfs.go
// Description: Reference breadth-first solver for spatial fields. It is the
// correctness baseline for any oracle implementation and the designated
// fallback whenever the neural oracle is unavailable or finds no path.

package solver

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/maze"
)

// directions is the fixed expansion order: up, down, left, right. The order
// is part of the reference behavior (deterministic tie-break).
var directions = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// BFS is the exact-search grid solver.
type BFS struct {
	log *zap.Logger
}

var _ schemas.Solver = (*BFS)(nil)

// NewBFS creates the reference solver. A nil logger is replaced with a no-op.
func NewBFS(logger *zap.Logger) *BFS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BFS{log: logger.Named("bfs_solver")}
}

// Solve finds the first shortest path (by hop count) between the START and
// TARGET cells. WALL cells are impassable; movement is 4-directional. A grid
// without both markers, or without a route, yields ok=false and no error.
func (b *BFS) Solve(ctx context.Context, grid []int, width, height int) ([][2]int, bool, error) {
	if width <= 0 || height <= 0 || len(grid) < width*height {
		return nil, false, nil
	}

	at := func(r, c int) int { return grid[r*width+c] }

	start, target := [2]int{-1, -1}, [2]int{-1, -1}
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			switch at(r, c) {
			case maze.Start:
				start = [2]int{r, c}
			case maze.Target:
				target = [2]int{r, c}
			}
		}
	}
	if start[0] < 0 || target[0] < 0 {
		b.log.Debug("Grid has no start or target cell")
		return nil, false, nil
	}

	type entry struct {
		cell [2]int
		prev int // index into the visit log, -1 for the start
	}
	log := []entry{{cell: start, prev: -1}}
	visited := make(map[[2]int]bool, width*height)
	visited[start] = true

	for head := 0; head < len(log); head++ {
		cur := log[head]
		if cur.cell == target {
			// Rebuild the path from the visit log.
			var rev [][2]int
			for i := head; i >= 0; i = log[i].prev {
				rev = append(rev, log[i].cell)
			}
			path := make([][2]int, len(rev))
			for i, cell := range rev {
				path[len(rev)-1-i] = cell
			}
			return path, true, nil
		}

		for _, d := range directions {
			nr, nc := cur.cell[0]+d[0], cur.cell[1]+d[1]
			if nr < 0 || nr >= height || nc < 0 || nc >= width {
				continue
			}
			next := [2]int{nr, nc}
			if visited[next] || at(nr, nc) == maze.Wall {
				continue
			}
			visited[next] = true
			log = append(log, entry{cell: next, prev: head})
		}
	}
	return nil, false, nil
}

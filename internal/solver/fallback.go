// File: internal/solver/fallback.go
// Description: Solver combinator that tries a primary solver and falls back
// to a secondary one on error or when the primary finds no path.

package solver

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

// Fallback chains two solvers: the primary's answer wins unless it errors or
// finds no usable path, in which case the secondary runs. The intended use
// is a neural oracle backed by the exact BFS reference.
type Fallback struct {
	primary   schemas.Solver
	secondary schemas.Solver
	log       *zap.Logger
}

var _ schemas.Solver = (*Fallback)(nil)

// NewFallback wires the chain.
func NewFallback(primary, secondary schemas.Solver, logger *zap.Logger) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{
		primary:   primary,
		secondary: secondary,
		log:       logger.Named("fallback_solver"),
	}
}

// Solve implements schemas.Solver.
func (f *Fallback) Solve(ctx context.Context, grid []int, width, height int) ([][2]int, bool, error) {
	path, ok, err := f.primary.Solve(ctx, grid, width, height)
	if err == nil && ok {
		return path, true, nil
	}
	if err != nil {
		f.log.Warn("primary solver failed, using fallback", zap.Error(err))
	} else {
		f.log.Debug("primary solver found no path, using fallback")
	}
	return f.secondary.Solve(ctx, grid, width, height)
}

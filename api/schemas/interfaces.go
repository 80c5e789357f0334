package schemas

import (
	"context"
)

// -- Capability Contracts --

// Solver is the grid-pathfinding oracle boundary. Grid is a flattened
// width*height sequence of cell tokens (see internal/maze for the
// vocabulary); the returned path is an ordered sequence of [row, col]
// cells. A solver that ran but found no usable path returns ok=false with a
// nil error; err is reserved for transport or infrastructure failures.
// This boundary is shared by the reference BFS solver and the remote neural
// oracle so that either can be swapped in transparently.
//
//go:generate mockery --name Solver --output ../../internal/mocks --outpkg mocks
type Solver interface {
	Solve(ctx context.Context, grid []int, width, height int) (path [][2]int, ok bool, err error)
}

// SolverFunc adapts a plain function to the Solver interface.
type SolverFunc func(ctx context.Context, grid []int, width, height int) ([][2]int, bool, error)

// Solve implements Solver.
func (f SolverFunc) Solve(ctx context.Context, grid []int, width, height int) ([][2]int, bool, error) {
	return f(ctx, grid, width, height)
}

// IntentExtractor turns a raw utterance into a structured Intent. An
// extractor must always return a usable Intent (possibly "unknown" with low
// confidence); err is reserved for infrastructure failures.
type IntentExtractor interface {
	Extract(ctx context.Context, text string) (Intent, error)
	// Ready reports whether the extractor's backing model is available.
	// A non-ready extractor still works through its fallback path.
	Ready() bool
}

// MessageSender is the orchestrator's outbound port to the relay. Send
// serializes and transmits a single message; implementations must be safe
// for use from a single dispatch goroutine plus offline tooling.
type MessageSender interface {
	Send(ctx context.Context, msg any) error
}

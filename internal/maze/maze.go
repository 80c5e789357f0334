// File: internal/maze/maze.go
// Description: Compiles an application navigation graph into a fixed-size
// spatial field solvable by a generic grid-pathfinding oracle. Screens map to
// grid cells, transitions to walkable corridors; the oracle only has to find
// a route between the START and TARGET cells.

package maze

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/internal/navgraph"
)

// Cell token vocabulary. The numeric values are part of the solver contract.
const (
	Wall     = 0 // no transition possible
	Path     = 1 // walkable
	Start    = 2 // current screen
	Target   = 3 // destination screen
	Solution = 4 // solver output, optimal path
	ErrCell  = 5 // solver output, inference error
)

const (
	// GridSize is the fixed field edge length; the field is always
	// GridSize x GridSize regardless of graph size.
	GridSize = 30
	// GridTokens is the flattened field length.
	GridTokens = GridSize * GridSize

	// nodeSpacing is the minimum spacing between placed nodes.
	nodeSpacing = 4
	// border is the inset from the field edge.
	border = 1
)

// ErrNodeNotPlaced reports that a requested endpoint is absent from the
// compiled layout, either unknown to the graph or dropped for lack of room.
var ErrNodeNotPlaced = errors.New("node not placed in field")

// Coord is a (row, col) cell position.
type Coord struct {
	Row int
	Col int
}

// Pair returns the wire form used at the solver boundary.
func (c Coord) Pair() [2]int { return [2]int{c.Row, c.Col} }

// Result is one compiled spatial field plus the node/cell bijection needed
// to decode solver output back onto the graph.
type Result struct {
	Grid    []int
	Grid2D  [][]int
	Width   int
	Height  int
	NodePos map[string]Coord
	PosNode map[Coord]string
	// Dropped lists nodes that could not be placed once the field was
	// exhausted. They are unreachable in this field; callers must handle a
	// required endpoint appearing here.
	Dropped   []string
	StartPos  Coord
	TargetPos Coord
}

// Compiler lays out navigation graphs onto spatial fields.
type Compiler struct {
	log *zap.Logger
}

// NewCompiler creates a Compiler. A nil logger is replaced with a no-op.
func NewCompiler(logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{log: logger.Named("maze_compiler")}
}

// Compile lays out the graph, traces corridors for every traceable edge and
// marks startNode/targetNode. Fails with ErrNodeNotPlaced when either
// endpoint did not make it into the layout.
func (c *Compiler) Compile(g *navgraph.Graph, startNode, targetNode string) (*Result, error) {
	grid := make([][]int, GridSize)
	for i := range grid {
		grid[i] = make([]int, GridSize)
	}

	res := &Result{
		Grid2D:  grid,
		Width:   GridSize,
		Height:  GridSize,
		NodePos: make(map[string]Coord),
		PosNode: make(map[Coord]string),
	}

	c.layoutNodes(g, res)
	c.traceEdges(g, res)

	startPos, ok := res.NodePos[startNode]
	if !ok {
		return nil, fmt.Errorf("start node %q: %w", startNode, ErrNodeNotPlaced)
	}
	targetPos, ok := res.NodePos[targetNode]
	if !ok {
		return nil, fmt.Errorf("target node %q: %w", targetNode, ErrNodeNotPlaced)
	}

	// Single START and single TARGET per field; when start == target the
	// target marking wins.
	grid[startPos.Row][startPos.Col] = Start
	grid[targetPos.Row][targetPos.Col] = Target
	res.StartPos = startPos
	res.TargetPos = targetPos

	res.Grid = make([]int, 0, GridTokens)
	for _, row := range grid {
		res.Grid = append(res.Grid, row...)
	}
	return res, nil
}

// layoutNodes assigns grid positions in breadth-first order from the first
// inserted node, stragglers appended in discovery order. The target shape is
// a roughly square rows x cols arrangement spaced to leave room for
// corridors, inset from the border. Collisions advance by linear probing;
// nodes that cannot be placed are reported in res.Dropped.
func (c *Compiler) layoutNodes(g *navgraph.Graph, res *Result) {
	ids := g.OrderedNodeIDs()
	n := len(ids)
	if n == 0 {
		return
	}

	usable := GridSize - 2*border
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	if cols < 1 {
		cols = 1
	}
	rows := (n + cols - 1) / cols
	if rows < 1 {
		rows = 1
	}

	colSpacing := spacingFor(cols, usable)
	rowSpacing := spacingFor(rows, usable)

	ordered := bfsOrder(g, ids[0])
	placedSet := make(map[string]bool, len(ordered))
	for _, id := range ordered {
		placedSet[id] = true
	}
	for _, id := range ids {
		if !placedSet[id] {
			ordered = append(ordered, id)
		}
	}

	for idx, id := range ordered {
		r := border + 1 + (idx/cols)*rowSpacing
		col := border + 1 + (idx%cols)*colSpacing
		if r > GridSize-border-1 {
			r = GridSize - border - 1
		}
		if col > GridSize-border-1 {
			col = GridSize - border - 1
		}

		dropped := false
		for {
			if _, taken := res.PosNode[Coord{r, col}]; !taken {
				break
			}
			col++
			if col >= GridSize-border {
				col = border + 1
				r++
			}
			if r >= GridSize-border {
				dropped = true
				break
			}
		}
		if dropped {
			res.Dropped = append(res.Dropped, id)
			c.log.Debug("Field exhausted, node dropped", zap.String("node", id))
			continue
		}

		pos := Coord{r, col}
		res.NodePos[id] = pos
		res.PosNode[pos] = id
		res.Grid2D[r][col] = Path
		c.log.Debug("Node placed", zap.String("node", id), zap.Int("row", r), zap.Int("col", col))
	}
}

// spacingFor computes the inter-node spacing for count nodes over the usable
// interior size, clamped so no computed position exceeds the field bounds.
func spacingFor(count, usable int) int {
	spacing := usable / count
	if spacing < nodeSpacing {
		spacing = nodeSpacing
	}
	if count > 1 {
		if max := (usable - 1) / (count - 1); spacing > max {
			spacing = max
		}
	} else {
		spacing = usable / 2
	}
	return spacing
}

// bfsOrder walks the graph breadth-first from seed so related screens land
// near each other in the layout.
func bfsOrder(g *navgraph.Graph, seed string) []string {
	var visited []string
	queue := []string{seed}
	seen := map[string]bool{seed: true}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		visited = append(visited, node)

		for _, n := range g.Neighbors(node) {
			if _, known := g.Nodes[n]; !known {
				continue
			}
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	return visited
}

// traceEdges carves walkable corridors for every real or implicit edge whose
// endpoints both placed. Retracing is idempotent: only WALL cells are
// overwritten.
func (c *Compiler) traceEdges(g *navgraph.Graph, res *Result) {
	type dir struct{ from, to string }
	traced := make(map[dir]bool)

	for _, e := range g.Edges {
		key := dir{e.From, e.To}
		if traced[key] {
			continue
		}
		traced[key] = true
		if e.Bidirectional {
			traced[dir{e.To, e.From}] = true
		}

		from, okFrom := res.NodePos[e.From]
		to, okTo := res.NodePos[e.To]
		if !okFrom || !okTo {
			continue
		}
		traceL(res.Grid2D, from, to)
	}

	for _, id := range g.OrderedNodeIDs() {
		node := g.Nodes[id]
		for _, neighbor := range node.Edges {
			key := dir{id, neighbor}
			if traced[key] {
				continue
			}
			traced[key] = true

			from, okFrom := res.NodePos[id]
			to, okTo := res.NodePos[neighbor]
			if !okFrom || !okTo {
				continue
			}
			traceL(res.Grid2D, from, to)
		}
	}
}

// traceL carves an L-shaped corridor: along the origin row to the
// destination column, then along that column to the destination row.
func traceL(grid [][]int, from, to Coord) {
	cStep := 1
	if to.Col < from.Col {
		cStep = -1
	}
	for col := from.Col; col != to.Col; col += cStep {
		if grid[from.Row][col] == Wall {
			grid[from.Row][col] = Path
		}
	}
	if grid[from.Row][to.Col] == Wall {
		grid[from.Row][to.Col] = Path
	}

	rStep := 1
	if to.Row < from.Row {
		rStep = -1
	}
	for row := from.Row; row != to.Row; row += rStep {
		if grid[row][to.Col] == Wall {
			grid[row][to.Col] = Path
		}
	}
	if grid[to.Row][to.Col] == Wall {
		grid[to.Row][to.Col] = Path
	}
}

// DecodePath maps a solved cell sequence back onto node identifiers,
// collapsing consecutive duplicates (corridor cells between two nodes decode
// to nothing and are skipped).
func DecodePath(cells [][2]int, nodePos map[string]Coord) []string {
	posNode := make(map[Coord]string, len(nodePos))
	for id, pos := range nodePos {
		posNode[pos] = id
	}

	var seq []string
	for _, cell := range cells {
		id, ok := posNode[Coord{cell[0], cell[1]}]
		if !ok {
			continue
		}
		if len(seq) == 0 || seq[len(seq)-1] != id {
			seq = append(seq, id)
		}
	}
	return seq
}

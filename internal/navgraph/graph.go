// File: internal/navgraph/graph.go
// Description: The discovered screen/transition graph for one application.
// Instances are built once by Parse and treated as immutable afterwards; a
// graph_update replaces the whole graph rather than merging into it.

package navgraph

import (
	"fmt"
	"io"
	"sort"

	json "github.com/json-iterator/go"
)

// Action describes how a transition is performed on the device.
type Action struct {
	Type     string            `json:"type,omitempty"`
	Selector map[string]string `json:"selector,omitempty"`
}

// SnapshotElement is one element captured from an accessibility snapshot.
// It is used to synthesize a selector when a transition has no recorded
// action.
type SnapshotElement struct {
	ID          string `json:"id,omitempty"`
	Text        string `json:"text,omitempty"`
	ContentDesc string `json:"content_desc,omitempty"`
	Class       string `json:"class,omitempty"`
}

// Snapshot holds structured UI hints for a screen.
type Snapshot struct {
	KeyElements []SnapshotElement `json:"key_elements,omitempty"`
}

// Node is a screen/state in the navigation graph.
type Node struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Edges    []string `json:"edges"`
	Activity string   `json:"activity,omitempty"`
	Snapshot Snapshot `json:"accessibility_snapshot,omitempty"`
	// Dynamic marks screens whose content varies at runtime; they are
	// excluded from stable-layout assumptions.
	Dynamic bool `json:"dynamic,omitempty"`
}

// Edge is an explicit transition between two screens.
type Edge struct {
	From          string `json:"from"`
	To            string `json:"to"`
	Action        Action `json:"action,omitempty"`
	Weight        int    `json:"weight,omitempty"`
	Bidirectional bool   `json:"bidirectional,omitempty"`
}

// Graph owns the nodes and edges discovered for one application package.
// A transition may appear as an explicit Edge, implicitly in a node's Edges
// list, or both; Neighbors honors each direction at most once.
type Graph struct {
	App     string          `json:"app"`
	Version string          `json:"version"`
	Nodes   map[string]Node `json:"nodes"`
	Edges   []Edge          `json:"edges"`
	// NodeOrder preserves document order from the wire form, since layout
	// seeding depends on insertion order. May be left empty by hand-built
	// graphs; OrderedNodeIDs falls back to sorted IDs.
	NodeOrder []string `json:"nodeOrder,omitempty"`
}

// OrderedNodeIDs returns node IDs in insertion order when known, otherwise
// in sorted order so hand-built graphs still lay out deterministically.
func (g *Graph) OrderedNodeIDs() []string {
	if len(g.NodeOrder) == len(g.Nodes) {
		return g.NodeOrder
	}
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Neighbors returns every node reachable from nodeID in one transition,
// in discovery order, each at most once.
func (g *Graph) Neighbors(nodeID string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, e := range g.Edges {
		if e.From == nodeID {
			add(e.To)
		} else if e.Bidirectional && e.To == nodeID {
			add(e.From)
		}
	}
	if node, ok := g.Nodes[nodeID]; ok {
		for _, id := range node.Edges {
			add(id)
		}
	}
	return out
}

// EdgeBetween finds the explicit edge covering the from/to transition,
// honoring the bidirectional flag. Returns false when the transition exists
// only implicitly via a node's edge list.
func (g *Graph) EdgeBetween(from, to string) (Edge, bool) {
	for _, e := range g.Edges {
		if e.From == from && e.To == to {
			return e, true
		}
		if e.Bidirectional && e.To == from && e.From == to {
			return e, true
		}
	}
	return Edge{}, false
}

// ShortestPath runs a breadth-first search over the graph itself, ignoring
// any spatial embedding. It is the designated fallback when the compiled
// field is unusable or the oracle finds nothing. The returned path includes
// both endpoints; nil means no path exists.
func (g *Graph) ShortestPath(start, target string) []string {
	if _, ok := g.Nodes[start]; !ok {
		return nil
	}
	type entry struct {
		node string
		path []string
	}
	queue := []entry{{node: start, path: []string{start}}}
	visited := map[string]bool{start: true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.node == target {
			return cur.path
		}
		for _, n := range g.Neighbors(cur.node) {
			if _, known := g.Nodes[n]; !known {
				continue
			}
			if visited[n] {
				continue
			}
			visited[n] = true
			next := make([]string, len(cur.path), len(cur.path)+1)
			copy(next, cur.path)
			queue = append(queue, entry{node: n, path: append(next, n)})
		}
	}
	return nil
}

// wireGraph matches the JSON structure sent by the device-side explorer.
// Nodes stays raw so document order can be preserved while decoding.
type wireGraph struct {
	App     string          `json:"app"`
	Version string          `json:"version"`
	Nodes   json.RawMessage `json:"nodes"`
	Edges   []Edge          `json:"edges"`
}

type wireNode struct {
	Label    string   `json:"label"`
	Edges    []string `json:"edges"`
	Activity string   `json:"activity"`
	Snapshot Snapshot `json:"accessibility_snapshot"`
	Dynamic  bool     `json:"dynamic"`
}

// Parse decodes a navigation graph from its wire form. The app argument
// wins over any app field embedded in the document. Edges referencing
// unknown nodes are kept (they are skippable during compilation, not a hard
// error).
func Parse(app string, data []byte) (*Graph, error) {
	var w wireGraph
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode navigation graph: %w", err)
	}
	if app == "" {
		app = w.App
	}
	if app == "" {
		app = "unknown"
	}
	version := w.Version
	if version == "" {
		version = "1.0.0"
	}

	g := &Graph{
		App:     app,
		Version: version,
		Nodes:   make(map[string]Node),
		Edges:   w.Edges,
	}

	if len(w.Nodes) > 0 {
		iter := json.ConfigCompatibleWithStandardLibrary.BorrowIterator(w.Nodes)
		defer json.ConfigCompatibleWithStandardLibrary.ReturnIterator(iter)

		iter.ReadObjectCB(func(it *json.Iterator, id string) bool {
			var wn wireNode
			it.ReadVal(&wn)
			label := wn.Label
			if label == "" {
				label = id
			}
			g.Nodes[id] = Node{
				ID:       id,
				Label:    label,
				Edges:    wn.Edges,
				Activity: wn.Activity,
				Snapshot: wn.Snapshot,
				Dynamic:  wn.Dynamic,
			}
			g.NodeOrder = append(g.NodeOrder, id)
			return true
		})
		if iter.Error != nil && iter.Error != io.EOF {
			return nil, fmt.Errorf("failed to decode graph nodes: %w", iter.Error)
		}
	}
	return g, nil
}

package dddg

import (
	"sort"
	"strconv"

	"github.com/sarchlab/aladdin/source"
)

// LoopBound is one entry of Program.LoopBounds: a branch node_id and the
// loop depth the branch transitions control flow into.
type LoopBound struct {
	NodeID         NodeID
	TargetLoopDepth int
}

// Program owns the node table, the graph, the labelmap, the
// inline-labelmap, the loop-bounds vector, and the call-argument mapping.
// It is created empty, filled by the DDDG builder, mutated in place by the
// optimization passes (edges added/removed, microops rewritten, nodes
// clear_vertex-isolated but node ids never reused), and read-only during
// scheduling.
type Program struct {
	Manager *source.Manager

	// nodes, in node_id order. A slice indexed by NodeID, not a map: ids
	// are dense by construction, and iteration in emission order is
	// required by several passes.
	nodes []*ExecNode

	Graph *Graph

	// LabelMap: line number -> every UniqueLabel ever observed at that
	// line (a multimap: line collisions across inlined files).
	LabelMap map[int][]source.UniqueLabel

	// InlineLabelMap: an inlined call site's UniqueLabel -> the original
	// (pre-inlining) UniqueLabel it was cloned from.
	InlineLabelMap map[source.UniqueLabel]source.UniqueLabel

	// LoopBounds is the ordered sequence LoopUnrolling produces, strictly
	// increasing in node_id once that pass has run (spec.md §8 invariant 3).
	LoopBounds []LoopBound

	CallArgMap *source.CallArgMap

	// BaseAddresses maps an array name to its virtual base address, as
	// recorded by Builder from each Alloca result and each GetElementPtr
	// base operand (under its call_arg_map resolved name). resource.NewPool
	// reads it; the passes neither read nor write it.
	BaseAddresses map[string]uint64
}

// NewProgram returns an empty Program bound to mgr's id space.
func NewProgram(mgr *source.Manager) *Program {
	return &Program{
		Manager:        mgr,
		Graph:          NewGraph(),
		LabelMap:       make(map[int][]source.UniqueLabel),
		InlineLabelMap: make(map[source.UniqueLabel]source.UniqueLabel),
		CallArgMap:     source.NewCallArgMap(),
		BaseAddresses:  make(map[string]uint64),
	}
}

// AddNode appends a freshly built ExecNode and registers it with the
// graph. Callers must add nodes in increasing NodeID order (the DDDG
// builder always does, since node_ids are assigned by emission order).
func (p *Program) AddNode(n *ExecNode) {
	if int(n.NodeID) != len(p.nodes) {
		panic("dddg: AddNode out of order: expected node_id " +
			strconv.Itoa(len(p.nodes)) + ", got " + strconv.Itoa(int(n.NodeID)))
	}
	p.nodes = append(p.nodes, n)
	p.Graph.AddVertex(n.NodeID)
}

// Node returns the ExecNode by id. Panics on an out-of-range id -- a
// caller holding an id not returned by this Program is a programmer bug.
func (p *Program) Node(id NodeID) *ExecNode { return p.nodes[id] }

// NumNodes is the number of nodes ever added, including isolated ones.
func (p *Program) NumNodes() int { return len(p.nodes) }

// Nodes iterates every node in node_id (emission) order -- the order
// required by loop unrolling, register accounting, and scheduler boot.
func (p *Program) Nodes() []*ExecNode { return p.nodes }

// AddLabel records a `function/label line_number` labelmap entry.
func (p *Program) AddLabel(line int, label source.UniqueLabel) {
	p.LabelMap[line] = append(p.LabelMap[line], label)
}

// NextNode returns the node with the smallest node_id greater than id, or
// nil if id is the last node. Several passes (loop unrolling's
// target-depth lookahead) need to peek at "whatever comes right after"
// without assuming every id in between exists as a live vertex.
func (p *Program) NextNode(id NodeID) *ExecNode {
	if int(id)+1 >= len(p.nodes) {
		return nil
	}
	return p.nodes[id+1]
}

// FindLoopBoundaries returns every (first, second) branch-node pair
// bounding one iteration of label, in node_id order. Each pair is a
// LoopBounds entry for label immediately followed by the next one for the
// same label.
func (p *Program) FindLoopBoundaries(label source.UniqueLabel) [][2]*ExecNode {
	var pairs [][2]*ExecNode
	var prev *ExecNode
	for _, b := range p.LoopBounds {
		n := p.Node(b.NodeID)
		if !p.nodeHasLabel(n, label) {
			continue
		}
		if prev != nil {
			pairs = append(pairs, [2]*ExecNode{prev, n})
			prev = nil
		} else {
			prev = n
		}
	}
	return pairs
}

func (p *Program) nodeHasLabel(n *ExecNode, label source.UniqueLabel) bool {
	for _, l := range p.LabelMap[n.LineNumber] {
		if l == label {
			return true
		}
	}
	return false
}

// FindFunctionBoundaries returns every (call, ret) node pair for fn, in
// call order. A call whose target cannot be resolved to fn is skipped.
func (p *Program) FindFunctionBoundaries(fn source.FunctionID) [][2]*ExecNode {
	var bounds [][2]*ExecNode
	var open *ExecNode
	for _, n := range p.nodes {
		if n.Microop.IsCallOp() && p.NextNode(n.NodeID) != nil && p.NextNode(n.NodeID).Function == fn {
			open = n
		}
		if n.Microop.IsRetOp() && n.Function == fn {
			start := open
			if start == nil && len(p.nodes) > 0 {
				start = p.nodes[0]
			}
			if start != nil {
				bounds = append(bounds, [2]*ExecNode{start, n})
			}
			open = nil
		}
	}
	return bounds
}

// ShortestDistance performs a BFS from `from` to `to` over non-control
// edges and returns the number of hops, or -1 if unreachable. Used by
// the tree-height-reduction property test (spec.md §8's scenario #2:
// "shortest-path between sum nodes of adjacent iterations").
func (p *Program) ShortestDistance(from, to NodeID) int {
	type item struct {
		node NodeID
		dist int
	}
	queue := []item{{from, 0}}
	visited := map[NodeID]bool{from: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range p.Graph.OutEdges(cur.node) {
			if e.Tag == ControlEdge {
				continue
			}
			if e.To == to {
				return cur.dist + 1
			}
			if !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, item{e.To, cur.dist + 1})
			}
		}
	}
	return -1
}

// RegionOf returns the [start, end) node_id half-open interval of the
// loop_bounds region id falls in, per the glossary's definition of
// "region": the span between two adjacent loop_bounds entries.
func (p *Program) RegionOf(id NodeID) (NodeID, NodeID) {
	sorted := append([]LoopBound{}, p.LoopBounds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].NodeID < sorted[j].NodeID })

	start := NodeID(0)
	for _, b := range sorted {
		if b.NodeID > id {
			return start, b.NodeID
		}
		start = b.NodeID
	}
	return start, NodeID(len(p.nodes))
}

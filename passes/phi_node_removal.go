package passes

import (
	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/microop"
)

// PhiNodeRemoval is pass #2 of spec.md §4.2: PHI nodes and type-convert
// nodes exist for static compiler analysis only and carry no scheduling
// cost, so this splices each one out of the graph, reattaching its
// children directly to its nearest non-PHI (for a PHI chain) or
// non-PHI/non-convert (for a convert chain) ancestor. A chain that
// bottoms out with no ancestor at all (the PHI sits at the top of its
// function) is simply dropped along with its children's edges.
func PhiNodeRemoval(p *dddg.Program) {
	nodes := p.Nodes()
	visited := make(map[dddg.NodeID]bool)

	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		if visited[n.NodeID] || !isPhiOrConvert(n.Microop) {
			continue
		}
		visited[n.NodeID] = true

		children := append([]dddg.Edge{}, p.Graph.OutEdges(n.NodeID)...)
		for _, e := range children {
			p.Graph.RemoveEdge(e.From, e.To)
		}
		if len(children) == 0 {
			continue
		}
		if p.Graph.InDegree(n.NodeID) == 0 {
			continue
		}

		chainsThroughPhiOnly := n.Microop == microop.PHI
		ancestor, ok := spliceAncestor(p, n.NodeID, chainsThroughPhiOnly, visited)
		if !ok {
			continue
		}
		for _, e := range children {
			p.Graph.AddEdge(ancestor, e.To, e.Tag, e.Operand)
		}
	}

	CleanLeafNodes(p)
}

func isPhiOrConvert(m microop.Microop) bool {
	return m == microop.PHI || m.IsConvertOp()
}

// spliceAncestor walks n's single parent chain, removing every traversed
// edge, until it finds a parent that is not itself skippable (a PHI, or
// for a convert chain a PHI-or-convert). Returns ok == false if the chain
// runs out before finding one.
func spliceAncestor(p *dddg.Program, n dddg.NodeID, phiOnly bool, visited map[dddg.NodeID]bool) (dddg.NodeID, bool) {
	skip := func(m microop.Microop) bool {
		if phiOnly {
			return m == microop.PHI
		}
		return isPhiOrConvert(m)
	}

	cur := n
	for {
		parents := p.Graph.Parents(cur)
		if len(parents) == 0 {
			return 0, false
		}
		parentID := parents[0]
		parent := p.Node(parentID)
		p.Graph.RemoveEdge(parentID, cur)
		if !skip(parent.Microop) {
			return parentID, true
		}
		visited[parentID] = true
		cur = parentID
	}
}

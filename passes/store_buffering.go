package passes

import (
	"github.com/sarchlab/aladdin/dddg"
)

// StoreBuffering is pass #12 of spec.md §4.2: within one loop_bounds
// region, a store that is immediately re-read by a load to the same
// address later in the *same* region never needs to round-trip through
// memory -- the load is redundant with the value the store is already
// writing. Each such load is isolated and its children rewired to the
// node that produced the stored value (the store's operand-1 parent).
func StoreBuffering(p *dddg.Program) {
	bounds := sortedLoopBounds(p)
	if len(bounds) <= 2 {
		return
	}

	nodes := p.Nodes()
	idx := 0
	for _, b := range bounds {
		for idx < len(nodes) && nodes[idx].NodeID < b.NodeID {
			n := nodes[idx]
			idx++
			degree := p.Graph.InDegree(n.NodeID) + p.Graph.OutDegree(n.NodeID)
			if degree == 0 || !n.Microop.IsStoreOp() || n.DynamicMemOp {
				continue
			}

			var loadChildren []dddg.NodeID
			for _, e := range p.Graph.OutEdges(n.NodeID) {
				child := p.Node(e.To)
				if !child.Microop.IsLoadOp() || child.DynamicMemOp || child.NodeID >= b.NodeID {
					continue
				}
				loadChildren = append(loadChildren, child.NodeID)
			}
			if len(loadChildren) == 0 {
				continue
			}

			var valueParent dddg.NodeID
			found := false
			for _, e := range p.Graph.InEdges(n.NodeID) {
				if e.Operand == 1 {
					valueParent = e.From
					found = true
					break
				}
			}
			if !found {
				continue
			}

			for _, loadID := range loadChildren {
				for _, e := range p.Graph.OutEdges(loadID) {
					p.Graph.AddEdge(valueParent, e.To, e.Tag, e.Operand)
				}
				p.Graph.ClearVertex(loadID)
			}
		}
	}
	CleanLeafNodes(p)
}

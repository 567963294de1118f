package passes

import (
	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/microop"
)

// RepeatedStoreRemoval is pass #13 of spec.md §4.2: walked backward, within
// one loop_bounds region, a store to an address that some later (in
// program order, so earlier in this backward walk) store in the same
// region will overwrite before anything reads it is dead. Such a store
// degrades to a SilentStore -- it keeps its node (and any control
// dependence on it) but no longer contends for a memory port -- whenever
// it has no non-control children of its own, i.e. nothing downstream of
// it in the same region ever read the value it wrote.
func RepeatedStoreRemoval(p *dddg.Program, hasUnrolling bool) {
	bounds := sortedLoopBounds(p)
	if !hasUnrolling && len(bounds) <= 2 {
		return
	}
	if len(bounds) == 0 {
		return
	}

	nodes := p.Nodes()
	boundIdx := len(bounds) - 1
	if boundIdx > 0 {
		boundIdx--
	}

	for i := len(nodes) - 1; i >= 0; {
		addrStore := map[uint64]dddg.NodeID{}
		lowerBound := bounds[boundIdx].NodeID

		for i >= 0 && nodes[i].NodeID >= lowerBound {
			n := nodes[i]
			i--
			degree := p.Graph.InDegree(n.NodeID) + p.Graph.OutDegree(n.NodeID)
			if degree == 0 || !n.Microop.IsStoreOp() || n.Mem == nil {
				continue
			}
			addr := n.Mem.Vaddr
			if _, seen := addrStore[addr]; !seen {
				addrStore[addr] = n.NodeID
				continue
			}
			if n.DynamicMemOp {
				continue
			}
			realChildren := 0
			for _, e := range p.Graph.OutEdges(n.NodeID) {
				if e.Tag != dddg.ControlEdge {
					realChildren++
				}
			}
			if realChildren == 0 {
				n.Microop = microop.SilentStore
			}
		}

		if boundIdx == 0 {
			break
		}
		boundIdx--
	}
	CleanLeafNodes(p)
}

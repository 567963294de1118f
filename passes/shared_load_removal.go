package passes

import (
	"sort"

	"github.com/sarchlab/aladdin/config"
	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/microop"
)

// sortedLoopBounds returns p.LoopBounds sorted ascending by NodeID --
// several region-scoped passes (SharedLoadRemoval, StoreBuffering,
// RepeatedStoreRemoval) walk the trace one loop_bounds-delimited region at
// a time and need that order guaranteed regardless of the order
// LoopUnrolling appended entries in.
func sortedLoopBounds(p *dddg.Program) []dddg.LoopBound {
	bounds := append([]dddg.LoopBound{}, p.LoopBounds...)
	sort.Slice(bounds, func(i, j int) bool { return bounds[i].NodeID < bounds[j].NodeID })
	return bounds
}

// SharedLoadRemoval is pass #11 of spec.md §4.2 (named load_buffering.cpp in
// the reference implementation): within one loop_bounds region, a second
// load from an address already loaded earlier in the same region -- with no
// intervening store to that address -- is redundant. The repeat load
// degrades to a Move (so its own node still exists for any side-effecting
// use) and every one of its children is rewired to the original load
// instead.
func SharedLoadRemoval(p *dddg.Program, cfg *config.UserConfig) {
	bounds := sortedLoopBounds(p)
	if len(cfg.Unrolling) == 0 && len(bounds) <= 2 {
		return
	}

	nodes := p.Nodes()
	idx := 0
	for _, b := range bounds {
		addrLoaded := map[uint64]*dddg.ExecNode{}
		for idx < len(nodes) && nodes[idx].NodeID < b.NodeID {
			n := nodes[idx]
			idx++
			degree := p.Graph.InDegree(n.NodeID) + p.Graph.OutDegree(n.NodeID)
			if degree == 0 || !n.Microop.IsMemoryOp() || n.Mem == nil {
				continue
			}
			addr := n.Mem.Vaddr
			prev, seen := addrLoaded[addr]

			if n.Microop.IsStoreOp() && seen {
				delete(addrLoaded, addr)
				continue
			}
			if !n.Microop.IsLoadOp() {
				continue
			}
			if !seen {
				addrLoaded[addr] = n
				continue
			}
			if n.DynamicMemOp {
				continue
			}
			n.Microop = microop.Move
			for _, e := range append([]dddg.Edge{}, p.Graph.OutEdges(n.NodeID)...) {
				if !p.Graph.HasEdge(prev.NodeID, e.To, e.Tag) {
					p.Graph.AddEdge(prev.NodeID, e.To, e.Tag, e.Operand)
				}
			}
			p.Graph.ClearVertex(n.NodeID)
		}
	}
	CleanLeafNodes(p)
}

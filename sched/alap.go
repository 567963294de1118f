package sched

// compress is spec.md §4.3's rescheduleNodesWhenNeeded: walked bottom-up
// (reverse node_id order is a valid reverse-topological order here, the
// same invariant passes/common.go's descending-NodeID walks rely on,
// since every edge u->v in the final graph has u.NodeID < v.NodeID), push
// each eligible node's complete cycle as late as its children allow,
// shifting its start cycle back by its own FU latency to match. Memory,
// DMA, and control nodes keep their ASAP cycles to preserve the visible
// ordering guarantees spec.md §4.3 makes for them.
func (s *Scheduler) compress() {
	nodes := s.program.Nodes()
	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		if n.Isolated {
			continue
		}
		if n.Microop.IsMemoryOp() || n.Microop.IsDMAOp() || n.Microop.IsControlOp() {
			continue
		}

		minChildStart := -1
		for _, childID := range s.program.Graph.Children(n.NodeID) {
			cs := s.program.Node(childID).StartCycle
			if minChildStart == -1 || cs < minChildStart {
				minChildStart = cs
			}
		}
		if minChildStart == -1 {
			continue // nothing downstream constrains it; ASAP cycle stands
		}

		newComplete := minChildStart - 1
		if newComplete < n.CompleteCycle {
			continue // ASAP is already at least as tight; never move earlier
		}

		lat := s.latency(n)
		newStart := newComplete - maxInt(lat-1, 0)
		if newStart < n.StartCycle {
			continue
		}

		n.StartCycle = newStart
		n.CompleteCycle = newComplete
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

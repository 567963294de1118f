package passes

import (
	"testing"

	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/microop"
)

// buildLeftLeaningChain wires L1+L2=t1; t1+L3=t2; t2+L4=root; root is
// consumed by a Store so it survives CleanLeafNodes. This is the
// depth-3 left-leaning shape TreeHeightReduction should rebalance to
// depth 2.
func buildLeftLeaningChain() *dddg.Program {
	p := newTestProgram(8, microop.Load) // 0..3: L1..L4
	p.Node(4).Microop = microop.Add      // t1 = L1 + L2
	p.Node(5).Microop = microop.Add      // t2 = t1 + L3
	p.Node(6).Microop = microop.Add      // root = t2 + L4
	p.Node(7).Microop = microop.Store
	p.Node(7).Mem = &dddg.MemAccess{Vaddr: 0x10}

	p.Graph.AddEdge(0, 4, dddg.DataOperand, 1)
	p.Graph.AddEdge(1, 4, dddg.DataOperand, 2)
	p.Graph.AddEdge(4, 5, dddg.DataOperand, 1)
	p.Graph.AddEdge(2, 5, dddg.DataOperand, 2)
	p.Graph.AddEdge(5, 6, dddg.DataOperand, 1)
	p.Graph.AddEdge(3, 6, dddg.DataOperand, 2)
	p.Graph.AddEdge(6, 7, dddg.DataOperand, 1)

	// Two regions, neither boundary landing on any of nodes 0-7, so the
	// whole chain sits in one region -- the guard TreeHeightReduction
	// needs (len(bounds) > 2) without splitting the chain across regions.
	p.LoopBounds = []dddg.LoopBound{{NodeID: 8}, {NodeID: 16}, {NodeID: 24}}
	return p
}

func TestTreeHeightReductionRebalancesChain(t *testing.T) {
	p := buildLeftLeaningChain()

	TreeHeightReduction(p)

	if !p.Graph.HasEdge(0, 4, dddg.DataOperand) || !p.Graph.HasEdge(1, 4, dddg.DataOperand) {
		t.Errorf("expected L1 and L2 to still feed the first combine node")
	}
	if !p.Graph.HasEdge(2, 5, dddg.DataOperand) || !p.Graph.HasEdge(3, 5, dddg.DataOperand) {
		t.Errorf("expected L3 and L4 paired together under the rebuilt tree, got in-edges %v", p.Graph.InEdges(5))
	}
	if !p.Graph.HasEdge(4, 6, dddg.DataOperand) || !p.Graph.HasEdge(5, 6, dddg.DataOperand) {
		t.Errorf("expected both combine nodes to feed the root directly, got in-edges %v", p.Graph.InEdges(6))
	}
	if p.Graph.HasEdge(4, 5, dddg.DataOperand) {
		t.Errorf("the old left-leaning t1->t2 edge should be gone")
	}
	if p.Graph.HasEdge(3, 6, dddg.DataOperand) {
		t.Errorf("the old L4->root edge should be gone (L4 now feeds the rebuilt t2, not root)")
	}
}

func TestTreeHeightReductionNoOpWithSingleRegion(t *testing.T) {
	p := buildLeftLeaningChain()
	p.LoopBounds = []dddg.LoopBound{{NodeID: 0}, {NodeID: 8}}

	TreeHeightReduction(p)

	if !p.Graph.HasEdge(4, 5, dddg.DataOperand) {
		t.Errorf("with only one region (<=2 loop_bounds entries) the chain should be untouched")
	}
}

package passes

import (
	"testing"

	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/microop"
)

// buildStoreBufferingFixture wires a value producer (0) into a store (1)
// that has a same-region load child (2), which itself feeds a consumer
// (3). Three loop_bounds entries are required: StoreBuffering is a no-op
// with only a single region (len(bounds) <= 2).
func buildStoreBufferingFixture(t *testing.T) *dddg.Program {
	t.Helper()
	p := newTestProgram(5, microop.Add)
	p.Node(1).Microop = microop.Store
	p.Node(2).Microop = microop.Load
	p.Node(3).Microop = microop.Store
	p.Node(3).Mem = &dddg.MemAccess{Vaddr: 0x999}
	p.Node(4).Microop = microop.Br

	p.Graph.AddEdge(0, 1, dddg.DataOperand, 1)
	p.Graph.AddEdge(1, 2, dddg.MemoryEdge, -1)
	p.Graph.AddEdge(2, 3, dddg.DataOperand, 1)

	p.LoopBounds = []dddg.LoopBound{{NodeID: 0}, {NodeID: 4}, {NodeID: 5}}
	return p
}

func TestStoreBufferingReparentsLoadToValueProducer(t *testing.T) {
	p := buildStoreBufferingFixture(t)

	StoreBuffering(p)

	if !p.Graph.HasEdge(0, 3, dddg.DataOperand) {
		t.Fatalf("expected the load's child reparented onto the store's value-producing parent")
	}
	if p.Graph.InDegree(2) != 0 || p.Graph.OutDegree(2) != 0 {
		t.Errorf("the buffered load should end up isolated")
	}
}

func TestStoreBufferingNoOpWithSingleRegion(t *testing.T) {
	p := buildStoreBufferingFixture(t)
	p.LoopBounds = []dddg.LoopBound{{NodeID: 0}, {NodeID: 5}}

	StoreBuffering(p)

	if !p.Graph.HasEdge(1, 2, dddg.MemoryEdge) {
		t.Errorf("with only one region (<=2 loop_bounds entries) StoreBuffering must not rewrite anything")
	}
}

func TestStoreBufferingSkipsDynamicMemOpStore(t *testing.T) {
	p := buildStoreBufferingFixture(t)
	p.Node(1).DynamicMemOp = true

	StoreBuffering(p)

	if !p.Graph.HasEdge(1, 2, dddg.MemoryEdge) {
		t.Errorf("a dynamic_mem_op store must not be buffered")
	}
}

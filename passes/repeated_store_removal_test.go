package passes

import (
	"testing"

	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/microop"
)

// buildRepeatedStoreFixture wires two value producers into two stores at
// the same address, later (node3, higher NodeID) after earlier (node1):
// in program order storeA executes, then gets clobbered by storeB before
// anything reads it back.
func buildRepeatedStoreFixture() *dddg.Program {
	p := newTestProgram(4, microop.Add)
	p.Node(1).Microop = microop.Store
	p.Node(1).Mem = &dddg.MemAccess{Vaddr: 0x100}
	p.Node(3).Microop = microop.Store
	p.Node(3).Mem = &dddg.MemAccess{Vaddr: 0x100}

	p.Graph.AddEdge(0, 1, dddg.DataOperand, 1)
	p.Graph.AddEdge(2, 3, dddg.DataOperand, 1)

	p.LoopBounds = []dddg.LoopBound{{NodeID: 0}, {NodeID: 4}}
	return p
}

func TestRepeatedStoreRemovalSilencesDeadStore(t *testing.T) {
	p := buildRepeatedStoreFixture()

	RepeatedStoreRemoval(p, true)

	if p.Node(1).Microop != microop.SilentStore {
		t.Errorf("storeA (clobbered by storeB before any read) should degrade to SilentStore, got %v", p.Node(1).Microop)
	}
	if p.Node(3).Microop != microop.Store {
		t.Errorf("storeB (nothing stores to its address afterward) should be left alone, got %v", p.Node(3).Microop)
	}
}

func TestRepeatedStoreRemovalKeepsStoreWithRealChild(t *testing.T) {
	p := buildRepeatedStoreFixture()
	p.Node(1).Microop = microop.Store
	p.Graph.AddEdge(1, 2, dddg.DataOperand, 1) // storeA now has a real (non-control) child

	RepeatedStoreRemoval(p, true)

	if p.Node(1).Microop != microop.Store {
		t.Errorf("a clobbered store with a surviving real child must not be silenced, got %v", p.Node(1).Microop)
	}
}

func TestRepeatedStoreRemovalSkipsDynamicMemOp(t *testing.T) {
	p := buildRepeatedStoreFixture()
	p.Node(1).DynamicMemOp = true

	RepeatedStoreRemoval(p, true)

	if p.Node(1).Microop != microop.Store {
		t.Errorf("a dynamic_mem_op store must never be silenced, got %v", p.Node(1).Microop)
	}
}

func TestRepeatedStoreRemovalNoOpWithoutUnrollingOrRegions(t *testing.T) {
	p := buildRepeatedStoreFixture()
	p.LoopBounds = nil

	RepeatedStoreRemoval(p, false)

	if p.Node(1).Microop != microop.Store {
		t.Errorf("with no loop_bounds and hasUnrolling false, nothing should be rewritten")
	}
}

package report

import (
	"testing"

	"github.com/sarchlab/aladdin/config"
	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/microop"
	"github.com/sarchlab/aladdin/resource"
	"github.com/sarchlab/aladdin/sched"
	"github.com/sarchlab/aladdin/source"
)

// buildAssembleFixture wires Load0, Load1 (array "a") -> Add2 (FMul,
// function "kernel") -> Store3 (array "a"), so Assemble has a load, a
// store, and an FP-FU op to bucket, plus a register edge to count.
func buildAssembleFixture(t *testing.T) (*dddg.Program, *resource.Pool) {
	t.Helper()
	mgr := source.NewManager()
	p := dddg.NewProgram(mgr)
	fn := mgr.InternFunction("kernel")

	load0 := dddg.NewExecNode(0, microop.Load)
	load0.Function = fn
	load0.ArrayLabel = "a"
	load0.Mem = &dddg.MemAccess{Vaddr: 0x10, SizeBytes: 4}
	p.AddNode(load0)

	load1 := dddg.NewExecNode(1, microop.Load)
	load1.Function = fn
	load1.ArrayLabel = "a"
	load1.Mem = &dddg.MemAccess{Vaddr: 0x14, SizeBytes: 4}
	p.AddNode(load1)

	mul := dddg.NewExecNode(2, microop.FMul)
	mul.Function = fn
	p.AddNode(mul)

	store := dddg.NewExecNode(3, microop.Store)
	store.Function = fn
	store.ArrayLabel = "a"
	store.Mem = &dddg.MemAccess{Vaddr: 0x18, SizeBytes: 4}
	p.AddNode(store)

	p.Graph.AddEdge(0, 2, dddg.DataOperand, 1)
	p.Graph.AddEdge(1, 2, dddg.DataOperand, 2)
	p.Graph.AddEdge(2, 3, dddg.DataOperand, 1)

	cfg := config.New()
	cfg.ScratchpadPorts = 2
	cfg.Partition["a"] = config.PartitionEntry{MemoryType: config.Spad, PartitionType: config.NonePartition, ArraySize: 64, WordSize: 4}
	pool := resource.NewPool(cfg, map[string]uint64{"a": 0x10})
	return p, pool
}

func TestAssembleCountsLoadsStoresAndFUCategoryPerFunction(t *testing.T) {
	p, pool := buildAssembleFixture(t)
	s := sched.NewStandalone(p, pool, sched.DefaultMemoryModel())
	s.RunToCompletion()

	stats := Assemble(p, s)

	loadCycle := p.Node(0).StartCycle
	if stats.PerCycle[loadCycle].PartitionLoads["a"] != 2 {
		t.Errorf("expected 2 loads of array a at cycle %d, got %d", loadCycle, stats.PerCycle[loadCycle].PartitionLoads["a"])
	}

	storeCycle := p.Node(3).StartCycle
	if stats.PerCycle[storeCycle].PartitionStores["a"] != 1 {
		t.Errorf("expected 1 store of array a at cycle %d, got %d", storeCycle, stats.PerCycle[storeCycle].PartitionStores["a"])
	}

	mulCycle := p.Node(2).StartCycle
	if stats.PerCycle[mulCycle].FUCounts["kernel"]["fp"] != 1 {
		t.Errorf("expected 1 fp FU op for function kernel at cycle %d, got %v", mulCycle, stats.PerCycle[mulCycle].FUCounts["kernel"])
	}
}

func TestAssembleCarriesOverRegisterAccountingFromScheduler(t *testing.T) {
	p, pool := buildAssembleFixture(t)
	s := sched.NewStandalone(p, pool, sched.DefaultMemoryModel())
	s.RunToCompletion()

	stats := Assemble(p, s)

	var totalWrites, totalReads int
	for _, cs := range stats.PerCycle {
		totalWrites += cs.RegisterWrites
		totalReads += cs.RegisterReads
	}
	if totalWrites == 0 {
		t.Errorf("expected at least one register write to have carried over from the scheduler")
	}
	if totalWrites != totalReads {
		t.Errorf("this fixture's single-consumer chain should produce one read per write: writes=%d reads=%d", totalWrites, totalReads)
	}
}

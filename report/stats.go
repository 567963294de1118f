// Package report assembles per-cycle activity, functional-unit, memory,
// and register counts out of a scheduled Program -- spec.md §6.3's
// "cycles, per-function FU counts, per-partition load/store counts,
// registers." Turning that data into the canonical CSV/summary text
// files is explicitly out of scope (spec.md §1's "Reporting formatters");
// this package only assembles the numbers, plus a debug dump for
// -verbose runs.
package report

// CycleStats is one cycle's worth of assembled activity.
type CycleStats struct {
	Cycle int

	// FUCounts is function name -> FU category ("fp", "mul", "int") ->
	// count of nodes of that function/category that started this cycle.
	FUCounts map[string]map[string]int

	// PartitionLoads/PartitionStores are array name -> count of
	// loads/stores of that array that started this cycle.
	PartitionLoads  map[string]int
	PartitionStores map[string]int

	RegisterReads  int
	RegisterWrites int
}

// Stats is the full per-cycle activity table for one scheduled Program.
type Stats struct {
	TotalCycles int
	PerCycle    map[int]*CycleStats
}

package sched

import "github.com/sarchlab/aladdin/config"

// MemoryModel supplies the latency, in cycles, of the memory kinds
// spec.md §4.3 calls out as variable: "Cache/ACP/host memory operations
// follow whatever latency the external memory model reports." The actual
// timing model (a cycle-level cache/coherence simulator) is spec.md §1's
// declared external collaborator; this interface is the seam it plugs
// into. ConstantMemoryModel is the default, fixed-latency stand-in.
type MemoryModel interface {
	// Latency reports the access time for a non-scratchpad memory kind.
	// Called for every partition outside the port budget (Cache, ACP,
	// Host, and register-file arrays); Spad/SpadBypass arrays always take
	// a single cycle once their port is granted, and ConstantMemoryModel
	// returns 1 for register-file arrays.
	Latency(kind config.MemoryType) int

	// DMALatency reports a DMA transfer's latency in cycles.
	DMALatency() int
}

// ConstantMemoryModel is a fixed-latency MemoryModel: every access of a
// given kind costs the same number of cycles regardless of address,
// contention, or transfer size. Sufficient for every one of spec.md §8's
// testable properties, none of which pins an exact cache/DMA latency.
type ConstantMemoryModel struct {
	CacheCycles int
	ACPCycles   int
	HostCycles  int
	DMACycles   int
}

// DefaultMemoryModel returns the stand-in latencies a Builder uses when
// the caller doesn't supply a memory model of its own.
func DefaultMemoryModel() ConstantMemoryModel {
	return ConstantMemoryModel{
		CacheCycles: 2,
		ACPCycles:   4,
		HostCycles:  100,
		DMACycles:   8,
	}
}

func (m ConstantMemoryModel) Latency(kind config.MemoryType) int {
	switch kind {
	case config.Cache:
		return m.CacheCycles
	case config.ACP:
		return m.ACPCycles
	case config.Host:
		return m.HostCycles
	default:
		return 1
	}
}

func (m ConstantMemoryModel) DMALatency() int { return m.DMACycles }

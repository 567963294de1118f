package report

import (
	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/microop"
	"github.com/sarchlab/aladdin/sched"
)

// Assemble walks every scheduled node of p and buckets it by the cycle it
// started in: a load/store increments its array's load/store count for
// that cycle, any other FU-consuming op increments its owning function's
// FU-category count, and memory-less control/zero-latency ops (which
// consume no functional unit) are skipped entirely. Register accounting
// is read back from s's already-computed RegisterReads/RegisterWrites.
// s must be Done.
func Assemble(p *dddg.Program, s *sched.Scheduler) *Stats {
	stats := &Stats{TotalCycles: s.Cycles(), PerCycle: make(map[int]*CycleStats)}

	for _, n := range p.Nodes() {
		if n.Isolated {
			continue
		}
		cs := stats.cycle(n.StartCycle)
		switch {
		case n.Microop.IsLoadOp():
			cs.PartitionLoads[n.ArrayLabel]++
		case n.Microop.IsStoreOp():
			cs.PartitionStores[n.ArrayLabel]++
		case n.Microop.IsControlOp() || n.Microop.IsZeroLatency():
			// Neither a memory access nor an FU-consuming op.
		default:
			fn := p.Manager.FunctionName(n.Function)
			byFn, ok := cs.FUCounts[fn]
			if !ok {
				byFn = make(map[string]int)
				cs.FUCounts[fn] = byFn
			}
			byFn[fuCategory(n.Microop)]++
		}
	}

	for c, n := range s.RegisterWrites {
		stats.cycle(c).RegisterWrites = n
	}
	for c, n := range s.RegisterReads {
		stats.cycle(c).RegisterReads = n
	}

	return stats
}

func (s *Stats) cycle(c int) *CycleStats {
	cs, ok := s.PerCycle[c]
	if !ok {
		cs = &CycleStats{
			Cycle:           c,
			FUCounts:        make(map[string]map[string]int),
			PartitionLoads:  make(map[string]int),
			PartitionStores: make(map[string]int),
		}
		s.PerCycle[c] = cs
	}
	return cs
}

func fuCategory(m microop.Microop) string {
	switch {
	case m.IsFPOp():
		return "fp"
	case m.IsMulOp():
		return "mul"
	default:
		return "int"
	}
}

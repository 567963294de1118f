package sched

import (
	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/microop"
)

// Functional-unit latencies in cycles, for the ops spec.md §4.3 calls out
// by name as multi-cycle ("FP add/mul, divide, sqrt, trig"). Every other
// compute op is single-cycle. The reference implementation's exact
// constants live in a machine-description header outside this module's
// retrieved sources; these values are chosen to preserve the relative
// ordering the spec describes (int < FP add < FP mul/div) and aren't
// claimed to match any specific technology node -- no testable property
// in spec.md §8 pins an exact cycle count.
const (
	intMulLatency = 3
	fpAddLatency  = 4
	fpMulLatency  = 5
)

// latency returns the number of cycles node occupies its functional unit,
// or its memory port, once started. A return of 0 or 1 both mean "the
// scheduler starts and completes it the same cycle"; only a return of 0
// also lets its children start in that same cycle (see completeNode).
func (s *Scheduler) latency(n *dddg.ExecNode) int {
	if n.Microop.IsZeroLatency() {
		return 0
	}
	if n.Microop.IsMemoryOp() {
		if part, err := s.pool.PartitionFor(n.ArrayLabel); err == nil && !part.IsBounded() {
			return s.mem.Latency(part.Entry.MemoryType)
		}
		return 1
	}
	if n.Microop.IsDMAOp() {
		return s.mem.DMALatency()
	}
	if n.Microop.IsFPOp() {
		switch n.Microop {
		case microop.FMul, microop.FDiv, microop.FRem:
			return fpMulLatency
		default:
			return fpAddLatency
		}
	}
	if n.Microop.IsMulOp() {
		return intMulLatency
	}
	return 1
}

// Package resource models the accelerator's memory partitions and their
// per-cycle port budgets: spec.md §4.3's port arbitration and §5's "memory
// ports ... private to that partition" shared-resource policy.
package resource

// PortArbiter is a per-cycle, capacity-limited counter: the same shape as
// akita's sim.Buffer (Capacity/Size/CanPush), adapted here to a budget that
// resets once per simulated cycle instead of draining as messages are
// popped. A scratchpad partition owns one for reads and one for writes;
// loads/stores "acquire" a slot with TryAcquire and give it back at the
// next ResetCycle.
type PortArbiter struct {
	capacity int
	inUse    int
}

// NewPortArbiter returns an arbiter with room for capacity concurrent
// acquisitions per cycle. A non-positive capacity arbiter always grants
// (the caller is expected to treat capacity <= 0 as "unbounded," matching
// register-file arrays and the cache/ACP/host paths that REGISTER_EDGE
// fusion and the variable-latency memory model bypass respectively).
func NewPortArbiter(capacity int) *PortArbiter {
	return &PortArbiter{capacity: capacity}
}

// TryAcquire grants a port for this cycle if the budget isn't exhausted.
// A node whose TryAcquire fails must be deferred to the next cycle per
// spec.md §4.3 step 1.
func (a *PortArbiter) TryAcquire() bool {
	if a == nil || a.capacity <= 0 {
		return true
	}
	if a.inUse >= a.capacity {
		return false
	}
	a.inUse++
	return true
}

// InUse reports how many ports this cycle's acquisitions have consumed so
// far.
func (a *PortArbiter) InUse() int {
	if a == nil {
		return 0
	}
	return a.inUse
}

// Capacity reports the arbiter's per-cycle budget.
func (a *PortArbiter) Capacity() int {
	if a == nil {
		return 0
	}
	return a.capacity
}

// ResetCycle returns every port to the pool for the next cycle.
func (a *PortArbiter) ResetCycle() {
	if a == nil {
		return
	}
	a.inUse = 0
}

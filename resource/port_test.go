package resource

import "testing"

func TestPortArbiterGrantsUpToCapacity(t *testing.T) {
	a := NewPortArbiter(3)
	for i := 0; i < 3; i++ {
		if !a.TryAcquire() {
			t.Fatalf("acquire %d should have succeeded", i)
		}
	}
	if a.TryAcquire() {
		t.Errorf("a fourth acquire should have been denied")
	}
	if a.InUse() != 3 {
		t.Errorf("expected InUse 3, got %d", a.InUse())
	}
}

func TestPortArbiterResetCycleReturnsAllPorts(t *testing.T) {
	a := NewPortArbiter(1)
	a.TryAcquire()
	a.ResetCycle()
	if a.InUse() != 0 {
		t.Errorf("expected InUse 0 after reset, got %d", a.InUse())
	}
	if !a.TryAcquire() {
		t.Errorf("expected a fresh grant after reset")
	}
}

func TestPortArbiterNonPositiveCapacityIsUnbounded(t *testing.T) {
	a := NewPortArbiter(0)
	for i := 0; i < 100; i++ {
		if !a.TryAcquire() {
			t.Fatalf("a non-positive capacity arbiter must never deny, failed at i=%d", i)
		}
	}
	if a.InUse() != 0 {
		t.Errorf("an unbounded arbiter should not track usage, got %d", a.InUse())
	}
}

func TestNilPortArbiterIsSafeAndUnbounded(t *testing.T) {
	var a *PortArbiter
	if !a.TryAcquire() {
		t.Errorf("a nil arbiter (register file / cache / ACP / host partitions) must always grant")
	}
	if a.InUse() != 0 || a.Capacity() != 0 {
		t.Errorf("a nil arbiter should report zero usage and capacity")
	}
	a.ResetCycle() // must not panic
}

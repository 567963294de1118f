package resource

import (
	"testing"

	"github.com/sarchlab/aladdin/config"
)

func newSpadConfig() *config.UserConfig {
	cfg := config.New()
	cfg.ScratchpadPorts = 2
	cfg.Partition["a"] = config.PartitionEntry{
		MemoryType:    config.Spad,
		PartitionType: config.NonePartition,
		ArraySize:     64,
		WordSize:      4,
	}
	cfg.Partition["b"] = config.PartitionEntry{
		MemoryType:    config.Spad,
		PartitionType: config.Cyclic,
		ArraySize:     32,
		WordSize:      4,
		PartFactor:    3,
	}
	cfg.Partition["r"] = config.PartitionEntry{
		MemoryType:    config.Reg,
		PartitionType: config.Complete,
		ArraySize:     16,
		WordSize:      4,
	}
	return cfg
}

func TestNewPoolSizesCyclicPartitionPortsByFactor(t *testing.T) {
	cfg := newSpadConfig()
	pool := NewPool(cfg, map[string]uint64{"a": 0x1000, "b": 0x2000})

	partA, err := pool.PartitionFor("a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if partA.Reads.Capacity() != 2 {
		t.Errorf("expected array a's port capacity to be the plain ScratchpadPorts value, got %d", partA.Reads.Capacity())
	}

	partB, err := pool.PartitionFor("b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if partB.Reads.Capacity() != 6 {
		t.Errorf("expected array b's cyclic partition to multiply ScratchpadPorts by PartFactor, got %d", partB.Reads.Capacity())
	}
}

func TestTryAcquireExhaustsAndResetsPerCycle(t *testing.T) {
	cfg := newSpadConfig()
	pool := NewPool(cfg, nil)

	for i := 0; i < 2; i++ {
		ok, err := pool.TryAcquire("a", Read)
		if err != nil || !ok {
			t.Fatalf("expected acquire %d to succeed, got ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := pool.TryAcquire("a", Read)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Errorf("expected the third read this cycle to be denied, budget is 2")
	}

	pool.ResetCycle()
	ok, err = pool.TryAcquire("a", Read)
	if err != nil || !ok {
		t.Errorf("expected a fresh budget after ResetCycle, got ok=%v err=%v", ok, err)
	}
}

func TestTryAcquireReadsAndWritesAreIndependentBudgets(t *testing.T) {
	cfg := newSpadConfig()
	pool := NewPool(cfg, nil)

	for i := 0; i < 2; i++ {
		if ok, _ := pool.TryAcquire("a", Read); !ok {
			t.Fatalf("read %d should have succeeded", i)
		}
	}
	ok, err := pool.TryAcquire("a", Write)
	if err != nil || !ok {
		t.Errorf("writes should draw from a separate budget than reads, got ok=%v err=%v", ok, err)
	}
}

func TestTryAcquireAlwaysGrantsUnboundedPartitions(t *testing.T) {
	cfg := newSpadConfig()
	pool := NewPool(cfg, nil)

	for i := 0; i < 50; i++ {
		ok, err := pool.TryAcquire("r", Read)
		if err != nil || !ok {
			t.Fatalf("register file partition should never deny a port, got ok=%v err=%v at i=%d", ok, err, i)
		}
	}
}

func TestPartitionForUnknownArrayReturnsUnknownArrayError(t *testing.T) {
	cfg := newSpadConfig()
	pool := NewPool(cfg, nil)

	_, err := pool.PartitionFor("ghost")
	if _, ok := err.(*config.UnknownArrayError); !ok {
		t.Errorf("expected *config.UnknownArrayError, got %T (%v)", err, err)
	}
}

func TestTranslateFindsContainingPartition(t *testing.T) {
	cfg := newSpadConfig()
	pool := NewPool(cfg, map[string]uint64{"a": 0x1000, "b": 0x2000})

	name, err := pool.Translate(0x1010, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "a" {
		t.Errorf("expected vaddr 0x1010 to resolve to array a, got %q", name)
	}
}

func TestTranslateOutsideAnyRangeReturnsAddressTranslationError(t *testing.T) {
	cfg := newSpadConfig()
	pool := NewPool(cfg, map[string]uint64{"a": 0x1000, "b": 0x2000})

	_, err := pool.Translate(0x9999, 4)
	if _, ok := err.(*AddressTranslationError); !ok {
		t.Errorf("expected *AddressTranslationError, got %T (%v)", err, err)
	}
}

func TestTranslateSkipsPartitionsWithNoRecordedBase(t *testing.T) {
	cfg := newSpadConfig()
	// "a" never gets a base address; only "b" does.
	pool := NewPool(cfg, map[string]uint64{"b": 0x2000})

	_, err := pool.Translate(0x10, 4)
	if _, ok := err.(*AddressTranslationError); !ok {
		t.Errorf("an unmapped partition must not be treated as a match for any vaddr, got %T (%v)", err, err)
	}
}

func TestBaseAddressOfUnmappedConfiguredArrayReturnsVirtualAddrLookupError(t *testing.T) {
	cfg := newSpadConfig()
	pool := NewPool(cfg, map[string]uint64{"b": 0x2000}) // "a" configured but unmapped

	_, err := pool.BaseAddressOf("a")
	if _, ok := err.(*VirtualAddrLookupError); !ok {
		t.Errorf("expected *VirtualAddrLookupError, got %T (%v)", err, err)
	}
}

func TestBaseAddressOfUnknownArrayReturnsUnknownArrayError(t *testing.T) {
	cfg := newSpadConfig()
	pool := NewPool(cfg, nil)

	_, err := pool.BaseAddressOf("ghost")
	if _, ok := err.(*config.UnknownArrayError); !ok {
		t.Errorf("expected *config.UnknownArrayError, got %T (%v)", err, err)
	}
}

func TestCheckDirectAccessAllowsConfiguredArray(t *testing.T) {
	cfg := newSpadConfig()
	pool := NewPool(cfg, nil)

	if err := pool.CheckDirectAccess("a", 7, false); err != nil {
		t.Errorf("a configured array should permit a direct access, got %v", err)
	}
}

func TestCheckDirectAccessAllowsUnconfiguredArrayViaDMA(t *testing.T) {
	cfg := newSpadConfig()
	pool := NewPool(cfg, nil)

	if err := pool.CheckDirectAccess("host_buf", 7, true); err != nil {
		t.Errorf("a DMA access should be allowed to reach an unconfigured array, got %v", err)
	}
}

func TestCheckDirectAccessRejectsUnconfiguredArrayDirectAccess(t *testing.T) {
	cfg := newSpadConfig()
	pool := NewPool(cfg, nil)

	err := pool.CheckDirectAccess("host_buf", 7, false)
	hostErr, ok := err.(*IllegalHostMemoryAccessError)
	if !ok {
		t.Fatalf("expected *IllegalHostMemoryAccessError, got %T (%v)", err, err)
	}
	if hostErr.Array != "host_buf" || hostErr.NodeID != 7 {
		t.Errorf("expected the error to carry the array name and node id, got %+v", hostErr)
	}
}

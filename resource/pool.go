package resource

import (
	"sort"

	"github.com/sarchlab/aladdin/config"
)

// AccessKind distinguishes a memory op's direction for port accounting:
// loads draw from the read budget, stores from the write budget.
type AccessKind int

const (
	Read AccessKind = iota
	Write
)

// Partition is one array's resource-model record: its memory kind, and
// (for scratchpad arrays) the per-cycle read/write port arbiters. Register
// file, cache, ACP, and host arrays leave both arbiters nil -- none of
// them are subject to the scratchpad port budget (spec.md §4.3: "Register
// file arrays ... have effectively unbounded ports"; "Cache/ACP/host
// memory operations ... the scheduler ... does not block other
// partitions").
type Partition struct {
	Array   string
	Entry   config.PartitionEntry
	Base    uint64 // virtual address start, from Program.BaseAddresses; 0 if unmapped
	hasBase bool

	Reads  *PortArbiter
	Writes *PortArbiter
}

// IsBounded reports whether this partition's accesses draw from a
// per-cycle port budget at all.
func (p *Partition) IsBounded() bool {
	return p.Entry.MemoryType == config.Spad || p.Entry.MemoryType == config.SpadBypass
}

// Pool is the resource model for one Program's configured arrays: a
// Partition per array in cfg.Partition, each wired to the virtual base
// address dddg.Builder recorded for it in Program.BaseAddresses.
type Pool struct {
	cfg        *config.UserConfig
	partitions map[string]*Partition
	order      []string // array names, sorted, for deterministic Translate scans
}

// NewPool builds the resource model for cfg. baseAddresses is
// Program.BaseAddresses: the array-name -> vaddr map dddg.Builder filled
// from the trace's Alloca and GetElementPtr records.
func NewPool(cfg *config.UserConfig, baseAddresses map[string]uint64) *Pool {
	pool := &Pool{
		cfg:        cfg,
		partitions: make(map[string]*Partition, len(cfg.Partition)),
	}
	for name, entry := range cfg.Partition {
		part := &Partition{Array: name, Entry: entry}
		if base, ok := baseAddresses[name]; ok {
			part.Base = base
			part.hasBase = true
		}
		if part.IsBounded() {
			capacity := cfg.ScratchpadPorts
			if entry.PartitionType == config.Cyclic || entry.PartitionType == config.Block {
				if entry.PartFactor > 1 {
					capacity *= entry.PartFactor
				}
			}
			part.Reads = NewPortArbiter(capacity)
			part.Writes = NewPortArbiter(capacity)
		}
		pool.partitions[name] = part
		pool.order = append(pool.order, name)
	}
	sort.Slice(pool.order, func(i, j int) bool {
		return pool.partitions[pool.order[i]].Base < pool.partitions[pool.order[j]].Base
	})
	return pool
}

// PartitionFor returns array's resource record. An array with no
// partition directive is spec.md §7's UnknownArray condition, reported
// with the same typed error config.ArrayConfig already uses so callers
// only need to handle one error type for "is this array configured."
func (pool *Pool) PartitionFor(array string) (*Partition, error) {
	if part, ok := pool.partitions[array]; ok {
		return part, nil
	}
	return nil, &config.UnknownArrayError{Array: array}
}

// TryAcquire attempts to charge one access of kind against array's
// per-cycle port budget. Unbounded partitions (register file, cache, ACP,
// host) always succeed -- the scheduler never defers their accesses for
// port exhaustion.
func (pool *Pool) TryAcquire(array string, kind AccessKind) (bool, error) {
	part, err := pool.PartitionFor(array)
	if err != nil {
		return false, err
	}
	if !part.IsBounded() {
		return true, nil
	}
	if kind == Write {
		return part.Writes.TryAcquire(), nil
	}
	return part.Reads.TryAcquire(), nil
}

// ResetCycle returns every bounded partition's ports for the next cycle.
// The scheduler calls this once at the start of each simulated cycle.
func (pool *Pool) ResetCycle() {
	for _, part := range pool.partitions {
		part.Reads.ResetCycle()
		part.Writes.ResetCycle()
	}
}

// Translate maps a raw simulated virtual address (plus access size) back
// to the array it falls inside, for nodes whose address the trace
// supplied directly rather than through BaseAddressInit's static
// resolution. A vaddr inside no mapped array's [Base, Base+ArraySize)
// range is spec.md §7's AddressTranslation condition.
func (pool *Pool) Translate(vaddr, size uint64) (string, error) {
	for _, name := range pool.order {
		part := pool.partitions[name]
		if !part.hasBase {
			continue
		}
		if vaddr >= part.Base && vaddr < part.Base+part.Entry.ArraySize {
			return name, nil
		}
	}
	return "", &AddressTranslationError{Vaddr: vaddr, Size: size}
}

// CheckDirectAccess enforces spec.md §7's IllegalHostMemoryAccess
// condition: a plain (non-DMA) load or store may only target an array
// that has a partition directive. An array with no entry is host memory,
// reachable only through a DMA transfer.
func (pool *Pool) CheckDirectAccess(array string, nodeID int, isDMA bool) error {
	if _, ok := pool.partitions[array]; ok || isDMA {
		return nil
	}
	return &IllegalHostMemoryAccessError{Array: array, NodeID: nodeID}
}

// BaseAddressOf returns array's resolved virtual base address. An array
// with a partition directive but no recorded base (the trace never gave a
// base address for it) is spec.md §7's
// VirtualAddrLookup condition.
func (pool *Pool) BaseAddressOf(array string) (uint64, error) {
	part, err := pool.PartitionFor(array)
	if err != nil {
		return 0, err
	}
	if !part.hasBase {
		return 0, &VirtualAddrLookupError{Array: array}
	}
	return part.Base, nil
}

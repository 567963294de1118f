package resource

import "fmt"

// VirtualAddrLookupError is spec.md §7's VirtualAddrLookup condition: an
// array was never mapped to a virtual address (mapArrayToAccelerator's
// equivalent, Program.BaseAddresses, never recorded an entry for it) when
// something needed to translate an address in its range.
type VirtualAddrLookupError struct {
	Array string
}

func (e *VirtualAddrLookupError) Error() string {
	return fmt.Sprintf("could not find a virtual address mapping for array %q: "+
		"ensure the trace has an Alloca or GetElementPtr record giving its "+
		"base address", e.Array)
}

// IllegalHostMemoryAccessError is spec.md §7's IllegalHostMemoryAccess
// condition: the accelerator dereferences an array with no partition entry
// directly (a plain load/store), rather than through a DMA transfer.
type IllegalHostMemoryAccessError struct {
	Array  string
	NodeID int
}

func (e *IllegalHostMemoryAccessError) Error() string {
	return fmt.Sprintf("at node %d: accessing host memory array %q directly from "+
		"the accelerator is not allowed; map it with a partition directive or "+
		"move the access behind a DMA transfer", e.NodeID, e.Array)
}

// AddressTranslationError is spec.md §7's AddressTranslation condition: a
// simulator-supplied virtual address does not fall inside any configured
// array's range.
type AddressTranslationError struct {
	Vaddr uint64
	Size  uint64
}

func (e *AddressTranslationError) Error() string {
	return fmt.Sprintf("unable to translate simulation virtual address range: "+
		"%d, size %d", e.Vaddr, e.Size)
}

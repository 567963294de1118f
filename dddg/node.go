package dddg

import (
	"github.com/sarchlab/aladdin/microop"
	"github.com/sarchlab/aladdin/source"
)

// MemAccess is the memory payload present only on load/store nodes: the
// resolved address and the IEEE-754 bit pattern of the value moved.
type MemAccess struct {
	Vaddr     uint64
	SizeBytes int
	IsFloat   bool
	Bits      uint64
}

// DMAAccess is the DMA payload present only on DMA load/store/fence nodes.
// SrcArray and DstArray are filled in by DmaBaseAddressInit once the
// transfer's GEP-computed addresses have been traced back to the arrays
// that generated them; they start empty at construction time.
type DMAAccess struct {
	HostBase   uint64
	SrcOffset  uint64
	DstOffset  uint64
	Size       uint64
	MemoryType int // mirrors config.MemoryType; dddg does not import config to avoid a cycle.

	SrcArray string
	DstArray string
}

// ExecNode is one dynamic instruction in the trace.
type ExecNode struct {
	NodeID NodeID
	Microop microop.Microop

	// Static back-pointers.
	Function    source.FunctionID
	Instruction source.InstructionID
	BasicBlock  source.BasicBlockID
	LineNumber  int

	// Dynamic invocation counter of the owning function.
	DynamicInvocation int

	// Scheduling state.
	StartCycle           int
	CompleteCycle         int
	NumParentsRemaining   int
	Isolated              bool
	TimeBeforeExecution   float64

	Mem *MemAccess
	DMA *DMAAccess

	// VariableID and ArrayLabel identify the register/array a memory,
	// GetElementPtr, or Alloca node reads or declares. ArrayLabel starts as
	// the name the trace record gives (call_arg_map resolved for a
	// GetElementPtr) at build time; BaseAddressInit overwrites a memory
	// op's ArrayLabel with the label of the GetElementPtr/Alloca its address
	// chain leads back to. DmaBaseAddressInit leaves ArrayLabel alone and
	// records a DMA's arrays in DMA.SrcArray/DstArray.
	VariableID source.VariableID
	ArrayLabel string

	Inductive       bool
	DynamicMemOp    bool
	DoublePrecision bool
}

// NewExecNode returns a fresh node, isolated by default until the builder
// gives it edges (mirrors the reference implementation's constructor
// defaults).
func NewExecNode(id NodeID, op microop.Microop) *ExecNode {
	return &ExecNode{
		NodeID:  id,
		Microop: op,
		Isolated: true,
	}
}

func (n *ExecNode) HasArrayLabel() bool { return n.ArrayLabel != "" }

func (n *ExecNode) SetMemAccess(vaddr uint64, sizeBytes int, isFloat bool, bits uint64) {
	n.Mem = &MemAccess{Vaddr: vaddr, SizeBytes: sizeBytes, IsFloat: isFloat, Bits: bits}
}

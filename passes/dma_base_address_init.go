package passes

import (
	"github.com/sarchlab/aladdin/config"
	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/microop"
	"github.com/sarchlab/aladdin/source"
)

// DmaBaseAddressInit is pass #4 of spec.md §4.2: analogous to
// BaseAddressInit, but for the two address operands of a DMA transfer.
// The destination address is the DMA call's operand 1, the source address
// is operand 2; each, when generated by a GetElementPtr, is traced
// through call_arg_map back to the array name it was originally computed
// from. The pass also stamps the node's resolved memory type from the
// UserConfig partition map, so the scheduler's port-budget accounting
// knows which resource kind a DMA transfer contends for.
func DmaBaseAddressInit(p *dddg.Program, cfg *config.UserConfig) {
	for _, n := range p.Nodes() {
		if n.DMA == nil || !n.Microop.IsDMAOp() {
			continue
		}

		for _, e := range p.Graph.InEdges(n.NodeID) {
			if e.Operand != 1 && e.Operand != 2 {
				continue
			}
			parent := p.Node(e.From)
			if parent.Microop != microop.GetElementPtr {
				continue
			}
			name := resolveArrayVariable(p, parent)
			if e.Operand == 1 {
				n.DMA.DstArray = name
			} else {
				n.DMA.SrcArray = name
			}
		}

		setDMAMemoryType(n, cfg)
	}
}

// resolveArrayVariable resolves n's own address-register back through
// call_arg_map to the caller-side array name it was ultimately computed
// from -- the same call_arg_map resolution dddg.Builder's resolveArrayName
// applies to a GetElementPtr at build time, reconstructed here from the
// node's static/dynamic back-pointers.
func resolveArrayVariable(p *dddg.Program, n *dddg.ExecNode) string {
	fn := source.DynamicFunction{Function: n.Function, Invocation: n.DynamicInvocation}
	ref := source.DynamicVariable{Function: fn, Variable: n.VariableID}
	resolved := p.CallArgMap.Resolve(ref)
	return p.Manager.VariableName(resolved.Variable)
}

// setDMAMemoryType mirrors the reference implementation's choice of which
// side of the transfer determines memory_type: the source array for a DMA
// load, the destination array for a DMA store. An array with no partition
// entry (e.g. plain host memory never declared to the config) leaves the
// node's memory type at its zero value.
func setDMAMemoryType(n *dddg.ExecNode, cfg *config.UserConfig) {
	array := n.DMA.DstArray
	if n.Microop.IsDMALoad() {
		array = n.DMA.SrcArray
	}
	if array == "" {
		return
	}
	if entry, err := cfg.ArrayConfig(array); err == nil {
		n.DMA.MemoryType = int(entry.MemoryType)
	}
}

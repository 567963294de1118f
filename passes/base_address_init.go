package passes

import (
	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/microop"
)

// BaseAddressInit is pass #3 of spec.md §4.2: for every memory op, walk
// backward through its chain of GetElementPtr/Load/Store parents -- the
// chain of address computations that produced the pointer it dereferences
// -- until it reaches the Alloca that declared the array, or a parent it
// cannot resolve further. Each memory op in the chain picks up the
// resolved array_label along the way, so a Load fed by three levels of
// GEP still ends up labeled with the declaring array's name.
//
// The walk follows the operand-1 edge for Load and GetElementPtr, and the
// operand-2 edge for Store -- dddg.Builder tags a store's address-register
// dependency as operand 2 (its value operand is 1), matching spec.md
// §4.2's description of this pass.
func BaseAddressInit(p *dddg.Program) {
	for _, id := range p.Graph.Vertices() {
		if p.Graph.InDegree(id) == 0 && p.Graph.OutDegree(id) == 0 {
			continue
		}
		node := p.Node(id)
		if !node.Microop.IsMemoryOp() {
			continue
		}

		curr := id
		currOp := node.Microop
		for {
			wantOperand, filtered := addressOperand(currOp)
			foundParent := false

			for _, e := range p.Graph.InEdges(curr) {
				if filtered && e.Operand != wantOperand {
					continue
				}
				parent := p.Node(e.From)

				switch {
				case parent.Microop == microop.GetElementPtr || parent.Microop.IsLoadOp() || parent.Microop.IsStoreOp():
					node.ArrayLabel = parent.ArrayLabel
					curr = e.From
					currOp = parent.Microop
					foundParent = true

				case parent.Microop.IsAllocaOp():
					node.ArrayLabel = parent.ArrayLabel
				}

				if foundParent || parent.Microop.IsAllocaOp() {
					break
				}
			}
			if !foundParent {
				break
			}
		}
	}
}

func addressOperand(m microop.Microop) (int, bool) {
	switch {
	case m.IsLoadOp():
		return 1, true
	case m == microop.GetElementPtr:
		return 1, true
	case m.IsStoreOp():
		return 2, true
	default:
		return 0, false
	}
}

package passes

import (
	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/microop"
)

// InductionDependenceRemoval is pass #1 of spec.md §4.2: it marks every
// node whose value is purely a function of loop induction variables as
// inductive, and strength-reduces the integer add/mul chains that compute
// array indices from those variables into IndexAdd/Shl so the scheduler
// treats them as zero-latency.
//
// A node is inductive if its static instruction was marked inductive by
// the front end, or if every one of its non-control-edge parents is
// itself inductive. An integer multiply with at least one inductive
// parent is strength-reduced to a shift even when not every parent is
// inductive (the common "array[i * stride]" shape, where stride is a
// loop-invariant constant parent).
func InductionDependenceRemoval(p *dddg.Program) {
	for _, n := range p.Nodes() {
		n.Inductive = false
	}

	for _, n := range p.Nodes() {
		if n.Microop.IsMemoryOp() {
			continue
		}

		if p.Manager.Instruction(n.Instruction).Inductive {
			n.Inductive = true
			strengthReduce(n)
			continue
		}

		parents := nonControlParents(p, n.NodeID)
		if len(parents) == 0 {
			continue
		}
		allInductive, anyInductive := true, false
		for _, parentID := range parents {
			if p.Node(parentID).Inductive {
				anyInductive = true
			} else {
				allInductive = false
			}
		}

		switch {
		case allInductive:
			n.Inductive = true
			strengthReduce(n)
		case anyInductive && n.Microop.IsIntMulOp():
			strengthReduce(n)
		}
	}
}

func strengthReduce(n *dddg.ExecNode) {
	switch {
	case n.Microop.IsIntAddOp():
		n.Microop = microop.IndexAdd
	case n.Microop.IsIntMulOp():
		n.Microop = microop.Shl
	}
}

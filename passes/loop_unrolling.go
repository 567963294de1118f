package passes

import (
	"github.com/sarchlab/aladdin/config"
	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/microop"
	"github.com/sarchlab/aladdin/source"
)

// loopFrame is one entry of the loop-nest stack LoopUnrolling tracks as it
// walks the trace: which labeled loop it represents, its configured
// unroll factor, the call depth it was entered at, and how many times its
// boundary branch has fired so far.
type loopFrame struct {
	label          source.UniqueLabel
	factor         int
	callDepth      int
	dynInvocations int
}

// LoopUnrolling is pass #6 of spec.md §4.2, the authoritative builder of
// Program.LoopBounds. It walks nodes in emission order and, for every
// branch whose UniqueLabel carries an `unrolling` (or `flatten`)
// directive, tracks which loop nest it belongs to on a stack keyed by
// label identity. This module's trace format carries no separate static
// loop-depth field per basic block the way the reference implementation's
// front end does, so label identity substitutes for its loop_depth/
// call_depth stack comparison -- two branches sharing a UniqueLabel are
// the same loop; a label found lower in the stack means every frame above
// it has just exited. See DESIGN.md's Open Question entry for this
// resolution.
//
// Every factor-th firing of a configured branch becomes a loop_bounds
// boundary; the intervening firings collapse into the preceding
// boundary's body by wiring their nodes directly to the last boundary
// branch and isolating the branch node itself instead of promoting it to
// a new boundary. Branches with no configured label are not loop
// boundaries: they and the nodes between them are chained to the previous
// boundary with plain CONTROL_EDGEs. Two kinds of node are recorded in
// loop_bounds whether or not their label is configured: the first branch
// of the walk, which opens the first region, and every Call.
func LoopUnrolling(p *dddg.Program, cfg *config.UserConfig) {
	if len(cfg.Unrolling) == 0 && len(cfg.Flatten) == 0 {
		return
	}

	var stack []loopFrame
	var toRemove []dddg.NodeID
	var between []dddg.NodeID
	first := false
	callDepth := 0
	iterCount := 0
	var prevBranch *dddg.ExecNode

	addCtrl := func(from, to dddg.NodeID) {
		if from == to {
			return
		}
		if !p.Graph.HasEdge(from, to, dddg.ControlEdge) {
			p.Graph.AddEdge(from, to, dddg.ControlEdge, 0)
		}
	}
	addBoundary := func(id dddg.NodeID) {
		if len(p.LoopBounds) == 0 || p.LoopBounds[len(p.LoopBounds)-1].NodeID != id {
			p.LoopBounds = append(p.LoopBounds, dddg.LoopBound{NodeID: id, TargetLoopDepth: len(stack)})
		}
	}
	closeGroup := func(n *dddg.ExecNode) {
		for _, b := range between {
			addCtrl(b, n.NodeID)
		}
		between = between[:0]
		between = append(between, n.NodeID)
		prevBranch = n
	}

	for _, n := range p.Nodes() {
		if n.Microop.IsRetOp() {
			callDepth--
			for len(stack) > 0 && stack[len(stack)-1].callDepth > callDepth {
				stack = stack[:len(stack)-1]
			}
		}

		degree := p.Graph.InDegree(n.NodeID) + p.Graph.OutDegree(n.NodeID)
		if degree == 0 && !n.Microop.IsBranchOp() {
			continue
		}
		if cfg.ReadyMode && n.Microop.IsDMALoad() {
			continue
		}
		if p.NextNode(n.NodeID) == nil {
			continue
		}

		if !first {
			if !n.Microop.IsBranchOp() {
				continue
			}
			first = true
			addBoundary(n.NodeID)
			prevBranch = n
		}

		if prevBranch.NodeID != n.NodeID && !n.Microop.IsDMAOp() {
			addCtrl(prevBranch.NodeID, n.NodeID)
		}

		if !n.Microop.IsBranchOp() {
			if !n.Microop.IsDMAOp() {
				between = append(between, n.NodeID)
			}
			continue
		}

		if n.Microop == microop.Call && (len(p.LoopBounds) == 0 || p.LoopBounds[len(p.LoopBounds)-1].NodeID != n.NodeID) {
			addBoundary(n.NodeID)
			callDepth++
			prevBranch = n
		}

		label, hasLabel := GetUniqueLabel(p, n)
		factor, configured := unrollConfigured(cfg, label)
		if !hasLabel || !configured || factor == 0 {
			if n.Microop != microop.Call && !n.Microop.IsDMAOp() {
				between = append(between, n.NodeID)
				continue
			}
			if !p.Graph.HasEdge(prevBranch.NodeID, n.NodeID, dddg.ControlEdge) && !n.Microop.IsDMAOp() {
				addCtrl(prevBranch.NodeID, n.NodeID)
			}
			closeGroup(n)
			continue
		}

		frameIdx := -1
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].label == label {
				frameIdx = i
				break
			}
		}
		if frameIdx == -1 {
			stack = append(stack, loopFrame{label: label, factor: factor, callDepth: callDepth})
			frameIdx = len(stack) - 1
		} else {
			stack = stack[:frameIdx+1]
		}
		frame := &stack[frameIdx]
		frame.dynInvocations++

		if frame.dynInvocations%factor == 0 {
			addBoundary(n.NodeID)
			iterCount++
			closeGroup(n)
		} else {
			toRemove = append(toRemove, n.NodeID)
		}
	}

	p.LoopBounds = append(p.LoopBounds, dddg.LoopBound{NodeID: dddg.NodeID(p.NumNodes())})

	for _, id := range toRemove {
		p.Graph.ClearVertex(id)
	}
	CleanLeafNodes(p)
}

func unrollConfigured(cfg *config.UserConfig, label source.UniqueLabel) (int, bool) {
	if cfg.Flatten[label] {
		return 0, true
	}
	if f, ok := cfg.Unrolling[label]; ok {
		return f, true
	}
	return 0, false
}

// LoopFlattening is pass #7 of spec.md §4.2: for every node whose
// UniqueLabel carries the flatten sentinel (unroll factor 0), a compute
// op that isn't itself inductive degrades to a Move (it still executes,
// preserving any side effects downstream logic depends on, but costs no
// functional-unit time), and a branch is isolated outright since a
// flattened loop carries no control-flow overhead at all.
func LoopFlattening(p *dddg.Program, cfg *config.UserConfig) {
	if len(cfg.Unrolling) == 0 && len(cfg.Flatten) == 0 {
		return
	}
	var toRemove []dddg.NodeID
	for _, n := range p.Nodes() {
		label, hasLabel := GetUniqueLabel(p, n)
		factor, configured := unrollConfigured(cfg, label)
		if !hasLabel || !configured || factor != 0 {
			continue
		}
		switch {
		case n.Microop.IsComputeOp() && !n.Inductive:
			n.Microop = microop.Move
		case n.Microop.IsBranchOp():
			toRemove = append(toRemove, n.NodeID)
		}
	}
	for _, id := range toRemove {
		p.Graph.ClearVertex(id)
	}
	CleanLeafNodes(p)
}

package dddg

import (
	"testing"

	"github.com/sarchlab/aladdin/microop"
	"github.com/sarchlab/aladdin/source"
)

func newTestProgram() (*Program, *source.Manager) {
	mgr := source.NewManager()
	return NewProgram(mgr), mgr
}

func addN(p *Program, op microop.Microop) *ExecNode {
	n := NewExecNode(NodeID(p.NumNodes()), op)
	p.AddNode(n)
	return n
}

func TestAddNodeEnforcesOrder(t *testing.T) {
	p, _ := newTestProgram()
	addN(p, microop.Add)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on out-of-order AddNode")
		}
	}()
	p.AddNode(NewExecNode(NodeID(5), microop.Add))
}

func TestNextNode(t *testing.T) {
	p, _ := newTestProgram()
	a := addN(p, microop.Add)
	b := addN(p, microop.Sub)

	if got := p.NextNode(a.NodeID); got != b {
		t.Fatalf("NextNode(a) = %v, want b", got)
	}
	if got := p.NextNode(b.NodeID); got != nil {
		t.Fatalf("NextNode(b) = %v, want nil", got)
	}
}

func TestFindLoopBoundariesPairsConsecutiveEntries(t *testing.T) {
	p, mgr := newTestProgram()
	fn := mgr.InternFunction("f")
	lbl := mgr.InternLabel("loop")
	ul := source.UniqueLabel{Function: fn, Label: lbl}

	n0 := addN(p, microop.Br)
	n0.LineNumber = 10
	n1 := addN(p, microop.Add)
	n1.LineNumber = 11
	n2 := addN(p, microop.Br)
	n2.LineNumber = 10

	p.AddLabel(10, ul)
	p.LoopBounds = []LoopBound{{NodeID: n0.NodeID, TargetLoopDepth: 1}, {NodeID: n2.NodeID, TargetLoopDepth: 1}}

	pairs := p.FindLoopBoundaries(ul)
	if len(pairs) != 1 {
		t.Fatalf("FindLoopBoundaries = %d pairs, want 1", len(pairs))
	}
	if pairs[0][0] != n0 || pairs[0][1] != n2 {
		t.Fatalf("FindLoopBoundaries pair = (%v, %v), want (n0, n2)", pairs[0][0], pairs[0][1])
	}
}

func TestFindFunctionBoundaries(t *testing.T) {
	p, mgr := newTestProgram()
	caller := mgr.InternFunction("caller")
	callee := mgr.InternFunction("callee")

	call := addN(p, microop.Call)
	call.Function = caller
	entry := addN(p, microop.Add)
	entry.Function = callee
	ret := addN(p, microop.Ret)
	ret.Function = callee

	bounds := p.FindFunctionBoundaries(callee)
	if len(bounds) != 1 {
		t.Fatalf("FindFunctionBoundaries = %d, want 1", len(bounds))
	}
	if bounds[0][0] != call || bounds[0][1] != ret {
		t.Fatalf("FindFunctionBoundaries = (%v, %v), want (call, ret)", bounds[0][0], bounds[0][1])
	}
}

func TestShortestDistanceSkipsControlEdges(t *testing.T) {
	p, _ := newTestProgram()
	a := addN(p, microop.Add)
	b := addN(p, microop.Add)
	c := addN(p, microop.Add)

	p.Graph.AddEdge(a.NodeID, c.NodeID, ControlEdge, 0)
	p.Graph.AddEdge(a.NodeID, b.NodeID, DataOperand, 1)
	p.Graph.AddEdge(b.NodeID, c.NodeID, DataOperand, 1)

	if got := p.ShortestDistance(a.NodeID, c.NodeID); got != 2 {
		t.Fatalf("ShortestDistance = %d, want 2 (control edge must not shortcut)", got)
	}
}

func TestShortestDistanceUnreachable(t *testing.T) {
	p, _ := newTestProgram()
	a := addN(p, microop.Add)
	b := addN(p, microop.Add)

	if got := p.ShortestDistance(a.NodeID, b.NodeID); got != -1 {
		t.Fatalf("ShortestDistance = %d, want -1", got)
	}
}

func TestRegionOf(t *testing.T) {
	p, _ := newTestProgram()
	for i := 0; i < 6; i++ {
		addN(p, microop.Add)
	}
	p.LoopBounds = []LoopBound{{NodeID: 2, TargetLoopDepth: 1}, {NodeID: 4, TargetLoopDepth: 1}}

	start, end := p.RegionOf(3)
	if start != 2 || end != 4 {
		t.Fatalf("RegionOf(3) = (%d, %d), want (2, 4)", start, end)
	}

	start, end = p.RegionOf(5)
	if start != 4 || end != 6 {
		t.Fatalf("RegionOf(5) = (%d, %d), want (4, 6)", start, end)
	}
}

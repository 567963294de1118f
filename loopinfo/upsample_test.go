package loopinfo

import (
	"testing"

	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/microop"
	"github.com/sarchlab/aladdin/source"
)

// buildDMAOccludedLoopFixture wires a DMA load (node0) feeding a loop
// body node (node2) whose enclosing iteration (node1 -> node3, label
// "body") starts, on paper, at cycle 1 -- well before the DMA actually
// finishes at cycle 20. Since nothing blocks node2 on the DMA except a
// data edge, the loop's naive interval would include most of the DMA's
// own latency.
func buildDMAOccludedLoopFixture(t *testing.T) (p *dddg.Program, body source.UniqueLabel) {
	t.Helper()
	mgr := source.NewManager()
	p = dddg.NewProgram(mgr)
	fn := mgr.InternFunction("kernel")
	bodyLabel := mgr.InternLabel("body")
	body = source.UniqueLabel{Function: fn, Label: bodyLabel}

	dma := dddg.NewExecNode(0, microop.DMALoad)
	dma.Function = fn
	dma.StartCycle = 2
	dma.CompleteCycle = 20
	p.AddNode(dma)

	start := dddg.NewExecNode(1, microop.Br)
	start.Function = fn
	start.LineNumber = 5
	start.CompleteCycle = 1
	p.AddNode(start)

	body2 := dddg.NewExecNode(2, microop.Add)
	body2.Function = fn
	p.AddNode(body2)

	end := dddg.NewExecNode(3, microop.Br)
	end.Function = fn
	end.LineNumber = 5
	end.CompleteCycle = 25
	p.AddNode(end)

	p.Graph.AddEdge(0, 2, dddg.DataOperand, 1)

	p.AddLabel(5, body)
	p.LoopBounds = []dddg.LoopBound{
		{NodeID: 1, TargetLoopDepth: 1},
		{NodeID: 3, TargetLoopDepth: 1},
	}

	return p, body
}

func TestDMAOcclusionDefersIterationStartToDMACompletion(t *testing.T) {
	p, body := buildDMAOccludedLoopFixture(t)

	tree := BuildTree(p, map[source.UniqueLabel]float64{body: 1})

	if len(tree.Root.Children) != 1 {
		t.Fatalf("expected 1 loop iteration, got %d", len(tree.Root.Children))
	}
	it := tree.Root.Children[0]
	if it.StartCycle != 20 {
		t.Errorf("expected the DMA-occluded iteration's effective start to be pulled forward to the DMA's completion cycle 20, got %d", it.StartCycle)
	}
	if it.ElapsedCycle != 5 {
		t.Errorf("expected elapsed cycle to be recomputed from the corrected start (25-20=5), got %d", it.ElapsedCycle)
	}
}

func TestDMAOcclusionLeavesNonOverlappingIterationUntouched(t *testing.T) {
	p, body := buildDMAOccludedLoopFixture(t)
	// Push the DMA's completion earlier than the iteration's own start so
	// there's no overlap to correct for.
	p.Node(0).StartCycle = 0
	p.Node(0).CompleteCycle = 0

	tree := BuildTree(p, map[source.UniqueLabel]float64{body: 1})

	it := tree.Root.Children[0]
	if it.StartCycle != 1 {
		t.Errorf("expected the iteration's start to stay at its own cycle 1 when the DMA finishes before it starts, got %d", it.StartCycle)
	}
	if it.ElapsedCycle != 24 {
		t.Errorf("expected elapsed cycle to stay at its uncorrected 25-1=24, got %d", it.ElapsedCycle)
	}
}

package passes

import (
	"fmt"

	"github.com/sarchlab/aladdin/config"
	"github.com/sarchlab/aladdin/dddg"
)

// pipelineEntry pairs one loop iteration's boundary branch with its first
// non-isolated (FNIN) node: the earliest node in that iteration's body
// that actually does anything. Pipelining lets the next iteration begin
// as soon as the previous one's FNIN has executed, rather than waiting
// for its boundary branch -- so control dependences get moved onto the
// FNIN instead of the branch.
type pipelineEntry struct {
	branch *dddg.ExecNode
	first  *dddg.ExecNode
}

// findFirstNonIsolated returns the first node strictly between afterID and
// beforeID that has at least one edge and isn't itself a branch, or nil if
// the whole span is isolated/branch-only.
func findFirstNonIsolated(p *dddg.Program, afterID, beforeID dddg.NodeID) *dddg.ExecNode {
	for _, n := range p.Nodes() {
		if n.NodeID <= afterID {
			continue
		}
		if n.NodeID >= beforeID {
			break
		}
		degree := p.Graph.InDegree(n.NodeID) + p.Graph.OutDegree(n.NodeID)
		if degree == 0 || n.Microop.IsBranchOp() {
			continue
		}
		return n
	}
	return nil
}

// wirePipelineStep is the core rewrite both pipelining passes apply between
// one iteration (prev) and the next (cur):
//
//  1. a CONTROL_EDGE from prev's FNIN to cur's FNIN, so cur's body can't
//     start until prev's FNIN has -- the whole point of pipelining.
//  2. every CONTROL_EDGE from prev's branch landing after cur's FNIN
//     is mirrored as an edge from cur's FNIN instead (the original edge is
//     removed separately, in step 4).
//  3. every non-branch parent of cur's FNIN becomes a strict CONTROL_EDGE
//     parent (pipelining promotes the FNIN itself to the iteration's real
//     entry point, so ordinary data dependences into it must become
//     control dependences).
//  4. every CONTROL_EDGE from prev's branch to a non-call child is removed
//     (superseded by steps 1-2); call targets are left alone since this
//     rewrite never reaches across a function boundary.
func wirePipelineStep(p *dddg.Program, prev, cur pipelineEntry) {
	if !p.Graph.HasEdge(prev.first.NodeID, cur.first.NodeID, dddg.ControlEdge) {
		p.Graph.AddEdge(prev.first.NodeID, cur.first.NodeID, dddg.ControlEdge, 0)
	}

	for _, e := range p.Graph.OutEdges(prev.branch.NodeID) {
		if e.Tag != dddg.ControlEdge || e.To <= cur.first.NodeID {
			continue
		}
		if !p.Graph.HasEdge(cur.first.NodeID, e.To, dddg.DataOperand) {
			p.Graph.AddEdge(cur.first.NodeID, e.To, dddg.DataOperand, 1)
		}
	}

	for _, e := range append([]dddg.Edge{}, p.Graph.InEdges(cur.first.NodeID)...) {
		if p.Node(e.From).Microop.IsBranchOp() {
			continue
		}
		p.Graph.RemoveEdgeTag(e.From, e.To, e.Tag)
		if !p.Graph.HasEdge(e.From, cur.first.NodeID, dddg.ControlEdge) {
			p.Graph.AddEdge(e.From, cur.first.NodeID, dddg.ControlEdge, 0)
		}
	}

	for _, e := range append([]dddg.Edge{}, p.Graph.OutEdges(prev.branch.NodeID)...) {
		if e.Tag != dddg.ControlEdge || p.Node(e.To).Microop.IsCallOp() {
			continue
		}
		p.Graph.RemoveEdgeTag(e.From, e.To, e.Tag)
	}
}

// Pipelining is the entry point spec.md §4.2 item 8 describes: exactly one
// of PerLoopPipelining (driven by `pipeline` directives) or
// GlobalLoopPipelining (driven by the `pipelining` global switch, applied
// to every unrolled loop) may run. Both configured at once is refused
// rather than silently favoring one.
func Pipelining(p *dddg.Program, cfg *config.UserConfig) error {
	hasPerLoop := len(cfg.Pipeline) > 0
	if cfg.Pipelining && hasPerLoop {
		return fmt.Errorf("passes: global pipelining and per-loop pipelining directives cannot both be configured")
	}
	if cfg.Pipelining {
		GlobalLoopPipelining(p, cfg)
		return nil
	}
	if hasPerLoop {
		PerLoopPipelining(p, cfg)
	}
	return nil
}

// PerLoopPipelining is pass #8a of spec.md §4.2: for every label with a
// `pipeline` directive, find its loop_bounds-delimited iterations via
// Program.FindLoopBoundaries, compute each iteration's FNIN, and rewire
// consecutive iterations with wirePipelineStep.
func PerLoopPipelining(p *dddg.Program, cfg *config.UserConfig) {
	bounds := sortedLoopBounds(p)
	if len(bounds) <= 2 || len(cfg.Pipeline) == 0 {
		return
	}

	for label := range cfg.Pipeline {
		pairs := p.FindLoopBoundaries(label)
		var entries []pipelineEntry
		for _, pr := range pairs {
			first := findFirstNonIsolated(p, pr[0].NodeID, pr[1].NodeID)
			if first == nil {
				first = pr[1]
			}
			entries = append(entries, pipelineEntry{branch: pr[1], first: first})
		}
		for i := 1; i < len(entries); i++ {
			wirePipelineStep(p, entries[i-1], entries[i])
		}
	}
	CleanLeafNodes(p)
}

// GlobalLoopPipelining is pass #8b of spec.md §4.2: with the `pipelining`
// global switch on, every consecutive pair of loop_bounds entries (across
// the whole trace, not just one label) is a pipelining candidate, gated on
// the later branch's label actually being unroll-configured and the two
// branches sharing the same static line/function -- i.e. genuinely
// consecutive iterations of the same unrolled loop, not an unrelated
// branch pair that happens to be adjacent in loop_bounds.
func GlobalLoopPipelining(p *dddg.Program, cfg *config.UserConfig) {
	if !cfg.Pipelining || len(cfg.Unrolling) == 0 {
		return
	}
	bounds := sortedLoopBounds(p)
	if len(bounds) <= 2 {
		return
	}

	var entries []pipelineEntry
	for k := 1; k <= len(bounds)-2; k++ {
		branch := p.Node(bounds[k].NodeID)
		first := findFirstNonIsolated(p, bounds[k-1].NodeID, bounds[k].NodeID)
		if first == nil {
			first = branch
		}
		entries = append(entries, pipelineEntry{branch: branch, first: first})
	}

	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		label, hasLabel := GetUniqueLabel(p, cur.branch)
		if _, configured := cfg.Unrolling[label]; !hasLabel || !configured {
			continue
		}
		if prev.branch.Function != cur.branch.Function ||
			prev.branch.LineNumber != cur.branch.LineNumber ||
			prev.first.LineNumber != cur.first.LineNumber {
			continue
		}
		wirePipelineStep(p, prev, cur)
	}
	CleanLeafNodes(p)
}

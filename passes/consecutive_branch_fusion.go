package passes

import "github.com/sarchlab/aladdin/dddg"

// ConsecutiveBranchFusion is pass #10 of spec.md §4.2: Aladdin serializes
// every branch/call node with a control edge, but a chain of branches with
// no other work between them (common at the head of deeply nested loops)
// can be resolved by the control FSM in a single cycle. A maximal chain of
// branch/call nodes, each with exactly one outgoing edge and that edge
// landing on the next branch/call in the chain, is fused: the original
// edges are removed and replaced by FUSED_BRANCH_EDGEs linking consecutive
// nodes, telling the scheduler to retire the whole chain in one cycle.
func ConsecutiveBranchFusion(p *dddg.Program) {
	for _, n := range p.Nodes() {
		if !n.Microop.IsBranchOp() {
			continue
		}
		if p.Graph.OutDegree(n.NodeID) != 1 {
			continue
		}

		chain := []*dddg.ExecNode{n}
		var fused []dddg.Edge
		cur := n
		for p.Graph.OutDegree(cur.NodeID) == 1 {
			out := p.Graph.OutEdges(cur.NodeID)[0]
			next := p.Node(out.To)
			if !next.Microop.IsBranchOp() {
				break
			}
			fused = append(fused, out)
			chain = append(chain, next)
			cur = next
		}
		if len(chain) <= 1 {
			continue
		}
		for _, e := range fused {
			p.Graph.RemoveEdge(e.From, e.To)
		}
		for i := 0; i < len(chain)-1; i++ {
			p.Graph.AddEdge(chain[i].NodeID, chain[i+1].NodeID, dddg.FusedBranchEdge, 0)
		}
	}
	CleanLeafNodes(p)
}

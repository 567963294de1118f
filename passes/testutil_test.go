package passes

import (
	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/microop"
	"github.com/sarchlab/aladdin/source"
)

// newTestProgram returns an empty Program with n isolated nodes of op,
// node_ids 0..n-1, ready for the caller to wire edges and set fields on.
func newTestProgram(n int, op microop.Microop) *dddg.Program {
	p := dddg.NewProgram(source.NewManager())
	for i := 0; i < n; i++ {
		node := dddg.NewExecNode(dddg.NodeID(i), op)
		p.AddNode(node)
	}
	return p
}

func edgeExists(p *dddg.Program, from, to dddg.NodeID, tag dddg.EdgeTag) bool {
	return p.Graph.HasEdge(from, to, tag)
}

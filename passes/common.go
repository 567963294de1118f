// Package passes implements the ordered sequence of DDDG graph rewrites
// spec.md §4.2 runs between construction and scheduling: induction-variable
// strength reduction, PHI/convert removal, base-address resolution, memory
// disambiguation, loop unrolling/flattening/pipelining, and the fusion and
// tree-height-reduction cleanups that shrink the graph's critical path.
//
// Every pass takes a *dddg.Program (and, where it needs directives, a
// *config.UserConfig) and mutates it in place: edges added or removed,
// microops rewritten, nodes isolated via Graph.ClearVertex but never
// deleted from the node table. Passes run in the fixed order spec.md §4.2
// lists; nothing in this package re-orders them.
package passes

import (
	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/microop"
	"github.com/sarchlab/aladdin/source"
)

// GetUniqueLabel resolves the loop/region label attached to n's source
// line, if any. A node with no labelmap entry at its line (straight-line
// code outside any labeled region) reports ok == false. An inlined call
// site's label is resolved back to the original (pre-inlining) label via
// Program.InlineLabelMap, so a directive written against the source-level
// label still matches after inlining.
func GetUniqueLabel(p *dddg.Program, n *dddg.ExecNode) (source.UniqueLabel, bool) {
	labels := p.LabelMap[n.LineNumber]
	if len(labels) == 0 {
		return source.UniqueLabel{}, false
	}
	label := labels[0]
	if orig, ok := p.InlineLabelMap[label]; ok {
		return orig, true
	}
	return label, true
}

// mustKeepAsLeaf holds for the ops whose side effects matter even with no
// remaining consumer: a store commits to memory, a DMA operation moves
// data, a call/return/branch carries control flow. Everything else that
// ends up with no children is dead and safe to isolate.
func mustKeepAsLeaf(m microop.Microop) bool {
	return m.IsStoreOp() || m.IsDMAOp() || m.IsCallOp() || m.IsRetOp() || m.IsBranchOp()
}

// CleanLeafNodes removes every node that has no remaining children and is
// not one of mustKeepAsLeaf's ops. Removal cascades: isolating a node can
// turn its own parents into new leaves, so this keeps going until nothing
// more can be pruned.
//
// The reference implementation computes this over a Boost
// topological_sort result, walked from the sinks backward. This module's
// NodeID assignment is already a valid topological order -- every edge
// u -> v has u.NodeID < v.NodeID by construction -- so a plain descending
// NodeID walk does the same job without a separate sort pass.
func CleanLeafNodes(p *dddg.Program) {
	numChildren := make([]int, p.NumNodes())
	for _, id := range p.Graph.Vertices() {
		numChildren[id] = len(p.Graph.Children(id))
	}

	nodes := p.Nodes()
	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		if numChildren[n.NodeID] > 0 || mustKeepAsLeaf(n.Microop) {
			// A surviving branch still "consumes" its control-edge parents:
			// once every one of a parent's children has been accounted for
			// this way, that parent is itself a candidate even though the
			// branch below it was never removed.
			if n.Microop.IsBranchOp() {
				for _, e := range p.Graph.InEdges(n.NodeID) {
					if e.Tag == dddg.ControlEdge {
						numChildren[e.From]--
					}
				}
			}
			continue
		}
		for _, parent := range p.Graph.Parents(n.NodeID) {
			numChildren[parent]--
		}
		p.Graph.ClearVertex(n.NodeID)
	}
}

// nonControlParents returns id's distinct parents reached by a non-
// ControlEdge edge -- the set induction-dependence propagation and several
// other passes treat as "real" data predecessors.
func nonControlParents(p *dddg.Program, id dddg.NodeID) []dddg.NodeID {
	seen := map[dddg.NodeID]bool{}
	var out []dddg.NodeID
	for _, e := range p.Graph.InEdges(id) {
		if e.Tag == dddg.ControlEdge {
			continue
		}
		if !seen[e.From] {
			seen[e.From] = true
			out = append(out, e.From)
		}
	}
	return out
}

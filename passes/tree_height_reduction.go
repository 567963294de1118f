package passes

import (
	"sort"

	"github.com/sarchlab/aladdin/dddg"
)

// TreeHeightReduction is pass #14 of spec.md §4.2, the last rewrite before
// scheduling: a chain of associative binary ops (Add/FAdd/Mul/FMul/And/Or/
// Xor) computed as a left- or right-leaning sequence has a critical path
// as long as the chain itself, even though associativity lets it be
// rebalanced into a tree of depth log2(n). Each maximal chain -- a run of
// same-region associative nodes connected by exactly one real (non-control)
// child apiece -- is torn down to its leaves and reassembled as a
// min-height tree, greedily pairing the two lowest-rank available operands
// at each step (leaves native to the chain's own loop region rank low,
// leaves pulled in from outside it rank high, so cross-region values are
// pushed toward the root rather than the leaves).
func TreeHeightReduction(p *dddg.Program) {
	bounds := sortedLoopBounds(p)
	if len(bounds) <= 2 {
		return
	}

	nodes := p.Nodes()
	if len(nodes) == 0 {
		return
	}
	beginID := nodes[0].NodeID
	endID := nodes[len(nodes)-1].NodeID + 1

	updated := make([]bool, p.NumNodes())
	boundRegion := make([]int, p.NumNodes())
	regionID := 0
	boundIdx := 0
	for _, n := range nodes {
		boundRegion[n.NodeID] = regionID
		if boundIdx < len(bounds) && n.NodeID == bounds[boundIdx].NodeID {
			regionID++
			boundIdx++
		}
	}

	var toRemove []dddg.Edge
	var toAdd []dddg.Edge

	for i := len(nodes) - 1; i >= 0; i-- {
		root := nodes[i]
		degree := p.Graph.InDegree(root.NodeID) + p.Graph.OutDegree(root.NodeID)
		if degree == 0 || updated[root.NodeID] || !root.Microop.IsAssociative() {
			continue
		}
		updated[root.NodeID] = true
		rootRegion := boundRegion[root.NodeID]

		type leafEntry struct {
			id          dddg.NodeID
			fromOutside bool
		}
		var rebuildChain []dddg.NodeID // the "nodes" list: internal nodes to reconnect, root last
		var tmpRemove []dddg.Edge
		var leaves []leafEntry

		chain := []dddg.NodeID{root.NodeID}
		for ci := 0; ci < len(chain); ci++ {
			cur := p.Node(chain[ci])
			if !cur.Microop.IsAssociative() {
				leaves = append(leaves, leafEntry{cur.NodeID, false})
				continue
			}
			updated[cur.NodeID] = true

			var realParents []dddg.Edge
			for _, e := range p.Graph.InEdges(cur.NodeID) {
				if e.Tag != dddg.ControlEdge {
					realParents = append(realParents, e)
				}
			}
			if len(realParents) != 2 {
				// No (or too many) real operands to rebalance over --
				// promote this node itself as a high-priority leaf.
				leaves = append(leaves, leafEntry{cur.NodeID, true})
				continue
			}

			rebuildChain = append([]dddg.NodeID{cur.NodeID}, rebuildChain...)
			for _, e := range realParents {
				parent := p.Node(e.From)
				tmpRemove = append(tmpRemove, e)
				if boundRegion[parent.NodeID] != rootRegion {
					leaves = append(leaves, leafEntry{parent.NodeID, true})
					continue
				}
				updated[parent.NodeID] = true
				if !parent.Microop.IsAssociative() {
					leaves = append(leaves, leafEntry{parent.NodeID, false})
					continue
				}
				numChildren := 0
				for _, oe := range p.Graph.OutEdges(parent.NodeID) {
					if oe.Tag != dddg.ControlEdge {
						numChildren++
					}
				}
				if numChildren == 1 {
					chain = append(chain, parent.NodeID)
				} else {
					leaves = append(leaves, leafEntry{parent.NodeID, false})
				}
			}
		}

		if len(rebuildChain) < 3 {
			continue
		}
		toRemove = append(toRemove, tmpRemove...)

		rank := map[dddg.NodeID]dddg.NodeID{}
		for _, lf := range leaves {
			if lf.fromOutside {
				rank[lf.id] = endID
			} else {
				rank[lf.id] = beginID
			}
		}

		for _, newNode := range rebuildChain {
			n1, n2 := pickTwoMinRank(rank)
			toAdd = append(toAdd, dddg.Edge{From: n1, To: newNode, Tag: dddg.DataOperand, Operand: 1})
			toAdd = append(toAdd, dddg.Edge{From: n2, To: newNode, Tag: dddg.DataOperand, Operand: 1})
			r1, r2 := rank[n1], rank[n2]
			maxRank := r1
			if r2 > r1 {
				maxRank = r2
			}
			delete(rank, n1)
			delete(rank, n2)
			rank[newNode] = maxRank + 1
		}
	}

	for _, e := range toRemove {
		p.Graph.RemoveEdge(e.From, e.To)
	}
	for _, e := range toAdd {
		p.Graph.AddEdge(e.From, e.To, e.Tag, e.Operand)
	}
	CleanLeafNodes(p)
}

// pickTwoMinRank returns the two lowest-rank keys of rank, ties broken by
// NodeID for a deterministic rebuild order (the reference implementation
// breaks ties by std::map's pointer order, which carries no semantic
// meaning either -- determinism here just needs to be stable, not to match
// a specific tie-break rule).
func pickTwoMinRank(rank map[dddg.NodeID]dddg.NodeID) (dddg.NodeID, dddg.NodeID) {
	keys := make([]dddg.NodeID, 0, len(rank))
	for k := range rank {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if rank[keys[i]] != rank[keys[j]] {
			return rank[keys[i]] < rank[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys[0], keys[1]
}

package loopinfo

import "github.com/sarchlab/aladdin/dddg"

// applyDMACorrection is the DMA-occlusion heuristic of spec.md §9 / §4.4:
// a node downstream of a DMA load is never made to block on it unless a
// real memory dependence forces the wait, so a loop whose body only
// depends on DMA'd data can start executing before the transfer
// completes. Left uncorrected, that overlap would make the loop's
// measured interval include DMA latency that has nothing to do with the
// loop's own per-iteration cost. As a heuristic, not an exact
// reconstruction, this merges the [start, complete) interval of every
// DMA load feeding a node inside the iteration and, if that merged
// interval overlaps the iteration's start, treats the merged interval's
// end as the iteration's effective start cycle instead.
func applyDMACorrection(p *dddg.Program, it *LoopIteration) {
	mergedStart := int(^uint(0) >> 1)
	mergedEnd := -mergedStart - 1

	for id := it.StartNode + 1; id < it.EndNode; id++ {
		for _, parentID := range p.Graph.Parents(id) {
			parent := p.Node(parentID)
			if !parent.Microop.IsDMALoad() {
				continue
			}
			if parent.StartCycle < mergedStart {
				mergedStart = parent.StartCycle
			}
			if parent.CompleteCycle > mergedEnd {
				mergedEnd = parent.CompleteCycle
			}
		}
	}

	if mergedEnd < it.StartCycle {
		return
	}
	it.StartCycle = mergedEnd
	it.ElapsedCycle = it.EndCycle - it.StartCycle
}

// Upsample corrects every sample's ElapsedCycle for its configured
// sampling factor, in the order the samples were created: a sample taken
// at factor f is assumed to represent f real iterations, so its own
// subtree's elapsed time is scaled by f and the difference is propagated
// up through every ancestor (spec.md §4.4: "the parent chain adds
// (f-1)*elapsed_cycle to each ancestor's elapsed cycle"). Pipelined
// sampled loops -- where peer iterations don't share one termination
// interval -- are expected to have been given an already-averaged factor
// by the caller; Upsample itself applies one multiplicative correction
// per sample regardless of how its factor was derived. Returns the
// root's corrected ElapsedCycle.
func (t *Tree) Upsample() int {
	for _, it := range t.Samples {
		correction := int(float64(it.ElapsedCycle) * (it.Factor - 1))
		scaleSubtree(it, it.Factor)
		propagateToAncestors(it, correction)
		it.Upsampled = true
	}
	return t.Root.ElapsedCycle
}

func scaleSubtree(n *LoopIteration, factor float64) {
	n.ElapsedCycle = int(float64(n.ElapsedCycle) * factor)
	for _, c := range n.Children {
		scaleSubtree(c, factor)
	}
}

func propagateToAncestors(n *LoopIteration, correction int) {
	if n.Parent == nil {
		return
	}
	n.Parent.ElapsedCycle += correction
	propagateToAncestors(n.Parent, correction)
}

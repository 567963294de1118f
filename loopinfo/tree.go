// Package loopinfo reconstructs the hierarchical loop tree spec.md §4.4
// describes: one LoopIteration per pair of loop-boundary branches, nested
// by node-id containment under a synthetic root that spans the whole
// program.
package loopinfo

import (
	"math"
	"sort"

	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/source"
)

// LoopIteration is one iteration of a sampled loop, or the synthetic root
// that contains every real iteration.
type LoopIteration struct {
	Root  bool
	Label source.UniqueLabel

	Factor float64

	StartNode dddg.NodeID
	EndNode   dddg.NodeID

	StartCycle   int
	EndCycle     int
	ElapsedCycle int

	Upsampled bool

	Parent   *LoopIteration
	Children []*LoopIteration
}

// contains reports whether a wholly encloses b by node-id range, the same
// containment test the tree insertion descent uses to find a sample's
// place.
func (a *LoopIteration) contains(b *LoopIteration) bool {
	return a.StartNode <= b.StartNode && a.EndNode >= b.EndNode
}

// Tree is the reconstructed loop-iteration hierarchy for one Program,
// together with the order its samples were created in -- the order
// Upsample applies corrections in.
type Tree struct {
	Root    *LoopIteration
	Samples []*LoopIteration
}

// BuildTree reconstructs the loop-iteration tree for every label in
// factors (a sampling-factor map; a label sampled at factor 1 still gets
// an entry so ElapsedCycle is computed for it even with no upsampling
// correction to apply). Labels are visited in (Function, Label) order so
// the tree -- and the correction order Upsample later applies -- is
// deterministic regardless of map iteration order, per spec.md §8's
// determinism requirement (the original iterates an unordered_map here,
// which is only accidentally deterministic when a single label is
// sampled).
func BuildTree(p *dddg.Program, factors map[source.UniqueLabel]float64) *Tree {
	root := &LoopIteration{Root: true, EndNode: dddg.NodeID(math.MaxInt64)}
	t := &Tree{Root: root}

	for _, label := range sortedLabels(factors) {
		factor := factors[label]
		for _, pair := range p.FindLoopBoundaries(label) {
			it := &LoopIteration{
				Label:      label,
				Factor:     factor,
				StartNode:  pair[0].NodeID,
				EndNode:    pair[1].NodeID,
				StartCycle: pair[0].CompleteCycle,
				EndCycle:   pair[1].CompleteCycle,
			}
			it.ElapsedCycle = it.EndCycle - it.StartCycle
			applyDMACorrection(p, it)
			t.Samples = append(t.Samples, it)
			insertSample(root, it)
		}
	}
	return t
}

func sortedLabels(factors map[source.UniqueLabel]float64) []source.UniqueLabel {
	labels := make([]source.UniqueLabel, 0, len(factors))
	for l := range factors {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].Function != labels[j].Function {
			return labels[i].Function < labels[j].Function
		}
		return labels[i].Label < labels[j].Label
	})
	return labels
}

// insertSample descends from node looking for the deepest existing
// iteration sample contains, absorbing any of node's current children
// sample itself contains, and falling back to a new sibling if sample
// neither contains nor is contained by anything already there. Returns
// false only when node itself does not contain sample at all -- the root
// spans every node id, so a top-level call on root never returns false.
func insertSample(node, sample *LoopIteration) bool {
	if !node.contains(sample) {
		return false
	}
	if len(node.Children) == 0 {
		node.Children = append(node.Children, sample)
		sample.Parent = node
		return true
	}

	inserted := false
	var rebuilt []*LoopIteration
	sampleAdded := false
	for _, child := range node.Children {
		if sample.contains(child) {
			sample.Children = append(sample.Children, child)
			child.Parent = sample
			if !sampleAdded {
				rebuilt = append(rebuilt, sample)
				sample.Parent = node
				sampleAdded = true
			}
			inserted = true
			continue
		}
		if insertSample(child, sample) {
			inserted = true
		}
		rebuilt = append(rebuilt, child)
	}
	node.Children = rebuilt
	if !inserted {
		node.Children = append(node.Children, sample)
		sample.Parent = node
	}
	return true
}

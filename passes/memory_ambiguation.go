package passes

import (
	"sort"

	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/microop"
	"github.com/sarchlab/aladdin/source"
)

// addrSources records the set of nodes a memory address was computed
// from, split into the loads/compute-ops that don't vary with the loop
// induction variable (noninductive) and the IndexAdd nodes that do
// (inductive). Two address computations that agree on their noninductive
// set and have the same nonzero inductive count differ only by which
// iteration they are in, so the stores they feed don't need serializing.
type addrSources struct {
	noninductive []dddg.NodeID
	inductive    []dddg.NodeID
}

func (s *addrSources) addNoninductive(id dddg.NodeID) { s.noninductive = append(s.noninductive, id) }
func (s *addrSources) addInductive(id dddg.NodeID)     { s.inductive = append(s.inductive, id) }

func (s *addrSources) merge(other addrSources) {
	s.noninductive = append(s.noninductive, other.noninductive...)
	s.inductive = append(s.inductive, other.inductive...)
}

func (s *addrSources) empty() bool {
	return len(s.noninductive) == 0 && len(s.inductive) == 0
}

func (s *addrSources) sortUniquify() {
	s.noninductive = sortUniqueNodeIDs(s.noninductive)
	s.inductive = sortUniqueNodeIDs(s.inductive)
}

func sortUniqueNodeIDs(ids []dddg.NodeID) []dddg.NodeID {
	if len(ids) == 0 {
		return ids
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

func sameNodeIDs(a, b []dddg.NodeID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// independentOf reports whether s and other describe addresses that
// differ only by loop iteration: equal noninductive sets, and (unless
// first is set, for the loop's initial iteration which may compute its
// address without an IndexAdd at all) at least one and an equal count of
// inductive sources.
func (s addrSources) independentOf(other addrSources, first bool) bool {
	if !sameNodeIDs(s.noninductive, other.noninductive) {
		return false
	}
	if first {
		return true
	}
	return len(s.inductive) > 0 && len(s.inductive) == len(other.inductive)
}

// MemoryAmbiguation is pass #5 of spec.md §4.2: any memory op whose
// address was computed by a non-inductive GetElementPtr is marked
// dynamic_mem_op, since Aladdin cannot statically rule out aliasing for
// it. Among a group of stores sharing the same dynamic instruction
// identity, consecutive pairs whose address-source chains differ only by
// their inductive component are left independent (they're provably
// different loop iterations writing disjoint locations); every other
// consecutive pair is conservatively serialized with a MEMORY_EDGE.
func MemoryAmbiguation(p *dddg.Program) {
	type gepStorePair struct {
		gep, store dddg.NodeID
	}
	possible := make(map[source.DynamicInstruction][]gepStorePair)

	for _, n := range p.Nodes() {
		if !n.Microop.IsMemoryOp() {
			continue
		}
		for _, e := range p.Graph.InEdges(n.NodeID) {
			parent := p.Node(e.From)
			if parent.Microop != microop.GetElementPtr || parent.Inductive {
				continue
			}
			n.DynamicMemOp = true
			if n.Microop.IsStoreOp() {
				id := source.DynamicInstruction{
					Function:    source.DynamicFunction{Function: n.Function, Invocation: n.DynamicInvocation},
					Instruction: n.Instruction,
				}
				possible[id] = append(possible[id], gepStorePair{gep: parent.NodeID, store: n.NodeID})
			}
		}
	}

	for _, pairs := range possible {
		sources := make([]addrSources, len(pairs))
		for i, pr := range pairs {
			sources[i] = findMemoryAddrSources(p, pr.gep, p.Node(pr.gep).Function)
		}
		for i := 0; i < len(sources)-1; i++ {
			if !sources[i].independentOf(sources[i+1], i == 0) {
				p.Graph.AddEdge(pairs[i].store, pairs[i+1].store, dddg.MemoryEdge, -1)
			}
		}
	}
}

// findMemoryAddrSources recursively walks current's non-control-edge
// parents within fn, collecting every load (a noninductive source) and
// every IndexAdd (an inductive source) it finds, descending through
// further GEP/compute-op ancestors that aren't themselves inductive. A
// node with no such ancestors falls back to itself, if it is a
// noninductive compute op in fn -- the base case for a chain that bottoms
// out at a single non-memory, non-induction value.
func findMemoryAddrSources(p *dddg.Program, id dddg.NodeID, fn source.FunctionID) addrSources {
	var sources addrSources
	node := p.Node(id)

	for _, e := range p.Graph.InEdges(id) {
		if e.Tag == dddg.ControlEdge {
			continue
		}
		parent := p.Node(e.From)
		if parent.Microop.IsLoadOp() {
			sources.addNoninductive(parent.NodeID)
			continue
		}
		if (parent.Microop == microop.GetElementPtr || parent.Microop.IsComputeOp()) && parent.Function == fn {
			if parent.Microop == microop.IndexAdd {
				sources.addInductive(parent.NodeID)
			} else if !parent.Inductive {
				sources.merge(findMemoryAddrSources(p, parent.NodeID, fn))
			}
		}
	}

	if sources.empty() && node.Microop.IsComputeOp() && !node.Inductive && node.Function == fn {
		sources.addNoninductive(id)
	}
	sources.sortUniquify()
	return sources
}

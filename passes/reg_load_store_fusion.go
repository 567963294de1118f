package passes

import (
	"github.com/sarchlab/aladdin/config"
	"github.com/sarchlab/aladdin/dddg"
)

// RegLoadStoreFusion is pass #9 of spec.md §4.2: a load or store against a
// completely-partitioned array (config.Complete, i.e. a register file) does
// not need its own cycle the way an SRAM access does, since LLVM emits the
// same Load/Store IR for a register-backed array as for a real scratchpad
// one. Every non-control data edge into a qualifying store, and out of a
// qualifying load, is retagged REGISTER_EDGE so the scheduler folds it into
// the producing/consuming node's own cycle instead of billing it a separate
// memory-access cycle.
func RegLoadStoreFusion(p *dddg.Program, cfg *config.UserConfig) {
	for _, n := range p.Nodes() {
		if !n.Microop.IsLoadOp() && !n.Microop.IsStoreOp() {
			continue
		}
		entry, err := cfg.ArrayConfig(n.ArrayLabel)
		if err != nil || !entry.IsRegisterFile() {
			continue
		}

		if n.Microop.IsLoadOp() {
			for _, e := range append([]dddg.Edge{}, p.Graph.OutEdges(n.NodeID)...) {
				if e.Tag == dddg.ControlEdge {
					continue
				}
				if p.Node(e.To).Microop.IsLoadOp() {
					continue
				}
				p.Graph.RemoveEdge(e.From, e.To)
				p.Graph.AddEdge(e.From, e.To, dddg.RegisterEdge, e.Operand)
			}
			continue
		}

		for _, e := range append([]dddg.Edge{}, p.Graph.InEdges(n.NodeID)...) {
			if e.Tag == dddg.ControlEdge {
				continue
			}
			if p.Node(e.From).Microop.IsStoreOp() {
				continue
			}
			p.Graph.RemoveEdge(e.From, e.To)
			p.Graph.AddEdge(e.From, e.To, dddg.RegisterEdge, e.Operand)
		}
	}
	CleanLeafNodes(p)
}

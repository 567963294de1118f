// Package sched implements the two-phase scheduler of spec.md §4.3: a
// forward event-driven ASAP pass that assigns start/complete cycles under
// data, control, memory-port, and functional-unit-latency constraints,
// followed by an ALAP pass that compresses slack, and the post-schedule
// register-read/write count.
//
// The ASAP pass is exposed one simulated cycle per Tick call, the same
// step()-per-cycle shape core.Core exposes to its host engine
// (core/core.go's Tick(now sim.VTimeInSec) bool) -- spec.md §5's "the
// core exposes a step() function that advances one simulated cycle."
package sched

import (
	"sort"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/resource"
)

// Scheduler runs the ASAP/ALAP schedule over one Program. Query its
// Program()'s nodes for StartCycle/CompleteCycle once Done() reports true.
type Scheduler struct {
	*sim.TickingComponent

	program *dddg.Program
	pool    *resource.Pool
	mem     MemoryModel

	cycle    int
	ready    []dddg.NodeID       // nodes to attempt at the start of the next cycle
	running  map[dddg.NodeID]int // node -> cycle it completes, for ops mid multi-cycle FU latency
	executed int
	total    int // count of non-isolated nodes; ASAP is done when executed == total
	done     bool

	RegisterReads  map[int]int // cycle -> register reads counted that cycle
	RegisterWrites map[int]int
}

// Builder assembles a Scheduler the chainable With... way core/builder.go
// and api/builder.go both use.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq
	mem    MemoryModel
}

// NewBuilder returns a Builder with ConstantMemoryModel defaults.
func NewBuilder() Builder {
	return Builder{freq: 1 * sim.GHz, mem: DefaultMemoryModel()}
}

func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

func (b Builder) WithMemoryModel(m MemoryModel) Builder {
	b.mem = m
	return b
}

// Build returns a Scheduler over program, with port arbitration against
// pool, prepared and ready for its first Tick.
func (b Builder) Build(name string, program *dddg.Program, pool *resource.Pool) *Scheduler {
	s := &Scheduler{
		program: program,
		pool:    pool,
		mem:     b.mem,
		running: make(map[dddg.NodeID]int),
	}
	s.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, s)
	s.prepare()
	return s
}

// prepare computes num_parents = in_degree for every node, marks
// zero-total-degree non-DMA nodes isolated (spec.md §4.3's "Preparation"
// step), and seeds the ready queue with every zero-parent non-isolated
// node in node_id order.
func (s *Scheduler) prepare() {
	for _, n := range s.program.Nodes() {
		n.NumParentsRemaining = s.program.Graph.InDegree(n.NodeID)
		totalDegree := n.NumParentsRemaining + s.program.Graph.OutDegree(n.NodeID)
		n.Isolated = totalDegree == 0 && !n.Microop.IsDMAOp()
		if !n.Isolated {
			s.total++
		}
	}
	for _, n := range s.program.Nodes() {
		if !n.Isolated && n.NumParentsRemaining == 0 {
			s.ready = append(s.ready, n.NodeID)
		}
	}
}

// NewStandalone builds a Scheduler driven directly by repeated Tick
// calls rather than through an akita sim.Engine -- the "a coupled host
// simulator can hold the sim.TickingComponent itself and call Tick
// directly" mode spec.md §5's step() wording describes, for a
// command-line run with no gem5 (or other) engine to delegate to.
func NewStandalone(program *dddg.Program, pool *resource.Pool, mem MemoryModel) *Scheduler {
	s := &Scheduler{
		program: program,
		pool:    pool,
		mem:     mem,
		running: make(map[dddg.NodeID]int),
	}
	s.prepare()
	return s
}

// RunToCompletion repeatedly calls Tick until the ASAP pass and the
// ALAP/register-accounting passes that follow it have all finished.
func (s *Scheduler) RunToCompletion() {
	for !s.Done() {
		s.Tick()
	}
}

// Done reports whether the ASAP pass (and the ALAP/register-accounting
// passes that run once it finishes) have completed.
func (s *Scheduler) Done() bool { return s.done }

// Cycles returns the ASAP schedule's total cycle count once Done.
func (s *Scheduler) Cycles() int { return s.cycle }

// Program returns the Program this Scheduler schedules, for callers that
// want to read back per-node StartCycle/CompleteCycle after Done.
func (s *Scheduler) Program() *dddg.Program { return s.program }

// Tick advances the ASAP schedule by one cycle. It returns true when at
// least one node started or completed in that cycle, so a cycle spent
// only waiting on a multi-cycle op returns false; once every non-isolated
// node has
// executed it runs the ALAP compression pass and the register-access
// count exactly once, then returns false on every subsequent call.
func (s *Scheduler) Tick() (madeProgress bool) {
	if s.done {
		return false
	}
	if s.executed >= s.total {
		s.compress()
		s.countRegisterAccesses()
		s.done = true
		return false
	}

	cycle := s.cycle
	s.pool.ResetCycle()

	queue := s.ready
	s.ready = nil

	completing := make([]dddg.NodeID, 0, len(s.running))
	for id, completeAt := range s.running {
		if completeAt == cycle {
			completing = append(completing, id)
		}
	}
	sort.Slice(completing, func(i, j int) bool { return completing[i] < completing[j] })

	for _, id := range completing {
		delete(s.running, id)
		node := s.program.Node(id)
		node.CompleteCycle = cycle
		s.executed++
		queue = append(queue, s.completeNode(id, cycle)...)
		madeProgress = true
	}

	for len(queue) > 0 {
		sortStoresFirst(s.program, queue)
		var sameCycle []dddg.NodeID
		for _, id := range queue {
			node := s.program.Node(id)
			if !s.tryStart(node, cycle) {
				s.ready = append(s.ready, id)
				continue
			}
			madeProgress = true
			lat := s.latency(node)
			if lat <= 1 {
				node.CompleteCycle = cycle
				s.executed++
				sameCycle = append(sameCycle, s.completeNode(id, cycle)...)
			} else {
				s.running[id] = cycle + lat - 1
			}
		}
		queue = sameCycle
	}

	s.cycle++
	return madeProgress
}

// tryStart attempts to acquire node's memory port (if it has one) and, on
// success, records its start cycle. A memory op whose partition's port
// budget is exhausted this cycle is left untouched and must be retried
// next cycle -- spec.md §7: "port arbitration failures are never errors;
// they back-pressure the node to the next cycle." A node whose array
// can't be resolved to a partition (a dynamic_mem_op, or an array the
// Pool has no record of) has no budget to arbitrate against and is let
// through unconditionally.
func (s *Scheduler) tryStart(node *dddg.ExecNode, cycle int) bool {
	if node.Mem != nil && node.ArrayLabel != "" && !node.DynamicMemOp {
		kind := resource.Read
		if node.Microop.IsStoreOp() {
			kind = resource.Write
		}
		if ok, err := s.pool.TryAcquire(node.ArrayLabel, kind); err == nil && !ok {
			return false
		}
	}
	node.StartCycle = cycle
	return true
}

// completeNode marks id complete at cycle, decrements every child's
// num_parents by one per incoming edge, and returns the children that
// became ready to start this same cycle: those reached by a
// REGISTER_EDGE or FUSED_BRANCH_EDGE, or by any non-CONTROL_EDGE when
// either the completing node or the child is itself zero-latency.
// Children that don't qualify are queued for next cycle instead.
func (s *Scheduler) completeNode(id dddg.NodeID, cycle int) []dddg.NodeID {
	parentZeroLatency := s.latency(s.program.Node(id)) == 0

	var sameCycle []dddg.NodeID
	for _, e := range s.program.Graph.OutEdges(id) {
		child := s.program.Node(e.To)
		child.NumParentsRemaining--
		if child.NumParentsRemaining > 0 {
			continue
		}
		switch {
		case e.Tag == dddg.RegisterEdge || e.Tag == dddg.FusedBranchEdge:
			sameCycle = append(sameCycle, e.To)
		case e.Tag != dddg.ControlEdge && (parentZeroLatency || s.latency(child) == 0):
			sameCycle = append(sameCycle, e.To)
		default:
			s.ready = append(s.ready, e.To)
		}
	}
	return sameCycle
}

// sortStoresFirst places store (and silent-store) nodes ahead of
// everything else in queue, stably, per spec.md §4.3's ordering
// guarantee: "Within a cycle, stores are placed at the front of the
// executing queue" (they release RAW-edge children earlier).
func sortStoresFirst(p *dddg.Program, queue []dddg.NodeID) {
	sort.SliceStable(queue, func(i, j int) bool {
		si := p.Node(queue[i]).Microop.IsStoreOp()
		sj := p.Node(queue[j]).Microop.IsStoreOp()
		return si && !sj
	})
}

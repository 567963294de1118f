package sched

// countRegisterAccesses implements spec.md §4.3's "Register accounting":
// for each non-control, non-index node N completing at cycle T_w, count a
// write at T_w if at least one child consumes later than T_w; for each
// such child (other than loads and control ops) starting at T_r > T_w,
// count a read at T_r. The live value spans cycles (T_w, T_r].
func (s *Scheduler) countRegisterAccesses() {
	s.RegisterReads = make(map[int]int)
	s.RegisterWrites = make(map[int]int)

	for _, n := range s.program.Nodes() {
		if n.Isolated || n.Microop.IsControlOp() || n.Microop.IsIndexOp() {
			continue
		}

		tw := n.CompleteCycle
		wrote := false
		for _, childID := range s.program.Graph.Children(n.NodeID) {
			child := s.program.Node(childID)
			if child.Microop.IsLoadOp() || child.Microop.IsControlOp() {
				continue
			}
			tr := child.StartCycle
			if tr > tw {
				wrote = true
				s.RegisterReads[tr]++
			}
		}
		if wrote {
			s.RegisterWrites[tw]++
		}
	}
}

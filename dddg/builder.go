package dddg

import (
	"io"
	"math"
	"strconv"

	"github.com/sarchlab/aladdin/microop"
	"github.com/sarchlab/aladdin/source"
	"github.com/sarchlab/aladdin/trace"
)

// Builder consumes a parsed trace record by record and incrementally
// populates a Program: one ExecNode per instruction header, and a
// DataOperand (register)/MEMORY_EDGE/CONTROL_EDGE edge for every dependency
// the builder can resolve from the records seen so far. Grounded on the reference
// DDDG builder's per-tag dispatch (DDDG.cpp's parse_instruction_line /
// parse_parameter / parse_result / parse_forward), carried over field for
// field but against this module's own node/graph/source types.
type Builder struct {
	mgr     *source.Manager
	program *Program

	registerLastWritten map[source.DynamicVariable]NodeID
	addressLastWritten   map[uint64]NodeID

	activeMethod         []source.DynamicFunction
	currDynamicFunction  source.DynamicFunction
	calleeFunction       source.FunctionID
	calleeDynamicFunction source.DynamicFunction
	uniqueRegInCallerFunc *source.DynamicVariable

	currNode       *ExecNode
	prevMicroop    microop.Microop
	currMicroop    microop.Microop
	prevBasicBlock source.BasicBlockID
	currBasicBlock source.BasicBlockID

	lastCallSource NodeID
	lastDmaFence   NodeID
	lastDmaNodes   []NodeID

	paramValues []uint64
	paramSizes  []int
	paramLabels []string

	lastParameter bool
	numParameters int

	numRegDep  int
	numMemDep  int
	numCtrlDep int

	// readyMode mirrors UserConfig.ReadyMode: when set, DMA loads issue as
	// soon as their data is available rather than waiting for the whole
	// transfer, so the conservative RAW/WAW tracking below is skipped.
	readyMode bool
}

// SetReadyMode configures whether DMA loads are tracked under the
// conservative (RAW/WAW-enforcing) memory model or the full/empty-bit
// model, matching the UserConfig `ready_mode` directive.
func (b *Builder) SetReadyMode(ready bool) { b.readyMode = ready }

const noNode NodeID = -1

// NewBuilder returns an empty Builder that interns entities into mgr.
func NewBuilder(mgr *source.Manager) *Builder {
	return &Builder{
		mgr:                  mgr,
		program:               NewProgram(mgr),
		registerLastWritten:   make(map[source.DynamicVariable]NodeID),
		addressLastWritten:    make(map[uint64]NodeID),
		lastCallSource:        noNode,
		lastDmaFence:          noNode,
	}
}

// Build drains r, building up the Program one record at a time, and
// returns it. The loader fails fast: a truncated trace or a malformed
// record aborts construction and returns an error rather than a silently
// partial Program, matching the trace and config loaders' "fail fast, no
// partial Program" policy.
func (b *Builder) Build(r *trace.Reader) (*Program, error) {
	for _, e := range r.LabelMap() {
		fn := b.mgr.InternFunction(e.Function)
		lbl := b.mgr.InternLabel(e.Label)
		b.program.AddLabel(e.LineNumber, source.UniqueLabel{Function: fn, Label: lbl})
	}

	for {
		rec, err := r.Next()
		if err == io.EOF {
			return b.program, nil
		}
		if err != nil {
			return nil, err
		}

		switch {
		case rec.Instruction != nil:
			b.handleInstruction(rec.Instruction)
		case rec.Parameter != nil:
			b.handleParameter(rec.Parameter)
		case rec.Result != nil:
			b.handleResult(rec.Result)
		case rec.Forward != nil:
			b.handleForward(rec.Forward)
		}
	}
}

// NumRegisterDependencies, NumMemoryDependencies, and NumControlDependencies
// report the edge counts accumulated during Build, split by kind --
// mirrors the summary the reference builder prints after construction.
func (b *Builder) NumRegisterDependencies() int { return b.numRegDep }
func (b *Builder) NumMemoryDependencies() int   { return b.numMemDep }
func (b *Builder) NumControlDependencies() int  { return b.numCtrlDep }

func (b *Builder) handleInstruction(ir *trace.InstructionRecord) {
	nodeID := NodeID(b.program.NumNodes())
	function := b.mgr.InternFunction(ir.Function)
	instID := b.mgr.InternInstruction(ir.InstructionID, false)
	bb := b.mgr.InternBasicBlock(ir.BasicBlock)
	op := microop.Microop(ir.Microop)

	b.prevMicroop = b.currMicroop
	b.currMicroop = op

	b.trackDynamicFunction(function, op)

	if op == microop.PHI && b.prevMicroop != microop.PHI {
		b.prevBasicBlock = b.currBasicBlock
	}

	if op.IsDMAFence() {
		b.lastDmaFence = nodeID
		for _, n := range b.lastDmaNodes {
			b.program.Graph.AddEdge(n, nodeID, ControlEdge, 0)
			b.numCtrlDep++
		}
		b.lastDmaNodes = nil
	} else if op.IsDMAOp() {
		if b.lastDmaFence != noNode {
			b.program.Graph.AddEdge(b.lastDmaFence, nodeID, ControlEdge, 0)
			b.numCtrlDep++
		}
		b.lastDmaNodes = append(b.lastDmaNodes, nodeID)
	}

	b.currBasicBlock = bb

	node := NewExecNode(nodeID, op)
	node.Function = function
	node.Instruction = instID
	node.BasicBlock = bb
	node.LineNumber = ir.LineNumber
	node.DynamicInvocation = b.currDynamicFunction.Invocation
	b.program.AddNode(node)
	b.currNode = node

	b.lastParameter = false
	b.paramValues = b.paramValues[:0]
	b.paramSizes = b.paramSizes[:0]
	b.paramLabels = b.paramLabels[:0]
}

// trackDynamicFunction mirrors parse_instruction_line's active_method
// bookkeeping: identify which invocation of `function` this instruction
// belongs to, pushing a new DynamicFunction on a call and popping on a Ret.
func (b *Builder) trackDynamicFunction(function source.FunctionID, op microop.Microop) {
	currFuncFound := false
	if len(b.activeMethod) > 0 {
		top := b.activeMethod[len(b.activeMethod)-1]
		if top.Function == function {
			if b.prevMicroop == microop.Call && b.calleeFunction == function {
				inv := b.mgr.BumpInvocation(function)
				b.currDynamicFunction = source.DynamicFunction{Function: function, Invocation: inv}
				b.activeMethod = append(b.activeMethod, b.currDynamicFunction)
			} else {
				b.currDynamicFunction = top
			}
			currFuncFound = true
		}
		if op.IsRetOp() {
			b.activeMethod = b.activeMethod[:len(b.activeMethod)-1]
		}
	}
	if !currFuncFound {
		inv := b.mgr.BumpInvocation(function)
		b.currDynamicFunction = source.DynamicFunction{Function: function, Invocation: inv}
		b.activeMethod = append(b.activeMethod, b.currDynamicFunction)
	}
}

func (b *Builder) handleParameter(pr *trace.ParameterRecord) {
	if b.currNode.Microop == microop.PHI && pr.HasPrevBlock {
		bbID := b.mgr.InternBasicBlock(pr.PrevBasicBlock)
		if bbID != b.prevBasicBlock {
			return
		}
	}

	if !b.lastParameter {
		b.numParameters = pr.Index
		if b.currNode.Microop == microop.Call {
			b.calleeFunction = b.mgr.InternFunction(pr.Label)
		}
		b.calleeDynamicFunction = source.DynamicFunction{
			Function:   b.calleeFunction,
			Invocation: b.mgr.Invocations(b.calleeFunction) + 1,
		}
	}
	b.lastParameter = true
	b.lastCallSource = noNode

	if pr.IsRegister {
		variable := b.mgr.InternVariable(pr.Label)
		ref := source.DynamicVariable{Function: b.currDynamicFunction, Variable: variable}
		if b.currNode.Microop == microop.Call {
			r := ref
			b.uniqueRegInCallerFunc = &r
		}
		if src, ok := b.registerLastWritten[ref]; ok {
			b.program.Graph.AddEdge(src, b.currNode.NodeID, DataOperand, pr.Index)
			b.numRegDep++
			if b.currNode.Microop == microop.Call {
				b.lastCallSource = src
			}
		} else if (b.currNode.Microop.IsStoreOp() && pr.Index == 2) ||
			(b.currNode.Microop.IsLoadOp() && pr.Index == 1) {
			b.registerLastWritten[ref] = b.currNode.NodeID
		}
	}

	isMemParam := b.currNode.Microop.IsLoadOp() || b.currNode.Microop.IsStoreOp() ||
		b.currNode.Microop == microop.GetElementPtr || b.currNode.Microop.IsDMAOp()
	if !isMemParam {
		return
	}

	addr, err := trace.ParseAddress(pr.ValueStr)
	if err != nil {
		addr = 0
	}
	b.paramValues = append(b.paramValues, addr)
	b.paramSizes = append(b.paramSizes, pr.SizeBits)
	b.paramLabels = append(b.paramLabels, pr.Label)
	n := len(b.paramValues)

	switch {
	case pr.Index == 1 && b.currNode.Microop.IsLoadOp():
		varID := b.mgr.InternVariable(pr.Label)
		b.currNode.VariableID = varID
		b.currNode.ArrayLabel = pr.Label

	case pr.Index == 2 && b.currNode.Microop.IsStoreOp():
		memAddr := b.paramValues[0]
		if src, ok := b.addressLastWritten[memAddr]; ok {
			// A DMA load is variable-latency, so a plain overwrite of the
			// map entry is not enough to order this store after it: emit
			// an explicit WAW edge across the whole DMA'd range.
			if b.program.Node(src).Microop.IsDMALoad() {
				memSize := b.paramSizes[n-1] / 8
				b.handlePostWriteDependency(memAddr, memSize, b.currNode.NodeID)
			}
		}
		b.addressLastWritten[memAddr] = b.currNode.NodeID
		varID := b.mgr.InternVariable(pr.Label)
		b.currNode.VariableID = varID
		b.currNode.ArrayLabel = pr.Label

	case pr.Index == 1 && b.currNode.Microop == microop.GetElementPtr:
		baseAddr := b.paramValues[n-1]
		baseLabel := b.paramLabels[n-1]
		varID := b.mgr.InternVariable(baseLabel)
		b.currNode.VariableID = varID
		realName := b.resolveArrayName(baseLabel)
		b.currNode.ArrayLabel = realName
		b.program.BaseAddresses[realName] = baseAddr

	case pr.Index == 1 && b.currNode.Microop.IsDMAOp():
		// DMA data dependencies require every argument, so they are
		// resolved in handleResult once the full record has arrived.
	}
}

// resolveArrayName walks an array reference through call_arg_map to its
// canonical, top-level name -- the same backward trace BaseAddressInit
// performs later for ops it revisits, done here eagerly for the GEP that
// first observes a base address.
func (b *Builder) resolveArrayName(label string) string {
	varID := b.mgr.InternVariable(label)
	ref := source.DynamicVariable{Function: b.currDynamicFunction, Variable: varID}
	real := b.program.CallArgMap.Resolve(ref)
	return b.mgr.VariableName(real.Variable)
}

// handlePostWriteDependency emits a MEMORY_EDGE from whichever node last
// wrote any byte in [start, start+size) to sink, mirroring the original's
// byte-range RAW/WAW scan.
func (b *Builder) handlePostWriteDependency(start uint64, size int, sink NodeID) {
	seen := map[NodeID]bool{}
	for a := start; a < start+uint64(size); a++ {
		src, ok := b.addressLastWritten[a]
		if !ok || seen[src] {
			continue
		}
		seen[src] = true
		if !b.program.Graph.HasEdge(src, sink, MemoryEdge) {
			b.program.Graph.AddEdge(src, sink, MemoryEdge, -1)
			b.numMemDep++
		}
	}
}

func (b *Builder) handleResult(rr *trace.ResultRecord) {
	isFloat := trace.IsFloatValue(rr.ValueStr)
	if b.currNode.Microop.IsFPOp() && rr.SizeBits == 64 {
		b.currNode.DoublePrecision = true
	}

	variable := b.mgr.InternVariable(rr.Label)
	ref := source.DynamicVariable{Function: b.currDynamicFunction, Variable: variable}
	b.registerLastWritten[ref] = b.currNode.NodeID

	switch {
	case b.currNode.Microop.IsAllocaOp():
		addr, _ := trace.ParseAddress(rr.ValueStr)
		b.currNode.VariableID = variable
		b.currNode.ArrayLabel = rr.Label
		b.program.BaseAddresses[rr.Label] = addr

	case b.currNode.Microop.IsLoadOp():
		memAddr := b.paramValues[len(b.paramValues)-1]
		memSize := rr.SizeBits / 8
		b.handlePostWriteDependency(memAddr, memSize, b.currNode.NodeID)
		bits := bitsOf(rr.ValueStr, memSize, isFloat)
		b.currNode.SetMemAccess(memAddr, memSize, isFloat, bits)

	case b.currNode.Microop.IsDMAOp():
		b.handleDMAResult()
	}
}

// handleDMAResult resolves a DMA node's base/src/dst/size arguments, which
// only become fully known once every parameter has been seen. Two
// interface versions are supported: a 4-argument form where the source and
// destination offsets coincide, and a 5-argument form where they differ.
func (b *Builder) handleDMAResult() {
	var baseAddr, size uint64
	var srcOff, dstOff uint64
	switch len(b.paramValues) {
	case 4:
		baseAddr = b.paramValues[1]
		srcOff = b.paramValues[2]
		dstOff = srcOff
		size = b.paramValues[3]
	case 5:
		baseAddr = b.paramValues[1]
		srcOff = b.paramValues[2]
		dstOff = b.paramValues[3]
		size = b.paramValues[4]
	default:
		return
	}
	b.currNode.DMA = &DMAAccess{HostBase: baseAddr, SrcOffset: srcOff, DstOffset: dstOff, Size: size}

	if b.currNode.Microop.IsDMALoad() {
		if !b.readyMode {
			start := baseAddr + dstOff
			for a := start; a < start+size; a++ {
				b.addressLastWritten[a] = b.currNode.NodeID
			}
		}
	} else {
		start := baseAddr + srcOff
		b.handlePostWriteDependency(start, int(size), b.currNode.NodeID)
	}
}

func (b *Builder) handleForward(fr *trace.ForwardRecord) {
	variable := b.mgr.InternVariable(fr.Label)
	ref := source.DynamicVariable{Function: b.calleeDynamicFunction, Variable: variable}

	if b.uniqueRegInCallerFunc != nil {
		b.program.CallArgMap.Set(ref, *b.uniqueRegInCallerFunc)
		b.uniqueRegInCallerFunc = nil
	}

	written := b.currNode.NodeID
	if b.lastCallSource != noNode {
		written = b.lastCallSource
	}
	b.registerLastWritten[ref] = written
}

// bitsOf converts a trace value string into its IEEE-754 bit pattern when
// the value is a float (zero-padded into the low bits for a 4-byte float),
// or a plain integer cast otherwise -- mirrors the FP2BitsConverter helper,
// minus the union trick C++ needs and Go does not.
func bitsOf(valueStr string, sizeBytes int, isFloat bool) uint64 {
	if !isFloat {
		v, _ := strconv.ParseFloat(valueStr, 64)
		return uint64(v)
	}
	v, _ := strconv.ParseFloat(valueStr, 64)
	if sizeBytes == 4 {
		return uint64(math.Float32bits(float32(v)))
	}
	return math.Float64bits(v)
}

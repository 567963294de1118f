// Package config defines the UserConfig schema of spec.md §6.2 and a
// loader for its plain-text directive format, written in the teacher's
// line-based parsing idiom (core/program.go's parseASMInstruction).
package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/aladdin/source"
)

// MemoryType names which kind of memory backs an array: a partitioned
// scratchpad, a fully partitioned register file, a cache, the
// accelerator-coherent-port path, or direct host memory.
type MemoryType int

const (
	Spad MemoryType = iota
	SpadBypass
	Reg
	Cache
	ACP
	Host
)

// PartitionType names how a scratchpad array is split across partitions.
type PartitionType int

const (
	Block PartitionType = iota
	Cyclic
	Complete
	NonePartition
)

// PartitionEntry is one array's entry in the partition map.
type PartitionEntry struct {
	MemoryType    MemoryType
	PartitionType PartitionType
	ArraySize     uint64 // bytes
	WordSize      uint64 // bytes
	PartFactor    int
	BaseAddr      uint64
}

// IsRegisterFile reports whether array is completely partitioned, i.e. a
// register file -- RegLoadStoreFusion and the scheduler's port-budget
// logic both dispatch on this.
func (p PartitionEntry) IsRegisterFile() bool {
	return p.PartitionType == Complete
}

// UserConfig is the fully-parsed configuration of spec.md §6.2: loop
// transformation directives, the scratchpad partition map, and global
// machine parameters.
type UserConfig struct {
	Flatten    map[source.UniqueLabel]bool
	Unrolling  map[source.UniqueLabel]int
	Pipeline   map[source.UniqueLabel]bool
	Pipelining bool // global pipelining on/off

	Partition map[string]PartitionEntry

	CycleTimeNs     float64
	ReadyMode       bool
	ScratchpadPorts int
}

// New returns a UserConfig with the defaults the original implementation
// assumes when a directive is absent (user_config.h: cycle_time=1,
// ready_mode=false, scratchpad_ports=1).
func New() *UserConfig {
	return &UserConfig{
		Flatten:         make(map[source.UniqueLabel]bool),
		Unrolling:       make(map[source.UniqueLabel]int),
		Pipeline:        make(map[source.UniqueLabel]bool),
		Partition:       make(map[string]PartitionEntry),
		CycleTimeNs:     1,
		ReadyMode:       false,
		ScratchpadPorts: 1,
	}
}

// UnrollFactor returns the configured unroll factor for label, or 1 (no
// unrolling) if unconfigured. A factor of 0 is the flatten sentinel: it is
// returned for a label with a flatten directive.
func (c *UserConfig) UnrollFactor(label source.UniqueLabel) int {
	if c.Flatten[label] {
		return 0
	}
	if f, ok := c.Unrolling[label]; ok {
		return f
	}
	return 1
}

// IsPipelined reports whether label is configured for per-loop pipelining.
// Global pipelining is a separate knob consulted by the caller.
func (c *UserConfig) IsPipelined(label source.UniqueLabel) bool {
	return c.Pipeline[label]
}

// ArrayConfig looks up array's partition entry. A missing array is the
// UnknownArray error condition of spec.md §7.
func (c *UserConfig) ArrayConfig(array string) (PartitionEntry, error) {
	e, ok := c.Partition[array]
	if !ok {
		return PartitionEntry{}, &UnknownArrayError{Array: array}
	}
	return e, nil
}

// UnknownArrayError is spec.md §7's UnknownArray condition: an array is
// referenced with no partition entry and is not implicitly host memory.
type UnknownArrayError struct {
	Array string
}

func (e *UnknownArrayError) Error() string {
	return fmt.Sprintf("unknown array %q: no partition directive configures it "+
		"(add a `partition` or `partition,complete` line, or map it to host memory)", e.Array)
}

// DirectiveError is spec.md §7's MissingConfigDirective condition: an
// unrecognized directive keyword was seen. Config loading fails fast on
// this, matching "the trace and config loaders fail fast (no partial
// Program)".
type DirectiveError struct {
	Line      int
	Directive string
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("config line %d: unknown directive %q", e.Line, e.Directive)
}

// Load parses a UserConfig from r. resolve converts a (function, label)
// string pair into a source.UniqueLabel via the caller's SourceManager so
// the config and the trace share one id space.
func Load(r io.Reader, resolve func(function, label string) source.UniqueLabel) (*UserConfig, error) {
	cfg := New()
	sc := bufio.NewScanner(r)
	lineNo := 0

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := splitDirective(line)
		if len(fields) == 0 {
			continue
		}

		directive := fields[0]
		args := fields[1:]

		var err error
		switch directive {
		case "flatten":
			err = parseFlatten(cfg, args, resolve)
		case "unrolling":
			err = parseUnrolling(cfg, args, resolve)
		case "pipeline":
			err = parsePipeline(cfg, args, resolve)
		case "pipelining":
			err = parseBoolInto(args, &cfg.Pipelining)
		case "partition":
			err = parsePartition(cfg, args)
		case "cache":
			err = parseCache(cfg, args)
		case "cycle_time":
			err = parseFloatInto(args, &cfg.CycleTimeNs)
		case "ready_mode":
			err = parseBoolInto(args, &cfg.ReadyMode)
		case "scratchpad_ports":
			err = parseIntInto(args, &cfg.ScratchpadPorts)
		default:
			return nil, &DirectiveError{Line: lineNo, Directive: directive}
		}
		if err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	checkOverlaps(cfg)
	return cfg, nil
}

// LoadFile opens path and delegates to Load. A missing file is
// spec.md §7's fatal MissingTrace-equivalent condition for config: it is
// reported to the caller, which aborts construction.
func LoadFile(path string, resolve func(function, label string) source.UniqueLabel) (*UserConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config %s: %w", path, err)
	}
	defer f.Close()
	return Load(f, resolve)
}

func splitDirective(line string) []string {
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

func parseFlatten(cfg *UserConfig, args []string, resolve func(string, string) source.UniqueLabel) error {
	if len(args) < 2 {
		return fmt.Errorf("flatten requires function,label")
	}
	cfg.Flatten[resolve(args[0], args[1])] = true
	return nil
}

func parseUnrolling(cfg *UserConfig, args []string, resolve func(string, string) source.UniqueLabel) error {
	if len(args) < 3 {
		return fmt.Errorf("unrolling requires function,label,factor")
	}
	factor, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("bad unroll factor %q: %w", args[2], err)
	}
	cfg.Unrolling[resolve(args[0], args[1])] = factor
	return nil
}

func parsePipeline(cfg *UserConfig, args []string, resolve func(string, string) source.UniqueLabel) error {
	if len(args) < 2 {
		return fmt.Errorf("pipeline requires function,label")
	}
	cfg.Pipeline[resolve(args[0], args[1])] = true
	return nil
}

func parsePartition(cfg *UserConfig, args []string) error {
	if len(args) > 0 && args[0] == "complete" {
		if len(args) < 3 {
			return fmt.Errorf("partition,complete requires array,size")
		}
		size, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("bad array size %q: %w", args[2], err)
		}
		cfg.Partition[args[1]] = PartitionEntry{
			MemoryType:    Reg,
			PartitionType: Complete,
			ArraySize:     size,
			PartFactor:    1,
		}
		return nil
	}

	if len(args) < 5 {
		return fmt.Errorf("partition requires cyclic|block,array,size,wordsize,factor")
	}
	var ptype PartitionType
	switch args[0] {
	case "cyclic":
		ptype = Cyclic
	case "block":
		ptype = Block
	default:
		return fmt.Errorf("unknown partition kind %q", args[0])
	}
	size, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("bad array size %q: %w", args[2], err)
	}
	wordsize, err := strconv.ParseUint(args[3], 10, 64)
	if err != nil {
		return fmt.Errorf("bad wordsize %q: %w", args[3], err)
	}
	factor, err := strconv.Atoi(args[4])
	if err != nil {
		return fmt.Errorf("bad factor %q: %w", args[4], err)
	}
	cfg.Partition[args[1]] = PartitionEntry{
		MemoryType:    Spad,
		PartitionType: ptype,
		ArraySize:     size,
		WordSize:      wordsize,
		PartFactor:    factor,
	}
	return nil
}

func parseCache(cfg *UserConfig, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("cache requires array,size")
	}
	size, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("bad cache size %q: %w", args[1], err)
	}
	cfg.Partition[args[0]] = PartitionEntry{
		MemoryType:    Cache,
		PartitionType: NonePartition,
		ArraySize:     size,
	}
	return nil
}

func parseFloatInto(args []string, dst *float64) error {
	if len(args) < 1 {
		return fmt.Errorf("missing value")
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func parseIntInto(args []string, dst *int) error {
	if len(args) < 1 {
		return fmt.Errorf("missing value")
	}
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func parseBoolInto(args []string, dst *bool) error {
	if len(args) < 1 {
		return fmt.Errorf("missing value")
	}
	*dst = args[0] == "1"
	return nil
}

// checkOverlaps logs spec.md §7's OverlappingRanges condition: two
// declared arrays whose [BaseAddr, BaseAddr+ArraySize) ranges intersect.
// This is a warning only, never fatal.
func checkOverlaps(cfg *UserConfig) {
	names := make([]string, 0, len(cfg.Partition))
	for name := range cfg.Partition {
		names = append(names, name)
	}
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			a, b := cfg.Partition[names[i]], cfg.Partition[names[j]]
			if a.ArraySize == 0 || b.ArraySize == 0 {
				continue
			}
			if a.BaseAddr < b.BaseAddr+b.ArraySize && b.BaseAddr < a.BaseAddr+a.ArraySize {
				slog.Warn("overlapping array ranges",
					"array1", names[i], "array2", names[j])
			}
		}
	}
}

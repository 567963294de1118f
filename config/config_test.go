package config

import (
	"strings"
	"testing"

	"github.com/sarchlab/aladdin/source"
)

func testResolver(mgr *source.Manager) func(string, string) source.UniqueLabel {
	return func(function, label string) source.UniqueLabel {
		return source.UniqueLabel{
			Function: mgr.InternFunction(function),
			Label:    mgr.InternLabel(label),
		}
	}
}

func TestLoadParsesAllDirectives(t *testing.T) {
	input := `
# a comment
unrolling, triad, loop1, 2
pipeline, triad, loop1
pipelining, 1
partition, cyclic, a, 512, 4, 2
partition, block, b, 512, 4, 2
partition,complete, result, 64
cache, big, 4096
cycle_time, 0.666
ready_mode, 1
scratchpad_ports, 2
`
	mgr := source.NewManager()
	cfg, err := Load(strings.NewReader(input), testResolver(mgr))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	label := source.UniqueLabel{Function: mgr.InternFunction("triad"), Label: mgr.InternLabel("loop1")}
	if got := cfg.UnrollFactor(label); got != 2 {
		t.Errorf("UnrollFactor = %d, want 2", got)
	}
	if !cfg.IsPipelined(label) {
		t.Errorf("expected loop1 to be pipelined")
	}
	if !cfg.Pipelining {
		t.Errorf("expected global pipelining on")
	}

	a, err := cfg.ArrayConfig("a")
	if err != nil || a.PartitionType != Cyclic || a.PartFactor != 2 {
		t.Errorf("ArrayConfig(a) = %+v, err=%v", a, err)
	}

	result, err := cfg.ArrayConfig("result")
	if err != nil || !result.IsRegisterFile() {
		t.Errorf("ArrayConfig(result) = %+v, err=%v, want register file", result, err)
	}

	big, err := cfg.ArrayConfig("big")
	if err != nil || big.MemoryType != Cache {
		t.Errorf("ArrayConfig(big) = %+v, err=%v, want Cache", big, err)
	}

	if cfg.CycleTimeNs != 0.666 {
		t.Errorf("CycleTimeNs = %v, want 0.666", cfg.CycleTimeNs)
	}
	if !cfg.ReadyMode {
		t.Errorf("expected ready mode on")
	}
	if cfg.ScratchpadPorts != 2 {
		t.Errorf("ScratchpadPorts = %d, want 2", cfg.ScratchpadPorts)
	}
}

func TestFlattenSentinel(t *testing.T) {
	mgr := source.NewManager()
	cfg, err := Load(strings.NewReader("flatten, f, loop2\n"), testResolver(mgr))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	label := source.UniqueLabel{Function: mgr.InternFunction("f"), Label: mgr.InternLabel("loop2")}
	if got := cfg.UnrollFactor(label); got != 0 {
		t.Errorf("UnrollFactor for flattened loop = %d, want 0", got)
	}
}

func TestUnknownArray(t *testing.T) {
	mgr := source.NewManager()
	cfg, err := Load(strings.NewReader(""), testResolver(mgr))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	_, err = cfg.ArrayConfig("nope")
	if err == nil {
		t.Fatalf("expected UnknownArrayError")
	}
	if _, ok := err.(*UnknownArrayError); !ok {
		t.Fatalf("err = %T, want *UnknownArrayError", err)
	}
}

func TestUnknownDirectiveIsFatal(t *testing.T) {
	mgr := source.NewManager()
	_, err := Load(strings.NewReader("bogus, 1, 2\n"), testResolver(mgr))
	if err == nil {
		t.Fatalf("expected error for unknown directive")
	}
}

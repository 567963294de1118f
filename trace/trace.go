// Package trace reads the gzip-compressed, line-oriented dynamic execution
// trace format consumed by the DDDG builder: an optional LABEL MAP preamble
// followed by a sequence of tagged records (instruction header, parameter,
// result, forward), one per line.
//
// The trace itself is produced by an external instrumenting compiler --
// this package only reads the format, grounded on the reference DDDG
// parser's line dispatch (tag "0" / "r" / "f" / parameter index).
package trace

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	labelMapStart = "%%%% LABEL MAP START %%%%"
	labelMapEnd   = "%%%% LABEL MAP END %%%%"

	// addrMask keeps the low 48 bits of a decoded load/store address, per
	// the trace format's address-masking rule.
	addrMask = uint64(1)<<48 - 1
)

// LabelMapEntry is one `function/label line_number` preamble line.
type LabelMapEntry struct {
	Function   string
	Label      string
	LineNumber int
}

// InstructionRecord is the tag-"0" header that opens every record.
type InstructionRecord struct {
	LineNumber     int
	Function       string
	BasicBlock     string
	InstructionID  string
	Microop        int
	DynInstCount   int
}

// ParameterRecord is one tag-"i" (i >= 1) operand of the instruction the
// most recent InstructionRecord opened. PrevBasicBlock is only meaningful
// when the owning instruction is a PHI (microop carries no type info here;
// the caller already knows which instruction this belongs to).
type ParameterRecord struct {
	Index          int
	SizeBits       int
	ValueStr       string
	IsRegister     bool
	Label          string
	PrevBasicBlock string
	HasPrevBlock   bool
}

// ResultRecord is the tag-"r" record: the register the instruction wrote.
type ResultRecord struct {
	SizeBits   int
	ValueStr   string
	IsRegister bool
	Label      string
}

// ForwardRecord is the tag-"f" record: a callee-side register a Call/DMA
// site forwards a caller-side argument into.
type ForwardRecord struct {
	SizeBits   int
	ValueStr   string
	IsRegister bool
	Label      string
}

// Record is a one-of: exactly one of the four fields is non-nil. Go has no
// sum type, and the trace's tag byte maps naturally onto this shape rather
// than an interface with four disjoint implementations nobody would type
// switch on more than once.
type Record struct {
	Instruction *InstructionRecord
	Parameter   *ParameterRecord
	Result      *ResultRecord
	Forward     *ForwardRecord
}

// IsFloatValue reports whether a trace value string denotes a float --
// the format's rule is purely syntactic: the presence of a decimal point.
func IsFloatValue(s string) bool { return strings.Contains(s, ".") }

// MaskAddress applies the trace format's 48-bit address mask to a decoded
// load/store/DMA address.
func MaskAddress(v uint64) uint64 { return v & addrMask }

// ParseAddress decodes a trace value string as a masked address. Addresses
// are written as decimal integers but, like every value string, go through
// strtod-equivalent parsing in the reference implementation, so this
// accepts the same syntax a float parser would.
func ParseAddress(s string) (uint64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("trace: bad address %q: %w", s, err)
	}
	return MaskAddress(uint64(f)), nil
}

// Reader parses a trace stream record by record. The LABEL MAP preamble, if
// present, is consumed eagerly by NewReader; LabelMap returns it once
// construction succeeds.
type Reader struct {
	scanner  *bufio.Scanner
	gz       *gzip.Reader
	labelMap []LabelMapEntry
	pending  *string
}

// NewReader opens a gzip-compressed trace stream and consumes any LABEL MAP
// preamble. r is not closed by this call; call Close when done.
func NewReader(r io.Reader) (*Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("trace: opening gzip stream: %w", err)
	}
	tr := &Reader{scanner: bufio.NewScanner(gz), gz: gz}
	tr.scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	if err := tr.consumeLabelMap(); err != nil {
		return nil, err
	}
	return tr, nil
}

// Close releases the underlying gzip reader.
func (r *Reader) Close() error { return r.gz.Close() }

// LabelMap returns the preamble entries observed before the first body
// record. A trace without a LABEL MAP section returns nil, which is a
// permitted absence, not an error.
func (r *Reader) LabelMap() []LabelMapEntry { return r.labelMap }

func (r *Reader) consumeLabelMap() error {
	if !r.scanner.Scan() {
		return nil
	}
	line := r.scanner.Text()
	if strings.TrimSpace(line) != labelMapStart {
		// Not a LABEL MAP preamble: this line is the first body record.
		// Reader.Next must see it, so stash it as a one-line lookahead by
		// re-scanning via a buffered line queue of size one.
		r.pending = &line
		return nil
	}
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if strings.TrimSpace(line) == labelMapEnd {
			return nil
		}
		entry, err := parseLabelMapLine(line)
		if err != nil {
			return err
		}
		r.labelMap = append(r.labelMap, entry)
	}
	return r.scanner.Err()
}

func parseLabelMapLine(line string) (LabelMapEntry, error) {
	slash := strings.IndexByte(line, '/')
	if slash < 0 {
		return LabelMapEntry{}, fmt.Errorf("trace: malformed labelmap line %q", line)
	}
	function := line[:slash]
	rest := strings.TrimSpace(line[slash+1:])
	sp := strings.LastIndexByte(rest, ' ')
	if sp < 0 {
		return LabelMapEntry{}, fmt.Errorf("trace: malformed labelmap line %q", line)
	}
	label := rest[:sp]
	lineNum, err := strconv.Atoi(strings.TrimSpace(rest[sp+1:]))
	if err != nil {
		return LabelMapEntry{}, fmt.Errorf("trace: malformed labelmap line %q: %w", line, err)
	}
	return LabelMapEntry{Function: function, Label: label, LineNumber: lineNum}, nil
}

// Next returns the next record, io.EOF when the trace stream ends cleanly,
// or a non-EOF error if the underlying gzip/scan failed partway through
// (e.g. a truncated file). The loaders that drive this fail fast on that
// distinction: a genuinely truncated trace is a construction-time error,
// not a silently-partial Program.
func (r *Reader) Next() (Record, error) {
	line, ok := r.nextLine()
	if !ok {
		if err := r.scanner.Err(); err != nil {
			return Record{}, fmt.Errorf("trace: reading trace stream: %w", err)
		}
		return Record{}, io.EOF
	}
	comma := strings.IndexByte(line, ',')
	if comma < 0 {
		return r.Next()
	}
	tag := line[:comma]
	rest := line[comma+1:]

	switch tag {
	case "0":
		rec, err := parseInstruction(rest)
		if err != nil {
			return Record{}, err
		}
		return Record{Instruction: &rec}, nil
	case "r":
		rec, err := parseResult(rest)
		if err != nil {
			return Record{}, err
		}
		return Record{Result: &rec}, nil
	case "f":
		rec, err := parseForward(rest)
		if err != nil {
			return Record{}, err
		}
		return Record{Forward: &rec}, nil
	default:
		idx, err := strconv.Atoi(tag)
		if err != nil {
			return Record{}, fmt.Errorf("trace: unrecognized record tag %q", tag)
		}
		rec, err := parseParameter(rest, idx)
		if err != nil {
			return Record{}, err
		}
		return Record{Parameter: &rec}, nil
	}
}

func (r *Reader) nextLine() (string, bool) {
	if r.pending != nil {
		line := *r.pending
		r.pending = nil
		return line, true
	}
	if !r.scanner.Scan() {
		return "", false
	}
	return r.scanner.Text(), true
}

func parseInstruction(s string) (InstructionRecord, error) {
	fields := splitN(s, 6)
	if len(fields) < 6 {
		return InstructionRecord{}, fmt.Errorf("trace: short instruction record %q", s)
	}
	lineNum, err := strconv.Atoi(fields[0])
	if err != nil {
		return InstructionRecord{}, fmt.Errorf("trace: bad line number %q: %w", fields[0], err)
	}
	microop, err := strconv.Atoi(fields[4])
	if err != nil {
		return InstructionRecord{}, fmt.Errorf("trace: bad microop %q: %w", fields[4], err)
	}
	dynCount, err := strconv.Atoi(strings.TrimRight(fields[5], "\n"))
	if err != nil {
		return InstructionRecord{}, fmt.Errorf("trace: bad dynamic_inst_count %q: %w", fields[5], err)
	}
	return InstructionRecord{
		LineNumber:    lineNum,
		Function:      fields[1],
		BasicBlock:    fields[2],
		InstructionID: fields[3],
		Microop:       microop,
		DynInstCount:  dynCount,
	}, nil
}

func parseParameter(s string, index int) (ParameterRecord, error) {
	fields := splitN(s, 5)
	if len(fields) < 4 {
		return ParameterRecord{}, fmt.Errorf("trace: short parameter record %q", s)
	}
	sizeBits, err := strconv.Atoi(fields[0])
	if err != nil {
		return ParameterRecord{}, fmt.Errorf("trace: bad size_bits %q: %w", fields[0], err)
	}
	isReg, err := strconv.Atoi(fields[2])
	if err != nil {
		return ParameterRecord{}, fmt.Errorf("trace: bad is_register %q: %w", fields[2], err)
	}
	rec := ParameterRecord{
		Index:      index,
		SizeBits:   sizeBits,
		ValueStr:   fields[1],
		IsRegister: isReg != 0,
		Label:      strings.TrimRight(fields[3], "\n"),
	}
	if len(fields) >= 5 && strings.TrimSpace(fields[4]) != "" {
		rec.PrevBasicBlock = strings.TrimRight(fields[4], "\n")
		rec.HasPrevBlock = true
	}
	return rec, nil
}

func parseResult(s string) (ResultRecord, error) {
	fields := splitN(s, 4)
	if len(fields) < 4 {
		return ResultRecord{}, fmt.Errorf("trace: short result record %q", s)
	}
	sizeBits, err := strconv.Atoi(fields[0])
	if err != nil {
		return ResultRecord{}, fmt.Errorf("trace: bad size_bits %q: %w", fields[0], err)
	}
	isReg, err := strconv.Atoi(fields[2])
	if err != nil {
		return ResultRecord{}, fmt.Errorf("trace: bad is_register %q: %w", fields[2], err)
	}
	return ResultRecord{
		SizeBits:   sizeBits,
		ValueStr:   fields[1],
		IsRegister: isReg != 0,
		Label:      strings.TrimRight(fields[3], "\n"),
	}, nil
}

func parseForward(s string) (ForwardRecord, error) {
	r, err := parseResult(s)
	return ForwardRecord(r), err
}

// splitN splits a comma-separated line into at most n fields, the last of
// which may itself contain no further commas (matching the trace format's
// `label` tail field, which is never itself comma-escaped).
func splitN(s string, n int) []string {
	return strings.SplitN(s, ",", n)
}

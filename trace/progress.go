package trace

import (
	"fmt"
	"io"
	"time"
)

// Progress reports how far a long-running trace parse has advanced, in
// fixed-size epochs of the total work, along with the per-second rate of
// any additional counters registered with TrackStat. Grounded on the
// reference implementation's epoch-based progress tracker used during DDDG
// construction; rewritten onto an io.Writer and time.Time rather than a
// side file and gettimeofday.
type Progress struct {
	out          io.Writer
	total        int64
	epochLength  float64
	lastPct      float64
	epochStart   time.Time
	stats        []trackedStat
}

type trackedStat struct {
	name       string
	current    *int64
	lastUpdate int64
}

// NewProgress returns a tracker that reports progress toward total units of
// work, printing an update every time the fraction complete advances by at
// least epochLength (e.g. 0.05 for every 5%).
func NewProgress(out io.Writer, total int64, epochLength float64) *Progress {
	return &Progress{out: out, total: total, epochLength: epochLength}
}

// TrackStat registers an additional counter to report as a rate (the
// counter's increase since the last epoch, divided by the epoch's elapsed
// time).
func (p *Progress) TrackStat(name string, current *int64) {
	p.stats = append(p.stats, trackedStat{name: name, current: current})
}

// StartEpoch begins timing the current epoch.
func (p *Progress) StartEpoch() { p.epochStart = time.Now() }

// AtEpochEnd reports whether curr has advanced far enough past the last
// reported percentage to close out the current epoch.
func (p *Progress) AtEpochEnd(curr int64) bool {
	pct := pctOf(curr, p.total)
	return pct-p.lastPct >= p.epochLength
}

// StartNewEpoch closes out the current epoch (printing an update) and
// immediately starts the next one.
func (p *Progress) StartNewEpoch(curr int64) {
	p.EndEpoch(curr)
	p.StartEpoch()
}

// EndEpoch closes out the current epoch: it prints an update and advances
// every tracked stat's baseline to its current value.
func (p *Progress) EndEpoch(curr int64) {
	p.lastPct = pctOf(curr, p.total)
	elapsed := time.Since(p.epochStart).Seconds()

	fmt.Fprintf(p.out, "  %3.0f%%\t(%.2f seconds elapsed", p.lastPct*100, elapsed)
	for i := range p.stats {
		s := &p.stats[i]
		rate := 0.0
		if elapsed > 0 {
			rate = float64(*s.current-s.lastUpdate) / elapsed
		}
		fmt.Fprintf(p.out, ", %.0f %s/sec", rate, s.name)
		s.lastUpdate = *s.current
	}
	fmt.Fprint(p.out, ")\n")
}

func pctOf(curr, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(curr) / float64(total)
}

package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// DumpSchedule renders stats as a human-readable per-cycle activity
// table, grounded on core/util.go's PrintState -- debugging output for
// -verbose CLI runs, not the canonical *_stats CSV (still out of scope
// per spec.md §1's "Reporting formatters").
func DumpSchedule(stats *Stats) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("Schedule (%d cycles)", stats.TotalCycles))
	t.AppendHeader(table.Row{"Cycle", "FU activity", "Loads", "Stores", "Reg reads", "Reg writes"})

	for _, c := range sortedCycles(stats.PerCycle) {
		cs := stats.PerCycle[c]
		t.AppendRow(table.Row{
			cs.Cycle,
			summarizeFUCounts(cs.FUCounts),
			sumCounts(cs.PartitionLoads),
			sumCounts(cs.PartitionStores),
			cs.RegisterReads,
			cs.RegisterWrites,
		})
	}

	return t.Render()
}

func sortedCycles(perCycle map[int]*CycleStats) []int {
	cycles := make([]int, 0, len(perCycle))
	for c := range perCycle {
		cycles = append(cycles, c)
	}
	sort.Ints(cycles)
	return cycles
}

func sumCounts(m map[string]int) int {
	total := 0
	for _, n := range m {
		total += n
	}
	return total
}

func summarizeFUCounts(byFn map[string]map[string]int) string {
	if len(byFn) == 0 {
		return "-"
	}
	fns := make([]string, 0, len(byFn))
	for fn := range byFn {
		fns = append(fns, fn)
	}
	sort.Strings(fns)

	var parts []string
	for _, fn := range fns {
		cats := byFn[fn]
		catNames := make([]string, 0, len(cats))
		for cat := range cats {
			catNames = append(catNames, cat)
		}
		sort.Strings(catNames)

		var catParts []string
		for _, cat := range catNames {
			catParts = append(catParts, fmt.Sprintf("%s=%d", titleCaser.String(cat), cats[cat]))
		}
		parts = append(parts, fn+":"+strings.Join(catParts, "+"))
	}
	return strings.Join(parts, ", ")
}

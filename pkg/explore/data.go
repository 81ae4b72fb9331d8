package explore

import (
	"strings"

	"github.com/praetorian-inc/capmatch/pkg/address"
	"github.com/praetorian-inc/capmatch/pkg/scanner"
)

// exploreData holds all loaded data for the TUI.
type exploreData struct {
	tracePath string
	hits      []*hitRow
}

// loadData builds the view models for every hit of a scan. Call and
// process names come from the result's layout.
func loadData(result *scanner.ScanResult, tracePath string) *exploreData {
	names := layoutNames(result)

	rows := make([]*hitRow, 0, len(result.Hits))
	for i, h := range result.Hits {
		row := buildHitRow(h, names)
		row.Order = i
		rows = append(rows, row)
	}

	return &exploreData{
		tracePath: tracePath,
		hits:      rows,
	}
}

// layoutNames maps process and call addresses to their display names.
func layoutNames(result *scanner.ScanResult) map[address.Address]string {
	names := make(map[address.Address]string)
	for _, p := range result.Layout.Processes {
		names[p.Address] = p.Name
		for _, t := range p.Threads {
			for _, c := range t.Calls {
				names[c.Address] = c.Name
			}
		}
	}
	return names
}

// buildHitRow creates a hitRow from a Hit.
func buildHitRow(h scanner.Hit, names map[address.Address]string) *hitRow {
	row := &hitRow{
		ProbeID:     h.Probe.ID,
		ProbeName:   h.Probe.Name,
		Description: h.Probe.Description,
		Feature:     h.Probe.Feature.String(),
		Scope:       h.Scope.String(),
		Address:     h.Address.String(),
		Process:     "-",
		Tree:        strings.Split(h.Result.String(), "\n"),
	}

	if p, ok := processOf(h.Address); ok {
		row.Process = p.String()
		if name := names[p]; name != "" {
			row.Process = name
		}
	}

	// Invert matched strings so each location lists what matched there
	byLocation := make(map[address.Address][]string)
	matches := h.Result.Matches()
	for _, s := range h.Result.MatchedStrings() {
		for loc := range matches[s] {
			byLocation[loc] = append(byLocation[loc], s)
		}
	}

	for _, loc := range h.Result.Locations() {
		row.Evidence = append(row.Evidence, &evidenceRow{
			Location: loc.String(),
			Call:     names[loc],
			Strings:  byLocation[loc],
		})
	}

	return row
}

// processOf returns the process an address belongs to.
func processOf(a address.Address) (address.ProcessAddress, bool) {
	switch a := a.(type) {
	case address.ProcessAddress:
		return a, true
	case address.ThreadAddress:
		return a.Process, true
	case address.DynamicCallAddress:
		return a.Thread.Process, true
	default:
		return address.ProcessAddress{}, false
	}
}

package explore

import (
	"cmp"
	"slices"

	"github.com/praetorian-inc/capmatch/pkg/extractor"
)

// facetID identifies a facet category.
type facetID int

const (
	facetProbe facetID = iota
	facetScope
	facetProcess
)

// facetDef defines a facet category.
type facetDef struct {
	ID    facetID
	Label string
}

var facetDefs = []facetDef{
	{facetProbe, "Probe"},
	{facetScope, "Scope"},
	{facetProcess, "Process"},
}

// facetValue is a single selectable value within a facet.
type facetValue struct {
	FacetID  facetID
	Value    string
	Count    int
	Selected bool
}

// facetState holds the complete filter state.
type facetState struct {
	Values map[facetID][]*facetValue
}

func newFacetState() *facetState {
	return &facetState{
		Values: make(map[facetID][]*facetValue),
	}
}

// buildFacets builds facet values from hits.
func buildFacets(hits []*hitRow) *facetState {
	fs := newFacetState()

	probes := make(map[string]int)
	scopes := make(map[string]int)
	processes := make(map[string]int)

	for _, h := range hits {
		probes[h.ProbeName]++
		scopes[h.Scope]++
		processes[h.Process]++
	}

	fs.Values[facetProbe] = mapToFacetValues(facetProbe, probes)
	fs.Values[facetScope] = mapToFacetValues(facetScope, scopes)
	fs.Values[facetProcess] = mapToFacetValues(facetProcess, processes)

	// scopes read best from file down to call
	slices.SortStableFunc(fs.Values[facetScope], func(a, b *facetValue) int {
		return scopeRank(a.Value) - scopeRank(b.Value)
	})

	return fs
}

func mapToFacetValues(id facetID, counts map[string]int) []*facetValue {
	values := make([]*facetValue, 0, len(counts))
	for v, c := range counts {
		values = append(values, &facetValue{FacetID: id, Value: v, Count: c})
	}
	slices.SortFunc(values, func(a, b *facetValue) int {
		return cmp.Compare(a.Value, b.Value)
	})
	return values
}

func scopeRank(name string) int {
	s, err := extractor.ParseScope(name)
	if err != nil {
		return int(extractor.ScopeCall) + 1
	}
	return int(s)
}

// selectedValues returns the set of selected values for a facet.
func (fs *facetState) selectedValues(id facetID) map[string]bool {
	selected := make(map[string]bool)
	for _, v := range fs.Values[id] {
		if v.Selected {
			selected[v.Value] = true
		}
	}
	return selected
}

// hasActiveFilters returns true if any facet has selections.
func (fs *facetState) hasActiveFilters() bool {
	for _, values := range fs.Values {
		for _, v := range values {
			if v.Selected {
				return true
			}
		}
	}
	return false
}

// resetAll deselects all facet values.
func (fs *facetState) resetAll() {
	for _, values := range fs.Values {
		for _, v := range values {
			v.Selected = false
		}
	}
}

// facetValueOf returns the value a hit has for a facet.
func facetValueOf(id facetID, h *hitRow) string {
	switch id {
	case facetProbe:
		return h.ProbeName
	case facetScope:
		return h.Scope
	default:
		return h.Process
	}
}

// matchesHit returns true if a hit passes all active filters.
// Within a facet: OR (union). Across facets: AND (intersection).
func (fs *facetState) matchesHit(h *hitRow) bool {
	for _, def := range facetDefs {
		selected := fs.selectedValues(def.ID)
		if len(selected) == 0 {
			continue // no filter active for this facet
		}
		if !selected[facetValueOf(def.ID, h)] {
			return false
		}
	}
	return true
}

// updateCounts recounts facet values based on currently visible hits.
func (fs *facetState) updateCounts(hits []*hitRow) {
	for _, values := range fs.Values {
		for _, v := range values {
			v.Count = 0
		}
	}

	for _, h := range hits {
		if !fs.matchesHit(h) {
			continue
		}
		for _, def := range facetDefs {
			value := facetValueOf(def.ID, h)
			for _, v := range fs.Values[def.ID] {
				if v.Value == value {
					v.Count++
				}
			}
		}
	}
}

// hitRow is the denormalized view model for a hit in the TUI.
type hitRow struct {
	Order       int // position in the scan's hit order
	ProbeID     string
	ProbeName   string
	Description string
	Feature     string
	Scope       string
	Address     string
	Process     string // process name, "-" at file scope
	Tree        []string
	Evidence    []*evidenceRow
}

// evidenceRow is one location that contributed to a hit.
type evidenceRow struct {
	Location string
	Call     string // rendered call, empty when the location is not a call
	Strings  []string
}

package scanner

import (
	"cmp"
	"slices"
	"strings"

	"github.com/praetorian-inc/capmatch/pkg/address"
	"github.com/praetorian-inc/capmatch/pkg/extractor"
	"github.com/praetorian-inc/capmatch/pkg/feature"
	"github.com/praetorian-inc/capmatch/pkg/probe"
)

// Hit is a probe that matched at one scope instance.
type Hit struct {
	Probe   *probe.Probe
	Scope   extractor.Scope
	Address address.Address // address.None at file scope
	Result  *feature.Result
}

// ScanResult holds the hits of one scan.
type ScanResult struct {
	Hits []Hit

	// Layout names the matched calls; empty for static extractors.
	Layout extractor.Layout

	// Counters is a snapshot of feature evaluation counts.
	Counters map[string]int64
}

// HitsFor returns the hits of one probe.
func (r *ScanResult) HitsFor(probeID string) []Hit {
	var out []Hit
	for _, h := range r.Hits {
		if h.Probe.ID == probeID {
			out = append(out, h)
		}
	}
	return out
}

// ProbeIDs returns the distinct ids of matched probes, sorted.
func (r *ScanResult) ProbeIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, h := range r.Hits {
		if !seen[h.Probe.ID] {
			seen[h.Probe.ID] = true
			ids = append(ids, h.Probe.ID)
		}
	}
	slices.Sort(ids)
	return ids
}

// compareHits orders by scope, then address, then probe id.
func compareHits(a, b Hit) int {
	if c := cmp.Compare(a.Scope, b.Scope); c != 0 {
		return c
	}
	if c := address.Compare(a.Address, b.Address); c != 0 {
		return c
	}
	return strings.Compare(a.Probe.ID, b.Probe.ID)
}

package scanner

import (
	"github.com/praetorian-inc/capmatch/pkg/address"
	"github.com/praetorian-inc/capmatch/pkg/extractor"
)

// HitSummary is the serializable form of a Hit.
type HitSummary struct {
	Probe     string              `json:"probe"`
	Name      string              `json:"name"`
	Scope     extractor.Scope     `json:"scope"`
	Address   string              `json:"address"`
	Locations []string            `json:"locations"`
	Matches   map[string][]string `json:"matches,omitempty"`
	Result    string              `json:"result"`
}

// Summary is the serializable form of a ScanResult.
type Summary struct {
	Hits     []HitSummary     `json:"hits"`
	Layout   extractor.Layout `json:"layout"`
	Counters map[string]int64 `json:"counters,omitempty"`
}

// Summary renders the result for JSON output. Counters are included only
// when withCounters is set.
func (r *ScanResult) Summary(withCounters bool) Summary {
	s := Summary{Hits: make([]HitSummary, 0, len(r.Hits)), Layout: r.Layout}
	if withCounters {
		s.Counters = r.Counters
	}
	for _, h := range r.Hits {
		hit := HitSummary{
			Probe:     h.Probe.ID,
			Name:      h.Probe.Name,
			Scope:     h.Scope,
			Address:   h.Address.String(),
			Locations: addressStrings(h.Result.Locations()),
			Result:    h.Result.String(),
		}
		if m := h.Result.Matches(); len(m) > 0 {
			hit.Matches = make(map[string][]string, len(m))
			for str, locs := range m {
				hit.Matches[str] = addressStrings(locs.Sorted())
			}
		}
		s.Hits = append(s.Hits, hit)
	}
	return s
}

func addressStrings(addrs []address.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

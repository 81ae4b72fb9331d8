// Package prefilter skips substring probes whose literal occurs in no string
// evidence, so they are never evaluated at that scope.
package prefilter

import (
	"sync"

	"github.com/cloudflare/ahocorasick"

	"github.com/praetorian-inc/capmatch/pkg/feature"
	"github.com/praetorian-inc/capmatch/pkg/probe"
)

// Prefilter uses Aho-Corasick for efficient keyword matching.
type Prefilter struct {
	probes         []*probe.Probe
	matcher        *ahocorasick.Matcher
	mu             sync.Mutex                // Match mutates matcher state
	keywords       []string                  // keyword at each index
	keywordProbes  map[string][]*probe.Probe // keyword -> probes needing it
	noKeywordCount int
}

// New creates a prefilter from probes. Only substring probes carry a
// keyword: their literal. Every other probe is always kept.
func New(probes []*probe.Probe) *Prefilter {
	pf := &Prefilter{
		probes:        probes,
		keywordProbes: make(map[string][]*probe.Probe),
	}

	for _, p := range probes {
		keyword, ok := Keyword(p.Feature)
		if !ok {
			pf.noKeywordCount++
			continue
		}
		if _, seen := pf.keywordProbes[keyword]; !seen {
			pf.keywords = append(pf.keywords, keyword)
		}
		pf.keywordProbes[keyword] = append(pf.keywordProbes[keyword], p)
	}

	if len(pf.keywords) > 0 {
		pf.matcher = ahocorasick.NewStringMatcher(pf.keywords)
	}

	return pf
}

// Keyword returns the literal a feature needs to find in string evidence
// before it can match.
func Keyword(f feature.Feature) (string, bool) {
	if f.Kind() != feature.KindSubstring || f.Text() == "" {
		return "", false
	}
	return f.Text(), true
}

// Filter returns, in their original order, the probes that might match fs:
// probes without a keyword, and substring probes whose keyword occurs in at
// least one String evidence value.
func (pf *Prefilter) Filter(fs *feature.FeatureSet) []*probe.Probe {
	if pf.matcher == nil {
		return pf.probes
	}

	keep := make(map[*probe.Probe]bool)
	pf.mu.Lock()
	for f := range fs.OfKind(feature.KindString) {
		for _, hit := range pf.matcher.Match([]byte(f.Text())) {
			for _, p := range pf.keywordProbes[pf.keywords[hit]] {
				keep[p] = true
			}
		}
		if len(keep) == len(pf.probes)-pf.noKeywordCount {
			break
		}
	}
	pf.mu.Unlock()

	result := make([]*probe.Probe, 0, pf.noKeywordCount+len(keep))
	for _, p := range pf.probes {
		if _, ok := Keyword(p.Feature); !ok || keep[p] {
			result = append(result, p)
		}
	}
	return result
}

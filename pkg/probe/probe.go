// Package probe loads probes: named single features to look for in a trace,
// each restricted to the scopes it applies to.
package probe

import (
	"slices"

	"github.com/praetorian-inc/capmatch/pkg/extractor"
	"github.com/praetorian-inc/capmatch/pkg/feature"
)

// Probe is one feature to evaluate and the scopes it is evaluated at.
type Probe struct {
	ID          string
	Name        string
	Description string
	Scopes      []extractor.Scope // empty means every dynamic scope
	Feature     feature.Feature
}

// New creates a probe for f that applies at every dynamic scope. The
// feature's string form doubles as id and name.
func New(f feature.Feature) *Probe {
	return &Probe{ID: f.String(), Name: f.String(), Feature: f}
}

// AppliesAt reports whether the probe is evaluated at scope s.
func (p *Probe) AppliesAt(s extractor.Scope) bool {
	if len(p.Scopes) == 0 {
		return slices.Contains(extractor.DynamicScopes, s)
	}
	return slices.Contains(p.Scopes, s)
}

// IDs returns the ids of probes in order.
func IDs(probes []*Probe) []string {
	ids := make([]string, len(probes))
	for i, p := range probes {
		ids[i] = p.ID
	}
	return ids
}

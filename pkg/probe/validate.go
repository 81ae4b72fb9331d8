package probe

import (
	"errors"
	"fmt"

	"github.com/praetorian-inc/capmatch/pkg/extractor"
	"github.com/praetorian-inc/capmatch/pkg/feature"
)

// Validate checks probe consistency and required fields.
func Validate(p *Probe) error {
	if p == nil {
		return errors.New("probe is nil")
	}

	if p.ID == "" {
		return errors.New("probe ID is required")
	}
	if p.Name == "" {
		return fmt.Errorf("probe %s: name is required", p.ID)
	}
	if !p.Feature.Kind().Valid() {
		return fmt.Errorf("probe %s: feature is required", p.ID)
	}

	for _, s := range p.Scopes {
		if s == extractor.ScopeGlobal {
			return fmt.Errorf("probe %s: global is not an evaluation scope", p.ID)
		}
		if s > extractor.ScopeCall {
			return fmt.Errorf("probe %s: unknown scope %s", p.ID, s)
		}
	}

	// global values are only meaningful when they name a known platform
	f := p.Feature
	switch f.Kind() {
	case feature.KindArch:
		if !feature.ValidArch(f.Text()) {
			return fmt.Errorf("probe %s: unknown arch %q", p.ID, f.Text())
		}
	case feature.KindOS:
		if !feature.ValidOS(f.Text()) {
			return fmt.Errorf("probe %s: unknown os %q", p.ID, f.Text())
		}
	case feature.KindFormat:
		if !feature.ValidFormat(f.Text()) {
			return fmt.Errorf("probe %s: unknown format %q", p.ID, f.Text())
		}
	}

	return nil
}

// ValidateAll validates each probe and rejects duplicate ids.
func ValidateAll(probes []*Probe) error {
	seen := make(map[string]bool, len(probes))
	for _, p := range probes {
		if err := Validate(p); err != nil {
			return err
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate probe ID: %s", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

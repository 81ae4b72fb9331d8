// Package capmatch matches capability probes against dynamic traces.
//
// A trace is reduced to features (API calls, argument strings and numbers,
// platform facts) at call, thread, process and file scope. Probes name one
// feature each and the scopes to look for it at; every hit carries a result
// tree explaining which evidence satisfied it.
//
// # Basic Usage
//
// Create a matcher with builtin probes and match a Frida trace:
//
//	m, err := capmatch.NewMatcher()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := m.MatchFile(ctx, "trace.jsonl")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, hit := range result.Hits {
//	    fmt.Printf("%s at %s %s\n", hit.Probe.ID, hit.Scope, hit.Address)
//	}
//
// # With Custom Probes
//
//	probes, err := capmatch.LoadProbesFromFile("probes.yml")
//	m, err := capmatch.NewMatcher(capmatch.WithProbes(probes), capmatch.WithExhaustive())
package capmatch

import (
	"context"
	"fmt"
	"io"

	"github.com/praetorian-inc/capmatch/pkg/extractor"
	"github.com/praetorian-inc/capmatch/pkg/feature"
	"github.com/praetorian-inc/capmatch/pkg/frida"
	"github.com/praetorian-inc/capmatch/pkg/probe"
	"github.com/praetorian-inc/capmatch/pkg/scanner"
)

// Re-export commonly used types for convenience.
type (
	// Probe is one feature to look for and the scopes it applies at.
	Probe = probe.Probe

	// Feature is a unit of capability evidence.
	Feature = feature.Feature

	// Result explains why a probe matched.
	Result = feature.Result

	// Hit is a probe that matched at one scope instance.
	Hit = scanner.Hit

	// ScanResult holds every hit of one match run.
	ScanResult = scanner.ScanResult

	// Scope is the granularity at which a probe is evaluated.
	Scope = extractor.Scope
)

// Re-export scope constants.
const (
	ScopeFile    = extractor.ScopeFile
	ScopeProcess = extractor.ScopeProcess
	ScopeThread  = extractor.ScopeThread
	ScopeCall    = extractor.ScopeCall
)

// Matcher evaluates a fixed probe set against traces.
type Matcher struct {
	core   *scanner.Core
	config *matcherConfig
}

type matcherConfig struct {
	probes     []*probe.Probe
	exhaustive bool
	workers    int
}

// Option configures a Matcher.
type Option func(*matcherConfig)

// WithProbes uses custom probes instead of the builtin ones.
func WithProbes(probes []*Probe) Option {
	return func(c *matcherConfig) {
		c.probes = probes
	}
}

// WithExhaustive reports every matched string of substring and regex probes
// instead of the first.
func WithExhaustive() Option {
	return func(c *matcherConfig) {
		c.exhaustive = true
	}
}

// WithWorkers sets how many processes are matched in parallel. Default 1.
func WithWorkers(n int) Option {
	return func(c *matcherConfig) {
		c.workers = n
	}
}

// NewMatcher creates a Matcher. Without WithProbes the builtin probes are used.
func NewMatcher(opts ...Option) (*Matcher, error) {
	config := &matcherConfig{workers: 1}
	for _, opt := range opts {
		opt(config)
	}

	// Load probes if not provided
	if config.probes == nil {
		probes, err := LoadBuiltinProbes()
		if err != nil {
			return nil, fmt.Errorf("loading builtin probes: %w", err)
		}
		config.probes = probes
	}

	core, err := scanner.New(config.probes,
		scanner.WithShortCircuit(!config.exhaustive),
		scanner.WithWorkers(config.workers),
	)
	if err != nil {
		return nil, fmt.Errorf("creating scanner: %w", err)
	}

	return &Matcher{core: core, config: config}, nil
}

// Match evaluates every probe against ext.
func (m *Matcher) Match(ctx context.Context, ext extractor.FeatureExtractor) (*ScanResult, error) {
	return m.core.Scan(ctx, ext)
}

// MatchFile reads a Frida JSONL trace and matches it.
func (m *Matcher) MatchFile(ctx context.Context, path string) (*ScanResult, error) {
	ext, err := frida.FromJSONLFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	return m.Match(ctx, ext)
}

// MatchReader parses a Frida JSONL trace from r and matches it.
func (m *Matcher) MatchReader(ctx context.Context, r io.Reader) (*ScanResult, error) {
	report, err := frida.ParseReport(r)
	if err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	return m.Match(ctx, frida.New(report))
}

// ProbeCount returns the number of probes loaded.
func (m *Matcher) ProbeCount() int {
	return len(m.config.probes)
}

// Probes returns a copy of the loaded probes.
func (m *Matcher) Probes() []*Probe {
	probes := make([]*Probe, len(m.config.probes))
	copy(probes, m.config.probes)
	return probes
}

// LoadProbesFromFile loads probes from a YAML file or a directory of them.
func LoadProbesFromFile(path string) ([]*Probe, error) {
	return probe.NewLoader().LoadPath(path)
}

// LoadBuiltinProbes returns the builtin probes.
func LoadBuiltinProbes() ([]*Probe, error) {
	return probe.NewLoader().LoadBuiltin()
}

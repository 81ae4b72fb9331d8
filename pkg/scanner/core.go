// Package scanner evaluates probes against every scope of an extractor.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/praetorian-inc/capmatch/pkg/address"
	"github.com/praetorian-inc/capmatch/pkg/extractor"
	"github.com/praetorian-inc/capmatch/pkg/feature"
	"github.com/praetorian-inc/capmatch/pkg/prefilter"
	"github.com/praetorian-inc/capmatch/pkg/probe"
)

var (
	// cachedBuiltinProbes holds builtin probes loaded once per process
	cachedBuiltinProbes []*probe.Probe
	cachedProbesErr     error
	cacheOnce           sync.Once
)

// loadBuiltinProbesCached loads builtin probes once and caches them
func loadBuiltinProbesCached() ([]*probe.Probe, error) {
	cacheOnce.Do(func() {
		loader := probe.NewLoader()
		cachedBuiltinProbes, cachedProbesErr = loader.LoadBuiltin()
	})
	return cachedBuiltinProbes, cachedProbesErr
}

// Core evaluates a fixed probe set against extractors.
type Core struct {
	probes       []*probe.Probe
	prefilters   map[extractor.Scope]*prefilter.Prefilter
	shortCircuit bool
	workers      int
	logger       *slog.Logger
}

// New creates a Core for probes. Probes are validated first.
func New(probes []*probe.Probe, opts ...Option) (*Core, error) {
	if err := probe.ValidateAll(probes); err != nil {
		return nil, fmt.Errorf("invalid probes: %w", err)
	}

	c := &Core{
		probes:       probes,
		prefilters:   make(map[extractor.Scope]*prefilter.Prefilter),
		shortCircuit: true,
		workers:      1,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	// one prefilter per scope over the probes that apply there
	for _, s := range extractor.DynamicScopes {
		var scoped []*probe.Probe
		for _, p := range probes {
			if p.AppliesAt(s) {
				scoped = append(scoped, p)
			}
		}
		c.prefilters[s] = prefilter.New(scoped)
	}

	c.logger.Debug("scanner ready", "probes", len(probes), "workers", c.workers, "short_circuit", c.shortCircuit)
	return c, nil
}

// NewBuiltin creates a Core over the built-in probes.
func NewBuiltin(opts ...Option) (*Core, error) {
	probes, err := loadBuiltinProbesCached()
	if err != nil {
		return nil, fmt.Errorf("loading builtin probes: %w", err)
	}
	return New(probes, opts...)
}

// Probes returns the probes the Core evaluates.
func (c *Core) Probes() []*probe.Probe { return c.probes }

// scan holds the state of one Scan call.
type scan struct {
	core   *Core
	global *feature.FeatureSet
	opts   feature.EvalOptions
}

// Scan evaluates every probe at every scope it applies to.
//
// Global features are injected into each scope's evidence. Thread evidence
// includes the evidence of its calls, and process evidence that of its
// threads. Dynamic scopes are only visited when ext is an
// extractor.DynamicExtractor. The context is checked between processes.
func (c *Core) Scan(ctx context.Context, ext extractor.FeatureExtractor) (*ScanResult, error) {
	counters := feature.NewCounters()
	s := &scan{
		core:   c,
		global: extractor.Collect(ext.GlobalFeatures()),
		opts: feature.EvalOptions{
			ShortCircuit: c.shortCircuit,
			Counters:     counters,
			Logger:       c.logger,
		},
	}

	fileFS := s.global.Clone()
	extractor.CollectInto(fileFS, ext.FileFeatures())
	hits := s.evaluate(extractor.ScopeFile, address.None, fileFS)

	dyn, isDynamic := ext.(extractor.DynamicExtractor)
	if isDynamic {
		processHits, err := s.processes(ctx, dyn)
		if err != nil {
			return nil, err
		}
		hits = append(hits, processHits...)
	}

	slices.SortFunc(hits, compareHits)

	result := &ScanResult{Hits: hits, Counters: counters.Snapshot()}
	if isDynamic {
		results := make([]*feature.Result, len(hits))
		for i, h := range hits {
			results[i] = h.Result
		}
		result.Layout = extractor.ComputeLayout(dyn, results...)
	}

	c.logger.Debug("scan complete", "hits", len(hits), "evaluations", counters.Total())
	return result, nil
}

func (s *scan) processes(ctx context.Context, ext extractor.DynamicExtractor) ([]Hit, error) {
	procs := slices.Collect(ext.Processes())
	perProcess := make([][]Hit, len(procs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.core.workers)
	for i, ph := range procs {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perProcess[i] = s.process(ext, ph)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}

	var hits []Hit
	for _, h := range perProcess {
		hits = append(hits, h...)
	}
	return hits, nil
}

func (s *scan) process(ext extractor.DynamicExtractor, ph extractor.ProcessHandle) []Hit {
	s.core.logger.Debug("scanning process", "process", ph.Address.String(), "name", ext.ProcessName(ph))

	var hits []Hit
	processFS := s.global.Clone()
	extractor.CollectInto(processFS, ext.ProcessFeatures(ph))

	for th := range ext.Threads(ph) {
		threadFS := s.global.Clone()
		extractor.CollectInto(threadFS, ext.ThreadFeatures(ph, th))

		for ch := range ext.Calls(ph, th) {
			callFS := s.global.Clone()
			extractor.CollectInto(callFS, ext.CallFeatures(ph, th, ch))
			hits = append(hits, s.evaluate(extractor.ScopeCall, ch.Address, callFS)...)
			threadFS.Merge(callFS)
		}

		hits = append(hits, s.evaluate(extractor.ScopeThread, th.Address, threadFS)...)
		processFS.Merge(threadFS)
	}

	return append(hits, s.evaluate(extractor.ScopeProcess, ph.Address, processFS)...)
}

func (s *scan) evaluate(scope extractor.Scope, addr address.Address, fs *feature.FeatureSet) []Hit {
	var hits []Hit
	for _, p := range s.core.prefilters[scope].Filter(fs) {
		r := feature.Evaluate(p.Feature, fs, s.opts)
		if !r.Success() {
			continue
		}
		s.core.logger.Debug("probe matched", "probe", p.ID, "scope", scope.String(), "address", addr.String())
		hits = append(hits, Hit{Probe: p, Scope: scope, Address: addr, Result: r})
	}
	return hits
}

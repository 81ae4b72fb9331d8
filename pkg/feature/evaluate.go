package feature

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/praetorian-inc/capmatch/pkg/address"
)

// EvalOptions configures feature evaluation.
type EvalOptions struct {
	// ShortCircuit stops substring and regex evaluation at the first matching
	// evidence string. Combinators that only need a witness set this; callers
	// that render every matched string clear it.
	ShortCircuit bool

	// Counters receives one increment per evaluation (nil = not counted).
	Counters *Counters

	// Logger reports regex engine errors (nil = slog.Default()).
	Logger *slog.Logger
}

// DefaultEvalOptions returns short-circuit evaluation without counters.
func DefaultEvalOptions() EvalOptions {
	return EvalOptions{ShortCircuit: true}
}

// Evaluate evaluates f against the evidence in features.
func Evaluate(f Feature, features *FeatureSet, opts EvalOptions) *Result {
	opts.Counters.record(f)

	switch f.key.kind {
	case KindMatchedRule, KindCharacteristic, KindString, KindClass, KindNamespace,
		KindAPI, KindNumber, KindArch, KindFormat:
		return evaluateExact(f, features)
	case KindSubstring:
		return evaluateStrings(f, features, opts.ShortCircuit, func(s string) bool {
			return strings.Contains(s, f.key.s)
		})
	case KindRegex:
		logger := opts.Logger
		if logger == nil {
			logger = slog.Default()
		}
		return evaluateStrings(f, features, opts.ShortCircuit, func(s string) bool {
			ok, err := f.search(s)
			if err != nil {
				logger.Warn("regex search failed, treating as no match",
					"pattern", f.key.s, "error", err)
				return false
			}
			return ok
		})
	case KindBytes:
		return evaluateBytes(f, features)
	case KindOS:
		return evaluateOS(f, features)
	default:
		panic(fmt.Sprintf("feature: evaluate called on invalid kind %d", f.key.kind))
	}
}

// Evaluate is shorthand for Evaluate(f, features, opts).
func (f Feature) Evaluate(features *FeatureSet, opts EvalOptions) *Result {
	return Evaluate(f, features, opts)
}

func evaluateExact(f Feature, features *FeatureSet) *Result {
	if locs, ok := features.Locations(f); ok {
		return featureResult(true, f, locs)
	}
	return featureResult(false, f, nil)
}

// evaluateStrings collects every String evidence value accepted by match,
// keyed by the matched value. The result carries the match instances.
func evaluateStrings(f Feature, features *FeatureSet, shortCircuit bool, match func(string) bool) *Result {
	matches := make(map[string]address.Set)
	for evidence, locs := range features.OfKind(KindString) {
		if evidence.key.vt != valueString {
			panic(fmt.Sprintf("feature: string evidence %v holds a non-string value", evidence.key))
		}
		if !match(evidence.key.s) {
			continue
		}
		set, ok := matches[evidence.key.s]
		if !ok {
			set = make(address.Set, len(locs))
			matches[evidence.key.s] = set
		}
		set.Union(locs)
		if shortCircuit {
			// one witness is enough in this mode
			break
		}
	}

	r := featureResult(len(matches) > 0, f, nil)
	r.matches = matches
	for _, locs := range matches {
		r.locations.Union(locs)
	}
	return r
}

func evaluateBytes(f Feature, features *FeatureSet) *Result {
	for evidence, locs := range features.OfKind(KindBytes) {
		if strings.HasPrefix(evidence.key.s, f.key.s) {
			return featureResult(true, f, locs)
		}
	}
	return featureResult(false, f, nil)
}

func evaluateOS(f Feature, features *FeatureSet) *Result {
	for evidence, locs := range features.OfKind(KindOS) {
		if f.key.s == OSAny || evidence.key.s == OSAny || f.key.s == evidence.key.s {
			return featureResult(true, f, locs)
		}
	}
	return featureResult(false, f, nil)
}

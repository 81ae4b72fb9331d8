package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/capmatch/pkg/address"
)

var (
	addrA = address.AbsoluteVirtualAddress(0x401000)
	addrB = address.AbsoluteVirtualAddress(0x402000)
	addrC = address.AbsoluteVirtualAddress(0x403000)
)

func exhaustive() EvalOptions { return EvalOptions{} }

func evidence(pairs ...any) *FeatureSet {
	fs := NewFeatureSet()
	for i := 0; i < len(pairs); i += 2 {
		fs.Add(pairs[i].(Feature), pairs[i+1].([]address.Address)...)
	}
	return fs
}

func at(addrs ...address.Address) []address.Address { return addrs }

func TestEvaluate_Exact(t *testing.T) {
	fs := evidence(String("foo"), at(addrA))

	r := Evaluate(String("foo"), fs, DefaultEvalOptions())
	assert.True(t, r.Success())
	assert.Equal(t, []address.Address{addrA}, r.Locations())

	r = Evaluate(String("fo"), fs, DefaultEvalOptions())
	assert.False(t, r.Success())
	assert.Empty(t, r.Locations())

	// kind is part of identity
	r = Evaluate(API("foo"), fs, DefaultEvalOptions())
	assert.False(t, r.Success())
}

func TestEvaluate_ExactIgnoresDescription(t *testing.T) {
	fs := evidence(Characteristic("nzxor").WithDescription("seen"), at(addrA, addrB))

	r := Evaluate(Characteristic("nzxor").WithDescription("wanted"), fs, DefaultEvalOptions())
	require.True(t, r.Success())
	assert.Equal(t, []address.Address{addrA, addrB}, r.Locations())

	f, ok := r.Feature()
	require.True(t, ok)
	assert.Equal(t, "wanted", f.Description(), "result carries the evaluated feature")
}

func TestEvaluate_Number(t *testing.T) {
	fs := evidence(Number(0x10), at(addrA), NumberFloat(2.5), at(addrB))

	assert.True(t, Evaluate(Number(16), fs, DefaultEvalOptions()).Success())
	assert.True(t, Evaluate(NumberFloat(16), fs, DefaultEvalOptions()).Success())
	assert.True(t, Evaluate(NumberFloat(2.5), fs, DefaultEvalOptions()).Success())
	assert.False(t, Evaluate(Number(2), fs, DefaultEvalOptions()).Success())
}

func TestEvaluate_SubstringExhaustive(t *testing.T) {
	fs := evidence(
		String("foo"), at(addrA),
		String("boo"), at(addrB),
		String("bar"), at(addrC),
	)

	r := Evaluate(Substring("oo"), fs, exhaustive())
	require.True(t, r.Success())
	assert.Equal(t, []address.Address{addrA, addrB}, r.Locations())
	assert.Equal(t, []string{"boo", "foo"}, r.MatchedStrings())

	m := r.Matches()
	require.Len(t, m, 2)
	assert.True(t, m["foo"].Contains(addrA))
	assert.True(t, m["boo"].Contains(addrB))
}

func TestEvaluate_SubstringShortCircuit(t *testing.T) {
	fs := evidence(
		String("foo"), at(addrA),
		String("boo"), at(addrB),
	)

	r := Evaluate(Substring("oo"), fs, DefaultEvalOptions())
	require.True(t, r.Success())
	assert.Len(t, r.Matches(), 1)
	// insertion order picks the witness
	assert.Equal(t, []string{"foo"}, r.MatchedStrings())
	assert.Equal(t, []address.Address{addrA}, r.Locations())
}

func TestEvaluate_SubstringMiss(t *testing.T) {
	fs := evidence(String("bar"), at(addrA), API("foo"), at(addrB))

	r := Evaluate(Substring("oo"), fs, exhaustive())
	assert.False(t, r.Success())
	assert.Empty(t, r.Locations())
	assert.Empty(t, r.MatchedStrings())
}

func TestEvaluate_SubstringOnlyConsultsStrings(t *testing.T) {
	// Substring evidence is a pattern, not something a pattern can match.
	fs := evidence(Substring("foo"), at(addrA))
	assert.False(t, Evaluate(Substring("oo"), fs, exhaustive()).Success())
}

func TestEvaluate_Regex(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		value   string
		want    bool
	}{
		{"plus", "/fo+/", "foo", true},
		{"unanchored search", "/foo/", "xfoox", true},
		// search is unanchored, but ^ and $ written in the pattern still anchor
		{"explicit anchors hold", "/^foo$/", "xfoox", false},
		{"anchored full", "/^foo$/", "foo", true},
		{"case sensitive", "/FOO/", "foo", false},
		{"ignore case", "/FOO/i", "xfoo", true},
		{"dot matches newline", "/a.b/", "a\nb", true},
		{"named group", "/(?P<word>fo+)bar/", "foobar", true},
		{"lookahead", "/foo(?=bar)/", "foobar", true},
		{"miss", "/baz/", "foobar", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := evidence(String(tt.value), at(addrA))
			r := Evaluate(MustRegex(tt.pattern), fs, exhaustive())
			assert.Equal(t, tt.want, r.Success())
			if tt.want {
				assert.Equal(t, []string{tt.value}, r.MatchedStrings())
				assert.Equal(t, []address.Address{addrA}, r.Locations())
			}
		})
	}
}

func TestEvaluate_RegexShortCircuit(t *testing.T) {
	fs := evidence(
		String("foo"), at(addrA),
		String("fooo"), at(addrB),
	)

	r := Evaluate(MustRegex("/fo+/"), fs, DefaultEvalOptions())
	require.True(t, r.Success())
	assert.Equal(t, []string{"foo"}, r.MatchedStrings())

	r = Evaluate(MustRegex("/fo+/"), fs, exhaustive())
	require.True(t, r.Success())
	assert.Equal(t, []string{"foo", "fooo"}, r.MatchedStrings())
	assert.Equal(t, []address.Address{addrA, addrB}, r.Locations())
}

func TestEvaluate_Bytes(t *testing.T) {
	fs := evidence(Bytes([]byte{0x4d, 0x5a, 0x90, 0x00}), at(addrA))

	r := Evaluate(Bytes([]byte{0x4d, 0x5a}), fs, DefaultEvalOptions())
	require.True(t, r.Success())
	assert.Equal(t, []address.Address{addrA}, r.Locations())

	assert.True(t, Evaluate(Bytes([]byte{0x4d, 0x5a, 0x90, 0x00}), fs, DefaultEvalOptions()).Success())
	assert.False(t, Evaluate(Bytes([]byte{0x5a}), fs, DefaultEvalOptions()).Success())
}

func TestEvaluate_BytesPrefixDirection(t *testing.T) {
	// the evidence must start with the pattern, not the other way around
	fs := evidence(Bytes([]byte{0x4d, 0x5a}), at(addrA))
	r := Evaluate(Bytes([]byte{0x4d, 0x5a, 0x90}), fs, DefaultEvalOptions())
	assert.False(t, r.Success())
	assert.Empty(t, r.Locations())
}

func TestEvaluate_OS(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		evidence string
		want     bool
	}{
		{"any pattern", OSAny, OSLinux, true},
		{"any evidence", OSWindows, OSAny, true},
		{"equal", OSAndroid, OSAndroid, true},
		{"different", OSWindows, OSLinux, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := evidence(OS(tt.evidence), at(address.None))
			r := Evaluate(OS(tt.pattern), fs, DefaultEvalOptions())
			assert.Equal(t, tt.want, r.Success())
			if tt.want {
				assert.Equal(t, []address.Address{address.None}, r.Locations())
			}
		})
	}

	assert.False(t, Evaluate(OS(OSAny), NewFeatureSet(), DefaultEvalOptions()).Success(),
		"os(any) still needs OS evidence")
}

func TestEvaluate_EmptyEvidence(t *testing.T) {
	for _, f := range sampleFeatures() {
		r := Evaluate(f, NewFeatureSet(), exhaustive())
		assert.False(t, r.Success(), f.String())
		assert.Empty(t, r.Locations(), f.String())
	}
}

func TestEvaluate_InvalidKindPanics(t *testing.T) {
	assert.Panics(t, func() {
		Evaluate(Feature{}, NewFeatureSet(), DefaultEvalOptions())
	})
}

func TestEvaluate_UncompiledRegexIsNoMatch(t *testing.T) {
	fs := evidence(String("foo"), at(addrA))
	f := newString(KindRegex, "/foo/")

	r := Evaluate(f, fs, exhaustive())
	assert.False(t, r.Success())
}

func TestEvaluate_Counters(t *testing.T) {
	c := NewCounters()
	opts := EvalOptions{Counters: c}
	fs := evidence(String("foo"), at(addrA))

	Evaluate(String("foo"), fs, opts)
	Evaluate(Substring("o"), fs, opts)
	Evaluate(Bytes([]byte{1, 2}), fs, opts)
	Evaluate(Bytes([]byte{3, 4}), fs, opts)
	Evaluate(Bytes([]byte{5}), fs, opts)

	assert.Equal(t, int64(5), c.Total())
	assert.Equal(t, int64(1), c.Kind(KindString))
	assert.Equal(t, int64(3), c.Kind(KindBytes))
	assert.Equal(t, map[string]int64{
		"evaluate.feature":           5,
		"evaluate.feature.string":    1,
		"evaluate.feature.substring": 1,
		"evaluate.feature.bytes":     3,
		"evaluate.feature.bytes.2":   2,
		"evaluate.feature.bytes.1":   1,
	}, c.Snapshot())
}

func TestEvaluate_CountersNeverChangeOutcome(t *testing.T) {
	fs := evidence(String("foo"), at(addrA), String("boo"), at(addrB))
	for _, f := range sampleFeatures() {
		plain := Evaluate(f, fs, exhaustive())
		counted := Evaluate(f, fs, EvalOptions{Counters: NewCounters()})
		assert.Equal(t, plain.String(), counted.String())
	}
}

func TestCounters_Nil(t *testing.T) {
	var c *Counters
	assert.NotPanics(t, func() { c.record(API("x")) })
	assert.Zero(t, c.Total())
	assert.Zero(t, c.Kind(KindAPI))
	assert.Empty(t, c.Snapshot())
}

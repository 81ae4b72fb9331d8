package feature

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/capmatch/pkg/address"
)

type stmt string

func (s stmt) StatementName() string { return string(s) }

func TestResult_FailureHasNoLocations(t *testing.T) {
	r := NewResult(false, stmt("and"), nil, address.NewSet(addrA))
	assert.False(t, r.Success())
	assert.Empty(t, r.Locations())

	r = NewResult(true, stmt("and"), nil, address.NewSet(addrA))
	assert.Equal(t, []address.Address{addrA}, r.Locations())
}

func TestResult_Accessors(t *testing.T) {
	fs := evidence(String("foo"), at(addrA))
	leaf := Evaluate(String("foo"), fs, DefaultEvalOptions())

	f, ok := leaf.Feature()
	require.True(t, ok)
	assert.True(t, f.Equal(String("foo")))
	_, ok = leaf.Statement()
	assert.False(t, ok)
	assert.Nil(t, leaf.Matches(), "exact kinds carry no match instances")

	parent := NewResult(true, stmt("or"), []*Result{leaf}, leaf.LocationSet())
	s, ok := parent.Statement()
	require.True(t, ok)
	assert.Equal(t, "or", s.StatementName())
	_, ok = parent.Feature()
	assert.False(t, ok)
	require.Len(t, parent.Children(), 1)
	assert.Same(t, leaf, parent.Children()[0])

	var visited int
	parent.Walk(func(*Result) { visited++ })
	assert.Equal(t, 2, visited)
}

func TestResult_Immutable(t *testing.T) {
	fs := evidence(String("foo"), at(addrA), String("boo"), at(addrB))
	r := Evaluate(Substring("oo"), fs, exhaustive())

	r.LocationSet().Add(addrC)
	for _, locs := range r.Matches() {
		locs.Add(addrC)
	}
	assert.Equal(t, []address.Address{addrA, addrB}, r.Locations())
	assert.False(t, r.Matches()["foo"].Contains(addrC))

	// evaluating must not alias the evidence locations either
	locs, _ := fs.Locations(String("foo"))
	assert.Equal(t, 1, locs.Len())
}

func TestResult_String(t *testing.T) {
	fs := evidence(
		String("foo"), at(addrA),
		String("boo"), at(addrB),
	)

	named := Evaluate(String("foo").WithDescription("name"), fs, exhaustive())
	fuzzy := Evaluate(Substring("oo"), fs, exhaustive())
	regex := Evaluate(MustRegex("/^b/"), fs, exhaustive())
	missing := Evaluate(Bytes([]byte{0x4d, 0x5a}), fs, exhaustive())

	or := NewResult(true, stmt("or"), []*Result{missing, named}, named.LocationSet())
	locs := fuzzy.LocationSet()
	locs.Union(or.LocationSet())
	root := NewResult(true, stmt("and"), []*Result{fuzzy, regex, or}, locs)

	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "result_tree", []byte(root.String()))
}

func TestResult_StringLeaf(t *testing.T) {
	fs := evidence(API("open"), at(address.DynamicCallAddress{
		Thread: address.ThreadAddress{Process: address.ProcessAddress{PID: 7}, TID: 1},
		ID:     0,
	}))
	r := Evaluate(API("open"), fs, DefaultEvalOptions())
	assert.Equal(t, "api(open) true [call{pid:7,tid:1,id:0}]", r.String())

	r = Evaluate(API("close"), fs, DefaultEvalOptions())
	assert.Equal(t, "api(close) false []", r.String())
}

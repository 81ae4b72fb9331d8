package feature

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/praetorian-inc/capmatch/pkg/address"
)

// Statement is a node of the rule combinator layer (and, or, n-of-m, ...)
// that owns a Result.
type Statement interface {
	StatementName() string
}

// Result is the explainable outcome of evaluating a feature or a statement.
// It is immutable after construction.
type Result struct {
	success   bool
	statement Statement
	feature   Feature
	matches   map[string]address.Set // substring/regex match instances
	children  []*Result
	locations address.Set
}

// NewResult builds a statement result for the combinator layer. Locations
// are discarded when success is false.
func NewResult(success bool, stmt Statement, children []*Result, locations address.Set) *Result {
	r := &Result{
		success:   success,
		statement: stmt,
		children:  slices.Clone(children),
	}
	if success {
		r.locations = locations.Clone()
	} else {
		r.locations = address.Set{}
	}
	return r
}

func featureResult(success bool, f Feature, locations address.Set) *Result {
	r := &Result{success: success, feature: f, locations: address.Set{}}
	if success {
		r.locations = locations.Clone()
	}
	return r
}

// Success reports whether the match held.
func (r *Result) Success() bool { return r.success }

// Statement returns the originating statement, if this is a statement result.
func (r *Result) Statement() (Statement, bool) {
	return r.statement, r.statement != nil
}

// Feature returns the originating feature, if this is a feature result.
func (r *Result) Feature() (Feature, bool) {
	return r.feature, r.statement == nil && r.feature.Kind().Valid()
}

// Children returns the child results in evaluation order.
func (r *Result) Children() []*Result { return slices.Clone(r.children) }

// Locations returns where the match held, sorted. Empty on failure.
func (r *Result) Locations() []address.Address { return r.locations.Sorted() }

// LocationSet returns a copy of the locations as a set.
func (r *Result) LocationSet() address.Set { return r.locations.Clone() }

// Matches returns, for substring and regex results, each matched evidence
// string with the addresses where it was seen. Nil for other kinds.
func (r *Result) Matches() map[string]address.Set {
	if r.matches == nil {
		return nil
	}
	out := make(map[string]address.Set, len(r.matches))
	for s, locs := range r.matches {
		out[s] = locs.Clone()
	}
	return out
}

// MatchedStrings returns the sorted evidence strings a fuzzy feature matched.
func (r *Result) MatchedStrings() []string {
	out := make([]string, 0, len(r.matches))
	for s := range r.matches {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Walk calls fn for r and every descendant, depth first.
func (r *Result) Walk(fn func(*Result)) {
	fn(r)
	for _, c := range r.children {
		c.Walk(fn)
	}
}

// origin renders the node's origin for the tree.
func (r *Result) origin() string {
	if r.statement != nil {
		return r.statement.StatementName()
	}
	if len(r.matches) == 0 {
		return r.feature.String()
	}
	quoted := make([]string, 0, len(r.matches))
	for _, s := range r.MatchedStrings() {
		quoted = append(quoted, strconv.Quote(s))
	}
	matches := strings.Join(quoted, ", ")
	if r.feature.Kind() == KindRegex {
		return fmt.Sprintf("regex(string =~ %s, matches = %s)", r.feature.Text(), matches)
	}
	return fmt.Sprintf("substring(%s, matches = %s)", strconv.Quote(r.feature.Text()), matches)
}

// String renders the result tree, two spaces of indent per level. Feature
// nodes include their locations.
func (r *Result) String() string {
	var lines []string
	var rec func(n *Result, depth int)
	rec = func(n *Result, depth int) {
		line := strings.Repeat("  ", depth) + n.origin() + " " + strconv.FormatBool(n.success)
		if n.statement == nil {
			line += " " + n.locations.String()
		}
		lines = append(lines, line)
		for _, c := range n.children {
			rec(c, depth+1)
		}
	}
	rec(r, 0)
	return strings.Join(lines, "\n")
}

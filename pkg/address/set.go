package address

import (
	"slices"
	"strings"
)

// Set is an unordered set of addresses.
type Set map[Address]struct{}

// NewSet creates a set holding addrs.
func NewSet(addrs ...Address) Set {
	s := make(Set, len(addrs))
	for _, a := range addrs {
		s[a] = struct{}{}
	}
	return s
}

// Add inserts addrs into the set.
func (s Set) Add(addrs ...Address) {
	for _, a := range addrs {
		s[a] = struct{}{}
	}
}

// Union inserts every member of other into s.
func (s Set) Union(other Set) {
	for a := range other {
		s[a] = struct{}{}
	}
}

// Contains reports whether a is in the set.
func (s Set) Contains(a Address) bool {
	_, ok := s[a]
	return ok
}

// Len returns the number of members.
func (s Set) Len() int {
	return len(s)
}

// Clone returns an independent copy. Cloning a nil set yields an empty set.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for a := range s {
		c[a] = struct{}{}
	}
	return c
}

// Sorted returns the members ordered by Compare.
func (s Set) Sorted() []Address {
	out := make([]Address, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	slices.SortFunc(out, Compare)
	return out
}

// String renders the sorted members as "[a, b]".
func (s Set) String() string {
	sorted := s.Sorted()
	parts := make([]string, len(sorted))
	for i, a := range sorted {
		parts[i] = a.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

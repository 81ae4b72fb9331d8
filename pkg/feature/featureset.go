package feature

import (
	"iter"

	"github.com/praetorian-inc/capmatch/pkg/address"
)

type entry struct {
	feature   Feature
	locations address.Set
}

// FeatureSet maps features to the addresses where they were observed.
// Keys are unique by feature identity (kind, value). Iteration follows first
// insertion, which keeps evaluation deterministic for a deterministic
// extractor. Build a FeatureSet, then treat it as read-only: evaluation
// may run concurrently against the same set.
type FeatureSet struct {
	entries map[Key]*entry
	order   []Key
	byKind  map[Kind][]Key
}

// NewFeatureSet creates an empty evidence mapping.
func NewFeatureSet() *FeatureSet {
	return &FeatureSet{
		entries: make(map[Key]*entry),
		byKind:  make(map[Kind][]Key),
	}
}

// Add records that f was observed at addrs. Adding a feature that is already
// present merges the locations and keeps the first description seen.
func (fs *FeatureSet) Add(f Feature, addrs ...address.Address) {
	if fs.entries == nil {
		fs.entries = make(map[Key]*entry)
		fs.byKind = make(map[Kind][]Key)
	}
	e, ok := fs.entries[f.key]
	if !ok {
		e = &entry{feature: f, locations: make(address.Set, len(addrs))}
		fs.entries[f.key] = e
		fs.order = append(fs.order, f.key)
		fs.byKind[f.key.kind] = append(fs.byKind[f.key.kind], f.key)
	}
	e.locations.Add(addrs...)
}

// Merge adds every feature of other to fs.
func (fs *FeatureSet) Merge(other *FeatureSet) {
	if other == nil {
		return
	}
	for _, k := range other.order {
		e := other.entries[k]
		fs.Add(e.feature)
		fs.entries[k].locations.Union(e.locations)
	}
}

// Clone returns an independent copy.
func (fs *FeatureSet) Clone() *FeatureSet {
	c := NewFeatureSet()
	c.Merge(fs)
	return c
}

// Len returns the number of distinct features.
func (fs *FeatureSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.order)
}

// Contains reports whether f is present.
func (fs *FeatureSet) Contains(f Feature) bool {
	_, ok := fs.Locations(f)
	return ok
}

// Locations returns the addresses where f was observed.
// The returned set is owned by fs and must not be modified.
func (fs *FeatureSet) Locations(f Feature) (address.Set, bool) {
	if fs == nil {
		return nil, false
	}
	e, ok := fs.entries[f.key]
	if !ok {
		return nil, false
	}
	return e.locations, true
}

// All yields every feature with its locations in insertion order.
func (fs *FeatureSet) All() iter.Seq2[Feature, address.Set] {
	return func(yield func(Feature, address.Set) bool) {
		if fs == nil {
			return
		}
		for _, k := range fs.order {
			e := fs.entries[k]
			if !yield(e.feature, e.locations) {
				return
			}
		}
	}
}

// OfKind yields the features of one kind with their locations in insertion order.
func (fs *FeatureSet) OfKind(kind Kind) iter.Seq2[Feature, address.Set] {
	return func(yield func(Feature, address.Set) bool) {
		if fs == nil {
			return
		}
		for _, k := range fs.byKind[kind] {
			e := fs.entries[k]
			if !yield(e.feature, e.locations) {
				return
			}
		}
	}
}

// Package store persists snapshots of extracted features so a trace can be
// matched again without the backend that produced it.
package store

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/praetorian-inc/capmatch/pkg/address"
	"github.com/praetorian-inc/capmatch/pkg/extractor"
	"github.com/praetorian-inc/capmatch/pkg/feature"
)

// MemoryPath selects the in-memory backend.
const MemoryPath = ":memory:"

// ErrUnknownSnapshot is returned for snapshot ids that were never added.
var ErrUnknownSnapshot = errors.New("unknown snapshot")

// Snapshot describes one frozen extraction.
type Snapshot struct {
	ID        string                 `json:"id"`
	Format    string                 `json:"format"`
	Hashes    extractor.SampleHashes `json:"hashes"`
	CreatedAt time.Time              `json:"created_at"`
}

// Record is one feature observed at a scope instance.
type Record struct {
	Scope extractor.Scope

	// ScopeAddress is the scope instance: address.None for global and file
	// scope, otherwise the process, thread or call address.
	ScopeAddress address.Address

	Feature  feature.Feature
	Location address.Address
}

// Store provides persistence for feature snapshots.
type Store interface {
	// AddSnapshot stores a snapshot. Adding an existing id is a no-op.
	AddSnapshot(s Snapshot) error

	// AddFeature appends a record to a snapshot.
	AddFeature(snapshotID string, r Record) error

	// Features returns the records of one scope in insertion order.
	Features(snapshotID string, scope extractor.Scope) ([]Record, error)

	// Snapshots returns every snapshot in insertion order.
	Snapshots() ([]Snapshot, error)

	// Close releases the backend.
	Close() error
}

// Config for store initialization.
type Config struct {
	// Path is the database file path.
	// Use ":memory:" for a store that lives only as long as the process.
	Path string
}

// New creates a Store: in memory for MemoryPath, SQLite otherwise.
func New(cfg Config) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if cfg.Path == MemoryPath {
		return NewMemory(), nil
	}
	return NewSQLite(cfg.Path)
}

// encodeFeature renders a feature's value as text that decodeFeature
// restores exactly.
func encodeFeature(f feature.Feature) string {
	switch v := f.Value().(type) {
	case []byte:
		return hex.EncodeToString(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return f.Text()
	}
}

func decodeFeature(kind, value, description string) (feature.Feature, error) {
	k, ok := feature.KindByName(kind)
	if !ok {
		return feature.Feature{}, fmt.Errorf("%w: %q", feature.ErrUnknownKind, kind)
	}

	var (
		f   feature.Feature
		err error
	)
	switch k {
	case feature.KindString:
		// stored strings are never patterns, even when they look like one
		f = feature.String(value)
	case feature.KindSubstring:
		f = feature.Substring(value)
	default:
		f, err = feature.Parse(kind, value)
		if err != nil {
			return feature.Feature{}, err
		}
	}
	return f.WithDescription(description), nil
}

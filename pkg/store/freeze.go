package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/praetorian-inc/capmatch/pkg/address"
	"github.com/praetorian-inc/capmatch/pkg/extractor"
)

// batchAdder is implemented by stores that insert many records at once.
type batchAdder interface {
	AddFeatures(snapshotID string, records []Record) error
}

// Freeze walks ext and records every (scope address, feature, location)
// triple under a new snapshot. Dynamic scopes are walked only when ext is an
// extractor.DynamicExtractor. The context is checked between processes.
func Freeze(ctx context.Context, st Store, ext extractor.FeatureExtractor, format string) (Snapshot, error) {
	snap := Snapshot{
		ID:        uuid.NewString(),
		Format:    format,
		Hashes:    ext.SampleHashes(),
		CreatedAt: time.Now().UTC(),
	}
	if err := st.AddSnapshot(snap); err != nil {
		return Snapshot{}, err
	}

	var records []Record
	records = appendScope(records, extractor.ScopeGlobal, address.None, ext.GlobalFeatures())
	records = appendScope(records, extractor.ScopeFile, address.None, ext.FileFeatures())
	if err := addAll(st, snap.ID, records); err != nil {
		return Snapshot{}, err
	}

	dyn, ok := ext.(extractor.DynamicExtractor)
	if !ok {
		return snap, nil
	}

	for ph := range dyn.Processes() {
		if err := ctx.Err(); err != nil {
			return Snapshot{}, fmt.Errorf("freeze interrupted: %w", err)
		}

		records = appendScope(records[:0], extractor.ScopeProcess, ph.Address, dyn.ProcessFeatures(ph))
		for th := range dyn.Threads(ph) {
			records = appendScope(records, extractor.ScopeThread, th.Address, dyn.ThreadFeatures(ph, th))
			for ch := range dyn.Calls(ph, th) {
				records = appendScope(records, extractor.ScopeCall, ch.Address, dyn.CallFeatures(ph, th, ch))
			}
		}
		if err := addAll(st, snap.ID, records); err != nil {
			return Snapshot{}, err
		}
	}

	return snap, nil
}

func appendScope(records []Record, scope extractor.Scope, at address.Address, seq extractor.Features) []Record {
	if seq == nil {
		return records
	}
	for f, loc := range seq {
		records = append(records, Record{Scope: scope, ScopeAddress: at, Feature: f, Location: loc})
	}
	return records
}

func addAll(st Store, snapshotID string, records []Record) error {
	if b, ok := st.(batchAdder); ok {
		return b.AddFeatures(snapshotID, records)
	}
	for _, r := range records {
		if err := st.AddFeature(snapshotID, r); err != nil {
			return err
		}
	}
	return nil
}

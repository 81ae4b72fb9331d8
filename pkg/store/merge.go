package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// MergeConfig configures the merge operation.
type MergeConfig struct {
	// SourcePaths are the database files to merge from.
	SourcePaths []string
	// DestPath is the destination database file.
	DestPath string
}

// MergeStats tracks merge operation statistics.
type MergeStats struct {
	SnapshotsMerged  int
	FeaturesMerged   int
	SourcesProcessed int
}

// Merge combines snapshot databases into one. Snapshots already present in
// the destination are skipped along with their features.
func Merge(cfg MergeConfig) (*MergeStats, error) {
	if len(cfg.SourcePaths) == 0 {
		return nil, fmt.Errorf("no source databases specified")
	}
	if cfg.DestPath == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	dest, err := NewSQLite(cfg.DestPath)
	if err != nil {
		return nil, fmt.Errorf("opening destination database: %w", err)
	}
	defer dest.Close()

	stats := &MergeStats{}
	for _, sourcePath := range cfg.SourcePaths {
		sourceStats, err := mergeFrom(dest.db, sourcePath)
		if err != nil {
			return stats, fmt.Errorf("merging from %s: %w", sourcePath, err)
		}
		stats.SnapshotsMerged += sourceStats.SnapshotsMerged
		stats.FeaturesMerged += sourceStats.FeaturesMerged
		stats.SourcesProcessed++
	}

	return stats, nil
}

// mergeFrom copies data from a source database to the destination.
func mergeFrom(destDB *sql.DB, sourcePath string) (*MergeStats, error) {
	sourceDB, err := sql.Open("sqlite", sourcePath)
	if err != nil {
		return nil, fmt.Errorf("opening source database: %w", err)
	}
	defer sourceDB.Close()

	tx, err := destDB.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	fresh, err := mergeSnapshots(tx, sourceDB)
	if err != nil {
		return nil, fmt.Errorf("merging snapshots: %w", err)
	}

	featureCount, err := mergeFeatures(tx, sourceDB, fresh)
	if err != nil {
		return nil, fmt.Errorf("merging features: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return &MergeStats{SnapshotsMerged: len(fresh), FeaturesMerged: featureCount}, nil
}

// mergeSnapshots inserts source snapshots and returns the ids that were new.
func mergeSnapshots(tx *sql.Tx, sourceDB *sql.DB) (map[string]bool, error) {
	rows, err := sourceDB.Query("SELECT id, format, md5, sha1, sha256, created_at FROM snapshots ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO snapshots (id, format, md5, sha1, sha256, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	fresh := make(map[string]bool)
	for rows.Next() {
		var id, format, created string
		var md5, sha1, sha256 sql.NullString
		if err := rows.Scan(&id, &format, &md5, &sha1, &sha256, &created); err != nil {
			return fresh, err
		}
		result, err := stmt.Exec(id, format, md5, sha1, sha256, created)
		if err != nil {
			return fresh, err
		}
		affected, _ := result.RowsAffected()
		if affected > 0 {
			fresh[id] = true
		}
	}
	return fresh, rows.Err()
}

func mergeFeatures(tx *sql.Tx, sourceDB *sql.DB, fresh map[string]bool) (int, error) {
	if len(fresh) == 0 {
		return 0, nil
	}

	rows, err := sourceDB.Query(`
		SELECT snapshot_id, scope, scope_address, kind, value, description, location
		FROM features
		ORDER BY id
	`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	stmt, err := tx.Prepare(`
		INSERT INTO features (snapshot_id, scope, scope_address, kind, value, description, location)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	count := 0
	for rows.Next() {
		var snapshotID, scope, scopeAddr, kind, value, description, location string
		if err := rows.Scan(&snapshotID, &scope, &scopeAddr, &kind, &value, &description, &location); err != nil {
			return count, err
		}
		if !fresh[snapshotID] {
			continue
		}
		if _, err := stmt.Exec(snapshotID, scope, scopeAddr, kind, value, description, location); err != nil {
			return count, err
		}
		count++
	}
	return count, rows.Err()
}

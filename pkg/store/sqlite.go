package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/praetorian-inc/capmatch/pkg/address"
	"github.com/praetorian-inc/capmatch/pkg/extractor"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-based store.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	// Initialize schema
	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// AddSnapshot stores a snapshot.
func (s *SQLiteStore) AddSnapshot(snap Snapshot) error {
	if snap.ID == "" {
		return fmt.Errorf("snapshot id is required")
	}
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO snapshots (id, format, md5, sha1, sha256, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		snap.ID,
		snap.Format,
		snap.Hashes.MD5,
		snap.Hashes.SHA1,
		snap.Hashes.SHA256,
		snap.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}

// AddFeature appends a record to a snapshot.
func (s *SQLiteStore) AddFeature(snapshotID string, r Record) error {
	return s.AddFeatures(snapshotID, []Record{r})
}

// AddFeatures appends records to a snapshot in one transaction.
func (s *SQLiteStore) AddFeatures(snapshotID string, records []Record) error {
	if err := s.requireSnapshot(snapshotID); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO features (snapshot_id, scope, scope_address, kind, value, description, location)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.Exec(
			snapshotID,
			r.Scope.String(),
			address.Encode(r.ScopeAddress),
			r.Feature.Name(),
			encodeFeature(r.Feature),
			r.Feature.Description(),
			address.Encode(r.Location),
		)
		if err != nil {
			return fmt.Errorf("inserting feature: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Features returns the records of one scope.
func (s *SQLiteStore) Features(snapshotID string, scope extractor.Scope) ([]Record, error) {
	if err := s.requireSnapshot(snapshotID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT scope_address, kind, value, description, location
		FROM features
		WHERE snapshot_id = ? AND scope = ?
		ORDER BY id
	`, snapshotID, scope.String())
	if err != nil {
		return nil, fmt.Errorf("querying features: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var scopeAddr, kind, value, description, location string
		if err := rows.Scan(&scopeAddr, &kind, &value, &description, &location); err != nil {
			return nil, fmt.Errorf("scanning feature: %w", err)
		}

		r := Record{Scope: scope}
		if r.ScopeAddress, err = address.Decode(scopeAddr); err != nil {
			return nil, fmt.Errorf("parsing scope address: %w", err)
		}
		if r.Location, err = address.Decode(location); err != nil {
			return nil, fmt.Errorf("parsing location: %w", err)
		}
		if r.Feature, err = decodeFeature(kind, value, description); err != nil {
			return nil, fmt.Errorf("parsing feature: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating features: %w", err)
	}

	return records, nil
}

// Snapshots returns every snapshot.
func (s *SQLiteStore) Snapshots() ([]Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT id, format, md5, sha1, sha256, created_at
		FROM snapshots
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var snap Snapshot
		var md5, sha1, sha256 sql.NullString
		var created string
		if err := rows.Scan(&snap.ID, &snap.Format, &md5, &sha1, &sha256, &created); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		snap.Hashes = extractor.SampleHashes{MD5: md5.String, SHA1: sha1.String, SHA256: sha256.String}
		if snap.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		snapshots = append(snapshots, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}

	return snapshots, nil
}

func (s *SQLiteStore) requireSnapshot(id string) error {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM snapshots WHERE id = ?", id).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking snapshot existence: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSnapshot, id)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache persists raw esummary documents and taxonomy entries in a
// SQLite database so repeated runs do not refetch them.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/sra-fetch/pkg/types"
)

// DBFile is the database file name inside the cache directory.
const DBFile = "sra-fetch.db"

// Store is the SQLite cache. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string

	// MaxAge, when positive, hides documents fetched longer ago.
	MaxAge time.Duration

	now func() time.Time
}

// Open opens or creates dir/sra-fetch.db and its schema.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	path := filepath.Join(dir, DBFile)
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	s := &Store{db: db, path: path, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			uid TEXT PRIMARY KEY,
			body BLOB NOT NULL,
			fetched_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS taxa (
			taxon_id INTEGER PRIMARY KEY,
			scientific_name TEXT,
			lineage TEXT
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// GetDocuments returns the cached bodies for ids. Identifiers not in the
// cache are absent from the result.
func (s *Store) GetDocuments(ctx context.Context, ids []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `SELECT uid, body FROM documents WHERE uid IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`
	if s.MaxAge > 0 {
		query += ` AND fetched_at >= ?`
		args = append(args, s.now().Add(-s.MaxAge).Unix())
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var uid string
		var body []byte
		if err := rows.Scan(&uid, &body); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		out[uid] = body
	}
	return out, rows.Err()
}

// PutDocuments upserts docs in one transaction.
func (s *Store) PutDocuments(ctx context.Context, docs map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (uid, body, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(uid) DO UPDATE SET body=excluded.body, fetched_at=excluded.fetched_at`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := s.now().Unix()
	for uid, body := range docs {
		if _, err := stmt.ExecContext(ctx, uid, body, now); err != nil {
			return fmt.Errorf("inserting document %s: %w", uid, err)
		}
	}
	return tx.Commit()
}

// GetTaxon returns the cached taxon for id. ok is false on a miss.
func (s *Store) GetTaxon(ctx context.Context, id int64) (t types.Taxon, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT taxon_id, scientific_name, lineage FROM taxa WHERE taxon_id = ?`, id,
	).Scan(&t.ID, &t.ScientificName, &t.Lineage)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Taxon{}, false, nil
	}
	if err != nil {
		return types.Taxon{}, false, fmt.Errorf("querying taxon %d: %w", id, err)
	}
	return t, true, nil
}

// PutTaxon upserts t.
func (s *Store) PutTaxon(ctx context.Context, t types.Taxon) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO taxa (taxon_id, scientific_name, lineage) VALUES (?, ?, ?)
		 ON CONFLICT(taxon_id) DO UPDATE SET
			scientific_name=excluded.scientific_name, lineage=excluded.lineage`,
		t.ID, t.ScientificName, t.Lineage,
	)
	if err != nil {
		return fmt.Errorf("upserting taxon %d: %w", t.ID, err)
	}
	return nil
}

// Stats holds row counts for the cache tables.
type Stats struct {
	Documents int `yaml:"documents"`
	Taxa      int `yaml:"taxa"`
}

// Stats counts cached rows.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM documents`).Scan(&st.Documents); err != nil {
		return Stats{}, fmt.Errorf("counting documents: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM taxa`).Scan(&st.Taxa); err != nil {
		return Stats{}, fmt.Errorf("counting taxa: %w", err)
	}
	return st, nil
}

// Clear deletes every cached row.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"documents", "taxa"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return tx.Commit()
}

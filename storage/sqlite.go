package storage

import (
	"context"
	"database/sql"
	"iter"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/wippyai/wasm-journal/errors"
)

// sqlitePage is the number of rows fetched per query while iterating.
const sqlitePage = 256

// SQLite stores each record as a row of journal_records. Several
// journals may share one database; they are told apart by journal id.
type SQLite struct {
	db        *sql.DB
	journalID string
	ownsDB    bool

	mu     sync.Mutex
	closed bool
}

var _ Backend = (*SQLite)(nil)

// OpenSQLite opens the database at dsn with the pure-Go sqlite driver.
func OpenSQLite(ctx context.Context, dsn, journalID string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.StorageIO("open sqlite", err)
	}
	// A single connection keeps ":memory:" databases shared and
	// serializes writers.
	db.SetMaxOpenConns(1)

	s, err := NewSQLite(ctx, db, journalID)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewSQLite uses an existing database handle. The caller keeps ownership
// of db; Close does not close it.
func NewSQLite(ctx context.Context, db *sql.DB, journalID string) (*SQLite, error) {
	if journalID == "" {
		return nil, errors.InvalidInput(errors.PhaseStorage, "sqlite backend needs a journal id")
	}
	s := &SQLite{db: db, journalID: journalID}
	if err := s.migrate(ctx); err != nil {
		return nil, errors.StorageIO("migrate sqlite", err)
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS journal_records (
		journal_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (journal_id, seq)
	);`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Append inserts record with the next sequence number of the journal.
// The sequence is read and written in one transaction.
func (s *SQLite) Append(ctx context.Context, record []byte) error {
	if err := s.check(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StorageIO("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM journal_records WHERE journal_id = ?`,
		s.journalID).Scan(&seq)
	if err != nil {
		return errors.StorageIO("next sequence", err)
	}

	if record == nil {
		record = []byte{}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO journal_records (journal_id, seq, payload) VALUES (?, ?, ?)`,
		s.journalID, seq, record)
	if err != nil {
		return errors.StorageIO("insert record", err)
	}
	if err := tx.Commit(); err != nil {
		return errors.StorageIO("commit", err)
	}
	return nil
}

// Records pages through the journal in sequence order. No connection is
// held while the caller's loop body runs.
func (s *SQLite) Records(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if err := s.check(); err != nil {
			yield(nil, err)
			return
		}
		var after int64
		for {
			page, last, err := s.page(ctx, after)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, rec := range page {
				if !yield(rec, nil) {
					return
				}
			}
			if len(page) < sqlitePage {
				return
			}
			after = last
		}
	}
}

func (s *SQLite) page(ctx context.Context, after int64) ([][]byte, int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, payload FROM journal_records
		WHERE journal_id = ? AND seq > ?
		ORDER BY seq
		LIMIT ?`,
		s.journalID, after, sqlitePage)
	if err != nil {
		return nil, 0, errors.StorageIO("query records", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		out  [][]byte
		last int64
	)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&last, &payload); err != nil {
			return nil, 0, errors.StorageIO("scan record", err)
		}
		out = append(out, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.StorageIO("query records", err)
	}
	return out, last, nil
}

func (s *SQLite) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.Closed(errors.PhaseStorage, "sqlite backend")
	}
	return nil
}

// Close closes the database if it was opened by OpenSQLite.
func (s *SQLite) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.ownsDB {
		if err := s.db.Close(); err != nil {
			return errors.StorageIO("close sqlite", err)
		}
	}
	return nil
}

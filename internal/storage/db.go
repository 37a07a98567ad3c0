// Package storage owns every persistent entity: documents, their metadata
// bags, the inverted keyword index, the query-result cache, and the schema
// version. Everything above this package holds only integer ids.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/standardbeagle/mydocs/internal/errors"
	"github.com/standardbeagle/mydocs/internal/logging"
)

// slowQueryThreshold is how long a statement may run before it is logged as
// slow. Slow statements are logged, never cancelled.
const slowQueryThreshold = 200 * time.Millisecond

// Store is the single handle to the database file. One Store per backing
// file; database/sql multiplexes concurrent callers underneath.
type Store struct {
	db     *sql.DB
	dbPath string
	fresh  bool
	log    *logging.Logger
}

// Open creates or opens the database file at dbPath and runs all pending
// migrations. maxConns caps the connection pool.
func Open(ctx context.Context, dbPath string, maxConns int, log *logging.Logger) (*Store, error) {
	fresh := false
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fresh = true
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, errors.NewStoreError("open", fmt.Errorf("creating database directory: %w", err))
		}
	}

	connStr := fmt.Sprintf("file:%s"+
		"?_pragma=journal_mode(WAL)"+
		"&_pragma=busy_timeout(5000)"+
		"&_pragma=synchronous(NORMAL)"+
		"&_pragma=foreign_keys(ON)"+
		"&_pragma=cache_size(-64000)"+
		"&_pragma=temp_store(MEMORY)"+
		"&_pragma=mmap_size(268435456)", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, errors.NewStoreError("open", fmt.Errorf("opening database: %w", err))
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.NewStoreError("connect", err)
	}

	s := &Store{db: db, dbPath: dbPath, fresh: fresh, log: log}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// IsFresh reports whether the backing file was created by this Open call.
func (s *Store) IsFresh() bool {
	return s.fresh
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunInTransaction executes fn atomically, rolling back on any error.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError("begin", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.NewStoreError("commit", err)
	}
	return nil
}

// trackQuery logs statements that exceed the slow-query threshold.
func (s *Store) trackQuery(op string, start time.Time) {
	if elapsed := time.Since(start); elapsed > slowQueryThreshold {
		s.log.Warning("slow query: %s took %v", op, elapsed)
	}
}

func (s *Store) queryRow(ctx context.Context, op, stmt string, args ...any) *sql.Row {
	defer s.trackQuery(op, time.Now())
	return s.db.QueryRowContext(ctx, stmt, args...)
}

func (s *Store) query(ctx context.Context, op, stmt string, args ...any) (*sql.Rows, error) {
	defer s.trackQuery(op, time.Now())
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.NewStoreError(op, err).WithStatement(stmt)
	}
	return rows, nil
}

func (s *Store) exec(ctx context.Context, op, stmt string, args ...any) (sql.Result, error) {
	defer s.trackQuery(op, time.Now())
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.NewStoreError(op, err).WithStatement(stmt)
	}
	return res, nil
}

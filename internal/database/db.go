package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens the local transaction store. Foreign keys are enforced and the
// busy timeout absorbs writer contention from concurrent imports. The pool
// is capped at one connection: sqlite allows a single writer anyway, and the
// per-account locks in the service layer assume statements from one commit
// never interleave with another's.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

// WithTx runs fn in a transaction, rolling back when fn fails.
func WithTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Now returns the current UTC time truncated to whole seconds, the
// resolution transaction timestamps are stored and compared at.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

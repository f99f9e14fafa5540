package database

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Sentinel category for ids outside the known hierarchy. Seeded at schema
// creation so category resolution always lands on a real row.
const UncategorizedID = 0

const driverName = "sqlite3_txnql"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("rank", matchRank, true)
		},
	})
}

// Open opens (or creates) the sqlite store and ensures the schema exists.
// A schema failure here is a startup precondition failure, not recoverable
// per-query; callers are expected to abort on error.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	if schemaSQL == "" {
		return fmt.Errorf("embedded schema script is empty")
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("exec schema script: %w", err)
	}
	// idempotent, re-asserted on every open
	_, err := db.Exec(`INSERT OR IGNORE INTO categories (category_id, path) VALUES (?, 'Uncategorized')`, UncategorizedID)
	if err != nil {
		return fmt.Errorf("seed sentinel category: %w", err)
	}
	return nil
}

// WithTx runs fn in a transaction.
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

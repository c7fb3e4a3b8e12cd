package repository

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repos can be rebound
// inside an atomic write scope.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Account represents an account row. Balance is the cached running total in
// whole pesos; BalanceSource records whether it was inferred from ingested
// transactions or set by an authoritative statement.
type Account struct {
	ID               string
	BankCode         string
	AccountNumber    string // partial, last 4+ digits
	Name             string
	Balance          int64
	BalanceSource    string // inferred | statement
	BalanceUpdatedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Category represents a category row.
type Category struct {
	ID        string
	ParentID  *string
	Name      string
	Icon      *string
	SortOrder int
	IsSystem  bool
}

// Transaction represents a persisted transaction row. Amount is always
// positive; Type carries the direction.
type Transaction struct {
	ID              string
	AccountID       string
	CategoryID      *string
	Type            string
	Amount          int64
	TransactionDate time.Time
	Merchant        *string
	Description     string
	Reference       *string
	BalanceAfter    *int64
	Provenance      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// scanner handles both Row and Rows.
type scanner interface {
	Scan(dest ...any) error
}

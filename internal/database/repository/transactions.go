package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// TransactionRepo handles transactions.
type TransactionRepo struct {
	db DBTX
}

func NewTransactionRepo(db DBTX) *TransactionRepo { return &TransactionRepo{db: db} }

const transactionCols = `id, account_id, category_id, type, amount, transaction_date, merchant, description, reference, balance_after, provenance, created_at, updated_at`

func (r *TransactionRepo) Insert(ctx context.Context, t Transaction) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO transactions(
	 id, account_id, category_id, type, amount, transaction_date, merchant,
	 description, reference, balance_after, provenance, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
	`,
		t.ID, t.AccountID, t.CategoryID, t.Type, t.Amount, t.TransactionDate,
		t.Merchant, t.Description, t.Reference, t.BalanceAfter, t.Provenance)
	return err
}

// FindByReference returns the transaction carrying a bank-provided reference
// on the given account, or nil.
func (r *TransactionRepo) FindByReference(ctx context.Context, accountID, reference string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionCols+` FROM transactions WHERE account_id = ? AND reference = ?`, accountID, reference)
	t, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// FindByAmountDateWindow returns transactions on the account with the same
// amount and direction whose date falls inside [from, to]. Used for dedup
// when no reference is present.
func (r *TransactionRepo) FindByAmountDateWindow(ctx context.Context, accountID string, amount int64, txType string, from, to time.Time) ([]Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT `+transactionCols+` FROM transactions
	WHERE account_id = ? AND amount = ? AND type = ? AND transaction_date >= ? AND transaction_date <= ?
	ORDER BY transaction_date`, accountID, amount, txType, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListByAccount returns every transaction on one account ordered by date.
func (r *TransactionRepo) ListByAccount(ctx context.Context, accountID string) ([]Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionCols+` FROM transactions WHERE account_id = ? ORDER BY transaction_date, created_at`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListAll returns every transaction, used by the backup exporter.
func (r *TransactionRepo) ListAll(ctx context.Context) ([]Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionCols+` FROM transactions ORDER BY transaction_date, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// OldestDate returns the earliest transaction date among the given
// provenances, or the zero time when none exist.
func (r *TransactionRepo) OldestDate(ctx context.Context, provenances ...string) (time.Time, error) {
	if len(provenances) == 0 {
		return time.Time{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(provenances)), ",")
	args := make([]any, len(provenances))
	for i, p := range provenances {
		args[i] = p
	}
	row := r.db.QueryRowContext(ctx, `SELECT MIN(transaction_date) FROM transactions WHERE provenance IN (`+placeholders+`)`, args...)
	var min sql.NullTime
	if err := row.Scan(&min); err != nil {
		return time.Time{}, err
	}
	if !min.Valid {
		return time.Time{}, nil
	}
	return min.Time, nil
}

func collectTransactions(rows *sql.Rows) ([]Transaction, error) {
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(row scanner) (Transaction, error) {
	var t Transaction
	var category, merchant, reference sql.NullString
	var balanceAfter sql.NullInt64
	if err := row.Scan(&t.ID, &t.AccountID, &category, &t.Type, &t.Amount, &t.TransactionDate,
		&merchant, &t.Description, &reference, &balanceAfter, &t.Provenance, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Transaction{}, err
	}
	if category.Valid {
		t.CategoryID = &category.String
	}
	if merchant.Valid {
		t.Merchant = &merchant.String
	}
	if reference.Valid {
		t.Reference = &reference.String
	}
	if balanceAfter.Valid {
		t.BalanceAfter = &balanceAfter.Int64
	}
	return t, nil
}

package repository

import (
	"context"
	"database/sql"
	"time"
)

// AccountRepo handles accounts.
type AccountRepo struct {
	db DBTX
}

func NewAccountRepo(db DBTX) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Upsert(ctx context.Context, a Account) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO accounts(id, bank_code, account_number, name, balance, balance_source, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
	 name=excluded.name,
	 updated_at=CURRENT_TIMESTAMP;
	`, a.ID, a.BankCode, a.AccountNumber, a.Name, a.Balance, balanceSourceOrDefault(a.BalanceSource))
	return err
}

func (r *AccountRepo) Get(ctx context.Context, id string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, bank_code, account_number, name, balance, balance_source, balance_updated_at, created_at, updated_at FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// FindByNumber looks an account up by its partial account number alone,
// regardless of bank. The backup importer uses this to detect accounts that
// already exist locally.
func (r *AccountRepo) FindByNumber(ctx context.Context, number string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, bank_code, account_number, name, balance, balance_source, balance_updated_at, created_at, updated_at FROM accounts WHERE account_number = ?`, number)
	a, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, bank_code, account_number, name, balance, balance_source, balance_updated_at, created_at, updated_at FROM accounts ORDER BY bank_code, account_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ApplyBalanceDelta shifts the cached balance by a signed amount. The caller
// holds the per-account commit lock.
func (r *AccountRepo) ApplyBalanceDelta(ctx context.Context, id string, delta int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE accounts SET balance = balance + ?, balance_source = 'inferred',
	 balance_updated_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, delta, at, id)
	return err
}

// SetBalance overwrites the cached balance with an authoritative value.
func (r *AccountRepo) SetBalance(ctx context.Context, id string, balance int64, source string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE accounts SET balance = ?, balance_source = ?,
	 balance_updated_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, balance, source, at, id)
	return err
}

func balanceSourceOrDefault(s string) string {
	if s == "" {
		return "inferred"
	}
	return s
}

func scanAccount(row scanner) (Account, error) {
	var a Account
	var updated sql.NullTime
	if err := row.Scan(&a.ID, &a.BankCode, &a.AccountNumber, &a.Name, &a.Balance,
		&a.BalanceSource, &updated, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, err
	}
	if updated.Valid {
		a.BalanceUpdatedAt = &updated.Time
	}
	return a, nil
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jsarmiento/plata/internal/database/repository"
	"github.com/jsarmiento/plata/internal/model"
	"github.com/jsarmiento/plata/internal/statement"
)

func statementCandidate(amount int64, dir model.Direction, at time.Time, desc string) model.TransactionCandidate {
	return model.TransactionCandidate{
		Source:       model.SourceStatementExcel,
		Bank:         model.BankBancolombia,
		Direction:    dir,
		Amount:       amount,
		OccurredAt:   at,
		Counterparty: desc,
		AccountHint:  "1234",
		RawPayload:   desc,
	}
}

func TestReconcileStatementImportsSupersetAndSetsBalance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	locker := newAccountLocker()
	ingest := NewIngestService(db, locker, testLogger())
	recon := NewReconcileService(db, locker, testLogger())

	// one transaction already known from a realtime SMS
	smsAt := time.Date(2026, 3, 5, 19, 30, 0, 0, time.UTC)
	outcome, err := ingest.IngestRealtime(ctx, testCandidate(45000, smsAt, "EXITO", ""))
	require.NoError(t, err)
	require.True(t, outcome.Imported)

	st := &statement.Statement{
		Bank:        model.BankBancolombia,
		AccountHint: "1234",
		Balance:     2450000,
		Candidates: []model.TransactionCandidate{
			// overlaps the SMS transaction: same amount, same day, compatible description
			statementCandidate(45000, model.DirExpense, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), "COMPRA EXITO"),
			statementCandidate(80000, model.DirExpense, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), "PAGO SERVICIOS"),
			statementCandidate(2500000, model.DirIncome, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), "ABONO NOMINA"),
		},
	}

	acct, err := recon.ResolveAccount(ctx, st)
	require.NoError(t, err)
	require.Equal(t, outcome.AccountID, acct.ID)

	res, err := recon.ReconcileStatement(ctx, acct.ID, st)
	require.NoError(t, err)
	require.Equal(t, 2, res.Transactions.Imported)
	require.Equal(t, 1, res.Transactions.Skipped)
	require.Equal(t, 0, res.Transactions.Failed)

	require.Equal(t, 3, countTransactions(t, db))

	// the statement balance is authoritative, not the running delta
	after, err := repository.NewAccountRepo(db).Get(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2450000), after.Balance)
	require.Equal(t, "statement", after.BalanceSource)
	require.NotNil(t, after.BalanceUpdatedAt)
}

func TestReconcileStatementAllDuplicatesIsSuccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	locker := newAccountLocker()
	recon := NewReconcileService(db, locker, testLogger())

	st := &statement.Statement{
		Bank:        model.BankBancolombia,
		AccountHint: "1234",
		Balance:     900000,
		Candidates: []model.TransactionCandidate{
			statementCandidate(45000, model.DirExpense, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), "COMPRA EXITO"),
		},
	}
	acct, err := recon.ResolveAccount(ctx, st)
	require.NoError(t, err)

	res, err := recon.ReconcileStatement(ctx, acct.ID, st)
	require.NoError(t, err)
	require.Equal(t, 1, res.Transactions.Imported)

	// re-importing the same statement is a zero-import success
	res, err = recon.ReconcileStatement(ctx, acct.ID, st)
	require.NoError(t, err)
	require.Equal(t, 0, res.Transactions.Imported)
	require.Equal(t, 1, res.Transactions.Skipped)
	require.Equal(t, 1, countTransactions(t, db))
}

func TestReconcileStatementPersistsRowFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	recon := NewReconcileService(db, newAccountLocker(), testLogger())

	st := &statement.Statement{
		Bank:        model.BankBancolombia,
		AccountHint: "1234",
		Balance:     100000,
		Candidates: []model.TransactionCandidate{
			statementCandidate(45000, model.DirExpense, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), "COMPRA"),
		},
		RowFailures: []model.FailedExtraction{
			{
				RawPayload:  "fila ilegible|??|??",
				Source:      model.SourceStatementExcel,
				Reason:      model.ReasonUnparseableDate,
				FirstSeenAt: time.Now().UTC(),
			},
		},
	}
	acct, err := recon.ResolveAccount(ctx, st)
	require.NoError(t, err)

	res, err := recon.ReconcileStatement(ctx, acct.ID, st)
	require.NoError(t, err)
	require.Equal(t, 1, res.Transactions.Imported)
	require.Equal(t, 1, res.Transactions.Failed)
	require.Len(t, res.Errors, 1)

	count, err := repository.NewFailedExtractionRepo(db).Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// re-importing the same file does not grow the failure queue
	res, err = recon.ReconcileStatement(ctx, acct.ID, st)
	require.NoError(t, err)
	require.Equal(t, 0, res.Transactions.Failed)

	count, err = repository.NewFailedExtractionRepo(db).Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestReconcileStatementUnknownAccount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	recon := NewReconcileService(db, newAccountLocker(), testLogger())

	st := &statement.Statement{Bank: model.BankBancolombia, Balance: 1}
	_, err := recon.ReconcileStatement(ctx, "missing", st)
	require.Error(t, err)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jsarmiento/plata/internal/database"
	"github.com/jsarmiento/plata/internal/database/repository"
	"github.com/jsarmiento/plata/internal/model"
)

func TestBackupImportMergesForeignData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewBackupService(db, testLogger())

	// an account this device already knows about
	existing := repository.Account{
		ID:            "local-acct",
		BankCode:      "bancolombia",
		AccountNumber: "1234",
		Name:          "Bancolombia *1234",
	}
	require.NoError(t, repository.NewAccountRepo(db).Upsert(ctx, existing))

	export := &model.BackupExport{
		Metadata: model.BackupMetadata{Version: 2, App: "plata", ExportedAt: time.Now().UTC()},
		Data: model.BackupData{
			Categories: []model.BackupCategory{
				{ID: "f-cat-1", Name: "Viajes", SortOrder: 3},
			},
			Accounts: []model.BackupAccount{
				// same account number: skipped, but transactions must still attach
				{ID: "f-acct-1", BankCode: "bancolombia", AccountNumber: "1234", Name: "Mi Bancolombia", Balance: 500000},
				{ID: "f-acct-2", BankCode: "nequi", AccountNumber: "main", Name: "Nequi", Balance: 80000},
			},
			Transactions: []model.BackupTransaction{
				{ID: "f-tx-1", AccountID: "f-acct-1", CategoryID: "f-cat-1", Type: "expense", Amount: 45000,
					TransactionDate: time.Date(2026, 3, 5, 19, 30, 0, 0, time.UTC), Merchant: "EXITO"},
				{ID: "f-tx-2", AccountID: "f-acct-2", Type: "income", Amount: 80000,
					TransactionDate: time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)},
				// references an account the export never declares
				{ID: "f-tx-3", AccountID: "f-acct-missing", Type: "expense", Amount: 1000,
					TransactionDate: time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)},
			},
		},
	}

	res, err := svc.Import(ctx, export, StrategyMerge)
	require.NoError(t, err)
	require.Equal(t, 1, res.Accounts.Imported)
	require.Equal(t, 1, res.Accounts.Skipped)
	require.Equal(t, 1, res.Categories.Imported)
	require.Equal(t, 2, res.Transactions.Imported)
	require.Equal(t, 1, res.Transactions.Skipped)

	// the duplicate account's transaction landed on the local account
	txs, err := repository.NewTransactionRepo(db).ListByAccount(ctx, "local-acct")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, int64(45000), txs[0].Amount)
	require.Equal(t, string(model.SourceBackupImport), txs[0].Provenance)
	require.NotNil(t, txs[0].CategoryID)

	// foreign ids are never written
	acct, err := repository.NewAccountRepo(db).Get(ctx, "f-acct-2")
	require.NoError(t, err)
	require.Nil(t, acct)
}

func TestBackupImportRejectsNewerVersion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewBackupService(db, testLogger())

	export := &model.BackupExport{
		Metadata: model.BackupMetadata{Version: model.BackupSchemaVersion + 1, App: "plata"},
	}
	_, err := svc.Import(ctx, export, StrategyMerge)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestBackupImportSkipsSystemCategories(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, database.SeedDefaults(ctx, db))
	svc := NewBackupService(db, testLogger())

	export := &model.BackupExport{
		Metadata: model.BackupMetadata{Version: 2, App: "plata"},
		Data: model.BackupData{
			Categories: []model.BackupCategory{
				// exists locally by name: mapped, not duplicated
				{ID: "f-cat-sys", Name: "Mercado", IsSystem: true},
				// foreign system category with no local counterpart
				{ID: "f-cat-other", Name: "Impuestos", IsSystem: true},
			},
		},
	}
	res, err := svc.Import(ctx, export, StrategyMerge)
	require.NoError(t, err)
	require.Equal(t, 0, res.Categories.Imported)
	require.Equal(t, 2, res.Categories.Skipped)

	cat, err := repository.NewCategoryRepo(db).FindByName(ctx, "Impuestos")
	require.NoError(t, err)
	require.Nil(t, cat)
}

func TestBackupExportRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	ingest := NewIngestService(db, newAccountLocker(), testLogger())
	svc := NewBackupService(db, testLogger())

	at := time.Date(2026, 3, 5, 19, 30, 0, 0, time.UTC)
	_, err := ingest.IngestRealtime(ctx, testCandidate(45000, at, "EXITO", "112233"))
	require.NoError(t, err)

	export, err := svc.Export(ctx)
	require.NoError(t, err)
	require.Equal(t, model.BackupSchemaVersion, export.Metadata.Version)
	require.Equal(t, "plata", export.Metadata.App)
	require.Len(t, export.Data.Accounts, 1)
	require.Len(t, export.Data.Transactions, 1)
	require.Equal(t, "112233", export.Data.Transactions[0].Reference)
	require.Equal(t, export.Data.Accounts[0].ID, export.Data.Transactions[0].AccountID)

	// importing a device's own export back is a pure no-op merge
	res, err := svc.Import(ctx, export, StrategyMerge)
	require.NoError(t, err)
	require.Equal(t, 0, res.Transactions.Imported)
	require.Equal(t, 1, res.Transactions.Skipped)
	require.Equal(t, 1, countTransactions(t, db))
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/jsarmiento/plata/internal/database"
	"github.com/jsarmiento/plata/internal/database/repository"
	"github.com/jsarmiento/plata/internal/model"
)

// ErrUnsupportedVersion rejects exports produced by a newer schema. Equal
// or older versions import fine.
var ErrUnsupportedVersion = errors.New("backup: unsupported schema version")

// MergeStrategy selects how the importer treats entities that already exist
// locally. Merge skips them; it never overwrites.
type MergeStrategy string

const StrategyMerge MergeStrategy = "merge"

// BackupService imports and exports the portable full-data document.
type BackupService struct {
	db  *sql.DB
	log *log.Logger
}

func NewBackupService(db *sql.DB, logger *log.Logger) *BackupService {
	return &BackupService{db: db, log: logger}
}

// Import merges another device's export into the local store. Order is
// fixed (categories, then accounts, then transactions) because transactions
// reference both. Foreign ids are never written; every created
// entity gets a fresh local id and the foreign-to-local mapping carries the
// references across. A single bad record appends an error and the import
// continues.
func (s *BackupService) Import(ctx context.Context, export *model.BackupExport, strategy MergeStrategy) (model.ImportResult, error) {
	res := model.ImportResult{}
	if export == nil {
		return res, fmt.Errorf("backup: nil export")
	}
	if export.Metadata.Version > model.BackupSchemaVersion {
		return res, fmt.Errorf("%w: got %d, supported <= %d", ErrUnsupportedVersion, export.Metadata.Version, model.BackupSchemaVersion)
	}
	if strategy == "" {
		strategy = StrategyMerge
	}

	catMap := s.importCategories(ctx, export.Data.Categories, &res)
	acctMap := s.importAccounts(ctx, export.Data.Accounts, &res)
	s.importTransactions(ctx, export.Data.Transactions, acctMap, catMap, &res)

	s.log.Info("backup import finished", "strategy", strategy,
		"accounts", res.Accounts, "categories", res.Categories,
		"transactions", res.Transactions, "errors", len(res.Errors))
	return res, nil
}

func (s *BackupService) importCategories(ctx context.Context, cats []model.BackupCategory, res *model.ImportResult) map[string]string {
	repo := repository.NewCategoryRepo(s.db)
	catMap := make(map[string]string)
	for _, c := range cats {
		if c.Name == "" {
			res.Categories.Failed++
			res.AddError("category %s: missing name", c.ID)
			continue
		}
		existing, err := repo.FindByName(ctx, c.Name)
		if err != nil {
			res.Categories.Failed++
			res.AddError("category %q: %v", c.Name, err)
			continue
		}
		if existing != nil {
			// keep the mapping so transactions stay categorized
			catMap[c.ID] = existing.ID
			res.Categories.Skipped++
			continue
		}
		if c.IsSystem {
			res.Categories.Skipped++
			continue
		}
		localID := uuid.NewString()
		cat := repository.Category{ID: localID, Name: c.Name, SortOrder: c.SortOrder}
		if c.Icon != "" {
			icon := c.Icon
			cat.Icon = &icon
		}
		if parent, ok := catMap[c.ParentID]; ok {
			cat.ParentID = &parent
		}
		if err := repo.Upsert(ctx, cat); err != nil {
			res.Categories.Failed++
			res.AddError("category %q: %v", c.Name, err)
			continue
		}
		catMap[c.ID] = localID
		res.Categories.Imported++
	}
	return catMap
}

func (s *BackupService) importAccounts(ctx context.Context, accounts []model.BackupAccount, res *model.ImportResult) map[string]string {
	repo := repository.NewAccountRepo(s.db)
	acctMap := make(map[string]string)
	for _, a := range accounts {
		if a.AccountNumber == "" {
			res.Accounts.Failed++
			res.AddError("account %s: missing account number", a.ID)
			continue
		}
		existing, err := repo.FindByNumber(ctx, a.AccountNumber)
		if err != nil {
			res.Accounts.Failed++
			res.AddError("account %s: %v", a.AccountNumber, err)
			continue
		}
		if existing != nil {
			// skip the account but record its local id so the export's
			// transactions still attach correctly
			acctMap[a.ID] = existing.ID
			res.Accounts.Skipped++
			continue
		}
		localID := uuid.NewString()
		acct := repository.Account{
			ID:            localID,
			BankCode:      a.BankCode,
			AccountNumber: a.AccountNumber,
			Name:          a.Name,
			Balance:       a.Balance,
		}
		if err := repo.Upsert(ctx, acct); err != nil {
			res.Accounts.Failed++
			res.AddError("account %s: %v", a.AccountNumber, err)
			continue
		}
		acctMap[a.ID] = localID
		res.Accounts.Imported++
	}
	return acctMap
}

func (s *BackupService) importTransactions(ctx context.Context, txs []model.BackupTransaction, acctMap, catMap map[string]string, res *model.ImportResult) {
	for _, t := range txs {
		accountID, ok := acctMap[t.AccountID]
		if !ok {
			// the account failed to import and already carries an error
			res.Transactions.Skipped++
			continue
		}
		if t.Amount <= 0 || t.Type == "" {
			res.Transactions.Failed++
			res.AddError("transaction %s: invalid amount or type", t.ID)
			continue
		}

		row := repository.Transaction{
			ID:              uuid.NewString(),
			AccountID:       accountID,
			Type:            t.Type,
			Amount:          t.Amount,
			TransactionDate: t.TransactionDate.UTC(),
			Description:     t.Description,
			Provenance:      string(model.SourceBackupImport),
		}
		if t.Merchant != "" {
			m := t.Merchant
			row.Merchant = &m
		}
		if t.Reference != "" {
			ref := t.Reference
			row.Reference = &ref
		}
		if t.BalanceAfter != nil {
			after := *t.BalanceAfter
			row.BalanceAfter = &after
		}
		// a missing category never fails a transaction; the reference is dropped
		if local, ok := catMap[t.CategoryID]; ok {
			row.CategoryID = &local
		}

		err := database.WithTx(s.db, func(tx *sql.Tx) error {
			return repository.NewTransactionRepo(tx).Insert(ctx, row)
		})
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				res.Transactions.Skipped++
				continue
			}
			res.Transactions.Failed++
			res.AddError("transaction %s: %v", t.ID, err)
			continue
		}
		res.Transactions.Imported++
	}
}

// Export produces the portable document for this device's full data set.
func (s *BackupService) Export(ctx context.Context) (*model.BackupExport, error) {
	acctRepo := repository.NewAccountRepo(s.db)
	catRepo := repository.NewCategoryRepo(s.db)
	txRepo := repository.NewTransactionRepo(s.db)

	accounts, err := acctRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := catRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	transactions, err := txRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	export := &model.BackupExport{
		Metadata: model.BackupMetadata{
			Version:    model.BackupSchemaVersion,
			ExportedAt: database.Now(),
			App:        "plata",
		},
	}
	for _, a := range accounts {
		export.Data.Accounts = append(export.Data.Accounts, model.BackupAccount{
			ID:            a.ID,
			BankCode:      a.BankCode,
			AccountNumber: a.AccountNumber,
			Name:          a.Name,
			Balance:       a.Balance,
		})
	}
	for _, c := range categories {
		bc := model.BackupCategory{ID: c.ID, Name: c.Name, SortOrder: c.SortOrder, IsSystem: c.IsSystem}
		if c.ParentID != nil {
			bc.ParentID = *c.ParentID
		}
		if c.Icon != nil {
			bc.Icon = *c.Icon
		}
		export.Data.Categories = append(export.Data.Categories, bc)
	}
	for _, t := range transactions {
		bt := model.BackupTransaction{
			ID:              t.ID,
			AccountID:       t.AccountID,
			Type:            t.Type,
			Amount:          t.Amount,
			TransactionDate: t.TransactionDate,
			Description:     t.Description,
		}
		if t.CategoryID != nil {
			bt.CategoryID = *t.CategoryID
		}
		if t.Merchant != nil {
			bt.Merchant = *t.Merchant
		}
		if t.Reference != nil {
			bt.Reference = *t.Reference
		}
		if t.BalanceAfter != nil {
			after := *t.BalanceAfter
			bt.BalanceAfter = &after
		}
		export.Data.Transactions = append(export.Data.Transactions, bt)
	}
	return export, nil
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/jsarmiento/plata/internal/database"
	"github.com/jsarmiento/plata/internal/database/repository"
	"github.com/jsarmiento/plata/internal/model"
	"github.com/jsarmiento/plata/internal/statement"
)

// ReconcileService imports decoded statements against the existing ledger.
// Statement balances are authoritative: SMS-derived running totals drift,
// bank statements are ground truth.
type ReconcileService struct {
	db     *sql.DB
	log    *log.Logger
	locker *accountLocker
}

func NewReconcileService(db *sql.DB, locker *accountLocker, logger *log.Logger) *ReconcileService {
	return &ReconcileService{db: db, log: logger, locker: locker}
}

// ReconcileStatement matches every candidate from one decoded statement
// against the account's transactions, imports the unmatched ones and then
// overwrites the cached balance with the statement's closing balance. The
// write is all-or-nothing; a statement consisting entirely of duplicates is
// a zero-import success, not an error.
func (s *ReconcileService) ReconcileStatement(ctx context.Context, accountID string, st *statement.Statement) (model.ImportResult, error) {
	res := model.ImportResult{}
	if st == nil || accountID == "" {
		return res, fmt.Errorf("reconcile: missing statement or account")
	}

	acctRepo := repository.NewAccountRepo(s.db)
	acct, err := acctRepo.Get(ctx, accountID)
	if err != nil {
		return res, err
	}
	if acct == nil {
		return res, fmt.Errorf("reconcile: unknown account %s", accountID)
	}

	// Row-level decode failures ride along in the durable queue; they do
	// not block the statement commit. Ids derive from the row content, so
	// re-importing the same statement never grows the queue.
	failedRepo := repository.NewFailedExtractionRepo(s.db)
	for _, f := range st.RowFailures {
		f.ID = failureID(string(f.Source), f.RawPayload)
		queued, err := queueFailure(ctx, failedRepo, f)
		if err != nil {
			return res, err
		}
		if !queued {
			continue
		}
		res.Transactions.Failed++
		res.AddError("row %q: %s", truncatePayload(f.RawPayload), f.Reason)
	}

	cands := make([]model.TransactionCandidate, len(st.Candidates))
	copy(cands, st.Candidates)
	sort.Slice(cands, func(i, j int) bool { return cands[i].OccurredAt.Before(cands[j].OccurredAt) })

	lock := s.locker.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	err = database.WithTx(s.db, func(tx *sql.Tx) error {
		txRepo := repository.NewTransactionRepo(tx)
		for _, cand := range cands {
			if err := validateCandidate(cand); err != nil {
				res.Transactions.Failed++
				res.AddError("candidate %q: %v", truncatePayload(cand.RawPayload), err)
				continue
			}
			dup, err := findDuplicate(ctx, txRepo, accountID, cand, false)
			if err != nil {
				return err
			}
			if dup != nil {
				res.Transactions.Skipped++
				continue
			}
			if err := txRepo.Insert(ctx, transactionFromCandidate(cand, accountID)); err != nil {
				return err
			}
			res.Transactions.Imported++
		}
		// authoritative overwrite, last
		return repository.NewAccountRepo(tx).SetBalance(ctx, accountID, st.Balance, "statement", database.Now())
	})
	if err != nil {
		return model.ImportResult{}, fmt.Errorf("reconcile: %w", err)
	}

	s.log.Info("statement reconciled", "account", accountID,
		"imported", res.Transactions.Imported, "skipped", res.Transactions.Skipped,
		"balance", st.Balance)
	return res, nil
}

// ResolveAccount maps a decoded statement to a local account using the
// bank/account hints from the file, creating the account when unseen. The
// caller may override the result before reconciling.
func (s *ReconcileService) ResolveAccount(ctx context.Context, st *statement.Statement) (repository.Account, error) {
	if st.Bank == "" {
		return repository.Account{}, fmt.Errorf("reconcile: statement names no bank")
	}
	hint := st.AccountHint
	if hint == "" {
		hint = "main"
	}
	repo := repository.NewAccountRepo(s.db)
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("acct:"+string(st.Bank)+":"+hint)).String()
	existing, err := repo.Get(ctx, id)
	if err != nil {
		return repository.Account{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	acct := repository.Account{
		ID:            id,
		BankCode:      string(st.Bank),
		AccountNumber: hint,
		Name:          accountDisplayName(st.Bank, hint),
	}
	if err := repo.Upsert(ctx, acct); err != nil {
		return repository.Account{}, err
	}
	return acct, nil
}

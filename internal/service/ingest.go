package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jsarmiento/plata/internal/database"
	"github.com/jsarmiento/plata/internal/database/repository"
	"github.com/jsarmiento/plata/internal/model"
)

// settingScanBefore is the persisted bulk-scan resume cursor: the next
// historical scan reads messages strictly older than this timestamp.
const settingScanBefore = "bulk_scan_before"

// bulkChunkSize is the commit granularity for bulk imports. Cancellation is
// honored between chunks; a chunk either commits whole or not at all.
const bulkChunkSize = 25

var errInvalidCandidate = errors.New("ingest: invalid candidate")

// IngestService commits candidates from the SMS paths into the store,
// applying the shared dedup rule and maintaining cached account balances.
type IngestService struct {
	db       *sql.DB
	log      *log.Logger
	locker   *accountLocker
	accounts *cache.Cache
}

func NewIngestService(db *sql.DB, locker *accountLocker, logger *log.Logger) *IngestService {
	return &IngestService{
		db:       db,
		log:      logger,
		locker:   locker,
		accounts: cache.New(10*time.Minute, 30*time.Minute),
	}
}

// IngestOutcome reports what one realtime commit did.
type IngestOutcome struct {
	Imported      bool
	AccountID     string
	TransactionID string
	DuplicateOf   string
}

// BulkResult extends the batch result with scan continuation state.
type BulkResult struct {
	model.ImportResult
	CanImportMore  bool
	OldestImported time.Time
}

// IngestRealtime commits a single live candidate. Duplicates are dropped
// and reported, not errors.
func (s *IngestService) IngestRealtime(ctx context.Context, cand model.TransactionCandidate) (IngestOutcome, error) {
	if err := validateCandidate(cand); err != nil {
		return IngestOutcome{}, err
	}
	if cand.Source == "" {
		cand.Source = model.SourceRealtimeSMS
	}
	acct, err := s.resolveAccount(ctx, cand)
	if err != nil {
		return IngestOutcome{}, err
	}

	lock := s.locker.lockFor(acct.ID)
	lock.Lock()
	defer lock.Unlock()

	outcome := IngestOutcome{AccountID: acct.ID}
	err = database.WithTx(s.db, func(tx *sql.Tx) error {
		committed, dupID, err := commitCandidate(ctx, tx, acct.ID, cand, cand.Source == model.SourceRealtimeSMS)
		outcome.Imported = committed != ""
		outcome.TransactionID = committed
		outcome.DuplicateOf = dupID
		return err
	})
	if err != nil {
		return IngestOutcome{}, fmt.Errorf("ingest realtime: %w", err)
	}
	if outcome.Imported {
		s.log.Debug("ingested realtime candidate", "account", acct.ID, "amount", cand.Amount, "direction", cand.Direction)
	} else {
		s.log.Debug("dropped duplicate realtime candidate", "account", acct.ID, "duplicate_of", outcome.DuplicateOf)
	}
	return outcome, nil
}

// IngestBulk commits a capped batch of historical candidates. The newest
// `limit` candidates are selected (historical scans walk backwards from the
// present) and committed in increasing date order, in chunks. A context
// cancellation between chunks keeps already-committed chunks.
func (s *IngestService) IngestBulk(ctx context.Context, cands []model.TransactionCandidate, limit int) (BulkResult, error) {
	res := BulkResult{}

	sorted := make([]model.TransactionCandidate, len(cands))
	copy(sorted, cands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OccurredAt.After(sorted[j].OccurredAt) })
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
		res.CanImportMore = true
	}
	// commit oldest first
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OccurredAt.Before(sorted[j].OccurredAt) })

	for start := 0; start < len(sorted); start += bulkChunkSize {
		if err := ctx.Err(); err != nil {
			// cooperative cancellation: committed chunks stay committed
			return res, err
		}
		end := start + bulkChunkSize
		if end > len(sorted) {
			end = len(sorted)
		}
		if err := s.commitChunk(ctx, sorted[start:end], &res); err != nil {
			return res, fmt.Errorf("ingest bulk: %w", err)
		}
	}

	if !res.OldestImported.IsZero() {
		settings := repository.NewSettingsRepo(s.db)
		if err := settings.Set(ctx, settingScanBefore, res.OldestImported.UTC().Format(time.RFC3339)); err != nil {
			return res, fmt.Errorf("ingest bulk: persist cursor: %w", err)
		}
	}
	s.log.Info("bulk import finished",
		"imported", res.Transactions.Imported, "skipped", res.Transactions.Skipped,
		"failed", res.Transactions.Failed, "more", res.CanImportMore)
	return res, nil
}

func (s *IngestService) commitChunk(ctx context.Context, chunk []model.TransactionCandidate, res *BulkResult) error {
	type resolved struct {
		cand      model.TransactionCandidate
		accountID string
	}
	var work []resolved
	accountIDs := make(map[string]bool)
	for _, cand := range chunk {
		if err := validateCandidate(cand); err != nil {
			res.Transactions.Failed++
			res.AddError("candidate %q: %v", truncatePayload(cand.RawPayload), err)
			continue
		}
		if cand.Source == "" {
			cand.Source = model.SourceBulkSMS
		}
		acct, err := s.resolveAccount(ctx, cand)
		if err != nil {
			return err
		}
		work = append(work, resolved{cand: cand, accountID: acct.ID})
		accountIDs[acct.ID] = true
	}
	if len(work) == 0 {
		return nil
	}

	// lock all touched accounts in stable order
	ids := make([]string, 0, len(accountIDs))
	for id := range accountIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		s.locker.lockFor(id).Lock()
	}
	defer func() {
		for i := len(ids) - 1; i >= 0; i-- {
			s.locker.lockFor(ids[i]).Unlock()
		}
	}()

	return database.WithTx(s.db, func(tx *sql.Tx) error {
		for _, w := range work {
			committed, _, err := commitCandidate(ctx, tx, w.accountID, w.cand, false)
			if err != nil {
				return err
			}
			if committed == "" {
				res.Transactions.Skipped++
				continue
			}
			res.Transactions.Imported++
			if res.OldestImported.IsZero() || w.cand.OccurredAt.Before(res.OldestImported) {
				res.OldestImported = w.cand.OccurredAt
			}
		}
		return nil
	})
}

// ScanBefore returns the persisted resume cursor, or the zero time when no
// bulk import ran yet.
func (s *IngestService) ScanBefore(ctx context.Context) (time.Time, error) {
	settings := repository.NewSettingsRepo(s.db)
	v, ok, err := settings.Get(ctx, settingScanBefore)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("ingest: bad scan cursor %q: %w", v, err)
	}
	return t, nil
}

// advanceScanCursor moves the persisted resume cursor further into the
// past. Historical scans walk backwards, so the cursor only ever moves to
// older timestamps.
func (s *IngestService) advanceScanCursor(ctx context.Context, t time.Time) error {
	current, err := s.ScanBefore(ctx)
	if err != nil {
		return err
	}
	if !current.IsZero() && !t.Before(current) {
		return nil
	}
	settings := repository.NewSettingsRepo(s.db)
	return settings.Set(ctx, settingScanBefore, t.UTC().Format(time.RFC3339))
}

// commitCandidate runs the dedup check and, for new candidates, the insert
// plus the cached-balance delta, all inside the caller's transaction scope.
// Returns the new transaction id, or the duplicate's id when skipped.
func commitCandidate(ctx context.Context, tx *sql.Tx, accountID string, cand model.TransactionCandidate, realtime bool) (committed, duplicateOf string, err error) {
	txRepo := repository.NewTransactionRepo(tx)
	dup, err := findDuplicate(ctx, txRepo, accountID, cand, realtime)
	if err != nil {
		return "", "", err
	}
	if dup != nil {
		return "", dup.ID, nil
	}

	t := transactionFromCandidate(cand, accountID)
	if err := txRepo.Insert(ctx, t); err != nil {
		// the partial unique index backstops reference dedup under races
		if strings.Contains(err.Error(), "UNIQUE") {
			return "", "", nil
		}
		return "", "", err
	}
	acctRepo := repository.NewAccountRepo(tx)
	if err := acctRepo.ApplyBalanceDelta(ctx, accountID, cand.Direction.Sign()*cand.Amount, database.Now()); err != nil {
		return "", "", err
	}
	return t.ID, "", nil
}

func transactionFromCandidate(cand model.TransactionCandidate, accountID string) repository.Transaction {
	t := repository.Transaction{
		ID:              uuid.NewString(),
		AccountID:       accountID,
		Type:            string(cand.Direction),
		Amount:          cand.Amount,
		TransactionDate: cand.OccurredAt.UTC(),
		Description:     cand.RawPayload,
		Provenance:      string(cand.Source),
	}
	if cand.Counterparty != "" {
		merchant := cand.Counterparty
		t.Merchant = &merchant
	}
	if cand.Reference != "" {
		ref := cand.Reference
		t.Reference = &ref
	}
	if cand.RunningBalance != nil {
		after := *cand.RunningBalance
		t.BalanceAfter = &after
	}
	return t
}

// resolveAccount finds or creates the account a candidate belongs to, keyed
// by bank and the product hint from the message. Accounts get deterministic
// ids so every device derives the same id for the same product.
func (s *IngestService) resolveAccount(ctx context.Context, cand model.TransactionCandidate) (repository.Account, error) {
	hint := cand.AccountHint
	if hint == "" {
		hint = "main"
	}
	key := string(cand.Bank) + ":" + hint
	if v, ok := s.accounts.Get(key); ok {
		return v.(repository.Account), nil
	}

	repo := repository.NewAccountRepo(s.db)
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("acct:"+key)).String()
	existing, err := repo.Get(ctx, id)
	if err != nil {
		return repository.Account{}, err
	}
	var acct repository.Account
	if existing != nil {
		acct = *existing
	} else {
		acct = repository.Account{
			ID:            id,
			BankCode:      string(cand.Bank),
			AccountNumber: hint,
			Name:          accountDisplayName(cand.Bank, hint),
		}
		if err := repo.Upsert(ctx, acct); err != nil {
			return repository.Account{}, err
		}
		s.log.Info("created account", "bank", cand.Bank, "number", hint)
	}
	s.accounts.Set(key, acct, cache.DefaultExpiration)
	return acct, nil
}

var bankDisplayNames = map[model.BankCode]string{
	model.BankBancolombia: "Bancolombia",
	model.BankDavivienda:  "Davivienda",
	model.BankBBVA:        "BBVA",
	model.BankNequi:       "Nequi",
	model.BankBogota:      "Banco de Bogotá",
}

func accountDisplayName(bank model.BankCode, hint string) string {
	name := bankDisplayNames[bank]
	if name == "" {
		name = string(bank)
	}
	if hint == "main" {
		return name
	}
	return name + " *" + hint
}

func validateCandidate(cand model.TransactionCandidate) error {
	if cand.Amount <= 0 {
		return fmt.Errorf("%w: amount %d", errInvalidCandidate, cand.Amount)
	}
	if cand.Direction == "" {
		return fmt.Errorf("%w: missing direction", errInvalidCandidate)
	}
	if cand.Bank == "" {
		return fmt.Errorf("%w: missing bank", errInvalidCandidate)
	}
	return nil
}

func truncatePayload(s string) string {
	if len(s) > 40 {
		return s[:40] + "…"
	}
	return s
}

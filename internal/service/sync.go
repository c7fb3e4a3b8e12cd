package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/jsarmiento/plata/internal/database/repository"
	"github.com/jsarmiento/plata/internal/model"
	"github.com/jsarmiento/plata/internal/sms"
)

// PermissionState is the SMS-read permission lifecycle. `blocked` means the
// platform will no longer show the prompt; the user must change it in
// system settings before another check can succeed.
type PermissionState string

const (
	PermissionUnknown  PermissionState = "unknown"
	PermissionChecking PermissionState = "checking"
	PermissionGranted  PermissionState = "granted"
	PermissionDenied   PermissionState = "denied"
	PermissionBlocked  PermissionState = "blocked"
)

var (
	ErrPermissionRequired = errors.New("sync: sms permission not granted")
	ErrPermissionBlocked  = errors.New("sync: permission blocked, change it in system settings")
)

// RawMessage is what the platform capability delivers.
type RawMessage struct {
	Sender     string
	Body       string
	ReceivedAt time.Time
}

// SMSProvider is the platform capability: a push channel while listening
// and a pull-style historical query for bulk import. Query returns messages
// strictly older than `before` (zero time means "from the present"),
// newest first, at most `limit`.
type SMSProvider interface {
	CheckPermission(ctx context.Context) (PermissionState, error)
	RequestPermission(ctx context.Context) (PermissionState, error)
	Messages() <-chan RawMessage
	Query(ctx context.Context, before time.Time, limit int) ([]RawMessage, error)
}

// SyncState is the externally visible machine state. Unprocessed is always
// recomputed from the durable failed-extraction queue, so it survives
// restarts.
type SyncState struct {
	Permission  PermissionState
	Listening   bool
	Unprocessed int
}

const settingListening = "sync_listening"

// SyncManager owns the permission lifecycle, the realtime listener and the
// failed-extraction queue.
type SyncManager struct {
	db       *sql.DB
	log      *log.Logger
	provider SMSProvider
	ingest   *IngestService

	mu         sync.Mutex
	permission PermissionState
	listening  bool
	stop       context.CancelFunc
	done       chan struct{}
}

func NewSyncManager(db *sql.DB, provider SMSProvider, ingest *IngestService, logger *log.Logger) *SyncManager {
	return &SyncManager{
		db:         db,
		log:        logger,
		provider:   provider,
		ingest:     ingest,
		permission: PermissionUnknown,
	}
}

// CheckPermission transitions through checking and settles on the platform's
// answer. A blocked permission stays blocked until the platform reports
// otherwise.
func (m *SyncManager) CheckPermission(ctx context.Context) (PermissionState, error) {
	m.setPermission(PermissionChecking)
	state, err := m.provider.CheckPermission(ctx)
	if err != nil {
		m.setPermission(PermissionUnknown)
		return PermissionUnknown, err
	}
	m.setPermission(state)
	return state, nil
}

// RequestPermission asks the platform to prompt the user. Once blocked, the
// prompt no longer appears; the caller has to send the user to settings.
func (m *SyncManager) RequestPermission(ctx context.Context) (PermissionState, error) {
	if m.Permission() == PermissionBlocked {
		return PermissionBlocked, ErrPermissionBlocked
	}
	m.setPermission(PermissionChecking)
	state, err := m.provider.RequestPermission(ctx)
	if err != nil {
		m.setPermission(PermissionUnknown)
		return PermissionUnknown, err
	}
	m.setPermission(state)
	return state, nil
}

func (m *SyncManager) Permission() PermissionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permission
}

func (m *SyncManager) setPermission(p PermissionState) {
	m.mu.Lock()
	m.permission = p
	m.mu.Unlock()
}

// StartListening spawns the single consumer that drains the platform's
// message channel through classify, extract and ingest, the same path bulk
// import uses. Requires a granted permission.
func (m *SyncManager) StartListening(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.permission != PermissionGranted {
		return ErrPermissionRequired
	}
	if m.listening {
		return nil
	}
	if err := repository.NewSettingsRepo(m.db).Set(ctx, settingListening, "true"); err != nil {
		return fmt.Errorf("sync: persist listening flag: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.stop = cancel
	m.done = make(chan struct{})
	m.listening = true

	go func() {
		defer close(m.done)
		for {
			select {
			case <-runCtx.Done():
				return
			case raw, ok := <-m.provider.Messages():
				if !ok {
					return
				}
				m.handleRaw(runCtx, raw)
			}
		}
	}()
	m.log.Info("realtime listening started")
	return nil
}

// StopListening cancels the consumer and waits for it to drain.
func (m *SyncManager) StopListening(ctx context.Context) {
	m.mu.Lock()
	if !m.listening {
		m.mu.Unlock()
		return
	}
	m.listening = false
	stop, done := m.stop, m.done
	m.mu.Unlock()

	stop()
	<-done
	if err := repository.NewSettingsRepo(m.db).Set(ctx, settingListening, "false"); err != nil {
		m.log.Error("persist listening flag", "error", err)
	}
	m.log.Info("realtime listening stopped")
}

// Resume restores the listening toggle after a process restart. The flag
// survives in the settings table; listening only resumes when the platform
// still reports a granted permission.
func (m *SyncManager) Resume(ctx context.Context) error {
	v, ok, err := repository.NewSettingsRepo(m.db).Get(ctx, settingListening)
	if err != nil || !ok || v != "true" {
		return err
	}
	state, err := m.CheckPermission(ctx)
	if err != nil {
		return err
	}
	if state != PermissionGranted {
		return nil
	}
	return m.StartListening(ctx)
}

func (m *SyncManager) Listening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listening
}

// handleRaw runs one raw message through the shared pipeline. Extraction
// failures become durable queue entries; only store failures are logged as
// errors since they indicate a collaborator malfunction.
func (m *SyncManager) handleRaw(ctx context.Context, raw RawMessage) {
	cand, failure := classifyExtract(raw, model.SourceRealtimeSMS)
	if failure != nil {
		if _, err := queueFailure(ctx, repository.NewFailedExtractionRepo(m.db), *failure); err != nil {
			m.log.Error("persist failed extraction", "error", err)
		}
		return
	}
	if _, err := m.ingest.IngestRealtime(ctx, *cand); err != nil {
		m.log.Error("realtime ingest", "error", err)
	}
}

// ImportHistory pulls a capped batch of historical messages from the
// platform, starting at the persisted resume cursor, and feeds them through
// extraction and bulk ingestion.
func (m *SyncManager) ImportHistory(ctx context.Context, limit int) (BulkResult, error) {
	res := BulkResult{}
	before, err := m.ingest.ScanBefore(ctx)
	if err != nil {
		return res, err
	}
	// over-fetch by one to learn whether more remain
	raws, err := m.provider.Query(ctx, before, limit+1)
	if err != nil {
		return res, fmt.Errorf("sync: query history: %w", err)
	}
	more := len(raws) > limit
	if more {
		raws = raws[:limit]
	}

	failedRepo := repository.NewFailedExtractionRepo(m.db)
	var cands []model.TransactionCandidate
	var oldestScanned time.Time
	for _, raw := range raws {
		if oldestScanned.IsZero() || raw.ReceivedAt.Before(oldestScanned) {
			oldestScanned = raw.ReceivedAt
		}
		cand, failure := classifyExtract(raw, model.SourceBulkSMS)
		if failure != nil {
			queued, err := queueFailure(ctx, failedRepo, *failure)
			if err != nil {
				return res, err
			}
			if queued {
				res.Transactions.Failed++
				res.AddError("message %q: %s", truncatePayload(failure.RawPayload), failure.Reason)
			}
			continue
		}
		cands = append(cands, *cand)
	}

	bulk, err := m.ingest.IngestBulk(ctx, cands, limit)
	if err != nil {
		return res, err
	}
	// every fetched message is now handled, imported, deduped or queued as
	// failed, so the next scan starts below the whole batch rather than
	// below the oldest import
	if !oldestScanned.IsZero() {
		if err := m.ingest.advanceScanCursor(ctx, oldestScanned); err != nil {
			return res, err
		}
	}
	bulk.Transactions.Failed += res.Transactions.Failed
	bulk.Errors = append(res.Errors, bulk.Errors...)
	bulk.Suppressed += res.Suppressed
	bulk.CanImportMore = bulk.CanImportMore || more
	return bulk, nil
}

// PrepareForMore returns the resume cursor for the next ImportHistory call:
// the oldest already-scanned message's timestamp. The next scan is
// strictly older than this bound, so nothing is re-scanned.
func (m *SyncManager) PrepareForMore(ctx context.Context) (time.Time, error) {
	return m.ingest.ScanBefore(ctx)
}

// ReprocessFailed re-runs classification and extraction over every queued
// payload. Successes are promoted through the normal ingest path and leave
// the queue; repeat failures increment their retry count and stay visible.
// There is no retry cap.
func (m *SyncManager) ReprocessFailed(ctx context.Context) (model.ImportResult, error) {
	res := model.ImportResult{}
	failedRepo := repository.NewFailedExtractionRepo(m.db)
	queued, err := failedRepo.List(ctx)
	if err != nil {
		return res, err
	}

	for _, f := range queued {
		raw := RawMessage{Sender: f.Sender, Body: f.RawPayload, ReceivedAt: f.FirstSeenAt}
		cand, failure := classifyExtract(raw, f.Source)
		if failure != nil {
			if err := failedRepo.IncrementRetry(ctx, f.ID, failure.Reason); err != nil {
				return res, err
			}
			res.Transactions.Failed++
			continue
		}
		outcome, err := m.ingest.IngestRealtime(ctx, *cand)
		if err != nil {
			res.Transactions.Failed++
			res.AddError("reprocess %q: %v", truncatePayload(f.RawPayload), err)
			continue
		}
		if err := failedRepo.Delete(ctx, f.ID); err != nil {
			return res, err
		}
		if outcome.Imported {
			res.Transactions.Imported++
		} else {
			res.Transactions.Skipped++
		}
	}
	m.log.Info("reprocessed failed extractions",
		"imported", res.Transactions.Imported, "skipped", res.Transactions.Skipped,
		"still_failing", res.Transactions.Failed)
	return res, nil
}

// State recomputes the externally visible machine state. The unprocessed
// count always comes from the durable queue.
func (m *SyncManager) State(ctx context.Context) (SyncState, error) {
	count, err := repository.NewFailedExtractionRepo(m.db).Count(ctx)
	if err != nil {
		return SyncState{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return SyncState{Permission: m.permission, Listening: m.listening, Unprocessed: count}, nil
}

// failureID derives a stable id from what identifies the failed message, so
// a redelivery or a rescan maps to the row already queued.
func failureID(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("fail:"+strings.Join(parts, ":"))).String()
}

// queueFailure inserts a failed extraction unless an identical one is
// already queued.
func queueFailure(ctx context.Context, repo *repository.FailedExtractionRepo, f model.FailedExtraction) (bool, error) {
	if err := repo.Insert(ctx, f); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// classifyExtract runs the pure pipeline on one raw message, producing
// either a candidate or a ready-to-persist failure record.
func classifyExtract(raw RawMessage, source model.Source) (*model.TransactionCandidate, *model.FailedExtraction) {
	fail := func(reason model.FailureReason) *model.FailedExtraction {
		return &model.FailedExtraction{
			ID:          failureID(raw.Sender, raw.ReceivedAt.UTC().Format(time.RFC3339), raw.Body),
			RawPayload:  raw.Body,
			Sender:      raw.Sender,
			Source:      source,
			Reason:      reason,
			FirstSeenAt: raw.ReceivedAt.UTC(),
		}
	}

	classified, ok := sms.Classify(raw.Sender, raw.Body, raw.ReceivedAt)
	if !ok {
		return nil, fail(model.ReasonUnrecognizedBank)
	}
	cand, err := sms.Extract(classified)
	if err != nil {
		var extractErr *sms.ExtractionError
		if errors.As(err, &extractErr) {
			return nil, fail(extractErr.Reason)
		}
		return nil, fail(model.ReasonUnrecognizedTemplate)
	}
	cand.Source = source
	return &cand, nil
}

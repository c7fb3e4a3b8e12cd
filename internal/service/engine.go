// Package service implements ingestion, reconciliation, backup merging and
// the sync state machine on top of the repository layer.
package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jsarmiento/plata/internal/database/repository"
	"github.com/jsarmiento/plata/internal/model"
	"github.com/jsarmiento/plata/internal/statement"
)

// Engine is the single entry point callers wire against. All services share
// one per-account lock table, so commits for the same account serialize no
// matter which path they arrive through.
type Engine struct {
	db        *sql.DB
	log       *log.Logger
	Ingest    *IngestService
	Reconcile *ReconcileService
	Backup    *BackupService
	Sync      *SyncManager
}

func New(db *sql.DB, provider SMSProvider, logger *log.Logger) *Engine {
	locker := newAccountLocker()
	ingest := NewIngestService(db, locker, logger)
	return &Engine{
		db:        db,
		log:       logger,
		Ingest:    ingest,
		Reconcile: NewReconcileService(db, locker, logger),
		Backup:    NewBackupService(db, logger),
		Sync:      NewSyncManager(db, provider, ingest, logger),
	}
}

// ClassifyAndExtract runs one message through the pure pipeline without
// touching the store. The failure record, when non-nil, is ready to persist.
func (e *Engine) ClassifyAndExtract(sender, body string, receivedAt time.Time) (*model.TransactionCandidate, *model.FailedExtraction) {
	return classifyExtract(RawMessage{Sender: sender, Body: body, ReceivedAt: receivedAt}, model.SourceRealtimeSMS)
}

// DecodeStatement decodes uploaded statement bytes. No store access; feed
// the result to ReconcileStatement.
func (e *Engine) DecodeStatement(data []byte, kind statement.Kind, password string) (*statement.Statement, error) {
	return statement.Decode(data, kind, password)
}

func (e *Engine) IngestRealtime(ctx context.Context, cand model.TransactionCandidate) (IngestOutcome, error) {
	return e.Ingest.IngestRealtime(ctx, cand)
}

func (e *Engine) IngestBulk(ctx context.Context, cands []model.TransactionCandidate, limit int) (BulkResult, error) {
	return e.Ingest.IngestBulk(ctx, cands, limit)
}

func (e *Engine) ResolveStatementAccount(ctx context.Context, st *statement.Statement) (repository.Account, error) {
	return e.Reconcile.ResolveAccount(ctx, st)
}

func (e *Engine) ReconcileStatement(ctx context.Context, accountID string, st *statement.Statement) (model.ImportResult, error) {
	return e.Reconcile.ReconcileStatement(ctx, accountID, st)
}

func (e *Engine) ImportBackup(ctx context.Context, export *model.BackupExport, strategy MergeStrategy) (model.ImportResult, error) {
	return e.Backup.Import(ctx, export, strategy)
}

func (e *Engine) ExportBackup(ctx context.Context) (*model.BackupExport, error) {
	return e.Backup.Export(ctx)
}

func (e *Engine) Resume(ctx context.Context) error {
	return e.Sync.Resume(ctx)
}

func (e *Engine) ImportHistory(ctx context.Context, limit int) (BulkResult, error) {
	return e.Sync.ImportHistory(ctx, limit)
}

func (e *Engine) ReprocessFailed(ctx context.Context) (model.ImportResult, error) {
	return e.Sync.ReprocessFailed(ctx)
}

func (e *Engine) State(ctx context.Context) (SyncState, error) {
	return e.Sync.State(ctx)
}

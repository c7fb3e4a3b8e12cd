package service

import (
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/jsarmiento/plata/internal/database"
	"github.com/jsarmiento/plata/internal/model"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrations, err := filepath.Abs("../database/migrations")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(dbPath, migrations))

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestIngest(t *testing.T) (*IngestService, *sql.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewIngestService(db, newAccountLocker(), testLogger()), db
}

func testCandidate(amount int64, at time.Time, merchant, ref string) model.TransactionCandidate {
	return model.TransactionCandidate{
		Source:       model.SourceRealtimeSMS,
		Bank:         model.BankBancolombia,
		Direction:    model.DirExpense,
		Amount:       amount,
		OccurredAt:   at,
		Counterparty: merchant,
		Reference:    ref,
		AccountHint:  "1234",
		RawPayload:   "compra por $" + merchant,
	}
}

func countTransactions(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM transactions`).Scan(&n))
	return n
}

// fakeProvider is an in-memory SMS capability for sync tests.
type fakeProvider struct {
	permission PermissionState
	history    []RawMessage
	stream     chan RawMessage
}

func newFakeProvider(permission PermissionState) *fakeProvider {
	return &fakeProvider{permission: permission, stream: make(chan RawMessage, 16)}
}

func (p *fakeProvider) CheckPermission(ctx context.Context) (PermissionState, error) {
	return p.permission, nil
}

func (p *fakeProvider) RequestPermission(ctx context.Context) (PermissionState, error) {
	return p.permission, nil
}

func (p *fakeProvider) Messages() <-chan RawMessage { return p.stream }

func (p *fakeProvider) Query(ctx context.Context, before time.Time, limit int) ([]RawMessage, error) {
	var out []RawMessage
	for _, m := range p.history {
		if !before.IsZero() && !m.ReceivedAt.Before(before) {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

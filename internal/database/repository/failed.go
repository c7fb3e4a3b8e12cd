package repository

import (
	"context"

	"github.com/jsarmiento/plata/internal/model"
)

// FailedExtractionRepo owns the durable queue of payloads that could not be
// parsed. Entries leave the queue only by successful reprocessing or manual
// deletion, never silently.
type FailedExtractionRepo struct {
	db DBTX
}

func NewFailedExtractionRepo(db DBTX) *FailedExtractionRepo {
	return &FailedExtractionRepo{db: db}
}

func (r *FailedExtractionRepo) Insert(ctx context.Context, f model.FailedExtraction) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO failed_extractions(id, raw_payload, sender, source, failure_reason, first_seen_at, retry_count)
	VALUES(?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.RawPayload, f.Sender, f.Source, f.Reason, f.FirstSeenAt, f.RetryCount)
	return err
}

func (r *FailedExtractionRepo) List(ctx context.Context) ([]model.FailedExtraction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, raw_payload, sender, source, failure_reason, first_seen_at, retry_count FROM failed_extractions ORDER BY first_seen_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.FailedExtraction
	for rows.Next() {
		var f model.FailedExtraction
		if err := rows.Scan(&f.ID, &f.RawPayload, &f.Sender, &f.Source, &f.Reason, &f.FirstSeenAt, &f.RetryCount); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *FailedExtractionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM failed_extractions WHERE id = ?`, id)
	return err
}

// IncrementRetry bumps the retry counter and updates the recorded reason,
// which may change between attempts as extractors improve.
func (r *FailedExtractionRepo) IncrementRetry(ctx context.Context, id string, reason model.FailureReason) error {
	_, err := r.db.ExecContext(ctx, `UPDATE failed_extractions SET retry_count = retry_count + 1, failure_reason = ? WHERE id = ?`, reason, id)
	return err
}

func (r *FailedExtractionRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM failed_extractions`).Scan(&n)
	return n, err
}

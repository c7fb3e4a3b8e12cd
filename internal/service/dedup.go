package service

import (
	"context"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/jsarmiento/plata/internal/database/repository"
	"github.com/jsarmiento/plata/internal/model"
)

// realtimeWindow is the dedup tolerance for live SMS events; bulk and
// statement candidates use the calendar day instead, since historical
// timestamps lose precision.
const realtimeWindow = 2 * time.Minute

// dedupWindow returns the [from, to] range a candidate competes in when it
// carries no bank reference.
func dedupWindow(occurredAt time.Time, realtime bool) (time.Time, time.Time) {
	// Stored transaction dates are UTC. The bounds must be UTC too, or the
	// comparison fails for timestamps carrying a device-local offset.
	if realtime {
		u := occurredAt.UTC()
		return u.Add(-realtimeWindow), u.Add(realtimeWindow)
	}
	day := occurredAt.UTC().Truncate(24 * time.Hour)
	return day, day.Add(24*time.Hour - time.Second)
}

// findDuplicate applies the single dedup rule shared by every entry point:
// exact reference match first, then (amount, direction, date window) with a
// merchant-similarity guard so two genuinely different same-price purchases
// on one day are not collapsed.
func findDuplicate(ctx context.Context, txRepo *repository.TransactionRepo, accountID string, cand model.TransactionCandidate, realtime bool) (*repository.Transaction, error) {
	if cand.Reference != "" {
		existing, err := txRepo.FindByReference(ctx, accountID, cand.Reference)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	from, to := dedupWindow(cand.OccurredAt, realtime)
	matches, err := txRepo.FindByAmountDateWindow(ctx, accountID, cand.Amount, string(cand.Direction), from, to)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		if merchantsConflict(matches[i].Merchant, cand.Counterparty) {
			continue
		}
		return &matches[i], nil
	}
	return nil, nil
}

// merchantsConflict reports whether two merchant strings clearly name
// different counterparties. Empty strings never conflict: statements often
// abbreviate what the SMS spells out.
func merchantsConflict(existing *string, incoming string) bool {
	if existing == nil || *existing == "" || incoming == "" {
		return false
	}
	a := strings.ToUpper(strings.TrimSpace(*existing))
	b := strings.ToUpper(strings.TrimSpace(incoming))
	if a == b || strings.Contains(a, b) || strings.Contains(b, a) {
		return false
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxlen := len(a)
	if len(b) > maxlen {
		maxlen = len(b)
	}
	return float64(dist)/float64(maxlen) > 0.5
}

package statement

import (
	"regexp"
	"strings"
	"time"

	"github.com/jsarmiento/plata/internal/model"
	"github.com/jsarmiento/plata/internal/sms"
)

// Shared helpers for both decoders. Statement files carry the same peso
// formatting as the SMS notifications, so numeric parsing is delegated to
// the sms package.

var (
	accountHintRe = regexp.MustCompile(`(?i)(?:cuenta|producto|tarjeta)\D*?(\d{4})\b`)
	closingRe     = regexp.MustCompile(`(?i)saldo\s+final:?\s*\$?\s*([\d.,]+)`)
	periodRe      = regexp.MustCompile(`(?i)per[ií]odo:?\s*(\d{1,2}/\d{1,2}/\d{4})\s*(?:al?|-)\s*(\d{1,2}/\d{1,2}/\d{4})`)
)

var bankKeywords = []struct {
	keyword string
	bank    model.BankCode
}{
	{"bancolombia", model.BankBancolombia},
	{"davivienda", model.BankDavivienda},
	{"bbva", model.BankBBVA},
	{"nequi", model.BankNequi},
	{"banco de bogot", model.BankBogota},
}

func detectBank(text string) model.BankCode {
	t := strings.ToLower(text)
	for _, k := range bankKeywords {
		if strings.Contains(t, k.keyword) {
			return k.bank
		}
	}
	return ""
}

func findAccountHint(text string) string {
	if m := accountHintRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// parseSignedPesos splits the sign off a statement amount cell before
// delegating to the whole-peso parser.
func parseSignedPesos(s string) (amount int64, negative bool, err error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	} else if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(s, ")")
		s = strings.TrimPrefix(s, "(")
	}
	amount, err = sms.ParsePesos(s)
	return amount, negative, err
}

var statementDateLayouts = []string{"2/1/2006", "2006-01-02"}

func parseStatementDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range statementDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func rowFailure(raw string, source model.Source, reason model.FailureReason, at time.Time) model.FailedExtraction {
	return model.FailedExtraction{
		RawPayload:  raw,
		Source:      source,
		Reason:      reason,
		FirstSeenAt: at,
	}
}

// finalize derives the closing balance and period when the file did not
// declare them explicitly: the last row's running balance and the min/max
// row dates.
func (s *Statement) finalize(explicitBalance *int64, explicitPeriod *Period) error {
	if len(s.Candidates) == 0 {
		return ErrNoRows
	}
	if explicitBalance != nil {
		s.Balance = *explicitBalance
	} else if last := s.Candidates[len(s.Candidates)-1].RunningBalance; last != nil {
		s.Balance = *last
	}
	if explicitPeriod != nil {
		s.Period = *explicitPeriod
	} else {
		from, to := s.Candidates[0].OccurredAt, s.Candidates[0].OccurredAt
		for _, c := range s.Candidates[1:] {
			if c.OccurredAt.Before(from) {
				from = c.OccurredAt
			}
			if c.OccurredAt.After(to) {
				to = c.OccurredAt
			}
		}
		s.Period = Period{From: from, To: to}
	}
	return nil
}

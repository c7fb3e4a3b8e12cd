package sms

import (
	"fmt"
	"regexp"
	"time"

	"github.com/jsarmiento/plata/internal/model"
)

// ExtractionError is the typed failure returned when a classified message
// cannot yield a candidate. It never escapes as a panic; callers convert it
// into a durable FailedExtraction.
type ExtractionError struct {
	Reason model.FailureReason
	Detail string
}

func (e *ExtractionError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func failExtract(reason model.FailureReason, detail string) (model.TransactionCandidate, error) {
	return model.TransactionCandidate{}, &ExtractionError{Reason: reason, Detail: detail}
}

// Extract dispatches a classified message to its bank's extractor. Each bank
// owns its own template set because the five banks share no SMS grammar;
// adding a bank means one new case here and one new file, nothing else.
func Extract(msg Classified) (model.TransactionCandidate, error) {
	switch msg.Kind {
	case KindPaymentDue, KindBalanceNotice, KindUnknownFinancial:
		// Informational notices carry no transaction. They stay visible in
		// the failed queue rather than being dropped on the floor.
		return failExtract(model.ReasonUnrecognizedTemplate, fmt.Sprintf("non-transactional kind %s", msg.Kind))
	}

	switch msg.Bank {
	case model.BankBancolombia:
		return extractBancolombia(msg)
	case model.BankDavivienda:
		return extractDavivienda(msg)
	case model.BankBBVA:
		return extractBBVA(msg)
	case model.BankNequi:
		return extractNequi(msg)
	case model.BankBogota:
		return extractBogota(msg)
	default:
		return failExtract(model.ReasonUnrecognizedBank, string(msg.Bank))
	}
}

// Shared template fragments. Counterparty wording differs per bank but the
// auxiliary tokens (balances, references, product hints, embedded dates) are
// near-universal across the Colombian notification formats.
var (
	balanceRe = regexp.MustCompile(`(?i)(?:saldo|cupo disponible|disponible)(?:\s+es)?:?\s*\$\s*([\d.,]+)`)
	refRe     = regexp.MustCompile(`(?i)(?:ref|comprobante|aprobaci[oó]n)\.?:?\s*(\d+)`)
	hintStar  = regexp.MustCompile(`\*(\d{4})\b`)
	hintWords = regexp.MustCompile(`(?i)terminad[oa] en (\d{4})\b`)
	dateRe    = regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})(?:\s+(?:a las\s+)?(\d{1,2}:\d{2}))?`)
)

// Colombia does not observe DST; a fixed offset keeps extraction pure.
var bogotaTZ = time.FixedZone("COT", -5*60*60)

func newCandidate(msg Classified, dir model.Direction, amount int64) model.TransactionCandidate {
	return model.TransactionCandidate{
		Bank:       msg.Bank,
		Direction:  dir,
		Amount:     amount,
		OccurredAt: msg.ReceivedAt,
		RawPayload: msg.Body,
	}
}

func findBalance(body string) *int64 {
	m := balanceRe.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	v, err := ParsePesos(m[1])
	if err != nil {
		return nil
	}
	return &v
}

func findReference(body string) string {
	if m := refRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

func findAccountHint(body string) string {
	if m := hintStar.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	if m := hintWords.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

// resolveOccurredAt prefers a date embedded in the message over the arrival
// timestamp. An embedded date that will not parse is a hard failure: a
// candidate with a wrong date would dedup against the wrong window.
func resolveOccurredAt(msg Classified) (time.Time, error) {
	m := dateRe.FindStringSubmatch(msg.Body)
	if m == nil {
		return msg.ReceivedAt, nil
	}
	layout := "2/1/2006"
	value := m[1]
	if m[2] != "" {
		layout = "2/1/2006 15:04"
		value = m[1] + " " + m[2]
	}
	t, err := time.ParseInLocation(layout, value, bogotaTZ)
	if err != nil {
		return time.Time{}, &ExtractionError{Reason: model.ReasonUnparseableDate, Detail: m[0]}
	}
	return t.UTC(), nil
}

// finishCandidate fills the auxiliary fields common to every template.
func finishCandidate(msg Classified, cand model.TransactionCandidate) (model.TransactionCandidate, error) {
	occurred, err := resolveOccurredAt(msg)
	if err != nil {
		return model.TransactionCandidate{}, err
	}
	cand.OccurredAt = occurred
	cand.RunningBalance = findBalance(msg.Body)
	if cand.Reference == "" {
		cand.Reference = findReference(msg.Body)
	}
	if cand.AccountHint == "" {
		cand.AccountHint = findAccountHint(msg.Body)
	}
	return cand, nil
}

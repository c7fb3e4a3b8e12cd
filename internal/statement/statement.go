// Package statement decodes uploaded bank statement files into transaction
// candidates plus an authoritative closing balance.
package statement

import (
	"errors"
	"time"

	"github.com/jsarmiento/plata/internal/model"
)

// Kind is the declared file kind supplied by the caller alongside the bytes.
type Kind string

const (
	KindExcel Kind = "excel"
	KindPDF   Kind = "pdf"
)

var (
	// ErrIncorrectPassword is returned when a document is encrypted and the
	// supplied password is missing or wrong. Distinct from parse failures so
	// callers can re-prompt instead of aborting.
	ErrIncorrectPassword = errors.New("statement: incorrect password")

	// ErrNoRows is returned when the file structure yields no parseable
	// transaction rows at all.
	ErrNoRows = errors.New("statement: no transaction rows found")

	errUnknownKind = errors.New("statement: unknown file kind")
)

// Period is the date range the statement covers.
type Period struct {
	From time.Time
	To   time.Time
}

// Statement is the decoded content of one uploaded file. Row-level failures
// do not abort decoding; they ride along for the caller to persist.
type Statement struct {
	Bank        model.BankCode
	AccountHint string
	Balance     int64 // authoritative closing balance, whole pesos
	Period      Period
	Candidates  []model.TransactionCandidate
	RowFailures []model.FailedExtraction
}

// Decode dispatches on the declared kind. Password is ignored for kinds
// that do not support encryption.
func Decode(data []byte, kind Kind, password string) (*Statement, error) {
	switch kind {
	case KindExcel:
		return DecodeExcel(data)
	case KindPDF:
		return DecodePDF(data, password)
	default:
		return nil, errUnknownKind
	}
}

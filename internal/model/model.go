// Package model defines the domain types shared by the parsing, ingestion
// and reconciliation layers.
package model

import "time"

// Source identifies which entry point produced a candidate.
type Source string

const (
	SourceRealtimeSMS    Source = "realtime_sms"
	SourceBulkSMS        Source = "bulk_sms"
	SourceStatementPDF   Source = "statement_pdf"
	SourceStatementExcel Source = "statement_excel"
	SourceBackupImport   Source = "backup_import"
)

// BankCode identifies one of the supported issuing banks.
type BankCode string

const (
	BankBancolombia BankCode = "bancolombia"
	BankDavivienda  BankCode = "davivienda"
	BankBBVA        BankCode = "bbva"
	BankNequi       BankCode = "nequi"
	BankBogota      BankCode = "banco_bogota"
)

// Banks lists every supported bank code.
var Banks = []BankCode{BankBancolombia, BankDavivienda, BankBBVA, BankNequi, BankBogota}

// Direction is the signed nature of a transaction relative to the account.
type Direction string

const (
	DirIncome      Direction = "income"
	DirExpense     Direction = "expense"
	DirTransferIn  Direction = "transfer_in"
	DirTransferOut Direction = "transfer_out"
)

// Sign returns +1 for money entering the account, -1 for money leaving it.
func (d Direction) Sign() int64 {
	switch d {
	case DirIncome, DirTransferIn:
		return 1
	default:
		return -1
	}
}

// TransactionCandidate is a parsed, not-yet-persisted transaction. Amount is
// whole Colombian pesos and must be positive; a message whose direction or
// amount cannot be resolved never becomes a candidate.
type TransactionCandidate struct {
	Source         Source
	Bank           BankCode
	Direction      Direction
	Amount         int64
	OccurredAt     time.Time
	Counterparty   string
	Reference      string
	RunningBalance *int64
	AccountHint    string // last 4 digits of the product, when the message names it
	RawPayload     string
}

// FailureReason classifies why extraction of a raw payload failed.
type FailureReason string

const (
	ReasonUnrecognizedBank     FailureReason = "unrecognized_bank"
	ReasonUnrecognizedTemplate FailureReason = "unrecognized_template"
	ReasonUnparseableAmount    FailureReason = "unparseable_amount"
	ReasonUnparseableDate      FailureReason = "unparseable_date"
)

// FailedExtraction is a raw payload that could not be turned into a
// candidate. It is durable: created on failure, mutated by reprocessing,
// never silently discarded.
type FailedExtraction struct {
	ID          string
	RawPayload  string
	Sender      string
	Source      Source
	Reason      FailureReason
	FirstSeenAt time.Time
	RetryCount  int
}

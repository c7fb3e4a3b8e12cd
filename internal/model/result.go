package model

import "fmt"

// MaxResultErrors bounds the error list carried by an ImportResult. Batch
// operations keep running past bad records; the list is for the user, not a
// full audit log.
const MaxResultErrors = 50

// Counts tracks the outcome for one entity type within a batch operation.
type Counts struct {
	Imported int
	Skipped  int
	Failed   int
}

// ImportResult is returned by every batch operation (bulk SMS import,
// statement reconciliation, backup import, reprocessing).
type ImportResult struct {
	Accounts     Counts
	Categories   Counts
	Transactions Counts
	Errors       []string
	Suppressed   int // errors dropped past MaxResultErrors
}

// AddError appends a formatted error message, truncating past the cap.
func (r *ImportResult) AddError(format string, args ...any) {
	if len(r.Errors) >= MaxResultErrors {
		r.Suppressed++
		return
	}
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// ErrorList returns the bounded error list, with a trailing summary line
// when messages were suppressed.
func (r *ImportResult) ErrorList() []string {
	if r.Suppressed == 0 {
		return r.Errors
	}
	out := make([]string, 0, len(r.Errors)+1)
	out = append(out, r.Errors...)
	return append(out, fmt.Sprintf("... and %d more errors", r.Suppressed))
}

// Success reports whether the operation completed without a single
// record-level error.
func (r *ImportResult) Success() bool {
	return len(r.Errors) == 0 && r.Suppressed == 0
}

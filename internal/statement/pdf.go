package statement

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/jsarmiento/plata/internal/model"
)

// pdfLineRe matches one transaction line reassembled from a statement page:
// date, free-text description, signed value, running balance.
var pdfLineRe = regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{4})\s+(.+?)\s+(-?\(?\$?\s?[\d.,]+\)?)\s+(\$?\s?[\d.,]+)$`)

// DecodePDF reads a page-structured statement document. An encrypted
// document with a missing or wrong password fails with ErrIncorrectPassword
// so the caller can re-prompt instead of treating it as a parse failure.
func DecodePDF(data []byte, password string) (st *Statement, err error) {
	// The pdf library panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			st, err = nil, fmt.Errorf("statement: pdf decode panic: %v", r)
		}
	}()

	attempts := 0
	reader, err := pdf.NewReaderEncrypted(bytes.NewReader(data), int64(len(data)), func() string {
		// One shot with the supplied password; returning "" tells the
		// library to give up rather than loop.
		attempts++
		if attempts > 1 {
			return ""
		}
		return password
	})
	if err != nil {
		if err == pdf.ErrInvalidPassword {
			return nil, ErrIncorrectPassword
		}
		return nil, fmt.Errorf("statement: open pdf: %w", err)
	}

	lines := extractPDFLines(reader)
	return decodePDFLines(lines, time.Now().UTC())
}

// extractPDFLines reassembles text rows page by page.
func extractPDFLines(r *pdf.Reader) []string {
	var lines []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			var parts []string
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			line := strings.TrimSpace(strings.Join(parts, " "))
			if line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}

func decodePDFLines(lines []string, seenAt time.Time) (*Statement, error) {
	st := &Statement{}
	var explicitBalance *int64
	var explicitPeriod *Period

	for _, line := range lines {
		if st.Bank == "" {
			st.Bank = detectBank(line)
		}
		if st.AccountHint == "" {
			st.AccountHint = findAccountHint(line)
		}
		if m := closingRe.FindStringSubmatch(line); m != nil {
			if v, _, err := parseSignedPesos(m[1]); err == nil {
				explicitBalance = &v
			}
			continue
		}
		if m := periodRe.FindStringSubmatch(line); m != nil {
			from, okF := parseStatementDate(m[1])
			to, okT := parseStatementDate(m[2])
			if okF && okT {
				explicitPeriod = &Period{From: from, To: to}
			}
			continue
		}

		m := pdfLineRe.FindStringSubmatch(line)
		if m == nil {
			continue // headers, footers, marketing
		}
		date, ok := parseStatementDate(m[1])
		if !ok {
			st.RowFailures = append(st.RowFailures, rowFailure(line, model.SourceStatementPDF, model.ReasonUnparseableDate, seenAt))
			continue
		}
		amount, negative, err := parseSignedPesos(m[3])
		if err != nil {
			st.RowFailures = append(st.RowFailures, rowFailure(line, model.SourceStatementPDF, model.ReasonUnparseableAmount, seenAt))
			continue
		}

		dir := model.DirIncome
		if negative {
			dir = model.DirExpense
		}
		cand := model.TransactionCandidate{
			Source:       model.SourceStatementPDF,
			Direction:    dir,
			Amount:       amount,
			OccurredAt:   date,
			Counterparty: strings.TrimSpace(m[2]),
			RawPayload:   line,
		}
		if v, neg, err := parseSignedPesos(m[4]); err == nil && !neg {
			cand.RunningBalance = &v
		}
		st.Candidates = append(st.Candidates, cand)
	}

	for i := range st.Candidates {
		st.Candidates[i].Bank = st.Bank
		st.Candidates[i].AccountHint = st.AccountHint
	}

	if err := st.finalize(explicitBalance, explicitPeriod); err != nil {
		return nil, err
	}
	return st, nil
}

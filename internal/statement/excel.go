package statement

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/extrame/xls"

	"github.com/jsarmiento/plata/internal/model"
)

// maxSheetRows caps how far into a workbook the decoder reads.
const maxSheetRows = 5000

// DecodeExcel reads a tabular statement export. The sheet has free-form
// metadata rows (bank, account, period, closing balance) above a fixed
// header row, then one transaction per row. No password support: banks ship
// these unencrypted.
func DecodeExcel(data []byte) (*Statement, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data), "cp1252")
	if err != nil {
		return nil, fmt.Errorf("statement: open workbook: %w", err)
	}
	rows := workbook.ReadAllCells(maxSheetRows)
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return decodeCellRows(rows, time.Now().UTC())
}

// header column labels, lowercased. Referencia is optional.
type headerIndex struct {
	fecha, descripcion, referencia, valor, saldo int
}

func findHeader(row []string) (headerIndex, bool) {
	h := headerIndex{fecha: -1, descripcion: -1, referencia: -1, valor: -1, saldo: -1}
	for i, cell := range row {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case "fecha":
			h.fecha = i
		case "descripcion", "descripción":
			h.descripcion = i
		case "referencia":
			h.referencia = i
		case "valor", "monto":
			h.valor = i
		case "saldo":
			h.saldo = i
		}
	}
	return h, h.fecha >= 0 && h.descripcion >= 0 && h.valor >= 0
}

func decodeCellRows(rows [][]string, seenAt time.Time) (*Statement, error) {
	st := &Statement{}
	var explicitBalance *int64
	var explicitPeriod *Period

	var header headerIndex
	inBody := false
	for _, row := range rows {
		joined := strings.TrimSpace(strings.Join(row, " "))
		if joined == "" {
			continue
		}

		if !inBody {
			if h, ok := findHeader(row); ok {
				header = h
				inBody = true
				continue
			}
			// metadata zone above the header
			if st.Bank == "" {
				st.Bank = detectBank(joined)
			}
			if st.AccountHint == "" {
				st.AccountHint = findAccountHint(joined)
			}
			if m := closingRe.FindStringSubmatch(joined); m != nil {
				if v, _, err := parseSignedPesos(m[1]); err == nil {
					explicitBalance = &v
				}
			}
			if m := periodRe.FindStringSubmatch(joined); m != nil {
				from, okF := parseStatementDate(m[1])
				to, okT := parseStatementDate(m[2])
				if okF && okT {
					explicitPeriod = &Period{From: from, To: to}
				}
			}
			continue
		}

		// trailing summary rows
		if m := closingRe.FindStringSubmatch(joined); m != nil {
			if v, _, err := parseSignedPesos(m[1]); err == nil {
				explicitBalance = &v
			}
			continue
		}

		cand, failReason := decodeBodyRow(row, header, seenAt)
		if failReason != "" {
			st.RowFailures = append(st.RowFailures, rowFailure(joined, model.SourceStatementExcel, failReason, seenAt))
			continue
		}
		cand.Bank = st.Bank
		cand.AccountHint = st.AccountHint
		st.Candidates = append(st.Candidates, cand)
	}

	if err := st.finalize(explicitBalance, explicitPeriod); err != nil {
		return nil, err
	}
	return st, nil
}

func decodeBodyRow(row []string, h headerIndex, seenAt time.Time) (model.TransactionCandidate, model.FailureReason) {
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	date, ok := parseStatementDate(cell(h.fecha))
	if !ok {
		return model.TransactionCandidate{}, model.ReasonUnparseableDate
	}
	amount, negative, err := parseSignedPesos(cell(h.valor))
	if err != nil {
		return model.TransactionCandidate{}, model.ReasonUnparseableAmount
	}

	dir := model.DirIncome
	if negative {
		dir = model.DirExpense
	}
	cand := model.TransactionCandidate{
		Source:       model.SourceStatementExcel,
		Direction:    dir,
		Amount:       amount,
		OccurredAt:   date,
		Counterparty: cell(h.descripcion),
		Reference:    cell(h.referencia),
		RawPayload:   strings.Join(row, "|"),
	}
	if saldo := cell(h.saldo); saldo != "" {
		if v, neg, err := parseSignedPesos(saldo); err == nil && !neg {
			cand.RunningBalance = &v
		}
	}
	return cand, ""
}

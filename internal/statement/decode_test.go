package statement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jsarmiento/plata/internal/model"
)

var seenAt = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func TestDecodeCellRows(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"Bancolombia - Extracto de cuenta"},
		{"Cuenta Ahorros No. 1234"},
		{"Periodo: 1/03/2026 al 31/03/2026"},
		{"Saldo Final: $2.450.000"},
		{},
		{"Fecha", "Descripcion", "Referencia", "Valor", "Saldo"},
		{"5/03/2026", "COMPRA EXITO", "", "-45.000", "1.955.000"},
		{"10/03/2026", "ABONO NOMINA", "778899", "2.500.000", "4.455.000"},
	}

	st, err := decodeCellRows(rows, seenAt)
	require.NoError(t, err)
	require.Equal(t, model.BankBancolombia, st.Bank)
	require.Equal(t, "1234", st.AccountHint)
	require.Equal(t, int64(2450000), st.Balance)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), st.Period.From)
	require.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), st.Period.To)
	require.Empty(t, st.RowFailures)
	require.Len(t, st.Candidates, 2)

	first := st.Candidates[0]
	require.Equal(t, model.SourceStatementExcel, first.Source)
	require.Equal(t, model.DirExpense, first.Direction)
	require.Equal(t, int64(45000), first.Amount)
	require.Equal(t, "COMPRA EXITO", first.Counterparty)
	require.Equal(t, model.BankBancolombia, first.Bank)
	require.Equal(t, "1234", first.AccountHint)
	require.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), first.OccurredAt)
	require.NotNil(t, first.RunningBalance)
	require.Equal(t, int64(1955000), *first.RunningBalance)

	second := st.Candidates[1]
	require.Equal(t, model.DirIncome, second.Direction)
	require.Equal(t, int64(2500000), second.Amount)
	require.Equal(t, "778899", second.Reference)
}

func TestDecodeCellRowsDerivesBalanceAndPeriod(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"Davivienda"},
		{"Fecha", "Descripcion", "Valor", "Saldo"},
		{"20/03/2026", "PAGO SERVICIOS", "-80.000", "920.000"},
		{"2/03/2026", "CONSIGNACION", "1.000.000", "1.000.000"},
	}

	st, err := decodeCellRows(rows, seenAt)
	require.NoError(t, err)
	// no explicit closing balance: the last row's running balance wins
	require.Equal(t, int64(1000000), st.Balance)
	// no declared period: derived from min/max row dates
	require.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), st.Period.From)
	require.Equal(t, time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC), st.Period.To)
}

func TestDecodeCellRowsCollectsRowFailures(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"BBVA"},
		{"Fecha", "Descripcion", "Valor"},
		{"5/03/2026", "COMPRA", "-45.000"},
		{"no es fecha", "FILA ROTA", "-10.000"},
		{"6/03/2026", "OTRA FILA", "sin valor"},
	}

	st, err := decodeCellRows(rows, seenAt)
	require.NoError(t, err)
	require.Len(t, st.Candidates, 1)
	require.Len(t, st.RowFailures, 2)
	require.Equal(t, model.ReasonUnparseableDate, st.RowFailures[0].Reason)
	require.Equal(t, model.ReasonUnparseableAmount, st.RowFailures[1].Reason)
	require.Equal(t, model.SourceStatementExcel, st.RowFailures[0].Source)
}

func TestDecodeCellRowsNoTransactions(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"Bancolombia"},
		{"Fecha", "Descripcion", "Valor"},
	}
	_, err := decodeCellRows(rows, seenAt)
	require.ErrorIs(t, err, ErrNoRows)
}

func TestDecodePDFLines(t *testing.T) {
	t.Parallel()

	lines := []string{
		"BBVA Colombia - Extracto mensual",
		"Producto terminado en 9012",
		"Periodo: 1/02/2026 - 28/02/2026",
		"Fecha Descripcion Valor Saldo",
		"5/02/2026 PAGO NETFLIX -45.000 1.955.000",
		"12/02/2026 RETIRO CAJERO (200.000) 1.755.000",
		"20/02/2026 TRANSFERENCIA RECIBIDA 500.000 2.255.000",
		"Saldo Final: $2.255.000",
		"Linea gratuita nacional 01 8000 912 227",
	}

	st, err := decodePDFLines(lines, seenAt)
	require.NoError(t, err)
	require.Equal(t, model.BankBBVA, st.Bank)
	require.Equal(t, "9012", st.AccountHint)
	require.Equal(t, int64(2255000), st.Balance)
	require.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), st.Period.From)
	require.Len(t, st.Candidates, 3)

	require.Equal(t, model.DirExpense, st.Candidates[0].Direction)
	require.Equal(t, int64(45000), st.Candidates[0].Amount)
	require.Equal(t, "PAGO NETFLIX", st.Candidates[0].Counterparty)
	require.Equal(t, model.SourceStatementPDF, st.Candidates[0].Source)
	require.Equal(t, model.BankBBVA, st.Candidates[0].Bank)

	// parenthesized amounts are negative
	require.Equal(t, model.DirExpense, st.Candidates[1].Direction)
	require.Equal(t, int64(200000), st.Candidates[1].Amount)

	require.Equal(t, model.DirIncome, st.Candidates[2].Direction)
	require.Equal(t, int64(500000), st.Candidates[2].Amount)
	require.NotNil(t, st.Candidates[2].RunningBalance)
	require.Equal(t, int64(2255000), *st.Candidates[2].RunningBalance)
}

func TestDecodePDFLinesNoTransactions(t *testing.T) {
	t.Parallel()

	lines := []string{
		"Bancolombia",
		"Gracias por usar nuestros canales digitales",
	}
	_, err := decodePDFLines(lines, seenAt)
	require.ErrorIs(t, err, ErrNoRows)
}

func TestDecodeUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte("x"), Kind("csv"), "")
	require.Error(t, err)
}

func TestParseSignedPesos(t *testing.T) {
	t.Parallel()

	v, neg, err := parseSignedPesos("-45.000")
	require.NoError(t, err)
	require.True(t, neg)
	require.Equal(t, int64(45000), v)

	v, neg, err = parseSignedPesos("($200.000)")
	require.NoError(t, err)
	require.True(t, neg)
	require.Equal(t, int64(200000), v)

	v, neg, err = parseSignedPesos("1.250.000")
	require.NoError(t, err)
	require.False(t, neg)
	require.Equal(t, int64(1250000), v)
}

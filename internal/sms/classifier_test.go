package sms

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jsarmiento/plata/internal/model"
)

var testReceivedAt = time.Date(2026, 3, 15, 19, 30, 0, 0, time.UTC)

func TestClassifyBySender(t *testing.T) {
	t.Parallel()

	cases := []struct {
		sender string
		bank   model.BankCode
	}{
		{"87400", model.BankBancolombia},
		{"85540", model.BankBancolombia},
		{"Bancolombia", model.BankBancolombia},
		{"85888", model.BankDavivienda},
		{"89980", model.BankBBVA},
		{"85954", model.BankNequi},
		{"Nequi", model.BankNequi},
		{"85700", model.BankBogota},
	}
	for _, tc := range cases {
		got, ok := Classify(tc.sender, "compra por $10.000 en D1.", testReceivedAt)
		require.True(t, ok, "sender %q", tc.sender)
		require.Equal(t, tc.bank, got.Bank, "sender %q", tc.sender)
		require.Equal(t, KindPurchase, got.Kind)
		require.Equal(t, testReceivedAt, got.ReceivedAt)
	}
}

func TestClassifyFallsBackToBody(t *testing.T) {
	t.Parallel()

	got, ok := Classify("3001234567", "Davivienda le informa: Compra por $10.000 en D1.", testReceivedAt)
	require.True(t, ok)
	require.Equal(t, model.BankDavivienda, got.Bank)
}

func TestClassifySenderWinsOverBody(t *testing.T) {
	t.Parallel()

	// a Bancolombia shortcode forwarding text that mentions another bank
	got, ok := Classify("87400", "transferencia por $10.000 a cuenta Davivienda.", testReceivedAt)
	require.True(t, ok)
	require.Equal(t, model.BankBancolombia, got.Bank)
}

func TestClassifyRejectsUnknown(t *testing.T) {
	t.Parallel()

	_, ok := Classify("30012345", "Tu pedido llega hoy entre 2pm y 4pm", testReceivedAt)
	require.False(t, ok)
}

func TestDetectKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		body string
		want MessageKind
	}{
		{"compra por $45.000 en EXITO", KindPurchase},
		{"Pagaste $25.000 en TIENDA D1", KindPurchase},
		{"retiro por $200.000 en cajero", KindWithdrawal},
		{"Sacaste $100.000 del cajero", KindWithdrawal},
		{"tu pago minimo vence pronto", KindPaymentDue},
		{"fecha límite de pago: 20/05/2026", KindPaymentDue},
		{"Recibiste $30.000 de Maria", KindPaymentReceived},
		{"abono por $2.500.000 de NOMINA", KindPaymentReceived},
		{"Consignacion recibida por $800.000", KindPaymentReceived},
		{"transferencia por $150.000 a JUAN", KindTransfer},
		{"Enviaste $30.000 a Maria Lopez", KindTransfer},
		{"tu saldo es $1.000.000", KindBalanceNotice},
		{"actualiza tus datos en la app", KindUnknownFinancial},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, detectKind(tc.body), "body %q", tc.body)
	}
}

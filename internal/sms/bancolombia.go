package sms

import (
	"regexp"
	"strings"

	"github.com/jsarmiento/plata/internal/model"
)

// Bancolombia templates. Wording: "Bancolombia te informa <evento> por
// $<monto> en/a <contraparte> [hh:mm. dd/mm/aaaa] [producto *9999]. Saldo
// $<saldo>".
var (
	bancolCompra   = regexp.MustCompile(`(?i)compra por \$\s*([\d.,]+) en (.+?)(?:\s+\d{1,2}:\d{2})?\s*(?:[.,]|$)`)
	bancolRetiro   = regexp.MustCompile(`(?i)retiro por \$\s*([\d.,]+) en (.+?)(?:\s+\d{1,2}:\d{2})?\s*(?:[.,]|$)`)
	bancolTransfer = regexp.MustCompile(`(?i)transferencia por \$\s*([\d.,]+) a (.+?)\s*(?:[.,]|$)`)
	bancolPago     = regexp.MustCompile(`(?i)pago recibido por \$\s*([\d.,]+) de (.+?)(?:\s+en tu cuenta|\s*[.,]|$)`)
)

func extractBancolombia(msg Classified) (model.TransactionCandidate, error) {
	var (
		re  *regexp.Regexp
		dir model.Direction
	)
	switch msg.Kind {
	case KindPurchase:
		re, dir = bancolCompra, model.DirExpense
	case KindWithdrawal:
		re, dir = bancolRetiro, model.DirExpense
	case KindTransfer:
		re, dir = bancolTransfer, model.DirTransferOut
	case KindPaymentReceived:
		re, dir = bancolPago, model.DirIncome
	default:
		return failExtract(model.ReasonUnrecognizedTemplate, string(msg.Kind))
	}

	m := re.FindStringSubmatch(msg.Body)
	if m == nil {
		return failExtract(model.ReasonUnrecognizedTemplate, string(msg.Kind))
	}
	amount, err := ParsePesos(m[1])
	if err != nil {
		return failExtract(model.ReasonUnparseableAmount, m[1])
	}

	cand := newCandidate(msg, dir, amount)
	cand.Counterparty = strings.TrimSpace(m[2])
	return finishCandidate(msg, cand)
}

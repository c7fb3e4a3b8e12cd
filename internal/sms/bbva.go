package sms

import (
	"regexp"
	"strings"

	"github.com/jsarmiento/plata/internal/model"
)

// BBVA templates. Amounts are prefixed "COP $" and the running balance is
// reported as "Disponible:".
var (
	bbvaCompra   = regexp.MustCompile(`(?i)compra (?:aprobada )?por (?:COP\s*)?\$\s*([\d.,]+) en (.+?)(?:\s+con tarjeta|\s*[.,]|$)`)
	bbvaRetiro   = regexp.MustCompile(`(?i)retiro(?: en efectivo)? por (?:COP\s*)?\$\s*([\d.,]+) en (.+?)\s*(?:[.,]|$)`)
	bbvaTransfer = regexp.MustCompile(`(?i)transferencia (?:enviada )?por (?:COP\s*)?\$\s*([\d.,]+) a (.+?)(?:\s+cuenta|\s*[.,]|$)`)
	bbvaRecibida = regexp.MustCompile(`(?i)recibido una transferencia por (?:COP\s*)?\$\s*([\d.,]+) de (.+?)\s*(?:[.,]|$)`)
)

func extractBBVA(msg Classified) (model.TransactionCandidate, error) {
	var (
		re  *regexp.Regexp
		dir model.Direction
	)
	switch msg.Kind {
	case KindPurchase:
		re, dir = bbvaCompra, model.DirExpense
	case KindWithdrawal:
		re, dir = bbvaRetiro, model.DirExpense
	case KindTransfer:
		re, dir = bbvaTransfer, model.DirTransferOut
	case KindPaymentReceived:
		re, dir = bbvaRecibida, model.DirTransferIn
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

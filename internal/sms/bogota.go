package sms

import (
	"regexp"
	"strings"

	"github.com/jsarmiento/plata/internal/model"
)

// Banco de Bogotá templates. Embedded "el dd/mm/aaaa hh:mm" timestamps,
// Aval-network wording for cajeros, "Cupo disponible" on credit products.
var (
	bogotaCompra   = regexp.MustCompile(`(?i)compra por \$\s*([\d.,]+) en (.+?)(?:\s+el \d|\s*[.,]|$)`)
	bogotaRetiro   = regexp.MustCompile(`(?i)retiro (?:exitoso )?por \$\s*([\d.,]+) en (.+?)(?:\s+el \d|\s*[.,]|$)`)
	bogotaTransfer = regexp.MustCompile(`(?i)transferencia por \$\s*([\d.,]+)(?:\s+de su cta \*?(\d{4}))?\s+a (.+?)\s*(?:[.,]|$)`)
	bogotaConsig   = regexp.MustCompile(`(?i)consignaci[oó]n recibida por \$\s*([\d.,]+)`)
)

func extractBogota(msg Classified) (model.TransactionCandidate, error) {
	switch msg.Kind {
	case KindPurchase, KindWithdrawal:
		re := bogotaCompra
		if msg.Kind == KindWithdrawal {
			re = bogotaRetiro
		}
		m := re.FindStringSubmatch(msg.Body)
		if m == nil {
			return failExtract(model.ReasonUnrecognizedTemplate, string(msg.Kind))
		}
		amount, err := ParsePesos(m[1])
		if err != nil {
			return failExtract(model.ReasonUnparseableAmount, m[1])
		}
		cand := newCandidate(msg, model.DirExpense, amount)
		cand.Counterparty = strings.TrimSpace(m[2])
		return finishCandidate(msg, cand)

	case KindTransfer:
		m := bogotaTransfer.FindStringSubmatch(msg.Body)
		if m == nil {
			return failExtract(model.ReasonUnrecognizedTemplate, string(msg.Kind))
		}
		amount, err := ParsePesos(m[1])
		if err != nil {
			return failExtract(model.ReasonUnparseableAmount, m[1])
		}
		cand := newCandidate(msg, model.DirTransferOut, amount)
		cand.AccountHint = m[2]
		cand.Counterparty = strings.TrimSpace(m[3])
		return finishCandidate(msg, cand)

	case KindPaymentReceived:
		m := bogotaConsig.FindStringSubmatch(msg.Body)
		if m == nil {
			return failExtract(model.ReasonUnrecognizedTemplate, string(msg.Kind))
		}
		amount, err := ParsePesos(m[1])
		if err != nil {
			return failExtract(model.ReasonUnparseableAmount, m[1])
		}
		cand := newCandidate(msg, model.DirIncome, amount)
		return finishCandidate(msg, cand)

	default:
		return failExtract(model.ReasonUnrecognizedTemplate, string(msg.Kind))
	}
}

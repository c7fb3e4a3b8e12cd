package sms

import (
	"regexp"
	"strings"

	"github.com/jsarmiento/plata/internal/model"
)

// Davivienda templates. Wording: "Davivienda le informa: <Evento> por
// $<monto> en <comercio> con su Tarjeta terminada en 9999, el dd/mm/aaaa a
// las hh:mm." Abonos name the payer, transfers the destination.
var (
	daviCompra   = regexp.MustCompile(`(?i)compra por \$\s*([\d.,]+) en (.+?)(?:\s+con su|\s+el \d|\s*[.,]|$)`)
	daviRetiro   = regexp.MustCompile(`(?i)retiro por \$\s*([\d.,]+) en (.+?)(?:\s+el \d|\s*[.,]|$)`)
	daviAbono    = regexp.MustCompile(`(?i)abono por \$\s*([\d.,]+)\s+(?:de\s+)?(.+?)(?:\s+a su producto|\s*[.,]|$)`)
	daviTransfer = regexp.MustCompile(`(?i)transferencia (?:exitosa )?por \$\s*([\d.,]+)(?:\s+desde su producto (\d{4}))? a (.+?)\s*(?:[.,]|$)`)
	daviProducto = regexp.MustCompile(`(?i)producto (?:terminado en )?(\d{4})\b`)
)

func extractDavivienda(msg Classified) (model.TransactionCandidate, error) {
	switch msg.Kind {
	case KindPurchase, KindWithdrawal:
		re := daviCompra
		if msg.Kind == KindWithdrawal {
			re = daviRetiro
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
		cand.AccountHint = findDaviviendaProduct(msg.Body)
		return finishCandidate(msg, cand)

	case KindPaymentReceived:
		m := daviAbono.FindStringSubmatch(msg.Body)
		if m == nil {
			return failExtract(model.ReasonUnrecognizedTemplate, string(msg.Kind))
		}
		amount, err := ParsePesos(m[1])
		if err != nil {
			return failExtract(model.ReasonUnparseableAmount, m[1])
		}
		cand := newCandidate(msg, model.DirIncome, amount)
		cand.Counterparty = strings.TrimSpace(m[2])
		cand.AccountHint = findDaviviendaProduct(msg.Body)
		return finishCandidate(msg, cand)

	case KindTransfer:
		m := daviTransfer.FindStringSubmatch(msg.Body)
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

	default:
		return failExtract(model.ReasonUnrecognizedTemplate, string(msg.Kind))
	}
}

func findDaviviendaProduct(body string) string {
	if m := daviProducto.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

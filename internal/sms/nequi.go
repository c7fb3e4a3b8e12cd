package sms

import (
	"regexp"
	"strings"

	"github.com/jsarmiento/plata/internal/model"
)

// Nequi templates. Second-person verbs, no product numbers, balance phrased
// "Tu disponible es $<saldo>".
var (
	nequiEnviaste  = regexp.MustCompile(`(?i)enviaste \$\s*([\d.,]+) a (.+?)\s*(?:[.,]|$)`)
	nequiRecibiste = regexp.MustCompile(`(?i)recibiste \$\s*([\d.,]+) de (.+?)\s*(?:[.,]|$)`)
	nequiPagaste   = regexp.MustCompile(`(?i)pagaste \$\s*([\d.,]+) en (.+?)(?:\s+con tu nequi|\s*[.,]|$)`)
	nequiSacaste   = regexp.MustCompile(`(?i)sacaste \$\s*([\d.,]+)(?:\s+(?:del?\s+)?(.+?))?\s*(?:[.,]|$)`)
)

func extractNequi(msg Classified) (model.TransactionCandidate, error) {
	var (
		re  *regexp.Regexp
		dir model.Direction
	)
	switch msg.Kind {
	case KindTransfer:
		re, dir = nequiEnviaste, model.DirTransferOut
	case KindPaymentReceived:
		re, dir = nequiRecibiste, model.DirIncome
	case KindPurchase:
		re, dir = nequiPagaste, model.DirExpense
	case KindWithdrawal:
		re, dir = nequiSacaste, model.DirExpense
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

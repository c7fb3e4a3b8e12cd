// Package sms classifies bank notification messages and extracts
// transaction candidates from them. Everything in this package is a pure
// function of its input; persistence of results belongs to the caller.
package sms

import (
	"strings"
	"time"

	"github.com/jsarmiento/plata/internal/model"
)

// MessageKind is the coarse subtype of a bank message. Extractors refine it
// into a direction per template.
type MessageKind string

const (
	KindPurchase         MessageKind = "purchase"
	KindWithdrawal       MessageKind = "withdrawal"
	KindTransfer         MessageKind = "transfer"
	KindPaymentDue       MessageKind = "payment_due"
	KindPaymentReceived  MessageKind = "payment_received"
	KindBalanceNotice    MessageKind = "balance_notice"
	KindUnknownFinancial MessageKind = "unknown_financial"
)

// Classified is a message attributed to a known bank.
type Classified struct {
	Bank       model.BankCode
	Kind       MessageKind
	Sender     string
	Body       string
	ReceivedAt time.Time
}

// senderRule maps a sender address to a bank. Exact shortcodes and
// alphanumeric prefixes both occur in the wild.
type senderRule struct {
	match  string
	prefix bool
	bank   model.BankCode
}

var senderRules = []senderRule{
	{match: "87400", bank: model.BankBancolombia},
	{match: "85540", bank: model.BankBancolombia},
	{match: "bancolombia", prefix: true, bank: model.BankBancolombia},
	{match: "85888", bank: model.BankDavivienda},
	{match: "davivienda", prefix: true, bank: model.BankDavivienda},
	{match: "89980", bank: model.BankBBVA},
	{match: "bbva", prefix: true, bank: model.BankBBVA},
	{match: "85954", bank: model.BankNequi},
	{match: "nequi", prefix: true, bank: model.BankNequi},
	{match: "85700", bank: model.BankBogota},
	{match: "bcobogota", prefix: true, bank: model.BankBogota},
}

// bodyKeywords is the fallback when the sender is unknown (forwarded
// messages, carrier rewrites). Sender matches always win over these: body
// text is spoofable, the originating address much less so.
var bodyKeywords = []struct {
	keyword string
	bank    model.BankCode
}{
	{"bancolombia", model.BankBancolombia},
	{"davivienda", model.BankDavivienda},
	{"bbva", model.BankBBVA},
	{"nequi", model.BankNequi},
	{"banco de bogot", model.BankBogota},
}

// Classify attributes a raw message to a bank and subtype. The second
// return is false for anything that is not a known bank's notification;
// such messages become failed extractions with reason unrecognized_bank.
func Classify(sender, body string, receivedAt time.Time) (Classified, bool) {
	bank, ok := matchSender(sender)
	if !ok {
		bank, ok = matchBody(body)
	}
	if !ok {
		return Classified{}, false
	}
	return Classified{
		Bank:       bank,
		Kind:       detectKind(body),
		Sender:     sender,
		Body:       body,
		ReceivedAt: receivedAt,
	}, true
}

func matchSender(sender string) (model.BankCode, bool) {
	s := strings.ToLower(strings.TrimSpace(sender))
	if s == "" {
		return "", false
	}
	for _, r := range senderRules {
		if r.prefix && strings.HasPrefix(s, r.match) {
			return r.bank, true
		}
		if !r.prefix && s == r.match {
			return r.bank, true
		}
	}
	return "", false
}

func matchBody(body string) (model.BankCode, bool) {
	b := strings.ToLower(body)
	for _, k := range bodyKeywords {
		if strings.Contains(b, k.keyword) {
			return k.bank, true
		}
	}
	return "", false
}

func detectKind(body string) MessageKind {
	b := strings.ToLower(body)
	has := func(keys ...string) bool {
		for _, k := range keys {
			if strings.Contains(b, k) {
				return true
			}
		}
		return false
	}
	switch {
	case has("compra", "pagaste"):
		return KindPurchase
	case has("retiro", "sacaste"):
		return KindWithdrawal
	case has("pago minimo", "pago mínimo", "fecha limite", "fecha límite"):
		return KindPaymentDue
	case has("recibiste", "recibido", "recibida", "abono", "consignacion", "consignación"):
		return KindPaymentReceived
	case has("transferencia", "enviaste", "transferiste"):
		return KindTransfer
	case has("saldo", "disponible"):
		return KindBalanceNotice
	default:
		return KindUnknownFinancial
	}
}

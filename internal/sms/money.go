package sms

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var errBadAmount = errors.New("unparseable peso amount")

var digitsOnly = regexp.MustCompile(`^\d+$`)

var amountCleaner = strings.NewReplacer("$", "", "COP", "", "cop", "", " ", "", "\u00a0", "")

// ParsePesos parses a Colombian currency token into whole pesos. Banks
// format amounts with a period as the thousands separator ($1.250.000) but
// comma-grouped and decimal-tailed variants occur; a two-digit decimal tail
// is centavos and is dropped.
func ParsePesos(tok string) (int64, error) {
	s := amountCleaner.Replace(strings.TrimSpace(tok))
	if s == "" {
		return 0, errBadAmount
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Mixed separators: the rightmost one is the decimal point.
		if lastDot > lastComma {
			s = strings.ReplaceAll(s[:lastDot], ",", "")
		} else {
			s = strings.ReplaceAll(s[:lastComma], ".", "")
		}
	case lastDot >= 0:
		s = splitSingleSeparator(s, lastDot, ".")
	case lastComma >= 0:
		s = splitSingleSeparator(s, lastComma, ",")
	}

	if !digitsOnly.MatchString(s) {
		return 0, errBadAmount
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, errBadAmount
	}
	return v, nil
}

// splitSingleSeparator decides whether a lone separator kind groups
// thousands (three trailing digits) or marks decimals (anything else).
func splitSingleSeparator(s string, last int, sep string) string {
	if len(s)-last-1 == 3 {
		return strings.ReplaceAll(s, sep, "")
	}
	return strings.ReplaceAll(s[:last], sep, "")
}

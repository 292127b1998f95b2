package util

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	currencyTokens  = strings.NewReplacer("£", "", "$", "", "€", "", "GBP", "", "EUR", "", "USD", "", " ", "", "\u00a0", "", "\u202f", "")
	reAmountBody    = regexp.MustCompile(`^\d[\d.,]*$`)
	reScientific    = regexp.MustCompile(`^\d+(?:\.\d+)?[eE][+\-]?\d+$`)
	reThousandsTail = regexp.MustCompile(`^\d{1,3}(?:[.,]\d{3})+$`)
)

// ParseAmount reads a spreadsheet cell as a money amount. Blank or
// non-numeric cells report ok=false.
func ParseAmount(cell string, format NumberFormat) (decimal.Decimal, bool) {
	s := strings.TrimSpace(currencyTokens.Replace(strings.ToUpper(strings.TrimSpace(cell))))
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	switch {
	case strings.HasPrefix(s, "-"), strings.HasPrefix(s, "\u2212"):
		negative = !negative
		s = strings.TrimLeft(s, "-\u2212")
	case strings.HasSuffix(s, "-"):
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	var value decimal.Decimal
	if reScientific.MatchString(s) {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		value = v
	} else {
		if !reAmountBody.MatchString(s) {
			return decimal.Zero, false
		}
		v, err := decimal.NewFromString(normalizeAmountToken(s, format))
		if err != nil {
			return decimal.Zero, false
		}
		value = v
	}
	if negative {
		value = value.Neg()
	}
	return value, true
}

// normalizeAmountToken rewrites a digit run with separators into a plain
// dot-decimal literal.
func normalizeAmountToken(token string, format NumberFormat) string {
	dots := strings.Count(token, ".")
	commas := strings.Count(token, ",")

	switch {
	case dots == 0 && commas == 0:
		return token
	case dots > 0 && commas > 0:
		// the separator that appears last is the decimal one
		if strings.LastIndex(token, ".") > strings.LastIndex(token, ",") {
			return strings.ReplaceAll(token, ",", "")
		}
		return strings.ReplaceAll(strings.ReplaceAll(token, ".", ""), ",", ".")
	case dots+commas > 1:
		if reThousandsTail.MatchString(token) {
			return strings.NewReplacer(".", "", ",", "").Replace(token)
		}
		return token
	}

	sep := byte('.')
	if commas == 1 {
		sep = ','
	}
	at := strings.IndexByte(token, sep)
	tail := token[at+1:]
	if len(tail) == 3 && sep == format.thousandsSep() {
		return token[:at] + tail
	}
	if sep == ',' {
		return token[:at] + "." + tail
	}
	return token
}

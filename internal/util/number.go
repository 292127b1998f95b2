package util

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// NumberFormat describes how a marketplace writes money amounts in free text.
type NumberFormat string

const (
	// FormatDot is 1,234.56.
	FormatDot NumberFormat = "dot"
	// FormatComma is 1.234,56 (grouping may also use non-breaking spaces).
	FormatComma NumberFormat = "comma"
)

func (f NumberFormat) thousandsSep() byte {
	if f == FormatComma {
		return '.'
	}
	return ','
}

// Named groups: open, sign, cur, int, dec, close. Comma format also reads
// plain-space grouping (1 594,42) through sint/sdec, only with a decimal part.
var (
	dotNumberPattern = regexp.MustCompile(
		`(?:^|[^\d.,])(?P<open>\(?)(?P<sign>[+\-\x{2212}]?)\s?(?P<cur>[£$€]?)\s?` +
			`(?P<int>\d{1,3}(?:,\d{3})+|\d+)(?:\.(?P<dec>\d{1,2}))?(?P<close>\)?)`)
	commaNumberPattern = regexp.MustCompile(
		`(?:^|[^\d.,])(?P<open>\(?)(?P<sign>[+\-\x{2212}]?)\s?(?P<cur>[£$€]?)\s?` +
			`(?:(?P<sint>\d{1,3}(?: \d{3})+),(?P<sdec>\d{1,2})|` +
			`(?P<int>\d{1,3}(?:[.\x{00A0}\x{202F}]\d{3})+|\d+)(?:,(?P<dec>\d{1,2}))?)(?P<close>\)?)`)
)

func (f NumberFormat) pattern() *regexp.Regexp {
	if f == FormatComma {
		return commaNumberPattern
	}
	return dotNumberPattern
}

type NumberInContext struct {
	Value   decimal.Decimal
	Context string
	// Start and End are byte offsets of the number token in the scanned text.
	Start int
	End   int
}

type numberMatch struct {
	value      decimal.Decimal
	start, end int
}

func scanNumbers(text string, format NumberFormat) []numberMatch {
	re := format.pattern()
	idx := re.FindAllStringSubmatchIndex(text, -1)
	out := make([]numberMatch, 0, len(idx))
	for _, m := range idx {
		end := m[1]
		// 1.234 in dot format: refuse to read a truncated decimal part.
		if end < len(text) && text[end] >= '0' && text[end] <= '9' {
			continue
		}
		group := func(name string) string {
			n := re.SubexpIndex(name)
			if n < 0 || m[2*n] < 0 {
				return ""
			}
			return text[m[2*n]:m[2*n+1]]
		}

		intPart, decPart := group("int"), group("dec")
		if intPart == "" {
			intPart, decPart = group("sint"), group("sdec")
		}
		for _, sep := range []string{string(format.thousandsSep()), " ", "\u00a0", "\u202f"} {
			intPart = strings.ReplaceAll(intPart, sep, "")
		}
		literal := intPart
		if decPart != "" {
			literal += "." + decPart
		}
		value, err := decimal.NewFromString(literal)
		if err != nil {
			continue
		}

		negative := group("sign") == "-" || group("sign") == "\u2212"
		if group("open") == "(" && group("close") == ")" {
			negative = true
		}
		if negative {
			value = value.Neg()
		}

		start := m[2*re.SubexpIndex("open")]
		out = append(out, numberMatch{value: value, start: start, end: end})
	}
	return out
}

// ExtractNumbers returns every money-looking number of text in document order.
func ExtractNumbers(text string, format NumberFormat) []decimal.Decimal {
	matches := scanNumbers(text, format)
	out := make([]decimal.Decimal, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.value)
	}
	return out
}

// ExtractWithContext pairs each number with up to window bytes of text on
// either side, clamped to the text and to rune boundaries.
func ExtractWithContext(text string, window int, format NumberFormat) []NumberInContext {
	matches := scanNumbers(text, format)
	out := make([]NumberInContext, 0, len(matches))
	for _, m := range matches {
		from := m.start - window
		if from < 0 {
			from = 0
		}
		for from < m.start && !utf8.RuneStart(text[from]) {
			from++
		}
		to := m.end + window
		if to > len(text) {
			to = len(text)
		}
		for to < len(text) && !utf8.RuneStart(text[to]) {
			to++
		}
		out = append(out, NumberInContext{
			Value:   m.value,
			Context: text[from:to],
			Start:   m.start,
			End:     m.end,
		})
	}
	return out
}

// FirstNumber returns the first number in text.
func FirstNumber(text string, format NumberFormat) (decimal.Decimal, bool) {
	matches := scanNumbers(text, format)
	if len(matches) == 0 {
		return decimal.Zero, false
	}
	return matches[0].value, true
}

func MaxOf(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Max(values[0], values[1:]...)
}

func MinOf(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Min(values[0], values[1:]...)
}

// FormatAmount renders |d| with two decimals and the format's grouping,
// e.g. 18,877.68 or 18.877,68.
func FormatAmount(d decimal.Decimal, format NumberFormat) string {
	fixed := d.Abs().StringFixed(2)
	intPart, frac := fixed[:len(fixed)-3], fixed[len(fixed)-2:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(format.thousandsSep())
		}
		b.WriteRune(r)
	}
	if format == FormatComma {
		return b.String() + "," + frac
	}
	return b.String() + "." + frac
}

package util

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strs(values []decimal.Decimal) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.StringFixed(2))
	}
	return out
}

func TestExtractNumbersDotFormat(t *testing.T) {
	got := ExtractNumbers("Sales 1,234.56 and fees -45.10", FormatDot)
	assert.Equal(t, []string{"1234.56", "-45.10"}, strs(got))
}

func TestExtractNumbersCommaFormat(t *testing.T) {
	got := ExtractNumbers("Umsätze 1.594,42 Gebühren -335,12", FormatComma)
	assert.Equal(t, []string{"1594.42", "-335.12"}, strs(got))
}

func TestExtractNumbersSpaceGrouping(t *testing.T) {
	cases := []struct {
		text   string
		format NumberFormat
		want   []string
	}{
		{"Umsätze 1 594,42 Gebühren -12 335,12", FormatComma, []string{"1594.42", "-12335.12"}},
		{"Umsätze 1\u00a0594,42", FormatComma, []string{"1594.42"}},
		{"Seite 3 200 Stück", FormatComma, []string{"3.00", "200.00"}},
		{"Page 1 594.42", FormatDot, []string{"1.00", "594.42"}},
	}
	for _, tc := range cases {
		got := ExtractNumbers(tc.text, tc.format)
		if !assert.Equal(t, tc.want, strs(got)) {
			t.Fatalf("text=%q", tc.text)
		}
	}
}

func TestExtractNumbersCurrencyAndParens(t *testing.T) {
	got := ExtractNumbers("Total £18,877.68 refunds (120.00) net -$5", FormatDot)
	assert.Equal(t, []string{"18877.68", "-120.00", "-5.00"}, strs(got))
}

func TestExtractNumbersIgnoresDateDashes(t *testing.T) {
	for _, v := range ExtractNumbers("period 2024-01-05", FormatDot) {
		assert.False(t, v.IsNegative(), "date part read as negative: %s", v)
	}
}

func TestExtractNumbersEmpty(t *testing.T) {
	assert.Empty(t, ExtractNumbers("no figures here", FormatDot))
}

func TestExtractWithContextWindow(t *testing.T) {
	text := "Income Summary Total 18,877.68 Expenses"
	got := ExtractWithContext(text, 30, FormatDot)
	require.Len(t, got, 1)
	assert.Equal(t, "18877.68", got[0].Value.StringFixed(2))
	assert.Equal(t, text, got[0].Context)
	assert.Equal(t, "18,877.68", strings.TrimSpace(text[got[0].Start:got[0].End]))
}

func TestExtractWithContextClampsToRuneBoundary(t *testing.T) {
	text := "ééééé 12.50 ééééé"
	got := ExtractWithContext(text, 3, FormatDot)
	require.Len(t, got, 1)
	assert.True(t, strings.Contains(got[0].Context, "12.50"))
	for _, r := range got[0].Context {
		assert.NotEqual(t, '�', r)
	}
}

func TestMaxMinOfEmpty(t *testing.T) {
	assert.True(t, MaxOf(nil).IsZero())
	assert.True(t, MinOf(nil).IsZero())

	values := ExtractNumbers("3 -7 12.5", FormatDot)
	assert.Equal(t, "12.50", MaxOf(values).StringFixed(2))
	assert.Equal(t, "-7.00", MinOf(values).StringFixed(2))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "18,877.68", FormatAmount(decimal.RequireFromString("18877.68"), FormatDot))
	assert.Equal(t, "4.681,52", FormatAmount(decimal.RequireFromString("-4681.52"), FormatComma))
	assert.Equal(t, "0.50", FormatAmount(decimal.RequireFromString("0.5"), FormatDot))
	assert.Equal(t, "1,000,000.00", FormatAmount(decimal.NewFromInt(1000000), FormatDot))
}

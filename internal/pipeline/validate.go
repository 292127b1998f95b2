package pipeline

import (
	"fmt"

	"github.com/shopspring/decimal"

	"sellerbooks/internal"
	"sellerbooks/internal/logger"
)

// validate enforces the sign conventions and flags an implausible tax ratio.
// Corrections and flags are returned as warnings; values are only changed
// for sign errors.
func (e *Extractor) validate(platformID string, f internal.FinancialFigures) (internal.FinancialFigures, []string) {
	var warnings []string
	warn := func(msg string) {
		warnings = append(warnings, msg)
		logger.L.WithField("platform", platformID).Warn(msg)
	}

	if f.Income.IsNegative() {
		warn(fmt.Sprintf("income %s was negative, using its absolute value", f.Income.StringFixed(2)))
		f.Income = f.Income.Abs()
	}
	if f.Expenses.IsPositive() {
		warn(fmt.Sprintf("expenses %s were positive, negated", f.Expenses.StringFixed(2)))
		f.Expenses = f.Expenses.Neg()
	}
	if f.Tax.IsNegative() {
		warn(fmt.Sprintf("tax %s was negative, using its absolute value", f.Tax.StringFixed(2)))
		f.Tax = f.Tax.Abs()
	}

	limit := f.Income.Mul(e.settings.taxRatio())
	if f.Tax.GreaterThan(limit) {
		warn(fmt.Sprintf("tax %s exceeds %s of income %s", f.Tax.StringFixed(2), e.settings.taxRatio().String(), f.Income.StringFixed(2)))
	}
	return f, warnings
}

func (s Settings) taxRatio() decimal.Decimal {
	return decimal.NewFromFloat(s.TaxRatioWarn)
}

package internal

import "github.com/shopspring/decimal"

type Figure string

const (
	FigureIncome   Figure = "income"
	FigureExpenses Figure = "expenses"
	FigureTax      Figure = "tax"
)

// Figures lists the three tracked figures in worksheet order.
var Figures = []Figure{FigureIncome, FigureExpenses, FigureTax}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type InputFormat string

const (
	FormatPDF  InputFormat = "pdf"
	FormatXLSX InputFormat = "xlsx"
	FormatXLS  InputFormat = "xls"
	FormatCSV  InputFormat = "csv"
	FormatEML  InputFormat = "eml"
)

type FallbackReason string

const (
	FallbackNone           FallbackReason = ""
	FallbackNothingMatched FallbackReason = "nothing_matched"
	FallbackAllZero        FallbackReason = "all_zero"
	FallbackDecodeFailed   FallbackReason = "decode_failed"
	FallbackExtractorFault FallbackReason = "extractor_fault"
)

// FinancialFigures holds the three values of one report. Expenses are
// stored as a non-positive amount, Income and Tax as non-negative.
type FinancialFigures struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Tax      decimal.Decimal `json:"tax"`
}

func (f FinancialFigures) IsZero() bool {
	return f.Income.IsZero() && f.Expenses.IsZero() && f.Tax.IsZero()
}

func (f FinancialFigures) Get(fig Figure) decimal.Decimal {
	switch fig {
	case FigureIncome:
		return f.Income
	case FigureExpenses:
		return f.Expenses
	case FigureTax:
		return f.Tax
	}
	return decimal.Zero
}

func (f FinancialFigures) With(fig Figure, v decimal.Decimal) FinancialFigures {
	switch fig {
	case FigureIncome:
		f.Income = v
	case FigureExpenses:
		f.Expenses = v
	case FigureTax:
		f.Tax = v
	}
	return f
}

type ConfidenceSet struct {
	Income   Confidence `json:"income"`
	Expenses Confidence `json:"expenses"`
	Tax      Confidence `json:"tax"`
}

func UniformConfidence(c Confidence) ConfidenceSet {
	return ConfidenceSet{Income: c, Expenses: c, Tax: c}
}

func (c ConfidenceSet) Get(fig Figure) Confidence {
	switch fig {
	case FigureIncome:
		return c.Income
	case FigureExpenses:
		return c.Expenses
	case FigureTax:
		return c.Tax
	}
	return ConfidenceLow
}

func (c ConfidenceSet) With(fig Figure, v Confidence) ConfidenceSet {
	switch fig {
	case FigureIncome:
		c.Income = v
	case FigureExpenses:
		c.Expenses = v
	case FigureTax:
		c.Tax = v
	}
	return c
}

type ExtractionResult struct {
	PlatformID     string           `json:"platformId"`
	PlatformName   string           `json:"platformName"`
	CurrencyCode   string           `json:"currency"`
	Figures        FinancialFigures `json:"figures"`
	Confidence     ConfidenceSet    `json:"confidence"`
	UsedFallback   bool             `json:"usedFallback"`
	FallbackReason FallbackReason   `json:"fallbackReason,omitempty"`
	Warnings       []string         `json:"warnings,omitempty"`
}

type DocumentRow struct {
	ID        int
	Hash      string
	Name      string
	Format    string
	Platform  string
	Status    string
	CreatedAt string
}

type ExtractionRow struct {
	ID           int
	RunID        string
	DocumentID   int
	DocumentName string
	Result       ExtractionResult
	CreatedAt    string
}

package pipeline

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"sellerbooks/internal"
	"sellerbooks/internal/logger"
	"sellerbooks/internal/platform"
	"sellerbooks/internal/util"
)

// headerScanRows bounds the search for a header line; report exports carry
// a short preamble before it.
const headerScanRows = 50

type columnRole int

const (
	roleNone columnRole = iota
	roleIgnore
	roleIncome
	roleTax
	roleExpenses
)

// columnPlan lists the columns summed into each figure. header is -1 when
// the documented fixed positions are used.
type columnPlan struct {
	header   int
	income   []int
	tax      []int
	expenses []int
}

// accounting exports name their fields; headers are compared folded and
// with the leading "*" of required fields trimmed.
var (
	itemAmountHeaders = []string{"itemamount", "item amount"}
	itemTaxHeaders    = []string{"itemtaxamount", "item tax amount"}
)

func (e *Extractor) extractRows(p *platform.Profile, rows [][]string) scan {
	if acc, ok := namedFieldScan(p, rows); ok {
		return acc
	}

	plan := resolveColumns(rows, p.Tabular)
	log := logger.L.WithField("platform", p.ID)
	if plan.header < 0 {
		log.Debug("no header row found, using fixed column positions")
	} else {
		log.WithField("headerRow", plan.header).Debug("header row found")
	}

	acc := newScan(internal.ConfidenceHigh)
	if p.SkipTax {
		acc = acc.seed(internal.FigureTax, decimal.Zero, internal.ConfidenceHigh)
	}

	data := rows
	if plan.header >= 0 {
		data = rows[plan.header+1:]
	}
	// fixed positions only count when they actually hold amounts
	resolve := func(fig internal.Figure, cols []int) {
		if len(cols) == 0 {
			return
		}
		total, parsed := sumColumns(data, cols, p.NumberFormat)
		if parsed == 0 && plan.header < 0 {
			return
		}
		if fig == internal.FigureExpenses {
			// fee columns are negative in some exports and magnitudes in others
			total = total.Abs().Neg()
		}
		acc = acc.resolve(fig, total, internal.ConfidenceHigh)
	}
	resolve(internal.FigureIncome, plan.income)
	resolve(internal.FigureExpenses, plan.expenses)
	resolve(internal.FigureTax, plan.tax)
	return acc
}

func resolveColumns(rows [][]string, layout platform.TabularLayout) columnPlan {
	header := findHeaderRow(rows, layout.Markers)
	if header < 0 {
		return columnPlan{
			header:   -1,
			income:   layout.Fixed.Income,
			tax:      layout.Fixed.Tax,
			expenses: layout.Fixed.Expenses,
		}
	}

	plan := columnPlan{header: header}
	for col, cell := range rows[header] {
		switch classifyHeader(util.NormalizeHeader(cell), layout) {
		case roleIncome:
			plan.income = append(plan.income, col)
		case roleTax:
			plan.tax = append(plan.tax, col)
		case roleExpenses:
			plan.expenses = append(plan.expenses, col)
		}
	}
	return plan
}

func findHeaderRow(rows [][]string, markers []string) int {
	for i, row := range rows {
		if i >= headerScanRows {
			break
		}
		for _, cell := range row {
			if util.ContainsAny(util.NormalizeHeader(cell), markers) {
				return i
			}
		}
	}
	return -1
}

// classifyHeader gives the column to the role with the longest matching
// term; an exact match beats any substring match, so "product sales tax"
// is never read as "product sales".
func classifyHeader(h string, layout platform.TabularLayout) columnRole {
	if h == "" {
		return roleNone
	}
	best, bestScore := roleNone, 0
	consider := func(role columnRole, terms []string) {
		for _, term := range terms {
			score := 0
			switch {
			case h == term:
				score = len(term) + 1<<16
			case strings.Contains(h, term):
				score = len(term)
			}
			if score > bestScore {
				best, bestScore = role, score
			}
		}
	}
	consider(roleIgnore, layout.Ignore)
	consider(roleTax, layout.Tax)
	consider(roleExpenses, layout.Expenses)
	consider(roleIncome, layout.Income)
	if best == roleIgnore {
		return roleNone
	}
	return best
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// sumColumns adds every parsable cell of cols; parsed counts those cells.
func sumColumns(rows [][]string, cols []int, format util.NumberFormat) (total decimal.Decimal, parsed int) {
	total = decimal.Zero
	for _, row := range rows {
		for _, col := range cols {
			if v, ok := util.ParseAmount(cellAt(row, col), format); ok {
				total = total.Add(v)
				parsed++
			}
		}
	}
	return total, parsed
}

// namedFieldScan handles accounting exports with ItemAmount/ItemTaxAmount
// fields. It only claims the input when it yields a non-zero figure.
func namedFieldScan(p *platform.Profile, rows [][]string) (scan, bool) {
	for i, row := range rows {
		if i >= headerScanRows {
			break
		}
		amountCol, taxCol := -1, -1
		for col, cell := range row {
			h := util.NormalizeHeader(cell)
			switch {
			case amountCol < 0 && slices.Contains(itemAmountHeaders, h):
				amountCol = col
			case taxCol < 0 && slices.Contains(itemTaxHeaders, h):
				taxCol = col
			}
		}
		if amountCol < 0 && taxCol < 0 {
			continue
		}

		data := rows[i+1:]
		acc := newScan(internal.ConfidenceHigh)
		income, tax := decimal.Zero, decimal.Zero
		if amountCol >= 0 {
			income, _ = sumColumns(data, []int{amountCol}, p.NumberFormat)
			acc = acc.resolve(internal.FigureIncome, income, internal.ConfidenceHigh)
		}
		if p.SkipTax {
			acc = acc.seed(internal.FigureTax, decimal.Zero, internal.ConfidenceHigh)
		} else if taxCol >= 0 {
			tax, _ = sumColumns(data, []int{taxCol}, p.NumberFormat)
			acc = acc.resolve(internal.FigureTax, tax, internal.ConfidenceHigh)
		}
		if income.IsZero() && tax.IsZero() {
			return scan{}, false
		}
		return acc, true
	}
	return scan{}, false
}

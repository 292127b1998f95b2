// Package worksheet holds the bookkeeping grid that extraction results are
// written into: a "sales" and a "bills" table of Rows x Columns cells.
package worksheet

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"sellerbooks/internal"
	"sellerbooks/internal/platform"
)

const (
	Rows    = 30
	Columns = 14
)

// Tables in display order.
var Tables = []string{platform.TableSales, platform.TableBills}

type Cell struct {
	Text       string
	Value      decimal.Decimal
	Numeric    bool
	Bold       bool
	Classes    []string
	Platform   string
	Confidence internal.Confidence
	Label      bool
}

func (c Cell) Empty() bool {
	return c.Text == ""
}

type grid [Rows][Columns]Cell

// Worksheet is safe for concurrent use.
type Worksheet struct {
	mu     sync.RWMutex
	tables map[string]*grid
}

func New() *Worksheet {
	w := &Worksheet{}
	w.reset()
	return w
}

func (w *Worksheet) reset() {
	w.tables = make(map[string]*grid, len(Tables))
	for _, id := range Tables {
		w.tables[id] = &grid{}
	}
	labels := map[string][]struct {
		col  int
		text string
	}{
		platform.TableSales: {{0, "Platform"}, {10, "Income"}, {12, "Tax"}},
		platform.TableBills: {{0, "Platform"}, {9, "Expenses"}},
	}
	for id, row := range labels {
		for _, l := range row {
			w.tables[id][0][l.col] = Cell{Text: l.text, Bold: true, Label: true}
		}
	}
}

// Apply writes each tracked figure of result into its mapped cell and the
// marketplace name into the first column of the income row. Nothing is
// written when any mapped cell is invalid.
func (w *Worksheet) Apply(result internal.ExtractionResult, m platform.Mappings) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// every destination is checked before any cell is written
	slots := make(map[internal.Figure]*grid, len(internal.Figures))
	for _, fig := range internal.Figures {
		dst := m.For(fig)
		if !dst.Tracked() {
			continue
		}
		g, err := w.slot(dst)
		if err != nil {
			return fmt.Errorf("%s: %w", fig, err)
		}
		slots[fig] = g
	}

	for _, fig := range internal.Figures {
		g, ok := slots[fig]
		if !ok {
			continue
		}
		dst := m.For(fig)
		v := result.Figures.Get(fig)
		if dst.Table == platform.TableBills {
			v = v.Abs()
		}
		classes := []string{"value-cell", cssClass(fig), "confidence-" + string(result.Confidence.Get(fig))}
		if result.UsedFallback {
			classes = append(classes, "fallback")
		}
		g[dst.Row][dst.Column] = Cell{
			Text:       FormatValue(v, result.CurrencyCode),
			Value:      v,
			Numeric:    true,
			Classes:    classes,
			Platform:   result.PlatformName,
			Confidence: result.Confidence.Get(fig),
		}
	}

	if g, ok := slots[internal.FigureIncome]; ok {
		g[m.Income.Row][0] = Cell{Text: result.PlatformName, Bold: true, Platform: result.PlatformName}
	}
	return nil
}

func (w *Worksheet) slot(c platform.Cell) (*grid, error) {
	g, ok := w.tables[c.Table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", c.Table)
	}
	if c.Row < 0 || c.Row >= Rows || c.Column < 0 || c.Column >= Columns {
		return nil, fmt.Errorf("cell %s[%d,%d] is outside the %dx%d grid", c.Table, c.Row, c.Column, Rows, Columns)
	}
	return g, nil
}

// FormatValue renders an amount with two decimals and an optional currency.
func FormatValue(v decimal.Decimal, currency string) string {
	s := v.StringFixed(2)
	if currency != "" {
		s += " " + currency
	}
	return s
}

func cssClass(fig internal.Figure) string {
	if fig == internal.FigureExpenses {
		return "expense"
	}
	return string(fig)
}

func (w *Worksheet) Cell(table string, row, col int) (Cell, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	g, ok := w.tables[table]
	if !ok || row < 0 || row >= Rows || col < 0 || col >= Columns {
		return Cell{}, false
	}
	return g[row][col], true
}

// HasData reports whether any cell outside the label row holds a value.
func (w *Worksheet) HasData() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, g := range w.tables {
		for r := range g {
			for c := range g[r] {
				if !g[r][c].Empty() && !g[r][c].Label {
					return true
				}
			}
		}
	}
	return false
}

func (w *Worksheet) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reset()
}

// snapshot copies the grids so rendering runs without holding the lock.
func (w *Worksheet) snapshot() map[string]grid {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]grid, len(w.tables))
	for id, g := range w.tables {
		out[id] = *g
	}
	return out
}

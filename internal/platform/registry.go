package platform

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"sellerbooks/internal"
	"sellerbooks/internal/util"
)

// DefaultID is used for any marketplace id the registry does not know.
const DefaultID = "uk"

const (
	TableSales = "sales"
	TableBills = "bills"
	TableNone  = "none"

	defaultSectionSpan = 1000
)

//go:embed platforms.yaml
var embeddedProfiles []byte

type Cell struct {
	Table  string `yaml:"table" json:"table"`
	Row    int    `yaml:"row" json:"row"`
	Column int    `yaml:"column" json:"column"`
}

// Tracked reports whether the figure has a worksheet destination.
func (c Cell) Tracked() bool {
	return c.Table != "" && c.Table != TableNone
}

type Mappings struct {
	Income   Cell `yaml:"income" json:"income"`
	Expenses Cell `yaml:"expenses" json:"expenses"`
	Tax      Cell `yaml:"tax" json:"tax"`
}

func (m Mappings) For(fig internal.Figure) Cell {
	switch fig {
	case internal.FigureIncome:
		return m.Income
	case internal.FigureExpenses:
		return m.Expenses
	case internal.FigureTax:
		return m.Tax
	}
	return Cell{Table: TableNone}
}

// Terms are locale keywords per figure. After loading they hold folded text.
type Terms struct {
	Income   []string `yaml:"income"`
	Expenses []string `yaml:"expenses"`
	Tax      []string `yaml:"tax"`
}

func (t Terms) For(fig internal.Figure) []string {
	switch fig {
	case internal.FigureIncome:
		return t.Income
	case internal.FigureExpenses:
		return t.Expenses
	case internal.FigureTax:
		return t.Tax
	}
	return nil
}

func (t Terms) fold() Terms {
	return Terms{Income: util.FoldAll(t.Income), Expenses: util.FoldAll(t.Expenses), Tax: util.FoldAll(t.Tax)}
}

// Section bounds a region of report text: from Start up to End, or Span
// characters when End is empty or absent from the text.
type Section struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
	Span  int    `yaml:"span"`
}

type FixedColumns struct {
	Income   []int `yaml:"income"`
	Tax      []int `yaml:"tax"`
	Expenses []int `yaml:"expenses"`
}

// TabularLayout describes the marketplace's transaction export.
type TabularLayout struct {
	Markers  []string     `yaml:"markers"`
	Income   []string     `yaml:"income"`
	Tax      []string     `yaml:"tax"`
	Expenses []string     `yaml:"expenses"`
	Ignore   []string     `yaml:"ignore"`
	Fixed    FixedColumns `yaml:"fixed"`
}

// KnownTotal is a figure value historically reported by the marketplace;
// it is recognised verbatim in report text.
type KnownTotal struct {
	Figure internal.Figure `yaml:"figure"`
	Value  string          `yaml:"value"`
}

// ContextWords are locale-independent cue words for the keyword-context scan.
type ContextWords struct {
	Reinforce     []string `yaml:"reinforce"`
	Refund        []string `yaml:"refund"`
	Collected     []string `yaml:"collected"`
	ExpenseTotals []string `yaml:"expense_totals"`
}

type figuresDoc struct {
	Income   string `yaml:"income"`
	Expenses string `yaml:"expenses"`
	Tax      string `yaml:"tax"`
}

type Profile struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	Currency     string            `yaml:"currency"`
	Hints        []string          `yaml:"hints"`
	NumberFormat util.NumberFormat `yaml:"number_format"`
	SkipTax      bool              `yaml:"skip_tax"`
	Mappings     Mappings          `yaml:"mappings"`
	Terms        Terms             `yaml:"terms"`
	Sections     []Section         `yaml:"sections"`
	Tabular      TabularLayout     `yaml:"tabular"`
	KnownTotals  []KnownTotal      `yaml:"known_totals"`
	FallbackDoc  figuresDoc        `yaml:"fallback"`

	fallback internal.FinancialFigures
}

func (p *Profile) Fallback() internal.FinancialFigures {
	return p.fallback
}

type registryDoc struct {
	Context   ContextWords `yaml:"context"`
	Platforms []*Profile   `yaml:"platforms"`
}

// Registry holds the marketplace profiles. It is read-only once loaded.
type Registry struct {
	context  ContextWords
	profiles map[string]*Profile
	order    []string
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry built from the embedded profile table.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := Parse(embeddedProfiles)
		if err != nil {
			panic(fmt.Sprintf("embedded platforms.yaml: %v", err))
		}
		defaultRegistry = reg
	})
	return defaultRegistry
}

// Load returns the embedded registry, or the one in path when path is set.
func Load(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read platforms file: %w", err)
	}
	return Parse(blob)
}

func Parse(blob []byte) (*Registry, error) {
	var doc registryDoc
	if err := yaml.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("parse platforms: %w", err)
	}

	reg := &Registry{
		context: ContextWords{
			Reinforce:     util.FoldAll(doc.Context.Reinforce),
			Refund:        util.FoldAll(doc.Context.Refund),
			Collected:     util.FoldAll(doc.Context.Collected),
			ExpenseTotals: util.FoldAll(doc.Context.ExpenseTotals),
		},
		profiles: make(map[string]*Profile, len(doc.Platforms)),
	}

	for _, p := range doc.Platforms {
		if err := p.prepare(); err != nil {
			return nil, err
		}
		if _, dup := reg.profiles[p.ID]; dup {
			return nil, fmt.Errorf("platform %q defined twice", p.ID)
		}
		reg.profiles[p.ID] = p
		reg.order = append(reg.order, p.ID)
	}
	if _, ok := reg.profiles[DefaultID]; !ok {
		return nil, fmt.Errorf("platform %q is required", DefaultID)
	}
	return reg, nil
}

func (p *Profile) prepare() error {
	p.ID = strings.ToLower(strings.TrimSpace(p.ID))
	if p.ID == "" {
		return fmt.Errorf("platform without id")
	}
	if p.Name == "" {
		p.Name = p.ID
	}
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if len(p.Currency) != 3 {
		return fmt.Errorf("platform %s: currency %q is not an ISO 4217 code", p.ID, p.Currency)
	}
	switch p.NumberFormat {
	case "":
		p.NumberFormat = util.FormatDot
	case util.FormatDot, util.FormatComma:
	default:
		return fmt.Errorf("platform %s: unknown number format %q", p.ID, p.NumberFormat)
	}

	for _, fig := range internal.Figures {
		cell := p.Mappings.For(fig)
		switch cell.Table {
		case "", TableSales, TableBills, TableNone:
		default:
			return fmt.Errorf("platform %s: %s maps to unknown table %q", p.ID, fig, cell.Table)
		}
		if cell.Tracked() && (cell.Row < 0 || cell.Column < 0) {
			return fmt.Errorf("platform %s: %s has a negative cell coordinate", p.ID, fig)
		}
	}

	p.Terms = p.Terms.fold()
	p.Hints = util.FoldAll(p.Hints)
	for i := range p.Sections {
		p.Sections[i].Start = strings.TrimSpace(util.Fold(p.Sections[i].Start))
		p.Sections[i].End = strings.TrimSpace(util.Fold(p.Sections[i].End))
		if p.Sections[i].Span <= 0 {
			p.Sections[i].Span = defaultSectionSpan
		}
	}
	p.Tabular.Markers = util.FoldAll(p.Tabular.Markers)
	p.Tabular.Income = util.FoldAll(p.Tabular.Income)
	p.Tabular.Tax = util.FoldAll(p.Tabular.Tax)
	p.Tabular.Expenses = util.FoldAll(p.Tabular.Expenses)
	p.Tabular.Ignore = util.FoldAll(p.Tabular.Ignore)

	for _, kt := range p.KnownTotals {
		if _, err := decimal.NewFromString(kt.Value); err != nil {
			return fmt.Errorf("platform %s: known total %q: %w", p.ID, kt.Value, err)
		}
	}

	fb, err := parseFigures(p.FallbackDoc)
	if err != nil {
		return fmt.Errorf("platform %s fallback: %w", p.ID, err)
	}
	if p.SkipTax {
		fb.Tax = decimal.Zero
	}
	p.fallback = fb
	return nil
}

func parseFigures(doc figuresDoc) (internal.FinancialFigures, error) {
	var out internal.FinancialFigures
	for fig, raw := range map[internal.Figure]string{
		internal.FigureIncome:   doc.Income,
		internal.FigureExpenses: doc.Expenses,
		internal.FigureTax:      doc.Tax,
	} {
		if strings.TrimSpace(raw) == "" {
			raw = "0"
		}
		v, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return out, fmt.Errorf("%s: %w", fig, err)
		}
		out = out.With(fig, v)
	}
	out.Income = out.Income.Abs()
	out.Expenses = out.Expenses.Abs().Neg()
	out.Tax = out.Tax.Abs()
	return out, nil
}

// Lookup resolves a marketplace id; unknown ids fall back to DefaultID.
func (r *Registry) Lookup(id string) *Profile {
	if p, ok := r.profiles[strings.ToLower(strings.TrimSpace(id))]; ok {
		return p
	}
	return r.profiles[DefaultID]
}

func (r *Registry) Has(id string) bool {
	_, ok := r.profiles[strings.ToLower(strings.TrimSpace(id))]
	return ok
}

// IDs returns the marketplace ids in table order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Profiles() []*Profile {
	out := make([]*Profile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.profiles[id])
	}
	return out
}

func (r *Registry) Context() ContextWords {
	return r.context
}

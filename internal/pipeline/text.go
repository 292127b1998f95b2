package pipeline

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"sellerbooks/internal"
	"sellerbooks/internal/logger"
	"sellerbooks/internal/platform"
	"sellerbooks/internal/util"
)

const (
	// termNumberGap bounds how far after a section keyword its amount may sit.
	termNumberGap = 160
	// taxLookback is how far before a tax keyword an expense keyword marks
	// the tax mention as part of an expense line.
	taxLookback = 20
)

var lineKeywords = map[internal.Figure]*regexp.Regexp{
	internal.FigureIncome:   regexp.MustCompile(`income|sales|revenue`),
	internal.FigureExpenses: regexp.MustCompile(`expenses|costs|fees`),
	internal.FigureTax:      regexp.MustCompile(`tax|vat`),
}

// document is report text prepared once for every strategy.
type document struct {
	text    string
	profile *platform.Profile
	cues    platform.ContextWords
	window  int
	numbers []util.NumberInContext
}

type strategy struct {
	name string
	run  func(doc document, acc scan) scan
}

// textStrategies run in priority order; the first to resolve a figure wins.
var textStrategies = []strategy{
	{name: "known_totals", run: knownTotalsScan},
	{name: "section", run: sectionScan},
	{name: "context", run: contextScan},
	{name: "line", run: lineScan},
}

func (e *Extractor) newDocument(p *platform.Profile, raw string) document {
	folded := util.Fold(raw)
	return document{
		text:    folded,
		profile: p,
		cues:    e.registry.Context(),
		window:  e.settings.ContextWindow,
		numbers: util.ExtractWithContext(folded, e.settings.ContextWindow, p.NumberFormat),
	}
}

func (e *Extractor) extractText(p *platform.Profile, raw string) scan {
	doc := e.newDocument(p, raw)

	acc := newScan(internal.ConfidenceLow)
	if p.SkipTax {
		acc = acc.seed(internal.FigureTax, decimal.Zero, internal.ConfidenceHigh)
	}
	for _, s := range textStrategies {
		if acc.complete() {
			break
		}
		before := acc.hits
		acc = s.run(doc, acc)
		if acc.hits > before {
			logger.L.WithField("platform", p.ID).
				WithField("strategy", s.name).
				WithField("resolved", acc.hits-before).
				Debug("text strategy resolved figures")
		}
	}
	return acc
}

// plausibleAmount rejects bare integers that read like years.
func plausibleAmount(v decimal.Decimal) bool {
	if v.Exponent() < 0 {
		return true
	}
	a := v.Abs()
	return a.LessThan(decimal.NewFromInt(1900)) || a.GreaterThan(decimal.NewFromInt(2100))
}

func knownTotalsScan(doc document, acc scan) scan {
	for _, kt := range doc.profile.KnownTotals {
		if acc.done.has(kt.Figure) {
			continue
		}
		v, err := decimal.NewFromString(kt.Value)
		if err != nil {
			continue
		}
		grouped := util.FormatAmount(v, doc.profile.NumberFormat)
		plain := v.Abs().StringFixed(2)
		if doc.profile.NumberFormat == util.FormatComma {
			plain = strings.Replace(plain, ".", ",", 1)
		}
		if strings.Contains(doc.text, grouped) || strings.Contains(doc.text, plain) {
			acc = acc.resolve(kt.Figure, v, internal.ConfidenceHigh)
		}
	}
	return acc
}

func sectionScan(doc document, acc scan) scan {
	for _, sec := range doc.profile.Sections {
		if acc.complete() {
			break
		}
		body, ok := sectionText(doc.text, sec)
		if !ok {
			continue
		}
		for _, fig := range acc.pending() {
			v, ok := firstLabelledAmount(body, doc.profile.Terms.For(fig), doc.profile.NumberFormat)
			if !ok {
				continue
			}
			acc = acc.resolve(fig, orient(fig, v), internal.ConfidenceHigh)
		}
	}
	return acc
}

// sectionText cuts the region after the section anchor, up to the end
// anchor or Span bytes.
func sectionText(text string, sec platform.Section) (string, bool) {
	if sec.Start == "" {
		return "", false
	}
	at := strings.Index(text, sec.Start)
	if at < 0 {
		return "", false
	}
	from := at + len(sec.Start)
	rest := text[from:]
	if sec.End != "" {
		if end := strings.Index(rest, sec.End); end >= 0 {
			return rest[:end], true
		}
	}
	return clip(rest, sec.Span), true
}

// clip cuts s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

type termHit struct {
	at   int
	term string
}

func termHits(text string, terms []string) []termHit {
	var hits []termHit
	for _, term := range terms {
		if term == "" {
			continue
		}
		for from := 0; ; {
			i := strings.Index(text[from:], term)
			if i < 0 {
				break
			}
			hits = append(hits, termHit{at: from + i, term: term})
			from += i + len(term)
		}
	}
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hitBefore(hits[j], hits[j-1]); j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	return hits
}

func hitBefore(a, b termHit) bool {
	if a.at != b.at {
		return a.at < b.at
	}
	return len(a.term) > len(b.term)
}

// firstLabelledAmount finds the first keyword occurrence followed closely by
// a plausible amount.
func firstLabelledAmount(body string, terms []string, format util.NumberFormat) (decimal.Decimal, bool) {
	for _, hit := range termHits(body, terms) {
		after := clip(body[hit.at+len(hit.term):], termNumberGap)
		for _, v := range util.ExtractNumbers(after, format) {
			if plausibleAmount(v) {
				return v, true
			}
		}
	}
	return decimal.Zero, false
}

func contextScan(doc document, acc scan) scan {
	terms := doc.profile.Terms

	if !acc.done.has(internal.FigureIncome) {
		var best *util.NumberInContext
		for i := range doc.numbers {
			c := &doc.numbers[i]
			if !c.Value.IsPositive() || !plausibleAmount(c.Value) || !util.ContainsAny(c.Context, terms.Income) {
				continue
			}
			if best == nil || c.Value.GreaterThan(best.Value) {
				best = c
			}
		}
		if best != nil {
			conf := internal.ConfidenceMedium
			if util.ContainsWord(best.Context, doc.cues.Reinforce) {
				conf = internal.ConfidenceHigh
			}
			acc = acc.resolve(internal.FigureIncome, best.Value, conf)
		}
	}

	if !acc.done.has(internal.FigureExpenses) {
		var negative, positive *util.NumberInContext
		for i := range doc.numbers {
			c := &doc.numbers[i]
			if !plausibleAmount(c.Value) || !util.ContainsAny(c.Context, terms.Expenses) {
				continue
			}
			if util.ContainsWord(c.Context, doc.cues.Refund) {
				continue
			}
			switch {
			case c.Value.IsNegative():
				if negative == nil || c.Value.LessThan(negative.Value) {
					negative = c
				}
			case c.Value.IsPositive() && util.ContainsAny(c.Context, doc.cues.ExpenseTotals):
				if positive == nil || c.Value.GreaterThan(positive.Value) {
					positive = c
				}
			}
		}
		switch {
		case negative != nil:
			acc = acc.resolve(internal.FigureExpenses, negative.Value, internal.ConfidenceHigh)
		case positive != nil:
			acc = acc.resolve(internal.FigureExpenses, positive.Value.Neg(), internal.ConfidenceMedium)
		}
	}

	if !acc.done.has(internal.FigureTax) {
		var best *util.NumberInContext
		for i := range doc.numbers {
			c := &doc.numbers[i]
			if !c.Value.IsPositive() || !plausibleAmount(c.Value) {
				continue
			}
			label := doc.label(i)
			if !util.ContainsAny(label, terms.Tax) {
				continue
			}
			if util.ContainsWord(c.Context, doc.cues.Refund) || taxWithinExpense(label, terms.Tax, terms.Expenses) {
				continue
			}
			if best == nil || c.Value.GreaterThan(best.Value) {
				best = c
			}
		}
		if best != nil {
			conf := internal.ConfidenceMedium
			if util.ContainsWord(best.Context, doc.cues.Collected) {
				conf = internal.ConfidenceHigh
			}
			acc = acc.resolve(internal.FigureTax, best.Value, conf)
		}
	}
	return acc
}

// label is the text in front of number i, starting after the previous
// number and at most the context window long.
func (doc document) label(i int) string {
	n := doc.numbers[i]
	from := n.Start - doc.window
	if i > 0 && doc.numbers[i-1].End > from {
		from = doc.numbers[i-1].End
	}
	if from < 0 {
		from = 0
	}
	if from > n.Start {
		from = n.Start
	}
	for from < n.Start && !utf8.RuneStart(doc.text[from]) {
		from++
	}
	return doc.text[from:n.Start]
}

// taxWithinExpense reports whether every tax keyword in ctx is preceded
// closely by an expense keyword, as in "fees incl. tax".
func taxWithinExpense(ctx string, taxTerms, expenseTerms []string) bool {
	hits := termHits(ctx, taxTerms)
	if len(hits) == 0 {
		return false
	}
	for _, hit := range hits {
		from := hit.at - taxLookback
		if from < 0 {
			from = 0
		}
		for from < hit.at && !utf8.RuneStart(ctx[from]) {
			from++
		}
		if !util.ContainsAny(ctx[from:hit.at], expenseTerms) {
			return false
		}
	}
	return true
}

func lineScan(doc document, acc scan) scan {
	lines := util.SplitLines(doc.text)
	for _, fig := range acc.pending() {
		terms := doc.profile.Terms.For(fig)
		for _, line := range lines {
			if !lineKeywords[fig].MatchString(line) && !util.ContainsAny(line, terms) {
				continue
			}
			values := make([]decimal.Decimal, 0, 4)
			for _, v := range util.ExtractNumbers(line, doc.profile.NumberFormat) {
				if plausibleAmount(v) {
					values = append(values, v)
				}
			}
			if len(values) == 0 {
				continue
			}
			if fig == internal.FigureExpenses {
				if low := util.MinOf(values); low.IsNegative() {
					acc = acc.resolve(fig, low, internal.ConfidenceLow)
					break
				}
				acc = acc.resolve(fig, util.MaxOf(values).Neg(), internal.ConfidenceLow)
				break
			}
			if high := util.MaxOf(values); high.IsPositive() {
				acc = acc.resolve(fig, high, internal.ConfidenceLow)
				break
			}
		}
	}
	return acc
}

package pipeline

import (
	"github.com/shopspring/decimal"

	"sellerbooks/internal"
)

type figureSet uint8

func figureBit(fig internal.Figure) figureSet {
	switch fig {
	case internal.FigureIncome:
		return 1
	case internal.FigureExpenses:
		return 2
	case internal.FigureTax:
		return 4
	}
	return 0
}

func (s figureSet) has(fig internal.Figure) bool { return s&figureBit(fig) != 0 }

// scan is the accumulator threaded through the extraction strategies.
// A figure, once resolved, is never overwritten.
type scan struct {
	figures    internal.FinancialFigures
	confidence internal.ConfidenceSet
	done       figureSet
	// hits counts figures resolved from document content, not seeded.
	hits int
}

func newScan(base internal.Confidence) scan {
	return scan{confidence: internal.UniformConfidence(base)}
}

func (s scan) resolve(fig internal.Figure, v decimal.Decimal, c internal.Confidence) scan {
	if s.done.has(fig) {
		return s
	}
	s.figures = s.figures.With(fig, v)
	s.confidence = s.confidence.With(fig, c)
	s.done |= figureBit(fig)
	s.hits++
	return s
}

// seed resolves a figure from profile data rather than document content.
func (s scan) seed(fig internal.Figure, v decimal.Decimal, c internal.Confidence) scan {
	hits := s.hits
	s = s.resolve(fig, v, c)
	s.hits = hits
	return s
}

func (s scan) pending() []internal.Figure {
	out := make([]internal.Figure, 0, len(internal.Figures))
	for _, fig := range internal.Figures {
		if !s.done.has(fig) {
			out = append(out, fig)
		}
	}
	return out
}

func (s scan) complete() bool {
	return len(s.pending()) == 0
}

// orient applies the sign convention of a figure found next to its label,
// where the label already says which figure the magnitude belongs to.
func orient(fig internal.Figure, v decimal.Decimal) decimal.Decimal {
	if fig == internal.FigureExpenses {
		return v.Abs().Neg()
	}
	return v.Abs()
}

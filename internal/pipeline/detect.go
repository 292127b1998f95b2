package pipeline

import (
	"strings"

	"sellerbooks/internal/platform"
	"sellerbooks/internal/util"
)

// AutoPlatform asks the intake to pick the marketplace from the document.
const AutoPlatform = "auto"

type DetectResult struct {
	PlatformID string
	Score      float64
	Reason     string
}

// DetectPlatform scores every marketplace profile against report text and
// returns the best match, or the default marketplace when nothing fits.
func DetectPlatform(reg *platform.Registry, text string) DetectResult {
	folded := util.Fold(text)

	best := DetectResult{PlatformID: platform.DefaultID, Reason: "rules_negative"}
	for _, p := range reg.Profiles() {
		score := 0.0
		for _, hint := range p.Hints {
			if strings.Contains(folded, hint) {
				score += 0.5
			}
		}
		for _, sec := range p.Sections {
			if sec.Start != "" && strings.Contains(folded, sec.Start) {
				score += 0.2
			}
		}
		for _, terms := range [][]string{p.Terms.Income, p.Terms.Expenses, p.Terms.Tax} {
			for _, term := range terms {
				if strings.Contains(folded, term) {
					score += 0.1
				}
			}
		}
		if util.ContainsAny(folded, p.Tabular.Markers) {
			score += 0.3
		}
		if strings.Contains(folded, strings.ToLower(p.Currency)) {
			score += 0.2
		}
		if score > best.Score {
			best = DetectResult{PlatformID: p.ID, Score: score, Reason: "rules_positive"}
		}
	}
	return best
}

// DetectPlatformRows runs DetectPlatform over the first rows of a sheet.
func DetectPlatformRows(reg *platform.Registry, rows [][]string) DetectResult {
	if len(rows) > headerScanRows {
		rows = rows[:headerScanRows]
	}
	return DetectPlatform(reg, rowsText(rows))
}

// DetectReportFormat labels the report shape for logging.
func DetectReportFormat(text string) string {
	folded := util.Fold(text)
	switch {
	case strings.Contains(folded, "summaries") && strings.Contains(folded, "transfers"):
		return "statement_summary"
	case strings.Contains(folded, "summary"):
		return "summary"
	case strings.Contains(folded, "product sales") || strings.Contains(folded, "date/time"):
		return "transaction_view"
	case strings.Contains(folded, "itemamount"):
		return "accounting_export"
	}
	return "unknown"
}

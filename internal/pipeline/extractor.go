package pipeline

import (
	"fmt"

	"sellerbooks/internal"
	"sellerbooks/internal/config"
	"sellerbooks/internal/logger"
	"sellerbooks/internal/platform"
)

type Settings struct {
	// ContextWindow is the number of bytes kept on each side of a number
	// in the keyword-context scan.
	ContextWindow int
	// TaxRatioWarn flags tax above this share of income.
	TaxRatioWarn float64
}

func DefaultSettings() Settings {
	return Settings{ContextWindow: 30, TaxRatioWarn: 0.25}
}

func SettingsFromConfig(cfg config.Config) Settings {
	s := DefaultSettings()
	if cfg.ContextWindow > 0 {
		s.ContextWindow = cfg.ContextWindow
	}
	if cfg.TaxRatioWarn > 0 {
		s.TaxRatioWarn = cfg.TaxRatioWarn
	}
	return s
}

// Extractor turns report text or rows into an ExtractionResult. It holds no
// per-call state and is safe for concurrent use.
type Extractor struct {
	registry *platform.Registry
	settings Settings
}

func NewExtractor(registry *platform.Registry, settings Settings) *Extractor {
	if settings.ContextWindow <= 0 {
		settings.ContextWindow = DefaultSettings().ContextWindow
	}
	if settings.TaxRatioWarn <= 0 {
		settings.TaxRatioWarn = DefaultSettings().TaxRatioWarn
	}
	return &Extractor{registry: registry, settings: settings}
}

func (e *Extractor) Registry() *platform.Registry {
	return e.registry
}

// FromPDFText extracts figures from the concatenated text layer of a report.
func (e *Extractor) FromPDFText(text, platformID string) (result internal.ExtractionResult) {
	p := e.registry.Lookup(platformID)
	defer e.guard(p.ID, &result)
	return e.finish(p, e.extractText(p, text))
}

// FromTabularRows extracts figures from decoded spreadsheet or CSV rows.
func (e *Extractor) FromTabularRows(rows [][]string, platformID string) (result internal.ExtractionResult) {
	p := e.registry.Lookup(platformID)
	defer e.guard(p.ID, &result)
	return e.finish(p, e.extractRows(p, rows))
}

// FallbackFor exposes the canned record, e.g. for undecodable input.
func (e *Extractor) FallbackFor(platformID string, reason internal.FallbackReason) internal.ExtractionResult {
	return e.registry.FallbackFor(platformID, reason)
}

// guard turns a panic inside a heuristic into the flagged fallback record.
func (e *Extractor) guard(platformID string, result *internal.ExtractionResult) {
	r := recover()
	if r == nil {
		return
	}
	logger.L.WithField("platform", platformID).
		WithField("panic", fmt.Sprint(r)).
		Error("extraction failed, using fallback figures")
	*result = e.registry.FallbackFor(platformID, internal.FallbackExtractorFault)
}

func (e *Extractor) finish(p *platform.Profile, acc scan) internal.ExtractionResult {
	figures, warnings := e.validate(p.ID, acc.figures)

	if figures.IsZero() {
		reason := internal.FallbackAllZero
		if acc.hits == 0 {
			reason = internal.FallbackNothingMatched
		}
		logger.L.WithField("platform", p.ID).
			WithField("reason", string(reason)).
			Warn("no usable figures found, using fallback figures")
		return e.registry.FallbackFor(p.ID, reason)
	}

	return internal.ExtractionResult{
		PlatformID:   p.ID,
		PlatformName: p.Name,
		CurrencyCode: p.Currency,
		Figures:      figures,
		Confidence:   acc.confidence,
		Warnings:     warnings,
	}
}

package platform

import "sellerbooks/internal"

// FallbackFor returns the canned record for a marketplace, flagged so the
// caller can warn that no real figures were found.
func (r *Registry) FallbackFor(id string, reason internal.FallbackReason) internal.ExtractionResult {
	p := r.Lookup(id)
	if reason == internal.FallbackNone {
		reason = internal.FallbackNothingMatched
	}
	return internal.ExtractionResult{
		PlatformID:     p.ID,
		PlatformName:   p.Name,
		CurrencyCode:   p.Currency,
		Figures:        p.Fallback(),
		Confidence:     internal.UniformConfidence(internal.ConfidenceLow),
		UsedFallback:   true,
		FallbackReason: reason,
	}
}

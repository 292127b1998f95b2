package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sellerbooks/internal"
	"sellerbooks/internal/logger"
)

// Outcome is one decoded and extracted report.
type Outcome struct {
	Name         string                    `json:"name"`
	Format       internal.InputFormat      `json:"format"`
	ReportFormat string                    `json:"reportFormat"`
	Result       internal.ExtractionResult `json:"result"`
}

// ExtractDocument decodes a report blob and extracts its figures. platformID
// may be AutoPlatform. Unsupported formats are returned as errors; a report
// that cannot be decoded yields the flagged fallback record.
func (e *Extractor) ExtractDocument(name string, blob []byte, platformID string) (Outcome, error) {
	format, err := DetectFormat(name, blob)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Name: name, Format: format}
	log := logger.L.WithField("document", name).WithField("format", string(format))

	doc, err := Decode(name, blob)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			return Outcome{}, err
		}
		id := e.resolvePlatform(platformID, Decoded{})
		log.WithError(err).WithField("platform", id).Warn("decode failed, using fallback figures")
		out.ReportFormat = "unknown"
		out.Result = e.registry.FallbackFor(id, internal.FallbackDecodeFailed)
		out.Result.Warnings = append(out.Result.Warnings, fmt.Sprintf("decode failed: %v", err))
		return out, nil
	}

	id := e.resolvePlatform(platformID, doc)
	if doc.Tabular() {
		out.ReportFormat = DetectReportFormat(rowsText(doc.Rows))
		out.Result = e.FromTabularRows(doc.Rows, id)
	} else {
		out.ReportFormat = DetectReportFormat(doc.Text)
		out.Result = e.FromPDFText(doc.Text, id)
	}
	log.WithField("platform", out.Result.PlatformID).
		WithField("reportFormat", out.ReportFormat).
		WithField("fallback", out.Result.UsedFallback).
		Info("report extracted")
	return out, nil
}

// ExtractFile reads a report from disk and runs ExtractDocument.
func (e *Extractor) ExtractFile(path, platformID string) (Outcome, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Outcome{}, err
	}
	return e.ExtractDocument(filepath.Base(path), blob, platformID)
}

func (e *Extractor) resolvePlatform(platformID string, doc Decoded) string {
	if !strings.EqualFold(strings.TrimSpace(platformID), AutoPlatform) {
		return e.registry.Lookup(platformID).ID
	}
	var d DetectResult
	switch {
	case doc.Text != "":
		d = DetectPlatform(e.registry, doc.Text)
	case len(doc.Rows) > 0:
		d = DetectPlatformRows(e.registry, doc.Rows)
	default:
		return e.registry.Lookup("").ID
	}
	logger.L.WithField("platform", d.PlatformID).
		WithField("score", d.Score).
		WithField("reason", d.Reason).
		Debug("marketplace detected")
	return d.PlatformID
}

package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"sellerbooks/internal"
	"sellerbooks/internal/logger"
	"sellerbooks/internal/storage"
	"sellerbooks/internal/worksheet"
)

// ProcessingService runs reports through extraction, records them in the
// run log and writes the figures into the worksheet. db may be nil when the
// run log is disabled.
type ProcessingService struct {
	extractor *Extractor
	db        *storage.DB
	sheet     *worksheet.Worksheet
}

func NewProcessingService(extractor *Extractor, db *storage.DB, sheet *worksheet.Worksheet) *ProcessingService {
	if sheet == nil {
		sheet = worksheet.New()
	}
	return &ProcessingService{extractor: extractor, db: db, sheet: sheet}
}

type ProcessResult struct {
	RunID      string  `json:"runId"`
	DocumentID int     `json:"documentId,omitempty"`
	Hash       string  `json:"hash"`
	Outcome    Outcome `json:"outcome"`
}

func (s *ProcessingService) Worksheet() *worksheet.Worksheet {
	return s.sheet
}

func (s *ProcessingService) ProcessFile(path, platformID string) (ProcessResult, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessDocument(filepath.Base(path), blob, platformID)
}

func (s *ProcessingService) ProcessDocument(name string, blob []byte, platformID string) (ProcessResult, error) {
	start := time.Now()
	res := ProcessResult{RunID: uuid.NewString(), Hash: ContentHash(blob)}

	outcome, err := s.extractor.ExtractDocument(name, blob, platformID)
	if err != nil {
		return res, err
	}
	res.Outcome = outcome
	result := outcome.Result

	if err := s.ApplyResult(result); err != nil {
		return res, err
	}

	if s.db != nil {
		doc, err := s.db.UpsertDocument(res.Hash, name, string(outcome.Format), result.PlatformID, "received")
		if err != nil {
			return res, err
		}
		res.DocumentID = doc.ID
		if _, err := s.db.InsertExtraction(res.RunID, doc.ID, result); err != nil {
			return res, err
		}
		if err := s.db.UpdateDocumentStatus(doc.ID, documentStatus(result)); err != nil {
			return res, err
		}
	}

	logger.L.WithField("runId", res.RunID).
		WithField("document", name).
		WithField("platform", result.PlatformID).
		WithField("income", result.Figures.Income.StringFixed(2)).
		WithField("expenses", result.Figures.Expenses.StringFixed(2)).
		WithField("tax", result.Figures.Tax.StringFixed(2)).
		WithField("fallback", result.UsedFallback).
		WithField("totalMs", time.Since(start).Milliseconds()).
		Info("report processed")
	return res, nil
}

// ApplyResult writes an extraction into the worksheet cells of its platform.
func (s *ProcessingService) ApplyResult(result internal.ExtractionResult) error {
	profile := s.extractor.Registry().Lookup(result.PlatformID)
	return s.sheet.Apply(result, profile.Mappings)
}

// AlreadyProcessed reports whether the run log has seen this content.
func (s *ProcessingService) AlreadyProcessed(hash string) (bool, error) {
	if s.db == nil {
		return false, nil
	}
	return s.db.IsProcessed(hash)
}

func documentStatus(res internal.ExtractionResult) string {
	if res.UsedFallback {
		return "fallback"
	}
	return "processed"
}

func ContentHash(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

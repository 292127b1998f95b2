package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sellerbooks/internal/config"
	"sellerbooks/internal/logger"
	"sellerbooks/internal/mailbox"
	"sellerbooks/internal/pipeline"
	"sellerbooks/internal/platform"
)

// WorksheetFile is the export written after each cycle that processed reports.
const WorksheetFile = "worksheet.xlsx"

// Service polls a directory for seller reports and runs each new file
// through the processing service once.
type Service struct {
	proc     *pipeline.ProcessingService
	registry *platform.Registry
	cfg      config.Config
	mail     *mailbox.Fetcher
	seen     map[string]struct{}
}

func NewService(proc *pipeline.ProcessingService, registry *platform.Registry, cfg config.Config) *Service {
	return &Service{proc: proc, registry: registry, cfg: cfg, seen: map[string]struct{}{}}
}

// WithMailbox makes each cycle pull report emails into the inbox first.
func (s *Service) WithMailbox(f *mailbox.Fetcher) *Service {
	s.mail = f
	return s
}

type CycleResult struct {
	Scanned   int
	Processed int
	Skipped   int
	Failed    int
}

func (s *Service) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.InboxDir, 0o755); err != nil {
		return err
	}
	interval := time.Duration(s.cfg.InboxIntervalSec) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	for {
		if _, err := s.RunCycle(ctx); err != nil {
			logger.L.WithError(err).Error("inbox cycle failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RunCycle processes every report in the inbox not seen before.
func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	var res CycleResult
	if s.mail != nil {
		fetched, err := s.mail.FetchAndStore(ctx)
		if err != nil {
			logger.L.WithError(err).Warn("mailbox fetch failed")
		} else if fetched.Fetched > 0 {
			logger.L.WithField("fetched", fetched.Fetched).
				WithField("stored", fetched.Stored).
				Info("mailbox fetched")
		}
	}

	entries, err := os.ReadDir(s.cfg.InboxDir)
	if err != nil {
		return res, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		res.Scanned++

		path := filepath.Join(s.cfg.InboxDir, entry.Name())
		log := logger.L.WithField("file", entry.Name())
		blob, err := os.ReadFile(path)
		if err != nil {
			log.WithError(err).Warn("cannot read inbox file")
			res.Failed++
			continue
		}

		hash := pipeline.ContentHash(blob)
		if s.isSeen(hash) {
			res.Skipped++
			continue
		}

		platformID := s.platformFor(entry.Name())
		if _, err := s.proc.ProcessDocument(entry.Name(), blob, platformID); err != nil {
			if errors.Is(err, pipeline.ErrUnsupportedFormat) {
				log.Debug("ignoring unsupported file")
				s.seen[hash] = struct{}{}
				res.Skipped++
				continue
			}
			log.WithError(err).Error("processing failed")
			res.Failed++
			continue
		}
		s.seen[hash] = struct{}{}
		res.Processed++
	}

	if res.Processed > 0 && s.cfg.InboxAutoExport {
		out := filepath.Join(s.cfg.OutputDir, WorksheetFile)
		if err := s.proc.Worksheet().ExportXLSX(out); err != nil {
			return res, err
		}
		logger.L.WithField("path", out).Info("worksheet exported")
	}

	logger.L.WithField("scanned", res.Scanned).
		WithField("processed", res.Processed).
		WithField("skipped", res.Skipped).
		WithField("failed", res.Failed).
		Info("inbox cycle done")
	return res, nil
}

func (s *Service) isSeen(hash string) bool {
	if _, ok := s.seen[hash]; ok {
		return true
	}
	done, err := s.proc.AlreadyProcessed(hash)
	if err != nil {
		logger.L.WithError(err).Warn("run log lookup failed")
		return false
	}
	if done {
		s.seen[hash] = struct{}{}
	}
	return done
}

// platformFor reads the marketplace from a filename prefix such as
// "uk_2024-03.pdf", else uses the configured inbox platform.
func (s *Service) platformFor(name string) string {
	if prefix, _, ok := strings.Cut(strings.ToLower(name), "_"); ok && s.registry.Has(prefix) {
		return prefix
	}
	if s.cfg.InboxPlatform != "" {
		return s.cfg.InboxPlatform
	}
	return pipeline.AutoPlatform
}

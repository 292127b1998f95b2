package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"sellerbooks/internal/config"
	"sellerbooks/internal/inbox"
	"sellerbooks/internal/logger"
	"sellerbooks/internal/pipeline"
	"sellerbooks/internal/platform"
	"sellerbooks/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	must(cfg.Require("INBOX_DIR", cfg.InboxDir))

	registry := platform.Default()
	if strings.TrimSpace(cfg.PlatformsFile) != "" {
		registry, err = platform.Load(cfg.PlatformsFile)
		must(err)
	}

	var db *storage.DB
	if strings.TrimSpace(cfg.DBPath) != "" {
		db, err = storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mail, err := inbox.MailFetcher(ctx, cfg)
	must(err)
	proc := pipeline.NewProcessingService(pipeline.NewExtractor(registry, pipeline.SettingsFromConfig(cfg)), db, nil)
	svc := inbox.NewService(proc, registry, cfg).WithMailbox(mail)

	logger.L.WithField("dir", cfg.InboxDir).
		WithField("mailProvider", cfg.MailProvider).
		Info("inbox watcher started")
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"sellerbooks/internal/config"
	"sellerbooks/internal/inbox"
	"sellerbooks/internal/logger"
	"sellerbooks/internal/pipeline"
	"sellerbooks/internal/platform"
	"sellerbooks/internal/server"
	"sellerbooks/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logger.InitTo(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	registry, err := loadRegistry(cfg)
	must(err)
	extractor := pipeline.NewExtractor(registry, pipeline.SettingsFromConfig(cfg))

	cmd := os.Args[1]
	switch cmd {
	case "platforms":
		for _, p := range registry.Profiles() {
			tax := "tracked"
			if p.SkipTax {
				tax = "not tracked"
			}
			fmt.Printf("%-6s %-4s %-28s tax %s\n", p.ID, p.Currency, p.Name, tax)
		}
	case "extract":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "report file (pdf|xlsx|xls|csv|eml)")
		platformID := fs.String("platform", cfg.DefaultPlatform, "marketplace id or auto")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		out, err := extractor.ExtractFile(*input, strings.ToLower(*platformID))
		must(err)
		printJSON(out)
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		platformID := fs.String("platform", cfg.DefaultPlatform, "marketplace id or auto")
		output := fs.String("output", filepath.Join(cfg.OutputDir, inbox.WorksheetFile), "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if fs.NArg() == 0 {
			must(fmt.Errorf("at least one report file is required"))
		}

		db := openRunLog(cfg)
		if db != nil {
			defer db.Close()
		}
		proc := pipeline.NewProcessingService(extractor, db, nil)
		for _, path := range fs.Args() {
			res, err := proc.ProcessFile(path, strings.ToLower(*platformID))
			must(err)
			r := res.Outcome.Result
			fmt.Printf("%s platform=%s income=%s expenses=%s tax=%s fallback=%t\n",
				res.Outcome.Name, r.PlatformID,
				r.Figures.Income.StringFixed(2), r.Figures.Expenses.StringFixed(2), r.Figures.Tax.StringFixed(2),
				r.UsedFallback)
		}
		must(proc.Worksheet().ExportXLSX(*output))
		fmt.Printf("run done reports=%d output=%s\n", fs.NArg(), *output)
	case "history":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "number of runs")
		_ = fs.Parse(os.Args[2:])
		must(cfg.Require("DB_PATH", cfg.DBPath))
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		rows, err := db.ListExtractions(*limit)
		must(err)
		for _, row := range rows {
			r := row.Result
			fmt.Printf("%s %s %s platform=%s income=%s expenses=%s tax=%s fallback=%t\n",
				row.CreatedAt, row.RunID, row.DocumentName, r.PlatformID,
				r.Figures.Income.StringFixed(2), r.Figures.Expenses.StringFixed(2), r.Figures.Tax.StringFixed(2),
				r.UsedFallback)
		}
	case "serve":
		db := openRunLog(cfg)
		if db != nil {
			defer db.Close()
		}
		proc := pipeline.NewProcessingService(extractor, db, nil)
		srv := server.New(proc, registry, db, cfg)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		must(srv.Run(ctx))
	case "watch":
		db := openRunLog(cfg)
		if db != nil {
			defer db.Close()
		}
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		mail, err := inbox.MailFetcher(ctx, cfg)
		must(err)
		proc := pipeline.NewProcessingService(extractor, db, nil)
		svc := inbox.NewService(proc, registry, cfg).WithMailbox(mail)
		must(svc.Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

func loadRegistry(cfg config.Config) (*platform.Registry, error) {
	if strings.TrimSpace(cfg.PlatformsFile) == "" {
		return platform.Default(), nil
	}
	return platform.Load(cfg.PlatformsFile)
}

// openRunLog returns nil when DB_PATH is empty.
func openRunLog(cfg config.Config) *storage.DB {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil
	}
	db, err := storage.Open(cfg.DBPath)
	must(err)
	return db
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	must(enc.Encode(v))
}

func usage() {
	fmt.Println("usage: sellerbooks <command>")
	fmt.Println("commands:")
	fmt.Println("  platforms")
	fmt.Println("  extract --input=report.pdf [--platform=uk|auto]")
	fmt.Println("  run [--platform=uk|auto] [--output=./out/worksheet.xlsx] report1.pdf report2.csv ...")
	fmt.Println("  history [--limit=20]")
	fmt.Println("  serve")
	fmt.Println("  watch")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

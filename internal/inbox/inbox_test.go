package inbox

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sellerbooks/internal/config"
	"sellerbooks/internal/mailbox"
	"sellerbooks/internal/pipeline"
	"sellerbooks/internal/platform"
	"sellerbooks/internal/storage"
)

func newService(t *testing.T, withDB bool) (*Service, config.Config) {
	t.Helper()
	tmp := t.TempDir()
	cfg := config.Config{
		OutputDir:        filepath.Join(tmp, "out"),
		InboxDir:         filepath.Join(tmp, "inbox"),
		InboxPlatform:    pipeline.AutoPlatform,
		InboxIntervalSec: 1,
		InboxAutoExport:  true,
	}
	if err := os.MkdirAll(cfg.InboxDir, 0o755); err != nil {
		t.Fatal(err)
	}

	var db *storage.DB
	if withDB {
		var err error
		db, err = storage.Open(filepath.Join(tmp, "app.db"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = db.Close() })
	}

	reg := platform.Default()
	proc := pipeline.NewProcessingService(pipeline.NewExtractor(reg, pipeline.DefaultSettings()), db, nil)
	return NewService(proc, reg, cfg), cfg
}

func drop(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const ukReport = "date/time,type,product sales,selling fees\n" +
	"01/03/2024,Order,250.00,-25.00\n"

func TestRunCycleProcessesNewFilesOnce(t *testing.T) {
	svc, cfg := newService(t, true)
	drop(t, cfg.InboxDir, "uk_2024-03.csv", ukReport)
	drop(t, cfg.InboxDir, "notes.docx", "not a report")
	drop(t, cfg.InboxDir, ".hidden.csv", ukReport)

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleResult{Scanned: 2, Processed: 1, Skipped: 1}, res)

	out := filepath.Join(cfg.OutputDir, WorksheetFile)
	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	income, err := f.GetCellValue("Sales", "L9", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "250", income)

	res, err = svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, 2, res.Skipped)
}

func TestRunCycleUsesRunLogAcrossRestarts(t *testing.T) {
	svc, cfg := newService(t, true)
	drop(t, cfg.InboxDir, "uk_2024-03.csv", ukReport)

	_, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	// a fresh service over the same run log must not re-process
	restarted := NewService(svc.proc, svc.registry, cfg)
	res, err := restarted.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, 1, res.Skipped)
}

func TestRunCycleMissingDir(t *testing.T) {
	svc, cfg := newService(t, false)
	require.NoError(t, os.RemoveAll(cfg.InboxDir))
	_, err := svc.RunCycle(context.Background())
	assert.Error(t, err)
}

func TestPlatformFor(t *testing.T) {
	svc, _ := newService(t, false)
	cases := map[string]string{
		"uk_2024-03.pdf":   "uk",
		"DE_bericht.csv":   "de",
		"bandq_orders.xls": "bandq",
		"zz_unknown.pdf":   pipeline.AutoPlatform,
		"statement.pdf":    pipeline.AutoPlatform,
	}
	for name, want := range cases {
		if got := svc.platformFor(name); got != want {
			t.Fatalf("platformFor(%q)=%q want %q", name, got, want)
		}
	}

	svc.cfg.InboxPlatform = "fr"
	if got := svc.platformFor("statement.pdf"); got != "fr" {
		t.Fatalf("configured platform not used, got %q", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, _ := newService(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, svc.Run(ctx))
}

func TestMailFetcherSelection(t *testing.T) {
	f, err := MailFetcher(context.Background(), config.Config{})
	require.NoError(t, err)
	assert.Nil(t, f)

	_, err = MailFetcher(context.Background(), config.Config{MailProvider: "pop3"})
	assert.EqualError(t, err, "unsupported mail provider: pop3")

	_, err = MailFetcher(context.Background(), config.Config{MailProvider: "imap"})
	assert.Error(t, err)

	f, err = MailFetcher(context.Background(), config.Config{
		MailProvider: "imap", IMAPHost: "imap.example.com", IMAPUser: "u", IMAPPassword: "p",
	})
	require.NoError(t, err)
	assert.NotNil(t, f)
}

type stubSource struct{ raw []byte }

func (s stubSource) FetchReports(context.Context, string, int) ([]mailbox.Message, error) {
	return []mailbox.Message{{Provider: "imap", MessageID: "m1", Raw: s.raw}}, nil
}

func TestRunCycleProcessesSpooledMail(t *testing.T) {
	svc, cfg := newService(t, false)
	part, err := enmime.Builder().
		From("Seller Central", "reports@example.com").
		To("Books", "books@example.com").
		Subject("March report").
		Text([]byte("Report attached.")).
		AddAttachment([]byte(ukReport), "text/csv", "uk_report.csv").
		Build()
	require.NoError(t, err)
	var raw bytes.Buffer
	require.NoError(t, part.Encode(&raw))

	svc.cfg.InboxPlatform = "uk"
	svc.WithMailbox(mailbox.NewFetcher(stubSource{raw: raw.Bytes()}, mailbox.NewSpool(cfg.InboxDir), "INBOX", 5))

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	cell, ok := svc.proc.Worksheet().Cell(platform.TableSales, 7, 10)
	require.True(t, ok)
	assert.Equal(t, "250.00 GBP", cell.Text)
}

package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONTEXT_WINDOW", "")
	t.Setenv("INBOX_PLATFORM", "AUTO")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ContextWindow != 30 {
		t.Fatalf("window=%d", cfg.ContextWindow)
	}
	if cfg.TaxRatioWarn != 0.25 {
		t.Fatalf("ratio=%v", cfg.TaxRatioWarn)
	}
	if cfg.InboxPlatform != "auto" {
		t.Fatalf("platform=%s", cfg.InboxPlatform)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CONTEXT_WINDOW", "45")
	t.Setenv("INBOX_AUTO_EXPORT", "off")
	t.Setenv("SERVER_PORT", "not-a-port")
	t.Setenv("MAIL_PROVIDER", "IMAP")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ContextWindow != 45 {
		t.Fatalf("window=%d", cfg.ContextWindow)
	}
	if cfg.InboxAutoExport {
		t.Fatal("auto export should be off")
	}
	if cfg.ServerPort != 8080 {
		t.Fatalf("port=%d", cfg.ServerPort)
	}
	if cfg.MailProvider != "imap" || cfg.IMAPPort != 993 || !cfg.IMAPSecure {
		t.Fatalf("mail=%s port=%d secure=%t", cfg.MailProvider, cfg.IMAPPort, cfg.IMAPSecure)
	}
}

func TestLoadRejectsNegativeWindow(t *testing.T) {
	t.Setenv("CONTEXT_WINDOW", "-1")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel  string
	LogFormat string

	DBPath        string
	OutputDir     string
	PlatformsFile string

	DefaultPlatform string
	ContextWindow   int
	TaxRatioWarn    float64

	ServerPort  int
	MaxUploadMB int
	CacheTTLSec int

	InboxDir         string
	InboxPlatform    string
	InboxIntervalSec int
	InboxAutoExport  bool

	MailProvider string
	MailFolder   string
	MailFetchMax int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DBPath:        getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		OutputDir:     getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		PlatformsFile: getEnv("PLATFORMS_FILE", ""),

		DefaultPlatform: strings.ToLower(getEnv("DEFAULT_PLATFORM", "uk")),
		ContextWindow:   getEnvInt("CONTEXT_WINDOW", 30),
		TaxRatioWarn:    getEnvFloat("TAX_RATIO_WARN", 0.25),

		ServerPort:  getEnvInt("SERVER_PORT", 8080),
		MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 10),
		CacheTTLSec: getEnvInt("CACHE_TTL_SEC", 600),

		InboxDir:         getEnv("INBOX_DIR", filepath.Join(cwd, "data", "inbox")),
		InboxPlatform:    strings.ToLower(getEnv("INBOX_PLATFORM", "auto")),
		InboxIntervalSec: getEnvInt("INBOX_INTERVAL_SEC", 30),
		InboxAutoExport:  getEnvBool("INBOX_AUTO_EXPORT", true),

		MailProvider: strings.ToLower(getEnv("MAIL_PROVIDER", "")),
		MailFolder:   getEnv("MAIL_FOLDER", "INBOX"),
		MailFetchMax: getEnvInt("MAIL_FETCH_MAX", 20),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),
	}

	if cfg.ContextWindow <= 0 {
		return Config{}, fmt.Errorf("CONTEXT_WINDOW must be positive, got %d", cfg.ContextWindow)
	}
	if cfg.TaxRatioWarn <= 0 {
		return Config{}, fmt.Errorf("TAX_RATIO_WARN must be positive, got %v", cfg.TaxRatioWarn)
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

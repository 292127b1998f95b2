package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// L is the process-wide logger. It is usable before Init with logrus
// defaults so packages and tests never see a nil logger.
var L = logrus.New()

// Init configures the global logger. Call it once at startup, after config.
func Init(levelStr, format string) {
	InitTo(os.Stdout, levelStr, format)
}

func InitTo(out io.Writer, levelStr, format string) {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(levelStr)))
	if err != nil {
		level = logrus.InfoLevel
	}

	L.SetOutput(out)
	L.SetLevel(level)
	if strings.EqualFold(format, "text") {
		L.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	} else {
		L.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	if err != nil && levelStr != "" {
		L.WithField("configuredLevel", levelStr).Warn("invalid LOG_LEVEL, defaulting to info")
	}
	L.WithField("level", level.String()).Debug("logger initialized")
}

package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestInitFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitTo(&buf, "loud", "json")
	assert.Equal(t, logrus.InfoLevel, L.GetLevel())
	assert.Contains(t, buf.String(), "invalid LOG_LEVEL")
}

func TestInitParsesLevel(t *testing.T) {
	var buf bytes.Buffer
	InitTo(&buf, "WARN", "text")
	assert.Equal(t, logrus.WarnLevel, L.GetLevel())
	L.Info("hidden")
	assert.NotContains(t, buf.String(), "hidden")
}

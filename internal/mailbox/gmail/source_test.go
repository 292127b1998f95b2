package gmail

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellerbooks/internal/config"
)

func TestDecodeBase64URL(t *testing.T) {
	raw := []byte("Subject: report\r\n\r\nbody?>")
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding} {
		got, err := decodeBase64URL(enc.EncodeToString(raw))
		require.NoError(t, err)
		assert.Equal(t, raw, got)
	}

	_, err := decodeBase64URL("***")
	assert.Error(t, err)
}

func TestToMessage(t *testing.T) {
	msg := toMessage("abc", map[string]string{
		"subject": "Statement",
		"from":    "reports@example.com",
		"date":    "Fri, 01 Mar 2024 09:30:00 +0100",
	}, []byte("raw"))

	assert.Equal(t, "abc", msg.MessageID)
	assert.Equal(t, "gmail", msg.Provider)
	assert.Equal(t, "2024-03-01T08:30:00Z", msg.ReceivedAt)
}

func TestParseMailDate(t *testing.T) {
	_, err := parseMailDate("01 Mar 24 09:30 +0100")
	assert.NoError(t, err)
	_, err = parseMailDate("yesterday")
	assert.Error(t, err)
}

func TestNewSourceRequiresCredentials(t *testing.T) {
	_, err := NewSource(context.Background(), config.Config{GmailClientID: "id"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GMAIL_CLIENT_SECRET")
}

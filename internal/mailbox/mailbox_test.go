package mailbox

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	messages []Message
	err      error
	folder   string
	max      int
}

func (f *fakeSource) FetchReports(_ context.Context, folder string, max int) ([]Message, error) {
	f.folder, f.max = folder, max
	return f.messages, f.err
}

func buildMail(t *testing.T, subject string, attachment []byte, name string) []byte {
	t.Helper()
	b := enmime.Builder().
		From("Seller Central", "reports@example.com").
		To("Books", "books@example.com").
		Subject(subject).
		Text([]byte("See attached."))
	if attachment != nil {
		b = b.AddAttachment(attachment, "application/octet-stream", name)
	}
	part, err := b.Build()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, part.Encode(&buf))
	return buf.Bytes()
}

func TestHasReport(t *testing.T) {
	csv := []byte("date/time,product sales\n01/03/2024,10.00\n")
	assert.True(t, HasReport(buildMail(t, "report", csv, "uk_report.csv")))
	assert.False(t, HasReport(buildMail(t, "hello", nil, "")))
	assert.False(t, HasReport(buildMail(t, "notes", []byte("hi"), "notes.docx")))
	assert.False(t, HasReport([]byte("not a mail")))
}

func TestSpoolStoreIsIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "inbox")
	spool := NewSpool(dir)
	raw := buildMail(t, "report", []byte("%PDF-1.4 fake"), "statement.pdf")

	path, stored, err := spool.Store(Message{Raw: raw})
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Regexp(t, `^mail-[0-9a-f]{24}\.eml$`, filepath.Base(path))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, raw, onDisk)

	again, stored, err := spool.Store(Message{Raw: raw})
	require.NoError(t, err)
	assert.False(t, stored)
	assert.Equal(t, path, again)
}

func TestFetchAndStore(t *testing.T) {
	dir := t.TempDir()
	report := buildMail(t, "report", []byte("date,product sales\n01/03/2024,1.00\n"), "report.csv")
	src := &fakeSource{messages: []Message{
		{Provider: "imap", MessageID: "1", Raw: report},
		{Provider: "imap", MessageID: "2", Raw: buildMail(t, "newsletter", nil, "")},
		{Provider: "imap", MessageID: "3", Raw: report},
	}}

	f := NewFetcher(src, NewSpool(dir), "Reports", 0)
	res, err := f.FetchAndStore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Fetched: 3, Stored: 1, Ignored: 2}, res)
	assert.Equal(t, "Reports", src.folder)
	assert.Equal(t, 20, src.max)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFetchAndStoreSourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("login failed")}
	_, err := NewFetcher(src, NewSpool(t.TempDir()), "INBOX", 5).FetchAndStore(context.Background())
	assert.EqualError(t, err, "login failed")
}

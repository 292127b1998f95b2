package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jhillyerd/enmime"

	"sellerbooks/internal"
	"sellerbooks/internal/pipeline"
)

// Spool writes report emails into a directory under a content-addressed name.
type Spool struct {
	dir string
}

func NewSpool(dir string) *Spool {
	return &Spool{dir: dir}
}

// Store writes msg as mail-<hash>.eml. It returns stored=false for messages
// without a report attachment and for messages already on disk.
func (s *Spool) Store(msg Message) (path string, stored bool, err error) {
	if !HasReport(msg.Raw) {
		return "", false, nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", false, err
	}

	hash := pipeline.ContentHash(msg.Raw)
	path = filepath.Join(s.dir, fmt.Sprintf("mail-%s.eml", hash[:24]))
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", false, err
	}
	if err := os.WriteFile(path, msg.Raw, 0o644); err != nil {
		return "", false, err
	}
	return path, true, nil
}

// HasReport reports whether the message carries a pdf or spreadsheet attachment.
func HasReport(raw []byte) bool {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return false
	}
	for _, att := range env.Attachments {
		format, err := pipeline.DetectFormat(att.FileName, att.Content)
		if err == nil && format != internal.FormatEML {
			return true
		}
	}
	return false
}

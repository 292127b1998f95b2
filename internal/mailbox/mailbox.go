// Package mailbox pulls marketplace report emails from a remote mailbox and
// spools them into the inbox directory as .eml files.
package mailbox

import "context"

type Message struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

// Source fetches unread messages from a mailbox folder or label.
type Source interface {
	FetchReports(ctx context.Context, folder string, max int) ([]Message, error)
}

package inbox

import (
	"context"
	"fmt"
	"strings"

	"sellerbooks/internal/config"
	"sellerbooks/internal/mailbox"
	gmailsource "sellerbooks/internal/mailbox/gmail"
	imapsource "sellerbooks/internal/mailbox/imap"
)

// MailFetcher builds the mailbox fetcher for MAIL_PROVIDER. It returns nil
// when no provider is configured.
func MailFetcher(ctx context.Context, cfg config.Config) (*mailbox.Fetcher, error) {
	var (
		source mailbox.Source
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.MailProvider)) {
	case "":
		return nil, nil
	case "gmail":
		source, err = gmailsource.NewSource(ctx, cfg)
	case "imap":
		source, err = imapsource.NewSource(cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", cfg.MailProvider)
	}
	if err != nil {
		return nil, err
	}
	return mailbox.NewFetcher(source, mailbox.NewSpool(cfg.InboxDir), cfg.MailFolder, cfg.MailFetchMax), nil
}

package mailbox

import (
	"context"

	"sellerbooks/internal/logger"
)

type Fetcher struct {
	source Source
	spool  *Spool
	folder string
	max    int
}

type FetchResult struct {
	Fetched int
	Stored  int
	Ignored int
}

func NewFetcher(source Source, spool *Spool, folder string, max int) *Fetcher {
	if max <= 0 {
		max = 20
	}
	return &Fetcher{source: source, spool: spool, folder: folder, max: max}
}

func (f *Fetcher) FetchAndStore(ctx context.Context) (FetchResult, error) {
	messages, err := f.source.FetchReports(ctx, f.folder, f.max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		path, stored, err := f.spool.Store(msg)
		if err != nil {
			return res, err
		}
		if !stored {
			res.Ignored++
			continue
		}
		res.Stored++
		logger.L.WithField("provider", msg.Provider).
			WithField("messageId", msg.MessageID).
			WithField("subject", msg.Subject).
			WithField("path", path).
			Debug("report email spooled")
	}
	return res, nil
}

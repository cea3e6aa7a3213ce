package telegram

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"github.com/blockedby/tchan/internal/config"
	"github.com/blockedby/tchan/internal/logger"
)

// Fetcher retrieves and parses a preview page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*goquery.Document, error)
}

// NewFetcher builds the fetcher selected by cfg.FetchMode. The returned
// function releases its resources.
func NewFetcher(cfg *config.Config, log *logger.Logger) (Fetcher, func()) {
	if cfg.FetchMode == config.FetchModeBrowser {
		b := NewBrowserFetcher(BrowserConfig{
			UserAgent:    cfg.UserAgent,
			Timeout:      cfg.HTTPTimeout,
			ChromePath:   cfg.ChromePath,
			RateLimitRPS: cfg.RateLimitRPS,
		}, log)
		return b, b.Close
	}

	c := NewClient(ClientConfig{
		UserAgent:    cfg.UserAgent,
		Timeout:      cfg.HTTPTimeout,
		Retries:      cfg.FetchRetries,
		Backoff:      cfg.FetchBackoff,
		RateLimitRPS: cfg.RateLimitRPS,
	}, log)
	return c, func() {}
}

// Package collector walks channel history page by page and runs export jobs.
package collector

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/blockedby/tchan/internal/logger"
	"github.com/blockedby/tchan/internal/models"
	"github.com/blockedby/tchan/internal/parser"
)

// Fetcher retrieves and parses a single page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*goquery.Document, error)
}

// Options tunes the pagination controller.
type Options struct {
	// AnomalyThreshold is the message id above which a page without an
	// "older messages" link is treated as a throttling artifact rather
	// than the start of the channel.
	AnomalyThreshold int64

	// MaxAnomalyRetries caps consecutive retries that bring no new record.
	// Zero disables anomaly retries, a negative value selects the default.
	MaxAnomalyRetries int

	// AnomalyBackoff is the base delay between anomaly retries. It
	// doubles on every fruitless retry.
	AnomalyBackoff time.Duration
}

// DefaultOptions returns the controller defaults.
func DefaultOptions() Options {
	return Options{
		AnomalyThreshold:  20,
		MaxAnomalyRetries: 5,
		AnomalyBackoff:    time.Second,
	}
}

// ScrapeOptions limits a single walk through a channel.
type ScrapeOptions struct {
	Channel string
	// Limit is the maximum number of records, 0 means no limit.
	Limit int
	// Until stops the walk at the first record created before it.
	Until *time.Time
}

// Scraper reads public channel preview pages.
type Scraper struct {
	fetcher Fetcher
	opts    Options
	log     *logger.Logger
}

// NewScraper creates a scraper. Unset option fields fall back to defaults,
// except MaxAnomalyRetries where zero is meaningful.
func NewScraper(fetcher Fetcher, opts Options, log *logger.Logger) *Scraper {
	def := DefaultOptions()
	if opts.AnomalyThreshold <= 0 {
		opts.AnomalyThreshold = def.AnomalyThreshold
	}
	if opts.MaxAnomalyRetries < 0 {
		opts.MaxAnomalyRetries = def.MaxAnomalyRetries
	}
	if opts.AnomalyBackoff <= 0 {
		opts.AnomalyBackoff = def.AnomalyBackoff
	}
	if log == nil {
		log = logger.Get()
	}

	return &Scraper{
		fetcher: fetcher,
		opts:    opts,
		log:     log,
	}
}

// Info fetches the channel metadata.
func (s *Scraper) Info(ctx context.Context, ref string) (*models.ChannelInfo, error) {
	pageURL := parser.NormalizeURL(ref)

	doc, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch channel info: %w", err)
	}

	info, err := parser.ParseInfo(doc)
	if err != nil {
		return nil, fmt.Errorf("parse channel info %s: %w", pageURL, err)
	}
	return info, nil
}

// Messages returns a cursor over every message of the channel, newest
// first. Nothing is fetched until the first call to Next.
func (s *Scraper) Messages(opts ScrapeOptions) *Stream {
	channelURL := parser.NormalizeURL(opts.Channel)
	return &Stream{
		scraper:    s,
		opts:       opts,
		channelURL: channelURL,
		currentURL: channelURL,
		state:      stateFetching,
		log: s.log.With().
			Str("channel", parser.ChannelHandle(opts.Channel)).
			Logger(),
	}
}

// All adapts a message stream to a range-over-func sequence. A terminal
// error is yielded once, with a nil message.
func (s *Scraper) All(ctx context.Context, opts ScrapeOptions) iter.Seq2[*models.ChannelMessage, error] {
	return func(yield func(*models.ChannelMessage, error) bool) {
		stream := s.Messages(opts)
		for stream.Next(ctx) {
			if !yield(stream.Message(), nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield(nil, err)
		}
	}
}

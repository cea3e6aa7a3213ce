package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/blockedby/tchan/internal/logger"
	"github.com/blockedby/tchan/internal/parser"
)

// BrowserConfig configures the headless browser fetcher.
type BrowserConfig struct {
	UserAgent    string
	Timeout      time.Duration
	ChromePath   string // empty means look up chrome on PATH
	RateLimitRPS float64
}

// BrowserFetcher renders preview pages in headless Chrome. It is a drop-in
// replacement for Client when plain HTTP requests are blocked. One browser
// process is shared, every Fetch opens its own tab.
type BrowserFetcher struct {
	allocCtx    context.Context
	cancel      context.CancelFunc
	timeout     time.Duration
	rateLimiter *RateLimiter
	log         *logger.Logger
}

// NewBrowserFetcher prepares the browser allocator. Chrome is started lazily
// on the first Fetch.
func NewBrowserFetcher(cfg BrowserConfig, log *logger.Logger) *BrowserFetcher {
	if log == nil {
		log = logger.Get()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &BrowserFetcher{
		allocCtx:    allocCtx,
		cancel:      cancel,
		timeout:     cfg.Timeout,
		rateLimiter: NewRateLimiter(cfg.RateLimitRPS, 1),
		log:         log,
	}
}

// Fetch navigates to pageURL and parses the rendered DOM.
func (b *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := b.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()

	// cancel the tab when the caller gives up
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en"}),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &NetworkError{URL: pageURL, Err: fmt.Errorf("render: %w", err)}
	}

	b.log.Debug().Str("url", pageURL).Int("bytes", len(html)).Msg("page rendered")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &parser.StructureError{Element: "document", Err: err}
	}
	return doc, nil
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() {
	b.cancel()
}

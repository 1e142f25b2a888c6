package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserFetcher renders pages in headless Chrome. It is used for hosts
// whose event details are filled in client-side.
type BrowserFetcher struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
	settle   time.Duration
	cache    Cache
}

// BrowserOptions configures a BrowserFetcher.
type BrowserOptions struct {
	UserAgent string
	Timeout   time.Duration
	// Settle is how long to wait after the body is ready for scripts to
	// populate the page.
	Settle time.Duration
	Cache  Cache
}

// NewBrowserFetcher starts a Chrome allocator. Close releases it.
func NewBrowserFetcher(opts BrowserOptions) *BrowserFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * DefaultTimeout
	}
	if opts.Settle <= 0 {
		opts.Settle = 2 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	return &BrowserFetcher{
		allocCtx: allocCtx,
		cancel:   cancel,
		timeout:  opts.Timeout,
		settle:   opts.Settle,
		cache:    opts.Cache,
	}
}

// Fetch navigates to rawURL and returns the rendered document.
func (b *BrowserFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	rawURL = WithScheme(rawURL)
	if b.cache != nil {
		if body, ok := b.cache.Get(ctx, rawURL); ok {
			return &Page{URL: rawURL, FinalURL: rawURL, StatusCode: http.StatusOK, Body: body, FromCache: true}, nil
		}
	}

	taskCtx, taskCancel := chromedp.NewContext(b.allocCtx)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, b.timeout)
	defer cancel()

	// Stop rendering when the caller gives up.
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	var html, location string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.settle),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: rendering %s: %v", ErrFetch, rawURL, err)
	}

	body := []byte(html)
	if b.cache != nil {
		b.cache.Set(ctx, rawURL, body)
	}
	return &Page{
		URL:         rawURL,
		FinalURL:    location,
		StatusCode:  http.StatusOK,
		ContentType: "text/html; charset=utf-8",
		Body:        body,
	}, nil
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() error {
	b.cancel()
	return nil
}

package chromedp_fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/user/evidence-service/internal/adapter/extract"
	"github.com/user/evidence-service/internal/entity"
	"github.com/user/evidence-service/internal/proxy"
	"github.com/user/evidence-service/internal/resilience"
)

// ChromedpFetcher renders pages in headless Chrome before extracting them,
// for sources that build their content with JavaScript.
type ChromedpFetcher struct {
	allocatorPool *sync.Pool
	cancels       []context.CancelFunc
	mu            sync.Mutex
	proxies       *proxy.Manager
	timeout       time.Duration
}

// NewChromedpFetcher creates a fetcher with maxConcurrency pre-warmed browser allocators.
func NewChromedpFetcher(proxies *proxy.Manager, maxConcurrency int, pageLoadTimeout time.Duration) *ChromedpFetcher {
	f := &ChromedpFetcher{proxies: proxies, timeout: pageLoadTimeout}
	f.allocatorPool = &sync.Pool{
		New: func() interface{} {
			opts := append(chromedp.DefaultExecAllocatorOptions[:],
				chromedp.Flag("headless", true),
				chromedp.Flag("disable-gpu", true),
				chromedp.Flag("no-sandbox", true),
				chromedp.Flag("disable-dev-shm-usage", true),
				chromedp.UserAgent(proxies.UserAgent()),
			)
			if p := proxies.Proxy(); p != "" {
				opts = append(opts, chromedp.ProxyServer(p))
			}
			allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
			f.mu.Lock()
			f.cancels = append(f.cancels, cancel)
			f.mu.Unlock()
			return allocCtx
		},
	}

	// Pre-warm the pool
	for i := 0; i < maxConcurrency; i++ {
		allocCtx := f.allocatorPool.Get().(context.Context)
		f.allocatorPool.Put(allocCtx)
	}
	return f
}

// Fetch navigates to url and extracts the rendered DOM. The status code of
// the main document comes from the network domain events.
func (f *ChromedpFetcher) Fetch(ctx context.Context, url string) (*entity.Page, error) {
	allocCtx := f.allocatorPool.Get().(context.Context)
	defer f.allocatorPool.Put(allocCtx)

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	taskCtx, cancel = context.WithTimeout(taskCtx, f.timeout)
	defer cancel()

	// Tie the browser tab to the caller's lifetime.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var (
		statusMu   sync.Mutex
		statusCode int
	)
	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok && e.Type == network.ResourceTypeDocument {
			statusMu.Lock()
			if statusCode == 0 {
				statusCode = int(e.Response.Status)
			}
			statusMu.Unlock()
		}
	})

	var html string
	start := time.Now()
	err := chromedp.Run(taskCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	elapsed := time.Since(start)

	statusMu.Lock()
	code := statusCode
	statusMu.Unlock()

	if code >= 300 {
		return nil, &resilience.StatusError{Code: code}
	}
	if err != nil {
		slog.Warn("Failed to render page", "url", url, "error", err)
		return nil, fmt.Errorf("render %s: %w", url, err)
	}

	page, err := extract.Page(url, strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	page.HTTPStatusCode = code
	page.ResponseTimeMS = int(elapsed.Milliseconds())
	page.FetchedAt = time.Now().UTC()
	return page, nil
}

// Close shuts down every browser the pool started.
func (f *ChromedpFetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cancel := range f.cancels {
		cancel()
	}
	f.cancels = nil
}

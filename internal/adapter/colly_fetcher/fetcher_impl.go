package colly_fetcher

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/user/evidence-service/internal/adapter/extract"
	"github.com/user/evidence-service/internal/entity"
	"github.com/user/evidence-service/internal/proxy"
	"github.com/user/evidence-service/internal/resilience"
)

// maxBodySize bounds how much of a page is downloaded.
const maxBodySize = 2 << 20

// CollyFetcher retrieves pages with a plain HTTP collector. It is the default
// PageFetcherRepository; no JavaScript is executed.
type CollyFetcher struct {
	proxies *proxy.Manager
	timeout time.Duration
}

// NewCollyFetcher creates a fetcher whose requests give up after timeout.
func NewCollyFetcher(proxies *proxy.Manager, timeout time.Duration) *CollyFetcher {
	return &CollyFetcher{proxies: proxies, timeout: timeout}
}

// Fetch downloads url and extracts its content. Non-2xx responses come back
// as *resilience.StatusError so the retry layer can classify them.
func (f *CollyFetcher) Fetch(ctx context.Context, url string) (*entity.Page, error) {
	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(maxBodySize),
		colly.UserAgent(f.proxies.UserAgent()),
	)
	c.SetRequestTimeout(f.timeout)
	if len(f.proxies.Proxies()) > 0 {
		c.SetProxyFunc(f.proxies.ProxyFunc)
	}

	var (
		page       *entity.Page
		parseErr   error
		statusCode int
	)
	start := time.Now()

	c.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		page, parseErr = extract.Page(url, bytes.NewReader(r.Body))
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
	})

	err := c.Visit(url)
	switch {
	case statusCode >= 300:
		return nil, &resilience.StatusError{Code: statusCode}
	case err != nil:
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	case parseErr != nil:
		return nil, fmt.Errorf("parse %s: %w", url, parseErr)
	case page == nil:
		return nil, fmt.Errorf("fetch %s: empty response", url)
	}

	page.HTTPStatusCode = statusCode
	page.ResponseTimeMS = int(time.Since(start).Milliseconds())
	page.FetchedAt = time.Now().UTC()
	slog.Debug("Fetched page", "url", url, "status", statusCode, "response_time_ms", page.ResponseTimeMS)
	return page, nil
}

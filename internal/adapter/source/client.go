package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/evidence-service/internal/proxy"
	"github.com/user/evidence-service/internal/resilience"
	"github.com/user/evidence-service/pkg/utils"
)

// maxResponseSize bounds how much of an upstream body is read.
const maxResponseSize = 5 << 20

// ErrMalformed marks a response that arrived but could not be decoded.
// Adapters treat it as an empty result rather than a retryable failure.
var ErrMalformed = errors.New("malformed response")

// Pacer spaces requests to the same host.
type Pacer interface {
	WaitTurn(ctx context.Context, host string) error
}

// Client performs one paced, time-bounded JSON request per call.
type Client struct {
	http    *http.Client
	pacer   Pacer
	proxies *proxy.Manager
	timeout time.Duration
}

// NewClient creates a Client. timeout applies to each request separately
// from whatever deadline the caller's context carries.
func NewClient(httpClient *http.Client, pacer Pacer, proxies *proxy.Manager, timeout time.Duration) *Client {
	return &Client{http: httpClient, pacer: pacer, proxies: proxies, timeout: timeout}
}

// GetJSON waits for the host's turn, then fetches rawURL and decodes the body.
// Non-2xx statuses come back as *resilience.StatusError.
func (c *Client) GetJSON(ctx context.Context, rawURL string, headers map[string]string) (any, error) {
	if err := c.pacer.WaitTurn(ctx, utils.Host(rawURL)); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := c.proxies.UserAgent(); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", utils.Host(rawURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &resilience.StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return raw, nil
}

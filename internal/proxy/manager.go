package proxy

import (
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync"
)

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
}

// Manager handles the rotation of proxies and user agents for outbound requests.
type Manager struct {
	proxies    []string
	userAgents []string
	mu         sync.Mutex
	proxyIndex int
}

// NewManager creates a Manager rotating through proxies. An empty list means direct connections.
func NewManager(proxies []string) *Manager {
	return &Manager{
		proxies:    proxies,
		userAgents: defaultUserAgents,
	}
}

// Proxy returns a proxy URL from the list, rotating sequentially.
func (m *Manager) Proxy() string {
	if len(m.proxies) == 0 {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.proxies[m.proxyIndex]
	m.proxyIndex = (m.proxyIndex + 1) % len(m.proxies)
	return p
}

// Proxies returns the configured proxy list.
func (m *Manager) Proxies() []string {
	return m.proxies
}

// UserAgent returns a random user agent string.
func (m *Manager) UserAgent() string {
	if len(m.userAgents) == 0 {
		return ""
	}
	return m.userAgents[rand.IntN(len(m.userAgents))]
}

// ProxyFunc plugs the rotation into http.Transport.Proxy.
func (m *Manager) ProxyFunc(*http.Request) (*url.URL, error) {
	p := m.Proxy()
	if p == "" {
		return nil, nil
	}
	return url.Parse(p)
}

// NewHTTPClient returns a client whose transport rotates through the proxies.
// Callers bound each request with their own context deadline.
func (m *Manager) NewHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = m.ProxyFunc
	return &http.Client{Transport: transport}
}

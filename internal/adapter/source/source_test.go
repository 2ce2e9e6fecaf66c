package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/evidence-service/internal/adapter/memory"
	"github.com/user/evidence-service/internal/entity"
	"github.com/user/evidence-service/internal/proxy"
	"github.com/user/evidence-service/internal/resilience"
)

type testEnv struct {
	client   *Client
	executor *resilience.Executor
	breaker  *resilience.Breaker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	breaker := resilience.NewBreaker(memory.NewBreakerRepo())
	noSleep := func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return &testEnv{
		client:   NewClient(http.DefaultClient, resilience.NewHostPacer(0), proxy.NewManager(nil), 3*time.Second),
		executor: resilience.NewExecutor(breaker, resilience.WithSleep(noSleep)),
		breaker:  breaker,
	}
}

func jsonServer(t *testing.T, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestWebSearch_ParsesResults(t *testing.T) {
	env := newTestEnv(t)
	var (
		mu               sync.Mutex
		gotQuery, gotKey string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.Header.Get("X-Subscription-Token")
		_, _ = w.Write([]byte(`{"web":{"results":[
			{"title":"Copper prices","url":"https://a.example","description":"LME copper rose."},
			{"title":"","url":"","description":""},
			"not an object"
		]}}`))
	}))
	defer srv.Close()

	a := NewWebSearch(srv.URL, "secret", env.client, env.executor)
	records := a.Fetch(context.Background(), "copper price", nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "copper price", gotQuery)
	assert.Equal(t, "secret", gotKey)
	require.Len(t, records, 2)
	assert.Equal(t, entity.SourceWebSearch, records[0].Source)
	assert.Equal(t, "https://a.example", *records[0].URL)
	assert.Equal(t, "LME copper rose.", records[0].Snippet)
	assert.Equal(t, entity.ScoreWebSearch, records[0].Score)
	assert.True(t, records[1].IsEmpty())
	assert.True(t, a.Applicable(nil))
}

func TestWebSearch_MissingFieldsYieldEmpty(t *testing.T) {
	env := newTestEnv(t)
	for _, body := range []string{`{}`, `{"web":null}`, `{"web":{"results":"x"}}`, `[]`} {
		srv, _ := jsonServer(t, body)
		records := NewWebSearch(srv.URL, "", env.client, env.executor).Fetch(context.Background(), "q", nil)
		assert.Empty(t, records, body)
	}
}

func TestFetch_MalformedBodyIsNotRetried(t *testing.T) {
	env := newTestEnv(t)
	srv, hits := jsonServer(t, `<html>not json</html>`)

	records := NewNewsEvents(srv.URL, env.client, env.executor).Fetch(context.Background(), "q", nil)
	assert.Empty(t, records)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))
	assert.Equal(t, entity.BreakerClosed, env.breaker.Observe(context.Background(), string(entity.SourceNewsEvents)).State)
}

func TestFetch_ServerErrorsRetriedAndRecorded(t *testing.T) {
	env := newTestEnv(t)
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	records := NewForecast(srv.URL, env.client, env.executor).Fetch(context.Background(), "q", nil)
	assert.Empty(t, records)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))

	state := env.breaker.Observe(context.Background(), string(entity.SourceForecast))
	assert.Equal(t, entity.BreakerHalfOpen, state.State)
	assert.Equal(t, 3, state.FailCount)
}

func TestClient_TimesOutSlowUpstream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(http.DefaultClient, resilience.NewHostPacer(0), proxy.NewManager(nil), 50*time.Millisecond)
	_, err := client.GetJSON(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Equal(t, resilience.ClassConnection, resilience.Classify(err))
}

func TestTradeStats(t *testing.T) {
	env := newTestEnv(t)
	var (
		mu                sync.Mutex
		reporter, partner string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		reporter = r.URL.Query().Get("reporterCode")
		partner = r.URL.Query().Get("partnerCode")
		_, _ = w.Write([]byte(`{"data":[
			{"reporterDesc":"USA","partnerDesc":"China","flowDesc":"Export","cmdDesc":"Soybeans","primaryValue":1.5e9,"period":"2024"},
			{"reporterDesc":"USA","partnerDesc":"China","flowDesc":"Import"}
		]}`))
	}))
	defer srv.Close()

	a := NewTradeStats(srv.URL, "", env.client, env.executor)
	assert.False(t, a.Applicable([]string{"US"}))
	assert.Nil(t, a.Fetch(context.Background(), "q", []string{"US"}))

	records := a.Fetch(context.Background(), "soybean exports", []string{"US", "CN"})
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "US", reporter)
	assert.Equal(t, "CN", partner)
	require.Len(t, records, 1)
	assert.Equal(t, "USA trade with China", *records[0].Title)
	assert.Equal(t, "USA Export to China: 1500000000 USD (Soybeans), period 2024", records[0].Snippet)
	assert.Equal(t, entity.ScoreTradeStats, records[0].Score)
}

func TestMacroIndicators(t *testing.T) {
	env := newTestEnv(t)
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`[{"page":1},[
			{"indicator":{"id":"NY.GDP.MKTP.KD.ZG","value":"GDP growth (annual %)"},"country":{"id":"CL","value":"Chile"},"countryiso3code":"CHL","date":"2023","value":0.2},
			{"indicator":{"id":"NY.GDP.MKTP.KD.ZG","value":"GDP growth (annual %)"},"country":{"id":"CL","value":"Chile"},"date":"2024","value":null}
		]]`))
	}))
	defer srv.Close()

	a := NewMacroIndicators(srv.URL+"/", env.client, env.executor)
	assert.False(t, a.Applicable(nil))

	records := a.Fetch(context.Background(), "chile growth", []string{"CL"})
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, paths, len(macroIndicators))
	assert.Equal(t, "/country/CL/indicator/NY.GDP.MKTP.KD.ZG", paths[0])
	require.Len(t, records, len(macroIndicators))
	assert.Equal(t, "GDP growth (annual %) for Chile in 2023: 0.20", records[0].Snippet)
	assert.Equal(t, "https://data.worldbank.org/indicator/NY.GDP.MKTP.KD.ZG?locations=CHL", *records[0].URL)
	assert.Equal(t, entity.ScoreMacroIndicators, records[0].Score)
}

func TestMacroIndicators_ErrorPayload(t *testing.T) {
	env := newTestEnv(t)
	srv, _ := jsonServer(t, `[{"message":[{"id":"120","value":"Invalid value"}]}]`)
	records := NewMacroIndicators(srv.URL, env.client, env.executor).Fetch(context.Background(), "q", []string{"ZZ"})
	assert.Empty(t, records)
}

func TestForecast(t *testing.T) {
	env := newTestEnv(t)
	srv, _ := jsonServer(t, `{"forecasts":[{"title":"Fed cut by June?","url":"https://f.example/1","summary":"Markets price a cut.","probability":0.62}]}`)

	records := NewForecast(srv.URL, env.client, env.executor).Fetch(context.Background(), "fed", nil)
	require.Len(t, records, 1)
	assert.Equal(t, "Markets price a cut. (probability 62%)", records[0].Snippet)
	assert.Equal(t, entity.ScoreForecast, records[0].Score)

	srv, _ = jsonServer(t, `[{"question":"Rain tomorrow?","probability":"0.3"}]`)
	records = NewForecast(srv.URL, env.client, env.executor).Fetch(context.Background(), "rain", nil)
	require.Len(t, records, 1)
	assert.Equal(t, "Rain tomorrow?", *records[0].Title)
	assert.Equal(t, "probability 30%", records[0].Snippet)
}

func TestNewsEvents(t *testing.T) {
	env := newTestEnv(t)
	srv, _ := jsonServer(t, `{"articles":[{"url":"https://n.example/a","title":"Port strike ends","domain":"n.example","seendate":"20250301T120000Z"}]}`)

	records := NewNewsEvents(srv.URL, env.client, env.executor).Fetch(context.Background(), "port strike", nil)
	require.Len(t, records, 1)
	assert.Equal(t, "Port strike ends | n.example | 20250301T120000Z", records[0].Snippet)
	assert.Equal(t, entity.ScoreNewsEvents, records[0].Score)
}

type stubScraper struct {
	urls []string
}

func (s *stubScraper) Run(ctx context.Context, urls []string) []entity.EvidenceRecord {
	s.urls = urls
	out := make([]entity.EvidenceRecord, 0, len(urls))
	for _, u := range urls {
		out = append(out, entity.NewEvidenceRecord(entity.SourcePageScrape, u, "t", "body", entity.ScorePageScrape, time.Now()))
	}
	return out
}

func TestPageScrape_HandsURLsToScraper(t *testing.T) {
	env := newTestEnv(t)
	srv, _ := jsonServer(t, `{"results":[
		{"url":"https://a.example/1"},
		{"url":"https://a.example/1"},
		{"url":"ftp://skip.example"},
		{"url":"https://b.example/2"},
		{"url":"https://c.example/3"}
	]}`)
	scraper := &stubScraper{}

	records := NewPageScrape(srv.URL, 2, scraper, env.client, env.executor).Fetch(context.Background(), "q", nil)
	assert.Equal(t, []string{"https://a.example/1", "https://b.example/2"}, scraper.urls)
	assert.Len(t, records, 2)
}

func TestPageScrape_ResolvesRelativeLinks(t *testing.T) {
	env := newTestEnv(t)
	srv, _ := jsonServer(t, `{"results":[{"url":"/articles/7"},{"url":""}]}`)
	scraper := &stubScraper{}

	NewPageScrape(srv.URL+"/search", 5, scraper, env.client, env.executor).Fetch(context.Background(), "q", nil)
	assert.Equal(t, []string{srv.URL + "/articles/7"}, scraper.urls)
}

func TestPageScrape_NoCandidates(t *testing.T) {
	env := newTestEnv(t)
	srv, _ := jsonServer(t, `{"results":[]}`)
	scraper := &stubScraper{}

	records := NewPageScrape(srv.URL, 5, scraper, env.client, env.executor).Fetch(context.Background(), "q", nil)
	assert.Empty(t, records)
	assert.Nil(t, scraper.urls)
}

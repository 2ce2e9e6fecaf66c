package colly_fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/evidence-service/internal/proxy"
	"github.com/user/evidence-service/internal/resilience"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Wheat outlook</title>
<meta name="description" content="Harvest forecasts for 2025."></head>
<body><p>Yields are expected to rise.</p></body></html>`))
	})
	mux.HandleFunc("/limited", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCollyFetcher_Fetch(t *testing.T) {
	srv := newTestServer(t)
	f := NewCollyFetcher(proxy.NewManager(nil), 2*time.Second)

	page, err := f.Fetch(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, "Wheat outlook", page.Title)
	assert.Equal(t, "Harvest forecasts for 2025.", page.Description)
	assert.Equal(t, "Yields are expected to rise.", page.Content)
	assert.Equal(t, http.StatusOK, page.HTTPStatusCode)
	assert.False(t, page.FetchedAt.IsZero())
}

func TestCollyFetcher_StatusErrorsAreClassified(t *testing.T) {
	srv := newTestServer(t)
	f := NewCollyFetcher(proxy.NewManager(nil), 2*time.Second)

	tests := []struct {
		path  string
		code  int
		class resilience.ErrorClass
	}{
		{"/limited", http.StatusTooManyRequests, resilience.ClassRateLimit},
		{"/broken", http.StatusBadGateway, resilience.ClassServerError},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), srv.URL+tt.path)
			require.Error(t, err)

			var se *resilience.StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, tt.class, resilience.Classify(err))
		})
	}
}

func TestCollyFetcher_UnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := NewCollyFetcher(proxy.NewManager(nil), time.Second)
	_, err := f.Fetch(context.Background(), url+"/gone")
	require.Error(t, err)
	assert.Equal(t, resilience.ClassConnection, resilience.Classify(err))
}

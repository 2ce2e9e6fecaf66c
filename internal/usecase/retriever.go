package usecase

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/user/evidence-service/internal/entity"
	"github.com/user/evidence-service/internal/repository"
	"github.com/user/evidence-service/pkg/metrics"
)

const (
	// MaxRetrievals caps every result.
	MaxRetrievals = 8
	// MinCachedScore filters rows served from cache. Fresh fan-out results are not filtered.
	MinCachedScore = 0.5
	// DefaultFanoutTimeout applies when neither the request nor the options set one.
	DefaultFanoutTimeout = 7 * time.Second

	maxHints = 2
)

// Retriever gathers evidence for a query.
type Retriever interface {
	Retrieve(ctx context.Context, req entity.RetrievalRequest) entity.RetrievalResult
}

// SupplementaryFetcher is asked for more evidence when required sources are
// missing from a fresh result.
type SupplementaryFetcher func(ctx context.Context, req entity.RetrievalRequest, hints []string, missing []entity.Source) []entity.EvidenceRecord

// RetrieverOption configures the retriever.
type RetrieverOption func(*retrieverUseCase)

// WithRetrieverClock sets a custom clock function (for testing).
func WithRetrieverClock(fn func() time.Time) RetrieverOption {
	return func(r *retrieverUseCase) { r.now = fn }
}

// WithFanoutTimeout sets the default global timeout.
func WithFanoutTimeout(d time.Duration) RetrieverOption {
	return func(r *retrieverUseCase) {
		if d > 0 {
			r.defaultTimeout = d
		}
	}
}

// WithSupplementaryFetcher installs the corrective step for missing required sources.
func WithSupplementaryFetcher(fn SupplementaryFetcher) RetrieverOption {
	return func(r *retrieverUseCase) { r.supplement = fn }
}

type retrieverUseCase struct {
	sources        []repository.EvidenceSource
	cache          repository.RetrievalCacheRepository
	supplement     SupplementaryFetcher
	defaultTimeout time.Duration
	now            func() time.Time
	group          singleflight.Group
}

// NewRetriever creates the orchestrator over sources and the retrieval cache.
func NewRetriever(sources []repository.EvidenceSource, cache repository.RetrievalCacheRepository, opts ...RetrieverOption) Retriever {
	r := &retrieverUseCase{
		sources:        sources,
		cache:          cache,
		defaultTimeout: DefaultFanoutTimeout,
		now:            time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// fanout is what concurrent identical retrievals share.
type fanout struct {
	records  []entity.EvidenceRecord
	timedOut bool
}

func (r *retrieverUseCase) Retrieve(ctx context.Context, req entity.RetrievalRequest) entity.RetrievalResult {
	key := ComputeQueryHash(req.Query, req.Entities)
	bypass := ShouldBypass(req.Query, req.ForceFresh, req.Audience)

	if !bypass {
		if result, ok := r.fromCache(ctx, key); ok {
			metrics.RetrievalsTotal.WithLabelValues("hit").Inc()
			return result
		}
	}

	hints := CountryHints(req.Entities)
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}

	out := r.sharedFanOut(ctx, key, req.Query, hints, timeout)

	if out.timedOut {
		slog.Warn("Retrieval timed out", "query_hash", key, "timeout_ms", timeout.Milliseconds())
		metrics.RetrievalsTotal.WithLabelValues("timeout").Inc()
		result := entity.EmptyResult()
		if len(req.RequiredSources) > 0 {
			result.MissingSources = req.RequiredSources
			result.Degraded = true
		}
		return result
	}

	records := rank(out.records)
	missing := missingSources(records, req.RequiredSources)
	if len(missing) > 0 {
		slog.Warn("Required sources missing from retrieval", "query_hash", key, "missing", missing)
		if r.supplement != nil {
			extra := r.supplement(ctx, req, hints, missing)
			records = rank(append(records, extra...))
			missing = missingSources(records, req.RequiredSources)
		}
	}

	if len(records) > 0 {
		ttl := DetermineTTL(req.Query, req.Audience)
		if err := r.cache.Put(ctx, key, records, r.now().Add(ttl)); err != nil {
			slog.Error("Failed to write retrieval cache", "query_hash", key, "error", err)
		}
	}

	label := "miss"
	if bypass {
		label = "bypass"
	}
	metrics.RetrievalsTotal.WithLabelValues(label).Inc()

	return entity.RetrievalResult{
		Retrievals:     records,
		CacheHit:       false,
		RetrievalCount: len(records),
		MissingSources: missing,
		Degraded:       len(missing) > 0,
	}
}

// sharedFanOut joins callers with the same query, hints and timeout onto one
// fan-out. The fan-out outlives any single caller's context; each caller still
// stops waiting at its own deadline.
func (r *retrieverUseCase) sharedFanOut(ctx context.Context, key, query string, hints []string, timeout time.Duration) fanout {
	flightKey := key + "|" + strings.Join(hints, ",") + "|" + timeout.String()
	detached := context.WithoutCancel(ctx)

	ch := r.group.DoChan(flightKey, func() (any, error) {
		records, timedOut := r.fanOut(detached, query, hints, timeout)
		return fanout{records: records, timedOut: timedOut}, nil
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Shared {
			slog.Debug("Shared in-flight fan-out", "query_hash", key)
		}
		return res.Val.(fanout)
	case <-timer.C:
		return fanout{timedOut: true}
	case <-ctx.Done():
		return fanout{timedOut: true}
	}
}

// fromCache serves live rows for key. Live rows make a hit even when none
// survive the score filter.
func (r *retrieverUseCase) fromCache(ctx context.Context, key string) (entity.RetrievalResult, bool) {
	rows, err := r.cache.Get(ctx, key, r.now())
	if err != nil {
		slog.Error("Failed to read retrieval cache", "query_hash", key, "error", err)
		return entity.RetrievalResult{}, false
	}
	if len(rows) == 0 {
		return entity.RetrievalResult{}, false
	}

	kept := make([]entity.EvidenceRecord, 0, len(rows))
	for _, rec := range rows {
		if rec.Score >= MinCachedScore {
			kept = append(kept, rec)
		}
	}
	records := rank(kept)
	return entity.RetrievalResult{
		Retrievals:     records,
		CacheHit:       true,
		RetrievalCount: len(records),
	}, true
}

// fanOut runs every applicable source concurrently. When timeout fires first
// the in-flight sources are cancelled and timedOut is true.
func (r *retrieverUseCase) fanOut(ctx context.Context, query string, hints []string, timeout time.Duration) ([]entity.EvidenceRecord, bool) {
	start := time.Now()
	defer func() { metrics.FanoutDuration.Observe(time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var applicable []repository.EvidenceSource
	for _, src := range r.sources {
		if src.Applicable(hints) {
			applicable = append(applicable, src)
		}
	}

	results := make([][]entity.EvidenceRecord, len(applicable))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range applicable {
		g.Go(func() error {
			results[i] = src.Fetch(gctx, query, hints)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, true
	}

	var merged []entity.EvidenceRecord
	for _, recs := range results {
		merged = append(merged, recs...)
	}
	return merged, false
}

// rank drops empty records, fills missing scores, removes duplicates and
// keeps the MaxRetrievals best by score.
func rank(records []entity.EvidenceRecord) []entity.EvidenceRecord {
	seen := make(map[string]bool, len(records))
	out := make([]entity.EvidenceRecord, 0, len(records))
	for _, rec := range records {
		if rec.IsEmpty() {
			continue
		}
		if rec.Score == 0 {
			rec.Score = entity.DefaultScore
		}
		k := rec.DedupKey()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > MaxRetrievals {
		out = out[:MaxRetrievals]
	}
	return out
}

func missingSources(records []entity.EvidenceRecord, required []entity.Source) []entity.Source {
	var missing []entity.Source
	for _, want := range required {
		if !slices.ContainsFunc(records, func(rec entity.EvidenceRecord) bool { return rec.Source == want }) {
			missing = append(missing, want)
		}
	}
	return missing
}

// CountryHints picks up to two entities that look like country codes
// (two or three letters), uppercased.
func CountryHints(entities []string) []string {
	var hints []string
	for _, e := range entities {
		e = strings.TrimSpace(e)
		if len(e) < 2 || len(e) > 3 || strings.IndexFunc(e, func(r rune) bool { return !unicode.IsLetter(r) || r > unicode.MaxASCII }) >= 0 {
			continue
		}
		hints = append(hints, strings.ToUpper(e))
		if len(hints) == maxHints {
			break
		}
	}
	return hints
}

// NewSourceSupplement returns a SupplementaryFetcher that gives each missing
// source one more call under a fresh timeout.
func NewSourceSupplement(sources []repository.EvidenceSource, timeout time.Duration) SupplementaryFetcher {
	byName := make(map[entity.Source]repository.EvidenceSource, len(sources))
	for _, src := range sources {
		byName[src.Name()] = src
	}
	return func(ctx context.Context, req entity.RetrievalRequest, hints []string, missing []entity.Source) []entity.EvidenceRecord {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var targets []repository.EvidenceSource
		for _, name := range missing {
			if src, ok := byName[name]; ok {
				targets = append(targets, src)
			}
		}
		results := make([][]entity.EvidenceRecord, len(targets))
		var g errgroup.Group
		for i, src := range targets {
			g.Go(func() error {
				results[i] = src.Fetch(ctx, req.Query, hints)
				return nil
			})
		}
		_ = g.Wait()

		var out []entity.EvidenceRecord
		for _, recs := range results {
			out = append(out, recs...)
		}
		return out
	}
}

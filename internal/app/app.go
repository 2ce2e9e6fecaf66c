package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/user/evidence-service/internal/adapter/chromedp_fetcher"
	"github.com/user/evidence-service/internal/adapter/colly_fetcher"
	"github.com/user/evidence-service/internal/adapter/memory"
	"github.com/user/evidence-service/internal/adapter/postgres"
	redis_adapter "github.com/user/evidence-service/internal/adapter/redis"
	"github.com/user/evidence-service/internal/adapter/source"
	"github.com/user/evidence-service/internal/adapter/sqlite"
	"github.com/user/evidence-service/internal/delivery/http/handler"
	"github.com/user/evidence-service/internal/delivery/http/router"
	"github.com/user/evidence-service/internal/proxy"
	"github.com/user/evidence-service/internal/repository"
	"github.com/user/evidence-service/internal/resilience"
	"github.com/user/evidence-service/internal/usecase"
	"github.com/user/evidence-service/pkg/config"
)

// maxRequestTimeout bounds an HTTP request; it exceeds the largest timeout_ms a caller may send.
const maxRequestTimeout = 65 * time.Second

// App holds the wired service.
type App struct {
	Breaker   *resilience.Breaker
	Retriever usecase.Retriever
	Sources   []repository.EvidenceSource
	Handler   http.Handler

	closers []func()
}

type stores struct {
	breakers repository.BreakerRepository
	cache    repository.RetrievalCacheRepository
	checks   []handler.HealthCheck
}

// New connects the configured stores and wires every component.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	st, err := a.openStores(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, func() { rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("unable to connect to redis: %w", err)
		}
		st.checks = append(st.checks, handler.HealthCheck{Name: "redis", Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		slog.Info("Redis connection established")
	}

	var pageCache repository.PageCacheRepository
	switch cfg.PageCacheDriver {
	case "redis":
		if rdb == nil {
			a.Close()
			return nil, fmt.Errorf("PAGE_CACHE_DRIVER=redis requires REDIS_ADDR")
		}
		pageCache = redis_adapter.NewPageCacheRepo(rdb)
	default:
		pageCache = usecase.NewStorePageCache(st.cache)
	}

	queues := memory.NewQueueFactory()
	if cfg.ScrapeQueueDriver == "redis" {
		if rdb == nil {
			a.Close()
			return nil, fmt.Errorf("SCRAPE_QUEUE_DRIVER=redis requires REDIS_ADDR")
		}
		queues = redis_adapter.NewQueueFactory(rdb)
	}

	proxies := proxy.NewManager(cfg.Proxies())

	var fetcher repository.PageFetcherRepository
	switch cfg.PageFetcher {
	case "chromedp":
		f := chromedp_fetcher.NewChromedpFetcher(proxies, cfg.ScrapeWorkers, cfg.AdapterTimeout())
		a.closers = append(a.closers, f.Close)
		fetcher = f
	default:
		fetcher = colly_fetcher.NewCollyFetcher(proxies, cfg.AdapterTimeout())
	}

	pacer := resilience.NewHostPacer(cfg.HostInterval())
	a.Breaker = resilience.NewBreaker(st.breakers,
		resilience.WithBreakerThreshold(cfg.BreakerThreshold),
		resilience.WithBreakerCooldown(cfg.BreakerCooldown()),
	)
	executor := resilience.NewExecutor(a.Breaker, resilience.WithMaxAttempts(cfg.MaxRetries))

	pool := usecase.NewScrapePool(queues, pageCache, fetcher, pacer, executor, cfg.ScrapeWorkers, cfg.PageCacheTTL())
	client := source.NewClient(proxies.NewHTTPClient(), pacer, proxies, cfg.AdapterTimeout())
	a.Sources = BuildSources(cfg, client, executor, pool)

	a.Retriever = usecase.NewRetriever(a.Sources, st.cache,
		usecase.WithFanoutTimeout(cfg.FanoutTimeout()),
		usecase.WithSupplementaryFetcher(usecase.NewSourceSupplement(a.Sources, cfg.AdapterTimeout())),
	)

	a.Handler = router.New(handler.NewHandler(a.Retriever, a.Breaker, st.checks...), maxRequestTimeout)
	return a, nil
}

func (a *App) openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case "memory":
		slog.Warn("Using in-memory store; breaker and cache state will not survive restarts")
		return &stores{breakers: memory.NewBreakerRepo(), cache: memory.NewRetrievalCacheRepo()}, nil

	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { db.Close() })
		slog.Info("SQLite store opened", "path", cfg.SQLitePath)
		return &stores{
			breakers: sqlite.NewBreakerRepo(db),
			cache:    sqlite.NewRetrievalCacheRepo(db),
			checks:   []handler.HealthCheck{{Name: "sqlite", Ping: db.PingContext}},
		}, nil

	case "postgres", "":
		dbpool, err := pgxpool.New(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		a.closers = append(a.closers, dbpool.Close)
		if err := dbpool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("unable to reach database: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, dbpool); err != nil {
			return nil, err
		}
		slog.Info("PostgreSQL connection pool established")
		return &stores{
			breakers: postgres.NewBreakerRepo(dbpool),
			cache:    postgres.NewRetrievalCacheRepo(dbpool),
			checks:   []handler.HealthCheck{{Name: "postgres", Ping: dbpool.Ping}},
		}, nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}

// BuildSources registers one adapter per configured base URL.
func BuildSources(cfg *config.Config, client *source.Client, executor source.Executor, scraper source.Scraper) []repository.EvidenceSource {
	var sources []repository.EvidenceSource
	if cfg.WebSearchURL != "" {
		sources = append(sources, source.NewWebSearch(cfg.WebSearchURL, cfg.WebSearchKey, client, executor))
	}
	if cfg.TradeStatsURL != "" {
		sources = append(sources, source.NewTradeStats(cfg.TradeStatsURL, cfg.TradeStatsKey, client, executor))
	}
	if cfg.MacroURL != "" {
		sources = append(sources, source.NewMacroIndicators(cfg.MacroURL, client, executor))
	}
	if cfg.ForecastURL != "" {
		sources = append(sources, source.NewForecast(cfg.ForecastURL, client, executor))
	}
	if cfg.NewsURL != "" {
		sources = append(sources, source.NewNewsEvents(cfg.NewsURL, client, executor))
	}
	if cfg.ScrapeSearchURL != "" {
		sources = append(sources, source.NewPageScrape(cfg.ScrapeSearchURL, cfg.ScrapeMaxURLs, scraper, client, executor))
	}

	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, string(s.Name()))
	}
	slog.Info("Evidence sources registered", "sources", names)
	return sources
}

// Close releases every connection in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

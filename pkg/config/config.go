package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	StoreDriver string `mapstructure:"STORE_DRIVER"`

	PostgresHost     string `mapstructure:"POSTGRES_HOST"`
	PostgresPort     string `mapstructure:"POSTGRES_PORT"`
	PostgresUser     string `mapstructure:"POSTGRES_USER"`
	PostgresPassword string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresDB       string `mapstructure:"POSTGRES_DB"`

	SQLitePath string `mapstructure:"SQLITE_PATH"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	PageCacheDriver   string `mapstructure:"PAGE_CACHE_DRIVER"`
	ScrapeQueueDriver string `mapstructure:"SCRAPE_QUEUE_DRIVER"`
	PageFetcher       string `mapstructure:"PAGE_FETCHER"`

	FanoutTimeoutMS   int `mapstructure:"FANOUT_TIMEOUT_MS"`
	AdapterTimeoutMS  int `mapstructure:"ADAPTER_TIMEOUT_MS"`
	MaxRetries        int `mapstructure:"MAX_RETRIES"`
	HostIntervalMS    int `mapstructure:"HOST_INTERVAL_MS"`
	BreakerThreshold  int `mapstructure:"BREAKER_THRESHOLD"`
	BreakerCooldownS  int `mapstructure:"BREAKER_COOLDOWN_SECONDS"`
	ScrapeWorkers     int `mapstructure:"SCRAPE_WORKERS"`
	ScrapeMaxURLs     int `mapstructure:"SCRAPE_MAX_URLS"`
	PageCacheTTLHours int `mapstructure:"PAGE_CACHE_TTL_HOURS"`

	WebSearchURL    string `mapstructure:"WEB_SEARCH_URL"`
	WebSearchKey    string `mapstructure:"WEB_SEARCH_KEY"`
	TradeStatsURL   string `mapstructure:"TRADE_STATS_URL"`
	TradeStatsKey   string `mapstructure:"TRADE_STATS_KEY"`
	MacroURL        string `mapstructure:"MACRO_URL"`
	ForecastURL     string `mapstructure:"FORECAST_URL"`
	NewsURL         string `mapstructure:"NEWS_URL"`
	ScrapeSearchURL string `mapstructure:"SCRAPE_SEARCH_URL"`

	OutboundProxies string `mapstructure:"OUTBOUND_PROXIES"`
}

var defaults = map[string]any{
	"SERVER_PORT":              "8080",
	"LOG_LEVEL":                "info",
	"STORE_DRIVER":             "postgres",
	"POSTGRES_HOST":            "localhost",
	"POSTGRES_PORT":            "5432",
	"POSTGRES_USER":            "user",
	"POSTGRES_PASSWORD":        "password",
	"POSTGRES_DB":              "evidence",
	"SQLITE_PATH":              "evidence.db",
	"REDIS_ADDR":               "",
	"REDIS_PASSWORD":           "",
	"REDIS_DB":                 0,
	"PAGE_CACHE_DRIVER":        "store",
	"SCRAPE_QUEUE_DRIVER":      "memory",
	"PAGE_FETCHER":             "colly",
	"FANOUT_TIMEOUT_MS":        7000,
	"ADAPTER_TIMEOUT_MS":       3000,
	"MAX_RETRIES":              3,
	"HOST_INTERVAL_MS":         1000,
	"BREAKER_THRESHOLD":        5,
	"BREAKER_COOLDOWN_SECONDS": 60,
	"SCRAPE_WORKERS":           3,
	"SCRAPE_MAX_URLS":          5,
	"PAGE_CACHE_TTL_HOURS":     24,
	"WEB_SEARCH_URL":           "",
	"WEB_SEARCH_KEY":           "",
	"TRADE_STATS_URL":          "",
	"TRADE_STATS_KEY":          "",
	"MACRO_URL":                "https://api.worldbank.org/v2",
	"FORECAST_URL":             "",
	"NEWS_URL":                 "https://api.gdeltproject.org/api/v2/doc/doc",
	"SCRAPE_SEARCH_URL":        "",
	"OUTBOUND_PROXIES":         "",
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit env-file path. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Production deployments configure purely through the environment.
	_ = v.ReadInConfig()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FanoutTimeout is the default global timeout for one retrieval.
func (c *Config) FanoutTimeout() time.Duration {
	return time.Duration(c.FanoutTimeoutMS) * time.Millisecond
}

// AdapterTimeout is the per-call timeout, held within 2.5s..4s.
func (c *Config) AdapterTimeout() time.Duration {
	d := time.Duration(c.AdapterTimeoutMS) * time.Millisecond
	switch {
	case d < 2500*time.Millisecond:
		return 2500 * time.Millisecond
	case d > 4*time.Second:
		return 4 * time.Second
	}
	return d
}

// HostInterval is the minimum gap between two requests to the same host.
func (c *Config) HostInterval() time.Duration {
	return time.Duration(c.HostIntervalMS) * time.Millisecond
}

// BreakerCooldown is how long an open breaker rejects calls.
func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.BreakerCooldownS) * time.Second
}

// PageCacheTTL is how long a scraped page stays reusable.
func (c *Config) PageCacheTTL() time.Duration {
	return time.Duration(c.PageCacheTTLHours) * time.Hour
}

// Proxies splits OUTBOUND_PROXIES into a list.
func (c *Config) Proxies() []string {
	var out []string
	for _, p := range strings.Split(c.OutboundProxies, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PostgresDSN assembles the pgx connection string.
func (c *Config) PostgresDSN() string {
	return "postgres://" + c.PostgresUser + ":" + c.PostgresPassword + "@" + c.PostgresHost + ":" + c.PostgresPort + "/" + c.PostgresDB + "?sslmode=disable"
}

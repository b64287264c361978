package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Log      LogConfig
	Crawl    CrawlConfig
	Taxonomy TaxonomyConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level  string
	Format string
}

// CrawlConfig holds the per-run crawl parameters. Durations are kept as
// strings so they round-trip through the config file unchanged.
type CrawlConfig struct {
	FetchTimeout    string
	LinkDelay       string
	LogCapacity     int
	Scope           string
	MaxDocuments    int
	DocumentWorkers int
	MaxBodyBytes    int
	UserAgent       string
	// Schedule is an optional cron expression for recurring crawls of
	// ScheduleURL by the server.
	Schedule    string
	ScheduleURL string
}

type TaxonomyConfig struct {
	File string
}

const (
	ScopeHost = "host"
	ScopeSite = "site"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8051,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Crawl: CrawlConfig{
			FetchTimeout:    "10s",
			LinkDelay:       "200ms",
			LogCapacity:     200,
			Scope:           ScopeHost,
			MaxDocuments:    50,
			DocumentWorkers: 4,
			MaxBodyBytes:    32 << 20,
			UserAgent:       "laiwatch/1.0",
		},
	}
}

// Load reads configuration from the JSON file backend, an optional .env
// file in the working directory, and environment variables.
//
// The backend is a JSON file at $XDG_CONFIG_HOME/laiwatch/config.json.
// Variables from .env never override variables already set in the
// environment. Environment variables (LAIWATCH_*) override backend values.
func Load() (Config, error) {
	_ = godotenv.Load()
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid value in cfg.
func (cfg Config) Validate() error {
	if _, err := time.ParseDuration(cfg.Crawl.FetchTimeout); err != nil {
		return fmt.Errorf("invalid crawl.fetch_timeout %q: %w", cfg.Crawl.FetchTimeout, err)
	}
	if _, err := time.ParseDuration(cfg.Crawl.LinkDelay); err != nil {
		return fmt.Errorf("invalid crawl.link_delay %q: %w", cfg.Crawl.LinkDelay, err)
	}
	if cfg.Crawl.Scope != ScopeHost && cfg.Crawl.Scope != ScopeSite {
		return fmt.Errorf("invalid crawl.scope %q: want %q or %q", cfg.Crawl.Scope, ScopeHost, ScopeSite)
	}
	if cfg.Crawl.LogCapacity <= 0 {
		return fmt.Errorf("crawl.log_capacity must be positive, got %d", cfg.Crawl.LogCapacity)
	}
	if cfg.Crawl.DocumentWorkers <= 0 {
		return fmt.Errorf("crawl.document_workers must be positive, got %d", cfg.Crawl.DocumentWorkers)
	}
	if cfg.Crawl.MaxDocuments < 0 {
		return fmt.Errorf("crawl.max_documents must not be negative, got %d", cfg.Crawl.MaxDocuments)
	}
	if cfg.Crawl.MaxBodyBytes <= 0 {
		return fmt.Errorf("crawl.max_body_bytes must be positive, got %d", cfg.Crawl.MaxBodyBytes)
	}
	if cfg.Crawl.Schedule != "" && cfg.Crawl.ScheduleURL == "" {
		return fmt.Errorf("crawl.schedule_url is required when crawl.schedule is set")
	}
	return nil
}

// FetchTimeoutDuration returns the parsed per-request timeout. Validate guarantees
// the value parses.
func (c CrawlConfig) FetchTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.FetchTimeout)
	return d
}

func (c CrawlConfig) LinkDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.LinkDelay)
	return d
}

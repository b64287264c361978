package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "LAIWATCH_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "LAIWATCH_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "storage.data_dir", typ: kString, env: "LAIWATCH_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "LAIWATCH_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "LAIWATCH_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
	{
		key: "crawl.fetch_timeout", typ: kString, env: "LAIWATCH_CRAWL_FETCH_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Crawl.FetchTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Crawl.FetchTimeout },
	},
	{
		key: "crawl.link_delay", typ: kString, env: "LAIWATCH_CRAWL_LINK_DELAY",
		apply:   func(cfg *Config, v any) { cfg.Crawl.LinkDelay = v.(string) },
		extract: func(cfg Config) any { return cfg.Crawl.LinkDelay },
	},
	{
		key: "crawl.log_capacity", typ: kInt, env: "LAIWATCH_CRAWL_LOG_CAPACITY",
		apply:   func(cfg *Config, v any) { cfg.Crawl.LogCapacity = v.(int) },
		extract: func(cfg Config) any { return cfg.Crawl.LogCapacity },
	},
	{
		key: "crawl.scope", typ: kString, env: "LAIWATCH_CRAWL_SCOPE",
		apply:   func(cfg *Config, v any) { cfg.Crawl.Scope = v.(string) },
		extract: func(cfg Config) any { return cfg.Crawl.Scope },
	},
	{
		key: "crawl.max_documents", typ: kInt, env: "LAIWATCH_CRAWL_MAX_DOCUMENTS",
		apply:   func(cfg *Config, v any) { cfg.Crawl.MaxDocuments = v.(int) },
		extract: func(cfg Config) any { return cfg.Crawl.MaxDocuments },
	},
	{
		key: "crawl.document_workers", typ: kInt, env: "LAIWATCH_CRAWL_DOCUMENT_WORKERS",
		apply:   func(cfg *Config, v any) { cfg.Crawl.DocumentWorkers = v.(int) },
		extract: func(cfg Config) any { return cfg.Crawl.DocumentWorkers },
	},
	{
		key: "crawl.max_body_bytes", typ: kInt, env: "LAIWATCH_CRAWL_MAX_BODY_BYTES",
		apply:   func(cfg *Config, v any) { cfg.Crawl.MaxBodyBytes = v.(int) },
		extract: func(cfg Config) any { return cfg.Crawl.MaxBodyBytes },
	},
	{
		key: "crawl.user_agent", typ: kString, env: "LAIWATCH_CRAWL_USER_AGENT",
		apply:   func(cfg *Config, v any) { cfg.Crawl.UserAgent = v.(string) },
		extract: func(cfg Config) any { return cfg.Crawl.UserAgent },
	},
	{
		key: "crawl.schedule", typ: kString, env: "LAIWATCH_CRAWL_SCHEDULE",
		apply:   func(cfg *Config, v any) { cfg.Crawl.Schedule = v.(string) },
		extract: func(cfg Config) any { return cfg.Crawl.Schedule },
	},
	{
		key: "crawl.schedule_url", typ: kString, env: "LAIWATCH_CRAWL_SCHEDULE_URL",
		apply:   func(cfg *Config, v any) { cfg.Crawl.ScheduleURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Crawl.ScheduleURL },
	},
	{
		key: "taxonomy.file", typ: kString, env: "LAIWATCH_TAXONOMY_FILE",
		apply:   func(cfg *Config, v any) { cfg.Taxonomy.File = v.(string) },
		extract: func(cfg Config) any { return cfg.Taxonomy.File },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

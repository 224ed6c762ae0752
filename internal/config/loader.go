package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "FPL_"
	envConfigPath = "FPL_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if FPL_CONFIG is set
//  3. env (prefix FPL_, "__" separates sections: FPL_CACHE__BACKEND=redis)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(envConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		if s == envConfigPath {
			return ""
		}
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: environment: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.HTTP.Addr == "" {
		return invalid("http.addr must not be empty")
	}
	if c.Upstream.BaseURL == "" {
		return invalid("upstream.base_url must not be empty")
	}
	if c.Upstream.MaxAttempts < 1 {
		return invalid("upstream.max_attempts must be at least 1")
	}
	if c.Upstream.RequestTimeout <= 0 {
		return invalid("upstream.request_timeout must be positive")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.Store.DSN == "" {
			return invalid("store.dsn is required for driver %q", c.Store.Driver)
		}
	default:
		return invalid("unknown store.driver %q", c.Store.Driver)
	}

	switch c.Cache.Backend {
	case BackendMemory:
		if c.Cache.MaxEntries <= 0 {
			return invalid("cache.max_entries must be positive")
		}
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			return invalid("cache.redis_addr is required for the redis backend")
		}
	case BackendNone:
	default:
		return invalid("unknown cache.backend %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return invalid("cache.ttl must be positive")
	}

	a := c.Analytics
	if a.FormWindow < 1 || a.MinSamples < 1 {
		return invalid("analytics.form_window and analytics.min_samples must be at least 1")
	}
	if a.MinSamples > a.FormWindow {
		return invalid("analytics.min_samples (%d) exceeds analytics.form_window (%d)", a.MinSamples, a.FormWindow)
	}
	if a.FormDecay <= 0 || a.FormDecay > 1 {
		return invalid("analytics.form_decay must be in (0, 1]")
	}
	if a.BogeyMinEncounters < 1 {
		return invalid("analytics.bogey_min_encounters must be at least 1")
	}

	if c.Schedule.Enabled {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return invalid("schedule.timezone: %v", err)
		}
		for _, t := range c.Schedule.WeekdayTimes {
			if _, err := time.Parse("15:04", t); err != nil {
				return invalid("schedule.weekday_times entry %q is not HH:MM", t)
			}
		}
	}

	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return invalid("telegram.bot_token and telegram.chat_id are required when telegram is enabled")
	}
	return nil
}

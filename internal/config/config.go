// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New(ctx) returns a Config populated with defaults.
// - Load(ctx) layers a YAML file and FPL_ environment variables on top.
// - Validate reports impossible combinations with ErrInvalidConfig.
package config

import (
	"context"
	"time"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Config contains process configuration.
type Config struct {
	Log       LogConfig       `koanf:"log"`
	HTTP      HTTPConfig      `koanf:"http"`
	MCP       MCPConfig       `koanf:"mcp"`
	Upstream  UpstreamConfig  `koanf:"upstream"`
	Sync      SyncConfig      `koanf:"sync"`
	Store     StoreConfig     `koanf:"store"`
	Cache     CacheConfig     `koanf:"cache"`
	Analytics AnalyticsConfig `koanf:"analytics"`
	Schedule  ScheduleConfig  `koanf:"schedule"`
	Telegram  TelegramConfig  `koanf:"telegram"`
}

// LogConfig controls verbosity (debug, info, warn, error) and format (text, json).
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// HTTPConfig configures the REST listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// MCPConfig configures the tool endpoint. An empty APIKey disables the check.
type MCPConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"`
	APIKey     string `koanf:"api_key"`
	AuthHeader string `koanf:"auth_header"`
}

// UpstreamConfig configures the FPL API client and its retry policy.
type UpstreamConfig struct {
	BaseURL        string        `koanf:"base_url"`
	UserAgent      string        `koanf:"user_agent"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	MaxAttempts    int           `koanf:"max_attempts"`
	BackoffBase    time.Duration `koanf:"backoff_base"`
	BackoffMax     time.Duration `koanf:"backoff_max"`
	MaxBodyBytes   int64         `koanf:"max_body_bytes"`
}

// SyncConfig configures ingestion runs.
type SyncConfig struct {
	RunTimeout         time.Duration `koanf:"run_timeout"`
	HistoryTopN        int           `koanf:"history_top_n"`
	HistoryConcurrency int           `koanf:"history_concurrency"`
	QueueSize          int           `koanf:"queue_size"`
	RunOnStart         bool          `koanf:"run_on_start"`
}

// StoreConfig selects the canonical store persistence.
type StoreConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// CacheConfig configures the read-through cache.
type CacheConfig struct {
	Backend       string                   `koanf:"backend"`
	TTL           time.Duration            `koanf:"ttl"`
	OperationTTLs map[string]time.Duration `koanf:"operation_ttls"`
	MaxEntries    int                      `koanf:"max_entries"`
	Cooldown      time.Duration            `koanf:"cooldown"`
	RedisAddr     string                   `koanf:"redis_addr"`
	RedisPassword string                   `koanf:"redis_password"`
	RedisDB       int                      `koanf:"redis_db"`
	KeyPrefix     string                   `koanf:"key_prefix"`
}

// AnalyticsConfig holds the tunables of the analytics engine.
type AnalyticsConfig struct {
	FormWindow     int     `koanf:"form_window"`
	MinSamples     int     `koanf:"min_samples"`
	FormDecay      float64 `koanf:"form_decay"`
	TrendThreshold float64 `koanf:"trend_threshold"`

	HomeAdvantage  float64 `koanf:"home_advantage"`
	FDRWeight      float64 `koanf:"fdr_weight"`
	FixtureHorizon int     `koanf:"fixture_horizon"`

	TransferFormWeight    float64 `koanf:"transfer_form_weight"`
	TransferFixtureWeight float64 `koanf:"transfer_fixture_weight"`
	TransferPriceWeight   float64 `koanf:"transfer_price_weight"`
	ClubLimit             int     `koanf:"club_limit"`

	DifferentialMaxOwnership float64 `koanf:"differential_max_ownership"`
	DifferentialMinForm      float64 `koanf:"differential_min_form"`

	BogeyMinEncounters int     `koanf:"bogey_min_encounters"`
	BogeyPointsDelta   float64 `koanf:"bogey_points_delta"`
	BogeyTeamPPG       float64 `koanf:"bogey_team_ppg"`
	FavoredTeamPPG     float64 `koanf:"favored_team_ppg"`
}

// ScheduleConfig configures the cron-style sync triggers.
type ScheduleConfig struct {
	Enabled      bool     `koanf:"enabled"`
	Timezone     string   `koanf:"timezone"`
	WeekdayTimes []string `koanf:"weekday_times"`
	WeekendCron  string   `koanf:"weekend_cron"`
}

// TelegramConfig configures failure notifications.
type TelegramConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BotToken string `koanf:"bot_token"`
	ChatID   string `koanf:"chat_id"`
}

// New returns a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		HTTP: HTTPConfig{
			Addr:            ":9080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		MCP: MCPConfig{Enabled: true, Path: "/mcp", AuthHeader: "X-API-Key"},
		Upstream: UpstreamConfig{
			BaseURL:        "https://fantasy.premierleague.com/api",
			UserAgent:      "fantasypl-mcp/1.0",
			RequestTimeout: 20 * time.Second,
			MaxAttempts:    4,
			BackoffBase:    500 * time.Millisecond,
			BackoffMax:     8 * time.Second,
			MaxBodyBytes:   16 << 20,
		},
		Sync: SyncConfig{
			RunTimeout:         10 * time.Minute,
			HistoryTopN:        100,
			HistoryConcurrency: 4,
			QueueSize:          1,
			RunOnStart:         true,
		},
		Store: StoreConfig{Driver: DriverMemory},
		Cache: CacheConfig{
			Backend: BackendMemory,
			TTL:     30 * time.Minute,
			OperationTTLs: map[string]time.Duration{
				"get_fixture_difficulty": 15 * time.Minute,
				"get_easiest_schedules":  15 * time.Minute,
				"get_captaincy_picks":    15 * time.Minute,
				"analyze_my_team":        15 * time.Minute,
			},
			MaxEntries: 10_000,
			Cooldown:   30 * time.Second,
			RedisAddr:  "localhost:6379",
			KeyPrefix:  "fpl:",
		},
		Analytics: AnalyticsConfig{
			FormWindow:               5,
			MinSamples:               3,
			FormDecay:                0.8,
			TrendThreshold:           1.0,
			HomeAdvantage:            0.5,
			FDRWeight:                0.5,
			FixtureHorizon:           5,
			TransferFormWeight:       1.0,
			TransferFixtureWeight:    0.3,
			TransferPriceWeight:      0.2,
			ClubLimit:                3,
			DifferentialMaxOwnership: 10.0,
			DifferentialMinForm:      3.0,
			BogeyMinEncounters:       3,
			BogeyPointsDelta:         1.0,
			BogeyTeamPPG:             1.0,
			FavoredTeamPPG:           2.0,
		},
		Schedule: ScheduleConfig{
			Enabled:      true,
			Timezone:     "Europe/London",
			WeekdayTimes: []string{"08:00", "20:00"},
			WeekendCron:  "0 * * * 0,6",
		},
	}
}

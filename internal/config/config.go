// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load(ctx) layers defaults, an optional YAML file, and CLOG_-prefixed env.
package config

import "time"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr configures the metrics/health HTTP listen address.
	MetricsAddr string `koanf:"metrics_addr"`

	// DBPath points at the sqlite database file.
	DBPath string `koanf:"db_path"`

	// DiscordToken authenticates the bot with Discord.
	DiscordToken string `koanf:"discord_token"`

	// AdminRoleID and AdminUserID grant admin command access beyond
	// guild administrators. Empty means not configured.
	AdminRoleID string `koanf:"admin_role_id"`
	AdminUserID string `koanf:"admin_user_id"`

	// HiscoreBaseURL is the lookup endpoint; the player name is appended.
	HiscoreBaseURL string `koanf:"hiscore_base_url"`

	// RequestsPerMinute and MaxBurst bound the outbound lookup rate.
	RequestsPerMinute int `koanf:"requests_per_minute"`
	MaxBurst          int `koanf:"max_burst"`

	// FetchTimeoutMS bounds a single hiscore lookup.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`

	// CacheTTLSeconds bounds result cache entry age.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// MaxRetries caps retry attempts after a transient fetch failure.
	MaxRetries int `koanf:"max_retries"`

	// SyncInterval is the period between scheduled all-scope sync passes.
	SyncInterval time.Duration `koanf:"sync_interval"`

	// TopN caps how many entries the published leaderboard shows.
	TopN int `koanf:"top_n"`

	// TotalAchievable is the maximum collection log total, shown next to
	// the first place entry.
	TotalAchievable int `koanf:"total_achievable"`

	// AccountEmojis maps account types (Main, Iron, HCIM, UIM, GIM) to the
	// guild emoji rendered before the player name.
	AccountEmojis map[string]string `koanf:"account_emojis"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		MetricsAddr:       ":9091",
		DBPath:            "clogboard.db",
		HiscoreBaseURL:    "https://secure.runescape.com/m=hiscore_oldschool/index_lite.json?player=",
		RequestsPerMinute: 20,
		MaxBurst:          5,
		FetchTimeoutMS:    10_000,
		CacheTTLSeconds:   3600,
		MaxRetries:        2,
		SyncInterval:      time.Hour,
		TopN:              50,
		TotalAchievable:   1581,
		AccountEmojis:     map[string]string{},
	}
}

// FetchTimeout returns the per-lookup timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// CacheTTL returns the result cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

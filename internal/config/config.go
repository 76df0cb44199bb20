// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"github.com/stwalsh4118/airwave/internal/playout"
	"github.com/stwalsh4118/airwave/internal/source"
	"github.com/stwalsh4118/airwave/internal/streaming"
)

const (
	defaultServerPort                = 8080
	defaultServerHost                = "0.0.0.0"
	defaultReadTimeout               = 30 * time.Second
	defaultWriteTimeout              = 30 * time.Second
	defaultDatabasePath              = "./data/airwave.db"
	defaultDatabaseConnectionTimeout = 5 * time.Second
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false
	defaultDatabaseEnableWAL         = true
	defaultScheduleDir               = "./schedules"
	defaultScheduleMaxItems          = streaming.DefaultMaxItems
	defaultScheduleLookahead         = streaming.DefaultLookahead
	defaultScheduleHistory           = streaming.DefaultHistory
	defaultScheduleHorizon           = streaming.DefaultHorizon
	defaultScheduleMaxDepth          = playout.DefaultMaxDepth
	defaultScheduleWatch             = true
	defaultScheduleRefreshSpec       = "@every 5m"
	defaultScheduleSeedMode          = "fixed"
	defaultCollectionTTL             = 5 * time.Minute
	defaultSourceTTL                 = 30 * time.Minute
	defaultSourceTimeout             = 45 * time.Second
	defaultBreakerThreshold          = 5
	defaultBreakerTimeout            = 60 * time.Second
	envPrefix                        = "AIRWAVE"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Schedule ScheduleConfig
	Cache    CacheConfig
	Source   SourceConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
	EnableWAL         bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// ScheduleConfig holds schedule loading and playlist generation configuration
type ScheduleConfig struct {
	Dir       string
	MaxItems  int
	Lookahead time.Duration
	// History is how long aired items stay queryable; Horizon bounds how far
	// ahead a position may be asked for
	History   time.Duration
	Horizon   time.Duration
	MaxDepth  int
	Strict    bool
	Watch     bool
	// RefreshSpec is a cron spec for background extension; empty disables it
	RefreshSpec string
	SeedMode    string
	// ExportDir receives upcoming.m3u8 per channel; empty disables export
	ExportDir string
}

// CacheConfig holds collection and source cache configuration.
// An empty RedisAddr selects the in-process cache.
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CollectionTTL time.Duration
	SourceTTL     time.Duration
}

// SourceConfig holds playable URL resolution configuration
type SourceConfig struct {
	ArchiveBaseURL   string
	YtDlpPath        string
	Timeout          time.Duration
	MaxAttempts      int
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
}

// SeedModeValue returns the parsed seed mode
func (s ScheduleConfig) SeedModeValue() playout.SeedMode {
	mode, _ := playout.ParseSeedMode(s.SeedMode) // validated on load
	return mode
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// Load .env file if present (optional, won't error if missing)
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/airwave")

	// Environment variable settings
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	// Database defaults
	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseConnectionTimeout)
	v.SetDefault("database.enablewal", defaultDatabaseEnableWAL)

	// Logging defaults
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	// Schedule defaults
	v.SetDefault("schedule.dir", defaultScheduleDir)
	v.SetDefault("schedule.maxitems", defaultScheduleMaxItems)
	v.SetDefault("schedule.lookahead", defaultScheduleLookahead)
	v.SetDefault("schedule.history", defaultScheduleHistory)
	v.SetDefault("schedule.horizon", defaultScheduleHorizon)
	v.SetDefault("schedule.maxdepth", defaultScheduleMaxDepth)
	v.SetDefault("schedule.strict", false)
	v.SetDefault("schedule.watch", defaultScheduleWatch)
	v.SetDefault("schedule.refreshspec", defaultScheduleRefreshSpec)
	v.SetDefault("schedule.seedmode", defaultScheduleSeedMode)
	v.SetDefault("schedule.exportdir", "")

	// Cache defaults
	v.SetDefault("cache.redisaddr", "")
	v.SetDefault("cache.redispassword", "")
	v.SetDefault("cache.redisdb", 0)
	v.SetDefault("cache.collectionttl", defaultCollectionTTL)
	v.SetDefault("cache.sourcettl", defaultSourceTTL)

	// Source defaults
	v.SetDefault("source.archivebaseurl", source.DefaultArchiveBaseURL)
	v.SetDefault("source.ytdlppath", "yt-dlp")
	v.SetDefault("source.timeout", defaultSourceTimeout)
	v.SetDefault("source.maxattempts", source.DefaultMaxAttempts)
	v.SetDefault("source.breakerthreshold", defaultBreakerThreshold)
	v.SetDefault("source.breakertimeout", defaultBreakerTimeout)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	// Validate server port
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	// Validate timeout durations
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if err := c.Schedule.validate(); err != nil {
		return err
	}

	// Validate cache
	if c.Cache.RedisDB < 0 {
		return fmt.Errorf("invalid redis db: %d (must be >= 0)", c.Cache.RedisDB)
	}
	if c.Cache.CollectionTTL <= 0 {
		return fmt.Errorf("invalid collection ttl: %v (must be > 0)", c.Cache.CollectionTTL)
	}
	if c.Cache.SourceTTL <= 0 {
		return fmt.Errorf("invalid source ttl: %v (must be > 0)", c.Cache.SourceTTL)
	}

	// Validate source resolution
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("invalid source timeout: %v (must be > 0)", c.Source.Timeout)
	}
	if c.Source.MaxAttempts < 1 {
		return fmt.Errorf("invalid source max attempts: %d (must be >= 1)", c.Source.MaxAttempts)
	}
	if c.Source.BreakerThreshold < 1 {
		return fmt.Errorf("invalid breaker threshold: %d (must be >= 1)", c.Source.BreakerThreshold)
	}
	if c.Source.BreakerTimeout <= 0 {
		return fmt.Errorf("invalid breaker timeout: %v (must be > 0)", c.Source.BreakerTimeout)
	}
	if !strings.HasPrefix(c.Source.ArchiveBaseURL, "http://") && !strings.HasPrefix(c.Source.ArchiveBaseURL, "https://") {
		return fmt.Errorf("invalid archive base url: %q (must be http or https)", c.Source.ArchiveBaseURL)
	}

	return nil
}

func (s ScheduleConfig) validate() error {
	if strings.TrimSpace(s.Dir) == "" {
		return fmt.Errorf("schedule dir is required")
	}
	if s.MaxItems < 1 {
		return fmt.Errorf("invalid schedule max items: %d (must be >= 1)", s.MaxItems)
	}
	if s.Lookahead <= 0 {
		return fmt.Errorf("invalid schedule lookahead: %v (must be > 0)", s.Lookahead)
	}
	if s.History <= 0 {
		return fmt.Errorf("invalid schedule history: %v (must be > 0)", s.History)
	}
	if s.Horizon < s.Lookahead {
		return fmt.Errorf("invalid schedule horizon: %v (must be >= lookahead %v)", s.Horizon, s.Lookahead)
	}
	if s.MaxDepth < 1 {
		return fmt.Errorf("invalid schedule max depth: %d (must be >= 1)", s.MaxDepth)
	}
	if _, err := playout.ParseSeedMode(s.SeedMode); err != nil {
		return fmt.Errorf("invalid schedule seed mode: %w", err)
	}
	if s.RefreshSpec != "" {
		if _, err := cron.ParseStandard(s.RefreshSpec); err != nil {
			return fmt.Errorf("invalid schedule refresh spec %q: %w", s.RefreshSpec, err)
		}
	}
	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

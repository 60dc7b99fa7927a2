package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig
	Cache   CacheConfig
	Browser BrowserConfig
	Scraper ScraperConfig
	Log     LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type        string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL    string        `mapstructure:"redis_url"`
	TTL         time.Duration `mapstructure:"ttl"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
	Size        int           `mapstructure:"size"` // memory backend entries
}

// BrowserConfig holds headless Chrome configuration
type BrowserConfig struct {
	Headless     bool          `mapstructure:"headless"`
	ExecPath     string        `mapstructure:"exec_path"`
	NoSandbox    bool          `mapstructure:"no_sandbox"`
	UserAgent    string        `mapstructure:"user_agent"`
	StartTimeout time.Duration `mapstructure:"start_timeout"`
	WaitTimeout  time.Duration `mapstructure:"wait_timeout"`
}

// ScraperConfig holds orchestration and per-source scraping configuration
type ScraperConfig struct {
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	MaxConcurrency       int           `mapstructure:"max_concurrency"`
	SourceTimeout        time.Duration `mapstructure:"source_timeout"`
	MaxAttempts          int           `mapstructure:"max_attempts"`
	Backoff              time.Duration `mapstructure:"backoff"`
	SettleDelay          time.Duration `mapstructure:"settle_delay"`
	NavigationsPerSecond float64       `mapstructure:"navigations_per_second"`
	EnabledSources       []string      `mapstructure:"enabled_sources"`
	SourcesFile          string        `mapstructure:"sources_file"` // optional JSON5 overrides
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from .env, environment variables and an optional config file.
// An empty path searches the default locations for config.yaml.
func Load(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/pricescout/")
	}

	// Environment variable settings: PRICESCOUT_CACHE_TTL -> cache.ttl
	v.SetEnvPrefix("PRICESCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads .env from the working directory without overriding existing variables
func loadEnvFile() error {
	err := godotenv.Load(".env")
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"chrome-extension://*", "http://localhost:3000"})

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.max_lifetime", "1h")
	v.SetDefault("cache.size", 1024)

	// Browser defaults
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.start_timeout", "30s")
	v.SetDefault("browser.wait_timeout", "15s")

	// Scraper defaults
	v.SetDefault("scraper.request_timeout", "90s")
	v.SetDefault("scraper.max_concurrency", 4)
	v.SetDefault("scraper.source_timeout", "45s")
	v.SetDefault("scraper.max_attempts", 2)
	v.SetDefault("scraper.backoff", "1s")
	v.SetDefault("scraper.settle_delay", "2s")
	v.SetDefault("scraper.navigations_per_second", 1.0)
	v.SetDefault("scraper.enabled_sources", []string{})
	v.SetDefault("scraper.sources_file", "")

	// Log defaults
	v.SetDefault("log.level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Cache.MaxLifetime > 0 && config.Cache.TTL > config.Cache.MaxLifetime {
		return fmt.Errorf("cache ttl (%s) must not exceed max lifetime (%s)", config.Cache.TTL, config.Cache.MaxLifetime)
	}

	if config.Scraper.MaxConcurrency <= 0 {
		return fmt.Errorf("scraper max concurrency must be positive, got: %d", config.Scraper.MaxConcurrency)
	}

	if config.Scraper.MaxAttempts <= 0 {
		return fmt.Errorf("scraper max attempts must be positive, got: %d", config.Scraper.MaxAttempts)
	}

	if config.Scraper.NavigationsPerSecond <= 0 {
		return fmt.Errorf("scraper navigations per second must be positive, got: %v", config.Scraper.NavigationsPerSecond)
	}

	if _, err := log.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	return nil
}

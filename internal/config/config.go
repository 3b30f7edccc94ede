// Package config handles configuration loading for DTF Scope.
// It supports YAML config files with environment variable overrides
// and secrets read from a .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
type Config struct {
	CoinGecko CoinGeckoConfig `mapstructure:"coingecko" yaml:"coingecko"`
	Secrets   SecretsConfig   `mapstructure:"secrets"   yaml:"secrets"`
	Dashboard DashboardConfig `mapstructure:"dashboard" yaml:"dashboard"`
	Headlines HeadlinesConfig `mapstructure:"headlines" yaml:"headlines"`
	API       APIConfig       `mapstructure:"api"       yaml:"api"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`

	// File is the config file that was read, empty when running on defaults.
	File string `mapstructure:"-" yaml:"-"`
}

// CoinGeckoConfig holds market-data API settings.
type CoinGeckoConfig struct {
	BaseURL           string        `mapstructure:"base_url"            yaml:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"             yaml:"timeout"`
	CategoriesTTL     time.Duration `mapstructure:"categories_ttl"      yaml:"categories_ttl"`
	MarketsTTL        time.Duration `mapstructure:"markets_ttl"         yaml:"markets_ttl"`
	RateLimitBurst    int           `mapstructure:"rate_limit_burst"    yaml:"rate_limit_burst"`
	RateLimitInterval time.Duration `mapstructure:"rate_limit_interval" yaml:"rate_limit_interval"`
}

// SecretsConfig holds API keys. Prefer .env or the environment over the file.
type SecretsConfig struct {
	CMCAPIKey       string `mapstructure:"cmc_api_key"       yaml:"cmc_api_key"`
	CoinGeckoAPIKey string `mapstructure:"coingecko_api_key" yaml:"coingecko_api_key"`
}

// DashboardConfig holds rendering settings.
type DashboardConfig struct {
	HistogramBins   int           `mapstructure:"histogram_bins"   yaml:"histogram_bins"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"` // WebSocket push period
	RenderTimeout   time.Duration `mapstructure:"render_timeout"   yaml:"render_timeout"`
	MaxLiveRenders  int           `mapstructure:"max_live_renders" yaml:"max_live_renders"` // concurrent renders per refresh tick
}

// HeadlinesConfig holds RSS/Atom news feed settings.
type HeadlinesConfig struct {
	Feeds    []string      `mapstructure:"feeds"     yaml:"feeds"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	Limit    int           `mapstructure:"limit"     yaml:"limit"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host           string        `mapstructure:"host"            yaml:"host"`
	Port           int           `mapstructure:"port"            yaml:"port"`
	CORSOrigins    []string      `mapstructure:"cors_origins"    yaml:"cors_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "plain" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.dtfscope/config.yaml (home directory)
//  3. /etc/dtfscope/config.yaml (system)
//
// Environment variables override config file values.
// Format: DTFSCOPE_<SECTION>_<KEY>, e.g., DTFSCOPE_COINGECKO_BASE_URL
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".dtfscope"))
	v.AddConfigPath("/etc/dtfscope")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("DTFSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.File = v.ConfigFileUsed()

	// Override sensitive values from environment
	overrideFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// CoinGecko defaults
	v.SetDefault("coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("coingecko.timeout", 30*time.Second)
	v.SetDefault("coingecko.categories_ttl", time.Hour)
	v.SetDefault("coingecko.markets_ttl", 5*time.Minute)
	v.SetDefault("coingecko.rate_limit_burst", 5)
	v.SetDefault("coingecko.rate_limit_interval", 2*time.Second)

	// Secrets are never defaulted, but registering the keys lets
	// DTFSCOPE_SECRETS_* env vars reach Unmarshal.
	v.SetDefault("secrets.cmc_api_key", "")
	v.SetDefault("secrets.coingecko_api_key", "")

	// Dashboard defaults
	v.SetDefault("dashboard.histogram_bins", 20)
	v.SetDefault("dashboard.refresh_interval", time.Minute)
	v.SetDefault("dashboard.render_timeout", 45*time.Second)
	v.SetDefault("dashboard.max_live_renders", 4)

	// Headlines defaults
	v.SetDefault("headlines.feeds", []string{
		"https://www.coindesk.com/arc/outboundfeeds/rss/",
		"https://cointelegraph.com/rss",
		"https://decrypt.co/feed",
	})
	v.SetDefault("headlines.cache_ttl", 15*time.Minute)
	v.SetDefault("headlines.limit", 8)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:8080"})
	v.SetDefault("api.request_timeout", 60*time.Second)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "plain")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("CMC_API_KEY"); key != "" {
		cfg.Secrets.CMCAPIKey = key
	}
	if key := os.Getenv("COINGECKO_API_KEY"); key != "" {
		cfg.Secrets.CoinGeckoAPIKey = key
	}
}

// Validate rejects settings the application cannot run with.
func (c *Config) Validate() error {
	if c.CoinGecko.BaseURL == "" {
		return fmt.Errorf("config: coingecko.base_url is required")
	}
	if c.Dashboard.HistogramBins <= 0 {
		return fmt.Errorf("config: dashboard.histogram_bins must be positive, got %d", c.Dashboard.HistogramBins)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("config: api.port out of range: %d", c.API.Port)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown logging.level %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "plain", "json":
	default:
		return fmt.Errorf("config: unknown logging.format %q", c.Logging.Format)
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// Redacted returns a copy of c with secrets masked, safe to display.
func (c *Config) Redacted() *Config {
	redacted := *c
	if redacted.Secrets.CMCAPIKey != "" {
		redacted.Secrets.CMCAPIKey = maskKey(redacted.Secrets.CMCAPIKey)
	}
	if redacted.Secrets.CoinGeckoAPIKey != "" {
		redacted.Secrets.CoinGeckoAPIKey = maskKey(redacted.Secrets.CoinGeckoAPIKey)
	}
	return &redacted
}

// ToYAML renders the effective configuration with secrets masked.
func ToYAML(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// Package config holds runtime configuration for the promptdash service,
// parsed from environment variables with sensible defaults.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/promptdash/promptdash/utils"
)

type Config struct {
	Provider    string        `env:"PD_PROVIDER" envDefault:"anthropic"`
	Model       string        `env:"PD_MODEL"`
	Temperature float64       `env:"PD_TEMPERATURE" envDefault:"0.7"`
	MaxTokens   int           `env:"PD_MAX_TOKENS" envDefault:"2048"`
	Timeout     time.Duration `env:"PD_TIMEOUT" envDefault:"30s"`

	// Provider call resilience.
	MaxRetries       int           `env:"PD_MAX_RETRIES" envDefault:"3"`
	RetryBackoffUnit time.Duration `env:"PD_RETRY_BACKOFF_UNIT" envDefault:"1s"`
	CacheEnabled     bool          `env:"PD_CACHE_ENABLED" envDefault:"true"`
	CacheSize        int           `env:"PD_CACHE_SIZE" envDefault:"1000"`
	CacheTTL         time.Duration `env:"PD_CACHE_TTL" envDefault:"1h"`
	BreakerEnabled   bool          `env:"PD_BREAKER_ENABLED" envDefault:"true"`
	BreakerThreshold int           `env:"PD_BREAKER_THRESHOLD" envDefault:"5"`
	BreakerCooldown  time.Duration `env:"PD_BREAKER_COOLDOWN" envDefault:"60s"`

	DatabaseURL string         `env:"DATABASE_URL"`
	ListenAddr  string         `env:"PD_LISTEN_ADDR" envDefault:":8080"`
	LogLevel    utils.LogLevel `env:"PD_LOG_LEVEL" envDefault:"WARN"`

	APIKeys map[string]string
}

// Load parses the environment into a Config and sweeps up every *_API_KEY
// variable so that per-provider keys are available without naming each one.
func Load() (*Config, error) {
	cfg := &Config{
		APIKeys: make(map[string]string),
	}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	loadAPIKeys(cfg)
	return cfg, nil
}

func loadAPIKeys(cfg *Config) {
	for _, envVar := range os.Environ() {
		key, value, found := strings.Cut(envVar, "=")
		if found && strings.HasSuffix(strings.ToUpper(key), "_API_KEY") {
			provider := strings.TrimSuffix(strings.ToUpper(key), "_API_KEY")
			cfg.APIKeys[strings.ToLower(provider)] = value
		}
	}
}

type ConfigOption func(*Config)

// New builds a Config from defaults and functional options, bypassing the
// environment. Used by tests and by callers embedding promptdash as a library.
func New(opts ...ConfigOption) *Config {
	cfg := &Config{
		Provider:         "anthropic",
		Temperature:      0.7,
		MaxTokens:        2048,
		Timeout:          30 * time.Second,
		MaxRetries:       3,
		RetryBackoffUnit: time.Second,
		CacheEnabled:     true,
		CacheSize:        1000,
		CacheTTL:         time.Hour,
		BreakerEnabled:   true,
		BreakerThreshold: 5,
		BreakerCooldown:  60 * time.Second,
		ListenAddr:       ":8080",
		LogLevel:         utils.LogLevelWarn,
		APIKeys:          make(map[string]string),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func SetProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

func SetModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

func SetTemperature(temperature float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = temperature
	}
}

func SetMaxTokens(maxTokens int) ConfigOption {
	return func(c *Config) {
		c.MaxTokens = maxTokens
	}
}

func SetAPIKey(provider, key string) ConfigOption {
	return func(c *Config) {
		c.APIKeys[provider] = key
	}
}

func SetMaxRetries(maxRetries int) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = maxRetries
	}
}

func SetRetryBackoffUnit(unit time.Duration) ConfigOption {
	return func(c *Config) {
		c.RetryBackoffUnit = unit
	}
}

func SetCacheEnabled(enabled bool) ConfigOption {
	return func(c *Config) {
		c.CacheEnabled = enabled
	}
}

func SetCacheSize(size int) ConfigOption {
	return func(c *Config) {
		c.CacheSize = size
	}
}

func SetCacheTTL(ttl time.Duration) ConfigOption {
	return func(c *Config) {
		c.CacheTTL = ttl
	}
}

func SetBreakerEnabled(enabled bool) ConfigOption {
	return func(c *Config) {
		c.BreakerEnabled = enabled
	}
}

func SetBreakerThreshold(threshold int) ConfigOption {
	return func(c *Config) {
		c.BreakerThreshold = threshold
	}
}

func SetBreakerCooldown(cooldown time.Duration) ConfigOption {
	return func(c *Config) {
		c.BreakerCooldown = cooldown
	}
}

func SetDatabaseURL(url string) ConfigOption {
	return func(c *Config) {
		c.DatabaseURL = url
	}
}

func SetLogLevel(level utils.LogLevel) ConfigOption {
	return func(c *Config) {
		c.LogLevel = level
	}
}

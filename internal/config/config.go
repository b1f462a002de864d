// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/hn-harvester/internal/hnapi"
)

// EnvPrefix prefixes every environment override, e.g. HARVESTER_POOL_SIZE.
const EnvPrefix = "HARVESTER"

// Config captures all harvester knobs loaded via Viper.
type Config struct {
	Listing  ListingConfig  `mapstructure:"listing"`
	Item     ItemConfig     `mapstructure:"item"`
	Pool     PoolConfig     `mapstructure:"pool"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Progress ProgressConfig `mapstructure:"progress"`
}

// ListingConfig points at the endpoint returning the identifier array.
type ListingConfig struct {
	URL string `mapstructure:"url"`
}

// ItemConfig builds item URLs as base_url + id + suffix.
type ItemConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Suffix  string `mapstructure:"suffix"`
}

// PoolConfig governs the worker pool.
type PoolConfig struct {
	Size        int  `mapstructure:"size"`
	FailOnError bool `mapstructure:"fail_on_error"`
}

// HTTPConfig configures every outbound request.
type HTTPConfig struct {
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
	UserAgent          string `mapstructure:"user_agent"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig enables the optional metrics listener when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ProgressConfig controls progress event sinks.
type ProgressConfig struct {
	LogEvents bool `mapstructure:"log_events"`
}

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"workers":              "pool.size",
	"fail-on-error":        "pool.fail_on_error",
	"insecure-skip-verify": "http.insecure_skip_verify",
	"metrics-addr":         "metrics.addr",
	"timeout":              "http.timeout_seconds",
}

// Load builds a Config from defaults, an optional file, the environment and,
// when flags is non-nil, any flags the user set explicitly.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listing.url", hnapi.DefaultListingURL)
	v.SetDefault("item.base_url", hnapi.DefaultItemBaseURL)
	v.SetDefault("item.suffix", hnapi.DefaultItemSuffix)
	v.SetDefault("pool.size", 8)
	v.SetDefault("pool.fail_on_error", false)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.insecure_skip_verify", false)
	v.SetDefault("http.user_agent", "hn-harvester/0.1")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("progress.log_events", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := validateHTTPURL("listing.url", c.Listing.URL); err != nil {
		return err
	}
	if err := validateHTTPURL("item.base_url", c.Item.BaseURL); err != nil {
		return err
	}
	if c.Pool.Size <= 0 {
		return errors.New("pool.size must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return errors.New("http.timeout_seconds must be > 0")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// Timeout converts http.timeout_seconds into a per-request duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

func validateHTTPURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL", key)
	}
	return nil
}

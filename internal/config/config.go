// Package config loads toolhost settings: built-in defaults, then an optional
// YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/triage-ai/toolhost/internal/pricebook"
	"github.com/triage-ai/toolhost/internal/pricing"
	"github.com/triage-ai/toolhost/internal/sweep"
)

// Base price sources.
const (
	SourceStatic   = "static"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
)

// Config is the full process configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`

	CatalogURL     string        `yaml:"catalog_url"`
	CatalogTimeout time.Duration `yaml:"catalog_timeout"`

	DefaultThreshold  int           `yaml:"default_threshold"`
	LowStockThreshold int           `yaml:"low_stock_threshold"`
	PublishTimeout    time.Duration `yaml:"publish_timeout"`

	RedisURL      string `yaml:"redis_url"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`

	BasePrices BasePrices `yaml:"base_prices"`

	Backends       []Backend `yaml:"backends"`
	DefaultBackend string    `yaml:"default_backend"`

	Sweeps []sweep.Job `yaml:"sweeps"`

	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// BasePrices selects where reference prices come from.
type BasePrices struct {
	// Driver is static, postgres or sqlite.
	Driver   string           `yaml:"driver"`
	DSN      string           `yaml:"dsn"`
	CacheTTL time.Duration    `yaml:"cache_ttl"`
	Static   pricebook.Static `yaml:"static"`
}

// Backend binds a namespace prefix to a built-in backend.
type Backend struct {
	Name   string `yaml:"name"`
	Prefix string `yaml:"prefix"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		LogLevel:          "info",
		HTTPAddr:          ":8080",
		GRPCAddr:          ":50070",
		CatalogURL:        "http://localhost:5050",
		CatalogTimeout:    5 * time.Second,
		DefaultThreshold:  pricing.DefaultThreshold,
		LowStockThreshold: pricing.DefaultThreshold,
		PublishTimeout:    2 * time.Second,
		BasePrices: BasePrices{
			Driver:   SourceStatic,
			CacheTTL: time.Minute,
		},
		Backends: []Backend{
			{Name: "catalog", Prefix: "catalog"},
			{Name: "orders", Prefix: "orders"},
		},
		DefaultBackend: "catalog",
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = envOrDefault("TOOLHOST_LOG_LEVEL", c.LogLevel)
	c.HTTPAddr = envOrDefault("TOOLHOST_HTTP_ADDR", c.HTTPAddr)
	c.GRPCAddr = envOrDefault("TOOLHOST_GRPC_ADDR", c.GRPCAddr)
	c.CatalogURL = envOrDefault("CATALOG_URL", c.CatalogURL)
	c.CatalogTimeout = envOrDefaultDuration("TOOLHOST_CATALOG_TIMEOUT", c.CatalogTimeout)
	c.DefaultThreshold = envOrDefaultInt("TOOLHOST_DEFAULT_THRESHOLD", c.DefaultThreshold)
	c.LowStockThreshold = envOrDefaultInt("TOOLHOST_LOW_STOCK_THRESHOLD", c.LowStockThreshold)
	c.PublishTimeout = envOrDefaultDuration("TOOLHOST_PUBLISH_TIMEOUT", c.PublishTimeout)
	c.RedisURL = envOrDefault("REDIS_URL", c.RedisURL)
	c.ClickHouseDSN = envOrDefault("CLICKHOUSE_DSN", c.ClickHouseDSN)
	c.BasePrices.Driver = envOrDefault("TOOLHOST_BASE_PRICE_DRIVER", c.BasePrices.Driver)
	c.BasePrices.DSN = envOrDefault("BASE_PRICE_DSN", c.BasePrices.DSN)
	c.OTLPEndpoint = envOrDefault("TOOLHOST_OTLP_ENDPOINT", c.OTLPEndpoint)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.CatalogURL) == "" {
		errs = append(errs, errors.New("catalog_url is required"))
	}
	if c.CatalogTimeout <= 0 {
		errs = append(errs, errors.New("catalog_timeout must be positive"))
	}
	if c.DefaultThreshold <= 0 {
		errs = append(errs, errors.New("default_threshold must be > 0"))
	}
	if c.LowStockThreshold < 0 {
		errs = append(errs, errors.New("low_stock_threshold must be >= 0"))
	}

	switch c.BasePrices.Driver {
	case SourceStatic:
	case SourcePostgres, SourceSQLite:
		if strings.TrimSpace(c.BasePrices.DSN) == "" {
			errs = append(errs, fmt.Errorf("base_prices.dsn is required for driver %q", c.BasePrices.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("base_prices.driver %q is not one of static, postgres, sqlite", c.BasePrices.Driver))
	}

	if len(c.Backends) == 0 {
		errs = append(errs, errors.New("at least one backend is required"))
	}
	names := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" || b.Prefix == "" {
			errs = append(errs, errors.New("backends need both name and prefix"))
			continue
		}
		names[b.Name] = true
	}
	if !names[c.DefaultBackend] {
		errs = append(errs, fmt.Errorf("default_backend %q is not a configured backend", c.DefaultBackend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// StaticPrices returns the configured static table, or the built-in one.
func (c *Config) StaticPrices() pricebook.Static {
	if len(c.BasePrices.Static) > 0 {
		return c.BasePrices.Static
	}
	return pricebook.Defaults()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

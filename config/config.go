// Package config loads the promptcap YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level promptcap configuration.
type Config struct {
	Listen       string        `yaml:"listen"`
	Store        StoreConfig   `yaml:"store"`
	Browser      BrowserConfig `yaml:"browser"`
	Scroll       ScrollConfig  `yaml:"scroll"`
	Capture      CaptureConfig `yaml:"capture"`
	Backend      BackendConfig `yaml:"backend"`
	Compile      CompileConfig `yaml:"compile"`
	Providers    ProviderKeys  `yaml:"providers"`
	Publish      PublishConfig `yaml:"publish"`
	Sinks        []SinkConfig  `yaml:"sinks"`
	GuardTimeout time.Duration `yaml:"guard_timeout"`
}

// StoreConfig selects the kvstore backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres | memory
	Path   string `yaml:"path"`   // sqlite file
	DSN    string `yaml:"dsn"`    // postgres URL
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Headless    *bool         `yaml:"headless"`
	Bin         string        `yaml:"bin"`
	RemoteURL   string        `yaml:"remote_url"`
	PageTimeout time.Duration `yaml:"page_timeout"`
}

// ScrollConfig selects the scroll table.
type ScrollConfig struct {
	Mode string `yaml:"mode"` // fast | slow
}

// CaptureConfig controls the capture sources and the settle window.
type CaptureConfig struct {
	SpoolDir    string        `yaml:"spool_dir"`
	NATSURL     string        `yaml:"nats_url"`
	NATSSubject string        `yaml:"nats_subject"`
	Settle      time.Duration `yaml:"settle"`
	Limit       int           `yaml:"limit"`
}

// BackendConfig points at the compile backend.
type BackendConfig struct {
	URL              string        `yaml:"url"`
	LegacyURL        string        `yaml:"legacy_url"`
	TierURL          string        `yaml:"tier_url"`
	Token            string        `yaml:"token"`
	Timeout          time.Duration `yaml:"timeout"`
	Retries          int           `yaml:"retries"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset"`
}

// CompileConfig tunes the compile pipeline.
type CompileConfig struct {
	RaceTimeout      time.Duration `yaml:"race_timeout"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	CachePurge       string        `yaml:"cache_purge"` // cron schedule
	FreeDailyLimit   int           `yaml:"free_daily_limit"`
	// Tier applies to every user when no tier service is configured;
	// compiles are then counted locally.
	Tier             string        `yaml:"tier"`
	PrimaryProvider  string        `yaml:"primary_provider"`
	PrimaryModel     string        `yaml:"primary_model"`
	FallbackProvider string        `yaml:"fallback_provider"`
	FallbackModel    string        `yaml:"fallback_model"`
}

// ProviderKeys holds direct provider API keys.
type ProviderKeys struct {
	AnthropicKey string `yaml:"anthropic_key"`
	OpenAIKey    string `yaml:"openai_key"`
}

// PublishConfig controls where extraction results are published on NATS.
type PublishConfig struct {
	NATSURL string `yaml:"nats_url"`
	Token   string `yaml:"token"`
	Subject string `yaml:"subject"`
}

// SinkConfig defines an extra result sink.
type SinkConfig struct {
	Type   string `yaml:"type"` // stdout | webhook
	URL    string `yaml:"url"`  // for webhook
	Indent bool   `yaml:"indent"`
}

// IsHeadless reports whether Chrome runs headless. Unset means true.
func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

// defaultModels is the model used for a provider when none is configured.
var defaultModels = map[string]string{
	"anthropic": "claude-sonnet-4-5",
	"openai":    "gpt-4o-mini",
}

func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8790"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Path == "" {
		c.Store.Path = "promptcap.db"
	}
	if c.Browser.PageTimeout <= 0 {
		c.Browser.PageTimeout = 30 * time.Second
	}
	if c.Scroll.Mode == "" {
		c.Scroll.Mode = "fast"
	}
	if c.Capture.NATSSubject == "" {
		c.Capture.NATSSubject = "promptcap.capture"
	}
	if c.Capture.Settle <= 0 {
		c.Capture.Settle = 300 * time.Millisecond
	}
	if c.Capture.Limit <= 0 {
		c.Capture.Limit = 500
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 30 * time.Second
	}
	if c.Backend.Retries <= 0 {
		c.Backend.Retries = 3
	}
	if c.Backend.BreakerThreshold <= 0 {
		c.Backend.BreakerThreshold = 5
	}
	if c.Backend.BreakerReset <= 0 {
		c.Backend.BreakerReset = 60 * time.Second
	}
	if c.Compile.RaceTimeout <= 0 {
		c.Compile.RaceTimeout = 10 * time.Second
	}
	if c.Compile.CacheTTL <= 0 {
		c.Compile.CacheTTL = 30 * time.Minute
	}
	if c.Compile.CachePurge == "" {
		c.Compile.CachePurge = "@every 10m"
	}
	if c.Compile.FreeDailyLimit <= 0 {
		c.Compile.FreeDailyLimit = 10
	}
	if c.Compile.PrimaryProvider == "" {
		c.Compile.PrimaryProvider = "anthropic"
	}
	if c.Compile.FallbackProvider == "" {
		c.Compile.FallbackProvider = "openai"
	}
	if c.Compile.PrimaryModel == "" {
		c.Compile.PrimaryModel = defaultModels[c.Compile.PrimaryProvider]
	}
	if c.Compile.FallbackModel == "" {
		c.Compile.FallbackModel = defaultModels[c.Compile.FallbackProvider]
	}
	if c.Compile.Tier == "" {
		c.Compile.Tier = "free"
	}
	if c.Publish.Subject == "" {
		c.Publish.Subject = "promptcap.extraction"
	}
	if c.GuardTimeout <= 0 {
		c.GuardTimeout = 60 * time.Second
	}
}

// env overrides secrets and endpoints from the environment.
func (c *Config) env(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Providers.AnthropicKey, "PROMPTCAP_ANTHROPIC_KEY")
	set(&c.Providers.OpenAIKey, "PROMPTCAP_OPENAI_KEY")
	set(&c.Backend.URL, "PROMPTCAP_BACKEND_URL")
	set(&c.Backend.TierURL, "PROMPTCAP_TIER_URL")
	if v := getenv("PROMPTCAP_DATABASE_URL"); v != "" {
		c.Store.Driver = "postgres"
		c.Store.DSN = v
	}
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return errors.New("config: store.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	switch c.Scroll.Mode {
	case "fast", "slow":
	default:
		return fmt.Errorf("config: unknown scroll mode %q", c.Scroll.Mode)
	}
	for _, p := range []string{c.Compile.PrimaryProvider, c.Compile.FallbackProvider} {
		if _, ok := defaultModels[p]; !ok {
			return fmt.Errorf("config: unknown provider %q", p)
		}
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook needs a url", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}

// Parse decodes YAML, applies environment overrides and defaults, and
// validates the result.
func Parse(data []byte) (*Config, error) {
	return parse(data, os.Getenv)
}

func parse(data []byte, getenv func(string) string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.env(getenv)
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads the YAML file at path. An empty path or a missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Parse(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

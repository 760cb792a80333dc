package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultCNBaseURL      = "https://cn.dataone.org/cn"
	DefaultSolrPath       = "query/solr/"
	DefaultTimeoutSec     = 20
	DefaultPingTimeoutSec = 5
	DefaultTotalChecks    = 12
	DefaultCNChecks       = 3
	DefaultIndexChecks    = 5
)

// DefaultTests is the check order used when none is configured.
var DefaultTests = []string{"ping", "mn", "cn", "index"}

// Config holds all mnstat settings.
type Config struct {
	CNBaseURL        string      `yaml:"cn_base_url"`
	SolrPath         string      `yaml:"solr_path"`
	TimeoutSec       int         `yaml:"timeout_sec"`
	PingTimeoutSec   int         `yaml:"ping_timeout_sec"`
	InsecureFallback *bool       `yaml:"insecure_fallback,omitempty"`
	Concurrency      Concurrency `yaml:"concurrency"`
	Tests            []string    `yaml:"tests,omitempty"`
	CachePath        string      `yaml:"cache_path,omitempty"`
}

// Concurrency bounds the number of checks in flight during a sweep.
// CN and Index additionally cap checks that all land on the same
// coordinating node.
type Concurrency struct {
	Total int `yaml:"total"`
	CN    int `yaml:"cn"`
	Index int `yaml:"index"`
}

// Load reads and parses a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Save writes a YAML config file to disk.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate performs minimal validation for required fields.
func Validate(cfg Config) error {
	if cfg.CNBaseURL == "" {
		return fmt.Errorf("cn_base_url is required")
	}
	if cfg.TimeoutSec <= 0 {
		return fmt.Errorf("timeout_sec must be positive")
	}
	if cfg.Concurrency.Total <= 0 {
		return fmt.Errorf("concurrency.total must be positive")
	}
	if cfg.Concurrency.CN > cfg.Concurrency.Total || cfg.Concurrency.Index > cfg.Concurrency.Total {
		return fmt.Errorf("per-check concurrency caps cannot exceed concurrency.total")
	}
	for _, t := range cfg.Tests {
		switch t {
		case "ping", "mn", "cn", "index":
		default:
			return fmt.Errorf("unknown test %q", t)
		}
	}
	return nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.CNBaseURL == "" {
		cfg.CNBaseURL = DefaultCNBaseURL
	}
	if cfg.SolrPath == "" {
		cfg.SolrPath = DefaultSolrPath
	}
	if cfg.TimeoutSec == 0 {
		cfg.TimeoutSec = DefaultTimeoutSec
	}
	if cfg.PingTimeoutSec == 0 {
		cfg.PingTimeoutSec = DefaultPingTimeoutSec
	}
	if cfg.InsecureFallback == nil {
		v := true
		cfg.InsecureFallback = &v
	}
	if cfg.Concurrency.Total == 0 {
		cfg.Concurrency.Total = DefaultTotalChecks
	}
	if cfg.Concurrency.CN == 0 {
		cfg.Concurrency.CN = DefaultCNChecks
	}
	if cfg.Concurrency.Index == 0 {
		cfg.Concurrency.Index = DefaultIndexChecks
	}
	if len(cfg.Tests) == 0 {
		cfg.Tests = append([]string(nil), DefaultTests...)
	}
}

// Timeout returns the general HTTP timeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// PingTimeout returns the ping timeout as a duration.
func (c Config) PingTimeout() time.Duration {
	return time.Duration(c.PingTimeoutSec) * time.Second
}

// Insecure reports whether the TLS no-verify fallback is enabled.
func (c Config) Insecure() bool {
	return c.InsecureFallback == nil || *c.InsecureFallback
}

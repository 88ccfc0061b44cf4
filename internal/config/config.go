package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds all runtime configuration parameters
type Config struct {
	RootURL           string   `json:"root_url" toml:"root_url"`
	Relative          bool     `json:"relative" toml:"relative"`
	OutputFile        string   `json:"output_file" toml:"output_file"`
	ExcludePatterns   []string `json:"exclude_patterns" toml:"exclude_patterns"`
	SameHostOnly      *bool    `json:"same_host_only" toml:"same_host_only"`
	MaxLinksPerPage   int      `json:"max_links_per_page" toml:"max_links_per_page"`
	MaxDepth          int      `json:"max_depth" toml:"max_depth"`
	ConcurrentWorkers int      `json:"concurrent_workers" toml:"concurrent_workers"`
	RequestDelayMs    int      `json:"request_delay_ms" toml:"request_delay_ms"`
	RequestTimeoutMs  int      `json:"request_timeout_ms" toml:"request_timeout_ms"`
	UserAgent         string   `json:"user_agent" toml:"user_agent"`
	AcceptCookies     *bool    `json:"accept_cookies" toml:"accept_cookies"`
	BacklinkLimit     *int     `json:"backlink_limit" toml:"backlink_limit"`
	DBPath            string   `json:"db_path" toml:"db_path"`
	MetricsPath       string   `json:"metrics_path" toml:"metrics_path"`
	LogLevel          string   `json:"log_level" toml:"log_level"`

	excludes []*regexp.Regexp
}

// Default returns a configuration with every default applied and no root URL
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig reads configuration from a JSON or TOML file (by extension)
// and applies defaults. Validation is left to Validate so that command-line
// overrides can be applied first.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config TOML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.OutputFile == "" {
		cfg.OutputFile = "urls.txt"
	}
	if cfg.SameHostOnly == nil {
		cfg.SameHostOnly = boolPtr(true)
	}
	if cfg.ConcurrentWorkers == 0 {
		cfg.ConcurrentWorkers = 4
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 30000
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "iPhone"
	}
	if cfg.AcceptCookies == nil {
		cfg.AcceptCookies = boolPtr(true)
	}
	if cfg.BacklinkLimit == nil {
		cfg.BacklinkLimit = intPtr(11)
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "metrics.json"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// Validate checks that required fields are present and values are sensible,
// and compiles the exclusion patterns
func (cfg *Config) Validate() error {
	if cfg.RootURL == "" {
		return fmt.Errorf("root_url is required")
	}
	root, err := url.Parse(cfg.RootURL)
	if err != nil || root.Host == "" || (root.Scheme != "http" && root.Scheme != "https") {
		return fmt.Errorf("root_url must be an absolute http(s) URL, got %q", cfg.RootURL)
	}
	if cfg.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0")
	}
	if cfg.MaxLinksPerPage < 0 {
		return fmt.Errorf("max_links_per_page must be >= 0")
	}
	if cfg.ConcurrentWorkers < 1 {
		return fmt.Errorf("concurrent_workers must be >= 1")
	}
	if cfg.RequestDelayMs < 0 {
		return fmt.Errorf("request_delay_ms must be >= 0")
	}
	if cfg.RequestTimeoutMs < 100 {
		return fmt.Errorf("request_timeout_ms must be >= 100")
	}
	if cfg.BacklinkLimit != nil && *cfg.BacklinkLimit < 0 {
		return fmt.Errorf("backlink_limit must be >= 0")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}

	excludes := make([]*regexp.Regexp, 0, len(cfg.ExcludePatterns))
	for _, pattern := range cfg.ExcludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		excludes = append(excludes, re)
	}
	cfg.excludes = excludes

	return nil
}

// Excludes returns the compiled exclusion patterns. Validate must have been called.
func (cfg *Config) Excludes() []*regexp.Regexp {
	return cfg.excludes
}

// SameHost reports whether links are restricted to the root host
func (cfg *Config) SameHost() bool {
	return cfg.SameHostOnly == nil || *cfg.SameHostOnly
}

// Cookies reports whether the crawler keeps a cookie jar
func (cfg *Config) Cookies() bool {
	return cfg.AcceptCookies == nil || *cfg.AcceptCookies
}

// Backlinks returns how many linking pages are listed per report entry.
// Zero lists none and only counts them.
func (cfg *Config) Backlinks() int {
	if cfg.BacklinkLimit == nil {
		return 11
	}
	return *cfg.BacklinkLimit
}

func boolPtr(b bool) *bool {
	return &b
}

func intPtr(n int) *int {
	return &n
}

package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config drives the storefront product sync: where to crawl, how hard to
// crawl it, and where the merged catalog and run state land on disk.
type Config struct {
	BaseURL string `json:"base_url"`
	DataDir string `json:"data_dir"`
	// StatePath locates the sqlite audit store; empty means DataDir/sync.db
	// and "none" disables it.
	StatePath string `json:"state_path"`
	UserAgent string `json:"user_agent"`

	Timeout       time.Duration `json:"-"`
	TimeoutString string        `json:"timeout"`

	Workers    int     `json:"workers"`
	RatePerSec float64 `json:"rate_per_sec"`

	SitemapPaths []string `json:"sitemap_paths"`

	// DryRun scrapes and reports but never touches products.json or the
	// state database.
	DryRun bool `json:"-"`
}

func (c Config) Merge(override Config) Config {
	result := c
	if strings.TrimSpace(override.BaseURL) != "" {
		result.BaseURL = strings.TrimSpace(override.BaseURL)
	}
	if strings.TrimSpace(override.DataDir) != "" {
		result.DataDir = strings.TrimSpace(override.DataDir)
	}
	if strings.TrimSpace(override.StatePath) != "" {
		result.StatePath = strings.TrimSpace(override.StatePath)
	}
	if strings.TrimSpace(override.UserAgent) != "" {
		result.UserAgent = strings.TrimSpace(override.UserAgent)
	}
	if override.Timeout > 0 {
		result.Timeout = override.Timeout
	}
	if strings.TrimSpace(override.TimeoutString) != "" {
		result.TimeoutString = strings.TrimSpace(override.TimeoutString)
	}
	if override.Workers > 0 {
		result.Workers = override.Workers
	}
	if override.RatePerSec > 0 {
		result.RatePerSec = override.RatePerSec
	}
	if len(override.SitemapPaths) > 0 {
		result.SitemapPaths = append([]string(nil), override.SitemapPaths...)
	}
	return result
}

func LoadConfig() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("ADVISOR_SYNC_CONFIG_FILE")); path != "" {
		fileCfg, err := loadConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	envCfg, err := loadConfigEnv()
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.Merge(envCfg)
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "data"
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = "TPCN-Bot/1.0"
	}
	if c.Timeout <= 0 {
		if c.TimeoutString != "" {
			if parsed, err := time.ParseDuration(c.TimeoutString); err == nil {
				c.Timeout = parsed
			}
		}
		if c.Timeout <= 0 {
			c.Timeout = 20 * time.Second
		}
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 10
	}
	if len(c.SitemapPaths) == 0 {
		c.SitemapPaths = []string{"sitemap.xml", "product-sitemap.xml", "sitemap_products.xml"}
	}
}

// ResolveStatePath returns the effective state database location, or ""
// when the store is disabled.
func (c Config) ResolveStatePath() string {
	path := strings.TrimSpace(c.StatePath)
	if strings.EqualFold(path, "none") {
		return ""
	}
	if path == "" {
		return filepath.Join(c.DataDir, "sync.db")
	}
	return path
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read sync config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse sync config: %w", err)
	}
	return cfg, nil
}

func loadConfigEnv() (Config, error) {
	cfg := Config{}
	if base := strings.TrimSpace(os.Getenv("ADVISOR_SYNC_BASE_URL")); base != "" {
		cfg.BaseURL = base
	}
	if dir := strings.TrimSpace(os.Getenv("ADVISOR_DATA_DIR")); dir != "" {
		cfg.DataDir = dir
	}
	if path := strings.TrimSpace(os.Getenv("ADVISOR_SYNC_STATE_PATH")); path != "" {
		cfg.StatePath = path
	}
	if ua := strings.TrimSpace(os.Getenv("ADVISOR_SYNC_USER_AGENT")); ua != "" {
		cfg.UserAgent = ua
	}
	if timeout := strings.TrimSpace(os.Getenv("ADVISOR_SYNC_TIMEOUT")); timeout != "" {
		cfg.TimeoutString = timeout
		if parsed, err := time.ParseDuration(timeout); err == nil {
			cfg.Timeout = parsed
		}
	}
	if workers := strings.TrimSpace(os.Getenv("ADVISOR_SYNC_WORKERS")); workers != "" {
		value, err := strconv.Atoi(workers)
		if err != nil {
			return Config{}, fmt.Errorf("parse ADVISOR_SYNC_WORKERS: %w", err)
		}
		if value > 0 {
			cfg.Workers = value
		}
	}
	if rps := strings.TrimSpace(os.Getenv("ADVISOR_SYNC_RATE")); rps != "" {
		value, err := strconv.ParseFloat(rps, 64)
		if err != nil {
			return Config{}, fmt.Errorf("parse ADVISOR_SYNC_RATE: %w", err)
		}
		if value > 0 {
			cfg.RatePerSec = value
		}
	}
	if paths := strings.TrimSpace(os.Getenv("ADVISOR_SYNC_SITEMAPS")); paths != "" {
		var cleaned []string
		for _, part := range strings.Split(paths, ",") {
			if part = strings.TrimSpace(part); part != "" {
				cleaned = append(cleaned, part)
			}
		}
		cfg.SitemapPaths = cleaned
	}
	return cfg, nil
}

package sync

import (
	"testing"
	"time"
)

func clearSyncEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ADVISOR_SYNC_CONFIG_FILE",
		"ADVISOR_SYNC_BASE_URL",
		"ADVISOR_DATA_DIR",
		"ADVISOR_SYNC_STATE_PATH",
		"ADVISOR_SYNC_USER_AGENT",
		"ADVISOR_SYNC_TIMEOUT",
		"ADVISOR_SYNC_WORKERS",
		"ADVISOR_SYNC_RATE",
		"ADVISOR_SYNC_SITEMAPS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearSyncEnv(t)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BaseURL != "" {
		t.Errorf("BaseURL = %q, want unset", cfg.BaseURL)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.StatePath != "" {
		t.Errorf("StatePath = %q, want empty until resolved", cfg.StatePath)
	}
	if got := cfg.ResolveStatePath(); got != "data/sync.db" {
		t.Errorf("ResolveStatePath = %q", got)
	}
	if cfg.UserAgent != "TPCN-Bot/1.0" {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
	if cfg.Timeout != 20*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d", cfg.Workers)
	}
	if cfg.RatePerSec != 10 {
		t.Errorf("RatePerSec = %v", cfg.RatePerSec)
	}
	want := []string{"sitemap.xml", "product-sitemap.xml", "sitemap_products.xml"}
	if len(cfg.SitemapPaths) != len(want) {
		t.Fatalf("SitemapPaths = %v", cfg.SitemapPaths)
	}
	for i, path := range want {
		if cfg.SitemapPaths[i] != path {
			t.Errorf("SitemapPaths[%d] = %q, want %q", i, cfg.SitemapPaths[i], path)
		}
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearSyncEnv(t)
	t.Setenv("ADVISOR_SYNC_BASE_URL", "https://shop.example")
	t.Setenv("ADVISOR_DATA_DIR", "/var/lib/advisor")
	t.Setenv("ADVISOR_SYNC_STATE_PATH", "/var/lib/advisor/state.db")
	t.Setenv("ADVISOR_SYNC_USER_AGENT", "CustomBot/2.0")
	t.Setenv("ADVISOR_SYNC_TIMEOUT", "45s")
	t.Setenv("ADVISOR_SYNC_WORKERS", "8")
	t.Setenv("ADVISOR_SYNC_RATE", "2.5")
	t.Setenv("ADVISOR_SYNC_SITEMAPS", "shop-sitemap.xml, wp-sitemap.xml ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BaseURL != "https://shop.example" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.DataDir != "/var/lib/advisor" || cfg.StatePath != "/var/lib/advisor/state.db" {
		t.Errorf("paths = %q / %q", cfg.DataDir, cfg.StatePath)
	}
	if cfg.UserAgent != "CustomBot/2.0" {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.Workers != 8 || cfg.RatePerSec != 2.5 {
		t.Errorf("workers/rate = %d/%v", cfg.Workers, cfg.RatePerSec)
	}
	if len(cfg.SitemapPaths) != 2 || cfg.SitemapPaths[0] != "shop-sitemap.xml" || cfg.SitemapPaths[1] != "wp-sitemap.xml" {
		t.Errorf("SitemapPaths = %v", cfg.SitemapPaths)
	}
}

func TestLoadConfigRejectsBadNumbers(t *testing.T) {
	clearSyncEnv(t)
	t.Setenv("ADVISOR_SYNC_WORKERS", "many")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for bad worker count")
	}

	clearSyncEnv(t)
	t.Setenv("ADVISOR_SYNC_RATE", "fast")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for bad rate")
	}
}

func TestResolveStatePath(t *testing.T) {
	cfg := Config{DataDir: "/srv/advisor"}
	if got := cfg.ResolveStatePath(); got != "/srv/advisor/sync.db" {
		t.Errorf("default = %q", got)
	}
	cfg.StatePath = "/tmp/other.db"
	if got := cfg.ResolveStatePath(); got != "/tmp/other.db" {
		t.Errorf("explicit = %q", got)
	}
	cfg.StatePath = " NONE "
	if got := cfg.ResolveStatePath(); got != "" {
		t.Errorf("disabled = %q", got)
	}
}

func TestConfigMerge(t *testing.T) {
	base := Config{BaseURL: "https://a.example", DataDir: "data", Workers: 4}
	merged := base.Merge(Config{BaseURL: "  https://b.example  ", Workers: 0, RatePerSec: 3})
	if merged.BaseURL != "https://b.example" {
		t.Errorf("BaseURL = %q", merged.BaseURL)
	}
	if merged.DataDir != "data" {
		t.Errorf("DataDir = %q, blank override must not clear it", merged.DataDir)
	}
	if merged.Workers != 4 {
		t.Errorf("Workers = %d, zero override must not clear it", merged.Workers)
	}
	if merged.RatePerSec != 3 {
		t.Errorf("RatePerSec = %v", merged.RatePerSec)
	}
}

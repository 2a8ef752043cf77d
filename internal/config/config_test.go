package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mkoziy/ga4mirror/internal/ratelimit"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(PathEnvVar, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Sync.Concurrency != 5 || cfg.GA4.CallTimeout != 60*time.Second {
		t.Fatalf("unexpected defaults: %+v %+v", cfg.Sync, cfg.GA4)
	}
	if cfg.GA4.MaxDimensionsPerCall != 9 || cfg.GA4.PageSize != 200 || cfg.GA4.ReportPageSize != 10000 {
		t.Fatalf("unexpected provider defaults: %+v", cfg.GA4)
	}
	if !cfg.Sync.WebOnly || !cfg.Sync.FetchWebsites || cfg.Sync.UpdateExisting {
		t.Fatalf("unexpected sync flags: %+v", cfg.Sync)
	}
	if cfg.GA4.RateLimit.Default.Strategy != ratelimit.StrategyTokenBucket {
		t.Fatalf("unexpected limiter strategy %q", cfg.GA4.RateLimit.Default.Strategy)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, "ga4mirror.yaml", `
database:
  path: /var/lib/ga4mirror/mirror.db
ga4:
  call_timeout: 30s
  rate_limit:
    default:
      requests_per_second: 4
    overrides:
      data:
        burst: 2
sync:
  concurrency: 3
  run_timeout: 10m
logging:
  level: debug
  format: console
`)
	t.Setenv("GA4MIRROR_SYNC__CONCURRENCY", "7")
	t.Setenv("GA4MIRROR_REDIS__ENABLED", "true")
	t.Setenv("GA4MIRROR_REDIS__ADDR", "cache:6380")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Path != "/var/lib/ga4mirror/mirror.db" {
		t.Fatalf("file value not applied: %q", cfg.Database.Path)
	}
	if cfg.GA4.CallTimeout != 30*time.Second || cfg.Sync.RunTimeout != 10*time.Minute {
		t.Fatalf("durations not parsed: %v %v", cfg.GA4.CallTimeout, cfg.Sync.RunTimeout)
	}
	if cfg.Sync.Concurrency != 7 {
		t.Fatalf("env should win over file, got %d", cfg.Sync.Concurrency)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "cache:6380" {
		t.Fatalf("redis env not applied: %+v", cfg.Redis)
	}
	if cfg.Sync.Interval != time.Hour {
		t.Fatalf("unset keys should keep defaults, got %v", cfg.Sync.Interval)
	}

	data := cfg.GA4.Client().RateLimits.For("data")
	if data.Burst != 2 || data.RequestsPerSec != 4 {
		t.Fatalf("unexpected data limiter config: %+v", data)
	}

	lc := cfg.Logger()
	if lc.Level != "debug" || lc.Format != "console" {
		t.Fatalf("unexpected logging config: %+v", lc)
	}
	if rc := cfg.Reconcile(); rc.Concurrency != 7 || rc.CallTimeout != 30*time.Second || !rc.WebOnly {
		t.Fatalf("unexpected reconcile config: %+v", rc)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"concurrency":  "sync:\n  concurrency: 0\n",
		"dimensions":   "ga4:\n  max_dimensions_per_call: 12\n",
		"log format":   "logging:\n  format: xml\n",
		"interval":     "sync:\n  interval: 5s\n",
		"missing file": "report:\n  definitions_file: /does/not/exist.yaml\n",
	}
	for name, body := range cases {
		path := writeFile(t, "bad.yaml", body)
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected validation error", name)
		} else if !strings.Contains(err.Error(), "invalid config") {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
	}
}

func TestEnvKey(t *testing.T) {
	if got := envKey("GA4MIRROR_GA4__RATE_LIMIT__DEFAULT__BURST"); got != "ga4.rate_limit.default.burst" {
		t.Fatalf("unexpected key %q", got)
	}
}

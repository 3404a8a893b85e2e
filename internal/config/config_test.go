package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

func TestDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Bind != "127.0.0.1:9100" {
		t.Fatalf("bind default: %s", cfg.HTTP.Bind)
	}
	if len(cfg.Crawl.PruneRoots) != 3 || cfg.Crawl.PruneRoots[0] != "/proc" {
		t.Fatalf("prune roots default: %v", cfg.Crawl.PruneRoots)
	}
	if cfg.Crawl.JobTTL != 30*time.Minute {
		t.Fatalf("job ttl default: %s", cfg.Crawl.JobTTL)
	}
	if cfg.Volumes.MountsPath != "/proc/mounts" || len(cfg.Volumes.Denylist) != 5 {
		t.Fatalf("volumes defaults: %+v", cfg.Volumes)
	}
	if cfg.LogLevel() != zerolog.InfoLevel {
		t.Fatalf("log level default: %s", cfg.LogLevel())
	}
}

func TestYAMLAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "nosdu.yaml")
	data := []byte("" +
		"log:\n  level: warn\n  format: json\n" +
		"http:\n  bind: 0.0.0.0:9999\n  cors_origins: [http://example.com]\n" +
		"crawl:\n  workers: 3\n  max_depth: 4\n  job_ttl: 2m\n  prune_roots: [/proc]\n" +
		"volumes:\n  mounts_path: /tmp/mounts\n  refresh_schedule: \"@hourly\"\n")
	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Bind != "0.0.0.0:9999" {
		t.Fatalf("bind from yaml: %s", cfg.HTTP.Bind)
	}
	if len(cfg.HTTP.CORSOrigins) != 1 || cfg.HTTP.CORSOrigins[0] != "http://example.com" {
		t.Fatalf("cors from yaml: %v", cfg.HTTP.CORSOrigins)
	}
	if cfg.Crawl.Workers != 3 || cfg.Crawl.MaxDepth != 4 || cfg.Crawl.JobTTL != 2*time.Minute {
		t.Fatalf("crawl from yaml: %+v", cfg.Crawl)
	}
	if cfg.Volumes.MountsPath != "/tmp/mounts" || cfg.Volumes.RefreshSchedule != "@hourly" {
		t.Fatalf("volumes from yaml: %+v", cfg.Volumes)
	}
	if cfg.LogLevel() != zerolog.WarnLevel || cfg.Log.Format != "json" {
		t.Fatalf("log from yaml: %+v", cfg.Log)
	}

	// env overrides file
	t.Setenv("NOSDU_HTTP_BIND", "127.0.0.1:8080")
	t.Setenv("NOSDU_CRAWL_WORKERS", "9")
	t.Setenv("NOSDU_CRAWL_JOB_TTL", "45s")
	t.Setenv("NOSDU_VERBOSE", "true")

	cfg2, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg2.HTTP.Bind != "127.0.0.1:8080" {
		t.Fatalf("bind env override: %s", cfg2.HTTP.Bind)
	}
	if cfg2.Crawl.Workers != 9 || cfg2.Crawl.JobTTL != 45*time.Second {
		t.Fatalf("crawl env override: %+v", cfg2.Crawl)
	}
	if !cfg2.Verbose || cfg2.LogLevel() != zerolog.DebugLevel {
		t.Fatalf("verbose should lower the level to debug, got %s", cfg2.LogLevel())
	}
}

func TestViperOverridesWin(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	v := viper.New()
	v.Set("crawl.max_depth", 7)
	cfg, err := LoadViper(v, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Crawl.MaxDepth != 7 {
		t.Fatalf("override lost: %d", cfg.Crawl.MaxDepth)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"level.yaml":   "log:\n  level: loud\n",
		"format.yaml":  "log:\n  format: xml\n",
		"workers.yaml": "crawl:\n  workers: -1\n",
	}
	for name, body := range cases {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(p); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

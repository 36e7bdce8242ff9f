package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
scraper:
  base_url: https://catalog.example.com
  source: oemdirect
  workers: 4
  queue_depth: 128
  batch_size: 25
  retry_attempts: 4
  failure_ceiling: 3
  detail_concurrency: 8
http:
  timeout_seconds: 45
  user_agent: scraper-agent
  rate_limit_rps: 1.5
  headers:
    X-Api-Version: "2"
session:
  enabled: true
  nav_timeout_seconds: 30
  landmark_selector: ".product-grid"
sink:
  driver: postgres
  dsn: postgres://localhost/catalog
  table: catalog_records
archive:
  driver: local
  base_dir: /tmp/archives
  prefix: raw
logging:
  development: false
presets:
  featured: "https://catalog.example.com/api/catalog/search?preset=featured&skip={skip}&take={take}"
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Scraper.Workers != 4 || cfg.Scraper.BatchSize != 25 {
		t.Fatalf("expected scraper overrides to apply: %+v", cfg.Scraper)
	}
	if cfg.HTTP.Headers["X-Api-Version"] != "2" {
		t.Fatalf("expected header profile to be loaded: %+v", cfg.HTTP.Headers)
	}
	if !cfg.Session.Enabled || cfg.Session.LandmarkSelector != ".product-grid" {
		t.Fatalf("expected session overrides to apply: %+v", cfg.Session)
	}
	if cfg.Sink.Driver != "postgres" || cfg.Sink.DSN == "" {
		t.Fatalf("expected postgres sink config: %+v", cfg.Sink)
	}
	if _, ok := cfg.Presets["featured"]; !ok {
		t.Fatalf("expected preset to be loaded: %+v", cfg.Presets)
	}
	if got := cfg.HTTPTimeout(); got != 45*time.Second {
		t.Fatalf("expected http timeout 45s, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
scraper:
  base_url: https://catalog.example.com
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port, got %d", cfg.Server.Port)
	}
	if cfg.Scraper.BatchSize != 50 || cfg.Scraper.FailureCeiling != 5 {
		t.Fatalf("expected scraper defaults: %+v", cfg.Scraper)
	}
	if cfg.Sink.Driver != "memory" || cfg.Archive.Driver != "none" {
		t.Fatalf("expected memory sink and no archive by default")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Scraper: ScraperConfig{BaseURL: "https://catalog.example.com", Workers: 2, BatchSize: 50},
		HTTP:    HTTPConfig{TimeoutSeconds: 10},
		Sink:    SinkConfig{Driver: "memory"},
		Archive: ArchiveConfig{Driver: "none"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "missing base url",
			cfg: func() Config {
				c := base
				c.Scraper.BaseURL = ""
				return c
			}(),
			want: "scraper.base_url",
		},
		{
			name: "invalid workers",
			cfg: func() Config {
				c := base
				c.Scraper.Workers = 0
				return c
			}(),
			want: "scraper.workers",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.HTTP.TimeoutSeconds = 0
				return c
			}(),
			want: "http.timeout_seconds",
		},
		{
			name: "auth missing api key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
		{
			name: "postgres sink without dsn",
			cfg: func() Config {
				c := base
				c.Sink.Driver = "postgres"
				return c
			}(),
			want: "sink.dsn",
		},
		{
			name: "gcs archive without bucket",
			cfg: func() Config {
				c := base
				c.Archive.Driver = "gcs"
				return c
			}(),
			want: "archive.gcs_bucket",
		},
		{
			name: "pubsub missing topic",
			cfg: func() Config {
				c := base
				c.PubSub.Enabled = true
				return c
			}(),
			want: "pubsub",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawler.ListingURL != "https://cults3d.com/en/creations/popular/page/{n}" {
		t.Fatalf("unexpected listing url %q", cfg.Crawler.ListingURL)
	}
	if cfg.Crawler.StartPage != 1 || cfg.Crawler.MaxPages != 0 || cfg.Crawler.SkipFailedItems {
		t.Fatalf("unexpected crawler defaults: %+v", cfg.Crawler)
	}
	if cfg.Storage.Backend != BackendLocal || cfg.Storage.BaseDir != "data" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Storage.ContentType != "application/json" {
		t.Fatalf("unexpected content type %q", cfg.Storage.ContentType)
	}
	if got := cfg.RequestTimeout(); got != 60*time.Second {
		t.Fatalf("expected 60s timeout, got %v", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
crawler:
  listing_url: https://example.test/page/
  start_page: 3
  max_pages: 5
  skip_failed_items: true
  user_agent: test-agent
http:
  timeout_seconds: 0
storage:
  backend: postgres
  prefix: records
db:
  dsn: postgres://localhost/stl
  table: captures
  max_conns: 2
  max_conn_lifetime_seconds: 300
redis:
  addr: localhost:6379
  db: 3
pubsub:
  project_id: proj
  topic_name: captures
metrics:
  addr: ":9102"
logging:
  development: false
  level: debug
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Crawler.ListingURL != "https://example.test/page/" || cfg.Crawler.StartPage != 3 ||
		cfg.Crawler.MaxPages != 5 || !cfg.Crawler.SkipFailedItems || cfg.Crawler.UserAgent != "test-agent" {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if cfg.RequestTimeout() != 0 {
		t.Fatalf("expected timeout disabled, got %v", cfg.RequestTimeout())
	}
	if cfg.Storage.Backend != BackendPostgres || cfg.Storage.Prefix != "records" {
		t.Fatalf("expected storage overrides: %+v", cfg.Storage)
	}
	if cfg.DB.Table != "captures" || cfg.DB.MaxConns != 2 || cfg.ConnLifetime() != 5*time.Minute {
		t.Fatalf("expected db overrides: %+v", cfg.DB)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 3 {
		t.Fatalf("expected redis overrides: %+v", cfg.Redis)
	}
	if cfg.PubSub.TopicName != "captures" || cfg.Metrics.Addr != ":9102" {
		t.Fatalf("expected pubsub and metrics overrides: %+v %+v", cfg.PubSub, cfg.Metrics)
	}
	if cfg.Logging.Development || cfg.Logging.Level != "debug" {
		t.Fatalf("expected logging overrides: %+v", cfg.Logging)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STLCRAWLER_STORAGE_BACKEND", "memory")
	t.Setenv("STLCRAWLER_CRAWLER_MAX_PAGES", "2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Backend != BackendMemory || cfg.Crawler.MaxPages != 2 {
		t.Fatalf("expected env overrides, got %+v %+v", cfg.Storage, cfg.Crawler)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("STLCRAWLER_DOTENV_PROBE=from-file\n"), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("STLCRAWLER_DOTENV_PROBE", "")
	if err := os.Unsetenv("STLCRAWLER_DOTENV_PROBE"); err != nil {
		t.Fatalf("unset: %v", err)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), envPath); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("STLCRAWLER_DOTENV_PROBE"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Crawler: CrawlerConfig{ListingURL: "https://example.test/page/", StartPage: 1},
		HTTP:    HTTPConfig{TimeoutSeconds: 10},
		Storage: StorageConfig{Backend: BackendLocal, BaseDir: "data"},
	}

	tests := []struct {
		name string
		cfg  func(c Config) Config
		want string
	}{
		{"missing listing url", func(c Config) Config { c.Crawler.ListingURL = " "; return c }, "crawler.listing_url"},
		{"start page", func(c Config) Config { c.Crawler.StartPage = 0; return c }, "crawler.start_page"},
		{"negative max pages", func(c Config) Config { c.Crawler.MaxPages = -1; return c }, "crawler.max_pages"},
		{"negative timeout", func(c Config) Config { c.HTTP.TimeoutSeconds = -1; return c }, "http.timeout_seconds"},
		{"local without dir", func(c Config) Config { c.Storage.BaseDir = ""; return c }, "storage.base_dir"},
		{"gcs without bucket", func(c Config) Config { c.Storage.Backend = BackendGCS; return c }, "storage.gcs_bucket"},
		{"redis without addr", func(c Config) Config { c.Storage.Backend = BackendRedis; return c }, "redis.addr"},
		{"postgres without dsn", func(c Config) Config { c.Storage.Backend = BackendPostgres; return c }, "db.dsn"},
		{"unknown backend", func(c Config) Config { c.Storage.Backend = "s3"; return c }, "storage.backend"},
		{"topic without project", func(c Config) Config { c.PubSub.TopicName = "captures"; return c }, "pubsub.project_id"},
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg(base).Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "lookervault.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	yaml := `looker:
  base_url: https://instance.looker.com/api/4.0
  client_id: abc123
  client_secret: secret
  verify_ssl: false
  timeout: 45s

extraction:
  db_path: ./data/lookervault.db
  batch_size: 250
  default_fields:
    - id
    - title
  auto_resume: true

parallel:
  workers: 16
  queue_size: 200
  rate_limit_per_minute: 2000
  rate_limit_per_second: 40
  adaptive_rate_limiting: true

storage:
  retention_days: 14
  max_blob_size_mb: 100

restore:
  workers: 4
  rate_limit_per_minute: 500
  checkpoint_interval: 50
  max_retries: 3
  filters:
    only_types: ["dashboard", "look"]
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Looker.BaseURL != "https://instance.looker.com/api/4.0" {
		t.Errorf("base_url = %q", cfg.Looker.BaseURL)
	}
	if cfg.Looker.ClientID != "abc123" || cfg.Looker.ClientSecret != "secret" {
		t.Errorf("client credentials = %+v", cfg.Looker)
	}
	if cfg.Looker.VerifySSL == nil || *cfg.Looker.VerifySSL {
		t.Error("expected verify_ssl=false")
	}
	if cfg.Looker.Timeout.Duration != 45*time.Second {
		t.Errorf("timeout = %v", cfg.Looker.Timeout.Duration)
	}

	if cfg.Extraction.BatchSize != 250 {
		t.Errorf("batch_size = %d", cfg.Extraction.BatchSize)
	}
	if len(cfg.Extraction.DefaultFields) != 2 {
		t.Errorf("default_fields = %v", cfg.Extraction.DefaultFields)
	}
	if !cfg.Extraction.AutoResume {
		t.Error("expected auto_resume=true")
	}

	if cfg.Parallel.Workers != 16 || !cfg.Parallel.AdaptiveRateLimiting {
		t.Errorf("parallel = %+v", cfg.Parallel)
	}

	if cfg.Storage.RetentionDays != 14 || cfg.Storage.MaxBlobSizeMB != 100 {
		t.Errorf("storage = %+v", cfg.Storage)
	}

	if cfg.Restore.Workers != 4 || cfg.Restore.CheckpointInterval != 50 {
		t.Errorf("restore = %+v", cfg.Restore)
	}
	if len(cfg.Restore.Filters.OnlyTypes) != 2 {
		t.Errorf("filters.only_types = %v", cfg.Restore.Filters.OnlyTypes)
	}
}

func TestLoadEmptyPathReturnsZeroConfig(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Looker.BaseURL != "" {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}

func TestLoadMissingFileReturnsZeroConfig(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected no error for a missing, optional config file: %v", err)
	}
	if cfg.Looker.BaseURL != "" {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{invalid yaml")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadUnknownKeyRejected(t *testing.T) {
	path := writeTemp(t, "looker:\n  base_url: x\n  bogus_key: y\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "bogus_key") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("TEST_LOOKER_SECRET", "expanded-secret")
	path := writeTemp(t, "looker:\n  client_secret: ${TEST_LOOKER_SECRET}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Looker.ClientSecret != "expanded-secret" {
		t.Errorf("client_secret = %q, want expanded-secret", cfg.Looker.ClientSecret)
	}
}

func TestLoadEnvExpansionDefault(t *testing.T) {
	os.Unsetenv("TEST_UNSET_WORKERS")
	path := writeTemp(t, "extraction:\n  db_path: ${TEST_UNSET_WORKERS:-fallback.db}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Extraction.DBPath != "fallback.db" {
		t.Errorf("db_path = %q, want fallback.db", cfg.Extraction.DBPath)
	}
}

func TestFillDefaults(t *testing.T) {
	var cfg Config
	cfg.FillDefaults()

	if cfg.Looker.Timeout.Duration != 30*time.Second {
		t.Errorf("default timeout = %v", cfg.Looker.Timeout.Duration)
	}
	if cfg.Looker.VerifySSL == nil || !*cfg.Looker.VerifySSL {
		t.Error("expected verify_ssl to default true")
	}
	if cfg.Extraction.DBPath != "lookervault.db" {
		t.Errorf("default db_path = %q", cfg.Extraction.DBPath)
	}
	if cfg.Parallel.Workers != 8 {
		t.Errorf("default workers = %d", cfg.Parallel.Workers)
	}
	if cfg.Restore.Workers != cfg.Parallel.Workers {
		t.Errorf("expected restore workers to default from parallel workers")
	}
	if cfg.Restore.CheckpointInterval != 100 {
		t.Errorf("default checkpoint_interval = %d", cfg.Restore.CheckpointInterval)
	}
}

func TestFillDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := Config{Parallel: ParallelConfig{Workers: 32}}
	cfg.FillDefaults()
	if cfg.Parallel.Workers != 32 {
		t.Errorf("expected explicit workers preserved, got %d", cfg.Parallel.Workers)
	}
	if cfg.Restore.Workers != 32 {
		t.Errorf("expected restore workers to inherit explicit parallel workers, got %d", cfg.Restore.Workers)
	}
}

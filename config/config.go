// Package config handles YAML config file loading for lookervault (spec
// §6's "Config file options"). Values here are defaults only — CLI flags
// always win, then environment variables, then the config file, then the
// built-in defaults FillDefaults supplies; that precedence chain is
// resolved by the cli package, which treats a Config as the bottom tier.
package config

import (
	"fmt"
	"time"
)

// Config mirrors a lookervault.yaml file.
type Config struct {
	Looker     LookerConfig     `yaml:"looker"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Parallel   ParallelConfig   `yaml:"parallel"`
	Storage    StorageConfig    `yaml:"storage"`
	Restore    RestoreConfig    `yaml:"restore"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
}

// LookerConfig holds the source Looker instance's connection defaults.
type LookerConfig struct {
	BaseURL      string   `yaml:"base_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	VerifySSL    *bool    `yaml:"verify_ssl"`
	Timeout      Duration `yaml:"timeout"`
}

// ExtractionConfig holds defaults for the extract subcommand.
type ExtractionConfig struct {
	DBPath        string   `yaml:"db_path"`
	BatchSize     int      `yaml:"batch_size"`
	DefaultFields []string `yaml:"default_fields"`
	AutoResume    bool     `yaml:"auto_resume"`
}

// ParallelConfig holds worker pool and rate limit defaults shared by
// extraction and restoration.
type ParallelConfig struct {
	Workers              int  `yaml:"workers"`
	QueueSize            int  `yaml:"queue_size"`
	RateLimitPerMinute   int  `yaml:"rate_limit_per_minute"`
	RateLimitPerSecond   int  `yaml:"rate_limit_per_second"`
	AdaptiveRateLimiting bool `yaml:"adaptive_rate_limiting"`
}

// StorageConfig holds content store retention defaults.
type StorageConfig struct {
	RetentionDays int `yaml:"retention_days"`
	MaxBlobSizeMB int `yaml:"max_blob_size_mb"`
}

// RestoreConfig holds defaults for the restore subcommand.
type RestoreConfig struct {
	Workers            int            `yaml:"workers"`
	RateLimitPerMinute int            `yaml:"rate_limit_per_minute"`
	RateLimitPerSecond int            `yaml:"rate_limit_per_second"`
	CheckpointInterval int            `yaml:"checkpoint_interval"`
	MaxRetries         int            `yaml:"max_retries"`
	Filters            RestoreFilters `yaml:"filters"`
}

// RestoreFilters narrows which content types a restore run touches.
type RestoreFilters struct {
	ExcludeTypes []string `yaml:"exclude_types"`
	OnlyTypes    []string `yaml:"only_types"`
}

// SnapshotConfig holds defaults for the snapshot subcommand's S3 sink.
type SnapshotConfig struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
	Keep         int    `yaml:"keep"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// FillDefaults applies the spec's built-in defaults to every field still
// at its zero value. Called after Load so a config file only needs to
// name the values it wants to override.
func (c *Config) FillDefaults() {
	if c.Looker.Timeout.Duration == 0 {
		c.Looker.Timeout.Duration = 30 * time.Second
	}
	if c.Looker.VerifySSL == nil {
		t := true
		c.Looker.VerifySSL = &t
	}
	if c.Extraction.DBPath == "" {
		c.Extraction.DBPath = "lookervault.db"
	}
	if c.Extraction.BatchSize == 0 {
		c.Extraction.BatchSize = 100
	}
	if c.Parallel.Workers == 0 {
		c.Parallel.Workers = 8
	}
	if c.Parallel.QueueSize == 0 {
		c.Parallel.QueueSize = 100
	}
	if c.Parallel.RateLimitPerMinute == 0 {
		c.Parallel.RateLimitPerMinute = 100
	}
	if c.Parallel.RateLimitPerSecond == 0 {
		c.Parallel.RateLimitPerSecond = 10
	}
	if c.Storage.RetentionDays == 0 {
		c.Storage.RetentionDays = 30
	}
	if c.Storage.MaxBlobSizeMB == 0 {
		c.Storage.MaxBlobSizeMB = 50
	}
	if c.Restore.Workers == 0 {
		c.Restore.Workers = c.Parallel.Workers
	}
	if c.Restore.RateLimitPerMinute == 0 {
		c.Restore.RateLimitPerMinute = c.Parallel.RateLimitPerMinute
	}
	if c.Restore.RateLimitPerSecond == 0 {
		c.Restore.RateLimitPerSecond = c.Parallel.RateLimitPerSecond
	}
	if c.Restore.CheckpointInterval == 0 {
		c.Restore.CheckpointInterval = 100
	}
	if c.Restore.MaxRetries == 0 {
		c.Restore.MaxRetries = 5
	}
	if c.Snapshot.Prefix == "" {
		c.Snapshot.Prefix = "lookervault"
	}
	if c.Snapshot.Keep == 0 {
		c.Snapshot.Keep = 10
	}
}

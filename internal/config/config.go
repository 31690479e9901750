package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Project-Sylos/Mirage/internal/types"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. MIRAGE_API_PORT=9000
const EnvPrefix = "MIRAGE"

// DefaultConfig returns a configuration that boots a self-contained emulator
func DefaultConfig() types.Config {
	return types.Config{
		Logging: types.LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		API: types.APIConfig{
			Host:            "localhost",
			Port:            8086,
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Items: types.ItemStoreConfig{
			Type: "duckdb",
			DSN:  "./mirage.db",
		},
		Blobs: types.BlobStoreConfig{
			Type: "fs",
			FS:   map[string]any{"root": "./mirage-blobs"},
		},
		Upload: types.UploadConfig{
			SessionTTL:    24 * time.Hour,
			SweepInterval: 5 * time.Minute,
			MaxChunkSize:  60 * 1024 * 1024,
			MaxFileSize:   1 << 30,
			Ledger:        "memory",
			LedgerPath:    "./mirage-sessions",
		},
		Batch: types.BatchConfig{
			MaxRequests: 20,
		},
		Seed: types.SeedConfig{
			Enabled:    true,
			Seed:       42,
			Sites:      1,
			MaxDepth:   2,
			MinFolders: 1,
			MaxFolders: 3,
			MinFiles:   2,
			MaxFiles:   5,
			ListItems:  5,
		},
	}
}

// Load loads configuration from an optional file, MIRAGE_* environment
// variables and defaults, in that order of precedence (environment first).
// An empty configPath skips the file.
func Load(configPath string) (*types.Config, error) {
	v := viper.New()
	setupViper(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a file that must exist
func LoadFromFile(configPath string) (*types.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	return Load(configPath)
}

// setupViper registers defaults for every key so environment overrides apply
// even without a config file.
func setupViper(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)

	v.SetDefault("api.host", d.API.Host)
	v.SetDefault("api.port", d.API.Port)
	v.SetDefault("api.public_url", d.API.PublicURL)
	v.SetDefault("api.request_timeout", d.API.RequestTimeout)
	v.SetDefault("api.shutdown_timeout", d.API.ShutdownTimeout)

	v.SetDefault("auth.require_bearer", d.Auth.RequireBearer)

	v.SetDefault("items.type", d.Items.Type)
	v.SetDefault("items.dsn", d.Items.DSN)

	v.SetDefault("blobs.type", d.Blobs.Type)
	v.SetDefault("blobs.fs", d.Blobs.FS)

	v.SetDefault("upload.session_ttl", d.Upload.SessionTTL)
	v.SetDefault("upload.sweep_interval", d.Upload.SweepInterval)
	v.SetDefault("upload.max_chunk_size", d.Upload.MaxChunkSize)
	v.SetDefault("upload.max_file_size", d.Upload.MaxFileSize)
	v.SetDefault("upload.ledger", d.Upload.Ledger)
	v.SetDefault("upload.ledger_path", d.Upload.LedgerPath)

	v.SetDefault("batch.max_requests", d.Batch.MaxRequests)
	v.SetDefault("batch.concurrent", d.Batch.Concurrent)

	v.SetDefault("seed.enabled", d.Seed.Enabled)
	v.SetDefault("seed.seed", d.Seed.Seed)
	v.SetDefault("seed.sites", d.Seed.Sites)
	v.SetDefault("seed.max_depth", d.Seed.MaxDepth)
	v.SetDefault("seed.min_folders", d.Seed.MinFolders)
	v.SetDefault("seed.max_folders", d.Seed.MaxFolders)
	v.SetDefault("seed.min_files", d.Seed.MinFiles)
	v.SetDefault("seed.max_files", d.Seed.MaxFiles)
	v.SetDefault("seed.list_items", d.Seed.ListItems)
}

// ApplyDefaults fills zero values with defaults and normalizes the result.
// Booleans are left as given.
func ApplyDefaults(cfg *types.Config) {
	d := DefaultConfig()

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = d.Logging.Output
	}

	if cfg.API.Host == "" {
		cfg.API.Host = d.API.Host
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = d.API.Port
	}
	cfg.API.PublicURL = strings.TrimRight(cfg.API.PublicURL, "/")
	if cfg.API.RequestTimeout == 0 {
		cfg.API.RequestTimeout = d.API.RequestTimeout
	}
	if cfg.API.ShutdownTimeout == 0 {
		cfg.API.ShutdownTimeout = d.API.ShutdownTimeout
	}

	if cfg.Items.Type == "" {
		cfg.Items.Type = d.Items.Type
	}
	cfg.Items.Type = strings.ToLower(cfg.Items.Type)
	if cfg.Items.DSN == "" && cfg.Items.Type == d.Items.Type {
		cfg.Items.DSN = d.Items.DSN
	}
	// File-backed DSNs are resolved to absolute paths
	if cfg.Items.DSN != "" && (cfg.Items.Type == "duckdb" || cfg.Items.Type == "sqlite") &&
		cfg.Items.DSN != ":memory:" && !filepath.IsAbs(cfg.Items.DSN) && !strings.Contains(cfg.Items.DSN, "?") {
		if absPath, err := filepath.Abs(cfg.Items.DSN); err == nil {
			cfg.Items.DSN = absPath
		}
	}

	if cfg.Blobs.Type == "" {
		cfg.Blobs.Type = d.Blobs.Type
	}
	cfg.Blobs.Type = strings.ToLower(cfg.Blobs.Type)
	if cfg.Blobs.FS == nil {
		cfg.Blobs.FS = make(map[string]any)
	}
	if _, ok := cfg.Blobs.FS["root"]; !ok && cfg.Blobs.Type == "fs" {
		cfg.Blobs.FS["root"] = d.Blobs.FS["root"]
	}
	if cfg.Blobs.S3 == nil {
		cfg.Blobs.S3 = make(map[string]any)
	}

	if cfg.Upload.SessionTTL == 0 {
		cfg.Upload.SessionTTL = d.Upload.SessionTTL
	}
	if cfg.Upload.SweepInterval == 0 {
		cfg.Upload.SweepInterval = d.Upload.SweepInterval
	}
	if cfg.Upload.MaxChunkSize == 0 {
		cfg.Upload.MaxChunkSize = d.Upload.MaxChunkSize
	}
	if cfg.Upload.MaxFileSize == 0 {
		cfg.Upload.MaxFileSize = d.Upload.MaxFileSize
	}
	if cfg.Upload.Ledger == "" {
		cfg.Upload.Ledger = d.Upload.Ledger
	}
	if cfg.Upload.LedgerPath == "" {
		cfg.Upload.LedgerPath = d.Upload.LedgerPath
	}

	if cfg.Batch.MaxRequests == 0 {
		cfg.Batch.MaxRequests = d.Batch.MaxRequests
	}
}

// SaveToFile saves configuration as YAML (.yaml/.yml) or JSON (anything else)
func SaveToFile(cfg *types.Config, configPath string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

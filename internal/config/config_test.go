package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Project-Sylos/Mirage/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

// TestLoad tests loading from files of different formats
func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(t *testing.T) string
		expectError bool
		validate    func(*testing.T, *types.Config)
	}{
		{
			name:  "defaults without file",
			setup: func(t *testing.T) string { return "" },
			validate: func(t *testing.T, cfg *types.Config) {
				assert.Equal(t, 8086, cfg.API.Port)
				assert.Equal(t, "duckdb", cfg.Items.Type)
				assert.Equal(t, 24*time.Hour, cfg.Upload.SessionTTL)
				assert.Equal(t, int64(1<<30), cfg.Upload.MaxFileSize)
				assert.Equal(t, 20, cfg.Batch.MaxRequests)
				assert.True(t, cfg.Seed.Enabled)
			},
		},
		{
			name: "json file",
			setup: func(t *testing.T) string {
				return writeConfig(t, "mirage.json", `{
					"api": {"host": "0.0.0.0", "port": 9000},
					"items": {"type": "memory"},
					"blobs": {"type": "memory"},
					"upload": {"session_ttl": "1h", "ledger": "memory"},
					"batch": {"max_requests": 10, "concurrent": true},
					"seed": {"enabled": false}
				}`)
			},
			validate: func(t *testing.T, cfg *types.Config) {
				assert.Equal(t, "0.0.0.0", cfg.API.Host)
				assert.Equal(t, 9000, cfg.API.Port)
				assert.Equal(t, "memory", cfg.Items.Type)
				assert.Equal(t, time.Hour, cfg.Upload.SessionTTL)
				assert.Equal(t, 10, cfg.Batch.MaxRequests)
				assert.True(t, cfg.Batch.Concurrent)
				assert.False(t, cfg.Seed.Enabled)
			},
		},
		{
			name: "yaml file with lowercase level",
			setup: func(t *testing.T) string {
				return writeConfig(t, "mirage.yaml", "logging:\n  level: debug\nitems:\n  type: memory\n")
			},
			validate: func(t *testing.T, cfg *types.Config) {
				assert.Equal(t, "DEBUG", cfg.Logging.Level)
			},
		},
		{
			name:        "nonexistent config file",
			setup:       func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.json") },
			expectError: true,
		},
		{
			name:        "invalid JSON config",
			setup:       func(t *testing.T) string { return writeConfig(t, "bad.json", `{"api": {`) },
			expectError: true,
		},
		{
			name: "invalid port",
			setup: func(t *testing.T) string {
				return writeConfig(t, "port.json", `{"api": {"port": 70000}}`)
			},
			expectError: true,
		},
		{
			name: "unknown item store",
			setup: func(t *testing.T) string {
				return writeConfig(t, "store.json", `{"items": {"type": "oracle"}}`)
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.setup(t))
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("MIRAGE_API_PORT", "9100")
	t.Setenv("MIRAGE_BATCH_CONCURRENT", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.API.Port)
	assert.True(t, cfg.Batch.Concurrent)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*types.Config)
		expectError bool
	}{
		{name: "default config", mutate: func(*types.Config) {}},
		{name: "nil sections filled", mutate: func(c *types.Config) { c.Blobs.FS = nil }},
		{
			name:        "folders range inverted",
			mutate:      func(c *types.Config) { c.Seed.MinFolders, c.Seed.MaxFolders = 5, 1 },
			expectError: true,
		},
		{
			name:        "sql store without dsn",
			mutate:      func(c *types.Config) { c.Items.Type, c.Items.DSN = "sqlite", "" },
			expectError: true,
		},
		{
			name:        "badger ledger without path",
			mutate:      func(c *types.Config) { c.Upload.Ledger, c.Upload.LedgerPath = "badger", "" },
			expectError: true,
		},
		{
			name:        "batch limit too high",
			mutate:      func(c *types.Config) { c.Batch.MaxRequests = 500 },
			expectError: true,
		},
		{
			name:        "file limit below chunk limit",
			mutate:      func(c *types.Config) { c.Upload.MaxFileSize = c.Upload.MaxChunkSize - 1 },
			expectError: true,
		},
		{
			name:        "zero session ttl",
			mutate:      func(c *types.Config) { c.Upload.SessionTTL = 0 },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := Validate(&cfg)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Error(t, Validate(nil))
}

func TestSaveToFileRoundTrip(t *testing.T) {
	for _, name := range []string{"saved.yaml", "saved.json"} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Items = types.ItemStoreConfig{Type: "memory"}
			cfg.API.Port = 9300
			cfg.Upload.SessionTTL = 2 * time.Hour

			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, SaveToFile(&cfg, path))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, 9300, loaded.API.Port)
			assert.Equal(t, "memory", loaded.Items.Type)
			assert.Equal(t, 2*time.Hour, loaded.Upload.SessionTTL)
		})
	}
}

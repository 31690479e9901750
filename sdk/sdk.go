// Package sdk is the public facade of the emulator. It wires configuration,
// the Item and Blob stores, the upload ledger and the services that the
// HTTP API and embedding programs use.
package sdk

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/Project-Sylos/Mirage/internal/blob"
	"github.com/Project-Sylos/Mirage/internal/config"
	"github.com/Project-Sylos/Mirage/internal/db"
	"github.com/Project-Sylos/Mirage/internal/generator"
	"github.com/Project-Sylos/Mirage/internal/graph"
	"github.com/Project-Sylos/Mirage/internal/logger"
	"github.com/Project-Sylos/Mirage/internal/store"
	"github.com/Project-Sylos/Mirage/internal/store/memory"
	"github.com/Project-Sylos/Mirage/internal/types"
	"github.com/Project-Sylos/Mirage/internal/upload"
)

// Mirage is a running emulator instance without the HTTP layer
type Mirage struct {
	cfg     *types.Config
	items   store.ItemStore
	blobs   store.BlobStore
	ledger  upload.Ledger
	graph   *graph.Service
	uploads *upload.Service
}

// New loads configuration from configPath (empty means defaults plus
// MIRAGE_* environment) and opens the emulator
func New(configPath string) (*Mirage, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(context.Background(), cfg)
}

// NewWithDefaults opens the emulator with the default configuration
func NewWithDefaults() (*Mirage, error) {
	return New("")
}

// NewWithConfig opens the stores named by cfg and seeds an empty item store
func NewWithConfig(ctx context.Context, cfg *types.Config) (*Mirage, error) {
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}

	m := &Mirage{cfg: cfg}
	if err := m.open(ctx); err != nil {
		m.Close()
		return nil, err
	}

	if _, err := generator.SeedIfEmpty(ctx, cfg.Seed, m.items, m.blobs); err != nil {
		m.Close()
		return nil, fmt.Errorf("failed to seed: %w", err)
	}
	return m, nil
}

func (m *Mirage) open(ctx context.Context) error {
	var err error

	m.items, err = openItemStore(m.cfg.Items)
	if err != nil {
		return err
	}

	m.blobs, err = blob.New(ctx, m.cfg.Blobs)
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}

	m.ledger, err = openLedger(m.cfg.Upload)
	if err != nil {
		return err
	}

	nameLocks := &store.KeyedMutex{}
	m.graph = graph.NewService(m.items, m.blobs, graph.Options{NameLocks: nameLocks})
	m.uploads = upload.NewService(m.items, m.blobs, m.ledger, upload.Options{
		SessionTTL:   m.cfg.Upload.SessionTTL,
		MaxChunkSize: m.cfg.Upload.MaxChunkSize,
		MaxFileSize:  m.cfg.Upload.MaxFileSize,
		NameLocks:    nameLocks,
	})
	return nil
}

func openItemStore(cfg types.ItemStoreConfig) (store.ItemStore, error) {
	if cfg.Type == "memory" {
		return memory.NewItemStore(), nil
	}
	items, err := db.New(cfg.Type, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open item store: %w", err)
	}
	return items, nil
}

func openLedger(cfg types.UploadConfig) (upload.Ledger, error) {
	if cfg.Ledger != "badger" {
		return upload.NewMemoryLedger(), nil
	}
	ledger, err := upload.NewBadgerLedger(cfg.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload ledger: %w", err)
	}
	return ledger, nil
}

// Config returns the effective configuration
func (m *Mirage) Config() *types.Config {
	return m.cfg
}

// Graph returns the sites, drives, items and lists service
func (m *Mirage) Graph() *graph.Service {
	return m.graph
}

// Uploads returns the resumable upload service
func (m *Mirage) Uploads() *upload.Service {
	return m.uploads
}

// Stats returns item counts per type
func (m *Mirage) Stats(ctx context.Context) (*types.StoreStats, error) {
	return m.graph.Stats(ctx)
}

// Reset drops every upload session, item and blob, then seeds again when
// seeding is enabled
func (m *Mirage) Reset(ctx context.Context) (*types.StoreStats, error) {
	if err := m.uploads.Reset(ctx); err != nil {
		return nil, fmt.Errorf("failed to reset upload sessions: %w", err)
	}
	if err := m.graph.Reset(ctx); err != nil {
		return nil, err
	}
	if _, err := generator.SeedIfEmpty(ctx, m.cfg.Seed, m.items, m.blobs); err != nil {
		return nil, fmt.Errorf("failed to seed: %w", err)
	}

	logger.Info("emulator reset: seed=%v", m.cfg.Seed.Enabled)
	return m.graph.Stats(ctx)
}

// RunSweeper removes expired upload sessions every upload.sweep_interval
// until ctx is done
func (m *Mirage) RunSweeper(ctx context.Context) {
	m.uploads.RunSweeper(ctx, m.cfg.Upload.SweepInterval)
}

// AsFS returns a read-only fs.FS over one drive
func (m *Mirage) AsFS(driveID string) fs.FS {
	return graph.NewDriveFS(context.Background(), m.graph, driveID)
}

// Close releases the ledger and both stores
func (m *Mirage) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if m.ledger != nil {
		keep(m.ledger.Close())
	}
	if m.blobs != nil {
		keep(m.blobs.Close())
	}
	if m.items != nil {
		keep(m.items.Close())
	}
	return firstErr
}

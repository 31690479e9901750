// Package generator builds deterministic sample content: sites with a
// document library of folders and files, and a task list with list items.
// The same seed always yields the same ids, names, timestamps and bytes.
package generator

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/Project-Sylos/Mirage/internal/logger"
	"github.com/Project-Sylos/Mirage/internal/store"
	"github.com/Project-Sylos/Mirage/internal/types"
	"github.com/Project-Sylos/Mirage/internal/utils"
	"github.com/google/uuid"
)

// RNG wraps math/rand.Rand for seeded random generation
type RNG struct {
	*rand.Rand
}

// NewRNG creates a new seeded random number generator
func NewRNG(seed int64) *RNG {
	return &RNG{
		Rand: rand.New(rand.NewSource(seed)),
	}
}

// NewID draws a version 4 UUID from the generator's stream
func (r *RNG) NewID() string {
	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		// rand.Rand never fails to read
		panic(err)
	}
	return id.String()
}

// epoch anchors generated timestamps so they do not depend on the clock
var epoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// Names of the per-site library and list
const (
	LibraryName = "Documents"
	ListName    = "Tasks"
)

var (
	siteNames    = []string{"Contoso", "Fabrikam", "Northwind", "Tailspin", "Woodgrove"}
	fileExts     = []string{".txt", ".docx", ".xlsx", ".pdf", ".md", ".csv"}
	taskStatuses = []string{"Open", "In Progress", "Done"}
)

// Generator writes seed content into an Item Store and a Blob Store
type Generator struct {
	cfg   types.SeedConfig
	rng   *RNG
	items store.ItemStore
	blobs store.BlobStore
	clock time.Time
	stats *types.StoreStats
}

// New creates a generator for cfg over the given stores
func New(cfg types.SeedConfig, items store.ItemStore, blobs store.BlobStore) *Generator {
	return &Generator{
		cfg:   cfg,
		rng:   NewRNG(cfg.Seed),
		items: items,
		blobs: blobs,
		clock: epoch,
	}
}

// SeedIfEmpty seeds only when the item store holds nothing. It returns nil
// stats when seeding was skipped.
func SeedIfEmpty(ctx context.Context, cfg types.SeedConfig, items store.ItemStore, blobs store.BlobStore) (*types.StoreStats, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	stats, err := items.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect item store: %w", err)
	}
	if stats.Total > 0 {
		logger.Debug("seed skipped: items=%d", stats.Total)
		return nil, nil
	}
	return New(cfg, items, blobs).Seed(ctx)
}

// Seed generates every configured site and returns per-type counts
func (g *Generator) Seed(ctx context.Context) (*types.StoreStats, error) {
	if err := ValidateConfig(g.cfg); err != nil {
		return nil, err
	}

	g.stats = &types.StoreStats{Counts: make(map[string]int)}
	for i := 0; i < g.cfg.Sites; i++ {
		if err := g.generateSite(ctx, i); err != nil {
			return nil, fmt.Errorf("failed to generate site %d: %w", i+1, err)
		}
	}

	logger.Info("seed data generated: seed=%d sites=%d items=%d", g.cfg.Seed, g.cfg.Sites, g.stats.Total)
	return g.stats, nil
}

// tick advances the generated clock by a random number of minutes
func (g *Generator) tick() time.Time {
	g.clock = g.clock.Add(time.Duration(g.rng.Intn(120)+1) * time.Minute)
	return g.clock
}

func (g *Generator) save(ctx context.Context, item *types.Item) error {
	if err := g.items.UpsertItem(ctx, item); err != nil {
		return err
	}
	g.stats.Counts[item.Type]++
	g.stats.Total++
	return nil
}

func (g *Generator) generateSite(ctx context.Context, index int) error {
	name := siteNames[index%len(siteNames)]
	if index >= len(siteNames) {
		name = fmt.Sprintf("%s %d", name, index/len(siteNames)+1)
	}

	now := g.tick()
	site := &types.Item{
		ID:           g.rng.NewID(),
		Name:         name,
		Path:         types.RootPath,
		Type:         types.ItemTypeSite,
		CreatedAt:    now,
		LastModified: now,
	}
	site.SiteID = site.ID
	if err := g.save(ctx, site); err != nil {
		return err
	}

	// A drive is its own root folder
	now = g.tick()
	drive := &types.Item{
		ID:           g.rng.NewID(),
		ParentID:     site.ID,
		SiteID:       site.ID,
		Name:         LibraryName,
		Path:         types.RootPath,
		Type:         types.ItemTypeDrive,
		CreatedAt:    now,
		LastModified: now,
	}
	drive.DriveID = drive.ID
	if err := g.save(ctx, drive); err != nil {
		return err
	}
	if err := g.GenerateChildren(ctx, drive, 0); err != nil {
		return err
	}

	return g.generateList(ctx, site)
}

// GenerateChildren fills parent with folders and files, recursing until
// max_depth
func (g *Generator) GenerateChildren(ctx context.Context, parent *types.Item, depth int) error {
	if depth >= g.cfg.MaxDepth {
		return nil
	}

	folderCount := g.rng.Intn(g.cfg.MaxFolders-g.cfg.MinFolders+1) + g.cfg.MinFolders
	for i := 0; i < folderCount; i++ {
		folder, err := g.generateFolder(ctx, parent, i+1)
		if err != nil {
			return fmt.Errorf("failed to generate folder %d: %w", i+1, err)
		}
		if err := g.GenerateChildren(ctx, folder, depth+1); err != nil {
			return err
		}
	}

	fileCount := g.rng.Intn(g.cfg.MaxFiles-g.cfg.MinFiles+1) + g.cfg.MinFiles
	for i := 0; i < fileCount; i++ {
		if err := g.generateFile(ctx, parent, i+1); err != nil {
			return fmt.Errorf("failed to generate file %d: %w", i+1, err)
		}
	}
	return nil
}

func (g *Generator) generateFolder(ctx context.Context, parent *types.Item, index int) (*types.Item, error) {
	name := fmt.Sprintf("folder_%d", index)
	now := g.tick()

	folder := &types.Item{
		ID:           g.rng.NewID(),
		ParentID:     parent.ID,
		DriveID:      parent.DriveID,
		SiteID:       parent.SiteID,
		Name:         name,
		Path:         utils.JoinPath(parent.Path, name),
		Type:         types.ItemTypeFolder,
		CreatedAt:    now,
		LastModified: now,
	}
	if err := g.save(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

func (g *Generator) generateFile(ctx context.Context, parent *types.Item, index int) error {
	name := fmt.Sprintf("file_%d%s", index, fileExts[g.rng.Intn(len(fileExts))])
	now := g.tick()

	data, checksum := GenerateFileData(g.rng)
	file := &types.Item{
		ID:           g.rng.NewID(),
		ParentID:     parent.ID,
		DriveID:      parent.DriveID,
		SiteID:       parent.SiteID,
		Name:         name,
		Path:         utils.JoinPath(parent.Path, name),
		Type:         types.ItemTypeFile,
		Size:         int64(len(data)),
		MimeType:     utils.MimeTypeByName(name),
		Checksum:     checksum,
		CreatedAt:    now,
		LastModified: now,
	}
	file.BlobPath = store.BlobPath(file.DriveID, file.ID, "seed")

	if _, err := g.blobs.Write(ctx, file.BlobPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write blob for %s: %w", file.Path, err)
	}
	return g.save(ctx, file)
}

func (g *Generator) generateList(ctx context.Context, site *types.Item) error {
	now := g.tick()
	list := &types.Item{
		ID:           g.rng.NewID(),
		ParentID:     site.ID,
		SiteID:       site.ID,
		Name:         ListName,
		Path:         types.RootPath,
		Type:         types.ItemTypeList,
		CreatedAt:    now,
		LastModified: now,
		Fields:       map[string]any{"template": "genericList"},
	}
	list.ListID = list.ID
	if err := g.save(ctx, list); err != nil {
		return err
	}

	for i := 0; i < g.cfg.ListItems; i++ {
		now := g.tick()
		title := fmt.Sprintf("Task %d", i+1)
		item := &types.Item{
			ID:           g.rng.NewID(),
			ParentID:     list.ID,
			SiteID:       site.ID,
			ListID:       list.ID,
			Name:         title,
			Type:         types.ItemTypeListItem,
			CreatedAt:    now,
			LastModified: now,
			Fields: map[string]any{
				"Title":    title,
				"Status":   taskStatuses[g.rng.Intn(len(taskStatuses))],
				"Priority": float64(g.rng.Intn(3) + 1),
				"DueDate":  now.AddDate(0, 0, g.rng.Intn(30)+1).Format("2006-01-02"),
			},
		}
		if err := g.save(ctx, item); err != nil {
			return fmt.Errorf("failed to generate list item %d: %w", i+1, err)
		}
	}
	return nil
}

// ValidateConfig validates the seed configuration
func ValidateConfig(cfg types.SeedConfig) error {
	if cfg.Sites > 0 && cfg.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be at least 1")
	}
	if cfg.MinFolders < 0 || cfg.MaxFolders < cfg.MinFolders {
		return fmt.Errorf("invalid folder count range: min=%d, max=%d", cfg.MinFolders, cfg.MaxFolders)
	}
	if cfg.MinFiles < 0 || cfg.MaxFiles < cfg.MinFiles {
		return fmt.Errorf("invalid file count range: min=%d, max=%d", cfg.MinFiles, cfg.MaxFiles)
	}
	if cfg.ListItems < 0 {
		return fmt.Errorf("list_items must not be negative")
	}
	return nil
}

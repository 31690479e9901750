// Package storetest holds conformance suites run against every Item Store
// and Blob Store backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/Project-Sylos/Mirage/internal/store"
	"github.com/Project-Sylos/Mirage/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ItemStoreSuite exercises the store.ItemStore contract. NewStore must
// return an empty store.
type ItemStoreSuite struct {
	NewStore func(t *testing.T) store.ItemStore
}

func (s *ItemStoreSuite) Run(t *testing.T) {
	t.Run("GetMissing", s.testGetMissing)
	t.Run("UpsertAndGet", s.testUpsertAndGet)
	t.Run("UpsertReplaces", s.testUpsertReplaces)
	t.Run("Children", s.testChildren)
	t.Run("ByType", s.testByType)
	t.Run("Delete", s.testDelete)
	t.Run("StatsAndReset", s.testStatsAndReset)
}

func newItem(id, parentID, name, itemType string) *types.Item {
	now := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)
	return &types.Item{
		ID:           id,
		ParentID:     parentID,
		DriveID:      "drive-1",
		SiteID:       "site-1",
		Name:         name,
		Path:         "/" + name,
		Type:         itemType,
		CreatedAt:    now,
		LastModified: now,
	}
}

func (s *ItemStoreSuite) open(t *testing.T) store.ItemStore {
	st := s.NewStore(t)
	t.Cleanup(func() { st.Close() })
	return st
}

func (s *ItemStoreSuite) testGetMissing(t *testing.T) {
	st := s.open(t)
	_, err := st.GetItem(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func (s *ItemStoreSuite) testUpsertAndGet(t *testing.T) {
	st := s.open(t)
	ctx := context.Background()

	item := newItem("f1", "root", "report.xlsx", types.ItemTypeFile)
	item.Size = 10000
	item.MimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	item.Checksum = "abc123"
	item.BlobPath = "drive-1/report.xlsx"
	item.Fields = map[string]any{"Status": "Open"}
	require.NoError(t, st.UpsertItem(ctx, item))

	got, err := st.GetItem(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "report.xlsx", got.Name)
	assert.Equal(t, int64(10000), got.Size)
	assert.Equal(t, item.MimeType, got.MimeType)
	assert.Equal(t, "abc123", got.Checksum)
	assert.Equal(t, "drive-1/report.xlsx", got.BlobPath)
	assert.Equal(t, "Open", got.Fields["Status"])
	assert.True(t, item.LastModified.Equal(got.LastModified))

	// Mutating the returned copy must not leak into the store
	got.Name = "changed"
	again, err := st.GetItem(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "report.xlsx", again.Name)
}

func (s *ItemStoreSuite) testUpsertReplaces(t *testing.T) {
	st := s.open(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertItem(ctx, newItem("f1", "root", "a.txt", types.ItemTypeFile)))
	updated := newItem("f1", "root", "b.txt", types.ItemTypeFile)
	updated.Size = 42
	require.NoError(t, st.UpsertItem(ctx, updated))

	got, err := st.GetItem(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "b.txt", got.Name)
	assert.Equal(t, int64(42), got.Size)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func (s *ItemStoreSuite) testChildren(t *testing.T) {
	st := s.open(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertItem(ctx, newItem("root", "", "root", types.ItemTypeDrive)))
	require.NoError(t, st.UpsertItem(ctx, newItem("b", "root", "b.txt", types.ItemTypeFile)))
	require.NoError(t, st.UpsertItem(ctx, newItem("a", "root", "a.txt", types.ItemTypeFile)))
	require.NoError(t, st.UpsertItem(ctx, newItem("d", "root", "docs", types.ItemTypeFolder)))
	require.NoError(t, st.UpsertItem(ctx, newItem("x", "d", "nested.txt", types.ItemTypeFile)))

	children, err := st.GetChildren(ctx, "root")
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, "a.txt", children[0].Name)
	assert.Equal(t, "b.txt", children[1].Name)
	assert.Equal(t, "docs", children[2].Name)

	none, err := st.GetChildren(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func (s *ItemStoreSuite) testByType(t *testing.T) {
	st := s.open(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertItem(ctx, newItem("s1", "", "Contoso", types.ItemTypeSite)))
	require.NoError(t, st.UpsertItem(ctx, newItem("s2", "", "Archive", types.ItemTypeSite)))
	require.NoError(t, st.UpsertItem(ctx, newItem("d1", "s1", "Documents", types.ItemTypeDrive)))

	sites, err := st.GetItemsByType(ctx, types.ItemTypeSite)
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "Archive", sites[0].Name)

	lists, err := st.GetItemsByType(ctx, types.ItemTypeList)
	require.NoError(t, err)
	assert.Empty(t, lists)
}

func (s *ItemStoreSuite) testDelete(t *testing.T) {
	st := s.open(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertItem(ctx, newItem("f1", "root", "a.txt", types.ItemTypeFile)))
	require.NoError(t, st.DeleteItem(ctx, "f1"))

	_, err := st.GetItem(ctx, "f1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, st.DeleteItem(ctx, "f1"), store.ErrNotFound)
}

func (s *ItemStoreSuite) testStatsAndReset(t *testing.T) {
	st := s.open(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertItem(ctx, newItem("s1", "", "Contoso", types.ItemTypeSite)))
	require.NoError(t, st.UpsertItem(ctx, newItem("f1", "root", "a.txt", types.ItemTypeFile)))
	require.NoError(t, st.UpsertItem(ctx, newItem("f2", "root", "b.txt", types.ItemTypeFile)))

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Counts[types.ItemTypeFile])
	assert.Equal(t, 1, stats.Counts[types.ItemTypeSite])

	require.NoError(t, st.Reset(ctx))
	stats, err = st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}

package graph

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Project-Sylos/Mirage/internal/filter"
	"github.com/Project-Sylos/Mirage/internal/store"
	"github.com/Project-Sylos/Mirage/internal/store/memory"
	"github.com/Project-Sylos/Mirage/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSite   = "site-1"
	testDrive  = "drive-1"
	testFolder = "folder-docs"
	testFile   = "file-readme"
	testList   = "list-tasks"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	svc   *Service
	items *memory.ItemStore
	blobs *memory.BlobStore
}

func setupService(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	items := memory.NewItemStore()
	blobs := memory.NewBlobStore()

	readmePath := store.BlobPath(testDrive, testFile, "seed")
	_, err := blobs.Write(ctx, readmePath, strings.NewReader("hello world"))
	require.NoError(t, err)

	seed := []*types.Item{
		{ID: testSite, SiteID: testSite, Name: "Contoso", Path: types.RootPath, Type: types.ItemTypeSite},
		{ID: testDrive, ParentID: testSite, DriveID: testDrive, SiteID: testSite, Name: "Documents", Path: types.RootPath, Type: types.ItemTypeDrive},
		{ID: testFolder, ParentID: testDrive, DriveID: testDrive, SiteID: testSite, Name: "docs", Path: "/docs", Type: types.ItemTypeFolder},
		{
			ID: testFile, ParentID: testDrive, DriveID: testDrive, SiteID: testSite, Name: "readme.txt", Path: "/readme.txt",
			Type: types.ItemTypeFile, Size: 11, MimeType: "text/plain", BlobPath: readmePath,
		},
		{ID: testList, ParentID: testSite, SiteID: testSite, ListID: testList, Name: "Tasks", Path: types.RootPath, Type: types.ItemTypeList},
		{
			ID: "task-1", ParentID: testList, SiteID: testSite, ListID: testList, Name: "Write report", Type: types.ItemTypeListItem,
			Fields: map[string]any{"Title": "Write report", "Status": "Open", "Priority": float64(1)},
		},
		{
			ID: "task-2", ParentID: testList, SiteID: testSite, ListID: testList, Name: "Review", Type: types.ItemTypeListItem,
			Fields: map[string]any{"Title": "Review", "Status": "Done", "Priority": float64(3)},
		},
	}
	for _, item := range seed {
		item.CreatedAt = testNow
		item.LastModified = testNow
		require.NoError(t, items.UpsertItem(ctx, item))
	}

	svc := NewService(items, blobs, Options{Now: func() time.Time { return testNow }})
	return &testEnv{svc: svc, items: items, blobs: blobs}
}

func readAll(t *testing.T, r io.ReadCloser) string {
	t.Helper()
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestSitesAndLists(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	sites, err := env.svc.ListSites(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "Contoso", sites[0].Name)

	drives, err := env.svc.SiteDrives(ctx, testSite)
	require.NoError(t, err)
	require.Len(t, drives, 1)
	assert.Equal(t, testDrive, drives[0].ID)

	lists, err := env.svc.SiteLists(ctx, testSite)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, testList, lists[0].ID)

	_, err = env.svc.GetSite(ctx, testDrive)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = env.svc.SiteDrives(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetItem(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	root, err := env.svc.GetItem(ctx, testDrive, RootAlias)
	require.NoError(t, err)
	assert.Equal(t, testDrive, root.ID)

	file, err := env.svc.GetItem(ctx, testDrive, testFile)
	require.NoError(t, err)
	assert.Equal(t, "readme.txt", file.Name)

	_, err = env.svc.GetItem(ctx, "drive-2", testFile)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = env.svc.GetItem(ctx, testDrive, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListChildren(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	children, err := env.svc.ListChildren(ctx, testDrive, RootAlias)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "docs", children[1].Name)
	assert.Equal(t, "readme.txt", children[0].Name)

	_, err = env.svc.ListChildren(ctx, testDrive, testFile)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCreateFolder(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	folder, err := env.svc.CreateFolder(ctx, testDrive, testFolder, "reports", "")
	require.NoError(t, err)
	assert.Equal(t, "/docs/reports", folder.Path)
	assert.Equal(t, testSite, folder.SiteID)
	assert.Equal(t, testNow, folder.CreatedAt)

	t.Run("fail is the default", func(t *testing.T) {
		_, err := env.svc.CreateFolder(ctx, testDrive, testFolder, "Reports", "")
		assert.ErrorIs(t, err, store.ErrConflict)
	})

	t.Run("rename", func(t *testing.T) {
		renamed, err := env.svc.CreateFolder(ctx, testDrive, testFolder, "reports", types.ConflictRename)
		require.NoError(t, err)
		assert.Equal(t, "reports (1)", renamed.Name)
	})

	t.Run("replace returns the existing folder", func(t *testing.T) {
		existing, err := env.svc.CreateFolder(ctx, testDrive, testFolder, "reports", types.ConflictReplace)
		require.NoError(t, err)
		assert.Equal(t, folder.ID, existing.ID)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := env.svc.CreateFolder(ctx, testDrive, testFolder, "a/b", "")
		assert.ErrorIs(t, err, ErrInvalidRequest)
		_, err = env.svc.CreateFolder(ctx, testDrive, testFolder, "x", "merge")
		assert.ErrorIs(t, err, ErrInvalidRequest)
		_, err = env.svc.CreateFolder(ctx, testDrive, testFile, "x", "")
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestUploadContent(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	item, err := env.svc.UploadContent(ctx, testDrive, testFolder, "notes.md", "", strings.NewReader("# notes"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), item.Size)
	assert.Equal(t, "text/markdown", item.MimeType)
	assert.Len(t, item.Checksum, 64)

	r, got, err := env.svc.OpenContent(ctx, testDrive, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, "# notes", readAll(t, r))

	// replace is the default and keeps the id
	oldBlob := item.BlobPath
	replaced, err := env.svc.UploadContent(ctx, testDrive, testFolder, "NOTES.md", "", strings.NewReader("v2"))
	require.NoError(t, err)
	assert.Equal(t, item.ID, replaced.ID)
	assert.Equal(t, "notes.md", replaced.Name)
	assert.NotEqual(t, oldBlob, replaced.BlobPath)

	exists, err := env.blobs.Exists(ctx, oldBlob)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = env.svc.UploadContent(ctx, testDrive, testFolder, "notes.md", types.ConflictFail, strings.NewReader("v3"))
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = env.svc.UploadContent(ctx, testDrive, testDrive, "docs", types.ConflictReplace, strings.NewReader("x"))
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestOpenContentRejectsFolders(t *testing.T) {
	env := setupService(t)

	_, _, err := env.svc.OpenContent(context.Background(), testDrive, testFolder)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestDeleteItem(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.svc.UploadContent(ctx, testDrive, testFolder, "a.txt", "", strings.NewReader("a"))
	require.NoError(t, err)
	sub, err := env.svc.CreateFolder(ctx, testDrive, testFolder, "sub", "")
	require.NoError(t, err)
	nested, err := env.svc.UploadContent(ctx, testDrive, sub.ID, "b.txt", "", strings.NewReader("b"))
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteItem(ctx, testDrive, testFolder))

	for _, id := range []string{testFolder, sub.ID, nested.ID} {
		_, err := env.items.GetItem(ctx, id)
		assert.ErrorIs(t, err, store.ErrNotFound, id)
	}
	exists, err := env.blobs.Exists(ctx, nested.BlobPath)
	require.NoError(t, err)
	assert.False(t, exists)

	err = env.svc.DeleteItem(ctx, testDrive, RootAlias)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	err = env.svc.DeleteItem(ctx, testDrive, testFolder)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListItems(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	items, err := env.svc.ListItems(ctx, testSite, testList)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	created, err := env.svc.CreateListItem(ctx, testSite, testList, map[string]any{"Title": "Ship", "Status": "Open"})
	require.NoError(t, err)
	assert.Equal(t, "Ship", created.Name)
	assert.Equal(t, testList, created.ListID)

	updated, err := env.svc.UpdateListItemFields(ctx, testSite, testList, created.ID, map[string]any{"Status": "Done", "Title": nil})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Status": "Done"}, updated.Fields)

	got, err := env.svc.GetListItem(ctx, testSite, testList, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Done", got.Fields["Status"])

	require.NoError(t, env.svc.DeleteListItem(ctx, testSite, testList, created.ID))
	_, err = env.svc.GetListItem(ctx, testSite, testList, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = env.svc.GetListItem(ctx, testSite, testList, testFile)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = env.svc.ListItems(ctx, "site-2", testList)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRepresent(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	root, err := env.svc.GetItem(ctx, testDrive, RootAlias)
	require.NoError(t, err)
	r, err := env.svc.Represent(ctx, root)
	require.NoError(t, err)
	require.NotNil(t, r.Folder)
	assert.Equal(t, 2, r.Folder.ChildCount)
	assert.NotNil(t, r.Root)
	assert.Equal(t, "documentLibrary", r.DriveType)

	file, err := env.svc.GetItem(ctx, testDrive, testFile)
	require.NoError(t, err)
	r, err = env.svc.Represent(ctx, file)
	require.NoError(t, err)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "readme.txt", decoded["name"])
	assert.Equal(t, float64(11), decoded["size"])
	assert.Equal(t, map[string]any{"mimeType": "text/plain"}, decoded["file"])
	assert.Equal(t, "/drive/root:", decoded["parentReference"].(map[string]any)["path"])
	assert.NotContains(t, decoded, "folder")
}

func TestQueryApply(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	children, err := env.svc.ListChildren(ctx, testDrive, RootAlias)
	require.NoError(t, err)
	resources, err := env.svc.RepresentAll(ctx, children)
	require.NoError(t, err)

	q, err := ParseQuery(url.Values{"$filter": {"file/mimeType eq 'text/plain'"}})
	require.NoError(t, err)
	got := q.Apply(resources)
	require.Len(t, got, 1)
	assert.Equal(t, testFile, got[0].ID)

	q, err = ParseQuery(url.Values{"$filter": {"folder ne null"}})
	require.NoError(t, err)
	got = q.Apply(resources)
	require.Len(t, got, 1)
	assert.Equal(t, testFolder, got[0].ID)

	tasks, err := env.svc.ListItems(ctx, testSite, testList)
	require.NoError(t, err)
	taskResources, err := env.svc.RepresentAll(ctx, tasks)
	require.NoError(t, err)

	q, err = ParseQuery(url.Values{"$filter": {"fields/Priority ge 2"}})
	require.NoError(t, err)
	got = q.Apply(taskResources)
	require.Len(t, got, 1)
	assert.Equal(t, "task-2", got[0].ID)

	q, err = ParseQuery(url.Values{"$top": {"1"}})
	require.NoError(t, err)
	assert.Len(t, q.Apply(taskResources), 1)

	_, err = ParseQuery(url.Values{"$top": {"0"}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = ParseQuery(url.Values{"$filter": {"name eq"}})
	assert.ErrorIs(t, err, filter.ErrSyntax)
}

func TestStatsAndReset(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	stats, err := env.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Total)
	assert.Equal(t, 2, stats.Counts[types.ItemTypeListItem])

	require.NoError(t, env.svc.Reset(ctx))
	stats, err = env.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)

	exists, err := env.blobs.Exists(ctx, store.BlobPath(testDrive, testFile, "seed"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDriveFS(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.svc.UploadContent(ctx, testDrive, testFolder, "inner.txt", "", strings.NewReader("inner"))
	require.NoError(t, err)

	fsys := NewDriveFS(ctx, env.svc, testDrive)

	data, err := fs.ReadFile(fsys, "readme.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	data, err = fs.ReadFile(fsys, "docs/inner.txt")
	require.NoError(t, err)
	assert.Equal(t, "inner", string(data))

	entries, err := fs.ReadDir(fsys, ".")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "docs", entries[0].Name())
	assert.True(t, entries[0].IsDir())
	assert.Equal(t, "readme.txt", entries[1].Name())

	info, err := fs.Stat(fsys, "readme.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(11), info.Size())
	assert.False(t, info.IsDir())

	var walked []string
	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		walked = append(walked, path)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{".", "docs", "docs/inner.txt", "readme.txt"}, walked)

	_, err = fsys.Open("missing.txt")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	_, err = fsys.Open("/readme.txt")
	assert.ErrorIs(t, err, fs.ErrInvalid)
	_, err = fsys.Open("readme.txt/x")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Project-Sylos/Mirage/internal/store"
	"github.com/Project-Sylos/Mirage/internal/store/memory"
	"github.com/Project-Sylos/Mirage/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDrive  = "drive-1"
	testFolder = "folder-docs"
	testFile   = "file-readme"

	testMaxFileSize = 1 << 16
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	svc    *Service
	items  *memory.ItemStore
	blobs  *memory.BlobStore
	ledger *MemoryLedger
	clock  *fakeClock
}

func setupService(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	items := memory.NewItemStore()
	blobs := memory.NewBlobStore()
	ledger := NewMemoryLedger()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	seed := []*types.Item{
		{ID: testDrive, DriveID: testDrive, Name: "Documents", Path: types.RootPath, Type: types.ItemTypeDrive},
		{ID: testFolder, ParentID: testDrive, DriveID: testDrive, Name: "docs", Path: "/docs", Type: types.ItemTypeFolder},
		{ID: testFile, ParentID: testDrive, DriveID: testDrive, Name: "readme.txt", Path: "/readme.txt", Type: types.ItemTypeFile},
	}
	for _, item := range seed {
		require.NoError(t, items.UpsertItem(ctx, item))
	}

	svc := NewService(items, blobs, ledger, Options{
		SessionTTL:   time.Hour,
		MaxChunkSize: 1024,
		MaxFileSize:  testMaxFileSize,
		Now:          clock.Now,
	})
	return &testEnv{svc: svc, items: items, blobs: blobs, ledger: ledger, clock: clock}
}

func (e *testEnv) create(t *testing.T, name, behavior string) *Status {
	t.Helper()
	status, err := e.svc.Create(context.Background(), CreateRequest{
		DriveID:          testDrive,
		ParentID:         testFolder,
		FileName:         name,
		ConflictBehavior: behavior,
	})
	require.NoError(t, err)
	return status
}

// upload sends content as a single chunk and returns the finished item
func (e *testEnv) upload(t *testing.T, name, behavior string, content []byte) *types.Item {
	t.Helper()
	status := e.create(t, name, behavior)
	res, err := e.svc.ReceiveChunk(context.Background(), status.SessionID,
		fmt.Sprintf("bytes 0-%d/%d", len(content)-1, len(content)), content)
	require.NoError(t, err)
	require.True(t, res.Completed())
	return res.Item
}

func readBlob(t *testing.T, blobs store.BlobStore, path string) []byte {
	t.Helper()
	r, err := blobs.Read(context.Background(), path)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func sha(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestCreate(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	status := env.create(t, "report.xlsx", "")

	assert.NotEmpty(t, status.SessionID)
	assert.Equal(t, []string{"0-"}, status.NextExpectedRanges)
	assert.True(t, status.ExpirationDateTime.Equal(env.clock.Now().Add(time.Hour)))

	session, err := env.svc.Session(ctx, status.SessionID)
	require.NoError(t, err)
	assert.Equal(t, types.ConflictReplace, session.ConflictBehavior)
	assert.Nil(t, session.ExpectedSize)

	exists, err := env.blobs.Exists(ctx, session.TempBlobPath)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateErrors(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateRequest
		wantErr error
	}{
		{
			name:    "invalid name",
			req:     CreateRequest{DriveID: testDrive, ParentID: testFolder, FileName: "a/b"},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "unknown conflict behavior",
			req:     CreateRequest{DriveID: testDrive, ParentID: testFolder, FileName: "a.txt", ConflictBehavior: "merge"},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "missing parent",
			req:     CreateRequest{DriveID: testDrive, ParentID: "nope", FileName: "a.txt"},
			wantErr: store.ErrNotFound,
		},
		{
			name:    "parent in another drive",
			req:     CreateRequest{DriveID: "drive-2", ParentID: testFolder, FileName: "a.txt"},
			wantErr: store.ErrNotFound,
		},
		{
			name:    "parent is a file",
			req:     CreateRequest{DriveID: testDrive, ParentID: testFile, FileName: "a.txt"},
			wantErr: ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupService(t)
			_, err := env.svc.Create(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)

			sessions, err := env.ledger.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, sessions)
		})
	}
}

func TestUploadSingleChunk(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	content := []byte("quarterly numbers")

	status := env.create(t, "report.xlsx", "")
	res, err := env.svc.ReceiveChunk(ctx, status.SessionID, fmt.Sprintf("bytes 0-%d/%d", len(content)-1, len(content)), content)
	require.NoError(t, err)
	require.True(t, res.Completed())

	item := res.Item
	assert.Equal(t, "report.xlsx", item.Name)
	assert.Equal(t, "/docs/report.xlsx", item.Path)
	assert.Equal(t, testFolder, item.ParentID)
	assert.Equal(t, testDrive, item.DriveID)
	assert.Equal(t, int64(len(content)), item.Size)
	assert.Equal(t, sha(content), item.Checksum)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", item.MimeType)
	assert.Equal(t, store.BlobPath(testDrive, item.ID, status.SessionID), item.BlobPath)
	assert.Equal(t, content, readBlob(t, env.blobs, item.BlobPath))

	stored, err := env.items.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Checksum, stored.Checksum)

	_, err = env.svc.Status(ctx, status.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	exists, err := env.blobs.Exists(ctx, tempBlobPath(status.SessionID))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUploadChunksInAnyOrder(t *testing.T) {
	content := []byte("abcdefghijklmnopqrstuvwxyz0123")
	chunks := []ByteRange{{0, 9}, {10, 19}, {20, 29}}
	perms := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	for _, perm := range perms {
		t.Run(fmt.Sprint(perm), func(t *testing.T) {
			env := setupService(t)
			ctx := context.Background()
			status := env.create(t, "alphabet.txt", "")

			completions := 0
			var item *types.Item
			for i, idx := range perm {
				r := chunks[idx]
				res, err := env.svc.ReceiveChunk(ctx, status.SessionID,
					fmt.Sprintf("bytes %s/%d", r, len(content)), content[r.Start:r.End+1])
				require.NoError(t, err)

				if res.Completed() {
					completions++
					item = res.Item
					continue
				}
				assert.Less(t, i, len(perm)-1, "only the last chunk completes")
				assert.NotEmpty(t, res.Status.NextExpectedRanges)
			}

			require.Equal(t, 1, completions)
			assert.Equal(t, content, readBlob(t, env.blobs, item.BlobPath))
			assert.Equal(t, sha(content), item.Checksum)
		})
	}
}

func TestUploadUnknownSizeThenKnown(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	status := env.create(t, "stream.bin", "")

	res, err := env.svc.ReceiveChunk(ctx, status.SessionID, "bytes 0-4/*", []byte("01234"))
	require.NoError(t, err)
	require.False(t, res.Completed())
	assert.Equal(t, []string{"5-"}, res.Status.NextExpectedRanges)

	res, err = env.svc.ReceiveChunk(ctx, status.SessionID, "bytes 10-14/*", []byte("abcde"))
	require.NoError(t, err)
	assert.Equal(t, []string{"5-9", "15-"}, res.Status.NextExpectedRanges)

	// Announcing a total smaller than what already arrived is rejected
	_, err = env.svc.ReceiveChunk(ctx, status.SessionID, "bytes 5-9/12", []byte("56789"))
	assert.ErrorIs(t, err, ErrInvalidRange)

	res, err = env.svc.ReceiveChunk(ctx, status.SessionID, "bytes 5-9/15", []byte("56789"))
	require.NoError(t, err)
	require.True(t, res.Completed())
	assert.Equal(t, []byte("0123456789abcde"), readBlob(t, env.blobs, res.Item.BlobPath))
}

func TestReceiveChunkIsIdempotent(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	status := env.create(t, "notes.txt", "")

	first, err := env.svc.ReceiveChunk(ctx, status.SessionID, "bytes 0-4/10", []byte("hello"))
	require.NoError(t, err)
	again, err := env.svc.ReceiveChunk(ctx, status.SessionID, "bytes 0-4/10", []byte("hello"))
	require.NoError(t, err)

	assert.Equal(t, first.Status.NextExpectedRanges, again.Status.NextExpectedRanges)
	assert.Equal(t, []string{"5-9"}, again.Status.NextExpectedRanges)

	session, err := env.svc.Session(ctx, status.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []ByteRange{{0, 4}}, session.Chunks)
	assert.Equal(t, int64(5), session.Uploaded())
}

func TestReceiveChunkErrors(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		data    []byte
		wantErr error
	}{
		{name: "malformed header", header: "bytes=0-4", data: []byte("hello"), wantErr: ErrInvalidRange},
		{name: "length mismatch", header: "bytes 0-9/10", data: []byte("hello"), wantErr: ErrLengthMismatch},
		{name: "chunk too large", header: "bytes 0-2047/4096", data: make([]byte, 2048), wantErr: ErrChunkTooLarge},
		{name: "total disagrees", header: "bytes 5-9/20", data: []byte("world"), wantErr: ErrInvalidRange},
		{name: "past learned size", header: "bytes 8-12/*", data: []byte("xxxxx"), wantErr: ErrRangeNotSatisfiable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupService(t)
			ctx := context.Background()
			status := env.create(t, "notes.txt", "")

			_, err := env.svc.ReceiveChunk(ctx, status.SessionID, "bytes 0-4/10", []byte("hello"))
			require.NoError(t, err)

			_, err = env.svc.ReceiveChunk(ctx, status.SessionID, tt.header, tt.data)
			assert.ErrorIs(t, err, tt.wantErr)

			// The session is untouched by a rejected chunk
			st, err := env.svc.Status(ctx, status.SessionID)
			require.NoError(t, err)
			assert.Equal(t, []string{"5-9"}, st.NextExpectedRanges)
		})
	}
}

func TestReceiveChunkBeyondFileLimit(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "first byte past limit", header: fmt.Sprintf("bytes %d-%d/*", testMaxFileSize, testMaxFileSize)},
		{name: "64 GiB offset", header: "bytes 68719476736-68719476736/*"},
		{name: "huge offset", header: "bytes 1152921504606846976-1152921504606846976/*"},
		{name: "max int64 offset", header: "bytes 9223372036854775807-9223372036854775807/*"},
		{name: "declared total past limit", header: fmt.Sprintf("bytes 0-0/%d", testMaxFileSize+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupService(t)
			ctx := context.Background()
			status := env.create(t, "huge.bin", "")

			_, err := env.svc.ReceiveChunk(ctx, status.SessionID, tt.header, []byte("x"))
			assert.ErrorIs(t, err, ErrRangeNotSatisfiable)

			st, err := env.svc.Status(ctx, status.SessionID)
			require.NoError(t, err)
			assert.Equal(t, []string{"0-"}, st.NextExpectedRanges)
			assert.Empty(t, readBlob(t, env.blobs, tempBlobPath(status.SessionID)))
		})
	}
}

func TestReceiveChunkUnknownSession(t *testing.T) {
	env := setupService(t)
	_, err := env.svc.ReceiveChunk(context.Background(), "missing", "bytes 0-0/1", []byte("x"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestExpiredSession(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	status := env.create(t, "late.txt", "")

	_, err := env.svc.ReceiveChunk(ctx, status.SessionID, "bytes 0-1/4", []byte("ab"))
	require.NoError(t, err)

	env.clock.Advance(time.Hour)

	_, err = env.svc.ReceiveChunk(ctx, status.SessionID, "bytes 2-3/4", []byte("cd"))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	exists, err := env.blobs.Exists(ctx, tempBlobPath(status.SessionID))
	require.NoError(t, err)
	assert.False(t, exists)

	children, err := env.items.GetChildren(ctx, testFolder)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestSweep(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	old := env.create(t, "old.txt", "")
	env.clock.Advance(30 * time.Minute)
	fresh := env.create(t, "fresh.txt", "")
	env.clock.Advance(40 * time.Minute)

	removed, err := env.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = env.ledger.Get(ctx, old.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = env.svc.Status(ctx, fresh.SessionID)
	assert.NoError(t, err)

	removed, err = env.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestCancel(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	status := env.create(t, "draft.txt", "")

	require.NoError(t, env.svc.Cancel(ctx, status.SessionID))

	_, err := env.svc.Status(ctx, status.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, env.svc.Cancel(ctx, status.SessionID), ErrSessionNotFound)

	exists, err := env.blobs.Exists(ctx, tempBlobPath(status.SessionID))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestConflictBehavior(t *testing.T) {
	t.Run("fail keeps the session", func(t *testing.T) {
		env := setupService(t)
		ctx := context.Background()
		env.upload(t, "report.xlsx", "", []byte("v1"))

		status := env.create(t, "Report.xlsx", types.ConflictFail)
		_, err := env.svc.ReceiveChunk(ctx, status.SessionID, "bytes 0-1/2", []byte("v2"))
		assert.ErrorIs(t, err, ErrNameConflict)

		session, err := env.svc.Session(ctx, status.SessionID)
		require.NoError(t, err)
		assert.Equal(t, []ByteRange{{0, 1}}, session.Chunks)
	})

	t.Run("rename", func(t *testing.T) {
		env := setupService(t)
		first := env.upload(t, "report.xlsx", "", []byte("v1"))
		second := env.upload(t, "report.xlsx", types.ConflictRename, []byte("v2"))
		third := env.upload(t, "report.xlsx", types.ConflictRename, []byte("v3"))

		assert.Equal(t, "report.xlsx", first.Name)
		assert.Equal(t, "report (1).xlsx", second.Name)
		assert.Equal(t, "report (2).xlsx", third.Name)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("replace", func(t *testing.T) {
		env := setupService(t)
		ctx := context.Background()
		first := env.upload(t, "report.xlsx", "", []byte("v1"))

		env.clock.Advance(time.Minute)
		second := env.upload(t, "report.xlsx", types.ConflictReplace, []byte("version two"))

		assert.Equal(t, first.ID, second.ID)
		assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
		assert.True(t, second.LastModified.After(first.LastModified))
		assert.Equal(t, []byte("version two"), readBlob(t, env.blobs, second.BlobPath))

		exists, err := env.blobs.Exists(ctx, first.BlobPath)
		require.NoError(t, err)
		assert.False(t, exists)

		children, err := env.items.GetChildren(ctx, testFolder)
		require.NoError(t, err)
		assert.Len(t, children, 1)
	})
}

// flakyLedger fails Delete while failDelete is set
type flakyLedger struct {
	*MemoryLedger
	failDelete bool
}

func (l *flakyLedger) Delete(ctx context.Context, id string) error {
	if l.failDelete {
		return errors.New("ledger unavailable")
	}
	return l.MemoryLedger.Delete(ctx, id)
}

func TestCompletionLedgerFailureKeepsSessionPending(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	ledger := &flakyLedger{MemoryLedger: env.ledger, failDelete: true}
	env.svc = NewService(env.items, env.blobs, ledger, Options{SessionTTL: time.Hour, MaxChunkSize: 1024, Now: env.clock.Now})

	status := env.create(t, "ledger.txt", "")
	_, err := env.svc.ReceiveChunk(ctx, status.SessionID, "bytes 0-4/10", []byte("hello"))
	require.NoError(t, err)

	_, err = env.svc.ReceiveChunk(ctx, status.SessionID, "bytes 5-9/10", []byte("world"))
	require.Error(t, err)

	// No item, and the session still answers with its temp blob intact
	children, err := env.items.GetChildren(ctx, testFolder)
	require.NoError(t, err)
	assert.Empty(t, children)
	_, err = env.svc.Status(ctx, status.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []byte("helloworld"), readBlob(t, env.blobs, tempBlobPath(status.SessionID)))

	ledger.failDelete = false
	res, err := env.svc.ReceiveChunk(ctx, status.SessionID, "bytes 5-9/10", []byte("world"))
	require.NoError(t, err)
	require.True(t, res.Completed())

	children, err = env.items.GetChildren(ctx, testFolder)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, []byte("helloworld"), readBlob(t, env.blobs, children[0].BlobPath))

	_, err = env.svc.Status(ctx, status.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestConcurrentChunksCompleteOnce(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	content := make([]byte, 100)
	for i := range content {
		content[i] = byte('a' + i%26)
	}
	status := env.create(t, "parallel.txt", "")

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		completions int
	)
	for start := 0; start < len(content); start += 10 {
		wg.Add(1)
		go func(start int) {
			defer wg.Done()
			res, err := env.svc.ReceiveChunk(ctx, status.SessionID,
				fmt.Sprintf("bytes %d-%d/%d", start, start+9, len(content)), content[start:start+10])
			assert.NoError(t, err)
			if err == nil && res.Completed() {
				mu.Lock()
				completions++
				mu.Unlock()
			}
		}(start)
	}
	wg.Wait()

	assert.Equal(t, 1, completions)
	children, err := env.items.GetChildren(ctx, testFolder)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, content, readBlob(t, env.blobs, children[0].BlobPath))
}

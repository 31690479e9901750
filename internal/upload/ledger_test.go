package upload

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgers(t *testing.T) {
	tests := []struct {
		name      string
		newLedger func(t *testing.T) Ledger
	}{
		{
			name:      "memory",
			newLedger: func(t *testing.T) Ledger { return NewMemoryLedger() },
		},
		{
			name: "badger in-memory",
			newLedger: func(t *testing.T) Ledger {
				l, err := NewBadgerLedger("")
				require.NoError(t, err)
				return l
			},
		},
		{
			name: "badger on disk",
			newLedger: func(t *testing.T) Ledger {
				l, err := NewBadgerLedger(t.TempDir())
				require.NoError(t, err)
				return l
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := tt.newLedger(t)
			defer ledger.Close()
			testLedger(t, ledger)
		})
	}
}

func testLedger(t *testing.T, ledger Ledger) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := ledger.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	later := &Session{ID: "b", FileName: "b.txt", CreatedAt: base.Add(time.Minute), Expiration: base.Add(time.Hour)}
	earlier := &Session{
		ID:           "a",
		DriveID:      "drive-1",
		ParentID:     "folder-1",
		FileName:     "a.txt",
		ExpectedSize: int64Ptr(300),
		TempBlobPath: tempBlobPath("a"),
		Chunks:       []ByteRange{{0, 99}, {200, 299}},
		CreatedAt:    base,
		Expiration:   base.Add(time.Hour),
	}
	require.NoError(t, ledger.Put(ctx, later))
	require.NoError(t, ledger.Put(ctx, earlier))

	got, err := ledger.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.FileName)
	assert.Equal(t, int64(300), *got.ExpectedSize)
	assert.Equal(t, earlier.Chunks, got.Chunks)
	assert.True(t, got.Expiration.Equal(earlier.Expiration))

	// The ledger does not share state with callers
	got.Chunks = append(got.Chunks, ByteRange{100, 199})
	again, err := ledger.Get(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, again.Chunks, 2)

	all, err := ledger.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)

	require.NoError(t, ledger.Delete(ctx, "a"))
	require.NoError(t, ledger.Delete(ctx, "a"))
	_, err = ledger.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestBadgerLedgerSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ledger, err := NewBadgerLedger(dir)
	require.NoError(t, err)
	require.NoError(t, ledger.Put(ctx, &Session{ID: "persisted", FileName: "big.iso", Chunks: []ByteRange{{0, 9}}}))
	require.NoError(t, ledger.Close())

	ledger, err = NewBadgerLedger(dir)
	require.NoError(t, err)
	defer ledger.Close()

	got, err := ledger.Get(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, "big.iso", got.FileName)
	assert.Equal(t, []ByteRange{{0, 9}}, got.Chunks)
}

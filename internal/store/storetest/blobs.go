package storetest

import (
	"bytes"
	"context"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/Project-Sylos/Mirage/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// BlobStoreSuite exercises the store.BlobStore contract. NewStore must
// return an empty store.
type BlobStoreSuite struct {
	NewStore func(t *testing.T) store.BlobStore
}

func (s *BlobStoreSuite) Run(t *testing.T) {
	t.Run("WriteRead", s.testWriteRead)
	t.Run("ReadMissing", s.testReadMissing)
	t.Run("WriteAtOutOfOrder", s.testWriteAtOutOfOrder)
	t.Run("WriteAtOverwrite", s.testWriteAtOverwrite)
	t.Run("WriteAtInvalidOffset", s.testWriteAtInvalidOffset)
	t.Run("Move", s.testMove)
	t.Run("DeleteIdempotent", s.testDeleteIdempotent)
}

func (s *BlobStoreSuite) open(t *testing.T) store.BlobStore {
	st := s.NewStore(t)
	t.Cleanup(func() { st.Close() })
	return st
}

func readAll(t *testing.T, st store.BlobStore, path string) []byte {
	t.Helper()
	r, err := st.Read(context.Background(), path)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func (s *BlobStoreSuite) testWriteRead(t *testing.T) {
	st := s.open(t)
	ctx := context.Background()

	n, err := st.Write(ctx, "drive-1/docs/a.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, []byte("hello"), readAll(t, st, "drive-1/docs/a.txt"))

	ok, err := st.Exists(ctx, "drive-1/docs/a.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func (s *BlobStoreSuite) testReadMissing(t *testing.T) {
	st := s.open(t)
	_, err := st.Read(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	ok, err := st.Exists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func (s *BlobStoreSuite) testWriteAtOutOfOrder(t *testing.T) {
	st := s.open(t)
	ctx := context.Background()

	require.NoError(t, st.WriteAt(ctx, ".uploads/s1", []byte("world"), 5))
	require.NoError(t, st.WriteAt(ctx, ".uploads/s1", []byte("hello"), 0))
	assert.Equal(t, []byte("helloworld"), readAll(t, st, ".uploads/s1"))
}

func (s *BlobStoreSuite) testWriteAtOverwrite(t *testing.T) {
	st := s.open(t)
	ctx := context.Background()

	require.NoError(t, st.WriteAt(ctx, "f", []byte("aaaaaa"), 0))
	require.NoError(t, st.WriteAt(ctx, "f", []byte("bb"), 2))
	require.NoError(t, st.WriteAt(ctx, "f", []byte("c"), 8))
	assert.Equal(t, []byte("aabbaa\x00\x00c"), readAll(t, st, "f"))
}

func (s *BlobStoreSuite) testWriteAtInvalidOffset(t *testing.T) {
	st := s.open(t)
	ctx := context.Background()

	for _, offset := range []int64{-1, math.MaxInt64} {
		err := st.WriteAt(ctx, "f", []byte("x"), offset)
		assert.ErrorIs(t, err, store.ErrInvalidOffset, "offset %d", offset)
	}
	ok, err := st.Exists(ctx, "f")
	require.NoError(t, err)
	assert.False(t, ok)
}

func (s *BlobStoreSuite) testMove(t *testing.T) {
	st := s.open(t)
	ctx := context.Background()

	_, err := st.Write(ctx, ".uploads/s1", bytes.NewReader([]byte("content")))
	require.NoError(t, err)
	_, err = st.Write(ctx, "drive-1/report.xlsx", strings.NewReader("old"))
	require.NoError(t, err)

	require.NoError(t, st.Move(ctx, ".uploads/s1", "drive-1/report.xlsx"))
	assert.Equal(t, []byte("content"), readAll(t, st, "drive-1/report.xlsx"))

	ok, err := st.Exists(ctx, ".uploads/s1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, st.Move(ctx, "nope", "x"), store.ErrNotFound)
}

func (s *BlobStoreSuite) testDeleteIdempotent(t *testing.T) {
	st := s.open(t)
	ctx := context.Background()

	_, err := st.Write(ctx, "a", strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, st.Delete(ctx, "a"))
	require.NoError(t, st.Delete(ctx, "a"))

	ok, err := st.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

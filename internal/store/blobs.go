package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"path"
)

// BlobPath is the blob location for one version of a file item. Each write
// gets a fresh version so a failed promotion never clobbers live content.
func BlobPath(driveID, itemID, version string) string {
	return path.Join("drives", driveID, itemID, version)
}

// CheckWriteRange validates a WriteAt of n bytes at offset
func CheckWriteRange(offset int64, n int) error {
	if offset < 0 || int64(n) > math.MaxInt64-offset {
		return fmt.Errorf("%w: %d bytes at %d", ErrInvalidOffset, n, offset)
	}
	return nil
}

// Checksum streams a blob and returns its sha256 hex digest and size
func Checksum(ctx context.Context, blobs BlobStore, blobPath string) (string, int64, error) {
	r, err := blobs.Read(ctx, blobPath)
	if err != nil {
		return "", 0, err
	}
	defer r.Close()

	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash blob %s: %w", blobPath, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Package blob provides the filesystem and S3 Blob Store backends and the
// factory that picks one from configuration.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Project-Sylos/Mirage/internal/store"
)

// FSStore keeps blobs as regular files under a root directory. Logical paths
// map one to one onto the directory tree.
type FSStore struct {
	root string
}

var _ store.BlobStore = (*FSStore)(nil)

// NewFSStore creates the root directory if needed
func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, errors.New("filesystem blob store: root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve blob root %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root %s: %w", abs, err)
	}
	return &FSStore{root: abs}, nil
}

// Root returns the absolute root directory
func (s *FSStore) Root() string {
	return s.root
}

// filePath maps a logical path onto the root, rejecting escapes
func (s *FSStore) filePath(p string) (string, error) {
	clean := path.Clean("/" + p)
	if clean == "/" || strings.Contains(p, "\x00") {
		return "", fmt.Errorf("invalid blob path %q", p)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean[1:])), nil
}

func notFound(p string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blob %s: %w", p, store.ErrNotFound)
	}
	return err
}

func (s *FSStore) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fp, err := s.filePath(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fp)
	if err != nil {
		return nil, notFound(p, err)
	}
	return f, nil
}

// Write streams r into a temp file next to the target and renames it into
// place, so readers never see a partial blob
func (s *FSStore) Write(ctx context.Context, p string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fp, err := s.filePath(p)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fp), ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write blob %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close blob %s: %w", p, err)
	}
	if err := os.Rename(tmp.Name(), fp); err != nil {
		return 0, fmt.Errorf("failed to commit blob %s: %w", p, err)
	}
	return n, nil
}

func (s *FSStore) WriteAt(ctx context.Context, p string, data []byte, offset int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.CheckWriteRange(offset, len(data)); err != nil {
		return err
	}
	fp, err := s.filePath(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}

	f, err := os.OpenFile(fp, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open blob %s: %w", p, err)
	}
	defer func() { _ = f.Close() }()

	// Writing past EOF leaves a zero-filled hole
	if _, err := f.WriteAt(data, offset); err != nil {
		return fmt.Errorf("failed to write blob %s at %d: %w", p, offset, err)
	}
	return f.Close()
}

func (s *FSStore) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fp, err := s.filePath(p)
	if err != nil {
		return err
	}
	if err := os.Remove(fp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob %s: %w", p, err)
	}
	return nil
}

func (s *FSStore) Move(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	from, err := s.filePath(src)
	if err != nil {
		return err
	}
	to, err := s.filePath(dst)
	if err != nil {
		return err
	}

	if _, err := os.Stat(from); err != nil {
		return notFound(src, err)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("failed to move blob %s to %s: %w", src, dst, err)
	}
	return nil
}

func (s *FSStore) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fp, err := s.filePath(p)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(fp)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// Reset empties the root directory
func (s *FSStore) Reset(ctx context.Context) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("failed to list blob root: %w", err)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
	}
	return nil
}

func (s *FSStore) Close() error {
	return nil
}

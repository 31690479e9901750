package graph

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/Project-Sylos/Mirage/internal/store"
	"github.com/Project-Sylos/Mirage/internal/types"
)

// DriveFS is a read-only fs.FS view of one drive. Paths are drive-relative
// without a leading slash; "." is the drive root.
type DriveFS struct {
	svc     *Service
	driveID string
	ctx     context.Context
}

var (
	_ fs.ReadDirFS = (*DriveFS)(nil)
	_ fs.StatFS    = (*DriveFS)(nil)
)

// NewDriveFS binds an fs.FS to driveID. ctx bounds every store call.
func NewDriveFS(ctx context.Context, svc *Service, driveID string) *DriveFS {
	return &DriveFS{svc: svc, driveID: driveID, ctx: ctx}
}

// resolve walks name from the drive root one component at a time
func (d *DriveFS) resolve(op, name string) (*types.Item, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}

	item, err := d.svc.GetDrive(d.ctx, d.driveID)
	if err != nil {
		return nil, &fs.PathError{Op: op, Path: name, Err: mapFSError(err)}
	}
	if name == "." {
		return item, nil
	}

	for _, part := range strings.Split(name, "/") {
		if !item.IsContainer() {
			return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
		}
		children, err := d.svc.items.GetChildren(d.ctx, item.ID)
		if err != nil {
			return nil, &fs.PathError{Op: op, Path: name, Err: err}
		}
		var next *types.Item
		for _, c := range children {
			if c.Name == part {
				next = c
				break
			}
		}
		if next == nil {
			return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
		}
		item = next
	}
	return item, nil
}

func mapFSError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fs.ErrNotExist
	}
	return err
}

// Open opens a file or directory. File content is read lazily from the
// Blob Store.
func (d *DriveFS) Open(name string) (fs.File, error) {
	item, err := d.resolve("open", name)
	if err != nil {
		return nil, err
	}

	if item.IsContainer() {
		entries, err := d.readDir(item)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return &driveDir{item: item, entries: entries}, nil
	}

	return &driveFile{item: item, open: func() (io.ReadCloser, error) {
		return d.svc.blobs.Read(d.ctx, item.BlobPath)
	}}, nil
}

// ReadDir lists a directory sorted by name
func (d *DriveFS) ReadDir(name string) ([]fs.DirEntry, error) {
	item, err := d.resolve("readdir", name)
	if err != nil {
		return nil, err
	}
	if !item.IsContainer() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: errors.New("not a directory")}
	}
	entries, err := d.readDir(item)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return entries, nil
}

func (d *DriveFS) Stat(name string) (fs.FileInfo, error) {
	item, err := d.resolve("stat", name)
	if err != nil {
		return nil, err
	}
	return itemInfo{item: item}, nil
}

func (d *DriveFS) readDir(item *types.Item) ([]fs.DirEntry, error) {
	children, err := d.svc.items.GetChildren(d.ctx, item.ID)
	if err != nil {
		return nil, err
	}
	entries := make([]fs.DirEntry, 0, len(children))
	for _, c := range children {
		entries = append(entries, itemInfo{item: c})
	}
	return entries, nil
}

// itemInfo implements both fs.FileInfo and fs.DirEntry
type itemInfo struct {
	item *types.Item
}

func (fi itemInfo) Name() string {
	if fi.item.Type == types.ItemTypeDrive {
		return "."
	}
	return fi.item.Name
}

func (fi itemInfo) Size() int64 {
	if fi.item.IsContainer() {
		return 0
	}
	return fi.item.Size
}

func (fi itemInfo) Mode() fs.FileMode {
	if fi.item.IsContainer() {
		return fs.ModeDir | 0555
	}
	return 0444
}

func (fi itemInfo) ModTime() time.Time { return fi.item.LastModified }
func (fi itemInfo) IsDir() bool        { return fi.item.IsContainer() }
func (fi itemInfo) Sys() any           { return fi.item }

func (fi itemInfo) Type() fs.FileMode          { return fi.Mode().Type() }
func (fi itemInfo) Info() (fs.FileInfo, error) { return fi, nil }

// driveFile opens its blob on the first Read
type driveFile struct {
	item *types.Item
	open func() (io.ReadCloser, error)
	r    io.ReadCloser
}

func (f *driveFile) Stat() (fs.FileInfo, error) {
	return itemInfo{item: f.item}, nil
}

func (f *driveFile) Read(b []byte) (int, error) {
	if f.r == nil {
		if f.open == nil {
			return 0, fs.ErrClosed
		}
		r, err := f.open()
		if err != nil {
			return 0, err
		}
		f.r = r
	}
	return f.r.Read(b)
}

func (f *driveFile) Close() error {
	f.open = nil
	if f.r == nil {
		return nil
	}
	err := f.r.Close()
	f.r = nil
	return err
}

// driveDir implements fs.ReadDirFile over a snapshot of the children
type driveDir struct {
	item    *types.Item
	entries []fs.DirEntry
	offset  int
}

func (d *driveDir) Stat() (fs.FileInfo, error) {
	return itemInfo{item: d.item}, nil
}

func (d *driveDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.item.Path, Err: errors.New("is a directory")}
}

// ReadDir returns up to n entries in directory order. n <= 0 returns the
// rest with a nil error.
func (d *driveDir) ReadDir(n int) ([]fs.DirEntry, error) {
	remaining := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return append([]fs.DirEntry(nil), remaining...), nil
	}
	if len(remaining) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(remaining))
	d.offset += n
	return append([]fs.DirEntry(nil), remaining[:n]...), nil
}

func (d *driveDir) Close() error {
	return nil
}

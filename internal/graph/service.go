// Package graph implements the sites, drives, items and lists surface over
// the Item Store and Blob Store, plus a read-only fs.FS view of a drive.
package graph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"time"

	"github.com/Project-Sylos/Mirage/internal/logger"
	"github.com/Project-Sylos/Mirage/internal/store"
	"github.com/Project-Sylos/Mirage/internal/types"
	"github.com/Project-Sylos/Mirage/internal/utils"
	"github.com/google/uuid"
)

// ErrInvalidRequest is returned for well-formed calls that cannot apply,
// such as uploading into a file or deleting a drive root
var ErrInvalidRequest = errors.New("invalid request")

// RootAlias addresses a drive's root folder in item routes
const RootAlias = "root"

// Options configures a Service
type Options struct {
	// NameLocks serializes name decisions per parent; share it with the
	// upload service
	NameLocks *store.KeyedMutex
	Now       func() time.Time
}

// Service is the item tree API used by the HTTP handlers and the SDK
type Service struct {
	items store.ItemStore
	blobs store.BlobStore
	opts  Options
}

func NewService(items store.ItemStore, blobs store.BlobStore, opts Options) *Service {
	if opts.NameLocks == nil {
		opts.NameLocks = &store.KeyedMutex{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{items: items, blobs: blobs, opts: opts}
}

// getTyped loads id and checks its type
func (s *Service) getTyped(ctx context.Context, id, itemType string) (*types.Item, error) {
	item, err := s.items.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Type != itemType {
		return nil, fmt.Errorf("%s %s: %w", itemType, id, store.ErrNotFound)
	}
	return item, nil
}

func (s *Service) childrenOfType(ctx context.Context, parentID, itemType string) ([]*types.Item, error) {
	children, err := s.items.GetChildren(ctx, parentID)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Item, 0, len(children))
	for _, c := range children {
		if c.Type == itemType {
			out = append(out, c)
		}
	}
	return out, nil
}

// Represent renders item, counting children for containers
func (s *Service) Represent(ctx context.Context, item *types.Item) (*Resource, error) {
	count := 0
	if item.IsContainer() {
		children, err := s.items.GetChildren(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		count = len(children)
	}
	return Represent(item, count), nil
}

// RepresentAll renders items in order
func (s *Service) RepresentAll(ctx context.Context, items []*types.Item) ([]*Resource, error) {
	out := make([]*Resource, 0, len(items))
	for _, item := range items {
		r, err := s.Represent(ctx, item)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ============================================================================
// Sites, drives and lists
// ============================================================================

func (s *Service) ListSites(ctx context.Context) ([]*types.Item, error) {
	return s.items.GetItemsByType(ctx, types.ItemTypeSite)
}

func (s *Service) GetSite(ctx context.Context, siteID string) (*types.Item, error) {
	return s.getTyped(ctx, siteID, types.ItemTypeSite)
}

// SiteDrives lists the document libraries of a site
func (s *Service) SiteDrives(ctx context.Context, siteID string) ([]*types.Item, error) {
	if _, err := s.GetSite(ctx, siteID); err != nil {
		return nil, err
	}
	return s.childrenOfType(ctx, siteID, types.ItemTypeDrive)
}

func (s *Service) SiteLists(ctx context.Context, siteID string) ([]*types.Item, error) {
	if _, err := s.GetSite(ctx, siteID); err != nil {
		return nil, err
	}
	return s.childrenOfType(ctx, siteID, types.ItemTypeList)
}

func (s *Service) GetDrive(ctx context.Context, driveID string) (*types.Item, error) {
	return s.getTyped(ctx, driveID, types.ItemTypeDrive)
}

// ============================================================================
// Drive items
// ============================================================================

// GetItem resolves itemID inside driveID. "root" names the drive itself.
func (s *Service) GetItem(ctx context.Context, driveID, itemID string) (*types.Item, error) {
	if itemID == RootAlias || itemID == "" {
		itemID = driveID
	}
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.DriveID != driveID {
		return nil, fmt.Errorf("item %s in drive %s: %w", itemID, driveID, store.ErrNotFound)
	}
	return item, nil
}

// ListChildren returns the children of a folder or drive root
func (s *Service) ListChildren(ctx context.Context, driveID, itemID string) ([]*types.Item, error) {
	parent, err := s.GetItem(ctx, driveID, itemID)
	if err != nil {
		return nil, err
	}
	if !parent.IsContainer() {
		return nil, fmt.Errorf("%w: %s is not a folder", ErrInvalidRequest, parent.Name)
	}
	return s.items.GetChildren(ctx, parent.ID)
}

// container loads a parent that can hold new children
func (s *Service) container(ctx context.Context, driveID, parentID string) (*types.Item, error) {
	parent, err := s.GetItem(ctx, driveID, parentID)
	if err != nil {
		return nil, err
	}
	if !parent.IsContainer() {
		return nil, fmt.Errorf("%w: %s is not a folder", ErrInvalidRequest, parent.Name)
	}
	return parent, nil
}

// CreateFolder adds a folder under parentID. The default behavior is fail.
// Replacing an existing folder returns it unchanged.
func (s *Service) CreateFolder(ctx context.Context, driveID, parentID, name, behavior string) (*types.Item, error) {
	if err := utils.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if behavior == "" {
		behavior = types.ConflictFail
	}
	if !types.ValidConflictBehavior(behavior) {
		return nil, fmt.Errorf("%w: unknown conflict behavior %q", ErrInvalidRequest, behavior)
	}

	parent, err := s.container(ctx, driveID, parentID)
	if err != nil {
		return nil, err
	}

	unlock := s.opts.NameLocks.Lock(parent.ID)
	defer unlock()

	resolved, existing, err := store.ResolveName(ctx, s.items, parent.ID, name, behavior, types.ItemTypeFolder)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.opts.Now()
	folder := &types.Item{
		ID:           uuid.New().String(),
		ParentID:     parent.ID,
		DriveID:      parent.DriveID,
		SiteID:       parent.SiteID,
		Name:         resolved,
		Path:         utils.JoinPath(parent.Path, resolved),
		Type:         types.ItemTypeFolder,
		CreatedAt:    now,
		LastModified: now,
	}
	if err := s.items.UpsertItem(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to create folder %s: %w", folder.Path, err)
	}

	logger.Info("folder created: drive=%s id=%s path=%s", driveID, folder.ID, folder.Path)
	return folder, nil
}

// UploadContent stores r as fileName under parentID in one request. The
// default behavior is replace.
func (s *Service) UploadContent(ctx context.Context, driveID, parentID, fileName, behavior string, r io.Reader) (*types.Item, error) {
	if err := utils.ValidateName(fileName); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if behavior == "" {
		behavior = types.ConflictReplace
	}
	if !types.ValidConflictBehavior(behavior) {
		return nil, fmt.Errorf("%w: unknown conflict behavior %q", ErrInvalidRequest, behavior)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload body: %w", err)
	}

	parent, err := s.container(ctx, driveID, parentID)
	if err != nil {
		return nil, err
	}

	unlock := s.opts.NameLocks.Lock(parent.ID)
	defer unlock()

	name, existing, err := store.ResolveName(ctx, s.items, parent.ID, fileName, behavior, types.ItemTypeFile)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	item := &types.Item{
		ID:           uuid.New().String(),
		ParentID:     parent.ID,
		DriveID:      parent.DriveID,
		SiteID:       parent.SiteID,
		Name:         name,
		Path:         utils.JoinPath(parent.Path, name),
		Type:         types.ItemTypeFile,
		Size:         int64(len(data)),
		MimeType:     utils.DetectMimeType(name, bytes.NewReader(data)),
		CreatedAt:    now,
		LastModified: now,
	}
	if existing != nil {
		item.ID = existing.ID
		item.CreatedAt = existing.CreatedAt
		item.Fields = existing.Fields
	}
	item.BlobPath = store.BlobPath(item.DriveID, item.ID, uuid.New().String())

	if _, err := s.blobs.Write(ctx, item.BlobPath, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to store content for %s: %w", item.Path, err)
	}
	item.Checksum, _, err = store.Checksum(ctx, s.blobs, item.BlobPath)
	if err != nil {
		s.blobs.Delete(ctx, item.BlobPath)
		return nil, err
	}

	if err := s.items.UpsertItem(ctx, item); err != nil {
		s.blobs.Delete(ctx, item.BlobPath)
		return nil, fmt.Errorf("failed to save item %s: %w", item.Path, err)
	}
	if existing != nil && existing.BlobPath != "" {
		if err := s.blobs.Delete(ctx, existing.BlobPath); err != nil {
			logger.Warn("failed to delete replaced blob: path=%s err=%v", existing.BlobPath, err)
		}
	}

	logger.Info("file uploaded: drive=%s id=%s path=%s size=%d", driveID, item.ID, item.Path, item.Size)
	return item, nil
}

// OpenContent returns a reader over a file's bytes. The caller closes it.
func (s *Service) OpenContent(ctx context.Context, driveID, itemID string) (io.ReadCloser, *types.Item, error) {
	item, err := s.GetItem(ctx, driveID, itemID)
	if err != nil {
		return nil, nil, err
	}
	if item.Type != types.ItemTypeFile {
		return nil, nil, fmt.Errorf("%w: %s is not a file", ErrInvalidRequest, item.Name)
	}
	r, err := s.blobs.Read(ctx, item.BlobPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read content of %s: %w", item.Path, err)
	}
	return r, item, nil
}

// DeleteItem removes an item and everything below it, blobs included.
// Drive roots cannot be deleted.
func (s *Service) DeleteItem(ctx context.Context, driveID, itemID string) error {
	item, err := s.GetItem(ctx, driveID, itemID)
	if err != nil {
		return err
	}
	if item.Type == types.ItemTypeDrive {
		return fmt.Errorf("%w: the drive root cannot be deleted", ErrInvalidRequest)
	}

	unlock := s.opts.NameLocks.Lock(item.ParentID)
	defer unlock()

	count, err := s.deleteTree(ctx, item)
	if err != nil {
		return err
	}
	logger.Info("item deleted: drive=%s id=%s path=%s removed=%d", driveID, item.ID, item.Path, count)
	return nil
}

// deleteTree removes children before their parent so a failure never
// orphans a subtree
func (s *Service) deleteTree(ctx context.Context, item *types.Item) (int, error) {
	removed := 0
	if item.IsContainer() {
		children, err := s.items.GetChildren(ctx, item.ID)
		if err != nil {
			return removed, err
		}
		for _, child := range children {
			n, err := s.deleteTree(ctx, child)
			removed += n
			if err != nil {
				return removed, err
			}
		}
	}

	if item.BlobPath != "" {
		if err := s.blobs.Delete(ctx, item.BlobPath); err != nil {
			return removed, fmt.Errorf("failed to delete content of %s: %w", item.Path, err)
		}
	}
	if err := s.items.DeleteItem(ctx, item.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return removed, fmt.Errorf("failed to delete %s: %w", item.Path, err)
	}
	return removed + 1, nil
}

// ============================================================================
// List items
// ============================================================================

func (s *Service) getList(ctx context.Context, siteID, listID string) (*types.Item, error) {
	list, err := s.getTyped(ctx, listID, types.ItemTypeList)
	if err != nil {
		return nil, err
	}
	if list.SiteID != siteID {
		return nil, fmt.Errorf("list %s in site %s: %w", listID, siteID, store.ErrNotFound)
	}
	return list, nil
}

func (s *Service) GetList(ctx context.Context, siteID, listID string) (*types.Item, error) {
	return s.getList(ctx, siteID, listID)
}

func (s *Service) ListItems(ctx context.Context, siteID, listID string) ([]*types.Item, error) {
	list, err := s.getList(ctx, siteID, listID)
	if err != nil {
		return nil, err
	}
	return s.childrenOfType(ctx, list.ID, types.ItemTypeListItem)
}

func (s *Service) GetListItem(ctx context.Context, siteID, listID, itemID string) (*types.Item, error) {
	list, err := s.getList(ctx, siteID, listID)
	if err != nil {
		return nil, err
	}
	item, err := s.getTyped(ctx, itemID, types.ItemTypeListItem)
	if err != nil {
		return nil, err
	}
	if item.ListID != list.ID {
		return nil, fmt.Errorf("list item %s in list %s: %w", itemID, listID, store.ErrNotFound)
	}
	return item, nil
}

// CreateListItem adds an item with the given fields. Title names the item.
func (s *Service) CreateListItem(ctx context.Context, siteID, listID string, fields map[string]any) (*types.Item, error) {
	list, err := s.getList(ctx, siteID, listID)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	item := &types.Item{
		ID:           uuid.New().String(),
		ParentID:     list.ID,
		SiteID:       list.SiteID,
		ListID:       list.ID,
		Type:         types.ItemTypeListItem,
		CreatedAt:    now,
		LastModified: now,
		Fields:       maps.Clone(fields),
	}
	if item.Fields == nil {
		item.Fields = map[string]any{}
	}
	item.Name, _ = item.Fields["Title"].(string)

	if err := s.items.UpsertItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create list item: %w", err)
	}
	logger.Info("list item created: list=%s id=%s", list.ID, item.ID)
	return item, nil
}

// UpdateListItemFields merges fields into the item. A null value removes
// the field.
func (s *Service) UpdateListItemFields(ctx context.Context, siteID, listID, itemID string, fields map[string]any) (*types.Item, error) {
	item, err := s.GetListItem(ctx, siteID, listID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Fields == nil {
		item.Fields = map[string]any{}
	}
	for k, v := range fields {
		if v == nil {
			delete(item.Fields, k)
			continue
		}
		item.Fields[k] = v
	}
	if title, ok := item.Fields["Title"].(string); ok {
		item.Name = title
	}
	item.LastModified = s.opts.Now()

	if err := s.items.UpsertItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update list item %s: %w", itemID, err)
	}
	return item, nil
}

func (s *Service) DeleteListItem(ctx context.Context, siteID, listID, itemID string) error {
	item, err := s.GetListItem(ctx, siteID, listID, itemID)
	if err != nil {
		return err
	}
	return s.items.DeleteItem(ctx, item.ID)
}

// ============================================================================
// System
// ============================================================================

// Stats returns item counts per type
func (s *Service) Stats(ctx context.Context) (*types.StoreStats, error) {
	return s.items.Stats(ctx)
}

// Reset removes every item and blob
func (s *Service) Reset(ctx context.Context) error {
	if err := s.items.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset items: %w", err)
	}
	if err := s.blobs.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset blobs: %w", err)
	}
	return nil
}

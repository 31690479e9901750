package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Project-Sylos/Mirage/internal/logger"
	"github.com/Project-Sylos/Mirage/internal/store"
	"github.com/Project-Sylos/Mirage/internal/types"
	"github.com/Project-Sylos/Mirage/internal/utils"
	"github.com/google/uuid"
)

// Defaults used when Options leaves a field zero
const (
	DefaultSessionTTL   = 24 * time.Hour
	DefaultMaxChunkSize = 60 * 1024 * 1024
	DefaultMaxFileSize  = 1 << 30
)

// Options configures a Service
type Options struct {
	SessionTTL   time.Duration
	MaxChunkSize int64

	// MaxFileSize bounds the final size of an upload. Ranges ending at or
	// past it are rejected before anything is written.
	MaxFileSize int64

	// Now is the clock; tests inject a fake one
	Now func() time.Time

	// NameLocks serializes name decisions per parent folder. Share it with
	// every other writer of the item tree.
	NameLocks *store.KeyedMutex
}

// Service runs the upload session state machine over the item and blob
// stores. Work on one session is serialized; different sessions proceed
// in parallel.
type Service struct {
	items    store.ItemStore
	blobs    store.BlobStore
	ledger   Ledger
	opts     Options
	sessions store.KeyedMutex
}

func NewService(items store.ItemStore, blobs store.BlobStore, ledger Ledger, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = DefaultMaxChunkSize
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NameLocks == nil {
		opts.NameLocks = &store.KeyedMutex{}
	}
	return &Service{items: items, blobs: blobs, ledger: ledger, opts: opts}
}

// CreateRequest opens a session for FileName under ParentID
type CreateRequest struct {
	DriveID          string
	ParentID         string
	FileName         string
	ConflictBehavior string
}

// Result is either a pending Status or the completed Item
type Result struct {
	Status *Status
	Item   *types.Item
}

// Completed reports whether the chunk finished the upload
func (r *Result) Completed() bool {
	return r.Item != nil
}

// Create validates the target and persists a new session with an empty
// temp blob
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Status, error) {
	if err := utils.ValidateName(req.FileName); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.ConflictBehavior == "" {
		req.ConflictBehavior = types.ConflictReplace
	}
	if !types.ValidConflictBehavior(req.ConflictBehavior) {
		return nil, fmt.Errorf("%w: unknown conflict behavior %q", ErrInvalidRequest, req.ConflictBehavior)
	}

	parent, err := s.items.GetItem(ctx, req.ParentID)
	if err != nil {
		return nil, fmt.Errorf("parent %s: %w", req.ParentID, err)
	}
	if parent.DriveID != req.DriveID {
		return nil, fmt.Errorf("parent %s in drive %s: %w", req.ParentID, req.DriveID, store.ErrNotFound)
	}
	if !parent.IsContainer() {
		return nil, fmt.Errorf("%w: parent %s is not a folder", ErrInvalidRequest, req.ParentID)
	}

	now := s.opts.Now()
	id := uuid.New().String()
	session := &Session{
		ID:               id,
		DriveID:          req.DriveID,
		ParentID:         req.ParentID,
		FileName:         req.FileName,
		TempBlobPath:     tempBlobPath(id),
		ConflictBehavior: req.ConflictBehavior,
		Expiration:       now.Add(s.opts.SessionTTL),
		Chunks:           []ByteRange{},
		CreatedAt:        now,
	}

	if _, err := s.blobs.Write(ctx, session.TempBlobPath, bytes.NewReader(nil)); err != nil {
		return nil, fmt.Errorf("failed to create temp blob: %w", err)
	}
	if err := s.ledger.Put(ctx, session); err != nil {
		s.blobs.Delete(context.WithoutCancel(ctx), session.TempBlobPath)
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	logger.Info("upload session created: id=%s drive=%s parent=%s name=%s", id, req.DriveID, req.ParentID, req.FileName)
	return session.status(), nil
}

// ReceiveChunk writes one Content-Range chunk. Client errors leave the
// session untouched. Once every byte of a known size has arrived the
// session completes and the item is returned.
func (s *Service) ReceiveChunk(ctx context.Context, id, contentRange string, data []byte) (*Result, error) {
	if int64(len(data)) > s.opts.MaxChunkSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrChunkTooLarge, len(data), s.opts.MaxChunkSize)
	}
	cr, err := ParseContentRange(contentRange)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != cr.Len() {
		return nil, fmt.Errorf("%w: range %s is %d bytes, body is %d", ErrLengthMismatch, cr.ByteRange, cr.Len(), len(data))
	}
	if cr.End >= s.opts.MaxFileSize || (cr.Total != nil && *cr.Total > s.opts.MaxFileSize) {
		return nil, fmt.Errorf("%w: range %s exceeds the %d byte file limit", ErrRangeNotSatisfiable, cr.ByteRange, s.opts.MaxFileSize)
	}

	unlock := s.sessions.Lock(id)
	defer unlock()

	session, err := s.loadLive(ctx, id)
	if err != nil {
		return nil, err
	}

	if session.ExpectedSize != nil {
		size := *session.ExpectedSize
		if cr.Total != nil && *cr.Total != size {
			return nil, fmt.Errorf("%w: total %d disagrees with session size %d", ErrInvalidRange, *cr.Total, size)
		}
		if cr.End >= size {
			return nil, fmt.Errorf("%w: range %s is past size %d", ErrRangeNotSatisfiable, cr.ByteRange, size)
		}
	} else if cr.Total != nil {
		merged := MergeRanges(session.Chunks)
		if len(merged) > 0 && merged[len(merged)-1].End >= *cr.Total {
			return nil, fmt.Errorf("%w: total %d is smaller than bytes already received", ErrInvalidRange, *cr.Total)
		}
	}

	if err := s.blobs.WriteAt(ctx, session.TempBlobPath, data, cr.Start); err != nil {
		return nil, fmt.Errorf("failed to write chunk %s of session %s: %w", cr.ByteRange, id, err)
	}

	session.Chunks = MergeRanges(append(session.Chunks, cr.ByteRange))
	if session.ExpectedSize == nil && cr.Total != nil {
		total := *cr.Total
		session.ExpectedSize = &total
	}

	logger.Debug("upload chunk received: id=%s range=%s uploaded=%d", id, cr.ByteRange, session.Uploaded())

	if session.Complete() {
		item, err := s.complete(ctx, session)
		if err != nil {
			// Keep the ranges so a retry can complete without resending
			if perr := s.ledger.Put(context.WithoutCancel(ctx), session); perr != nil {
				logger.Error("failed to persist session after completion error: id=%s err=%v", id, perr)
			}
			return nil, err
		}
		return &Result{Item: item}, nil
	}

	if err := s.ledger.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist session %s: %w", id, err)
	}
	return &Result{Status: session.status()}, nil
}

// complete promotes the temp blob into the item tree. It runs to the end even
// if the caller goes away. The session record is consumed before the item is
// saved, so a failure at either step leaves the session pending and no item.
func (s *Service) complete(ctx context.Context, session *Session) (*types.Item, error) {
	ctx = context.WithoutCancel(ctx)

	unlock := s.opts.NameLocks.Lock(session.ParentID)
	defer unlock()

	parent, err := s.items.GetItem(ctx, session.ParentID)
	if err != nil {
		return nil, fmt.Errorf("parent %s: %w", session.ParentID, err)
	}

	name, existing, err := store.ResolveName(ctx, s.items, parent.ID, session.FileName, session.ConflictBehavior, types.ItemTypeFile)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: %w", ErrNameConflict, err)
		}
		return nil, err
	}

	checksum, size, err := store.Checksum(ctx, s.blobs, session.TempBlobPath)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum upload %s: %w", session.ID, err)
	}

	mimeType := utils.MimeTypeByName(name)
	if mimeType == "" {
		if r, err := s.blobs.Read(ctx, session.TempBlobPath); err == nil {
			mimeType = utils.DetectMimeType(name, r)
			r.Close()
		}
	}

	now := s.opts.Now()
	item := &types.Item{
		ID:           uuid.New().String(),
		ParentID:     parent.ID,
		DriveID:      session.DriveID,
		SiteID:       parent.SiteID,
		Name:         name,
		Path:         utils.JoinPath(parent.Path, name),
		Type:         types.ItemTypeFile,
		Size:         size,
		MimeType:     mimeType,
		Checksum:     checksum,
		CreatedAt:    now,
		LastModified: now,
	}
	if existing != nil {
		item.ID = existing.ID
		item.CreatedAt = existing.CreatedAt
		item.Fields = existing.Fields
	}
	item.BlobPath = store.BlobPath(session.DriveID, item.ID, session.ID)

	if err := s.blobs.Move(ctx, session.TempBlobPath, item.BlobPath); err != nil {
		return nil, fmt.Errorf("failed to promote upload %s: %w", session.ID, err)
	}
	restore := func() {
		if err := s.blobs.Move(ctx, item.BlobPath, session.TempBlobPath); err != nil {
			logger.Error("failed to restore temp blob: session=%s err=%v", session.ID, err)
		}
	}

	if err := s.ledger.Delete(ctx, session.ID); err != nil {
		restore()
		return nil, fmt.Errorf("failed to consume session %s: %w", session.ID, err)
	}

	if err := s.items.UpsertItem(ctx, item); err != nil {
		restore()
		return nil, fmt.Errorf("failed to save item for upload %s: %w", session.ID, err)
	}

	if existing != nil && existing.BlobPath != "" && existing.BlobPath != item.BlobPath {
		if err := s.blobs.Delete(ctx, existing.BlobPath); err != nil {
			logger.Warn("failed to delete replaced blob: path=%s err=%v", existing.BlobPath, err)
		}
	}

	logger.Info("upload completed: session=%s item=%s name=%s size=%d", session.ID, item.ID, item.Name, item.Size)
	return item, nil
}

// Status returns the pending state without accepting bytes
func (s *Service) Status(ctx context.Context, id string) (*Status, error) {
	unlock := s.sessions.Lock(id)
	defer unlock()

	session, err := s.loadLive(ctx, id)
	if err != nil {
		return nil, err
	}
	return session.status(), nil
}

// Session returns a copy of the persisted session
func (s *Service) Session(ctx context.Context, id string) (*Session, error) {
	unlock := s.sessions.Lock(id)
	defer unlock()
	return s.loadLive(ctx, id)
}

// Cancel removes the session and its temp blob. A missing temp blob is fine;
// an unknown session is ErrSessionNotFound.
func (s *Service) Cancel(ctx context.Context, id string) error {
	unlock := s.sessions.Lock(id)
	defer unlock()

	session, err := s.loadLive(ctx, id)
	if err != nil {
		return err
	}
	if err := s.discard(ctx, session); err != nil {
		return err
	}
	logger.Info("upload session cancelled: id=%s", id)
	return nil
}

// Sweep removes every expired session and returns how many were removed
func (s *Service) Sweep(ctx context.Context) (int, error) {
	sessions, err := s.ledger.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	now := s.opts.Now()
	removed := 0
	for _, candidate := range sessions {
		if !candidate.Expired(now) {
			continue
		}

		unlock := s.sessions.Lock(candidate.ID)
		// Re-read under the lock; the session may have completed meanwhile
		session, err := s.ledger.Get(ctx, candidate.ID)
		if err == nil && session.Expired(now) {
			if err := s.discard(ctx, session); err != nil {
				logger.Warn("failed to sweep session: id=%s err=%v", session.ID, err)
			} else {
				removed++
			}
		}
		unlock()
	}

	if removed > 0 {
		logger.Info("upload sessions swept: count=%d", removed)
	}
	return removed, nil
}

// RunSweeper sweeps every interval until ctx is done
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				logger.Warn("upload sweep failed: err=%v", err)
			}
		}
	}
}

// Reset drops every session and temp blob
func (s *Service) Reset(ctx context.Context) error {
	sessions, err := s.ledger.List(ctx)
	if err != nil {
		return err
	}
	for _, session := range sessions {
		unlock := s.sessions.Lock(session.ID)
		err := s.discard(ctx, session)
		unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// loadLive returns the session, sweeping it first if it has expired.
// Callers hold the session lock.
func (s *Service) loadLive(ctx context.Context, id string) (*Session, error) {
	session, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Expired(s.opts.Now()) {
		if err := s.discard(ctx, session); err != nil {
			logger.Warn("failed to remove expired session: id=%s err=%v", id, err)
		}
		return nil, fmt.Errorf("session %s expired: %w", id, ErrSessionNotFound)
	}
	return session, nil
}

func (s *Service) discard(ctx context.Context, session *Session) error {
	if err := s.blobs.Delete(ctx, session.TempBlobPath); err != nil {
		return fmt.Errorf("failed to delete temp blob %s: %w", session.TempBlobPath, err)
	}
	if err := s.ledger.Delete(ctx, session.ID); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", session.ID, err)
	}
	return nil
}

// Package upload implements resumable upload sessions: chunked writes at
// explicit offsets into a temp blob, range bookkeeping, and promotion of the
// finished blob into the item tree.
package upload

import (
	"errors"
	"time"
)

var (
	ErrSessionNotFound     = errors.New("upload session not found")
	ErrInvalidRange        = errors.New("invalid content range")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
	ErrLengthMismatch      = errors.New("chunk length does not match content range")
	ErrNameConflict        = errors.New("an item with the same name already exists")
	ErrInvalidRequest      = errors.New("invalid upload request")
	ErrChunkTooLarge       = errors.New("chunk too large")
)

// Session is the persisted state of one upload
type Session struct {
	ID               string      `json:"id"`
	DriveID          string      `json:"driveId"`
	ParentID         string      `json:"parentId"`
	FileName         string      `json:"fileName"`
	ExpectedSize     *int64      `json:"expectedSize,omitempty"`
	TempBlobPath     string      `json:"tempBlobPath"`
	ConflictBehavior string      `json:"conflictBehavior"`
	Expiration       time.Time   `json:"expiration"`
	Chunks           []ByteRange `json:"chunks"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// Expired reports whether the session is past its expiration at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.Expiration)
}

// Uploaded is the number of distinct bytes received
func (s *Session) Uploaded() int64 {
	return TotalBytes(MergeRanges(s.Chunks))
}

// Complete reports whether every byte of a known size has arrived
func (s *Session) Complete() bool {
	return s.ExpectedSize != nil && s.Uploaded() >= *s.ExpectedSize
}

// Status is what clients see while an upload is pending
type Status struct {
	SessionID          string    `json:"-"`
	ExpirationDateTime time.Time `json:"expirationDateTime"`
	NextExpectedRanges []string  `json:"nextExpectedRanges"`
}

func (s *Session) status() *Status {
	return &Status{
		SessionID:          s.ID,
		ExpirationDateTime: s.Expiration,
		NextExpectedRanges: NextExpectedRanges(MergeRanges(s.Chunks), s.ExpectedSize),
	}
}

func tempBlobPath(sessionID string) string {
	return ".uploads/" + sessionID
}

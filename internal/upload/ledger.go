package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Ledger persists upload sessions between requests
type Ledger interface {
	// Get returns ErrSessionNotFound for unknown ids
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	// Delete is idempotent
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Session, error)
	Close() error
}

// MemoryLedger keeps sessions in a map. Sessions are stored as JSON so
// callers never share state with the ledger.
type MemoryLedger struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

var _ Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{sessions: make(map[string][]byte)}
}

func (l *MemoryLedger) Get(ctx context.Context, id string) (*Session, error) {
	l.mu.RLock()
	data, ok := l.sessions[id]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return decodeSession(data)
}

func (l *MemoryLedger) Put(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", s.ID, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions[s.ID] = data
	return nil
}

func (l *MemoryLedger) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sessions, id)
	return nil
}

func (l *MemoryLedger) List(ctx context.Context) ([]*Session, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Session, 0, len(l.sessions))
	for _, data := range l.sessions {
		s, err := decodeSession(data)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (l *MemoryLedger) Close() error {
	return nil
}

func decodeSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}

package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
)

const sessionKeyPrefix = "upload/session/"

func sessionKey(id string) []byte {
	return []byte(sessionKeyPrefix + id)
}

// BadgerLedger persists sessions in BadgerDB so partial uploads survive a
// restart. Values are JSON-encoded sessions.
type BadgerLedger struct {
	db *badger.DB
}

var _ Ledger = (*BadgerLedger)(nil)

// NewBadgerLedger opens (or creates) a ledger at dir. An empty dir opens an
// in-memory database.
func NewBadgerLedger(dir string) (*BadgerLedger, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", dir, err)
	}
	return &BadgerLedger{db: db}, nil
}

func (l *BadgerLedger) Get(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var s *Session
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := decodeSession(val)
			s = decoded
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (l *BadgerLedger) Put(ctx context.Context, s *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", s.ID, err)
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(s.ID), data)
	})
}

func (l *BadgerLedger) Delete(ctx context.Context, id string) error {
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey(id))
	})
}

func (l *BadgerLedger) List(ctx context.Context) ([]*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*Session
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sessionKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				s, err := decodeSession(val)
				if err != nil {
					return err
				}
				out = append(out, s)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (l *BadgerLedger) Close() error {
	return l.db.Close()
}

// Package memory provides in-memory Item and Blob stores. Contents are lost
// when the process exits.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/Project-Sylos/Mirage/internal/store"
	"github.com/Project-Sylos/Mirage/internal/types"
)

// ItemStore implements store.ItemStore over a map guarded by an RWMutex.
// Items are copied on the way in and out so callers never share state.
type ItemStore struct {
	mu    sync.RWMutex
	items map[string]*types.Item
}

var _ store.ItemStore = (*ItemStore)(nil)

func NewItemStore() *ItemStore {
	return &ItemStore{items: make(map[string]*types.Item)}
}

func cloneItem(item *types.Item) *types.Item {
	c := *item
	if item.Fields != nil {
		c.Fields = maps.Clone(item.Fields)
	}
	return &c
}

// sortItems orders items by type, name then id, matching the SQL store
func sortItems(items []*types.Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Type != items[j].Type {
			return items[i].Type < items[j].Type
		}
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})
}

func (s *ItemStore) GetItem(ctx context.Context, id string) (*types.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	return cloneItem(item), nil
}

func (s *ItemStore) GetChildren(ctx context.Context, parentID string) ([]*types.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var children []*types.Item
	for _, item := range s.items {
		if item.ParentID == parentID {
			children = append(children, cloneItem(item))
		}
	}
	sortItems(children)
	return children, nil
}

func (s *ItemStore) GetItemsByType(ctx context.Context, itemType string) ([]*types.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*types.Item
	for _, item := range s.items {
		if item.Type == itemType {
			result = append(result, cloneItem(item))
		}
	}
	sortItems(result)
	return result, nil
}

func (s *ItemStore) UpsertItem(ctx context.Context, item *types.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if item == nil || item.ID == "" {
		return fmt.Errorf("item id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[item.ID] = cloneItem(item)
	return nil
}

func (s *ItemStore) DeleteItem(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	delete(s.items, id)
	return nil
}

func (s *ItemStore) Stats(ctx context.Context) (*types.StoreStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &types.StoreStats{Counts: make(map[string]int)}
	for _, item := range s.items {
		stats.Counts[item.Type]++
		stats.Total++
	}
	return stats, nil
}

func (s *ItemStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*types.Item)
	return nil
}

func (s *ItemStore) Close() error {
	return nil
}

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/Project-Sylos/Mirage/internal/types"
	"github.com/Project-Sylos/Mirage/internal/utils"
)

// ResolveName applies a conflict behavior to a new child of parentID.
// It returns the name to use and, for replace, the item being replaced.
// Names compare case-insensitively. Callers hold the parent's name lock.
func ResolveName(ctx context.Context, items ItemStore, parentID, name, behavior, itemType string) (string, *types.Item, error) {
	children, err := items.GetChildren(ctx, parentID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to list children of %s: %w", parentID, err)
	}

	find := func(n string) *types.Item {
		for _, c := range children {
			if strings.EqualFold(c.Name, n) {
				return c
			}
		}
		return nil
	}
	taken := func(n string) bool { return find(n) != nil }

	switch behavior {
	case types.ConflictRename:
		return utils.FreeName(name, taken), nil, nil

	case types.ConflictReplace:
		existing := find(name)
		if existing != nil && existing.Type != itemType {
			return "", nil, fmt.Errorf("%q exists as a %s: %w", name, existing.Type, ErrConflict)
		}
		if existing != nil {
			// Keep the stored casing of the name
			return existing.Name, existing, nil
		}
		return name, nil, nil

	default:
		if taken(name) {
			return "", nil, fmt.Errorf("%q already exists: %w", name, ErrConflict)
		}
		return name, nil, nil
	}
}

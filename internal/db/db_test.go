package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Project-Sylos/Mirage/internal/store"
	"github.com/Project-Sylos/Mirage/internal/store/storetest"
	"github.com/Project-Sylos/Mirage/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, kind string) *DB {
	t.Helper()
	db, err := New(kind, filepath.Join(t.TempDir(), "items-"+kind+".db"))
	require.NoError(t, err)
	return db
}

func TestItemStoreBackends(t *testing.T) {
	tests := []struct {
		name     string
		newStore func(t *testing.T) store.ItemStore
	}{
		{
			name:     "duckdb",
			newStore: func(t *testing.T) store.ItemStore { return openTemp(t, KindDuckDB) },
		},
		{
			name:     "sqlite",
			newStore: func(t *testing.T) store.ItemStore { return openTemp(t, KindSQLite) },
		},
		{
			name: "sqlite in memory",
			newStore: func(t *testing.T) store.ItemStore {
				db, err := New(KindSQLite, ":memory:")
				require.NoError(t, err)
				return db
			},
		},
	}

	if dsn := os.Getenv("MIRAGE_TEST_POSTGRES_DSN"); dsn != "" {
		tests = append(tests, struct {
			name     string
			newStore func(t *testing.T) store.ItemStore
		}{
			name: "postgres",
			newStore: func(t *testing.T) store.ItemStore {
				db, err := New(KindPostgres, dsn)
				require.NoError(t, err)
				require.NoError(t, db.Reset(context.Background()))
				return db
			},
		})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suite := &storetest.ItemStoreSuite{NewStore: tt.newStore}
			suite.Run(t)
		})
	}
}

func TestNewUnsupportedKind(t *testing.T) {
	db, err := New("oracle", "whatever")
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestItemsSurviveReopen(t *testing.T) {
	for _, kind := range []string{KindDuckDB, KindSQLite} {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "persist.db")
			created := time.Date(2024, 3, 1, 8, 30, 0, 123456789, time.UTC)

			db, err := New(kind, path)
			require.NoError(t, err)
			require.NoError(t, db.UpsertItem(ctx, &types.Item{
				ID:           "li-1",
				ListID:       "list-1",
				Name:         "Task 1",
				Type:         types.ItemTypeListItem,
				CreatedAt:    created,
				LastModified: created,
				Fields:       map[string]any{"Title": "Task 1", "Priority": 2.0, "Done": false},
			}))
			require.NoError(t, db.Close())

			db, err = New(kind, path)
			require.NoError(t, err)
			defer db.Close()

			got, err := db.GetItem(ctx, "li-1")
			require.NoError(t, err)
			assert.Equal(t, "list-1", got.ListID)
			assert.True(t, created.Equal(got.CreatedAt))
			assert.Equal(t, map[string]any{"Title": "Task 1", "Priority": 2.0, "Done": false}, got.Fields)
		})
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{kind: KindPostgres}
	lite := &DB{kind: KindSQLite}

	query := "SELECT * FROM items WHERE parent_id = ? AND type = ?"
	assert.Equal(t, "SELECT * FROM items WHERE parent_id = $1 AND type = $2", pg.rebind(query))
	assert.Equal(t, query, lite.rebind(query))
}

func TestBuildUpsertSQL(t *testing.T) {
	q := BuildUpsertSQL()
	assert.Contains(t, q, "ON CONFLICT (id) DO UPDATE SET")
	assert.Contains(t, q, "name = excluded.name")
	assert.NotContains(t, q, "id = excluded.id,")
}

// Package db implements the SQL Item Store over DuckDB, SQLite or PostgreSQL.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Project-Sylos/Mirage/internal/logger"
	"github.com/Project-Sylos/Mirage/internal/store"
	"github.com/Project-Sylos/Mirage/internal/types"
	_ "github.com/lib/pq"
	_ "github.com/marcboeker/go-duckdb"
	_ "github.com/mattn/go-sqlite3"
)

// Supported backends, matching the items.type config values
const (
	KindDuckDB   = "duckdb"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
)

const timeLayout = time.RFC3339Nano

// DB wraps a SQL connection and implements store.ItemStore
type DB struct {
	conn *sql.DB
	kind string
	mu   sync.Mutex // Serializes database operations

	upsertSQL string
}

var _ store.ItemStore = (*DB)(nil)

func driverName(kind string) (string, error) {
	switch kind {
	case KindDuckDB:
		return "duckdb", nil
	case KindSQLite:
		return "sqlite3", nil
	case KindPostgres:
		return "postgres", nil
	}
	return "", fmt.Errorf("unsupported item store %q", kind)
}

// New opens a connection and creates the schema if needed
func New(kind, dsn string) (*DB, error) {
	driver, err := driverName(kind)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", kind, err)
	}
	if kind == KindSQLite {
		// A second connection to ":memory:" would see an empty database
		conn.SetMaxOpenConns(1)
	}

	db := &DB{conn: conn, kind: kind}
	db.upsertSQL = db.rebind(BuildUpsertSQL())

	if err := db.InitializeSchema(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("item store opened: kind=%s", kind)
	return db, nil
}

// InitializeSchema creates the items table and its indexes
func (db *DB) InitializeSchema(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.ExecContext(ctx, createItemsTableSQL); err != nil {
		return fmt.Errorf("failed to create items table: %w", err)
	}

	// Secondary ART indexes break ON CONFLICT updates in DuckDB
	if db.kind == KindDuckDB {
		return nil
	}
	for _, stmt := range createIndexesSQL {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL
func (db *DB) rebind(query string) string {
	if db.kind != KindPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// orderBy sorts by type then name using byte order on every backend
func (db *DB) orderBy() string {
	if db.kind == KindPostgres {
		return `ORDER BY type COLLATE "C", name COLLATE "C", id`
	}
	return "ORDER BY type, name, id"
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) UpsertItem(ctx context.Context, item *types.Item) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var fields sql.NullString
	if len(item.Fields) > 0 {
		data, err := json.Marshal(item.Fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields of %s: %w", item.ID, err)
		}
		fields = sql.NullString{String: string(data), Valid: true}
	}

	_, err := db.conn.ExecContext(ctx, db.upsertSQL,
		item.ID,
		item.ParentID,
		item.DriveID,
		item.SiteID,
		item.ListID,
		item.Name,
		item.Path,
		item.Type,
		item.Size,
		item.MimeType,
		item.Checksum,
		item.BlobPath,
		item.CreatedAt.UTC().Format(timeLayout),
		item.LastModified.UTC().Format(timeLayout),
		fields,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert item %s: %w", item.ID, err)
	}
	return nil
}

// GetItem retrieves an item by its ID
func (db *DB) GetItem(ctx context.Context, id string) (*types.Item, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	row := db.conn.QueryRowContext(ctx, db.rebind(BuildSelectSQL("WHERE id = ?")), id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", id, err)
	}
	return item, nil
}

// GetChildren retrieves the direct children of a parent
func (db *DB) GetChildren(ctx context.Context, parentID string) ([]*types.Item, error) {
	return db.query(ctx, BuildSelectSQL("WHERE parent_id = ? "+db.orderBy()), parentID)
}

func (db *DB) GetItemsByType(ctx context.Context, itemType string) ([]*types.Item, error) {
	return db.query(ctx, BuildSelectSQL("WHERE type = ? "+db.orderBy()), itemType)
}

func (db *DB) query(ctx context.Context, query string, args ...any) ([]*types.Item, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []*types.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

// DeleteItem removes one item. Children are left to the caller.
func (db *DB) DeleteItem(ctx context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.ExecContext(ctx, db.rebind("DELETE FROM items WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete item %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete item %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// Stats returns item counts per type
func (db *DB) Stats(ctx context.Context) (*types.StoreStats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.QueryContext(ctx, "SELECT type, COUNT(*) FROM items GROUP BY type")
	if err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}
	defer rows.Close()

	stats := &types.StoreStats{Counts: make(map[string]int)}
	for rows.Next() {
		var itemType string
		var count int64
		if err := rows.Scan(&itemType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan item count: %w", err)
		}
		stats.Counts[itemType] = int(count)
		stats.Total += int(count)
	}
	return stats, rows.Err()
}

// Reset deletes every item
func (db *DB) Reset(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.ExecContext(ctx, "DELETE FROM items"); err != nil {
		return fmt.Errorf("failed to delete all items: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*types.Item, error) {
	item := &types.Item{}
	var createdAt, lastModified string
	var fields sql.NullString

	err := row.Scan(
		&item.ID,
		&item.ParentID,
		&item.DriveID,
		&item.SiteID,
		&item.ListID,
		&item.Name,
		&item.Path,
		&item.Type,
		&item.Size,
		&item.MimeType,
		&item.Checksum,
		&item.BlobPath,
		&createdAt,
		&lastModified,
		&fields,
	)
	if err != nil {
		return nil, err
	}

	if item.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at for %s: %w", item.ID, err)
	}
	if item.LastModified, err = time.Parse(timeLayout, lastModified); err != nil {
		return nil, fmt.Errorf("invalid last_modified for %s: %w", item.ID, err)
	}
	if fields.Valid && fields.String != "" {
		if err := json.Unmarshal([]byte(fields.String), &item.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fields of %s: %w", item.ID, err)
		}
	}
	return item, nil
}

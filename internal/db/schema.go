package db

import (
	"fmt"
	"strings"
)

// itemColumns is the column order used by every insert and select
var itemColumns = []string{
	"id", "parent_id", "drive_id", "site_id", "list_id", "name", "path", "type",
	"size", "mime_type", "checksum", "blob_path", "created_at", "last_modified", "fields",
}

// Timestamps are stored as RFC 3339 text and fields as JSON text so the same
// schema works on DuckDB, SQLite and PostgreSQL.
const createItemsTableSQL = `
CREATE TABLE IF NOT EXISTS items (
	id            TEXT PRIMARY KEY,
	parent_id     TEXT NOT NULL DEFAULT '',
	drive_id      TEXT NOT NULL DEFAULT '',
	site_id       TEXT NOT NULL DEFAULT '',
	list_id       TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL,
	path          TEXT NOT NULL DEFAULT '',
	type          TEXT NOT NULL,
	size          BIGINT NOT NULL DEFAULT 0,
	mime_type     TEXT NOT NULL DEFAULT '',
	checksum      TEXT NOT NULL DEFAULT '',
	blob_path     TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	last_modified TEXT NOT NULL,
	fields        TEXT
)`

var createIndexesSQL = []string{
	"CREATE INDEX IF NOT EXISTS idx_items_parent_id ON items(parent_id)",
	"CREATE INDEX IF NOT EXISTS idx_items_type ON items(type)",
}

// BuildUpsertSQL builds the insert-or-replace statement for the items table
func BuildUpsertSQL() string {
	placeholders := make([]string, len(itemColumns))
	updates := make([]string, 0, len(itemColumns)-1)
	for i, col := range itemColumns {
		placeholders[i] = "?"
		if col != "id" {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}

	return fmt.Sprintf("INSERT INTO items (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		strings.Join(itemColumns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "))
}

// BuildSelectSQL builds a select over every item column with the given
// trailing clause
func BuildSelectSQL(clause string) string {
	return fmt.Sprintf("SELECT %s FROM items %s", strings.Join(itemColumns, ", "), clause)
}

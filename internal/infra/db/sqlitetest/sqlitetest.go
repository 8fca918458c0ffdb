// Package sqlitetest opens an in-memory SQLite database carrying the
// application tables, for repository tests of both SQL adapters.
package sqlitetest

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// Schema mirrors the MySQL and PostgreSQL schemas in a dialect the in-memory
// engine accepts, keys and unique constraints included.
const Schema = `
CREATE TABLE users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  email TEXT NOT NULL UNIQUE,
  nickname TEXT NULL,
  member_type TEXT NULL
);
CREATE TABLE ingredients (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  category_id TEXT NULL,
  effect_type TEXT NULL,
  ingredient_kr TEXT NOT NULL UNIQUE,
  ingredient_en TEXT NULL,
  level TEXT NULL,
  reason TEXT NULL,
  notes TEXT NULL,
  created_at DATETIME NOT NULL
);
CREATE TABLE analysis_results (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  image_key TEXT NULL,
  image_url TEXT NULL,
  elapsed_ms INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL
);
CREATE TABLE ingredient_results (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  result_id INTEGER NOT NULL,
  ingredient_id INTEGER NOT NULL,
  UNIQUE (result_id, ingredient_id)
);
CREATE TABLE analysis_failures (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  result_id INTEGER NULL,
  phase TEXT NOT NULL,
  message TEXT NOT NULL,
  details_json TEXT NOT NULL,
  created_at DATETIME NOT NULL
);
`

// Open returns a fresh database with Schema applied. It is closed when the
// test ends.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?_time_format=sqlite")
	require.NoError(t, err)
	// one connection, one in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	return db
}

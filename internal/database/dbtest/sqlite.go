// Package dbtest opens throwaway in-memory SQLite databases with the same
// tables as the MySQL schema, for repository tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	_ "github.com/glebarez/go-sqlite"
)

var seq atomic.Int64

var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		phone_number TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		subscription TEXT NOT NULL DEFAULT 'NONE',
		subscription_expiry DATETIME NULL,
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE sub_teams (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		logo_url TEXT NULL
	)`,
	`CREATE TABLE fields (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		hourly_rate REAL NOT NULL DEFAULT 0,
		cancellation_fee_percent REAL NOT NULL DEFAULT 0,
		pix_key TEXT NOT NULL DEFAULT '',
		pix_name TEXT NOT NULL DEFAULT '',
		image_url TEXT NULL,
		contact_phone TEXT NOT NULL DEFAULT '',
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE match_slots (
		id TEXT PRIMARY KEY,
		field_id TEXT NOT NULL,
		slot_date TEXT NOT NULL,
		slot_time TEXT NOT NULL,
		is_booked INTEGER NOT NULL DEFAULT 0,
		match_type TEXT NOT NULL DEFAULT 'AMISTOSO',
		has_local_team INTEGER NOT NULL DEFAULT 0,
		local_team_name TEXT NOT NULL DEFAULT '',
		allowed_categories TEXT NOT NULL,
		booked_by_team_name TEXT NOT NULL DEFAULT '',
		booked_by_user_id TEXT NOT NULL DEFAULT '',
		booked_by_phone TEXT NOT NULL DEFAULT '',
		booked_by_category TEXT NOT NULL DEFAULT '',
		opponent_team_name TEXT NOT NULL DEFAULT '',
		opponent_team_phone TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'available',
		price REAL NOT NULL DEFAULT 0,
		receipt_json TEXT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE refresh_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		token_hash TEXT NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// Open returns an isolated in-memory database with every table created.
// It is closed automatically when the test ends.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:jf_test_%d?mode=memory&cache=shared", seq.Add(1))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// a single connection keeps the in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema holds the MySQL DDL for every table the API uses.  Statements are
// idempotent so Migrate can run on every boot.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id CHAR(36) NOT NULL PRIMARY KEY,
		name VARCHAR(120) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		phone_number VARCHAR(40) NOT NULL DEFAULT '',
		role VARCHAR(20) NOT NULL,
		subscription VARCHAR(20) NOT NULL DEFAULT 'NONE',
		subscription_expiry DATETIME NULL,
		latitude DOUBLE NOT NULL DEFAULT 0,
		longitude DOUBLE NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS sub_teams (
		id CHAR(36) NOT NULL PRIMARY KEY,
		user_id CHAR(36) NOT NULL,
		name VARCHAR(120) NOT NULL,
		category VARCHAR(40) NOT NULL,
		logo_url TEXT NULL,
		INDEX idx_sub_teams_user (user_id),
		CONSTRAINT fk_sub_teams_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS fields (
		id CHAR(36) NOT NULL PRIMARY KEY,
		owner_id CHAR(36) NOT NULL,
		name VARCHAR(160) NOT NULL,
		location VARCHAR(255) NOT NULL DEFAULT '',
		hourly_rate DOUBLE NOT NULL DEFAULT 0,
		cancellation_fee_percent DOUBLE NOT NULL DEFAULT 0,
		pix_key VARCHAR(160) NOT NULL DEFAULT '',
		pix_name VARCHAR(160) NOT NULL DEFAULT '',
		image_url TEXT NULL,
		contact_phone VARCHAR(40) NOT NULL DEFAULT '',
		latitude DOUBLE NOT NULL DEFAULT 0,
		longitude DOUBLE NOT NULL DEFAULT 0,
		INDEX idx_fields_owner (owner_id),
		CONSTRAINT fk_fields_owner FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS match_slots (
		id CHAR(36) NOT NULL PRIMARY KEY,
		field_id CHAR(36) NOT NULL,
		slot_date CHAR(10) NOT NULL,
		slot_time CHAR(5) NOT NULL,
		is_booked TINYINT(1) NOT NULL DEFAULT 0,
		match_type VARCHAR(20) NOT NULL DEFAULT 'AMISTOSO',
		has_local_team TINYINT(1) NOT NULL DEFAULT 0,
		local_team_name VARCHAR(120) NOT NULL DEFAULT '',
		allowed_categories TEXT NOT NULL,
		booked_by_team_name VARCHAR(120) NOT NULL DEFAULT '',
		booked_by_user_id VARCHAR(36) NOT NULL DEFAULT '',
		booked_by_phone VARCHAR(40) NOT NULL DEFAULT '',
		booked_by_category VARCHAR(40) NOT NULL DEFAULT '',
		opponent_team_name VARCHAR(120) NOT NULL DEFAULT '',
		opponent_team_phone VARCHAR(40) NOT NULL DEFAULT '',
		status VARCHAR(32) NOT NULL DEFAULT 'available',
		price DOUBLE NOT NULL DEFAULT 0,
		receipt_json TEXT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		INDEX idx_slots_field (field_id),
		INDEX idx_slots_booker (booked_by_user_id),
		INDEX idx_slots_status_date (status, slot_date),
		CONSTRAINT fk_slots_field FOREIGN KEY (field_id) REFERENCES fields(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id CHAR(36) NOT NULL,
		token_hash CHAR(64) NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_refresh_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies Schema in order.
func Migrate(ctx context.Context, db *sql.DB) error {
	return apply(ctx, db, Schema)
}

func apply(ctx context.Context, db *sql.DB, stmts []string) error {
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}

package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/apex/log"
)

// Migration is one schema step. Up holds a single statement because the
// connection runs without multiStatements.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// There are deliberately no foreign keys: deleting a volunteer leaves
// complaints.assigned_to pointing at the removed id.
var Migrations = []Migration{
	{1, "create_users", `
		CREATE TABLE IF NOT EXISTS users (
			id CHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			username VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			state VARCHAR(255) NOT NULL DEFAULT '',
			city VARCHAR(255) NOT NULL DEFAULT '',
			is_blocked BOOLEAN NOT NULL DEFAULT FALSE,
			reset_password_token CHAR(64) NULL,
			reset_password_expire DATETIME NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uniq_users_email (email),
			UNIQUE KEY uniq_users_username (username),
			INDEX idx_users_reset (reset_password_token)
		)`},
	{2, "create_admins", `
		CREATE TABLE IF NOT EXISTS admins (
			id CHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role ENUM('admin', 'super_admin') NOT NULL DEFAULT 'admin',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_login DATETIME NULL,
			reset_password_token CHAR(64) NULL,
			reset_password_expire DATETIME NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uniq_admins_email (email),
			INDEX idx_admins_reset (reset_password_token)
		)`},
	{3, "create_volunteers", `
		CREATE TABLE IF NOT EXISTS volunteers (
			id CHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			phone VARCHAR(64) NOT NULL DEFAULT '',
			address VARCHAR(512) NOT NULL DEFAULT '',
			status ENUM('pending', 'approved', 'blocked') NOT NULL DEFAULT 'pending',
			approved_by CHAR(36) NULL,
			approved_at DATETIME NULL,
			reset_password_token CHAR(64) NULL,
			reset_password_expire DATETIME NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uniq_volunteers_email (email),
			INDEX idx_volunteers_status (status),
			INDEX idx_volunteers_reset (reset_password_token)
		)`},
	{4, "create_complaints", `
		CREATE TABLE IF NOT EXISTS complaints (
			id CHAR(36) PRIMARY KEY,
			user_id CHAR(36) NOT NULL,
			assigned_to CHAR(36) NULL,
			title VARCHAR(100) NOT NULL,
			description VARCHAR(1000) NOT NULL,
			address VARCHAR(512) NOT NULL,
			location POINT NOT NULL SRID 4326,
			upvotes INT UNSIGNED NOT NULL DEFAULT 0,
			downvotes INT UNSIGNED NOT NULL DEFAULT 0,
			status ENUM('received', 'in_review', 'assigned', 'resolved', 'rejected') NOT NULL DEFAULT 'received',
			priority ENUM('low', 'medium', 'high', 'urgent') NOT NULL DEFAULT 'medium',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			SPATIAL INDEX idx_complaints_location (location),
			INDEX idx_complaints_user (user_id),
			INDEX idx_complaints_assigned (assigned_to),
			INDEX idx_complaints_status (status),
			INDEX idx_complaints_created (created_at)
		)`},
	{5, "create_complaint_photos", `
		CREATE TABLE IF NOT EXISTS complaint_photos (
			complaint_id CHAR(36) NOT NULL,
			position TINYINT UNSIGNED NOT NULL,
			url VARCHAR(1024) NOT NULL,
			storage_key VARCHAR(512) NOT NULL,
			PRIMARY KEY (complaint_id, position)
		)`},
	{6, "create_volunteer_assignments", `
		CREATE TABLE IF NOT EXISTS volunteer_assignments (
			volunteer_id CHAR(36) NOT NULL,
			complaint_id CHAR(36) NOT NULL,
			assigned_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (volunteer_id, complaint_id),
			INDEX idx_assignments_complaint (complaint_id)
		)`},
	{7, "create_votes", `
		CREATE TABLE IF NOT EXISTS votes (
			id CHAR(36) PRIMARY KEY,
			user_id CHAR(36) NOT NULL,
			complaint_id CHAR(36) NOT NULL,
			vote_type ENUM('upvote', 'downvote') NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uniq_votes_user_complaint (user_id, complaint_id),
			INDEX idx_votes_complaint (complaint_id, vote_type)
		)`},
	{8, "create_comments", `
		CREATE TABLE IF NOT EXISTS comments (
			id CHAR(36) PRIMARY KEY,
			complaint_id CHAR(36) NOT NULL,
			author_id CHAR(36) NOT NULL,
			author_role ENUM('user', 'volunteer', 'admin') NOT NULL,
			content VARCHAR(500) NOT NULL,
			likes INT UNSIGNED NOT NULL DEFAULT 0,
			created_at TIMESTAMP(3) DEFAULT CURRENT_TIMESTAMP(3),
			INDEX idx_comments_complaint (complaint_id, created_at)
		)`},
	{9, "create_comment_likes", `
		CREATE TABLE IF NOT EXISTS comment_likes (
			comment_id CHAR(36) NOT NULL,
			identity_id CHAR(36) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (comment_id, identity_id)
		)`},
}

// InitSchema applies every migration that is not yet recorded in schema_migrations.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, m := range Migrations {
		if applied[m.Version] {
			continue
		}
		log.Infof("Applying migration %d: %s", m.Version, m.Name)
		if _, err := db.ExecContext(ctx, m.Up); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", m.Version, err)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cleanstreet/backend/server/api"
	"cleanstreet/common"

	"github.com/google/uuid"
)

const (
	AdminRoleAdmin = "admin"
	AdminRoleSuper = "super_admin"
)

const adminSelect = "SELECT id, name, email, role, is_active, last_login, created_at FROM admins"

func scanAdmin(s rowScanner, extra ...any) (*api.AdminRecord, error) {
	var (
		a         api.AdminRecord
		lastLogin sql.NullTime
	)
	dest := append([]any{&a.Id, &a.Name, &a.Email, &a.Role, &a.IsActive, &lastLogin, &a.CreatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		a.LastLogin = &lastLogin.Time
	}
	return &a, nil
}

func CreateAdmin(ctx context.Context, db *sql.DB, name, email, passwordHash, role string) (*api.AdminRecord, error) {
	if role != AdminRoleSuper {
		role = AdminRoleAdmin
	}
	var taken int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM admins WHERE email = ?", email).Scan(&taken); err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if taken > 0 {
		return nil, ErrEmailTaken
	}

	a := &api.AdminRecord{
		Id:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	result, err := db.ExecContext(ctx,
		"INSERT INTO admins (id, name, email, password_hash, role, is_active) VALUES (?, ?, ?, ?, ?, TRUE)",
		a.Id, a.Name, a.Email, passwordHash, a.Role)
	common.LogResult("createAdmin", result, err, true)
	if err != nil {
		return nil, insertError("admin", err)
	}
	return a, nil
}

func GetAdmin(ctx context.Context, db *sql.DB, id string) (*api.AdminRecord, error) {
	a, err := scanAdmin(db.QueryRowContext(ctx, adminSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read admin %s: %w", id, err)
	}
	return a, nil
}

// AdminCredentials returns the admin with the given email and their password hash.
func AdminCredentials(ctx context.Context, db *sql.DB, email string) (*api.AdminRecord, string, error) {
	var hash string
	a, err := scanAdmin(db.QueryRowContext(ctx,
		"SELECT id, name, email, role, is_active, last_login, created_at, password_hash FROM admins WHERE email = ?", email), &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrAdminNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read admin credentials: %w", err)
	}
	return a, hash, nil
}

func TouchAdminLogin(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, "UPDATE admins SET last_login = ? WHERE id = ?", time.Now().UTC(), id)
	common.LogResult("touchAdminLogin", result, err, true)
	return err
}

func ListAdmins(ctx context.Context, db *sql.DB) ([]*api.AdminRecord, error) {
	rows, err := db.QueryContext(ctx, adminSelect+" ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query admins: %w", err)
	}
	defer rows.Close()

	admins := []*api.AdminRecord{}
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

// ToggleAdminActive flips is_active. Super admins cannot be deactivated.
func ToggleAdminActive(ctx context.Context, db *sql.DB, id string) (*api.AdminRecord, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	a, err := scanAdmin(tx.QueryRowContext(ctx, adminSelect+" WHERE id = ? FOR UPDATE", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock admin %s: %w", id, err)
	}
	if a.Role == AdminRoleSuper {
		return nil, ErrSuperAdminImmutable
	}
	a.IsActive = !a.IsActive
	result, err := tx.ExecContext(ctx, "UPDATE admins SET is_active = ? WHERE id = ?", a.IsActive, id)
	common.LogResult("toggleAdminActive", result, err, true)
	if err != nil {
		return nil, fmt.Errorf("failed to update admin: %w", err)
	}
	return a, tx.Commit()
}

// CountAdmins returns the number of admin accounts and how many are super admins.
func CountAdmins(ctx context.Context, db *sql.DB) (total, super int, err error) {
	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(role = 'super_admin'), 0) FROM admins").Scan(&total, &super)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return total, super, nil
}

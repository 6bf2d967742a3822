package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cleanstreet/backend/lifecycle"
	"cleanstreet/common"
)

// Account selects which identity table a credential operation targets.
type Account string

const (
	AccountUser      Account = "users"
	AccountVolunteer Account = "volunteers"
	AccountAdmin     Account = "admins"
)

func (a Account) notFound() error {
	switch a {
	case AccountVolunteer:
		return ErrVolunteerNotFound
	case AccountAdmin:
		return ErrAdminNotFound
	}
	return ErrUserNotFound
}

func (a Account) valid() error {
	switch a {
	case AccountUser, AccountVolunteer, AccountAdmin:
		return nil
	}
	return fmt.Errorf("unknown account kind %q", string(a))
}

// SetResetToken stores the digest of a password reset token for the account
// with the given email and returns the account id and name.
func SetResetToken(ctx context.Context, db *sql.DB, acct Account, email, digest string, expires time.Time) (id, name string, err error) {
	if err := acct.valid(); err != nil {
		return "", "", err
	}
	err = db.QueryRowContext(ctx, fmt.Sprintf("SELECT id, name FROM %s WHERE email = ?", acct), email).Scan(&id, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", acct.notFound()
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s by email: %w", acct, err)
	}
	result, err := db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET reset_password_token = ?, reset_password_expire = ? WHERE id = ?", acct),
		digest, expires.UTC(), id)
	common.LogResult("setResetToken", result, err, true)
	if err != nil {
		return "", "", fmt.Errorf("failed to store reset token: %w", err)
	}
	return id, name, nil
}

// ClearResetToken reverts a stored reset token, used when the reset email could not be sent.
func ClearResetToken(ctx context.Context, db *sql.DB, acct Account, id string) error {
	if err := acct.valid(); err != nil {
		return err
	}
	result, err := db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET reset_password_token = NULL, reset_password_expire = NULL WHERE id = ?", acct), id)
	common.LogResult("clearResetToken", result, err, true)
	return err
}

// ResetPassword replaces the password of the account holding an unexpired
// token with the given digest and consumes the token.
func ResetPassword(ctx context.Context, db *sql.DB, acct Account, digest, passwordHash string) (string, error) {
	if err := acct.valid(); err != nil {
		return "", err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id FROM %s WHERE reset_password_token = ? AND reset_password_expire > ? FOR UPDATE", acct),
		digest, time.Now().UTC()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidResetToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to read reset token: %w", err)
	}
	result, err := tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET password_hash = ?, reset_password_token = NULL, reset_password_expire = NULL WHERE id = ?", acct),
		passwordHash, id)
	common.LogResult("resetPassword", result, err, true)
	if err != nil {
		return "", fmt.Errorf("failed to update password: %w", err)
	}
	return id, tx.Commit()
}

// CheckActive verifies that the identity behind a token still exists and may
// act: users must not be blocked, volunteers must be approved and admins active.
func CheckActive(ctx context.Context, db *sql.DB, acct Account, id string) error {
	var err error
	switch acct {
	case AccountUser:
		var blocked bool
		err = db.QueryRowContext(ctx, "SELECT is_blocked FROM users WHERE id = ?", id).Scan(&blocked)
		if err == nil && blocked {
			return ErrIdentityInactive
		}
	case AccountVolunteer:
		var status string
		err = db.QueryRowContext(ctx, "SELECT status FROM volunteers WHERE id = ?", id).Scan(&status)
		if err == nil && lifecycle.CanWork(lifecycle.VolunteerStatus(status)) != nil {
			return ErrIdentityInactive
		}
	case AccountAdmin:
		var active bool
		err = db.QueryRowContext(ctx, "SELECT is_active FROM admins WHERE id = ?", id).Scan(&active)
		if err == nil && !active {
			return ErrIdentityInactive
		}
	default:
		return acct.valid()
	}
	if errors.Is(err, sql.ErrNoRows) {
		return acct.notFound()
	}
	if err != nil {
		return fmt.Errorf("failed to check %s %s: %w", acct, id, err)
	}
	return nil
}

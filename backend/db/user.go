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

type NewUser struct {
	Name         string
	Username     string
	Email        string
	PasswordHash string
	State        string
	City         string
}

const userSelect = `
	SELECT u.id, u.name, u.username, u.email, u.state, u.city, u.is_blocked, u.created_at,
		(SELECT COUNT(*) FROM complaints c WHERE c.user_id = u.id)
	FROM users u`

func scanUser(s rowScanner) (*api.User, error) {
	var u api.User
	if err := s.Scan(&u.Id, &u.Name, &u.Username, &u.Email, &u.State, &u.City, &u.IsBlocked, &u.CreatedAt,
		&u.ComplaintsCount); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser registers a citizen. The username defaults to the email.
func CreateUser(ctx context.Context, db *sql.DB, n *NewUser) (*api.User, error) {
	if n.Username == "" {
		n.Username = n.Email
	}
	var taken int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE email = ?", n.Email).Scan(&taken); err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if taken > 0 {
		return nil, ErrEmailTaken
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE username = ?", n.Username).Scan(&taken); err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if taken > 0 {
		return nil, ErrUsernameTaken
	}

	u := &api.User{
		Id:        uuid.NewString(),
		Name:      n.Name,
		Username:  n.Username,
		Email:     n.Email,
		State:     n.State,
		City:      n.City,
		CreatedAt: time.Now().UTC(),
	}
	result, err := db.ExecContext(ctx, `
		INSERT INTO users (id, name, username, email, password_hash, state, city)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Id, u.Name, u.Username, u.Email, n.PasswordHash, u.State, u.City)
	common.LogResult("createUser", result, err, true)
	if err != nil {
		return nil, insertError("user", err)
	}
	return u, nil
}

func GetUser(ctx context.Context, db *sql.DB, id string) (*api.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, userSelect+" WHERE u.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user %s: %w", id, err)
	}
	return u, nil
}

// UserCredentials returns the user with the given email and their password hash.
func UserCredentials(ctx context.Context, db *sql.DB, email string) (*api.User, string, error) {
	var (
		u    api.User
		hash string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, name, username, email, is_blocked, created_at, password_hash FROM users WHERE email = ?", email).
		Scan(&u.Id, &u.Name, &u.Username, &u.Email, &u.IsBlocked, &u.CreatedAt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrUserNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read user credentials: %w", err)
	}
	return &u, hash, nil
}

// ListUsers returns citizens newest first, optionally filtered by blocked state.
func ListUsers(ctx context.Context, db *sql.DB, blocked *bool) ([]*api.User, error) {
	query := userSelect
	var args []any
	if blocked != nil {
		query += " WHERE u.is_blocked = ?"
		args = append(args, *blocked)
	}
	rows, err := db.QueryContext(ctx, query+" ORDER BY u.created_at DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []*api.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ToggleUserBlock flips the blocked flag and returns the new value.
func ToggleUserBlock(ctx context.Context, db *sql.DB, id string) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var blocked bool
	err = tx.QueryRowContext(ctx, "SELECT is_blocked FROM users WHERE id = ? FOR UPDATE", id).Scan(&blocked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrUserNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock user %s: %w", id, err)
	}
	blocked = !blocked
	result, err := tx.ExecContext(ctx, "UPDATE users SET is_blocked = ? WHERE id = ?", blocked, id)
	common.LogResult("toggleUserBlock", result, err, true)
	if err != nil {
		return false, fmt.Errorf("failed to update user: %w", err)
	}
	return blocked, tx.Commit()
}

// DeleteUser removes the account. Complaints the user filed are kept.
func DeleteUser(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get status of user deletion: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func UserCounts(ctx context.Context, db *sql.DB) (total, blocked int, err error) {
	err = db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(is_blocked), 0) FROM users").Scan(&total, &blocked)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count users: %w", err)
	}
	return total, blocked, nil
}

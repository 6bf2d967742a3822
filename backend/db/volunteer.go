package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cleanstreet/backend/lifecycle"
	"cleanstreet/backend/server/api"
	"cleanstreet/common"

	"github.com/google/uuid"
)

type NewVolunteer struct {
	Name         string
	Email        string
	PasswordHash string
	Phone        string
	Address      string
	Status       lifecycle.VolunteerStatus
	ApprovedBy   string
}

const volunteerSelect = `
	SELECT id, name, email, phone, address, status, approved_by, approved_at, created_at
	FROM volunteers`

func scanVolunteer(s rowScanner) (*api.Volunteer, error) {
	var (
		v          api.Volunteer
		status     string
		approvedBy sql.NullString
		approvedAt sql.NullTime
	)
	if err := s.Scan(&v.Id, &v.Name, &v.Email, &v.Phone, &v.Address, &status, &approvedBy, &approvedAt, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.Status = lifecycle.VolunteerStatus(status)
	if approvedBy.Valid {
		v.ApprovedBy = &approvedBy.String
	}
	if approvedAt.Valid {
		v.ApprovedAt = &approvedAt.Time
	}
	v.AssignedComplaints = []string{}
	return &v, nil
}

// CreateVolunteer stores a volunteer. Self-registration passes pending; an
// admin creating the account passes approved with ApprovedBy set.
func CreateVolunteer(ctx context.Context, db *sql.DB, n *NewVolunteer) (*api.Volunteer, error) {
	var taken int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM volunteers WHERE email = ?", n.Email).Scan(&taken); err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if taken > 0 {
		return nil, ErrEmailTaken
	}

	now := time.Now().UTC()
	v := &api.Volunteer{
		Id:                 uuid.NewString(),
		Name:               n.Name,
		Email:              n.Email,
		Phone:              n.Phone,
		Address:            n.Address,
		Status:             n.Status,
		AssignedComplaints: []string{},
		CreatedAt:          now,
	}
	var approvedBy, approvedAt any
	if n.Status == lifecycle.VolunteerApproved && n.ApprovedBy != "" {
		v.ApprovedBy = &n.ApprovedBy
		v.ApprovedAt = &now
		approvedBy, approvedAt = n.ApprovedBy, now
	}
	result, err := db.ExecContext(ctx, `
		INSERT INTO volunteers (id, name, email, password_hash, phone, address, status, approved_by, approved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Id, v.Name, v.Email, n.PasswordHash, v.Phone, v.Address, string(v.Status), approvedBy, approvedAt)
	common.LogResult("createVolunteer", result, err, true)
	if err != nil {
		return nil, insertError("volunteer", err)
	}
	return v, nil
}

// GetVolunteer returns the volunteer with the ids of their assigned complaints.
func GetVolunteer(ctx context.Context, db *sql.DB, id string) (*api.Volunteer, error) {
	v, err := scanVolunteer(db.QueryRowContext(ctx, volunteerSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVolunteerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read volunteer %s: %w", id, err)
	}

	rows, err := db.QueryContext(ctx,
		"SELECT complaint_id FROM volunteer_assignments WHERE volunteer_id = ? ORDER BY assigned_at", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		v.AssignedComplaints = append(v.AssignedComplaints, cid)
	}
	return v, rows.Err()
}

// VolunteerCredentials returns the volunteer with the given email and their password hash.
func VolunteerCredentials(ctx context.Context, db *sql.DB, email string) (*api.Volunteer, string, error) {
	var hash string
	row := db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, address, status, approved_by, approved_at, created_at, password_hash
		FROM volunteers WHERE email = ?`, email)
	var (
		v          api.Volunteer
		status     string
		approvedBy sql.NullString
		approvedAt sql.NullTime
	)
	err := row.Scan(&v.Id, &v.Name, &v.Email, &v.Phone, &v.Address, &status, &approvedBy, &approvedAt, &v.CreatedAt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrVolunteerNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read volunteer credentials: %w", err)
	}
	v.Status = lifecycle.VolunteerStatus(status)
	if approvedBy.Valid {
		v.ApprovedBy = &approvedBy.String
	}
	if approvedAt.Valid {
		v.ApprovedAt = &approvedAt.Time
	}
	v.AssignedComplaints = []string{}
	return &v, hash, nil
}

func ListVolunteers(ctx context.Context, db *sql.DB, status string) ([]*api.Volunteer, error) {
	query := volunteerSelect
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	rows, err := db.QueryContext(ctx, query+" ORDER BY created_at DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query volunteers: %w", err)
	}
	defer rows.Close()

	volunteers := []*api.Volunteer{}
	for rows.Next() {
		v, err := scanVolunteer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan volunteer: %w", err)
		}
		volunteers = append(volunteers, v)
	}
	return volunteers, rows.Err()
}

// ApproveVolunteer records adminId as the approver. Approving an approved
// volunteer fails with lifecycle.ErrAlreadyApproved.
func ApproveVolunteer(ctx context.Context, db *sql.DB, id, adminId string) (*api.Volunteer, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	v, err := scanVolunteer(tx.QueryRowContext(ctx, volunteerSelect+" WHERE id = ? FOR UPDATE", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVolunteerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock volunteer %s: %w", id, err)
	}
	next, err := lifecycle.Approve(v.Status)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, "UPDATE volunteers SET status = ?, approved_by = ?, approved_at = ? WHERE id = ?",
		string(next), adminId, now, id)
	common.LogResult("approveVolunteer", result, err, true)
	if err != nil {
		return nil, fmt.Errorf("failed to approve volunteer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}
	v.Status = next
	v.ApprovedBy = &adminId
	v.ApprovedAt = &now
	return v, nil
}

// ToggleVolunteerBlock flips a volunteer between blocked and approved.
func ToggleVolunteerBlock(ctx context.Context, db *sql.DB, id string) (*api.Volunteer, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	v, err := scanVolunteer(tx.QueryRowContext(ctx, volunteerSelect+" WHERE id = ? FOR UPDATE", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVolunteerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock volunteer %s: %w", id, err)
	}
	v.Status = lifecycle.ToggleBlock(v.Status)
	result, err := tx.ExecContext(ctx, "UPDATE volunteers SET status = ? WHERE id = ?", string(v.Status), id)
	common.LogResult("toggleVolunteerBlock", result, err, true)
	if err != nil {
		return nil, fmt.Errorf("failed to update volunteer: %w", err)
	}
	return v, tx.Commit()
}

// DeleteVolunteer removes the volunteer and their assignment list. Complaints
// keep their assigned_to reference.
func DeleteVolunteer(ctx context.Context, db *sql.DB, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM volunteers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete volunteer: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get status of volunteer deletion: %w", err)
	}
	if n == 0 {
		return ErrVolunteerNotFound
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM volunteer_assignments WHERE volunteer_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete volunteer assignments: %w", err)
	}
	return tx.Commit()
}

// VolunteerCounts returns the number of volunteers per status.
func VolunteerCounts(ctx context.Context, db *sql.DB) (map[lifecycle.VolunteerStatus]int, error) {
	rows, err := db.QueryContext(ctx, "SELECT status, COUNT(*) FROM volunteers GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count volunteers: %w", err)
	}
	defer rows.Close()

	counts := map[lifecycle.VolunteerStatus]int{
		lifecycle.VolunteerPending:  0,
		lifecycle.VolunteerApproved: 0,
		lifecycle.VolunteerBlocked:  0,
	}
	for rows.Next() {
		var (
			st string
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("failed to scan volunteer count: %w", err)
		}
		counts[lifecycle.VolunteerStatus(st)] = n
	}
	return counts, rows.Err()
}

package db

import (
	"context"
	"database/sql"
	"fmt"

	"cleanstreet/backend/lifecycle"
	"cleanstreet/backend/server/api"
)

// Dashboard gathers the admin overview counters.
func Dashboard(ctx context.Context, db *sql.DB) (*api.DashboardStats, error) {
	var d api.DashboardStats

	byStatus, err := CountComplaintsByStatus(ctx, db, api.ComplaintFilter{})
	if err != nil {
		return nil, err
	}
	byPriority, err := CountComplaintsByPriority(ctx, db)
	if err != nil {
		return nil, err
	}
	d.Complaints.ByStatus = byStatus
	d.Complaints.ByPriority = byPriority
	for _, n := range byStatus {
		d.Complaints.Total += n
	}

	if d.Users.Total, d.Users.Blocked, err = UserCounts(ctx, db); err != nil {
		return nil, err
	}

	volunteers, err := VolunteerCounts(ctx, db)
	if err != nil {
		return nil, err
	}
	d.Volunteers.Pending = volunteers[lifecycle.VolunteerPending]
	d.Volunteers.Approved = volunteers[lifecycle.VolunteerApproved]
	d.Volunteers.Blocked = volunteers[lifecycle.VolunteerBlocked]
	d.Volunteers.Total = d.Volunteers.Pending + d.Volunteers.Approved + d.Volunteers.Blocked
	return &d, nil
}

// IdentityStats counts accounts per kind for the citizen-facing summary.
func IdentityStats(ctx context.Context, db *sql.DB) (*api.UserStats, error) {
	var s api.UserStats
	err := db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE is_blocked = FALSE),
			(SELECT COUNT(*) FROM volunteers WHERE status = 'approved'),
			(SELECT COUNT(*) FROM admins WHERE is_active = TRUE)`).
		Scan(&s.TotalUsers, &s.ActiveUsers, &s.Volunteers, &s.Admins)
	if err != nil {
		return nil, fmt.Errorf("failed to count identities: %w", err)
	}
	return &s, nil
}

// VolunteerWorkload summarises the complaints assigned to a volunteer.
// Assigned covers both assigned and in_review.
func VolunteerWorkload(ctx context.Context, db *sql.DB, volunteerId string) (*api.VolunteerStats, error) {
	counts, err := CountComplaintsByStatus(ctx, db, api.ComplaintFilter{AssignedTo: volunteerId})
	if err != nil {
		return nil, err
	}
	s := &api.VolunteerStats{
		Assigned: counts[lifecycle.StatusAssigned] + counts[lifecycle.StatusInReview],
		Resolved: counts[lifecycle.StatusResolved],
	}
	for _, n := range counts {
		s.Total += n
	}
	return s, nil
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cleanstreet/backend/lifecycle"
	"cleanstreet/backend/server/api"
	"cleanstreet/common"

	"github.com/apex/log"
	"github.com/google/uuid"
)

// Photo is a stored complaint photo.
type Photo struct {
	URL string
	Key string
}

type NewComplaint struct {
	UserId      string
	Title       string
	Description string
	Address     string
	Priority    lifecycle.Priority
	Location    api.GeoPoint
	Photos      []Photo
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const complaintSelect = `
	SELECT c.id, c.user_id, c.assigned_to, c.title, c.description, c.address,
		ST_Longitude(c.location), ST_Latitude(c.location),
		c.upvotes, c.downvotes, c.status, c.priority, c.created_at, c.updated_at,
		COALESCE(u.name, ''), COALESCE(u.email, ''),
		v.id, COALESCE(v.name, ''), COALESCE(v.email, ''), COALESCE(v.phone, '')
	FROM complaints c
	LEFT JOIN users u ON u.id = c.user_id
	LEFT JOIN volunteers v ON v.id = c.assigned_to`

// pointWKT renders a long-lat point for ST_GeomFromText(?, 4326, 'axis-order=long-lat').
func pointWKT(lng, lat float64) string {
	return fmt.Sprintf("POINT(%s %s)",
		strconv.FormatFloat(lng, 'f', -1, 64),
		strconv.FormatFloat(lat, 'f', -1, 64))
}

func scanComplaint(s rowScanner) (*api.Complaint, error) {
	var (
		c                           api.Complaint
		assignedTo, assigneeId      sql.NullString
		lng, lat                    float64
		status, priority            string
		reporterName, reporterEmail string
		assigneeName, assigneeEmail string
		assigneePhone               string
	)
	err := s.Scan(&c.Id, &c.UserId, &assignedTo, &c.Title, &c.Description, &c.Address,
		&lng, &lat, &c.Upvotes, &c.Downvotes, &status, &priority, &c.CreatedAt, &c.UpdatedAt,
		&reporterName, &reporterEmail,
		&assigneeId, &assigneeName, &assigneeEmail, &assigneePhone)
	if err != nil {
		return nil, err
	}
	c.Status = lifecycle.Status(status)
	c.Priority = lifecycle.Priority(priority)
	c.LocationCoords = api.NewGeoPoint(lng, lat)
	c.Photos = []string{}
	c.Reporter = &api.Person{Id: c.UserId, Name: reporterName, Email: reporterEmail}
	if assignedTo.Valid {
		id := assignedTo.String
		c.AssignedTo = &id
	}
	// A dangling assigned_to has no volunteer row to join.
	if assigneeId.Valid {
		c.Assignee = &api.Person{Id: assigneeId.String, Name: assigneeName, Email: assigneeEmail, Phone: assigneePhone}
	}
	return &c, nil
}

func loadPhotos(ctx context.Context, q querier, complaints []*api.Complaint) error {
	if len(complaints) == 0 {
		return nil
	}
	byId := make(map[string]*api.Complaint, len(complaints))
	args := make([]any, 0, len(complaints))
	for _, c := range complaints {
		byId[c.Id] = c
		args = append(args, c.Id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		"SELECT complaint_id, url FROM complaint_photos WHERE complaint_id IN (%s) ORDER BY complaint_id, position",
		placeholders), args...)
	if err != nil {
		return fmt.Errorf("failed to query complaint photos: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, url string
		if err := rows.Scan(&id, &url); err != nil {
			return fmt.Errorf("failed to scan complaint photo: %w", err)
		}
		if c, ok := byId[id]; ok {
			c.Photos = append(c.Photos, url)
		}
	}
	return rows.Err()
}

func queryComplaints(ctx context.Context, db *sql.DB, query string, args ...any) ([]*api.Complaint, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query complaints: %w", err)
	}
	complaints := []*api.Complaint{}
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan complaint: %w", err)
		}
		complaints = append(complaints, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadPhotos(ctx, db, complaints); err != nil {
		return nil, err
	}
	return complaints, nil
}

func complaintWhere(f api.ComplaintFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		conds = append(conds, "c.status = ?")
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		conds = append(conds, "c.priority = ?")
		args = append(args, f.Priority)
	}
	if f.UserId != "" {
		conds = append(conds, "c.user_id = ?")
		args = append(args, f.UserId)
	}
	if f.AssignedTo != "" {
		conds = append(conds, "c.assigned_to = ?")
		args = append(args, f.AssignedTo)
	}
	if f.Assigned != nil {
		if *f.Assigned {
			conds = append(conds, "c.assigned_to IS NOT NULL")
		} else {
			conds = append(conds, "c.assigned_to IS NULL")
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// CreateComplaint stores a new complaint in the received state together with its photo references.
func CreateComplaint(ctx context.Context, db *sql.DB, n *NewComplaint) (*api.Complaint, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO complaints (id, user_id, title, description, address, location, status, priority)
		VALUES (?, ?, ?, ?, ?, ST_GeomFromText(?, 4326, 'axis-order=long-lat'), ?, ?)`,
		id, n.UserId, n.Title, n.Description, n.Address,
		pointWKT(n.Location.Lng(), n.Location.Lat()), string(lifecycle.StatusReceived), string(n.Priority))
	common.LogResult("createComplaint", result, err, true)
	if err != nil {
		return nil, fmt.Errorf("failed to insert complaint: %w", err)
	}

	urls := make([]string, 0, len(n.Photos))
	for i, p := range n.Photos {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO complaint_photos (complaint_id, position, url, storage_key) VALUES (?, ?, ?, ?)",
			id, i, p.URL, p.Key); err != nil {
			return nil, fmt.Errorf("failed to insert complaint photo: %w", err)
		}
		urls = append(urls, p.URL)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit complaint: %w", err)
	}

	now := time.Now().UTC()
	return &api.Complaint{
		Id:             id,
		UserId:         n.UserId,
		Title:          n.Title,
		Description:    n.Description,
		Address:        n.Address,
		Photos:         urls,
		LocationCoords: n.Location,
		Status:         lifecycle.StatusReceived,
		Priority:       n.Priority,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func GetComplaint(ctx context.Context, db *sql.DB, id string) (*api.Complaint, error) {
	c, err := scanComplaint(db.QueryRowContext(ctx, complaintSelect+" WHERE c.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrComplaintNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read complaint %s: %w", id, err)
	}
	if err := loadPhotos(ctx, db, []*api.Complaint{c}); err != nil {
		return nil, err
	}
	return c, nil
}

// ListComplaints returns complaints matching f, newest first.
func ListComplaints(ctx context.Context, db *sql.DB, f api.ComplaintFilter) ([]*api.Complaint, error) {
	where, args := complaintWhere(f)
	return queryComplaints(ctx, db, complaintSelect+where+" ORDER BY c.created_at DESC", args...)
}

// NearbyComplaints returns located complaints within radius meters of (lng, lat), closest first.
func NearbyComplaints(ctx context.Context, db *sql.DB, lng, lat, radius float64, limit int) ([]*api.Complaint, error) {
	center := pointWKT(lng, lat)
	return queryComplaints(ctx, db, complaintSelect+`
		WHERE (ST_Longitude(c.location) <> 0 OR ST_Latitude(c.location) <> 0)
		AND ST_Distance_Sphere(c.location, ST_GeomFromText(?, 4326, 'axis-order=long-lat')) <= ?
		ORDER BY ST_Distance_Sphere(c.location, ST_GeomFromText(?, 4326, 'axis-order=long-lat'))
		LIMIT ?`, center, radius, center, limit)
}

// ComplaintPins returns the positions of located complaints, optionally limited to vp.
func ComplaintPins(ctx context.Context, db *sql.DB, vp *api.ViewPort) ([]api.MapResult, error) {
	query := `SELECT id, status, ST_Latitude(location), ST_Longitude(location) FROM complaints
		WHERE (ST_Longitude(location) <> 0 OR ST_Latitude(location) <> 0)`
	var args []any
	if vp != nil {
		query += " AND ST_Latitude(location) BETWEEN ? AND ? AND ST_Longitude(location) BETWEEN ? AND ?"
		args = append(args, vp.LatMin, vp.LatMax, vp.LonMin, vp.LonMax)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query complaint pins: %w", err)
	}
	defer rows.Close()

	pins := []api.MapResult{}
	for rows.Next() {
		var (
			r      api.MapResult
			status string
		)
		if err := rows.Scan(&r.ComplaintId, &status, &r.Latitude, &r.Longitude); err != nil {
			return nil, fmt.Errorf("failed to scan complaint pin: %w", err)
		}
		r.Status = lifecycle.Status(status)
		r.Count = 1
		if !r.Status.IsTerminal() {
			r.Open = 1
		}
		pins = append(pins, r)
	}
	return pins, rows.Err()
}

// UpdateComplaintStatus applies a direct status edit by actor. Volunteers may
// only touch complaints currently assigned to them.
func UpdateComplaintStatus(ctx context.Context, db *sql.DB, id string, actor lifecycle.Actor, actorId string, to lifecycle.Status) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		from       string
		assignedTo sql.NullString
	)
	err = tx.QueryRowContext(ctx, "SELECT status, assigned_to FROM complaints WHERE id = ? FOR UPDATE", id).
		Scan(&from, &assignedTo)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if actor == lifecycle.ActorVolunteer {
			return ErrNotAssignedToCaller
		}
		return ErrComplaintNotFound
	case err != nil:
		return fmt.Errorf("failed to lock complaint %s: %w", id, err)
	}
	if actor == lifecycle.ActorVolunteer && (!assignedTo.Valid || assignedTo.String != actorId) {
		return ErrNotAssignedToCaller
	}

	if err := lifecycle.CanTransition(actor, lifecycle.Status(from), to); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, "UPDATE complaints SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", string(to), id)
	common.LogResult("updateComplaintStatus", result, err, true)
	if err != nil {
		return fmt.Errorf("failed to update complaint status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit status update: %w", err)
	}
	log.Infof("Complaint %s status %s -> %s by %s %s", id, from, to, actor, actorId)
	return nil
}

// AssignComplaint binds the complaint to an approved volunteer, forces the
// assigned status and records the complaint on the volunteer's list. A
// previous assignee loses the complaint from their list.
func AssignComplaint(ctx context.Context, db *sql.DB, complaintId, volunteerId string) (*api.Volunteer, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var prev sql.NullString
	err = tx.QueryRowContext(ctx, "SELECT assigned_to FROM complaints WHERE id = ? FOR UPDATE", complaintId).Scan(&prev)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrComplaintNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock complaint %s: %w", complaintId, err)
	}

	v := &api.Volunteer{Id: volunteerId}
	var status string
	err = tx.QueryRowContext(ctx, "SELECT name, email, status FROM volunteers WHERE id = ? FOR UPDATE", volunteerId).
		Scan(&v.Name, &v.Email, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVolunteerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock volunteer %s: %w", volunteerId, err)
	}
	v.Status = lifecycle.VolunteerStatus(status)
	if v.Status != lifecycle.VolunteerApproved {
		return nil, ErrVolunteerNotApproved
	}

	if prev.Valid && prev.String != volunteerId {
		if _, err := tx.ExecContext(ctx, "DELETE FROM volunteer_assignments WHERE volunteer_id = ? AND complaint_id = ?",
			prev.String, complaintId); err != nil {
			return nil, fmt.Errorf("failed to release previous assignee: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, "UPDATE complaints SET assigned_to = ?, status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		volunteerId, string(lifecycle.StatusAssigned), complaintId)
	common.LogResult("assignComplaint", result, err, true)
	if err != nil {
		return nil, fmt.Errorf("failed to assign complaint: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "INSERT IGNORE INTO volunteer_assignments (volunteer_id, complaint_id) VALUES (?, ?)",
		volunteerId, complaintId); err != nil {
		return nil, fmt.Errorf("failed to record assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit assignment: %w", err)
	}
	return v, nil
}

// UnassignComplaint releases the assignee and sends the complaint back to in_review.
func UnassignComplaint(ctx context.Context, db *sql.DB, complaintId string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var assignedTo sql.NullString
	err = tx.QueryRowContext(ctx, "SELECT assigned_to FROM complaints WHERE id = ? FOR UPDATE", complaintId).Scan(&assignedTo)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrComplaintNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock complaint %s: %w", complaintId, err)
	}
	if !assignedTo.Valid {
		return ErrNotAssigned
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM volunteer_assignments WHERE volunteer_id = ? AND complaint_id = ?",
		assignedTo.String, complaintId); err != nil {
		return fmt.Errorf("failed to remove assignment: %w", err)
	}
	result, err := tx.ExecContext(ctx, "UPDATE complaints SET assigned_to = NULL, status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		string(lifecycle.StatusInReview), complaintId)
	common.LogResult("unassignComplaint", result, err, true)
	if err != nil {
		return fmt.Errorf("failed to unassign complaint: %w", err)
	}
	return tx.Commit()
}

// DeleteComplaint removes the complaint with its comments, likes, votes,
// assignment and photo rows in one transaction. It returns the storage keys
// of the removed photos.
func DeleteComplaint(ctx context.Context, db *sql.DB, id string) ([]string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var assignedTo sql.NullString
	err = tx.QueryRowContext(ctx, "SELECT assigned_to FROM complaints WHERE id = ? FOR UPDATE", id).Scan(&assignedTo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrComplaintNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock complaint %s: %w", id, err)
	}

	rows, err := tx.QueryContext(ctx, "SELECT storage_key FROM complaint_photos WHERE complaint_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to read complaint photos: %w", err)
	}
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan photo key: %w", err)
		}
		keys = append(keys, k)
	}
	rows.Close()

	steps := []struct {
		name  string
		query string
	}{
		{"comment likes", "DELETE FROM comment_likes WHERE comment_id IN (SELECT id FROM comments WHERE complaint_id = ?)"},
		{"comments", "DELETE FROM comments WHERE complaint_id = ?"},
		{"votes", "DELETE FROM votes WHERE complaint_id = ?"},
		{"assignments", "DELETE FROM volunteer_assignments WHERE complaint_id = ?"},
		{"photos", "DELETE FROM complaint_photos WHERE complaint_id = ?"},
	}
	for _, s := range steps {
		if _, err := tx.ExecContext(ctx, s.query, id); err != nil {
			return nil, fmt.Errorf("failed to delete complaint %s: %w", s.name, err)
		}
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM complaints WHERE id = ?", id)
	common.LogResult("deleteComplaint", result, err, true)
	if err != nil {
		return nil, fmt.Errorf("failed to delete complaint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit complaint deletion: %w", err)
	}
	return keys, nil
}

// CountComplaintsByStatus groups complaints matching f by status.
func CountComplaintsByStatus(ctx context.Context, db *sql.DB, f api.ComplaintFilter) (map[lifecycle.Status]int, error) {
	where, args := complaintWhere(f)
	rows, err := db.QueryContext(ctx, "SELECT c.status, COUNT(*) FROM complaints c"+where+" GROUP BY c.status", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count complaints by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[lifecycle.Status]int, len(lifecycle.Statuses))
	for _, st := range lifecycle.Statuses {
		counts[st] = 0
	}
	for rows.Next() {
		var (
			st string
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[lifecycle.Status(st)] = n
	}
	return counts, rows.Err()
}

func CountComplaintsByPriority(ctx context.Context, db *sql.DB) (map[lifecycle.Priority]int, error) {
	rows, err := db.QueryContext(ctx, "SELECT priority, COUNT(*) FROM complaints GROUP BY priority")
	if err != nil {
		return nil, fmt.Errorf("failed to count complaints by priority: %w", err)
	}
	defer rows.Close()

	counts := make(map[lifecycle.Priority]int, len(lifecycle.Priorities))
	for _, p := range lifecycle.Priorities {
		counts[p] = 0
	}
	for rows.Next() {
		var (
			p string
			n int
		)
		if err := rows.Scan(&p, &n); err != nil {
			return nil, fmt.Errorf("failed to scan priority count: %w", err)
		}
		counts[lifecycle.Priority(p)] = n
	}
	return counts, rows.Err()
}

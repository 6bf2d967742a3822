package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"cleanstreet/backend/auth"
	"cleanstreet/backend/db"
	"cleanstreet/backend/email"
	"cleanstreet/backend/export"
	"cleanstreet/backend/lifecycle"
	"cleanstreet/backend/notify"
	"cleanstreet/backend/server/api"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// notify hands n to the notifier once the state change is committed. The
// outcome never changes the response.
func (s *Server) notify(ctx context.Context, n *notify.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		log.WithField("kind", string(n.Kind)).Errorf("Failed to queue notification: %v", err)
	}
}

func (s *Server) volunteerLoginURL() string {
	return s.cfg.AdminURL + "/volunteer/login"
}

// UpdateStatus sets a complaint status. Admins may set any status; volunteers
// only the statuses they are allowed to and only on complaints assigned to them.
func (s *Server) UpdateStatus(c *gin.Context) {
	ident := caller(c)
	ctx := c.Request.Context()

	var args api.StatusArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		badJSON(c, "updateStatus", err)
		return
	}
	if args.Status == "" {
		fail(c, http.StatusBadRequest, "Please provide status")
		return
	}
	to, err := lifecycle.ParseStatus(args.Status)
	if err != nil {
		failWith(c, "updateStatus", err)
		return
	}
	actor := lifecycle.ActorAdmin
	if ident.Role == auth.RoleVolunteer {
		actor = lifecycle.ActorVolunteer
	}
	// Reject disallowed targets before touching storage.
	if err := lifecycle.CanTransition(actor, "", to); err != nil {
		fail(c, http.StatusBadRequest, "Invalid status. Allowed: assigned, in_review, resolved")
		return
	}

	id := c.Param("id")
	if err := db.UpdateComplaintStatus(ctx, s.db, id, actor, ident.Id, to); err != nil {
		failWith(c, "updateStatus", err)
		return
	}
	s.cache.Invalidate(ctx)

	complaint, err := db.GetComplaint(ctx, s.db, id)
	if err != nil {
		failWith(c, "updateStatus", err)
		return
	}
	respond(c, http.StatusOK, "Complaint status updated successfully", gin.H{"complaint": complaint})
}

func (s *Server) AssignComplaint(c *gin.Context) {
	ctx := c.Request.Context()
	var args api.AssignArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		badJSON(c, "assignComplaint", err)
		return
	}
	if args.VolunteerId == "" {
		fail(c, http.StatusBadRequest, "Please provide volunteer ID")
		return
	}

	id := c.Param("id")
	v, err := db.AssignComplaint(ctx, s.db, id, args.VolunteerId)
	if err != nil {
		failWith(c, "assignComplaint", err)
		return
	}
	s.cache.Invalidate(ctx)

	complaint, err := db.GetComplaint(ctx, s.db, id)
	if err != nil {
		failWith(c, "assignComplaint", err)
		return
	}
	s.notify(ctx, notify.Assigned(&email.Assignment{
		VolunteerName:  v.Name,
		VolunteerEmail: v.Email,
		ComplaintId:    complaint.Id,
		Title:          complaint.Title,
		Description:    complaint.Description,
		Address:        complaint.Address,
		Priority:       string(complaint.Priority),
		ReportedAt:     complaint.CreatedAt,
		DashboardURL:   s.volunteerLoginURL(),
	}))
	respond(c, http.StatusOK, "Complaint assigned to volunteer successfully", gin.H{"complaint": complaint})
}

func (s *Server) UnassignComplaint(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := db.UnassignComplaint(ctx, s.db, id); err != nil {
		failWith(c, "unassignComplaint", err)
		return
	}
	s.cache.Invalidate(ctx)

	complaint, err := db.GetComplaint(ctx, s.db, id)
	if err != nil {
		failWith(c, "unassignComplaint", err)
		return
	}
	respond(c, http.StatusOK, "Complaint unassigned successfully", gin.H{"complaint": complaint})
}

// DeleteComplaint removes the complaint with everything hanging off it, then
// drops its stored photos.
func (s *Server) DeleteComplaint(c *gin.Context) {
	ctx := c.Request.Context()
	keys, err := db.DeleteComplaint(ctx, s.db, c.Param("id"))
	if err != nil {
		failWith(c, "deleteComplaint", err)
		return
	}
	for _, k := range keys {
		s.deleteObject(ctx, k)
	}
	s.cache.Invalidate(ctx)
	respond(c, http.StatusOK, "Complaint and associated comments deleted successfully", nil)
}

func adminFilter(c *gin.Context) (api.ComplaintFilter, error) {
	f, err := complaintFilter(c)
	if err != nil {
		return f, err
	}
	switch c.Query("assigned") {
	case "true":
		assigned := true
		f.Assigned = &assigned
	case "false":
		assigned := false
		f.Assigned = &assigned
	}
	return f, nil
}

func (s *Server) AdminListComplaints(c *gin.Context) {
	f, err := adminFilter(c)
	if err != nil {
		failWith(c, "adminListComplaints", err)
		return
	}
	s.listComplaints(c, "adminListComplaints", f)
}

func (s *Server) AdminGetComplaint(c *gin.Context) {
	ctx := c.Request.Context()
	complaint, err := db.GetComplaint(ctx, s.db, c.Param("id"))
	if err != nil {
		failWith(c, "adminGetComplaint", err)
		return
	}
	comments, err := db.ListComments(ctx, s.db, complaint.Id)
	if err != nil {
		failWith(c, "adminGetComplaint", err)
		return
	}
	ok(c, gin.H{"complaint": complaint, "comments": comments})
}

func (s *Server) AdminDeleteComment(c *gin.Context) {
	if err := db.DeleteComment(c.Request.Context(), s.db, c.Param("commentId"), c.Param("id")); err != nil {
		failWith(c, "adminDeleteComment", err)
		return
	}
	respond(c, http.StatusOK, "Comment deleted successfully", nil)
}

// Dashboard reports the admin overview counters, cached when Redis is configured.
func (s *Server) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	var stats api.DashboardStats
	if !s.cache.Get(ctx, "dashboard", &stats) {
		d, err := db.Dashboard(ctx, s.db)
		if err != nil {
			failWith(c, "dashboard", err)
			return
		}
		stats = *d
		s.cache.Set(ctx, "dashboard", stats)
	}
	ok(c, gin.H{"stats": stats})
}

// ExportComplaints downloads the filtered complaints as CSV or Excel.
func (s *Server) ExportComplaints(c *gin.Context) {
	f, err := adminFilter(c)
	if err != nil {
		failWith(c, "exportComplaints", err)
		return
	}
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "xlsx" {
		fail(c, http.StatusBadRequest, "Format must be csv or xlsx")
		return
	}

	complaints, err := db.ListComplaints(c.Request.Context(), s.db, f)
	if err != nil {
		failWith(c, "exportComplaints", err)
		return
	}

	name := fmt.Sprintf("complaints-%s.%s", time.Now().UTC().Format("2006-01-02"), format)
	var (
		data        []byte
		contentType string
	)
	if format == "xlsx" {
		data, err = export.Excel(complaints)
		contentType = xlsxContentType
	} else {
		var buf bytes.Buffer
		err = export.WriteCSV(&buf, complaints)
		data, contentType = buf.Bytes(), "text/csv; charset=utf-8"
	}
	if err != nil {
		failWith(c, "exportComplaints", err)
		return
	}
	log.Infof("Exported %d complaints as %s", len(complaints), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, contentType, data)
}

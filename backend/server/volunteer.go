package server

import (
	"cleanstreet/backend/db"

	"github.com/gin-gonic/gin"
)

// VolunteerComplaints lists the caller's assigned complaints, filterable by
// status and priority.
func (s *Server) VolunteerComplaints(c *gin.Context) {
	f, err := complaintFilter(c)
	if err != nil {
		failWith(c, "volunteerComplaints", err)
		return
	}
	f.AssignedTo = caller(c).Id
	s.listComplaints(c, "volunteerComplaints", f)
}

func (s *Server) VolunteerStats(c *gin.Context) {
	stats, err := db.VolunteerWorkload(c.Request.Context(), s.db, caller(c).Id)
	if err != nil {
		failWith(c, "volunteerStats", err)
		return
	}
	ok(c, gin.H{"stats": stats})
}

func (s *Server) VolunteerComplaint(c *gin.Context) {
	ctx := c.Request.Context()
	complaint, err := db.GetComplaint(ctx, s.db, c.Param("id"))
	if err == nil && (complaint.AssignedTo == nil || *complaint.AssignedTo != caller(c).Id) {
		err = db.ErrNotAssignedToCaller
	}
	if err != nil {
		failWith(c, "volunteerComplaint", err)
		return
	}
	comments, err := db.ListComments(ctx, s.db, complaint.Id)
	if err != nil {
		failWith(c, "volunteerComplaint", err)
		return
	}
	complaint.Comments = comments
	ok(c, gin.H{"complaint": complaint})
}

package server

import (
	"net/http"

	"cleanstreet/backend/db"
	"cleanstreet/backend/email"
	"cleanstreet/backend/lifecycle"
	"cleanstreet/backend/notify"
	"cleanstreet/backend/server/api"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListVolunteers(c *gin.Context) {
	status := c.Query("status")
	if status != "" {
		if _, err := lifecycle.ParseVolunteerStatus(status); err != nil {
			fail(c, http.StatusBadRequest, "Status must be pending, approved or blocked")
			return
		}
	}
	volunteers, err := db.ListVolunteers(c.Request.Context(), s.db, status)
	if err != nil {
		failWith(c, "listVolunteers", err)
		return
	}
	ok(c, gin.H{"count": len(volunteers), "volunteers": volunteers})
}

// CreateVolunteer adds a volunteer that is approved from the start.
func (s *Server) CreateVolunteer(c *gin.Context) {
	var args api.RegisterVolunteerArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		fail(c, http.StatusBadRequest, "Please provide name, email, and password")
		return
	}
	v, created := s.createVolunteer(c, &args, lifecycle.VolunteerApproved, caller(c).Id)
	if !created {
		return
	}
	respond(c, http.StatusCreated, "Volunteer created successfully", gin.H{"volunteer": v})
}

func (s *Server) GetVolunteer(c *gin.Context) {
	v, err := db.GetVolunteer(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		failWith(c, "getVolunteer", err)
		return
	}
	ok(c, gin.H{"volunteer": v})
}

func (s *Server) ApproveVolunteer(c *gin.Context) {
	ctx := c.Request.Context()
	v, err := db.ApproveVolunteer(ctx, s.db, c.Param("id"), caller(c).Id)
	if err != nil {
		failWith(c, "approveVolunteer", err)
		return
	}
	s.cache.Invalidate(ctx)
	s.notify(ctx, notify.Approved(&email.Approval{
		VolunteerName:  v.Name,
		VolunteerEmail: v.Email,
		LoginURL:       s.volunteerLoginURL(),
	}))
	respond(c, http.StatusOK, "Volunteer approved successfully", gin.H{"volunteer": v})
}

func (s *Server) BlockVolunteer(c *gin.Context) {
	ctx := c.Request.Context()
	v, err := db.ToggleVolunteerBlock(ctx, s.db, c.Param("id"))
	if err != nil {
		failWith(c, "blockVolunteer", err)
		return
	}
	s.cache.Invalidate(ctx)
	message := "Volunteer unblocked successfully"
	if v.Status == lifecycle.VolunteerBlocked {
		message = "Volunteer blocked successfully"
	}
	respond(c, http.StatusOK, message, gin.H{"volunteer": v})
}

// DeleteVolunteer removes the account. Complaints it was working on keep
// pointing at it until an admin reassigns them.
func (s *Server) DeleteVolunteer(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := db.DeleteVolunteer(ctx, s.db, id); err != nil {
		failWith(c, "deleteVolunteer", err)
		return
	}
	s.cache.Invalidate(ctx)
	log.Infof("Admin %s deleted volunteer %s", caller(c).Id, id)
	respond(c, http.StatusOK, "Volunteer deleted successfully", nil)
}

func blockedFilter(c *gin.Context) *bool {
	var blocked bool
	switch c.Query("isBlocked") {
	case "true":
		blocked = true
	case "false":
	default:
		return nil
	}
	return &blocked
}

func (s *Server) AdminListUsers(c *gin.Context) {
	users, err := db.ListUsers(c.Request.Context(), s.db, blockedFilter(c))
	if err != nil {
		failWith(c, "adminListUsers", err)
		return
	}
	ok(c, gin.H{"count": len(users), "users": users})
}

// AdminGetUser returns the user together with every complaint they filed.
func (s *Server) AdminGetUser(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := db.GetUser(ctx, s.db, c.Param("id"))
	if err != nil {
		failWith(c, "adminGetUser", err)
		return
	}
	complaints, err := db.ListComplaints(ctx, s.db, api.ComplaintFilter{UserId: user.Id})
	if err != nil {
		failWith(c, "adminGetUser", err)
		return
	}
	ok(c, gin.H{"user": user, "complaints": complaints})
}

func (s *Server) BlockUser(c *gin.Context) {
	ctx := c.Request.Context()
	blocked, err := db.ToggleUserBlock(ctx, s.db, c.Param("id"))
	if err != nil {
		failWith(c, "blockUser", err)
		return
	}
	s.cache.Invalidate(ctx)
	message := "User unblocked successfully"
	if blocked {
		message = "User blocked successfully"
	}
	respond(c, http.StatusOK, message, gin.H{"isBlocked": blocked})
}

func (s *Server) DeleteUser(c *gin.Context) {
	ctx := c.Request.Context()
	if err := db.DeleteUser(ctx, s.db, c.Param("id")); err != nil {
		failWith(c, "deleteUser", err)
		return
	}
	s.cache.Invalidate(ctx)
	respond(c, http.StatusOK, "User deleted successfully", nil)
}

// ListUsers is the signed-in directory of citizens. Blocked accounts are left out.
func (s *Server) ListUsers(c *gin.Context) {
	active := false
	users, err := db.ListUsers(c.Request.Context(), s.db, &active)
	if err != nil {
		failWith(c, "listUsers", err)
		return
	}
	ok(c, gin.H{"count": len(users), "users": users})
}

func (s *Server) IdentityStats(c *gin.Context) {
	stats, err := db.IdentityStats(c.Request.Context(), s.db)
	if err != nil {
		failWith(c, "identityStats", err)
		return
	}
	ok(c, gin.H{"stats": stats})
}

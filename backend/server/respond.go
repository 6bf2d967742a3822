package server

import (
	"errors"
	"net/http"

	"cleanstreet/backend/db"
	"cleanstreet/backend/lifecycle"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// respond writes the {success, message, ...} envelope every route answers with.
func respond(c *gin.Context, code int, message string, fields gin.H) {
	body := gin.H{"success": code < http.StatusBadRequest}
	if message != "" {
		body["message"] = message
	}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(code, body)
}

func ok(c *gin.Context, fields gin.H) {
	respond(c, http.StatusOK, "", fields)
}

func fail(c *gin.Context, code int, message string) {
	respond(c, code, message, nil)
}

var knownErrors = []struct {
	err     error
	code    int
	message string
}{
	{db.ErrComplaintNotFound, http.StatusNotFound, "Complaint not found"},
	{db.ErrVolunteerNotFound, http.StatusNotFound, "Volunteer not found"},
	{db.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{db.ErrAdminNotFound, http.StatusNotFound, "Admin not found"},
	{db.ErrCommentNotFound, http.StatusNotFound, "Comment not found"},
	{db.ErrNotAssignedToCaller, http.StatusNotFound, "Complaint not found or not assigned to you"},
	{db.ErrEmailTaken, http.StatusBadRequest, "Email is already registered"},
	{db.ErrUsernameTaken, http.StatusBadRequest, "Username is already taken"},
	{db.ErrVolunteerNotApproved, http.StatusBadRequest, "Volunteer is not approved"},
	{db.ErrNotAssigned, http.StatusBadRequest, "Complaint is not assigned to any volunteer"},
	{db.ErrSuperAdminImmutable, http.StatusBadRequest, "Cannot deactivate super admin"},
	{db.ErrInvalidResetToken, http.StatusBadRequest, "Invalid or expired reset token"},
	{lifecycle.ErrAlreadyApproved, http.StatusBadRequest, "Volunteer is already approved"},
	{lifecycle.ErrInvalidStatus, http.StatusBadRequest, "Invalid status value"},
	{lifecycle.ErrInvalidPriority, http.StatusBadRequest, "Invalid priority value"},
	{lifecycle.ErrTransitionNotAllowed, http.StatusBadRequest, "Status change not allowed"},
	{lifecycle.ErrInvalidVoteType, http.StatusBadRequest, "Invalid vote type"},
}

// failWith maps store and lifecycle errors to their HTTP answer. Anything
// unknown is logged under op and reported as a 500.
func failWith(c *gin.Context, op string, err error) {
	for _, k := range knownErrors {
		if errors.Is(err, k.err) {
			fail(c, k.code, k.message)
			return
		}
	}
	log.WithField("op", op).Errorf("Request failed: %v", err)
	fail(c, http.StatusInternalServerError, "Server error")
}

// badJSON answers a body that could not be bound.
func badJSON(c *gin.Context, op string, err error) {
	log.WithField("op", op).Warnf("Invalid request body: %v", err)
	fail(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
}

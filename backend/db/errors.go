package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrComplaintNotFound    = errors.New("complaint not found")
	ErrVolunteerNotFound    = errors.New("volunteer not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrAdminNotFound        = errors.New("admin not found")
	ErrCommentNotFound      = errors.New("comment not found")
	ErrEmailTaken           = errors.New("email already registered")
	ErrUsernameTaken        = errors.New("username is already taken")
	ErrVolunteerNotApproved = errors.New("volunteer is not approved")
	ErrNotAssigned          = errors.New("complaint is not assigned to any volunteer")
	ErrNotAssignedToCaller  = errors.New("complaint not found or not assigned to you")
	ErrSuperAdminImmutable  = errors.New("cannot deactivate super admin")
	ErrInvalidResetToken    = errors.New("invalid or expired reset token")
	ErrIdentityInactive     = errors.New("identity is not active")
)

const errDuplicateEntry = 1062

// insertError reports a unique key violation, as raced by two concurrent
// registrations, as ErrEmailTaken or ErrUsernameTaken.
func insertError(what string, err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == errDuplicateEntry {
		if strings.Contains(me.Message, "username") {
			return ErrUsernameTaken
		}
		return ErrEmailTaken
	}
	return fmt.Errorf("failed to insert %s: %w", what, err)
}

package lifecycle

import (
	"errors"
	"fmt"
)

type VolunteerStatus string

const (
	VolunteerPending  VolunteerStatus = "pending"
	VolunteerApproved VolunteerStatus = "approved"
	VolunteerBlocked  VolunteerStatus = "blocked"
)

var (
	ErrInvalidVolunteerStatus = errors.New("invalid volunteer status")
	ErrAlreadyApproved        = errors.New("volunteer already approved")
	ErrPendingApproval        = errors.New("your account is pending approval by admin")
	ErrVolunteerBlocked       = errors.New("your account has been blocked")
)

func ParseVolunteerStatus(s string) (VolunteerStatus, error) {
	switch VolunteerStatus(s) {
	case VolunteerPending, VolunteerApproved, VolunteerBlocked:
		return VolunteerStatus(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidVolunteerStatus, s)
}

// Approve moves a pending or blocked volunteer to approved.
func Approve(current VolunteerStatus) (VolunteerStatus, error) {
	if current == VolunteerApproved {
		return current, ErrAlreadyApproved
	}
	return VolunteerApproved, nil
}

// ToggleBlock flips blocked back to approved and anything else to blocked.
func ToggleBlock(current VolunteerStatus) VolunteerStatus {
	if current == VolunteerBlocked {
		return VolunteerApproved
	}
	return VolunteerBlocked
}

// CanWork reports whether a volunteer may log in and act on complaints.
func CanWork(status VolunteerStatus) error {
	switch status {
	case VolunteerApproved:
		return nil
	case VolunteerPending:
		return ErrPendingApproval
	case VolunteerBlocked:
		return ErrVolunteerBlocked
	}
	return fmt.Errorf("%w: %q", ErrInvalidVolunteerStatus, status)
}

// Package lifecycle holds the complaint, vote and volunteer state rules.
// Nothing here touches storage; the db package applies these decisions
// inside its transactions.
package lifecycle

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusReceived Status = "received"
	StatusInReview Status = "in_review"
	StatusAssigned Status = "assigned"
	StatusResolved Status = "resolved"
	StatusRejected Status = "rejected"
)

// Statuses lists every complaint status in workflow order.
var Statuses = []Status{StatusReceived, StatusInReview, StatusAssigned, StatusResolved, StatusRejected}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Actor is the kind of identity requesting a status change.
type Actor string

const (
	ActorAdmin     Actor = "admin"
	ActorVolunteer Actor = "volunteer"
)

var (
	ErrInvalidStatus        = errors.New("invalid status value")
	ErrInvalidPriority      = errors.New("invalid priority value")
	ErrTransitionNotAllowed = errors.New("status change not allowed")
)

// volunteerTargets is the set of statuses a volunteer may move an assigned complaint to.
var volunteerTargets = map[Status]bool{
	StatusAssigned: true,
	StatusInReview: true,
	StatusResolved: true,
}

func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// ParsePriority maps an empty value to medium.
func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return PriorityMedium, nil
	}
	for _, p := range Priorities {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

// IsTerminal reports whether no further work is expected on a complaint.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// CanTransition validates a direct status edit by actor.
// Admins may move a complaint from any status to any status. Volunteers are
// limited to the assigned, in_review and resolved targets; whether the
// complaint is assigned to them is checked by the caller against storage.
func CanTransition(actor Actor, from, to Status) error {
	if _, err := ParseStatus(string(to)); err != nil {
		return err
	}
	switch actor {
	case ActorAdmin:
		return nil
	case ActorVolunteer:
		if !volunteerTargets[to] {
			return fmt.Errorf("%w: volunteer cannot set %q", ErrTransitionNotAllowed, to)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown actor %q moving %q to %q", ErrTransitionNotAllowed, actor, from, to)
	}
}

// StatusGroup buckets statuses for dashboard summaries.
type StatusGroup struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Resolved   int `json:"resolved"`
	Rejected   int `json:"rejected"`
}

// GroupStatuses folds per-status counts into the pending / in-progress /
// resolved buckets shown to citizens. Pending covers received and assigned.
func GroupStatuses(counts map[Status]int) StatusGroup {
	var g StatusGroup
	for st, n := range counts {
		g.Total += n
		switch st {
		case StatusReceived, StatusAssigned:
			g.Pending += n
		case StatusInReview:
			g.InProgress += n
		case StatusResolved:
			g.Resolved += n
		case StatusRejected:
			g.Rejected += n
		}
	}
	return g
}

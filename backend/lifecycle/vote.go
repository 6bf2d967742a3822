package lifecycle

import (
	"errors"
	"fmt"
)

type VoteType string

const (
	Upvote   VoteType = "upvote"
	Downvote VoteType = "downvote"
)

var ErrInvalidVoteType = errors.New("invalid vote type")

func ParseVoteType(s string) (VoteType, error) {
	switch VoteType(s) {
	case Upvote, Downvote:
		return VoteType(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidVoteType, s)
}

// VoteAction is what a cast does to the voter's ledger entry.
type VoteAction int

const (
	VoteCreate VoteAction = iota
	VoteRemove
	VoteSwitch
)

func (a VoteAction) String() string {
	switch a {
	case VoteCreate:
		return "create"
	case VoteRemove:
		return "remove"
	case VoteSwitch:
		return "switch"
	}
	return "unknown"
}

// ResolveVote decides the ledger mutation for a voter who currently holds
// existing (nil for none) and casts requested. Casting the held type again
// withdraws the vote.
func ResolveVote(existing *VoteType, requested VoteType) VoteAction {
	switch {
	case existing == nil:
		return VoteCreate
	case *existing == requested:
		return VoteRemove
	default:
		return VoteSwitch
	}
}

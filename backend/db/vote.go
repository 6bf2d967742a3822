package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cleanstreet/backend/lifecycle"
	"cleanstreet/backend/server/api"

	"github.com/google/uuid"
)

// CastVote applies a vote toggle and recomputes the complaint's counters from
// the ledger. The complaint row lock serializes concurrent votes on it.
func CastVote(ctx context.Context, db *sql.DB, userId, complaintId string, vt lifecycle.VoteType) (*api.VoteResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var locked string
	err = tx.QueryRowContext(ctx, "SELECT id FROM complaints WHERE id = ? FOR UPDATE", complaintId).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrComplaintNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock complaint %s: %w", complaintId, err)
	}

	var (
		voteId   string
		existing *lifecycle.VoteType
		held     string
	)
	err = tx.QueryRowContext(ctx, "SELECT id, vote_type FROM votes WHERE user_id = ? AND complaint_id = ?", userId, complaintId).
		Scan(&voteId, &held)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to read vote: %w", err)
	default:
		h := lifecycle.VoteType(held)
		existing = &h
	}

	res := &api.VoteResult{Action: lifecycle.ResolveVote(existing, vt)}
	switch res.Action {
	case lifecycle.VoteCreate:
		voteId = uuid.NewString()
		if _, err := tx.ExecContext(ctx, "INSERT INTO votes (id, user_id, complaint_id, vote_type) VALUES (?, ?, ?, ?)",
			voteId, userId, complaintId, string(vt)); err != nil {
			return nil, fmt.Errorf("failed to insert vote: %w", err)
		}
	case lifecycle.VoteRemove:
		if _, err := tx.ExecContext(ctx, "DELETE FROM votes WHERE id = ?", voteId); err != nil {
			return nil, fmt.Errorf("failed to delete vote: %w", err)
		}
	case lifecycle.VoteSwitch:
		if _, err := tx.ExecContext(ctx, "UPDATE votes SET vote_type = ? WHERE id = ?", string(vt), voteId); err != nil {
			return nil, fmt.Errorf("failed to switch vote: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE complaints SET
			upvotes = (SELECT COUNT(*) FROM votes WHERE complaint_id = ? AND vote_type = 'upvote'),
			downvotes = (SELECT COUNT(*) FROM votes WHERE complaint_id = ? AND vote_type = 'downvote')
		WHERE id = ?`, complaintId, complaintId, complaintId); err != nil {
		return nil, fmt.Errorf("failed to recompute vote counters: %w", err)
	}
	if err := tx.QueryRowContext(ctx, "SELECT upvotes, downvotes FROM complaints WHERE id = ?", complaintId).
		Scan(&res.Upvotes, &res.Downvotes); err != nil {
		return nil, fmt.Errorf("failed to read vote counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit vote: %w", err)
	}

	if res.Action != lifecycle.VoteRemove {
		res.Vote = &api.Vote{
			Id:          voteId,
			UserId:      userId,
			ComplaintId: complaintId,
			VoteType:    vt,
			CreatedAt:   time.Now().UTC(),
		}
	}
	return res, nil
}

// GetUserVote returns the caller's vote on a complaint, or nil when there is none.
func GetUserVote(ctx context.Context, db *sql.DB, userId, complaintId string) (*api.Vote, error) {
	v := &api.Vote{UserId: userId, ComplaintId: complaintId}
	var vt string
	err := db.QueryRowContext(ctx, "SELECT id, vote_type, created_at FROM votes WHERE user_id = ? AND complaint_id = ?",
		userId, complaintId).Scan(&v.Id, &vt, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read vote: %w", err)
	}
	v.VoteType = lifecycle.VoteType(vt)
	return v, nil
}

func VoteCounts(ctx context.Context, db *sql.DB, complaintId string) (upvotes, downvotes int, err error) {
	err = db.QueryRowContext(ctx, "SELECT upvotes, downvotes FROM complaints WHERE id = ?", complaintId).
		Scan(&upvotes, &downvotes)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrComplaintNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read vote counters: %w", err)
	}
	return upvotes, downvotes, nil
}

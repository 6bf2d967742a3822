package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cleanstreet/backend/server/api"
	"cleanstreet/common"

	"github.com/google/uuid"
)

// ListComments returns the complaint's comments newest first with author names and likers.
func ListComments(ctx context.Context, db *sql.DB, complaintId string) ([]api.Comment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.id, c.complaint_id, c.author_id, c.author_role, c.content, c.likes, c.created_at,
			ANY_VALUE(COALESCE(u.name, v.name, a.name, '')),
			COALESCE(GROUP_CONCAT(cl.identity_id), '')
		FROM comments c
		LEFT JOIN users u ON c.author_role = 'user' AND u.id = c.author_id
		LEFT JOIN volunteers v ON c.author_role = 'volunteer' AND v.id = c.author_id
		LEFT JOIN admins a ON c.author_role = 'admin' AND a.id = c.author_id
		LEFT JOIN comment_likes cl ON cl.comment_id = c.id
		WHERE c.complaint_id = ?
		GROUP BY c.id
		ORDER BY c.created_at DESC`, complaintId)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	comments := []api.Comment{}
	for rows.Next() {
		var (
			c      api.Comment
			likers string
		)
		if err := rows.Scan(&c.Id, &c.ComplaintId, &c.AuthorId, &c.AuthorRole, &c.Content, &c.Likes, &c.CreatedAt,
			&c.AuthorName, &likers); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.LikedBy = []string{}
		if likers != "" {
			c.LikedBy = strings.Split(likers, ",")
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func CreateComment(ctx context.Context, db *sql.DB, complaintId, authorId, authorRole, content string) (*api.Comment, error) {
	var exists string
	err := db.QueryRowContext(ctx, "SELECT id FROM complaints WHERE id = ?", complaintId).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrComplaintNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read complaint %s: %w", complaintId, err)
	}

	c := &api.Comment{
		Id:          uuid.NewString(),
		ComplaintId: complaintId,
		AuthorId:    authorId,
		AuthorRole:  authorRole,
		Content:     content,
		LikedBy:     []string{},
		CreatedAt:   time.Now().UTC(),
	}
	result, err := db.ExecContext(ctx,
		"INSERT INTO comments (id, complaint_id, author_id, author_role, content) VALUES (?, ?, ?, ?, ?)",
		c.Id, c.ComplaintId, c.AuthorId, c.AuthorRole, c.Content)
	common.LogResult("createComment", result, err, true)
	if err != nil {
		return nil, fmt.Errorf("failed to insert comment: %w", err)
	}
	return c, nil
}

// ToggleCommentLike adds or removes identityId from the comment's likers and
// returns the recomputed like count.
func ToggleCommentLike(ctx context.Context, db *sql.DB, commentId, identityId string) (*api.LikeResponse, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var likes int
	err = tx.QueryRowContext(ctx, "SELECT likes FROM comments WHERE id = ? FOR UPDATE", commentId).Scan(&likes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock comment %s: %w", commentId, err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM comment_likes WHERE comment_id = ? AND identity_id = ?", commentId, identityId)
	if err != nil {
		return nil, fmt.Errorf("failed to remove like: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get status of like removal: %w", err)
	}
	res := &api.LikeResponse{}
	if removed == 0 {
		if _, err := tx.ExecContext(ctx, "INSERT INTO comment_likes (comment_id, identity_id) VALUES (?, ?)", commentId, identityId); err != nil {
			return nil, fmt.Errorf("failed to add like: %w", err)
		}
		res.IsLiked = true
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE comments SET likes = (SELECT COUNT(*) FROM comment_likes WHERE comment_id = ?) WHERE id = ?",
		commentId, commentId); err != nil {
		return nil, fmt.Errorf("failed to recompute likes: %w", err)
	}
	if err := tx.QueryRowContext(ctx, "SELECT likes FROM comments WHERE id = ?", commentId).Scan(&res.Likes); err != nil {
		return nil, fmt.Errorf("failed to read likes: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit like: %w", err)
	}
	return res, nil
}

// CommentAuthor returns who wrote a comment and which complaint it belongs to.
func CommentAuthor(ctx context.Context, db *sql.DB, commentId string) (authorId, complaintId string, err error) {
	err = db.QueryRowContext(ctx, "SELECT author_id, complaint_id FROM comments WHERE id = ?", commentId).
		Scan(&authorId, &complaintId)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrCommentNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to read comment %s: %w", commentId, err)
	}
	return authorId, complaintId, nil
}

// DeleteComment removes a comment and its likes. A non-empty complaintId
// must match the comment's complaint.
func DeleteComment(ctx context.Context, db *sql.DB, commentId, complaintId string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var owner string
	err = tx.QueryRowContext(ctx, "SELECT complaint_id FROM comments WHERE id = ? FOR UPDATE", commentId).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && complaintId != "" && owner != complaintId) {
		return ErrCommentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock comment %s: %w", commentId, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM comment_likes WHERE comment_id = ?", commentId); err != nil {
		return fmt.Errorf("failed to delete comment likes: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM comments WHERE id = ?", commentId)
	common.LogResult("deleteComment", result, err, true)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return tx.Commit()
}

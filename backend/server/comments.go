package server

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"cleanstreet/backend/auth"
	"cleanstreet/backend/db"
	"cleanstreet/backend/server/api"

	"github.com/gin-gonic/gin"
)

const maxCommentLen = 500

func (s *Server) ListComments(c *gin.Context) {
	comments, err := db.ListComments(c.Request.Context(), s.db, c.Param("complaintId"))
	if err != nil {
		failWith(c, "listComments", err)
		return
	}
	ok(c, gin.H{"count": len(comments), "comments": comments})
}

func (s *Server) CreateComment(c *gin.Context) {
	ident := caller(c)
	var args api.CommentArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		badJSON(c, "createComment", err)
		return
	}
	args.Content = strings.TrimSpace(args.Content)
	if args.ComplaintId == "" || args.Content == "" {
		fail(c, http.StatusBadRequest, "Please provide complaint ID and content")
		return
	}
	if utf8.RuneCountInString(args.Content) > maxCommentLen {
		fail(c, http.StatusBadRequest, fmt.Sprintf("Comment cannot exceed %d characters", maxCommentLen))
		return
	}

	comment, err := db.CreateComment(c.Request.Context(), s.db, args.ComplaintId, ident.Id, string(ident.Role), args.Content)
	if err != nil {
		failWith(c, "createComment", err)
		return
	}
	respond(c, http.StatusCreated, "Comment posted successfully", gin.H{"comment": comment})
}

func (s *Server) LikeComment(c *gin.Context) {
	res, err := db.ToggleCommentLike(c.Request.Context(), s.db, c.Param("id"), caller(c).Id)
	if err != nil {
		failWith(c, "likeComment", err)
		return
	}
	message := "Comment unliked"
	if res.IsLiked {
		message = "Comment liked"
	}
	respond(c, http.StatusOK, message, gin.H{"likes": res.Likes, "isLiked": res.IsLiked})
}

// DeleteComment lets the author or an admin remove a comment.
func (s *Server) DeleteComment(c *gin.Context) {
	ident := caller(c)
	ctx := c.Request.Context()
	id := c.Param("id")

	author, _, err := db.CommentAuthor(ctx, s.db, id)
	if err != nil {
		failWith(c, "deleteComment", err)
		return
	}
	if author != ident.Id && ident.Role != auth.RoleAdmin {
		fail(c, http.StatusForbidden, "Not authorized to delete this comment")
		return
	}
	if err := db.DeleteComment(ctx, s.db, id, ""); err != nil {
		failWith(c, "deleteComment", err)
		return
	}
	respond(c, http.StatusOK, "Comment deleted successfully", nil)
}

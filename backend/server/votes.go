package server

import (
	"net/http"

	"cleanstreet/backend/db"
	"cleanstreet/backend/lifecycle"
	"cleanstreet/backend/server/api"

	"github.com/gin-gonic/gin"
)

// CastVote creates, switches or withdraws the caller's vote on a complaint.
func (s *Server) CastVote(c *gin.Context) {
	ctx := c.Request.Context()
	var args api.VoteArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		badJSON(c, "castVote", err)
		return
	}
	vt, err := lifecycle.ParseVoteType(args.VoteType)
	if err != nil {
		fail(c, http.StatusBadRequest, `Invalid vote type. Must be "upvote" or "downvote"`)
		return
	}

	res, err := db.CastVote(ctx, s.db, caller(c).Id, c.Param("complaintId"), vt)
	if err != nil {
		failWith(c, "castVote", err)
		return
	}

	code, message := http.StatusOK, "Vote updated"
	switch res.Action {
	case lifecycle.VoteCreate:
		code, message = http.StatusCreated, "Vote registered"
	case lifecycle.VoteRemove:
		message = "Vote removed"
	}
	respond(c, code, message, gin.H{
		"vote":      res.Vote,
		"upvotes":   res.Upvotes,
		"downvotes": res.Downvotes,
	})
}

func (s *Server) GetVote(c *gin.Context) {
	vote, err := db.GetUserVote(c.Request.Context(), s.db, caller(c).Id, c.Param("complaintId"))
	if err != nil {
		failWith(c, "getVote", err)
		return
	}
	ok(c, gin.H{"vote": vote})
}

func (s *Server) VoteStats(c *gin.Context) {
	up, down, err := db.VoteCounts(c.Request.Context(), s.db, c.Param("complaintId"))
	if err != nil {
		failWith(c, "voteStats", err)
		return
	}
	ok(c, gin.H{"stats": gin.H{"upvotes": up, "downvotes": down, "total": up + down}})
}

package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/fundgate/internal/middleware"
	"github.com/huangang/fundgate/internal/services"
	"github.com/huangang/fundgate/pkg/response"
)

type VoteHandler struct {
	voteService *services.VoteService
}

func NewVoteHandler(votes *services.VoteService) *VoteHandler {
	return &VoteHandler{voteService: votes}
}

type castVoteRequest struct {
	Value int8 `json:"value" binding:"required,oneof=1 -1"`
}

// Cast records or changes the caller's vote
// POST /api/projects/:id/vote
func (h *VoteHandler) Cast(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req castVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "value must be 1 or -1")
		return
	}

	res, err := h.voteService.CastVote(c.Request.Context(), middleware.GetUserID(c), id, req.Value)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, res)
}

// Remove withdraws the caller's vote
// DELETE /api/projects/:id/vote
func (h *VoteHandler) Remove(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.voteService.RemoveVote(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, res)
}

// Tally
// GET /api/projects/:id/tally
func (h *VoteHandler) Tally(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	view, err := h.voteService.GetTally(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, view)
}

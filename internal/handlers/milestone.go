package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/fundgate/internal/middleware"
	"github.com/huangang/fundgate/internal/services"
	"github.com/huangang/fundgate/pkg/response"
)

type MilestoneHandler struct {
	milestoneService *services.MilestoneService
	escrowService    *services.EscrowService
}

func NewMilestoneHandler(milestones *services.MilestoneService, escrow *services.EscrowService) *MilestoneHandler {
	return &MilestoneHandler{milestoneService: milestones, escrowService: escrow}
}

// GetByID
// GET /api/milestones/:id
func (h *MilestoneHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	m, err := h.milestoneService.GetMilestone(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, m)
}

// SubmitProof attaches completion evidence
// POST /api/milestones/:id/proof
func (h *MilestoneHandler) SubmitProof(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req services.SubmitProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	m, err := h.milestoneService.SubmitProof(c.Request.Context(), middleware.CurrentActor(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, m)
}

// Review approves or rejects submitted proof. Approval locks the milestone amount in escrow.
// POST /api/milestones/:id/review
func (h *MilestoneHandler) Review(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req services.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.milestoneService.ReviewMilestone(c.Request.Context(), middleware.CurrentActor(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, res)
}

// Release pays a locked milestone out to its owner
// POST /api/milestones/:id/release
func (h *MilestoneHandler) Release(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.escrowService.ReleaseMilestoneFunds(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, res)
}

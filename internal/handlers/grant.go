package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/fundgate/internal/middleware"
	"github.com/huangang/fundgate/internal/models"
	"github.com/huangang/fundgate/internal/services"
	"github.com/huangang/fundgate/pkg/response"
)

type GrantHandler struct {
	grantService     *services.GrantService
	milestoneService *services.MilestoneService
}

func NewGrantHandler(grants *services.GrantService, milestones *services.MilestoneService) *GrantHandler {
	return &GrantHandler{grantService: grants, milestoneService: milestones}
}

// Submit files a grant application
// POST /api/grant-applications
func (h *GrantHandler) Submit(c *gin.Context) {
	var req services.CreateGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	app, err := h.grantService.Submit(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Created(c, app)
}

// List
// GET /api/grant-applications
func (h *GrantHandler) List(c *gin.Context) {
	var req services.GrantListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.grantService.List(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, resp)
}

// GetByID
// GET /api/grant-applications/:id
func (h *GrantHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	app, err := h.grantService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, app)
}

// Review records the admin decision on an application
// POST /api/grant-applications/:id/review
func (h *GrantHandler) Review(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req services.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	app, err := h.grantService.Review(c.Request.Context(), middleware.CurrentActor(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, app)
}

// ListMilestones
// GET /api/grant-applications/:id/milestones
func (h *GrantHandler) ListMilestones(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	milestones, err := h.milestoneService.ListMilestones(c.Request.Context(), models.OwnerTypeGrantApplication, id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, milestones)
}

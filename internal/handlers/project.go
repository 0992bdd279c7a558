package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/fundgate/internal/middleware"
	"github.com/huangang/fundgate/internal/models"
	"github.com/huangang/fundgate/internal/services"
	"github.com/huangang/fundgate/pkg/response"
)

type ProjectHandler struct {
	projectService   *services.ProjectService
	statusService    *services.StatusService
	milestoneService *services.MilestoneService
}

func NewProjectHandler(projects *services.ProjectService, status *services.StatusService, milestones *services.MilestoneService) *ProjectHandler {
	return &ProjectHandler{
		projectService:   projects,
		statusService:    status,
		milestoneService: milestones,
	}
}

// List returns paginated projects
// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	var req services.ProjectListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.projectService.List(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, resp)
}

// GetByID returns a project with its crowdfund record and milestones
// GET /api/projects/:id
func (h *ProjectHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	project, err := h.projectService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, project)
}

// Create submits a new project in the idea state
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req services.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.Create(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Created(c, project)
}

// Delete removes a project that has not been opened for voting
// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.projectService.Delete(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "project deleted"})
}

// Transition applies a lifecycle move
// POST /api/projects/:id/transition
func (h *ProjectHandler) Transition(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req services.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.statusService.TransitionProject(c.Request.Context(), middleware.CurrentActor(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, project)
}

// ListMilestones
// GET /api/projects/:id/milestones
func (h *ProjectHandler) ListMilestones(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	milestones, err := h.milestoneService.ListMilestones(c.Request.Context(), models.OwnerTypeProject, id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, milestones)
}

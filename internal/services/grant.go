package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/huangang/fundgate/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type GrantService struct {
	db *gorm.DB
}

func NewGrantService(db *gorm.DB) *GrantService {
	return &GrantService{db: db}
}

type CreateGrantRequest struct {
	ProjectID   *uint            `json:"project_id"`
	Title       string           `json:"title" binding:"required"`
	Description string           `json:"description"`
	Budget      decimal.Decimal  `json:"budget"`
	Milestones  []MilestoneInput `json:"milestones" binding:"required"`
}

type GrantListRequest struct {
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status      string `form:"status"`
	ApplicantID uint   `form:"applicant_id"`
	ProjectID   uint   `form:"project_id"`
	Archived    *bool  `form:"archived"`
}

type GrantListResponse struct {
	Total    int64                     `json:"total"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"page_size"`
	Items    []models.GrantApplication `json:"items"`
}

var activeGrantStatuses = []models.GrantStatus{
	models.GrantStatusSubmitted,
	models.GrantStatusApproved,
	models.GrantStatusInProgress,
}

// Submit files a grant application with its milestone plan
func (s *GrantService) Submit(ctx context.Context, applicantID uint, req *CreateGrantRequest) (*models.GrantApplication, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || len(title) > 200 {
		return nil, validationErr("title must be 1-200 characters")
	}
	if !req.Budget.IsPositive() {
		return nil, validationErr("budget must be positive")
	}
	milestones, err := buildMilestones(req.Milestones, req.Budget, 1)
	if err != nil {
		return nil, err
	}

	app := models.GrantApplication{
		ProjectID:   req.ProjectID,
		ApplicantID: applicantID,
		Title:       title,
		Description: req.Description,
		Budget:      req.Budget,
		Status:      models.GrantStatusSubmitted,
		Milestones:  milestones,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dup := tx.Model(&models.GrantApplication{}).
			Where("applicant_id = ? AND archived = ? AND status IN ?", applicantID, false, activeGrantStatuses)
		if req.ProjectID != nil {
			var project models.Project
			if err := tx.First(&project, *req.ProjectID).Error; err != nil {
				return notFound(err, "project")
			}
			if project.Type != models.ProjectTypeGrant {
				return preconditionErr("project %d is not a grant project", project.ID)
			}
			dup = dup.Where("project_id = ?", *req.ProjectID)
		} else {
			dup = dup.Where("project_id IS NULL AND title = ?", title)
		}

		var count int64
		if err := dup.Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: an active application already exists", ErrDuplicate)
		}
		return tx.Create(&app).Error
	})
	if err != nil {
		return nil, err
	}

	LogInfo("Grant", "submit", fmt.Sprintf("grant application %d submitted", app.ID), &applicantID, "", "", nil)
	return &app, nil
}

// Review records an admin decision. Approval does not move money; the escrow
// lock is a separate call.
func (s *GrantService) Review(ctx context.Context, actor Actor, id uint, req *ReviewRequest) (*models.GrantApplication, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"review_note": req.Note,
		"reviewed_by": actor.UserID,
		"reviewed_at": time.Now(),
	}
	switch req.Decision {
	case DecisionApproved:
		updates["status"] = models.GrantStatusApproved
	case DecisionRejected:
		updates["status"] = models.GrantStatusRejected
		updates["archived"] = true
	default:
		return nil, validationErr("decision must be approved or rejected")
	}

	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status != models.GrantStatusSubmitted {
		return nil, preconditionErr("grant application is %s, only submitted applications can be reviewed", app.Status)
	}

	res := s.db.WithContext(ctx).Model(&models.GrantApplication{}).
		Where("id = ? AND status = ?", id, models.GrantStatusSubmitted).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, conflictErr("grant application %d was reviewed concurrently", id)
	}

	LogInfo("Grant", "review", fmt.Sprintf("grant application %d %s", id, req.Decision), &actor.UserID, "", "", req)
	return s.Get(ctx, id)
}

func (s *GrantService) Get(ctx context.Context, id uint) (*models.GrantApplication, error) {
	var app models.GrantApplication
	err := s.db.WithContext(ctx).
		Preload("Milestones", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&app, id).Error
	if err != nil {
		return nil, notFound(err, "grant application")
	}
	return &app, nil
}

// List returns paginated applications, newest first
func (s *GrantService) List(ctx context.Context, req *GrantListRequest) (*GrantListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}

	query := s.db.WithContext(ctx).Model(&models.GrantApplication{})
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.ApplicantID > 0 {
		query = query.Where("applicant_id = ?", req.ApplicantID)
	}
	if req.ProjectID > 0 {
		query = query.Where("project_id = ?", req.ProjectID)
	}
	if req.Archived != nil {
		query = query.Where("archived = ?", *req.Archived)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.GrantApplication
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}

	return &GrantListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: items}, nil
}

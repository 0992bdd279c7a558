package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/huangang/fundgate/internal/config"
	"github.com/huangang/fundgate/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const maxMilestones = 20

type ProjectService struct {
	db     *gorm.DB
	voting config.VotingConfig
}

func NewProjectService(db *gorm.DB, cfg *config.VotingConfig) *ProjectService {
	return &ProjectService{db: db, voting: *cfg}
}

type ProjectListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status   string `form:"status"`
	Type     string `form:"type"`
	OwnerID  uint   `form:"owner_id"`
	Search   string `form:"search"`
}

type ProjectListResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []models.Project `json:"items"`
}

type MilestoneInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     *time.Time      `json:"due_date"`
}

type CreateProjectRequest struct {
	Title          string             `json:"title" binding:"required"`
	Description    string             `json:"description"`
	Type           models.ProjectType `json:"type" binding:"required"`
	FundingGoal    decimal.Decimal    `json:"funding_goal"`
	ThresholdVotes int                `json:"threshold_votes"`
	VoteDeadline   *time.Time         `json:"vote_deadline"`
	Milestones     []MilestoneInput   `json:"milestones"`
}

// List returns paginated projects
func (s *ProjectService) List(ctx context.Context, req *ProjectListRequest) (*ProjectListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}

	var projects []models.Project
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Project{})

	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Type != "" {
		query = query.Where("type = ?", req.Type)
	}
	if req.OwnerID > 0 {
		query = query.Where("owner_id = ?", req.OwnerID)
	}
	if req.Search != "" {
		query = query.Where("title LIKE ?", "%"+req.Search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (req.Page - 1) * req.PageSize
	if err := query.Preload("Crowdfund").Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, err
	}

	return &ProjectListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    projects,
	}, nil
}

// GetByID returns a project with its milestones and crowdfund record
func (s *ProjectService) GetByID(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	err := s.db.WithContext(ctx).
		Preload("Milestones", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Crowdfund").
		First(&project, id).Error
	if err != nil {
		return nil, notFound(err, "project")
	}
	return &project, nil
}

// Create submits a new project in idea status. Crowdfund projects get their
// control record in the same transaction.
func (s *ProjectService) Create(ctx context.Context, ownerID uint, req *CreateProjectRequest) (*models.Project, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || len(title) > 200 {
		return nil, validationErr("title must be 1-200 characters")
	}
	if req.Type != models.ProjectTypeCrowdfund && req.Type != models.ProjectTypeGrant {
		return nil, validationErr("type must be crowdfund or grant")
	}
	if req.FundingGoal.IsNegative() {
		return nil, validationErr("funding goal cannot be negative")
	}
	if req.Type == models.ProjectTypeCrowdfund && !req.FundingGoal.IsPositive() {
		return nil, validationErr("crowdfund projects need a positive funding goal")
	}
	if req.ThresholdVotes < 0 {
		return nil, validationErr("threshold votes cannot be negative")
	}
	if req.VoteDeadline != nil && !req.VoteDeadline.After(time.Now()) {
		return nil, validationErr("vote deadline must be in the future")
	}

	milestones, err := buildMilestones(req.Milestones, req.FundingGoal, 0)
	if err != nil {
		return nil, err
	}

	project := models.Project{
		OwnerID:     ownerID,
		Title:       title,
		Description: req.Description,
		Type:        req.Type,
		Status:      models.ProjectStatusIdea,
		FundingGoal: req.FundingGoal,
		Voters:      models.VoterList{},
		Milestones:  milestones,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		if project.Type != models.ProjectTypeCrowdfund {
			return nil
		}

		cf := models.Crowdfund{
			ProjectID:      project.ID,
			ThresholdVotes: req.ThresholdVotes,
			Status:         models.CrowdfundStatusPending,
		}
		if cf.ThresholdVotes == 0 {
			cf.ThresholdVotes = s.voting.DefaultThreshold
		}
		if req.VoteDeadline != nil {
			cf.VoteDeadline = *req.VoteDeadline
		} else {
			cf.VoteDeadline = time.Now().AddDate(0, 0, s.voting.DefaultVoteDays)
		}
		if err := tx.Create(&cf).Error; err != nil {
			return err
		}
		project.Crowdfund = &cf
		return nil
	})
	if err != nil {
		return nil, err
	}

	LogInfo("Project", "create", fmt.Sprintf("project %d created", project.ID), &ownerID, "", "", nil)
	return &project, nil
}

// Delete removes a project that never reached community validation
func (s *ProjectService) Delete(ctx context.Context, actor Actor, id uint) error {
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, id).Error; err != nil {
		return notFound(err, "project")
	}
	if project.OwnerID != actor.UserID && !actor.IsAdmin() {
		return forbiddenErr("only the owner or an admin can delete a project")
	}
	if project.Status != models.ProjectStatusIdea && project.Status != models.ProjectStatusReviewing {
		return preconditionErr("project is %s, only projects before validation can be deleted", project.Status)
	}
	if project.Tally.TotalVotes > 0 {
		return preconditionErr("project has votes and cannot be deleted")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status = ?", id, project.Status).Delete(&models.Project{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return conflictErr("project %d changed while deleting", id)
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Crowdfund{}).Error; err != nil {
			return err
		}
		return tx.Where("owner_type = ? AND owner_id = ?", models.OwnerTypeProject, id).Delete(&models.Milestone{}).Error
	})
}

// buildMilestones validates milestone input. Amounts must be positive and sum
// to at most limit; minCount of 0 makes milestones optional.
func buildMilestones(inputs []MilestoneInput, limit decimal.Decimal, minCount int) ([]models.Milestone, error) {
	if len(inputs) < minCount || len(inputs) > maxMilestones {
		return nil, validationErr("between %d and %d milestones are required", minCount, maxMilestones)
	}

	sum := decimal.Zero
	milestones := make([]models.Milestone, 0, len(inputs))
	for i, in := range inputs {
		title := strings.TrimSpace(in.Title)
		if title == "" || len(title) > 200 {
			return nil, validationErr("milestone %d: title must be 1-200 characters", i+1)
		}
		if !in.Amount.IsPositive() {
			return nil, validationErr("milestone %d: amount must be positive", i+1)
		}
		sum = sum.Add(in.Amount)
		milestones = append(milestones, models.Milestone{
			Position:    i + 1,
			Title:       title,
			Description: in.Description,
			Amount:      in.Amount,
			DueDate:     in.DueDate,
			Status:      models.MilestoneStatusPending,
			ProofLinks:  models.StringList{},
		})
	}

	if sum.GreaterThan(limit) {
		return nil, validationErr("milestone amounts total %s, exceeding %s", sum.String(), limit.String())
	}
	return milestones, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangang/fundgate/internal/config"
	"github.com/huangang/fundgate/internal/metrics"
	"github.com/huangang/fundgate/internal/models"
	"github.com/huangang/fundgate/pkg/logger"
	"gorm.io/gorm"
)

// ReasonDeadlineExpired is stored on projects rejected by the deadline sweep
const ReasonDeadlineExpired = "vote deadline expired"

// errStaleProject aborts a conditional write whose precondition no longer holds
var errStaleProject = errors.New("project changed concurrently")

// StatusService owns every write to project and crowdfund status
type StatusService struct {
	db      *gorm.DB
	cfg     config.VotingConfig
	hub     *SSEHub
	metrics *metrics.Metrics
}

func NewStatusService(db *gorm.DB, cfg *config.VotingConfig, hub *SSEHub, m *metrics.Metrics) *StatusService {
	return &StatusService{db: db, cfg: *cfg, hub: hub, metrics: m}
}

// EvaluationResult describes one run of the evaluator
type EvaluationResult struct {
	ProjectID uint                 `json:"project_id"`
	Result    string               `json:"result"`
	From      models.ProjectStatus `json:"from"`
	To        models.ProjectStatus `json:"to"`
	Applied   bool                 `json:"applied"`
}

// EvaluateProject runs the evaluator against the current tally and applies
// the decision with a compare-and-swap on status and version. A lost race
// is re-read and re-evaluated; once the project has left validated the call
// is a no-op.
func (s *StatusService) EvaluateProject(ctx context.Context, projectID uint) (*EvaluationResult, error) {
	retries := s.cfg.EvaluationConflictRetries
	if retries <= 0 {
		retries = 1
	}
	th := ThresholdsFromConfig(&s.cfg)

	for attempt := 0; attempt < retries; attempt++ {
		project, cf, err := s.loadWithCrowdfund(ctx, projectID)
		if err != nil {
			return nil, err
		}

		d := Evaluate(project, cf, th)
		result := &EvaluationResult{ProjectID: projectID, Result: d.Result, From: project.Status, To: project.Status}
		if !d.Changed() {
			s.metrics.IncEvaluation(d.Result)
			return result, nil
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.applyTransition(tx, project, d.Next, d.Reason, true)
		})
		if errors.Is(err, errStaleProject) {
			continue
		}
		if err != nil {
			return nil, err
		}

		result.To = d.Next
		result.Applied = true
		s.metrics.IncEvaluation(d.Result)
		s.afterTransition(project.ID, project.Status, d.Next, d.Reason)
		return result, nil
	}
	return nil, conflictErr("evaluation of project %d lost %d races", projectID, retries)
}

// ProcessEvaluationTask is the queue processor for evaluation tasks
func (s *StatusService) ProcessEvaluationTask(ctx context.Context, task *EvaluationTask) error {
	result, err := s.EvaluateProject(ctx, task.ProjectID)
	if errors.Is(err, ErrNotFound) {
		// project deleted since the vote; nothing to evaluate
		return nil
	}
	if err != nil {
		return fmt.Errorf("evaluate project %d: %w", task.ProjectID, err)
	}
	if result.Applied {
		logger.Info().Uint("project_id", task.ProjectID).Str("trigger", task.Trigger).
			Str("from", string(result.From)).Str("to", string(result.To)).Msg("[Evaluator] project transitioned")
	}
	return nil
}

// TransitionRequest is a manual lifecycle move
type TransitionRequest struct {
	Status models.ProjectStatus `json:"status" binding:"required"`
	Reason string               `json:"reason"`
}

// TransitionProject applies an admin or owner lifecycle move.
// Owners may only cancel or submit their idea for review.
func (s *StatusService) TransitionProject(ctx context.Context, actor Actor, projectID uint, req *TransitionRequest) (*models.Project, error) {
	if !req.Status.IsValid() {
		return nil, validationErr("unknown project status %q", req.Status)
	}
	if len(req.Reason) > 500 {
		return nil, validationErr("reason must be at most 500 characters")
	}

	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, projectID).Error; err != nil {
		return nil, notFound(err, "project")
	}

	if !actor.IsAdmin() {
		ownerMove := req.Status == models.ProjectStatusCancelled ||
			(project.Status == models.ProjectStatusIdea && req.Status == models.ProjectStatusReviewing)
		if project.OwnerID != actor.UserID || !ownerMove {
			return nil, forbiddenErr("not allowed to move project to %s", req.Status)
		}
	}
	if req.Status == models.ProjectStatusLive {
		return nil, preconditionErr("projects go live through the escrow lock")
	}
	if !project.Status.CanTransitionTo(req.Status) {
		return nil, preconditionErr("cannot move project from %s to %s", project.Status, req.Status)
	}

	from := project.Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyTransition(tx, &project, req.Status, req.Reason, false)
	})
	if errors.Is(err, errStaleProject) {
		return nil, conflictErr("project %d changed while moving to %s", projectID, req.Status)
	}
	if err != nil {
		return nil, err
	}

	s.afterTransition(project.ID, from, req.Status, req.Reason)
	LogInfo("Project", "transition", fmt.Sprintf("project %d: %s -> %s", project.ID, from, req.Status), &actor.UserID, "", "", req)

	if err := s.db.WithContext(ctx).Preload("Crowdfund").First(&project, projectID).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// ExpireProject rejects a validated project whose vote deadline passed
func (s *StatusService) ExpireProject(ctx context.Context, projectID uint) (bool, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, projectID).Error; err != nil {
		return false, notFound(err, "project")
	}
	if project.Status != models.ProjectStatusValidated {
		return false, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyTransition(tx, &project, models.ProjectStatusRejected, ReasonDeadlineExpired, false)
	})
	if errors.Is(err, errStaleProject) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.afterTransition(projectID, models.ProjectStatusValidated, models.ProjectStatusRejected, ReasonDeadlineExpired)
	return true, nil
}

func (s *StatusService) loadWithCrowdfund(ctx context.Context, projectID uint) (*models.Project, *models.Crowdfund, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, projectID).Error; err != nil {
		return nil, nil, notFound(err, "project")
	}

	var cf models.Crowdfund
	err := s.db.WithContext(ctx).Where("project_id = ?", projectID).First(&cf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &project, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return &project, &cf, nil
}

// applyTransition writes the new status conditioned on the status read into p.
// With matchVersion the write also requires an unchanged tally.
func (s *StatusService) applyTransition(tx *gorm.DB, p *models.Project, to models.ProjectStatus, reason string, matchVersion bool) error {
	q := tx.Model(&models.Project{}).Where("id = ? AND status = ?", p.ID, p.Status)
	if matchVersion {
		q = q.Where("version = ?", p.Version)
	}
	res := q.Updates(map[string]interface{}{
		"status":        to,
		"status_reason": reason,
		"version":       gorm.Expr("version + 1"),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errStaleProject
	}

	var cfStatus models.CrowdfundStatus
	switch to {
	case models.ProjectStatusCampaigning:
		cfStatus = models.CrowdfundStatusValidated
	case models.ProjectStatusRejected, models.ProjectStatusCancelled:
		cfStatus = models.CrowdfundStatusRejected
	default:
		return nil
	}

	now := time.Now()
	return tx.Model(&models.Crowdfund{}).
		Where("project_id = ? AND status = ?", p.ID, models.CrowdfundStatusPending).
		Updates(map[string]interface{}{
			"status":           cfStatus,
			"rejection_reason": reason,
			"resolved_at":      &now,
		}).Error
}

func (s *StatusService) afterTransition(projectID uint, from, to models.ProjectStatus, reason string) {
	s.metrics.IncTransition(string(from), string(to))
	s.hub.Publish(ProjectEvent{Type: EventStatus, ProjectID: projectID, Status: to, Reason: reason})
}

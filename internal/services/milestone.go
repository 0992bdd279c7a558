package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/huangang/fundgate/internal/models"
	"gorm.io/gorm"
)

const (
	maxProofLinks = 10

	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

type MilestoneService struct {
	db     *gorm.DB
	escrow *EscrowService
}

func NewMilestoneService(db *gorm.DB, escrow *EscrowService) *MilestoneService {
	return &MilestoneService{db: db, escrow: escrow}
}

type SubmitProofRequest struct {
	Description string   `json:"description" binding:"required"`
	ProofLinks  []string `json:"proof_links" binding:"required"`
}

type ReviewRequest struct {
	Decision string `json:"decision" binding:"required"` // approved, rejected
	Note     string `json:"note"`
}

// MilestoneReviewResult carries the milestone and, on approval, the escrow lock outcome
type MilestoneReviewResult struct {
	Milestone  *models.Milestone `json:"milestone"`
	Settlement *SettlementResult `json:"settlement,omitempty"`
}

func (s *MilestoneService) GetMilestone(ctx context.Context, id uint) (*models.Milestone, error) {
	var m models.Milestone
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err, "milestone")
	}
	return &m, nil
}

// SubmitProof records completion evidence from the milestone's owner
func (s *MilestoneService) SubmitProof(ctx context.Context, actor Actor, milestoneID uint, req *SubmitProofRequest) (*models.Milestone, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, validationErr("proof description is required")
	}
	links, err := normalizeProofLinks(req.ProofLinks)
	if err != nil {
		return nil, err
	}

	m, err := s.GetMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}

	ownerID, err := s.ownerOf(ctx, m)
	if err != nil {
		return nil, err
	}
	if ownerID != actor.UserID {
		return nil, forbiddenErr("only the owner can submit proof for this milestone")
	}
	if m.Status != models.MilestoneStatusPending && m.Status != models.MilestoneStatusRejected {
		return nil, preconditionErr("milestone is %s, proof can only be submitted while pending or rejected", m.Status)
	}

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.Milestone{}).
		Where("id = ? AND status = ?", m.ID, m.Status).
		Updates(map[string]interface{}{
			"status":            models.MilestoneStatusSubmitted,
			"proof_description": description,
			"proof_links":       links,
			"submitted_at":      &now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, conflictErr("milestone %d changed while submitting proof", m.ID)
	}

	return s.GetMilestone(ctx, m.ID)
}

// ReviewMilestone approves or rejects submitted proof. Approval runs the
// escrow lock right away; a failed lock leaves the milestone approved and
// returns the SettlementError alongside the result.
func (s *MilestoneService) ReviewMilestone(ctx context.Context, actor Actor, milestoneID uint, req *ReviewRequest) (*MilestoneReviewResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var next models.MilestoneStatus
	switch req.Decision {
	case DecisionApproved:
		next = models.MilestoneStatusApproved
	case DecisionRejected:
		next = models.MilestoneStatusRejected
	default:
		return nil, validationErr("decision must be approved or rejected")
	}

	m, err := s.GetMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MilestoneStatusSubmitted {
		return nil, preconditionErr("milestone is %s, only submitted milestones can be reviewed", m.Status)
	}

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.Milestone{}).
		Where("id = ? AND status = ?", m.ID, models.MilestoneStatusSubmitted).
		Updates(map[string]interface{}{
			"status":      next,
			"review_note": req.Note,
			"reviewed_by": actor.UserID,
			"reviewed_at": &now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, conflictErr("milestone %d was reviewed concurrently", m.ID)
	}
	LogInfo("Milestone", "review", fmt.Sprintf("milestone %d %s", m.ID, req.Decision), &actor.UserID, "", "", req)

	result := &MilestoneReviewResult{}
	var lockErr error
	if next == models.MilestoneStatusApproved {
		result.Settlement, lockErr = s.escrow.LockMilestone(ctx, actor, m.ID)
	}

	if result.Milestone, err = s.GetMilestone(ctx, m.ID); err != nil {
		return nil, err
	}
	return result, lockErr
}

// ListMilestones returns the milestones of a project or grant application in order
func (s *MilestoneService) ListMilestones(ctx context.Context, ownerType string, ownerID uint) ([]models.Milestone, error) {
	var milestones []models.Milestone
	err := s.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Order("position").Find(&milestones).Error
	return milestones, err
}

// ownerOf returns the user who owns the milestone's project or application
func (s *MilestoneService) ownerOf(ctx context.Context, m *models.Milestone) (uint, error) {
	switch m.OwnerType {
	case models.OwnerTypeProject:
		var p models.Project
		if err := s.db.WithContext(ctx).First(&p, m.OwnerID).Error; err != nil {
			return 0, notFound(err, "project")
		}
		if p.Status != models.ProjectStatusCampaigning && p.Status != models.ProjectStatusLive {
			return 0, preconditionErr("project is %s, milestones open once campaigning", p.Status)
		}
		return p.OwnerID, nil
	case models.OwnerTypeGrantApplication:
		var app models.GrantApplication
		if err := s.db.WithContext(ctx).First(&app, m.OwnerID).Error; err != nil {
			return 0, notFound(err, "grant application")
		}
		if app.Status != models.GrantStatusApproved && app.Status != models.GrantStatusInProgress {
			return 0, preconditionErr("grant application is %s, milestones open once approved", app.Status)
		}
		return app.ApplicantID, nil
	}
	return 0, errors.New("unknown milestone owner type " + m.OwnerType)
}

func normalizeProofLinks(links []string) (models.StringList, error) {
	if len(links) == 0 || len(links) > maxProofLinks {
		return nil, validationErr("between 1 and %d proof links are required", maxProofLinks)
	}
	out := make(models.StringList, 0, len(links))
	for _, raw := range links {
		link := strings.TrimSpace(raw)
		u, err := url.Parse(link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, validationErr("invalid proof link %q", raw)
		}
		out = append(out, link)
	}
	return out, nil
}

package services

import (
	"context"
	"errors"
	"time"

	"github.com/huangang/fundgate/internal/config"
	"github.com/huangang/fundgate/internal/metrics"
	"github.com/huangang/fundgate/internal/models"
	"github.com/huangang/fundgate/pkg/logger"
	"gorm.io/gorm"
)

const (
	VoteActionCast    = "cast"
	VoteActionChanged = "changed"
	VoteActionRemoved = "removed"
)

// VoteService records ballots and keeps the cached project tally equal to the votes table
type VoteService struct {
	db      *gorm.DB
	retries int
	queue   TaskQueue
	hub     *SSEHub
	metrics *metrics.Metrics
}

func NewVoteService(db *gorm.DB, cfg *config.VotingConfig, queue TaskQueue, hub *SSEHub, m *metrics.Metrics) *VoteService {
	retries := cfg.VoteConflictRetries
	if retries <= 0 {
		retries = 1
	}
	return &VoteService{db: db, retries: retries, queue: queue, hub: hub, metrics: m}
}

// VoteResult is returned by every vote mutation
type VoteResult struct {
	ProjectID uint         `json:"project_id"`
	Action    string       `json:"action"`
	IsNewVote bool         `json:"is_new_vote"`
	Value     int8         `json:"value,omitempty"`
	Tally     models.Tally `json:"tally"`
}

// CastVote records or changes voterID's ballot on a validated project.
// Recasting the same value fails with ErrDuplicateVote and changes nothing.
func (s *VoteService) CastVote(ctx context.Context, voterID, projectID uint, value int8) (*VoteResult, error) {
	if value != models.VoteUp && value != models.VoteDown {
		return nil, validationErr("vote value must be 1 or -1")
	}

	result, err := s.mutate(ctx, func(tx *gorm.DB) (*VoteResult, error) {
		project, err := loadProject(tx, projectID)
		if err != nil {
			return nil, err
		}
		if !project.Status.IsVoteable() {
			return nil, preconditionErr("project is %s, voting is closed", project.Status)
		}
		if project.OwnerID == voterID {
			return nil, preconditionErr("owners cannot vote on their own project")
		}

		var existing models.Vote
		err = tx.Where("voter_id = ? AND project_id = ?", voterID, projectID).First(&existing).Error
		now := time.Now()
		voters := append(models.VoterList{}, project.Voters...)
		result := &VoteResult{ProjectID: projectID, Value: value}
		var up, down int

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&models.Vote{VoterID: voterID, ProjectID: projectID, Value: value}).Error; err != nil {
				return nil, err
			}
			if value > 0 {
				up = 1
			} else {
				down = 1
			}
			voters = append(voters, models.VoterEntry{VoterID: voterID, Vote: models.VoteLabel(value), VotedAt: now})
			result.Action = VoteActionCast
			result.IsNewVote = true

		case err != nil:
			return nil, err

		case existing.Value == value:
			return nil, ErrDuplicateVote

		default:
			if err := tx.Model(&existing).Update("value", value).Error; err != nil {
				return nil, err
			}
			if value > 0 {
				up, down = 1, -1
			} else {
				up, down = -1, 1
			}
			entry := models.VoterEntry{VoterID: voterID, Vote: models.VoteLabel(value), VotedAt: now}
			if idx := project.VoterIndex(voterID); idx >= 0 {
				voters[idx] = entry
			} else {
				voters = append(voters, entry)
			}
			result.Action = VoteActionChanged
		}

		result.Tally, err = writeTally(tx, project, up, down, voters)
		return result, err
	})
	if err != nil {
		return nil, err
	}

	s.afterVote(result, TriggerVoteCast)
	return result, nil
}

// RemoveVote deletes voterID's ballot and reverses its effect on the tally
func (s *VoteService) RemoveVote(ctx context.Context, voterID, projectID uint) (*VoteResult, error) {
	result, err := s.mutate(ctx, func(tx *gorm.DB) (*VoteResult, error) {
		project, err := loadProject(tx, projectID)
		if err != nil {
			return nil, err
		}

		var existing models.Vote
		if err := tx.Where("voter_id = ? AND project_id = ?", voterID, projectID).First(&existing).Error; err != nil {
			return nil, notFound(err, "vote")
		}
		if err := tx.Delete(&existing).Error; err != nil {
			return nil, err
		}

		var up, down int
		if existing.Value > 0 {
			up = -1
		} else {
			down = -1
		}

		voters := make(models.VoterList, 0, len(project.Voters))
		for _, v := range project.Voters {
			if v.VoterID != voterID {
				voters = append(voters, v)
			}
		}

		result := &VoteResult{ProjectID: projectID, Action: VoteActionRemoved}
		result.Tally, err = writeTally(tx, project, up, down, voters)
		return result, err
	})
	if err != nil {
		return nil, err
	}

	s.afterVote(result, TriggerVoteRemoved)
	return result, nil
}

// TallyView compares the cached tally with a recount of the votes table
type TallyView struct {
	ProjectID  uint                 `json:"project_id"`
	Status     models.ProjectStatus `json:"status"`
	Tally      models.Tally         `json:"tally"`
	Ledger     models.Tally         `json:"ledger"`
	Voters     int                  `json:"voters"`
	Consistent bool                 `json:"consistent"`
}

// GetTally reads the cached tally and recounts the votes in one transaction.
// A mismatch is reported and logged; it always indicates a bug.
func (s *VoteService) GetTally(ctx context.Context, projectID uint) (*TallyView, error) {
	var view *TallyView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := loadProject(tx, projectID)
		if err != nil {
			return err
		}

		ledger, err := recountVotes(tx, projectID)
		if err != nil {
			return err
		}

		view = &TallyView{
			ProjectID: projectID,
			Status:    project.Status,
			Tally:     project.Tally,
			Ledger:    ledger,
			Voters:    len(project.Voters),
		}
		view.Consistent = ledger == project.Tally && view.Voters == project.Tally.TotalVotes && project.Tally.Consistent()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !view.Consistent {
		logger.Error().Uint("project_id", projectID).Interface("cached", view.Tally).
			Interface("ledger", view.Ledger).Int("voters", view.Voters).Msg("[Vote] tally diverged from vote ledger")
	}
	return view, nil
}

func recountVotes(tx *gorm.DB, projectID uint) (models.Tally, error) {
	var row struct {
		Upvotes   int
		Downvotes int
	}
	err := tx.Model(&models.Vote{}).
		Select("COALESCE(SUM(CASE WHEN value > 0 THEN 1 ELSE 0 END), 0) AS upvotes, "+
			"COALESCE(SUM(CASE WHEN value < 0 THEN 1 ELSE 0 END), 0) AS downvotes").
		Where("project_id = ?", projectID).
		Scan(&row).Error
	if err != nil {
		return models.Tally{}, err
	}
	return models.Tally{}.Apply(row.Upvotes, row.Downvotes), nil
}

// mutate runs fn in a transaction, retrying when the project version moved
// or a concurrent first vote by the same voter won the insert.
func (s *VoteService) mutate(ctx context.Context, fn func(tx *gorm.DB) (*VoteResult, error)) (*VoteResult, error) {
	for attempt := 0; attempt < s.retries; attempt++ {
		var result *VoteResult
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			result, err = fn(tx)
			return err
		})
		if errors.Is(err, errStaleProject) || errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, conflictErr("vote not recorded after %d attempts", s.retries)
}

// writeTally applies the counter deltas atomically and swaps in the new voter
// list, conditioned on the version read with p.
func writeTally(tx *gorm.DB, p *models.Project, up, down int, voters models.VoterList) (models.Tally, error) {
	res := tx.Model(&models.Project{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]interface{}{
			"upvotes":     gorm.Expr("upvotes + ?", up),
			"downvotes":   gorm.Expr("downvotes + ?", down),
			"total_votes": gorm.Expr("total_votes + ?", up+down),
			"net_votes":   gorm.Expr("net_votes + ?", up-down),
			"voters":      voters,
			"version":     gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return models.Tally{}, res.Error
	}
	if res.RowsAffected == 0 {
		return models.Tally{}, errStaleProject
	}

	if up+down != 0 {
		err := tx.Model(&models.Crowdfund{}).
			Where("project_id = ?", p.ID).
			Update("total_votes", gorm.Expr("total_votes + ?", up+down)).Error
		if err != nil {
			return models.Tally{}, err
		}
	}
	return p.Tally.Apply(up, down), nil
}

func loadProject(tx *gorm.DB, projectID uint) (*models.Project, error) {
	var project models.Project
	if err := tx.First(&project, projectID).Error; err != nil {
		return nil, notFound(err, "project")
	}
	return &project, nil
}

func (s *VoteService) afterVote(result *VoteResult, trigger string) {
	s.metrics.IncVote(result.Action)
	tally := result.Tally
	s.hub.Publish(ProjectEvent{Type: EventTally, ProjectID: result.ProjectID, Tally: &tally})
	s.dispatchEvaluation(result.ProjectID, trigger)
}

// dispatchEvaluation hands the project to the evaluator queue. The vote is
// already committed, so failures are logged and counted only.
func (s *VoteService) dispatchEvaluation(projectID uint, trigger string) {
	if s.queue == nil {
		return
	}
	task := &EvaluationTask{ProjectID: projectID, Trigger: trigger, EnqueuedAt: time.Now()}
	if err := s.queue.Enqueue(task); err != nil {
		s.metrics.IncEnqueueError()
		logger.Error().Err(err).Uint("project_id", projectID).Str("trigger", trigger).Msg("[Vote] failed to enqueue evaluation")
	}
}

package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/huangang/fundgate/internal/config"
	"github.com/huangang/fundgate/internal/models"
	"github.com/huangang/fundgate/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	deadlineLockName = "vote_deadline"
	deadlineLockKey  = "sweep"
	deadlineLockTTL  = 5 * time.Minute

	ExpirePolicyHold   = "hold"
	ExpirePolicyReject = "reject"
)

// DeadlineSweeper resolves validated crowdfund projects whose vote deadline
// passed while still undecided
type DeadlineSweeper struct {
	db     *gorm.DB
	cfg    config.VotingConfig
	status *StatusService
	queue  TaskQueue
	cron   *cron.Cron
	owner  string
	now    func() time.Time
}

func NewDeadlineSweeper(db *gorm.DB, cfg *config.VotingConfig, status *StatusService, queue TaskQueue) *DeadlineSweeper {
	host, _ := os.Hostname()
	return &DeadlineSweeper{
		db:     db,
		cfg:    *cfg,
		status: status,
		queue:  queue,
		owner:  fmt.Sprintf("%s-%d", host, os.Getpid()),
		now:    time.Now,
	}
}

// Start schedules the sweep on the configured cron expression
func (s *DeadlineSweeper) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.cfg.DeadlineSweepCron, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			logger.Errorf("[Deadline] sweep failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid deadline_sweep_cron %q: %w", s.cfg.DeadlineSweepCron, err)
	}
	s.cron.Start()
	logger.Infof("[Deadline] sweep scheduled (%s, policy=%s)", s.cfg.DeadlineSweepCron, s.cfg.ExpirePolicy)
	return nil
}

func (s *DeadlineSweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// SweepResult counts what one sweep did
type SweepResult struct {
	Expired  int  `json:"expired"`
	Held     int  `json:"held"`
	Rejected int  `json:"rejected"`
	Skipped  bool `json:"skipped"`
}

// Sweep handles every expired, undecided project once. Only the instance
// holding the scheduler lock does any work.
func (s *DeadlineSweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{}

	ok, err := models.TryAcquireSchedulerLock(s.db.WithContext(ctx), deadlineLockName, deadlineLockKey, s.owner, deadlineLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		result.Skipped = true
		return result, nil
	}
	defer func() {
		if err := models.ReleaseSchedulerLock(s.db, deadlineLockName, deadlineLockKey, s.owner); err != nil {
			logger.Warnf("[Deadline] failed to release lock: %v", err)
		}
	}()

	var ids []uint
	err = s.db.WithContext(ctx).Model(&models.Project{}).
		Joins("JOIN crowdfunds ON crowdfunds.project_id = projects.id").
		Where("projects.status = ? AND crowdfunds.status = ? AND crowdfunds.vote_deadline < ?",
			models.ProjectStatusValidated, models.CrowdfundStatusPending, s.now()).
		Order("projects.id").
		Pluck("projects.id", &ids).Error
	if err != nil {
		return nil, err
	}
	result.Expired = len(ids)

	for _, id := range ids {
		switch s.cfg.ExpirePolicy {
		case ExpirePolicyReject:
			rejected, err := s.status.ExpireProject(ctx, id)
			if err != nil {
				logger.Error().Err(err).Uint("project_id", id).Msg("[Deadline] failed to expire project")
				continue
			}
			if rejected {
				result.Rejected++
			}
		default:
			// hold: give the evaluator another look and leave the project open
			if s.queue != nil {
				if err := s.queue.Enqueue(&EvaluationTask{ProjectID: id, Trigger: TriggerDeadline, EnqueuedAt: s.now()}); err != nil {
					logger.Error().Err(err).Uint("project_id", id).Msg("[Deadline] failed to enqueue evaluation")
				}
			}
			logger.Warn().Uint("project_id", id).Msg("[Deadline] vote deadline passed without a decision")
			result.Held++
		}
	}

	if result.Expired > 0 {
		logger.Info().Int("expired", result.Expired).Int("held", result.Held).Int("rejected", result.Rejected).
			Msg("[Deadline] sweep finished")
	}
	return result, nil
}

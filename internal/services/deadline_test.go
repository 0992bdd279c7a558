package services

import (
	"context"
	"testing"
	"time"

	"github.com/huangang/fundgate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func expireDeadline(t *testing.T, db *gorm.DB, projectID uint) {
	t.Helper()
	require.NoError(t, db.Model(&models.Crowdfund{}).Where("project_id = ?", projectID).
		Update("vote_deadline", time.Now().Add(-time.Hour)).Error)
}

func TestDeadlineSweeper_HoldEnqueues(t *testing.T) {
	db := newTestDB(t)
	cfg := testVotingConfig()
	status := NewStatusService(db, cfg, nil, nil)
	queue := &recordingQueue{}
	sweeper := NewDeadlineSweeper(db, cfg, status, queue)

	owner := createUser(t, db, models.RoleUser)
	expired := createProject(t, db, owner.ID, models.ProjectStatusValidated, 10)
	createProject(t, db, owner.ID, models.ProjectStatusValidated, 10)
	expireDeadline(t, db, expired.ID)

	res, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, 1, res.Held)
	require.Equal(t, 1, queue.len())
	assert.Equal(t, TriggerDeadline, queue.tasks[0].Trigger)
	assert.Equal(t, models.ProjectStatusValidated, reloadProject(t, db, expired.ID).Status)
}

func TestDeadlineSweeper_RejectPolicy(t *testing.T) {
	db := newTestDB(t)
	cfg := testVotingConfig()
	cfg.ExpirePolicy = ExpirePolicyReject
	status := NewStatusService(db, cfg, nil, nil)
	sweeper := NewDeadlineSweeper(db, cfg, status, nil)

	owner := createUser(t, db, models.RoleUser)
	p := createProject(t, db, owner.ID, models.ProjectStatusValidated, 10)
	expireDeadline(t, db, p.ID)

	res, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rejected)

	got := reloadProject(t, db, p.ID)
	assert.Equal(t, models.ProjectStatusRejected, got.Status)
	assert.Equal(t, models.CrowdfundStatusRejected, got.Crowdfund.Status)

	// resolved projects drop out of later sweeps
	res, err = sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Expired)
}

func TestDeadlineSweeper_SkipsWhenLocked(t *testing.T) {
	db := newTestDB(t)
	cfg := testVotingConfig()
	sweeper := NewDeadlineSweeper(db, cfg, NewStatusService(db, cfg, nil, nil), nil)

	ok, err := models.TryAcquireSchedulerLock(db, deadlineLockName, deadlineLockKey, "other-host", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestDeadlineSweeper_StartRejectsBadSpec(t *testing.T) {
	db := newTestDB(t)
	cfg := testVotingConfig()
	cfg.DeadlineSweepCron = "every never"
	sweeper := NewDeadlineSweeper(db, cfg, NewStatusService(db, cfg, nil, nil), nil)
	assert.Error(t, sweeper.Start())
	sweeper.Stop()
}

package services

import (
	"context"
	"testing"

	"github.com/huangang/fundgate/internal/escrow"
	"github.com/huangang/fundgate/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMilestoneService_ProofReviewLock(t *testing.T) {
	f := newEscrowFixture(t)
	svc := NewMilestoneService(f.db, f.escrow)
	ctx := context.Background()

	owner := createUser(t, f.db, models.RoleUser)
	linkWallet(t, f.db, owner.ID)
	ownerActor := Actor{UserID: owner.ID, Role: models.RoleUser}
	p := createProject(t, f.db, owner.ID, models.ProjectStatusLive, 10)
	m := createMilestone(t, f.db, models.OwnerTypeProject, p.ID, models.MilestoneStatusPending)

	proof := &SubmitProofRequest{Description: "prototype shipped", ProofLinks: []string{" https://example.org/demo "}}

	stranger := createUser(t, f.db, models.RoleUser)
	_, err := svc.SubmitProof(ctx, Actor{UserID: stranger.ID, Role: models.RoleUser}, m.ID, proof)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := svc.SubmitProof(ctx, ownerActor, m.ID, proof)
	require.NoError(t, err)
	assert.Equal(t, models.MilestoneStatusSubmitted, got.Status)
	assert.Equal(t, models.StringList{"https://example.org/demo"}, got.ProofLinks)
	assert.NotNil(t, got.SubmittedAt)

	_, err = svc.SubmitProof(ctx, ownerActor, m.ID, proof)
	assert.ErrorIs(t, err, ErrPrecondition)

	_, err = svc.ReviewMilestone(ctx, ownerActor, m.ID, &ReviewRequest{Decision: DecisionApproved})
	assert.ErrorIs(t, err, ErrForbidden)

	res, err := svc.ReviewMilestone(ctx, f.admin, m.ID, &ReviewRequest{Decision: DecisionApproved, Note: "looks good"})
	require.NoError(t, err)
	assert.Equal(t, models.MilestoneStatusLocked, res.Milestone.Status)
	require.NotNil(t, res.Settlement)
	assert.Equal(t, models.TxStatusConfirmed, res.Settlement.Transaction.Status)
	assert.Equal(t, "looks good", res.Milestone.ReviewNote)
}

func TestMilestoneService_RejectAndResubmit(t *testing.T) {
	f := newEscrowFixture(t)
	svc := NewMilestoneService(f.db, f.escrow)
	ctx := context.Background()

	applicant := createUser(t, f.db, models.RoleUser)
	app := &models.GrantApplication{ApplicantID: applicant.ID, Title: "x", Budget: decimal.NewFromInt(500), Status: models.GrantStatusApproved}
	require.NoError(t, f.db.Create(app).Error)
	m := createMilestone(t, f.db, models.OwnerTypeGrantApplication, app.ID, models.MilestoneStatusPending)
	actor := Actor{UserID: applicant.ID, Role: models.RoleUser}
	proof := &SubmitProofRequest{Description: "report", ProofLinks: []string{"https://example.org/report.pdf"}}

	_, err := svc.SubmitProof(ctx, actor, m.ID, proof)
	require.NoError(t, err)

	res, err := svc.ReviewMilestone(ctx, f.admin, m.ID, &ReviewRequest{Decision: DecisionRejected, Note: "missing data"})
	require.NoError(t, err)
	assert.Equal(t, models.MilestoneStatusRejected, res.Milestone.Status)
	assert.Nil(t, res.Settlement)

	got, err := svc.SubmitProof(ctx, actor, m.ID, proof)
	require.NoError(t, err)
	assert.Equal(t, models.MilestoneStatusSubmitted, got.Status)
	assert.Equal(t, 0, f.client.fundCalls())
}

func TestMilestoneService_ApprovalWithFailedLock(t *testing.T) {
	f := newEscrowFixture(t)
	f.client.defaultStatus = escrow.StatusFailed
	svc := NewMilestoneService(f.db, f.escrow)
	ctx := context.Background()

	applicant := createUser(t, f.db, models.RoleUser)
	linkWallet(t, f.db, applicant.ID)
	app := &models.GrantApplication{ApplicantID: applicant.ID, Title: "x", Budget: decimal.NewFromInt(500), Status: models.GrantStatusInProgress}
	require.NoError(t, f.db.Create(app).Error)
	m := createMilestone(t, f.db, models.OwnerTypeGrantApplication, app.ID, models.MilestoneStatusSubmitted)

	res, err := svc.ReviewMilestone(ctx, f.admin, m.ID, &ReviewRequest{Decision: DecisionApproved})
	assert.ErrorIs(t, err, ErrSettlement)
	require.NotNil(t, res)
	assert.Equal(t, models.MilestoneStatusApproved, res.Milestone.Status)
}

func TestMilestoneService_Validation(t *testing.T) {
	f := newEscrowFixture(t)
	svc := NewMilestoneService(f.db, f.escrow)
	ctx := context.Background()
	owner := createUser(t, f.db, models.RoleUser)
	actor := Actor{UserID: owner.ID, Role: models.RoleUser}

	idea := createProject(t, f.db, owner.ID, models.ProjectStatusIdea, 10)
	m := createMilestone(t, f.db, models.OwnerTypeProject, idea.ID, models.MilestoneStatusPending)

	_, err := svc.SubmitProof(ctx, actor, m.ID, &SubmitProofRequest{Description: "x", ProofLinks: []string{"https://a.example"}})
	assert.ErrorIs(t, err, ErrPrecondition)

	_, err = svc.SubmitProof(ctx, actor, m.ID, &SubmitProofRequest{Description: " ", ProofLinks: []string{"https://a.example"}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.SubmitProof(ctx, actor, m.ID, &SubmitProofRequest{Description: "x", ProofLinks: []string{"ftp://a.example"}})
	assert.ErrorIs(t, err, ErrValidation)

	tooMany := make([]string, maxProofLinks+1)
	for i := range tooMany {
		tooMany[i] = "https://a.example"
	}
	_, err = svc.SubmitProof(ctx, actor, m.ID, &SubmitProofRequest{Description: "x", ProofLinks: tooMany})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.ReviewMilestone(ctx, f.admin, m.ID, &ReviewRequest{Decision: "maybe"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.ReviewMilestone(ctx, f.admin, m.ID, &ReviewRequest{Decision: DecisionApproved})
	assert.ErrorIs(t, err, ErrPrecondition)

	list, err := svc.ListMilestones(ctx, models.OwnerTypeProject, idea.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

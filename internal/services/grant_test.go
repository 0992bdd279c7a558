package services

import (
	"context"
	"testing"

	"github.com/huangang/fundgate/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grantRequest(title string, amounts ...int64) *CreateGrantRequest {
	req := &CreateGrantRequest{Title: title, Budget: decimal.NewFromInt(1000)}
	for i, a := range amounts {
		req.Milestones = append(req.Milestones, MilestoneInput{Title: "phase " + string(rune('A'+i)), Amount: decimal.NewFromInt(a)})
	}
	return req
}

func TestGrantService_SubmitAndReview(t *testing.T) {
	db := newTestDB(t)
	svc := NewGrantService(db)
	ctx := context.Background()
	applicant := createUser(t, db, models.RoleUser)
	admin := Actor{UserID: createUser(t, db, models.RoleAdmin).ID, Role: models.RoleAdmin}

	app, err := svc.Submit(ctx, applicant.ID, grantRequest("community mesh", 400, 600))
	require.NoError(t, err)
	assert.Equal(t, models.GrantStatusSubmitted, app.Status)
	require.Len(t, app.Milestones, 2)
	assert.Equal(t, models.OwnerTypeGrantApplication, app.Milestones[0].OwnerType)

	_, err = svc.Submit(ctx, applicant.ID, grantRequest("community mesh", 100))
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = svc.Review(ctx, Actor{UserID: applicant.ID, Role: models.RoleUser}, app.ID, &ReviewRequest{Decision: DecisionApproved})
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := svc.Review(ctx, admin, app.ID, &ReviewRequest{Decision: DecisionApproved, Note: "fund it"})
	require.NoError(t, err)
	assert.Equal(t, models.GrantStatusApproved, got.Status)
	assert.Equal(t, "fund it", got.ReviewNote)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, admin.UserID, *got.ReviewedBy)

	_, err = svc.Review(ctx, admin, app.ID, &ReviewRequest{Decision: DecisionRejected})
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestGrantService_RejectArchives(t *testing.T) {
	db := newTestDB(t)
	svc := NewGrantService(db)
	ctx := context.Background()
	applicant := createUser(t, db, models.RoleUser)
	admin := Actor{UserID: createUser(t, db, models.RoleAdmin).ID, Role: models.RoleAdmin}

	app, err := svc.Submit(ctx, applicant.ID, grantRequest("library scanner", 500))
	require.NoError(t, err)
	got, err := svc.Review(ctx, admin, app.ID, &ReviewRequest{Decision: DecisionRejected})
	require.NoError(t, err)
	assert.Equal(t, models.GrantStatusRejected, got.Status)
	assert.True(t, got.Archived)

	// an archived application no longer blocks a new one
	_, err = svc.Submit(ctx, applicant.ID, grantRequest("library scanner", 500))
	assert.NoError(t, err)

	archived := true
	list, err := svc.List(ctx, &GrantListRequest{ApplicantID: applicant.ID, Archived: &archived})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
}

func TestGrantService_Validation(t *testing.T) {
	db := newTestDB(t)
	svc := NewGrantService(db)
	ctx := context.Background()
	applicant := createUser(t, db, models.RoleUser)

	_, err := svc.Submit(ctx, applicant.ID, grantRequest("no milestones"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Submit(ctx, applicant.ID, grantRequest("over budget", 600, 600))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Submit(ctx, applicant.ID, grantRequest("zero", 0))
	assert.ErrorIs(t, err, ErrValidation)

	req := grantRequest("no budget", 10)
	req.Budget = decimal.Zero
	_, err = svc.Submit(ctx, applicant.ID, req)
	assert.ErrorIs(t, err, ErrValidation)

	crowdfund := createProject(t, db, applicant.ID, models.ProjectStatusIdea, 10)
	req = grantRequest("wrong project type", 10)
	req.ProjectID = &crowdfund.ID
	_, err = svc.Submit(ctx, applicant.ID, req)
	assert.ErrorIs(t, err, ErrPrecondition)

	_, err = svc.Get(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

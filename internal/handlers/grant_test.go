package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/huangang/fundgate/internal/models"
	"github.com/huangang/fundgate/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitGrant(t *testing.T, env *testEnv, token string) *models.GrantApplication {
	t.Helper()
	code, resp := env.do(t, "POST", "/api/grant-applications", token, map[string]interface{}{
		"title":      "open data toolkit",
		"budget":     "500",
		"milestones": []map[string]interface{}{{"title": "release v1", "amount": "500"}},
	})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var app models.GrantApplication
	decode(t, resp.Data, &app)
	return &app
}

func TestGrantLifecycle_OverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)
	_, applicantToken := env.user(t, models.RoleUser)
	_, adminToken := env.user(t, models.RoleAdmin)

	code, _ := env.do(t, "PUT", "/api/wallets", applicantToken, map[string]string{"provider": "EVM", "address": "0xapplicant"})
	require.Equal(t, http.StatusOK, code)

	app := submitGrant(t, env, applicantToken)
	assert.Equal(t, models.GrantStatusSubmitted, app.Status)

	code, _ = env.do(t, "POST", "/api/grant-applications", applicantToken, map[string]interface{}{
		"title":      "open data toolkit",
		"budget":     "500",
		"milestones": []map[string]interface{}{{"title": "release v1", "amount": "500"}},
	})
	assert.Equal(t, http.StatusConflict, code, "second active application")

	appPath := fmt.Sprintf("/api/grant-applications/%d", app.ID)
	code, _ = env.do(t, "POST", appPath+"/review", applicantToken, map[string]string{"decision": "approved"})
	assert.Equal(t, http.StatusForbidden, code)

	code, resp := env.do(t, "POST", appPath+"/review", adminToken, map[string]string{"decision": "approved"})
	require.Equal(t, http.StatusOK, code, resp.Message)

	code, resp = env.do(t, "POST", "/api/escrow/lock", adminToken, map[string]interface{}{"subject_type": "grant_application", "subject_id": app.ID})
	require.Equal(t, http.StatusOK, code, resp.Message)

	code, resp = env.do(t, "GET", appPath, applicantToken, nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, resp.Data, app)
	assert.Equal(t, models.GrantStatusInProgress, app.Status)
	require.Len(t, app.Milestones, 1)
	msPath := fmt.Sprintf("/api/milestones/%d", app.Milestones[0].ID)

	code, _ = env.do(t, "POST", msPath+"/release", adminToken, nil)
	assert.Equal(t, http.StatusConflict, code, "pending milestone cannot be released")

	code, resp = env.do(t, "POST", msPath+"/proof", applicantToken, map[string]interface{}{
		"description": "v1 tagged",
		"proof_links": []string{"https://example.org/releases/v1"},
	})
	require.Equal(t, http.StatusOK, code, resp.Message)

	code, resp = env.do(t, "POST", msPath+"/review", adminToken, map[string]string{"decision": "approved"})
	require.Equal(t, http.StatusOK, code, resp.Message)
	var review services.MilestoneReviewResult
	decode(t, resp.Data, &review)
	assert.Equal(t, models.MilestoneStatusLocked, review.Milestone.Status)

	code, resp = env.do(t, "POST", msPath+"/release", adminToken, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var released services.SettlementResult
	decode(t, resp.Data, &released)
	assert.Equal(t, models.TxTypeMilestoneRelease, released.Transaction.Type)

	code, resp = env.do(t, "GET", appPath, applicantToken, nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, resp.Data, app)
	assert.Equal(t, models.GrantStatusCompleted, app.Status)

	code, resp = env.do(t, "GET", "/api/transactions?subject_type=milestone", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	var ledger services.TransactionListResponse
	decode(t, resp.Data, &ledger)
	assert.Equal(t, int64(2), ledger.Total)
}

func TestEscrowHandler_SettlementFailureReturnsEntry(t *testing.T) {
	env := newTestEnv(t, failingEscrow{})
	_, applicantToken := env.user(t, models.RoleUser)
	_, adminToken := env.user(t, models.RoleAdmin)
	code, _ := env.do(t, "PUT", "/api/wallets", applicantToken, map[string]string{"provider": "evm", "address": "0xapplicant"})
	require.Equal(t, http.StatusOK, code)

	app := submitGrant(t, env, applicantToken)
	code, _ = env.do(t, "POST", fmt.Sprintf("/api/grant-applications/%d/review", app.ID), adminToken, map[string]string{"decision": "approved"})
	require.Equal(t, http.StatusOK, code)

	code, resp := env.do(t, "POST", "/api/escrow/lock", adminToken, map[string]interface{}{"subject_type": "grant_application", "subject_id": app.ID})
	require.Equal(t, http.StatusBadGateway, code)
	var entry models.Transaction
	decode(t, resp.Data, &entry)
	assert.Equal(t, models.TxStatusFailed, entry.Status)
	assert.Equal(t, "0xapplicant", entry.ToAddress)
	assert.NotEmpty(t, entry.TransactionHash)
	assert.NotEmpty(t, entry.ErrorMessage)

	var stored models.GrantApplication
	require.NoError(t, env.db.First(&stored, app.ID).Error)
	assert.Equal(t, models.GrantStatusApproved, stored.Status, "a failed lock leaves the subject untouched")

	code, _ = env.do(t, "POST", "/api/escrow/lock", adminToken, map[string]interface{}{"subject_type": "wallet", "subject_id": 1})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestWalletHandler_MissingWallet(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.user(t, models.RoleUser)

	code, _ := env.do(t, "GET", "/api/wallets/evm", token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(t, "PUT", "/api/wallets", token, map[string]string{"provider": "evm", "address": "0xabc"})
	require.Equal(t, http.StatusOK, code)

	code, resp := env.do(t, "GET", "/api/wallets/evm", token, nil)
	require.Equal(t, http.StatusOK, code)
	var got map[string]string
	decode(t, resp.Data, &got)
	assert.Equal(t, "0xabc", got["address"])
}

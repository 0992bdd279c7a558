package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/huangang/fundgate/internal/models"
	"github.com/huangang/fundgate/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: title", services.ErrValidation), http.StatusBadRequest},
		{services.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("%w: admin only", services.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("%w: project", services.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: not validated", services.ErrPrecondition), http.StatusConflict},
		{services.ErrDuplicateVote, http.StatusConflict},
		{fmt.Errorf("%w: lost race", services.ErrConflict), http.StatusConflict},
		{&services.SettlementError{Reason: "timeout"}, http.StatusBadGateway},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, expected %d", tt.err, got, tt.want)
		}
	}
}

func TestAuthHandler_LoginAndMe(t *testing.T) {
	env := newTestEnv(t, nil)
	u, _ := env.user(t, models.RoleUser)

	code, _ := env.do(t, "POST", "/api/auth/login", "", map[string]string{"username": u.Username, "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = env.do(t, "POST", "/api/auth/login", "", map[string]string{"username": u.Username})
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp := env.do(t, "POST", "/api/auth/login", "", map[string]string{"username": u.Username, "password": "secret123"})
	require.Equal(t, http.StatusOK, code, resp.Message)
	var login services.LoginResponse
	decode(t, resp.Data, &login)
	require.NotEmpty(t, login.Token)

	code, resp = env.do(t, "GET", "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var me models.User
	decode(t, resp.Data, &me)
	assert.Equal(t, u.Username, me.Username)

	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", u.ID).Update("is_active", false).Error)
	code, _ = env.do(t, "POST", "/api/auth/login", "", map[string]string{"username": u.Username, "password": "secret123"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)
	u, _ := env.user(t, models.RoleUser)
	require.NoError(t, env.db.Create(&models.Project{OwnerID: u.ID, Title: "x", Type: models.ProjectTypeGrant, Status: models.ProjectStatusIdea, Voters: models.VoterList{}}).Error)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
	assert.Contains(t, w.Body.String(), `"queue_mode":"local"`)

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "fundgate_sse_active_clients 0")
	assert.Contains(t, body, "fundgate_queue_async_enabled 0")
	assert.Contains(t, body, `fundgate_projects{status="idea"} 1`)
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/fundgate/internal/config"
	"github.com/huangang/fundgate/internal/escrow"
	"github.com/huangang/fundgate/internal/middleware"
	"github.com/huangang/fundgate/internal/models"
	"github.com/huangang/fundgate/internal/services"
	"github.com/huangang/fundgate/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("handler-test-secret")
}

type noopQueue struct{}

func (noopQueue) Enqueue(*services.EvaluationTask) error { return nil }
func (noopQueue) IsAsync() bool                          { return false }
func (noopQueue) Close() error                           { return nil }

// failingEscrow accepts submissions and reports every one of them as failed
type failingEscrow struct{}

func (failingEscrow) Fund(_ context.Context, req escrow.FundRequest) (*escrow.Receipt, error) {
	return &escrow.Receipt{TxHash: req.TxHash, Status: escrow.StatusPending}, nil
}

func (failingEscrow) Release(_ context.Context, req escrow.ReleaseRequest) (*escrow.Receipt, error) {
	return &escrow.Receipt{TxHash: req.TxHash, Status: escrow.StatusPending}, nil
}

func (failingEscrow) Verify(context.Context, string) (escrow.Status, error) {
	return escrow.StatusFailed, nil
}

type testEnv struct {
	db       *gorm.DB
	router   *gin.Engine
	status   *services.StatusService
	registry *prometheus.Registry
}

func newTestEnv(t *testing.T, client escrow.Client) *testEnv {
	t.Helper()
	db, err := models.Open(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := config.DefaultConfig()
	cfg.Escrow.Driver = "simulated"
	cfg.Escrow.Backoff = time.Millisecond
	cfg.Escrow.ConfirmTimeout = time.Second
	cfg.Escrow.RequestTimeout = time.Second
	if client == nil {
		client = escrow.NewSimulated(1)
	}

	hub := services.NewSSEHub()
	queue := noopQueue{}
	wallets := services.NewWalletService(db)
	status := services.NewStatusService(db, &cfg.Voting, hub, nil)
	escrowSvc := services.NewEscrowService(db, client, wallets, status, &cfg.Escrow, nil)
	milestones := services.NewMilestoneService(db, escrowSvc)

	projectHandler := NewProjectHandler(services.NewProjectService(db, &cfg.Voting), status, milestones)
	voteHandler := NewVoteHandler(services.NewVoteService(db, &cfg.Voting, queue, hub, nil))
	grantHandler := NewGrantHandler(services.NewGrantService(db), milestones)
	milestoneHandler := NewMilestoneHandler(milestones, escrowSvc)
	escrowHandler := NewEscrowHandler(escrowSvc)
	walletHandler := NewWalletHandler(wallets)
	authHandler := NewAuthHandler(db, cfg)

	registry := prometheus.NewRegistry()
	RegisterRuntimeGauges(registry, db, hub, queue)

	r := gin.New()
	r.GET("/health", NewHealthHandler(db, queue, hub).CheckHealth)
	r.GET("/metrics", Metrics(registry))

	api := r.Group("/api")
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("", middleware.AuthRequired())
	protected.GET("/auth/me", authHandler.GetCurrentUser)
	protected.GET("/projects/:id", projectHandler.GetByID)
	protected.POST("/projects", projectHandler.Create)
	protected.POST("/projects/:id/transition", projectHandler.Transition)
	protected.GET("/projects/:id/milestones", projectHandler.ListMilestones)
	protected.POST("/projects/:id/vote", voteHandler.Cast)
	protected.DELETE("/projects/:id/vote", voteHandler.Remove)
	protected.GET("/projects/:id/tally", voteHandler.Tally)
	protected.POST("/grant-applications", grantHandler.Submit)
	protected.GET("/grant-applications/:id", grantHandler.GetByID)
	protected.POST("/milestones/:id/proof", milestoneHandler.SubmitProof)
	protected.PUT("/wallets", walletHandler.Link)
	protected.GET("/wallets/:provider", walletHandler.GetAddress)

	admin := api.Group("", middleware.AuthRequired(), middleware.AdminRequired())
	admin.POST("/grant-applications/:id/review", grantHandler.Review)
	admin.POST("/milestones/:id/review", milestoneHandler.Review)
	admin.POST("/milestones/:id/release", milestoneHandler.Release)
	admin.POST("/escrow/lock", escrowHandler.Lock)
	admin.GET("/transactions", escrowHandler.ListTransactions)

	return &testEnv{db: db, router: r, status: status, registry: registry}
}

var userSeq int

// user creates an account and returns it with a bearer token
func (e *testEnv) user(t *testing.T, role string) (*models.User, string) {
	t.Helper()
	userSeq++
	hashed, err := utils.HashPassword("secret123")
	require.NoError(t, err)
	u := &models.User{Username: fmt.Sprintf("user%d", userSeq), Password: hashed, Role: role, IsActive: true}
	require.NoError(t, e.db.Create(u).Error)
	token, err := utils.GenerateToken(u.ID, u.Username, u.Role, 1)
	require.NoError(t, err)
	return u, token
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w.Code, env
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

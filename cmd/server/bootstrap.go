package main

import (
	"context"
	"os"

	"github.com/huangang/fundgate/internal/config"
	"github.com/huangang/fundgate/internal/escrow"
	"github.com/huangang/fundgate/internal/handlers"
	"github.com/huangang/fundgate/internal/metrics"
	"github.com/huangang/fundgate/internal/models"
	"github.com/huangang/fundgate/internal/services"
	"github.com/huangang/fundgate/internal/utils"
	"github.com/huangang/fundgate/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	db        *gorm.DB
	registry  *prometheus.Registry
	hub       *services.SSEHub
	taskQueue services.TaskQueue
	worker    *services.Worker
	sweeper   *services.DeadlineSweeper
	cancel    context.CancelFunc

	authHandler      *handlers.AuthHandler
	projectHandler   *handlers.ProjectHandler
	voteHandler      *handlers.VoteHandler
	grantHandler     *handlers.GrantHandler
	milestoneHandler *handlers.MilestoneHandler
	escrowHandler    *handlers.EscrowHandler
	walletHandler    *handlers.WalletHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	db := models.GetDB()

	services.InitSystemLogger(db)
	services.StartLogCleanupScheduler(db, cfg.Log.RetentionDays)

	registry := prometheus.NewRegistry()
	m := &metrics.Metrics{}
	m.Register(registry)

	hub := services.GetSSEHub()
	status := services.NewStatusService(db, &cfg.Voting, hub, m)

	// Evaluation dispatch: Redis when enabled, in-process workers otherwise
	taskQueue := services.InitTaskQueue(cfg)
	if local, ok := taskQueue.(*services.LocalQueue); ok {
		local.SetProcessor(status.ProcessEvaluationTask)
	}

	var worker *services.Worker
	if taskQueue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis, cfg.Voting.LocalWorkers)
		worker.SetProcessor(status.ProcessEvaluationTask)
		if err := worker.Start(); err != nil {
			logger.Fatalf("Failed to start evaluation worker: %v", err)
		}
	}

	var client escrow.Client
	switch cfg.Escrow.Driver {
	case "http":
		client = escrow.NewHTTPClient(cfg.Escrow.BaseURL, cfg.Escrow.APIKey, cfg.Escrow.RequestTimeout)
	default:
		logger.Warn().Msg("Using the simulated escrow driver, no funds will move")
		client = escrow.NewSimulated(2)
	}

	wallets := services.NewWalletService(db)
	escrowSvc := services.NewEscrowService(db, client, wallets, status, &cfg.Escrow, m)
	milestones := services.NewMilestoneService(db, escrowSvc)
	votes := services.NewVoteService(db, &cfg.Voting, taskQueue, hub, m)

	sweeper := services.NewDeadlineSweeper(db, &cfg.Voting, status, taskQueue)
	if err := sweeper.Start(); err != nil {
		logger.Fatalf("Failed to start deadline sweeper: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	services.StartRecoveryScheduler(ctx, escrowSvc)

	handlers.RegisterRuntimeGauges(registry, db, hub, taskQueue)

	authHandler := handlers.NewAuthHandler(db, cfg)
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "admin"
	}
	if err := authHandler.CreateAdminIfNotExists("admin", adminPassword); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return &appServices{
		db:        db,
		registry:  registry,
		hub:       hub,
		taskQueue: taskQueue,
		worker:    worker,
		sweeper:   sweeper,
		cancel:    cancel,

		authHandler:      authHandler,
		projectHandler:   handlers.NewProjectHandler(services.NewProjectService(db, &cfg.Voting), status, milestones),
		voteHandler:      handlers.NewVoteHandler(votes),
		grantHandler:     handlers.NewGrantHandler(services.NewGrantService(db), milestones),
		milestoneHandler: handlers.NewMilestoneHandler(milestones, escrowSvc),
		escrowHandler:    handlers.NewEscrowHandler(escrowSvc),
		walletHandler:    handlers.NewWalletHandler(wallets),
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.cancel()
	s.sweeper.Stop()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Task queue close failed")
		}
	}
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}

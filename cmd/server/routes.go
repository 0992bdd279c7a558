package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/fundgate/internal/handlers"
	"github.com/huangang/fundgate/internal/middleware"
	"github.com/huangang/fundgate/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Votes and logins are the endpoints worth hammering
	voteLimiter := middleware.NewRateLimiter(5, 10)
	loginLimiter := middleware.NewRateLimiter(1, 5)

	r.GET("/health", handlers.NewHealthHandler(svc.db, svc.taskQueue, svc.hub).CheckHealth)
	r.GET("/metrics", handlers.Metrics(svc.registry))

	api := r.Group("/api")
	{
		auth := api.Group("/auth", loginLimiter.Middleware())
		{
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/register", svc.authHandler.Register)
		}

		// SSE Events (public route with internal token validation)
		sseHandler := handlers.NewSSEHandler(svc.hub)
		api.GET("/events/projects", sseHandler.StreamProjectEvents)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			// Projects: owners submit, cancel and delete; admins validate
			protected.GET("/projects", svc.projectHandler.List)
			protected.GET("/projects/:id", svc.projectHandler.GetByID)
			protected.GET("/projects/:id/milestones", svc.projectHandler.ListMilestones)
			protected.POST("/projects", svc.projectHandler.Create)
			protected.DELETE("/projects/:id", svc.projectHandler.Delete)
			protected.POST("/projects/:id/transition", svc.projectHandler.Transition)

			// Community validation
			protected.GET("/projects/:id/tally", svc.voteHandler.Tally)
			votes := protected.Group("", voteLimiter.Middleware())
			{
				votes.POST("/projects/:id/vote", svc.voteHandler.Cast)
				votes.DELETE("/projects/:id/vote", svc.voteHandler.Remove)
			}

			// Grants
			protected.GET("/grant-applications", svc.grantHandler.List)
			protected.GET("/grant-applications/:id", svc.grantHandler.GetByID)
			protected.GET("/grant-applications/:id/milestones", svc.grantHandler.ListMilestones)
			protected.POST("/grant-applications", svc.grantHandler.Submit)

			// Milestones
			protected.GET("/milestones/:id", svc.milestoneHandler.GetByID)
			protected.POST("/milestones/:id/proof", svc.milestoneHandler.SubmitProof)

			// Wallets
			protected.GET("/wallets", svc.walletHandler.List)
			protected.PUT("/wallets", svc.walletHandler.Link)
			protected.GET("/wallets/:provider", svc.walletHandler.GetAddress)
		}

		// Admin only routes
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.AuditLog())
		{
			admin.POST("/grant-applications/:id/review", svc.grantHandler.Review)
			admin.POST("/milestones/:id/review", svc.milestoneHandler.Review)
			admin.POST("/milestones/:id/release", svc.milestoneHandler.Release)

			// Escrow
			admin.POST("/escrow/lock", svc.escrowHandler.Lock)
			admin.GET("/transactions", svc.escrowHandler.ListTransactions)

			// Users
			userHandler := handlers.NewUserHandler(svc.db)
			admin.GET("/users", userHandler.List)
			admin.PUT("/users/:id", userHandler.Update)

			// System Logs
			systemLogHandler := handlers.NewSystemLogHandler(svc.db)
			admin.GET("/system-logs", systemLogHandler.List)
			admin.GET("/system-logs/modules", systemLogHandler.GetModules)
		}
	}
}

package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/fundgate/internal/models"
	"github.com/huangang/fundgate/internal/services"
	"gorm.io/gorm"
)

// HealthHandler provides enhanced health check endpoints.
type HealthHandler struct {
	db    *gorm.DB
	queue services.TaskQueue
	hub   *services.SSEHub
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue, hub *services.SSEHub) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, hub: hub}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := 200

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if dbStatus != "ok" {
		overall = "unhealthy"
		status = 503
	}

	queueMode := "local"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	sseClients := 0
	if h.hub != nil {
		sseClients = h.hub.ClientCount()
	}

	// Ledger entries still waiting on the escrow provider
	var pendingSettlements int64
	h.db.WithContext(c.Request.Context()).Model(&models.Transaction{}).
		Where("status = ?", models.TxStatusPending).
		Count(&pendingSettlements)

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "fundgate",
		"components": gin.H{
			"database":            dbStatus,
			"queue_mode":          queueMode,
			"sse_clients":         sseClients,
			"pending_settlements": pendingSettlements,
		},
	})
}

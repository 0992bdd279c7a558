package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/fundgate/internal/middleware"
	"github.com/huangang/fundgate/internal/services"
	"github.com/huangang/fundgate/pkg/response"
)

type EscrowHandler struct {
	escrowService *services.EscrowService
}

func NewEscrowHandler(escrow *services.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrowService: escrow}
}

// Lock moves funds for a project, grant application or milestone into escrow
// POST /api/escrow/lock
func (h *EscrowHandler) Lock(c *gin.Context) {
	var req services.LockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.escrowService.LockEscrow(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, res)
}

// ListTransactions returns settlement ledger entries
// GET /api/transactions
func (h *EscrowHandler) ListTransactions(c *gin.Context) {
	var req services.TransactionListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.escrowService.ListTransactions(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, resp)
}

package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/fundgate/internal/middleware"
	"github.com/huangang/fundgate/internal/services"
	"github.com/huangang/fundgate/pkg/response"
)

type WalletHandler struct {
	walletService *services.WalletService
}

func NewWalletHandler(wallets *services.WalletService) *WalletHandler {
	return &WalletHandler{walletService: wallets}
}

// Link sets the caller's payout address for a provider
// PUT /api/wallets
func (h *WalletHandler) Link(c *gin.Context) {
	var req services.LinkWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	wallet, err := h.walletService.LinkWallet(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, wallet)
}

// List
// GET /api/wallets
func (h *WalletHandler) List(c *gin.Context) {
	wallets, err := h.walletService.ListWallets(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, wallets)
}

// GetAddress
// GET /api/wallets/:provider
func (h *WalletHandler) GetAddress(c *gin.Context) {
	provider := c.Param("provider")
	address, err := h.walletService.GetWalletAddress(c.Request.Context(), middleware.GetUserID(c), provider)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"provider": provider, "address": address})
}

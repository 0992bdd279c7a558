package services

import (
	"context"
	"strings"

	"github.com/huangang/fundgate/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WalletService struct {
	db *gorm.DB
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{db: db}
}

type LinkWalletRequest struct {
	Provider string `json:"provider" binding:"required"`
	Address  string `json:"address" binding:"required"`
}

// LinkWallet sets the payout address of userID for a provider, replacing any previous one
func (s *WalletService) LinkWallet(ctx context.Context, userID uint, req *LinkWalletRequest) (*models.Wallet, error) {
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	address := strings.TrimSpace(req.Address)
	if provider == "" || len(provider) > 50 {
		return nil, validationErr("provider must be 1-50 characters")
	}
	if address == "" || len(address) > 200 {
		return nil, validationErr("address must be 1-200 characters")
	}

	wallet := models.Wallet{UserID: userID, Provider: provider, Address: address}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"address", "updated_at"}),
	}).Create(&wallet).Error
	if err != nil {
		return nil, err
	}
	return s.getWallet(ctx, userID, provider)
}

// GetWalletAddress returns the linked address or ErrNotFound
func (s *WalletService) GetWalletAddress(ctx context.Context, userID uint, provider string) (string, error) {
	wallet, err := s.getWallet(ctx, userID, strings.ToLower(provider))
	if err != nil {
		return "", err
	}
	return wallet.Address, nil
}

func (s *WalletService) ListWallets(ctx context.Context, userID uint) ([]models.Wallet, error) {
	var wallets []models.Wallet
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("provider").Find(&wallets).Error
	return wallets, err
}

func (s *WalletService) getWallet(ctx context.Context, userID uint, provider string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := s.db.WithContext(ctx).Where("user_id = ? AND provider = ?", userID, provider).First(&wallet).Error
	if err != nil {
		return nil, notFound(err, "wallet for provider "+provider)
	}
	return &wallet, nil
}

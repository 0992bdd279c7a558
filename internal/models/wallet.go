package models

import "time"

// Wallet links a user to an on-chain payout address for one provider
type Wallet struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_wallet_user_provider;not null" json:"user_id"`
	Provider  string    `gorm:"uniqueIndex:idx_wallet_user_provider;size:50;not null" json:"provider"`
	Address   string    `gorm:"size:200;not null" json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Wallet) TableName() string { return "wallets" }

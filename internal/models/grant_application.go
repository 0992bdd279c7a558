package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GrantApplication is a funding request reviewed by admins and paid out per milestone
type GrantApplication struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	ProjectID      *uint           `gorm:"index" json:"project_id"`
	ApplicantID    uint            `gorm:"index;not null" json:"applicant_id"`
	Title          string          `gorm:"size:200;not null" json:"title"`
	Description    string          `gorm:"type:text" json:"description"`
	Budget         decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"budget"`
	Status         GrantStatus     `gorm:"size:20;not null;index;default:submitted" json:"status"`
	Archived       bool            `gorm:"default:false" json:"archived"`
	ReviewNote     string          `gorm:"type:text" json:"review_note"`
	ReviewedBy     *uint           `json:"reviewed_by"`
	ReviewedAt     *time.Time      `json:"reviewed_at"`
	EscrowedAmount decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"escrowed_amount"`
	EscrowTxHash   string          `gorm:"size:200" json:"escrow_tx_hash"`
	Milestones     []Milestone     `gorm:"polymorphic:Owner;polymorphicValue:grant_application" json:"milestones,omitempty"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (GrantApplication) TableName() string { return "grant_applications" }

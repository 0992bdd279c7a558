package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Milestone is a payout unit of a project or grant application
type Milestone struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	OwnerID          uint            `gorm:"index:idx_milestone_owner;not null" json:"owner_id"`
	OwnerType        string          `gorm:"index:idx_milestone_owner;size:30;not null" json:"owner_type"` // project, grant_application
	Position         int             `gorm:"not null" json:"position"`
	Title            string          `gorm:"size:200;not null" json:"title"`
	Description      string          `gorm:"type:text" json:"description"`
	Amount           decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	DueDate          *time.Time      `json:"due_date"`
	Status           MilestoneStatus `gorm:"size:20;not null;index;default:pending" json:"status"`
	ProofDescription string          `gorm:"type:text" json:"proof_description"`
	ProofLinks       StringList      `gorm:"type:text" json:"proof_links"`
	SubmittedAt      *time.Time      `json:"submitted_at"`
	ReviewNote       string          `gorm:"type:text" json:"review_note"`
	ReviewedBy       *uint           `json:"reviewed_by"`
	ReviewedAt       *time.Time      `json:"reviewed_at"`
	EscrowedAmount   decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"escrowed_amount"`
	TxHash           string          `gorm:"size:200" json:"tx_hash"`
	ReleaseTxHash    string          `gorm:"size:200" json:"release_tx_hash"`
	CompletedAt      *time.Time      `json:"completed_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (Milestone) TableName() string { return "milestones" }

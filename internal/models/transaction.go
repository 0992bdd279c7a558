package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an append-only ledger entry for one external settlement attempt.
// It is created PENDING before the external call and finalized exactly once.
type Transaction struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	SubjectType     string          `gorm:"index:idx_tx_subject;size:30;not null" json:"subject_type"` // project, grant_application, milestone
	SubjectID       uint            `gorm:"index:idx_tx_subject;not null" json:"subject_id"`
	ActionKey       string          `gorm:"uniqueIndex:idx_tx_action_attempt;size:100;not null" json:"action_key"`
	Attempt         int             `gorm:"uniqueIndex:idx_tx_action_attempt;not null" json:"attempt"`
	Type            TxType          `gorm:"size:30;not null" json:"type"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	FromAddress     string          `gorm:"size:200" json:"from_address"`
	ToAddress       string          `gorm:"size:200" json:"to_address"`
	TransactionHash string          `gorm:"index;size:200;not null" json:"transaction_hash"`
	Status          TxStatus        `gorm:"size:20;not null;index;default:pending" json:"status"`
	ErrorMessage    string          `gorm:"type:text" json:"error_message"`
	RecoveredFromID *uint           `json:"recovered_from_id"` // set when a late-confirmed failed attempt is recovered
	InitiatedBy     uint            `json:"initiated_by"`
	CreatedAt       time.Time       `gorm:"index" json:"timestamp"`
	ConfirmedAt     *time.Time      `json:"confirmed_at"`
	FailedAt        *time.Time      `json:"failed_at"`
}

func (Transaction) TableName() string { return "transaction_ledger" }

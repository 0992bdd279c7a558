package models

import "time"

// Crowdfund is the campaign control record, one per crowdfund-type project
type Crowdfund struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	ProjectID       uint            `gorm:"uniqueIndex;not null" json:"project_id"`
	ThresholdVotes  int             `gorm:"not null" json:"threshold_votes"`
	VoteDeadline    time.Time       `gorm:"index" json:"vote_deadline"`
	TotalVotes      int             `gorm:"not null;default:0" json:"total_votes"` // denormalized from project tally
	Status          CrowdfundStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	RejectionReason string          `gorm:"size:500" json:"rejection_reason"`
	ResolvedAt      *time.Time      `json:"resolved_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (Crowdfund) TableName() string { return "crowdfunds" }

package models

import "time"

const (
	VoteUp   int8 = 1
	VoteDown int8 = -1
)

// Vote is one voter's ballot on one project. (voter_id, project_id) is unique.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	VoterID   uint      `gorm:"uniqueIndex:idx_vote_voter_project;not null" json:"voter_id"`
	ProjectID uint      `gorm:"uniqueIndex:idx_vote_voter_project;index;not null" json:"project_id"`
	Value     int8      `gorm:"not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Vote) TableName() string { return "votes" }

// VoteLabel maps a ballot value to its voter-list label
func VoteLabel(value int8) string {
	if value > 0 {
		return VoterPositive
	}
	return VoterNegative
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Tally is the cached vote aggregate of a project. The votes table is the source of truth.
type Tally struct {
	Upvotes    int `gorm:"not null;default:0" json:"upvotes"`
	Downvotes  int `gorm:"not null;default:0" json:"downvotes"`
	TotalVotes int `gorm:"not null;default:0" json:"total_votes"`
	NetVotes   int `gorm:"not null;default:0" json:"net_votes"`
}

// Apply returns the tally after adding delta to the upvote/downvote counters.
func (t Tally) Apply(upDelta, downDelta int) Tally {
	t.Upvotes += upDelta
	t.Downvotes += downDelta
	t.TotalVotes = t.Upvotes + t.Downvotes
	t.NetVotes = t.Upvotes - t.Downvotes
	return t
}

// Consistent checks the internal arithmetic of the tally
func (t Tally) Consistent() bool {
	return t.Upvotes >= 0 && t.Downvotes >= 0 &&
		t.NetVotes == t.Upvotes-t.Downvotes &&
		t.TotalVotes == t.Upvotes+t.Downvotes
}

// PositiveRatio is upvotes / totalVotes, 0 when no votes exist.
func (t Tally) PositiveRatio() float64 {
	if t.TotalVotes == 0 {
		return 0
	}
	return float64(t.Upvotes) / float64(t.TotalVotes)
}

const (
	VoterPositive = "positive"
	VoterNegative = "negative"
)

// VoterEntry is the denormalized per-voter view kept on the project
type VoterEntry struct {
	VoterID uint      `json:"voter_id"`
	Vote    string    `json:"vote"` // positive, negative
	VotedAt time.Time `json:"voted_at"`
}

// Project represents a Subject Record: a crowdfund campaign or grant-backed project
type Project struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	OwnerID        uint            `gorm:"index;not null" json:"owner_id"`
	Title          string          `gorm:"size:200;not null" json:"title"`
	Description    string          `gorm:"type:text" json:"description"`
	Type           ProjectType     `gorm:"size:20;not null;index" json:"type"`
	Status         ProjectStatus   `gorm:"size:20;not null;index;default:idea" json:"status"`
	StatusReason   string          `gorm:"size:500" json:"status_reason"`
	FundingGoal    decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"funding_goal"`
	EscrowedAmount decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"escrowed_amount"`
	EscrowTxHash   string          `gorm:"size:200" json:"escrow_tx_hash"`
	Tally          Tally           `gorm:"embedded" json:"tally"`
	Voters         VoterList       `gorm:"type:text" json:"voters"`
	Version        int             `gorm:"not null;default:0" json:"-"` // bumped by every vote/status write
	Milestones     []Milestone     `gorm:"polymorphic:Owner;polymorphicValue:project" json:"milestones,omitempty"`
	Crowdfund      *Crowdfund      `gorm:"foreignKey:ProjectID" json:"crowdfund,omitempty"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Project) TableName() string { return "projects" }

// VoterIndex returns the position of voterID in Voters, or -1.
func (p *Project) VoterIndex(voterID uint) int {
	for i, v := range p.Voters {
		if v.VoterID == voterID {
			return i
		}
	}
	return -1
}

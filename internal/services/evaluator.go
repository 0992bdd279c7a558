package services

import (
	"github.com/huangang/fundgate/internal/config"
	"github.com/huangang/fundgate/internal/models"
)

// Evaluation results, also used as metric labels
const (
	EvalNoChange = "no_change"
	EvalApproved = "approved"
	EvalRejected = "rejected"
	EvalSkipped  = "skipped"
)

// ReasonInsufficientVotes is stored on projects the community voted down
const ReasonInsufficientVotes = "insufficient positive votes"

// Thresholds are the approval/rejection ratios applied once a project reaches its vote threshold
type Thresholds struct {
	ApproveRatio float64
	RejectRatio  float64
}

func ThresholdsFromConfig(cfg *config.VotingConfig) Thresholds {
	return Thresholds{ApproveRatio: cfg.ApproveRatio, RejectRatio: cfg.RejectRatio}
}

// Decision is the outcome of evaluating a project's tally
type Decision struct {
	Result string
	Next   models.ProjectStatus
	Reason string
}

// Changed reports whether the decision moves the project
func (d Decision) Changed() bool {
	return d.Result == EvalApproved || d.Result == EvalRejected
}

// Evaluate decides whether a validated crowdfund project has enough community
// support to start campaigning, or too little to continue. It has no side effects.
func Evaluate(p *models.Project, cf *models.Crowdfund, th Thresholds) Decision {
	keep := Decision{Result: EvalNoChange, Next: p.Status}

	if p.Status != models.ProjectStatusValidated {
		keep.Result = EvalSkipped
		return keep
	}
	if cf == nil || cf.Status != models.CrowdfundStatusPending {
		keep.Result = EvalSkipped
		return keep
	}
	if p.Tally.TotalVotes < cf.ThresholdVotes {
		return keep
	}

	ratio := p.Tally.PositiveRatio()
	switch {
	case ratio >= th.ApproveRatio:
		return Decision{Result: EvalApproved, Next: models.ProjectStatusCampaigning}
	case ratio < th.RejectRatio:
		return Decision{Result: EvalRejected, Next: models.ProjectStatusRejected, Reason: ReasonInsufficientVotes}
	}
	// between the two ratios the project stays open for more votes
	return keep
}

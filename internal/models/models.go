package models

// ProjectType distinguishes community-funded campaigns from grant-backed projects
type ProjectType string

const (
	ProjectTypeCrowdfund ProjectType = "crowdfund"
	ProjectTypeGrant     ProjectType = "grant"
)

// ProjectStatus is the lifecycle state of a Subject Record
type ProjectStatus string

const (
	ProjectStatusIdea        ProjectStatus = "idea"
	ProjectStatusReviewing   ProjectStatus = "reviewing"
	ProjectStatusValidated   ProjectStatus = "validated"
	ProjectStatusRejected    ProjectStatus = "rejected"
	ProjectStatusCampaigning ProjectStatus = "campaigning"
	ProjectStatusLive        ProjectStatus = "live"
	ProjectStatusCompleted   ProjectStatus = "completed"
	ProjectStatusFailed      ProjectStatus = "failed"
	ProjectStatusCancelled   ProjectStatus = "cancelled"
)

var projectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectStatusIdea:        {ProjectStatusReviewing, ProjectStatusCancelled},
	ProjectStatusReviewing:   {ProjectStatusValidated, ProjectStatusRejected, ProjectStatusCancelled},
	ProjectStatusValidated:   {ProjectStatusCampaigning, ProjectStatusRejected, ProjectStatusCancelled},
	ProjectStatusCampaigning: {ProjectStatusLive, ProjectStatusFailed, ProjectStatusCancelled},
	ProjectStatusLive:        {ProjectStatusCompleted, ProjectStatusFailed},
}

// CanTransitionTo reports whether the lifecycle table allows s -> to.
func (s ProjectStatus) CanTransitionTo(to ProjectStatus) bool {
	for _, next := range projectTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsVoteable reports whether the community may vote on a project in this status.
func (s ProjectStatus) IsVoteable() bool {
	return s == ProjectStatusValidated
}

// IsTerminal reports whether no further lifecycle moves are possible.
func (s ProjectStatus) IsTerminal() bool {
	return len(projectTransitions[s]) == 0
}

// IsValid reports whether s is a known project status
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectStatusIdea, ProjectStatusReviewing, ProjectStatusValidated, ProjectStatusRejected,
		ProjectStatusCampaigning, ProjectStatusLive, ProjectStatusCompleted, ProjectStatusFailed,
		ProjectStatusCancelled:
		return true
	}
	return false
}

// CrowdfundStatus is the campaign-level status held by the Crowdfund Control Record
type CrowdfundStatus string

const (
	CrowdfundStatusPending   CrowdfundStatus = "pending"
	CrowdfundStatusValidated CrowdfundStatus = "validated"
	CrowdfundStatusRejected  CrowdfundStatus = "rejected"
)

// MilestoneStatus is the per-milestone funding state
type MilestoneStatus string

const (
	MilestoneStatusPending   MilestoneStatus = "pending"
	MilestoneStatusSubmitted MilestoneStatus = "submitted"
	MilestoneStatusApproved  MilestoneStatus = "approved"
	MilestoneStatusRejected  MilestoneStatus = "rejected"
	MilestoneStatusLocked    MilestoneStatus = "locked"
	MilestoneStatusReleased  MilestoneStatus = "released"
)

var milestoneTransitions = map[MilestoneStatus][]MilestoneStatus{
	MilestoneStatusPending:   {MilestoneStatusSubmitted},
	MilestoneStatusSubmitted: {MilestoneStatusApproved, MilestoneStatusRejected},
	MilestoneStatusRejected:  {MilestoneStatusSubmitted},
	MilestoneStatusApproved:  {MilestoneStatusLocked},
	MilestoneStatusLocked:    {MilestoneStatusReleased},
}

// CanTransitionTo reports whether the milestone state machine allows s -> to.
func (s MilestoneStatus) CanTransitionTo(to MilestoneStatus) bool {
	for _, next := range milestoneTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// GrantStatus is the review/funding state of a grant application
type GrantStatus string

const (
	GrantStatusSubmitted  GrantStatus = "submitted"
	GrantStatusApproved   GrantStatus = "approved"
	GrantStatusRejected   GrantStatus = "rejected"
	GrantStatusInProgress GrantStatus = "in_progress"
	GrantStatusCompleted  GrantStatus = "completed"
)

// Owner types for polymorphic milestones and ledger subjects
const (
	OwnerTypeProject          = "project"
	OwnerTypeGrantApplication = "grant_application"
	OwnerTypeMilestone        = "milestone"
)

// TxType is the kind of external settlement action
type TxType string

const (
	TxTypeFunding          TxType = "funding"
	TxTypeMilestoneRelease TxType = "milestone_release"
)

// TxStatus is the confirmation state of a ledger entry
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

// Roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

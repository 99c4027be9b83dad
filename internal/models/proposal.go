package models

import (
	"time"

	"github.com/lib/pq"
)

// ProposalStatus enumerates proposal lifecycle states.
type ProposalStatus string

const (
	ProposalStatusDraft       ProposalStatus = "DRAFT"
	ProposalStatusSubmitted   ProposalStatus = "SUBMITTED"
	ProposalStatusUnderReview ProposalStatus = "UNDER_REVIEW"
	ProposalStatusEvaluated   ProposalStatus = "EVALUATED"
	ProposalStatusAwarded     ProposalStatus = "AWARDED"
	ProposalStatusNotAwarded  ProposalStatus = "NOT_AWARDED"
	ProposalStatusWithdrawn   ProposalStatus = "WITHDRAWN"
)

// ProposalEvent enumerates non-status history entries.
type ProposalEvent string

const (
	ProposalEventScoreEntered ProposalEvent = "SCORE_ENTERED"
)

// AwardableProposalStatuses are the states a sibling proposal may be in when
// an award lands; every sibling in one of these moves to NOT_AWARDED.
var AwardableProposalStatuses = []ProposalStatus{
	ProposalStatusUnderReview,
	ProposalStatusEvaluated,
	ProposalStatusAwarded,
}

// RankableProposalStatuses participate in score ranking.
var RankableProposalStatuses = []ProposalStatus{
	ProposalStatusEvaluated,
	ProposalStatusAwarded,
	ProposalStatusNotAwarded,
}

// IsAwardable reports whether the status allows being part of an award cascade.
func (s ProposalStatus) IsAwardable() bool {
	for _, a := range AwardableProposalStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// ProponentKind distinguishes individual from organization proponents.
type ProponentKind string

const (
	ProponentIndividual   ProponentKind = "INDIVIDUAL"
	ProponentOrganization ProponentKind = "ORGANIZATION"
)

// Proposal is a mutable root record; unlike opportunities only the status
// history is versioned, not the content.
type Proposal struct {
	ID               string         `db:"id" json:"id"`
	OpportunityID    string         `db:"opportunity_id" json:"opportunityId"`
	CreatedBy        string         `db:"created_by" json:"createdBy"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
	UpdatedBy        *string        `db:"updated_by" json:"updatedBy,omitempty"`
	ProponentKind    ProponentKind  `db:"proponent_kind" json:"proponentKind"`
	OrganizationName string         `db:"organization_name" json:"organizationName,omitempty"`
	ProposalText     string         `db:"proposal_text" json:"proposalText"`
	Score            *float64       `db:"score" json:"score,omitempty"`
	Attachments      pq.StringArray `db:"attachments" json:"attachments"`
}

// ProposalStatusRecord mirrors the opportunity status record shape.
type ProposalStatusRecord struct {
	ID          string          `db:"id" json:"id"`
	ProposalID  string          `db:"proposal_id" json:"entityId"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	CreatedBy   *string         `db:"created_by" json:"createdBy"`
	Status      *ProposalStatus `db:"status" json:"status,omitempty"`
	Event       *ProposalEvent  `db:"event" json:"event,omitempty"`
	Note        string          `db:"note" json:"note"`
	Attachments pq.StringArray  `db:"attachments" json:"attachments"`
}

// Valid reports whether exactly one of status/event is set.
func (r *ProposalStatusRecord) Valid() bool {
	return (r.Status == nil) != (r.Event == nil)
}

// ProposalView is the assembled read projection for one proposal.
type ProposalView struct {
	ID               string        `json:"id"`
	OpportunityID    string        `json:"opportunityId"`
	CreatedBy        string        `json:"createdBy,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
	UpdatedBy        *string       `json:"updatedBy,omitempty"`
	ProponentKind    ProponentKind `json:"proponentKind"`
	OrganizationName string        `json:"organizationName,omitempty"`
	ProposalText     string        `json:"proposalText"`
	Attachments      []FileRecord  `json:"attachments"`

	Status ProposalStatus `json:"status"`

	// Score-entitled viewers only.
	Score *float64 `json:"score,omitempty"`
	Rank  *int     `json:"rank,omitempty"`

	// Admin/author only.
	History []ProposalStatusRecord `json:"history,omitempty"`
}

// ProposalFilter constrains listing queries.
type ProposalFilter struct {
	OpportunityID string
	AuthorID      string
	Limit         int
	Offset        int
}

// ProposalRank pairs a proposal with its live-computed rank.
type ProposalRank struct {
	ProposalID string `db:"proposal_id"`
	Rank       int    `db:"rank"`
}

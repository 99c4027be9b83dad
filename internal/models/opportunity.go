package models

import (
	"time"

	"github.com/lib/pq"
)

// OpportunityStatus enumerates opportunity lifecycle states.
type OpportunityStatus string

const (
	OpportunityStatusDraft      OpportunityStatus = "DRAFT"
	OpportunityStatusPublished  OpportunityStatus = "PUBLISHED"
	OpportunityStatusEvaluation OpportunityStatus = "EVALUATION"
	OpportunityStatusAwarded    OpportunityStatus = "AWARDED"
	OpportunityStatusSuspended  OpportunityStatus = "SUSPENDED"
	OpportunityStatusCanceled   OpportunityStatus = "CANCELED"
)

// OpportunityEvent enumerates non-status history entries.
type OpportunityEvent string

const (
	OpportunityEventEdited        OpportunityEvent = "EDITED"
	OpportunityEventAddendumAdded OpportunityEvent = "ADDENDUM_ADDED"
	OpportunityEventNoteAdded     OpportunityEvent = "NOTE_ADDED"
)

// PublicOpportunityStatuses are visible to anonymous and vendor viewers.
var PublicOpportunityStatuses = []OpportunityStatus{
	OpportunityStatusPublished,
	OpportunityStatusEvaluation,
	OpportunityStatusAwarded,
	OpportunityStatusSuspended,
	OpportunityStatusCanceled,
}

// IsPublic reports whether the status belongs to the public visibility set.
func (s OpportunityStatus) IsPublic() bool {
	for _, public := range PublicOpportunityStatuses {
		if s == public {
			return true
		}
	}
	return false
}

// Opportunity is the immutable root record. Everything editable lives in
// versions; the lifecycle lives in status records.
type Opportunity struct {
	ID        string    `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	CreatedBy *string   `db:"created_by" json:"createdBy,omitempty"`
}

// OpportunityVersion is an append-only snapshot of the editable fields.
// A new row is inserted on every edit; rows are never mutated.
type OpportunityVersion struct {
	ID                 string         `db:"id" json:"id"`
	OpportunityID      string         `db:"opportunity_id" json:"opportunityId"`
	CreatedAt          time.Time      `db:"created_at" json:"createdAt"`
	CreatedBy          *string        `db:"created_by" json:"createdBy,omitempty"`
	Title              string         `db:"title" json:"title"`
	Teaser             string         `db:"teaser" json:"teaser"`
	RewardCents        int64          `db:"reward_cents" json:"rewardCents"`
	Skills             pq.StringArray `db:"skills" json:"skills"`
	ProposalDeadline   time.Time      `db:"proposal_deadline" json:"proposalDeadline"`
	AssignmentDate     *time.Time     `db:"assignment_date" json:"assignmentDate,omitempty"`
	Description        string         `db:"description" json:"description"`
	EvaluationCriteria string         `db:"evaluation_criteria" json:"evaluationCriteria"`
}

// OpportunityStatusRecord is one row of the append-only history: either a
// status transition or a non-status event, never both.
type OpportunityStatusRecord struct {
	ID            string             `db:"id" json:"id"`
	OpportunityID string             `db:"opportunity_id" json:"entityId"`
	CreatedAt     time.Time          `db:"created_at" json:"createdAt"`
	CreatedBy     *string            `db:"created_by" json:"createdBy"`
	Status        *OpportunityStatus `db:"status" json:"status,omitempty"`
	Event         *OpportunityEvent  `db:"event" json:"event,omitempty"`
	Note          string             `db:"note" json:"note"`
	Attachments   pq.StringArray     `db:"attachments" json:"attachments"`
}

// Valid reports whether exactly one of status/event is set.
func (r *OpportunityStatusRecord) Valid() bool {
	return (r.Status == nil) != (r.Event == nil)
}

// Addendum is an immutable amendment attached to an opportunity.
type Addendum struct {
	ID            string    `db:"id" json:"id"`
	OpportunityID string    `db:"opportunity_id" json:"opportunityId"`
	Description   string    `db:"description" json:"description"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	CreatedBy     *string   `db:"created_by" json:"createdBy,omitempty"`
}

// OpportunityReporting aggregates engagement metrics for admin/author views.
type OpportunityReporting struct {
	ViewCount          int64 `json:"viewCount"`
	WatcherCount       int64 `json:"watcherCount"`
	SubmittedProposals int   `json:"submittedProposals"`
}

// ProponentSummary identifies the awarded vendor on a closed opportunity.
type ProponentSummary struct {
	ProposalID       string   `json:"proposalId"`
	Name             string   `json:"name"`
	OrganizationName string   `json:"organizationName,omitempty"`
	Email            string   `json:"email,omitempty"`
	Score            *float64 `json:"score,omitempty"`
}

// OpportunityView is the assembled read projection for one opportunity:
// current version fields, computed status, and viewer-scoped enrichment.
type OpportunityView struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy *string   `json:"createdBy,omitempty"`

	Title              string     `json:"title"`
	Teaser             string     `json:"teaser"`
	RewardCents        int64      `json:"rewardCents"`
	Skills             []string   `json:"skills"`
	ProposalDeadline   time.Time  `json:"proposalDeadline"`
	AssignmentDate     *time.Time `json:"assignmentDate,omitempty"`
	Description        string     `json:"description"`
	EvaluationCriteria string     `json:"evaluationCriteria"`

	Status      OpportunityStatus `json:"status"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	UpdatedBy   *string           `json:"updatedBy,omitempty"`
	PublishedAt *time.Time        `json:"publishedAt,omitempty"`

	Attachments []FileRecord `json:"attachments"`
	Addenda     []Addendum   `json:"addenda"`
	Subscribed  bool         `json:"subscribed"`

	// Admin/author only.
	History   []OpportunityStatusRecord `json:"history,omitempty"`
	Reporting *OpportunityReporting     `json:"reporting,omitempty"`

	// Present only when the opportunity is awarded.
	SuccessfulProponent *ProponentSummary `json:"successfulProponent,omitempty"`
}

// OpportunityFilter constrains listing queries.
type OpportunityFilter struct {
	Statuses []OpportunityStatus
	AuthorID string
	Limit    int
	Offset   int
}

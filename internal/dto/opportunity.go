package dto

import (
	"time"

	"github.com/procurehub/marketplace-api/internal/models"
)

// CreateOpportunityRequest carries the initial version fields plus the
// starting status (draft or published).
type CreateOpportunityRequest struct {
	Title              string                   `json:"title" validate:"required,max=200"`
	Teaser             string                   `json:"teaser" validate:"max=500"`
	RewardCents        int64                    `json:"rewardCents" validate:"gte=0"`
	Skills             []string                 `json:"skills"`
	ProposalDeadline   time.Time                `json:"proposalDeadline" validate:"required"`
	AssignmentDate     *time.Time               `json:"assignmentDate,omitempty"`
	Description        string                   `json:"description"`
	EvaluationCriteria string                   `json:"evaluationCriteria"`
	Status             models.OpportunityStatus `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED"`
}

// EditOpportunityRequest carries a full replacement snapshot; a new version
// row is appended, the previous one stays untouched.
type EditOpportunityRequest struct {
	Title              string     `json:"title" validate:"required,max=200"`
	Teaser             string     `json:"teaser" validate:"max=500"`
	RewardCents        int64      `json:"rewardCents" validate:"gte=0"`
	Skills             []string   `json:"skills"`
	ProposalDeadline   time.Time  `json:"proposalDeadline" validate:"required"`
	AssignmentDate     *time.Time `json:"assignmentDate,omitempty"`
	Description        string     `json:"description"`
	EvaluationCriteria string     `json:"evaluationCriteria"`
}

// ChangeOpportunityStatusRequest requests a lifecycle transition.
type ChangeOpportunityStatusRequest struct {
	Status models.OpportunityStatus `json:"status" validate:"required"`
	Note   string                   `json:"note" validate:"max=1000"`
}

// AddAddendumRequest appends an addendum to a published opportunity.
type AddAddendumRequest struct {
	Description string `json:"description" validate:"required,max=5000"`
}

// AddNoteRequest records an internal note with optional attachments.
type AddNoteRequest struct {
	Note        string   `json:"note" validate:"required,max=1000"`
	Attachments []string `json:"attachments" validate:"dive,uuid4"`
}

// OpportunityQuery mirrors supported listing filters.
type OpportunityQuery struct {
	Statuses []models.OpportunityStatus
	Limit    int
	Offset   int
}

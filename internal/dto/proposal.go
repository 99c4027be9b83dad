package dto

import "github.com/procurehub/marketplace-api/internal/models"

// CreateProposalRequest opens a draft proposal on an opportunity.
type CreateProposalRequest struct {
	OpportunityID    string               `json:"opportunityId" validate:"required,uuid4"`
	ProponentKind    models.ProponentKind `json:"proponentKind" validate:"required,oneof=INDIVIDUAL ORGANIZATION"`
	OrganizationName string               `json:"organizationName" validate:"max=200"`
	ProposalText     string               `json:"proposalText"`
	Attachments      []string             `json:"attachments" validate:"dive,uuid4"`
}

// UpdateProposalRequest replaces the draft content.
type UpdateProposalRequest struct {
	ProponentKind    models.ProponentKind `json:"proponentKind" validate:"required,oneof=INDIVIDUAL ORGANIZATION"`
	OrganizationName string               `json:"organizationName" validate:"max=200"`
	ProposalText     string               `json:"proposalText"`
	Attachments      []string             `json:"attachments" validate:"dive,uuid4"`
}

// ChangeProposalStatusRequest requests a lifecycle transition
// (submit, withdraw, start review).
type ChangeProposalStatusRequest struct {
	Status models.ProposalStatus `json:"status" validate:"required"`
	Note   string                `json:"note" validate:"max=1000"`
}

// AwardProposalRequest awards the proposal and cascades to its siblings.
type AwardProposalRequest struct {
	Note string `json:"note" validate:"max=1000"`
}

// ScoreProposalRequest records an evaluation score.
type ScoreProposalRequest struct {
	Score float64 `json:"score" validate:"gte=0,lte=100"`
	Note  string  `json:"note" validate:"max=1000"`
}

// ProposalQuery mirrors supported listing filters.
type ProposalQuery struct {
	OpportunityID string
	Limit         int
	Offset        int
}

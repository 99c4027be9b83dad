package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/procurehub/marketplace-api/internal/models"
)

func TestOpportunityTransitionGraph(t *testing.T) {
	admin := TransitionContext{ActorRole: models.RoleAdmin}

	cases := []struct {
		name    string
		from    models.OpportunityStatus
		to      models.OpportunityStatus
		allowed bool
	}{
		{"draft to published", models.OpportunityStatusDraft, models.OpportunityStatusPublished, true},
		{"published to evaluation", models.OpportunityStatusPublished, models.OpportunityStatusEvaluation, true},
		{"published to suspended", models.OpportunityStatusPublished, models.OpportunityStatusSuspended, true},
		{"suspended to published", models.OpportunityStatusSuspended, models.OpportunityStatusPublished, true},
		{"evaluation to awarded", models.OpportunityStatusEvaluation, models.OpportunityStatusAwarded, true},
		{"published to canceled", models.OpportunityStatusPublished, models.OpportunityStatusCanceled, true},
		{"awarded to canceled", models.OpportunityStatusAwarded, models.OpportunityStatusCanceled, true},
		{"draft to awarded rejected", models.OpportunityStatusDraft, models.OpportunityStatusAwarded, false},
		{"draft to evaluation rejected", models.OpportunityStatusDraft, models.OpportunityStatusEvaluation, false},
		{"awarded to published rejected", models.OpportunityStatusAwarded, models.OpportunityStatusPublished, false},
		{"canceled is terminal", models.OpportunityStatusCanceled, models.OpportunityStatusPublished, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanTransitionOpportunity(tc.from, tc.to, admin))
		})
	}
}

func TestOpportunityTransitionRoleGates(t *testing.T) {
	govAuthor := TransitionContext{ActorRole: models.RoleGovernment, IsAuthor: true}
	govOther := TransitionContext{ActorRole: models.RoleGovernment, IsAuthor: false}
	vendor := TransitionContext{ActorRole: models.RoleVendor, IsAuthor: true}

	// Publishing is admin-only, even for the author.
	assert.False(t, CanTransitionOpportunity(models.OpportunityStatusDraft, models.OpportunityStatusPublished, govAuthor))

	// Other moves are open to the authoring government user but nobody else.
	assert.True(t, CanTransitionOpportunity(models.OpportunityStatusPublished, models.OpportunityStatusSuspended, govAuthor))
	assert.False(t, CanTransitionOpportunity(models.OpportunityStatusPublished, models.OpportunityStatusSuspended, govOther))
	assert.False(t, CanTransitionOpportunity(models.OpportunityStatusPublished, models.OpportunityStatusSuspended, vendor))
}

func TestProposalTransitionGraph(t *testing.T) {
	admin := TransitionContext{ActorRole: models.RoleAdmin}

	cases := []struct {
		name    string
		from    models.ProposalStatus
		to      models.ProposalStatus
		allowed bool
	}{
		{"submitted to under review", models.ProposalStatusSubmitted, models.ProposalStatusUnderReview, true},
		{"under review to evaluated", models.ProposalStatusUnderReview, models.ProposalStatusEvaluated, true},
		{"under review to awarded", models.ProposalStatusUnderReview, models.ProposalStatusAwarded, true},
		{"evaluated to awarded", models.ProposalStatusEvaluated, models.ProposalStatusAwarded, true},
		{"evaluated to not awarded", models.ProposalStatusEvaluated, models.ProposalStatusNotAwarded, true},
		{"draft to awarded rejected", models.ProposalStatusDraft, models.ProposalStatusAwarded, false},
		{"submitted to evaluated rejected", models.ProposalStatusSubmitted, models.ProposalStatusEvaluated, false},
		{"withdrawn is terminal", models.ProposalStatusWithdrawn, models.ProposalStatusSubmitted, false},
		{"not awarded is terminal", models.ProposalStatusNotAwarded, models.ProposalStatusAwarded, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanTransitionProposal(tc.from, tc.to, admin))
		})
	}
}

func TestProposalSubmitDeadlineGate(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	author := TransitionContext{
		ActorRole:        models.RoleVendor,
		IsAuthor:         true,
		ProposalDeadline: deadline,
	}

	author.Now = deadline.Add(-time.Minute)
	assert.True(t, CanTransitionProposal(models.ProposalStatusDraft, models.ProposalStatusSubmitted, author))

	author.Now = deadline
	assert.False(t, CanTransitionProposal(models.ProposalStatusDraft, models.ProposalStatusSubmitted, author))

	author.Now = deadline.Add(time.Minute)
	assert.False(t, CanTransitionProposal(models.ProposalStatusDraft, models.ProposalStatusSubmitted, author))
}

func TestProposalAuthorGates(t *testing.T) {
	otherVendor := TransitionContext{ActorRole: models.RoleVendor, IsAuthor: false}
	admin := TransitionContext{ActorRole: models.RoleAdmin}
	author := TransitionContext{ActorRole: models.RoleVendor, IsAuthor: true}

	// Only the authoring vendor submits or withdraws.
	assert.False(t, CanTransitionProposal(models.ProposalStatusDraft, models.ProposalStatusSubmitted, otherVendor))
	assert.False(t, CanTransitionProposal(models.ProposalStatusSubmitted, models.ProposalStatusWithdrawn, admin))
	assert.True(t, CanTransitionProposal(models.ProposalStatusSubmitted, models.ProposalStatusWithdrawn, author))

	// Withdrawal stays legal after review begins, before an award lands.
	assert.True(t, CanTransitionProposal(models.ProposalStatusUnderReview, models.ProposalStatusWithdrawn, author))
	assert.True(t, CanTransitionProposal(models.ProposalStatusEvaluated, models.ProposalStatusWithdrawn, author))

	// Review decisions belong to admins.
	assert.False(t, CanTransitionProposal(models.ProposalStatusUnderReview, models.ProposalStatusEvaluated, author))
	assert.True(t, CanTransitionProposal(models.ProposalStatusUnderReview, models.ProposalStatusEvaluated, admin))
}

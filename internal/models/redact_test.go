package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func awardedOpportunityView() OpportunityView {
	score := 91.5
	return OpportunityView{
		ID:        "opp-1",
		CreatedBy: ptr("gov-1"),
		Title:     "Road resurfacing",
		Status:    OpportunityStatusAwarded,
		UpdatedBy: ptr("admin-1"),
		History:   []OpportunityStatusRecord{{ID: "st-1", OpportunityID: "opp-1"}},
		Reporting: &OpportunityReporting{ViewCount: 12, WatcherCount: 3, SubmittedProposals: 4},
		SuccessfulProponent: &ProponentSummary{
			ProposalID: "prop-1",
			Name:       "Alex Rivera",
			Email:      "alex@example.com",
			Score:      &score,
		},
	}
}

func TestRedactOpportunityForPublicViewer(t *testing.T) {
	vendor := &JWTClaims{UserID: "vendor-1", Role: RoleVendor}

	view := RedactOpportunity(awardedOpportunityView(), vendor)

	assert.Nil(t, view.CreatedBy)
	assert.Nil(t, view.UpdatedBy)
	assert.Nil(t, view.History)
	assert.Nil(t, view.Reporting)
	require.NotNil(t, view.SuccessfulProponent)
	assert.Equal(t, "Alex Rivera", view.SuccessfulProponent.Name)
	assert.Empty(t, view.SuccessfulProponent.Email)
	assert.Nil(t, view.SuccessfulProponent.Score)
}

func TestRedactOpportunityForAnonymousViewer(t *testing.T) {
	view := RedactOpportunity(awardedOpportunityView(), nil)

	assert.Nil(t, view.History)
	assert.Nil(t, view.Reporting)
}

func TestRedactOpportunityKeepsDetailForAuthorAndAdmin(t *testing.T) {
	for _, viewer := range []*JWTClaims{
		{UserID: "gov-1", Role: RoleGovernment},
		{UserID: "admin-1", Role: RoleAdmin},
	} {
		view := RedactOpportunity(awardedOpportunityView(), viewer)

		assert.NotNil(t, view.CreatedBy)
		assert.NotNil(t, view.History)
		assert.NotNil(t, view.Reporting)
		require.NotNil(t, view.SuccessfulProponent)
		assert.Equal(t, "alex@example.com", view.SuccessfulProponent.Email)
		assert.NotNil(t, view.SuccessfulProponent.Score)
	}
}

func TestRedactOpportunityOtherGovernmentTreatedAsPublic(t *testing.T) {
	other := &JWTClaims{UserID: "gov-2", Role: RoleGovernment}

	view := RedactOpportunity(awardedOpportunityView(), other)

	assert.Nil(t, view.History)
	assert.Nil(t, view.Reporting)
}

func proposalViewInStatus(status ProposalStatus) ProposalView {
	score := 77.0
	rank := 2
	return ProposalView{
		ID:        "prop-1",
		CreatedBy: "vendor-1",
		Status:    status,
		Score:     &score,
		Rank:      &rank,
		History:   []ProposalStatusRecord{{ID: "st-1", ProposalID: "prop-1"}},
	}
}

func TestRedactProposalHidesScoreUntilEvaluated(t *testing.T) {
	author := &JWTClaims{UserID: "vendor-1", Role: RoleVendor}

	view := RedactProposal(proposalViewInStatus(ProposalStatusUnderReview), author)

	assert.Nil(t, view.Score)
	assert.Nil(t, view.Rank)
	assert.Equal(t, "vendor-1", view.CreatedBy)
	assert.NotNil(t, view.History)
}

func TestRedactProposalShowsScoreToAuthorOnceEvaluated(t *testing.T) {
	author := &JWTClaims{UserID: "vendor-1", Role: RoleVendor}

	for _, status := range []ProposalStatus{ProposalStatusEvaluated, ProposalStatusAwarded, ProposalStatusNotAwarded} {
		view := RedactProposal(proposalViewInStatus(status), author)

		assert.NotNil(t, view.Score, string(status))
		assert.NotNil(t, view.Rank, string(status))
	}
}

func TestRedactProposalAdminSeesEverything(t *testing.T) {
	admin := &JWTClaims{UserID: "admin-1", Role: RoleAdmin}

	view := RedactProposal(proposalViewInStatus(ProposalStatusSubmitted), admin)

	assert.NotNil(t, view.Score)
	assert.NotNil(t, view.Rank)
	assert.NotNil(t, view.History)
}

func TestRedactProposalStripsAuthorForStrangers(t *testing.T) {
	stranger := &JWTClaims{UserID: "gov-1", Role: RoleGovernment}

	view := RedactProposal(proposalViewInStatus(ProposalStatusEvaluated), stranger)

	assert.Empty(t, view.CreatedBy)
	assert.Nil(t, view.History)
	assert.Nil(t, view.Score)
	assert.Nil(t, view.Rank)
}

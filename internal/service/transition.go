package service

import (
	"time"

	"github.com/procurehub/marketplace-api/internal/models"
)

// TransitionContext carries everything a transition decision depends on
// besides the two statuses. The validator itself has no side effects and
// never consults the database.
type TransitionContext struct {
	ActorRole models.UserRole
	IsAuthor  bool
	Now       time.Time

	// ProposalDeadline gates proposal submission. Zero value means no
	// deadline applies to the decision.
	ProposalDeadline time.Time
}

// opportunityTransitions is the directed graph of legal opportunity status
// moves. Cancellation is reachable from every public state.
var opportunityTransitions = map[models.OpportunityStatus][]models.OpportunityStatus{
	models.OpportunityStatusDraft: {
		models.OpportunityStatusPublished,
	},
	models.OpportunityStatusPublished: {
		models.OpportunityStatusEvaluation,
		models.OpportunityStatusSuspended,
		models.OpportunityStatusCanceled,
	},
	models.OpportunityStatusSuspended: {
		models.OpportunityStatusPublished,
		models.OpportunityStatusCanceled,
	},
	models.OpportunityStatusEvaluation: {
		models.OpportunityStatusAwarded,
		models.OpportunityStatusCanceled,
	},
	models.OpportunityStatusAwarded: {
		models.OpportunityStatusCanceled,
	},
}

// proposalTransitions is the directed graph of legal proposal status moves.
// Withdrawn is reachable from every pre-award state.
var proposalTransitions = map[models.ProposalStatus][]models.ProposalStatus{
	models.ProposalStatusDraft: {
		models.ProposalStatusSubmitted,
		models.ProposalStatusWithdrawn,
	},
	models.ProposalStatusSubmitted: {
		models.ProposalStatusUnderReview,
		models.ProposalStatusWithdrawn,
	},
	models.ProposalStatusUnderReview: {
		models.ProposalStatusEvaluated,
		models.ProposalStatusAwarded,
		models.ProposalStatusNotAwarded,
		models.ProposalStatusWithdrawn,
	},
	models.ProposalStatusEvaluated: {
		models.ProposalStatusAwarded,
		models.ProposalStatusNotAwarded,
		models.ProposalStatusWithdrawn,
	},
}

// CanTransitionOpportunity reports whether the actor may move an opportunity
// from current to target. Publishing is reserved for admins; every other move
// is open to admins and the authoring government user.
func CanTransitionOpportunity(current, target models.OpportunityStatus, ctx TransitionContext) bool {
	if !edgeAllowed(opportunityTransitions[current], target) {
		return false
	}
	if target == models.OpportunityStatusPublished && current == models.OpportunityStatusDraft {
		return ctx.ActorRole == models.RoleAdmin
	}
	if ctx.ActorRole == models.RoleAdmin {
		return true
	}
	return ctx.ActorRole == models.RoleGovernment && ctx.IsAuthor
}

// CanTransitionProposal reports whether the actor may move a proposal from
// current to target. Submission and withdrawal belong to the proposal's
// author; review, evaluation, and award decisions belong to admins.
// Submission is additionally gated by the opportunity's proposal deadline.
func CanTransitionProposal(current, target models.ProposalStatus, ctx TransitionContext) bool {
	if !edgeAllowed(proposalTransitions[current], target) {
		return false
	}
	switch target {
	case models.ProposalStatusSubmitted:
		if !ctx.IsAuthor || ctx.ActorRole != models.RoleVendor {
			return false
		}
		return ctx.ProposalDeadline.IsZero() || ctx.Now.Before(ctx.ProposalDeadline)
	case models.ProposalStatusWithdrawn:
		return ctx.IsAuthor && ctx.ActorRole == models.RoleVendor
	default:
		return ctx.ActorRole == models.RoleAdmin
	}
}

func edgeAllowed[S comparable](targets []S, target S) bool {
	for _, t := range targets {
		if t == target {
			return true
		}
	}
	return false
}

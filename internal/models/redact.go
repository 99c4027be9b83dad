package models

// Role-based view redaction. Retrieval assembles the full projection; these
// transformations strip what the viewer is not entitled to see, so the access
// policy is testable independently of the store.

// IsAuthor reports whether the claims belong to the given author ID.
func IsAuthor(viewer *JWTClaims, authorID *string) bool {
	if viewer == nil || authorID == nil {
		return false
	}
	return viewer.UserID == *authorID
}

// CanViewOpportunityDetails reports whether history and reporting metrics are
// visible: admins and the authoring government user only.
func CanViewOpportunityDetails(viewer *JWTClaims, createdBy *string) bool {
	if viewer.IsAdmin() {
		return true
	}
	return viewer != nil && viewer.Role == RoleGovernment && IsAuthor(viewer, createdBy)
}

// CanViewProposalScore gates score and rank exposure: admins always, the
// authoring vendor once the proposal reached a terminal evaluated state.
func CanViewProposalScore(viewer *JWTClaims, authorID string, status ProposalStatus) bool {
	if viewer.IsAdmin() {
		return true
	}
	if viewer == nil || viewer.UserID != authorID {
		return false
	}
	switch status {
	case ProposalStatusEvaluated, ProposalStatusAwarded, ProposalStatusNotAwarded:
		return true
	}
	return false
}

// RedactOpportunity strips viewer-restricted fields from the projection.
func RedactOpportunity(view OpportunityView, viewer *JWTClaims) OpportunityView {
	entitled := CanViewOpportunityDetails(viewer, view.CreatedBy)
	if !entitled {
		view.CreatedBy = nil
		view.UpdatedBy = nil
		view.History = nil
		view.Reporting = nil
		if view.SuccessfulProponent != nil {
			// Winner identity is public; contact detail and score are not.
			redacted := *view.SuccessfulProponent
			redacted.Email = ""
			redacted.Score = nil
			view.SuccessfulProponent = &redacted
		}
	}
	return view
}

// RedactProposal strips viewer-restricted fields from the projection.
func RedactProposal(view ProposalView, viewer *JWTClaims) ProposalView {
	author := view.CreatedBy
	if !viewer.IsAdmin() && (viewer == nil || viewer.UserID != author) {
		view.CreatedBy = ""
		view.UpdatedBy = nil
		view.History = nil
	}
	if !CanViewProposalScore(viewer, author, view.Status) {
		view.Score = nil
		view.Rank = nil
	}
	return view
}

package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurehub/marketplace-api/internal/models"
	appErrors "github.com/procurehub/marketplace-api/pkg/errors"
)

type stubExportUsers struct {
	users map[string]models.User
}

func (m *stubExportUsers) FindByIDs(_ context.Context, ids []string) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if user, ok := m.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func newExportFixture(t *testing.T) (*ExportService, *stubProposalRepo) {
	t.Helper()
	opps := newStubOpportunityRepo()
	proposals := newStubProposalRepo()
	users := &stubExportUsers{users: map[string]models.User{
		"vendor-1": {ID: "vendor-1", FullName: "Alex Rivera"},
		"vendor-2": {ID: "vendor-2", FullName: "Sam Chen"},
	}}

	author := "gov-1"
	awarded := models.OpportunityStatusAwarded
	opps.roots["opp-1"] = models.Opportunity{ID: "opp-1", CreatedBy: &author, CreatedAt: time.Now()}
	opps.versions["opp-1"] = []models.OpportunityVersion{{OpportunityID: "opp-1", Title: "Harbor dredging", CreatedAt: time.Now()}}
	opps.statuses["opp-1"] = []models.OpportunityStatusRecord{{OpportunityID: "opp-1", Status: &awarded, CreatedAt: time.Now()}}

	score1, score2 := 91.0, 78.5
	proposals.proposals["prop-1"] = models.Proposal{ID: "prop-1", OpportunityID: "opp-1", CreatedBy: "vendor-1", Score: &score1}
	proposals.proposals["prop-2"] = models.Proposal{ID: "prop-2", OpportunityID: "opp-1", CreatedBy: "vendor-2", OrganizationName: "Chen Marine", Score: &score2}
	statusAwarded := models.ProposalStatusAwarded
	statusNot := models.ProposalStatusNotAwarded
	proposals.statuses["prop-1"] = []models.ProposalStatusRecord{{ProposalID: "prop-1", Status: &statusAwarded, CreatedAt: time.Now()}}
	proposals.statuses["prop-2"] = []models.ProposalStatusRecord{{ProposalID: "prop-2", Status: &statusNot, CreatedAt: time.Now()}}

	return NewExportService(opps, proposals, users, nil), proposals
}

func TestAwardSummaryCSV(t *testing.T) {
	svc, _ := newExportFixture(t)

	result, err := svc.AwardSummary(context.Background(), adminClaims(), "opp-1", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "award-summary-opp-1.csv", result.Filename)

	body := string(result.Data)
	assert.True(t, strings.HasPrefix(body, "Proposal,Proponent,Organization,Status,Score,Rank"))
	assert.Contains(t, body, "Alex Rivera")
	assert.Contains(t, body, "AWARDED")
	assert.Contains(t, body, "91.0")
}

func TestAwardSummaryPDF(t *testing.T) {
	svc, _ := newExportFixture(t)

	result, err := svc.AwardSummary(context.Background(), adminClaims(), "opp-1", ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.NotEmpty(t, result.Data)
}

func TestAwardSummaryForbiddenForVendors(t *testing.T) {
	svc, _ := newExportFixture(t)

	_, err := svc.AwardSummary(context.Background(), vendorClaims("vendor-1"), "opp-1", ExportFormatCSV)
	assert.Equal(t, appErrors.ErrForbidden, err)
}

func TestAwardSummaryAllowsOpportunityAuthor(t *testing.T) {
	svc, _ := newExportFixture(t)

	_, err := svc.AwardSummary(context.Background(), governmentClaims("gov-1"), "opp-1", ExportFormatCSV)
	require.NoError(t, err)
}

func TestAwardSummaryUnsupportedFormat(t *testing.T) {
	svc, _ := newExportFixture(t)

	_, err := svc.AwardSummary(context.Background(), adminClaims(), "opp-1", ExportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCloseRunSummaryListsOutcomes(t *testing.T) {
	svc, _ := newExportFixture(t)

	report := &CloseRunReport{
		RanAt:     time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC),
		Processed: 3,
		Closed:    []string{"opp-1", "opp-2"},
		Failures:  []CloseFailure{{OpportunityID: "opp-3", Reason: "simulated"}},
	}
	result, err := svc.CloseRunSummary(report, ExportFormatCSV)
	require.NoError(t, err)

	body := string(result.Data)
	assert.Contains(t, body, "opp-1,closed")
	assert.Contains(t, body, "opp-3,failed,simulated")
}

package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/procurehub/marketplace-api/internal/models"
	appErrors "github.com/procurehub/marketplace-api/pkg/errors"
	"github.com/procurehub/marketplace-api/pkg/export"
)

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type exportProposalReader interface {
	List(ctx context.Context, filter models.ProposalFilter) ([]models.Proposal, error)
	CurrentStatus(ctx context.Context, proposalID string) (*models.ProposalStatusRecord, error)
	Ranks(ctx context.Context, opportunityID string) ([]models.ProposalRank, error)
}

type exportUserReader interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// ExportResult is a rendered document ready for download.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders evaluation summaries for download.
type ExportService struct {
	opportunities opportunityStateReader
	proposals     exportProposalReader
	users         exportUserReader
	csv           csvRenderer
	pdf           pdfRenderer
	logger        *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(opportunities opportunityStateReader, proposals exportProposalReader, users exportUserReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		opportunities: opportunities,
		proposals:     proposals,
		users:         users,
		csv:           export.NewCSVExporter(),
		pdf:           export.NewPDFExporter(),
		logger:        logger,
	}
}

var awardSummaryHeaders = []string{"Proposal", "Proponent", "Organization", "Status", "Score", "Rank"}

// AwardSummary renders the evaluation outcome of one opportunity: every
// proposal with its proponent, status, score, and rank. Admins and the
// opportunity's author only.
func (s *ExportService) AwardSummary(ctx context.Context, actor *models.JWTClaims, opportunityID string, format ExportFormat) (*ExportResult, error) {
	root, err := s.opportunities.GetRoot(ctx, opportunityID)
	if err != nil {
		return nil, appErrors.ErrNotFound
	}
	if !models.CanViewOpportunityDetails(actor, root.CreatedBy) {
		return nil, appErrors.ErrForbidden
	}
	version, err := s.opportunities.CurrentVersion(ctx, opportunityID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrDataIntegrity, "opportunity has no version")
	}

	proposals, err := s.proposals.List(ctx, models.ProposalFilter{OpportunityID: opportunityID, Limit: 200})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list proposals")
	}
	ranks, err := s.proposals.Ranks(ctx, opportunityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute ranks")
	}
	rankByID := make(map[string]int, len(ranks))
	for _, r := range ranks {
		rankByID[r.ProposalID] = r.Rank
	}

	authorIDs := make([]string, 0, len(proposals))
	for _, p := range proposals {
		authorIDs = append(authorIDs, p.CreatedBy)
	}
	users, err := s.users.FindByIDs(ctx, authorIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve proponents")
	}
	nameByID := make(map[string]string, len(users))
	for _, u := range users {
		nameByID[u.ID] = u.FullName
	}

	dataset := export.Dataset{Headers: awardSummaryHeaders}
	for _, p := range proposals {
		record, err := s.proposals.CurrentStatus(ctx, p.ID)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrDataIntegrity, "proposal has no status")
		}
		row := map[string]string{
			"Proposal":     p.ID,
			"Proponent":    nameByID[p.CreatedBy],
			"Organization": p.OrganizationName,
			"Status":       string(*record.Status),
		}
		if p.Score != nil {
			row["Score"] = strconv.FormatFloat(*p.Score, 'f', 1, 64)
		}
		if rank, ok := rankByID[p.ID]; ok {
			row["Rank"] = strconv.Itoa(rank)
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	title := fmt.Sprintf("Award summary: %s", version.Title)
	return s.render(dataset, title, fmt.Sprintf("award-summary-%s", opportunityID), format)
}

// CloseRunSummary renders the outcome of one lapsed-close batch run.
func (s *ExportService) CloseRunSummary(report *CloseRunReport, format ExportFormat) (*ExportResult, error) {
	dataset := export.Dataset{Headers: []string{"Opportunity", "Outcome", "Reason"}}
	for _, id := range report.Closed {
		dataset.Rows = append(dataset.Rows, map[string]string{"Opportunity": id, "Outcome": "closed"})
	}
	for _, failure := range report.Failures {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Opportunity": failure.OpportunityID,
			"Outcome":     "failed",
			"Reason":      failure.Reason,
		})
	}
	title := fmt.Sprintf("Close run %s", report.RanAt.Format(time.RFC3339))
	return s.render(dataset, title, fmt.Sprintf("close-run-%s", report.RanAt.Format("20060102-150405")), format)
}

func (s *ExportService) render(dataset export.Dataset, title, basename string, format ExportFormat) (*ExportResult, error) {
	switch format {
	case ExportFormatCSV, "":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{Filename: basename + ".csv", ContentType: "text/csv", Data: data}, nil
	case ExportFormatPDF:
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{Filename: basename + ".pdf", ContentType: "application/pdf", Data: data}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", strings.ToLower(string(format))))
	}
}

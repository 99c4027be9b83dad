package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/procurehub/marketplace-api/internal/dto"
	"github.com/procurehub/marketplace-api/internal/models"
	"github.com/procurehub/marketplace-api/internal/repository"
	appErrors "github.com/procurehub/marketplace-api/pkg/errors"
)

type proposalRepository interface {
	Create(ctx context.Context, proposal *models.Proposal, status *models.ProposalStatusRecord) error
	GetByID(ctx context.Context, id string) (*models.Proposal, error)
	List(ctx context.Context, filter models.ProposalFilter) ([]models.Proposal, error)
	UpdateContent(ctx context.Context, proposal *models.Proposal) error
	InsertStatusTx(ctx context.Context, tx *sqlx.Tx, record *models.ProposalStatusRecord) error
	CurrentStatus(ctx context.Context, proposalID string) (*models.ProposalStatusRecord, error)
	History(ctx context.Context, proposalID string) ([]models.ProposalStatusRecord, error)
	SiblingsInStatusesTx(ctx context.Context, tx *sqlx.Tx, opportunityID string, statuses []models.ProposalStatus) ([]repository.ProposalStateRow, error)
	UpdateScoreTx(ctx context.Context, tx *sqlx.Tx, proposalID string, score float64, actorID string, now time.Time) error
	Ranks(ctx context.Context, opportunityID string) ([]models.ProposalRank, error)
	Delete(ctx context.Context, id string) error
}

type opportunityStateReader interface {
	GetRoot(ctx context.Context, id string) (*models.Opportunity, error)
	CurrentVersion(ctx context.Context, opportunityID string) (*models.OpportunityVersion, error)
	CurrentStatus(ctx context.Context, opportunityID string) (*models.OpportunityStatusRecord, error)
	InsertStatusTx(ctx context.Context, tx *sqlx.Tx, record *models.OpportunityStatusRecord) error
}

// ProposalService orchestrates the proposal workflow: drafting, submission,
// review transitions, scoring, and the award cascade.
type ProposalService struct {
	repo          proposalRepository
	opportunities opportunityStateReader
	files         fileStore
	outbox        notificationOutbox
	audit         auditWriter
	tx            txRunner
	validator     *validator.Validate
	logger        *zap.Logger
	metrics       *MetricsService
	now           func() time.Time
}

// ProposalServiceOption customises construction.
type ProposalServiceOption func(*ProposalService)

// WithProposalClock overrides the time source, for tests.
func WithProposalClock(now func() time.Time) ProposalServiceOption {
	return func(s *ProposalService) { s.now = now }
}

// WithProposalMetrics wires transition instrumentation.
func WithProposalMetrics(metrics *MetricsService) ProposalServiceOption {
	return func(s *ProposalService) { s.metrics = metrics }
}

// NewProposalService constructs the service.
func NewProposalService(
	repo proposalRepository,
	opportunities opportunityStateReader,
	files fileStore,
	outbox notificationOutbox,
	audit auditWriter,
	tx txRunner,
	validate *validator.Validate,
	logger *zap.Logger,
	opts ...ProposalServiceOption,
) *ProposalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ProposalService{
		repo:          repo,
		opportunities: opportunities,
		files:         files,
		outbox:        outbox,
		audit:         audit,
		tx:            tx,
		validator:     validate,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create opens a draft proposal. Vendors only, one per opportunity per
// author, and only while the opportunity is accepting proposals.
func (s *ProposalService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateProposalRequest) (*models.ProposalView, error) {
	if actor == nil || actor.Role != models.RoleVendor {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid proposal payload")
	}

	oppStatus, err := s.opportunityStatus(ctx, req.OpportunityID)
	if err != nil {
		return nil, err
	}
	if oppStatus != models.OpportunityStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "opportunity is not accepting proposals")
	}
	deadline, err := s.opportunityDeadline(ctx, req.OpportunityID)
	if err != nil {
		return nil, err
	}
	if !s.now().Before(deadline) {
		return nil, appErrors.ErrDeadlinePassed
	}
	if err := s.verifyAttachments(ctx, req.Attachments); err != nil {
		return nil, err
	}

	proposal := &models.Proposal{
		OpportunityID:    req.OpportunityID,
		CreatedBy:        actor.UserID,
		ProponentKind:    req.ProponentKind,
		OrganizationName: req.OrganizationName,
		ProposalText:     req.ProposalText,
		Attachments:      req.Attachments,
	}
	draft := models.ProposalStatusDraft
	status := &models.ProposalStatusRecord{Status: &draft, CreatedBy: &actor.UserID}

	if err := s.repo.Create(ctx, proposal, status); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, appErrors.Clone(appErrors.ErrConflict, "you already have a proposal on this opportunity")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create proposal")
	}

	s.emitAudit(ctx, actor, models.AuditActionProposalCreate, proposal.ID)
	return s.Get(ctx, actor, proposal.ID)
}

// Get returns the assembled, redacted projection for one proposal.
func (s *ProposalService) Get(ctx context.Context, viewer *models.JWTClaims, id string) (*models.ProposalView, error) {
	proposal, err := s.loadProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canSee(ctx, viewer, proposal) {
		return nil, appErrors.ErrNotFound
	}
	view, err := s.assembleView(ctx, proposal)
	if err != nil {
		return nil, err
	}
	redacted := models.RedactProposal(*view, viewer)
	return &redacted, nil
}

// List returns redacted proposals visible to the viewer.
func (s *ProposalService) List(ctx context.Context, viewer *models.JWTClaims, query dto.ProposalQuery) ([]models.ProposalView, error) {
	if viewer == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.ProposalFilter{OpportunityID: query.OpportunityID, Limit: query.Limit, Offset: query.Offset}
	switch {
	case viewer.IsAdmin():
		// No extra scoping.
	case viewer.Role == models.RoleGovernment:
		if query.OpportunityID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "opportunityId is required")
		}
		root, err := s.opportunityRoot(ctx, query.OpportunityID)
		if err != nil {
			return nil, err
		}
		if !models.IsAuthor(viewer, root.CreatedBy) {
			return nil, appErrors.ErrForbidden
		}
	default:
		filter.AuthorID = viewer.UserID
	}

	proposals, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list proposals")
	}
	views := make([]models.ProposalView, 0, len(proposals))
	for i := range proposals {
		view, err := s.assembleView(ctx, &proposals[i])
		if err != nil {
			return nil, err
		}
		views = append(views, models.RedactProposal(*view, viewer))
	}
	return views, nil
}

// Update replaces the draft content. Only the author, only while the proposal
// is still a draft.
func (s *ProposalService) Update(ctx context.Context, actor *models.JWTClaims, id string, req dto.UpdateProposalRequest) (*models.ProposalView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid proposal payload")
	}
	proposal, err := s.loadProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor == nil || actor.UserID != proposal.CreatedBy {
		return nil, appErrors.ErrForbidden
	}
	current, err := s.currentStatusOf(ctx, id)
	if err != nil {
		return nil, err
	}
	if current != models.ProposalStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only draft proposals can be edited")
	}
	if err := s.verifyAttachments(ctx, req.Attachments); err != nil {
		return nil, err
	}

	proposal.ProponentKind = req.ProponentKind
	proposal.OrganizationName = req.OrganizationName
	proposal.ProposalText = req.ProposalText
	proposal.Attachments = req.Attachments
	proposal.UpdatedBy = &actor.UserID
	if err := s.repo.UpdateContent(ctx, proposal); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update proposal")
	}

	s.emitAudit(ctx, actor, models.AuditActionProposalUpdate, id)
	return s.Get(ctx, actor, id)
}

// ChangeStatus validates and applies one proposal lifecycle transition.
// Submit and withdraw come from the author; review moves come from admins.
func (s *ProposalService) ChangeStatus(ctx context.Context, actor *models.JWTClaims, id string, req dto.ChangeProposalStatusRequest) (*models.ProposalView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if req.Status == models.ProposalStatusAwarded {
		return nil, appErrors.Clone(appErrors.ErrValidation, "use the award operation")
	}
	proposal, err := s.loadProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	current, err := s.currentStatusOf(ctx, id)
	if err != nil {
		return nil, err
	}
	deadline, err := s.opportunityDeadline(ctx, proposal.OpportunityID)
	if err != nil {
		return nil, err
	}

	tctx := TransitionContext{Now: s.now(), ProposalDeadline: deadline}
	if actor != nil {
		tctx.ActorRole = actor.Role
		tctx.IsAuthor = actor.UserID == proposal.CreatedBy
	}
	allowed := CanTransitionProposal(current, req.Status, tctx)
	s.metrics.ObserveTransition("proposal", string(req.Status), allowed)
	if !allowed {
		if req.Status == models.ProposalStatusSubmitted && !tctx.Now.Before(deadline) {
			return nil, appErrors.ErrDeadlinePassed
		}
		return nil, appErrors.ErrIllegalTransition
	}

	record := &models.ProposalStatusRecord{
		ProposalID: id,
		CreatedBy:  &actor.UserID,
		Status:     &req.Status,
		Note:       req.Note,
	}
	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.InsertStatusTx(ctx, tx, record); err != nil {
			return err
		}
		if req.Status == models.ProposalStatusSubmitted {
			s.notifySubmitted(ctx, tx, proposal)
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change proposal status")
	}

	s.emitAudit(ctx, actor, models.AuditActionProposalStatus, id)
	return s.Get(ctx, actor, id)
}

// Award marks the target proposal Awarded, moves every sibling still in an
// awardable state to NotAwarded, and advances the opportunity to Awarded,
// all in one transaction. The opportunity is advanced last so no reader can
// see it Awarded while a sibling still shows Evaluated.
func (s *ProposalService) Award(ctx context.Context, actor *models.JWTClaims, id string, req dto.AwardProposalRequest) (*models.ProposalView, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid award payload")
	}
	proposal, err := s.loadProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	current, err := s.currentStatusOf(ctx, id)
	if err != nil {
		return nil, err
	}
	allowed := CanTransitionProposal(current, models.ProposalStatusAwarded, TransitionContext{ActorRole: actor.Role, Now: s.now()})
	s.metrics.ObserveTransition("proposal", string(models.ProposalStatusAwarded), allowed)
	if !allowed {
		return nil, appErrors.ErrIllegalTransition
	}
	oppStatus, err := s.opportunityStatus(ctx, proposal.OpportunityID)
	if err != nil {
		return nil, err
	}
	if !CanTransitionOpportunity(oppStatus, models.OpportunityStatusAwarded, TransitionContext{ActorRole: actor.Role}) {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "opportunity cannot be awarded from its current status")
	}

	awarded := models.ProposalStatusAwarded
	notAwarded := models.ProposalStatusNotAwarded
	oppAwarded := models.OpportunityStatusAwarded

	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		siblings, err := s.repo.SiblingsInStatusesTx(ctx, tx, proposal.OpportunityID, models.AwardableProposalStatuses)
		if err != nil {
			return err
		}
		winner := &models.ProposalStatusRecord{ProposalID: id, CreatedBy: &actor.UserID, Status: &awarded, Note: req.Note}
		if err := s.repo.InsertStatusTx(ctx, tx, winner); err != nil {
			return err
		}
		for _, sibling := range siblings {
			if sibling.ID == id {
				continue
			}
			loser := &models.ProposalStatusRecord{ProposalID: sibling.ID, CreatedBy: &actor.UserID, Status: &notAwarded}
			if err := s.repo.InsertStatusTx(ctx, tx, loser); err != nil {
				return err
			}
			s.notify(ctx, tx, models.NotificationProposalNotAwarded, sibling.ID, []string{sibling.CreatedBy})
		}
		oppRecord := &models.OpportunityStatusRecord{
			OpportunityID: proposal.OpportunityID,
			CreatedBy:     &actor.UserID,
			Status:        &oppAwarded,
			Note:          req.Note,
		}
		if err := s.opportunities.InsertStatusTx(ctx, tx, oppRecord); err != nil {
			return err
		}
		s.notify(ctx, tx, models.NotificationProposalAwarded, id, []string{proposal.CreatedBy})
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to award proposal")
	}

	s.emitAudit(ctx, actor, models.AuditActionProposalAward, id)
	return s.Get(ctx, actor, id)
}

// UpdateScore records an evaluation score: the status transition when review
// completes, the score on the root record, and a ScoreEntered audit event.
func (s *ProposalService) UpdateScore(ctx context.Context, actor *models.JWTClaims, id string, req dto.ScoreProposalRequest) (*models.ProposalView, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	if _, err := s.loadProposal(ctx, id); err != nil {
		return nil, err
	}
	current, err := s.currentStatusOf(ctx, id)
	if err != nil {
		return nil, err
	}
	if current != models.ProposalStatusUnderReview && current != models.ProposalStatusEvaluated {
		return nil, appErrors.ErrIllegalTransition
	}

	evaluated := models.ProposalStatusEvaluated
	scoreEntered := models.ProposalEventScoreEntered
	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if current == models.ProposalStatusUnderReview {
			record := &models.ProposalStatusRecord{ProposalID: id, CreatedBy: &actor.UserID, Status: &evaluated}
			if err := s.repo.InsertStatusTx(ctx, tx, record); err != nil {
				return err
			}
		}
		if err := s.repo.UpdateScoreTx(ctx, tx, id, req.Score, actor.UserID, s.now()); err != nil {
			return err
		}
		event := &models.ProposalStatusRecord{ProposalID: id, CreatedBy: &actor.UserID, Event: &scoreEntered, Note: req.Note}
		return s.repo.InsertStatusTx(ctx, tx, event)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record score")
	}

	s.emitAudit(ctx, actor, models.AuditActionProposalScore, id)
	return s.Get(ctx, actor, id)
}

// Delete removes a proposal and its history. Admin only.
func (s *ProposalService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if !actor.IsAdmin() {
		return appErrors.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete proposal")
	}
	s.emitAudit(ctx, actor, models.AuditActionProposalDelete, id)
	return nil
}

func (s *ProposalService) assembleView(ctx context.Context, proposal *models.Proposal) (*models.ProposalView, error) {
	statusRecord, err := s.repo.CurrentStatus(ctx, proposal.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrDataIntegrity, "proposal has no status")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status")
	}
	history, err := s.repo.History(ctx, proposal.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}
	attachments, err := s.resolveAttachments(ctx, proposal.Attachments)
	if err != nil {
		return nil, err
	}

	view := &models.ProposalView{
		ID:               proposal.ID,
		OpportunityID:    proposal.OpportunityID,
		CreatedBy:        proposal.CreatedBy,
		CreatedAt:        proposal.CreatedAt,
		UpdatedAt:        proposal.UpdatedAt,
		UpdatedBy:        proposal.UpdatedBy,
		ProponentKind:    proposal.ProponentKind,
		OrganizationName: proposal.OrganizationName,
		ProposalText:     proposal.ProposalText,
		Attachments:      attachments,
		Status:           *statusRecord.Status,
		Score:            proposal.Score,
		History:          history,
	}

	// Rank is recomputed live from sibling scores, never cached.
	for _, rankable := range models.RankableProposalStatuses {
		if view.Status != rankable {
			continue
		}
		ranks, err := s.repo.Ranks(ctx, proposal.OpportunityID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute rank")
		}
		for _, r := range ranks {
			if r.ProposalID == proposal.ID {
				rank := r.Rank
				view.Rank = &rank
				break
			}
		}
		break
	}
	return view, nil
}

func (s *ProposalService) canSee(ctx context.Context, viewer *models.JWTClaims, proposal *models.Proposal) bool {
	if viewer.IsAdmin() {
		return true
	}
	if viewer == nil {
		return false
	}
	if viewer.UserID == proposal.CreatedBy {
		return true
	}
	if viewer.Role != models.RoleGovernment {
		return false
	}
	root, err := s.opportunityRoot(ctx, proposal.OpportunityID)
	if err != nil {
		return false
	}
	return models.IsAuthor(viewer, root.CreatedBy)
}

func dedupIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (s *ProposalService) verifyAttachments(ctx context.Context, ids []string) error {
	ids = dedupIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	records, err := s.files.GetByIDs(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve attachments")
	}
	if len(records) != len(ids) {
		return appErrors.Clone(appErrors.ErrValidation, "unknown attachment id")
	}
	return nil
}

func (s *ProposalService) resolveAttachments(ctx context.Context, ids []string) ([]models.FileRecord, error) {
	ids = dedupIDs(ids)
	if len(ids) == 0 {
		return []models.FileRecord{}, nil
	}
	records, err := s.files.GetByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve attachments")
	}
	if len(records) != len(ids) {
		return nil, appErrors.Clone(appErrors.ErrDataIntegrity, "attachment id has no backing file")
	}
	return records, nil
}

func (s *ProposalService) loadProposal(ctx context.Context, id string) (*models.Proposal, error) {
	proposal, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal")
	}
	return proposal, nil
}

func (s *ProposalService) currentStatusOf(ctx context.Context, id string) (models.ProposalStatus, error) {
	record, err := s.repo.CurrentStatus(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrDataIntegrity, "proposal has no status")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status")
	}
	return *record.Status, nil
}

func (s *ProposalService) opportunityRoot(ctx context.Context, id string) (*models.Opportunity, error) {
	root, err := s.opportunities.GetRoot(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load opportunity")
	}
	return root, nil
}

func (s *ProposalService) opportunityStatus(ctx context.Context, id string) (models.OpportunityStatus, error) {
	record, err := s.opportunities.CurrentStatus(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.ErrNotFound
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load opportunity status")
	}
	return *record.Status, nil
}

func (s *ProposalService) opportunityDeadline(ctx context.Context, id string) (time.Time, error) {
	version, err := s.opportunities.CurrentVersion(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, appErrors.Clone(appErrors.ErrDataIntegrity, "opportunity has no version")
		}
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load opportunity version")
	}
	return version.ProposalDeadline, nil
}

func (s *ProposalService) notifySubmitted(ctx context.Context, tx *sqlx.Tx, proposal *models.Proposal) {
	recipients := []string{}
	if root, err := s.opportunityRoot(ctx, proposal.OpportunityID); err == nil && root.CreatedBy != nil {
		recipients = append(recipients, *root.CreatedBy)
	}
	s.notify(ctx, tx, models.NotificationProposalSubmitted, proposal.ID, recipients)
}

func (s *ProposalService) notify(ctx context.Context, tx *sqlx.Tx, kind models.NotificationKind, proposalID string, recipients []string) {
	n := &models.Notification{
		Kind:       kind,
		EntityKind: "proposal",
		EntityID:   proposalID,
		Recipients: recipients,
	}
	if err := s.outbox.EnqueueTx(ctx, tx, n); err != nil {
		s.logger.Error("enqueue notification failed",
			zap.String("kind", string(kind)), zap.String("proposal_id", proposalID), zap.Error(err))
	}
}

func (s *ProposalService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string) {
	entry := &models.AuditLog{Action: action, Resource: "proposal"}
	if actor != nil {
		entry.UserID = &actor.UserID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

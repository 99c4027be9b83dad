package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/procurehub/marketplace-api/internal/dto"
	"github.com/procurehub/marketplace-api/internal/models"
	"github.com/procurehub/marketplace-api/internal/repository"
	appErrors "github.com/procurehub/marketplace-api/pkg/errors"
)

type opportunityRepository interface {
	CreateWithInitialState(ctx context.Context, opp *models.Opportunity, version *models.OpportunityVersion, status *models.OpportunityStatusRecord) error
	InsertVersionTx(ctx context.Context, tx *sqlx.Tx, version *models.OpportunityVersion) error
	InsertStatusTx(ctx context.Context, tx *sqlx.Tx, record *models.OpportunityStatusRecord) error
	GetRoot(ctx context.Context, id string) (*models.Opportunity, error)
	CurrentVersion(ctx context.Context, opportunityID string) (*models.OpportunityVersion, error)
	CurrentStatus(ctx context.Context, opportunityID string) (*models.OpportunityStatusRecord, error)
	History(ctx context.Context, opportunityID string) ([]models.OpportunityStatusRecord, error)
	PublishedAt(ctx context.Context, opportunityID string) (*time.Time, error)
	ListCurrent(ctx context.Context, filter models.OpportunityFilter) ([]repository.OpportunityListRow, error)
	InsertAddendumTx(ctx context.Context, tx *sqlx.Tx, addendum *models.Addendum) error
	ListAddenda(ctx context.Context, opportunityID string) ([]models.Addendum, error)
	LapsedPublished(ctx context.Context, now time.Time) ([]string, error)
	Delete(ctx context.Context, id string) error
}

type proposalStateStore interface {
	SubmittedForOpportunity(ctx context.Context, opportunityID string) ([]repository.ProposalStateRow, error)
	InsertStatusTx(ctx context.Context, tx *sqlx.Tx, record *models.ProposalStatusRecord) error
	AwardedForOpportunity(ctx context.Context, opportunityID string) (*models.Proposal, error)
	CountEverSubmitted(ctx context.Context, opportunityID string) (int, error)
}

type fileStore interface {
	GetByIDs(ctx context.Context, ids []string) ([]models.FileRecord, error)
}

type engagementStore interface {
	RecordView(ctx context.Context, opportunityID, viewerID string, dedupTTL time.Duration) error
	ViewCount(ctx context.Context, opportunityID string) (int64, error)
	Watch(ctx context.Context, opportunityID, userID string) error
	Unwatch(ctx context.Context, opportunityID, userID string) error
	IsWatching(ctx context.Context, opportunityID, userID string) (bool, error)
	WatcherCount(ctx context.Context, opportunityID string) (int64, error)
}

type notificationOutbox interface {
	EnqueueTx(ctx context.Context, tx *sqlx.Tx, n *models.Notification) error
	Enqueue(ctx context.Context, n *models.Notification) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// OpportunityService orchestrates the opportunity workflow: versioned edits,
// status transitions, addenda, the lapsed-close batch, and the assembled read
// projection.
type OpportunityService struct {
	repo       opportunityRepository
	proposals  proposalStateStore
	files      fileStore
	engagement engagementStore
	outbox     notificationOutbox
	audit      auditWriter
	tx         txRunner
	validator  *validator.Validate
	logger     *zap.Logger
	metrics    *MetricsService
	viewTTL    time.Duration
}

// OpportunityServiceOption customises construction.
type OpportunityServiceOption func(*OpportunityService)

// WithOpportunityEngagement wires the Redis-backed engagement store. Without
// it, view counts and watcher data degrade to zero.
func WithOpportunityEngagement(store engagementStore, viewTTL time.Duration) OpportunityServiceOption {
	return func(s *OpportunityService) {
		s.engagement = store
		s.viewTTL = viewTTL
	}
}

// WithOpportunityMetrics wires transition instrumentation.
func WithOpportunityMetrics(metrics *MetricsService) OpportunityServiceOption {
	return func(s *OpportunityService) {
		s.metrics = metrics
	}
}

// NewOpportunityService constructs the service.
func NewOpportunityService(
	repo opportunityRepository,
	proposals proposalStateStore,
	files fileStore,
	outbox notificationOutbox,
	audit auditWriter,
	tx txRunner,
	validate *validator.Validate,
	logger *zap.Logger,
	opts ...OpportunityServiceOption,
) *OpportunityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &OpportunityService{
		repo:      repo,
		proposals: proposals,
		files:     files,
		outbox:    outbox,
		audit:     audit,
		tx:        tx,
		validator: validate,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create inserts root, initial version, and initial status atomically.
// Creating directly in Published is an admin-only shortcut; everyone else
// starts in Draft.
func (s *OpportunityService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateOpportunityRequest) (*models.OpportunityView, error) {
	if actor == nil || (actor.Role != models.RoleAdmin && actor.Role != models.RoleGovernment) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid opportunity payload")
	}

	initial := req.Status
	if initial == "" {
		initial = models.OpportunityStatusDraft
	}
	if initial == models.OpportunityStatusPublished && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "publishing requires an admin")
	}

	opp := &models.Opportunity{CreatedBy: &actor.UserID}
	version := &models.OpportunityVersion{
		CreatedBy:          &actor.UserID,
		Title:              req.Title,
		Teaser:             req.Teaser,
		RewardCents:        req.RewardCents,
		Skills:             req.Skills,
		ProposalDeadline:   req.ProposalDeadline,
		AssignmentDate:     req.AssignmentDate,
		Description:        req.Description,
		EvaluationCriteria: req.EvaluationCriteria,
	}
	status := &models.OpportunityStatusRecord{Status: &initial, CreatedBy: &actor.UserID}
	if err := s.repo.CreateWithInitialState(ctx, opp, version, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create opportunity")
	}

	if initial == models.OpportunityStatusPublished {
		s.enqueue(ctx, nil, models.NotificationOpportunityPublished, opp.ID, nil)
	}
	s.emitAudit(ctx, actor, models.AuditActionOpportunityCreate, opp.ID)
	return s.assembleView(ctx, opp.ID, actor)
}

// Get returns the assembled, redacted projection for one opportunity. Private
// statuses are invisible to non-entitled viewers; view counting is best
// effort.
func (s *OpportunityService) Get(ctx context.Context, viewer *models.JWTClaims, id string) (*models.OpportunityView, error) {
	view, err := s.assembleView(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	if !view.Status.IsPublic() && !viewEntitled(viewer, view.CreatedBy) {
		return nil, appErrors.ErrNotFound
	}
	if s.engagement != nil {
		viewerID := ""
		if viewer != nil {
			viewerID = viewer.UserID
		}
		if err := s.engagement.RecordView(ctx, id, viewerID, s.viewTTL); err != nil {
			s.logger.Warn("record view failed", zap.String("opportunity_id", id), zap.Error(err))
		}
	}
	redacted := models.RedactOpportunity(*view, viewer)
	return &redacted, nil
}

// List returns redacted summary projections scoped to the viewer.
func (s *OpportunityService) List(ctx context.Context, viewer *models.JWTClaims, query dto.OpportunityQuery) ([]models.OpportunityView, error) {
	filter := models.OpportunityFilter{Limit: query.Limit, Offset: query.Offset}
	switch {
	case viewer.IsAdmin():
		filter.Statuses = query.Statuses
	case viewer != nil && viewer.Role == models.RoleGovernment:
		filter.Statuses = restrictToPublic(query.Statuses)
		filter.AuthorID = viewer.UserID
	default:
		filter.Statuses = restrictToPublic(query.Statuses)
	}

	rows, err := s.repo.ListCurrent(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list opportunities")
	}

	views := make([]models.OpportunityView, 0, len(rows))
	for _, row := range rows {
		updatedAt, updatedBy := newerOf(row.VersionAt, row.VersionBy, row.StatusAt, row.StatusBy)
		view := models.OpportunityView{
			ID:               row.ID,
			CreatedAt:        row.CreatedAt,
			CreatedBy:        row.CreatedBy,
			Title:            row.Title,
			Teaser:           row.Teaser,
			RewardCents:      row.RewardCents,
			Skills:           row.Skills,
			ProposalDeadline: row.ProposalDeadline,
			Status:           row.Status,
			UpdatedAt:        updatedAt,
			UpdatedBy:        updatedBy,
		}
		views = append(views, models.RedactOpportunity(view, viewer))
	}
	return views, nil
}

// Edit appends a new version snapshot plus an Edited event row. Status is
// untouched; prior versions stay retrievable unchanged.
func (s *OpportunityService) Edit(ctx context.Context, actor *models.JWTClaims, id string, req dto.EditOpportunityRequest) (*models.OpportunityView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid opportunity payload")
	}
	root, err := s.loadRoot(ctx, id)
	if err != nil {
		return nil, err
	}
	if !viewEntitled(actor, root.CreatedBy) {
		return nil, appErrors.ErrForbidden
	}

	version := &models.OpportunityVersion{
		OpportunityID:      id,
		CreatedBy:          &actor.UserID,
		Title:              req.Title,
		Teaser:             req.Teaser,
		RewardCents:        req.RewardCents,
		Skills:             req.Skills,
		ProposalDeadline:   req.ProposalDeadline,
		AssignmentDate:     req.AssignmentDate,
		Description:        req.Description,
		EvaluationCriteria: req.EvaluationCriteria,
	}
	edited := models.OpportunityEventEdited
	event := &models.OpportunityStatusRecord{OpportunityID: id, CreatedBy: &actor.UserID, Event: &edited}

	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.InsertVersionTx(ctx, tx, version); err != nil {
			return err
		}
		return s.repo.InsertStatusTx(ctx, tx, event)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to edit opportunity")
	}

	s.emitAudit(ctx, actor, models.AuditActionOpportunityEdit, id)
	return s.assembleView(ctx, id, actor)
}

// ChangeStatus validates and applies one lifecycle transition. Publish,
// suspend, cancel, and start-evaluation all route through here.
func (s *OpportunityService) ChangeStatus(ctx context.Context, actor *models.JWTClaims, id string, req dto.ChangeOpportunityStatusRequest) (*models.OpportunityView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	root, err := s.loadRoot(ctx, id)
	if err != nil {
		return nil, err
	}
	current, err := s.currentStatusOf(ctx, id)
	if err != nil {
		return nil, err
	}

	tctx := TransitionContext{Now: time.Now().UTC()}
	if actor != nil {
		tctx.ActorRole = actor.Role
		tctx.IsAuthor = models.IsAuthor(actor, root.CreatedBy)
	}
	allowed := CanTransitionOpportunity(current, req.Status, tctx)
	s.metrics.ObserveTransition("opportunity", string(req.Status), allowed)
	if !allowed {
		return nil, appErrors.ErrIllegalTransition
	}

	record := &models.OpportunityStatusRecord{
		OpportunityID: id,
		CreatedBy:     &actor.UserID,
		Status:        &req.Status,
		Note:          req.Note,
	}
	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.InsertStatusTx(ctx, tx, record); err != nil {
			return err
		}
		if kind, ok := notificationForStatus(req.Status); ok {
			s.enqueue(ctx, tx, kind, id, nil)
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change opportunity status")
	}

	s.emitAudit(ctx, actor, models.AuditActionOpportunityStatus, id)
	return s.assembleView(ctx, id, actor)
}

// AddAddendum appends an addendum row and its AddendumAdded event atomically.
func (s *OpportunityService) AddAddendum(ctx context.Context, actor *models.JWTClaims, id string, req dto.AddAddendumRequest) (*models.OpportunityView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid addendum payload")
	}
	root, err := s.loadRoot(ctx, id)
	if err != nil {
		return nil, err
	}
	if !viewEntitled(actor, root.CreatedBy) {
		return nil, appErrors.ErrForbidden
	}

	addendum := &models.Addendum{OpportunityID: id, Description: req.Description, CreatedBy: &actor.UserID}
	added := models.OpportunityEventAddendumAdded
	event := &models.OpportunityStatusRecord{OpportunityID: id, CreatedBy: &actor.UserID, Event: &added}

	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.InsertAddendumTx(ctx, tx, addendum); err != nil {
			return err
		}
		if err := s.repo.InsertStatusTx(ctx, tx, event); err != nil {
			return err
		}
		s.enqueue(ctx, tx, models.NotificationAddendumAdded, id, nil)
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add addendum")
	}

	s.emitAudit(ctx, actor, models.AuditActionAddendumAdd, id)
	return s.assembleView(ctx, id, actor)
}

// AddNote records an internal note event, verifying every attachment ID has a
// backing file row first.
func (s *OpportunityService) AddNote(ctx context.Context, actor *models.JWTClaims, id string, req dto.AddNoteRequest) (*models.OpportunityView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid note payload")
	}
	root, err := s.loadRoot(ctx, id)
	if err != nil {
		return nil, err
	}
	if !viewEntitled(actor, root.CreatedBy) {
		return nil, appErrors.ErrForbidden
	}
	if ids := dedupIDs(req.Attachments); len(ids) > 0 {
		records, err := s.files.GetByIDs(ctx, ids)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve attachments")
		}
		if len(records) != len(ids) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown attachment id")
		}
	}

	noted := models.OpportunityEventNoteAdded
	event := &models.OpportunityStatusRecord{
		OpportunityID: id,
		CreatedBy:     &actor.UserID,
		Event:         &noted,
		Note:          req.Note,
		Attachments:   req.Attachments,
	}
	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		return s.repo.InsertStatusTx(ctx, tx, event)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add note")
	}

	s.emitAudit(ctx, actor, models.AuditActionNoteAdd, id)
	return s.assembleView(ctx, id, actor)
}

// Delete removes an opportunity and everything hanging off it. Admin only.
func (s *OpportunityService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if !actor.IsAdmin() {
		return appErrors.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete opportunity")
	}
	s.emitAudit(ctx, actor, models.AuditActionOpportunityDelete, id)
	return nil
}

// Watch subscribes the viewer to the opportunity.
func (s *OpportunityService) Watch(ctx context.Context, viewer *models.JWTClaims, id string) error {
	return s.setWatching(ctx, viewer, id, true)
}

// Unwatch removes the subscription.
func (s *OpportunityService) Unwatch(ctx context.Context, viewer *models.JWTClaims, id string) error {
	return s.setWatching(ctx, viewer, id, false)
}

func (s *OpportunityService) setWatching(ctx context.Context, viewer *models.JWTClaims, id string, on bool) error {
	if viewer == nil {
		return appErrors.ErrUnauthorized
	}
	if s.engagement == nil {
		return appErrors.Clone(appErrors.ErrConflict, "engagement tracking is disabled")
	}
	if _, err := s.loadRoot(ctx, id); err != nil {
		return err
	}
	var err error
	if on {
		err = s.engagement.Watch(ctx, id, viewer.UserID)
	} else {
		err = s.engagement.Unwatch(ctx, id, viewer.UserID)
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subscription")
	}
	return nil
}

// CloseFailure records one opportunity the close run could not process.
type CloseFailure struct {
	OpportunityID string `json:"opportunityId"`
	Reason        string `json:"reason"`
}

// CloseRunReport summarises one lapsed-close run.
type CloseRunReport struct {
	RanAt     time.Time      `json:"ranAt"`
	Processed int            `json:"processed"`
	Closed    []string       `json:"closed"`
	Failures  []CloseFailure `json:"failures,omitempty"`
}

// CloseLapsed moves every Published opportunity past its deadline into
// Evaluation and its Submitted proposals into UnderReview. Each opportunity
// gets its own transaction so one failure cannot abort the rest of the run.
func (s *OpportunityService) CloseLapsed(ctx context.Context, actor *models.JWTClaims, now time.Time) (*CloseRunReport, error) {
	ids, err := s.repo.LapsedPublished(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find lapsed opportunities")
	}

	report := &CloseRunReport{RanAt: now, Processed: len(ids), Closed: make([]string, 0, len(ids))}
	for _, id := range ids {
		if err := s.closeOne(ctx, id); err != nil {
			s.logger.Error("close lapsed opportunity failed",
				zap.String("opportunity_id", id), zap.Error(err))
			report.Failures = append(report.Failures, CloseFailure{OpportunityID: id, Reason: err.Error()})
			continue
		}
		report.Closed = append(report.Closed, id)
	}

	s.emitAudit(ctx, actor, models.AuditActionOpportunitiesClose, "")
	return report, nil
}

func (s *OpportunityService) closeOne(ctx context.Context, id string) error {
	submitted, err := s.proposals.SubmittedForOpportunity(ctx, id)
	if err != nil {
		return err
	}
	evaluation := models.OpportunityStatusEvaluation
	underReview := models.ProposalStatusUnderReview

	return s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		record := &models.OpportunityStatusRecord{OpportunityID: id, Status: &evaluation, Note: "proposal deadline reached"}
		if err := s.repo.InsertStatusTx(ctx, tx, record); err != nil {
			return err
		}
		for _, proposal := range submitted {
			row := &models.ProposalStatusRecord{ProposalID: proposal.ID, Status: &underReview}
			if err := s.proposals.InsertStatusTx(ctx, tx, row); err != nil {
				return err
			}
		}
		s.enqueue(ctx, tx, models.NotificationReadyForEvaluation, id, nil)
		return nil
	})
}

// assembleView builds the full projection before redaction. A root with no
// version or status row is corrupt and aborts the read.
func (s *OpportunityService) assembleView(ctx context.Context, id string, viewer *models.JWTClaims) (*models.OpportunityView, error) {
	root, err := s.loadRoot(ctx, id)
	if err != nil {
		return nil, err
	}
	version, err := s.repo.CurrentVersion(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrDataIntegrity, "opportunity has no version")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version")
	}
	status, err := s.repo.CurrentStatus(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrDataIntegrity, "opportunity has no status")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status")
	}

	publishedAt, err := s.repo.PublishedAt(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load publish time")
	}
	addenda, err := s.repo.ListAddenda(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load addenda")
	}
	history, err := s.repo.History(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}

	attachments, err := s.resolveAttachments(ctx, history)
	if err != nil {
		return nil, err
	}

	updatedAt, updatedBy := newerOf(version.CreatedAt, version.CreatedBy, status.CreatedAt, status.CreatedBy)
	view := &models.OpportunityView{
		ID:                 root.ID,
		CreatedAt:          root.CreatedAt,
		CreatedBy:          root.CreatedBy,
		Title:              version.Title,
		Teaser:             version.Teaser,
		RewardCents:        version.RewardCents,
		Skills:             version.Skills,
		ProposalDeadline:   version.ProposalDeadline,
		AssignmentDate:     version.AssignmentDate,
		Description:        version.Description,
		EvaluationCriteria: version.EvaluationCriteria,
		Status:             *status.Status,
		UpdatedAt:          updatedAt,
		UpdatedBy:          updatedBy,
		PublishedAt:        publishedAt,
		Attachments:        attachments,
		Addenda:            addenda,
		History:            history,
	}

	if s.engagement != nil && viewer != nil {
		subscribed, err := s.engagement.IsWatching(ctx, id, viewer.UserID)
		if err != nil {
			s.logger.Warn("subscription lookup failed", zap.String("opportunity_id", id), zap.Error(err))
		} else {
			view.Subscribed = subscribed
		}
	}

	if err := s.attachReporting(ctx, view); err != nil {
		return nil, err
	}
	if view.Status == models.OpportunityStatusAwarded {
		if err := s.attachProponent(ctx, view); err != nil {
			return nil, err
		}
	}
	return view, nil
}

func (s *OpportunityService) attachReporting(ctx context.Context, view *models.OpportunityView) error {
	reporting := &models.OpportunityReporting{}
	if s.engagement != nil {
		views, err := s.engagement.ViewCount(ctx, view.ID)
		if err != nil {
			s.logger.Warn("view count lookup failed", zap.String("opportunity_id", view.ID), zap.Error(err))
		}
		watchers, err := s.engagement.WatcherCount(ctx, view.ID)
		if err != nil {
			s.logger.Warn("watcher count lookup failed", zap.String("opportunity_id", view.ID), zap.Error(err))
		}
		reporting.ViewCount = views
		reporting.WatcherCount = watchers
	}
	submitted, err := s.proposals.CountEverSubmitted(ctx, view.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count proposals")
	}
	reporting.SubmittedProposals = submitted
	view.Reporting = reporting
	return nil
}

func (s *OpportunityService) attachProponent(ctx context.Context, view *models.OpportunityView) error {
	winner, err := s.proposals.AwardedForOpportunity(ctx, view.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrDataIntegrity, "awarded opportunity has no awarded proposal")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load awarded proposal")
	}
	summary := &models.ProponentSummary{
		ProposalID:       winner.ID,
		OrganizationName: winner.OrganizationName,
		Score:            winner.Score,
	}
	author, err := s.audit.FindByID(ctx, winner.CreatedBy)
	if err == nil {
		summary.Name = author.FullName
		summary.Email = author.Email
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proponent")
	}
	view.SuccessfulProponent = summary
	return nil
}

// resolveAttachments maps every attachment ID found in history rows to file
// metadata. A dangling ID means corrupt data and aborts the read.
func (s *OpportunityService) resolveAttachments(ctx context.Context, history []models.OpportunityStatusRecord) ([]models.FileRecord, error) {
	seen := make(map[string]bool)
	ids := make([]string, 0, 4)
	for _, record := range history {
		for _, id := range record.Attachments {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
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

func (s *OpportunityService) loadRoot(ctx context.Context, id string) (*models.Opportunity, error) {
	root, err := s.repo.GetRoot(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load opportunity")
	}
	return root, nil
}

func (s *OpportunityService) currentStatusOf(ctx context.Context, id string) (models.OpportunityStatus, error) {
	record, err := s.repo.CurrentStatus(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrDataIntegrity, "opportunity has no status")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status")
	}
	return *record.Status, nil
}

// enqueue writes an outbox row, inside the transaction when one is supplied.
// Failures are logged and swallowed; delivery never blocks the workflow.
func (s *OpportunityService) enqueue(ctx context.Context, tx *sqlx.Tx, kind models.NotificationKind, opportunityID string, recipients []string) {
	n := &models.Notification{
		Kind:       kind,
		EntityKind: "opportunity",
		EntityID:   opportunityID,
		Recipients: recipients,
	}
	var err error
	if tx != nil {
		err = s.outbox.EnqueueTx(ctx, tx, n)
	} else {
		err = s.outbox.Enqueue(ctx, n)
	}
	if err != nil {
		s.logger.Error("enqueue notification failed",
			zap.String("kind", string(kind)), zap.String("opportunity_id", opportunityID), zap.Error(err))
	}
}

func (s *OpportunityService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string) {
	entry := &models.AuditLog{Action: action, Resource: "opportunity"}
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

func viewEntitled(viewer *models.JWTClaims, createdBy *string) bool {
	return models.CanViewOpportunityDetails(viewer, createdBy)
}

func restrictToPublic(requested []models.OpportunityStatus) []models.OpportunityStatus {
	if len(requested) == 0 {
		return models.PublicOpportunityStatuses
	}
	allowed := make([]models.OpportunityStatus, 0, len(requested))
	for _, status := range requested {
		if status.IsPublic() {
			allowed = append(allowed, status)
		}
	}
	if len(allowed) == 0 {
		return models.PublicOpportunityStatuses
	}
	return allowed
}

func newerOf(versionAt time.Time, versionBy *string, statusAt time.Time, statusBy *string) (time.Time, *string) {
	if statusAt.After(versionAt) {
		return statusAt, statusBy
	}
	return versionAt, versionBy
}

func notificationForStatus(status models.OpportunityStatus) (models.NotificationKind, bool) {
	switch status {
	case models.OpportunityStatusPublished:
		return models.NotificationOpportunityPublished, true
	case models.OpportunityStatusEvaluation:
		return models.NotificationReadyForEvaluation, true
	case models.OpportunityStatusCanceled:
		return models.NotificationOpportunityCanceled, true
	case models.OpportunityStatusSuspended:
		return models.NotificationOpportunitySuspended, true
	}
	return "", false
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/procurehub/marketplace-api/internal/models"
)

// OpportunityRepository persists opportunity roots, their append-only version
// snapshots, and their status history. "Current" version and status are always
// derived from the newest row, never stored on the root.
type OpportunityRepository struct {
	db *sqlx.DB
}

// NewOpportunityRepository constructs the repository.
func NewOpportunityRepository(db *sqlx.DB) *OpportunityRepository {
	return &OpportunityRepository{db: db}
}

const opportunityVersionColumns = `id, opportunity_id, created_at, created_by, title, teaser, reward_cents,
       skills, proposal_deadline, assignment_date, description, evaluation_criteria`

const opportunityStatusColumns = `id, opportunity_id, created_at, created_by, status, event, note, attachments`

// CreateWithInitialState inserts root, first version, and initial status in a
// single transaction. Creation is never partial: an opportunity without a
// version or status row is treated as corrupt on read.
func (r *OpportunityRepository) CreateWithInitialState(ctx context.Context, opp *models.Opportunity, version *models.OpportunityVersion, status *models.OpportunityStatusRecord) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin opportunity create: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if opp.ID == "" {
		opp.ID = uuid.NewString()
	}
	if opp.CreatedAt.IsZero() {
		opp.CreatedAt = time.Now().UTC()
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO opportunities (id, created_at, created_by) VALUES ($1, $2, $3)`,
		opp.ID, opp.CreatedAt, opp.CreatedBy); err != nil {
		return fmt.Errorf("insert opportunity root: %w", err)
	}

	version.OpportunityID = opp.ID
	if err = r.InsertVersionTx(ctx, tx, version); err != nil {
		return err
	}

	status.OpportunityID = opp.ID
	if err = r.InsertStatusTx(ctx, tx, status); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit opportunity create: %w", err)
	}
	return nil
}

// InsertVersionTx appends an immutable version snapshot inside a transaction.
func (r *OpportunityRepository) InsertVersionTx(ctx context.Context, tx *sqlx.Tx, version *models.OpportunityVersion) error {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}
	if version.Skills == nil {
		version.Skills = pq.StringArray{}
	}
	const query = `INSERT INTO opportunity_versions
	(id, opportunity_id, created_at, created_by, title, teaser, reward_cents, skills, proposal_deadline, assignment_date, description, evaluation_criteria)
	VALUES (:id, :opportunity_id, :created_at, :created_by, :title, :teaser, :reward_cents, :skills, :proposal_deadline, :assignment_date, :description, :evaluation_criteria)`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, version); err != nil {
		return fmt.Errorf("insert opportunity version: %w", err)
	}
	return nil
}

// InsertStatusTx appends a status or event row inside a transaction.
func (r *OpportunityRepository) InsertStatusTx(ctx context.Context, tx *sqlx.Tx, record *models.OpportunityStatusRecord) error {
	if !record.Valid() {
		return fmt.Errorf("status record must carry exactly one of status/event")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.Attachments == nil {
		record.Attachments = pq.StringArray{}
	}
	const query = `INSERT INTO opportunity_statuses
	(id, opportunity_id, created_at, created_by, status, event, note, attachments)
	VALUES (:id, :opportunity_id, :created_at, :created_by, :status, :event, :note, :attachments)`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, record); err != nil {
		return fmt.Errorf("insert opportunity status: %w", err)
	}
	return nil
}

// GetRoot fetches the immutable root record.
func (r *OpportunityRepository) GetRoot(ctx context.Context, id string) (*models.Opportunity, error) {
	var opp models.Opportunity
	if err := r.db.GetContext(ctx, &opp,
		`SELECT id, created_at, created_by FROM opportunities WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &opp, nil
}

// CurrentVersion returns the newest version snapshot for the opportunity.
func (r *OpportunityRepository) CurrentVersion(ctx context.Context, opportunityID string) (*models.OpportunityVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM opportunity_versions
	WHERE opportunity_id = $1 ORDER BY created_at DESC LIMIT 1`, opportunityVersionColumns)
	var version models.OpportunityVersion
	if err := r.db.GetContext(ctx, &version, query, opportunityID); err != nil {
		return nil, err
	}
	return &version, nil
}

// CurrentStatus returns the newest row with a non-null status; event rows do
// not change the lifecycle state.
func (r *OpportunityRepository) CurrentStatus(ctx context.Context, opportunityID string) (*models.OpportunityStatusRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM opportunity_statuses
	WHERE opportunity_id = $1 AND status IS NOT NULL ORDER BY created_at DESC LIMIT 1`, opportunityStatusColumns)
	var record models.OpportunityStatusRecord
	if err := r.db.GetContext(ctx, &record, query, opportunityID); err != nil {
		return nil, err
	}
	return &record, nil
}

// History returns all status and event rows, newest first.
func (r *OpportunityRepository) History(ctx context.Context, opportunityID string) ([]models.OpportunityStatusRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM opportunity_statuses
	WHERE opportunity_id = $1 ORDER BY created_at DESC`, opportunityStatusColumns)
	var records []models.OpportunityStatusRecord
	if err := r.db.SelectContext(ctx, &records, query, opportunityID); err != nil {
		return nil, fmt.Errorf("load opportunity history: %w", err)
	}
	return records, nil
}

// PublishedAt returns the earliest Published status timestamp, or nil when the
// opportunity has never been published.
func (r *OpportunityRepository) PublishedAt(ctx context.Context, opportunityID string) (*time.Time, error) {
	var ts time.Time
	err := r.db.GetContext(ctx, &ts,
		`SELECT created_at FROM opportunity_statuses
		 WHERE opportunity_id = $1 AND status = $2 ORDER BY created_at ASC LIMIT 1`,
		opportunityID, models.OpportunityStatusPublished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load published timestamp: %w", err)
	}
	return &ts, nil
}

// OpportunityListRow is the joined current-version/current-status row used by
// listing queries.
type OpportunityListRow struct {
	ID               string                   `db:"id"`
	CreatedAt        time.Time                `db:"created_at"`
	CreatedBy        *string                  `db:"created_by"`
	VersionID        string                   `db:"version_id"`
	VersionAt        time.Time                `db:"version_at"`
	VersionBy        *string                  `db:"version_by"`
	Title            string                   `db:"title"`
	Teaser           string                   `db:"teaser"`
	RewardCents      int64                    `db:"reward_cents"`
	Skills           pq.StringArray           `db:"skills"`
	ProposalDeadline time.Time                `db:"proposal_deadline"`
	Status           models.OpportunityStatus `db:"status"`
	StatusAt         time.Time                `db:"status_at"`
	StatusBy         *string                  `db:"status_by"`
}

// ListCurrent returns joined current-state rows matching the filter. The
// filter is a union: public statuses plus (optionally) everything authored by
// AuthorID regardless of status.
func (r *OpportunityRepository) ListCurrent(ctx context.Context, filter models.OpportunityFilter) ([]OpportunityListRow, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT o.id, o.created_at, o.created_by,
       v.id AS version_id, v.created_at AS version_at, v.created_by AS version_by,
       v.title, v.teaser, v.reward_cents, v.skills, v.proposal_deadline,
       s.status, s.created_at AS status_at, s.created_by AS status_by
FROM opportunities o
JOIN LATERAL (
    SELECT * FROM opportunity_versions
    WHERE opportunity_id = o.id ORDER BY created_at DESC LIMIT 1
) v ON true
JOIN LATERAL (
    SELECT status, created_at, created_by FROM opportunity_statuses
    WHERE opportunity_id = o.id AND status IS NOT NULL ORDER BY created_at DESC LIMIT 1
) s ON true`)

	conditions := make([]string, 0, 2)
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		statusCond := fmt.Sprintf("s.status IN (%s)", strings.Join(placeholders, ","))
		if filter.AuthorID != "" {
			args = append(args, filter.AuthorID)
			statusCond = fmt.Sprintf("(%s OR o.created_by = $%d)", statusCond, len(args))
		}
		conditions = append(conditions, statusCond)
	} else if filter.AuthorID != "" {
		args = append(args, filter.AuthorID)
		conditions = append(conditions, fmt.Sprintf("o.created_by = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY o.created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var rows []OpportunityListRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	return rows, nil
}

// InsertAddendumTx appends an addendum row inside a transaction.
func (r *OpportunityRepository) InsertAddendumTx(ctx context.Context, tx *sqlx.Tx, addendum *models.Addendum) error {
	if addendum.ID == "" {
		addendum.ID = uuid.NewString()
	}
	if addendum.CreatedAt.IsZero() {
		addendum.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO opportunity_addenda (id, opportunity_id, description, created_at, created_by)
	VALUES (:id, :opportunity_id, :description, :created_at, :created_by)`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, addendum); err != nil {
		return fmt.Errorf("insert addendum: %w", err)
	}
	return nil
}

// ListAddenda returns addenda for the opportunity, oldest first.
func (r *OpportunityRepository) ListAddenda(ctx context.Context, opportunityID string) ([]models.Addendum, error) {
	var addenda []models.Addendum
	const query = `SELECT id, opportunity_id, description, created_at, created_by
	FROM opportunity_addenda WHERE opportunity_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &addenda, query, opportunityID); err != nil {
		return nil, fmt.Errorf("list addenda: %w", err)
	}
	return addenda, nil
}

// LapsedPublished returns IDs of opportunities whose current status is
// Published and whose current version deadline is at or before now.
func (r *OpportunityRepository) LapsedPublished(ctx context.Context, now time.Time) ([]string, error) {
	const query = `SELECT o.id
FROM opportunities o
JOIN LATERAL (
    SELECT proposal_deadline FROM opportunity_versions
    WHERE opportunity_id = o.id ORDER BY created_at DESC LIMIT 1
) v ON true
JOIN LATERAL (
    SELECT status FROM opportunity_statuses
    WHERE opportunity_id = o.id AND status IS NOT NULL ORDER BY created_at DESC LIMIT 1
) s ON true
WHERE s.status = $1 AND v.proposal_deadline <= $2
ORDER BY o.created_at ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, models.OpportunityStatusPublished, now); err != nil {
		return nil, fmt.Errorf("find lapsed opportunities: %w", err)
	}
	return ids, nil
}

// Delete removes the root; versions, statuses, addenda, and proposals cascade.
func (r *OpportunityRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM opportunities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete opportunity: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check opportunity delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

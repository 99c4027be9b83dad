package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/procurehub/marketplace-api/internal/models"
)

// ProposalRepository persists proposal roots and their append-only status
// history.
type ProposalRepository struct {
	db *sqlx.DB
}

// NewProposalRepository constructs the repository.
func NewProposalRepository(db *sqlx.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

const proposalColumns = `id, opportunity_id, created_by, created_at, updated_at, updated_by,
       proponent_kind, organization_name, proposal_text, score, attachments`

const proposalStatusColumns = `id, proposal_id, created_at, created_by, status, event, note, attachments`

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

// Create inserts the proposal root and its initial Draft status row in one
// transaction.
func (r *ProposalRepository) Create(ctx context.Context, proposal *models.Proposal, status *models.ProposalStatusRecord) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin proposal create: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if proposal.ID == "" {
		proposal.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = now
	}
	if proposal.UpdatedAt.IsZero() {
		proposal.UpdatedAt = now
	}
	if proposal.Attachments == nil {
		proposal.Attachments = pq.StringArray{}
	}
	const query = `INSERT INTO proposals
	(id, opportunity_id, created_by, created_at, updated_at, updated_by, proponent_kind, organization_name, proposal_text, score, attachments)
	VALUES (:id, :opportunity_id, :created_by, :created_at, :updated_at, :updated_by, :proponent_kind, :organization_name, :proposal_text, :score, :attachments)`
	if _, err = sqlx.NamedExecContext(ctx, tx, query, proposal); err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}

	status.ProposalID = proposal.ID
	if err = r.InsertStatusTx(ctx, tx, status); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit proposal create: %w", err)
	}
	return nil
}

// GetByID fetches a proposal root by identifier.
func (r *ProposalRepository) GetByID(ctx context.Context, id string) (*models.Proposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM proposals WHERE id = $1`, proposalColumns)
	var proposal models.Proposal
	if err := r.db.GetContext(ctx, &proposal, query, id); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// List returns proposals matching the filter, newest first.
func (r *ProposalRepository) List(ctx context.Context, filter models.ProposalFilter) ([]models.Proposal, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 2)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM proposals`, proposalColumns))

	conditions := make([]string, 0, 2)
	if filter.OpportunityID != "" {
		args = append(args, filter.OpportunityID)
		conditions = append(conditions, fmt.Sprintf("opportunity_id = $%d", len(args)))
	}
	if filter.AuthorID != "" {
		args = append(args, filter.AuthorID)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var proposals []models.Proposal
	if err := r.db.SelectContext(ctx, &proposals, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	return proposals, nil
}

// UpdateContent replaces the draft content fields and bumps updated_at.
func (r *ProposalRepository) UpdateContent(ctx context.Context, proposal *models.Proposal) error {
	proposal.UpdatedAt = time.Now().UTC()
	if proposal.Attachments == nil {
		proposal.Attachments = pq.StringArray{}
	}
	const query = `UPDATE proposals SET
	updated_at = :updated_at, updated_by = :updated_by, proponent_kind = :proponent_kind,
	organization_name = :organization_name, proposal_text = :proposal_text, attachments = :attachments
	WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, proposal)
	if err != nil {
		return fmt.Errorf("update proposal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check proposal update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// InsertStatusTx appends a status or event row inside a transaction.
func (r *ProposalRepository) InsertStatusTx(ctx context.Context, tx *sqlx.Tx, record *models.ProposalStatusRecord) error {
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
	const query = `INSERT INTO proposal_statuses
	(id, proposal_id, created_at, created_by, status, event, note, attachments)
	VALUES (:id, :proposal_id, :created_at, :created_by, :status, :event, :note, :attachments)`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, record); err != nil {
		return fmt.Errorf("insert proposal status: %w", err)
	}
	return nil
}

// CurrentStatus returns the newest row with a non-null status.
func (r *ProposalRepository) CurrentStatus(ctx context.Context, proposalID string) (*models.ProposalStatusRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM proposal_statuses
	WHERE proposal_id = $1 AND status IS NOT NULL ORDER BY created_at DESC LIMIT 1`, proposalStatusColumns)
	var record models.ProposalStatusRecord
	if err := r.db.GetContext(ctx, &record, query, proposalID); err != nil {
		return nil, err
	}
	return &record, nil
}

// History returns all status and event rows, newest first.
func (r *ProposalRepository) History(ctx context.Context, proposalID string) ([]models.ProposalStatusRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM proposal_statuses
	WHERE proposal_id = $1 ORDER BY created_at DESC`, proposalStatusColumns)
	var records []models.ProposalStatusRecord
	if err := r.db.SelectContext(ctx, &records, query, proposalID); err != nil {
		return nil, fmt.Errorf("load proposal history: %w", err)
	}
	return records, nil
}

// ProposalStateRow pairs a proposal ID with its author and current status.
type ProposalStateRow struct {
	ID        string                `db:"id"`
	CreatedBy string                `db:"created_by"`
	Status    models.ProposalStatus `db:"status"`
}

// SiblingsInStatusesTx returns sibling proposals of the opportunity whose
// current status is in the given set, locking the proposal rows for the
// duration of the transaction. The award cascade uses this to freeze the set
// of proposals it will mark NOT_AWARDED.
func (r *ProposalRepository) SiblingsInStatusesTx(ctx context.Context, tx *sqlx.Tx, opportunityID string, statuses []models.ProposalStatus) ([]ProposalStateRow, error) {
	args := make([]interface{}, 0, len(statuses)+1)
	args = append(args, opportunityID)
	placeholders := make([]string, len(statuses))
	for i, status := range statuses {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf(`SELECT p.id, p.created_by, s.status
FROM proposals p
JOIN LATERAL (
    SELECT status FROM proposal_statuses
    WHERE proposal_id = p.id AND status IS NOT NULL ORDER BY created_at DESC LIMIT 1
) s ON true
WHERE p.opportunity_id = $1 AND s.status IN (%s)
ORDER BY p.created_at ASC
FOR UPDATE OF p`, strings.Join(placeholders, ","))

	var rows []ProposalStateRow
	if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select award siblings: %w", err)
	}
	return rows, nil
}

// SubmittedForOpportunity returns proposals whose current status is Submitted.
func (r *ProposalRepository) SubmittedForOpportunity(ctx context.Context, opportunityID string) ([]ProposalStateRow, error) {
	const query = `SELECT p.id, p.created_by, s.status
FROM proposals p
JOIN LATERAL (
    SELECT status FROM proposal_statuses
    WHERE proposal_id = p.id AND status IS NOT NULL ORDER BY created_at DESC LIMIT 1
) s ON true
WHERE p.opportunity_id = $1 AND s.status = $2
ORDER BY p.created_at ASC`
	var rows []ProposalStateRow
	if err := r.db.SelectContext(ctx, &rows, query, opportunityID, models.ProposalStatusSubmitted); err != nil {
		return nil, fmt.Errorf("select submitted proposals: %w", err)
	}
	return rows, nil
}

// AwardedForOpportunity returns the proposal currently holding Awarded, or
// sql.ErrNoRows when none does.
func (r *ProposalRepository) AwardedForOpportunity(ctx context.Context, opportunityID string) (*models.Proposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM proposals p
JOIN LATERAL (
    SELECT status FROM proposal_statuses
    WHERE proposal_id = p.id AND status IS NOT NULL ORDER BY created_at DESC LIMIT 1
) s ON true
WHERE p.opportunity_id = $1 AND s.status = $2
LIMIT 1`, prefixColumns("p", proposalColumns))
	var proposal models.Proposal
	if err := r.db.GetContext(ctx, &proposal, query, opportunityID, models.ProposalStatusAwarded); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// CountEverSubmitted counts the opportunity's proposals that have carried a
// Submitted status at any point, regardless of where they moved afterwards.
func (r *ProposalRepository) CountEverSubmitted(ctx context.Context, opportunityID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT p.id)
FROM proposals p
JOIN proposal_statuses ps ON ps.proposal_id = p.id
WHERE p.opportunity_id = $1 AND ps.status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, opportunityID, models.ProposalStatusSubmitted); err != nil {
		return 0, fmt.Errorf("count submitted proposals: %w", err)
	}
	return count, nil
}

// CountByCurrentStatus counts the opportunity's proposals in the given status.
func (r *ProposalRepository) CountByCurrentStatus(ctx context.Context, opportunityID string, status models.ProposalStatus) (int, error) {
	const query = `SELECT COUNT(1)
FROM proposals p
JOIN LATERAL (
    SELECT status FROM proposal_statuses
    WHERE proposal_id = p.id AND status IS NOT NULL ORDER BY created_at DESC LIMIT 1
) s ON true
WHERE p.opportunity_id = $1 AND s.status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, opportunityID, status); err != nil {
		return 0, fmt.Errorf("count proposals by status: %w", err)
	}
	return count, nil
}

// UpdateScoreTx writes the score onto the root record inside a transaction.
func (r *ProposalRepository) UpdateScoreTx(ctx context.Context, tx *sqlx.Tx, proposalID string, score float64, actorID string, now time.Time) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE proposals SET score = $1, updated_at = $2, updated_by = $3 WHERE id = $4`,
		score, now, actorID, proposalID)
	if err != nil {
		return fmt.Errorf("update proposal score: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check score update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Ranks computes the live score ranking across the opportunity's proposals in
// rankable statuses. Recomputed on every read; ties share a rank.
func (r *ProposalRepository) Ranks(ctx context.Context, opportunityID string) ([]models.ProposalRank, error) {
	args := make([]interface{}, 0, len(models.RankableProposalStatuses)+1)
	args = append(args, opportunityID)
	placeholders := make([]string, len(models.RankableProposalStatuses))
	for i, status := range models.RankableProposalStatuses {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf(`SELECT p.id AS proposal_id,
       RANK() OVER (ORDER BY p.score DESC NULLS LAST) AS rank
FROM proposals p
JOIN LATERAL (
    SELECT status FROM proposal_statuses
    WHERE proposal_id = p.id AND status IS NOT NULL ORDER BY created_at DESC LIMIT 1
) s ON true
WHERE p.opportunity_id = $1 AND s.status IN (%s)`, strings.Join(placeholders, ","))

	var ranks []models.ProposalRank
	if err := r.db.SelectContext(ctx, &ranks, query, args...); err != nil {
		return nil, fmt.Errorf("compute proposal ranks: %w", err)
	}
	return ranks, nil
}

// Delete removes the proposal root; status rows cascade.
func (r *ProposalRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM proposals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete proposal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check proposal delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

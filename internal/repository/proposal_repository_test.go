package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurehub/marketplace-api/internal/models"
)

func TestProposalRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO proposals").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO proposal_statuses").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	author := "55555555-5555-5555-5555-555555555555"
	draft := models.ProposalStatusDraft
	err := repo.Create(context.Background(),
		&models.Proposal{OpportunityID: "opp-1", CreatedBy: author, ProponentKind: models.ProponentIndividual, ProposalText: "We can do this."},
		&models.ProposalStatusRecord{Status: &draft, CreatedBy: &author})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalRepositoryUpdateContentMissing(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	mock.ExpectExec("UPDATE proposals SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateContent(context.Background(), &models.Proposal{ID: "missing"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalRepositoryCurrentStatus(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	rows := sqlmock.NewRows([]string{"id", "proposal_id", "created_at", "created_by", "status", "event", "note", "attachments"}).
		AddRow("sid", "prop-1", time.Now(), nil, string(models.ProposalStatusSubmitted), nil, "", pq.StringArray{})
	mock.ExpectQuery(`SELECT (.+) FROM proposal_statuses\s+WHERE proposal_id = \$1 AND status IS NOT NULL ORDER BY created_at DESC LIMIT 1`).
		WithArgs("prop-1").
		WillReturnRows(rows)

	record, err := repo.CurrentStatus(context.Background(), "prop-1")
	require.NoError(t, err)
	require.NotNil(t, record.Status)
	assert.Equal(t, models.ProposalStatusSubmitted, *record.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalRepositorySiblingsInStatusesTx(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "created_by", "status"}).
		AddRow("prop-1", "vendor-1", string(models.ProposalStatusEvaluated)).
		AddRow("prop-2", "vendor-2", string(models.ProposalStatusUnderReview))
	mock.ExpectQuery(`SELECT p\.id, p\.created_by, s\.status\s+FROM proposals p`).
		WithArgs("opp-1", models.ProposalStatusUnderReview, models.ProposalStatusEvaluated, models.ProposalStatusAwarded).
		WillReturnRows(rows)

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	siblings, err := repo.SiblingsInStatusesTx(context.Background(), tx, "opp-1", models.AwardableProposalStatuses)
	require.NoError(t, err)
	require.Len(t, siblings, 2)
	assert.Equal(t, "vendor-1", siblings[0].CreatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalRepositoryRanks(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	rows := sqlmock.NewRows([]string{"proposal_id", "rank"}).
		AddRow("prop-2", 1).
		AddRow("prop-1", 2).
		AddRow("prop-3", 2)
	mock.ExpectQuery(`RANK\(\) OVER`).
		WithArgs("opp-1", models.ProposalStatusEvaluated, models.ProposalStatusAwarded, models.ProposalStatusNotAwarded).
		WillReturnRows(rows)

	ranks, err := repo.Ranks(context.Background(), "opp-1")
	require.NoError(t, err)
	require.Len(t, ranks, 3)
	assert.Equal(t, 1, ranks[0].Rank)
	assert.Equal(t, ranks[1].Rank, ranks[2].Rank)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalRepositoryUpdateScoreTx(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE proposals SET score").
		WithArgs(87.5, sqlmock.AnyArg(), "reviewer-1", "prop-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	err = repo.UpdateScoreTx(context.Background(), tx, "prop-1", 87.5, "reviewer-1", time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurehub/marketplace-api/internal/models"
)

func newOpportunityMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestOpportunityRepositoryCreateWithInitialState(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewOpportunityRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO opportunities").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO opportunity_versions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO opportunity_statuses").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	author := "11111111-1111-1111-1111-111111111111"
	draft := models.OpportunityStatusDraft
	err := repo.CreateWithInitialState(context.Background(),
		&models.Opportunity{CreatedBy: &author},
		&models.OpportunityVersion{Title: "Road resurfacing", Teaser: "Resurface Main St", RewardCents: 1500000, ProposalDeadline: time.Now().Add(72 * time.Hour), CreatedBy: &author},
		&models.OpportunityStatusRecord{Status: &draft, CreatedBy: &author})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpportunityRepositoryCreateRollsBackOnVersionFailure(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewOpportunityRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO opportunities").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO opportunity_versions").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	draft := models.OpportunityStatusDraft
	err := repo.CreateWithInitialState(context.Background(),
		&models.Opportunity{},
		&models.OpportunityVersion{Title: "x"},
		&models.OpportunityStatusRecord{Status: &draft})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpportunityRepositoryInsertStatusTxRejectsAmbiguousRecord(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewOpportunityRepository(db)

	mock.ExpectBegin()
	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	err = repo.InsertStatusTx(context.Background(), tx, &models.OpportunityStatusRecord{})
	require.Error(t, err)

	draft := models.OpportunityStatusDraft
	edited := models.OpportunityEventEdited
	err = repo.InsertStatusTx(context.Background(), tx, &models.OpportunityStatusRecord{Status: &draft, Event: &edited})
	require.Error(t, err)
}

func TestOpportunityRepositoryCurrentStatusSkipsEventRows(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewOpportunityRepository(db)

	oppID := "22222222-2222-2222-2222-222222222222"
	rows := sqlmock.NewRows([]string{"id", "opportunity_id", "created_at", "created_by", "status", "event", "note", "attachments"}).
		AddRow("sid", oppID, time.Now(), nil, string(models.OpportunityStatusPublished), nil, "", pq.StringArray{})
	mock.ExpectQuery(`SELECT (.+) FROM opportunity_statuses\s+WHERE opportunity_id = \$1 AND status IS NOT NULL ORDER BY created_at DESC LIMIT 1`).
		WithArgs(oppID).
		WillReturnRows(rows)

	record, err := repo.CurrentStatus(context.Background(), oppID)
	require.NoError(t, err)
	require.NotNil(t, record.Status)
	assert.Equal(t, models.OpportunityStatusPublished, *record.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpportunityRepositoryPublishedAtMissing(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewOpportunityRepository(db)

	oppID := "33333333-3333-3333-3333-333333333333"
	mock.ExpectQuery(`SELECT created_at FROM opportunity_statuses`).
		WithArgs(oppID, models.OpportunityStatusPublished).
		WillReturnError(sql.ErrNoRows)

	ts, err := repo.PublishedAt(context.Background(), oppID)
	require.NoError(t, err)
	assert.Nil(t, ts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpportunityRepositoryListCurrent(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewOpportunityRepository(db)

	author := "44444444-4444-4444-4444-444444444444"
	rows := sqlmock.NewRows([]string{
		"id", "created_at", "created_by",
		"version_id", "version_at", "version_by",
		"title", "teaser", "reward_cents", "skills", "proposal_deadline",
		"status", "status_at", "status_by",
	}).AddRow(
		"opp-1", time.Now(), author,
		"ver-1", time.Now(), author,
		"Bridge inspection", "Inspect the north bridge", int64(500000), pq.StringArray{"engineering"}, time.Now().Add(24*time.Hour),
		string(models.OpportunityStatusPublished), time.Now(), author,
	)
	mock.ExpectQuery(`SELECT o\.id, o\.created_at, o\.created_by`).
		WithArgs(models.OpportunityStatusPublished, author).
		WillReturnRows(rows)

	result, err := repo.ListCurrent(context.Background(), models.OpportunityFilter{
		Statuses: []models.OpportunityStatus{models.OpportunityStatusPublished},
		AuthorID: author,
	})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Bridge inspection", result[0].Title)
	assert.Equal(t, models.OpportunityStatusPublished, result[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpportunityRepositoryLapsedPublished(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewOpportunityRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id"}).AddRow("opp-1").AddRow("opp-2")
	mock.ExpectQuery(`SELECT o\.id\s+FROM opportunities o`).
		WithArgs(models.OpportunityStatusPublished, now).
		WillReturnRows(rows)

	ids, err := repo.LapsedPublished(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []string{"opp-1", "opp-2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpportunityRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewOpportunityRepository(db)

	mock.ExpectExec("DELETE FROM opportunities").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

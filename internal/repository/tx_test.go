package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	labels []string
}

func (m *recordingObserver) ObserveDBQuery(label string, _ time.Duration) {
	m.labels = append(m.labels, label)
}

func newTxMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTxRunnerObservesCommittedTransaction(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()
	observer := &recordingObserver{}
	runner := NewTxRunner(db, observer)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := runner.WithinTx(context.Background(), func(_ *sqlx.Tx) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, []string{"workflow_tx"}, observer.labels)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxRunnerObservesRolledBackTransaction(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()
	observer := &recordingObserver{}
	runner := NewTxRunner(db, observer)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := runner.WithinTx(context.Background(), func(_ *sqlx.Tx) error { return sql.ErrConnDone })
	require.Error(t, err)
	assert.Equal(t, []string{"workflow_tx"}, observer.labels)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxRunnerRunsWithoutObserver(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()
	runner := NewTxRunner(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, runner.WithinTx(context.Background(), func(_ *sqlx.Tx) error { return nil }))
	assert.NoError(t, mock.ExpectationsWereMet())
}

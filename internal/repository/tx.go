package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// QueryObserver receives database timing samples.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// TxRunner scopes a function to a single database transaction. Workflow
// operations that span entities (award cascade, batch close) run every write
// through one transaction so the unit of atomicity matches the operation.
type TxRunner struct {
	db       *sqlx.DB
	observer QueryObserver
}

// NewTxRunner constructs the runner. An optional observer receives the
// duration of every committed or rolled-back transaction.
func NewTxRunner(db *sqlx.DB, observers ...QueryObserver) *TxRunner {
	r := &TxRunner{db: db}
	if len(observers) > 0 {
		r.observer = observers[0]
	}
	return r
}

// WithinTx begins a transaction, runs fn, and commits; any error rolls the
// whole transaction back.
func (t *TxRunner) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	start := time.Now()
	if t.observer != nil {
		defer func() {
			t.observer.ObserveDBQuery("workflow_tx", time.Since(start))
		}()
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

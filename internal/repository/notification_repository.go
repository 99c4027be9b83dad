package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/procurehub/marketplace-api/internal/models"
)

// NotificationRepository manages the outbox table.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, kind, entity_kind, entity_id, recipients, payload, status, attempts, created_at, dispatched_at`

const enqueueNotificationQuery = `INSERT INTO notifications
	(id, kind, entity_kind, entity_id, recipients, payload, status, attempts, created_at)
	VALUES (:id, :kind, :entity_kind, :entity_id, :recipients, :payload, :status, :attempts, :created_at)`

func prepareNotification(n *models.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Status == "" {
		n.Status = models.NotificationStatusPending
	}
	if n.Recipients == nil {
		n.Recipients = pq.StringArray{}
	}
	if n.Payload == nil {
		n.Payload = []byte("{}")
	}
}

// EnqueueTx writes an outbox row inside the workflow transaction, so the
// notification commits or rolls back together with the state change.
func (r *NotificationRepository) EnqueueTx(ctx context.Context, tx *sqlx.Tx, n *models.Notification) error {
	prepareNotification(n)
	if _, err := sqlx.NamedExecContext(ctx, tx, enqueueNotificationQuery, n); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// Enqueue writes an outbox row outside any transaction.
func (r *NotificationRepository) Enqueue(ctx context.Context, n *models.Notification) error {
	prepareNotification(n)
	if _, err := r.db.NamedExecContext(ctx, enqueueNotificationQuery, n); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// Pending returns undispatched rows, oldest first.
func (r *NotificationRepository) Pending(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM notifications
	WHERE status = $1 ORDER BY created_at ASC LIMIT %d`, notificationColumns, limit)
	var rows []models.Notification
	if err := r.db.SelectContext(ctx, &rows, query, models.NotificationStatusPending); err != nil {
		return nil, fmt.Errorf("select pending notifications: %w", err)
	}
	return rows, nil
}

// MarkSent records successful dispatch.
func (r *NotificationRepository) MarkSent(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET status = $1, dispatched_at = $2, attempts = attempts + 1 WHERE id = $3`,
		models.NotificationStatusSent, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed bumps the attempt counter and, once maxAttempts is reached,
// parks the row as FAILED so the poller stops retrying it.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id string, maxAttempts int) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET attempts = attempts + 1,
		 status = CASE WHEN attempts + 1 >= $1 THEN $2 ELSE status END
		 WHERE id = $3`,
		maxAttempts, models.NotificationStatusFailed, id); err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}

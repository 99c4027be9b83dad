package models

import (
	"time"

	"github.com/lib/pq"
)

// NotificationKind identifies the outbound event being delivered.
type NotificationKind string

const (
	NotificationOpportunityPublished NotificationKind = "OPPORTUNITY_PUBLISHED"
	NotificationReadyForEvaluation   NotificationKind = "READY_FOR_EVALUATION"
	NotificationProposalSubmitted    NotificationKind = "PROPOSAL_SUBMITTED"
	NotificationProposalAwarded      NotificationKind = "PROPOSAL_AWARDED"
	NotificationProposalNotAwarded   NotificationKind = "PROPOSAL_NOT_AWARDED"
	NotificationOpportunityCanceled  NotificationKind = "OPPORTUNITY_CANCELED"
	NotificationOpportunitySuspended NotificationKind = "OPPORTUNITY_SUSPENDED"
	NotificationAddendumAdded        NotificationKind = "ADDENDUM_ADDED"
)

// NotificationStatus tracks outbox dispatch state.
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "PENDING"
	NotificationStatusSent    NotificationStatus = "SENT"
	NotificationStatusFailed  NotificationStatus = "FAILED"
)

// Notification is an outbox row written inside the workflow transaction and
// dispatched asynchronously, so delivery failures never roll back the
// transactional core.
type Notification struct {
	ID           string             `db:"id" json:"id"`
	Kind         NotificationKind   `db:"kind" json:"kind"`
	EntityKind   string             `db:"entity_kind" json:"entityKind"`
	EntityID     string             `db:"entity_id" json:"entityId"`
	Recipients   pq.StringArray     `db:"recipients" json:"recipients"`
	Payload      []byte             `db:"payload" json:"payload,omitempty"`
	Status       NotificationStatus `db:"status" json:"status"`
	Attempts     int                `db:"attempts" json:"attempts"`
	CreatedAt    time.Time          `db:"created_at" json:"createdAt"`
	DispatchedAt *time.Time         `db:"dispatched_at" json:"dispatchedAt,omitempty"`
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Notification Outbox
// =============================================================================

// NotificationKind selects the message format and subject table.
type NotificationKind string

const (
	NotifyShipmentReceived  NotificationKind = "shipment_received"
	NotifyShipmentImages    NotificationKind = "shipment_images"
	NotifyTransferCompleted NotificationKind = "transfer_completed"
)

// Notification is a pending or delivered Telegram send. Rows stay in the
// outbox until delivery succeeds so a Telegram outage never fails the
// request that triggered the message.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	SubjectID int64            `json:"subject_id"`
	CreatedAt time.Time        `json:"created_at"`
	SentAt    *time.Time       `json:"sent_at,omitempty"`
	Attempts  int              `json:"attempts"`
	LastError string           `json:"last_error,omitempty"`
}

// NewNotification enqueues a message for the given subject.
func NewNotification(kind NotificationKind, subjectID int64) *Notification {
	return &Notification{
		ID:        "ntf_" + uuid.New().String()[:8],
		Kind:      kind,
		SubjectID: subjectID,
		CreatedAt: time.Now(),
	}
}

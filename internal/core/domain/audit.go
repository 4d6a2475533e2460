package domain

import "time"

// =============================================================================
// Audit Log
// =============================================================================

// AuditAction is the kind of change recorded against a shipment.
type AuditAction string

const (
	AuditCreated       AuditAction = "CREATED"
	AuditUpdated       AuditAction = "UPDATED"
	AuditStatusChanged AuditAction = "STATUS_CHANGED"
)

// AuditEntry is one row of the shipment audit trail.
type AuditEntry struct {
	ID         int64       `json:"id"`
	ShipmentID int64       `json:"shipment_id"`
	QRCode     string      `json:"qr_code,omitempty"`
	Action     AuditAction `json:"action"`
	OldValue   string      `json:"old_value,omitempty"`
	NewValue   string      `json:"new_value,omitempty"`
	ChangedBy  string      `json:"changed_by"`
	Timestamp  time.Time   `json:"timestamp"`
}

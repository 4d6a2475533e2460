package domain

import (
	"errors"
	"time"
)

// =============================================================================
// Transfer Slip Errors
// =============================================================================

var (
	ErrTransferCompleted    = errors.New("transfer slip is already completed")
	ErrTransferEmpty        = errors.New("transfer slip has no shipments")
	ErrTransferCodeRequired = errors.New("transfer code is required")
)

// =============================================================================
// Transfer Slip Status
// =============================================================================

// TransferStatus is the lifecycle state of a transfer slip.
type TransferStatus string

const (
	TransferInTransit TransferStatus = "Đang chuyển"
	TransferCompleted TransferStatus = "Đã hoàn thành"
)

// =============================================================================
// Transfer Slip
// =============================================================================

// TransferSlip groups shipments that move between locations in one batch.
type TransferSlip struct {
	ID           int64          `json:"id"`
	TransferCode string         `json:"transfer_code"`
	Status       TransferStatus `json:"status"`
	ImageURL     string         `json:"image_url,omitempty"`
	CreatedBy    string         `json:"created_by"`
	CompletedBy  string         `json:"completed_by,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Notes        string         `json:"notes,omitempty"`
}

// TransferSlipItem is a shipment membership in a transfer slip.
type TransferSlipItem struct {
	ID             int64     `json:"id"`
	TransferSlipID int64     `json:"transfer_slip_id"`
	ShipmentID     int64     `json:"shipment_id"`
	AddedAt        time.Time `json:"added_at"`
}

// NewTransferSlip creates an in-transit slip. An empty code is replaced by a
// generated one derived from the creation time.
func NewTransferSlip(createdBy, transferCode string) (*TransferSlip, error) {
	if createdBy == "" {
		return nil, ErrCreatedByRequired
	}
	now := time.Now()
	if transferCode == "" {
		transferCode = GenerateTransferCode(now)
	}
	return &TransferSlip{
		TransferCode: transferCode,
		Status:       TransferInTransit,
		CreatedBy:    createdBy,
		CreatedAt:    now,
	}, nil
}

// GenerateTransferCode builds the TC+timestamp code used when the caller does
// not supply one.
func GenerateTransferCode(t time.Time) string {
	return "TC" + t.Format("20060102150405")
}

// Complete marks the slip done. Completing an already-completed slip is an
// error so a slip is only notified once.
func (t *TransferSlip) Complete(completedBy, imageURL, notes string) error {
	if t.Status == TransferCompleted {
		return ErrTransferCompleted
	}
	now := time.Now()
	t.Status = TransferCompleted
	t.CompletedBy = completedBy
	t.CompletedAt = &now
	if imageURL != "" {
		t.ImageURL = imageURL
	}
	if notes != "" {
		t.Notes = notes
	}
	return nil
}

// IsOpen reports whether shipments can still be added to the slip.
func (t *TransferSlip) IsOpen() bool {
	return t.Status == TransferInTransit
}

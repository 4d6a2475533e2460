// Package store provides persistence for shipment tracking entities.
package store

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNotFound is returned when an entity is not found.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateQRCode is returned when a shipment with the QR code already exists.
	ErrDuplicateQRCode = errors.New("shipment with this QR code already exists")

	// ErrDuplicateTransferCode is returned when a transfer slip with the code already exists.
	ErrDuplicateTransferCode = errors.New("transfer slip with this code already exists")

	// ErrDuplicateItem is returned when a shipment is already on the transfer slip.
	ErrDuplicateItem = errors.New("shipment is already on this transfer slip")

	// ErrDuplicateName is returned when a supplier or store name already exists.
	ErrDuplicateName = errors.New("name already exists")

	// ErrDuplicateUsername is returned when a user with the username already exists.
	ErrDuplicateUsername = errors.New("user with this username already exists")

	// ErrForeignKey is returned when a foreign key constraint is violated.
	ErrForeignKey = errors.New("foreign key constraint violated")

	// ErrConnectionFailed is returned when database connection fails.
	ErrConnectionFailed = errors.New("database connection failed")

	// ErrMigrationFailed is returned when database migration fails.
	ErrMigrationFailed = errors.New("database migration failed")

	// ErrTxFailed is returned when a transaction operation fails.
	ErrTxFailed = errors.New("transaction failed")
)

// StoreError wraps errors with additional context.
type StoreError struct {
	Op      string // Operation that failed (e.g., "CreateShipment")
	Entity  string // Entity type (e.g., "shipment", "supplier")
	ID      string // Entity ID if applicable
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, entity, id, message string, err error) *StoreError {
	return &StoreError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}

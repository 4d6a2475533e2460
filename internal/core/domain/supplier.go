package domain

import (
	"errors"
	"strings"
	"time"
)

// =============================================================================
// Supplier
// =============================================================================

var ErrSupplierNameRequired = errors.New("supplier name is required")

// Supplier is a repair vendor or courier that devices are sent through.
// Suppliers are soft-deleted: deactivated suppliers stay referenced by
// historical shipments.
type Supplier struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Contact  string `json:"contact,omitempty"`
	Address  string `json:"address,omitempty"`
	IsActive bool   `json:"is_active"`
}

// NewSupplier creates an active supplier.
func NewSupplier(name, contact, address string) (*Supplier, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrSupplierNameRequired
	}
	return &Supplier{
		Name:     name,
		Contact:  contact,
		Address:  address,
		IsActive: true,
	}, nil
}

// =============================================================================
// Store
// =============================================================================

var ErrStoreNameRequired = errors.New("store name is required")

// Store is a retail location that sends devices into the repair pipeline.
type Store struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewStore creates a store.
func NewStore(name, address, note string) (*Store, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrStoreNameRequired
	}
	return &Store{
		Name:      name,
		Address:   address,
		Note:      note,
		CreatedAt: time.Now(),
	}, nil
}

package store

import (
	"context"
	"time"

	"github.com/lamdp/shiptrack/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for shipment tracking entities.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, username string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	DeleteUser(ctx context.Context, username string) error
	ListUsers(ctx context.Context) ([]domain.User, error)

	// Session operations
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, token string) (*domain.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Shipment operations
	CreateShipment(ctx context.Context, shipment *domain.Shipment) error
	GetShipment(ctx context.Context, id int64) (*domain.Shipment, error)
	GetShipmentByQRCode(ctx context.Context, qrCode string) (*domain.Shipment, error)
	UpdateShipment(ctx context.Context, shipment *domain.Shipment) error
	DeleteShipment(ctx context.Context, id int64) error
	ListShipments(ctx context.Context, filter ShipmentFilter, opts ListOptions) ([]domain.Shipment, error)
	CountShipments(ctx context.Context, filter ShipmentFilter) (int, error)
	CountShipmentsByStatus(ctx context.Context, filter ShipmentFilter) (map[domain.ShipmentStatus]int, error)
	CountShipmentsByRequestType(ctx context.Context, filter ShipmentFilter) (map[domain.RequestType]int, error)

	// Supplier operations
	CreateSupplier(ctx context.Context, supplier *domain.Supplier) error
	GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error)
	GetSupplierByName(ctx context.Context, name string) (*domain.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier *domain.Supplier) error
	ListSuppliers(ctx context.Context, activeOnly bool) ([]domain.Supplier, error)

	// Retail store operations
	CreateRetailStore(ctx context.Context, rs *domain.Store) error
	GetRetailStore(ctx context.Context, id int64) (*domain.Store, error)
	UpdateRetailStore(ctx context.Context, rs *domain.Store) error
	DeleteRetailStore(ctx context.Context, id int64) error
	ListRetailStores(ctx context.Context) ([]domain.Store, error)

	// Audit log operations
	CreateAuditEntry(ctx context.Context, entry *domain.AuditEntry) error
	ListAuditEntries(ctx context.Context, shipmentID int64, opts ListOptions) ([]domain.AuditEntry, error)
	ListRecentAuditEntries(ctx context.Context, opts ListOptions) ([]domain.AuditEntry, error)

	// Transfer slip operations
	CreateTransferSlip(ctx context.Context, slip *domain.TransferSlip) error
	GetTransferSlip(ctx context.Context, id int64) (*domain.TransferSlip, error)
	GetTransferSlipByCode(ctx context.Context, code string) (*domain.TransferSlip, error)
	UpdateTransferSlip(ctx context.Context, slip *domain.TransferSlip) error
	ListTransferSlips(ctx context.Context, opts ListOptions) ([]domain.TransferSlip, error)
	GetOpenTransferSlipForUser(ctx context.Context, username string) (*domain.TransferSlip, error)
	AddTransferItem(ctx context.Context, slipID, shipmentID int64) error
	RemoveTransferItem(ctx context.Context, slipID, shipmentID int64) error
	ListTransferShipments(ctx context.Context, slipID int64) ([]domain.Shipment, error)

	// Notification outbox operations
	CreateNotification(ctx context.Context, n *domain.Notification) error
	ListPendingNotifications(ctx context.Context, limit int) ([]domain.Notification, error)
	MarkNotificationSent(ctx context.Context, id string, sentAt time.Time) error
	MarkNotificationFailed(ctx context.Context, id string, lastError string) error

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Filters and Options
// =============================================================================

// ShipmentFilter narrows shipment listings. Zero values mean no restriction.
type ShipmentFilter struct {
	// Status restricts to one workflow state.
	Status domain.ShipmentStatus

	// StoreName restricts to shipments addressed to a store. Used to scope
	// store accounts to their own stock.
	StoreName string

	// Supplier restricts to one supplier.
	Supplier string

	// RequestType restricts to one request type.
	RequestType domain.RequestType

	// Search matches QR code, IMEI or device name (substring).
	Search string

	// ActiveOnly drops completed shipments.
	ActiveOnly bool

	// SentAfter and SentBefore bound the sent_time column.
	SentAfter  *time.Time
	SentBefore *time.Time
}

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

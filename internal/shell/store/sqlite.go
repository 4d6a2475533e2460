package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/lamdp/shiptrack/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Store Method Delegation
// =============================================================================

func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	return createUser(ctx, s.db, user)
}

func (s *SQLiteStore) GetUser(ctx context.Context, username string) (*domain.User, error) {
	return getUser(ctx, s.db, username)
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, user *domain.User) error {
	return updateUser(ctx, s.db, user)
}

func (s *SQLiteStore) DeleteUser(ctx context.Context, username string) error {
	return deleteUser(ctx, s.db, username)
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	return listUsers(ctx, s.db)
}

func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	return createSession(ctx, s.db, session)
}

func (s *SQLiteStore) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	return getSession(ctx, s.db, token)
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	return deleteSession(ctx, s.db, token)
}

func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return deleteExpiredSessions(ctx, s.db, now)
}

func (s *SQLiteStore) CreateShipment(ctx context.Context, shipment *domain.Shipment) error {
	return createShipment(ctx, s.db, shipment)
}

func (s *SQLiteStore) GetShipment(ctx context.Context, id int64) (*domain.Shipment, error) {
	return getShipment(ctx, s.db, id)
}

func (s *SQLiteStore) GetShipmentByQRCode(ctx context.Context, qrCode string) (*domain.Shipment, error) {
	return getShipmentByQRCode(ctx, s.db, qrCode)
}

func (s *SQLiteStore) UpdateShipment(ctx context.Context, shipment *domain.Shipment) error {
	return updateShipment(ctx, s.db, shipment)
}

func (s *SQLiteStore) DeleteShipment(ctx context.Context, id int64) error {
	return deleteShipment(ctx, s.db, id)
}

func (s *SQLiteStore) ListShipments(ctx context.Context, filter ShipmentFilter, opts ListOptions) ([]domain.Shipment, error) {
	return listShipments(ctx, s.db, filter, opts)
}

func (s *SQLiteStore) CountShipments(ctx context.Context, filter ShipmentFilter) (int, error) {
	return countShipments(ctx, s.db, filter)
}

func (s *SQLiteStore) CountShipmentsByStatus(ctx context.Context, filter ShipmentFilter) (map[domain.ShipmentStatus]int, error) {
	return countShipmentsByStatus(ctx, s.db, filter)
}

func (s *SQLiteStore) CountShipmentsByRequestType(ctx context.Context, filter ShipmentFilter) (map[domain.RequestType]int, error) {
	return countShipmentsByRequestType(ctx, s.db, filter)
}

func (s *SQLiteStore) CreateSupplier(ctx context.Context, supplier *domain.Supplier) error {
	return createSupplier(ctx, s.db, supplier)
}

func (s *SQLiteStore) GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error) {
	return getSupplier(ctx, s.db, id)
}

func (s *SQLiteStore) GetSupplierByName(ctx context.Context, name string) (*domain.Supplier, error) {
	return getSupplierByName(ctx, s.db, name)
}

func (s *SQLiteStore) UpdateSupplier(ctx context.Context, supplier *domain.Supplier) error {
	return updateSupplier(ctx, s.db, supplier)
}

func (s *SQLiteStore) ListSuppliers(ctx context.Context, activeOnly bool) ([]domain.Supplier, error) {
	return listSuppliers(ctx, s.db, activeOnly)
}

func (s *SQLiteStore) CreateRetailStore(ctx context.Context, rs *domain.Store) error {
	return createRetailStore(ctx, s.db, rs)
}

func (s *SQLiteStore) GetRetailStore(ctx context.Context, id int64) (*domain.Store, error) {
	return getRetailStore(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateRetailStore(ctx context.Context, rs *domain.Store) error {
	return updateRetailStore(ctx, s.db, rs)
}

func (s *SQLiteStore) DeleteRetailStore(ctx context.Context, id int64) error {
	return deleteRetailStore(ctx, s.db, id)
}

func (s *SQLiteStore) ListRetailStores(ctx context.Context) ([]domain.Store, error) {
	return listRetailStores(ctx, s.db)
}

func (s *SQLiteStore) CreateAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	return createAuditEntry(ctx, s.db, entry)
}

func (s *SQLiteStore) ListAuditEntries(ctx context.Context, shipmentID int64, opts ListOptions) ([]domain.AuditEntry, error) {
	return listAuditEntries(ctx, s.db, shipmentID, opts)
}

func (s *SQLiteStore) ListRecentAuditEntries(ctx context.Context, opts ListOptions) ([]domain.AuditEntry, error) {
	return listRecentAuditEntries(ctx, s.db, opts)
}

func (s *SQLiteStore) CreateTransferSlip(ctx context.Context, slip *domain.TransferSlip) error {
	return createTransferSlip(ctx, s.db, slip)
}

func (s *SQLiteStore) GetTransferSlip(ctx context.Context, id int64) (*domain.TransferSlip, error) {
	return getTransferSlip(ctx, s.db, id)
}

func (s *SQLiteStore) GetTransferSlipByCode(ctx context.Context, code string) (*domain.TransferSlip, error) {
	return getTransferSlipByCode(ctx, s.db, code)
}

func (s *SQLiteStore) UpdateTransferSlip(ctx context.Context, slip *domain.TransferSlip) error {
	return updateTransferSlip(ctx, s.db, slip)
}

func (s *SQLiteStore) ListTransferSlips(ctx context.Context, opts ListOptions) ([]domain.TransferSlip, error) {
	return listTransferSlips(ctx, s.db, opts)
}

func (s *SQLiteStore) GetOpenTransferSlipForUser(ctx context.Context, username string) (*domain.TransferSlip, error) {
	return getOpenTransferSlipForUser(ctx, s.db, username)
}

func (s *SQLiteStore) AddTransferItem(ctx context.Context, slipID, shipmentID int64) error {
	return addTransferItem(ctx, s.db, slipID, shipmentID)
}

func (s *SQLiteStore) RemoveTransferItem(ctx context.Context, slipID, shipmentID int64) error {
	return removeTransferItem(ctx, s.db, slipID, shipmentID)
}

func (s *SQLiteStore) ListTransferShipments(ctx context.Context, slipID int64) ([]domain.Shipment, error) {
	return listTransferShipments(ctx, s.db, slipID)
}

func (s *SQLiteStore) CreateNotification(ctx context.Context, n *domain.Notification) error {
	return createNotification(ctx, s.db, n)
}

func (s *SQLiteStore) ListPendingNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	return listPendingNotifications(ctx, s.db, limit)
}

func (s *SQLiteStore) MarkNotificationSent(ctx context.Context, id string, sentAt time.Time) error {
	return markNotificationSent(ctx, s.db, id, sentAt)
}

func (s *SQLiteStore) MarkNotificationFailed(ctx context.Context, id string, lastError string) error {
	return markNotificationFailed(ctx, s.db, id, lastError)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	return createUser(ctx, s.tx, user)
}

func (s *txSQLiteStore) GetUser(ctx context.Context, username string) (*domain.User, error) {
	return getUser(ctx, s.tx, username)
}

func (s *txSQLiteStore) UpdateUser(ctx context.Context, user *domain.User) error {
	return updateUser(ctx, s.tx, user)
}

func (s *txSQLiteStore) DeleteUser(ctx context.Context, username string) error {
	return deleteUser(ctx, s.tx, username)
}

func (s *txSQLiteStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	return listUsers(ctx, s.tx)
}

func (s *txSQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	return createSession(ctx, s.tx, session)
}

func (s *txSQLiteStore) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	return getSession(ctx, s.tx, token)
}

func (s *txSQLiteStore) DeleteSession(ctx context.Context, token string) error {
	return deleteSession(ctx, s.tx, token)
}

func (s *txSQLiteStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return deleteExpiredSessions(ctx, s.tx, now)
}

func (s *txSQLiteStore) CreateShipment(ctx context.Context, shipment *domain.Shipment) error {
	return createShipment(ctx, s.tx, shipment)
}

func (s *txSQLiteStore) GetShipment(ctx context.Context, id int64) (*domain.Shipment, error) {
	return getShipment(ctx, s.tx, id)
}

func (s *txSQLiteStore) GetShipmentByQRCode(ctx context.Context, qrCode string) (*domain.Shipment, error) {
	return getShipmentByQRCode(ctx, s.tx, qrCode)
}

func (s *txSQLiteStore) UpdateShipment(ctx context.Context, shipment *domain.Shipment) error {
	return updateShipment(ctx, s.tx, shipment)
}

func (s *txSQLiteStore) DeleteShipment(ctx context.Context, id int64) error {
	return deleteShipment(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListShipments(ctx context.Context, filter ShipmentFilter, opts ListOptions) ([]domain.Shipment, error) {
	return listShipments(ctx, s.tx, filter, opts)
}

func (s *txSQLiteStore) CountShipments(ctx context.Context, filter ShipmentFilter) (int, error) {
	return countShipments(ctx, s.tx, filter)
}

func (s *txSQLiteStore) CountShipmentsByStatus(ctx context.Context, filter ShipmentFilter) (map[domain.ShipmentStatus]int, error) {
	return countShipmentsByStatus(ctx, s.tx, filter)
}

func (s *txSQLiteStore) CountShipmentsByRequestType(ctx context.Context, filter ShipmentFilter) (map[domain.RequestType]int, error) {
	return countShipmentsByRequestType(ctx, s.tx, filter)
}

func (s *txSQLiteStore) CreateSupplier(ctx context.Context, supplier *domain.Supplier) error {
	return createSupplier(ctx, s.tx, supplier)
}

func (s *txSQLiteStore) GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error) {
	return getSupplier(ctx, s.tx, id)
}

func (s *txSQLiteStore) GetSupplierByName(ctx context.Context, name string) (*domain.Supplier, error) {
	return getSupplierByName(ctx, s.tx, name)
}

func (s *txSQLiteStore) UpdateSupplier(ctx context.Context, supplier *domain.Supplier) error {
	return updateSupplier(ctx, s.tx, supplier)
}

func (s *txSQLiteStore) ListSuppliers(ctx context.Context, activeOnly bool) ([]domain.Supplier, error) {
	return listSuppliers(ctx, s.tx, activeOnly)
}

func (s *txSQLiteStore) CreateRetailStore(ctx context.Context, rs *domain.Store) error {
	return createRetailStore(ctx, s.tx, rs)
}

func (s *txSQLiteStore) GetRetailStore(ctx context.Context, id int64) (*domain.Store, error) {
	return getRetailStore(ctx, s.tx, id)
}

func (s *txSQLiteStore) UpdateRetailStore(ctx context.Context, rs *domain.Store) error {
	return updateRetailStore(ctx, s.tx, rs)
}

func (s *txSQLiteStore) DeleteRetailStore(ctx context.Context, id int64) error {
	return deleteRetailStore(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListRetailStores(ctx context.Context) ([]domain.Store, error) {
	return listRetailStores(ctx, s.tx)
}

func (s *txSQLiteStore) CreateAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	return createAuditEntry(ctx, s.tx, entry)
}

func (s *txSQLiteStore) ListAuditEntries(ctx context.Context, shipmentID int64, opts ListOptions) ([]domain.AuditEntry, error) {
	return listAuditEntries(ctx, s.tx, shipmentID, opts)
}

func (s *txSQLiteStore) ListRecentAuditEntries(ctx context.Context, opts ListOptions) ([]domain.AuditEntry, error) {
	return listRecentAuditEntries(ctx, s.tx, opts)
}

func (s *txSQLiteStore) CreateTransferSlip(ctx context.Context, slip *domain.TransferSlip) error {
	return createTransferSlip(ctx, s.tx, slip)
}

func (s *txSQLiteStore) GetTransferSlip(ctx context.Context, id int64) (*domain.TransferSlip, error) {
	return getTransferSlip(ctx, s.tx, id)
}

func (s *txSQLiteStore) GetTransferSlipByCode(ctx context.Context, code string) (*domain.TransferSlip, error) {
	return getTransferSlipByCode(ctx, s.tx, code)
}

func (s *txSQLiteStore) UpdateTransferSlip(ctx context.Context, slip *domain.TransferSlip) error {
	return updateTransferSlip(ctx, s.tx, slip)
}

func (s *txSQLiteStore) ListTransferSlips(ctx context.Context, opts ListOptions) ([]domain.TransferSlip, error) {
	return listTransferSlips(ctx, s.tx, opts)
}

func (s *txSQLiteStore) GetOpenTransferSlipForUser(ctx context.Context, username string) (*domain.TransferSlip, error) {
	return getOpenTransferSlipForUser(ctx, s.tx, username)
}

func (s *txSQLiteStore) AddTransferItem(ctx context.Context, slipID, shipmentID int64) error {
	return addTransferItem(ctx, s.tx, slipID, shipmentID)
}

func (s *txSQLiteStore) RemoveTransferItem(ctx context.Context, slipID, shipmentID int64) error {
	return removeTransferItem(ctx, s.tx, slipID, shipmentID)
}

func (s *txSQLiteStore) ListTransferShipments(ctx context.Context, slipID int64) ([]domain.Shipment, error) {
	return listTransferShipments(ctx, s.tx, slipID)
}

func (s *txSQLiteStore) CreateNotification(ctx context.Context, n *domain.Notification) error {
	return createNotification(ctx, s.tx, n)
}

func (s *txSQLiteStore) ListPendingNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	return listPendingNotifications(ctx, s.tx, limit)
}

func (s *txSQLiteStore) MarkNotificationSent(ctx context.Context, id string, sentAt time.Time) error {
	return markNotificationSent(ctx, s.tx, id, sentAt)
}

func (s *txSQLiteStore) MarkNotificationFailed(ctx context.Context, id string, lastError string) error {
	return markNotificationFailed(ctx, s.tx, id, lastError)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Time Conversion Helpers
// =============================================================================

func fmtTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseTimePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, _ := time.Parse(time.RFC3339, *s)
	return &t
}

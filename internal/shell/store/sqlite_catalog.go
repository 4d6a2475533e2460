package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/lamdp/shiptrack/internal/core/domain"
)

// =============================================================================
// Supplier Operations
// =============================================================================

// supplierRow represents a supplier row in the database.
type supplierRow struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	Contact  string `db:"contact"`
	Address  string `db:"address"`
	IsActive bool   `db:"is_active"`
}

func createSupplier(ctx context.Context, exec executor, supplier *domain.Supplier) error {
	query := `
		INSERT INTO suppliers (name, contact, address, is_active)
		VALUES (:name, :contact, :address, :is_active)`

	row := map[string]any{
		"name":      supplier.Name,
		"contact":   supplier.Contact,
		"address":   supplier.Address,
		"is_active": supplier.IsActive,
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: suppliers.name") {
			return NewStoreError("CreateSupplier", "supplier", supplier.Name, "supplier with this name already exists", ErrDuplicateName)
		}
		return NewStoreError("CreateSupplier", "supplier", supplier.Name, err.Error(), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return NewStoreError("CreateSupplier", "supplier", supplier.Name, "failed to read inserted id", err)
	}
	supplier.ID = id

	return nil
}

func getSupplier(ctx context.Context, exec executor, id int64) (*domain.Supplier, error) {
	query := `SELECT * FROM suppliers WHERE id = ?`

	var row supplierRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetSupplier", "supplier", strconv.FormatInt(id, 10), "supplier not found", ErrNotFound)
		}
		return nil, NewStoreError("GetSupplier", "supplier", strconv.FormatInt(id, 10), err.Error(), err)
	}

	return rowToSupplier(&row), nil
}

func getSupplierByName(ctx context.Context, exec executor, name string) (*domain.Supplier, error) {
	query := `SELECT * FROM suppliers WHERE name = ?`

	var row supplierRow
	err := exec.GetContext(ctx, &row, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetSupplierByName", "supplier", name, "supplier not found", ErrNotFound)
		}
		return nil, NewStoreError("GetSupplierByName", "supplier", name, err.Error(), err)
	}

	return rowToSupplier(&row), nil
}

func updateSupplier(ctx context.Context, exec executor, supplier *domain.Supplier) error {
	query := `
		UPDATE suppliers SET
			name = :name,
			contact = :contact,
			address = :address,
			is_active = :is_active
		WHERE id = :id`

	row := map[string]any{
		"id":        supplier.ID,
		"name":      supplier.Name,
		"contact":   supplier.Contact,
		"address":   supplier.Address,
		"is_active": supplier.IsActive,
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: suppliers.name") {
			return NewStoreError("UpdateSupplier", "supplier", supplier.Name, "supplier with this name already exists", ErrDuplicateName)
		}
		return NewStoreError("UpdateSupplier", "supplier", supplier.Name, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateSupplier", "supplier", strconv.FormatInt(supplier.ID, 10), "supplier not found", ErrNotFound)
	}

	return nil
}

func listSuppliers(ctx context.Context, exec executor, activeOnly bool) ([]domain.Supplier, error) {
	query := `SELECT * FROM suppliers ORDER BY name`
	if activeOnly {
		query = `SELECT * FROM suppliers WHERE is_active = 1 ORDER BY name`
	}

	var rows []supplierRow
	err := exec.SelectContext(ctx, &rows, query)
	if err != nil {
		return nil, NewStoreError("ListSuppliers", "supplier", "", err.Error(), err)
	}

	suppliers := make([]domain.Supplier, 0, len(rows))
	for _, row := range rows {
		suppliers = append(suppliers, *rowToSupplier(&row))
	}

	return suppliers, nil
}

func rowToSupplier(row *supplierRow) *domain.Supplier {
	return &domain.Supplier{
		ID:       row.ID,
		Name:     row.Name,
		Contact:  row.Contact,
		Address:  row.Address,
		IsActive: row.IsActive,
	}
}

// =============================================================================
// Retail Store Operations
// =============================================================================

// retailStoreRow represents a retail store row in the database.
type retailStoreRow struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Address   string `db:"address"`
	Note      string `db:"note"`
	CreatedAt string `db:"created_at"`
}

func createRetailStore(ctx context.Context, exec executor, rs *domain.Store) error {
	query := `
		INSERT INTO stores (name, address, note, created_at)
		VALUES (:name, :address, :note, :created_at)`

	row := map[string]any{
		"name":       rs.Name,
		"address":    rs.Address,
		"note":       rs.Note,
		"created_at": fmtTime(rs.CreatedAt),
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: stores.name") {
			return NewStoreError("CreateRetailStore", "store", rs.Name, "store with this name already exists", ErrDuplicateName)
		}
		return NewStoreError("CreateRetailStore", "store", rs.Name, err.Error(), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return NewStoreError("CreateRetailStore", "store", rs.Name, "failed to read inserted id", err)
	}
	rs.ID = id

	return nil
}

func getRetailStore(ctx context.Context, exec executor, id int64) (*domain.Store, error) {
	query := `SELECT * FROM stores WHERE id = ?`

	var row retailStoreRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetRetailStore", "store", strconv.FormatInt(id, 10), "store not found", ErrNotFound)
		}
		return nil, NewStoreError("GetRetailStore", "store", strconv.FormatInt(id, 10), err.Error(), err)
	}

	return rowToRetailStore(&row), nil
}

func updateRetailStore(ctx context.Context, exec executor, rs *domain.Store) error {
	query := `
		UPDATE stores SET
			name = :name,
			address = :address,
			note = :note
		WHERE id = :id`

	row := map[string]any{
		"id":      rs.ID,
		"name":    rs.Name,
		"address": rs.Address,
		"note":    rs.Note,
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: stores.name") {
			return NewStoreError("UpdateRetailStore", "store", rs.Name, "store with this name already exists", ErrDuplicateName)
		}
		return NewStoreError("UpdateRetailStore", "store", rs.Name, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateRetailStore", "store", strconv.FormatInt(rs.ID, 10), "store not found", ErrNotFound)
	}

	return nil
}

func deleteRetailStore(ctx context.Context, exec executor, id int64) error {
	query := `DELETE FROM stores WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return NewStoreError("DeleteRetailStore", "store", strconv.FormatInt(id, 10), err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteRetailStore", "store", strconv.FormatInt(id, 10), "store not found", ErrNotFound)
	}

	return nil
}

func listRetailStores(ctx context.Context, exec executor) ([]domain.Store, error) {
	query := `SELECT * FROM stores ORDER BY name`

	var rows []retailStoreRow
	err := exec.SelectContext(ctx, &rows, query)
	if err != nil {
		return nil, NewStoreError("ListRetailStores", "store", "", err.Error(), err)
	}

	stores := make([]domain.Store, 0, len(rows))
	for _, row := range rows {
		stores = append(stores, *rowToRetailStore(&row))
	}

	return stores, nil
}

func rowToRetailStore(row *retailStoreRow) *domain.Store {
	return &domain.Store{
		ID:        row.ID,
		Name:      row.Name,
		Address:   row.Address,
		Note:      row.Note,
		CreatedAt: parseTime(row.CreatedAt),
	}
}

// =============================================================================
// Notification Outbox Operations
// =============================================================================

// notificationRow represents a notification outbox row in the database.
type notificationRow struct {
	ID        string  `db:"id"`
	Kind      string  `db:"kind"`
	SubjectID int64   `db:"subject_id"`
	CreatedAt string  `db:"created_at"`
	SentAt    *string `db:"sent_at"`
	Attempts  int     `db:"attempts"`
	LastError string  `db:"last_error"`
}

func createNotification(ctx context.Context, exec executor, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, kind, subject_id, created_at, sent_at, attempts, last_error)
		VALUES (:id, :kind, :subject_id, :created_at, :sent_at, :attempts, :last_error)`

	row := map[string]any{
		"id":         n.ID,
		"kind":       string(n.Kind),
		"subject_id": n.SubjectID,
		"created_at": fmtTime(n.CreatedAt),
		"sent_at":    fmtTimePtr(n.SentAt),
		"attempts":   n.Attempts,
		"last_error": n.LastError,
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("CreateNotification", "notification", n.ID, err.Error(), err)
	}

	return nil
}

// maxNotificationAttempts caps delivery retries. A row that failed this many
// times stays in the table with its last_error but is no longer drained.
const maxNotificationAttempts = 10

func listPendingNotifications(ctx context.Context, exec executor, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT * FROM notifications WHERE sent_at IS NULL AND attempts < ? ORDER BY created_at LIMIT ?`

	var rows []notificationRow
	err := exec.SelectContext(ctx, &rows, query, maxNotificationAttempts, limit)
	if err != nil {
		return nil, NewStoreError("ListPendingNotifications", "notification", "", err.Error(), err)
	}

	notifications := make([]domain.Notification, 0, len(rows))
	for _, row := range rows {
		notifications = append(notifications, domain.Notification{
			ID:        row.ID,
			Kind:      domain.NotificationKind(row.Kind),
			SubjectID: row.SubjectID,
			CreatedAt: parseTime(row.CreatedAt),
			SentAt:    parseTimePtr(row.SentAt),
			Attempts:  row.Attempts,
			LastError: row.LastError,
		})
	}

	return notifications, nil
}

func markNotificationSent(ctx context.Context, exec executor, id string, sentAt time.Time) error {
	query := `UPDATE notifications SET sent_at = ?, attempts = attempts + 1, last_error = '' WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, fmtTime(sentAt), id)
	if err != nil {
		return NewStoreError("MarkNotificationSent", "notification", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("MarkNotificationSent", "notification", id, "notification not found", ErrNotFound)
	}

	return nil
}

func markNotificationFailed(ctx context.Context, exec executor, id string, lastError string) error {
	query := `UPDATE notifications SET attempts = attempts + 1, last_error = ? WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, lastError, id)
	if err != nil {
		return NewStoreError("MarkNotificationFailed", "notification", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("MarkNotificationFailed", "notification", id, "notification not found", ErrNotFound)
	}

	return nil
}

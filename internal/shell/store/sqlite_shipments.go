package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/lamdp/shiptrack/internal/core/domain"
)

// =============================================================================
// Shipment Operations
// =============================================================================

// shipmentRow represents a shipment row in the database.
type shipmentRow struct {
	ID                int64   `db:"id"`
	QRCode            string  `db:"qr_code"`
	IMEI              string  `db:"imei"`
	DeviceName        string  `db:"device_name"`
	Capacity          string  `db:"capacity"`
	Supplier          string  `db:"supplier"`
	RequestType       string  `db:"request_type"`
	Status            string  `db:"status"`
	StoreName         string  `db:"store_name"`
	SentTime          string  `db:"sent_time"`
	ReceivedTime      *string `db:"received_time"`
	CompletedTime     *string `db:"completed_time"`
	LastUpdated       string  `db:"last_updated"`
	CreatedBy         string  `db:"created_by"`
	UpdatedBy         string  `db:"updated_by"`
	Notes             string  `db:"notes"`
	ImageURL          string  `db:"image_url"`
	TelegramMessageID *int64  `db:"telegram_message_id"`
}

func createShipment(ctx context.Context, exec executor, shipment *domain.Shipment) error {
	query := `
		INSERT INTO shipments (
			qr_code, imei, device_name, capacity, supplier, request_type,
			status, store_name, sent_time, received_time, completed_time,
			last_updated, created_by, updated_by, notes, image_url,
			telegram_message_id
		) VALUES (
			:qr_code, :imei, :device_name, :capacity, :supplier, :request_type,
			:status, :store_name, :sent_time, :received_time, :completed_time,
			:last_updated, :created_by, :updated_by, :notes, :image_url,
			:telegram_message_id
		)`

	result, err := exec.NamedExecContext(ctx, query, shipmentToRowMap(shipment))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: shipments.qr_code") {
			return NewStoreError("CreateShipment", "shipment", shipment.QRCode, "shipment with this QR code already exists", ErrDuplicateQRCode)
		}
		return NewStoreError("CreateShipment", "shipment", shipment.QRCode, err.Error(), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return NewStoreError("CreateShipment", "shipment", shipment.QRCode, "failed to read inserted id", err)
	}
	shipment.ID = id

	return nil
}

func getShipment(ctx context.Context, exec executor, id int64) (*domain.Shipment, error) {
	query := `SELECT * FROM shipments WHERE id = ?`

	var row shipmentRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetShipment", "shipment", strconv.FormatInt(id, 10), "shipment not found", ErrNotFound)
		}
		return nil, NewStoreError("GetShipment", "shipment", strconv.FormatInt(id, 10), err.Error(), err)
	}

	return rowToShipment(&row), nil
}

func getShipmentByQRCode(ctx context.Context, exec executor, qrCode string) (*domain.Shipment, error) {
	query := `SELECT * FROM shipments WHERE qr_code = ?`

	var row shipmentRow
	err := exec.GetContext(ctx, &row, query, qrCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetShipmentByQRCode", "shipment", qrCode, "shipment not found", ErrNotFound)
		}
		return nil, NewStoreError("GetShipmentByQRCode", "shipment", qrCode, err.Error(), err)
	}

	return rowToShipment(&row), nil
}

func updateShipment(ctx context.Context, exec executor, shipment *domain.Shipment) error {
	query := `
		UPDATE shipments SET
			qr_code = :qr_code,
			imei = :imei,
			device_name = :device_name,
			capacity = :capacity,
			supplier = :supplier,
			request_type = :request_type,
			status = :status,
			store_name = :store_name,
			sent_time = :sent_time,
			received_time = :received_time,
			completed_time = :completed_time,
			last_updated = :last_updated,
			updated_by = :updated_by,
			notes = :notes,
			image_url = :image_url,
			telegram_message_id = :telegram_message_id
		WHERE id = :id`

	row := shipmentToRowMap(shipment)
	row["id"] = shipment.ID

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: shipments.qr_code") {
			return NewStoreError("UpdateShipment", "shipment", shipment.QRCode, "shipment with this QR code already exists", ErrDuplicateQRCode)
		}
		return NewStoreError("UpdateShipment", "shipment", shipment.QRCode, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateShipment", "shipment", strconv.FormatInt(shipment.ID, 10), "shipment not found", ErrNotFound)
	}

	return nil
}

func deleteShipment(ctx context.Context, exec executor, id int64) error {
	query := `DELETE FROM shipments WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return NewStoreError("DeleteShipment", "shipment", strconv.FormatInt(id, 10), err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteShipment", "shipment", strconv.FormatInt(id, 10), "shipment not found", ErrNotFound)
	}

	return nil
}

func listShipments(ctx context.Context, exec executor, filter ShipmentFilter, opts ListOptions) ([]domain.Shipment, error) {
	opts = opts.Normalize()

	where, args := shipmentWhere(filter)
	query := `SELECT * FROM shipments` + where + ` ORDER BY last_updated DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	var rows []shipmentRow
	err := exec.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, NewStoreError("ListShipments", "shipment", "", err.Error(), err)
	}

	shipments := make([]domain.Shipment, 0, len(rows))
	for _, row := range rows {
		shipments = append(shipments, *rowToShipment(&row))
	}

	return shipments, nil
}

func countShipments(ctx context.Context, exec executor, filter ShipmentFilter) (int, error) {
	where, args := shipmentWhere(filter)
	query := `SELECT COUNT(*) FROM shipments` + where

	var count int
	err := exec.GetContext(ctx, &count, query, args...)
	if err != nil {
		return 0, NewStoreError("CountShipments", "shipment", "", err.Error(), err)
	}

	return count, nil
}

func countShipmentsByStatus(ctx context.Context, exec executor, filter ShipmentFilter) (map[domain.ShipmentStatus]int, error) {
	where, args := shipmentWhere(filter)
	query := `SELECT status, COUNT(*) AS count FROM shipments` + where + ` GROUP BY status`

	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	err := exec.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, NewStoreError("CountShipmentsByStatus", "shipment", "", err.Error(), err)
	}

	counts := make(map[domain.ShipmentStatus]int, len(rows))
	for _, row := range rows {
		counts[domain.ShipmentStatus(row.Status)] = row.Count
	}

	return counts, nil
}

func countShipmentsByRequestType(ctx context.Context, exec executor, filter ShipmentFilter) (map[domain.RequestType]int, error) {
	where, args := shipmentWhere(filter)
	query := `SELECT request_type, COUNT(*) AS count FROM shipments` + where + ` GROUP BY request_type`

	var rows []struct {
		RequestType string `db:"request_type"`
		Count       int    `db:"count"`
	}
	err := exec.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, NewStoreError("CountShipmentsByRequestType", "shipment", "", err.Error(), err)
	}

	counts := make(map[domain.RequestType]int, len(rows))
	for _, row := range rows {
		counts[domain.RequestType(row.RequestType)] = row.Count
	}

	return counts, nil
}

// shipmentWhere builds the WHERE clause for a filter. Returns an empty string
// when the filter has no restrictions.
func shipmentWhere(filter ShipmentFilter) (string, []any) {
	var conds []string
	var args []any

	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.StoreName != "" {
		conds = append(conds, "store_name = ?")
		args = append(args, filter.StoreName)
	}
	if filter.Supplier != "" {
		conds = append(conds, "supplier = ?")
		args = append(args, filter.Supplier)
	}
	if filter.RequestType != "" {
		conds = append(conds, "request_type = ?")
		args = append(args, string(filter.RequestType))
	}
	if filter.Search != "" {
		conds = append(conds, "(qr_code LIKE ? OR imei LIKE ? OR device_name LIKE ?)")
		like := "%" + filter.Search + "%"
		args = append(args, like, like, like)
	}
	if filter.ActiveOnly {
		conds = append(conds, "status != ?")
		args = append(args, string(domain.StatusCompleted))
	}
	if filter.SentAfter != nil {
		conds = append(conds, "sent_time >= ?")
		args = append(args, fmtTime(*filter.SentAfter))
	}
	if filter.SentBefore != nil {
		conds = append(conds, "sent_time < ?")
		args = append(args, fmtTime(*filter.SentBefore))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func shipmentToRowMap(shipment *domain.Shipment) map[string]any {
	return map[string]any{
		"qr_code":             shipment.QRCode,
		"imei":                shipment.IMEI,
		"device_name":         shipment.DeviceName,
		"capacity":            shipment.Capacity,
		"supplier":            shipment.Supplier,
		"request_type":        string(shipment.RequestType),
		"status":              string(shipment.Status),
		"store_name":          shipment.StoreName,
		"sent_time":           fmtTime(shipment.SentTime),
		"received_time":       fmtTimePtr(shipment.ReceivedTime),
		"completed_time":      fmtTimePtr(shipment.CompletedTime),
		"last_updated":        fmtTime(shipment.LastUpdated),
		"created_by":          shipment.CreatedBy,
		"updated_by":          shipment.UpdatedBy,
		"notes":               shipment.Notes,
		"image_url":           shipment.ImageURL,
		"telegram_message_id": shipment.TelegramMessageID,
	}
}

// rowToShipment converts a database row to a domain.Shipment.
func rowToShipment(row *shipmentRow) *domain.Shipment {
	return &domain.Shipment{
		ID:                row.ID,
		QRCode:            row.QRCode,
		IMEI:              row.IMEI,
		DeviceName:        row.DeviceName,
		Capacity:          row.Capacity,
		Supplier:          row.Supplier,
		RequestType:       domain.RequestType(row.RequestType),
		Status:            domain.ShipmentStatus(row.Status),
		StoreName:         row.StoreName,
		SentTime:          parseTime(row.SentTime),
		ReceivedTime:      parseTimePtr(row.ReceivedTime),
		CompletedTime:     parseTimePtr(row.CompletedTime),
		LastUpdated:       parseTime(row.LastUpdated),
		CreatedBy:         row.CreatedBy,
		UpdatedBy:         row.UpdatedBy,
		Notes:             row.Notes,
		ImageURL:          row.ImageURL,
		TelegramMessageID: row.TelegramMessageID,
	}
}

// =============================================================================
// Audit Log Operations
// =============================================================================

// auditRow represents an audit log row, optionally joined with the shipment
// QR code for display.
type auditRow struct {
	ID         int64  `db:"id"`
	ShipmentID int64  `db:"shipment_id"`
	QRCode     string `db:"qr_code"`
	Action     string `db:"action"`
	OldValue   string `db:"old_value"`
	NewValue   string `db:"new_value"`
	ChangedBy  string `db:"changed_by"`
	Timestamp  string `db:"timestamp"`
}

func createAuditEntry(ctx context.Context, exec executor, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_log (shipment_id, action, old_value, new_value, changed_by, timestamp)
		VALUES (:shipment_id, :action, :old_value, :new_value, :changed_by, :timestamp)`

	row := map[string]any{
		"shipment_id": entry.ShipmentID,
		"action":      string(entry.Action),
		"old_value":   entry.OldValue,
		"new_value":   entry.NewValue,
		"changed_by":  entry.ChangedBy,
		"timestamp":   fmtTime(entry.Timestamp),
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("CreateAuditEntry", "audit entry", "", "shipment not found", ErrForeignKey)
		}
		return NewStoreError("CreateAuditEntry", "audit entry", "", err.Error(), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return NewStoreError("CreateAuditEntry", "audit entry", "", "failed to read inserted id", err)
	}
	entry.ID = id

	return nil
}

func listAuditEntries(ctx context.Context, exec executor, shipmentID int64, opts ListOptions) ([]domain.AuditEntry, error) {
	opts = opts.Normalize()
	query := `
		SELECT a.id, a.shipment_id, s.qr_code, a.action, a.old_value, a.new_value, a.changed_by, a.timestamp
		FROM audit_log a
		JOIN shipments s ON s.id = a.shipment_id
		WHERE a.shipment_id = ?
		ORDER BY a.timestamp DESC, a.id DESC
		LIMIT ? OFFSET ?`

	var rows []auditRow
	err := exec.SelectContext(ctx, &rows, query, shipmentID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListAuditEntries", "audit entry", "", err.Error(), err)
	}

	return auditRowsToEntries(rows), nil
}

func listRecentAuditEntries(ctx context.Context, exec executor, opts ListOptions) ([]domain.AuditEntry, error) {
	opts = opts.Normalize()
	query := `
		SELECT a.id, a.shipment_id, s.qr_code, a.action, a.old_value, a.new_value, a.changed_by, a.timestamp
		FROM audit_log a
		JOIN shipments s ON s.id = a.shipment_id
		ORDER BY a.timestamp DESC, a.id DESC
		LIMIT ? OFFSET ?`

	var rows []auditRow
	err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListRecentAuditEntries", "audit entry", "", err.Error(), err)
	}

	return auditRowsToEntries(rows), nil
}

func auditRowsToEntries(rows []auditRow) []domain.AuditEntry {
	entries := make([]domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.AuditEntry{
			ID:         row.ID,
			ShipmentID: row.ShipmentID,
			QRCode:     row.QRCode,
			Action:     domain.AuditAction(row.Action),
			OldValue:   row.OldValue,
			NewValue:   row.NewValue,
			ChangedBy:  row.ChangedBy,
			Timestamp:  parseTime(row.Timestamp),
		})
	}
	return entries
}

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
// Transfer Slip Operations
// =============================================================================

// transferSlipRow represents a transfer slip row in the database.
type transferSlipRow struct {
	ID           int64   `db:"id"`
	TransferCode string  `db:"transfer_code"`
	Status       string  `db:"status"`
	ImageURL     string  `db:"image_url"`
	CreatedBy    string  `db:"created_by"`
	CompletedBy  string  `db:"completed_by"`
	CreatedAt    string  `db:"created_at"`
	CompletedAt  *string `db:"completed_at"`
	Notes        string  `db:"notes"`
}

func createTransferSlip(ctx context.Context, exec executor, slip *domain.TransferSlip) error {
	query := `
		INSERT INTO transfer_slips (
			transfer_code, status, image_url, created_by, completed_by,
			created_at, completed_at, notes
		) VALUES (
			:transfer_code, :status, :image_url, :created_by, :completed_by,
			:created_at, :completed_at, :notes
		)`

	result, err := exec.NamedExecContext(ctx, query, transferSlipToRowMap(slip))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: transfer_slips.transfer_code") {
			return NewStoreError("CreateTransferSlip", "transfer slip", slip.TransferCode, "transfer slip with this code already exists", ErrDuplicateTransferCode)
		}
		return NewStoreError("CreateTransferSlip", "transfer slip", slip.TransferCode, err.Error(), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return NewStoreError("CreateTransferSlip", "transfer slip", slip.TransferCode, "failed to read inserted id", err)
	}
	slip.ID = id

	return nil
}

func getTransferSlip(ctx context.Context, exec executor, id int64) (*domain.TransferSlip, error) {
	query := `SELECT * FROM transfer_slips WHERE id = ?`

	var row transferSlipRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetTransferSlip", "transfer slip", strconv.FormatInt(id, 10), "transfer slip not found", ErrNotFound)
		}
		return nil, NewStoreError("GetTransferSlip", "transfer slip", strconv.FormatInt(id, 10), err.Error(), err)
	}

	return rowToTransferSlip(&row), nil
}

func getTransferSlipByCode(ctx context.Context, exec executor, code string) (*domain.TransferSlip, error) {
	query := `SELECT * FROM transfer_slips WHERE transfer_code = ?`

	var row transferSlipRow
	err := exec.GetContext(ctx, &row, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetTransferSlipByCode", "transfer slip", code, "transfer slip not found", ErrNotFound)
		}
		return nil, NewStoreError("GetTransferSlipByCode", "transfer slip", code, err.Error(), err)
	}

	return rowToTransferSlip(&row), nil
}

func getOpenTransferSlipForUser(ctx context.Context, exec executor, username string) (*domain.TransferSlip, error) {
	query := `
		SELECT * FROM transfer_slips
		WHERE created_by = ? AND status = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	var row transferSlipRow
	err := exec.GetContext(ctx, &row, query, username, string(domain.TransferInTransit))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetOpenTransferSlipForUser", "transfer slip", username, "no open transfer slip", ErrNotFound)
		}
		return nil, NewStoreError("GetOpenTransferSlipForUser", "transfer slip", username, err.Error(), err)
	}

	return rowToTransferSlip(&row), nil
}

func updateTransferSlip(ctx context.Context, exec executor, slip *domain.TransferSlip) error {
	query := `
		UPDATE transfer_slips SET
			transfer_code = :transfer_code,
			status = :status,
			image_url = :image_url,
			completed_by = :completed_by,
			completed_at = :completed_at,
			notes = :notes
		WHERE id = :id`

	row := transferSlipToRowMap(slip)
	row["id"] = slip.ID

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateTransferSlip", "transfer slip", slip.TransferCode, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateTransferSlip", "transfer slip", strconv.FormatInt(slip.ID, 10), "transfer slip not found", ErrNotFound)
	}

	return nil
}

func listTransferSlips(ctx context.Context, exec executor, opts ListOptions) ([]domain.TransferSlip, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM transfer_slips ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	var rows []transferSlipRow
	err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListTransferSlips", "transfer slip", "", err.Error(), err)
	}

	slips := make([]domain.TransferSlip, 0, len(rows))
	for _, row := range rows {
		slips = append(slips, *rowToTransferSlip(&row))
	}

	return slips, nil
}

func addTransferItem(ctx context.Context, exec executor, slipID, shipmentID int64) error {
	query := `
		INSERT INTO transfer_slip_items (transfer_slip_id, shipment_id, added_at)
		VALUES (?, ?, ?)`

	_, err := exec.ExecContext(ctx, query, slipID, shipmentID, fmtTime(time.Now()))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return NewStoreError("AddTransferItem", "transfer item", strconv.FormatInt(shipmentID, 10), "shipment is already on this transfer slip", ErrDuplicateItem)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("AddTransferItem", "transfer item", strconv.FormatInt(shipmentID, 10), "transfer slip or shipment not found", ErrForeignKey)
		}
		return NewStoreError("AddTransferItem", "transfer item", strconv.FormatInt(shipmentID, 10), err.Error(), err)
	}

	return nil
}

func removeTransferItem(ctx context.Context, exec executor, slipID, shipmentID int64) error {
	query := `DELETE FROM transfer_slip_items WHERE transfer_slip_id = ? AND shipment_id = ?`

	result, err := exec.ExecContext(ctx, query, slipID, shipmentID)
	if err != nil {
		return NewStoreError("RemoveTransferItem", "transfer item", strconv.FormatInt(shipmentID, 10), err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("RemoveTransferItem", "transfer item", strconv.FormatInt(shipmentID, 10), "shipment is not on this transfer slip", ErrNotFound)
	}

	return nil
}

func listTransferShipments(ctx context.Context, exec executor, slipID int64) ([]domain.Shipment, error) {
	query := `
		SELECT s.* FROM shipments s
		JOIN transfer_slip_items i ON i.shipment_id = s.id
		WHERE i.transfer_slip_id = ?
		ORDER BY i.added_at, i.id`

	var rows []shipmentRow
	err := exec.SelectContext(ctx, &rows, query, slipID)
	if err != nil {
		return nil, NewStoreError("ListTransferShipments", "shipment", "", err.Error(), err)
	}

	shipments := make([]domain.Shipment, 0, len(rows))
	for _, row := range rows {
		shipments = append(shipments, *rowToShipment(&row))
	}

	return shipments, nil
}

func transferSlipToRowMap(slip *domain.TransferSlip) map[string]any {
	return map[string]any{
		"transfer_code": slip.TransferCode,
		"status":        string(slip.Status),
		"image_url":     slip.ImageURL,
		"created_by":    slip.CreatedBy,
		"completed_by":  slip.CompletedBy,
		"created_at":    fmtTime(slip.CreatedAt),
		"completed_at":  fmtTimePtr(slip.CompletedAt),
		"notes":         slip.Notes,
	}
}

func rowToTransferSlip(row *transferSlipRow) *domain.TransferSlip {
	return &domain.TransferSlip{
		ID:           row.ID,
		TransferCode: row.TransferCode,
		Status:       domain.TransferStatus(row.Status),
		ImageURL:     row.ImageURL,
		CreatedBy:    row.CreatedBy,
		CompletedBy:  row.CompletedBy,
		CreatedAt:    parseTime(row.CreatedAt),
		CompletedAt:  parseTimePtr(row.CompletedAt),
		Notes:        row.Notes,
	}
}

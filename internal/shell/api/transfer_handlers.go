package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lamdp/shiptrack/internal/core/auth"
	"github.com/lamdp/shiptrack/internal/core/domain"
	"github.com/lamdp/shiptrack/internal/shell/store"
)

// =============================================================================
// Transfer Slip Handlers
// =============================================================================

func (h *Handler) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	if !auth.CanManageTransfers(authCtx) {
		h.writeError(w, http.StatusForbidden, "not allowed to manage transfer slips", "forbidden")
		return
	}

	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	slip, err := domain.NewTransferSlip(authCtx.Username, req.TransferCode)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}
	slip.Notes = req.Notes

	err = h.store.WithTx(r.Context(), func(tx store.Store) error {
		if err := tx.CreateTransferSlip(r.Context(), slip); err != nil {
			return err
		}
		for _, shipmentID := range req.ShipmentIDs {
			if err := tx.AddTransferItem(r.Context(), slip.ID, shipmentID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateTransferCode):
			h.writeError(w, http.StatusConflict, "a transfer slip with this code already exists", "conflict")
		case errors.Is(err, store.ErrForeignKey):
			h.writeError(w, http.StatusBadRequest, "unknown shipment id", "validation_error")
		case errors.Is(err, store.ErrDuplicateItem):
			h.writeError(w, http.StatusBadRequest, "duplicate shipment id", "validation_error")
		default:
			h.internalError(w, "failed to create transfer slip", err)
		}
		return
	}

	shipments, err := h.store.ListTransferShipments(r.Context(), slip.ID)
	if err != nil {
		h.internalError(w, "failed to load transfer shipments", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, transferToResponse(slip, shipments))
}

func (h *Handler) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	if !auth.CanManageTransfers(authCtx) {
		h.writeError(w, http.StatusForbidden, "not allowed to view transfer slips", "forbidden")
		return
	}

	opts := parseListOptions(r)
	slips, err := h.store.ListTransferSlips(r.Context(), opts)
	if err != nil {
		h.internalError(w, "failed to list transfer slips", err)
		return
	}

	out := make([]TransferResponse, 0, len(slips))
	for i := range slips {
		out = append(out, transferToResponse(&slips[i], nil))
	}
	opts = opts.Normalize()
	h.writeJSON(w, http.StatusOK, ListTransfersResponse{
		Transfers: out,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	})
}

// handleActiveTransfer returns the caller's most recent open slip, the one
// scanning clients keep appending to.
func (h *Handler) handleActiveTransfer(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	if !auth.CanManageTransfers(authCtx) {
		h.writeError(w, http.StatusForbidden, "not allowed to view transfer slips", "forbidden")
		return
	}

	slip, err := h.store.GetOpenTransferSlipForUser(r.Context(), authCtx.Username)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "no open transfer slip", "not_found")
			return
		}
		h.internalError(w, "failed to load transfer slip", err)
		return
	}
	shipments, err := h.store.ListTransferShipments(r.Context(), slip.ID)
	if err != nil {
		h.internalError(w, "failed to load transfer shipments", err)
		return
	}
	h.writeJSON(w, http.StatusOK, transferToResponse(slip, shipments))
}

func (h *Handler) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	slip, ok := h.loadTransferSlip(w, r)
	if !ok {
		return
	}
	shipments, err := h.store.ListTransferShipments(r.Context(), slip.ID)
	if err != nil {
		h.internalError(w, "failed to load transfer shipments", err)
		return
	}
	h.writeJSON(w, http.StatusOK, transferToResponse(slip, shipments))
}

func (h *Handler) handleAddTransferItem(w http.ResponseWriter, r *http.Request) {
	slip, ok := h.loadTransferSlip(w, r)
	if !ok {
		return
	}
	if !slip.IsOpen() {
		h.writeError(w, http.StatusConflict, "transfer slip is already completed", "conflict")
		return
	}

	var req AddTransferItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	shipmentID := req.ShipmentID
	if shipmentID == 0 && req.QRCode != "" {
		shipment, err := h.store.GetShipmentByQRCode(r.Context(), req.QRCode)
		if err != nil {
			if isNotFound(err) {
				h.writeError(w, http.StatusNotFound, "shipment not found", "not_found")
				return
			}
			h.internalError(w, "failed to look up shipment", err)
			return
		}
		shipmentID = shipment.ID
	}
	if shipmentID == 0 {
		h.writeError(w, http.StatusBadRequest, "shipment_id or qr_code is required", "validation_error")
		return
	}

	if err := h.store.AddTransferItem(r.Context(), slip.ID, shipmentID); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateItem):
			h.writeError(w, http.StatusConflict, "shipment is already on this slip", "conflict")
		case errors.Is(err, store.ErrForeignKey):
			h.writeError(w, http.StatusNotFound, "shipment not found", "not_found")
		default:
			h.internalError(w, "failed to add shipment to slip", err)
		}
		return
	}

	shipments, err := h.store.ListTransferShipments(r.Context(), slip.ID)
	if err != nil {
		h.internalError(w, "failed to load transfer shipments", err)
		return
	}
	h.writeJSON(w, http.StatusOK, transferToResponse(slip, shipments))
}

func (h *Handler) handleRemoveTransferItem(w http.ResponseWriter, r *http.Request) {
	slip, ok := h.loadTransferSlip(w, r)
	if !ok {
		return
	}
	if !slip.IsOpen() {
		h.writeError(w, http.StatusConflict, "transfer slip is already completed", "conflict")
		return
	}

	shipmentID, err := strconv.ParseInt(chi.URLParam(r, "shipmentID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid shipment id", "validation_error")
		return
	}

	if err := h.store.RemoveTransferItem(r.Context(), slip.ID, shipmentID); err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "shipment is not on this slip", "not_found")
			return
		}
		h.internalError(w, "failed to remove shipment from slip", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCompleteTransfer closes the slip, moves every member shipment to the
// store-bound status and queues the group notification. The request may be a
// JSON body with notes or a multipart form with an optional proof photo.
func (h *Handler) handleCompleteTransfer(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	slip, ok := h.loadTransferSlip(w, r)
	if !ok {
		return
	}
	if !slip.IsOpen() {
		h.writeError(w, http.StatusConflict, "transfer slip is already completed", "conflict")
		return
	}

	notes, imageURL, targetStatus, ok := h.parseCompleteRequest(w, r, slip)
	if !ok {
		return
	}

	shipments, err := h.store.ListTransferShipments(r.Context(), slip.ID)
	if err != nil {
		h.internalError(w, "failed to load transfer shipments", err)
		return
	}
	if len(shipments) == 0 {
		h.writeError(w, http.StatusBadRequest, domain.ErrTransferEmpty.Error(), "validation_error")
		return
	}

	if err := slip.Complete(authCtx.Username, imageURL, notes); err != nil {
		h.writeError(w, http.StatusConflict, err.Error(), "conflict")
		return
	}

	err = h.store.WithTx(r.Context(), func(tx store.Store) error {
		if err := tx.UpdateTransferSlip(r.Context(), slip); err != nil {
			return err
		}
		for i := range shipments {
			s := &shipments[i]
			oldStatus := s.Status
			if err := s.SetStatus(targetStatus, authCtx.Username); err != nil {
				return err
			}
			if err := tx.UpdateShipment(r.Context(), s); err != nil {
				return err
			}
			entry := &domain.AuditEntry{
				ShipmentID: s.ID,
				Action:     domain.AuditStatusChanged,
				OldValue:   string(oldStatus),
				NewValue:   string(s.Status),
				ChangedBy:  authCtx.Username,
				Timestamp:  time.Now(),
			}
			if err := tx.CreateAuditEntry(r.Context(), entry); err != nil {
				return err
			}
		}
		return tx.CreateNotification(r.Context(), domain.NewNotification(domain.NotifyTransferCompleted, slip.ID))
	})
	if err != nil {
		h.internalError(w, "failed to complete transfer slip", err)
		return
	}

	h.writeJSON(w, http.StatusOK, transferToResponse(slip, shipments))
}

// parseCompleteRequest extracts the notes and destination status and uploads
// the optional proof photo from a complete-transfer request.
func (h *Handler) parseCompleteRequest(w http.ResponseWriter, r *http.Request, slip *domain.TransferSlip) (notes, imageURL string, targetStatus domain.ShipmentStatus, ok bool) {
	rawStatus := ""
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		var req CompleteTransferRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
				return "", "", "", false
			}
		}
		notes = req.Notes
		rawStatus = req.ShipmentStatus
	} else {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid multipart form", "validation_error")
			return "", "", "", false
		}
		notes = r.FormValue("notes")
		rawStatus = r.FormValue("shipment_status")

		if headers := r.MultipartForm.File["photo"]; len(headers) > 0 {
			content, err := readMultipartFile(headers[0])
			if err != nil {
				h.writeError(w, http.StatusBadRequest, "failed to read uploaded file", "validation_error")
				return "", "", "", false
			}
			name := fmt.Sprintf("%s_hoanthanh%s", domain.SanitizeFileToken(slip.TransferCode), filepath.Ext(headers[0].Filename))
			imageURL, err = h.transferImages.Upload(r.Context(), name, bytes.NewReader(content))
			if err != nil {
				h.internalError(w, "failed to upload proof photo", err)
				return "", "", "", false
			}
		}
	}

	targetStatus = domain.StatusToStore
	if rawStatus != "" {
		targetStatus = domain.ShipmentStatus(rawStatus)
		if !targetStatus.IsValid() {
			h.writeError(w, http.StatusBadRequest, domain.ErrStatusInvalid.Error(), "validation_error")
			return "", "", "", false
		}
	}
	return notes, imageURL, targetStatus, true
}

// loadTransferSlip parses the route id, loads the slip and checks transfer
// access. It writes the error response itself and reports success.
func (h *Handler) loadTransferSlip(w http.ResponseWriter, r *http.Request) (*domain.TransferSlip, bool) {
	authCtx := auth.FromContext(r.Context())
	if !auth.CanViewTransfer(authCtx) {
		h.writeError(w, http.StatusForbidden, "not allowed to view transfer slips", "forbidden")
		return nil, false
	}

	id, ok := parseID(w, r, h)
	if !ok {
		return nil, false
	}
	slip, err := h.store.GetTransferSlip(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "transfer slip not found", "not_found")
			return nil, false
		}
		h.internalError(w, "failed to load transfer slip", err)
		return nil, false
	}
	return slip, true
}

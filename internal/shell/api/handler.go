// Package api provides HTTP handlers for the shipment tracking API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/lamdp/shiptrack/internal/core/auth"
	"github.com/lamdp/shiptrack/internal/core/domain"
	"github.com/lamdp/shiptrack/internal/core/label"
	"github.com/lamdp/shiptrack/internal/core/qr"
	apimw "github.com/lamdp/shiptrack/internal/shell/api/middleware"
	"github.com/lamdp/shiptrack/internal/shell/drive"
	"github.com/lamdp/shiptrack/internal/shell/store"
)

// maxUploadBytes caps multipart request bodies. Phone photos run a few MB
// each and uploads carry at most a handful of them.
const maxUploadBytes = 32 << 20

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store          store.Store
	shipmentImages drive.Uploader
	transferImages drive.Uploader
	auth           *apimw.AuthMiddleware
	logger         *slog.Logger
	openapiJSON    []byte
}

// NewHandler creates a new API handler. The two uploaders target the photo
// folders for shipments and transfer slips; pass drive.NewNoOpUploader()
// to run without Drive.
func NewHandler(s store.Store, shipmentImages, transferImages drive.Uploader, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if shipmentImages == nil {
		shipmentImages = drive.NewNoOpUploader()
	}
	if transferImages == nil {
		transferImages = drive.NewNoOpUploader()
	}
	return &Handler{
		store:          s,
		shipmentImages: shipmentImages,
		transferImages: transferImages,
		auth: apimw.NewAuthMiddleware(apimw.AuthConfig{
			Sessions: s,
			Logger:   l,
		}),
		logger:      l,
		openapiJSON: buildOpenAPIDocument(l),
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
	r.Get("/openapi.json", h.handleOpenAPI)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.jsonContentType)
		r.Use(h.auth.Handler)

		r.Post("/auth/login", h.handleLogin)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAuth(h.logger))

			r.Post("/auth/logout", h.handleLogout)
			r.Get("/auth/me", h.handleMe)

			r.Route("/shipments", func(r chi.Router) {
				r.Post("/", h.handleCreateShipment)
				r.Get("/", h.handleListShipments)
				r.Get("/stats", h.handleStats)
				r.Get("/qr/{code}", h.handleGetShipmentByQR)
				r.Get("/{id}", h.handleGetShipment)
				r.Put("/{id}", h.handleUpdateShipment)
				r.Delete("/{id}", h.handleDeleteShipment)
				r.Post("/{id}/status", h.handleChangeStatus)
				r.Patch("/{id}/status", h.handleChangeStatus)
				r.Post("/{id}/images", h.handleUploadImages)
				r.Get("/{id}/label", h.handleLabel)
				r.Get("/{id}/audit", h.handleShipmentAudit)
			})

			r.Get("/stats", h.handleStats)
			r.Post("/scan", h.handleScan)

			// Catalog reads are open to every authenticated account,
			// the registration and transfer forms need the names.
			// Writes are admin only.
			r.Get("/suppliers", h.handleListSuppliers)
			r.Get("/stores", h.handleListStores)

			r.Route("/transfers", func(r chi.Router) {
				r.Post("/", h.handleCreateTransfer)
				r.Get("/", h.handleListTransfers)
				r.Get("/active", h.handleActiveTransfer)
				r.Get("/{id}", h.handleGetTransfer)
				r.Post("/{id}/items", h.handleAddTransferItem)
				r.Delete("/{id}/items/{shipmentID}", h.handleRemoveTransferItem)
				r.Post("/{id}/complete", h.handleCompleteTransfer)
			})
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAdmin(h.logger))

			r.Post("/suppliers", h.handleCreateSupplier)
			r.Put("/suppliers/{id}", h.handleUpdateSupplier)
			r.Delete("/suppliers/{id}", h.handleDeactivateSupplier)

			r.Post("/stores", h.handleCreateStore)
			r.Put("/stores/{id}", h.handleUpdateStore)
			r.Delete("/stores/{id}", h.handleDeleteStore)

			r.Route("/users", func(r chi.Router) {
				r.Post("/", h.handleCreateUser)
				r.Get("/", h.handleListUsers)
				r.Put("/{username}", h.handleUpdateUser)
				r.Delete("/{username}", h.handleDeleteUser)
			})

			r.Get("/audit", h.handleRecentAudit)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	checks := make(map[string]string)

	if _, err := h.store.CountShipments(r.Context(), store.ShipmentFilter{}); err != nil {
		checks["database"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["database"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

func (h *Handler) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if len(h.openapiJSON) == 0 {
		h.writeError(w, http.StatusNotFound, "openapi document not available", "not_found")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(h.openapiJSON)
}

// =============================================================================
// Auth Handlers
// =============================================================================

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if err := domain.ValidateCredentialsInput(req.Username, req.Password); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}

	user, err := h.store.GetUser(r.Context(), req.Username)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusUnauthorized, "invalid username or password", "unauthorized")
			return
		}
		h.internalError(w, "failed to load user", err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.writeError(w, http.StatusUnauthorized, "invalid username or password", "unauthorized")
		return
	}

	session := domain.NewSession(user.Username, domain.DefaultSessionTTL)
	if err := h.store.CreateSession(r.Context(), session); err != nil {
		h.internalError(w, "failed to persist session", err)
		return
	}

	h.writeJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      userToResponse(user),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		h.writeError(w, http.StatusBadRequest, "missing bearer token", "validation_error")
		return
	}
	if err := h.store.DeleteSession(r.Context(), token); err != nil && !isNotFound(err) {
		h.internalError(w, "failed to delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	h.writeJSON(w, http.StatusOK, UserResponse{
		Username:  authCtx.Username,
		IsAdmin:   authCtx.IsAdmin,
		IsStore:   authCtx.IsStore,
		StoreName: authCtx.StoreName,
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// =============================================================================
// Shipment Handlers
// =============================================================================

func (h *Handler) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	if !auth.CanCreateShipment(authCtx) {
		h.writeError(w, http.StatusForbidden, "not allowed to register shipments", "forbidden")
		return
	}

	var req CreateShipmentRequest
	var imageHeaders []*multipart.FileHeader
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid multipart form", "validation_error")
			return
		}
		req = CreateShipmentRequest{
			QRCode:      r.FormValue("qr_code"),
			IMEI:        r.FormValue("imei"),
			DeviceName:  r.FormValue("device_name"),
			Condition:   r.FormValue("condition"),
			Supplier:    r.FormValue("supplier"),
			RequestType: r.FormValue("request_type"),
			StoreName:   r.FormValue("store_name"),
			Notes:       r.FormValue("notes"),
		}
		imageHeaders = r.MultipartForm.File["images"]
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	shipment, err := domain.NewShipment(
		req.QRCode, req.IMEI, req.DeviceName, req.Condition, req.Supplier,
		domain.RequestType(req.RequestType), authCtx.Username,
	)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}
	shipment.Notes = req.Notes
	shipment.StoreName = req.StoreName
	// Store accounts register stock for their own store only
	if authCtx.IsStore {
		shipment.StoreName = authCtx.StoreName
	}

	// Photos attached to the registration form go to Drive before the row
	// is written, so the insert already carries the links.
	if len(imageHeaders) > 0 {
		files, err := shipmentImageFiles(shipment, imageHeaders)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "failed to read uploaded file", "validation_error")
			return
		}
		urls, err := drive.UploadAll(r.Context(), h.shipmentImages, files)
		if err != nil {
			h.internalError(w, "failed to upload images", err)
			return
		}
		shipment.AppendImageURLs(urls)
	}

	err = h.store.WithTx(r.Context(), func(tx store.Store) error {
		if err := tx.CreateShipment(r.Context(), shipment); err != nil {
			return err
		}
		entry := &domain.AuditEntry{
			ShipmentID: shipment.ID,
			Action:     domain.AuditCreated,
			NewValue:   string(shipment.Status),
			ChangedBy:  authCtx.Username,
			Timestamp:  time.Now(),
		}
		if err := tx.CreateAuditEntry(r.Context(), entry); err != nil {
			return err
		}
		return tx.CreateNotification(r.Context(), domain.NewNotification(domain.NotifyShipmentReceived, shipment.ID))
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateQRCode) {
			h.writeError(w, http.StatusConflict, "a shipment with this QR code already exists", "conflict")
			return
		}
		h.internalError(w, "failed to create shipment", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, shipmentToResponse(shipment))
}

func (h *Handler) handleListShipments(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	q := r.URL.Query()

	filter := store.ShipmentFilter{
		Status:      domain.ShipmentStatus(q.Get("status")),
		StoreName:   q.Get("store"),
		Supplier:    q.Get("supplier"),
		RequestType: domain.RequestType(q.Get("request_type")),
		Search:      q.Get("search"),
		ActiveOnly:  q.Get("active") == "true",
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp", "validation_error")
			return
		}
		filter.SentAfter = &since
	}
	if scope := auth.ShipmentStoreScope(authCtx); scope != "" {
		filter.StoreName = scope
	}

	opts := parseListOptions(r)
	shipments, err := h.store.ListShipments(r.Context(), filter, opts)
	if err != nil {
		h.internalError(w, "failed to list shipments", err)
		return
	}
	total, err := h.store.CountShipments(r.Context(), filter)
	if err != nil {
		h.internalError(w, "failed to count shipments", err)
		return
	}

	opts = opts.Normalize()
	h.writeJSON(w, http.StatusOK, ListShipmentsResponse{
		Shipments: shipmentsToResponses(shipments),
		Total:     total,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	})
}

func (h *Handler) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	shipment, ok := h.loadShipment(w, r, authView)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, shipmentToResponse(shipment))
}

func (h *Handler) handleGetShipmentByQR(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	code := chi.URLParam(r, "code")

	shipment, err := h.store.GetShipmentByQRCode(r.Context(), code)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "shipment not found", "not_found")
			return
		}
		h.internalError(w, "failed to load shipment", err)
		return
	}
	if !auth.CanViewShipment(authCtx, *shipment) {
		// Hide the shipment's existence from other stores
		h.writeError(w, http.StatusNotFound, "shipment not found", "not_found")
		return
	}
	h.writeJSON(w, http.StatusOK, shipmentToResponse(shipment))
}

func (h *Handler) handleUpdateShipment(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	shipment, ok := h.loadShipment(w, r, authModify)
	if !ok {
		return
	}

	var req UpdateShipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	var changed []string
	apply := func(field string, dst *string, src *string) {
		if src != nil && *src != *dst {
			*dst = *src
			changed = append(changed, field)
		}
	}
	apply("imei", &shipment.IMEI, req.IMEI)
	apply("device_name", &shipment.DeviceName, req.DeviceName)
	apply("condition", &shipment.Capacity, req.Condition)
	apply("supplier", &shipment.Supplier, req.Supplier)
	apply("notes", &shipment.Notes, req.Notes)
	if req.RequestType != nil {
		rt := domain.RequestType(*req.RequestType)
		if !rt.IsValid() {
			h.writeError(w, http.StatusBadRequest, domain.ErrRequestTypeInvalid.Error(), "validation_error")
			return
		}
		if rt != shipment.RequestType {
			shipment.RequestType = rt
			changed = append(changed, "request_type")
		}
	}
	if req.StoreName != nil && !authCtx.IsStore && *req.StoreName != shipment.StoreName {
		shipment.StoreName = *req.StoreName
		changed = append(changed, "store_name")
	}

	if len(changed) == 0 {
		h.writeError(w, http.StatusBadRequest, domain.ErrNoFieldsToUpdate.Error(), "validation_error")
		return
	}

	shipment.UpdatedBy = authCtx.Username
	shipment.LastUpdated = time.Now()

	err := h.store.WithTx(r.Context(), func(tx store.Store) error {
		if err := tx.UpdateShipment(r.Context(), shipment); err != nil {
			return err
		}
		return tx.CreateAuditEntry(r.Context(), &domain.AuditEntry{
			ShipmentID: shipment.ID,
			Action:     domain.AuditUpdated,
			NewValue:   strings.Join(changed, ", "),
			ChangedBy:  authCtx.Username,
			Timestamp:  time.Now(),
		})
	})
	if err != nil {
		h.internalError(w, "failed to update shipment", err)
		return
	}

	h.writeJSON(w, http.StatusOK, shipmentToResponse(shipment))
}

func (h *Handler) handleDeleteShipment(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	if !authCtx.IsAdmin {
		h.writeError(w, http.StatusForbidden, "admin access required", "forbidden")
		return
	}
	id, ok := parseID(w, r, h)
	if !ok {
		return
	}
	if err := h.store.DeleteShipment(r.Context(), id); err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "shipment not found", "not_found")
			return
		}
		h.internalError(w, "failed to delete shipment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	shipment, ok := h.loadShipment(w, r, authModify)
	if !ok {
		return
	}

	var req StatusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	oldStatus := shipment.Status
	if err := shipment.SetStatus(domain.ShipmentStatus(req.Status), authCtx.Username); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}
	if req.Notes != "" {
		shipment.Notes = req.Notes
	}

	err := h.store.WithTx(r.Context(), func(tx store.Store) error {
		if err := tx.UpdateShipment(r.Context(), shipment); err != nil {
			return err
		}
		if err := tx.CreateAuditEntry(r.Context(), &domain.AuditEntry{
			ShipmentID: shipment.ID,
			Action:     domain.AuditStatusChanged,
			OldValue:   string(oldStatus),
			NewValue:   string(shipment.Status),
			ChangedBy:  authCtx.Username,
			Timestamp:  time.Now(),
		}); err != nil {
			return err
		}
		// Moving back to the received state re-announces the shipment.
		if shipment.Status == domain.StatusReceived {
			return tx.CreateNotification(r.Context(), domain.NewNotification(domain.NotifyShipmentReceived, shipment.ID))
		}
		return nil
	})
	if err != nil {
		h.internalError(w, "failed to change status", err)
		return
	}

	h.writeJSON(w, http.StatusOK, shipmentToResponse(shipment))
}

func (h *Handler) handleUploadImages(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	shipment, ok := h.loadShipment(w, r, authModify)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form", "validation_error")
		return
	}
	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		h.writeError(w, http.StatusBadRequest, "no images provided", "validation_error")
		return
	}

	files, err := shipmentImageFiles(shipment, headers)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read uploaded file", "validation_error")
		return
	}

	urls, err := drive.UploadAll(r.Context(), h.shipmentImages, files)
	if err != nil {
		h.internalError(w, "failed to upload images", err)
		return
	}

	if len(urls) > 0 {
		shipment.AppendImageURLs(urls)
		shipment.UpdatedBy = authCtx.Username
		shipment.LastUpdated = time.Now()

		err = h.store.WithTx(r.Context(), func(tx store.Store) error {
			if err := tx.UpdateShipment(r.Context(), shipment); err != nil {
				return err
			}
			return tx.CreateNotification(r.Context(), domain.NewNotification(domain.NotifyShipmentImages, shipment.ID))
		})
		if err != nil {
			h.internalError(w, "failed to attach images", err)
			return
		}
	}

	h.writeJSON(w, http.StatusOK, UploadImagesResponse{
		Uploaded:  len(urls),
		ImageURLs: shipment.ImageURLs(),
	})
}

func (h *Handler) handleLabel(w http.ResponseWriter, r *http.Request) {
	shipment, ok := h.loadShipment(w, r, authView)
	if !ok {
		return
	}

	opts := label.Options{}
	if v := r.URL.Query().Get("width_mm"); v != "" {
		opts.WidthMM, _ = strconv.ParseFloat(v, 64)
	}
	if v := r.URL.Query().Get("height_mm"); v != "" {
		opts.HeightMM, _ = strconv.ParseFloat(v, 64)
	}

	l, err := label.Render(shipment.QRCode, shipment.DeviceName, shipment.IMEI, shipment.Capacity, opts)
	if err != nil {
		h.internalError(w, "failed to render label", err)
		return
	}
	h.writeJSON(w, http.StatusOK, l)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	filter := store.ShipmentFilter{}
	if scope := auth.ShipmentStoreScope(authCtx); scope != "" {
		filter.StoreName = scope
	}

	byStatus, err := h.store.CountShipmentsByStatus(r.Context(), filter)
	if err != nil {
		h.internalError(w, "failed to count shipments", err)
		return
	}
	byRequestType, err := h.store.CountShipmentsByRequestType(r.Context(), filter)
	if err != nil {
		h.internalError(w, "failed to count shipments", err)
		return
	}

	resp := StatsResponse{
		ByStatus:      make(map[string]int, len(byStatus)),
		ByRequestType: make(map[string]int, len(byRequestType)),
	}
	for status, n := range byStatus {
		resp.ByStatus[string(status)] = n
		resp.Total += n
		if status.IsActive() {
			resp.Active += n
		}
	}
	for rt, n := range byRequestType {
		resp.ByRequestType[string(rt)] = n
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleShipmentAudit(w http.ResponseWriter, r *http.Request) {
	shipment, ok := h.loadShipment(w, r, authView)
	if !ok {
		return
	}
	opts := parseListOptions(r)
	entries, err := h.store.ListAuditEntries(r.Context(), shipment.ID, opts)
	if err != nil {
		h.internalError(w, "failed to list audit entries", err)
		return
	}
	opts = opts.Normalize()
	h.writeJSON(w, http.StatusOK, ListAuditResponse{
		Entries: auditToResponses(entries),
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// =============================================================================
// Scan Handler
// =============================================================================

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form", "validation_error")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "no image provided", "validation_error")
		return
	}
	defer file.Close()

	raw, err := qr.DecodeImage(file)
	if err != nil {
		if errors.Is(err, qr.ErrNoQRCode) {
			h.writeError(w, http.StatusUnprocessableEntity, "no QR code found in image", "no_qr_code")
			return
		}
		h.writeError(w, http.StatusBadRequest, "failed to decode image", "validation_error")
		return
	}
	payload, ok := qr.ParsePayload(raw)
	if !ok {
		h.writeError(w, http.StatusUnprocessableEntity, "QR code is empty", "no_qr_code")
		return
	}

	resp := ScanResponse{
		QRCode:     payload.QRCode,
		IMEI:       payload.IMEI,
		DeviceName: payload.DeviceName,
		Condition:  payload.Capacity,
		Raw:        raw,
	}

	existing, err := h.store.GetShipmentByQRCode(r.Context(), payload.QRCode)
	if err == nil && auth.CanViewShipment(authCtx, *existing) {
		s := shipmentToResponse(existing)
		resp.Existing = &s
	} else if err != nil && !isNotFound(err) {
		h.internalError(w, "failed to look up shipment", err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Helpers
// =============================================================================

type authCheck int

const (
	authView authCheck = iota
	authModify
)

// loadShipment parses the route id, loads the shipment and runs the access
// check. It writes the error response itself and reports success.
func (h *Handler) loadShipment(w http.ResponseWriter, r *http.Request, check authCheck) (*domain.Shipment, bool) {
	authCtx := auth.FromContext(r.Context())
	id, ok := parseID(w, r, h)
	if !ok {
		return nil, false
	}

	shipment, err := h.store.GetShipment(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "shipment not found", "not_found")
			return nil, false
		}
		h.internalError(w, "failed to load shipment", err)
		return nil, false
	}

	allowed := auth.CanViewShipment(authCtx, *shipment)
	if check == authModify {
		allowed = auth.CanModifyShipment(authCtx, *shipment)
	}
	if !allowed {
		// Hide the shipment's existence from other stores
		h.writeError(w, http.StatusNotFound, "shipment not found", "not_found")
		return nil, false
	}
	return shipment, true
}

func parseID(w http.ResponseWriter, r *http.Request, h *Handler) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid id", "validation_error")
		return 0, false
	}
	return id, true
}

func parseListOptions(r *http.Request) store.ListOptions {
	opts := store.ListOptions{}
	if v := r.URL.Query().Get("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		opts.Offset, _ = strconv.Atoi(v)
	}
	return opts
}

// shipmentImageFiles names and reads uploaded photos. Filenames carry the QR
// code and current status so the Drive folder stays searchable.
func shipmentImageFiles(shipment *domain.Shipment, headers []*multipart.FileHeader) ([]drive.File, error) {
	qrToken := domain.SanitizeFileToken(shipment.QRCode)
	statusToken := domain.SanitizeFileToken(string(shipment.Status))
	files := make([]drive.File, 0, len(headers))
	for i, fh := range headers {
		content, err := readMultipartFile(fh)
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("%s_%s_%d%s", qrToken, statusToken, i+1, filepath.Ext(fh.Filename))
		files = append(files, drive.File{Name: name, Content: content})
	}
	return files, nil
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadBytes))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func (h *Handler) internalError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, "error", err)
	h.writeError(w, http.StatusInternalServerError, message, "internal_error")
}

// isNotFound checks if an error is a not found error.
func isNotFound(err error) bool {
	var storeErr *store.StoreError
	if errors.As(err, &storeErr) {
		return errors.Is(storeErr.Unwrap(), store.ErrNotFound)
	}
	return errors.Is(err, store.ErrNotFound)
}

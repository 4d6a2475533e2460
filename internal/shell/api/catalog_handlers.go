package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/lamdp/shiptrack/internal/core/auth"
	"github.com/lamdp/shiptrack/internal/core/domain"
	"github.com/lamdp/shiptrack/internal/shell/store"
)

// =============================================================================
// Supplier Handlers
// =============================================================================

func (h *Handler) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") != "false"
	suppliers, err := h.store.ListSuppliers(r.Context(), activeOnly)
	if err != nil {
		h.internalError(w, "failed to list suppliers", err)
		return
	}
	out := make([]SupplierResponse, 0, len(suppliers))
	for i := range suppliers {
		out = append(out, supplierToResponse(&suppliers[i]))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req SupplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	supplier, err := domain.NewSupplier(req.Name, req.Contact, req.Address)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}
	if err := h.store.CreateSupplier(r.Context(), supplier); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			h.writeError(w, http.StatusConflict, "a supplier with this name already exists", "conflict")
			return
		}
		h.internalError(w, "failed to create supplier", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, supplierToResponse(supplier))
}

func (h *Handler) handleUpdateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, h)
	if !ok {
		return
	}
	supplier, err := h.store.GetSupplier(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "supplier not found", "not_found")
			return
		}
		h.internalError(w, "failed to load supplier", err)
		return
	}

	var req SupplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if req.Name != "" {
		supplier.Name = req.Name
	}
	supplier.Contact = req.Contact
	supplier.Address = req.Address

	if err := h.store.UpdateSupplier(r.Context(), supplier); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			h.writeError(w, http.StatusConflict, "a supplier with this name already exists", "conflict")
			return
		}
		h.internalError(w, "failed to update supplier", err)
		return
	}
	h.writeJSON(w, http.StatusOK, supplierToResponse(supplier))
}

// handleDeactivateSupplier soft-deletes a supplier so historical shipments
// keep a valid reference.
func (h *Handler) handleDeactivateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, h)
	if !ok {
		return
	}
	supplier, err := h.store.GetSupplier(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "supplier not found", "not_found")
			return
		}
		h.internalError(w, "failed to load supplier", err)
		return
	}

	supplier.IsActive = false
	if err := h.store.UpdateSupplier(r.Context(), supplier); err != nil {
		h.internalError(w, "failed to deactivate supplier", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Retail Store Handlers
// =============================================================================

func (h *Handler) handleListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.store.ListRetailStores(r.Context())
	if err != nil {
		h.internalError(w, "failed to list stores", err)
		return
	}
	out := make([]StoreResponse, 0, len(stores))
	for i := range stores {
		out = append(out, storeToResponse(&stores[i]))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req StoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	rs, err := domain.NewStore(req.Name, req.Address, req.Note)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}
	if err := h.store.CreateRetailStore(r.Context(), rs); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			h.writeError(w, http.StatusConflict, "a store with this name already exists", "conflict")
			return
		}
		h.internalError(w, "failed to create store", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, storeToResponse(rs))
}

func (h *Handler) handleUpdateStore(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, h)
	if !ok {
		return
	}
	rs, err := h.store.GetRetailStore(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "store not found", "not_found")
			return
		}
		h.internalError(w, "failed to load store", err)
		return
	}

	var req StoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if req.Name != "" {
		rs.Name = req.Name
	}
	rs.Address = req.Address
	rs.Note = req.Note

	if err := h.store.UpdateRetailStore(r.Context(), rs); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			h.writeError(w, http.StatusConflict, "a store with this name already exists", "conflict")
			return
		}
		h.internalError(w, "failed to update store", err)
		return
	}
	h.writeJSON(w, http.StatusOK, storeToResponse(rs))
}

func (h *Handler) handleDeleteStore(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, h)
	if !ok {
		return
	}
	if err := h.store.DeleteRetailStore(r.Context(), id); err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "store not found", "not_found")
			return
		}
		h.internalError(w, "failed to delete store", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// User Handlers
// =============================================================================

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if err := domain.ValidateCredentialsInput(req.Username, req.Password); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalError(w, "failed to hash password", err)
		return
	}
	user := &domain.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		IsAdmin:      req.IsAdmin,
		IsStore:      req.IsStore,
		StoreName:    req.StoreName,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			h.writeError(w, http.StatusConflict, "username already taken", "conflict")
			return
		}
		h.internalError(w, "failed to create user", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, userToResponse(user))
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.internalError(w, "failed to list users", err)
		return
	}
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, userToResponse(&users[i]))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	user, err := h.store.GetUser(r.Context(), username)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "user not found", "not_found")
			return
		}
		h.internalError(w, "failed to load user", err)
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			h.internalError(w, "failed to hash password", err)
			return
		}
		user.PasswordHash = string(hash)
	}
	if req.IsAdmin != nil {
		user.IsAdmin = *req.IsAdmin
	}
	if req.IsStore != nil {
		user.IsStore = *req.IsStore
	}
	if req.StoreName != nil {
		user.StoreName = *req.StoreName
	}

	if err := h.store.UpdateUser(r.Context(), user); err != nil {
		h.internalError(w, "failed to update user", err)
		return
	}
	h.writeJSON(w, http.StatusOK, userToResponse(user))
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	username := chi.URLParam(r, "username")
	if username == authCtx.Username {
		h.writeError(w, http.StatusBadRequest, "cannot delete your own account", "validation_error")
		return
	}
	if err := h.store.DeleteUser(r.Context(), username); err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "user not found", "not_found")
			return
		}
		h.internalError(w, "failed to delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Audit Handlers
// =============================================================================

func (h *Handler) handleRecentAudit(w http.ResponseWriter, r *http.Request) {
	opts := parseListOptions(r)
	entries, err := h.store.ListRecentAuditEntries(r.Context(), opts)
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

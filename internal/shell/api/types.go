package api

import (
	"time"

	"github.com/lamdp/shiptrack/internal/core/domain"
)

// =============================================================================
// Auth Types
// =============================================================================

// LoginRequest is the request body for logging in.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the response for a successful login.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// =============================================================================
// Shipment Types
// =============================================================================

// CreateShipmentRequest is the request body for creating a shipment.
// Condition carries the fault/condition description.
type CreateShipmentRequest struct {
	QRCode      string `json:"qr_code"`
	IMEI        string `json:"imei"`
	DeviceName  string `json:"device_name"`
	Condition   string `json:"condition"`
	Supplier    string `json:"supplier"`
	RequestType string `json:"request_type"`
	StoreName   string `json:"store_name,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// UpdateShipmentRequest is the request body for editing shipment fields.
// Nil pointers leave the field unchanged.
type UpdateShipmentRequest struct {
	IMEI        *string `json:"imei,omitempty"`
	DeviceName  *string `json:"device_name,omitempty"`
	Condition   *string `json:"condition,omitempty"`
	Supplier    *string `json:"supplier,omitempty"`
	RequestType *string `json:"request_type,omitempty"`
	StoreName   *string `json:"store_name,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// StatusChangeRequest is the request body for a status transition. Notes,
// when set, replaces the shipment notes as part of the same change.
type StatusChangeRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

// ShipmentResponse is the response for shipment operations.
type ShipmentResponse struct {
	ID                int64      `json:"id"`
	QRCode            string     `json:"qr_code"`
	IMEI              string     `json:"imei"`
	DeviceName        string     `json:"device_name"`
	Condition         string     `json:"condition"`
	Supplier          string     `json:"supplier"`
	RequestType       string     `json:"request_type"`
	Status            string     `json:"status"`
	StoreName         string     `json:"store_name,omitempty"`
	SentTime          time.Time  `json:"sent_time"`
	ReceivedTime      *time.Time `json:"received_time,omitempty"`
	CompletedTime     *time.Time `json:"completed_time,omitempty"`
	LastUpdated       time.Time  `json:"last_updated"`
	CreatedBy         string     `json:"created_by"`
	UpdatedBy         string     `json:"updated_by,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	ImageURLs         []string   `json:"image_urls,omitempty"`
	TelegramMessageID *int64     `json:"telegram_message_id,omitempty"`
}

// ListShipmentsResponse is the response for listing shipments.
type ListShipmentsResponse struct {
	Shipments []ShipmentResponse `json:"shipments"`
	Total     int                `json:"total"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// UploadImagesResponse is the response after attaching photos to a shipment.
type UploadImagesResponse struct {
	Uploaded  int      `json:"uploaded"`
	ImageURLs []string `json:"image_urls"`
}

// StatsResponse is the dashboard counters response.
type StatsResponse struct {
	Total         int            `json:"total"`
	Active        int            `json:"active"`
	ByStatus      map[string]int `json:"by_status"`
	ByRequestType map[string]int `json:"by_request_type"`
}

// =============================================================================
// Scan Types
// =============================================================================

// ScanResponse is the decoded content of a scanned QR label. Existing is set
// when a shipment with the decoded QR code is already registered.
type ScanResponse struct {
	QRCode     string            `json:"qr_code"`
	IMEI       string            `json:"imei"`
	DeviceName string            `json:"device_name"`
	Condition  string            `json:"condition"`
	Raw        string            `json:"raw"`
	Existing   *ShipmentResponse `json:"existing,omitempty"`
}

// =============================================================================
// Catalog Types
// =============================================================================

// SupplierRequest is the request body for creating or updating a supplier.
type SupplierRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
	Address string `json:"address,omitempty"`
}

// SupplierResponse is the response for supplier operations.
type SupplierResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Contact  string `json:"contact,omitempty"`
	Address  string `json:"address,omitempty"`
	IsActive bool   `json:"is_active"`
}

// StoreRequest is the request body for creating or updating a retail store.
type StoreRequest struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Note    string `json:"note,omitempty"`
}

// StoreResponse is the response for retail store operations.
type StoreResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// =============================================================================
// User Types
// =============================================================================

// CreateUserRequest is the request body for creating an account.
type CreateUserRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	IsAdmin   bool   `json:"is_admin,omitempty"`
	IsStore   bool   `json:"is_store,omitempty"`
	StoreName string `json:"store_name,omitempty"`
}

// UpdateUserRequest is the request body for editing an account. A non-empty
// password replaces the stored hash.
type UpdateUserRequest struct {
	Password  string `json:"password,omitempty"`
	IsAdmin   *bool  `json:"is_admin,omitempty"`
	IsStore   *bool  `json:"is_store,omitempty"`
	StoreName *string `json:"store_name,omitempty"`
}

// UserResponse is the response for user operations. It never carries the
// password hash.
type UserResponse struct {
	Username  string `json:"username"`
	IsAdmin   bool   `json:"is_admin"`
	IsStore   bool   `json:"is_store"`
	StoreName string `json:"store_name,omitempty"`
}

// =============================================================================
// Transfer Types
// =============================================================================

// CreateTransferRequest is the request body for opening a transfer slip.
// ShipmentIDs may seed the slip with an initial batch.
type CreateTransferRequest struct {
	TransferCode string  `json:"transfer_code,omitempty"`
	ShipmentIDs  []int64 `json:"shipment_ids,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

// AddTransferItemRequest is the request body for adding a shipment to a slip.
// Either the shipment ID or its QR code identifies the shipment.
type AddTransferItemRequest struct {
	ShipmentID int64  `json:"shipment_id,omitempty"`
	QRCode     string `json:"qr_code,omitempty"`
}

// CompleteTransferRequest is the request body for completing a slip.
// ShipmentStatus overrides the status the member shipments move to; it
// defaults to the store-transfer status.
type CompleteTransferRequest struct {
	Notes          string `json:"notes,omitempty"`
	ShipmentStatus string `json:"shipment_status,omitempty"`
}

// TransferResponse is the response for transfer slip operations.
type TransferResponse struct {
	ID           int64              `json:"id"`
	TransferCode string             `json:"transfer_code"`
	Status       string             `json:"status"`
	ImageURL     string             `json:"image_url,omitempty"`
	CreatedBy    string             `json:"created_by"`
	CompletedBy  string             `json:"completed_by,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
	Notes        string             `json:"notes,omitempty"`
	Shipments    []ShipmentResponse `json:"shipments,omitempty"`
}

// ListTransfersResponse is the response for listing transfer slips.
type ListTransfersResponse struct {
	Transfers []TransferResponse `json:"transfers"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// =============================================================================
// Audit Types
// =============================================================================

// AuditEntryResponse is one row of the shipment audit trail.
type AuditEntryResponse struct {
	ID         int64     `json:"id"`
	ShipmentID int64     `json:"shipment_id"`
	QRCode     string    `json:"qr_code,omitempty"`
	Action     string    `json:"action"`
	OldValue   string    `json:"old_value,omitempty"`
	NewValue   string    `json:"new_value,omitempty"`
	ChangedBy  string    `json:"changed_by"`
	Timestamp  time.Time `json:"timestamp"`
}

// ListAuditResponse is the response for listing audit entries.
type ListAuditResponse struct {
	Entries []AuditEntryResponse `json:"entries"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// =============================================================================
// Common Types
// =============================================================================

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// =============================================================================
// Converters
// =============================================================================

func shipmentToResponse(s *domain.Shipment) ShipmentResponse {
	return ShipmentResponse{
		ID:                s.ID,
		QRCode:            s.QRCode,
		IMEI:              s.IMEI,
		DeviceName:        s.DeviceName,
		Condition:         s.Capacity,
		Supplier:          s.Supplier,
		RequestType:       string(s.RequestType),
		Status:            string(s.Status),
		StoreName:         s.StoreName,
		SentTime:          s.SentTime,
		ReceivedTime:      s.ReceivedTime,
		CompletedTime:     s.CompletedTime,
		LastUpdated:       s.LastUpdated,
		CreatedBy:         s.CreatedBy,
		UpdatedBy:         s.UpdatedBy,
		Notes:             s.Notes,
		ImageURLs:         s.ImageURLs(),
		TelegramMessageID: s.TelegramMessageID,
	}
}

func shipmentsToResponses(shipments []domain.Shipment) []ShipmentResponse {
	out := make([]ShipmentResponse, 0, len(shipments))
	for i := range shipments {
		out = append(out, shipmentToResponse(&shipments[i]))
	}
	return out
}

func userToResponse(u *domain.User) UserResponse {
	return UserResponse{
		Username:  u.Username,
		IsAdmin:   u.IsAdmin,
		IsStore:   u.IsStore,
		StoreName: u.StoreName,
	}
}

func supplierToResponse(s *domain.Supplier) SupplierResponse {
	return SupplierResponse{
		ID:       s.ID,
		Name:     s.Name,
		Contact:  s.Contact,
		Address:  s.Address,
		IsActive: s.IsActive,
	}
}

func storeToResponse(s *domain.Store) StoreResponse {
	return StoreResponse{
		ID:        s.ID,
		Name:      s.Name,
		Address:   s.Address,
		Note:      s.Note,
		CreatedAt: s.CreatedAt,
	}
}

func transferToResponse(t *domain.TransferSlip, shipments []domain.Shipment) TransferResponse {
	resp := TransferResponse{
		ID:           t.ID,
		TransferCode: t.TransferCode,
		Status:       string(t.Status),
		ImageURL:     t.ImageURL,
		CreatedBy:    t.CreatedBy,
		CompletedBy:  t.CompletedBy,
		CreatedAt:    t.CreatedAt,
		CompletedAt:  t.CompletedAt,
		Notes:        t.Notes,
	}
	if shipments != nil {
		resp.Shipments = shipmentsToResponses(shipments)
	}
	return resp
}

func auditToResponse(e *domain.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:         e.ID,
		ShipmentID: e.ShipmentID,
		QRCode:     e.QRCode,
		Action:     string(e.Action),
		OldValue:   e.OldValue,
		NewValue:   e.NewValue,
		ChangedBy:  e.ChangedBy,
		Timestamp:  e.Timestamp,
	}
}

func auditToResponses(entries []domain.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, auditToResponse(&entries[i]))
	}
	return out
}

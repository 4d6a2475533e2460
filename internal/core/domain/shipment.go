// Package domain contains the core domain types and validation logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"errors"
	"strings"
	"time"
)

// =============================================================================
// Shipment Errors
// =============================================================================

var (
	ErrQRCodeRequired      = errors.New("qr code is required")
	ErrIMEIRequired        = errors.New("imei is required")
	ErrDeviceNameRequired  = errors.New("device name is required")
	ErrConditionRequired   = errors.New("fault/condition description is required")
	ErrSupplierRequired    = errors.New("supplier is required")
	ErrRequestTypeInvalid  = errors.New("request type is invalid")
	ErrStatusInvalid       = errors.New("shipment status is invalid")
	ErrCreatedByRequired   = errors.New("created_by is required")
	ErrNoFieldsToUpdate    = errors.New("no fields to update")
)

// =============================================================================
// Shipment Status
// =============================================================================

// ShipmentStatus is the lifecycle state of a shipment. The values are stored
// and displayed verbatim; the operation runs in Vietnamese.
type ShipmentStatus string

const (
	StatusReceived        ShipmentStatus = "Đã nhận"
	StatusToWarehouse     ShipmentStatus = "Chuyển kho"
	StatusInspecting      ShipmentStatus = "Đang kiểm tra"
	StatusSentToSupplier  ShipmentStatus = "Gửi NCC sửa"
	StatusRepairing       ShipmentStatus = "Đang sửa chữa"
	StatusRepairDone      ShipmentStatus = "Hoàn thành sửa chữa"
	StatusToStore         ShipmentStatus = "Chuyển cửa hàng"
	StatusAwaitingReturn  ShipmentStatus = "Chờ trả khách"
	StatusCompleted       ShipmentStatus = "Hoàn thành"
)

// DefaultStatus is assigned to newly created shipments.
const DefaultStatus = StatusReceived

// StatusValues lists every valid status in workflow order.
func StatusValues() []ShipmentStatus {
	return []ShipmentStatus{
		StatusReceived,
		StatusToWarehouse,
		StatusInspecting,
		StatusSentToSupplier,
		StatusRepairing,
		StatusRepairDone,
		StatusToStore,
		StatusAwaitingReturn,
		StatusCompleted,
	}
}

// IsValid checks if the status is one of the known workflow states.
func (s ShipmentStatus) IsValid() bool {
	for _, v := range StatusValues() {
		if s == v {
			return true
		}
	}
	return false
}

// IsActive returns true while the shipment is still in the repair pipeline.
func (s ShipmentStatus) IsActive() bool {
	return s.IsValid() && s != StatusCompleted
}

// =============================================================================
// Request Types
// =============================================================================

// RequestType classifies why a device entered the pipeline.
type RequestType string

const (
	RequestWarrantySwap    RequestType = "Bảo hành đổi máy"
	RequestWarrantyRepair  RequestType = "Bảo hành sửa chữa"
	RequestServiceRepair   RequestType = "Sửa chữa dịch vụ"
	RequestIntakeRepair    RequestType = "Sửa chữa nhập hàng"
	RequestTradeInRepair   RequestType = "Sửa chữa thu cũ"
)

// RequestTypes lists every valid request type.
func RequestTypes() []RequestType {
	return []RequestType{
		RequestWarrantySwap,
		RequestWarrantyRepair,
		RequestServiceRepair,
		RequestIntakeRepair,
		RequestTradeInRepair,
	}
}

// IsValid checks if the request type is known.
func (r RequestType) IsValid() bool {
	for _, v := range RequestTypes() {
		if r == v {
			return true
		}
	}
	return false
}

// =============================================================================
// Shipment
// =============================================================================

// Shipment is a QR-labelled device moving through the repair pipeline.
// Capacity carries the fault/condition description (the field kept its
// historical name in the data model).
type Shipment struct {
	ID                int64          `json:"id"`
	QRCode            string         `json:"qr_code"`
	IMEI              string         `json:"imei"`
	DeviceName        string         `json:"device_name"`
	Capacity          string         `json:"capacity"`
	Supplier          string         `json:"supplier"`
	RequestType       RequestType    `json:"request_type"`
	Status            ShipmentStatus `json:"status"`
	StoreName         string         `json:"store_name,omitempty"`
	SentTime          time.Time      `json:"sent_time"`
	ReceivedTime      *time.Time     `json:"received_time,omitempty"`
	CompletedTime     *time.Time     `json:"completed_time,omitempty"`
	LastUpdated       time.Time      `json:"last_updated"`
	CreatedBy         string         `json:"created_by"`
	UpdatedBy         string         `json:"updated_by,omitempty"`
	Notes             string         `json:"notes,omitempty"`
	ImageURL          string         `json:"image_url,omitempty"`
	TelegramMessageID *int64         `json:"telegram_message_id,omitempty"`
}

// NewShipment creates a shipment with the default status and validates the
// required fields.
func NewShipment(qrCode, imei, deviceName, capacity, supplier string, requestType RequestType, createdBy string) (*Shipment, error) {
	qrCode = strings.TrimSpace(qrCode)
	imei = strings.TrimSpace(imei)
	deviceName = strings.TrimSpace(deviceName)
	capacity = strings.TrimSpace(capacity)
	supplier = strings.TrimSpace(supplier)

	switch {
	case qrCode == "":
		return nil, ErrQRCodeRequired
	case imei == "":
		return nil, ErrIMEIRequired
	case deviceName == "":
		return nil, ErrDeviceNameRequired
	case capacity == "":
		return nil, ErrConditionRequired
	case supplier == "":
		return nil, ErrSupplierRequired
	case !requestType.IsValid():
		return nil, ErrRequestTypeInvalid
	case createdBy == "":
		return nil, ErrCreatedByRequired
	}

	now := time.Now()
	received := now
	return &Shipment{
		QRCode:       qrCode,
		IMEI:         imei,
		DeviceName:   deviceName,
		Capacity:     capacity,
		Supplier:     supplier,
		RequestType:  requestType,
		Status:       DefaultStatus,
		SentTime:     now,
		ReceivedTime: &received,
		LastUpdated:  now,
		CreatedBy:    createdBy,
	}, nil
}

// SetStatus transitions the shipment to a new status, stamping received and
// completed times when the respective states are entered.
func (s *Shipment) SetStatus(status ShipmentStatus, updatedBy string) error {
	if !status.IsValid() {
		return ErrStatusInvalid
	}
	now := time.Now()
	s.Status = status
	s.UpdatedBy = updatedBy
	s.LastUpdated = now
	switch status {
	case StatusReceived:
		s.ReceivedTime = &now
	case StatusCompleted:
		s.CompletedTime = &now
	}
	return nil
}

// ImageURLs splits the semicolon-joined image_url column into a slice.
func (s *Shipment) ImageURLs() []string {
	return SplitImageURLs(s.ImageURL)
}

// AppendImageURLs joins new URLs onto the existing image_url value.
func (s *Shipment) AppendImageURLs(urls []string) {
	all := append(s.ImageURLs(), urls...)
	s.ImageURL = JoinImageURLs(all)
}

// SplitImageURLs splits a semicolon-joined URL list, dropping empty entries.
func SplitImageURLs(joined string) []string {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ";")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			urls = append(urls, p)
		}
	}
	return urls
}

// JoinImageURLs joins URLs into the stored semicolon-separated form.
func JoinImageURLs(urls []string) string {
	return strings.Join(urls, ";")
}

// SanitizeFileToken normalizes a QR code or status for use in an uploaded
// file name.
func SanitizeFileToken(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, "/", "_")
}

// MaskIMEI hides the middle digits of an IMEI for group notifications,
// keeping the first and last two characters visible.
func MaskIMEI(imei string) string {
	if len(imei) <= 4 {
		return strings.Repeat("█", len(imei))
	}
	return imei[:2] + strings.Repeat("█", len(imei)-4) + imei[len(imei)-2:]
}

// Package e2e provides end-to-end testing utilities for ShipTrack.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"
)

// =============================================================================
// Response Types
// =============================================================================

// LoginResponse mirrors the login payload returned by the API.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UserResponse represents an account from the API.
type UserResponse struct {
	Username  string `json:"username"`
	IsAdmin   bool   `json:"is_admin"`
	IsStore   bool   `json:"is_store"`
	StoreName string `json:"store_name,omitempty"`
}

// ShipmentResponse represents a shipment from the API.
type ShipmentResponse struct {
	ID          int64    `json:"id"`
	QRCode      string   `json:"qr_code"`
	IMEI        string   `json:"imei"`
	DeviceName  string   `json:"device_name"`
	Condition   string   `json:"condition"`
	Supplier    string   `json:"supplier"`
	RequestType string   `json:"request_type"`
	Status      string   `json:"status"`
	StoreName   string   `json:"store_name,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	ImageURLs   []string `json:"image_urls,omitempty"`
}

// ListShipmentsResponse is the paginated shipment list.
type ListShipmentsResponse struct {
	Shipments []ShipmentResponse `json:"shipments"`
	Total     int                `json:"total"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// TransferResponse represents a transfer slip from the API.
type TransferResponse struct {
	ID           int64              `json:"id"`
	TransferCode string             `json:"transfer_code"`
	Status       string             `json:"status"`
	CreatedBy    string             `json:"created_by"`
	CompletedBy  string             `json:"completed_by,omitempty"`
	Notes        string             `json:"notes,omitempty"`
	Shipments    []ShipmentResponse `json:"shipments,omitempty"`
}

// StatsResponse is the shipment statistics summary.
type StatsResponse struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	ByStatus map[string]int `json:"by_status"`
}

// ErrorResponse is the API error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// =============================================================================
// HTTP Helpers
// =============================================================================

// HTTPGet performs a GET request and fails the test on transport errors.
func HTTPGet(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := testClient.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	return resp
}

// DoJSON performs an authenticated JSON request against the API and returns
// the response. A nil body sends an empty request.
func DoJSON(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := testClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// Decode reads and unmarshals a JSON response body, then closes it.
func Decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, data)
	}
	return out
}

// =============================================================================
// API Client Helpers
// =============================================================================

// Login authenticates a seeded account and returns its session token.
func Login(t *testing.T, username, password string) string {
	t.Helper()

	resp := DoJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("login as %s failed: status=%d body=%s", username, resp.StatusCode, body)
	}

	login := Decode[LoginResponse](t, resp)
	if login.Token == "" {
		t.Fatalf("login as %s returned empty token", username)
	}
	return login.Token
}

// CreateShipment registers a new shipment and returns it.
func CreateShipment(t *testing.T, token, qrCode, imei string) ShipmentResponse {
	t.Helper()

	resp := DoJSON(t, http.MethodPost, "/api/v1/shipments", token, map[string]string{
		"qr_code":      qrCode,
		"imei":         imei,
		"device_name":  "iPhone 13 Pro",
		"condition":    "Vỡ màn hình",
		"supplier":     "GHN",
		"request_type": "Sửa chữa dịch vụ",
	})
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("create shipment %s failed: status=%d body=%s", qrCode, resp.StatusCode, body)
	}
	return Decode[ShipmentResponse](t, resp)
}

// GetShipment fetches a shipment by ID.
func GetShipment(t *testing.T, token string, id int64) ShipmentResponse {
	t.Helper()

	resp := DoJSON(t, http.MethodGet, fmt.Sprintf("/api/v1/shipments/%d", id), token, nil)
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("get shipment %d failed: status=%d body=%s", id, resp.StatusCode, body)
	}
	return Decode[ShipmentResponse](t, resp)
}

// Eventually retries a condition function until it returns true or timeout.
func Eventually(t *testing.T, timeout, interval time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
	}
	return false
}

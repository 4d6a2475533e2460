package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lamdp/shiptrack/internal/core/domain"
	"github.com/lamdp/shiptrack/internal/shell/store"
)

// =============================================================================
// Test Helpers
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testAPI struct {
	store  store.Store
	router http.Handler
}

func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	h := NewHandler(s, nil, nil, testLogger())
	return &testAPI{store: s, router: h.Routes()}
}

func (a *testAPI) createAccount(t *testing.T, username, password string, isAdmin, isStore bool, storeName string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	err = a.store.CreateUser(context.Background(), &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		IsAdmin:      isAdmin,
		IsStore:      isStore,
		StoreName:    storeName,
	})
	require.NoError(t, err)
}

func (a *testAPI) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := a.doJSON(t, "POST", "/api/v1/auth/login", "", LoginRequest{
		Username: username,
		Password: password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

func (a *testAPI) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) createShipment(t *testing.T, token, qrCode string) ShipmentResponse {
	t.Helper()
	rec := a.doJSON(t, "POST", "/api/v1/shipments", token, CreateShipmentRequest{
		QRCode:      qrCode,
		IMEI:        "359876543210987",
		DeviceName:  "iPhone 13",
		Condition:   "Vỡ màn hình",
		Supplier:    "GHN",
		RequestType: string(domain.RequestServiceRepair),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp ShipmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// =============================================================================
// Health Tests
// =============================================================================

func TestHealth(t *testing.T) {
	a := setupTestAPI(t)
	rec := a.doJSON(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
}

func TestReady(t *testing.T) {
	a := setupTestAPI(t)
	rec := a.doJSON(t, "GET", "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[ReadyResponse](t, rec)
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "ok", resp.Checks["database"])
}

func TestOpenAPIDocument(t *testing.T) {
	a := setupTestAPI(t)
	rec := a.doJSON(t, "GET", "/openapi.json", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/api/v1/shipments")
	assert.Contains(t, paths, "/api/v1/transfers")

	// The list filters carry their contract in the document
	shipments := paths["/api/v1/shipments"].(map[string]any)
	listOp := shipments["get"].(map[string]any)
	params := listOp["parameters"].([]any)
	names := make(map[string]string)
	for _, p := range params {
		param := p.(map[string]any)
		desc, _ := param["description"].(string)
		names[param["name"].(string)] = desc
	}
	assert.Contains(t, names, "status")
	assert.Contains(t, names, "request_type")
	assert.Contains(t, names, "store")
	assert.Contains(t, names["since"], "RFC3339")
	assert.Contains(t, names["since"], "no truncation")
}

// =============================================================================
// Auth Tests
// =============================================================================

func TestLogin_Success(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")

	rec := a.doJSON(t, "POST", "/api/v1/auth/login", "", LoginRequest{Username: "staff", Password: "secret"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeJSON[LoginResponse](t, rec)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "staff", resp.User.Username)
	assert.False(t, resp.ExpiresAt.IsZero())
}

func TestLogin_WrongPassword(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")

	rec := a.doJSON(t, "POST", "/api/v1/auth/login", "", LoginRequest{Username: "staff", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_UnknownUser(t *testing.T) {
	a := setupTestAPI(t)
	rec := a.doJSON(t, "POST", "/api/v1/auth/login", "", LoginRequest{Username: "ghost", Password: "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_InvalidatesToken(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")

	rec := a.doJSON(t, "GET", "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.doJSON(t, "POST", "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.doJSON(t, "GET", "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe_Unauthenticated(t *testing.T) {
	a := setupTestAPI(t)
	rec := a.doJSON(t, "GET", "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =============================================================================
// Shipment Tests
// =============================================================================

func TestCreateShipment(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")

	resp := a.createShipment(t, token, "QR001")
	assert.Equal(t, "QR001", resp.QRCode)
	assert.Equal(t, string(domain.StatusReceived), resp.Status)
	assert.Equal(t, "staff", resp.CreatedBy)
	assert.NotNil(t, resp.ReceivedTime)

	// Creation writes an audit entry and queues the group notification
	entries, err := a.store.ListAuditEntries(context.Background(), resp.ID, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditCreated, entries[0].Action)

	pending, err := a.store.ListPendingNotifications(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.NotifyShipmentReceived, pending[0].Kind)
	assert.Equal(t, resp.ID, pending[0].SubjectID)
}

func TestCreateShipment_DuplicateQRCode(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")

	a.createShipment(t, token, "QR001")
	rec := a.doJSON(t, "POST", "/api/v1/shipments", token, CreateShipmentRequest{
		QRCode:      "QR001",
		IMEI:        "111111111111111",
		DeviceName:  "iPhone 12",
		Condition:   "Hỏng loa",
		Supplier:    "GHN",
		RequestType: string(domain.RequestWarrantyRepair),
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeJSON[ErrorResponse](t, rec)
	assert.Equal(t, "conflict", resp.Code)
}

func TestCreateShipment_MissingFields(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")

	rec := a.doJSON(t, "POST", "/api/v1/shipments", token, CreateShipmentRequest{QRCode: "QR001"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateShipment_Unauthenticated(t *testing.T) {
	a := setupTestAPI(t)
	rec := a.doJSON(t, "POST", "/api/v1/shipments", "", CreateShipmentRequest{QRCode: "QR001"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateShipment_StoreAccountPinnedToOwnStore(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "cuahang1", "secret", false, true, "Cửa hàng 1")
	token := a.login(t, "cuahang1", "secret")

	rec := a.doJSON(t, "POST", "/api/v1/shipments", token, CreateShipmentRequest{
		QRCode:      "QR010",
		IMEI:        "222222222222222",
		DeviceName:  "iPhone 11",
		Condition:   "Chai pin",
		Supplier:    "GHN",
		RequestType: string(domain.RequestServiceRepair),
		StoreName:   "Cửa hàng 2",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeJSON[ShipmentResponse](t, rec)
	assert.Equal(t, "Cửa hàng 1", resp.StoreName)
}

func TestListShipments_StoreScoped(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	a.createAccount(t, "cuahang1", "secret", false, true, "Cửa hàng 1")
	staffToken := a.login(t, "staff", "secret")
	storeToken := a.login(t, "cuahang1", "secret")

	s1 := a.createShipment(t, staffToken, "QR001")
	rec := a.doJSON(t, "PUT", fmt.Sprintf("/api/v1/shipments/%d", s1.ID), staffToken, UpdateShipmentRequest{
		StoreName: ptr("Cửa hàng 1"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	a.createShipment(t, staffToken, "QR002")

	// Staff sees everything
	rec = a.doJSON(t, "GET", "/api/v1/shipments", staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeJSON[ListShipmentsResponse](t, rec)
	assert.Equal(t, 2, all.Total)

	// Store account only sees its own stock
	rec = a.doJSON(t, "GET", "/api/v1/shipments", storeToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	scoped := decodeJSON[ListShipmentsResponse](t, rec)
	require.Equal(t, 1, scoped.Total)
	assert.Equal(t, "QR001", scoped.Shipments[0].QRCode)
}

func TestGetShipment_OtherStoreHidden(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	a.createAccount(t, "cuahang2", "secret", false, true, "Cửa hàng 2")
	staffToken := a.login(t, "staff", "secret")
	storeToken := a.login(t, "cuahang2", "secret")

	s := a.createShipment(t, staffToken, "QR001")

	rec := a.doJSON(t, "GET", fmt.Sprintf("/api/v1/shipments/%d", s.ID), storeToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateShipment(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")
	s := a.createShipment(t, token, "QR001")

	rec := a.doJSON(t, "PUT", fmt.Sprintf("/api/v1/shipments/%d", s.ID), token, UpdateShipmentRequest{
		DeviceName: ptr("iPhone 13 Pro"),
		Notes:      ptr("khách cần gấp"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeJSON[ShipmentResponse](t, rec)
	assert.Equal(t, "iPhone 13 Pro", resp.DeviceName)
	assert.Equal(t, "khách cần gấp", resp.Notes)
	assert.Equal(t, "staff", resp.UpdatedBy)

	entries, err := a.store.ListAuditEntries(context.Background(), s.ID, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.AuditUpdated, entries[0].Action)
	assert.Contains(t, entries[0].NewValue, "device_name")
}

func TestUpdateShipment_NoChanges(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")
	s := a.createShipment(t, token, "QR001")

	rec := a.doJSON(t, "PUT", fmt.Sprintf("/api/v1/shipments/%d", s.ID), token, UpdateShipmentRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangeStatus(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")
	s := a.createShipment(t, token, "QR001")

	rec := a.doJSON(t, "PATCH", fmt.Sprintf("/api/v1/shipments/%d/status", s.ID), token, StatusChangeRequest{
		Status: string(domain.StatusCompleted),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeJSON[ShipmentResponse](t, rec)
	assert.Equal(t, string(domain.StatusCompleted), resp.Status)
	assert.NotNil(t, resp.CompletedTime)

	entries, err := a.store.ListAuditEntries(context.Background(), s.ID, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.AuditStatusChanged, entries[0].Action)
	assert.Equal(t, string(domain.StatusReceived), entries[0].OldValue)
	assert.Equal(t, string(domain.StatusCompleted), entries[0].NewValue)
}

func TestChangeStatus_Invalid(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")
	s := a.createShipment(t, token, "QR001")

	rec := a.doJSON(t, "PATCH", fmt.Sprintf("/api/v1/shipments/%d/status", s.ID), token, StatusChangeRequest{
		Status: "Bogus",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteShipment_AdminOnly(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	a.createAccount(t, "admin", "secret", true, false, "")
	staffToken := a.login(t, "staff", "secret")
	adminToken := a.login(t, "admin", "secret")
	s := a.createShipment(t, staffToken, "QR001")

	rec := a.doJSON(t, "DELETE", fmt.Sprintf("/api/v1/shipments/%d", s.ID), staffToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.doJSON(t, "DELETE", fmt.Sprintf("/api/v1/shipments/%d", s.ID), adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.doJSON(t, "GET", fmt.Sprintf("/api/v1/shipments/%d", s.ID), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStats(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")

	a.createShipment(t, token, "QR001")
	s2 := a.createShipment(t, token, "QR002")
	rec := a.doJSON(t, "PATCH", fmt.Sprintf("/api/v1/shipments/%d/status", s2.ID), token, StatusChangeRequest{
		Status: string(domain.StatusCompleted),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.doJSON(t, "GET", "/api/v1/shipments/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[StatsResponse](t, rec)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 1, resp.Active)
	assert.Equal(t, 1, resp.ByStatus[string(domain.StatusReceived)])
	assert.Equal(t, 1, resp.ByStatus[string(domain.StatusCompleted)])
	assert.Equal(t, 2, resp.ByRequestType[string(domain.RequestServiceRepair)])

	// The bare alias serves the same counters
	rec = a.doJSON(t, "GET", "/api/v1/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLabel(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")
	s := a.createShipment(t, token, "QR001")

	rec := a.doJSON(t, "GET", fmt.Sprintf("/api/v1/shipments/%d/label", s.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "QR001", resp["qr_code"])
	assert.NotEmpty(t, resp["png_base64"])
	assert.Contains(t, resp["html"], "QR001")
}

// =============================================================================
// Image Upload Tests
// =============================================================================

// fakeUploader returns a deterministic URL per uploaded file.
type fakeUploader struct {
	names []string
}

func (f *fakeUploader) Upload(ctx context.Context, name string, content io.Reader) (string, error) {
	f.names = append(f.names, name)
	return "https://files.test/" + name, nil
}

func TestUploadImages(t *testing.T) {
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	uploader := &fakeUploader{}
	h := NewHandler(s, uploader, uploader, testLogger())
	a := &testAPI{store: s, router: h.Routes()}

	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")
	shipment := a.createShipment(t, token, "QR001")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for i := 0; i < 2; i++ {
		part, err := mw.CreateFormFile("images", fmt.Sprintf("photo%d.jpg", i+1))
		require.NoError(t, err)
		_, err = part.Write([]byte("jpegdata"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", fmt.Sprintf("/api/v1/shipments/%d/images", shipment.ID), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeJSON[UploadImagesResponse](t, rec)
	assert.Equal(t, 2, resp.Uploaded)
	require.Len(t, resp.ImageURLs, 2)

	// Upload names carry the QR code and status tokens
	require.Len(t, uploader.names, 2)
	assert.True(t, strings.HasPrefix(uploader.names[0], "QR001_"))
	assert.True(t, strings.HasSuffix(uploader.names[0], "_1.jpg"))

	// A photo notification is queued alongside the creation one
	pending, err := s.ListPendingNotifications(context.Background(), 10)
	require.NoError(t, err)
	kinds := make([]domain.NotificationKind, 0, len(pending))
	for _, n := range pending {
		kinds = append(kinds, n.Kind)
	}
	assert.Contains(t, kinds, domain.NotifyShipmentImages)
}

// =============================================================================
// Scan Tests
// =============================================================================

func TestScan_DecodesLabel(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")

	png, err := qrcode.Encode("QR001,359876543210987,iPhone 13,Vỡ màn hình", qrcode.Medium, 256)
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "scan.png")
	require.NoError(t, err)
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/v1/scan", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeJSON[ScanResponse](t, rec)
	assert.Equal(t, "QR001", resp.QRCode)
	assert.Equal(t, "359876543210987", resp.IMEI)
	assert.Equal(t, "iPhone 13", resp.DeviceName)
	assert.Equal(t, "Vỡ màn hình", resp.Condition)
	assert.Nil(t, resp.Existing)
}

func TestScan_KnownShipmentIncluded(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")
	existing := a.createShipment(t, token, "QR001")

	png, err := qrcode.Encode("QR001,359876543210987,iPhone 13,Vỡ màn hình", qrcode.Medium, 256)
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "scan.png")
	require.NoError(t, err)
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/v1/scan", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[ScanResponse](t, rec)
	require.NotNil(t, resp.Existing)
	assert.Equal(t, existing.ID, resp.Existing.ID)
}

// =============================================================================
// Catalog Tests
// =============================================================================

func TestSuppliers_AdminCRUD(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	a.createAccount(t, "admin", "secret", true, false, "")
	staffToken := a.login(t, "staff", "secret")
	adminToken := a.login(t, "admin", "secret")

	// Non-admin creation is forbidden
	rec := a.doJSON(t, "POST", "/api/v1/suppliers", staffToken, SupplierRequest{Name: "GHN"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.doJSON(t, "POST", "/api/v1/suppliers", adminToken, SupplierRequest{Name: "GHN", Contact: "1900 1234"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeJSON[SupplierResponse](t, rec)
	assert.True(t, created.IsActive)

	rec = a.doJSON(t, "POST", "/api/v1/suppliers", adminToken, SupplierRequest{Name: "GHN"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Everyone can list active suppliers
	rec = a.doJSON(t, "GET", "/api/v1/suppliers", staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeJSON[[]SupplierResponse](t, rec)
	require.Len(t, list, 1)

	// Deactivation hides the supplier from the default listing
	rec = a.doJSON(t, "DELETE", fmt.Sprintf("/api/v1/suppliers/%d", created.ID), adminToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.doJSON(t, "GET", "/api/v1/suppliers", staffToken, nil)
	list = decodeJSON[[]SupplierResponse](t, rec)
	assert.Empty(t, list)

	rec = a.doJSON(t, "GET", "/api/v1/suppliers?active=false", staffToken, nil)
	list = decodeJSON[[]SupplierResponse](t, rec)
	assert.Len(t, list, 1)
}

func TestStores_AdminCRUD(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "admin", "secret", true, false, "")
	token := a.login(t, "admin", "secret")

	rec := a.doJSON(t, "POST", "/api/v1/stores", token, StoreRequest{Name: "Cửa hàng 1", Address: "Hà Nội"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeJSON[StoreResponse](t, rec)

	rec = a.doJSON(t, "PUT", fmt.Sprintf("/api/v1/stores/%d", created.ID), token, StoreRequest{
		Name:    "Cửa hàng 1",
		Address: "TP HCM",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeJSON[StoreResponse](t, rec)
	assert.Equal(t, "TP HCM", updated.Address)

	rec = a.doJSON(t, "DELETE", fmt.Sprintf("/api/v1/stores/%d", created.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStores_ListOpenToAuthenticated(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "admin", "secret", true, false, "")
	a.createAccount(t, "staff", "secret", false, false, "")
	adminToken := a.login(t, "admin", "secret")
	staffToken := a.login(t, "staff", "secret")

	rec := a.doJSON(t, "POST", "/api/v1/stores", adminToken, StoreRequest{Name: "Cửa hàng 1", Address: "Hà Nội"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The registration and transfer forms need the list, so any
	// authenticated account can read it; writes stay admin only
	rec = a.doJSON(t, "GET", "/api/v1/stores", staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeJSON[[]StoreResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Cửa hàng 1", list[0].Name)

	rec = a.doJSON(t, "POST", "/api/v1/stores", staffToken, StoreRequest{Name: "Cửa hàng 2"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.doJSON(t, "GET", "/api/v1/stores", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUsers_AdminCRUD(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "admin", "secret", true, false, "")
	token := a.login(t, "admin", "secret")

	rec := a.doJSON(t, "POST", "/api/v1/users", token, CreateUserRequest{
		Username: "newstaff",
		Password: "pass123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// New account can log in
	a.login(t, "newstaff", "pass123")

	rec = a.doJSON(t, "PUT", "/api/v1/users/newstaff", token, UpdateUserRequest{IsAdmin: ptr(true)})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeJSON[UserResponse](t, rec)
	assert.True(t, updated.IsAdmin)

	rec = a.doJSON(t, "GET", "/api/v1/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeJSON[[]UserResponse](t, rec)
	assert.Len(t, list, 2)

	rec = a.doJSON(t, "DELETE", "/api/v1/users/newstaff", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUsers_CannotDeleteSelf(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "admin", "secret", true, false, "")
	token := a.login(t, "admin", "secret")

	rec := a.doJSON(t, "DELETE", "/api/v1/users/admin", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsers_NonAdminForbidden(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")

	rec := a.doJSON(t, "GET", "/api/v1/users", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// =============================================================================
// Transfer Tests
// =============================================================================

func TestTransferLifecycle(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")

	s1 := a.createShipment(t, token, "QR001")
	s2 := a.createShipment(t, token, "QR002")

	rec := a.doJSON(t, "POST", "/api/v1/transfers", token, CreateTransferRequest{
		ShipmentIDs: []int64{s1.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	slip := decodeJSON[TransferResponse](t, rec)
	assert.True(t, strings.HasPrefix(slip.TransferCode, "TC"))
	assert.Equal(t, string(domain.TransferInTransit), slip.Status)
	require.Len(t, slip.Shipments, 1)

	// Add the second shipment by QR code
	rec = a.doJSON(t, "POST", fmt.Sprintf("/api/v1/transfers/%d/items", slip.ID), token, AddTransferItemRequest{
		QRCode: "QR002",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	withItems := decodeJSON[TransferResponse](t, rec)
	assert.Len(t, withItems.Shipments, 2)

	// Adding it again conflicts
	rec = a.doJSON(t, "POST", fmt.Sprintf("/api/v1/transfers/%d/items", slip.ID), token, AddTransferItemRequest{
		ShipmentID: s2.ID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Complete: shipments move to the store-bound status
	rec = a.doJSON(t, "POST", fmt.Sprintf("/api/v1/transfers/%d/complete", slip.ID), token, CompleteTransferRequest{
		Notes: "giao đủ",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decodeJSON[TransferResponse](t, rec)
	assert.Equal(t, string(domain.TransferCompleted), done.Status)
	assert.Equal(t, "staff", done.CompletedBy)
	for _, s := range done.Shipments {
		assert.Equal(t, string(domain.StatusToStore), s.Status)
	}

	// Completing twice conflicts
	rec = a.doJSON(t, "POST", fmt.Sprintf("/api/v1/transfers/%d/complete", slip.ID), token, CompleteTransferRequest{})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// A group notification was queued for the slip
	pending, err := a.store.ListPendingNotifications(context.Background(), 10)
	require.NoError(t, err)
	var found bool
	for _, n := range pending {
		if n.Kind == domain.NotifyTransferCompleted && n.SubjectID == slip.ID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestTransfer_EmptySlipCannotComplete(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")

	rec := a.doJSON(t, "POST", "/api/v1/transfers", token, CreateTransferRequest{})
	require.Equal(t, http.StatusCreated, rec.Code)
	slip := decodeJSON[TransferResponse](t, rec)

	rec = a.doJSON(t, "POST", fmt.Sprintf("/api/v1/transfers/%d/complete", slip.ID), token, CompleteTransferRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransfer_StoreAccountForbidden(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "cuahang1", "secret", false, true, "Cửa hàng 1")
	token := a.login(t, "cuahang1", "secret")

	rec := a.doJSON(t, "POST", "/api/v1/transfers", token, CreateTransferRequest{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.doJSON(t, "GET", "/api/v1/transfers", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTransfer_RemoveItem(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")
	s := a.createShipment(t, token, "QR001")

	rec := a.doJSON(t, "POST", "/api/v1/transfers", token, CreateTransferRequest{ShipmentIDs: []int64{s.ID}})
	require.Equal(t, http.StatusCreated, rec.Code)
	slip := decodeJSON[TransferResponse](t, rec)

	rec = a.doJSON(t, "DELETE", fmt.Sprintf("/api/v1/transfers/%d/items/%d", slip.ID, s.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.doJSON(t, "DELETE", fmt.Sprintf("/api/v1/transfers/%d/items/%d", slip.ID, s.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// Audit Tests
// =============================================================================

func TestRecentAudit_AdminOnly(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	a.createAccount(t, "admin", "secret", true, false, "")
	staffToken := a.login(t, "staff", "secret")
	adminToken := a.login(t, "admin", "secret")

	a.createShipment(t, staffToken, "QR001")

	rec := a.doJSON(t, "GET", "/api/v1/audit", staffToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.doJSON(t, "GET", "/api/v1/audit", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[ListAuditResponse](t, rec)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "QR001", resp.Entries[0].QRCode)
}

func TestShipmentAudit(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")
	s := a.createShipment(t, token, "QR001")

	rec := a.doJSON(t, "PATCH", fmt.Sprintf("/api/v1/shipments/%d/status", s.ID), token, StatusChangeRequest{
		Status: string(domain.StatusInspecting),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.doJSON(t, "GET", fmt.Sprintf("/api/v1/shipments/%d/audit", s.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[ListAuditResponse](t, rec)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, string(domain.AuditStatusChanged), resp.Entries[0].Action)
	assert.Equal(t, string(domain.AuditCreated), resp.Entries[1].Action)
}

// =============================================================================
// QR Lookup and Filter Tests
// =============================================================================

func TestGetShipmentByQRCode(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")
	created := a.createShipment(t, token, "QR001")

	rec := a.doJSON(t, "GET", "/api/v1/shipments/qr/QR001", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeJSON[ShipmentResponse](t, rec)
	assert.Equal(t, created.ID, resp.ID)

	rec = a.doJSON(t, "GET", "/api/v1/shipments/qr/NOPE", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetShipmentByQRCode_OtherStoreHidden(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	a.createAccount(t, "cuahang2", "secret", false, true, "Cửa hàng 2")
	staffToken := a.login(t, "staff", "secret")
	storeToken := a.login(t, "cuahang2", "secret")

	shipment := a.createShipment(t, staffToken, "QR001")
	rec := a.doJSON(t, "PUT", fmt.Sprintf("/api/v1/shipments/%d", shipment.ID), staffToken, UpdateShipmentRequest{
		StoreName: ptr("Cửa hàng 1"),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.doJSON(t, "GET", "/api/v1/shipments/qr/QR001", storeToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListShipments_RequestTypeAndSinceFilters(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")

	a.createShipment(t, token, "QR001")
	a.createShipment(t, token, "QR002")

	rec := a.doJSON(t, "GET", "/api/v1/shipments?request_type="+url.QueryEscape(string(domain.RequestServiceRepair)), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeJSON[ListShipmentsResponse](t, rec)
	assert.Equal(t, 2, resp.Total)

	rec = a.doJSON(t, "GET", "/api/v1/shipments?request_type="+url.QueryEscape(string(domain.RequestWarrantySwap)), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeJSON[ListShipmentsResponse](t, rec)
	assert.Equal(t, 0, resp.Total)

	// Everything was sent after yesterday
	since := time.Now().Add(-24 * time.Hour).Format(time.RFC3339)
	rec = a.doJSON(t, "GET", "/api/v1/shipments?since="+url.QueryEscape(since), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeJSON[ListShipmentsResponse](t, rec)
	assert.Equal(t, 2, resp.Total)

	// Nothing was sent after tomorrow
	since = time.Now().Add(24 * time.Hour).Format(time.RFC3339)
	rec = a.doJSON(t, "GET", "/api/v1/shipments?since="+url.QueryEscape(since), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeJSON[ListShipmentsResponse](t, rec)
	assert.Equal(t, 0, resp.Total)

	rec = a.doJSON(t, "GET", "/api/v1/shipments?since=yesterday", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangeStatus_PostWithNotes(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")
	s := a.createShipment(t, token, "QR001")

	rec := a.doJSON(t, "POST", fmt.Sprintf("/api/v1/shipments/%d/status", s.ID), token, StatusChangeRequest{
		Status: string(domain.StatusInspecting),
		Notes:  "trầy nhẹ góc máy",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeJSON[ShipmentResponse](t, rec)
	assert.Equal(t, string(domain.StatusInspecting), resp.Status)
	assert.Equal(t, "trầy nhẹ góc máy", resp.Notes)
}

func TestCreateShipment_MultipartWithImages(t *testing.T) {
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	uploader := &fakeUploader{}
	h := NewHandler(s, uploader, uploader, testLogger())
	a := &testAPI{store: s, router: h.Routes()}

	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("qr_code", "QR001"))
	require.NoError(t, mw.WriteField("imei", "359876543210987"))
	require.NoError(t, mw.WriteField("device_name", "iPhone 13"))
	require.NoError(t, mw.WriteField("condition", "Vỡ màn hình"))
	require.NoError(t, mw.WriteField("supplier", "GHN"))
	require.NoError(t, mw.WriteField("request_type", string(domain.RequestServiceRepair)))
	part, err := mw.CreateFormFile("images", "photo.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpegdata"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/v1/shipments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeJSON[ShipmentResponse](t, rec)
	assert.Equal(t, "QR001", resp.QRCode)
	require.Len(t, resp.ImageURLs, 1)
	require.Len(t, uploader.names, 1)
	assert.True(t, strings.HasPrefix(uploader.names[0], "QR001_"))
}

// =============================================================================
// Active Transfer Tests
// =============================================================================

func TestTransfer_Active(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")

	rec := a.doJSON(t, "GET", "/api/v1/transfers/active", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s := a.createShipment(t, token, "QR001")
	rec = a.doJSON(t, "POST", "/api/v1/transfers", token, CreateTransferRequest{
		ShipmentIDs: []int64{s.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeJSON[TransferResponse](t, rec)

	rec = a.doJSON(t, "GET", "/api/v1/transfers/active", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	active := decodeJSON[TransferResponse](t, rec)
	assert.Equal(t, created.ID, active.ID)
	require.Len(t, active.Shipments, 1)

	rec = a.doJSON(t, "POST", fmt.Sprintf("/api/v1/transfers/%d/complete", created.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.doJSON(t, "GET", "/api/v1/transfers/active", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransfer_CompleteWithCustomStatus(t *testing.T) {
	a := setupTestAPI(t)
	a.createAccount(t, "staff", "secret", false, false, "")
	token := a.login(t, "staff", "secret")

	s := a.createShipment(t, token, "QR001")
	rec := a.doJSON(t, "POST", "/api/v1/transfers", token, CreateTransferRequest{
		ShipmentIDs: []int64{s.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeJSON[TransferResponse](t, rec)

	rec = a.doJSON(t, "POST", fmt.Sprintf("/api/v1/transfers/%d/complete", created.ID), token, CompleteTransferRequest{
		ShipmentStatus: "Không hợp lệ",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.doJSON(t, "POST", fmt.Sprintf("/api/v1/transfers/%d/complete", created.ID), token, CompleteTransferRequest{
		ShipmentStatus: string(domain.StatusAwaitingReturn),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.doJSON(t, "GET", fmt.Sprintf("/api/v1/shipments/%d", s.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[ShipmentResponse](t, rec)
	assert.Equal(t, string(domain.StatusAwaitingReturn), resp.Status)
}

// =============================================================================
// Helpers
// =============================================================================

func ptr[T any](v T) *T {
	return &v
}

package api_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/smartkiosk/internal/api"
	"github.com/mcoot/smartkiosk/internal/api/apierr"
	"github.com/mcoot/smartkiosk/internal/api/response"
	"github.com/mcoot/smartkiosk/internal/dependencies/mocks"
	"github.com/mcoot/smartkiosk/internal/factory"
	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/services/auth"
	"github.com/mcoot/smartkiosk/internal/services/session"
	"github.com/mcoot/smartkiosk/internal/testutil"
)

const adminKey = "kiosk_test_admin_key"

// testServer creates a test server with all dependencies
type testServer struct {
	t       *testing.T
	handler http.Handler
	app     *factory.TestApp
	frame   string
	faces   int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hash, err := auth.HashKey(adminKey, bcrypt.MinCost)
	require.NoError(t, err)

	app := factory.NewTestAppWithAdmin(hash)
	t.Cleanup(func() { _ = app.Close() })

	router := api.NewRouter(api.RouterConfig{
		Logger:    testutil.NopLogger(),
		Storage:   app.Storage,
		Registry:  app.Registry,
		Router:    app.Router,
		Registrar: app.Registrar,
		Checkout:  app.Checkout,
		Catalog:   app.Catalog,
		AdminAuth: app.AdminAuth,
		Metrics:   app.Metrics,
	})

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 48)), nil))

	return &testServer{
		t:       t,
		handler: router,
		app:     app,
		frame:   base64.StdEncoding.EncodeToString(buf.Bytes()),
	}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

// connectPending opens a session and shows it a face nobody has registered
// yet, so it awaits registration. Every call uses a different face.
func (ts *testServer) connectPending(id model.SessionID) (*session.Session, *mocks.RecordingConn) {
	conn := mocks.NewRecordingConn()
	s, err := ts.app.Registry.Register(id, conn)
	require.NoError(ts.t, err)

	ts.faces++
	offset := float64(ts.faces) * 10
	ts.app.MockFaces.QueueFaces(model.Face{
		Embedding: []float64{offset + 0.4, 0.5, 0.6},
		BBox:      model.BoundingBox{Left: 8, Top: 8, Right: 40, Bottom: 40},
	})
	require.NoError(ts.t, ts.app.Router.HandleFrame(context.Background(), s, ts.frame))
	require.Equal(ts.t, model.AuthPendingRegistration, s.State())
	return s, conn
}

func (ts *testServer) registerShopper(id model.SessionID, phone string) model.UserProfile {
	ts.connectPending(id)
	rr := ts.request(http.MethodPost, "/api/v1/register", map[string]string{
		"session_id": string(id),
		"name":       "Alice",
		"phone":      phone,
		"birthday":   "1990-05-01",
	}, "")
	require.Equal(ts.t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp response.Register
	require.NoError(ts.t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.User
}

func (ts *testServer) fillCart(s *session.Session, dets ...model.RawDetection) {
	ts.app.MockClock.Advance(time.Second)
	ts.app.MockObjects.SetDetections(dets...)
	require.NoError(ts.t, ts.app.Router.HandleFrame(context.Background(), s, ts.frame))
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp response.Health
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.CatalogSize)
	assert.Equal(t, 0, resp.ActiveSessions)
}

func TestListProducts(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/products", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp response.Products
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, model.ProductID("prod001"), resp.Products[0].ID)
	assert.Equal(t, 0, resp.Products[0].ClassID)
	assert.Equal(t, 200.0, resp.Products[1].Price)
}

func TestRegisterAuthenticatesSession(t *testing.T) {
	ts := newTestServer(t)

	profile := ts.registerShopper("kiosk-1", "0911000111")
	assert.Equal(t, "Alice", profile.Name)
	assert.Equal(t, "0911000111", profile.Contact)
	assert.Equal(t, "1990-05-01", profile.Birthday)
	assert.NotEmpty(t, profile.ID)

	s, ok := ts.app.Registry.Lookup("kiosk-1")
	require.True(t, ok)
	assert.Equal(t, model.AuthAuthenticated, s.State())
	assert.Equal(t, profile.ID, s.UserID())
}

func TestRegisterErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.connectPending("kiosk-1")
	_, err := ts.app.Registry.Register("kiosk-idle", mocks.NewRecordingConn())
	require.NoError(t, err)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"unknown session", map[string]string{"session_id": "nope", "name": "A", "phone": "1"}, http.StatusNotFound, apierr.CodeSessionNotFound},
		{"missing session id", map[string]string{"name": "A", "phone": "1"}, http.StatusBadRequest, apierr.CodeInvalidRequest},
		{"no pending face", map[string]string{"session_id": "kiosk-idle", "name": "A", "phone": "1"}, http.StatusConflict, apierr.CodeNoPendingFace},
		{"missing name", map[string]string{"session_id": "kiosk-1", "phone": "1"}, http.StatusBadRequest, apierr.CodeInvalidName},
		{"missing phone", map[string]string{"session_id": "kiosk-1", "name": "A"}, http.StatusBadRequest, apierr.CodeInvalidContact},
		{"bad birthday", map[string]string{"session_id": "kiosk-1", "name": "A", "phone": "1", "birthday": "01/05/1990"}, http.StatusBadRequest, apierr.CodeInvalidBirthday},
		{"malformed body", "not an object", http.StatusBadRequest, apierr.CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.request(http.MethodPost, "/api/v1/register", tt.body, "")
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.code, errorCode(t, rr))
		})
	}

	// Nothing above changed the pending session
	s, _ := ts.app.Registry.Lookup("kiosk-1")
	assert.Equal(t, model.AuthPendingRegistration, s.State())
}

func TestRegisterDuplicatePhone(t *testing.T) {
	ts := newTestServer(t)
	ts.registerShopper("kiosk-1", "0911000111")
	ts.connectPending("kiosk-2")

	rr := ts.request(http.MethodPost, "/api/v1/register", map[string]string{
		"session_id": "kiosk-2",
		"name":       "Bob",
		"phone":      "0911000111",
	}, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeContactExists, errorCode(t, rr))

	s, ok := ts.app.Registry.Lookup("kiosk-2")
	require.True(t, ok)
	assert.Equal(t, model.AuthPendingRegistration, s.State())
	assert.NotNil(t, s.PendingFace())
	assert.Equal(t, 1, ts.app.FaceIndex.Len())
}

func TestCheckoutFlow(t *testing.T) {
	ts := newTestServer(t)
	profile := ts.registerShopper("kiosk-1", "0911000111")
	s, _ := ts.app.Registry.Lookup("kiosk-1")

	// Empty cart is rejected
	rr := ts.request(http.MethodPost, "/api/v1/checkout", map[string]string{"session_id": "kiosk-1"}, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeCartEmpty, errorCode(t, rr))

	ts.fillCart(s, model.RawDetection{ClassID: 0, Confidence: 0.9})
	ts.fillCart(s, model.RawDetection{ClassID: 0, Confidence: 0.9}, model.RawDetection{ClassID: 1, Confidence: 0.95})

	rr = ts.request(http.MethodGet, "/api/v1/sessions/kiosk-1/cart", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var cart response.Cart
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cart))
	assert.Equal(t, 3, cart.Cart.TotalQuantity)
	assert.Equal(t, 500.0, cart.Cart.TotalAmount)

	rr = ts.request(http.MethodPost, "/api/v1/checkout", map[string]string{"session_id": "kiosk-1"}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var checkout response.Checkout
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &checkout))
	assert.NotEmpty(t, checkout.TransactionID)
	assert.Len(t, checkout.ReceiptCode, 8)
	assert.Equal(t, 3, checkout.TotalQuantity)
	assert.Equal(t, 500.0, checkout.TotalAmount)

	// Cart is empty afterwards
	rr = ts.request(http.MethodGet, "/api/v1/sessions/kiosk-1/cart", nil, "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cart))
	assert.Empty(t, cart.Cart.Lines)

	// History reflects the transaction
	rr = ts.request(http.MethodGet, "/api/v1/users/"+string(profile.ID)+"/transactions", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var history response.Transactions
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &history))
	assert.Equal(t, 1, history.TotalTransactions)
	assert.Equal(t, 500.0, history.TotalSpent)
	require.Len(t, history.Transactions, 1)
	assert.Equal(t, model.TransactionID(checkout.TransactionID), history.Transactions[0].ID)
	assert.Equal(t, "Alice", history.Transactions[0].UserName)

	// The receipt can be fetched on its own
	rr = ts.request(http.MethodGet, "/api/v1/transactions/"+checkout.TransactionID, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var receipt response.Transaction
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &receipt))
	require.NotNil(t, receipt.Transaction)
	assert.Equal(t, checkout.ReceiptCode, receipt.Transaction.ReceiptCode)
	assert.Equal(t, profile.ID, receipt.Transaction.UserID)
	assert.Len(t, receipt.Transaction.Items, 2)
}

func TestTransactionUnknown(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/transactions/ghost", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeTransactionNotFound, errorCode(t, rr))
}

func TestUserInfo(t *testing.T) {
	ts := newTestServer(t)
	profile := ts.registerShopper("kiosk-1", "0911000111")

	rr := ts.request(http.MethodGet, "/api/v1/users/"+string(profile.ID), nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var info response.UserInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	assert.Equal(t, profile.ID, info.User.ID)
	assert.Equal(t, "Alice", info.User.Name)
	assert.Equal(t, "0911000111", info.User.Contact)
	assert.Equal(t, "1990-05-01", info.User.Birthday)
	assert.NotNil(t, info.User.LastVisit)
	assert.True(t, strings.HasPrefix(info.User.Avatar, "data:image/jpeg;base64,"))

	avatar, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(info.User.Avatar, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	_, err = jpeg.Decode(bytes.NewReader(avatar))
	assert.NoError(t, err)
}

func TestUserInfoUnknown(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/users/ghost", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeUserNotFound, errorCode(t, rr))
}

func TestCheckoutRequiresAuthentication(t *testing.T) {
	ts := newTestServer(t)
	ts.connectPending("kiosk-1")

	rr := ts.request(http.MethodPost, "/api/v1/checkout", map[string]string{"session_id": "kiosk-1"}, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeNotAuthenticated, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/checkout", map[string]string{"session_id": "ghost"}, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCartUnknownSession(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/sessions/ghost/cart", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeSessionNotFound, errorCode(t, rr))
}

func TestTransactionsUnknownUser(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/users/ghost/transactions", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeUserNotFound, errorCode(t, rr))
}

func TestTransactionsEmptyHistory(t *testing.T) {
	ts := newTestServer(t)
	profile := ts.registerShopper("kiosk-1", "0911000111")

	rr := ts.request(http.MethodGet, "/api/v1/users/"+string(profile.ID)+"/transactions", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"user_id":"`+string(profile.ID)+`","transactions":[],"total_transactions":0,"total_spent":0}`, rr.Body.String())
}

func TestCatalogReloadRequiresAdminKey(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/admin/catalog/reload", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/admin/catalog/reload", nil, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCatalogReloadPicksUpNewProducts(t *testing.T) {
	ts := newTestServer(t)

	require.NoError(t, ts.app.Storage.SaveProduct(context.Background(), &model.Product{
		ID: "prod003", Name: "Oolong", Price: 120, ClassID: 2, ClassName: "oolong_tea",
	}))

	// Catalog is a snapshot until reloaded
	_, ok := ts.app.Catalog.Resolve(2)
	assert.False(t, ok)

	rr := ts.request(http.MethodPost, "/api/v1/admin/catalog/reload", nil, adminKey)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"products":3}`, rr.Body.String())

	_, ok = ts.app.Catalog.Resolve(2)
	assert.True(t, ok)
}

func TestCatalogReloadDisabledWithoutHash(t *testing.T) {
	app := factory.NewTestApp()
	router := api.NewRouter(api.RouterConfig{
		Logger:    testutil.NopLogger(),
		Storage:   app.Storage,
		Registry:  app.Registry,
		Router:    app.Router,
		Registrar: app.Registrar,
		Checkout:  app.Checkout,
		Catalog:   app.Catalog,
		AdminAuth: app.AdminAuth,
		Metrics:   app.Metrics,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/catalog/reload", nil)
	req.Header.Set("Authorization", "Bearer "+adminKey)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.connectPending("kiosk-1")

	rr := ts.request(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "kiosk_active_sessions 1")
	assert.Contains(t, rr.Body.String(), "kiosk_frames_processed_total")
}

package e2e_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/jpeg"
	"io"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/smartkiosk/internal/api"
	"github.com/mcoot/smartkiosk/internal/dependencies/mocks"
	"github.com/mcoot/smartkiosk/internal/factory"
	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/services/auth"
	"github.com/mcoot/smartkiosk/internal/services/catalog"
	"github.com/mcoot/smartkiosk/internal/testutil"
)

const adminKey = "kiosk_e2e_admin_key"

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(t.TempDir(), "kioskctl-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/kioskctl")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
	}
}

func (r *cliRunner) run(args ...string) (string, error) {
	return r.runWithKey("", args...)
}

func (r *cliRunner) runWithKey(key string, args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--output", "json",
	}, args...)
	if key != "" {
		fullArgs = append(fullArgs, "--admin-key", key)
	}

	cmd := exec.Command(r.binaryPath, fullArgs...)
	// Keep the caller's environment from leaking an admin key in
	cmd.Env = append(os.Environ(), "KIOSK_ADMIN_KEY=")
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer runs the full router over a real listener
type testServer struct {
	app *factory.TestApp
	url string
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	hash, err := auth.HashKey(adminKey, bcrypt.MinCost)
	require.NoError(t, err)

	app := factory.NewTestAppWithAdmin(hash)

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

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		_ = app.Close()
		server.Close()
	})

	return &testServer{app: app, url: server.URL}
}

func testFrame(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 48)), nil))
	return buf.Bytes()
}

func unknownFace() model.Face {
	return model.Face{
		Embedding: []float64{0.4, 0.5, 0.6},
		BBox:      model.BoundingBox{Left: 8, Top: 8, Right: 40, Bottom: 40},
	}
}

// openPendingSession registers a session in-process and shows it an unknown face
func (ts *testServer) openPendingSession(t *testing.T, id model.SessionID, frame []byte) {
	t.Helper()

	_, err := ts.app.Registry.Register(id, mocks.NewRecordingConn())
	require.NoError(t, err)
	s, _ := ts.app.Registry.Lookup(id)

	ts.app.MockFaces.QueueFaces(unknownFace())
	payload := "data:image/jpeg;base64," + encodeBase64(frame)
	require.NoError(t, ts.app.Router.HandleFrame(context.Background(), s, payload))
	require.Equal(t, model.AuthPendingRegistration, s.State())
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func decodeAll[T any](t *testing.T, output string) []T {
	t.Helper()
	var values []T
	dec := json.NewDecoder(strings.NewReader(output))
	for {
		var v T
		err := dec.Decode(&v)
		if err == io.EOF {
			return values
		}
		require.NoError(t, err, "output: %s", output)
		values = append(values, v)
	}
}

// Response types for JSON parsing
type healthResponse struct {
	Status      string `json:"status"`
	CatalogSize int    `json:"catalog_size"`
}

type productsResponse struct {
	Count int `json:"count"`
}

type registerResponse struct {
	User struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
}

type cartResponse struct {
	Cart struct {
		Items         []json.RawMessage `json:"items"`
		TotalQuantity int               `json:"total_quantity"`
	} `json:"cart"`
}

type checkoutResponse struct {
	TransactionID string `json:"transaction_id"`
	ReceiptCode   string `json:"receipt_code"`
	TotalQuantity int    `json:"total_quantity"`
}

type historyResponse struct {
	TotalTransactions int `json:"total_transactions"`
}

type receiptResponse struct {
	Transaction struct {
		ID          string `json:"id"`
		ReceiptCode string `json:"receipt_code"`
	} `json:"transaction"`
}

type userInfoResponse struct {
	User struct {
		ID        string  `json:"id"`
		Name      string  `json:"name"`
		LastVisit *string `json:"last_visit"`
		Avatar    string  `json:"avatar"`
	} `json:"user"`
}

type streamEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	cli := newCLIRunner(t, ts.url)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Positive(t, resp.CatalogSize)
}

func TestCLI_Products(t *testing.T) {
	ts := startTestServer(t)
	cli := newCLIRunner(t, ts.url)

	output, err := cli.run("products")
	require.NoError(t, err, "output: %s", output)

	var resp productsResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, len(catalog.DefaultProducts()), resp.Count)
}

func TestCLI_ShoppingFlow(t *testing.T) {
	ts := startTestServer(t)
	cli := newCLIRunner(t, ts.url)
	frame := testFrame(t)

	ts.openPendingSession(t, "kiosk-e2e", frame)

	output, err := cli.run("register", "kiosk-e2e", "--name", "Alice", "--phone", "0911222333")
	require.NoError(t, err, "output: %s", output)
	var reg registerResponse
	require.NoError(t, json.Unmarshal([]byte(output), &reg))
	assert.Equal(t, "Alice", reg.User.Name)
	require.NotEmpty(t, reg.User.ID)

	// Put something in the cart
	s, ok := ts.app.Registry.Lookup("kiosk-e2e")
	require.True(t, ok)
	ts.app.MockObjects.SetDetections(model.RawDetection{ClassID: 0, Confidence: 0.9})
	require.NoError(t, ts.app.Router.HandleFrame(context.Background(), s, encodeBase64(frame)))

	output, err = cli.run("cart", "kiosk-e2e")
	require.NoError(t, err, "output: %s", output)
	var cart cartResponse
	require.NoError(t, json.Unmarshal([]byte(output), &cart))
	assert.Equal(t, 1, cart.Cart.TotalQuantity)

	output, err = cli.run("checkout", "kiosk-e2e")
	require.NoError(t, err, "output: %s", output)
	var checkout checkoutResponse
	require.NoError(t, json.Unmarshal([]byte(output), &checkout))
	assert.NotEmpty(t, checkout.TransactionID)
	assert.Equal(t, 1, checkout.TotalQuantity)

	output, err = cli.run("transactions", reg.User.ID)
	require.NoError(t, err, "output: %s", output)
	var history historyResponse
	require.NoError(t, json.Unmarshal([]byte(output), &history))
	assert.Equal(t, 1, history.TotalTransactions)

	output, err = cli.run("receipt", checkout.TransactionID)
	require.NoError(t, err, "output: %s", output)
	var receipt receiptResponse
	require.NoError(t, json.Unmarshal([]byte(output), &receipt))
	assert.Equal(t, checkout.TransactionID, receipt.Transaction.ID)
	assert.Equal(t, checkout.ReceiptCode, receipt.Transaction.ReceiptCode)

	output, err = cli.run("user", reg.User.ID)
	require.NoError(t, err, "output: %s", output)
	var info userInfoResponse
	require.NoError(t, json.Unmarshal([]byte(output), &info))
	assert.Equal(t, "Alice", info.User.Name)
	assert.NotNil(t, info.User.LastVisit)
	assert.True(t, strings.HasPrefix(info.User.Avatar, "data:image/jpeg;base64,"))
}

func TestCLI_CheckoutErrorsExitNonZero(t *testing.T) {
	ts := startTestServer(t)
	cli := newCLIRunner(t, ts.url)

	output, err := cli.run("checkout", "no-such-session")
	require.Error(t, err)
	assert.Contains(t, output, "SESSION_NOT_FOUND")
}

func TestCLI_CatalogReload(t *testing.T) {
	ts := startTestServer(t)
	cli := newCLIRunner(t, ts.url)

	_, err := cli.run("catalog", "reload")
	require.Error(t, err, "reload without a key must fail")

	output, err := cli.runWithKey("wrong", "catalog", "reload")
	require.Error(t, err)
	assert.Contains(t, output, "UNAUTHORIZED")

	output, err = cli.runWithKey(adminKey, "catalog", "reload")
	require.NoError(t, err, "output: %s", output)
	assert.Contains(t, output, `"products"`)
}

func TestCLI_AdminHashKey(t *testing.T) {
	ts := startTestServer(t)
	cli := newCLIRunner(t, ts.url)

	output, err := cli.run("admin", "hash-key", "secret-key")
	require.NoError(t, err, "output: %s", output)

	var msg struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &msg))

	svc, err := auth.New(msg.Message, testutil.NopLogger())
	require.NoError(t, err)
	assert.NoError(t, svc.Verify("secret-key"))
}

func TestCLI_StreamReportsUnknownFace(t *testing.T) {
	ts := startTestServer(t)
	cli := newCLIRunner(t, ts.url)

	imagePath := filepath.Join(t.TempDir(), "frame.jpg")
	require.NoError(t, os.WriteFile(imagePath, testFrame(t), 0o600))

	ts.app.MockFaces.QueueFaces(unknownFace())

	output, err := cli.run("stream", "kiosk-stream",
		"--image", imagePath,
		"--count", "1",
		"--interval", "50ms",
		"--linger", "500ms",
	)
	require.NoError(t, err, "output: %s", output)

	events := decodeAll[streamEvent](t, output)
	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, string(model.EventFaceDetected))

	// The session is gone once the stream closes
	assert.Eventually(t, func() bool {
		_, ok := ts.app.Registry.Lookup("kiosk-stream")
		return !ok
	}, 2*time.Second, 20*time.Millisecond)
}

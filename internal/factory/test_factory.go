package factory

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/mcoot/smartkiosk/internal/dependencies/mocks"
	"github.com/mcoot/smartkiosk/internal/services/auth"
	"github.com/mcoot/smartkiosk/internal/services/catalog"
	"github.com/mcoot/smartkiosk/internal/storage/memory"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock   *mocks.MockClock
	MockRandom  *mocks.MockRandom
	MockFaces   *mocks.MockFaceDetector
	MockObjects *mocks.MockObjectDetector
	Store       *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// The catalog holds the built-in products and admin access is disabled.
func NewTestApp() *TestApp {
	return NewTestAppWithAdmin("")
}

// NewTestAppWithAdmin is NewTestApp with admin access guarded by adminKeyHash
func NewTestAppWithAdmin(adminKeyHash string) *TestApp {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	faces := mocks.NewMockFaceDetector()
	objects := mocks.NewMockObjectDetector()

	adminAuth, err := auth.New(adminKeyHash, logger)
	if err != nil {
		panic(err)
	}

	app := newWithDependencies(store, mockClock, mockRandom, faces, objects, adminAuth, DefaultConfig(), logger)
	if err := app.Bootstrap(context.Background(), catalog.DefaultProducts()); err != nil {
		panic(err)
	}

	return &TestApp{
		App:         app,
		MockClock:   mockClock,
		MockRandom:  mockRandom,
		MockFaces:   faces,
		MockObjects: objects,
		Store:       store,
	}
}

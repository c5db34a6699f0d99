package identity

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/smartkiosk/internal/dependencies/mocks"
	"github.com/mcoot/smartkiosk/internal/inference/matcher"
	"github.com/mcoot/smartkiosk/internal/metrics"
	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/services/notify"
	"github.com/mcoot/smartkiosk/internal/services/session"
	"github.com/mcoot/smartkiosk/internal/storage"
	"github.com/mcoot/smartkiosk/internal/storage/memory"
	"github.com/mcoot/smartkiosk/internal/testutil"
)

var faceBox = model.BoundingBox{Left: 4, Top: 4, Right: 12, Bottom: 12}

func testFrame() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	img.Set(5, 5, color.White)
	return img
}

type StageSuite struct {
	suite.Suite
	ctx      context.Context
	clock    *mocks.MockClock
	storage  *memory.Storage
	detector *mocks.MockFaceDetector
	matcher  *mocks.MockFaceMatcher
	registry *session.Registry
	conn     *mocks.RecordingConn
	session  *session.Session
	stage    *Stage
}

func TestStageSuite(t *testing.T) {
	suite.Run(t, new(StageSuite))
}

func (s *StageSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = mocks.NewMockClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	s.storage = memory.New()
	s.detector = mocks.NewMockFaceDetector()
	s.matcher = mocks.NewMockFaceMatcher()
	m := metrics.New()
	s.registry = session.NewRegistry(s.clock, m, testutil.NopLogger())
	bus := notify.New(s.registry, s.clock, m, testutil.NopLogger())
	s.stage = NewStage(DefaultConfig(), s.detector, s.matcher, s.storage, bus, s.clock, m, testutil.NopLogger())

	s.conn = mocks.NewRecordingConn()
	s.session, _ = s.registry.Register("kiosk-1", s.conn)
	s.session.Lock()

	_ = s.storage.CreateUser(s.ctx, &model.User{ID: "alice", Name: "Alice", Contact: "0911000111", Embedding: []float64{0, 0}})
}

func (s *StageSuite) TearDownTest() {
	s.session.Unlock()
}

func (s *StageSuite) processWithDistance(d float64) {
	s.detector.QueueFaces(model.Face{Embedding: []float64{d, 0}, BBox: faceBox})
	s.matcher.SetMatch("alice", d)
	s.Require().NoError(s.stage.Process(s.ctx, s.session, testFrame()))
}

func (s *StageSuite) TestMatchBelowToleranceAuthenticates() {
	s.processWithDistance(0.55)

	s.Equal(model.AuthAuthenticated, s.session.State())
	s.Equal(model.UserID("alice"), s.session.UserID())

	events := s.conn.Events()
	s.Require().Len(events, 1)
	s.Equal(model.EventUserLogin, events[0].Type)
	payload := events[0].Payload.(model.UserLoginPayload)
	s.False(payload.IsNew)
	s.Equal("Alice", payload.User.Name)
	s.Require().NotNil(payload.BBox)
	s.Equal(faceBox, *payload.BBox)

	user, _ := s.storage.GetUser(s.ctx, "alice")
	s.Require().NotNil(user.LastVisit)
	s.Equal(s.clock.Now(), *user.LastVisit)
}

func (s *StageSuite) TestMatchAtToleranceIsRejected() {
	s.processWithDistance(0.60)

	s.Equal(model.AuthPendingRegistration, s.session.State())
	s.Empty(s.session.UserID())
	s.Require().NotNil(s.session.PendingFace())
	s.Equal(faceBox, s.session.PendingFace().BBox)
	s.NotEmpty(s.session.PendingFace().Image)

	events := s.conn.Events()
	s.Require().Len(events, 1)
	s.Equal(model.EventFaceDetected, events[0].Type)
	payload := events[0].Payload.(model.FaceDetectedPayload)
	s.Equal(model.ActionRegisterPrompt, payload.Action)
	s.Equal(faceBox, payload.BBox)
}

func (s *StageSuite) TestMatchAboveToleranceIsRejected() {
	s.processWithDistance(0.65)
	s.Equal(model.AuthPendingRegistration, s.session.State())
}

func (s *StageSuite) TestNoKnownIdentitiesPromptsRegistration() {
	s.detector.QueueFaces(model.Face{Embedding: []float64{1}, BBox: faceBox})

	s.Require().NoError(s.stage.Process(s.ctx, s.session, testFrame()))
	s.Equal(model.AuthPendingRegistration, s.session.State())
}

func (s *StageSuite) TestNoFaceEmitsStatusOnly() {
	s.Require().NoError(s.stage.Process(s.ctx, s.session, testFrame()))

	s.Equal(model.AuthAnonymous, s.session.State())
	events := s.conn.Events()
	s.Require().Len(events, 1)
	s.Equal(model.EventFaceStatus, events[0].Type)
	s.False(events[0].Payload.(model.FaceStatusPayload).Detected)
}

func (s *StageSuite) TestOnlyFirstFaceIsMatched() {
	s.detector.QueueFaces(
		model.Face{Embedding: []float64{9, 9}, BBox: faceBox},
		model.Face{Embedding: []float64{0, 0}, BBox: faceBox},
	)

	s.Require().NoError(s.stage.Process(s.ctx, s.session, testFrame()))
	s.Require().Len(s.matcher.Probes, 1)
	s.Equal([]float64{9, 9}, s.matcher.Probes[0])
}

func (s *StageSuite) TestLatestPendingFaceWins() {
	s.detector.QueueFaces(model.Face{Embedding: []float64{1}, BBox: faceBox})
	s.detector.QueueFaces(model.Face{Embedding: []float64{2}, BBox: faceBox})

	_ = s.stage.Process(s.ctx, s.session, testFrame())
	_ = s.stage.Process(s.ctx, s.session, testFrame())

	s.Equal([]float64{2}, s.session.PendingFace().Embedding)
}

func (s *StageSuite) TestQueuedFaceIsSeenOnce() {
	s.detector.QueueFaces(model.Face{Embedding: []float64{1}, BBox: faceBox})

	s.Require().NoError(s.stage.Process(s.ctx, s.session, testFrame()))
	s.conn.Reset()
	s.Require().NoError(s.stage.Process(s.ctx, s.session, testFrame()))

	events := s.conn.Events()
	s.Require().Len(events, 1)
	s.Equal(model.EventFaceStatus, events[0].Type)
	s.False(events[0].Payload.(model.FaceStatusPayload).Detected)
	s.Equal(model.AuthPendingRegistration, s.session.State())
}

func (s *StageSuite) TestDetectorFailureLeavesStateUnchanged() {
	s.detector.Err = errors.New("model crashed")

	err := s.stage.Process(s.ctx, s.session, testFrame())
	s.ErrorIs(err, model.ErrInference)
	s.Equal(model.AuthAnonymous, s.session.State())
	s.Empty(s.conn.Events())
}

func (s *StageSuite) TestMatcherFailureLeavesStateUnchanged() {
	s.detector.QueueFaces(model.Face{Embedding: []float64{1}, BBox: faceBox})
	s.matcher.Err = errors.New("index unavailable")

	err := s.stage.Process(s.ctx, s.session, testFrame())
	s.ErrorIs(err, model.ErrInference)
	s.Equal(model.AuthAnonymous, s.session.State())
	s.Nil(s.session.PendingFace())
}

func (s *StageSuite) TestCropOutsideFrameStillPrompts() {
	s.detector.QueueFaces(model.Face{Embedding: []float64{1}, BBox: model.BoundingBox{Left: 100, Top: 100, Right: 120, Bottom: 120}})

	s.Require().NoError(s.stage.Process(s.ctx, s.session, testFrame()))
	s.Equal(model.AuthPendingRegistration, s.session.State())
	s.Empty(s.session.PendingFace().Image)
}

type RegistrarSuite struct {
	suite.Suite
	ctx       context.Context
	clock     *mocks.MockClock
	storage   *memory.Storage
	index     *matcher.Index
	registry  *session.Registry
	conn      *mocks.RecordingConn
	session   *session.Session
	registrar *Registrar
}

func TestRegistrarSuite(t *testing.T) {
	suite.Run(t, new(RegistrarSuite))
}

func (s *RegistrarSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = mocks.NewMockClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	s.storage = memory.New()
	s.index = matcher.New()
	m := metrics.New()
	s.registry = session.NewRegistry(s.clock, m, testutil.NopLogger())
	bus := notify.New(s.registry, s.clock, m, testutil.NopLogger())
	s.registrar = NewRegistrar(s.registry, s.storage, s.index, bus, s.clock, testutil.NopLogger())

	s.conn = mocks.NewRecordingConn()
	s.session, _ = s.registry.Register("kiosk-1", s.conn)
}

func (s *RegistrarSuite) givePendingFace() {
	s.session.Lock()
	s.session.SetPendingFace(&model.PendingFace{Embedding: []float64{0.1, 0.2}, Image: []byte{0xff, 0xd8}, BBox: faceBox})
	s.session.Unlock()
}

func (s *RegistrarSuite) TestRegisterSucceeds() {
	s.givePendingFace()

	user, err := s.registrar.Register(s.ctx, RegisterRequest{
		SessionID: "kiosk-1",
		Name:      " Bob ",
		Contact:   "0922000222",
		Birthday:  "1995-04-01",
	})
	s.Require().NoError(err)
	s.Equal("Bob", user.Name)
	s.Require().NotNil(user.Birthday)
	s.Equal("1995-04-01", user.Profile().Birthday)

	stored, err := s.storage.GetUserByContact(s.ctx, "0922000222")
	s.Require().NoError(err)
	s.Equal(user.ID, stored.ID)
	s.Equal([]float64{0.1, 0.2}, stored.Embedding)
	s.Equal([]byte{0xff, 0xd8}, stored.FaceImage)

	// The new face is immediately matchable
	m, _ := s.index.Match(s.ctx, []float64{0.1, 0.2})
	s.True(m.Found)
	s.Equal(user.ID, m.UserID)

	s.session.Lock()
	s.Equal(model.AuthAuthenticated, s.session.State())
	s.Equal(user.ID, s.session.UserID())
	s.Nil(s.session.PendingFace())
	s.session.Unlock()

	events := s.conn.Events()
	s.Require().Len(events, 1)
	s.Equal(model.EventUserLogin, events[0].Type)
	s.True(events[0].Payload.(model.UserLoginPayload).IsNew)
}

func (s *RegistrarSuite) TestRegisterUnknownSession() {
	_, err := s.registrar.Register(s.ctx, RegisterRequest{SessionID: "missing", Name: "Bob", Contact: "1"})
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *RegistrarSuite) TestRegisterWithoutPendingFace() {
	_, err := s.registrar.Register(s.ctx, RegisterRequest{SessionID: "kiosk-1", Name: "Bob", Contact: "1"})
	s.ErrorIs(err, model.ErrNoPendingFace)
	s.ErrorIs(err, model.ErrValidation)
}

func (s *RegistrarSuite) TestRegisterDuplicateContact() {
	_ = s.storage.CreateUser(s.ctx, &model.User{ID: "alice", Contact: "0911000111"})
	s.givePendingFace()

	_, err := s.registrar.Register(s.ctx, RegisterRequest{SessionID: "kiosk-1", Name: "Bob", Contact: "0911000111"})
	s.ErrorIs(err, model.ErrContactExists)

	s.session.Lock()
	s.Equal(model.AuthPendingRegistration, s.session.State())
	s.NotNil(s.session.PendingFace())
	s.session.Unlock()
	s.Zero(s.index.Len())
	s.Empty(s.conn.Events())
}

// contactStorage overrides the contact lookup and counts inserts
type contactStorage struct {
	storage.Storage
	lookupErr error
	creates   int
}

func (c *contactStorage) GetUserByContact(ctx context.Context, contact string) (*model.User, error) {
	if c.lookupErr != nil {
		return nil, c.lookupErr
	}
	return c.Storage.GetUserByContact(ctx, contact)
}

func (c *contactStorage) CreateUser(ctx context.Context, user *model.User) error {
	c.creates++
	return c.Storage.CreateUser(ctx, user)
}

func (s *RegistrarSuite) useStorage(users storage.Storage) {
	m := metrics.New()
	bus := notify.New(s.registry, s.clock, m, testutil.NopLogger())
	s.registrar = NewRegistrar(s.registry, users, s.index, bus, s.clock, testutil.NopLogger())
}

func (s *RegistrarSuite) TestRegisterTakenContactSkipsInsert() {
	_ = s.storage.CreateUser(s.ctx, &model.User{ID: "alice", Contact: "0911000111"})
	users := &contactStorage{Storage: s.storage}
	s.useStorage(users)
	s.givePendingFace()

	_, err := s.registrar.Register(s.ctx, RegisterRequest{SessionID: "kiosk-1", Name: "Bob", Contact: "0911000111"})
	s.ErrorIs(err, model.ErrContactExists)
	s.Zero(users.creates)
}

func (s *RegistrarSuite) TestRegisterContactTakenDuringRegistration() {
	// The lookup misses but the insert loses the race
	users := &contactStorage{Storage: s.storage, lookupErr: model.ErrUserNotFound}
	_ = s.storage.CreateUser(s.ctx, &model.User{ID: "alice", Contact: "0911000111"})
	s.useStorage(users)
	s.givePendingFace()

	_, err := s.registrar.Register(s.ctx, RegisterRequest{SessionID: "kiosk-1", Name: "Bob", Contact: "0911000111"})
	s.ErrorIs(err, model.ErrContactExists)
	s.Equal(1, users.creates)
	s.Equal(model.AuthPendingRegistration, s.session.State())
}

func (s *RegistrarSuite) TestRegisterContactLookupFailure() {
	users := &contactStorage{Storage: s.storage, lookupErr: errors.New("connection refused")}
	s.useStorage(users)
	s.givePendingFace()

	_, err := s.registrar.Register(s.ctx, RegisterRequest{SessionID: "kiosk-1", Name: "Bob", Contact: "0922000222"})
	s.ErrorIs(err, model.ErrPersistence)
	s.Zero(users.creates)
	s.Equal(model.AuthPendingRegistration, s.session.State())
}

func (s *RegistrarSuite) TestRegisterValidatesFields() {
	s.givePendingFace()

	cases := []struct {
		req RegisterRequest
		err error
	}{
		{RegisterRequest{SessionID: "kiosk-1", Contact: "1"}, model.ErrInvalidName},
		{RegisterRequest{SessionID: "kiosk-1", Name: "Bob"}, model.ErrInvalidContact},
		{RegisterRequest{SessionID: "kiosk-1", Name: "Bob", Contact: "1", Birthday: "01/04/1995"}, model.ErrInvalidBirthday},
	}
	for _, tc := range cases {
		_, err := s.registrar.Register(s.ctx, tc.req)
		s.ErrorIs(err, tc.err)
	}
}

func (s *RegistrarSuite) TestRegisterAlreadyAuthenticated() {
	s.session.Lock()
	s.session.Authenticate("alice")
	s.session.Unlock()

	_, err := s.registrar.Register(s.ctx, RegisterRequest{SessionID: "kiosk-1", Name: "Bob", Contact: "1"})
	s.ErrorIs(err, model.ErrAlreadyAuthenticated)
}

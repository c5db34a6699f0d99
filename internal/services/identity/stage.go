// Package identity authenticates shoppers from camera frames and registers
// new shoppers from a pending face.
package identity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"log/slog"

	"github.com/mcoot/smartkiosk/internal/dependencies/clock"
	"github.com/mcoot/smartkiosk/internal/inference"
	"github.com/mcoot/smartkiosk/internal/metrics"
	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/services/session"
	"github.com/mcoot/smartkiosk/internal/storage"
)

// StageName labels this stage in metrics and traces
const StageName = "identity"

// Emitter delivers an event to a session
type Emitter interface {
	Emit(s *session.Session, eventType model.EventType, payload any)
}

// Config holds matching settings
type Config struct {
	// Tolerance is the largest embedding distance accepted as a match.
	// The comparison is strict: a distance equal to Tolerance does not match.
	Tolerance float64
}

// DefaultConfig returns the default matching settings
func DefaultConfig() Config {
	return Config{Tolerance: 0.6}
}

// Stage turns a frame into a login or a registration prompt
type Stage struct {
	cfg      Config
	detector inference.FaceDetector
	matcher  inference.FaceMatcher
	users    storage.Storage
	bus      Emitter
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewStage creates the authentication stage
func NewStage(
	cfg Config,
	detector inference.FaceDetector,
	matcher inference.FaceMatcher,
	users storage.Storage,
	bus Emitter,
	clock clock.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Stage {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultConfig().Tolerance
	}
	return &Stage{
		cfg:      cfg,
		detector: detector,
		matcher:  matcher,
		users:    users,
		bus:      bus,
		clock:    clock,
		metrics:  m,
		logger:   logger.With(slog.String("component", "identity-stage")),
	}
}

// inferenceError wraps a collaborator failure as model.ErrInference
func inferenceError(op string, err error) error {
	if errors.Is(err, model.ErrInference) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", model.ErrInference, op, err)
}

// Process runs face detection and matching on frame. Only the first face
// the detector returns is considered. On error the session is unchanged.
// Requires the session lock.
func (st *Stage) Process(ctx context.Context, s *session.Session, frame image.Image) error {
	faces, err := st.detector.DetectFaces(ctx, frame)
	if err != nil {
		st.metrics.InferenceError(StageName)
		return inferenceError("detect faces", err)
	}
	if len(faces) == 0 {
		st.bus.Emit(s, model.EventFaceStatus, model.FaceStatusPayload{Detected: false})
		return nil
	}
	face := faces[0]

	match, err := st.matcher.Match(ctx, face.Embedding)
	if err != nil {
		st.metrics.InferenceError(StageName)
		return inferenceError("match face", err)
	}

	if match.Found && match.Distance < st.cfg.Tolerance {
		return st.login(ctx, s, match, face.BBox)
	}
	return st.promptRegistration(s, frame, face)
}

func (st *Stage) login(ctx context.Context, s *session.Session, match model.FaceMatch, bbox model.BoundingBox) error {
	user, err := st.users.GetUser(ctx, match.UserID)
	if err != nil {
		return fmt.Errorf("%w: load matched user %s: %v", model.ErrPersistence, match.UserID, err)
	}

	s.Authenticate(user.ID)

	now := st.clock.Now()
	if err := st.users.TouchUserLastVisit(ctx, user.ID, now); err != nil {
		st.logger.Warn("failed to record last visit",
			slog.String("user_id", string(user.ID)),
			slog.String("error", err.Error()),
		)
	} else {
		user.LastVisit = &now
	}

	st.logger.Info("user logged in by face",
		slog.String("session_id", string(s.ID)),
		slog.String("user_id", string(user.ID)),
		slog.Float64("distance", match.Distance),
	)
	st.bus.Emit(s, model.EventUserLogin, model.UserLoginPayload{
		User:  user.Profile(),
		IsNew: false,
		BBox:  &bbox,
	})
	return nil
}

func (st *Stage) promptRegistration(s *session.Session, frame image.Image, face model.Face) error {
	crop, err := CropJPEG(frame, face.BBox)
	if err != nil {
		// Registration still works without a stored crop
		st.logger.Warn("failed to crop face",
			slog.String("session_id", string(s.ID)),
			slog.String("error", err.Error()),
		)
	}

	s.SetPendingFace(&model.PendingFace{
		Embedding: face.Embedding,
		Image:     crop,
		BBox:      face.BBox,
	})

	st.logger.Debug("unknown face, prompting registration", slog.String("session_id", string(s.ID)))
	st.bus.Emit(s, model.EventFaceDetected, model.FaceDetectedPayload{
		Action: model.ActionRegisterPrompt,
		BBox:   face.BBox,
	})
	return nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// CropJPEG cuts bbox (clipped to the frame) out of frame and encodes it
func CropJPEG(frame image.Image, bbox model.BoundingBox) ([]byte, error) {
	r := bbox.Rect().Intersect(frame.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("face box %v outside frame %v", bbox.Rect(), frame.Bounds())
	}

	var crop image.Image
	if si, ok := frame.(subImager); ok {
		crop = si.SubImage(r)
	} else {
		dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
		draw.Draw(dst, dst.Bounds(), frame, r.Min, draw.Src)
		crop = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, crop, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

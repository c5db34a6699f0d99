// Package framegate throttles and decodes inbound camera frames.
package framegate

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders
	_ "image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/mcoot/smartkiosk/internal/dependencies/clock"
	"github.com/mcoot/smartkiosk/internal/metrics"
	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/services/session"
)

// ErrDropped is returned for a frame that arrived inside its throttle window.
// It is an outcome, not a failure.
var ErrDropped = errors.New("frame dropped by throttle")

// Config holds the per-kind minimum intervals
type Config struct {
	DetectInterval time.Duration
	AuthInterval   time.Duration
}

// DefaultConfig returns the default throttle intervals
func DefaultConfig() Config {
	return Config{
		DetectInterval: 200 * time.Millisecond,
		AuthInterval:   time.Second,
	}
}

// Gate admits at most one frame per interval per session per kind
type Gate struct {
	cfg     Config
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Gate; zero intervals fall back to the defaults
func New(cfg Config, clock clock.Clock, m *metrics.Metrics, logger *slog.Logger) *Gate {
	def := DefaultConfig()
	if cfg.DetectInterval <= 0 {
		cfg.DetectInterval = def.DetectInterval
	}
	if cfg.AuthInterval <= 0 {
		cfg.AuthInterval = def.AuthInterval
	}
	return &Gate{
		cfg:     cfg,
		clock:   clock,
		metrics: m,
		logger:  logger.With(slog.String("component", "frame-gate")),
	}
}

func (g *Gate) interval(kind session.Kind) time.Duration {
	if kind == session.KindAuth {
		return g.cfg.AuthInterval
	}
	return g.cfg.DetectInterval
}

// Admit applies the throttle for kind and decodes payload. It returns
// ErrDropped if the interval has not elapsed since the last admitted frame of
// the same kind, or an error wrapping model.ErrDecode if the payload is not an
// image. The window is claimed before decoding, so an undecodable frame still
// consumes it. Requires the session lock.
func (g *Gate) Admit(s *session.Session, payload string, kind session.Kind) (image.Image, error) {
	now := g.clock.Now()
	if last, ok := s.LastAdmitted(kind); ok && now.Sub(last) < g.interval(kind) {
		g.metrics.FrameDropped(metrics.DropThrottled)
		return nil, ErrDropped
	}
	s.MarkAdmitted(kind, now)

	img, err := Decode(payload)
	if err != nil {
		g.metrics.FrameDropped(metrics.DropDecode)
		g.logger.Debug("frame decode failed",
			slog.String("session_id", string(s.ID)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return img, nil
}

// Decode turns a base64 image payload into an image. Anything up to and
// including the first comma (a data URL header) is discarded first.
func Decode(payload string) (image.Image, error) {
	if i := strings.IndexByte(payload, ','); i >= 0 {
		payload = payload[i+1:]
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, model.ErrEmptyFrame
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some clients strip padding
		var rawErr error
		raw, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if rawErr != nil {
			return nil, fmt.Errorf("%w: invalid base64: %v", model.ErrDecode, err)
		}
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid image: %v", model.ErrDecode, err)
	}
	return img, nil
}

// Package detection recognizes products in camera frames and feeds the cart.
package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/mcoot/smartkiosk/internal/inference"
	"github.com/mcoot/smartkiosk/internal/metrics"
	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/services/session"
)

// StageName labels this stage in metrics and traces
const StageName = "detection"

// Resolver maps a detector class to a catalog product
type Resolver interface {
	Resolve(classID int) (model.Product, bool)
}

// Emitter delivers an event to a session
type Emitter interface {
	Emit(s *session.Session, eventType model.EventType, payload any)
}

// Config holds detection settings
type Config struct {
	// ConfidenceFloor discards detections scoring below it
	ConfidenceFloor float64
}

// DefaultConfig returns the default detection settings
func DefaultConfig() Config {
	return Config{ConfidenceFloor: 0.85}
}

// Stage turns a frame into detections and cart additions
type Stage struct {
	cfg      Config
	detector inference.ObjectDetector
	catalog  Resolver
	bus      Emitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewStage creates the detection stage
func NewStage(cfg Config, detector inference.ObjectDetector, catalog Resolver, bus Emitter, m *metrics.Metrics, logger *slog.Logger) *Stage {
	if cfg.ConfidenceFloor <= 0 {
		cfg.ConfidenceFloor = DefaultConfig().ConfidenceFloor
	}
	return &Stage{
		cfg:      cfg,
		detector: detector,
		catalog:  catalog,
		bus:      bus,
		metrics:  m,
		logger:   logger.With(slog.String("component", "detection-stage")),
	}
}

// Process detects objects in frame. Surviving detections are reported in one
// detections event; each one that maps to a product is added to the cart,
// followed by cart_updated and product_added events. Frames with nothing
// above the floor produce no events. Requires the session lock.
func (st *Stage) Process(ctx context.Context, s *session.Session, frame image.Image) error {
	raw, err := st.detector.Detect(ctx, frame)
	if err != nil {
		st.metrics.InferenceError(StageName)
		if errors.Is(err, model.ErrInference) {
			return fmt.Errorf("detect objects: %w", err)
		}
		return fmt.Errorf("%w: detect objects: %v", model.ErrInference, err)
	}

	detections := st.filter(raw)
	if len(detections) == 0 {
		return nil
	}

	st.bus.Emit(s, model.EventDetections, model.DetectionsPayload{Detections: detections})

	for _, d := range detections {
		if d.Product == nil {
			continue
		}
		summary := s.Cart().AddItem(*d.Product)
		st.metrics.ProductAdded()

		st.logger.Debug("product added to cart",
			slog.String("session_id", string(s.ID)),
			slog.String("product_id", string(d.Product.ID)),
			slog.Float64("confidence", d.Confidence),
		)
		st.bus.Emit(s, model.EventCartUpdated, model.CartUpdatedPayload{Cart: summary})
		st.bus.Emit(s, model.EventProductAdded, model.ProductAddedPayload{
			Product:    *d.Product,
			Confidence: d.Confidence,
		})
	}
	return nil
}

// filter drops low-confidence detections and resolves the rest
func (st *Stage) filter(raw []model.RawDetection) []model.Detection {
	out := make([]model.Detection, 0, len(raw))
	for _, r := range raw {
		if r.Confidence < st.cfg.ConfidenceFloor {
			continue
		}
		d := model.Detection{
			ClassID:    r.ClassID,
			ClassName:  r.ClassName,
			Confidence: r.Confidence,
			BBox:       r.BBox,
		}
		if p, ok := st.catalog.Resolve(r.ClassID); ok {
			d.Product = &p
		}
		out = append(out, d)
	}
	return out
}

// Package inference defines the model collaborators consumed by the session
// pipeline. Implementations live in subpackages; the pipeline only orchestrates
// calls to them.
package inference

import (
	"context"
	"image"

	"github.com/mcoot/smartkiosk/internal/model"
)

// FaceDetector finds faces in a frame and returns their embeddings.
// Faces are returned in detector order; callers must not assume any ranking.
type FaceDetector interface {
	DetectFaces(ctx context.Context, frame image.Image) ([]model.Face, error)
}

// FaceMatcher returns the closest known identity for an embedding.
// It never applies a tolerance; that decision belongs to the caller.
type FaceMatcher interface {
	Match(ctx context.Context, embedding []float64) (model.FaceMatch, error)
}

// ObjectDetector finds catalog objects in a frame
type ObjectDetector interface {
	Detect(ctx context.Context, frame image.Image) ([]model.RawDetection, error)
}

// Null is the backend used when no model process is configured.
// It never finds anything.
type Null struct{}

var (
	_ FaceDetector   = Null{}
	_ ObjectDetector = Null{}
)

func (Null) DetectFaces(ctx context.Context, frame image.Image) ([]model.Face, error) {
	return nil, nil
}

func (Null) Detect(ctx context.Context, frame image.Image) ([]model.RawDetection, error) {
	return nil, nil
}

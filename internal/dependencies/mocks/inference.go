package mocks

import (
	"context"
	"image"
	"sync"

	"github.com/mcoot/smartkiosk/internal/inference"
	"github.com/mcoot/smartkiosk/internal/model"
)

// MockFaceDetector returns queued results in order, then no faces once the
// queue is drained
type MockFaceDetector struct {
	mu      sync.Mutex
	results [][]model.Face
	Err     error
	Calls   int
}

var _ inference.FaceDetector = (*MockFaceDetector)(nil)

// NewMockFaceDetector creates a detector that finds no faces until results are queued
func NewMockFaceDetector() *MockFaceDetector {
	return &MockFaceDetector{}
}

// QueueFaces adds a result for the next call
func (d *MockFaceDetector) QueueFaces(faces ...model.Face) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, faces)
}

func (d *MockFaceDetector) DetectFaces(ctx context.Context, frame image.Image) ([]model.Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls++
	if d.Err != nil {
		return nil, d.Err
	}
	if len(d.results) == 0 {
		return nil, nil
	}
	next := d.results[0]
	d.results = d.results[1:]
	return next, nil
}

// Pending returns the number of queued results not yet returned
func (d *MockFaceDetector) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.results)
}

// MockFaceMatcher returns a fixed match
type MockFaceMatcher struct {
	mu     sync.Mutex
	Result model.FaceMatch
	Err    error
	Probes [][]float64
}

var _ inference.FaceMatcher = (*MockFaceMatcher)(nil)

// NewMockFaceMatcher creates a matcher that knows nobody
func NewMockFaceMatcher() *MockFaceMatcher {
	return &MockFaceMatcher{}
}

// SetMatch makes every call return id at distance
func (m *MockFaceMatcher) SetMatch(id model.UserID, distance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Result = model.FaceMatch{UserID: id, Found: true, Distance: distance}
}

func (m *MockFaceMatcher) Match(ctx context.Context, embedding []float64) (model.FaceMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Probes = append(m.Probes, embedding)
	if m.Err != nil {
		return model.FaceMatch{}, m.Err
	}
	return m.Result, nil
}

// MockObjectDetector returns a fixed detection list
type MockObjectDetector struct {
	mu      sync.Mutex
	Results []model.RawDetection
	Err     error
	Calls   int
}

var _ inference.ObjectDetector = (*MockObjectDetector)(nil)

// NewMockObjectDetector creates a detector that finds nothing
func NewMockObjectDetector() *MockObjectDetector {
	return &MockObjectDetector{}
}

// SetDetections replaces the detections returned by every call
func (d *MockObjectDetector) SetDetections(dets ...model.RawDetection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Results = dets
}

func (d *MockObjectDetector) Detect(ctx context.Context, frame image.Image) ([]model.RawDetection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls++
	if d.Err != nil {
		return nil, d.Err
	}
	return append([]model.RawDetection(nil), d.Results...), nil
}

// CallCount returns the number of Detect calls
func (d *MockObjectDetector) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Calls
}

package matcher

import (
	"context"
	"math"
	"sync"

	"github.com/mcoot/smartkiosk/internal/inference"
	"github.com/mcoot/smartkiosk/internal/model"
)

// Index is an in-process nearest-neighbour index over known user embeddings.
// Reads are concurrent; registrations append under the write lock.
type Index struct {
	mu         sync.RWMutex
	embeddings map[model.UserID][]float64
}

var _ inference.FaceMatcher = (*Index)(nil)

// New creates an empty index
func New() *Index {
	return &Index{embeddings: make(map[model.UserID][]float64)}
}

// Load replaces the index contents with the given users' embeddings
func (x *Index) Load(users []*model.User) {
	embeddings := make(map[model.UserID][]float64, len(users))
	for _, u := range users {
		if len(u.Embedding) > 0 {
			embeddings[u.ID] = u.Embedding
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.embeddings = embeddings
}

// Add inserts or replaces one identity
func (x *Index) Add(id model.UserID, embedding []float64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.embeddings[id] = embedding
}

// Remove drops an identity; absent ids are ignored
func (x *Index) Remove(id model.UserID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.embeddings, id)
}

// Len returns the number of known identities
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.embeddings)
}

// Match returns the closest identity by Euclidean distance. With no known
// identities it returns Found=false and an infinite distance. Embeddings whose
// dimension differs from the probe are skipped.
func (x *Index) Match(ctx context.Context, embedding []float64) (model.FaceMatch, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	best := model.FaceMatch{Distance: math.Inf(1)}
	for id, known := range x.embeddings {
		if len(known) != len(embedding) {
			continue
		}
		d := Distance(known, embedding)
		// Ties resolve to the lexically smaller id so results are stable
		if d < best.Distance || (d == best.Distance && best.Found && id < best.UserID) {
			best = model.FaceMatch{UserID: id, Found: true, Distance: d}
		}
	}
	return best, nil
}

// Distance is the Euclidean distance between two equal-length vectors
func Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

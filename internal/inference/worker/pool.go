package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/smartkiosk/internal/inference"
	"github.com/mcoot/smartkiosk/internal/model"
)

// jpegQuality is used when shipping frames to the model process
const jpegQuality = 90

// SpawnFunc starts the model process for a pool slot
type SpawnFunc func(id int) (*Process, error)

// CommandSpawner returns a SpawnFunc that runs argv for every slot
func CommandSpawner(argv []string) SpawnFunc {
	return func(id int) (*Process, error) {
		return StartProcess(id, argv)
	}
}

// Pool is a bounded set of model processes. Each call checks one process out
// exclusively, so concurrent sessions share the pool without interleaving
// frames on a pipe. A process whose pipe fails is closed and its slot is
// respawned on the next checkout.
type Pool struct {
	spawn  SpawnFunc
	slots  chan *slot
	logger *slog.Logger
}

type slot struct {
	id   int
	proc *Process // nil when dead
}

var (
	_ inference.FaceDetector   = (*Pool)(nil)
	_ inference.ObjectDetector = (*Pool)(nil)
)

// NewPool starts size processes concurrently. It fails if any of them
// cannot be started.
func NewPool(ctx context.Context, size int, spawn SpawnFunc, logger *slog.Logger) (*Pool, error) {
	if size < 1 {
		size = 1
	}

	procs := make([]*Process, size)
	g, _ := errgroup.WithContext(ctx)
	for i := range size {
		g.Go(func() error {
			p, err := spawn(i)
			if err != nil {
				return err
			}
			procs[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, p := range procs {
			if p != nil {
				p.Close()
			}
		}
		return nil, err
	}

	pool := &Pool{
		spawn:  spawn,
		slots:  make(chan *slot, size),
		logger: logger.With(slog.String("component", "inference-pool")),
	}
	for i, p := range procs {
		pool.slots <- &slot{id: i, proc: p}
	}
	return pool, nil
}

// acquire waits for a free slot, respawning its process if it died
func (p *Pool) acquire(ctx context.Context) (*slot, error) {
	select {
	case s := <-p.slots:
		if s.proc == nil {
			proc, err := p.spawn(s.id)
			if err != nil {
				p.slots <- s
				return nil, fmt.Errorf("respawn worker %d: %w", s.id, err)
			}
			p.logger.Info("worker respawned", slog.Int("worker_id", s.id))
			s.proc = proc
		}
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) release(s *slot) {
	p.slots <- s
}

// call runs one request on a checked-out process
func (p *Pool) call(ctx context.Context, op string, frame image.Image) (*response, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("%w: encode frame: %v", model.ErrInference, err)
	}
	body, err := encMode.Marshal(request{Op: op, Image: buf.Bytes()})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", model.ErrInference, err)
	}

	s, err := p.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInference, err)
	}
	defer p.release(s)

	raw, err := s.proc.Communicate(body)
	if err != nil {
		p.logger.Warn("worker pipe failed, marking dead",
			slog.Int("worker_id", s.id),
			slog.String("error", err.Error()),
		)
		s.proc.Close()
		s.proc = nil
		return nil, fmt.Errorf("%w: %v", model.ErrInference, err)
	}

	var resp response
	if err := decMode.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode reply: %v", model.ErrInference, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: model error: %s", model.ErrInference, resp.Error)
	}
	return &resp, nil
}

func boxFromWire(b [4]int) model.BoundingBox {
	return model.BoundingBox{Left: b[0], Top: b[1], Right: b[2], Bottom: b[3]}
}

// DetectFaces asks a model process for faces and their embeddings
func (p *Pool) DetectFaces(ctx context.Context, frame image.Image) ([]model.Face, error) {
	resp, err := p.call(ctx, opFaces, frame)
	if err != nil {
		return nil, err
	}
	faces := make([]model.Face, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		faces = append(faces, model.Face{Embedding: f.Embedding, BBox: boxFromWire(f.Box)})
	}
	return faces, nil
}

// Detect asks a model process for catalog objects
func (p *Pool) Detect(ctx context.Context, frame image.Image) ([]model.RawDetection, error) {
	resp, err := p.call(ctx, opObjects, frame)
	if err != nil {
		return nil, err
	}
	dets := make([]model.RawDetection, 0, len(resp.Objects))
	for _, o := range resp.Objects {
		dets = append(dets, model.RawDetection{
			ClassID:    o.ClassID,
			ClassName:  o.ClassName,
			Confidence: o.Confidence,
			BBox:       boxFromWire(o.Box),
		})
	}
	return dets, nil
}

// Close stops every idle process. Call only after all users are done.
func (p *Pool) Close() error {
	var errs []error
	for {
		select {
		case s := <-p.slots:
			if s.proc != nil {
				errs = append(errs, s.proc.Close())
			}
		default:
			return errors.Join(errs...)
		}
	}
}

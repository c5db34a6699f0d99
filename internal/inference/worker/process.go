package worker

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// maxFrameSize bounds a single reply so a corrupt header cannot trigger a
// huge allocation.
const maxFrameSize = 64 << 20

// stderrTail keeps the last bytes a model process wrote to stderr so a crash
// can be reported with its own logs.
type stderrTail struct {
	mu   sync.Mutex
	buf  []byte
	size int
}

func (t *stderrTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.size; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *stderrTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// Process is one running model process. Requests go to its stdin and replies
// come back on a dedicated pipe (fd 3 in the child), so anything the model
// prints to stdout or stderr cannot corrupt the protocol.
//
// Wire format in both directions: [uint32 big-endian length][CBOR body].
type Process struct {
	ID       int
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser

	cmd    *exec.Cmd
	stderr *stderrTail
}

// StartProcess launches argv as a model process
func StartProcess(id int, argv []string) (*Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty worker command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	stderr := &stderrTail{size: 4096}
	cmd.Stderr = stderr

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// The write end appears as fd 3 in the child
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Only the child holds the write end now
	w.Close()

	return &Process{
		ID:       id,
		Stdin:    stdin,
		DataPipe: r,
		cmd:      cmd,
		stderr:   stderr,
	}, nil
}

// Communicate sends one framed request and reads one framed reply.
// It is not safe for concurrent use; the pool checks a process out exclusively.
func (p *Process) Communicate(data []byte) ([]byte, error) {
	if err := binary.Write(p.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, p.annotate(err)
	}
	if _, err := p.Stdin.Write(data); err != nil {
		return nil, p.annotate(err)
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(p.DataPipe, header); err != nil {
		return nil, p.annotate(err)
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen > maxFrameSize {
		return nil, fmt.Errorf("worker %d: reply of %d bytes exceeds limit", p.ID, respLen)
	}
	body := make([]byte, respLen)
	if _, err := io.ReadFull(p.DataPipe, body); err != nil {
		return nil, p.annotate(err)
	}
	return body, nil
}

// annotate attaches the captured stderr tail to a pipe failure
func (p *Process) annotate(err error) error {
	if p.stderr != nil {
		if logs := p.stderr.String(); logs != "" {
			return fmt.Errorf("worker %d: %w (stderr: %s)", p.ID, err, logs)
		}
	}
	return fmt.Errorf("worker %d: %w", p.ID, err)
}

// Close stops the process and releases its pipes
func (p *Process) Close() error {
	p.Stdin.Close()
	p.DataPipe.Close()
	if p.cmd != nil {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		_ = p.cmd.Wait()
	}
	return nil
}

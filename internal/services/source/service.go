package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"vision-annotator-go/internal/config"
	"vision-annotator-go/internal/models"
)

var (
	// ErrPermissionDenied means the capture device exists but access was
	// refused. User-visible; forces the detecting flag off.
	ErrPermissionDenied = errors.New("camera permission denied")

	// ErrDeviceUnavailable means no usable capture device or stream.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
)

// frameReader abstracts the capture backend so the manager is testable
// without OpenCV. The production implementation lives in capture.go.
type frameReader interface {
	// Read blocks until the next frame is available. io.EOF-style errors end
	// the push loop; transient errors are retried by the caller.
	Read() (*models.Frame, error)
	Close() error
}

// openFunc opens a reader for a source spec.
type openFunc func(spec models.SourceSpec) (frameReader, error)

// Handle is a live capture handle. Frames arrive push-driven from the
// capture goroutine; consumers only ever see the most recent one. Release is
// idempotent and guaranteed to stop the underlying reader.
type Handle struct {
	spec        models.SourceSpec
	reader      frameReader
	readTimeout time.Duration

	mailbox chan *models.Frame
	cancel  context.CancelFunc
	done    chan struct{}

	seq      atomic.Int64
	released sync.Once
}

// Spec returns the source description this handle was opened with.
func (h *Handle) Spec() models.SourceSpec { return h.spec }

// Latest returns the most recently delivered frame, consuming it. It never
// blocks; ok is false when no new frame arrived since the last call.
func (h *Handle) Latest() (*models.Frame, bool) {
	select {
	case frame := <-h.mailbox:
		return frame, true
	default:
		return nil, false
	}
}

// Release tears down the capture: it cancels the push loop, waits for it to
// exit and closes the underlying reader. Safe to call more than once.
func (h *Handle) Release() {
	h.released.Do(func() {
		h.cancel()
		<-h.done
		if err := h.reader.Close(); err != nil {
			log.Warn().Err(err).Str("source", string(h.spec.Kind)).Msg("Failed to close capture reader")
		}
		log.Info().Str("source", string(h.spec.Kind)).Msg("Capture handle released")
	})
}

// push reads frames until cancellation, keeping only the newest one in the
// mailbox. Older undelivered frames are discarded, never queued. The loop
// gives up after too many consecutive read errors, or when no frame has
// arrived within readTimeout (zero disables the bound).
func (h *Handle) push(ctx context.Context) {
	defer close(h.done)

	consecutiveErrors := 0
	const maxConsecutiveErrors = 10
	lastFrame := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := h.reader.Read()
		if err != nil {
			if h.readTimeout > 0 && time.Since(lastFrame) > h.readTimeout {
				log.Warn().
					Err(err).
					Str("source", string(h.spec.Kind)).
					Dur("read_timeout", h.readTimeout).
					Msg("No frame within capture timeout, stopping push loop")
				return
			}
			consecutiveErrors++
			if consecutiveErrors >= maxConsecutiveErrors {
				log.Warn().
					Err(err).
					Str("source", string(h.spec.Kind)).
					Int("consecutive_errors", consecutiveErrors).
					Msg("Capture read failing repeatedly, stopping push loop")
				return
			}
			delay := time.Duration(consecutiveErrors*50) * time.Millisecond
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		consecutiveErrors = 0
		lastFrame = time.Now()

		frame.Seq = h.seq.Add(1)
		frame.Timestamp = time.Now()

		// Latest-frame-wins: drop the undelivered frame before storing the
		// new one so the mailbox never holds more than one.
		select {
		case h.mailbox <- frame:
		default:
			select {
			case <-h.mailbox:
			default:
			}
			select {
			case h.mailbox <- frame:
			default:
			}
		}
	}
}

// Manager owns the single active capture handle. Exactly one source is
// active at a time; switching fully releases the old handle before acquiring
// the new one.
type Manager struct {
	cfg  *config.Config
	open openFunc

	mu     sync.Mutex
	active *Handle
}

// NewManager creates a manager using the OpenCV capture backend.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		cfg: cfg,
		open: func(spec models.SourceSpec) (frameReader, error) {
			return openCapture(cfg, spec)
		},
	}
}

// Activate opens the requested source and starts frame delivery. Any
// previously active handle is released first, so capture handles never
// overlap. A spec of kind "none" just releases the current handle.
func (m *Manager) Activate(spec models.SourceSpec) (*Handle, error) {
	if !spec.Kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown source type %q", ErrDeviceUnavailable, spec.Kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		m.active.Release()
		m.active = nil
	}

	if spec.Kind == models.SourceNone {
		return nil, nil
	}

	reader, err := m.open(spec)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	handle := &Handle{
		spec:        spec,
		reader:      reader,
		readTimeout: m.cfg.CaptureTimeout,
		mailbox:     make(chan *models.Frame, 1),
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go handle.push(ctx)

	m.active = handle
	log.Info().
		Str("source", string(spec.Kind)).
		Int("device", spec.Device).
		Str("url", spec.URL).
		Msg("Video source activated")
	return handle, nil
}

// Active returns the current handle, or nil when no source is active.
func (m *Manager) Active() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Release tears down the active handle if there is one. Idempotent.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		m.active.Release()
		m.active = nil
	}
}

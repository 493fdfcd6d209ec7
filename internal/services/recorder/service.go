package recorder

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"vision-annotator-go/internal/config"
	"vision-annotator-go/internal/models"
)

var (
	// ErrNoActiveStream means recording was started without a live capture
	// handle. Reported to the caller; no state is mutated.
	ErrNoActiveStream = errors.New("no active stream")

	// ErrNothingRecorded means export was requested with zero finalized
	// segments.
	ErrNothingRecorded = errors.New("nothing recorded")
)

// Publisher is the messaging hook for finalized session metadata. A nil
// publisher disables publishing.
type Publisher interface {
	Publish(subject string, data interface{}) error
}

// frameEncoder is the encoding backend of one recording session.
type frameEncoder interface {
	write(data []byte) error
	stop()
}

// Service captures the annotated frame stream into an ordered segment list
// and exports it as a single streamable MP4. State machine:
// Idle → Recording → Stopped; a new Recording transition discards any
// previous Stopped session's segments.
//
// Each session carries a token; encoder chunks are accepted only while
// their session is current and not yet sealed, so a flushing or orphaned
// encoder can never write into a later session.
type Service struct {
	cfg       *config.Config
	publisher Publisher

	// streamActive reports whether a live capture handle exists right now.
	streamActive func() bool

	mu         sync.Mutex
	state      models.RecordingState
	session    int64
	sealed     bool
	segments   [][]byte
	totalBytes int64
	startedAt  time.Time
	encoder    frameEncoder
}

// NewService creates the recording controller. publisher may be nil.
func NewService(cfg *config.Config, streamActive func() bool, publisher Publisher) *Service {
	return &Service{
		cfg:          cfg,
		publisher:    publisher,
		streamActive: streamActive,
		state:        models.RecordingIdle,
	}
}

// Start begins a new recording session. Fails with ErrNoActiveStream when no
// live handle exists. Restarting after a stop silently discards the previous
// session's segments; starting while already recording is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == models.RecordingActive {
		return nil
	}
	if !s.streamActive() {
		return ErrNoActiveStream
	}

	if s.encoder != nil {
		// Stop always detaches the encoder before flushing, so a live one
		// here would outlast its session.
		log.Error().Msg("Encoder outlived its session, dropping reference")
		s.encoder = nil
	}

	if len(s.segments) > 0 {
		log.Info().Int("discarded_segments", len(s.segments)).Msg("Discarding previous unexported recording session")
	}
	s.session++
	s.sealed = false
	s.segments = nil
	s.totalBytes = 0
	s.startedAt = time.Now()
	s.state = models.RecordingActive

	log.Info().Int64("session", s.session).Msg("Recording started")
	return nil
}

// WriteFrame feeds one annotated frame into the session encoder. Frames
// arriving outside a Recording state are ignored. The encoder is started
// lazily from the first frame's dimensions, bound to the current session.
func (s *Service) WriteFrame(frame *models.Frame) {
	s.mu.Lock()
	if s.state != models.RecordingActive || frame == nil {
		s.mu.Unlock()
		return
	}
	if s.encoder == nil {
		session := s.session
		enc, err := startChunkEncoder(s.cfg, frame.Width, frame.Height, func(chunk []byte) {
			s.appendChunk(session, chunk)
		})
		if err != nil {
			s.mu.Unlock()
			log.Error().Err(err).Msg("Failed to start recording encoder")
			return
		}
		s.encoder = enc
	}
	enc := s.encoder
	s.mu.Unlock()

	// Written outside the lock: a blocked encoder stdin must not stall the
	// chunk drain goroutine, which needs the lock to append.
	if err := enc.write(frame.Data); err != nil {
		log.Warn().Err(err).Int64("frame_seq", frame.Seq).Msg("Failed to write frame to encoder")
	}
}

// appendChunk stores one encoded chunk in arrival order. Chunks are dropped
// once their session is stale or sealed, so the flush during Stop still
// lands while anything later is discarded.
func (s *Service) appendChunk(session int64, chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session != s.session || s.sealed {
		return
	}
	s.segments = append(s.segments, chunk)
	s.totalBytes += int64(len(chunk))
}

// Stop finalizes the segment list. The state flips to Stopped before the
// lock is released, so a concurrent WriteFrame cannot lazily start a fresh
// encoder into the closing session. The encoder flush happens outside the
// lock; its trailing chunks still land, and the session is sealed once the
// flush returns. Stopping when not recording is a no-op.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.state != models.RecordingActive {
		s.mu.Unlock()
		return
	}
	s.state = models.RecordingStopped
	enc := s.encoder
	s.encoder = nil
	s.mu.Unlock()

	// Flush outside the lock: the encoder drain calls appendChunk.
	if enc != nil {
		enc.stop()
	}

	s.mu.Lock()
	s.sealed = true
	segments := len(s.segments)
	totalBytes := s.totalBytes
	startedAt := s.startedAt
	s.mu.Unlock()

	log.Info().Int("segments", segments).Int64("bytes", totalBytes).Msg("Recording stopped")

	if s.publisher != nil {
		event := models.RecordingSessionEvent{
			WorkerID:   s.cfg.WorkerID,
			Segments:   segments,
			TotalBytes: totalBytes,
			StartedAt:  startedAt,
			StoppedAt:  time.Now(),
		}
		subject := fmt.Sprintf("%s.%s", s.cfg.SessionSubject, s.cfg.WorkerID)
		if err := s.publisher.Publish(subject, event); err != nil {
			log.Warn().Err(err).Str("subject", subject).Msg("Failed to publish recording session event")
		}
	}
}

// Export concatenates the finalized segments into one downloadable artifact.
func (s *Service) Export() ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.segments) == 0 {
		return nil, "", ErrNothingRecorded
	}

	var buf bytes.Buffer
	buf.Grow(int(s.totalBytes))
	for _, segment := range s.segments {
		buf.Write(segment)
	}
	return buf.Bytes(), s.cfg.ExportFilename, nil
}

// Status reports the controller state for the API.
func (s *Service) Status() models.RecordingStatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := models.RecordingStatusResponse{
		State:        s.state,
		Segments:     len(s.segments),
		BytesWritten: s.totalBytes,
	}
	if s.state != models.RecordingIdle {
		started := s.startedAt
		resp.StartedAt = &started
	}
	return resp
}

// Recording reports whether a session is currently active.
func (s *Service) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == models.RecordingActive
}

// Shutdown stops any active session.
func (s *Service) Shutdown() {
	s.Stop()
}

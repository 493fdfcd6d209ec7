package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"vision-annotator-go/internal/config"
	"vision-annotator-go/internal/models"
	"vision-annotator-go/internal/services/inference"
	"vision-annotator-go/internal/services/stats"
	"vision-annotator-go/internal/state"
)

// FrameSource delivers the most recent captured frame without blocking.
type FrameSource interface {
	Latest() (*models.Frame, bool)
}

// Renderer draws a detection list onto a frame and returns annotated bytes.
type Renderer interface {
	Render(frame *models.Frame, detections []models.Detection) ([]byte, error)
}

// FrameSink receives the annotated frame each cycle (the recording tap).
type FrameSink interface {
	WriteFrame(frame *models.Frame)
}

// Publisher is the optional stats event bus.
type Publisher interface {
	Publish(subject string, data interface{}) error
}

// detectOutcome carries an adapter result back to the loop, tagged with the
// session that issued it so stale completions can be discarded.
type detectOutcome struct {
	session    int64
	detections []models.Detection
	err        error
}

const fpsWindowSize = 30

// Service drives the per-frame loop: capture → detect → render → publish.
// One cycle per pacing tick; at most one inference call in flight. While a
// call is outstanding, or after a failed one, the last completed detection
// list keeps being rendered (stale-but-valid policy).
type Service struct {
	cfg      *config.Config
	store    *state.Store
	adapter  inference.Adapter
	renderer Renderer

	sink      FrameSink // may be nil
	publisher Publisher // may be nil

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	session atomic.Int64

	inFlight atomic.Bool
	results  chan detectOutcome

	// Loop-owned state; touched only by the cycle path.
	lastDetections []models.Detection
	lastStats      models.Statistics
	cycleTimes     []time.Time
	lastPublish    time.Time
}

// NewService creates the scheduler. sink and publisher may be nil.
func NewService(cfg *config.Config, store *state.Store, adapter inference.Adapter, renderer Renderer, sink FrameSink, publisher Publisher) *Service {
	return &Service{
		cfg:       cfg,
		store:     store,
		adapter:   adapter,
		renderer:  renderer,
		sink:      sink,
		publisher: publisher,
		results:   make(chan detectOutcome, 1),
	}
}

// Start transitions Idle → Running and begins the paced loop against the
// given source. Starting while already running is a no-op.
func (s *Service) Start(source FrameSource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	session := s.session.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.lastDetections = nil
	s.lastStats = models.Statistics{ClassCounts: []models.ClassCount{}}
	s.cycleTimes = nil

	s.wg.Add(1)
	go s.run(ctx, source, session)

	log.Info().Int64("session", session).Msg("Frame scheduler started")
}

// Stop transitions Running → Idle. It cancels the pending cycle and returns
// only after the loop has exited, so no adapter call is issued afterwards.
// Stopping while already idle is a no-op.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	log.Info().Msg("Frame scheduler stopped")
}

// Running reports the scheduler state.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// run is the cooperative loop. The pacing tick stands in for the display's
// paint signal: one cycle per tick, no catch-up bursts after a stall.
func (s *Service) run(ctx context.Context, source FrameSource, session int64) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Frame loop panic recovered")
		}
	}()

	interval := time.Second / time.Duration(s.cfg.TargetFPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycle(ctx, source, session)
		}
	}
}

// cycle executes one capture → detect → render pass.
func (s *Service) cycle(ctx context.Context, source FrameSource, session int64) {
	s.drainResults(session)

	snap := s.store.Snapshot()

	frame, ok := source.Latest()
	if !ok {
		// Frame not ready: not an error, just a skipped cycle.
		return
	}

	// Backpressure: never issue a second concurrent inference call. While
	// one is outstanding the previous result keeps being rendered.
	if s.inFlight.CompareAndSwap(false, true) {
		go s.detect(ctx, frame, snap.Threshold, snap.ModelID, session)
	}

	annotated, err := s.renderer.Render(frame, s.lastDetections)
	if err != nil {
		log.Warn().Err(err).Int64("frame_seq", frame.Seq).Msg("Overlay render failed")
	} else if s.sink != nil {
		s.sink.WriteFrame(&models.Frame{
			Data:      annotated,
			Width:     frame.Width,
			Height:    frame.Height,
			Seq:       frame.Seq,
			Timestamp: frame.Timestamp,
		})
	}

	fps := s.observeCycle(time.Now())
	s.store.SetCycleResult(s.lastDetections, s.lastStats, frame.Seq, fps)
	s.publishStats(snap, frame.Seq)
}

// detect runs the adapter call off the loop goroutine. Exactly one of these
// exists at a time; the outcome is applied by a later cycle's drain.
func (s *Service) detect(ctx context.Context, frame *models.Frame, threshold float32, modelID string, session int64) {
	detections, err := s.adapter.Detect(ctx, frame, threshold, modelID)
	s.results <- detectOutcome{session: session, detections: detections, err: err}
	s.inFlight.Store(false)
}

// drainResults applies a completed inference outcome, if any. Outcomes from
// an earlier session are dropped: they belong to a torn-down run and must
// not reach the current surface. Failed calls keep the previous detections.
func (s *Service) drainResults(session int64) {
	select {
	case outcome := <-s.results:
		if outcome.session != session {
			log.Debug().Int64("session", outcome.session).Msg("Discarding inference result from stale session")
			return
		}
		if outcome.err != nil {
			log.Warn().Err(outcome.err).Msg("Inference failed, reusing previous detections")
			return
		}
		s.lastDetections = outcome.detections
		s.lastStats = stats.Aggregate(outcome.detections)
	default:
	}
}

// observeCycle records a cycle timestamp and returns the rolling-window FPS.
func (s *Service) observeCycle(now time.Time) float64 {
	s.cycleTimes = append(s.cycleTimes, now)
	if len(s.cycleTimes) > fpsWindowSize {
		s.cycleTimes = s.cycleTimes[1:]
	}
	if len(s.cycleTimes) < 2 {
		return 0
	}
	span := s.cycleTimes[len(s.cycleTimes)-1].Sub(s.cycleTimes[0]).Seconds()
	if span <= 0 {
		return 0
	}
	return float64(len(s.cycleTimes)-1) / span
}

// publishStats pushes the current-frame statistics to the bus, throttled to
// the configured interval.
func (s *Service) publishStats(snap state.Snapshot, frameSeq int64) {
	if s.publisher == nil {
		return
	}
	now := time.Now()
	if now.Sub(s.lastPublish) < s.cfg.StatsInterval {
		return
	}
	s.lastPublish = now

	event := models.StatsEvent{
		WorkerID:   s.cfg.WorkerID,
		FrameSeq:   frameSeq,
		Model:      snap.ModelID,
		Threshold:  snap.Threshold,
		Statistics: s.lastStats,
		Timestamp:  now,
	}
	subject := fmt.Sprintf("%s.%s", s.cfg.StatsSubject, s.cfg.WorkerID)
	if err := s.publisher.Publish(subject, event); err != nil {
		log.Debug().Err(err).Str("subject", subject).Msg("Failed to publish stats event")
	}
}

package pipeline

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"vision-annotator-go/internal/config"
	"vision-annotator-go/internal/logging"
	"vision-annotator-go/internal/models"
	"vision-annotator-go/internal/services/scheduler"
	"vision-annotator-go/internal/services/source"
	"vision-annotator-go/internal/state"
)

// ErrInvalidModel rejects model identifiers outside the fixed catalog.
var ErrInvalidModel = errors.New("unknown model identifier")

// Sources owns the capture handle lifecycle. Activate releases any previous
// handle before acquiring the new one; a "none" spec returns a nil source.
type Sources interface {
	Activate(spec models.SourceSpec) (scheduler.FrameSource, error)
	Active() scheduler.FrameSource
	Release()
}

// Loop is the frame scheduling loop. Start and Stop are idempotent.
type Loop interface {
	Start(src scheduler.FrameSource)
	Stop()
	Running() bool
}

// Recorder is the recording controller lifecycle.
type Recorder interface {
	Start() error
	Stop()
	Recording() bool
}

// managedSources adapts the concrete source manager to the Sources seam,
// converting its nil *Handle results into nil interfaces.
type managedSources struct {
	m *source.Manager
}

// WrapSources exposes a source manager as the pipeline's Sources dependency.
func WrapSources(m *source.Manager) Sources { return managedSources{m: m} }

func (s managedSources) Activate(spec models.SourceSpec) (scheduler.FrameSource, error) {
	handle, err := s.m.Activate(spec)
	if handle == nil {
		return nil, err
	}
	return handle, err
}

func (s managedSources) Active() scheduler.FrameSource {
	if handle := s.m.Active(); handle != nil {
		return handle
	}
	return nil
}

func (s managedSources) Release() { s.m.Release() }

// Manager coordinates the capture handle, the frame loop and the recording
// controller against the shared state store. It is the single writer for the
// source, detecting and recording fields; the scheduler writes the per-cycle
// fields.
type Manager struct {
	cfg      *config.Config
	store    *state.Store
	sources  Sources
	loop     Loop
	recorder Recorder
	log      zerolog.Logger
}

// NewManager wires the pipeline components together.
func NewManager(cfg *config.Config, store *state.Store, sources Sources, loop Loop, rec Recorder) *Manager {
	return &Manager{
		cfg:      cfg,
		store:    store,
		sources:  sources,
		loop:     loop,
		recorder: rec,
		log:      logging.NewServiceLogger(cfg, "pipeline"),
	}
}

// StartDetection begins the frame loop. With no source active it activates
// the default webcam first. Idempotent: starting while running is a no-op.
// A permission or device failure forces the detecting flag off.
func (m *Manager) StartDetection() error {
	if m.loop.Running() {
		return nil
	}

	src := m.sources.Active()
	if src == nil {
		spec := models.SourceSpec{Kind: models.SourceWebcam, Device: m.cfg.DefaultDevice}
		var err error
		src, err = m.sources.Activate(spec)
		if err != nil {
			m.store.SetDetecting(false)
			return err
		}
		m.store.SetSource(spec)
	}

	m.loop.Start(src)
	m.store.SetDetecting(true)
	return nil
}

// StopDetection halts the frame loop. Idempotent. The capture handle stays
// active so the preview and recording can continue without detections.
func (m *Manager) StopDetection() {
	m.loop.Stop()
	m.store.SetDetecting(false)
}

// SwitchSource tears down the running pipeline and activates the new
// source: detection and recording stop first and the old handle is fully
// released before the new one is acquired. Detection resumes on the new
// source if it was running; recording never resumes automatically.
func (m *Manager) SwitchSource(spec models.SourceSpec) error {
	wasDetecting := m.loop.Running()
	if wasDetecting {
		m.StopDetection()
	}
	if m.recorder.Recording() {
		m.StopRecording()
	}

	src, err := m.sources.Activate(spec)
	if err != nil {
		m.store.SetSource(models.SourceSpec{Kind: models.SourceNone})
		m.store.SetDetecting(false)
		return err
	}

	m.store.SetSource(spec)
	if src == nil {
		return nil
	}

	if wasDetecting {
		m.loop.Start(src)
		m.store.SetDetecting(true)
	}

	logging.WithSource(m.log, string(spec.Kind)).Info().Bool("detection_resumed", wasDetecting).Msg("Video source switched")
	return nil
}

// UpdateSettings applies threshold/model changes. The threshold is clamped
// to the recognized range; the model must be in the catalog.
func (m *Manager) UpdateSettings(req models.SettingsRequest) error {
	snap := m.store.Snapshot()

	model := snap.ModelID
	if req.Model != nil {
		if !models.IsValidModel(*req.Model) {
			return fmt.Errorf("%w: %q", ErrInvalidModel, *req.Model)
		}
		model = *req.Model
	}

	threshold := snap.Threshold
	if req.Threshold != nil {
		threshold = models.ClampThreshold(*req.Threshold)
	}

	m.store.SetSettings(model, threshold)
	m.log.Info().Str("model", model).Float32("threshold", threshold).Msg("Detection settings updated")
	return nil
}

// StartRecording delegates to the controller and mirrors the flag into the
// state store.
func (m *Manager) StartRecording() error {
	if err := m.recorder.Start(); err != nil {
		return err
	}
	m.store.SetRecording(true)
	return nil
}

// StopRecording finalizes the session and clears the flag.
func (m *Manager) StopRecording() {
	m.recorder.Stop()
	m.store.SetRecording(false)
}

// Status assembles the externally visible pipeline snapshot.
func (m *Manager) Status() models.PipelineStatus {
	snap := m.store.Snapshot()
	return models.PipelineStatus{
		Source:     snap.Source,
		Detecting:  snap.Detecting,
		Recording:  snap.Recording,
		Model:      snap.ModelID,
		Threshold:  snap.Threshold,
		FPS:        snap.FPS,
		FrameSeq:   snap.FrameSeq,
		Detections: len(snap.Detections),
	}
}

// Stats returns the current-frame statistics with the pipeline status.
func (m *Manager) Stats() models.StatsResponse {
	snap := m.store.Snapshot()
	return models.StatsResponse{
		Statistics: snap.Statistics,
		Status:     m.Status(),
	}
}

// Shutdown tears everything down in dependency order: loop, recording,
// capture handle.
func (m *Manager) Shutdown() {
	m.StopDetection()
	m.StopRecording()
	m.sources.Release()
	m.store.SetSource(models.SourceSpec{Kind: models.SourceNone})
}

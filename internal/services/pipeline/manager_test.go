package pipeline

import (
	"errors"
	"testing"

	"vision-annotator-go/internal/config"
	"vision-annotator-go/internal/models"
	"vision-annotator-go/internal/services/scheduler"
	"vision-annotator-go/internal/services/source"
	"vision-annotator-go/internal/state"
)

// The fakes share one event log so tests can assert teardown and activation
// ordering across components.

type fakeFrameSource struct{}

func (f *fakeFrameSource) Latest() (*models.Frame, bool) { return nil, false }

type fakeSources struct {
	events      *[]string
	active      scheduler.FrameSource
	activateErr error
	releases    int
}

func (f *fakeSources) Activate(spec models.SourceSpec) (scheduler.FrameSource, error) {
	*f.events = append(*f.events, "activate:"+string(spec.Kind))
	f.active = nil
	if f.activateErr != nil {
		return nil, f.activateErr
	}
	if spec.Kind == models.SourceNone {
		return nil, nil
	}
	f.active = &fakeFrameSource{}
	return f.active, nil
}

func (f *fakeSources) Active() scheduler.FrameSource { return f.active }

func (f *fakeSources) Release() {
	f.releases++
	f.active = nil
	*f.events = append(*f.events, "release")
}

type fakeLoop struct {
	events  *[]string
	running bool
	starts  int
}

func (f *fakeLoop) Start(src scheduler.FrameSource) {
	f.starts++
	f.running = true
	*f.events = append(*f.events, "loop.start")
}

func (f *fakeLoop) Stop() {
	f.running = false
	*f.events = append(*f.events, "loop.stop")
}

func (f *fakeLoop) Running() bool { return f.running }

type fakeRecorder struct {
	events    *[]string
	recording bool
	starts    int
	startErr  error
}

func (f *fakeRecorder) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.recording = true
	*f.events = append(*f.events, "rec.start")
	return nil
}

func (f *fakeRecorder) Stop() {
	f.recording = false
	*f.events = append(*f.events, "rec.stop")
}

func (f *fakeRecorder) Recording() bool { return f.recording }

type pipelineHarness struct {
	events   []string
	store    *state.Store
	sources  *fakeSources
	loop     *fakeLoop
	recorder *fakeRecorder
	manager  *Manager
}

func newHarness() *pipelineHarness {
	h := &pipelineHarness{store: state.New("yolov8n", 0.5)}
	h.sources = &fakeSources{events: &h.events}
	h.loop = &fakeLoop{events: &h.events}
	h.recorder = &fakeRecorder{events: &h.events}
	cfg := &config.Config{DefaultDevice: 0}
	h.manager = NewManager(cfg, h.store, h.sources, h.loop, h.recorder)
	return h
}

func indexOf(events []string, want string) int {
	for i, e := range events {
		if e == want {
			return i
		}
	}
	return -1
}

func TestStartDetectionActivatesDefaultWebcam(t *testing.T) {
	h := newHarness()

	if err := h.manager.StartDetection(); err != nil {
		t.Fatalf("start detection: %v", err)
	}

	snap := h.store.Snapshot()
	if !snap.Detecting {
		t.Error("detecting flag should be set")
	}
	if snap.Source.Kind != models.SourceWebcam {
		t.Errorf("source = %v, want default webcam", snap.Source.Kind)
	}
	if got := indexOf(h.events, "activate:webcam"); got < 0 || got > indexOf(h.events, "loop.start") {
		t.Errorf("events = %v, source must be activated before the loop starts", h.events)
	}
}

func TestStartDetectionIdempotent(t *testing.T) {
	h := newHarness()

	if err := h.manager.StartDetection(); err != nil {
		t.Fatalf("start detection: %v", err)
	}
	if err := h.manager.StartDetection(); err != nil {
		t.Fatalf("repeated start detection: %v", err)
	}
	if h.loop.starts != 1 {
		t.Errorf("loop started %d times, want 1", h.loop.starts)
	}
}

func TestStartDetectionPermissionDeniedForcesDetectingOff(t *testing.T) {
	h := newHarness()
	h.sources.activateErr = source.ErrPermissionDenied

	err := h.manager.StartDetection()
	if !errors.Is(err, source.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if h.store.Snapshot().Detecting {
		t.Error("detecting flag must be forced off after a permission failure")
	}
	if h.loop.starts != 0 {
		t.Error("loop must not start without a source")
	}
}

func TestSwitchSourceTearsDownThenResumesDetectionOnly(t *testing.T) {
	h := newHarness()

	if err := h.manager.StartDetection(); err != nil {
		t.Fatalf("start detection: %v", err)
	}
	if err := h.manager.StartRecording(); err != nil {
		t.Fatalf("start recording: %v", err)
	}
	h.events = nil

	if err := h.manager.SwitchSource(models.SourceSpec{Kind: models.SourceFile, URL: "clip.mp4"}); err != nil {
		t.Fatalf("switch source: %v", err)
	}

	activate := indexOf(h.events, "activate:file")
	if activate < 0 {
		t.Fatalf("events = %v, new source never activated", h.events)
	}
	if loopStop := indexOf(h.events, "loop.stop"); loopStop < 0 || loopStop > activate {
		t.Errorf("events = %v, detection must stop before the new source is acquired", h.events)
	}
	if recStop := indexOf(h.events, "rec.stop"); recStop < 0 || recStop > activate {
		t.Errorf("events = %v, recording must stop before the new source is acquired", h.events)
	}
	if indexOf(h.events, "loop.start") < activate {
		t.Errorf("events = %v, detection should resume after activation", h.events)
	}

	snap := h.store.Snapshot()
	if !snap.Detecting {
		t.Error("detection was running and should resume on the new source")
	}
	if snap.Recording || h.recorder.Recording() {
		t.Error("recording must never resume automatically after a switch")
	}
	if snap.Source.Kind != models.SourceFile {
		t.Errorf("source = %v, want file", snap.Source.Kind)
	}
}

func TestSwitchSourceWhileIdleDoesNotStartDetection(t *testing.T) {
	h := newHarness()

	if err := h.manager.SwitchSource(models.SourceSpec{Kind: models.SourceWebcam}); err != nil {
		t.Fatalf("switch source: %v", err)
	}

	if h.loop.starts != 0 {
		t.Error("detection was not running and must not start on switch")
	}
	if h.store.Snapshot().Detecting {
		t.Error("detecting flag should stay off")
	}
}

func TestSwitchSourceFailureClearsState(t *testing.T) {
	h := newHarness()

	if err := h.manager.StartDetection(); err != nil {
		t.Fatalf("start detection: %v", err)
	}
	h.sources.activateErr = source.ErrDeviceUnavailable

	err := h.manager.SwitchSource(models.SourceSpec{Kind: models.SourceFile, URL: "missing.mp4"})
	if !errors.Is(err, source.ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}

	snap := h.store.Snapshot()
	if snap.Source.Kind != models.SourceNone {
		t.Errorf("source = %v, a failed switch leaves no active source", snap.Source.Kind)
	}
	if snap.Detecting {
		t.Error("detecting flag must be off after a failed switch")
	}
}

func TestSwitchSourceToNoneReleasesOnly(t *testing.T) {
	h := newHarness()

	if err := h.manager.StartDetection(); err != nil {
		t.Fatalf("start detection: %v", err)
	}

	if err := h.manager.SwitchSource(models.SourceSpec{Kind: models.SourceNone}); err != nil {
		t.Fatalf("switch to none: %v", err)
	}

	snap := h.store.Snapshot()
	if snap.Source.Kind != models.SourceNone {
		t.Errorf("source = %v, want none", snap.Source.Kind)
	}
	if h.loop.Running() {
		t.Error("loop must not run without a source")
	}
}

func TestUpdateSettingsValidation(t *testing.T) {
	h := newHarness()

	bad := "resnet50"
	err := h.manager.UpdateSettings(models.SettingsRequest{Model: &bad})
	if !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("err = %v, want ErrInvalidModel", err)
	}
	if got := h.store.Snapshot().ModelID; got != "yolov8n" {
		t.Errorf("model = %q, rejected update must not apply", got)
	}

	model := "yolov8m"
	threshold := float32(2.5)
	if err := h.manager.UpdateSettings(models.SettingsRequest{Model: &model, Threshold: &threshold}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	snap := h.store.Snapshot()
	if snap.ModelID != "yolov8m" {
		t.Errorf("model = %q, want yolov8m", snap.ModelID)
	}
	if snap.Threshold != 0.9 {
		t.Errorf("threshold = %v, want clamped to 0.9", snap.Threshold)
	}
}

func TestRecordingFlagMirrorsController(t *testing.T) {
	h := newHarness()

	if err := h.manager.StartRecording(); err != nil {
		t.Fatalf("start recording: %v", err)
	}
	if !h.store.Snapshot().Recording {
		t.Error("recording flag should mirror an active session")
	}

	h.manager.StopRecording()
	if h.store.Snapshot().Recording {
		t.Error("recording flag should clear on stop")
	}

	h.recorder.startErr = errors.New("no active stream")
	if err := h.manager.StartRecording(); err == nil {
		t.Fatal("expected start error to propagate")
	}
	if h.store.Snapshot().Recording {
		t.Error("recording flag must stay off after a failed start")
	}
}

func TestShutdownTeardownOrder(t *testing.T) {
	h := newHarness()

	if err := h.manager.StartDetection(); err != nil {
		t.Fatalf("start detection: %v", err)
	}
	if err := h.manager.StartRecording(); err != nil {
		t.Fatalf("start recording: %v", err)
	}
	h.events = nil

	h.manager.Shutdown()

	release := indexOf(h.events, "release")
	if release < 0 {
		t.Fatalf("events = %v, capture handle never released", h.events)
	}
	if indexOf(h.events, "loop.stop") > release || indexOf(h.events, "rec.stop") > release {
		t.Errorf("events = %v, loop and recording stop before the handle is released", h.events)
	}
	if h.sources.releases != 1 {
		t.Errorf("handle released %d times, want exactly 1", h.sources.releases)
	}
	if h.store.Snapshot().Source.Kind != models.SourceNone {
		t.Error("shutdown should clear the active source")
	}
}

package source

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"vision-annotator-go/internal/config"
	"vision-annotator-go/internal/models"
)

// fakeReader feeds frames from a channel. Tests must close the channel
// before releasing the handle so the blocked Read returns.
type fakeReader struct {
	frames chan *models.Frame
	reads  chan struct{}
	closed atomic.Int32
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		frames: make(chan *models.Frame, 16),
		reads:  make(chan struct{}, 64),
	}
}

func (r *fakeReader) Read() (*models.Frame, error) {
	r.reads <- struct{}{}
	f, ok := <-r.frames
	if !ok {
		return nil, errors.New("reader closed")
	}
	return f, nil
}

func (r *fakeReader) Close() error {
	r.closed.Add(1)
	return nil
}

func (r *fakeReader) feed(n int) {
	for i := 0; i < n; i++ {
		r.frames <- &models.Frame{Data: []byte{byte(i)}, Width: 1, Height: 1}
	}
}

// waitReads blocks until the push loop has entered Read n times. The n-th
// entry implies the (n-1)-th frame has already been stored in the mailbox.
func (r *fakeReader) waitReads(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.reads:
		case <-time.After(2 * time.Second):
			t.Fatalf("push loop never reached read %d of %d", i+1, n)
		}
	}
}

func newTestManager(reader *fakeReader) *Manager {
	return &Manager{
		cfg: &config.Config{},
		open: func(spec models.SourceSpec) (frameReader, error) {
			return reader, nil
		},
	}
}

func webcamSpec() models.SourceSpec {
	return models.SourceSpec{Kind: models.SourceWebcam, Device: 0}
}

func TestLatestFrameWins(t *testing.T) {
	reader := newFakeReader()
	m := newTestManager(reader)

	handle, err := m.Activate(webcamSpec())
	if err != nil {
		t.Fatalf("activate: %v", err)
	}

	reader.feed(3)
	reader.waitReads(t, 4)

	frame, ok := handle.Latest()
	if !ok {
		t.Fatal("expected a frame in the mailbox")
	}
	if frame.Seq != 3 {
		t.Errorf("got seq %d, want newest frame (3)", frame.Seq)
	}

	// The mailbox held exactly one frame; a second read comes up empty.
	if _, ok := handle.Latest(); ok {
		t.Error("mailbox should be empty after consuming the latest frame")
	}

	close(reader.frames)
	handle.Release()
}

func TestLatestNonBlockingWhenEmpty(t *testing.T) {
	reader := newFakeReader()
	m := newTestManager(reader)

	handle, err := m.Activate(webcamSpec())
	if err != nil {
		t.Fatalf("activate: %v", err)
	}

	done := make(chan bool, 1)
	go func() {
		_, ok := handle.Latest()
		done <- ok
	}()
	select {
	case ok := <-done:
		if ok {
			t.Error("no frame was fed, Latest should report not-ready")
		}
	case <-time.After(time.Second):
		t.Fatal("Latest blocked")
	}

	close(reader.frames)
	handle.Release()
}

func TestReleaseIdempotent(t *testing.T) {
	reader := newFakeReader()
	m := newTestManager(reader)

	handle, err := m.Activate(webcamSpec())
	if err != nil {
		t.Fatalf("activate: %v", err)
	}

	close(reader.frames)
	handle.Release()
	handle.Release()

	if got := reader.closed.Load(); got != 1 {
		t.Errorf("reader closed %d times, want exactly 1", got)
	}
}

func TestSwitchReleasesPreviousHandle(t *testing.T) {
	first := newFakeReader()
	second := newFakeReader()
	readers := []*fakeReader{first, second}
	idx := 0

	m := &Manager{
		cfg: &config.Config{},
		open: func(spec models.SourceSpec) (frameReader, error) {
			r := readers[idx]
			idx++
			return r, nil
		},
	}

	a, err := m.Activate(webcamSpec())
	if err != nil {
		t.Fatalf("activate first: %v", err)
	}
	close(first.frames)

	b, err := m.Activate(models.SourceSpec{Kind: models.SourceFile, URL: "clip.mp4"})
	if err != nil {
		t.Fatalf("activate second: %v", err)
	}

	if got := first.closed.Load(); got != 1 {
		t.Errorf("first reader closed %d times, want 1 (released before acquire)", got)
	}
	if m.Active() != b || m.Active() == a {
		t.Error("manager should hold the second handle")
	}

	close(second.frames)
	m.Release()
}

func TestActivateNoneReleasesOnly(t *testing.T) {
	reader := newFakeReader()
	m := newTestManager(reader)

	if _, err := m.Activate(webcamSpec()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	close(reader.frames)

	handle, err := m.Activate(models.SourceSpec{Kind: models.SourceNone})
	if err != nil {
		t.Fatalf("activate none: %v", err)
	}
	if handle != nil {
		t.Error("none source should not produce a handle")
	}
	if reader.closed.Load() != 1 {
		t.Error("previous reader not released")
	}
	if m.Active() != nil {
		t.Error("no handle should remain active")
	}
}

func TestActivateInvalidKind(t *testing.T) {
	m := newTestManager(newFakeReader())
	_, err := m.Activate(models.SourceSpec{Kind: "screen"})
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("err = %v, want ErrDeviceUnavailable", err)
	}
}

func TestPushStopsAfterCaptureTimeout(t *testing.T) {
	reader := newFakeReader()
	close(reader.frames) // every read fails from the start

	m := &Manager{
		cfg: &config.Config{CaptureTimeout: 30 * time.Millisecond},
		open: func(spec models.SourceSpec) (frameReader, error) {
			return reader, nil
		},
	}

	handle, err := m.Activate(webcamSpec())
	if err != nil {
		t.Fatalf("activate: %v", err)
	}

	select {
	case <-handle.done:
	case <-time.After(2 * time.Second):
		t.Fatal("push loop kept running past the capture timeout")
	}

	handle.Release()
	if got := reader.closed.Load(); got != 1 {
		t.Errorf("reader closed %d times, want exactly 1", got)
	}
}

func TestManagerReleaseIdempotent(t *testing.T) {
	reader := newFakeReader()
	m := newTestManager(reader)

	if _, err := m.Activate(webcamSpec()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	close(reader.frames)

	m.Release()
	m.Release()

	if got := reader.closed.Load(); got != 1 {
		t.Errorf("reader closed %d times, want 1", got)
	}
}

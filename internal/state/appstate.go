package state

import (
	"sync"

	"vision-annotator-go/internal/models"
)

// Snapshot is a consistent, immutable copy of the application state. All
// components read a snapshot taken at cycle start rather than the live store,
// so none of them can observe a partial update mid-cycle.
type Snapshot struct {
	Source     models.SourceSpec
	Detecting  bool
	Recording  bool
	Detections []models.Detection
	Statistics models.Statistics
	ModelID    string
	Threshold  float32
	FrameSeq   int64
	FPS        float64
}

// Store is the shared reactive state. Each field has a single writer (the
// scheduler writes detections/stats/seq, the pipeline manager writes the
// flags and settings); readers go through Snapshot.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot

	subMu sync.Mutex
	subs  []chan Snapshot
}

// New creates a store with the initial model and threshold settings.
func New(modelID string, threshold float32) *Store {
	return &Store{
		snap: Snapshot{
			Source:    models.SourceSpec{Kind: models.SourceNone},
			ModelID:   modelID,
			Threshold: models.ClampThreshold(threshold),
		},
	}
}

// Snapshot returns a copy of the current state. The detection slice is shared
// but treated as immutable once published.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Subscribe registers an observer channel that receives a snapshot after
// every mutation. Slow observers miss intermediate snapshots instead of
// blocking a writer.
func (s *Store) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
	return ch
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot so the observer sees the newest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (s *Store) update(mutate func(*Snapshot)) {
	s.mu.Lock()
	mutate(&s.snap)
	snap := s.snap
	s.mu.Unlock()
	s.notify(snap)
}

// SetSource records the active video source.
func (s *Store) SetSource(spec models.SourceSpec) {
	s.update(func(snap *Snapshot) { snap.Source = spec })
}

// SetDetecting flips the detecting flag.
func (s *Store) SetDetecting(on bool) {
	s.update(func(snap *Snapshot) { snap.Detecting = on })
}

// SetRecording flips the recording flag.
func (s *Store) SetRecording(on bool) {
	s.update(func(snap *Snapshot) { snap.Recording = on })
}

// SetSettings applies model/threshold changes; the threshold is clamped to
// the recognized range.
func (s *Store) SetSettings(modelID string, threshold float32) {
	s.update(func(snap *Snapshot) {
		snap.ModelID = modelID
		snap.Threshold = models.ClampThreshold(threshold)
	})
}

// SetCycleResult publishes the outcome of one scheduler cycle: the rendered
// detection list, its statistics, the frame sequence and the measured FPS.
func (s *Store) SetCycleResult(detections []models.Detection, stats models.Statistics, seq int64, fps float64) {
	s.update(func(snap *Snapshot) {
		snap.Detections = detections
		snap.Statistics = stats
		snap.FrameSeq = seq
		snap.FPS = fps
	})
}

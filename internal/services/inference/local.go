package inference

import (
	"context"
	"math/rand/v2"
	"sync"

	"vision-annotator-go/internal/models"
)

// Classes the local reference adapter draws from. The set mirrors the common
// street-scene classes the remote models report.
var localClasses = []string{"person", "car", "truck", "motorcycle", "bicycle", "bus", "dog", "cat"}

// LocalAdapter is a deterministic stand-in for a real inference backend. It
// synthesizes plausible detections from a seedable random source so the full
// pipeline runs without a model server and tests can script exact outcomes.
type LocalAdapter struct {
	mu  sync.Mutex
	rng *rand.Rand

	maxPerFrame int
}

// NewLocalAdapter creates a reference adapter seeded for reproducibility.
// The same seed always yields the same detection sequence.
func NewLocalAdapter(seed int64) *LocalAdapter {
	return &LocalAdapter{
		rng:         rand.New(rand.NewPCG(uint64(seed), uint64(seed)+1)),
		maxPerFrame: 5,
	}
}

// Detect synthesizes up to maxPerFrame detections and filters them to the
// threshold, like any conforming adapter would.
func (a *LocalAdapter) Detect(ctx context.Context, frame *models.Frame, threshold float32, modelID string) ([]models.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	count := a.rng.IntN(a.maxPerFrame + 1)
	detections := make([]models.Detection, 0, count)
	for i := 0; i < count; i++ {
		w := 0.1 + a.rng.Float32()*0.3
		h := 0.1 + a.rng.Float32()*0.3
		detections = append(detections, models.Detection{
			Class:      localClasses[a.rng.IntN(len(localClasses))],
			Confidence: 0.3 + a.rng.Float32()*0.7,
			BBox: models.BBox{
				X: a.rng.Float32() * (1 - w),
				Y: a.rng.Float32() * (1 - h),
				W: w,
				H: h,
			},
		})
	}

	return models.FilterByThreshold(detections, threshold), nil
}

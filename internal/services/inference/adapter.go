package inference

import (
	"context"
	"errors"

	"vision-annotator-go/internal/models"
)

// ErrInference marks a failed adapter call. The scheduler treats it as
// non-fatal: the previous cycle's detections stay on screen.
var ErrInference = errors.New("inference failed")

// Adapter is the pluggable boundary between the frame loop and whatever
// produces detections. Implementations are stateless between calls and must
// never return a detection below the given threshold.
type Adapter interface {
	Detect(ctx context.Context, frame *models.Frame, threshold float32, modelID string) ([]models.Detection, error)
}

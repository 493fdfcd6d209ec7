package models

// Detection represents one recognized object instance from the inference
// backend. Coordinates are normalized to [0,1] relative to the source frame,
// so a detection stays valid across render-surface resizes.
type Detection struct {
	Class      string  `json:"class"`
	Confidence float32 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// BBox is a normalized bounding box: x/y is the top-left corner, w/h the
// extent, all in [0,1].
type BBox struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	W float32 `json:"w"`
	H float32 `json:"h"`
}

// ClassCount is one entry of the per-class histogram.
type ClassCount struct {
	Class string `json:"class"`
	Count int    `json:"count"`
}

// Statistics is the aggregate derived from a single frame's detection list.
// It is recomputed from scratch each cycle, never accumulated across cycles.
type Statistics struct {
	ClassCounts   []ClassCount `json:"class_counts"`
	TotalObjects  int          `json:"total_objects"`
	AvgConfidence float64      `json:"avg_confidence"`
}

// FilterByThreshold returns only the detections whose confidence is at or
// above threshold, preserving input order.
func FilterByThreshold(detections []Detection, threshold float32) []Detection {
	filtered := make([]Detection, 0, len(detections))
	for _, det := range detections {
		if det.Confidence >= threshold {
			filtered = append(filtered, det)
		}
	}
	return filtered
}

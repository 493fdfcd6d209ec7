package models

// ModelInfo describes one entry of the fixed model catalog. The identifiers
// trade inference speed for accuracy, smallest first.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ModelCatalog is the fixed set of model identifiers the core accepts.
var ModelCatalog = []ModelInfo{
	{ID: "yolov8n", Name: "YOLOv8 Nano", Description: "Smallest and fastest model"},
	{ID: "yolov8s", Name: "YOLOv8 Small", Description: "Small model, good balance"},
	{ID: "yolov8m", Name: "YOLOv8 Medium", Description: "Medium-sized model"},
	{ID: "yolov8l", Name: "YOLOv8 Large", Description: "Large model, high accuracy"},
	{ID: "yolov8x", Name: "YOLOv8 XLarge", Description: "Largest, most accurate model"},
}

// IsValidModel reports whether id belongs to the catalog.
func IsValidModel(id string) bool {
	for _, m := range ModelCatalog {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Recognized threshold range for the confidence setting.
const (
	MinThreshold float32 = 0.1
	MaxThreshold float32 = 0.9
)

// ClampThreshold forces t into the recognized [MinThreshold, MaxThreshold]
// range.
func ClampThreshold(t float32) float32 {
	if t < MinThreshold {
		return MinThreshold
	}
	if t > MaxThreshold {
		return MaxThreshold
	}
	return t
}

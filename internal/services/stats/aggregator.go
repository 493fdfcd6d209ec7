package stats

import (
	"sort"

	"vision-annotator-go/internal/models"
)

// Aggregate derives per-frame statistics from a detection list in one pass.
// Class counts are ordered by descending count for display; ties keep
// first-encountered order. The average confidence is 0 for an empty list.
// Pure function: no side effects, no memory beyond the input.
func Aggregate(detections []models.Detection) models.Statistics {
	result := models.Statistics{
		ClassCounts:  []models.ClassCount{},
		TotalObjects: len(detections),
	}

	if len(detections) == 0 {
		return result
	}

	index := make(map[string]int, len(detections))
	var confidenceSum float64

	for _, det := range detections {
		confidenceSum += float64(det.Confidence)
		if i, seen := index[det.Class]; seen {
			result.ClassCounts[i].Count++
			continue
		}
		index[det.Class] = len(result.ClassCounts)
		result.ClassCounts = append(result.ClassCounts, models.ClassCount{Class: det.Class, Count: 1})
	}

	sort.SliceStable(result.ClassCounts, func(i, j int) bool {
		return result.ClassCounts[i].Count > result.ClassCounts[j].Count
	})

	result.AvgConfidence = confidenceSum / float64(len(detections))
	return result
}

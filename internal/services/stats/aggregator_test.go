package stats

import (
	"math"
	"testing"

	"vision-annotator-go/internal/models"
)

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil)
	if got.TotalObjects != 0 {
		t.Errorf("TotalObjects = %d, want 0", got.TotalObjects)
	}
	if got.AvgConfidence != 0 {
		t.Errorf("AvgConfidence = %v, want 0", got.AvgConfidence)
	}
	if got.ClassCounts == nil || len(got.ClassCounts) != 0 {
		t.Errorf("ClassCounts should be empty non-nil, got %#v", got.ClassCounts)
	}
}

func TestAggregateCountsAndAverage(t *testing.T) {
	detections := []models.Detection{
		{Class: "person", Confidence: 0.9},
		{Class: "car", Confidence: 0.8},
		{Class: "person", Confidence: 0.7},
		{Class: "person", Confidence: 0.6},
		{Class: "dog", Confidence: 0.5},
	}

	got := Aggregate(detections)

	if got.TotalObjects != 5 {
		t.Errorf("TotalObjects = %d, want 5", got.TotalObjects)
	}

	sum := 0
	for _, cc := range got.ClassCounts {
		sum += cc.Count
	}
	if sum != got.TotalObjects {
		t.Errorf("class counts sum to %d, want %d", sum, got.TotalObjects)
	}

	if got.ClassCounts[0].Class != "person" || got.ClassCounts[0].Count != 3 {
		t.Errorf("top class = %+v, want person x3", got.ClassCounts[0])
	}

	wantAvg := (0.9 + 0.8 + 0.7 + 0.6 + 0.5) / 5
	if math.Abs(got.AvgConfidence-wantAvg) > 1e-6 {
		t.Errorf("AvgConfidence = %v, want %v", got.AvgConfidence, wantAvg)
	}
}

func TestAggregateDescendingOrderStableTies(t *testing.T) {
	detections := []models.Detection{
		{Class: "car", Confidence: 0.9},
		{Class: "dog", Confidence: 0.9},
		{Class: "person", Confidence: 0.9},
		{Class: "person", Confidence: 0.9},
	}

	got := Aggregate(detections)

	if got.ClassCounts[0].Class != "person" {
		t.Errorf("top class = %q, want person", got.ClassCounts[0].Class)
	}
	// car and dog tie at 1; first-encountered order is preserved.
	if got.ClassCounts[1].Class != "car" || got.ClassCounts[2].Class != "dog" {
		t.Errorf("tie order = [%s %s], want [car dog]", got.ClassCounts[1].Class, got.ClassCounts[2].Class)
	}
}

func TestAggregateRecomputedNotAccumulated(t *testing.T) {
	first := Aggregate([]models.Detection{{Class: "person", Confidence: 0.9}})
	second := Aggregate([]models.Detection{{Class: "car", Confidence: 0.8}})

	if first.TotalObjects != 1 || second.TotalObjects != 1 {
		t.Errorf("totals = %d, %d; aggregation must not carry state across calls", first.TotalObjects, second.TotalObjects)
	}
	if second.ClassCounts[0].Class != "car" {
		t.Errorf("second result polluted by first: %+v", second.ClassCounts)
	}
}

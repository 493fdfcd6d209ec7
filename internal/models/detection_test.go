package models

import "testing"

func TestFilterByThreshold(t *testing.T) {
	detections := []Detection{
		{Class: "person", Confidence: 0.95},
		{Class: "car", Confidence: 0.85},
		{Class: "dog", Confidence: 0.91},
	}

	filtered := FilterByThreshold(detections, 0.9)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 detections at threshold 0.9, got %d", len(filtered))
	}
	if filtered[0].Class != "person" || filtered[1].Class != "dog" {
		t.Errorf("expected order [person dog], got [%s %s]", filtered[0].Class, filtered[1].Class)
	}
}

func TestFilterByThresholdBoundaryInclusive(t *testing.T) {
	detections := []Detection{{Class: "car", Confidence: 0.5}}
	if got := FilterByThreshold(detections, 0.5); len(got) != 1 {
		t.Errorf("confidence equal to threshold must pass, got %d detections", len(got))
	}
}

func TestFilterByThresholdEmpty(t *testing.T) {
	if got := FilterByThreshold(nil, 0.5); len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}
}

func TestClampThreshold(t *testing.T) {
	cases := []struct {
		in, want float32
	}{
		{0.0, MinThreshold},
		{0.05, MinThreshold},
		{0.1, 0.1},
		{0.5, 0.5},
		{0.9, 0.9},
		{0.95, MaxThreshold},
		{-1, MinThreshold},
	}
	for _, c := range cases {
		if got := ClampThreshold(c.in); got != c.want {
			t.Errorf("ClampThreshold(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestIsValidModel(t *testing.T) {
	for _, m := range ModelCatalog {
		if !IsValidModel(m.ID) {
			t.Errorf("catalog model %q rejected", m.ID)
		}
	}
	if IsValidModel("yolov9z") {
		t.Error("unknown model accepted")
	}
	if IsValidModel("") {
		t.Error("empty model accepted")
	}
}

func TestSourceKindIsValid(t *testing.T) {
	for _, k := range []SourceKind{SourceNone, SourceWebcam, SourceFile} {
		if !k.IsValid() {
			t.Errorf("kind %q should be valid", k)
		}
	}
	if SourceKind("screen").IsValid() {
		t.Error("unknown kind accepted")
	}
}

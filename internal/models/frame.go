package models

import "time"

// Frame is one raster snapshot from the active video source. Data holds raw
// BGR24 bytes (OpenCV layout). A frame is owned by the scheduler for exactly
// one cycle and must not be retained past it.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Seq       int64
	Timestamp time.Time
}

// SourceKind identifies the kind of video source currently active.
type SourceKind string

const (
	SourceNone   SourceKind = "none"
	SourceWebcam SourceKind = "webcam"
	SourceFile   SourceKind = "file"
)

// IsValid reports whether the source kind is one of the known variants.
func (k SourceKind) IsValid() bool {
	switch k {
	case SourceNone, SourceWebcam, SourceFile:
		return true
	default:
		return false
	}
}

// SourceSpec describes a video source to activate. Device is the capture
// device index for webcams; URL is the resolved path or URL for file sources.
type SourceSpec struct {
	Kind   SourceKind `json:"type"`
	Device int        `json:"device,omitempty"`
	URL    string     `json:"url,omitempty"`
}

// RecordingState is the recording controller's state machine position.
type RecordingState string

const (
	RecordingIdle    RecordingState = "idle"
	RecordingActive  RecordingState = "recording"
	RecordingStopped RecordingState = "stopped"
)

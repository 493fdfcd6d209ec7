package models

import "time"

// SourceRequest selects the active video source.
type SourceRequest struct {
	Type   SourceKind `json:"type" binding:"required"`
	Device *int       `json:"device,omitempty"`
	URL    string     `json:"url,omitempty"`
}

// SettingsRequest adjusts the externally tunable detection parameters. Both
// fields are optional; absent fields keep their current value.
type SettingsRequest struct {
	Threshold *float32 `json:"threshold,omitempty"`
	Model     *string  `json:"model,omitempty"`
}

// PipelineStatus is the externally visible snapshot of the pipeline.
type PipelineStatus struct {
	Source     SourceSpec `json:"source"`
	Detecting  bool       `json:"detecting"`
	Recording  bool       `json:"recording"`
	Model      string     `json:"model"`
	Threshold  float32    `json:"threshold"`
	FPS        float64    `json:"fps"`
	FrameSeq   int64      `json:"frame_seq"`
	Detections int        `json:"detections"`
}

// StatsResponse combines the current-frame statistics with pipeline status.
type StatsResponse struct {
	Statistics Statistics     `json:"statistics"`
	Status     PipelineStatus `json:"status"`
}

// RecordingStatusResponse reports the recording controller state.
type RecordingStatusResponse struct {
	State        RecordingState `json:"state"`
	Segments     int            `json:"segments"`
	BytesWritten int64          `json:"bytes_written"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
}

// RecordingSessionEvent is the message published when a recording session is
// finalized.
type RecordingSessionEvent struct {
	WorkerID   string    `json:"worker_id"`
	Segments   int       `json:"segments"`
	TotalBytes int64     `json:"total_bytes"`
	StartedAt  time.Time `json:"started_at"`
	StoppedAt  time.Time `json:"stopped_at"`
}

// StatsEvent is the per-cycle statistics message published to the bus.
type StatsEvent struct {
	WorkerID   string     `json:"worker_id"`
	FrameSeq   int64      `json:"frame_seq"`
	Model      string     `json:"model"`
	Threshold  float32    `json:"threshold"`
	Statistics Statistics `json:"statistics"`
	Timestamp  time.Time  `json:"timestamp"`
}

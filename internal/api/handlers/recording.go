package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"vision-annotator-go/internal/logging"
	"vision-annotator-go/internal/services/pipeline"
	"vision-annotator-go/internal/services/recorder"
)

type RecordingHandler struct {
	pipeline *pipeline.Manager
	recorder *recorder.Service
}

func NewRecordingHandler(p *pipeline.Manager, r *recorder.Service) *RecordingHandler {
	return &RecordingHandler{pipeline: p, recorder: r}
}

// @Summary Start recording
// @Description Begin capturing the annotated stream. Requires an active video source. A restart discards the previous unexported session. Idempotent while recording.
// @Tags recording
// @Accept json
// @Produce json
// @Success 200 {object} models.RecordingStatusResponse
// @Failure 409 {object} ErrorResponse
// @Router /recording/start [post]
func (h *RecordingHandler) Start(c *gin.Context) {
	if err := h.pipeline.StartRecording(); err != nil {
		if errors.Is(err, recorder.ErrNoActiveStream) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
			return
		}
		logging.Error(c).Err(err).Msg("Recording start failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.recorder.Status())
}

// @Summary Stop recording
// @Description Finalize the current recording session. Idempotent.
// @Tags recording
// @Accept json
// @Produce json
// @Success 200 {object} models.RecordingStatusResponse
// @Router /recording/stop [post]
func (h *RecordingHandler) Stop(c *gin.Context) {
	h.pipeline.StopRecording()
	c.JSON(http.StatusOK, h.recorder.Status())
}

// @Summary Recording status
// @Description Recording state, segment count and bytes written
// @Tags recording
// @Accept json
// @Produce json
// @Success 200 {object} models.RecordingStatusResponse
// @Router /recording/status [get]
func (h *RecordingHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.recorder.Status())
}

// @Summary Export recording
// @Description Download the recorded session as a single MP4 file
// @Tags recording
// @Produce octet-stream
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Router /recording/export [get]
func (h *RecordingHandler) Export(c *gin.Context) {
	data, filename, err := h.recorder.Export()
	if err != nil {
		if errors.Is(err, recorder.ErrNothingRecorded) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
		logging.Error(c).Err(err).Msg("Recording export failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "video/mp4", data)
}

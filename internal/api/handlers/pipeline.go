package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vision-annotator-go/internal/config"
	"vision-annotator-go/internal/logging"
	"vision-annotator-go/internal/models"
	"vision-annotator-go/internal/services/pipeline"
	"vision-annotator-go/internal/services/source"
)

type PipelineHandler struct {
	cfg      *config.Config
	pipeline *pipeline.Manager
}

func NewPipelineHandler(cfg *config.Config, p *pipeline.Manager) *PipelineHandler {
	return &PipelineHandler{cfg: cfg, pipeline: p}
}

type ErrorResponse struct {
	Error string `json:"error" example:"camera permission denied"`
}

type AckResponse struct {
	Status string `json:"status" example:"ok"`
}

// @Summary Switch video source
// @Description Activate a webcam or file source; "none" releases the current source. Detection and recording are stopped before switching.
// @Tags pipeline
// @Accept json
// @Produce json
// @Param request body models.SourceRequest true "Source selection"
// @Success 200 {object} models.PipelineStatus
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /source [post]
func (h *PipelineHandler) SwitchSource(c *gin.Context) {
	var req models.SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	spec := models.SourceSpec{Kind: req.Type, URL: req.URL, Device: h.cfg.DefaultDevice}
	if req.Device != nil {
		spec.Device = *req.Device
	}

	if err := h.pipeline.SwitchSource(spec); err != nil {
		logging.Warn(c).Err(err).Str("source", string(spec.Kind)).Msg("Source switch failed")
		c.JSON(sourceErrorStatus(err), ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.pipeline.Status())
}

// @Summary Start detection
// @Description Begin the detect/render loop. Activates the default webcam when no source is selected. Idempotent.
// @Tags pipeline
// @Accept json
// @Produce json
// @Success 200 {object} models.PipelineStatus
// @Failure 403 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /detection/start [post]
func (h *PipelineHandler) StartDetection(c *gin.Context) {
	if err := h.pipeline.StartDetection(); err != nil {
		logging.Warn(c).Err(err).Msg("Detection start failed")
		c.JSON(sourceErrorStatus(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.pipeline.Status())
}

// @Summary Stop detection
// @Description Halt the detect/render loop. The video source stays active. Idempotent.
// @Tags pipeline
// @Accept json
// @Produce json
// @Success 200 {object} models.PipelineStatus
// @Router /detection/stop [post]
func (h *PipelineHandler) StopDetection(c *gin.Context) {
	h.pipeline.StopDetection()
	c.JSON(http.StatusOK, h.pipeline.Status())
}

// @Summary Update detection settings
// @Description Adjust confidence threshold and/or model. The threshold is clamped to [0.1, 0.9]; the model must be in the catalog.
// @Tags pipeline
// @Accept json
// @Produce json
// @Param request body models.SettingsRequest true "Settings to change"
// @Success 200 {object} models.PipelineStatus
// @Failure 400 {object} ErrorResponse
// @Router /settings [put]
func (h *PipelineHandler) UpdateSettings(c *gin.Context) {
	var req models.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.pipeline.UpdateSettings(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.pipeline.Status())
}

// @Summary Pipeline status
// @Description Current source, detection/recording flags, settings and loop FPS
// @Tags pipeline
// @Accept json
// @Produce json
// @Success 200 {object} models.PipelineStatus
// @Router /status [get]
func (h *PipelineHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.pipeline.Status())
}

// @Summary Detection statistics
// @Description Per-class counts, total objects and average confidence for the current frame
// @Tags pipeline
// @Accept json
// @Produce json
// @Success 200 {object} models.StatsResponse
// @Router /stats [get]
func (h *PipelineHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.pipeline.Stats())
}

// sourceErrorStatus maps source activation failures to HTTP statuses.
func sourceErrorStatus(err error) int {
	switch {
	case errors.Is(err, source.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, source.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

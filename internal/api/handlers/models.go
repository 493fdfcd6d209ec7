package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vision-annotator-go/internal/models"
)

type ModelHandler struct{}

func NewModelHandler() *ModelHandler {
	return &ModelHandler{}
}

type ModelListResponse struct {
	Models []models.ModelInfo `json:"models"`
}

// @Summary List detection models
// @Description Get the fixed catalog of selectable detection models
// @Tags models
// @Accept json
// @Produce json
// @Success 200 {object} ModelListResponse
// @Router /models [get]
func (h *ModelHandler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, ModelListResponse{Models: models.ModelCatalog})
}

package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"vision-annotator-go/internal/api/handlers"
	"vision-annotator-go/internal/config"
	"vision-annotator-go/internal/services"
)

type Server struct {
	config *config.Config
	router *gin.Engine
	server *http.Server

	healthHandler    *handlers.HealthHandler
	modelHandler     *handlers.ModelHandler
	pipelineHandler  *handlers.PipelineHandler
	recordingHandler *handlers.RecordingHandler
}

func NewServer(cfg *config.Config, container *services.ServiceContainer) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:           cfg,
		router:           gin.New(),
		healthHandler:    handlers.NewHealthHandler(cfg),
		modelHandler:     handlers.NewModelHandler(),
		pipelineHandler:  handlers.NewPipelineHandler(cfg, container.Pipeline),
		recordingHandler: handlers.NewRecordingHandler(container.Pipeline, container.Recorder),
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.setupSwagger()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.router,
	}

	return s
}

func (s *Server) Start() error {
	log.Info().Int("port", s.config.Port).Msg("Starting annotator API")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"vision-annotator-go/internal/config"
	"vision-annotator-go/internal/helpers"
	"vision-annotator-go/internal/services/inference"
	"vision-annotator-go/internal/services/messaging"
	"vision-annotator-go/internal/services/overlay"
	"vision-annotator-go/internal/services/pipeline"
	"vision-annotator-go/internal/services/recorder"
	"vision-annotator-go/internal/services/scheduler"
	"vision-annotator-go/internal/services/source"
	"vision-annotator-go/internal/state"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config    *config.Config
	Store     *state.Store
	Messaging *messaging.Service
	Sources   *source.Manager
	Recorder  *recorder.Service
	Scheduler *scheduler.Service
	Pipeline  *pipeline.Manager
}

// NewServiceContainer creates a new service container
func NewServiceContainer(cfg *config.Config) (*ServiceContainer, error) {
	store := state.New(cfg.ModelID, float32(cfg.Threshold))

	// NATS is optional; the pipeline runs standalone without it.
	var msg *messaging.Service
	if cfg.NatsEnabled {
		var err error
		msg, err = messaging.NewService(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect messaging: %w", err)
		}
	}

	adapter, err := buildAdapter(cfg)
	if err != nil {
		return nil, err
	}

	sources := source.NewManager(cfg)

	// Interface wrapping: a typed nil must not become a non-nil interface.
	var recPublisher recorder.Publisher
	var schedPublisher scheduler.Publisher
	if msg != nil {
		recPublisher = msg
		schedPublisher = msg
	}

	rec := recorder.NewService(cfg, func() bool { return sources.Active() != nil }, recPublisher)
	sched := scheduler.NewService(cfg, store, adapter, overlay.NewRenderer(), rec, schedPublisher)
	pipe := pipeline.NewManager(cfg, store, pipeline.WrapSources(sources), sched, rec)

	return &ServiceContainer{
		Config:    cfg,
		Store:     store,
		Messaging: msg,
		Sources:   sources,
		Recorder:  rec,
		Scheduler: sched,
		Pipeline:  pipe,
	}, nil
}

// buildAdapter selects the configured detection backend.
func buildAdapter(cfg *config.Config) (inference.Adapter, error) {
	switch cfg.InferenceMode {
	case "remote":
		log.Info().Str("url", cfg.InferenceURL).Msg("Using remote inference adapter")
		return inference.NewRemoteAdapter(cfg.InferenceURL, cfg.InferenceTimeout, helpers.EncodeFrameJPEG), nil
	case "local":
		log.Info().Int64("seed", cfg.LocalSeed).Msg("Using local inference adapter")
		return inference.NewLocalAdapter(cfg.LocalSeed), nil
	default:
		return nil, fmt.Errorf("unknown inference mode %q", cfg.InferenceMode)
	}
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	if sc.Pipeline != nil {
		sc.Pipeline.Shutdown()
	}

	if sc.Messaging != nil {
		if err := sc.Messaging.Shutdown(ctx); err != nil {
			return err
		}
	}

	return nil
}

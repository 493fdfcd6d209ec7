package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"vision-annotator-go/internal/config"
)

func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("worker_id", cfg.WorkerID).Str("service", service).Logger()
}

func WithSource(base zerolog.Logger, source string) zerolog.Logger {
	return base.With().Str("source", source).Logger()
}

package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lsd-worker-go/internal/config"
)

func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("worker_id", cfg.WorkerID).Str("service", service).Logger()
}

// WithRequest tags a logger with the request id
func WithRequest(base zerolog.Logger, requestID string) zerolog.Logger {
	if requestID == "" {
		return base
	}
	return base.With().Str("request_id", requestID).Logger()
}

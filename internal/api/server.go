package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"lsd-worker-go/internal/api/handlers"
	"lsd-worker-go/internal/api/middleware"
	"lsd-worker-go/internal/config"
	"lsd-worker-go/internal/services"
)

type Server struct {
	config    *config.Config
	router    *gin.Engine
	server    *http.Server
	container *services.ServiceContainer

	healthHandler     *handlers.HealthHandler
	assessmentHandler *handlers.AssessmentHandler
}

// NewServer builds the service container and the HTTP router
func NewServer(cfg *config.Config) (*Server, error) {
	container, err := services.NewServiceContainer(cfg)
	if err != nil {
		return nil, fmt.Errorf("create service container: %w", err)
	}
	return newServer(cfg, container), nil
}

func newServer(cfg *config.Config, container *services.ServiceContainer) *Server {
	gin.SetMode(gin.ReleaseMode)

	// keep a nil *alerting.Service out of the interface
	var alerts handlers.AlertProcessor
	if container.Alerts != nil {
		alerts = container.Alerts
	}

	s := &Server{
		config:        cfg,
		router:        gin.New(),
		container:     container,
		healthHandler: handlers.NewHealthHandler(cfg.WorkerID, cfg.Version, container),
		assessmentHandler: handlers.NewAssessmentHandler(
			container.Pipeline,
			container.Geocoder,
			container.Weather,
			alerts,
			cfg.JPEGQuality,
		),
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.setupSwagger()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestContext())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.BodyLimit(s.config.MaxUploadSize))
}

func (s *Server) Start() error {
	log.Info().Int("port", s.config.Port).Msg("Starting LSD worker API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then releases the services
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Stopping LSD worker API")
	httpErr := s.server.Shutdown(ctx)
	return errors.Join(httpErr, s.container.Shutdown(ctx))
}

func (s *Server) Handler() http.Handler {
	return s.router
}

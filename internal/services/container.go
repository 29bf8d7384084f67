package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"lsd-worker-go/internal/config"
	"lsd-worker-go/internal/logging"
	"lsd-worker-go/internal/services/alerting"
	"lsd-worker-go/internal/services/annotation"
	"lsd-worker-go/internal/services/classifier"
	"lsd-worker-go/internal/services/detection"
	"lsd-worker-go/internal/services/fusion"
	"lsd-worker-go/internal/services/lookup"
	"lsd-worker-go/internal/services/messaging"
	"lsd-worker-go/internal/services/pipeline"
)

// ModelStatus reports whether a model handle loaded at start. Active names the handle the
// pipeline is actually running, which is "unavailable" when loading failed.
type ModelStatus struct {
	Backend string `json:"backend"`
	Active  string `json:"active"`
	Ready   bool   `json:"ready"`
	Error   string `json:"error,omitempty"`
}

// ServiceContainer holds all services
type ServiceContainer struct {
	Config    *config.Config
	Pipeline  *pipeline.Pipeline
	Geocoder  lookup.Geocoder
	Weather   lookup.WeatherProvider
	Messaging *messaging.Service
	Alerts    *alerting.Service

	Classifier ModelStatus
	Detector   ModelStatus

	onnx *detection.ONNXDetector
}

// NewServiceContainer loads the model handles once and wires the request pipeline.
// A model that fails to load is replaced by a stand-in that fails every call, so the
// worker still starts and reports itself degraded.
func NewServiceContainer(cfg *config.Config) (*ServiceContainer, error) {
	sc := &ServiceContainer{Config: cfg}

	cls, err := loadClassifier(cfg)
	sc.Classifier = status(cfg.ClassifierBackend, err)
	if err != nil {
		log.Error().Err(err).Str("backend", cfg.ClassifierBackend).Msg("Risk classifier unavailable")
		cls = classifier.Unavailable{Reason: err}
	}

	det, err := sc.loadDetector(cfg)
	sc.Detector = status(cfg.DetectorBackend, err)
	if err != nil {
		log.Error().Err(err).Str("backend", cfg.DetectorBackend).Msg("Detector unavailable")
		det = detection.Unavailable{Reason: err}
	}

	opts := []fusion.Option{fusion.WithInfectedClasses(cfg.InfectedClasses...)}
	if cfg.StrictTaxonomy {
		opts = append(opts, fusion.WithStrictTaxonomy(cfg.ConfirmConfidence))
	}

	sc.Pipeline = pipeline.New(
		cls,
		det,
		fusion.NewPolicy(opts...),
		annotation.NewRenderer(),
		cfg.DetectorMinConfidence,
		logging.NewServiceLogger(cfg, "pipeline"),
	)

	sc.Geocoder = lookup.NewGeocoder(cfg.GeocodingURL, cfg.GeocodingAPIKey, cfg.LookupTimeout)
	sc.Weather = lookup.NewOpenWeather(cfg.WeatherURL, cfg.WeatherAPIKey, cfg.LookupTimeout)

	if cfg.NatsEnabled {
		msg, err := messaging.NewService(cfg)
		if err != nil {
			// Alerts are best effort; the worker serves assessments without them
			log.Warn().Err(err).Msg("NATS unavailable, alerts disabled")
		} else {
			sc.Messaging = msg
			alerts, err := alerting.NewService(msg, cfg.AlertsSubject, cfg.WorkerID, cfg.AlertsCooldown, logging.NewServiceLogger(cfg, "alerting"))
			if err != nil {
				return nil, fmt.Errorf("create alerting service: %w", err)
			}
			sc.Alerts = alerts
		}
	}

	log.Info().
		Str("classifier", sc.Classifier.Backend).
		Bool("classifier_ready", sc.Classifier.Ready).
		Str("detector", sc.Detector.Backend).
		Bool("detector_ready", sc.Detector.Ready).
		Bool("strict_taxonomy", cfg.StrictTaxonomy).
		Bool("alerts_enabled", sc.Alerts != nil).
		Msg("Service container initialized")

	return sc, nil
}

// Healthy reports whether both model handles loaded
func (sc *ServiceContainer) Healthy() bool {
	return sc.Classifier.Ready && sc.Detector.Ready
}

// ModelStatuses returns the load state of each model handle
func (sc *ServiceContainer) ModelStatuses() map[string]ModelStatus {
	cls, det := sc.Classifier, sc.Detector
	if sc.Pipeline != nil {
		cls.Active, det.Active = sc.Pipeline.ModelNames()
	}
	return map[string]ModelStatus{
		"classifier": cls,
		"detector":   det,
	}
}

// AlertsEnabled reports whether alerts are being published
func (sc *ServiceContainer) AlertsEnabled() bool {
	return sc.Alerts != nil && sc.Messaging != nil && sc.Messaging.IsConnected()
}

func loadClassifier(cfg *config.Config) (classifier.RiskClassifier, error) {
	switch cfg.ClassifierBackend {
	case config.BackendForest:
		return classifier.LoadForest(cfg.ClassifierModelPath)
	case config.BackendRemote:
		if cfg.ClassifierURL == "" {
			return nil, errors.New("CLASSIFIER_URL is required for the remote backend")
		}
		return classifier.NewRemote(cfg.ClassifierURL, cfg.ModelTimeout), nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.ClassifierBackend)
	}
}

func (sc *ServiceContainer) loadDetector(cfg *config.Config) (detection.Detector, error) {
	switch cfg.DetectorBackend {
	case config.BackendONNX:
		d, err := detection.LoadONNX(cfg.DetectorModelPath, cfg.DetectorClasses, cfg.DetectorInputSize, cfg.DetectorNMSThreshold)
		if err != nil {
			return nil, err
		}
		sc.onnx = d
		return d, nil
	case config.BackendRemote:
		if cfg.DetectorURL == "" {
			return nil, errors.New("DETECTOR_URL is required for the remote backend")
		}
		return detection.NewRemoteDetector(cfg.DetectorURL, cfg.ModelTimeout), nil
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.DetectorBackend)
	}
}

func status(backend string, err error) ModelStatus {
	if err != nil {
		return ModelStatus{Backend: backend, Error: err.Error()}
	}
	return ModelStatus{Backend: backend, Ready: true}
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	var errs []error

	if sc.Alerts != nil {
		if err := sc.Alerts.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if sc.Messaging != nil {
		if err := sc.Messaging.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if sc.onnx != nil {
		if err := sc.onnx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close detector: %w", err))
		}
	}

	return errors.Join(errs...)
}

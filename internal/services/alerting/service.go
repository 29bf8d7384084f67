// Package alerting publishes alerts for risky assessments, at most once per location and
// assessment code within the cooldown window.
package alerting

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lsd-worker-go/internal/logging"
	"lsd-worker-go/internal/models"
)

// Request carries what an alert needs beyond the assessment itself
type Request struct {
	LocationKey string
	Location    *models.Location
	RequestID   string
}

// Service handles alert decisions, cooldowns and publishing
type Service struct {
	publisher models.MessagePublisher
	subject   string
	workerID  string
	cooldown  time.Duration
	logger    zerolog.Logger

	cooldownMu sync.Mutex
	lastSent   map[string]time.Time

	// now is replaced in tests
	now func() time.Time
}

func NewService(publisher models.MessagePublisher, subject, workerID string, cooldown time.Duration, logger zerolog.Logger) (*Service, error) {
	if publisher == nil {
		return nil, fmt.Errorf("message publisher is required")
	}
	if subject == "" {
		subject = "lsd.alerts"
	}

	s := &Service{
		publisher: publisher,
		subject:   subject,
		workerID:  workerID,
		cooldown:  cooldown,
		logger:    logger,
		lastSent:  make(map[string]time.Time),
		now:       time.Now,
	}

	logger.Info().
		Str("subject", subject).
		Dur("cooldown", cooldown).
		Msg("Alerting service initialized")

	return s, nil
}

// Process publishes an alert for the assessment if its code warrants one and the cooldown
// allows it. It reports whether an alert was published. Publish failures are logged and
// returned but never affect the assessment.
func (s *Service) Process(a *models.Assessment, req Request) (bool, error) {
	if a == nil {
		return false, nil
	}
	decision := ShouldCreateAlert(a.Code)
	if !decision.ShouldAlert {
		return false, nil
	}

	key := models.AlertCooldownKey{LocationKey: normalizeLocation(req.LocationKey), Assessment: a.Code}
	logger := logging.WithRequest(s.logger, req.RequestID)

	release, ok := s.reserveCooldown(key)
	if !ok {
		logger.Debug().
			Str("location_key", key.LocationKey).
			Str("assessment", a.Code).
			Msg("Alert blocked by cooldown")
		return false, nil
	}

	payload := models.AlertPayload{
		LocationKey:    key.LocationKey,
		Assessment:     a.Code,
		Severity:       decision.Severity,
		Title:          decision.Title,
		Probability:    a.Verdict.Probability,
		TopConfidence:  a.TopConfidence(),
		DetectionCount: len(a.Decisions),
		WorkerID:       s.workerID,
		RequestID:      req.RequestID,
		Timestamp:      s.now().UTC(),
	}
	if req.Location != nil {
		lat, lng := req.Location.Latitude, req.Location.Longitude
		payload.Latitude = &lat
		payload.Longitude = &lng
	}

	if err := s.publisher.Publish(s.subject, payload); err != nil {
		release()
		logger.Error().
			Err(err).
			Str("location_key", key.LocationKey).
			Str("assessment", a.Code).
			Msg("Failed to publish alert")
		return false, err
	}

	logger.Info().
		Str("location_key", key.LocationKey).
		Str("assessment", a.Code).
		Str("severity", string(decision.Severity)).
		Msg("Alert published")

	return true, nil
}

// reserveCooldown claims the alert slot for the key if the cooldown allows it. The returned
// release restores the previous state and must be called if the alert is not published.
func (s *Service) reserveCooldown(key models.AlertCooldownKey) (release func(), ok bool) {
	s.cooldownMu.Lock()
	defer s.cooldownMu.Unlock()

	k := key.String()
	prev, had := s.lastSent[k]
	now := s.now()
	if had && now.Sub(prev) < s.cooldown {
		return nil, false
	}
	s.lastSent[k] = now

	return func() {
		s.cooldownMu.Lock()
		defer s.cooldownMu.Unlock()
		// a later reservation owns the slot now
		if !s.lastSent[k].Equal(now) {
			return
		}
		if had {
			s.lastSent[k] = prev
		} else {
			delete(s.lastSent, k)
		}
	}, true
}

// Shutdown stops the service gracefully
func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Alerting service shutdown")
	return nil
}

func normalizeLocation(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "unknown"
	}
	return strings.Join(strings.Fields(key), " ")
}

// Package classifier wraps the binary weather risk model.
package classifier

import (
	"context"
	"fmt"

	"lsd-worker-go/internal/models"
)

// RiskClassifier produces a verdict from the four weather features. Implementations are
// deterministic for a loaded model and safe for concurrent use.
type RiskClassifier interface {
	Assess(ctx context.Context, features models.WeatherFeatures) (models.RiskVerdict, error)
	Name() string
}

// Unavailable stands in for a classifier that failed to load
type Unavailable struct {
	Reason error
}

func (u Unavailable) Assess(ctx context.Context, features models.WeatherFeatures) (models.RiskVerdict, error) {
	return models.RiskVerdict{}, fmt.Errorf("%w: risk classifier: %v", models.ErrModelUnavailable, u.Reason)
}

func (u Unavailable) Name() string { return "unavailable" }

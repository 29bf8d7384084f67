package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"lsd-worker-go/internal/models"
)

// HTTPClient is the subset of *http.Client used by remote adapters
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Remote calls an external risk model service
type Remote struct {
	url    string
	client HTTPClient
}

type remoteRequest struct {
	Features []float64 `json:"features"`
}

type remoteResponse struct {
	Prediction  int     `json:"prediction"`
	Probability float64 `json:"probability"`
}

func NewRemote(url string, timeout time.Duration) *Remote {
	return NewRemoteWithClient(url, &http.Client{Timeout: timeout})
}

func NewRemoteWithClient(url string, client HTTPClient) *Remote {
	return &Remote{url: url, client: client}
}

func (r *Remote) Assess(ctx context.Context, features models.WeatherFeatures) (models.RiskVerdict, error) {
	body, err := json.Marshal(remoteRequest{Features: features.Vector()})
	if err != nil {
		return models.RiskVerdict{}, fmt.Errorf("marshal risk request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return models.RiskVerdict{}, fmt.Errorf("create risk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return models.RiskVerdict{}, fmt.Errorf("%w: risk service: %v", models.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.RiskVerdict{}, fmt.Errorf("%w: risk service returned status %d", models.ErrModelUnavailable, resp.StatusCode)
	}

	var result remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.RiskVerdict{}, fmt.Errorf("%w: decode risk response: %v", models.ErrModelUnavailable, err)
	}

	if result.Prediction != int(models.RiskLow) && result.Prediction != int(models.RiskHigh) {
		return models.RiskVerdict{}, fmt.Errorf("%w: decode risk response: prediction %d is not 0 or 1", models.ErrModelUnavailable, result.Prediction)
	}
	if math.IsNaN(result.Probability) || result.Probability < 0 || result.Probability > 1 {
		return models.RiskVerdict{}, fmt.Errorf("%w: decode risk response: probability %v outside [0, 1]", models.ErrModelUnavailable, result.Probability)
	}
	return models.RiskVerdict{PredictedClass: models.RiskClass(result.Prediction), Probability: result.Probability}, nil
}

func (r *Remote) Name() string { return "remote" }

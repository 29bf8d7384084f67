package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lsd-worker-go/internal/services"
)

// HealthReporter exposes model and messaging state
type HealthReporter interface {
	Healthy() bool
	ModelStatuses() map[string]services.ModelStatus
	AlertsEnabled() bool
}

type HealthHandler struct {
	WorkerID string
	Version  string
	reporter HealthReporter
}

func NewHealthHandler(workerID, version string, reporter HealthReporter) *HealthHandler {
	return &HealthHandler{WorkerID: workerID, Version: version, reporter: reporter}
}

type HealthResponse struct {
	Status        string                          `json:"status" example:"healthy"`
	WorkerID      string                          `json:"worker_id" example:"worker-1"`
	Models        map[string]services.ModelStatus `json:"models"`
	AlertsEnabled bool                            `json:"alerts_enabled"`
	Timestamp     int64                           `json:"timestamp"`
}

type WorkerInfoResponse struct {
	WorkerID     string   `json:"worker_id" example:"worker-1"`
	Status       string   `json:"status" example:"running"`
	Version      string   `json:"version" example:"1.0.0"`
	Uptime       string   `json:"uptime" example:"1h2m3s"`
	Capabilities []string `json:"capabilities"`
}

var startTime = time.Now()

// @Summary Health check
// @Description Reports healthy when both models loaded, degraded otherwise
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := "healthy"
	if !h.reporter.Healthy() {
		status = "degraded"
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:        status,
		WorkerID:      h.WorkerID,
		Models:        h.reporter.ModelStatuses(),
		AlertsEnabled: h.reporter.AlertsEnabled(),
		Timestamp:     time.Now().Unix(),
	})
}

// @Summary Worker information
// @Description Get basic worker information and capabilities
// @Tags health
// @Produce json
// @Success 200 {object} WorkerInfoResponse
// @Router / [get]
func (h *HealthHandler) WorkerInfo(c *gin.Context) {
	caps := []string{
		"weather_risk_classification",
		"lesion_detection",
		"image_annotation",
	}
	if h.reporter.AlertsEnabled() {
		caps = append(caps, "nats_alerts")
	}

	c.JSON(http.StatusOK, WorkerInfoResponse{
		WorkerID:     h.WorkerID,
		Status:       "running",
		Version:      h.Version,
		Uptime:       time.Since(startTime).Round(time.Second).String(),
		Capabilities: caps,
	})
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lsd-worker-go/internal/logging"
	"lsd-worker-go/internal/models"
)

var errUploadTooLarge = errors.New("upload too large")

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error     string `json:"error" example:"Invalid image file"`
	Detail    string `json:"detail,omitempty" example:"invalid image: empty upload"`
	RequestID string `json:"request_id,omitempty"`
}

// AssessmentResponse is returned by /predict and /assess
type AssessmentResponse struct {
	Assessment     string                 `json:"assessment" example:"infected|high"`
	AnnotatedImage string                 `json:"annotated_image"`
	Risk           string                 `json:"risk" example:"HIGH"`
	Probability    float64                `json:"probability" example:"0.87"`
	Detections     []models.Decision      `json:"detections"`
	Banner         *models.Case           `json:"banner,omitempty"`
	Features       models.WeatherFeatures `json:"features"`
	Weather        *models.WeatherRecord  `json:"weather,omitempty"`
	Location       *models.Location       `json:"location,omitempty"`
	AlertSent      bool                   `json:"alert_sent"`
	DurationMs     int64                  `json:"duration_ms" example:"142"`
	RequestID      string                 `json:"request_id,omitempty"`
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, RequestID: logging.RequestID(c)})
}

// writeError maps the error taxonomy onto HTTP status codes
func writeError(c *gin.Context, err error) {
	resp := ErrorResponse{Detail: err.Error(), RequestID: logging.RequestID(c)}
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, errUploadTooLarge):
		status = http.StatusRequestEntityTooLarge
		resp.Error = "Upload too large"
	case errors.Is(err, models.ErrInvalidImage):
		status = http.StatusBadRequest
		resp.Error = "Invalid image file"
	case errors.Is(err, models.ErrUpstreamLookupFailed):
		status = http.StatusBadRequest
		resp.Error = "Upstream lookup failed"
	case errors.Is(err, models.ErrModelUnavailable):
		status = http.StatusServiceUnavailable
		resp.Error = "Model unavailable"
	default:
		resp.Error = "Internal server error"
	}

	logging.Warn(c).Err(err).Int("status", status).Msg("Request failed")
	c.JSON(status, resp)
}

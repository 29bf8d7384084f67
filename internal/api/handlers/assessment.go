package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gocv.io/x/gocv"

	"lsd-worker-go/internal/helpers"
	"lsd-worker-go/internal/logging"
	"lsd-worker-go/internal/models"
	"lsd-worker-go/internal/services/alerting"
	"lsd-worker-go/internal/services/lookup"
)

// Pipeline runs one assessment on a canvas it may annotate
type Pipeline interface {
	Infer(ctx context.Context, canvas *gocv.Mat, features models.WeatherFeatures) (*models.Assessment, error)
}

// AlertProcessor publishes alerts for risky assessments
type AlertProcessor interface {
	Process(a *models.Assessment, req alerting.Request) (bool, error)
}

type AssessmentHandler struct {
	pipeline    Pipeline
	geocoder    lookup.Geocoder
	weather     lookup.WeatherProvider
	alerts      AlertProcessor
	jpegQuality int
}

// NewAssessmentHandler wires the assessment endpoints. alerts may be nil.
func NewAssessmentHandler(pipeline Pipeline, geocoder lookup.Geocoder, weather lookup.WeatherProvider, alerts AlertProcessor, jpegQuality int) *AssessmentHandler {
	return &AssessmentHandler{
		pipeline:    pipeline,
		geocoder:    geocoder,
		weather:     weather,
		alerts:      alerts,
		jpegQuality: jpegQuality,
	}
}

// Predict assesses an uploaded image using the current weather at an address
// @Summary Assess an image at an address
// @Description Geocodes the address, fetches current weather, runs the risk classifier and lesion detector, and returns the annotated image
// @Tags assessment
// @Accept multipart/form-data
// @Produce json
// @Param address formData string true "Farm address"
// @Param image formData file true "Cattle image"
// @Success 200 {object} AssessmentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /predict [post]
func (h *AssessmentHandler) Predict(c *gin.Context) {
	if err := parseUpload(c); err != nil {
		writeError(c, err)
		return
	}
	address := strings.TrimSpace(c.PostForm("address"))
	if address == "" {
		badRequest(c, "address is required")
		return
	}

	// decode first so a bad upload never costs a geocoding or weather call
	canvas, err := decodeUpload(c)
	defer canvas.Close()
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	loc, err := h.geocoder.Geocode(ctx, address)
	if err != nil {
		writeError(c, err)
		return
	}
	weather, err := h.weather.Current(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		writeError(c, err)
		return
	}

	logging.Debug(c).
		Str("address", address).
		Float64("lat", loc.Latitude).
		Float64("lng", loc.Longitude).
		Msg("Location resolved")

	h.respond(c, &canvas, weather.Features(), address, &loc, &weather)
}

// Assess assesses an uploaded image against weather features given directly
// @Summary Assess an image with explicit weather features
// @Description Runs the risk classifier on the given features and the lesion detector on the image
// @Tags assessment
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Cattle image"
// @Param tmp formData number true "Temperature"
// @Param vap formData number true "Vapor pressure"
// @Param pre formData number true "Precipitation"
// @Param cld formData number true "Cloud cover"
// @Param location formData string false "Location key used for alert cooldown"
// @Success 200 {object} AssessmentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /assess [post]
func (h *AssessmentHandler) Assess(c *gin.Context) {
	if err := parseUpload(c); err != nil {
		writeError(c, err)
		return
	}
	features, err := parseFeatures(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	canvas, err := decodeUpload(c)
	defer canvas.Close()
	if err != nil {
		writeError(c, err)
		return
	}

	h.respond(c, &canvas, features, c.PostForm("location"), nil, nil)
}

func (h *AssessmentHandler) respond(c *gin.Context, canvas *gocv.Mat, features models.WeatherFeatures, locationKey string, loc *models.Location, weather *models.WeatherRecord) {
	assessment, err := h.pipeline.Infer(c.Request.Context(), canvas, features)
	if err != nil {
		writeError(c, err)
		return
	}

	encoded, err := helpers.EncodeJPEGBase64(*canvas, h.jpegQuality)
	if err != nil {
		writeError(c, err)
		return
	}

	requestID := logging.RequestID(c)
	alertSent := false
	if h.alerts != nil {
		// publish failures are logged by the alerting service and never fail the request
		alertSent, _ = h.alerts.Process(assessment, alerting.Request{
			LocationKey: locationKey,
			Location:    loc,
			RequestID:   requestID,
		})
	}

	decisions := assessment.Decisions
	if decisions == nil {
		decisions = []models.Decision{}
	}

	logging.Info(c).
		Str("assessment", assessment.Code).
		Float64("probability", assessment.Verdict.Probability).
		Int("detections", len(decisions)).
		Bool("alert_sent", alertSent).
		Msg("Assessment served")

	c.JSON(http.StatusOK, AssessmentResponse{
		Assessment:     assessment.Code,
		AnnotatedImage: encoded,
		Risk:           assessment.Verdict.PredictedClass.String(),
		Probability:    assessment.Verdict.Probability,
		Detections:     decisions,
		Banner:         assessment.Banner,
		Features:       features,
		Weather:        weather,
		Location:       loc,
		AlertSent:      alertSent,
		DurationMs:     assessment.Duration.Milliseconds(),
		RequestID:      requestID,
	})
}

// parseUpload parses the multipart body once so that hitting the body limit is reported as
// such instead of surfacing later as a missing field. Other parse errors are left to the
// field checks.
func parseUpload(c *gin.Context) error {
	_, err := c.MultipartForm()
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: body exceeds %d bytes", errUploadTooLarge, maxErr.Limit)
	}
	return nil
}

// decodeUpload reads and decodes the image field. The returned Mat must be closed even on error.
func decodeUpload(c *gin.Context) (gocv.Mat, error) {
	data, err := readImage(c)
	if err != nil {
		return gocv.NewMat(), err
	}
	return helpers.DecodeImage(data)
}

func readImage(c *gin.Context) ([]byte, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("%w: image file is required: %v", models.ErrInvalidImage, err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open upload: %v", models.ErrInvalidImage, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %v", models.ErrInvalidImage, err)
	}
	return data, nil
}

func parseFeatures(c *gin.Context) (models.WeatherFeatures, error) {
	var f models.WeatherFeatures
	fields := []struct {
		name string
		dst  *float64
	}{
		{"tmp", &f.Temperature},
		{"vap", &f.VaporPressure},
		{"pre", &f.Precipitation},
		{"cld", &f.CloudCover},
	}
	for _, field := range fields {
		raw := strings.TrimSpace(c.PostForm(field.name))
		if raw == "" {
			return f, fmt.Errorf("%s is required", field.name)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return f, fmt.Errorf("%s must be a finite number", field.name)
		}
		*field.dst = v
	}
	return f, nil
}

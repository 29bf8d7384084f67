package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"lsd-worker-go/internal/api/middleware"
	"lsd-worker-go/internal/helpers"
	"lsd-worker-go/internal/models"
	"lsd-worker-go/internal/services"
	"lsd-worker-go/internal/services/alerting"
)

type fakePipeline struct {
	assessment *models.Assessment
	err        error
	gotCanvas  bool
	features   models.WeatherFeatures
}

func (f *fakePipeline) Infer(ctx context.Context, canvas *gocv.Mat, features models.WeatherFeatures) (*models.Assessment, error) {
	f.gotCanvas = canvas != nil && !canvas.Empty()
	f.features = features
	if f.err != nil {
		return nil, f.err
	}
	return f.assessment, nil
}

type fakeGeocoder struct {
	loc   models.Location
	err   error
	calls int
}

func (f *fakeGeocoder) Geocode(ctx context.Context, address string) (models.Location, error) {
	f.calls++
	if f.err != nil {
		return models.Location{}, f.err
	}
	loc := f.loc
	loc.Address = address
	return loc, nil
}

type fakeWeather struct {
	rec   models.WeatherRecord
	err   error
	lat   float64
	calls int
}

func (f *fakeWeather) Current(ctx context.Context, lat, lon float64) (models.WeatherRecord, error) {
	f.calls++
	f.lat = lat
	return f.rec, f.err
}

type fakeAlerts struct {
	reqs []alerting.Request
	err  error
}

func (f *fakeAlerts) Process(a *models.Assessment, req alerting.Request) (bool, error) {
	f.reqs = append(f.reqs, req)
	return f.err == nil, f.err
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	mat := gocv.NewMatWithSize(32, 32, gocv.MatTypeCV8UC3)
	defer mat.Close()
	data, err := helpers.EncodeJPEG(mat, 90)
	require.NoError(t, err)
	return data
}

func multipartRequest(t *testing.T, path string, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if image != nil {
		part, err := w.CreateFormFile("image", "cow.jpg")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func newRouter(h *AssessmentHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/predict", h.Predict)
	r.POST("/assess", h.Assess)
	return r
}

func highAssessment() *models.Assessment {
	return &models.Assessment{
		Code:    "infected|high",
		Verdict: models.RiskVerdict{PredictedClass: models.RiskHigh, Probability: 0.87},
		Decisions: []models.Decision{{
			Detection: models.Detection{Box: models.Box{XMin: 1, YMin: 1, XMax: 20, YMax: 20}, Confidence: 0.9, ClassName: "infected"},
			Case:      models.Case{Kind: models.CaseInfectedHigh, Code: "infected|high", ColorName: "red"},
		}},
	}
}

func TestPredict_Success(t *testing.T) {
	pipe := &fakePipeline{assessment: highAssessment()}
	weather := &fakeWeather{rec: models.WeatherRecord{Temperature: 31, Humidity: 70, Precipitation: 1.5, CloudCover: 60, VaporPressure: 1009}}
	alerts := &fakeAlerts{}
	h := NewAssessmentHandler(pipe, &fakeGeocoder{loc: models.Location{Latitude: 21.1, Longitude: 79.1}}, weather, alerts, 90)

	w := httptest.NewRecorder()
	newRouter(h).ServeHTTP(w, multipartRequest(t, "/predict", map[string]string{"address": "Nagpur"}, jpegBytes(t)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp AssessmentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "infected|high", resp.Assessment)
	assert.Equal(t, "HIGH", resp.Risk)
	assert.Len(t, resp.Detections, 1)
	require.NotNil(t, resp.Location)
	assert.Equal(t, "Nagpur", resp.Location.Address)
	assert.True(t, resp.AlertSent)

	raw, err := base64.StdEncoding.DecodeString(resp.AnnotatedImage)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, raw[:2])

	assert.True(t, pipe.gotCanvas)
	assert.Equal(t, 21.1, weather.lat)
	assert.Equal(t, models.WeatherFeatures{Temperature: 31, VaporPressure: 1009, Precipitation: 1.5, CloudCover: 60}, pipe.features)
	require.Len(t, alerts.reqs, 1)
	assert.Equal(t, "Nagpur", alerts.reqs[0].LocationKey)
}

func TestPredict_Errors(t *testing.T) {
	image := jpegBytes(t)
	tests := []struct {
		name       string
		fields     map[string]string
		image      []byte
		geocoder   *fakeGeocoder
		weather    *fakeWeather
		pipeline   *fakePipeline
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing address",
			fields:     map[string]string{},
			image:      image,
			wantStatus: http.StatusBadRequest,
			wantError:  "address is required",
		},
		{
			name:       "missing image",
			fields:     map[string]string{"address": "x"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid image file",
		},
		{
			name:       "undecodable image",
			fields:     map[string]string{"address": "x"},
			image:      []byte("not an image"),
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid image file",
		},
		{
			name:       "geocoding failed",
			fields:     map[string]string{"address": "x"},
			image:      image,
			geocoder:   &fakeGeocoder{err: fmt.Errorf("%w: failed to get coordinates: ZERO_RESULTS", models.ErrUpstreamLookupFailed)},
			wantStatus: http.StatusBadRequest,
			wantError:  "Upstream lookup failed",
		},
		{
			name:       "weather failed",
			fields:     map[string]string{"address": "x"},
			image:      image,
			weather:    &fakeWeather{err: fmt.Errorf("%w: failed to fetch weather data", models.ErrUpstreamLookupFailed)},
			wantStatus: http.StatusBadRequest,
			wantError:  "Upstream lookup failed",
		},
		{
			name:       "model unavailable",
			fields:     map[string]string{"address": "x"},
			image:      image,
			pipeline:   &fakePipeline{err: models.ErrModelUnavailable},
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "Model unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.geocoder == nil {
				tt.geocoder = &fakeGeocoder{}
			}
			if tt.weather == nil {
				tt.weather = &fakeWeather{}
			}
			if tt.pipeline == nil {
				tt.pipeline = &fakePipeline{assessment: highAssessment()}
			}
			h := NewAssessmentHandler(tt.pipeline, tt.geocoder, tt.weather, nil, 90)

			w := httptest.NewRecorder()
			newRouter(h).ServeHTTP(w, multipartRequest(t, "/predict", tt.fields, tt.image))

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
		})
	}
}

func TestPredict_UpstreamDetailKept(t *testing.T) {
	geo := &fakeGeocoder{err: fmt.Errorf("%w: failed to get coordinates: REQUEST_DENIED", models.ErrUpstreamLookupFailed)}
	h := NewAssessmentHandler(&fakePipeline{}, geo, &fakeWeather{}, nil, 90)

	w := httptest.NewRecorder()
	newRouter(h).ServeHTTP(w, multipartRequest(t, "/predict", map[string]string{"address": "x"}, jpegBytes(t)))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Detail, "REQUEST_DENIED")
}

func TestPredict_BadImageSkipsLookups(t *testing.T) {
	geo := &fakeGeocoder{err: fmt.Errorf("%w: failed to get coordinates: ZERO_RESULTS", models.ErrUpstreamLookupFailed)}
	weather := &fakeWeather{}
	h := NewAssessmentHandler(&fakePipeline{}, geo, weather, nil, 90)

	w := httptest.NewRecorder()
	newRouter(h).ServeHTTP(w, multipartRequest(t, "/predict", map[string]string{"address": "nowhere"}, []byte("not an image")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid image file", resp.Error)
	assert.Zero(t, geo.calls)
	assert.Zero(t, weather.calls)
}

func TestUpload_TooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAssessmentHandler(&fakePipeline{assessment: highAssessment()}, &fakeGeocoder{}, &fakeWeather{}, nil, 90)
	r := gin.New()
	r.Use(middleware.BodyLimit(512))
	r.POST("/predict", h.Predict)
	r.POST("/assess", h.Assess)

	oversized := bytes.Repeat([]byte{0xff}, 4096)
	tests := map[string]struct {
		path   string
		fields map[string]string
	}{
		"predict": {"/predict", map[string]string{"address": "Nagpur"}},
		"assess":  {"/assess", map[string]string{"tmp": "30", "vap": "1000", "pre": "5", "cld": "80"}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, multipartRequest(t, tt.path, tt.fields, oversized))

			assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "Upload too large", resp.Error)
		})
	}
}

func TestAssess_Success(t *testing.T) {
	pipe := &fakePipeline{assessment: &models.Assessment{
		Code:    "no_detection|low",
		Verdict: models.RiskVerdict{PredictedClass: models.RiskLow, Probability: 0.1},
		Banner:  &models.Case{Kind: models.CaseNoDetectionLow, Code: "no_detection|low", ColorName: "green"},
	}}
	h := NewAssessmentHandler(pipe, &fakeGeocoder{}, &fakeWeather{}, nil, 90)

	fields := map[string]string{"tmp": "24.5", "vap": "1012", "pre": "0", "cld": "35"}
	w := httptest.NewRecorder()
	newRouter(h).ServeHTTP(w, multipartRequest(t, "/assess", fields, jpegBytes(t)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp AssessmentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "no_detection|low", resp.Assessment)
	assert.NotNil(t, resp.Detections)
	assert.Empty(t, resp.Detections)
	require.NotNil(t, resp.Banner)
	assert.Nil(t, resp.Weather)
	assert.False(t, resp.AlertSent)
	assert.Equal(t, models.WeatherFeatures{Temperature: 24.5, VaporPressure: 1012, Precipitation: 0, CloudCover: 35}, pipe.features)
}

func TestAssess_BadFeatures(t *testing.T) {
	h := NewAssessmentHandler(&fakePipeline{}, &fakeGeocoder{}, &fakeWeather{}, nil, 90)

	tests := map[string]map[string]string{
		"missing cld":  {"tmp": "1", "vap": "2", "pre": "3"},
		"not a number": {"tmp": "hot", "vap": "2", "pre": "3", "cld": "4"},
		"infinite":     {"tmp": "1", "vap": "+Inf", "pre": "3", "cld": "4"},
	}
	for name, fields := range tests {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newRouter(h).ServeHTTP(w, multipartRequest(t, "/assess", fields, jpegBytes(t)))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAssess_AlertFailureDoesNotFailRequest(t *testing.T) {
	alerts := &fakeAlerts{err: fmt.Errorf("nats down")}
	h := NewAssessmentHandler(&fakePipeline{assessment: highAssessment()}, &fakeGeocoder{}, &fakeWeather{}, alerts, 90)

	fields := map[string]string{"tmp": "30", "vap": "1000", "pre": "5", "cld": "80", "location": "farm-9"}
	w := httptest.NewRecorder()
	newRouter(h).ServeHTTP(w, multipartRequest(t, "/assess", fields, jpegBytes(t)))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, alerts.reqs, 1)
	assert.Equal(t, "farm-9", alerts.reqs[0].LocationKey)
}

type fakeReporter struct {
	healthy bool
}

func (f fakeReporter) Healthy() bool { return f.healthy }

func (f fakeReporter) ModelStatuses() map[string]services.ModelStatus {
	return map[string]services.ModelStatus{
		"classifier": {Backend: "forest", Ready: true},
		"detector":   {Backend: "onnx", Ready: f.healthy},
	}
}

func (f fakeReporter) AlertsEnabled() bool { return false }

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, tt := range []struct {
		healthy bool
		want    string
	}{{true, "healthy"}, {false, "degraded"}} {
		r := gin.New()
		h := NewHealthHandler("worker-1", "1.0.0", fakeReporter{healthy: tt.healthy})
		r.GET("/health", h.HealthCheck)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, tt.want, resp.Status)
		assert.Equal(t, "worker-1", resp.WorkerID)
		assert.Len(t, resp.Models, 2)
	}
}

func TestWorkerInfo(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHealthHandler("worker-2", "2.1.0", fakeReporter{healthy: true})
	r.GET("/", h.WorkerInfo)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var resp WorkerInfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2.1.0", resp.Version)
	assert.Contains(t, resp.Capabilities, "lesion_detection")
	assert.NotContains(t, resp.Capabilities, "nats_alerts")
}

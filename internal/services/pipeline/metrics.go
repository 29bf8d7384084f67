package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	stageClassifier = "classifier"
	stageDetector   = "detector"
	stageRender     = "render"
	stageTotal      = "total"
)

var (
	// assessmentsTotal counts completed assessments by code
	assessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lsd_assessments_total",
		Help: "Total completed assessments by assessment code",
	}, []string{"code"})

	// inferenceDuration tracks latency per pipeline stage
	inferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lsd_inference_duration_seconds",
		Help:    "Inference duration in seconds by stage",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"stage"})

	detectionsPerRequest = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lsd_detections_per_request",
		Help:    "Number of admitted detections per assessment",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	})

	// inferenceErrors counts failed assessments by error kind
	inferenceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lsd_inference_errors_total",
		Help: "Total failed assessments by error kind",
	}, []string{"kind"})
)

// Package pipeline runs one assessment: classifier and detector in parallel, then fusion, then
// annotation of the caller's canvas.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"lsd-worker-go/internal/models"
	"lsd-worker-go/internal/services/annotation"
	"lsd-worker-go/internal/services/classifier"
	"lsd-worker-go/internal/services/detection"
	"lsd-worker-go/internal/services/fusion"
)

// Annotator draws a fusion result onto a surface
type Annotator interface {
	RenderFusion(s annotation.Surface, f models.Fusion)
}

// Pipeline is safe for concurrent use as long as each call gets its own canvas
type Pipeline struct {
	classifier    classifier.RiskClassifier
	detector      detection.Detector
	policy        *fusion.Policy
	annotator     Annotator
	minConfidence float64
	logger        zerolog.Logger

	// surface builds the drawing target for a canvas; replaced in tests
	surface func(canvas *gocv.Mat) annotation.Surface
}

func New(cls classifier.RiskClassifier, det detection.Detector, policy *fusion.Policy, annotator Annotator, minConfidence float64, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		classifier:    cls,
		detector:      det,
		policy:        policy,
		annotator:     annotator,
		minConfidence: minConfidence,
		logger:        logger,
		surface: func(canvas *gocv.Mat) annotation.Surface {
			return annotation.NewMatSurface(canvas)
		},
	}
}

// Infer assesses the canvas against the weather features and annotates it in place.
// On error the canvas is left untouched.
func (p *Pipeline) Infer(ctx context.Context, canvas *gocv.Mat, features models.WeatherFeatures) (*models.Assessment, error) {
	start := time.Now()

	if canvas == nil {
		inferenceErrors.WithLabelValues(errorKind(models.ErrInvalidImage)).Inc()
		return nil, fmt.Errorf("%w: no canvas", models.ErrInvalidImage)
	}
	if err := detection.ValidateCanvas(*canvas); err != nil {
		inferenceErrors.WithLabelValues(errorKind(err)).Inc()
		return nil, err
	}

	var (
		verdict    models.RiskVerdict
		detections []models.Detection
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t := time.Now()
		v, err := p.classifier.Assess(gctx, features)
		inferenceDuration.WithLabelValues(stageClassifier).Observe(time.Since(t).Seconds())
		if err != nil {
			return err
		}
		verdict = v
		return nil
	})
	g.Go(func() error {
		t := time.Now()
		dets, err := p.detector.Detect(gctx, *canvas, p.minConfidence)
		inferenceDuration.WithLabelValues(stageDetector).Observe(time.Since(t).Seconds())
		if err != nil {
			return err
		}
		detections = dets
		return nil
	})
	if err := g.Wait(); err != nil {
		inferenceErrors.WithLabelValues(errorKind(err)).Inc()
		p.logger.Warn().Err(err).Msg("Inference failed")
		return nil, err
	}

	result := p.policy.Fuse(verdict, detections)

	t := time.Now()
	p.annotator.RenderFusion(p.surface(canvas), result)
	inferenceDuration.WithLabelValues(stageRender).Observe(time.Since(t).Seconds())

	elapsed := time.Since(start)
	inferenceDuration.WithLabelValues(stageTotal).Observe(elapsed.Seconds())
	assessmentsTotal.WithLabelValues(result.AssessmentCode).Inc()
	detectionsPerRequest.Observe(float64(len(detections)))

	p.logger.Debug().
		Str("assessment", result.AssessmentCode).
		Str("risk", verdict.PredictedClass.String()).
		Float64("probability", verdict.Probability).
		Int("detections", len(detections)).
		Dur("duration", elapsed).
		Msg("Assessment completed")

	return &models.Assessment{
		Code:       result.AssessmentCode,
		Verdict:    verdict,
		Decisions:  result.Decisions,
		Banner:     result.Banner,
		Features:   features,
		Duration:   elapsed,
		AssessedAt: start,
	}, nil
}

// ModelNames reports the backends in use, for health output
func (p *Pipeline) ModelNames() (classifierName, detectorName string) {
	return p.classifier.Name(), p.detector.Name()
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidImage):
		return "invalid_image"
	case errors.Is(err, models.ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}

// Package fusion combines the weather risk verdict with detector output into per-box cases and
// a single assessment code for the request.
package fusion

import (
	"fmt"
	"image/color"
	"strings"

	"lsd-worker-go/internal/models"
)

// DefaultInfectedClasses is the detector vocabulary that selects the infected branch
var DefaultInfectedClasses = []string{"infected"}

// Policy maps (detections, verdict) to cases. It holds no mutable state and is safe for
// concurrent use.
type Policy struct {
	infected map[string]struct{}

	// strict enables the confirmed/suspected split for infected detections
	strict           bool
	confirmThreshold float64
}

type Option func(*Policy)

// WithInfectedClasses replaces the class names treated as infected. Matching is case-insensitive.
func WithInfectedClasses(names ...string) Option {
	return func(p *Policy) {
		set := make(map[string]struct{}, len(names))
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				set[strings.ToLower(n)] = struct{}{}
			}
		}
		if len(set) > 0 {
			p.infected = set
		}
	}
}

// WithStrictTaxonomy splits infected detections into confirmed (confidence >= threshold) and
// suspected (below threshold).
func WithStrictTaxonomy(threshold float64) Option {
	return func(p *Policy) {
		p.strict = true
		p.confirmThreshold = threshold
	}
}

func NewPolicy(opts ...Option) *Policy {
	p := &Policy{}
	WithInfectedClasses(DefaultInfectedClasses...)(p)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fuse assigns a case to every detection and picks the overall assessment code from the
// detection with the highest confidence. Without detections the verdict alone selects the
// no-detection banner case.
func (p *Policy) Fuse(verdict models.RiskVerdict, detections []models.Detection) models.Fusion {
	if len(detections) == 0 {
		banner := noDetectionCase(verdict)
		return models.Fusion{
			Banner:         &banner,
			AssessmentCode: banner.Code,
		}
	}

	decisions := make([]models.Decision, len(detections))
	for i, det := range detections {
		decisions[i] = models.Decision{
			Detection: det,
			Case:      p.Classify(det, verdict),
		}
	}

	primary := findPrimaryDecision(decisions)
	return models.Fusion{
		Decisions:      decisions,
		AssessmentCode: primary.Case.Code,
	}
}

// Classify returns the case for a single detection
func (p *Policy) Classify(det models.Detection, verdict models.RiskVerdict) models.Case {
	var c models.Case
	if p.IsInfected(det.ClassName) {
		c = p.infectedCase(det, verdict)
	} else {
		c = otherCase(verdict)
	}
	c.Label = fmt.Sprintf("%s\nY=%.2f R=%.2f", c.Label, det.Confidence, verdict.Probability)
	return c
}

// IsInfected reports whether a detector class name belongs to the infected vocabulary
func (p *Policy) IsInfected(className string) bool {
	_, ok := p.infected[strings.ToLower(strings.TrimSpace(className))]
	return ok
}

func (p *Policy) infectedCase(det models.Detection, verdict models.RiskVerdict) models.Case {
	if !p.strict {
		if verdict.High() {
			return newCase(models.CaseInfectedHigh, "Infected (High)", "infected|high", "red", models.ColorRed)
		}
		return newCase(models.CaseInfectedLow, "Infected (Low)", "infected|low", "red", models.ColorRed)
	}

	if det.Confidence >= p.confirmThreshold {
		if verdict.High() {
			return newCase(models.CaseConfirmedHigh, "Confirmed (High)", "confirmed|high", "red", models.ColorRed)
		}
		return newCase(models.CaseConfirmedLow, "Confirmed (Low)", "confirmed|low", "red", models.ColorRed)
	}
	if verdict.High() {
		return newCase(models.CaseSuspectedHigh, "Suspected (High)", "suspected|high", "purple", models.ColorPurple)
	}
	return newCase(models.CaseSuspectedLow, "Suspected (Low)", "suspected|low", "purple", models.ColorPurple)
}

// otherCase covers "healthy" and any class name outside the infected vocabulary
func otherCase(verdict models.RiskVerdict) models.Case {
	if verdict.High() {
		return newCase(models.CaseSuspectedHigh, "Suspected (High)", "suspected|high", "purple", models.ColorPurple)
	}
	return newCase(models.CaseHealthyLow, "Healthy (Low)", "healthy|low", "green", models.ColorGreen)
}

func noDetectionCase(verdict models.RiskVerdict) models.Case {
	var c models.Case
	if verdict.High() {
		c = newCase(models.CaseNoDetectionHigh, "No LSD detection\nHigh Risk", "no_detection|high", "red", models.ColorRed)
	} else {
		c = newCase(models.CaseNoDetectionLow, "No LSD detection\nLow Risk", "no_detection|low", "green", models.ColorGreen)
	}
	c.Label = fmt.Sprintf("%s\nR=%.2f", c.Label, verdict.Probability)
	return c
}

// findPrimaryDecision returns the decision with the highest detection confidence.
// Ties keep the first occurrence.
func findPrimaryDecision(decisions []models.Decision) models.Decision {
	primary := decisions[0]
	for _, d := range decisions[1:] {
		if d.Detection.Confidence > primary.Detection.Confidence {
			primary = d
		}
	}
	return primary
}

func newCase(kind models.CaseKind, label, code, colorName string, c color.RGBA) models.Case {
	return models.Case{Kind: kind, Label: label, Code: code, ColorName: colorName, Color: c}
}

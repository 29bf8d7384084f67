package models

import "image/color"

// CaseKind identifies one row of the fusion table
type CaseKind string

const (
	CaseInfectedHigh    CaseKind = "infected_high"
	CaseInfectedLow     CaseKind = "infected_low"
	CaseSuspectedHigh   CaseKind = "suspected_high"
	CaseHealthyLow      CaseKind = "healthy_low"
	CaseNoDetectionHigh CaseKind = "no_detection_high"
	CaseNoDetectionLow  CaseKind = "no_detection_low"

	// Only produced by the strict taxonomy
	CaseConfirmedHigh CaseKind = "confirmed_high"
	CaseConfirmedLow  CaseKind = "confirmed_low"
	CaseSuspectedLow  CaseKind = "suspected_low"
)

// Render colors. gocv converts color.RGBA to a BGR scalar, so these are plain RGB.
var (
	ColorRed    = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	ColorGreen  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	ColorPurple = color.RGBA{R: 255, G: 0, B: 255, A: 255}
)

// Case is the fused outcome for one detection, or for an image without detections
type Case struct {
	Kind      CaseKind   `json:"kind"`
	Label     string     `json:"label"`
	Code      string     `json:"code"`
	ColorName string     `json:"color"`
	Color     color.RGBA `json:"-"`
}

// Decision pairs a detection with the case chosen for it
type Decision struct {
	Detection Detection `json:"detection"`
	Case      Case      `json:"case"`
}

// Fusion is the output of the fusion policy for one request.
// Banner is set only when there were no detections.
type Fusion struct {
	Decisions      []Decision
	Banner         *Case
	AssessmentCode string
}

package alerting

import "lsd-worker-go/internal/models"

type rule struct {
	severity models.AlertSeverity
	title    string
}

// rules maps an assessment code to its alert. Codes not listed never alert.
var rules = map[string]rule{
	"infected|high":     {models.AlertSeverityCritical, "LSD infection confirmed under high-risk weather"},
	"confirmed|high":    {models.AlertSeverityCritical, "LSD infection confirmed under high-risk weather"},
	"infected|low":      {models.AlertSeverityHigh, "LSD infection detected"},
	"confirmed|low":     {models.AlertSeverityHigh, "LSD infection detected"},
	"suspected|high":    {models.AlertSeverityHigh, "Suspected LSD case under high-risk weather"},
	"no_detection|high": {models.AlertSeverityMedium, "High LSD risk weather"},
	"suspected|low":     {models.AlertSeverityMedium, "Suspected LSD case"},
}

// ShouldCreateAlert decides whether an assessment code warrants an alert
func ShouldCreateAlert(code string) models.AlertDecision {
	r, ok := rules[code]
	if !ok {
		return models.AlertDecision{}
	}
	return models.AlertDecision{ShouldAlert: true, Severity: r.severity, Title: r.title}
}

package models

import "time"

// AlertSeverity represents the severity level of alerts
type AlertSeverity string

const (
	AlertSeverityLow      AlertSeverity = "LOW"
	AlertSeverityMedium   AlertSeverity = "MEDIUM"
	AlertSeverityHigh     AlertSeverity = "HIGH"
	AlertSeverityCritical AlertSeverity = "CRITICAL"
)

// AlertPayload represents the structure published to NATS for a risky assessment
type AlertPayload struct {
	LocationKey    string        `json:"location_key"`
	Assessment     string        `json:"assessment"`
	Severity       AlertSeverity `json:"severity"`
	Title          string        `json:"title"`
	Probability    float64       `json:"probability"`
	TopConfidence  float64       `json:"top_confidence"`
	DetectionCount int           `json:"detection_count"`
	Latitude       *float64      `json:"lat,omitempty"`
	Longitude      *float64      `json:"lng,omitempty"`
	WorkerID       string        `json:"worker_id"`
	RequestID      string        `json:"request_id,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

// AlertCooldownKey represents a unique key for alert cooldown tracking
type AlertCooldownKey struct {
	LocationKey string
	Assessment  string
}

// String returns a string representation of the cooldown key
func (k AlertCooldownKey) String() string {
	return k.LocationKey + "|" + k.Assessment
}

// AlertDecision represents the decision whether to create an alert
type AlertDecision struct {
	ShouldAlert bool
	Severity    AlertSeverity
	Title       string
}

// MessagePublisher interface for publishing alerts
type MessagePublisher interface {
	Publish(subject string, data interface{}) error
}

package alerting

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lsd-worker-go/internal/models"
)

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []models.AlertPayload
	err      error
	delay    time.Duration
}

func (f *fakePublisher) Publish(subject string, data interface{}) error {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data.(models.AlertPayload))
	return nil
}

func newTestService(t *testing.T, pub *fakePublisher) (*Service, *time.Time) {
	t.Helper()
	s, err := NewService(pub, "lsd.alerts", "worker-1", 10*time.Minute, zerolog.Nop())
	require.NoError(t, err)
	clock := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	return s, &clock
}

func assessment(code string) *models.Assessment {
	return &models.Assessment{
		Code:    code,
		Verdict: models.RiskVerdict{PredictedClass: models.RiskHigh, Probability: 0.82},
		Decisions: []models.Decision{
			{Detection: models.Detection{Confidence: 0.6}},
			{Detection: models.Detection{Confidence: 0.91}},
		},
	}
}

func TestShouldCreateAlert(t *testing.T) {
	tests := []struct {
		code     string
		alert    bool
		severity models.AlertSeverity
	}{
		{"infected|high", true, models.AlertSeverityCritical},
		{"confirmed|high", true, models.AlertSeverityCritical},
		{"infected|low", true, models.AlertSeverityHigh},
		{"confirmed|low", true, models.AlertSeverityHigh},
		{"suspected|high", true, models.AlertSeverityHigh},
		{"no_detection|high", true, models.AlertSeverityMedium},
		{"suspected|low", true, models.AlertSeverityMedium},
		{"healthy|low", false, ""},
		{"no_detection|low", false, ""},
		{"", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			d := ShouldCreateAlert(tt.code)
			assert.Equal(t, tt.alert, d.ShouldAlert)
			assert.Equal(t, tt.severity, d.Severity)
		})
	}
}

func TestProcess_PublishesPayload(t *testing.T) {
	pub := &fakePublisher{}
	s, _ := newTestService(t, pub)
	loc := &models.Location{Address: "Pune", Latitude: 18.52, Longitude: 73.85}

	sent, err := s.Process(assessment("infected|high"), Request{LocationKey: "  Pune ", Location: loc, RequestID: "req-1"})

	require.NoError(t, err)
	assert.True(t, sent)
	require.Len(t, pub.payloads, 1)
	assert.Equal(t, "lsd.alerts", pub.subjects[0])

	p := pub.payloads[0]
	assert.Equal(t, "pune", p.LocationKey)
	assert.Equal(t, "infected|high", p.Assessment)
	assert.Equal(t, models.AlertSeverityCritical, p.Severity)
	assert.Equal(t, 0.82, p.Probability)
	assert.Equal(t, 0.91, p.TopConfidence)
	assert.Equal(t, 2, p.DetectionCount)
	assert.Equal(t, "worker-1", p.WorkerID)
	assert.Equal(t, "req-1", p.RequestID)
	require.NotNil(t, p.Latitude)
	assert.Equal(t, 18.52, *p.Latitude)
}

func TestProcess_SkipsSafeCodes(t *testing.T) {
	pub := &fakePublisher{}
	s, _ := newTestService(t, pub)

	for _, code := range []string{"healthy|low", "no_detection|low"} {
		sent, err := s.Process(assessment(code), Request{LocationKey: "x"})
		require.NoError(t, err)
		assert.False(t, sent)
	}
	assert.Empty(t, pub.payloads)
}

func TestProcess_Cooldown(t *testing.T) {
	pub := &fakePublisher{}
	s, clock := newTestService(t, pub)
	req := Request{LocationKey: "Pune"}

	sent, _ := s.Process(assessment("infected|high"), req)
	assert.True(t, sent)

	sent, _ = s.Process(assessment("infected|high"), Request{LocationKey: "PUNE"})
	assert.False(t, sent, "same location and code is blocked")

	sent, _ = s.Process(assessment("suspected|high"), req)
	assert.True(t, sent, "another code has its own cooldown")

	*clock = clock.Add(10 * time.Minute)
	sent, _ = s.Process(assessment("infected|high"), req)
	assert.True(t, sent, "cooldown elapsed")

	assert.Len(t, pub.payloads, 3)
}

func TestProcess_PublishFailureKeepsCooldownOpen(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats down")}
	s, _ := newTestService(t, pub)

	sent, err := s.Process(assessment("infected|low"), Request{LocationKey: "x"})
	assert.Error(t, err)
	assert.False(t, sent)

	pub.err = nil
	sent, err = s.Process(assessment("infected|low"), Request{LocationKey: "x"})
	require.NoError(t, err)
	assert.True(t, sent)
}

func TestProcess_ConcurrentRequestsPublishOnce(t *testing.T) {
	pub := &fakePublisher{delay: 20 * time.Millisecond}
	s, _ := newTestService(t, pub)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Process(assessment("infected|high"), Request{LocationKey: "Pune"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, pub.payloads, 1)

	sent, err := s.Process(assessment("infected|high"), Request{LocationKey: "pune"})
	require.NoError(t, err)
	assert.False(t, sent, "slot is still held after the concurrent burst")
}

func TestProcess_PublishFailureRestoresPreviousCooldown(t *testing.T) {
	pub := &fakePublisher{}
	s, clock := newTestService(t, pub)
	req := Request{LocationKey: "x"}

	sent, _ := s.Process(assessment("infected|low"), req)
	require.True(t, sent)
	sentAt := *clock

	*clock = clock.Add(10 * time.Minute)
	pub.err = errors.New("nats down")
	_, err := s.Process(assessment("infected|low"), req)
	require.Error(t, err)

	key := models.AlertCooldownKey{LocationKey: "x", Assessment: "infected|low"}
	assert.Equal(t, sentAt, s.lastSent[key.String()])
}

func TestNewService_RequiresPublisher(t *testing.T) {
	_, err := NewService(nil, "", "w", time.Minute, zerolog.Nop())
	assert.Error(t, err)
}

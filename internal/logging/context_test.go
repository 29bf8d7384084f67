package logging

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lsd-worker-go/internal/config"
)

func captureGlobal(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := log.Logger
	log.Logger = zerolog.New(buf)
	t.Cleanup(func() { log.Logger = prev })
	return buf
}

func TestInfo_AttachesRequestFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureGlobal(t)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(RequestIDKey, "req-42")
	c.Set(StartTimeKey, time.Now().Add(-time.Second))

	Info(c).Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-42", entry["request_id"])
	assert.Contains(t, entry, "duration")
	assert.Equal(t, "req-42", RequestID(c))
}

func TestInfo_NilContext(t *testing.T) {
	buf := captureGlobal(t)

	Warn(nil).Msg("no ctx")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "request_id")
	assert.Equal(t, "", RequestID(nil))
}

func TestServiceLogger(t *testing.T) {
	buf := captureGlobal(t)

	l := WithRequest(NewServiceLogger(&config.Config{WorkerID: "w-7"}, "pipeline"), "abc")
	l.Info().Msg("x")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "w-7", entry["worker_id"])
	assert.Equal(t, "pipeline", entry["service"])
	assert.Equal(t, "abc", entry["request_id"])
}

package logging

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/logdyhq/logdy-core/logdy"
	"github.com/rs/zerolog/log"

	"lsd-worker-go/internal/config"
)

type logdyWriter struct {
	logger logdy.Logdy
}

// Write forwards one zerolog line to the Logdy UI
func (w *logdyWriter) Write(p []byte) (n int, err error) {
	w.logger.LogString(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// StartLogdy starts the embedded Logdy web UI and returns a writer to tee logs into, plus the UI URL
func StartLogdy(cfg *config.Config) (io.Writer, string, error) {
	if cfg.LogdyPort <= 0 || cfg.LogdyPort == cfg.Port {
		return nil, "", fmt.Errorf("invalid logdy port %d", cfg.LogdyPort)
	}

	portStr := strconv.Itoa(cfg.LogdyPort)
	ld := logdy.InitializeLogdy(logdy.Config{
		ServerIp:   cfg.LogdyHost,
		ServerPort: portStr,
	}, nil)

	url := fmt.Sprintf("http://%s:%s", cfg.LogdyHost, portStr)
	log.Info().Str("url", url).Msg("Logdy UI available")
	return &logdyWriter{logger: ld}, url, nil
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	BackendONNX   = "onnx"
	BackendRemote = "remote"
	BackendForest = "forest"
)

type Config struct {
	// Application
	Version     string
	Environment string
	WorkerID    string
	Port        int
	LogLevel    string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Detector
	DetectorBackend       string // "onnx" or "remote"
	DetectorModelPath     string
	DetectorURL           string
	DetectorClasses       []string // class names in model output order
	DetectorInputSize     int
	DetectorMinConfidence float64
	DetectorNMSThreshold  float64

	// Risk classifier
	ClassifierBackend   string // "forest" or "remote"
	ClassifierModelPath string
	ClassifierURL       string

	// Remote model calls
	ModelTimeout time.Duration

	// Fusion
	InfectedClasses   []string
	StrictTaxonomy    bool
	ConfirmConfidence float64

	// Geocoding and weather lookup
	GeocodingURL    string
	GeocodingAPIKey string
	WeatherURL      string
	WeatherAPIKey   string
	LookupTimeout   time.Duration

	// NATS (for alerts)
	// Default: nats://localhost:4222 (works with Docker Compose setup)
	// Docker: Use nats://nats:4222 if running worker in Docker
	NatsEnabled        bool
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int

	// Alerting via NATS
	AlertsSubject  string
	AlertsCooldown time.Duration

	// HTTP
	MaxUploadSize  int64 // bytes
	JPEGQuality    int   // 1-100
	MetricsEnabled bool
	SwaggerHost    string

	// Graceful Shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		WorkerID:    getEnv("WORKER_ID", "worker-1"),
		Port:        getEnvInt("PORT", 8000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// Detector
		DetectorBackend:       getEnv("DETECTOR_BACKEND", BackendONNX),
		DetectorModelPath:     getEnv("DETECTOR_MODEL_PATH", "./models/best.onnx"),
		DetectorURL:           getEnv("DETECTOR_URL", "http://localhost:5000/detect"),
		DetectorClasses:       getEnvList("DETECTOR_CLASSES", []string{"healthy", "infected"}),
		DetectorInputSize:     getEnvInt("DETECTOR_INPUT_SIZE", 640),
		DetectorMinConfidence: getEnvFloat("DETECTOR_MIN_CONFIDENCE", 0.25),
		DetectorNMSThreshold:  getEnvFloat("DETECTOR_NMS_THRESHOLD", 0.45),

		// Risk classifier
		ClassifierBackend:   getEnv("CLASSIFIER_BACKEND", BackendForest),
		ClassifierModelPath: getEnv("CLASSIFIER_MODEL_PATH", "./models/random_forest_weather.json"),
		ClassifierURL:       getEnv("CLASSIFIER_URL", "http://localhost:5000/risk"),

		ModelTimeout: getEnvDuration("MODEL_TIMEOUT", 10*time.Second),

		// Fusion
		InfectedClasses:   getEnvList("INFECTED_CLASSES", []string{"infected"}),
		StrictTaxonomy:    getEnvBool("STRICT_TAXONOMY", false),
		ConfirmConfidence: getEnvFloat("CONFIRM_CONFIDENCE", 0.75),

		// Lookup
		GeocodingURL:    getEnv("GEOCODING_URL", "https://maps.gomaps.pro/maps/api/geocode/json"),
		GeocodingAPIKey: getEnv("GEOCODING_API_KEY", os.Getenv("VITE_GOOGLE_MAPS_API_KEY")),
		WeatherURL:      getEnv("WEATHER_URL", "http://api.openweathermap.org/data/2.5/weather"),
		WeatherAPIKey:   getEnv("WEATHER_API_KEY", os.Getenv("VITE_WEATHER_API_KEY")),
		LookupTimeout:   getEnvDuration("LOOKUP_TIMEOUT", 10*time.Second),

		// NATS
		NatsEnabled:        getEnvBool("NATS_ENABLED", false),
		NatsURL:            getNatsURL(),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited

		// Alerting via NATS
		AlertsSubject:  getEnv("ALERTS_SUBJECT", "lsd.alerts"),
		AlertsCooldown: getEnvDuration("ALERTS_COOLDOWN", 10*time.Minute),

		// HTTP
		MaxUploadSize:  int64(getEnvInt("MAX_UPLOAD_SIZE", 20*1024*1024)), // 20MB
		JPEGQuality:    getEnvInt("JPEG_QUALITY", 90),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		SwaggerHost:    getEnv("SWAGGER_HOST", "localhost:8000"),

		// Graceful Shutdown
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList reads a comma separated list, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Helper functions for Docker environment detection
func isRunningInDocker() bool {
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return true
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	return false
}

// getNatsURL returns the appropriate NATS URL based on environment
func getNatsURL() string {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}

	if isRunningInDocker() {
		return "nats://nats:4222"
	}

	return "nats://localhost:4222"
}

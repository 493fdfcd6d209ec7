package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
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

	// NATS (optional stats/recording event bus)
	NatsEnabled        bool
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int

	// Video source
	DefaultDevice  int // webcam device index
	CaptureTimeout time.Duration

	// Frame loop
	TargetFPS    int // cycle pacing, one cycle per tick
	OutputWidth  int
	OutputHeight int

	// Inference
	InferenceMode    string // "local" or "remote"
	InferenceURL     string // remote detect endpoint base URL
	InferenceTimeout time.Duration
	LocalSeed        int64 // seed for the local reference adapter

	// Detection settings (initial values; adjustable at runtime)
	ModelID   string
	Threshold float64

	// Recording
	RecordingFPS     int
	FFmpegBin        string
	ExportFilename   string
	SegmentChunkSize int // bytes read per encoder stdout chunk

	// Stats publishing
	StatsSubject   string
	StatsInterval  time.Duration
	SessionSubject string

	// Graceful Shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		WorkerID:    getEnv("WORKER_ID", "annotator-1"),
		Port:        getEnvInt("PORT", 8000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// NATS
		NatsEnabled:        getEnvBool("NATS_ENABLED", false),
		NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1),

		// Video source
		DefaultDevice:  getEnvInt("VIDEO_DEVICE", 0),
		CaptureTimeout: getEnvDuration("CAPTURE_TIMEOUT", 10*time.Second),

		// Frame loop
		TargetFPS:    getEnvIntMin("TARGET_FPS", 30, 1),
		OutputWidth:  getEnvInt("OUTPUT_WIDTH", 1280),
		OutputHeight: getEnvInt("OUTPUT_HEIGHT", 720),

		// Inference
		InferenceMode:    getEnv("INFERENCE_MODE", "local"),
		InferenceURL:     getEnv("INFERENCE_URL", "http://localhost:8500"),
		InferenceTimeout: getEnvDuration("INFERENCE_TIMEOUT", 5*time.Second),
		LocalSeed:        int64(getEnvInt("LOCAL_ADAPTER_SEED", 0)),

		// Detection settings
		ModelID:   getEnv("MODEL_ID", "yolov8n"),
		Threshold: getEnvFloat("CONFIDENCE_THRESHOLD", 0.5),

		// Recording
		RecordingFPS:     getEnvIntMin("RECORDING_FPS", 10, 1),
		FFmpegBin:        getEnv("FFMPEG_BIN", "ffmpeg"),
		ExportFilename:   getEnv("EXPORT_FILENAME", "detection-recording.mp4"),
		SegmentChunkSize: getEnvInt("SEGMENT_CHUNK_SIZE", 64*1024),

		// Stats publishing
		StatsSubject:   getEnv("STATS_SUBJECT", "detections.stats"),
		StatsInterval:  getEnvDuration("STATS_INTERVAL", 1*time.Second),
		SessionSubject: getEnv("SESSION_SUBJECT", "recording.sessions"),

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

// getEnvIntMin reads an integer that must stay at or above floor. FPS values
// divide a time.Duration, so zero or negative input is clamped, not passed on.
func getEnvIntMin(key string, defaultValue, floor int) int {
	value := getEnvInt(key, defaultValue)
	if value < floor {
		log.Warn().Str("key", key).Int("value", value).Int("floor", floor).Msg("Config value below minimum, clamping")
		return floor
	}
	return value
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

package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries everything the pipeline needs. It is built once in main and
// passed by reference; nothing in the pipeline reads the environment directly.
type Config struct {
	InputDir     string
	ProcessedDir string
	ReportPath   string

	FFmpegBin  string
	FFprobeBin string

	TranscribeURL string
	Language      string

	LLMGatewayURL string
	LLMAPIKey     string
	LLMModel      string

	HTTPTimeout time.Duration
	// RetryWindow caps the retry/backoff budget for the external HTTP calls.
	// Zero means a single attempt, which is the reference behavior.
	RetryWindow time.Duration

	MockTranscribe bool
	MockLLM        bool
}

// Load reads the configuration from the environment. Call godotenv.Load first
// if a .env file should contribute.
func Load() *Config {
	return &Config{
		InputDir:       envOr("INPUT_DIR", "uploads"),
		ProcessedDir:   envOr("PROCESSED_DIR", "processed"),
		ReportPath:     envOr("REPORT_XLSX", ""),
		FFmpegBin:      envOr("FFMPEG_BIN", "ffmpeg"),
		FFprobeBin:     envOr("FFPROBE_BIN", "ffprobe"),
		TranscribeURL:  os.Getenv("TRANSCRIBE_URL"),
		Language:       envOr("TRANSCRIBE_LANGUAGE", "pt"),
		LLMGatewayURL:  os.Getenv("LLM_GATEWAY_URL"),
		LLMAPIKey:      os.Getenv("LLM_API_KEY"),
		LLMModel:       envOr("LLM_MODEL", "gpt-3.5-turbo-0125"),
		HTTPTimeout:    durationOr("HTTP_TIMEOUT_SEC", 60*time.Second),
		RetryWindow:    durationOr("RETRY_WINDOW_SEC", 0),
		MockTranscribe: os.Getenv("USE_MOCK_TRANSCRIBE") == "true",
		MockLLM:        os.Getenv("USE_MOCK_LLM") == "true",
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func durationOr(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	sec, err := strconv.Atoi(v)
	if err != nil || sec < 0 {
		return def
	}
	return time.Duration(sec) * time.Second
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/ssdgjs/TeacherQRcode/internal/models"
)

type Config struct {
	// Output
	OutputDir string // Where finished audio files land (default: output)
	TempDir   string // Root for per-job working dirs, removed after each job

	// Profiler (AI speaker analysis; rule-based fallback always available)
	ProfilerProvider string // "openai", "gemini", "none", or empty = pick by key presence
	OpenAIKey        string
	OpenAIBaseURL    string // Empty = the GLM flash endpoint
	ProfilerModel    string // Empty = provider default
	GeminiKey        string
	GeminiModel      string // Empty = provider default

	// Synthesis backends
	ChatTTSURL   string             // Empty = local default (http://127.0.0.1:9966)
	SpeechSpeed  models.SpeedPreset // slow | normal | fast
	SynthTimeout time.Duration      // Per-turn subprocess/HTTP budget

	// Worker
	MaxConcurrentJobs int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		OutputDir:         getEnv("OUTPUT_DIR", "output"),
		TempDir:           getEnv("TEMP_DIR", filepath.Join(os.TempDir(), "dialoguetts")),
		ProfilerProvider:  getEnv("PROFILER_PROVIDER", ""),
		OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		ProfilerModel:     getEnv("PROFILER_MODEL", ""),
		GeminiKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", ""),
		ChatTTSURL:        getEnv("CHATTTS_URL", ""),
		SynthTimeout:      time.Duration(getEnvInt("SYNTH_TIMEOUT_SECONDS", 60)) * time.Second,
		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 2),
	}

	speed, ok := models.ParseSpeedPreset(getEnv("SPEECH_SPEED", "normal"))
	if !ok {
		return nil, fmt.Errorf("SPEECH_SPEED must be slow, normal or fast")
	}
	cfg.SpeechSpeed = speed

	switch cfg.ProfilerProvider {
	case "", "none":
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when PROFILER_PROVIDER=openai")
		}
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when PROFILER_PROVIDER=gemini")
		}
	default:
		return nil, fmt.Errorf("PROFILER_PROVIDER must be openai, gemini or none")
	}

	if cfg.SynthTimeout < time.Second {
		return nil, fmt.Errorf("SYNTH_TIMEOUT_SECONDS must be at least 1")
	}

	if cfg.MaxConcurrentJobs < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

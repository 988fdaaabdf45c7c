package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        string
	Environment string
	CORSOrigins string
	DataDir     string
	// LLM Configuration
	TogetherAPIKey  string
	TogetherBaseURL string
	DefaultProvider string
	DefaultModel    string
	SelectorModel   string // cheap model used for persona selection / sentiment
	ImageModel      string
	ImageSteps      int
	// Conversation pacing
	AutoReplyProbability float64 // chance that a finished turn triggers a follow-up
	// Debug flags
	Debug bool // Enables DEBUG features like verbose selector logging
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		DataDir:     getEnv("DATA_DIR", "./data"),
		// LLM Configuration
		TogetherAPIKey:  getEnv("TOGETHER_API_KEY", ""),
		TogetherBaseURL: getEnv("TOGETHER_BASE_URL", "https://api.together.xyz/v1"),
		DefaultProvider: getEnv("DEFAULT_PROVIDER", "together"),
		DefaultModel:    getEnv("DEFAULT_MODEL", "meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo"),
		SelectorModel:   getEnv("SELECTOR_MODEL", "meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo"),
		ImageModel:      getEnv("IMAGE_MODEL", "black-forest-labs/FLUX.1-schnell"),
		ImageSteps:      getEnvInt("IMAGE_STEPS", 4),
		// Conversation pacing
		AutoReplyProbability: getEnvFloat("AUTO_REPLY_PROBABILITY", 0.7),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true" // Enable DEBUG in dev/test by default
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// Package gemini はCloud Visionの顔検出とGeminiによる照合を組み合わせた顔認識サービスを提供します。
package gemini

import (
	"os"
	"strconv"
)

const (
	// DefaultModel はGemini APIのデフォルトモデルです。
	DefaultModel = "gemini-2.5-flash"

	defaultRequestsPerMinute = 15
)

// Config holds configuration for the Gemini face recognizer.
type Config struct {
	APIKey            string // Gemini API key. Empty means Vertex AI via ADC.
	Model             string // Model name
	RequestsPerMinute int    // Client-side throttle for GenerateContent calls
}

// LoadConfig loads Gemini configuration from environment variables.
func LoadConfig() Config {
	cfg := Config{
		APIKey:            os.Getenv("GEMINI_API_KEY"),
		Model:             os.Getenv("GEMINI_MODEL"),
		RequestsPerMinute: defaultRequestsPerMinute,
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if v, err := strconv.Atoi(os.Getenv("GEMINI_REQUESTS_PER_MINUTE")); err == nil && v > 0 {
		cfg.RequestsPerMinute = v
	}
	return cfg
}

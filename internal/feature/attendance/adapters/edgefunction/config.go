// Package edgefunction は顔認識と出席記録を担うホスト型HTTP関数のクライアントを提供します。
package edgefunction

import (
	"errors"
	"os"
	"time"
)

const defaultFunctionName = "face-recognition"

// Config holds configuration for the edge function client.
type Config struct {
	BaseURL      string        // Base URL of the functions host (e.g., "https://xyz.functions.example.com")
	FunctionName string        // Function path segment under /functions/v1/
	AnonKey      string        // Public API key sent as apikey and bearer token
	Timeout      time.Duration // HTTP request timeout
}

// LoadConfig loads edge function configuration from environment variables.
func LoadConfig() Config {
	name := os.Getenv("EDGE_FUNCTION_NAME")
	if name == "" {
		name = defaultFunctionName
	}
	return Config{
		BaseURL:      os.Getenv("EDGE_FUNCTIONS_URL"),
		FunctionName: name,
		AnonKey:      os.Getenv("EDGE_FUNCTIONS_ANON_KEY"),
		Timeout:      30 * time.Second,
	}
}

// errNotConfigured は接続先が未設定の場合のエラーです。
var errNotConfigured = errors.New("edge function base url is not configured")

// Validate は設定の妥当性を検証します。
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errNotConfigured
	}
	return nil
}

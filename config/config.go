// Package config holds client configuration for the dashboard session layer.
package config

import "time"

// Config holds session-layer configuration.
type Config struct {
	APIBaseURL     string        `json:"api_base_url"`
	TokenPath      string        `json:"token_path"`
	RequestTimeout time.Duration `json:"request_timeout"`
	RetryMax       int           `json:"retry_max"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

// Default returns safe defaults.
func Default() Config {
	return Config{
		APIBaseURL:     "http://localhost:8080",
		TokenPath:      "",
		RequestTimeout: 15 * time.Second,
		RetryMax:       2,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

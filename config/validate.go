package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the configuration for values the session layer cannot
// operate with.
func Validate(cfg Config) error {
	if cfg.APIBaseURL == "" {
		return errors.New("api base url is required")
	}
	parsed, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		return fmt.Errorf("invalid api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api base url must be http or https: %s", cfg.APIBaseURL)
	}
	if cfg.RequestTimeout < 0 {
		return errors.New("request timeout must not be negative")
	}
	if cfg.RetryMax < 0 {
		return errors.New("retry max must not be negative")
	}
	return nil
}

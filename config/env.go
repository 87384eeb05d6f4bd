package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadFromEnv applies environment overrides with a prefix (e.g. SENTINEL_).
func LoadFromEnv(prefix string, base Config) Config {
	get := func(key string) string { return os.Getenv(prefix + key) }

	if value := get("API_BASE_URL"); value != "" {
		base.APIBaseURL = value
	}
	if value := get("TOKEN_PATH"); value != "" {
		base.TokenPath = value
	}
	if value := get("REQUEST_TIMEOUT"); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			base.RequestTimeout = d
		}
	}
	if value := get("RETRY_MAX"); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			base.RetryMax = n
		}
	}
	if value := get("LOG_LEVEL"); value != "" {
		base.LogLevel = value
	}
	if value := get("LOG_FORMAT"); value != "" {
		base.LogFormat = value
	}

	return base
}

// LoadDotenv loads a .env file into the process environment before env
// overrides are applied. A missing file is not an error.
func LoadDotenv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// LoadFromFile overlays base with the JSON config file at path. Unknown keys
// are rejected so a typo fails loudly instead of silently keeping a default.
func LoadFromFile(path string, base Config) (Config, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&base); err != nil {
		return base, fmt.Errorf("parse %s: %w", path, err)
	}
	return base, nil
}

// Load resolves the effective configuration. Precedence, lowest to highest:
// built-in defaults, the JSON file at path (skipped when path is empty), then
// prefixed environment overrides.
func Load(path, envPrefix string) (Config, error) {
	cfg := Default()

	if path != "" {
		loaded, err := LoadFromFile(path, cfg)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if envPrefix != "" {
		cfg = LoadFromEnv(envPrefix, cfg)
	}
	return cfg, nil
}

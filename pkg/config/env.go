package config

import "os"

// GetEnv returns the value of an environment variable or a fallback.
func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ServerConfig holds process-wide settings resolved from the environment.
type ServerConfig struct {
	HTTPPort string

	// DatabaseURL selects the Postgres store. Empty falls back to the
	// in-memory store (single-process, non-durable).
	DatabaseURL string

	// DefaultProvider and DefaultModel apply when an execute request
	// does not name a provider or model.
	DefaultProvider string
	DefaultModel    string

	// DefaultAPIKey is the process-wide LLM credential used when the
	// execute request carries no session-scoped apiKey.
	DefaultAPIKey string
}

// LoadServerConfig reads server settings from the environment.
func LoadServerConfig() *ServerConfig {
	return &ServerConfig{
		HTTPPort:        GetEnv("HTTP_PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DefaultProvider: GetEnv("LLM_PROVIDER", "anthropic"),
		DefaultModel:    os.Getenv("LLM_MODEL"),
		DefaultAPIKey:   os.Getenv("LLM_API_KEY"),
	}
}

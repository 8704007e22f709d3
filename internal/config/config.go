// Package config loads the daemon configuration from environment variables
// with flag overrides applied in main.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config carries everything the daemon needs at startup.
type Config struct {
	Addr      string
	MongoURI  string
	MongoDB   string
	JWTSecret string
	TokenTTL  time.Duration
	UploadDir string

	// Optional superadmin seeded at startup when no account exists yet.
	SeedAdminEmail    string
	SeedAdminPassword string
}

// FromEnv builds the configuration from environment variables.
func FromEnv() Config {
	return Config{
		Addr:              EnvOrDefault("TASKD_ADDR", ":8080"),
		MongoURI:          EnvOrDefault("TASKD_MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:           EnvOrDefault("TASKD_MONGO_DB", "taskd"),
		JWTSecret:         os.Getenv("TASKD_JWT_SECRET"),
		TokenTTL:          envDuration("TASKD_TOKEN_TTL", 24*time.Hour),
		UploadDir:         EnvOrDefault("TASKD_UPLOAD_DIR", "data/uploads"),
		SeedAdminEmail:    os.Getenv("TASKD_SEED_ADMIN_EMAIL"),
		SeedAdminPassword: os.Getenv("TASKD_SEED_ADMIN_PASSWORD"),
	}
}

// Validate rejects configurations the daemon cannot start with.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("TASKD_JWT_SECRET must be set")
	}
	return nil
}

// EnvOrDefault returns the environment variable value or fallback when it is
// empty.
func EnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

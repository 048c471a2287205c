// Package config loads process configuration from the environment.
// A .env file in the working directory (or the file named by ENV_FILE) is
// applied first; variables already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything cmd/server needs to start.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	// DatabaseURL selects the PostgreSQL store. Empty runs on the in-memory store.
	DatabaseURL string

	JWTSecret string
	JWTTTL    time.Duration

	// SchemaFile is an optional YAML file with additional model definitions.
	SchemaFile string
	// ReportsFile is an optional YAML file with saved report definitions.
	ReportsFile string

	ItemsPerPageOptions []int
	DefaultItemsPerPage int

	AuditEnabled bool
}

// Development reports whether the process runs in development mode.
func (c Config) Development() bool {
	return c.Env == "development"
}

// Load reads the .env file (if any) and then the environment.
func Load() (Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	options, err := parseIntList(getEnv("ITEMS_PER_PAGE_OPTIONS", "25,50,100,-1"))
	if err != nil {
		return Config{}, fmt.Errorf("ITEMS_PER_PAGE_OPTIONS: %w", err)
	}

	cfg := Config{
		Env:                 getEnv("APP_ENV", "development"),
		Port:                getEnv("APP_PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		JWTTTL:              getEnvDuration("JWT_TTL", 12*time.Hour),
		SchemaFile:          os.Getenv("SCHEMA_FILE"),
		ReportsFile:         os.Getenv("REPORTS_FILE"),
		ItemsPerPageOptions: options,
		DefaultItemsPerPage: getEnvInt("ITEMS_PER_PAGE", 25),
		AuditEnabled:        getEnvBool("AUDIT_ENABLED", true),
	}

	if cfg.JWTSecret == "" {
		if !cfg.Development() {
			return Config{}, errors.New("JWT_SECRET must be set outside development")
		}
		cfg.JWTSecret = "development-only-secret"
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
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseIntList(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

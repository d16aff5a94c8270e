package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port     string
	Env      string // development, production, test
	LogLevel string

	// Database configuration
	DBType               string // mysql, postgres, sqlite, sqlserver
	DBHost               string
	DBPort               string
	DBAppDatabase        string
	DBAppUser            string
	DBAppPassword        string
	DBAppConnectionLimit int
	DBLogLevel           string // silent, error, warn, info

	// Pointer cache configuration
	RedisURL        string
	CacheTTLSeconds int

	// Authorizer configuration
	AuthRequired  bool
	AuthzURL      string
	AuthzClientID string
}

// LoadDotEnv loads .env.local and then .env when they exist. Values already
// present in the environment win.
func LoadDotEnv() {
	for _, name := range []string{".env.local", ".env"} {
		if _, err := os.Stat(name); err == nil {
			_ = godotenv.Load(name)
		}
	}
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	LoadDotEnv()

	cfg := &Config{
		Port:                 getEnv("PORT", "3000"),
		Env:                  getEnv("ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DBType:               getEnv("DB_TYPE", "mysql"),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getEnv("DB_PORT", "3306"),
		DBAppDatabase:        getEnv("DB_APP_DATABASE", ""),
		DBAppUser:            getEnv("DB_APP_USER", ""),
		DBAppPassword:        getEnv("DB_APP_PASSWORD", ""),
		DBAppConnectionLimit: getEnvAsInt("DB_APP_CONNECTION_LIMIT", 5),
		DBLogLevel:           getEnv("DB_LOG_LEVEL", "warn"),
		RedisURL:             getEnv("REDIS_URL", ""),
		CacheTTLSeconds:      getEnvAsInt("CACHE_TTL_SECONDS", 300),
		AuthRequired:         getEnvAsBool("AUTH_REQUIRED", true),
		AuthzURL:             getEnv("AUTHZ_URL", ""),
		AuthzClientID:        getEnv("AUTHZ_CLIENT_ID", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required fields
func (cfg *Config) Validate() error {
	if cfg.DBAppDatabase == "" {
		return fmt.Errorf("DB_APP_DATABASE is required")
	}
	if cfg.DBType != "sqlite" && cfg.DBAppUser == "" {
		return fmt.Errorf("DB_APP_USER is required")
	}
	if cfg.AuthRequired {
		if cfg.AuthzURL == "" {
			return fmt.Errorf("AUTHZ_URL is required")
		}
		if cfg.AuthzClientID == "" {
			return fmt.Errorf("AUTHZ_CLIENT_ID is required")
		}
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

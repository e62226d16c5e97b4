// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port           int
	Host           string
	MetricsEnabled bool
	// BaseURL is the externally visible address used to build stable
	// attachment download URLs.
	BaseURL string
}

// DatabaseConfig holds MongoDB configuration settings
type DatabaseConfig struct {
	URI  string
	Name string
}

// RedisConfig holds the presence-store connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// UploadConfig holds attachment upload policy settings
type UploadConfig struct {
	// MaxBytes is the policy cap enforced before any upload starts.
	MaxBytes int64
}

// Config holds the complete application configuration
type Config struct {
	Server         *ServerConfig
	Database       *DatabaseConfig
	Redis          *RedisConfig
	Upload         *UploadConfig
	JWTSecret      string
	AllowedOrigins []string
	Debug          bool
}

const defaultMaxUploadBytes = 10 << 20 // 10 MiB, matching the client-side policy

// DefaultConfig provides default server settings
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Port:           8080,
		Host:           "0.0.0.0",
		MetricsEnabled: true,
		BaseURL:        "http://localhost:8080",
	}
}

// DefaultDatabaseConfig provides default database settings
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URI:  "mongodb://localhost:27017",
		Name: "caretalk",
	}
}

// LoadConfig loads configuration from environment variables and applies defaults
func LoadConfig() (*Config, error) {
	// Try to load .env file from multiple possible locations
	envLocations := []string{
		".env",       // Current directory
		"../../.env", // Project root when running from cmd/server
	}

	envLoaded := false
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		// Silent failure if no .env exists, which is fine
		_ = godotenv.Load()
	}

	serverConfig := DefaultConfig()

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			serverConfig.Port = port
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		serverConfig.Host = host
	}

	if metricsEnabled := os.Getenv("METRICS_ENABLED"); metricsEnabled != "" {
		serverConfig.MetricsEnabled = metricsEnabled == "true"
	}

	if baseURL := os.Getenv("BASE_URL"); baseURL != "" {
		serverConfig.BaseURL = strings.TrimRight(baseURL, "/")
	} else {
		serverConfig.BaseURL = fmt.Sprintf("http://localhost:%d", serverConfig.Port)
	}

	dbConfig := DefaultDatabaseConfig()
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		dbConfig.URI = uri
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		dbConfig.Name = name
	}

	redisConfig := &RedisConfig{
		Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			redisConfig.DB = db
		}
	}

	uploadConfig := &UploadConfig{MaxBytes: defaultMaxUploadBytes}
	if maxStr := os.Getenv("MAX_UPLOAD_BYTES"); maxStr != "" {
		max, err := strconv.ParseInt(maxStr, 10, 64)
		if err != nil || max <= 0 {
			return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %q", maxStr)
		}
		uploadConfig.MaxBytes = max
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	config := &Config{
		Server:         serverConfig,
		Database:       dbConfig,
		Redis:          redisConfig,
		Upload:         uploadConfig,
		JWTSecret:      jwtSecret,
		AllowedOrigins: []string{"*"}, // Default to allow all origins
		Debug:          false,
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	if debug := os.Getenv("DEBUG"); debug == "true" {
		config.Debug = true
	}

	return config, nil
}

// Helper function to get environment variable with default fallback
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

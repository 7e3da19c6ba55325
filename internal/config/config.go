package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the bikewatching server
type Config struct {
	// HTTP
	ListenAddr     string
	AllowedOrigins []string

	// Storage. SQLite is the default; a non-empty DatabaseURL switches the
	// dataset cache to Postgres.
	DatabasePath string
	DatabaseURL  string

	// Dataset sources
	StationsURL string
	TripsURL    string
	CacheDir    string
	HTTPTimeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		ListenAddr:     getEnv("LISTEN_ADDR", ":8090"),
		AllowedOrigins: []string{getEnv("ALLOWED_ORIGIN", "http://localhost:5173")},

		DatabasePath: getEnv("SQLITE_DATABASE", "./data/bikewatching.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		StationsURL: getEnv("STATIONS_URL", "https://dsc106.com/labs/lab07/data/bluebikes-stations.csv"),
		TripsURL:    getEnv("TRIPS_URL", "https://dsc106.com/labs/lab07/data/bluebikes-traffic-2024-03.csv"),
		CacheDir:    getEnv("CACHE_DIR", "./data/cache"),
		HTTPTimeout: time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 60)) * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the messaging server.
type Config struct {
	Addr   string
	DBUrl  string
	DBNs   string
	DBDb   string
	DBUser string
	DBPass string

	TracingEnabled bool
	ZipkinURL      string
}

// New loads configuration from environment variables.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Addr:           getenv("RELAY_ADDR", ":8080"),
		DBUrl:          os.Getenv("SURREAL_URL"),
		DBUser:         os.Getenv("SURREAL_USER"),
		DBPass:         os.Getenv("SURREAL_PASS"),
		DBNs:           os.Getenv("SURREAL_NS"),
		DBDb:           os.Getenv("SURREAL_DB"),
		TracingEnabled: os.Getenv("RELAY_TRACING_ENABLED") == "true",
		ZipkinURL:      getenv("RELAY_ZIPKIN_URL", "http://localhost:9411/api/v2/spans"),
	}

	if cfg.DBUrl == "" || cfg.DBNs == "" || cfg.DBDb == "" {
		log.Fatal("Required environment variables SURREAL_URL, SURREAL_NS, or SURREAL_DB are not set.")
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

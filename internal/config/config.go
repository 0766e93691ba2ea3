// Package config reads process settings from the environment, after loading
// an optional .env file.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	DBTimezone  string
	JWTSecret   string

	// Kafka publishing is disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string

	SeedAdminEmail    string
	SeedAdminPassword string
}

// Load reads .env if present and builds a Config. Missing .env is not an
// error; the process environment is used as is.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	cfg := &Config{
		Port:              getEnv("PORT", "3000"),
		DBTimezone:        getEnv("DB_TIMEZONE", "UTC"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "ledger"),
		SeedAdminEmail:    getEnv("SEED_ADMIN_EMAIL", "admin@ledger.local"),
		SeedAdminPassword: os.Getenv("SEED_ADMIN_PASSWORD"),
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
			getEnv("DB_HOST", "localhost"),
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_NAME"),
			getEnv("DB_PORT", "5432"),
			cfg.DBTimezone,
		)
	}

	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))

	if cfg.JWTSecret == "" {
		log.Println("WARNING: JWT_SECRET is not set, using an insecure development secret")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

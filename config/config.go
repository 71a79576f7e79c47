package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the app reads from the environment.
type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	RedisAddr   string
	JWTSecret   string

	SMTPHost  string
	SMTPPort  int
	EmailUser string
	EmailPass string

	// MinLeadTime is the minimum interval between "now" and a bookable
	// slot's start.
	MinLeadTime time.Duration
	// SlotMinutes is the slot grid width; availability templates must
	// align to it.
	SlotMinutes int
	// RefreshInterval is how often the sync coordinator re-pulls the
	// authoritative appointment set.
	RefreshInterval time.Duration
	// SyncMaxRetries bounds retries of unreachable-store writes.
	SyncMaxRetries uint64
}

// Load reads configuration from .env (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: no .env file found, using environment variables directly")
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8000"),
		Environment:     getEnv("ENV", "development"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:       getEnv("JWT_SECRET", "solid_secret_key"),
		SMTPHost:        os.Getenv("SMTP_HOST"),
		EmailUser:       os.Getenv("EMAIL_USER"),
		EmailPass:       os.Getenv("EMAIL_PASS"),
		MinLeadTime:     getDuration("BOOKING_MIN_LEAD", 2*time.Hour),
		SlotMinutes:     getInt("BOOKING_SLOT_MINUTES", 30),
		RefreshInterval: getDuration("SYNC_REFRESH_INTERVAL", time.Minute),
		SyncMaxRetries:  uint64(getInt("SYNC_MAX_RETRIES", 3)),
	}
	cfg.SMTPPort = getInt("SMTP_PORT", 587)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}
	if cfg.SlotMinutes <= 0 || 60%cfg.SlotMinutes != 0 {
		return nil, fmt.Errorf("BOOKING_SLOT_MINUTES must divide an hour, got %d", cfg.SlotMinutes)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}

package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Game Settings
	TurnMs             int
	DrawRefundPolicy   string // "full" or "none"
	BaseEntryMin       int
	BaseEntryMax       int
	LeverageMin        int
	LeverageMax        int
	PayoutMultiplier   float64
	QueueTTLMinutes    int
	TurnPollMs         int
	ReconcileIntervalM int

	// Rate Limits
	JoinQueuePerMinute int
	MovesPer10Seconds  int

	// Security
	JWTSecret         string
	SessionTimeoutMin int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/ticx?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		// Game Settings
		TurnMs:             getEnvInt("TURN_MS", 20000),
		DrawRefundPolicy:   getEnv("DRAW_REFUND", "full"),
		BaseEntryMin:       getEnvInt("BASE_ENTRY_MIN", 10),
		BaseEntryMax:       getEnvInt("BASE_ENTRY_MAX", 1000),
		LeverageMin:        getEnvInt("LEVERAGE_MIN", 1),
		LeverageMax:        getEnvInt("LEVERAGE_MAX", 5),
		PayoutMultiplier:   getEnvFloat("PAYOUT_MULTIPLIER", 1.5),
		QueueTTLMinutes:    getEnvInt("QUEUE_TTL_MINUTES", 10),
		TurnPollMs:         getEnvInt("TURN_POLL_MS", 1000),
		ReconcileIntervalM: getEnvInt("RECONCILE_INTERVAL_MINUTES", 5),

		// Rate Limits
		JoinQueuePerMinute: getEnvInt("RATE_LIMIT_JOIN_PER_MIN", 10),
		MovesPer10Seconds:  getEnvInt("RATE_LIMIT_MOVE_PER_10S", 20),

		// Security
		JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
		SessionTimeoutMin: getEnvInt("SESSION_TIMEOUT_MINUTES", 30),
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
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

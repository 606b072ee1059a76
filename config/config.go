package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	Env  string
	Port string

	DBURL string

	AccessTokenSecret string
	TokenIssuer       string
	TokenAudience     string
	AccessExpiryMin   int
	RefreshExpiryDays int

	LockoutThreshold int
	LockoutMinutes   int

	ResetTokenTTLMin int
	ResetMaxRequests int
	ResetWindowMin   int

	VerificationTTLHours int

	ReaperIntervalMin int

	AppBaseURL  string
	AdminAPIKey string
	SentryDSN   string
}

func Load() *Config {
	return &Config{
		Env:                  getEnv("ENV", "development"),
		Port:                 getEnv("PORT", "8080"),
		DBURL:                mustGetEnv("DB_URL"),
		AccessTokenSecret:    mustGetEnv("ACCESS_TOKEN_SECRET"),
		TokenIssuer:          getEnv("TOKEN_ISSUER", "microservices-platform"),
		TokenAudience:        getEnv("TOKEN_AUDIENCE", "microservices-platform-api"),
		AccessExpiryMin:      getEnvAsInt("ACCESS_TOKEN_EXPIRY", 10080),
		RefreshExpiryDays:    getEnvAsInt("REFRESH_TOKEN_EXPIRY_DAYS", 30),
		LockoutThreshold:     getEnvAsInt("LOCKOUT_THRESHOLD", 5),
		LockoutMinutes:       getEnvAsInt("LOCKOUT_MINUTES", 15),
		ResetTokenTTLMin:     getEnvAsInt("RESET_TOKEN_TTL_MINUTES", 60),
		ResetMaxRequests:     getEnvAsInt("RESET_MAX_REQUESTS", 3),
		ResetWindowMin:       getEnvAsInt("RESET_WINDOW_MINUTES", 60),
		VerificationTTLHours: getEnvAsInt("VERIFICATION_TTL_HOURS", 24),
		ReaperIntervalMin:    getEnvAsInt("REAPER_INTERVAL_MINUTES", 60),
		AppBaseURL:           getEnv("APP_BASE_URL", "http://localhost:8080"),
		AdminAPIKey:          getEnv("ADMIN_API_KEY", ""),
		SentryDSN:            getEnv("SENTRY_DSN", ""),
	}
}

func getEnv(key string, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func mustGetEnv(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	log.Fatalf("Missing required environment variable: %s", key)
	return ""
}

func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("Invalid value for %s, using default %d", key, defaultVal)
		return defaultVal
	}
	return val
}

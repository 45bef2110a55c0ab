package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	MongoURI             string
	DBName               string
	JWTSecret            string
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	TaxRatePercent       int64
	ServiceFee           int64
	CORSOrigins          []string
	SnapshotPollInterval time.Duration
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = Config{
		MongoURI:             getEnvOrDefault("MONGO_URI", ""),
		DBName:               getEnvOrDefault("DB_NAME", "restaurant"),
		JWTSecret:            getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL:       getDurationEnv("ACCESS_TOKEN_TTL", 60, time.Minute),
		RefreshTokenTTL:      getDurationEnv("REFRESH_TOKEN_TTL", 7, 24*time.Hour),
		TaxRatePercent:       getInt64Env("TAX_RATE_PERCENT", 8),
		ServiceFee:           getInt64Env("SERVICE_FEE", 0),
		CORSOrigins:          getListEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		SnapshotPollInterval: getDurationEnv("SNAPSHOT_POLL_INTERVAL", 30, time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key, defaultValue string) []string {
	raw := getEnvOrDefault(key, defaultValue)
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

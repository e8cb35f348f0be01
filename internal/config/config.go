package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	AWSRegion               string
	SQSNotificationQueueURL string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// CancellationWindow is how long before start_time a reservation must be
	// cancelled by; past that point the owner can no longer cancel.
	CancellationWindow time.Duration
	SweepInterval      time.Duration
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	accessTTLMinutes, _ := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "60"))
	refreshTTLHours, _ := strconv.Atoi(getEnv("REFRESH_TOKEN_TTL_HOURS", "168"))
	cancelWindowHours, _ := strconv.Atoi(getEnv("RESERVATION_CANCELLATION_WINDOW_HOURS", "1"))
	sweepSeconds, _ := strconv.Atoi(getEnv("RESERVATION_SWEEP_INTERVAL_SECONDS", "60"))

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "parking"),
		DBPassword: getEnv("DB_PASSWORD", "parking"),
		DBName:     getEnv("DB_NAME", "parking_db"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		AWSRegion:               getEnv("AWS_REGION", "ap-southeast-1"),
		SQSNotificationQueueURL: getEnv("SQS_NOTIFICATION_QUEUE_URL", ""),

		JWTSecret:       getEnv("JWT_SECRET", "change-me-in-production"),
		AccessTokenTTL:  time.Duration(accessTTLMinutes) * time.Minute,
		RefreshTokenTTL: time.Duration(refreshTTLHours) * time.Hour,

		CancellationWindow: time.Duration(cancelWindowHours) * time.Hour,
		SweepInterval:      time.Duration(sweepSeconds) * time.Second,
	}
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

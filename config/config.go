package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type ServerConfig struct {
	Port        string
	BaseURL     string
	SwaggerHost string
	Version     string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// TrackerConfig tunes the background session engine: the timezone all
// day/week boundaries are computed in and the weekly digest schedule.
type TrackerConfig struct {
	Timezone      string
	DigestWeekday time.Weekday
	DigestHour    int
}

type Config struct {
	Server    ServerConfig
	DB        DatabaseConfig
	Redis     RedisConfig
	Tracker   TrackerConfig
	OpenAIKey string
	Env       string
}

func LoadConfig() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
			SwaggerHost: getEnv("SWAGGER_HOST", "127.0.0.1:8080"),
			Version:     getEnv("APP_VERSION", "1.x"),
		},
		DB: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "clara"),
			Password: getEnv("DB_PASS", "clara"),
			DBName:   getEnv("DB_NAME", "clara"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Tracker: TrackerConfig{
			Timezone:      getEnv("TRACKER_TIMEZONE", "UTC"),
			DigestWeekday: time.Weekday(getEnvInt("DIGEST_WEEKDAY", 1)),
			DigestHour:    getEnvInt("DIGEST_HOUR", 9),
		},
		OpenAIKey: getEnv("OPENAI_API_KEY", ""),
		Env:       getEnv("ENV", "prod"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Weather   WeatherConfig
	Scheduler SchedulerConfig
	Alerts    AlertsConfig
	HTTP      HTTPConfig
	SMTP      SMTPConfig
	LogLevel  string
}

type DatabaseConfig struct {
	Driver     string // postgres or sqlite3
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
}

// ConnectionString returns the data source name for the configured driver.
func (d DatabaseConfig) ConnectionString() string {
	if d.Driver == "sqlite3" {
		return d.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers     []string
	TopicAlarms string
}

type WeatherConfig struct {
	BaseURL   string
	APIKey    string
	Units     string
	Timeout   time.Duration
	RateLimit float64 // requests per second
	Burst     int
}

type SchedulerConfig struct {
	Workers      int
	ExactAllowed bool
}

type AlertsConfig struct {
	SnoozeMinutes   int
	NotificationTTL time.Duration
}

type HTTPConfig struct {
	Port int
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvAsInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "weather_user"),
			Password:   getEnv("DB_PASSWORD", "weather_pass"),
			DBName:     getEnv("DB_NAME", "weather_alarms"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("DB_SQLITE_PATH", "alarms.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:     strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicAlarms: getEnv("KAFKA_TOPIC_ALARMS", "weather.alarms"),
		},
		Weather: WeatherConfig{
			BaseURL:   getEnv("WEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"),
			APIKey:    getEnv("WEATHER_API_KEY", ""),
			Units:     getEnv("WEATHER_UNITS", "metric"),
			Timeout:   getEnvAsDuration("WEATHER_TIMEOUT", 10*time.Second),
			RateLimit: getEnvAsFloat("WEATHER_RATE_LIMIT", 1),
			Burst:     getEnvAsInt("WEATHER_RATE_BURST", 5),
		},
		Scheduler: SchedulerConfig{
			Workers:      getEnvAsInt("SCHEDULER_WORKERS", 4),
			ExactAllowed: getEnvAsBool("SCHEDULER_EXACT_ALLOWED", true),
		},
		Alerts: AlertsConfig{
			SnoozeMinutes:   getEnvAsInt("SNOOZE_MINUTES", 10),
			NotificationTTL: getEnvAsDuration("NOTIFICATION_TTL", 24*time.Hour),
		},
		HTTP: HTTPConfig{
			Port: getEnvAsInt("HTTP_PORT", 8080),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "weather-alarms@example.com"),
			To:       getEnv("SMTP_TO", "admin@example.com"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if config.Database.Driver != "postgres" && config.Database.Driver != "sqlite3" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", config.Database.Driver)
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	NewRelic   NewRelicConfig
	Auth       AuthConfig
	Fare       FareConfig
	Twilio     TwilioConfig
	Push       PushConfig
	Kafka      KafkaConfig
	ChangeFeed ChangeFeedConfig
	LogLevel   string
	Migrate    bool
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL      string // takes precedence over the discrete fields when set
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	URL      string // REDIS_URL wins over the discrete fields when set
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string
}

// FareConfig holds trip pricing.
type FareConfig struct {
	RatePerMinute  float64
	PayoutFraction float64
}

// TwilioConfig holds SMS gateway credentials.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Complete reports whether every credential needed to send SMS is present.
func (c TwilioConfig) Complete() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// PushConfig holds push gateway settings.
type PushConfig struct {
	ExpoURL                   string
	FirebaseCredentialsFile   string
	FirebaseCredentialsBase64 string
}

// KafkaConfig holds the job event stream settings. An empty broker list disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ChangeFeedConfig holds LISTEN/NOTIFY settings.
type ChangeFeedConfig struct {
	Enabled              bool
	Channel              string
	MinReconnectInterval time.Duration
	MaxReconnectInterval time.Duration
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "minuteride"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "minuteride-dispatch"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Fare: FareConfig{
			RatePerMinute:  getFloatEnv("FARE_RATE_PER_MINUTE", 1.0),
			PayoutFraction: getFloatEnv("DRIVER_PAYOUT_FRACTION", 0.8),
		},
		Twilio: TwilioConfig{
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		},
		Push: PushConfig{
			ExpoURL:                   getEnv("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send"),
			FirebaseCredentialsFile:   getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			FirebaseCredentialsBase64: getEnv("FIREBASE_CREDENTIALS_BASE64", ""),
		},
		Kafka: KafkaConfig{
			Brokers: getListEnv("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_JOB_EVENTS_TOPIC", "minuteride.job-events"),
		},
		ChangeFeed: ChangeFeedConfig{
			Enabled:              getBoolEnv("CHANGE_FEED_ENABLED", true),
			Channel:              getEnv("CHANGE_FEED_CHANNEL", "jobs_changes"),
			MinReconnectInterval: getDurationEnv("CHANGE_FEED_MIN_RECONNECT", 10*time.Second),
			MaxReconnectInterval: getDurationEnv("CHANGE_FEED_MAX_RECONNECT", time.Minute),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Migrate:  getBoolEnv("MIGRATE_ON_START", false),
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Fare.RatePerMinute <= 0 {
		errs = append(errs, fmt.Errorf("FARE_RATE_PER_MINUTE must be positive, got %v", c.Fare.RatePerMinute))
	}
	if c.Fare.PayoutFraction <= 0 || c.Fare.PayoutFraction > 1 {
		errs = append(errs, fmt.Errorf("DRIVER_PAYOUT_FRACTION must be in (0, 1], got %v", c.Fare.PayoutFraction))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("KAFKA_JOB_EVENTS_TOPIC is required when KAFKA_BROKERS is set"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

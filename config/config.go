package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort  string `mapstructure:"APP_PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Mongo configuration.
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`

	// Redis configuration.
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisSessionDB int    `mapstructure:"REDIS_SESSION_DB"`
	RedisHoldDB    int    `mapstructure:"REDIS_HOLD_DB"`
	RedisQueueDB   int    `mapstructure:"REDIS_QUEUE_DB"`

	// Clinic scheduling parameters.
	ClinicTimezone   string `mapstructure:"CLINIC_TIMEZONE"`
	ClinicOpenHour   int    `mapstructure:"CLINIC_OPEN_HOUR"`
	ClinicCloseHour  int    `mapstructure:"CLINIC_CLOSE_HOUR"`
	SlotMinutes      int    `mapstructure:"SLOT_MINUTES"`
	HoldTTLSeconds   int    `mapstructure:"HOLD_TTL_SECONDS"`
	SessionTTLMins   int    `mapstructure:"SESSION_TTL_MINUTES"`
	AvailRetries     int    `mapstructure:"AVAILABILITY_RETRY_ATTEMPTS"`
	AvailBackoffMS   int    `mapstructure:"AVAILABILITY_RETRY_BACKOFF_MS"`
	ExternalTimeoutS int    `mapstructure:"EXTERNAL_CALL_TIMEOUT_SECONDS"`

	// Google API credentials.
	GeminiAPIKey             string `mapstructure:"GEMINI_API_KEY"`
	GoogleServiceAccountFile string `mapstructure:"GOOGLE_SERVICE_ACCOUNT_FILE"`

	// Auth for the dialogue engine and admin surface.
	JWTSecret    string `mapstructure:"JWT_SECRET"`
	AdminKeyHash string `mapstructure:"ADMIN_KEY_HASH"`

	MaxRequestsPerMin int `mapstructure:"MAX_REQUESTS_PER_MIN"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "clinicvoice")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_SESSION_DB", 0)
	viper.SetDefault("REDIS_HOLD_DB", 1)
	viper.SetDefault("REDIS_QUEUE_DB", 2)
	viper.SetDefault("CLINIC_TIMEZONE", "Europe/Paris")
	viper.SetDefault("CLINIC_OPEN_HOUR", 9)
	viper.SetDefault("CLINIC_CLOSE_HOUR", 17)
	viper.SetDefault("SLOT_MINUTES", 30)
	viper.SetDefault("HOLD_TTL_SECONDS", 120)
	viper.SetDefault("SESSION_TTL_MINUTES", 30)
	viper.SetDefault("AVAILABILITY_RETRY_ATTEMPTS", 3)
	viper.SetDefault("AVAILABILITY_RETRY_BACKOFF_MS", 200)
	viper.SetDefault("EXTERNAL_CALL_TIMEOUT_SECONDS", 5)
	viper.SetDefault("GEMINI_API_KEY", "")
	viper.SetDefault("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("ADMIN_KEY_HASH", "")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// HoldTTL returns the configured reservation hold TTL.
func HoldTTL() time.Duration {
	return time.Duration(AppConfig.HoldTTLSeconds) * time.Second
}

// SessionTTL returns the configured conversation session TTL.
func SessionTTL() time.Duration {
	return time.Duration(AppConfig.SessionTTLMins) * time.Minute
}

// ExternalCallTimeout bounds every call to a collaborator backend.
func ExternalCallTimeout() time.Duration {
	if AppConfig.ExternalTimeoutS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(AppConfig.ExternalTimeoutS) * time.Second
}

// ClinicLocation resolves the configured clinic timezone, falling back to UTC.
func ClinicLocation() *time.Location {
	loc, err := time.LoadLocation(AppConfig.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

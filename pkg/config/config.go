package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Deliveries DeliveriesConfig
	Events     EventsConfig
	Payments   PaymentsConfig
	Boards     BoardsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DeliveriesConfig tunes the delivery ledger.
type DeliveriesConfig struct {
	Enabled bool
	// VersionConflictRetries is how many times a lost version race is retried
	// before VERSION_ALLOCATION_CONFLICT is returned.
	VersionConflictRetries int
	AllowedSchemes         []string
}

// EventsConfig controls lifecycle event dispatch.
type EventsConfig struct {
	Driver     string
	StreamName string
	MaxLen     int64
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// PaymentsConfig points at the payment capture/release service.
type PaymentsConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// BoardsConfig toggles the kanban export endpoint.
type BoardsConfig struct {
	ExportEnabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	retries := v.GetInt("DELIVERY_VERSION_CONFLICT_RETRIES")
	if retries < 0 {
		retries = 0
	}
	cfg.Deliveries = DeliveriesConfig{
		Enabled:                v.GetBool("ENABLE_DELIVERIES"),
		VersionConflictRetries: retries,
		AllowedSchemes:         splitAndTrim(v.GetString("DELIVERY_ALLOWED_SCHEMES")),
	}

	cfg.Events = EventsConfig{
		Driver:     strings.ToLower(v.GetString("EVENTS_DRIVER")),
		StreamName: v.GetString("EVENTS_STREAM_NAME"),
		MaxLen:     v.GetInt64("EVENTS_STREAM_MAXLEN"),
		Workers:    v.GetInt("EVENTS_WORKERS"),
		BufferSize: v.GetInt("EVENTS_BUFFER_SIZE"),
		MaxRetries: v.GetInt("EVENTS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("EVENTS_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Payments = PaymentsConfig{
		Enabled: v.GetBool("ENABLE_PAYMENTS"),
		BaseURL: strings.TrimRight(v.GetString("PAYMENTS_BASE_URL"), "/"),
		APIKey:  v.GetString("PAYMENTS_API_KEY"),
		Timeout: parseDuration(v.GetString("PAYMENTS_TIMEOUT"), 5*time.Second),
	}

	cfg.Boards = BoardsConfig{
		ExportEnabled: v.GetBool("ENABLE_BOARD_EXPORT"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "cutroom")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_DELIVERIES", true)
	v.SetDefault("DELIVERY_VERSION_CONFLICT_RETRIES", 1)
	v.SetDefault("DELIVERY_ALLOWED_SCHEMES", "https,http")

	v.SetDefault("EVENTS_DRIVER", "log")
	v.SetDefault("EVENTS_STREAM_NAME", "delivery_lifecycle")
	v.SetDefault("EVENTS_STREAM_MAXLEN", 10000)
	v.SetDefault("EVENTS_WORKERS", 2)
	v.SetDefault("EVENTS_BUFFER_SIZE", 64)
	v.SetDefault("EVENTS_MAX_RETRIES", 3)
	v.SetDefault("EVENTS_RETRY_DELAY", "2s")

	v.SetDefault("ENABLE_PAYMENTS", false)
	v.SetDefault("PAYMENTS_BASE_URL", "http://localhost:9090")
	v.SetDefault("PAYMENTS_API_KEY", "")
	v.SetDefault("PAYMENTS_TIMEOUT", "5s")

	v.SetDefault("ENABLE_BOARD_EXPORT", true)
}

func isMissingFile(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

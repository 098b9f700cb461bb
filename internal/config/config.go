package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/mmuslimabdulj/goat-messenger/internal/domain"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port string

	// Security
	AllowedOrigins []string

	// Authentication
	AuthSecret  string
	AuthIssuer  string
	AuthTimeout time.Duration

	// Database
	DatabaseDriver string
	DatabaseURL    string

	// Rate Limiting
	RateLimitAPI    rate.Limit
	RateLimitWS     rate.Limit
	RateLimitEvents rate.Limit

	// Logging
	LogLevel  string
	LogPretty bool

	// WebSocket
	MaxMessageSize   int64
	SendBufferSize   int
	HistoryLimit     int
	OperationTimeout time.Duration
	PingInterval     time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration

	// Cross-instance relay, disabled when RedisAddress is empty
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisChannel  string
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Port:             "8080",
		AllowedOrigins:   []string{"http://localhost:8080", "http://localhost:3000"},
		AuthTimeout:      domain.AuthTimeout,
		DatabaseDriver:   "sqlite",
		DatabaseURL:      "goat-messenger.db",
		RateLimitAPI:     domain.DefaultRateLimitAPI,
		RateLimitWS:      domain.DefaultRateLimitWS,
		RateLimitEvents:  domain.DefaultRateLimitEvents,
		LogLevel:         "info", // Options: debug, info, warn, error, silent
		MaxMessageSize:   domain.MaxMessageSize,
		SendBufferSize:   domain.SendBufferSize,
		HistoryLimit:     domain.HistoryLimit,
		OperationTimeout: domain.OperationTimeout,
		PingInterval:     54 * time.Second,
		PongWait:         60 * time.Second,
		WriteWait:        10 * time.Second,
		RedisChannel:     "goat-messenger:relay",
	}
}

// Load reads configuration from an optional config.yaml and environment variables.
// Environment variables take precedence.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Port:             v.GetString("port"),
		AllowedOrigins:   parseOrigins(v.GetString("allowed_origins")),
		AuthSecret:       v.GetString("auth_secret"),
		AuthIssuer:       v.GetString("auth_issuer"),
		AuthTimeout:      v.GetDuration("auth_timeout"),
		DatabaseDriver:   strings.ToLower(v.GetString("database_driver")),
		DatabaseURL:      v.GetString("database_url"),
		RateLimitAPI:     rate.Limit(v.GetFloat64("rate_limit_api")),
		RateLimitWS:      rate.Limit(v.GetFloat64("rate_limit_ws")),
		RateLimitEvents:  rate.Limit(v.GetFloat64("rate_limit_events")),
		LogLevel:         v.GetString("log_level"),
		LogPretty:        v.GetBool("log_pretty"),
		MaxMessageSize:   v.GetInt64("max_message_size"),
		SendBufferSize:   v.GetInt("send_buffer_size"),
		HistoryLimit:     v.GetInt("history_limit"),
		OperationTimeout: v.GetDuration("operation_timeout"),
		PingInterval:     v.GetDuration("ping_interval"),
		PongWait:         v.GetDuration("pong_wait"),
		WriteWait:        v.GetDuration("write_wait"),
		RedisAddress:     v.GetString("redis_address"),
		RedisPassword:    v.GetString("redis_password"),
		RedisDB:          v.GetInt("redis_db"),
		RedisChannel:     v.GetString("redis_channel"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("port", d.Port)
	v.SetDefault("allowed_origins", strings.Join(d.AllowedOrigins, ","))
	v.SetDefault("auth_issuer", d.AuthIssuer)
	v.SetDefault("auth_timeout", d.AuthTimeout)
	v.SetDefault("database_driver", d.DatabaseDriver)
	v.SetDefault("database_url", d.DatabaseURL)
	v.SetDefault("rate_limit_api", float64(d.RateLimitAPI))
	v.SetDefault("rate_limit_ws", float64(d.RateLimitWS))
	v.SetDefault("rate_limit_events", float64(d.RateLimitEvents))
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_pretty", d.LogPretty)
	v.SetDefault("max_message_size", d.MaxMessageSize)
	v.SetDefault("send_buffer_size", d.SendBufferSize)
	v.SetDefault("history_limit", d.HistoryLimit)
	v.SetDefault("operation_timeout", d.OperationTimeout)
	v.SetDefault("ping_interval", d.PingInterval)
	v.SetDefault("pong_wait", d.PongWait)
	v.SetDefault("write_wait", d.WriteWait)
	v.SetDefault("redis_db", d.RedisDB)
	v.SetDefault("redis_channel", d.RedisChannel)

	// Keys without a default are invisible to AutomaticEnv lookups through Get
	// unless bound explicitly.
	_ = v.BindEnv("auth_secret")
	_ = v.BindEnv("redis_address")
	_ = v.BindEnv("redis_password")
}

// Validate checks settings that have no safe default
func (c *Config) Validate() error {
	if c.AuthSecret == "" {
		return errors.New("AUTH_SECRET is required")
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.AuthTimeout <= 0 {
		return errors.New("AUTH_TIMEOUT must be positive")
	}
	if c.HistoryLimit <= 0 || c.HistoryLimit > domain.MaxPageSize {
		return fmt.Errorf("HISTORY_LIMIT must be between 1 and %d", domain.MaxPageSize)
	}
	if c.PingInterval >= c.PongWait {
		return errors.New("PING_INTERVAL must be shorter than PONG_WAIT")
	}
	if c.SendBufferSize <= 0 {
		return errors.New("SEND_BUFFER_SIZE must be positive")
	}
	return nil
}

// parseOrigins parses comma-separated origins
func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

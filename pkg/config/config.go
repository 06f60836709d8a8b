package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Encoder types
const (
	EncoderOpenAI = "openai"
	EncoderTfidf  = "tfidf"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Encoder configuration
	Encoder EncoderConfig `mapstructure:"encoder"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json

	// TelemetryDir receives Parquet files of error records when set.
	TelemetryDir string `mapstructure:"telemetry_dir"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// EncoderConfig selects and configures the encoder
type EncoderConfig struct {
	Type   string       `mapstructure:"type"` // openai, tfidf
	OpenAI OpenAIConfig `mapstructure:"openai"`
	Tfidf  TfidfConfig  `mapstructure:"tfidf"`
}

// OpenAIConfig holds configuration for the remote embeddings encoder
type OpenAIConfig struct {
	// APIKey takes precedence over the APIKeyEnv variable when set.
	APIKey            string      `mapstructure:"api_key"`
	APIKeyEnv         string      `mapstructure:"api_key_env"`
	Model             string      `mapstructure:"model"`
	BaseURL           string      `mapstructure:"base_url"`
	Dimensions        int         `mapstructure:"dimensions"`
	RequestsPerMinute float64     `mapstructure:"requests_per_minute"`
	Retry             RetryConfig `mapstructure:"retry"`
}

// RetryConfig holds retry settings for provider errors
type RetryConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	InitialDelay      time.Duration `mapstructure:"initial_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
}

// TfidfConfig holds configuration for the local TF-IDF encoder
type TfidfConfig struct {
	// RoutesFile is a YAML route file fitted at startup.
	RoutesFile string `mapstructure:"routes_file"`
	Normalize  bool   `mapstructure:"normalize"`
}

// Load loads configuration from the global viper instance and environment variables
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration from v, applying defaults and environment overrides
func LoadFrom(v *viper.Viper) (*Config, error) {
	// Set defaults
	setDefaults(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for values no component can work with
func (c *Config) Validate() error {
	switch c.Encoder.Type {
	case EncoderOpenAI, EncoderTfidf:
	default:
		return fmt.Errorf("unsupported encoder type: %q", c.Encoder.Type)
	}
	if c.Encoder.OpenAI.Retry.MaxAttempts < 1 {
		return fmt.Errorf("encoder.openai.retry.max_attempts must be at least 1, got %d", c.Encoder.OpenAI.Retry.MaxAttempts)
	}
	if c.Encoder.OpenAI.RequestsPerMinute < 0 {
		return fmt.Errorf("encoder.openai.requests_per_minute cannot be negative")
	}
	if c.CircuitBreaker.Enabled && (c.CircuitBreaker.ReadyToTripRatio <= 0 || c.CircuitBreaker.ReadyToTripRatio > 1) {
		return fmt.Errorf("circuit_breaker.ready_to_trip_ratio must be in (0, 1], got %v", c.CircuitBreaker.ReadyToTripRatio)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	// Encoder defaults
	v.SetDefault("encoder.type", EncoderOpenAI)
	v.SetDefault("encoder.openai.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("encoder.openai.model", "text-embedding-3-small")
	v.SetDefault("encoder.openai.retry.max_attempts", 3)
	v.SetDefault("encoder.openai.retry.initial_delay", time.Second)
	v.SetDefault("encoder.openai.retry.max_delay", 60*time.Second)
	v.SetDefault("encoder.openai.retry.backoff_multiplier", 2.0)
	v.SetDefault("encoder.tfidf.normalize", false)

	// Circuit breaker defaults
	v.SetDefault("circuit_breaker.enabled", false)
	v.SetDefault("circuit_breaker.max_requests", 1)
	v.SetDefault("circuit_breaker.interval", 60)
	v.SetDefault("circuit_breaker.timeout", 30)
	v.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) error {
	if encoderType := os.Getenv("SEMROUTE_ENCODER"); encoderType != "" {
		config.Encoder.Type = encoderType
	}
	if level := os.Getenv("SEMROUTE_LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.Encoder.OpenAI.BaseURL = baseURL
	}
	if dir := os.Getenv("SEMROUTE_TELEMETRY_DIR"); dir != "" {
		config.Log.TelemetryDir = dir
	}
	if routes := os.Getenv("SEMROUTE_ROUTES_FILE"); routes != "" {
		config.Encoder.Tfidf.RoutesFile = routes
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", port, err)
		}
		config.Server.Port = p
	}
	return nil
}

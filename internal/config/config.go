// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Moderation failure policies. ModerationAllow publishes content with a
// not-flagged verdict when the classifier is unreachable; ModerationReject
// refuses the write instead.
const (
	ModerationAllow  = "allow"
	ModerationReject = "reject"
)

// Post deletion scopes. DeletePostOnly removes the post record and leaves its
// comments and likes orphaned; DeleteCascade removes them in the same
// transaction.
const (
	DeletePostOnly = "post_only"
	DeleteCascade  = "cascade"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	Env            string `mapstructure:"APP_ENV"`

	OpenAIAPIKey        string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL       string        `mapstructure:"OPENAI_BASE_URL"`
	ModerationModel     string        `mapstructure:"MODERATION_MODEL"`
	ModerationTimeout   time.Duration `mapstructure:"MODERATION_TIMEOUT"`
	OnModerationFailure string        `mapstructure:"ON_MODERATION_FAILURE"`

	DeleteScope string `mapstructure:"DELETE_SCOPE"`

	TracingEnabled  bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampler  float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The config file is optional; env vars and defaults cover everything.
	_ = viper.ReadInConfig()

	viper.SetDefault("PORT", "8480")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "murmur")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("MODERATION_MODEL", "omni-moderation-latest")
	viper.SetDefault("MODERATION_TIMEOUT", "4s")
	viper.SetDefault("ON_MODERATION_FAILURE", ModerationAllow)
	viper.SetDefault("DELETE_SCOPE", DeletePostOnly)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch c.OnModerationFailure {
	case ModerationAllow, ModerationReject:
	default:
		return fmt.Errorf("ON_MODERATION_FAILURE must be %q or %q, got %q",
			ModerationAllow, ModerationReject, c.OnModerationFailure)
	}

	switch c.DeleteScope {
	case DeletePostOnly, DeleteCascade:
	default:
		return fmt.Errorf("DELETE_SCOPE must be %q or %q, got %q",
			DeletePostOnly, DeleteCascade, c.DeleteScope)
	}

	if c.ModerationTimeout <= 0 {
		return errors.New("MODERATION_TIMEOUT must be positive")
	}

	isProduction := c.Env == "production" || c.Env == "prod"
	if isProduction {
		if c.JWTSecret == "your-secret-key-change-in-production" {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
	}

	return nil
}

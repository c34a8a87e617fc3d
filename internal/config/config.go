package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	DatabaseURL        string
	RedisURL           string
	NatsURL            string
	JWTSecret          string
	VerificationTTL    time.Duration
	SubmissionGrace    time.Duration
	StatsCacheTTL      time.Duration
	CertificateBaseURL string
	CertificateAPIKey  string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MINIMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Minima API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("verification.ttl", "30m")
	v.SetDefault("submission.grace", "60s")
	v.SetDefault("stats.cache_ttl", "5m")

	verificationTTL, err := parseDuration(v, "verification.ttl")
	if err != nil {
		return Config{}, fmt.Errorf("invalid verification ttl: %w", err)
	}
	grace, err := parseDuration(v, "submission.grace")
	if err != nil {
		return Config{}, fmt.Errorf("invalid submission grace: %w", err)
	}
	statsTTL, err := parseDuration(v, "stats.cache_ttl")
	if err != nil {
		return Config{}, fmt.Errorf("invalid stats cache ttl: %w", err)
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NatsURL:            v.GetString("nats.url"),
		JWTSecret:          v.GetString("jwt.secret"),
		VerificationTTL:    verificationTTL,
		SubmissionGrace:    grace,
		StatsCacheTTL:      statsTTL,
		CertificateBaseURL: v.GetString("certificate.base_url"),
		CertificateAPIKey:  v.GetString("certificate.api_key"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	value := v.GetString(key)
	if value == "" {
		return 0, fmt.Errorf("%s is empty", key)
	}
	return time.ParseDuration(value)
}

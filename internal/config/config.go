// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all runtime settings.
type Config struct {
	Env      string `validate:"required"`
	HTTPAddr string `validate:"required"`
	LogLevel string `validate:"oneof=debug info warn error"`

	StorageDriver string `validate:"oneof=postgres memory"`
	DatabaseDSN   string `validate:"required_if=StorageDriver postgres"`

	// RedisAddr is optional; without it realtime fan-out stays process-local.
	RedisAddr     string
	RedisPassword string
	RedisDB       int `validate:"min=0"`

	// AMQPURL is optional; when set, personal notifications are also
	// exported to AMQPQueue for offline delivery.
	AMQPURL   string `validate:"omitempty,url"`
	AMQPQueue string

	JWTSecret string        `validate:"required,min=16"`
	JWTTTL    time.Duration `validate:"gt=0"`

	// CORSAllowedOrigins is applied to both REST and the websocket handshake.
	CORSAllowedOrigins []string `validate:"min=1,dive,required"`

	Matching MatchingConfig

	OutboxBuffer int `validate:"min=1"`
}

// MatchingConfig carries the defaults applied when a query omits them.
type MatchingConfig struct {
	DefaultMaxDistanceKm float64       `validate:"gt=0"`
	DefaultLimit         int           `validate:"gt=0,ltefield=MaxLimit"`
	MaxLimit             int           `validate:"gt=0"`
	QueryTimeout         time.Duration `validate:"gt=0"`
}

var validate = validator.New()

// Load reads the environment (after godotenv has populated it) and validates
// the result.
func Load() (*Config, error) {
	var env envReader
	cfg := &Config{
		Env:           envStr("APP_ENV", "dev"),
		HTTPAddr:      envStr("HTTP_ADDR", ":8080"),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		StorageDriver: envStr("STORAGE_DRIVER", DriverPostgres),
		DatabaseDSN:   os.Getenv("DATABASE_DSN"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       env.int("REDIS_DB", 0),
		AMQPURL:       os.Getenv("AMQP_URL"),
		AMQPQueue:     envStr("AMQP_QUEUE", "shelterlink.notifications"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTTTL:        env.dur("JWT_TTL", DefaultJWTTTL),
		Matching: MatchingConfig{
			DefaultMaxDistanceKm: env.float("MATCH_DEFAULT_DISTANCE_KM", DefaultMaxDistanceKm),
			DefaultLimit:         env.int("MATCH_DEFAULT_LIMIT", DefaultMatchLimit),
			MaxLimit:             env.int("MATCH_MAX_LIMIT", MaxMatchLimit),
			QueryTimeout:         env.dur("MATCH_QUERY_TIMEOUT", DefaultQueryTimeout),
		},
		OutboxBuffer:       env.int("OUTBOX_BUFFER", DefaultOutboxBuffer),
		CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	if err := env.err(); err != nil {
		return nil, fmt.Errorf("config parse failed: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// envReader parses typed variables and remembers every malformed one, so a
// typo fails Load instead of silently falling back to the default.
type envReader struct {
	errs []error
}

func (r *envReader) fail(k, v string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s=%q: %w", k, v, err))
}

func (r *envReader) err() error { return errors.Join(r.errs...) }

func (r *envReader) int(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(k, v, err)
		return d
	}
	return n
}

func (r *envReader) float(k string, d float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(k, v, err)
		return d
	}
	return f
}

func (r *envReader) dur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		r.fail(k, v, err)
		return d
	}
	return dur
}

// envList splits a comma-separated value, dropping blanks.
func envList(k string, d []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return d
	}
	return out
}

package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	CORSOrigins []string
	LogLevel    slog.Level
	// Auth
	JWTSecret     string
	AuthJWKSURL   string // optional; when set, externally issued tokens are accepted too
	SignupCredits int
	// Generation
	GenerationBaseURL     string
	GenerationAPIKey      string
	GenerationModel       string
	GenerationMaxTokens   int
	GenerationTemperature float32
	GenerationTimeout     time.Duration
	// Revisions
	RevisionCost  int
	RefundWorkers int
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		LogLevel:    getLogLevel(env),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		AuthJWKSURL:   getEnv("AUTH_JWKS_URL", ""),
		SignupCredits: getEnvInt("SIGNUP_CREDITS", 20),

		GenerationBaseURL:     getEnv("GENERATION_BASE_URL", "https://router.huggingface.co/v1"),
		GenerationAPIKey:      getEnv("GENERATION_API_KEY", ""),
		GenerationModel:       getEnv("GENERATION_MODEL", "Qwen/Qwen2.5-Coder-32B-Instruct"),
		GenerationMaxTokens:   getEnvInt("GENERATION_MAX_TOKENS", 1500),
		GenerationTemperature: getEnvFloat32("GENERATION_TEMPERATURE", 0.1),
		GenerationTimeout:     getEnvDuration("GENERATION_TIMEOUT", 0),

		RevisionCost:  getEnvInt("REVISION_COST", 5),
		RefundWorkers: getEnvInt("REFUND_WORKERS", 5),
	}
}

// Validate reports settings the API server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.GenerationAPIKey == "" {
		errs = append(errs, errors.New("GENERATION_API_KEY is required"))
	}
	if c.RevisionCost <= 0 {
		errs = append(errs, errors.New("REVISION_COST must be positive"))
	}
	if c.RefundWorkers <= 0 {
		errs = append(errs, errors.New("REFUND_WORKERS must be positive"))
	}
	return errors.Join(errs...)
}

// getLogLevel honours LOG_LEVEL, defaulting to debug outside prod.
func getLogLevel(env string) slog.Level {
	def := "debug"
	if env == "prod" {
		def = "info"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(getEnv("LOG_LEVEL", def))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvFloat32(key string, defaultValue float32) float32 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 32); err == nil {
		return float32(f)
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("30s") or plain seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

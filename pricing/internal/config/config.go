// Package config reads the pricing service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultPort     = "5050"
	DefaultDriver   = "sqlite"
	DefaultDatabase = "file:precifica.db?_pragma=busy_timeout(5000)"
)

type Config struct {
	Port string

	DatabaseDriver string
	DatabaseURL    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret       string
	AdminSecretHash string
	CookieSecure    bool

	MLClientID     string
	MLClientSecret string
	MLRedirectURL  string
	MLBaseURL      string
	MLAuthURL      string

	AnalyticsAddr string

	LogLevel  string
	LogFormat string
}

// Load reads envFile (when present) into the environment and builds the
// configuration from it. Variables already set win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		// A missing file is fine: the process environment may carry everything.
		_ = godotenv.Load(envFile)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		Port:            getenv("PORT", DefaultPort),
		DatabaseDriver:  getenv("DATABASE_DRIVER", ""),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PW"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		AdminSecretHash: os.Getenv("ADMIN_SECRET_HASH"),
		MLClientID:      os.Getenv("ML_CLIENT_ID"),
		MLClientSecret:  os.Getenv("ML_CLIENT_SECRET"),
		MLRedirectURL:   os.Getenv("ML_REDIRECT_URI"),
		MLBaseURL:       os.Getenv("ML_BASE_URL"),
		MLAuthURL:       os.Getenv("ML_AUTH_URL"),
		AnalyticsAddr:   os.Getenv("ANALYTICS_ADDR"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "console"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseDriver = DefaultDriver
		cfg.DatabaseURL = DefaultDatabase
	}
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = driverFor(cfg.DatabaseURL)
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("REDIS_DB must be an integer: %w", err)
		}
		cfg.RedisDB = n
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("COOKIE_SECURE must be a boolean: %w", err)
		}
		cfg.CookieSecure = b
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET environment variable is not set")
	}
	return cfg, nil
}

// MLConfigured reports whether seller login can be offered.
func (c Config) MLConfigured() bool {
	return c.MLClientID != "" && c.MLRedirectURL != ""
}

func driverFor(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return DefaultDriver
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

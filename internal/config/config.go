// backend/internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Database    DatabaseConfig
	RedisAddr   string
	JWTSecret   string
	CORSOrigins []string
	Admin       AdminConfig
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	// MaxOpenConns bounds concurrent operations against the store.
	MaxOpenConns  int
	DialTimeout   time.Duration
	WatchInterval time.Duration
}

// AdminConfig bootstraps the first admin account. Empty Email disables it.
type AdminConfig struct {
	Name     string
	Email    string
	Password string
}

// DSN returns URL when set, otherwise builds a key/value DSN from the parts.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s connect_timeout=%d",
		c.Host,
		c.User,
		c.Password,
		c.DBName,
		c.Port,
		c.SSLMode,
		int(c.DialTimeout.Seconds()),
	)
}

// Load reads .env when present and falls back to the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using system environment")
	}

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			User:          getEnv("DB_USER", "postgres"),
			Password:      os.Getenv("DB_PASSWORD"),
			DBName:        getEnv("DB_NAME", "courses"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 10),
			DialTimeout:   getEnvDuration("DB_DIAL_TIMEOUT", 10*time.Second),
			WatchInterval: getEnvDuration("DB_WATCH_INTERVAL", 30*time.Second),
		},
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		Admin: AdminConfig{
			Name:     getEnv("ADMIN_NAME", "Administrator"),
			Email:    os.Getenv("ADMIN_EMAIL"),
			Password: os.Getenv("ADMIN_PASSWORD"),
		},
	}
	return cfg
}

// ErrMissingJWTSecret is returned by Validate when JWT_SECRET is empty.
// An empty HS256 key lets anyone sign tokens.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}
	if c.Admin.Email != "" && c.Admin.Password == "" {
		return fmt.Errorf("ADMIN_PASSWORD must be set with ADMIN_EMAIL")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil && i > 0 {
			return i
		}
		log.Printf("Warning: invalid %s=%q, using %d", key, value, fallback)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
		log.Printf("Warning: invalid %s=%q, using %s", key, value, fallback)
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

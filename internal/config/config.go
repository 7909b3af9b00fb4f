package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
	Email     EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
}

// SecurityConfig carries the master key and the knobs for lockout, token
// lifetimes, and secret encryption. The master key has no safe runtime
// default; Load fails when it is absent.
type SecurityConfig struct {
	MasterKey          string
	PBKDF2Iterations   int
	LockoutThreshold   int
	LockoutDuration    time.Duration
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	ResetTokenExpiry   time.Duration
	CleanupInterval    time.Duration
	AuditRetentionDays int
}

// RateLimitRule is one per-endpoint threshold: Max requests per Window.
type RateLimitRule struct {
	Max    int
	Window time.Duration
}

// RateLimitConfig holds per-endpoint sliding-window thresholds.
type RateLimitConfig struct {
	Rules map[string]RateLimitRule
}

// Rule returns the configured rule for an endpoint, falling back to the
// default rule when none is set.
func (c *RateLimitConfig) Rule(endpoint string) RateLimitRule {
	if rule, ok := c.Rules[endpoint]; ok {
		return rule
	}
	return c.Rules["default"]
}

type EmailConfig struct {
	AWSRegion    string
	FromAddress  string
	ResetURLBase string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	masterKey := getEnv("MASTER_KEY", "")
	if masterKey == "" {
		return nil, fmt.Errorf("MASTER_KEY is required")
	}

	env := getEnv("ENV", "development")

	if err := validateMasterKey(masterKey, env); err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "palisade"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseList(getEnv("ALLOWED_ORIGINS", "")),
			TrustedProxies: parseList(getEnv("TRUSTED_PROXIES", "")),
		},
		Security: SecurityConfig{
			MasterKey:          masterKey,
			PBKDF2Iterations:   getEnvAsInt("PBKDF2_ITERATIONS", 600_000),
			LockoutThreshold:   getEnvAsInt("LOCKOUT_THRESHOLD", 5),
			LockoutDuration:    getEnvAsDuration("LOCKOUT_DURATION", 30*time.Minute),
			AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 24*time.Hour),
			RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
			ResetTokenExpiry:   getEnvAsDuration("RESET_TOKEN_EXPIRY", 15*time.Minute),
			CleanupInterval:    getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
			AuditRetentionDays: getEnvAsInt("AUDIT_RETENTION_DAYS", 365),
		},
		RateLimit: RateLimitConfig{
			Rules: map[string]RateLimitRule{
				"default": {
					Max:    getEnvAsInt("RATE_LIMIT_DEFAULT_MAX", 60),
					Window: getEnvAsDuration("RATE_LIMIT_DEFAULT_WINDOW", 1*time.Minute),
				},
				"login": {
					Max:    getEnvAsInt("RATE_LIMIT_LOGIN_MAX", 10),
					Window: getEnvAsDuration("RATE_LIMIT_LOGIN_WINDOW", 15*time.Minute),
				},
				"register": {
					Max:    getEnvAsInt("RATE_LIMIT_REGISTER_MAX", 5),
					Window: getEnvAsDuration("RATE_LIMIT_REGISTER_WINDOW", 1*time.Hour),
				},
				"password_reset": {
					Max:    getEnvAsInt("RATE_LIMIT_RESET_MAX", 3),
					Window: getEnvAsDuration("RATE_LIMIT_RESET_WINDOW", 1*time.Hour),
				},
			},
		},
		Email: EmailConfig{
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "no-reply@localhost"),
			ResetURLBase: getEnv("RESET_URL_BASE", "http://localhost:8080"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	// A session's refresh token must always outlive its access token.
	if cfg.Security.RefreshTokenExpiry <= cfg.Security.AccessTokenExpiry {
		return nil, fmt.Errorf("REFRESH_TOKEN_EXPIRY (%s) must be longer than ACCESS_TOKEN_EXPIRY (%s)",
			cfg.Security.RefreshTokenExpiry, cfg.Security.AccessTokenExpiry)
	}

	if cfg.Security.LockoutThreshold < 1 {
		return nil, fmt.Errorf("LOCKOUT_THRESHOLD must be at least 1")
	}

	return cfg, nil
}

// validateMasterKey enforces minimum strength for the encryption master key.
// The key is never synthesized at runtime: generating a throwaway key would
// silently make every previously encrypted secret unrecoverable on restart.
func validateMasterKey(key, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(key) < minLength {
		return fmt.Errorf("MASTER_KEY must be at least %d characters in %s environment (got %d)",
			minLength, env, len(key))
	}

	weakKeys := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	keyLower := strings.ToLower(key)
	for _, weak := range weakKeys {
		if keyLower == weak {
			return fmt.Errorf("MASTER_KEY cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseList(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SeedUser is a user provisioned at startup from the SEED_USERS env var.
type SeedUser struct {
	Username string
	Password string
}

type Config struct {
	AuthPort   string
	LedgerPort string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	StoreAdapter string
	SQLiteFile   string

	// PostgreSQL connection settings
	PostgresDSN      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LedgerDifficulty int

	SeedUsers []SeedUser
	LogLevel  string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// BuildPostgresDSN constructs a PostgreSQL DSN from individual components or returns the provided DSN
func (c *Config) BuildPostgresDSN() (string, error) {
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}

	if c.PostgresHost == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}

	port := c.PostgresPort
	if port == "" {
		port = "5432"
	}

	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, port, c.PostgresUser, c.PostgresDB, sslMode)

	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}

	return dsn, nil
}

// parseSeedUsers parses "alice:password123,bob:hunter22" into SeedUser pairs.
func parseSeedUsers(raw string) ([]SeedUser, error) {
	if raw == "" {
		return nil, nil
	}
	var users []SeedUser
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, pass, ok := strings.Cut(pair, ":")
		if !ok || name == "" || pass == "" {
			return nil, fmt.Errorf("invalid SEED_USERS entry %q (want username:password)", pair)
		}
		users = append(users, SeedUser{Username: name, Password: pass})
	}
	return users, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	v := getenv(key, def)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, v)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func New() (*Config, error) {
	c := &Config{
		AuthPort:   getenv("AUTH_PORT", "4000"),
		LedgerPort: getenv("LEDGER_PORT", "3001"),
		JWTSecret:  getenv("JWT_SECRET", "change-me"),

		StoreAdapter: getenv("STORE_ADAPTER", "memory"),
		SQLiteFile:   getenv("SQLITE_FILE", "./data/surakshanet.db"),

		PostgresDSN:      getenv("POSTGRES_DSN", ""),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getenv("POSTGRES_PORT", "5432"),
		PostgresUser:     getenv("POSTGRES_USER", "suraksha"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getenv("POSTGRES_DB", "surakshanet"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		LogLevel: getenv("LOG_LEVEL", "info"),
	}

	var err error
	if c.AccessTokenTTL, err = parseDuration("ACCESS_TOKEN_TTL", "5m"); err != nil {
		return nil, err
	}
	if c.RefreshTokenTTL, err = parseDuration("REFRESH_TOKEN_TTL", "24h"); err != nil {
		return nil, err
	}

	if v := getenv("REDIS_DB", "0"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %s", v)
		}
		c.RedisDB = n
	}

	diff := getenv("LEDGER_DIFFICULTY", "2")
	n, err := strconv.Atoi(diff)
	if err != nil || n < 1 || n > 8 {
		return nil, fmt.Errorf("invalid LEDGER_DIFFICULTY: %s (want 1-8)", diff)
	}
	c.LedgerDifficulty = n

	if c.SeedUsers, err = parseSeedUsers(getenv("SEED_USERS", "alice:password123")); err != nil {
		return nil, err
	}

	switch c.StoreAdapter {
	case "memory", "sqlite", "postgres", "redis":
	default:
		return nil, fmt.Errorf("unsupported STORE_ADAPTER: %s (supported: memory, sqlite, postgres, redis)", c.StoreAdapter)
	}

	if c.StoreAdapter == "postgres" {
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return nil, fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	}
	if c.StoreAdapter == "sqlite" && c.SQLiteFile == "" {
		return nil, errors.New("SQLITE_FILE must be set when STORE_ADAPTER=sqlite")
	}

	env := strings.ToLower(getenv("ENV", ""))
	if env == "production" || env == "prod" {
		if c.JWTSecret == "" || c.JWTSecret == "change-me" {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
	}

	for _, p := range []string{c.AuthPort, c.LedgerPort} {
		if _, err := strconv.Atoi(p); err != nil {
			return nil, fmt.Errorf("invalid port: %s", p)
		}
	}

	return c, nil
}

// Package config loads server settings from the environment.
//
// Values are resolved in three layers: built-in development defaults, then
// an optional .env file (variables already set in the process win), then
// the process environment itself. Anything malformed fails Load instead of
// being silently replaced by a default.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sakif/blog-platform/internal/media"
	"github.com/sakif/blog-platform/internal/repository/sqldb"
)

// Config holds runtime settings for the blog server.
type Config struct {
	Port int

	// DBDriver is "sqlite" or "postgres" once loaded; the aliases sqlite3,
	// postgresql and pgx are normalised. SQLite uses DBPath, Postgres uses
	// DatabaseURL.
	DBDriver    string
	DBPath      string
	DatabaseURL string

	JWTSecret string
	// JWTSecretGenerated is true when JWT_SECRET was unset and a random
	// secret was made up; sessions then do not survive a restart.
	JWTSecretGenerated bool
	TokenTTL           time.Duration
	// CookieSecure marks auth cookies Secure (HTTPS only).
	CookieSecure bool

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
	// LoginRedirectURL is where the browser lands after GitHub login.
	LoginRedirectURL string

	LogLevel  slog.Level
	LogFormat string // "text" or "json"

	RevalidateURL    string
	RevalidateSecret string

	// S3 is only used when S3.Bucket is set.
	S3 media.Config
}

// LoadDefaults populates c with development defaults.
func (c *Config) LoadDefaults() {
	c.Port = 8080
	c.DBDriver = "sqlite"
	c.DBPath = "data/blog.db"
	c.TokenTTL = 24 * time.Hour
	c.LoginRedirectURL = "/"
	c.LogLevel = slog.LevelInfo
	c.LogFormat = "text"
	c.S3.Region = "us-east-1"
	c.S3.Expires = 15 * time.Minute
}

// GitHubEnabled reports whether OAuth credentials are configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// MediaEnabled reports whether presigned uploads can be offered.
func (c *Config) MediaEnabled() bool {
	return c.S3.Bucket != ""
}

// DSN is the data source for the selected driver.
func (c *Config) DSN() string {
	if c.DBDriver == string(sqldb.Postgres) {
		return c.DatabaseURL
	}
	return c.DBPath
}

// Load reads envFile (skipped when empty or missing) and the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %s: %w", envFile, err)
		}
	}

	c := &Config{}
	c.LoadDefaults()
	if err := c.fromEnv(); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) fromEnv() error {
	var err error

	if c.Port, err = envInt("PORT", c.Port); err != nil {
		return err
	}
	c.DBDriver = strings.ToLower(envString("DB_DRIVER", c.DBDriver))
	c.DBPath = envString("DB_PATH", c.DBPath)
	c.DatabaseURL = envString("DATABASE_URL", c.DatabaseURL)

	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.TokenTTL, err = envDuration("TOKEN_TTL", c.TokenTTL); err != nil {
		return err
	}
	if c.CookieSecure, err = envBool("COOKIE_SECURE", c.CookieSecure); err != nil {
		return err
	}

	c.GitHubClientID = os.Getenv("GITHUB_CLIENT_ID")
	c.GitHubClientSecret = os.Getenv("GITHUB_CLIENT_SECRET")
	c.GitHubCallbackURL = envString("GITHUB_CALLBACK_URL",
		fmt.Sprintf("http://localhost:%d/auth/github/callback", c.Port))
	c.LoginRedirectURL = envString("LOGIN_REDIRECT_URL", c.LoginRedirectURL)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("config: LOG_LEVEL: %w", err)
		}
	}
	c.LogFormat = strings.ToLower(envString("LOG_FORMAT", c.LogFormat))

	c.RevalidateURL = os.Getenv("REVALIDATE_URL")
	c.RevalidateSecret = os.Getenv("REVALIDATE_SECRET")

	c.S3.Bucket = os.Getenv("S3_BUCKET")
	c.S3.Region = envString("S3_REGION", c.S3.Region)
	c.S3.Endpoint = os.Getenv("S3_ENDPOINT")
	c.S3.AccessKey = os.Getenv("S3_ACCESS_KEY")
	c.S3.SecretKey = os.Getenv("S3_SECRET_KEY")
	c.S3.PublicBaseURL = os.Getenv("S3_PUBLIC_URL")
	if c.S3.UsePathStyle, err = envBool("S3_PATH_STYLE", c.S3.UsePathStyle); err != nil {
		return err
	}
	if c.S3.Expires, err = envDuration("S3_PRESIGN_TTL", c.S3.Expires); err != nil {
		return err
	}
	return nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	dialect, err := sqldb.ParseDialect(c.DBDriver)
	if err != nil {
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.DBDriver)
	}
	c.DBDriver = string(dialect)
	switch dialect {
	case sqldb.SQLite:
		if c.DBPath == "" {
			return errors.New("config: DB_PATH must not be empty")
		}
	case sqldb.Postgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required when DB_DRIVER=postgres")
		}
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config: LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.TokenTTL <= 0 {
		return errors.New("config: TOKEN_TTL must be positive")
	}

	if c.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return err
		}
		c.JWTSecret = secret
		c.JWTSecretGenerated = true
	} else if len(c.JWTSecret) < 16 {
		return errors.New("config: JWT_SECRET must be at least 16 characters")
	}
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("config: generating JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

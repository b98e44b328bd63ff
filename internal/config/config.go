package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const devJWTSecret = "default_super_secret_key"

// Config holds runtime configuration for the console API.
type Config struct {
	AppEnv  string `envconfig:"APP_ENV" default:"development"`
	Port    string `envconfig:"PORT" default:"8080"`
	GinMode string `envconfig:"GIN_MODE" default:"debug"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	DBDriver   string `envconfig:"DB_DRIVER" default:"postgres"`
	DBDSN      string `envconfig:"DB_DSN"`
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName     string `envconfig:"DB_NAME" default:"postgres"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	JWTSecret            string        `envconfig:"JWT_SECRET"`
	SessionIssuer        string        `envconfig:"SESSION_ISSUER" default:"navconsole"`
	SessionTTL           time.Duration `envconfig:"SESSION_TTL" default:"720h"`
	SessionRefreshWindow time.Duration `envconfig:"SESSION_REFRESH_WINDOW" default:"24h"`
	SessionCookie        string        `envconfig:"SESSION_COOKIE" default:"access_token"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	CatalogFile      string `envconfig:"CATALOG_FILE"`
	AuthzDefaultDeny bool   `envconfig:"AUTHZ_DEFAULT_DENY" default:"false"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://127.0.0.1:5173"`

	AdminAccount  string `envconfig:"ADMIN_ACCOUNT" default:"admin"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
	AdminEmail    string `envconfig:"ADMIN_EMAIL" default:"admin@localhost"`
	SeedOnStart   bool   `envconfig:"SEED_ON_START" default:"false"`
}

// Load reads an optional .env file and then the process environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// A missing file is fine; the environment may already be populated.
		_ = godotenv.Load(envFile)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		if c.IsRelease() {
			return errors.New("config: JWT_SECRET is required in release mode")
		}
		c.JWTSecret = devJWTSecret
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	if c.SessionRefreshWindow < 0 || c.SessionRefreshWindow >= c.SessionTTL {
		return errors.New("config: SESSION_REFRESH_WINDOW must be within [0, SESSION_TTL)")
	}
	switch c.DBDriver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	return nil
}

// IsRelease reports whether the server runs in production mode.
func (c *Config) IsRelease() bool {
	return c.GinMode == "release" || c.AppEnv == "production"
}

// DSN returns DB_DSN when set, otherwise a postgres URL built from the DB_* parts.
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

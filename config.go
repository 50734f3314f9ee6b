package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	driverSQLite   = "sqlite"
	driverPgx      = "pgx"
	driverPostgres = "postgres"
)

type Config struct {
	Address           string         `yaml:"address"`
	SecretKey         string         `yaml:"secret_key"`
	InstancePath      string         `yaml:"instance_path"`
	UploadsFolder     string         `yaml:"uploads_folder"`
	AllowedExtensions []string       `yaml:"allowed_extensions"`
	MaxUploadBytes    int64          `yaml:"max_upload_bytes"`
	SessionTTL        time.Duration  `yaml:"session_ttl"`
	CookieSecure      bool           `yaml:"cookie_secure"`
	BcryptCost        int            `yaml:"bcrypt_cost"`
	LogLevel          string         `yaml:"log_level"`
	Database          DatabaseConfig `yaml:"database"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	// Path is the SQLite file, relative to the instance folder.
	Path string `yaml:"path"`
	// DSN is used as-is for the Postgres drivers.
	DSN string `yaml:"dsn"`
}

func defaultConfig() *Config {
	return &Config{
		Address:           ":8080",
		InstancePath:      "instance",
		UploadsFolder:     "uploads",
		AllowedExtensions: []string{"png", "jpg", "jpeg", "gif", "pdf", "doc", "docx"},
		MaxUploadBytes:    16 << 20,
		SessionTTL:        30 * 24 * time.Hour,
		BcryptCost:        12,
		LogLevel:          "info",
		Database: DatabaseConfig{
			Driver: driverSQLite,
			Path:   "sqlite3.db",
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file and
// the environment, in that order. A .env file in the working directory is
// loaded first if present.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SERVER_ADDRESS"); v != "" {
		c.Address = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		c.SecretKey = v
	}
	if v := os.Getenv("INSTANCE_PATH"); v != "" {
		c.InstancePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("POSTGRES_CONN"); v != "" {
		c.Database.Driver = driverPgx
		c.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SESSION_TTL: %w", err)
		}
		c.SessionTTL = d
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COOKIE_SECURE: %w", err)
		}
		c.CookieSecure = b
	}
	return nil
}

func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("no SECRET_KEY set for the application")
	}
	if c.Address == "" {
		return errors.New("missed SERVER_ADDRESS")
	}
	switch c.Database.Driver {
	case driverSQLite:
		if c.Database.Path == "" || strings.Contains(c.Database.Path, ":memory:") {
			return errors.New("cannot use an in-memory database")
		}
	case driverPgx, driverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("driver %q needs a DSN", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	return nil
}

func (c *Config) UploadsPath() string {
	return filepath.Join(c.InstancePath, c.UploadsFolder)
}

func (c *Config) DatabasePath() string {
	return filepath.Join(c.InstancePath, c.Database.Path)
}

// DataSourceName returns the connection string for the configured driver.
func (c *Config) DataSourceName() string {
	if c.Database.Driver != driverSQLite {
		return c.Database.DSN
	}
	return "file:" + c.DatabasePath() +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// EnsureDirs creates the instance and upload folders if they do not exist yet.
func (c *Config) EnsureDirs() error {
	if err := os.MkdirAll(c.UploadsPath(), 0o755); err != nil {
		return fmt.Errorf("create uploads folder: %w", err)
	}
	return nil
}

func (c *Config) allowedFile(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range c.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

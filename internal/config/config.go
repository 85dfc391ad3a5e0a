// Package config loads service settings from defaults, an optional YAML file
// and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidPort          = errors.New("port must be a number between 1 and 65535")
	ErrInvalidDialect       = errors.New("db.dialect must be one of: postgres, pgx, sqlite")
	ErrMissingDBName        = errors.New("db.name or db.dsn is required")
	ErrInvalidConnAttempts  = errors.New("db.connect_attempts must be at least 1")
	ErrInvalidUploadBackend = errors.New("upload_backend must be 'local' or 's3'")
	ErrMissingUploadDir     = errors.New("upload_dir is required for the local backend")
	ErrMissingS3Bucket      = errors.New("s3.bucket is required for the s3 backend")
	ErrMissingStaticDir     = errors.New("static_dir is required when serve_static is set")
	ErrInvalidCacheTTL      = errors.New("cache_ttl must be non-negative")
	ErrInvalidLogLevel      = errors.New("log_level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat     = errors.New("log_format must be 'text' or 'json'")
)

type Config struct {
	Port          string        `yaml:"port"`
	DB            DBConfig      `yaml:"db"`
	RedisAddr     string        `yaml:"redis_addr"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	APIKey        string        `yaml:"api_key"`
	ServeStatic   bool          `yaml:"serve_static"`
	StaticDir     string        `yaml:"static_dir"`
	UploadDir     string        `yaml:"upload_dir"`
	UploadBackend string        `yaml:"upload_backend"`
	S3            S3Config      `yaml:"s3"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`
}

type DBConfig struct {
	Dialect         string        `yaml:"dialect"`
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Pass            string        `yaml:"pass"`
	DSN             string        `yaml:"dsn"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectDelay    time.Duration `yaml:"connect_delay"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
}

// Default returns the settings used when nothing else is provided.
func Default() *Config {
	return &Config{
		Port: "8080",
		DB: DBConfig{
			Dialect:         "postgres",
			Host:            "localhost",
			Port:            "5432",
			Name:            "carb_db",
			User:            "carb_user",
			ConnectAttempts: 10,
			ConnectDelay:    2 * time.Second,
		},
		RedisAddr:     "localhost:6379",
		CacheTTL:      60 * time.Second,
		StaticDir:     "../frontend",
		UploadDir:     "uploads",
		UploadBackend: "local",
		S3: S3Config{
			Region: "us-east-1",
			Prefix: "uploads/",
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load applies defaults, then the YAML file at path (skipped when path is
// empty), then environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("DB_DIALECT", &c.DB.Dialect)
	str("DB_HOST", &c.DB.Host)
	str("DB_PORT", &c.DB.Port)
	str("DB_NAME", &c.DB.Name)
	str("DB_USER", &c.DB.User)
	str("DB_PASS", &c.DB.Pass)
	str("DB_DSN", &c.DB.DSN)
	str("REDIS_ADDR", &c.RedisAddr)
	str("API_KEY", &c.APIKey)
	str("STATIC_DIR", &c.StaticDir)
	str("UPLOAD_DIR", &c.UploadDir)
	str("UPLOAD_BACKEND", &c.UploadBackend)
	str("S3_BUCKET", &c.S3.Bucket)
	str("S3_REGION", &c.S3.Region)
	str("S3_ENDPOINT", &c.S3.Endpoint)
	str("S3_ACCESS_KEY", &c.S3.AccessKey)
	str("S3_SECRET_KEY", &c.S3.SecretKey)
	str("S3_PREFIX", &c.S3.Prefix)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	// only the literal "true" enables standalone mode
	if v, ok := lookup("SERVE_STATIC"); ok && v != "" {
		c.ServeStatic = v == "true"
	}

	if v, ok := lookup("CACHE_TTL"); ok && v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("CACHE_TTL: %w", err)
		}
		c.CacheTTL = d
	}
	return nil
}

// parseDuration accepts Go durations ("90s") and bare seconds ("90").
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func (c *Config) Validate() error {
	if p, err := strconv.Atoi(c.Port); err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("%w: %q", ErrInvalidPort, c.Port)
	}

	switch c.DB.Dialect {
	case "postgres", "pgx", "sqlite":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDialect, c.DB.Dialect)
	}
	if c.DB.DSN == "" && c.DB.Name == "" {
		return ErrMissingDBName
	}
	if c.DB.ConnectAttempts < 1 {
		return ErrInvalidConnAttempts
	}

	switch c.UploadBackend {
	case "local":
		if c.UploadDir == "" {
			return ErrMissingUploadDir
		}
	case "s3":
		if c.S3.Bucket == "" {
			return ErrMissingS3Bucket
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidUploadBackend, c.UploadBackend)
	}

	if c.ServeStatic && c.StaticDir == "" {
		return ErrMissingStaticDir
	}
	if c.CacheTTL < 0 {
		return ErrInvalidCacheTTL
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.LogFormat)
	}
	return nil
}

// DataSource returns the driver DSN. An explicit DSN always wins; sqlite
// otherwise uses DB name as the file path.
func (c *Config) DataSource() string {
	if c.DB.DSN != "" {
		return c.DB.DSN
	}
	if c.DB.Dialect == "sqlite" {
		return c.DB.Name
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Pass),
		Host:     c.DB.Host + ":" + c.DB.Port,
		Path:     "/" + c.DB.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Mode is what /status reports.
func (c *Config) Mode() string {
	if c.ServeStatic {
		return "standalone"
	}
	return "api-only"
}

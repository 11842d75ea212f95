package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Mode is the process-wide operating mode. It decides how much detail the
// error handler exposes.
type Mode string

const (
	Development Mode = "development"
	Production  Mode = "production"
)

func (m Mode) IsProduction() bool { return m == Production }

// Config holds everything read at startup.
type Config struct {
	Env  Mode `koanf:"node_env" validate:"required,oneof=development production"`
	Port int  `koanf:"port" validate:"gte=1,lte=65535"`

	Database         string `koanf:"database" validate:"required"`
	DatabasePassword string `koanf:"database_password"`
	DatabaseName     string `koanf:"database_name" validate:"required"`

	JWTSecret          string        `koanf:"jwt_secret" validate:"required"`
	JWTExpiresIn       time.Duration `koanf:"jwt_expires_in" validate:"gt=0"`
	JWTCookieExpiresIn int           `koanf:"jwt_cookie_expires_in" validate:"gte=1"`
	BcryptCost         int           `koanf:"bcrypt_cost" validate:"gte=4,lte=31"`

	MinioEndpoint  string `koanf:"minio_endpoint"`
	MinioAccessKey string `koanf:"minio_access_key"`
	MinioSecretKey string `koanf:"minio_secret_key"`
	MinioBucket    string `koanf:"minio_bucket"`
	MinioUseSSL    bool   `koanf:"minio_use_ssl"`

	LogLevel  string `koanf:"log_level" validate:"oneof=trace debug info warn error"`
	LogFormat string `koanf:"log_format" validate:"oneof=json console"`

	RateLimitMax    int           `koanf:"rate_limit_max" validate:"gte=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	BodyLimit       int           `koanf:"body_limit" validate:"gte=1"`
	UploadLimit     int           `koanf:"upload_limit" validate:"gte=1"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

const configPathEnvVar = "CONFIG_PATH"

var validate = validator.New(validator.WithRequiredStructEnabled())

func defaultConfig() Config {
	return Config{
		Env:                Development,
		Port:               3000,
		Database:           "mongodb://localhost:27017",
		DatabaseName:       "natours",
		JWTExpiresIn:       90 * 24 * time.Hour,
		JWTCookieExpiresIn: 90,
		BcryptCost:         12,
		MinioEndpoint:      "localhost:9000",
		MinioAccessKey:     "minioadmin",
		MinioSecretKey:     "minioadmin",
		MinioBucket:        "natours-img",
		LogLevel:           "info",
		LogFormat:          "console",
		RateLimitMax:       100,
		RateLimitWindow:    time.Hour,
		BodyLimit:          10 * 1024,
		UploadLimit:        10 * 1024 * 1024,
		ShutdownTimeout:    15 * time.Second,
	}
}

// Load reads .env, an optional YAML file and the environment, in that order
// of increasing priority.
func Load() (*Config, error) {
	_ = godotenv.Load("config.env")
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks struct tags plus the rules that depend on the mode.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Env.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("invalid configuration: JWT_SECRET must be at least 32 characters in production")
	}
	return nil
}

// DatabaseURI returns the connection string with the <PASSWORD> placeholder filled in.
func (c *Config) DatabaseURI() string {
	return strings.Replace(c.Database, "<PASSWORD>", c.DatabasePassword, 1)
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func findConfigFile() string {
	if p := os.Getenv(configPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range []string{"config.yaml", "config.yml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

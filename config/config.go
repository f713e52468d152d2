// Package config loads server settings from an optional .env file, an
// optional YAML file and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendBadger = "badger"
	BackendDynamo = "dynamodb"
)

type Config struct {
	Port         string   `yaml:"port" validate:"required,numeric"`
	StoreBackend string   `yaml:"storeBackend" validate:"oneof=badger dynamodb"`
	BadgerPath   string   `yaml:"badgerPath"`
	AWSRegion    string   `yaml:"awsRegion" validate:"required_if=StoreBackend dynamodb"`
	TablePrefix  string   `yaml:"dynamoTablePrefix"`
	S3Bucket     string   `yaml:"s3BucketName"`
	JWTSecret    string   `yaml:"jwtSecret" validate:"required,min=8"`
	CORSOrigins  []string `yaml:"corsOrigins" validate:"min=1"`
	LogLevel     string   `yaml:"logLevel" validate:"oneof=debug info warn error"`
	LogFormat    string   `yaml:"logFormat" validate:"oneof=text json"`
	PushBuffer   int      `yaml:"pushBuffer" validate:"min=1,max=1024"`
}

// Default returns the built-in settings. JWTSecret has no default.
func Default() Config {
	return Config{
		Port:         "8080",
		StoreBackend: BackendBadger,
		CORSOrigins:  []string{"*"},
		LogLevel:     "info",
		LogFormat:    "text",
		PushBuffer:   16,
	}
}

// Load reads .env from the working directory if present, then yamlPath if
// non-empty, then environment variables, and validates the result.
func Load(yamlPath string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", yamlPath, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &cfg.Port)
	str("STORE_BACKEND", &cfg.StoreBackend)
	str("BADGER_PATH", &cfg.BadgerPath)
	str("AWS_REGION", &cfg.AWSRegion)
	str("DYNAMO_TABLE_PREFIX", &cfg.TablePrefix)
	str("S3_BUCKET_NAME", &cfg.S3Bucket)
	str("JWT_SECRET", &cfg.JWTSecret)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)

	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORSOrigins = origins
	}
	if v, ok := lookup("PUSH_BUFFER"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PUSH_BUFFER: %w", err)
		}
		cfg.PushBuffer = n
	}
	return nil
}

var validate = validator.New()

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// NewLogger builds the root logger.
func (c Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

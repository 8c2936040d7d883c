package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const EnvDevelopment = "development"

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"production"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// ConnectionString is the "Default" relational store connection string.
	ConnectionString string `env:"DB_CONNECTION_STRING" envDefault:"host=localhost user=postgres password=postgres dbname=patrimonio sslmode=disable"`

	StaticRoot   string `env:"STATIC_ROOT" envDefault:"wwwroot"`
	ImagesDir    string `env:"IMAGES_DIR" envDefault:"StaticFiles/Images"`
	MaxImageSize int64  `env:"MAX_IMAGE_SIZE" envDefault:"5242880"`

	RedisAddr string        `env:"REDIS_ADDR"`
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"10m"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"30m"`
	AdminEmail    string        `env:"ADMIN_EMAIL"`
	AdminPassword string        `env:"ADMIN_PASSWORD"`

	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using environment only", "error", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.MaxImageSize <= 0 {
		return nil, fmt.Errorf("MAX_IMAGE_SIZE must be positive, got %d", cfg.MaxImageSize)
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive, got %s", cfg.TokenTTL)
	}

	slog.Info("config loaded",
		"app_env", cfg.AppEnv,
		"http_addr", cfg.HTTPAddr,
		"static_root", cfg.StaticRoot,
		"images_dir", cfg.ImagesDir,
		"redis_enabled", cfg.RedisAddr != "",
		"tracing_enabled", cfg.OTLPEndpoint != "")
	return cfg, nil
}

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"agentbench/internal/common/cache"
	"agentbench/internal/common/db"
	"agentbench/internal/common/storage"
	"agentbench/pkg/utils/logger"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// AuthConfig holds token settings.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwtSecret"`
	TokenTTL  time.Duration `yaml:"tokenTTL"`
}

// EvalConfig holds evaluation pipeline settings.
type EvalConfig struct {
	Deadline     time.Duration `yaml:"deadline"`
	StoreTimeout time.Duration `yaml:"storeTimeout"`
	SuccessRate  float64       `yaml:"successRate"`
	Seed         int64         `yaml:"seed"`
}

// ArtifactConfig holds agent archive upload settings.
type ArtifactConfig struct {
	Bucket     string        `yaml:"bucket"`
	MaxBytes   int64         `yaml:"maxBytes"`
	PresignTTL time.Duration `yaml:"presignTTL"`
}

// AppConfig holds the full server configuration.
type AppConfig struct {
	Server   ServerConfig        `yaml:"server"`
	Logger   logger.Config       `yaml:"logger"`
	Database db.MySQLConfig      `yaml:"database"`
	Redis    cache.RedisConfig   `yaml:"redis"`
	MinIO    storage.MinIOConfig `yaml:"minio"`
	Auth     AuthConfig          `yaml:"auth"`
	Eval     EvalConfig          `yaml:"eval"`
	Artifact ArtifactConfig      `yaml:"artifact"`
}

func loadAppConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file failed: %w", err)
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth jwtSecret is required")
	}
	if cfg.Artifact.Bucket == "" {
		cfg.Artifact.Bucket = cfg.MinIO.Bucket
	}
	return &cfg, nil
}

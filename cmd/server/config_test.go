package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppConfigBindsAllSections(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `
server:
  addr: "127.0.0.1:9090"
  readTimeout: 7s
logger:
  level: "debug"
  format: "console"
  outputPath: "/tmp/agentbench.log"
database:
  dsn: "user:pass@tcp(db:3306)/agentbench?parseTime=true"
  maxOpenConns: 40
  maxIdleConns: 8
  connMaxLifetime: 7m
  connMaxIdleTime: 12m
redis:
  addr: "redis:6379"
  db: 2
  poolSize: 30
auth:
  jwtSecret: "test-secret"
  tokenTTL: 12h
eval:
  deadline: 4s
  successRate: 0.8
`)

	cfg, err := loadAppConfig(path)
	if err != nil {
		t.Fatalf("loadAppConfig: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:9090" {
		t.Errorf("server addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout != 7*time.Second {
		t.Errorf("readTimeout = %v", cfg.Server.ReadTimeout)
	}
	// Unset timeouts fall back to defaults.
	if cfg.Server.WriteTimeout != defaultWriteTimeout {
		t.Errorf("writeTimeout = %v, want default %v", cfg.Server.WriteTimeout, defaultWriteTimeout)
	}

	if cfg.Logger.Level != "debug" || cfg.Logger.Format != "console" {
		t.Errorf("logger = %+v", cfg.Logger)
	}
	if cfg.Logger.OutputPath != "/tmp/agentbench.log" {
		t.Errorf("outputPath = %q", cfg.Logger.OutputPath)
	}

	if cfg.Database.MaxOpenConnections != 40 {
		t.Errorf("maxOpenConns = %d", cfg.Database.MaxOpenConnections)
	}
	if cfg.Database.MaxIdleConnections != 8 {
		t.Errorf("maxIdleConns = %d", cfg.Database.MaxIdleConnections)
	}
	if cfg.Database.ConnMaxLifetime != 7*time.Minute {
		t.Errorf("connMaxLifetime = %v", cfg.Database.ConnMaxLifetime)
	}
	if cfg.Database.ConnMaxIdleTime != 12*time.Minute {
		t.Errorf("connMaxIdleTime = %v", cfg.Database.ConnMaxIdleTime)
	}

	if cfg.Redis.Addr != "redis:6379" || cfg.Redis.DB != 2 || cfg.Redis.PoolSize != 30 {
		t.Errorf("redis = %+v", cfg.Redis)
	}

	if cfg.Auth.TokenTTL != 12*time.Hour {
		t.Errorf("tokenTTL = %v", cfg.Auth.TokenTTL)
	}
	if cfg.Eval.Deadline != 4*time.Second || cfg.Eval.SuccessRate != 0.8 {
		t.Errorf("eval = %+v", cfg.Eval)
	}
}

func TestLoadAppConfigRequiredFields(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `
auth:
  jwtSecret: "test-secret"
`)
	if _, err := loadAppConfig(path); err == nil {
		t.Fatal("expected error for missing database dsn")
	}

	path = writeConfigFile(t, `
database:
  dsn: "user:pass@tcp(db:3306)/agentbench"
`)
	if _, err := loadAppConfig(path); err == nil {
		t.Fatal("expected error for missing jwtSecret")
	}
}

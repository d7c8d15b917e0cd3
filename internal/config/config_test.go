package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 0\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Pipeline.SamplingFPS != 10 {
		t.Errorf("SamplingFPS = %d, want 10", cfg.Pipeline.SamplingFPS)
	}
	if cfg.Pipeline.WorkerCount != 4 {
		t.Errorf("WorkerCount = %d, want 4", cfg.Pipeline.WorkerCount)
	}
	if cfg.Pipeline.DetectionThreshold != 0.25 {
		t.Errorf("DetectionThreshold = %v, want 0.25", cfg.Pipeline.DetectionThreshold)
	}
	if cfg.Pipeline.ExtractTimeout != 5*time.Minute {
		t.Errorf("ExtractTimeout = %v, want 5m", cfg.Pipeline.ExtractTimeout)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %s", cfg.Redis.Addr)
	}
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("NATS.URL = %s", cfg.NATS.URL)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  api_key: secret
database:
  host: db.internal
  port: 5433
  name: vod
  user: vod
  password: pw
pipeline:
  sampling_fps: 5
  worker_count: 8
  detection_threshold: 0.5
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.APIKey != "secret" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Pipeline.SamplingFPS != 5 || cfg.Pipeline.WorkerCount != 8 {
		t.Errorf("Pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.DetectionThreshold != 0.5 {
		t.Errorf("DetectionThreshold = %v", cfg.Pipeline.DetectionThreshold)
	}

	want := "postgres://vod:pw@db.internal:5433/vod?sslmode=disable"
	if dsn := cfg.Database.DSN(); dsn != want {
		t.Errorf("DSN = %s, want %s", dsn, want)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	t.Setenv("VOD_SERVER_PORT", "7070")
	t.Setenv("VOD_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("VOD_SAMPLING_FPS", "2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Errorf("Redis.Addr = %s", cfg.Redis.Addr)
	}
	if cfg.Pipeline.SamplingFPS != 2 {
		t.Errorf("SamplingFPS = %d, want 2", cfg.Pipeline.SamplingFPS)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

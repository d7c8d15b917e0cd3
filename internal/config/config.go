package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type PipelineConfig struct {
	// SamplingFPS is the frame extraction rate and the composed video's
	// frame rate, so playback time maps to frameNumber/SamplingFPS seconds.
	SamplingFPS        int           `yaml:"sampling_fps"`
	WorkerCount        int           `yaml:"worker_count"`
	DetectionThreshold float64       `yaml:"detection_threshold"`
	ModelsDir          string        `yaml:"models_dir"`
	DefaultModel       string        `yaml:"default_model"`
	TempDir            string        `yaml:"temp_dir"`
	ExtractTimeout     time.Duration `yaml:"extract_timeout"`
	InferTimeout       time.Duration `yaml:"infer_timeout"` // per frame
	ComposeTimeout     time.Duration `yaml:"compose_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Pipeline.SamplingFPS == 0 {
		cfg.Pipeline.SamplingFPS = 10
	}
	if cfg.Pipeline.WorkerCount == 0 {
		cfg.Pipeline.WorkerCount = 4
	}
	if cfg.Pipeline.DetectionThreshold == 0 {
		cfg.Pipeline.DetectionThreshold = 0.25
	}
	if cfg.Pipeline.ModelsDir == "" {
		cfg.Pipeline.ModelsDir = "models"
	}
	if cfg.Pipeline.DefaultModel == "" {
		cfg.Pipeline.DefaultModel = "yolo11n.onnx"
	}
	if cfg.Pipeline.TempDir == "" {
		cfg.Pipeline.TempDir = os.TempDir()
	}
	if cfg.Pipeline.ExtractTimeout == 0 {
		cfg.Pipeline.ExtractTimeout = 5 * time.Minute
	}
	if cfg.Pipeline.InferTimeout == 0 {
		cfg.Pipeline.InferTimeout = 30 * time.Second
	}
	if cfg.Pipeline.ComposeTimeout == 0 {
		cfg.Pipeline.ComposeTimeout = 5 * time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOD_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VOD_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("VOD_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("VOD_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("VOD_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("VOD_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("VOD_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("VOD_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("VOD_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("VOD_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("VOD_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("VOD_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("VOD_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("VOD_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("VOD_MODELS_DIR"); v != "" {
		cfg.Pipeline.ModelsDir = v
	}
	if v := os.Getenv("VOD_TEMP_DIR"); v != "" {
		cfg.Pipeline.TempDir = v
	}
	if v := os.Getenv("VOD_SAMPLING_FPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.SamplingFPS = n
		}
	}
	if v := os.Getenv("VOD_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.WorkerCount = n
		}
	}
}

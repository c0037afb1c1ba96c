package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Engine   EngineConfig   `yaml:"engine"`
	Store    StoreConfig    `yaml:"store"`
	Assets   AssetsConfig   `yaml:"assets"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// UploadDir holds per-request temporary copies of uploaded images.
	UploadDir   string `yaml:"upload_dir"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// Engine backends.
const (
	EngineDeepFace = "deepface"
	EngineONNX     = "onnx"
)

type EngineConfig struct {
	Backend         string        `yaml:"backend"`
	URL             string        `yaml:"url"`
	Timeout         time.Duration `yaml:"timeout"`
	ModelName       string        `yaml:"model_name"`
	DistanceMetric  string        `yaml:"distance_metric"`
	DetectorBackend string        `yaml:"detector_backend"`
	// DetectionThreshold is the minimum face confidence counted as a face.
	DetectionThreshold float64 `yaml:"detection_threshold"`
	// Threshold is the maximum distance accepted as a match (onnx backend only;
	// DeepFace reports its own threshold per model/metric).
	Threshold float64 `yaml:"threshold"`
	ModelsDir string  `yaml:"models_dir"`
	// ONNXLib overrides the ONNX Runtime shared library path (onnx backend).
	ONNXLib string `yaml:"onnx_lib"`
}

// Store and asset backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendFS       = "fs"
	BackendMinIO    = "minio"
)

type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type AssetsConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
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

// NATSConfig configures face event publishing. An empty URL disables it.
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

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
// A missing file is not an error: env overrides and defaults still apply.
// Variables from a .env file in the working directory are loaded first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Engine.Backend {
	case EngineDeepFace, EngineONNX:
	default:
		return fmt.Errorf("unknown engine backend %q", c.Engine.Backend)
	}
	switch c.Store.Backend {
	case BackendFile, BackendPostgres:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Assets.Backend {
	case BackendFS, BackendMinIO:
	default:
		return fmt.Errorf("unknown assets backend %q", c.Assets.Backend)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = "uploads"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 16
	}
	if cfg.Engine.Backend == "" {
		cfg.Engine.Backend = EngineDeepFace
	}
	if cfg.Engine.URL == "" {
		cfg.Engine.URL = "http://localhost:5005"
	}
	if cfg.Engine.Timeout == 0 {
		cfg.Engine.Timeout = 60 * time.Second
	}
	if cfg.Engine.ModelName == "" {
		cfg.Engine.ModelName = "VGG-Face"
	}
	if cfg.Engine.DistanceMetric == "" {
		cfg.Engine.DistanceMetric = "cosine"
	}
	if cfg.Engine.DetectorBackend == "" {
		cfg.Engine.DetectorBackend = "opencv"
	}
	if cfg.Engine.DetectionThreshold == 0 {
		cfg.Engine.DetectionThreshold = 0.5
	}
	if cfg.Engine.Threshold == 0 {
		cfg.Engine.Threshold = 0.68
	}
	if cfg.Engine.ModelsDir == "" {
		cfg.Engine.ModelsDir = "models"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendFile
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "face_db/face_embeddings.json"
	}
	if cfg.Assets.Backend == "" {
		cfg.Assets.Backend = BackendFS
	}
	if cfg.Assets.Dir == "" {
		cfg.Assets.Dir = "face_db"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "faceid"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FACEID_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FACEID_UPLOAD_DIR"); v != "" {
		cfg.Server.UploadDir = v
	}
	if v := os.Getenv("FACEID_ENGINE_BACKEND"); v != "" {
		cfg.Engine.Backend = v
	}
	if v := os.Getenv("FACEID_ENGINE_URL"); v != "" {
		cfg.Engine.URL = v
	}
	if v := os.Getenv("FACEID_ENGINE_MODEL"); v != "" {
		cfg.Engine.ModelName = v
	}
	if v := os.Getenv("FACEID_ENGINE_DISTANCE_METRIC"); v != "" {
		cfg.Engine.DistanceMetric = v
	}
	if v := os.Getenv("FACEID_ENGINE_DETECTOR"); v != "" {
		cfg.Engine.DetectorBackend = v
	}
	if v := os.Getenv("FACEID_MODELS_DIR"); v != "" {
		cfg.Engine.ModelsDir = v
	}
	if v := os.Getenv("FACEID_ONNX_LIB"); v != "" {
		cfg.Engine.ONNXLib = v
	}
	if v := os.Getenv("FACEID_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("FACEID_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("FACEID_ASSETS_BACKEND"); v != "" {
		cfg.Assets.Backend = v
	}
	if v := os.Getenv("FACEID_ASSETS_DIR"); v != "" {
		cfg.Assets.Dir = v
	}
	if v := os.Getenv("FACEID_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FACEID_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FACEID_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FACEID_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FACEID_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FACEID_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FACEID_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FACEID_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FACEID_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FACEID_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("FACEID_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

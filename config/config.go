package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. LITTERLY_SERVER_PORT.
const EnvPrefix = "LITTERLY"

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Model  ModelConfig  `mapstructure:"model"`
	Upload UploadConfig `mapstructure:"upload"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type ModelConfig struct {
	Path                string        `mapstructure:"path"`
	RuntimeLibrary      string        `mapstructure:"runtime_library"`
	LabelsPath          string        `mapstructure:"labels_path"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	IoUThreshold        float64       `mapstructure:"iou_threshold"`
	InputSize           int           `mapstructure:"input_size"`
	MaxDetections       int           `mapstructure:"max_detections"`
	PoolSize            int           `mapstructure:"pool_size"`
	AcquireTimeout      time.Duration `mapstructure:"acquire_timeout"`
	IntraOpThreads      int           `mapstructure:"intra_op_threads"`
}

type UploadConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 10000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
		"http://localhost:3001",
		"http://127.0.0.1:3001",
		"https://litterly.ai",
		"http://litterly.ai",
		"https://litterly.vercel.app",
		"https://litterly.netlify.app",
		"https://*.vercel.app",
		"https://*.netlify.app",
		"https://*.ondigitalocean.app",
		"https://*.digitaloceanspaces.com",
	})

	v.SetDefault("model.path", "models/yolov8m-seg.onnx")
	v.SetDefault("model.runtime_library", "lib/libonnxruntime.so")
	v.SetDefault("model.labels_path", "")
	v.SetDefault("model.confidence_threshold", 0.25)
	v.SetDefault("model.iou_threshold", 0.7)
	v.SetDefault("model.input_size", 640)
	v.SetDefault("model.max_detections", 300)
	v.SetDefault("model.pool_size", 2)
	v.SetDefault("model.acquire_timeout", 5*time.Second)
	v.SetDefault("model.intra_op_threads", 0)

	v.SetDefault("upload.dir", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads defaults, an optional config.yaml (from the working directory or
// $LITTERLY_CONFIG) and LITTERLY_* environment overrides, in that order.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}

	if c.Model.Path == "" {
		return fmt.Errorf("model.path cannot be empty")
	}

	if c.Model.ConfidenceThreshold <= 0 || c.Model.ConfidenceThreshold > 1 {
		return fmt.Errorf("model.confidence_threshold must be in (0, 1]")
	}

	if c.Model.IoUThreshold <= 0 || c.Model.IoUThreshold > 1 {
		return fmt.Errorf("model.iou_threshold must be in (0, 1]")
	}

	if c.Model.InputSize <= 0 || c.Model.InputSize%32 != 0 {
		return fmt.Errorf("model.input_size must be a positive multiple of 32")
	}

	if c.Model.MaxDetections <= 0 {
		return fmt.Errorf("model.max_detections must be positive")
	}

	if c.Model.PoolSize <= 0 {
		return fmt.Errorf("model.pool_size must be positive")
	}

	if c.Model.IntraOpThreads < 0 {
		return fmt.Errorf("model.intra_op_threads cannot be negative")
	}

	return nil
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Package config handles application configuration using Viper.
// Viper supports YAML files, environment variables, and defaults — merged in priority order.
// Both binaries (crop-cli and uploadd) share this one struct.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fleveque/crop-uploader/internal/model"
)

// Config is the root configuration struct. Nested structs organize related settings.
// `mapstructure` tags tell Viper how to map YAML/env keys to struct fields.
type Config struct {
	Server    ServerConfig         `mapstructure:"server"`
	Storage   StorageConfig        `mapstructure:"storage"`
	Auth      AuthConfig           `mapstructure:"auth"`
	CORS      CORSConfig           `mapstructure:"cors"`
	RateLimit RateLimitConfig      `mapstructure:"rate_limit"`
	Upload    UploadConfig         `mapstructure:"upload"`
	Raster    RasterConfig         `mapstructure:"raster"`
	Uploader  model.UploaderConfig `mapstructure:"uploader"`
	Log       LogConfig            `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path"`
	UploadDir    string `mapstructure:"upload_dir"`
}

type AuthConfig struct {
	APIKeys   []string `mapstructure:"api_keys"`
	AdminKeys []string `mapstructure:"admin_keys"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// Upload backends.
const (
	BackendLocal = "local"
	BackendHTTP  = "http"
)

// UploadConfig configures where cropped files go, and how large an
// upload uploadd accepts.
type UploadConfig struct {
	// Backend is "local" (SQLite + disk, same as uploadd stores) or
	// "http" (a running uploadd).
	Backend           string        `mapstructure:"backend"`
	Endpoint          string        `mapstructure:"endpoint"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	MaxBytes          int64         `mapstructure:"max_bytes"`
}

type RasterConfig struct {
	JPEGQuality         int `mapstructure:"jpeg_quality"`
	MaxSurfaceDimension int `mapstructure:"max_surface_dimension"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from a YAML file and environment variables.
// In Go, functions return errors as the last return value — callers must check them.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults — these apply when neither file nor env provides a value
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.database_path", "./storage/uploads.db")
	v.SetDefault("storage.upload_dir", "./storage/files")
	// Keys without a default are invisible to AutomaticEnv during Unmarshal,
	// so secrets get empty defaults to make CROP_AUTH_API_KEYS etc. work.
	v.SetDefault("auth.api_keys", []string{})
	v.SetDefault("auth.admin_keys", []string{})
	v.SetDefault("upload.api_key", "")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("upload.backend", BackendLocal)
	v.SetDefault("upload.endpoint", "http://localhost:8080")
	v.SetDefault("upload.timeout", 30*time.Second)
	v.SetDefault("upload.requests_per_minute", 60)
	v.SetDefault("upload.max_bytes", 10<<20)
	v.SetDefault("raster.jpeg_quality", 92)
	v.SetDefault("raster.max_surface_dimension", 16384)
	v.SetDefault("uploader.title", "Image")
	v.SetDefault("uploader.max_files", 1)
	v.SetDefault("uploader.aspect_ratio", 1.0)
	v.SetDefault("uploader.file_metadata.purpose", model.PurposeProfileLogo)
	v.SetDefault("uploader.file_metadata.parent_id", "")
	v.SetDefault("log.level", "info")

	// Read from YAML config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Read config file (ignore "not found" — defaults + env are enough)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Environment variables override everything.
	// CROP_ prefix + nested keys: CROP_UPLOAD_BACKEND=http → upload.backend=http
	v.SetEnvPrefix("CROP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Upload.Backend {
	case BackendLocal, BackendHTTP:
	default:
		return fmt.Errorf("unknown upload backend %q (want %q or %q)", c.Upload.Backend, BackendLocal, BackendHTTP)
	}
	if c.Upload.Backend == BackendHTTP && c.Upload.Endpoint == "" {
		return fmt.Errorf("upload.endpoint is required for the http backend")
	}
	if c.Uploader.MaxFiles < 0 {
		return fmt.Errorf("uploader.max_files must not be negative, got %d", c.Uploader.MaxFiles)
	}
	return nil
}

// Address returns the listen address string like "0.0.0.0:8080".
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

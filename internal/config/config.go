// Package config loads facegate settings from an optional YAML file with
// FACEGATE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env string `yaml:"env" env:"FACEGATE_ENV" env-default:"dev"` // "dev" | "prod"

	HTTPAddr string `yaml:"http_addr" env:"FACEGATE_HTTP_ADDR" env-default:":8080"`
	GRPCAddr string `yaml:"grpc_addr" env:"FACEGATE_GRPC_ADDR" env-default:":9090"`

	DBPath      string `yaml:"db_path" env:"FACEGATE_DB_PATH" env-default:"./data/facegate.db"`
	GalleryPath string `yaml:"gallery_path" env:"FACEGATE_GALLERY_PATH" env-default:"./data/gallery.pb"`
	FacesDir    string `yaml:"faces_dir" env:"FACEGATE_FACES_DIR" env-default:"./data/faces"`

	Oracle OracleConfig `yaml:"oracle"`
	Camera CameraConfig `yaml:"camera"`
	Match  MatchConfig  `yaml:"match"`
	Auth   AuthConfig   `yaml:"auth"`

	// Access log retention
	LogRetentionDays   int `yaml:"log_retention_days" env:"FACEGATE_LOG_RETENTION_DAYS" env-default:"90"` // 0 = keep forever
	PruneIntervalHours int `yaml:"prune_interval_hours" env:"FACEGATE_PRUNE_INTERVAL_HOURS" env-default:"6"`
}

// OracleConfig points at the face embedding server.
type OracleConfig struct {
	URL     string        `yaml:"url" env:"FACEGATE_ORACLE_URL" env-default:"http://localhost:8000"`
	Timeout time.Duration `yaml:"timeout" env:"FACEGATE_ORACLE_TIMEOUT" env-default:"10s"`
}

type CameraConfig struct {
	// Source is a frame directory, a still image, or an http(s) snapshot URL.
	Source   string        `yaml:"source" env:"FACEGATE_CAMERA"`
	Interval time.Duration `yaml:"interval" env:"FACEGATE_CAMERA_INTERVAL" env-default:"100ms"`
}

type MatchConfig struct {
	Tolerance           float64       `yaml:"tolerance" env:"FACEGATE_MATCH_TOLERANCE" env-default:"0.6"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold" env:"FACEGATE_CONFIDENCE_THRESHOLD" env-default:"0.6"`
	Cooldown            time.Duration `yaml:"cooldown" env:"FACEGATE_COOLDOWN" env-default:"2s"`
}

// AuthConfig configures the admin API. JWTSecret is env-only.
type AuthConfig struct {
	JWTSecret     string        `yaml:"-" env:"FACEGATE_JWT_SECRET"`
	TokenTTL      time.Duration `yaml:"token_ttl" env:"FACEGATE_TOKEN_TTL" env-default:"12h"`
	AdminUsername string        `yaml:"admin_username" env:"FACEGATE_ADMIN_USERNAME" env-default:"admin"`
	AdminPassword string        `yaml:"-" env:"FACEGATE_ADMIN_PASSWORD" env-default:"admin123"`
}

// Load reads path when it exists, then applies environment overrides. An
// empty path reads the environment only.
func Load(path string) (Config, error) {
	var cfg Config

	var err error
	if path != "" && fileExists(path) {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env != "dev" && c.Env != "prod" {
		// fail-soft: treat unknown as dev
		c.Env = "dev"
	}
	if c.PruneIntervalHours <= 0 {
		c.PruneIntervalHours = 6
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Match.Tolerance <= 0 {
		errs = append(errs, errors.New("match tolerance must be positive"))
	}
	if c.Match.ConfidenceThreshold >= 1 {
		errs = append(errs, errors.New("confidence threshold must be below 1"))
	}
	if c.Match.Cooldown < 0 {
		errs = append(errs, errors.New("cooldown must not be negative"))
	}
	if c.LogRetentionDays < 0 {
		errs = append(errs, errors.New("log retention days must not be negative"))
	}
	if c.Oracle.URL == "" {
		errs = append(errs, errors.New("oracle url is required"))
	}
	return errors.Join(errs...)
}

// RequireJWTSecret is checked by commands that serve the admin API.
func (c Config) RequireJWTSecret() error {
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("FACEGATE_JWT_SECRET must be set to at least 16 characters")
	}
	return nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/companion-client/internal/platform/envutil"
	"github.com/yungbote/companion-client/internal/platform/logger"
)

type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

type Config struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	OwnerID string        `yaml:"owner_id"`
	Timeout time.Duration `yaml:"timeout"`
	LogMode string        `yaml:"log_mode"`

	RefreshConcurrency int `yaml:"refresh_concurrency"`

	Redis RedisConfig `yaml:"redis"`
	OTel  bool        `yaml:"otel"`
}

func defaults() Config {
	return Config{
		BaseURL:            "http://localhost:8090",
		Timeout:            30 * time.Second,
		LogMode:            "development",
		RefreshConcurrency: 4,
		Redis:              RedisConfig{Channel: "companion.notifications"},
	}
}

// LoadConfig layers COMPANION_* environment variables over the YAML file
// named by COMPANION_CONFIG, over built-in defaults.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaults()
	if path := envutil.String("COMPANION_CONFIG", ""); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
		log.Debug("config file loaded", "path", path)
	}
	cfg.mergeEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() {
	c.BaseURL = envutil.String("COMPANION_BASE_URL", c.BaseURL)
	c.Token = envutil.String("COMPANION_TOKEN", c.Token)
	c.OwnerID = envutil.String("COMPANION_OWNER_ID", c.OwnerID)
	c.Timeout = envutil.Duration("COMPANION_TIMEOUT", c.Timeout)
	c.LogMode = envutil.String("LOG_MODE", c.LogMode)
	c.RefreshConcurrency = envutil.Int("COMPANION_REFRESH_CONCURRENCY", c.RefreshConcurrency)
	c.Redis.Addr = envutil.String("COMPANION_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Channel = envutil.String("COMPANION_REDIS_CHANNEL", c.Redis.Channel)
	c.OTel = envutil.Bool("OTEL_ENABLED", c.OTel)
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.BaseURL) == "" {
		errs = append(errs, errors.New("base_url required"))
	}
	if strings.TrimSpace(c.OwnerID) == "" {
		errs = append(errs, errors.New("owner_id required (COMPANION_OWNER_ID)"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.RefreshConcurrency <= 0 {
		errs = append(errs, errors.New("refresh_concurrency must be positive"))
	}
	return errors.Join(errs...)
}

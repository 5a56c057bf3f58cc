package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Surface names accepted by review.surface.
const (
	SurfaceWindow  = "window"
	SurfaceDesktop = "desktop"
	SurfaceWeb     = "web"
)

// EnvPrefix prefixes environment overrides, e.g. MASKCAL_REVIEW_SURFACE=web.
const EnvPrefix = "MASKCAL"

type Config struct {
	InputDir  string       `mapstructure:"input_dir"`
	OutputDir string       `mapstructure:"output_dir"`
	Model     ModelConfig  `mapstructure:"model"`
	Review    ReviewConfig `mapstructure:"review"`
	Web       WebConfig    `mapstructure:"web"`
	Cache     CacheConfig  `mapstructure:"cache"`
	Ledger    LedgerConfig `mapstructure:"ledger"`
	Log       LogConfig    `mapstructure:"log"`
}

type ModelConfig struct {
	Path    string `mapstructure:"path"`
	Threads int    `mapstructure:"threads"`
	EdgeTPU bool   `mapstructure:"edgetpu"`
}

type ReviewConfig struct {
	DefaultThreshold float64 `mapstructure:"default_threshold"`
	ConfirmKey       string  `mapstructure:"confirm_key"`
	Surface          string  `mapstructure:"surface"`
	WindowTitle      string  `mapstructure:"window_title"`
}

type WebConfig struct {
	Addr string `mapstructure:"addr"`
}

// CacheConfig configures the redis probability-map cache. An empty address disables it.
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// LedgerConfig configures the sqlite review ledger. An empty path disables it.
type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Load reads configuration from an optional YAML file, then applies environment overrides.
// An empty path yields defaults plus environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the review loop cannot run with.
func (c *Config) Validate() error {
	if c.Review.DefaultThreshold < 0 || c.Review.DefaultThreshold > 1 {
		return fmt.Errorf("review.default_threshold %v outside [0,1]", c.Review.DefaultThreshold)
	}
	if len([]rune(c.Review.ConfirmKey)) != 1 {
		return fmt.Errorf("review.confirm_key must be a single character, got %q", c.Review.ConfirmKey)
	}
	switch c.Review.Surface {
	case SurfaceWindow, SurfaceDesktop, SurfaceWeb:
	default:
		return fmt.Errorf("unknown review.surface %q", c.Review.Surface)
	}
	if c.InputDir == "" || c.OutputDir == "" {
		return fmt.Errorf("input_dir and output_dir are required")
	}
	if c.Model.Threads <= 0 {
		c.Model.Threads = 1
	}
	return nil
}

// ConfirmRune returns the confirmation key as a rune.
func (c *Config) ConfirmRune() rune {
	return []rune(c.Review.ConfirmKey)[0]
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input_dir", "Input Images")
	v.SetDefault("output_dir", "Output Folder")

	v.SetDefault("model.path", "model/optimised_model_augmentation.tflite")
	v.SetDefault("model.threads", 4)
	v.SetDefault("model.edgetpu", false)

	v.SetDefault("review.default_threshold", 0.20)
	v.SetDefault("review.confirm_key", "s")
	v.SetDefault("review.surface", SurfaceWindow)
	v.SetDefault("review.window_title", "Press S to confirm")

	v.SetDefault("web.addr", ":8080")

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("ledger.path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"umisu/src/gpu"
	"umisu/src/logging"
	"umisu/src/render"
)

const (
	DefaultPath    = "umisu.yaml"
	DefaultEnvFile = ".env"
)

type Config struct {
	Window WindowConfig `yaml:"window"`
	Vulkan VulkanConfig `yaml:"vulkan"`
	Render RenderConfig `yaml:"render"`
	Log    LogConfig    `yaml:"log"`
}

type WindowConfig struct {
	Title     string `yaml:"title"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Resizable bool   `yaml:"resizable"`
}

type VulkanConfig struct {
	Validation bool `yaml:"validation"`
	// DeviceSelection is "first" or "discrete".
	DeviceSelection string `yaml:"device_selection"`
}

type RenderConfig struct {
	FenceTimeout   time.Duration `yaml:"fence_timeout"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	ClearColor     [4]float32    `yaml:"clear_color,flow"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	File        string `yaml:"file"`
	Development bool   `yaml:"development"`
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days"`
	Compress    bool   `yaml:"compress"`
}

func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:     "MikuAgent",
			Width:     1920,
			Height:    1080,
			Resizable: true,
		},
		Vulkan: VulkanConfig{
			Validation:      true,
			DeviceSelection: "first",
		},
		Render: RenderConfig{
			FenceTimeout:   render.DefaultFenceTimeout,
			AcquireTimeout: render.DefaultAcquireTimeout,
			ClearColor:     render.ClearColor,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  logging.DefaultMaxSizeMB,
			MaxBackups: logging.DefaultMaxBackups,
			MaxAgeDays: logging.DefaultMaxAgeDays,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given files into the process
// environment without overriding ones already set. Missing files are
// skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "load %s", f)
		}
	}
	return nil
}

// FromEnvironment loads .env, the YAML file named by UMISU_CONFIG (or the
// default path) and finally applies UMISU_* overrides.
func FromEnvironment() (Config, error) {
	if err := LoadDotEnv(DefaultEnvFile); err != nil {
		return Config{}, err
	}
	cfg, err := Load(GetEnvOrDefault("UMISU_CONFIG", DefaultPath))
	if err != nil {
		return Config{}, err
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) ApplyEnv() {
	c.Window.Title = GetEnvOrDefault("UMISU_WINDOW_TITLE", c.Window.Title)
	c.Window.Width = ParseIntEnv("UMISU_WINDOW_WIDTH", c.Window.Width)
	c.Window.Height = ParseIntEnv("UMISU_WINDOW_HEIGHT", c.Window.Height)
	c.Window.Resizable = ParseBoolEnv("UMISU_WINDOW_RESIZABLE", c.Window.Resizable)

	c.Vulkan.Validation = ParseBoolEnv("UMISU_VALIDATION", c.Vulkan.Validation)
	c.Vulkan.DeviceSelection = GetEnvOrDefault("UMISU_DEVICE", c.Vulkan.DeviceSelection)

	c.Render.FenceTimeout = ParseDurationEnv("UMISU_FENCE_TIMEOUT", c.Render.FenceTimeout)
	c.Render.AcquireTimeout = ParseDurationEnv("UMISU_ACQUIRE_TIMEOUT", c.Render.AcquireTimeout)

	c.Log.Level = GetEnvOrDefault("UMISU_LOG_LEVEL", c.Log.Level)
	c.Log.File = GetEnvOrDefault("UMISU_LOG_FILE", c.Log.File)
	c.Log.Development = ParseBoolEnv("UMISU_LOG_DEVELOPMENT", c.Log.Development)
}

func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if _, ok := gpu.SelectorByName(c.Vulkan.DeviceSelection); !ok {
		return fmt.Errorf("unknown device selection %q, want first or discrete", c.Vulkan.DeviceSelection)
	}
	if c.Render.FenceTimeout <= 0 {
		return fmt.Errorf("fence timeout %s must be positive", c.Render.FenceTimeout)
	}
	if c.Render.AcquireTimeout <= 0 {
		return fmt.Errorf("acquire timeout %s must be positive", c.Render.AcquireTimeout)
	}
	for i, v := range c.Render.ClearColor {
		if v < 0 || v > 1 {
			return fmt.Errorf("clear colour component %d is %g, want [0,1]", i, v)
		}
	}
	return nil
}

func (c Config) GPUOptions() []gpu.Option {
	selector, _ := gpu.SelectorByName(c.Vulkan.DeviceSelection)
	return []gpu.Option{
		gpu.WithValidation(c.Vulkan.Validation),
		gpu.WithDeviceSelector(selector),
	}
}

func (c Config) RenderOptions() []render.Option {
	return []render.Option{
		render.WithFenceTimeout(c.Render.FenceTimeout),
		render.WithAcquireTimeout(c.Render.AcquireTimeout),
		render.WithClearColor(mgl32.Vec4(c.Render.ClearColor)),
	}
}

func (c Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:       c.Log.Level,
		File:        c.Log.File,
		Development: c.Log.Development,
		MaxSizeMB:   c.Log.MaxSizeMB,
		MaxBackups:  c.Log.MaxBackups,
		MaxAgeDays:  c.Log.MaxAgeDays,
		Compress:    c.Log.Compress,
	}
}

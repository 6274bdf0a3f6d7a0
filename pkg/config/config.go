package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joshvictor1024/mandelfarm/pkg/fractal"
)

// Config is the configuration shared by the render command and the worker.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Viewport ViewportConfig `yaml:"viewport"`
	Render   RenderConfig   `yaml:"render"`
	Worker   WorkerConfig   `yaml:"worker"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ViewportConfig is the initial viewport
type ViewportConfig struct {
	MinX          float64 `yaml:"min_x"`
	MaxX          float64 `yaml:"max_x"`
	MinY          float64 `yaml:"min_y"`
	MaxY          float64 `yaml:"max_y"`
	Zoom          float64 `yaml:"zoom"`
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	MaxIterations int     `yaml:"max_iterations"`
}

// RenderConfig contains settings of the render command
type RenderConfig struct {
	Units        int      `yaml:"units"`     // goroutines in parallel mode, 0 = one per CPU
	Partition    string   `yaml:"partition"` // block, striped
	Output       string   `yaml:"output"`    // empty = mode-specific default name
	Workers      []string `yaml:"workers"`   // host:port; non-empty selects distributed mode
	DialTimeoutS int      `yaml:"dial_timeout_s"`
	Compress     bool     `yaml:"compress"` // zstd task/result payloads
}

// WorkerConfig contains settings of the worker executable
type WorkerConfig struct {
	Port int `yaml:"port"`
}

// MQTTConfig enables render events when Broker is set
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // host:port
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

// Default returns a configuration that is valid without a file.
func Default() *Config {
	v := fractal.DefaultViewport()
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Viewport: ViewportConfig{
			MinX:          v.MinX,
			MaxX:          v.MaxX,
			MinY:          v.MinY,
			MaxY:          v.MaxY,
			Zoom:          v.Zoom,
			Width:         v.Width,
			Height:        v.Height,
			MaxIterations: v.MaxIterations,
		},
		Render: RenderConfig{Partition: "striped"},
		Worker: WorkerConfig{Port: 5000},
		MQTT:   MQTTConfig{Topic: "mandelfarm/renders"},
	}
}

// Load reads a YAML configuration file over the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, or returns validated defaults when path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, Validate(cfg)
	}
	return Load(path)
}

// ViewportValue converts the section to a fractal.Viewport.
func (c ViewportConfig) ViewportValue() fractal.Viewport {
	return fractal.Viewport{
		MinX:          c.MinX,
		MaxX:          c.MaxX,
		MinY:          c.MinY,
		MaxY:          c.MaxY,
		Zoom:          c.Zoom,
		Width:         c.Width,
		Height:        c.Height,
		MaxIterations: c.MaxIterations,
	}
}

func (c RenderConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutS) * time.Second
}

package config

import (
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/joshvictor1024/mandelfarm/pkg/partition"
)

// Validate checks the configuration and fills in derived defaults
func Validate(cfg *Config) error {
	// Viewport errors wrap fractal.ErrInvalidViewport
	if err := cfg.Viewport.ViewportValue().Validate(); err != nil {
		return err
	}

	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Log.Format)
	}

	if cfg.Render.Units < 0 {
		return fmt.Errorf("render.units must be >= 0")
	}
	if _, err := partition.ParsePolicy(cfg.Render.Partition); err != nil {
		return fmt.Errorf("render.partition: %w", err)
	}
	if cfg.Render.DialTimeoutS < 0 {
		return fmt.Errorf("render.dial_timeout_s must be >= 0")
	}
	for _, addr := range cfg.Render.Workers {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("render.workers: %q is not host:port: %w", addr, err)
		}
	}

	if cfg.Worker.Port < 0 || cfg.Worker.Port > 65535 {
		return fmt.Errorf("worker.port must be in [0, 65535], got %d", cfg.Worker.Port)
	}

	// MQTT is optional; topic and client id only matter with a broker
	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
		if cfg.MQTT.Topic == "" {
			cfg.MQTT.Topic = "mandelfarm/renders"
		}
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = "mandelfarm"
		}
	}

	return nil
}

// ParseLevel maps a log.level value to a slog level
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log.level must be debug, info, warn or error, got %q", s)
}

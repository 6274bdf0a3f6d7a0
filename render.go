package main

import (
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/joshvictor1024/mandelfarm/pkg/config"
	"github.com/joshvictor1024/mandelfarm/pkg/coordinator"
	"github.com/joshvictor1024/mandelfarm/pkg/emitter"
	"github.com/joshvictor1024/mandelfarm/pkg/engine"
	"github.com/joshvictor1024/mandelfarm/pkg/fractal"
	"github.com/joshvictor1024/mandelfarm/pkg/partition"
	"github.com/joshvictor1024/mandelfarm/pkg/wire"
)

type mode string

const (
	modeSequential  mode = "sequential"
	modeParallel    mode = "parallel"
	modeDistributed mode = "distributed"
)

var defaultOutput = map[mode]string{
	modeSequential:  "mandelbrot.png",
	modeParallel:    "mandelbrot_parallel.png",
	modeDistributed: "mandelbrot_distributed.png",
}

func selectMode(rc config.RenderConfig, parallel bool) mode {
	switch {
	case len(rc.Workers) > 0:
		return modeDistributed
	case parallel:
		return modeParallel
	}
	return modeSequential
}

func outputPath(rc config.RenderConfig, m mode) string {
	if rc.Output != "" {
		return rc.Output
	}
	return defaultOutput[m]
}

// run renders cfg's viewport in mode m, writes the PNG and publishes a
// render event when a broker is configured. It returns the file written.
func run(ctx context.Context, cfg *config.Config, m mode) (string, error) {
	v := cfg.Viewport.ViewportValue()

	start := time.Now()
	buf, err := render(ctx, cfg, v, m)
	if err != nil {
		return "", err
	}
	elapsed := time.Since(start)
	slog.Info("rendered",
		"mode", m,
		"elapsed_ms", elapsed.Milliseconds(),
		"width", v.Width,
		"height", v.Height,
	)

	path := outputPath(cfg.Render, m)
	if err := writePNG(path, buf); err != nil {
		return "", err
	}
	slog.Info("image written", "path", path)

	if cfg.MQTT.Broker != "" {
		publish(ctx, emitter.New(cfg.MQTT), renderEvent(cfg, m, v, elapsed))
	}
	return path, nil
}

// renderEvent reports the units that actually ran, not the requested count.
func renderEvent(cfg *config.Config, m mode, v fractal.Viewport, elapsed time.Duration) emitter.RenderEvent {
	ev := emitter.NewRenderEvent(string(m), v, elapsed)
	switch m {
	case modeSequential:
		ev.Units = 1
	case modeParallel:
		ev.Units = engine.Units(cfg.Render.Units, v.Height)
	case modeDistributed:
		ev.Units = min(len(cfg.Render.Workers), v.Height)
		ev.Workers = cfg.Render.Workers[:ev.Units]
	}
	return ev
}

func render(ctx context.Context, cfg *config.Config, v fractal.Viewport, m mode) (*fractal.PixelBuffer, error) {
	switch m {
	case modeParallel:
		policy, err := partition.ParsePolicy(cfg.Render.Partition)
		if err != nil {
			return nil, err
		}
		return engine.Render(v, cfg.Render.Units, policy)
	case modeDistributed:
		c := &coordinator.Coordinator{
			Codec:       wire.Codec{Compress: cfg.Render.Compress},
			DialTimeout: cfg.Render.DialTimeout(),
			Logger:      slog.Default(),
		}
		return c.Render(ctx, v, cfg.Render.Workers)
	}
	return engine.RenderSequential(v)
}

func writePNG(path string, buf *fractal.PixelBuffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, buf); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return f.Close()
}

// publish reports ev; broker trouble never fails a finished render.
func publish(ctx context.Context, e *emitter.Emitter, ev emitter.RenderEvent) {
	if err := e.Connect(ctx); err != nil {
		slog.Warn("render event not published", "error", err)
		return
	}
	defer e.Close()
	if err := e.Publish(ev); err != nil {
		slog.Warn("render event not published", "error", err)
	}
}

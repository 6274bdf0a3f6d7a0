// Command mandelfarm renders the Mandelbrot set to a PNG file, sequentially,
// on all local cores, or across remote workers.
//
//	mandelfarm [-config file] [-parallel] [-units n] [-workers host:port,...] [-compress] [-debug]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joshvictor1024/mandelfarm/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	parallel := flag.Bool("parallel", false, "Render on all local cores")
	units := flag.Int("units", 0, "Number of parallel work units (0 = config or one per CPU)")
	workers := flag.String("workers", "", "Comma separated worker addresses; selects distributed mode")
	compress := flag.Bool("compress", false, "Compress task and result frames with zstd")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.SetDefault(config.NewLogger(os.Stdout, cfg.Log, *debug))

	if *units < 0 {
		slog.Error("invalid arguments", "error", "-units must be >= 0")
		os.Exit(1)
	}
	if *units > 0 {
		cfg.Render.Units = *units
	}
	if *workers != "" {
		cfg.Render.Workers = splitWorkers(*workers)
	}
	if *compress {
		cfg.Render.Compress = true
	}
	if err := config.Validate(cfg); err != nil {
		slog.Error("invalid arguments", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := selectMode(cfg.Render, *parallel)
	if _, err := run(ctx, cfg, m); err != nil {
		slog.Error("render failed", "mode", m, "error", err)
		os.Exit(1)
	}
}

func splitWorkers(s string) []string {
	var addrs []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

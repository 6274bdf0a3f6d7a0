// Command worker computes row bands for a mandelfarm coordinator.
//
//	worker [-config file] [-debug] <port>
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joshvictor1024/mandelfarm/pkg/config"
	"github.com/joshvictor1024/mandelfarm/pkg/worker"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] [-debug] <port>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.SetDefault(config.NewLogger(os.Stdout, cfg.Log, *debug))

	port, err := resolvePort(flag.Args(), cfg.Worker.Port)
	if err != nil {
		slog.Error("invalid arguments", "error", err)
		flag.Usage()
		os.Exit(1)
	}

	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		slog.Error("failed to bind port", "port", port, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("received shutdown signal")
		l.Close()
	}()

	srv := &worker.Server{Logger: slog.Default()}
	if err := srv.Serve(l); err != nil {
		slog.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}

// resolvePort takes the positional port, falling back to the configured one.
func resolvePort(args []string, fallback int) (int, error) {
	switch len(args) {
	case 0:
		if fallback <= 0 {
			return 0, fmt.Errorf("no port given")
		}
		return fallback, nil
	case 1:
		port, err := strconv.Atoi(args[0])
		if err != nil || port <= 0 || port > 65535 {
			return 0, fmt.Errorf("invalid port %q", args[0])
		}
		return port, nil
	}
	return 0, fmt.Errorf("expected one port argument, got %d", len(args))
}

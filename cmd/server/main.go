package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ryusei-star/FakeMinecraftServer/internal/config"
	"github.com/ryusei-star/FakeMinecraftServer/internal/limiter"
	"github.com/ryusei-star/FakeMinecraftServer/internal/logger"
	"github.com/ryusei-star/FakeMinecraftServer/internal/monitor"
	"github.com/ryusei-star/FakeMinecraftServer/internal/network"
	"github.com/ryusei-star/FakeMinecraftServer/internal/protocol"
	"github.com/ryusei-star/FakeMinecraftServer/internal/upstream"
)

// Injected at build time via -ldflags.
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var (
	configPath  = flag.String("config", "config.yml", "path to the configuration file")
	showVersion = flag.Bool("version", false, "print version information and exit")
)

func printVersion() {
	fmt.Printf("FakeMinecraftServer %s\n", version)
	if gitCommit != "unknown" {
		fmt.Printf("commit: %s\n", gitCommit)
	}
	if buildTime != "unknown" {
		fmt.Printf("built:  %s\n", buildTime)
	}
	fmt.Printf("go:     %s (%s/%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func main() {
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, config.ErrDefaultWritten) {
			fmt.Printf("%s not found! Generated default config. Edit it and run again.\n", *configPath)
			return
		}
		fmt.Printf("load config: %v\n", err)
		os.Exit(1)
	}

	mainLogger, err := logger.Setup(cfg)
	if err != nil {
		fmt.Printf("setup logging: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	probeLog, err := logger.NewProbeLogger(&cfg.ProbeLogging)
	if err != nil {
		fmt.Printf("setup probe log: %v\n", err)
		os.Exit(1)
	}
	defer probeLog.Close()

	rateLimiter := limiter.New(cfg, mainLogger)
	rateLimiter.StartCleanup(ctx)

	descriptor := protocol.NewDescriptor(cfg, mainLogger)

	var mirror *upstream.Syncer
	if cfg.Upstream.Enabled {
		mirror = upstream.NewSyncer(cfg, mainLogger, ctx)
		if err := mirror.Start(); err != nil {
			fmt.Printf("start upstream syncer: %v\n", err)
			os.Exit(1)
		}
	}

	registry := prometheus.NewRegistry()
	metrics := monitor.NewMetrics(registry)
	if cfg.Monitoring.Enabled {
		go func() {
			if err := monitor.Serve(ctx, cfg, mainLogger, registry); err != nil {
				mainLogger.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
	}

	handler := protocol.NewHandler(cfg, mainLogger, descriptor, rateLimiter, mirror, probeLog, metrics)

	server, err := network.NewServer(cfg, mainLogger, handler, ctx)
	if err != nil {
		// Bind failure is the one unrecoverable condition.
		mainLogger.Error().Err(err).Msg("cannot start server")
		os.Exit(1)
	}

	go func() {
		if err := server.Start(); err != nil {
			mainLogger.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	mainLogger.Info().
		Str("version", version).
		Str("address", cfg.GetAddress()).
		Bool("upstream", cfg.Upstream.Enabled).
		Msg("fake minecraft server running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		mainLogger.Info().Str("signal", sig.String()).Msg("stop signal received")
	case <-ctx.Done():
	}

	cancel()

	// Give the listener and in-flight sessions a moment to wind down.
	time.Sleep(time.Second)

	stats := server.GetStats()
	mainLogger.Info().
		Interface("connection_count", stats["connection_count"]).
		Msg("server stopped")
}

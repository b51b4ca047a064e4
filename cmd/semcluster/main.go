package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dshills/semcluster/internal/config"
	"github.com/dshills/semcluster/internal/mcp"
	"github.com/dshills/semcluster/internal/metrics"
	"github.com/dshills/semcluster/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Print version information and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *showVersion {
		fmt.Printf("semcluster MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		os.Exit(0)
	}

	// Stdout is reserved for MCP protocol
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if err := config.LoadEnv(); err != nil {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	if *debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("version", version).
		Str("build_mode", storage.BuildMode).
		Str("driver", storage.DriverName).
		Str("provider", cfg.Embedding.Provider).
		Str("db_path", cfg.DBPath).
		Msg("semcluster MCP server starting")

	var recorder *metrics.Recorder
	if cfg.MetricsAddr != "" {
		recorder = metrics.NewRecorder()
	}

	server, err := mcp.NewServer(cfg, recorder)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create MCP server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var metricsServer *http.Server
	if recorder != nil {
		metricsServer = startMetricsServer(cfg.MetricsAddr, recorder)
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Msg("MCP server ready, listening on stdio")
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		cancel()
		if err := <-errChan; err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	case err := <-errChan:
		if err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}

	if err := server.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close server")
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}

	log.Info().Msg("Server stopped")
}

func startMetricsServer(addr string, recorder *metrics.Recorder) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return srv
}

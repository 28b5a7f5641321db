package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/THRAUR/line-speech-to-text/internal/audio"
	"github.com/THRAUR/line-speech-to-text/internal/auth"
	"github.com/THRAUR/line-speech-to-text/internal/bot"
	"github.com/THRAUR/line-speech-to-text/internal/config"
	"github.com/THRAUR/line-speech-to-text/internal/line"
	"github.com/THRAUR/line-speech-to-text/internal/metrics"
	"github.com/THRAUR/line-speech-to-text/internal/server"
	"github.com/THRAUR/line-speech-to-text/internal/session"
	"github.com/THRAUR/line-speech-to-text/internal/summary"
	"github.com/THRAUR/line-speech-to-text/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "line-speech-to-text"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load .env if present; environment wins for secrets either way.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.Int("http_port", cfg.HTTP.Port),
		slog.String("timezone", cfg.Auth.Timezone),
		slog.Int("session_ttl", cfg.Auth.SessionTTL),
		slog.Float64("max_chunk_seconds", cfg.Audio.MaxChunkSeconds),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.String("transcription_model", cfg.Transcription.Model),
		slog.String("summary_model", cfg.Summary.Model),
		slog.String("log_level", cfg.Logging.Level),
	)

	location, err := cfg.Auth.GetLocation()
	if err != nil {
		logger.Error("Failed to load timezone", slog.String("error", err.Error()))
		os.Exit(1)
	}

	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	validator := auth.NewValidator(cfg.Auth.PasswordSeed, location)
	sessions := session.NewStore(validator, cfg.Auth.GetSessionTTL(), location)
	logger.Info("Session store initialized",
		slog.Duration("session_ttl", cfg.Auth.GetSessionTTL()),
		slog.String("today_password", validator.Expected(time.Now())),
	)

	converter := audio.NewConverter(audio.ConverterConfig{
		Binary: cfg.Audio.FFmpegBinary,
	})

	chunker := audio.NewChunker(audio.ChunkerConfig{
		MaxChunkSeconds:        cfg.Audio.MaxChunkSeconds,
		SilenceLookbackSeconds: cfg.Audio.SilenceLookbackSeconds,
	})

	transcriber, err := transcription.NewClient(transcription.Config{
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Model:         cfg.Transcription.Model,
		Language:      cfg.Transcription.Language,
		Timeout:       cfg.Transcription.GetTimeout(),
		MaxRetries:    cfg.Transcription.MaxRetries,
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
	})
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	summarizer, err := summary.NewClient(summary.Config{
		APIKey:        cfg.Summary.APIKey,
		BaseURL:       cfg.Summary.BaseURL,
		Model:         cfg.Summary.Model,
		MaxTokens:     cfg.Summary.MaxTokens,
		MaxInputChars: cfg.Summary.MaxInputChars,
		Timeout:       cfg.Summary.GetTimeout(),
		MaxRetries:    cfg.Summary.MaxRetries,
	})
	if err != nil {
		logger.Error("Failed to create summary client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	lineAPI, err := line.NewClient(line.Config{
		ChannelSecret:      cfg.Line.ChannelSecret,
		ChannelAccessToken: cfg.Line.ChannelAccessToken,
		APIEndpoint:        cfg.Line.APIEndpoint,
		BlobEndpoint:       cfg.Line.BlobEndpoint,
		Timeout:            cfg.Line.GetTimeout(),
		MaxMessageChars:    cfg.Line.MaxMessageChars,
	})
	if err != nil {
		logger.Error("Failed to create messaging client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handler := bot.New(bot.Config{
		MaxRecordingBytes: cfg.Audio.MaxRecordingBytes,
		PipelineTimeout:   cfg.Audio.GetPipelineTimeout(),
	}, logger, sessions, validator, lineAPI, converter, chunker, transcriber, summarizer, appMetrics, nil)

	httpServer := server.NewHTTPServer(cfg.HTTP, logger, cfg, lineAPI, handler, sessions, validator, appMetrics)

	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	// Stop accepting new webhook requests first.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Let in-flight audio pipelines finish.
	done := make(chan struct{})
	go func() {
		handler.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Warn("Timed out waiting for in-flight pipelines")
	}

	stats := transcriber.GetStats()
	logger.Info("Final transcription statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Uint64("total_retries", stats.TotalRetries),
	)

	logger.Info("Service stopped")
}

// initLogger creates the structured logger based on configuration.
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}

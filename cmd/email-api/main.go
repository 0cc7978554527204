// Package main is the entry point for the email API. It runs as an AWS Lambda
// function when started by the Lambda runtime and as an HTTP server otherwise.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/gin-gonic/gin"

	"github.com/devonik/email-api/internal/app"
	"github.com/devonik/email-api/internal/config"
	"github.com/devonik/email-api/internal/handler"
	"github.com/devonik/email-api/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	setupLogger(cfg.Logging.Level)

	svc, err := app.NewService(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to setup email service", "error", err)
		os.Exit(1)
	}
	h := handler.New(svc, cfg.Stage, slog.Default())

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		startLambda(cfg.Function, h)
		return
	}

	if cfg.Stage != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.New(server.ServerConfig{
		ListenAddr: cfg.HTTP.Listen,
		APIKey:     cfg.HTTP.APIKey,
		Logger:     slog.Default(),
	}, h)

	slog.Info("starting email-api",
		"listen", cfg.HTTP.Listen,
		"stage", cfg.Stage,
		"scheduling_enabled", cfg.SchedulingEnabled(),
	)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		slog.Info("received signal, initiating shutdown", "signal", sig)
		cancel()
	}()

	// Start the server (blocks until context is cancelled)
	if err := srv.ListenAndServe(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("email-api stopped")
}

// startLambda hands the selected entry point to the Lambda runtime.
// One deployment package backs all three functions.
func startLambda(function string, h *handler.Handler) {
	slog.Info("starting lambda", "function", function)

	switch function {
	case "post":
		lambda.Start(h.Post)
	case "schedule":
		lambda.Start(h.Schedule)
	case "cancel":
		lambda.Start(h.Cancel)
	default:
		slog.Error("unknown EMAIL_API_FUNCTION", "function", function)
		os.Exit(1)
	}
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(logHandler))
}

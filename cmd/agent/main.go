package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hypernode-labs/node-agent/internal/agent"
	"github.com/hypernode-labs/node-agent/internal/config"
	"github.com/hypernode-labs/node-agent/internal/gpu"
	"github.com/hypernode-labs/node-agent/internal/telemetry"
)

var (
	Version   = "dev"     // Injected at build time
	BuildDate = "unknown" // Injected at build time
)

var configPath = flag.String("config", "", "Path to an optional YAML configuration file (environment variables override it)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Hypernode node agent",
		zap.String("version", Version),
		zap.String("build_date", BuildDate),
	)

	var publisher telemetry.Publisher
	if cfg.NatsURL != "" {
		p, err := telemetry.NewNatsPublisher(cfg.NatsURL, cfg.TelemetrySubject, logger)
		if err != nil {
			logger.Warn("Telemetry publisher unavailable, staying local-only", zap.Error(err))
		} else {
			publisher = p
			defer p.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	supervisor := agent.New(cfg, gpu.NewNVMLProbe(), publisher, logger)
	if err := supervisor.Run(ctx); err != nil {
		os.Exit(1)
	}
}

func setupLogger(levelString string) (*zap.Logger, error) {
	var level zapcore.Level
	switch levelString {
	case "debug", "DEBUG":
		level = zapcore.DebugLevel
	case "info", "INFO":
		level = zapcore.InfoLevel
	case "warn", "warning", "WARN", "WARNING":
		level = zapcore.WarnLevel
	case "error", "ERROR":
		level = zapcore.ErrorLevel
	default:
		fmt.Fprintf(os.Stderr, "Invalid log level %q, defaulting to info\n", levelString)
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	logCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return logCfg.Build()
}

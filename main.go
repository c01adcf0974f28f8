package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"oiflow/config"
	"oiflow/internal/metrics"
	"oiflow/internal/pipeline"
	"oiflow/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(config.ResolvePath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Oiflow.Name,
		"version":     cfg.Oiflow.Version,
		"environment": config.AppEnvironment(),
	}).Info("starting oiflow")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.CloudWatch.Enabled {
		if err := metrics.InitCloudWatch(ctx, cfg.Metrics.CloudWatch); err != nil {
			log.WithError(err).Warn("CloudWatch metrics disabled")
		}
	}

	runner, err := pipeline.Build(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("Failed to assemble pipeline")
		os.Exit(1)
	}

	_, runErr := runner.Run(ctx)

	if err := runner.Close(); err != nil {
		log.WithError(err).Warn("failed to close snapshot store")
	}

	// metrics still go out when the run failed
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := metrics.CloseCloudWatch(flushCtx); err != nil {
		log.WithError(err).Warn("failed to publish metrics")
	}
	cancel()

	if runErr != nil {
		log.WithError(runErr).Error("run failed")
		stop()
		os.Exit(1)
	}
	log.Info("oiflow finished")
}

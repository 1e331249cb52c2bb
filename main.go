package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bikedemand/db"
	bhttp "bikedemand/http"
	"bikedemand/logging"
	"bikedemand/ml"
	"bikedemand/monitoring"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// 1. Load config
	config, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(config.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Load the model. Failure leaves the host empty; health keeps serving.
	host := ml.NewHost(config.Model.Path, logger)
	_ = host.Load()
	if config.Model.Watch {
		go func() {
			if err := ml.NewWatcher(host, logger).Run(ctx); err != nil {
				logger.Error("model watcher stopped", zap.Error(err))
			}
		}()
	}

	// 3. Observers
	metrics := monitoring.NewMetrics(host.IsAvailable)
	hub := monitoring.NewHub(logger)
	go hub.Run(ctx)

	opts := []ml.ServiceOption{
		ml.WithLogger(logger),
		ml.WithCache(config.Cache.Size),
		ml.WithObserver(metrics),
		ml.WithObserver(hub),
	}
	deps := bhttp.Dependencies{
		Model:       host,
		Feed:        hub,
		Metrics:     metrics.Handler(),
		Requests:    metrics,
		FrontendDir: config.Frontend.Dir,
		Logger:      logger,
	}
	if config.Database.Path != "" {
		store, err := db.Open(config.Database.Path)
		if err != nil {
			logger.Fatal("failed to open prediction log", zap.Error(err))
		}
		defer store.Close()
		logger.Info("prediction log enabled", zap.String("path", config.Database.Path))
		opts = append(opts, ml.WithObserver(store))
		deps.Log = store
	}
	deps.Predictor = ml.NewService(host, opts...)

	// 4. Start HTTP server
	server := bhttp.NewServer(bhttp.ServerConfig{
		Port:           config.Http.Port,
		Timeout:        config.Http.Timeout,
		AllowedOrigins: config.Http.AllowedOrigins,
		RateLimit:      config.Http.RateLimit,
		Burst:          config.Http.Burst,
		MaxBodyBytes:   config.Http.MaxBodyBytes,
	}, deps)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	// 5. Handle graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("exiting")
}

package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/bankdata-pipeline/internal/api"
	"github.com/dvloznov/bankdata-pipeline/internal/app"
	"github.com/dvloznov/bankdata-pipeline/internal/config"
	"github.com/dvloznov/bankdata-pipeline/internal/jobs/inmemory"
	"github.com/dvloznov/bankdata-pipeline/internal/logger"
	"github.com/spf13/viper"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to a YAML config file")
		port       = flag.String("port", "", "HTTP server port (overrides api.port)")
	)
	flag.Parse()

	cfg, err := config.Load(viper.New(), *configFile)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.API.Port = *port
	}

	log := logger.NewWithOptions(cfg.LoggerOptions())
	ctx := logger.WithContext(context.Background(), log)

	rt, err := app.NewRuntime(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize runtime")
	}
	defer rt.Close()

	// One worker: runs triggered through this server never overlap.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.API.QueueSize, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, rt.HandleRunJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start run worker")
	}

	server := &http.Server{
		Addr: ":" + cfg.API.Port,
		Handler: api.NewRouter(api.RouterConfig{
			Publisher: jobQueue,
			Store:     jobStore,
			Strategy:  cfg.Categorize.Strategy,
			Log:       log,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.API.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let the in-flight run finish before cancelling the worker context.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping run queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/bankdata-pipeline/internal/app"
	"github.com/dvloznov/bankdata-pipeline/internal/config"
	"github.com/dvloznov/bankdata-pipeline/internal/logger"
	"github.com/spf13/viper"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to a YAML config file")
		sources    = flag.String("sources", "", "Comma-separated object names overriding storage.source_files")
		timeout    = flag.Duration("timeout", 15*time.Minute, "Overall run timeout")
	)
	flag.Parse()

	cfg, err := config.Load(viper.New(), *configFile)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.NewWithOptions(cfg.LoggerOptions())

	// Create context with timeout so a stuck warehouse job cannot hang the run
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	rt, err := app.NewRuntime(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize runtime")
	}
	defer rt.Close()

	var override []string
	for _, s := range strings.Split(*sources, ",") {
		if s = strings.TrimSpace(s); s != "" {
			override = append(override, s)
		}
	}

	report, err := rt.Run(ctx, override)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Pipeline run failed")
	}

	log.Info().Msg("Pipeline run completed successfully")
}

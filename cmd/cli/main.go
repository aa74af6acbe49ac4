package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/bankdata-pipeline/internal/config"
	"github.com/dvloznov/bankdata-pipeline/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	cfg     *config.Config
	log     zerolog.Logger

	v       = viper.New()
	rootCmd = &cobra.Command{
		Use:   "bankdata",
		Short: "Open Banking transaction pipeline",
		Long: `bankdata flattens Open Banking transaction exports, assigns spending
categories, loads them into BigQuery and maintains the category trend table.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (console, json)")
	rootCmd.PersistentFlags().String("bucket", "", "GCS bucket holding the exports")

	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = v.BindPFlag("storage.bucket", rootCmd.PersistentFlags().Lookup("bucket"))

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(uploadCmd())
	rootCmd.AddCommand(categorizeCmd())
	rootCmd.AddCommand(gateCmd())
	rootCmd.AddCommand(trainCmd())
	rootCmd.AddCommand(syncNotionCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads configuration once per invocation and installs the logger
// into the command context.
func initConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded
	log = logger.NewWithOptions(cfg.LoggerOptions())
	cmd.SetContext(logger.WithContext(cmd.Context(), log))
	return nil
}

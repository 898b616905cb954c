package main

import (
	"fmt"
	"os"

	"github.com/injops/dashboard/internal/config"
	"github.com/injops/dashboard/internal/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Injective operator dashboard",
	Long:  "Reads insurance funds, redemptions, open interest and liquidations from an Injective node, its indexer and the trade history database, and serves them as tables.",

	SilenceUsage: true,

	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, pagesCmd, showCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger every command starts from.
func setup() (*config.Config, *zap.SugaredLogger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := log.NewSugar(cfg.Env, log.Options{File: cfg.LogFile})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

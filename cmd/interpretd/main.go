package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/loqalabs/loqa-interpret/internal/config"
	"github.com/loqalabs/loqa-interpret/internal/logging"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "loqa.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "interpretd",
		Short:        "Live speech interpretation service",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", defaultConfigPath, "Path to configuration file")
	root.AddCommand(newServeCmd(), newTranslateCmd(), newReplayCmd(), newVersionCmd())
	return root
}

// loadConfig reads the --config file. The default path is optional; an
// explicitly named file must exist.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	return logging.New(cmd.ErrOrStderr(), cfg.Telemetry)
}

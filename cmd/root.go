package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signal-watch/signalwatch/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "signalwatch",
	Short: "Corporate registry integrity scanner",
	Long:  "Scans companies against the corporate registry, cross-checks filed documents for name and date discrepancies, and maps shared-officer networks.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

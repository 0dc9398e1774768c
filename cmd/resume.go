package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signal-watch/signalwatch/internal/batch"
	"github.com/signal-watch/signalwatch/internal/network"
)

var resumeOut string

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the latest interrupted scan",
	Long:  "Loads the latest checkpoint and continues the run: finished companies are kept, interrupted ones are re-queued, and recorded network depths are preserved.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("resume"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initScan(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := batch.Options{
			Concurrency: cfg.Batch.Concurrency,
			JobTimeout:  time.Duration(cfg.Batch.JobTimeoutSecs) * time.Second,
			Network: network.Options{
				MaxDepth:    cfg.Network.MaxDepth,
				MaxEntities: cfg.Network.MaxEntities,
				ActiveOnly:  cfg.Network.ActiveOnly,
			},
			UseCache:      true,
			NameThreshold: cfg.Detect.NameThreshold,
		}

		result, runErr := env.Processor.Resume(ctx, opts)
		env.logBudget()
		if result != nil {
			if err := writeResult(result, resumeOut); err != nil {
				return err
			}
		}
		if runErr != nil {
			if result != nil && result.Partial {
				zap.L().Warn("run interrupted again, partial result written")
				return nil
			}
			return runErr
		}
		return nil
	},
}

func init() {
	resumeCmd.Flags().StringVar(&resumeOut, "out", "", "write the JSON result to this file instead of stdout")
	rootCmd.AddCommand(resumeCmd)
}

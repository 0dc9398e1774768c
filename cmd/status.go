package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signal-watch/signalwatch/internal/checkpoint"
	"github.com/signal-watch/signalwatch/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest checkpoint's progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("status"); err != nil {
			return err
		}

		store, err := checkpoint.NewSQLite(cmd.Context(), cfg.Checkpoint.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		cp, err := store.LoadLatest(cmd.Context())
		if errors.Is(err, checkpoint.ErrCorrupt) {
			return fmt.Errorf("latest checkpoint is corrupt and cannot be resumed: %w", err)
		}
		if err != nil {
			return err
		}
		if cp == nil {
			fmt.Println("no checkpoint found")
			return nil
		}

		counts := map[model.JobStatus]int{}
		for _, job := range cp.Jobs {
			counts[job.Status]++
		}

		fmt.Printf("run:        %s\n", cp.RunID)
		fmt.Printf("sequence:   %d\n", cp.Sequence)
		fmt.Printf("written:    %s\n", cp.WrittenAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("companies:  %d total, %d done, %d failed, %d pending, %d in progress\n",
			len(cp.Jobs),
			counts[model.JobDone],
			counts[model.JobFailed],
			counts[model.JobPending],
			counts[model.JobInProgress],
		)
		fmt.Printf("network:    %d edges, %d companies visited", len(cp.Edges), len(cp.Visited))
		if cp.Truncated {
			fmt.Print(" (truncated)")
		}
		fmt.Println()
		fmt.Printf("requests:   %d consumed\n", cp.Counters.RequestsConsumed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

package main

import (
	"bufio"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signal-watch/signalwatch/internal/batch"
	"github.com/signal-watch/signalwatch/internal/model"
	"github.com/signal-watch/signalwatch/internal/network"
)

var (
	scanFile        string
	scanDepth       int
	scanMaxEntities int
	scanActiveOnly  bool
	scanNoCache     bool
	scanConcurrency int
	scanOut         string
)

var scanCmd = &cobra.Command{
	Use:   "scan [company numbers...]",
	Short: "Scan companies for registry discrepancies",
	Long:  "Fetches each company's registry profile and filings, checks filed documents for name and incorporation-date mismatches, and optionally expands the shared-officer network.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("scan"); err != nil {
			return err
		}

		seeds := args
		if scanFile != "" {
			fromFile, err := readNumberFile(scanFile)
			if err != nil {
				return err
			}
			seeds = append(seeds, fromFile...)
		}
		if len(seeds) == 0 {
			return eris.New("no company numbers given: pass them as arguments or via --file")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initScan(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, runErr := env.Processor.Run(ctx, seeds, scanOptions())
		env.logBudget()
		if result != nil {
			if err := writeResult(result, scanOut); err != nil {
				return err
			}
		}
		if runErr != nil {
			if result != nil && result.Partial {
				zap.L().Warn("run interrupted, partial result written; use resume to continue")
				return nil
			}
			return runErr
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanFile, "file", "", "file with one company number per line")
	scanCmd.Flags().IntVar(&scanDepth, "depth", -1, "officer network depth (0 disables expansion; -1 uses config)")
	scanCmd.Flags().IntVar(&scanMaxEntities, "max-entities", 0, "cap on total companies visited (0 uses config)")
	scanCmd.Flags().BoolVar(&scanActiveOnly, "active-only", true, "follow only active officer appointments")
	scanCmd.Flags().BoolVar(&scanNoCache, "no-cache", false, "skip the result cache and rescan everything")
	scanCmd.Flags().IntVar(&scanConcurrency, "concurrency", 0, "worker pool size (0 uses config)")
	scanCmd.Flags().StringVar(&scanOut, "out", "", "write the JSON result to this file instead of stdout")
	rootCmd.AddCommand(scanCmd)
}

func scanOptions() batch.Options {
	opts := batch.Options{
		Concurrency: cfg.Batch.Concurrency,
		JobTimeout:  time.Duration(cfg.Batch.JobTimeoutSecs) * time.Second,
		Network: network.Options{
			MaxDepth:    cfg.Network.MaxDepth,
			MaxEntities: cfg.Network.MaxEntities,
			ActiveOnly:  cfg.Network.ActiveOnly,
		},
		UseCache:      !scanNoCache,
		NameThreshold: cfg.Detect.NameThreshold,
	}
	if scanConcurrency > 0 {
		opts.Concurrency = scanConcurrency
	}
	if scanDepth >= 0 {
		opts.Network.MaxDepth = scanDepth
	}
	if scanMaxEntities > 0 {
		opts.Network.MaxEntities = scanMaxEntities
	}
	opts.Network.ActiveOnly = scanActiveOnly
	return opts
}

// readNumberFile reads one company number per line, skipping blanks and
// #-comments. Validation happens later, over the merged seed list.
func readNumberFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var numbers []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		numbers = append(numbers, line)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return numbers, nil
}

func writeResult(result *model.BatchResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode result")
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}
	zap.L().Info("result written", zap.String("path", path))
	return nil
}

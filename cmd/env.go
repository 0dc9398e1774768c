package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/signal-watch/signalwatch/internal/batch"
	"github.com/signal-watch/signalwatch/internal/cache"
	"github.com/signal-watch/signalwatch/internal/checkpoint"
	"github.com/signal-watch/signalwatch/internal/gateway"
	"github.com/signal-watch/signalwatch/internal/ratelimit"
)

// scanEnv bundles the wired collaborators behind a scan or resume run.
type scanEnv struct {
	Gateway     *gateway.Gateway
	Processor   *batch.Processor
	Checkpoints *checkpoint.SQLiteStore
	Results     *cache.SQLite
}

// initScan builds the full stack from config: HTTP client, shared budget,
// gateway, SQLite-backed checkpoint store and result cache, and the batch
// processor on top.
func initScan(ctx context.Context) (*scanEnv, error) {
	budget := ratelimit.New(ratelimit.Config{
		MaxRequests: cfg.RateLimit.MaxRequests,
		Window:      time.Duration(cfg.RateLimit.WindowSecs) * time.Second,
	})

	client := gateway.NewClient(gateway.ClientOptions{
		BaseURL:   cfg.Registry.BaseURL,
		APIKey:    cfg.Registry.Key,
		UserAgent: cfg.Registry.UserAgent,
		Timeout:   time.Duration(cfg.Registry.TimeoutSecs) * time.Second,
		SmoothRPS: float64(cfg.Registry.SmoothRPS),
	})
	gw := gateway.New(client, budget, gateway.Options{})

	checkpoints, err := checkpoint.NewSQLite(ctx, cfg.Checkpoint.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open checkpoint store")
	}

	results, err := cache.NewSQLite(ctx, cfg.Cache.Path, time.Duration(cfg.Cache.TTLDays)*24*time.Hour)
	if err != nil {
		checkpoints.Close()
		return nil, eris.Wrap(err, "open result cache")
	}

	env := &scanEnv{
		Gateway:     gw,
		Checkpoints: checkpoints,
		Results:     results,
	}
	env.Processor = batch.New(batch.Deps{
		Gateway:     gw,
		Results:     results,
		Checkpoints: checkpoints,
	})
	return env, nil
}

// logBudget reports how much of the shared request budget the run left, so an
// operator can tell whether another run fits inside the current window.
func (e *scanEnv) logBudget() {
	st := e.Gateway.BudgetStatus()
	fields := []zap.Field{
		zap.Int("remaining", st.Remaining),
		zap.Int("used", st.InFlight),
	}
	if !st.ResetsAt.IsZero() {
		fields = append(fields, zap.Time("resets_at", st.ResetsAt))
	}
	if !st.PausedUntil.IsZero() {
		fields = append(fields, zap.Time("paused_until", st.PausedUntil))
	}
	zap.L().Info("request budget", fields...)
}

func (e *scanEnv) Close() {
	if e.Results != nil {
		e.Results.Close()
	}
	if e.Checkpoints != nil {
		e.Checkpoints.Close()
	}
}

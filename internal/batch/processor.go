// Package batch drives multi-company scan runs: a bounded worker pool over
// per-company jobs, durable checkpoints after every state change, and resume
// that picks up exactly where a prior run stopped. A single company's failure
// never aborts the batch.
package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/signal-watch/signalwatch/internal/cache"
	"github.com/signal-watch/signalwatch/internal/checkpoint"
	"github.com/signal-watch/signalwatch/internal/detect"
	"github.com/signal-watch/signalwatch/internal/extract"
	"github.com/signal-watch/signalwatch/internal/gateway"
	"github.com/signal-watch/signalwatch/internal/model"
	"github.com/signal-watch/signalwatch/internal/network"
)

// Options configures one batch run.
type Options struct {
	// Concurrency bounds the worker pool. Defaults to 4.
	Concurrency int

	// JobTimeout bounds a single company's fetch-and-check work. Defaults
	// to 2 minutes.
	JobTimeout time.Duration

	// Network bounds officer-network expansion. MaxDepth 0 disables it.
	Network network.Options

	// UseCache serves previously scanned companies from the result cache
	// without touching the registry.
	UseCache bool

	// NameThreshold overrides the detector's name similarity threshold
	// when positive.
	NameThreshold float64
}

func (o *Options) applyDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 2 * time.Minute
	}
}

// signature keys the result cache so scans run with different detection
// settings never serve each other's reports.
func (o Options) signature() string {
	t := o.NameThreshold
	if t <= 0 {
		t = detect.DefaultConfig().NameThreshold
	}
	return fmt.Sprintf("v1:t%.2f", t)
}

// Deps are the collaborators a Processor needs. Results and Checkpoints may
// be nil, which disables caching and checkpointing respectively.
type Deps struct {
	Gateway     *gateway.Gateway
	Extractor   extract.DocumentExtractor
	Results     cache.ResultCache
	Checkpoints checkpoint.Store
}

// Processor runs batches. It is safe to reuse across runs, but runs must not
// overlap: they share the checkpoint store's single latest-run slot.
type Processor struct {
	deps Deps
}

// New creates a Processor. A nil Extractor falls back to the no-op extractor.
func New(deps Deps) *Processor {
	if deps.Extractor == nil {
		deps.Extractor = extract.Noop{}
	}
	return &Processor{deps: deps}
}

// Run validates seeds, then scans every company (plus any network
// discoveries) and returns the collected result. On cancellation it writes a
// final checkpoint and returns the partial result together with the context
// error, so callers see both what finished and why the run stopped.
func (p *Processor) Run(ctx context.Context, seeds []string, opts Options) (*model.BatchResult, error) {
	opts.applyDefaults()

	numbers, err := normalizeSeeds(seeds)
	if err != nil {
		return nil, err
	}

	r := p.newRun(uuid.NewString(), opts)
	for _, n := range numbers {
		r.addJob(n, 0)
	}
	if r.scanner != nil {
		r.scanner.Seed(numbers)
	}

	zap.L().Info("batch started",
		zap.String("run_id", r.runID),
		zap.Int("companies", len(numbers)),
		zap.Int("concurrency", opts.Concurrency),
		zap.Int("network_depth", opts.Network.MaxDepth),
	)
	return r.execute(ctx)
}

// Resume loads the latest checkpoint and continues that run: jobs caught
// in_progress go back to pending, finished jobs are never re-executed, and
// recorded network depths are kept verbatim. A corrupt or
// incompatible checkpoint fails closed rather than silently rescanning.
func (p *Processor) Resume(ctx context.Context, opts Options) (*model.BatchResult, error) {
	opts.applyDefaults()
	if p.deps.Checkpoints == nil {
		return nil, eris.New("resume requires a checkpoint store")
	}

	cp, err := p.deps.Checkpoints.LoadLatest(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "load checkpoint")
	}
	if cp == nil {
		return nil, eris.New("no checkpoint to resume")
	}

	r := p.newRun(cp.RunID, opts)
	r.seq = cp.Sequence
	r.baseRequests = cp.Counters.RequestsConsumed

	requeued := 0
	for i := range cp.Jobs {
		job := cp.Jobs[i]
		if job.Status == model.JobInProgress {
			job.Status = model.JobPending
			job.StartedAt = time.Time{}
			requeued++
		}
		r.putJob(&job)
	}
	for _, f := range cp.Frontier {
		r.addJob(f.EntityNumber, f.Depth)
	}
	if r.scanner != nil {
		snap := network.Snapshot{
			Visited:   make(map[string]int, len(cp.Visited)),
			Officers:  cp.Officers,
			Edges:     cp.Edges,
			Truncated: cp.Truncated,
		}
		for _, v := range cp.Visited {
			snap.Visited[v.EntityNumber] = v.Depth
		}
		r.scanner.Restore(snap)
	}

	zap.L().Info("batch resumed",
		zap.String("run_id", cp.RunID),
		zap.Uint64("sequence", cp.Sequence),
		zap.Int("jobs", len(cp.Jobs)),
		zap.Int("requeued", requeued),
	)
	return r.execute(ctx)
}

// run is the mutable state of one batch execution.
type run struct {
	p        *Processor
	opts     Options
	runID    string
	detector *detect.Detector
	scanner  *network.Scanner

	mu    sync.Mutex
	jobs  map[string]*model.ScanJob
	order []string
	seq   uint64

	baseRequests int
	gwStart      int64
	startedAt    time.Time
}

func (p *Processor) newRun(runID string, opts Options) *run {
	cfg := detect.DefaultConfig()
	if opts.NameThreshold > 0 {
		cfg.NameThreshold = opts.NameThreshold
	}
	r := &run{
		p:         p,
		opts:      opts,
		runID:     runID,
		detector:  detect.New(cfg),
		jobs:      make(map[string]*model.ScanJob),
		gwStart:   p.deps.Gateway.RequestsConsumed(),
		startedAt: time.Now().UTC(),
	}
	if opts.Network.MaxDepth > 0 {
		r.scanner = network.NewScanner(p.deps.Gateway, opts.Network)
	}
	return r
}

// execute runs the wave loop until no pending jobs remain or ctx is
// cancelled. Each wave processes the current pending set under the worker
// limit; network discoveries collected between waves become the next wave.
func (r *run) execute(ctx context.Context) (*model.BatchResult, error) {
	if r.scanner != nil {
		r.scanner.Start(ctx)
		defer r.scanner.Close()
	}

	var runErr error
	for runErr == nil {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		wave := r.pendingNumbers()
		if len(wave) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.opts.Concurrency)
		for _, number := range wave {
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.processJob(gctx, number)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			runErr = err
			break
		}

		if r.scanner != nil {
			if err := r.scanner.Flush(ctx); err != nil {
				runErr = err
				break
			}
			discoveries := r.scanner.TakeDiscoveries()
			for _, d := range discoveries {
				r.addJob(d.EntityNumber, d.Depth)
			}
			if len(discoveries) > 0 {
				r.saveCheckpoint(ctx)
			}
		}
	}

	// The final checkpoint must land even when the run was cancelled.
	r.saveCheckpoint(context.WithoutCancel(ctx))

	result := r.buildResult(runErr != nil)
	if runErr == nil && r.p.deps.Checkpoints != nil {
		if err := r.p.deps.Checkpoints.Archive(context.WithoutCancel(ctx), r.runID); err != nil {
			zap.L().Warn("archive checkpoint failed", zap.Error(err))
		}
	}

	summary := result.Summarize()
	zap.L().Info("batch finished",
		zap.String("run_id", r.runID),
		zap.Int("done", summary.Done),
		zap.Int("failed", summary.Failed),
		zap.Int("from_cache", summary.FromCache),
		zap.Int("mismatches", summary.Mismatches),
		zap.Int("edges", summary.Edges),
		zap.Bool("partial", result.Partial),
	)
	return result, runErr
}

func (r *run) addJob(number string, depth int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[number]; ok {
		return
	}
	r.jobs[number] = &model.ScanJob{
		EntityNumber: number,
		Status:       model.JobPending,
		Depth:        depth,
	}
	r.order = append(r.order, number)
}

func (r *run) putJob(job *model.ScanJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.EntityNumber]; ok {
		return
	}
	r.jobs[job.EntityNumber] = job
	r.order = append(r.order, job.EntityNumber)
}

func (r *run) pendingNumbers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.order {
		if r.jobs[n].Status == model.JobPending {
			out = append(out, n)
		}
	}
	return out
}

// saveCheckpoint snapshots all run state and persists it with the next
// sequence number. Serialized by the run mutex so sequences stay monotonic.
func (r *run) saveCheckpoint(ctx context.Context) {
	if r.p.deps.Checkpoints == nil {
		return
	}

	r.mu.Lock()
	r.seq++
	cp := &model.Checkpoint{
		RunID:         r.runID,
		Sequence:      r.seq,
		SchemaVersion: model.CheckpointSchemaVersion,
		Jobs:          make([]model.ScanJob, 0, len(r.jobs)),
		Counters:      r.countersLocked(),
		WrittenAt:     time.Now().UTC(),
	}
	for _, n := range r.order {
		job := r.jobs[n]
		cp.Jobs = append(cp.Jobs, *job)
		if job.Status == model.JobPending {
			cp.Frontier = append(cp.Frontier, model.FrontierItem{EntityNumber: n, Depth: job.Depth})
		}
	}
	r.mu.Unlock()

	if r.scanner != nil {
		snap := r.scanner.Snapshot()
		cp.Edges = snap.Edges
		cp.Officers = snap.Officers
		cp.Truncated = snap.Truncated
		cp.Visited = make([]model.FrontierItem, 0, len(snap.Visited))
		for n, d := range snap.Visited {
			cp.Visited = append(cp.Visited, model.FrontierItem{EntityNumber: n, Depth: d})
		}
		sort.Slice(cp.Visited, func(i, j int) bool {
			return cp.Visited[i].EntityNumber < cp.Visited[j].EntityNumber
		})
	}

	if err := r.p.deps.Checkpoints.Save(ctx, cp); err != nil {
		zap.L().Error("checkpoint save failed",
			zap.String("run_id", r.runID),
			zap.Uint64("sequence", cp.Sequence),
			zap.Error(err),
		)
	}
}

func (r *run) countersLocked() model.Counters {
	visited := 0
	for _, job := range r.jobs {
		if job.Status.Terminal() {
			visited++
		}
	}
	return model.Counters{
		EntitiesVisited:  visited,
		RequestsConsumed: r.baseRequests + int(r.p.deps.Gateway.RequestsConsumed()-r.gwStart),
	}
}

func (r *run) buildResult(partial bool) *model.BatchResult {
	r.mu.Lock()
	result := &model.BatchResult{
		RunID:      r.runID,
		Reports:    make([]model.EntityReport, 0, len(r.order)),
		Counters:   r.countersLocked(),
		Partial:    partial,
		StartedAt:  r.startedAt,
		FinishedAt: time.Now().UTC(),
	}
	for _, n := range r.order {
		job := r.jobs[n]
		rep := model.EntityReport{
			EntityNumber: job.EntityNumber,
			EntityName:   job.EntityName,
			Status:       job.Status,
			ErrorKind:    job.ErrorKind,
			Error:        job.LastError,
			FromCache:    job.FromCache,
			Mismatches:   job.Mismatches,
		}
		if rep.Mismatches == nil {
			rep.Mismatches = []model.Mismatch{}
		}
		result.Reports = append(result.Reports, rep)
	}
	r.mu.Unlock()

	if r.scanner != nil {
		result.Edges = r.scanner.Edges()
		result.Truncated = r.scanner.Truncated()
	}
	return result
}

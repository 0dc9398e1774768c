package batch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/signal-watch/signalwatch/internal/cache"
	"github.com/signal-watch/signalwatch/internal/detect"
	"github.com/signal-watch/signalwatch/internal/gateway"
	"github.com/signal-watch/signalwatch/internal/model"
)

// processJob runs one company through the cache, fetch, extraction, and
// detection stages. Failures are recorded on the job and never propagate;
// the batch keeps going.
func (r *run) processJob(ctx context.Context, number string) {
	log := zap.L().With(
		zap.String("run_id", r.runID),
		zap.String("company", number),
	)

	r.mu.Lock()
	job := r.jobs[number]
	if job == nil || job.Status != model.JobPending {
		r.mu.Unlock()
		return
	}
	job.Status = model.JobInProgress
	job.Attempts++
	job.StartedAt = time.Now().UTC()
	r.mu.Unlock()

	if r.opts.UseCache && r.p.deps.Results != nil {
		if rep := r.cachedReport(ctx, number, log); rep != nil {
			r.finishFromCache(ctx, job, rep)
			return
		}
	}

	jctx, cancel := context.WithTimeout(ctx, r.opts.JobTimeout)
	defer cancel()

	profile, err := r.p.deps.Gateway.GetProfile(jctx, number)
	if err != nil {
		r.fail(ctx, job, "fetch profile", err, log)
		return
	}

	filings, err := r.p.deps.Gateway.GetFilings(jctx, number)
	if err != nil {
		r.fail(ctx, job, "fetch filings", err, log)
		return
	}

	fragments := r.extractFragments(jctx, filings, log)
	mismatches := r.detector.Detect(detect.Canonical{
		EntityNumber:   number,
		Name:           profile.Name,
		IncorporatedOn: profile.IncorporatedOn,
	}, fragments)

	if r.scanner != nil {
		officers, err := r.p.deps.Gateway.GetOfficers(jctx, number)
		if err != nil {
			// Network expansion is best-effort; the company's own checks
			// already succeeded.
			log.Warn("officer fetch failed, skipping network expansion", zap.Error(err))
		} else if err := r.scanner.Submit(jctx, number, officers); err != nil {
			log.Warn("network submission dropped", zap.Error(err))
		}
	}

	r.finish(ctx, job, profile.Name, mismatches)
	r.storeReport(ctx, job, log)

	log.Info("company scanned",
		zap.String("name", profile.Name),
		zap.Int("filings", len(filings)),
		zap.Int("mismatches", len(mismatches)),
	)
}

// extractFragments runs the extractor over each filing and turns usable text
// into name and date fragments. Unusable or failed extractions shrink the
// fragment set; they never fail the job.
func (r *run) extractFragments(ctx context.Context, filings []model.Document, log *zap.Logger) []detect.Fragment {
	var fragments []detect.Fragment
	for _, doc := range filings {
		ex, err := r.p.deps.Extractor.Extract(ctx, doc)
		if err != nil {
			log.Warn("document extraction failed",
				zap.String("document_id", doc.ID),
				zap.Error(err),
			)
			continue
		}
		if !ex.Usable() {
			continue
		}
		fragments = append(fragments,
			detect.Fragment{Text: ex.Text, DocumentID: doc.ID, Field: detect.FieldName},
			detect.Fragment{Text: ex.Text, DocumentID: doc.ID, Field: detect.FieldDate},
		)
	}
	return fragments
}

func (r *run) cachedReport(ctx context.Context, number string, log *zap.Logger) *model.EntityReport {
	rep, err := r.p.deps.Results.Get(ctx, cache.Key(number, r.opts.signature()))
	if err != nil {
		log.Warn("result cache read failed", zap.Error(err))
		return nil
	}
	if rep != nil {
		log.Debug("serving from result cache")
	}
	return rep
}

func (r *run) storeReport(ctx context.Context, job *model.ScanJob, log *zap.Logger) {
	if !r.opts.UseCache || r.p.deps.Results == nil {
		return
	}
	r.mu.Lock()
	rep := &model.EntityReport{
		EntityNumber: job.EntityNumber,
		EntityName:   job.EntityName,
		Status:       job.Status,
		Mismatches:   job.Mismatches,
	}
	r.mu.Unlock()
	if err := r.p.deps.Results.Put(ctx, cache.Key(job.EntityNumber, r.opts.signature()), rep); err != nil {
		log.Warn("result cache write failed", zap.Error(err))
	}
}

func (r *run) finish(ctx context.Context, job *model.ScanJob, name string, mismatches []model.Mismatch) {
	r.mu.Lock()
	job.Status = model.JobDone
	job.EntityName = name
	job.Mismatches = mismatches
	job.FinishedAt = time.Now().UTC()
	r.mu.Unlock()
	r.saveCheckpoint(ctx)
}

func (r *run) finishFromCache(ctx context.Context, job *model.ScanJob, rep *model.EntityReport) {
	r.mu.Lock()
	job.Status = model.JobDone
	job.EntityName = rep.EntityName
	job.Mismatches = rep.Mismatches
	job.FromCache = true
	job.FinishedAt = time.Now().UTC()
	r.mu.Unlock()
	r.saveCheckpoint(ctx)
}

func (r *run) fail(ctx context.Context, job *model.ScanJob, stage string, err error, log *zap.Logger) {
	// A job interrupted by run cancellation is not a failure: it goes back
	// to pending so resume re-executes it.
	if ctx.Err() != nil {
		r.mu.Lock()
		job.Status = model.JobPending
		job.StartedAt = time.Time{}
		r.mu.Unlock()
		return
	}

	kind := "internal"
	if ae, ok := gateway.AsApiError(err); ok {
		kind = string(ae.Kind)
	}

	r.mu.Lock()
	job.Status = model.JobFailed
	job.LastError = err.Error()
	job.ErrorKind = kind
	job.FinishedAt = time.Now().UTC()
	r.mu.Unlock()
	r.saveCheckpoint(ctx)

	log.Warn("company scan failed",
		zap.String("stage", stage),
		zap.String("error_kind", kind),
		zap.Error(err),
	)
}

// Package service orchestrates a full monthly run: download receipts,
// extract fields in batches, reconcile against the roster and merge the
// results into the archive ledger, reporting progress throughout. It
// also exposes the HTTP surface that starts runs and serves progress.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/quarkcity/meal-ledger/internal/extraction"
	"github.com/quarkcity/meal-ledger/internal/ledger"
	"github.com/quarkcity/meal-ledger/internal/pipeline"
	"github.com/quarkcity/meal-ledger/internal/reconcile"
)

// scheduler runs the extraction phase over the month's images.
type scheduler interface {
	Run(ctx context.Context, images []extraction.SourceImage, onProgress pipeline.ProgressFunc) (pipeline.Result, error)
}

// reconciler turns staged extractions into ledger-ready records.
type reconciler interface {
	Reconcile(ctx context.Context, records []*extraction.RawExtraction, roster []reconcile.RosterEntry) ([]*reconcile.Record, error)
}

// merger writes reconciled rows into the archive ledger.
type merger interface {
	Merge(ctx context.Context, header []string, rows [][]string, appendMode bool) error
	Compact(ctx context.Context) error
}

// Runner wires the pipeline stages together and executes runs
// asynchronously, one goroutine per job.
type Runner struct {
	source    Source
	scheduler scheduler
	staging   pipeline.Staging
	roster    ledger.Sheet
	rec       reconciler
	merger    merger
	progress  *pipeline.ProgressStore
}

// NewRunner creates a new Runner.
func NewRunner(
	source Source,
	sched scheduler,
	staging pipeline.Staging,
	roster ledger.Sheet,
	rec reconciler,
	merger merger,
	progress *pipeline.ProgressStore,
) *Runner {
	return &Runner{
		source:    source,
		scheduler: sched,
		staging:   staging,
		roster:    roster,
		rec:       rec,
		merger:    merger,
		progress:  progress,
	}
}

// Start launches a run in the background and returns its job id. The
// caller polls progress by job id.
func (r *Runner) Start(monthFolder string, appendMode bool) string {
	jobID := uuid.NewString()
	r.progress.Create(jobID)

	go func() {
		if err := r.run(context.Background(), jobID, monthFolder, appendMode); err != nil {
			slog.Error("Run failed", "job_id", jobID, "month", monthFolder, "error", err)
			r.progress.Fail(jobID, err)
		}
	}()

	slog.Info("Run started", "job_id", jobID, "month", monthFolder, "append", appendMode)
	return jobID
}

// Progress returns the current status of a job.
func (r *Runner) Progress(jobID string) (pipeline.JobStatus, bool) {
	return r.progress.Get(jobID)
}

// run executes one monthly run end to end.
func (r *Runner) run(ctx context.Context, jobID, monthFolder string, appendMode bool) error {
	r.progress.Update(jobID, 5, "Fetching receipt images...")

	if err := r.staging.Reset(); err != nil {
		return fmt.Errorf("resetting staging store: %w", err)
	}

	images, err := r.source.Images(ctx, monthFolder)
	if err != nil {
		return fmt.Errorf("fetching images: %w", err)
	}
	r.progress.Update(jobID, 15, fmt.Sprintf("Fetched %d receipt images", len(images)))

	r.progress.Update(jobID, 25, "Starting OCR extraction...")
	result, err := r.scheduler.Run(ctx, images, func(progress int, status string) {
		r.progress.Update(jobID, progress, status)
	})
	if err != nil {
		return fmt.Errorf("running extraction: %w", err)
	}

	staged, err := r.staging.List()
	if err != nil {
		return fmt.Errorf("listing staged extractions: %w", err)
	}

	r.progress.Update(jobID, 90, "Reconciling records against employee data...")
	rosterRows, err := r.roster.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("reading roster: %w", err)
	}

	records, err := r.rec.Reconcile(ctx, staged, reconcile.ParseRoster(rosterRows))
	if err != nil {
		return fmt.Errorf("reconciling records: %w", err)
	}

	r.progress.Update(jobID, 95, "Writing ledger...")
	if err := r.merger.Merge(ctx, ledger.Header(), ledger.Rows(records), appendMode); err != nil {
		return fmt.Errorf("merging ledger: %w", err)
	}

	r.progress.Update(jobID, 98, "Compacting ledger...")
	if err := r.merger.Compact(ctx); err != nil {
		return fmt.Errorf("compacting ledger: %w", err)
	}

	slog.Info("Run finished",
		"job_id", jobID,
		"month", monthFolder,
		"processed", result.Processed,
		"timed_out", result.TimedOut,
		"failed", result.Failed,
	)
	r.progress.Complete(jobID, result.Processed, "Processing completed successfully")
	return nil
}

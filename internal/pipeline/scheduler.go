// Package pipeline drives concurrent field extraction over a batch of
// receipt images: fixed-size batches, a bounded worker pool per batch,
// per-task timeouts, an at-most-once staging store and coarse-grained
// progress reporting keyed by job id.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quarkcity/meal-ledger/internal/config"
	"github.com/quarkcity/meal-ledger/internal/extraction"
)

// ErrNoImages is returned when a run is started with zero images. It is
// the only condition that makes the extraction phase fatal.
var ErrNoImages = errors.New("no images found")

// extraction progress runs from 35% up to just below the post-processing
// phase, which starts at 90%
const (
	extractionBaseProgress = 35
	extractionStepProgress = 10
	extractionMaxProgress  = 85
)

// Extractor defines the interface the scheduler drives for each image.
type Extractor interface {
	Extract(ctx context.Context, img extraction.SourceImage) (*extraction.RawExtraction, error)
}

// ProgressFunc receives a monotonically non-decreasing percentage and a
// human-readable status line after each batch. It runs on the scheduler's
// control goroutine and must not block.
type ProgressFunc func(progress int, status string)

// Result counts task outcomes for one run. Failures are per-item and
// non-fatal; a timed-out task is abandoned without retry.
type Result struct {
	Processed int
	TimedOut  int
	Failed    int
}

// Scheduler partitions images into batches and runs bounded concurrent
// extraction within each batch. Batches are strictly sequential relative
// to each other.
type Scheduler struct {
	extractor Extractor
	staging   Staging
	cfg       config.Scheduler
}

// NewScheduler creates a new Scheduler. Zero config values fall back to
// the defaults (batch size 20, 4 workers, 30s task timeout).
func NewScheduler(extractor Extractor, staging Staging, cfg config.Scheduler) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}
	return &Scheduler{
		extractor: extractor,
		staging:   staging,
		cfg:       cfg,
	}
}

// Run processes every image exactly once and stages each successful
// extraction. Individual task failures and timeouts are absorbed and
// counted; the scheduler never aborts early on them.
func (s *Scheduler) Run(ctx context.Context, images []extraction.SourceImage, onProgress ProgressFunc) (Result, error) {
	if len(images) == 0 {
		return Result{}, ErrNoImages
	}

	batches := partition(images, s.cfg.BatchSize)

	var processed, timedOut, failed atomic.Int64
	var stagingMu sync.Mutex

	for i, batch := range batches {
		report(onProgress, batchProgress(i+1), fmt.Sprintf("Processing OCR batch %d/%d...", i+1, len(batches)))

		g := new(errgroup.Group)
		g.SetLimit(s.cfg.Workers)

		for _, img := range batch {
			img := img
			g.Go(func() error {
				taskCtx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
				defer cancel()

				rec, err := s.extractor.Extract(taskCtx, img)
				switch {
				case err == nil:
					// The lock covers only the single staging append,
					// never the extraction itself
					stagingMu.Lock()
					err = s.staging.Put(rec)
					stagingMu.Unlock()
					if err != nil {
						slog.Warn("Failed to stage extraction", "image", img.Path, "error", err)
						failed.Add(1)
						return nil
					}
					processed.Add(1)
				case errors.Is(err, context.DeadlineExceeded):
					slog.Warn("Extraction timed out", "image", img.Path, "timeout", s.cfg.TaskTimeout)
					timedOut.Add(1)
				default:
					slog.Warn("Extraction failed", "image", img.Path, "error", err)
					failed.Add(1)
				}
				return nil
			})
		}

		// Task funcs never return errors; failures are counted per item
		_ = g.Wait()
	}

	result := Result{
		Processed: int(processed.Load()),
		TimedOut:  int(timedOut.Load()),
		Failed:    int(failed.Load()),
	}

	slog.Info("Extraction run finished",
		"images", len(images),
		"batches", len(batches),
		"processed", result.Processed,
		"timed_out", result.TimedOut,
		"failed", result.Failed,
	)

	return result, nil
}

// partition splits images into consecutive batches of size batchSize; the
// final batch may be short.
func partition(images []extraction.SourceImage, batchSize int) [][]extraction.SourceImage {
	var batches [][]extraction.SourceImage
	for start := 0; start < len(images); start += batchSize {
		end := start + batchSize
		if end > len(images) {
			end = len(images)
		}
		batches = append(batches, images[start:end])
	}
	return batches
}

// batchProgress maps a 1-based batch index to the documented percentage,
// capped below the post-processing phase.
func batchProgress(batchIndex int) int {
	p := extractionBaseProgress + extractionStepProgress*(batchIndex-1)
	if p > extractionMaxProgress {
		p = extractionMaxProgress
	}
	return p
}

// report invokes the progress callback when one is set. Reporting is best
// effort and never fails the run.
func report(onProgress ProgressFunc, progress int, status string) {
	if onProgress == nil {
		return
	}
	onProgress(progress, status)
}

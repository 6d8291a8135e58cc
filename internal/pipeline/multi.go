package pipeline

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrAllCitiesFailed is returned by RunAll when not a single city produced
// output. Partial failure is normal operation; total failure is not.
var ErrAllCitiesFailed = eris.New("pipeline: every city failed")

// BatchReport is the run-level audit record written as batch_report.json.
type BatchReport struct {
	RunID     string       `json:"run_id"`
	StartedAt time.Time    `json:"started_at"`
	Duration  int64        `json:"duration_ms"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Cities    []CityResult `json:"cities"`
}

// RunAll processes every city with bounded concurrency. One city's failure is
// recorded and never aborts the others; context cancellation does abort the
// batch. The report is written even when cities fail, and the error return is
// non-nil only when no city succeeded.
func (r *Runner) RunAll(ctx context.Context, descs []CityDescriptor) (*BatchReport, error) {
	report := &BatchReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", report.RunID))
	log.Info("starting batch",
		zap.Int("cities", len(descs)),
		zap.Int("concurrency", r.concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	var succeeded, failed atomic.Int64
	var mu sync.Mutex

	for _, desc := range descs {
		desc := desc
		g.Go(func() error {
			result, err := r.RunCity(gctx, desc)
			if err != nil {
				failed.Add(1)
				log.Error("city failed", zap.String("city", desc.Name), zap.Error(err))
			} else {
				succeeded.Add(1)
			}
			mu.Lock()
			report.Cities = append(report.Cities, *result)
			mu.Unlock()
			return nil // individual failures never abort the batch
		})
	}

	if err := g.Wait(); err != nil {
		return report, eris.Wrap(err, "pipeline: batch")
	}

	// Worker completion order is nondeterministic; the report is not.
	sort.Slice(report.Cities, func(i, j int) bool {
		return report.Cities[i].City < report.Cities[j].City
	})

	report.Succeeded = int(succeeded.Load())
	report.Failed = int(failed.Load())
	report.Duration = time.Since(report.StartedAt).Milliseconds()

	if err := r.writeBatchReport(report); err != nil {
		return report, err
	}

	log.Info("batch complete",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int64("duration_ms", report.Duration),
	)

	if len(descs) > 0 && report.Succeeded == 0 {
		return report, eris.Wrapf(ErrAllCitiesFailed, "%d cities attempted", len(descs))
	}
	return report, nil
}

package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/company-extractor/internal/model"
)

// BatchOptions bounds a batch run. Zero values mean one company at a time
// and no start-rate limit.
type BatchOptions struct {
	MaxConcurrent int
	RatePerSec    float64
}

// RunBatch processes companies independently. Results are returned in
// input order; a blank name yields a Failed result for the input stage.
// The error is non-nil only when ctx ends before every run has started,
// in which case the unstarted entries are nil.
func (p *Pipeline) RunBatch(ctx context.Context, names []string, opts BatchOptions) ([]*Result, error) {
	results := make([]*Result, len(names))
	if len(names) == 0 {
		return results, nil
	}

	limit := opts.MaxConcurrent
	if limit < 1 {
		limit = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}

	log := zap.L().With(zap.Int("companies", len(names)))
	log.Info("pipeline: starting batch",
		zap.Int("max_concurrent", limit),
		zap.Float64("rate_per_sec", opts.RatePerSec),
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, name := range names {
		g.Go(func() error {
			if err := limiter.Wait(gCtx); err != nil {
				return err
			}
			res, err := p.Run(gCtx, name)
			if err != nil {
				res = &Result{
					Company: name,
					State:   StateFailed,
					Failure: &Failure{Stage: "input", Kind: model.KindOf(err), Reason: err.Error()},
				}
			}
			results[i] = res
			return nil
		})
	}
	err := g.Wait()

	var saved, failed, persistFailed int
	for _, res := range results {
		switch {
		case res == nil:
		case res.State == StateFailed:
			failed++
		case res.PersistErr != "":
			persistFailed++
		default:
			saved++
		}
	}
	log.Info("pipeline: batch complete",
		zap.Int("saved", saved),
		zap.Int("failed", failed),
		zap.Int("persist_failed", persistFailed),
	)
	return results, err
}

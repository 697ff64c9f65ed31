package orchestrator

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	types "github.com/yungbote/artforge-backend/internal/domain"
)

const busyBackoff = 250 * time.Millisecond

type CollectionOptions struct {
	// MaxRuns caps the number of tasks started; zero means until the target is met.
	MaxRuns int
	// Interval is the minimum spacing between task starts.
	Interval time.Duration
	// IgnoreTarget keeps running after the collection target is reached.
	IgnoreTarget bool
}

type CollectionReport struct {
	Runs      int `json:"runs"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Stopped   int `json:"stopped"`
	Remaining int `json:"remaining"`
}

// RunCollection runs tasks back to back, paced by a rate limiter, until the
// target is met, MaxRuns is reached or ctx ends. Failed tasks do not end the
// loop.
func (r *Runner) RunCollection(ctx context.Context, opts CollectionOptions) (CollectionReport, error) {
	var rep CollectionReport
	if opts.MaxRuns <= 0 && opts.IgnoreTarget {
		return rep, errors.New("collection: unbounded run needs MaxRuns or the target")
	}
	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)
	log := r.log.With("component", "CollectionRunner")

	for opts.MaxRuns <= 0 || rep.Runs < opts.MaxRuns {
		st, err := r.deps.History.Counts(ctx)
		if err != nil {
			return rep, err
		}
		rep.Remaining = st.Remaining
		if !opts.IgnoreTarget && st.Remaining == 0 {
			log.Info("Collection target reached", "target", st.Target, "generated", st.Generated)
			return rep, nil
		}
		if err := limiter.Wait(ctx); err != nil {
			return rep, ctxErr(ctx, err)
		}

		task, err := r.RunOnce(ctx)
		if errors.Is(err, ErrTaskInProgress) {
			log.Debug("Task already running, waiting")
			r.Wait()
			select {
			case <-ctx.Done():
				return rep, ctx.Err()
			case <-time.After(busyBackoff):
			}
			continue
		}
		rep.Runs++
		if task != nil {
			switch task.Status {
			case types.TaskCompleted:
				rep.Completed++
			case types.TaskFailed:
				rep.Failed++
			case types.TaskStopped:
				rep.Stopped++
			}
		}
		if err != nil {
			log.Warn("Collection run failed", "run", rep.Runs, "error", err)
		}
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
	}
	if st, err := r.deps.History.Counts(ctx); err == nil {
		rep.Remaining = st.Remaining
	}
	return rep, nil
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

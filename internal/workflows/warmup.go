package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// TaskQueue is the default queue the warm-up worker polls.
const TaskQueue = "nightmap-geocode"

// WarmupInput is the input for the geocode warm-up workflow.
type WarmupInput struct {
	// Limit caps how many venues one run handles. Zero means all.
	Limit int
	// BatchSize is how many geocodes run in parallel. Defaults to 8.
	BatchSize int
}

// WarmupResult summarizes one run.
type WarmupResult struct {
	Pending  int
	Resolved int
	Cached   int
	Missing  int
	Failed   int
}

// GeocodeWarmupWorkflow geocodes venues that have an address but no stored
// coordinate, filling the shared geocode cache and the venue rows so map
// sessions draw them synchronously. Individual failures are counted, not
// fatal.
func GeocodeWarmupWorkflow(ctx workflow.Context, input WarmupInput) (WarmupResult, error) {
	logger := workflow.GetLogger(ctx)
	batch := input.BatchSize
	if batch <= 0 {
		batch = 8
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	})

	var pending []PendingVenue
	if err := workflow.ExecuteActivity(ctx, "ListPendingVenues", input.Limit).Get(ctx, &pending); err != nil {
		return WarmupResult{}, err
	}
	res := WarmupResult{Pending: len(pending)}
	logger.Info("Starting geocode warm-up", "pending", len(pending))

	for start := 0; start < len(pending); start += batch {
		end := min(start+batch, len(pending))

		futures := make([]workflow.Future, 0, end-start)
		for _, v := range pending[start:end] {
			futures = append(futures, workflow.ExecuteActivity(ctx, "GeocodeVenue", v))
		}

		for i, f := range futures {
			v := pending[start+i]
			var out GeocodeOutcome
			if err := f.Get(ctx, &out); err != nil {
				logger.Warn("geocode failed", "venueID", v.ID, "error", err)
				res.Failed++
				continue
			}
			if !out.Found {
				res.Missing++
				continue
			}
			if err := workflow.ExecuteActivity(ctx, "StoreLocation", v.ID, v.Address, out.Location).Get(ctx, nil); err != nil {
				logger.Warn("store location failed", "venueID", v.ID, "error", err)
				res.Failed++
				continue
			}
			res.Resolved++
			if out.Cached {
				res.Cached++
			}
		}
	}

	logger.Info("Geocode warm-up finished", "resolved", res.Resolved, "missing", res.Missing, "failed", res.Failed)
	return res, nil
}

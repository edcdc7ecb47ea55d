package events

import (
	"context"
	"time"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

const (
	RelayWorkflowID = "coast-outbox-relay"
	// Rounds run by one workflow execution before it continues as new, which
	// keeps the event history bounded.
	roundsPerRun = 500
)

type RelayInput struct {
	Interval  time.Duration `json:"interval"`
	BatchSize int           `json:"batchSize"`
	// Rounds limits the run to a fixed number of drains. Zero means run
	// forever, continuing as new every roundsPerRun drains.
	Rounds int `json:"rounds,omitempty"`
}

type RelayResult struct {
	Rounds    int `json:"rounds"`
	Delivered int `json:"delivered"`
}

// Activities exposes the dispatcher to Temporal.
type Activities struct {
	Dispatcher *Dispatcher
}

// DrainOutbox delivers one batch. A partial failure fails the activity so
// the retry policy re-runs it; events already delivered are skipped by the
// outbox claim.
func (a *Activities) DrainOutbox(ctx context.Context, batchSize int) (int, error) {
	return a.Dispatcher.Drain(ctx, batchSize)
}

// RelayOutbox drains the outbox in rounds with a sleep in between. Each
// drain is an activity with exponential-backoff retries.
func RelayOutbox(ctx workflow.Context, in RelayInput) (RelayResult, error) {
	logger := workflow.GetLogger(ctx)

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	interval := in.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	limit := in.Rounds
	if limit <= 0 {
		limit = roundsPerRun
	}

	var res RelayResult
	for res.Rounds < limit {
		var n int
		var a *Activities
		if err := workflow.ExecuteActivity(ctx, a.DrainOutbox, in.BatchSize).Get(ctx, &n); err != nil {
			// Retries are exhausted; the events stay pending for the next round.
			logger.Warn("outbox drain failed", "round", res.Rounds, "error", err)
		}
		res.Rounds++
		res.Delivered += n

		if res.Rounds < limit {
			if err := workflow.Sleep(ctx, interval); err != nil {
				return res, err
			}
		}
	}

	if in.Rounds == 0 {
		return res, workflow.NewContinueAsNewError(ctx, RelayOutbox, in)
	}
	return res, nil
}

// NewWorker registers the relay workflow and its activities on taskQueue.
func NewWorker(c client.Client, taskQueue string, d *Dispatcher) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(RelayOutbox)
	w.RegisterActivity(&Activities{Dispatcher: d})
	return w
}

// StartRelay ensures exactly one relay workflow is running. Calling it
// again while the relay runs attaches to the existing execution.
func StartRelay(ctx context.Context, c client.Client, taskQueue string, in RelayInput) (client.WorkflowRun, error) {
	opts := client.StartWorkflowOptions{
		ID:                       RelayWorkflowID,
		TaskQueue:                taskQueue,
		WorkflowIDReusePolicy:    enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowIDConflictPolicy: enums.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
	}
	return c.ExecuteWorkflow(ctx, opts, RelayOutbox, in)
}

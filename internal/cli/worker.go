package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/lankyjo/coast/internal/events"
)

type WorkerOptions struct {
	*RootOptions
	BatchSize int
	NoStart   bool
}

func NewWorkerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WorkerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Deliver pending side effects through Temporal",
		Long: `Run a Temporal worker for the outbox relay workflow.

The worker also starts the relay workflow unless it is already running, so
one "coast worker" next to "coast serve --relay=false" is enough.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.BatchSize, "batch", 100, "events delivered per drain")
	cmd.Flags().BoolVar(&opts.NoStart, "no-start", false, "only poll, do not start the relay workflow")

	return cmd
}

func runWorker(cmd *cobra.Command, opts *WorkerOptions) error {
	cfg := opts.Config
	logger := opts.Logger

	rt, err := opts.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("unable to create Temporal client: %w", err)
	}
	defer c.Close()

	w := events.NewWorker(c, cfg.Temporal.TaskQueue, rt.dispatcher)
	if err := w.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	defer w.Stop()
	logger.Info("worker started", "task_queue", cfg.Temporal.TaskQueue)

	if !opts.NoStart {
		run, err := events.StartRelay(cmd.Context(), c, cfg.Temporal.TaskQueue, events.RelayInput{
			Interval:  cfg.RelayInterval,
			BatchSize: opts.BatchSize,
		})
		if err != nil {
			return fmt.Errorf("start relay workflow: %w", err)
		}
		logger.Info("relay workflow running", "workflow_id", run.GetID(), "run_id", run.GetRunID())
	}

	<-worker.InterruptCh()
	logger.Info("worker stopping")
	return nil
}

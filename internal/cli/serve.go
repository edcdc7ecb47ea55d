package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lankyjo/coast/internal/ai"
	"github.com/lankyjo/coast/internal/api"
	"github.com/lankyjo/coast/internal/events"
)

type ServeOptions struct {
	*RootOptions
	Addr          string
	Relay         bool
	RelayInterval time.Duration
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the JSON API under /api and the pages opened from emails.

Unless --relay=false is given, pending side effects are delivered by an
in-process relay every relay_interval. Run "coast worker" instead to
deliver them through Temporal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&opts.Relay, "relay", true, "run the in-process outbox relay")
	cmd.Flags().DurationVar(&opts.RelayInterval, "relay-interval", 0, "outbox relay interval (overrides config)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	cfg := opts.Config
	logger := opts.Logger
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}
	if opts.RelayInterval > 0 {
		cfg.RelayInterval = opts.RelayInterval
	}

	rt, err := opts.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	if n, err := rt.svc.SyncAdmins(ctx); err != nil {
		return err
	} else if n > 0 {
		logger.Info("admin accounts synced", "promoted", n)
	}

	if opts.Relay {
		relay := &events.Relay{Dispatcher: rt.dispatcher, Interval: cfg.RelayInterval, Logger: logger}
		go relay.Run(ctx)
	}

	assistant := ai.New(ai.NewGemini(cfg.AI), rt.svc, logger)
	handler := api.NewHandler(rt.svc, assistant, logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(rt.store),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "base_url", cfg.BaseURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Package cli wires the coast command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lankyjo/coast/internal/config"
	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/events"
	"github.com/lankyjo/coast/internal/mail"
	"github.com/lankyjo/coast/internal/service"
)

// RootOptions holds global flags and the state loaded from them.
type RootOptions struct {
	ConfigPath string

	Config config.Config
	Logger *slog.Logger
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "coast",
		Short:         "Coast - project and pipeline workspace for small teams",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			opts.Config = cfg
			opts.Logger = logger
			slog.SetDefault(logger)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "coast.yaml", "path to the YAML config file")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewWorkerCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewAdminCommand(opts))
	cmd.AddCommand(NewOutboxCommand(opts))

	return cmd
}

// newLogger builds the process logger from the log section of the config.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", cfg.Level)
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q: must be text or json", cfg.Format)
	}
}

// runtime is the set of long-lived components every command shares.
type runtime struct {
	store      *db.DB
	dispatcher *events.Dispatcher
	svc        *service.Service
}

func (o *RootOptions) open() (*runtime, error) {
	store, err := db.Open(o.Config.DataDir)
	if err != nil {
		return nil, err
	}
	dispatcher := events.NewDispatcher(store, o.Logger)
	sender := mail.New(o.Config.Email, o.Logger)
	return &runtime{
		store:      store,
		dispatcher: dispatcher,
		svc:        service.New(store, dispatcher, sender, o.Config, o.Logger),
	}, nil
}

func (r *runtime) Close() error {
	return r.store.Close()
}

// Package service implements the workflows behind every action: the
// permission checks, the primary write and the side effects it fans out.
//
// Every exported method starts with auth.RequireAuth or auth.RequireAdmin.
// Side effects are staged in an events.Batch, appended to the outbox in the
// same transaction as the primary write and delivered after commit, so a
// failed notification never fails or rolls back the mutation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/config"
	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/events"
	"github.com/lankyjo/coast/internal/mail"
	"github.com/lankyjo/coast/internal/schema"
)

type Service struct {
	db     *db.DB
	events *events.Dispatcher
	mail   mail.Sender
	cfg    config.Config
	logger *slog.Logger
	schema *schema.Validator

	// Now is the clock used for timers and board dates.
	Now func() time.Time
}

func New(store *db.DB, dispatcher *events.Dispatcher, sender mail.Sender, cfg config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:     store,
		events: dispatcher,
		mail:   sender,
		cfg:    cfg,
		logger: logger,
		schema: schema.Default(),
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// commit runs fn in a transaction, appends the side effects it staged to
// the outbox before committing, then delivers them.
func (s *Service) commit(ctx context.Context, fn func(q *db.Queries, b *events.Batch) error) error {
	var b events.Batch
	var staged []db.OutboxEvent
	err := s.db.Tx(ctx, func(q *db.Queries) error {
		if err := fn(q, &b); err != nil {
			return err
		}
		var err error
		staged, err = s.events.Append(ctx, q, &b)
		return err
	})
	if err != nil {
		return err
	}
	s.events.Flush(ctx, staged)
	return nil
}

// notFound maps a store miss to the "<Entity> not found" error.
func notFound(err error, entity string) error {
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound(entity)
	}
	return err
}

func (s *Service) validate(def string, x any) error {
	return s.schema.Validate(def, x)
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Empty input
// yields nil.
func parseDate(field, v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, apperr.Invalid(field, "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	}
	t = t.UTC()
	return &t, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// added returns the ids in next that are not in prev, in order.
func added(prev, next []string) []string {
	var out []string
	for _, id := range next {
		if !contains(prev, id) && !contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

func actorName(sess *auth.Session) string {
	if sess.Name != "" {
		return sess.Name
	}
	return sess.Email
}

package service

import (
	"context"
	"time"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/db"
)

const defaultFeedLimit = 50

// ListActivities returns the recent feed. Members see their own entries
// and entries of projects they belong to.
func (s *Service) ListActivities(ctx context.Context, limit int) ([]db.Activity, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	f := db.ActivityFilter{Limit: limit}
	if !sess.IsAdmin() {
		f.VisibleTo = sess.UserID
	}
	return s.db.ListActivities(ctx, f)
}

func (s *Service) ProjectActivities(ctx context.Context, projectID string, limit int) ([]db.Activity, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	return s.db.ListActivities(ctx, db.ActivityFilter{ProjectID: projectID, Limit: limit})
}

// ActivitiesOn returns every entry created on the given UTC day, oldest
// entries last.
func (s *Service) ActivitiesOn(ctx context.Context, day time.Time, actorID string) ([]db.Activity, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	f := db.ActivityFilter{ActorID: actorID, Since: start, Until: start.AddDate(0, 0, 1)}
	if !sess.IsAdmin() {
		f.VisibleTo = sess.UserID
	}
	return s.db.ListActivities(ctx, f)
}

// DeleteActivities removes entries older than before, or all entries when
// before is zero.
func (s *Service) DeleteActivities(ctx context.Context, before time.Time) (int64, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return 0, err
	}
	if !before.IsZero() && before.After(s.Now()) {
		return 0, apperr.Invalid("before", "must not be in the future")
	}
	return s.db.DeleteActivities(ctx, before)
}

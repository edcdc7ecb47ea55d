package service

import (
	"context"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/schema"
)

type StageInput struct {
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	Position *int   `json:"position,omitempty"`
	IsWon    bool   `json:"isWon,omitempty"`
	IsLost   bool   `json:"isLost,omitempty"`
}

var defaultStages = []db.PipelineStage{
	{Name: "Lead", Color: "#94a3b8"},
	{Name: "Contacted", Color: "#60a5fa"},
	{Name: "Qualified", Color: "#a78bfa"},
	{Name: "Proposal", Color: "#fbbf24"},
	{Name: "Won", Color: "#34d399", IsWon: true},
	{Name: "Lost", Color: "#f87171", IsLost: true},
}

func (s *Service) ListStages(ctx context.Context) ([]db.PipelineStage, error) {
	if _, err := auth.RequireAuth(ctx); err != nil {
		return nil, err
	}
	return s.db.ListStages(ctx)
}

// CreateStage appends a stage, at the end of the pipeline unless a
// position is given.
func (s *Service) CreateStage(ctx context.Context, in StageInput) (*db.PipelineStage, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := s.validate(schema.StageInput, in); err != nil {
		return nil, err
	}
	st := &db.PipelineStage{Name: in.Name, Color: in.Color, IsWon: in.IsWon, IsLost: in.IsLost}
	err := s.db.Tx(ctx, func(q *db.Queries) error {
		if in.Position != nil {
			st.Position = *in.Position
		} else {
			stages, err := q.ListStages(ctx)
			if err != nil {
				return err
			}
			st.Position = len(stages)
		}
		return q.CreateStage(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) UpdateStage(ctx context.Context, id string, in StageInput) (*db.PipelineStage, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := s.validate(schema.StageInput, in); err != nil {
		return nil, err
	}
	var out *db.PipelineStage
	err := s.db.Tx(ctx, func(q *db.Queries) error {
		st, err := q.GetStage(ctx, id)
		if err != nil {
			return notFound(err, "Stage")
		}
		st.Name, st.Color, st.IsWon, st.IsLost = in.Name, in.Color, in.IsWon, in.IsLost
		if in.Position != nil {
			st.Position = *in.Position
		}
		if err := q.UpdateStage(ctx, st); err != nil {
			return notFound(err, "Stage")
		}
		out = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteStage refuses while any prospect is still in the stage.
func (s *Service) DeleteStage(ctx context.Context, id string) error {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return err
	}
	return s.db.Tx(ctx, func(q *db.Queries) error {
		if _, err := q.GetStage(ctx, id); err != nil {
			return notFound(err, "Stage")
		}
		n, err := q.CountProspectsInStage(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("Move the prospects out of this stage before deleting it")
		}
		return notFound(q.DeleteStage(ctx, id), "Stage")
	})
}

// ReorderStages sets each stage's position to its index in ids. Every
// stage must be listed exactly once.
func (s *Service) ReorderStages(ctx context.Context, ids []string) ([]db.PipelineStage, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	var out []db.PipelineStage
	err := s.db.Tx(ctx, func(q *db.Queries) error {
		stages, err := q.ListStages(ctx)
		if err != nil {
			return err
		}
		if len(dedupe(ids)) != len(ids) || len(ids) != len(stages) {
			return apperr.Invalid("ids", "must list every stage exactly once")
		}
		for i, id := range ids {
			if err := q.SetStagePosition(ctx, id, i); err != nil {
				return notFound(err, "Stage")
			}
		}
		out, err = q.ListStages(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SeedStages creates the default pipeline when no stage exists yet and
// returns the stages in order.
func (s *Service) SeedStages(ctx context.Context) ([]db.PipelineStage, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	var out []db.PipelineStage
	err := s.db.Tx(ctx, func(q *db.Queries) error {
		stages, err := q.ListStages(ctx)
		if err != nil {
			return err
		}
		if len(stages) == 0 {
			for i, st := range defaultStages {
				st.Position = i
				if err := q.CreateStage(ctx, &st); err != nil {
					return err
				}
			}
		}
		out, err = q.ListStages(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

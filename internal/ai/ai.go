// Package ai drafts tasks, deadlines and summaries with a generative model.
//
// Each operation builds a prompt, asks the model for JSON in a fixed shape
// and checks the answer against the CUE definitions in internal/schema
// before handing it back.
package ai

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/db"
	"github.com/lankyjo/coast/internal/schema"
)

// Error is a failed AI operation. Message is safe to show to the caller.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Source supplies the workspace context the prompts are built from.
type Source interface {
	Team(ctx context.Context) ([]db.TeamMember, error)
	ActivitiesOn(ctx context.Context, day time.Time, actorID string) ([]db.Activity, error)
}

type TaskDraft struct {
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Priority       db.Priority `json:"priority"`
	Subtasks       []string    `json:"subtasks"`
	EstimatedHours float64     `json:"estimatedHours,omitempty"`
}

type AssigneeSuggestion struct {
	AssigneeID string `json:"assigneeId"`
	Name       string `json:"name,omitempty"`
	Reason     string `json:"reason"`
}

type DeadlineSuggestion struct {
	Deadline string `json:"deadline"`
	Reason   string `json:"reason"`
}

type Summary struct {
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights"`
	Blockers   []string `json:"blockers,omitempty"`
}

type Assistant struct {
	gen    Generator
	src    Source
	schema *schema.Validator
	logger *slog.Logger

	Now func() time.Time
}

func New(gen Generator, src Source, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		gen:    gen,
		src:    src,
		schema: schema.Default(),
		logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

func (a *Assistant) generate(ctx context.Context, op, prompt string, s Schema, def string, out any) error {
	raw, err := a.gen.Generate(ctx, prompt, s)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return &Error{Message: "AI is not configured", Err: err}
		}
		return &Error{Message: "AI service is unavailable", Err: err}
	}
	if err := a.schema.DecodeJSON(def, raw, out); err != nil {
		a.logger.Warn("ai response rejected", "op", op, "err", err)
		return &Error{Message: "AI returned an unusable response", Err: err}
	}
	return nil
}

// DraftTask turns a goal into a task draft. Nothing is stored.
func (a *Assistant) DraftTask(ctx context.Context, goal, project string) (*TaskDraft, error) {
	if _, err := auth.RequireAuth(ctx); err != nil {
		return nil, err
	}
	var out TaskDraft
	if err := a.generate(ctx, "draft_task", DraftTaskPrompt(goal, project), taskDraftSchema, schema.TaskDraft, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Assistant) Subtasks(ctx context.Context, title, description string) ([]string, error) {
	if _, err := auth.RequireAuth(ctx); err != nil {
		return nil, err
	}
	var out struct {
		Subtasks []string `json:"subtasks"`
	}
	if err := a.generate(ctx, "subtasks", SubtasksPrompt(title, description), subtaskListSchema, schema.SubtaskList, &out); err != nil {
		return nil, err
	}
	return out.Subtasks, nil
}

// SuggestAssignee picks a team member for a task. Answers naming anyone
// outside the team are rejected.
func (a *Assistant) SuggestAssignee(ctx context.Context, title, description string) (*AssigneeSuggestion, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	team, err := a.src.Team(ctx)
	if err != nil {
		return nil, err
	}
	if len(team) == 0 {
		return nil, &Error{Message: "There is nobody to assign yet"}
	}

	var out AssigneeSuggestion
	if err := a.generate(ctx, "suggest_assignee", AssigneePrompt(title, description, team), assigneeSchema, schema.AssigneeSuggestion, &out); err != nil {
		return nil, err
	}
	for _, m := range team {
		if m.ID == out.AssigneeID {
			out.Name = displayName(m.User)
			return &out, nil
		}
	}
	a.logger.Warn("ai suggested unknown assignee", "id", out.AssigneeID)
	return nil, &Error{Message: "AI suggested an unknown team member"}
}

func (a *Assistant) SuggestDeadline(ctx context.Context, title, description string, priority db.Priority) (*DeadlineSuggestion, error) {
	if _, err := auth.RequireAuth(ctx); err != nil {
		return nil, err
	}
	today := a.Now().UTC()
	var out DeadlineSuggestion
	if err := a.generate(ctx, "suggest_deadline", DeadlinePrompt(title, description, priority, today), deadlineSchema, schema.DeadlineSuggestion, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DailySummary summarises everything recorded on day.
func (a *Assistant) DailySummary(ctx context.Context, day time.Time) (*Summary, error) {
	if _, err := auth.RequireAuth(ctx); err != nil {
		return nil, err
	}
	entries, err := a.entries(ctx, day, "")
	if err != nil {
		return nil, err
	}
	var out Summary
	if err := a.generate(ctx, "daily_summary", DailySummaryPrompt(day, entries), summarySchema, schema.DailySummary, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EndOfDaySummary reports on the caller's own activity today.
func (a *Assistant) EndOfDaySummary(ctx context.Context) (*Summary, error) {
	sess, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	day := a.Now().UTC()
	entries, err := a.entries(ctx, day, sess.UserID)
	if err != nil {
		return nil, err
	}
	name := sess.Name
	if name == "" {
		name = sess.Email
	}
	var out Summary
	if err := a.generate(ctx, "end_of_day", EndOfDayPrompt(name, day, entries), summarySchema, schema.DailySummary, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// entries loads a day's activity oldest first with actor names resolved.
func (a *Assistant) entries(ctx context.Context, day time.Time, actorID string) ([]Entry, error) {
	acts, err := a.src.ActivitiesOn(ctx, day, actorID)
	if err != nil {
		return nil, err
	}
	team, err := a.src.Team(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(team))
	for _, m := range team {
		names[m.ID] = displayName(m.User)
	}

	entries := make([]Entry, 0, len(acts))
	for _, act := range acts {
		actor := names[act.ActorID]
		if actor == "" {
			actor = "Someone"
		}
		entries = append(entries, Entry{At: act.CreatedAt, Actor: actor, Action: act.Description})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].At.Before(entries[j].At) })
	return entries, nil
}

package ai

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/lankyjo/coast/internal/db"
)

var (
	testDay  = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	testTeam = []db.TeamMember{
		{User: db.User{ID: "u1", Name: "Alice", Email: "alice@coast.test", Role: db.RoleAdmin}, OpenTasks: 3},
		{User: db.User{ID: "u2", Email: "bob@coast.test", Role: db.RoleMember}, OpenTasks: 0},
	}
)

func TestPrompts(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	entries := []Entry{
		{At: time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC), Actor: "Alice", Action: `completed task "Hero copy"`},
		{At: time.Date(2026, 3, 14, 11, 40, 0, 0, time.UTC), Actor: "Bob", Action: `logged 45 minutes on "Footer"`},
	}

	g.Assert(t, "draft_task", []byte(DraftTaskPrompt("  Launch the spring newsletter ", "Website")))
	g.Assert(t, "subtasks", []byte(SubtasksPrompt("Redesign pricing page", "Three tiers, annual toggle")))
	g.Assert(t, "assignee", []byte(AssigneePrompt("Redesign pricing page", "", testTeam)))
	g.Assert(t, "deadline", []byte(DeadlinePrompt("Redesign pricing page", "Three tiers, annual toggle", db.PriorityHigh, testDay)))
	g.Assert(t, "daily_summary", []byte(DailySummaryPrompt(testDay, entries)))
	g.Assert(t, "end_of_day_empty", []byte(EndOfDayPrompt("Bob", testDay, nil)))
}

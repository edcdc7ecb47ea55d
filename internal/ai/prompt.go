package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/lankyjo/coast/internal/db"
)

const preamble = "You are the planning assistant of a small agency team.\n"

// Entry is one line of the activity log handed to the summary prompts.
type Entry struct {
	At     time.Time
	Actor  string
	Action string
}

func writeTask(b *strings.Builder, title, description string) {
	fmt.Fprintf(b, "Task: %s\n", strings.TrimSpace(title))
	if d := strings.TrimSpace(description); d != "" {
		fmt.Fprintf(b, "Details: %s\n", d)
	}
}

func DraftTaskPrompt(goal, project string) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("Turn the goal below into one actionable task.\n\n")
	if project != "" {
		fmt.Fprintf(&b, "Project: %s\n", project)
	}
	fmt.Fprintf(&b, "Goal: %s\n\n", strings.TrimSpace(goal))
	b.WriteString("Reply with a short imperative title, a description of the work, a priority of low, medium, high or urgent, three to six subtasks and an estimate in hours.\n")
	return b.String()
}

func SubtasksPrompt(title, description string) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("Break the task below into three to eight concrete subtasks, in the order they should be done.\n\n")
	writeTask(&b, title, description)
	b.WriteString("\nReply with the subtask titles only.\n")
	return b.String()
}

func AssigneePrompt(title, description string, team []db.TeamMember) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("Pick the team member best placed to take the task below. Prefer people with fewer open tasks.\n\n")
	writeTask(&b, title, description)
	b.WriteString("\nTeam:\n")
	for _, m := range team {
		fmt.Fprintf(&b, "- %s (id %s, %s, open tasks: %d)\n", displayName(m.User), m.ID, m.Role, m.OpenTasks)
	}
	b.WriteString("\nReply with the id of one team member from the list and a one-sentence reason.\n")
	return b.String()
}

func DeadlinePrompt(title, description string, priority db.Priority, today time.Time) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("Suggest a realistic deadline for the task below.\n\n")
	fmt.Fprintf(&b, "Today: %s (%s)\n", today.Format("2006-01-02"), today.Weekday())
	writeTask(&b, title, description)
	if priority != "" {
		fmt.Fprintf(&b, "Priority: %s\n", priority)
	}
	b.WriteString("\nReply with the deadline as YYYY-MM-DD and a one-sentence reason.\n")
	return b.String()
}

// DailySummaryPrompt asks for a stand-up summary of the whole team's day.
func DailySummaryPrompt(day time.Time, entries []Entry) string {
	intro := fmt.Sprintf("Summarise the team's activity on %s for tomorrow's stand-up.\n\n", day.Format("Monday 2 January 2006"))
	return summaryPrompt(intro, entries)
}

// EndOfDayPrompt asks for one person's end-of-day report.
func EndOfDayPrompt(name string, day time.Time, entries []Entry) string {
	intro := fmt.Sprintf("Write the end-of-day report of %s for %s, in the first person.\n\n", name, day.Format("Monday 2 January 2006"))
	return summaryPrompt(intro, entries)
}

func summaryPrompt(intro string, entries []Entry) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString(intro)
	b.WriteString("Activity:\n")
	if len(entries) == 0 {
		b.WriteString("- nothing was recorded\n")
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s %s %s\n", e.At.UTC().Format("15:04"), e.Actor, e.Action)
	}
	b.WriteString("\nReply with a short summary paragraph, the main highlights and any blockers you can infer.\n")
	return b.String()
}

func displayName(u db.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

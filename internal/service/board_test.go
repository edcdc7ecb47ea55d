package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/db"
)

func TestTodayBoard_OnePerDay(t *testing.T) {
	f := setup(t)

	first, err := f.svc.TodayBoard(f.as(f.alice))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", first.Date)

	again, err := f.svc.TodayBoard(f.as(f.bob))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	f.advance(24 * time.Hour)
	next, err := f.svc.TodayBoard(f.as(f.alice))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-15", next.Date)

	byDate, err := f.svc.BoardByDate(f.as(f.alice), "2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byDate.ID)

	_, err = f.svc.BoardByDate(f.as(f.alice), "2020-01-01")
	assert.EqualError(t, err, "Board not found")
}

func TestAddBoardTask(t *testing.T) {
	f := setup(t)
	board, err := f.svc.TodayBoard(f.as(f.admin))
	require.NoError(t, err)

	task, err := f.svc.AddBoardTask(f.as(f.admin), board.ID, TaskInput{
		Title:       "Standup notes",
		ProjectID:   f.project.ID,
		AssigneeIDs: []string{f.alice.ID},
	})
	require.NoError(t, err)
	require.NotNil(t, task.DailyBoardID)
	assert.Equal(t, board.ID, *task.DailyBoardID)
	assert.Equal(t, db.VisibilityGeneral, task.Visibility)

	assert.Len(t, f.notifications(t, f.alice, db.NotifyTaskAssigned), 1)
	assert.Len(t, f.activities(t, db.ActionBoardTaskAdded), 1)

	tasks, err := f.svc.BoardTasks(f.as(f.alice), board.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)

	_, err = f.svc.AddBoardTask(f.as(f.alice), board.ID, TaskInput{Title: "x", ProjectID: f.project.ID})
	assertKind(t, err, apperr.KindForbidden)

	_, err = f.svc.AddBoardTask(f.as(f.admin), "missing", TaskInput{Title: "x", ProjectID: f.project.ID})
	assertKind(t, err, apperr.KindNotFound)
}

func TestToggleBoardTaskDone(t *testing.T) {
	f := setup(t)
	board, err := f.svc.TodayBoard(f.as(f.admin))
	require.NoError(t, err)
	task := f.task(t, TaskInput{AssigneeIDs: []string{f.alice.ID}, Status: db.StatusInProgress, DailyBoardID: board.ID})
	ctx := f.as(f.alice)

	got, err := f.svc.ToggleBoardTaskDone(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusDone, got.Status)
	assert.Len(t, f.activities(t, db.ActionTaskCompleted), 1)

	got, err = f.svc.ToggleBoardTaskDone(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusTodo, got.Status)
	assert.Len(t, f.activities(t, db.ActionTaskCompleted), 1, "undoing is not recorded")

	stored, err := f.db.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusTodo, stored.Status)
	assert.Equal(t, task.Version+2, stored.Version)

	_, err = f.svc.ToggleBoardTaskDone(f.as(f.bob), task.ID)
	assertKind(t, err, apperr.KindForbidden)
}

func TestToggleBoardTaskDone_OnlyBoardTasks(t *testing.T) {
	f := setup(t)
	task := f.task(t, TaskInput{AssigneeIDs: []string{f.alice.ID}})

	_, err := f.svc.ToggleBoardTaskDone(f.as(f.alice), task.ID)
	assertKind(t, err, apperr.KindNotFound)
	assert.EqualError(t, err, "Board task not found")

	stored, err := f.db.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusTodo, stored.Status)
	assert.Equal(t, task.Version, stored.Version)
	assert.Empty(t, f.activities(t, db.ActionTaskCompleted))
}

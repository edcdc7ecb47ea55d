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

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Website Redesign", "website-redesign"},
		{"Café Déjà Vu!", "cafe-deja-vu"},
		{"  --Q3 // Launch--  ", "q3-launch"},
		{"Ñandú", "nandu"},
		{"!!!", "project"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.name))
		})
	}
}

func TestCreateProject_UniqueSlug(t *testing.T) {
	f := setup(t)
	ctx := f.as(f.admin)
	assert.Equal(t, "website", f.project.Slug)

	second, err := f.svc.CreateProject(ctx, ProjectInput{Name: "Website"})
	require.NoError(t, err)
	assert.Equal(t, "website-2", second.Slug)

	third, err := f.svc.CreateProject(ctx, ProjectInput{Name: "website!"})
	require.NoError(t, err)
	assert.Equal(t, "website-3", third.Slug)

	got, err := f.svc.GetProjectBySlug(ctx, "website-2")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = f.svc.CreateProject(ctx, ProjectInput{Name: "Bad", Color: "red"})
	assertKind(t, err, apperr.KindValidation)
}

func TestProjects_MemberVisibility(t *testing.T) {
	f := setup(t)
	hidden, err := f.svc.CreateProject(f.as(f.admin), ProjectInput{Name: "Internal"})
	require.NoError(t, err)

	list, err := f.svc.ListProjects(f.as(f.alice))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, f.project.ID, list[0].ID)

	_, err = f.svc.GetProject(f.as(f.alice), hidden.ID)
	assert.EqualError(t, err, "Project not found")

	_, err = f.svc.AddProjectMember(f.as(f.admin), hidden.ID, f.alice.ID)
	require.NoError(t, err)
	_, err = f.svc.GetProject(f.as(f.alice), hidden.ID)
	require.NoError(t, err)

	p, err := f.svc.RemoveProjectMember(f.as(f.admin), hidden.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Empty(t, p.MemberIDs)

	_, err = f.svc.AddProjectMember(f.as(f.alice), f.project.ID, f.alice.ID)
	assertKind(t, err, apperr.KindForbidden)
}

func TestUpdateProject_SlugFollowsName(t *testing.T) {
	f := setup(t)

	p, err := f.svc.UpdateProject(f.as(f.admin), f.project.ID, ProjectUpdate{
		Name:   ptr("Marketing Site"),
		Status: ptr(db.ProjectOnHold),
	})
	require.NoError(t, err)
	assert.Equal(t, "marketing-site", p.Slug)
	assert.Equal(t, db.ProjectOnHold, p.Status)
	assert.Len(t, f.activities(t, db.ActionProjectUpdated), 1)

	p, err = f.svc.UpdateProject(f.as(f.admin), f.project.ID, ProjectUpdate{Description: ptr("Q2")})
	require.NoError(t, err)
	assert.Equal(t, "marketing-site", p.Slug)

	_, err = f.svc.UpdateProject(f.as(f.admin), f.project.ID, ProjectUpdate{Name: ptr("")})
	assertKind(t, err, apperr.KindValidation)
}

func TestDeleteProject(t *testing.T) {
	f := setup(t)
	task := f.task(t, TaskInput{})

	require.NoError(t, f.svc.DeleteProject(f.as(f.admin), f.project.ID))

	_, err := f.db.GetTask(context.Background(), task.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Len(t, f.activities(t, db.ActionProjectDeleted), 1)

	err = f.svc.DeleteProject(f.as(f.admin), f.project.ID)
	assert.EqualError(t, err, "Project not found")
}

func TestNotes_OwnerOnly(t *testing.T) {
	f := setup(t)

	n, err := f.svc.CreateNote(f.as(f.alice), NoteInput{Content: ptr("buy milk"), Color: ptr("#ffee88")})
	require.NoError(t, err)
	assert.Equal(t, float64(200), n.Width)

	n, err = f.svc.UpdateNote(f.as(f.alice), n.ID, NoteInput{X: ptr(40.0), Pinned: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, "buy milk", n.Content)
	assert.Equal(t, 40.0, n.X)
	assert.True(t, n.Pinned)

	_, err = f.svc.UpdateNote(f.as(f.bob), n.ID, NoteInput{Content: ptr("mine now")})
	assert.EqualError(t, err, "Note not found")

	_, err = f.svc.UpdateNote(f.as(f.alice), n.ID, NoteInput{Width: ptr(-1.0)})
	assertKind(t, err, apperr.KindValidation)

	notes, err := f.svc.ListNotes(f.as(f.bob))
	require.NoError(t, err)
	assert.Empty(t, notes)

	assert.Error(t, f.svc.DeleteNote(f.as(f.bob), n.ID))
	require.NoError(t, f.svc.DeleteNote(f.as(f.alice), n.ID))
}

func TestCustomBoards(t *testing.T) {
	f := setup(t)
	board, err := f.svc.CreateCustomBoard(f.as(f.alice), CustomBoardInput{
		Name:      "Launch",
		MemberIDs: []string{f.bob.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, board.OwnerID)

	_, err = f.svc.GetCustomBoard(f.as(f.bob), board.ID)
	require.NoError(t, err)

	carol, err := f.db.CreateUser(context.Background(), "carol@coast.test", "Carol", db.RoleMember)
	require.NoError(t, err)
	_, err = f.svc.GetCustomBoard(f.as(carol), board.ID)
	assert.EqualError(t, err, "Board not found")

	_, err = f.svc.UpdateCustomBoard(f.as(f.bob), board.ID, CustomBoardUpdate{Name: ptr("Mine")})
	assertKind(t, err, apperr.KindForbidden)

	board, err = f.svc.UpdateCustomBoard(f.as(f.alice), board.ID, CustomBoardUpdate{Color: ptr("#336699")})
	require.NoError(t, err)
	assert.Equal(t, "Launch", board.Name)
	assert.Equal(t, "#336699", board.Color)

	task := f.task(t, TaskInput{AssigneeIDs: []string{f.alice.ID}})
	got, err := f.svc.AddTaskToCustomBoard(f.as(f.alice), board.ID, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CustomBoardID)
	assert.Equal(t, board.ID, *got.CustomBoardID)

	tasks, err := f.svc.CustomBoardTasks(f.as(f.bob), board.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	require.NoError(t, f.svc.DeleteCustomBoard(f.as(f.admin), board.ID))
	_, err = f.db.GetTask(context.Background(), task.ID)
	assert.NoError(t, err, "tasks outlive their board")
}

func TestNotifications_RecipientOnly(t *testing.T) {
	f := setup(t)
	f.task(t, TaskInput{AssigneeIDs: []string{f.alice.ID}})
	f.task(t, TaskInput{Title: "Second", AssigneeIDs: []string{f.alice.ID}})

	list, err := f.svc.ListNotifications(f.as(f.alice), false, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	n, err := f.svc.UnreadCount(f.as(f.alice))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	err = f.svc.MarkNotificationRead(f.as(f.bob), list[0].ID)
	assert.EqualError(t, err, "Notification not found")

	require.NoError(t, f.svc.MarkNotificationRead(f.as(f.alice), list[0].ID))
	n, err = f.svc.UnreadCount(f.as(f.alice))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	marked, err := f.svc.MarkAllNotificationsRead(f.as(f.alice))
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	unread, err := f.svc.ListNotifications(f.as(f.alice), true, 0)
	require.NoError(t, err)
	assert.Empty(t, unread)

	assert.Error(t, f.svc.DeleteNotification(f.as(f.bob), list[1].ID))
	require.NoError(t, f.svc.DeleteNotification(f.as(f.alice), list[1].ID))
}

func TestActivities(t *testing.T) {
	f := setup(t)
	other, err := f.svc.CreateProject(f.as(f.admin), ProjectInput{Name: "Back office"})
	require.NoError(t, err)
	_, err = f.svc.CreateTask(f.as(f.admin), TaskInput{Title: "Ledger", ProjectID: other.ID})
	require.NoError(t, err)
	f.task(t, TaskInput{Title: "Hero"})

	all, err := f.svc.ListActivities(f.as(f.admin), 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	mine, err := f.svc.ListActivities(f.as(f.alice), 0)
	require.NoError(t, err)
	for _, a := range mine {
		assert.Equal(t, f.project.ID, a.ProjectID)
	}
	assert.Len(t, mine, 2)

	_, err = f.svc.ProjectActivities(f.as(f.alice), other.ID, 0)
	assertKind(t, err, apperr.KindNotFound)

	today, err := f.svc.ActivitiesOn(f.as(f.admin), time.Now().UTC(), f.admin.ID)
	require.NoError(t, err)
	assert.Len(t, today, 4)

	_, err = f.svc.DeleteActivities(f.as(f.alice), time.Time{})
	assertKind(t, err, apperr.KindForbidden)

	_, err = f.svc.DeleteActivities(f.as(f.admin), f.clock.Add(time.Hour))
	assertKind(t, err, apperr.KindValidation)

	n, err := f.svc.DeleteActivities(f.as(f.admin), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lankyjo/coast/internal/db"
)

func setup(t *testing.T) (*db.DB, *Dispatcher) {
	t.Helper()
	store, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, NewDispatcher(store, nil)
}

func stage(t *testing.T, store *db.DB, d *Dispatcher, b *Batch) []db.OutboxEvent {
	t.Helper()
	var staged []db.OutboxEvent
	err := store.Tx(context.Background(), func(q *db.Queries) error {
		var err error
		staged, err = d.Append(context.Background(), q, b)
		return err
	})
	require.NoError(t, err)
	return staged
}

func sampleBatch() *Batch {
	b := &Batch{}
	b.Notify(db.Notification{
		RecipientID: "u2",
		Type:        db.NotifyTaskAssigned,
		Title:       "New task assigned",
		Message:     "You were assigned: Write copy",
		Metadata:    db.NotificationMeta{TaskID: "t1"},
	})
	b.Record(db.Activity{
		ActorID:     "u1",
		ProjectID:   "p1",
		Action:      db.ActionTaskCreated,
		Description: `created task "Write copy"`,
		Metadata:    db.ActivityMeta{TaskID: "t1"},
	})
	return b
}

func TestAppendAndFlush(t *testing.T) {
	ctx := context.Background()
	store, d := setup(t)

	staged := stage(t, store, d, sampleBatch())
	require.Len(t, staged, 2)

	pending, err := store.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	d.Flush(ctx, staged)

	notes, err := store.ListNotifications(ctx, "u2", false, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "You were assigned: Write copy", notes[0].Message)
	assert.Equal(t, "t1", notes[0].Metadata.TaskID)

	acts, err := store.ListActivities(ctx, db.ActivityFilter{ProjectID: "p1"})
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, db.ActionTaskCreated, acts[0].Action)

	pending, err = store.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAppend_EmptyBatch(t *testing.T) {
	store, d := setup(t)
	assert.Empty(t, stage(t, store, d, &Batch{}))
}

func TestAppend_RolledBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	store, d := setup(t)

	boom := errors.New("boom")
	err := store.Tx(ctx, func(q *db.Queries) error {
		if _, err := d.Append(ctx, q, sampleBatch()); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	pending, err := store.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeliver_OnceUnderRace(t *testing.T) {
	ctx := context.Background()
	store, d := setup(t)

	b := &Batch{}
	b.Notify(db.Notification{RecipientID: "u2", Type: db.NotifyTaskCompleted, Title: "Task completed"})
	staged := stage(t, store, d, b)
	require.Len(t, staged, 1)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- d.Deliver(ctx, staged[0])
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	notes, err := store.ListNotifications(ctx, "u2", false, 0)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestDeliver_FailureStaysPending(t *testing.T) {
	ctx := context.Background()
	store, d := setup(t)

	fail := true
	d.Handle(db.OutboxActivity, func(ctx context.Context, q *db.Queries, payload []byte) error {
		if fail {
			return errors.New("activities table locked")
		}
		return insertActivity(ctx, q, payload)
	})

	staged := stage(t, store, d, sampleBatch())
	d.Flush(ctx, staged)

	// The notification went through; the activity did not.
	notes, err := store.ListNotifications(ctx, "u2", false, 0)
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	pending, err := store.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, db.OutboxActivity, pending[0].Kind)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "activities table locked")

	n, err := d.Drain(ctx, 10)
	assert.Error(t, err)
	assert.Equal(t, 0, n)

	fail = false
	n, err = d.Drain(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	acts, err := store.ListActivities(ctx, db.ActivityFilter{})
	require.NoError(t, err)
	assert.Len(t, acts, 1)
}

func TestDeliver_ReplayIsNoop(t *testing.T) {
	ctx := context.Background()
	store, d := setup(t)

	staged := stage(t, store, d, sampleBatch())
	d.Flush(ctx, staged)
	d.Flush(ctx, staged)

	n, err := d.Drain(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	acts, err := store.ListActivities(ctx, db.ActivityFilter{})
	require.NoError(t, err)
	assert.Len(t, acts, 1)
}

func TestDeliver_UnknownKind(t *testing.T) {
	_, d := setup(t)
	err := d.Deliver(context.Background(), db.OutboxEvent{ID: "x", Kind: "webhook"})
	assert.ErrorContains(t, err, "no handler")
}

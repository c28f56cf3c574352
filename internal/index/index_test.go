package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/metalagman/tickwise/internal/db"
	"github.com/metalagman/tickwise/internal/failure"
	"github.com/metalagman/tickwise/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	clock := &stepClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewStore(conn, WithClock(clock.Now))
}

func TestPut_InsertsAndGets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	due := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, model.TaskRecord{
		ID:          "t1",
		ContainerID: "inbox1",
		Title:       "Buy milk",
		Tags:        []string{"home", "urgent", "home"},
		Notes:       "2 litres",
		Due:         &due,
		Priority:    model.PriorityHigh,
	}))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "inbox1", got.ContainerID)
	assert.Equal(t, "Buy milk", got.Title)
	assert.Equal(t, []string{"home", "urgent"}, got.Tags)
	assert.Equal(t, "2 litres", got.Notes)
	require.NotNil(t, got.Due)
	assert.True(t, due.Equal(*got.Due))
	assert.Equal(t, model.PriorityHigh, got.Priority)
	assert.Equal(t, model.StatusActive, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestPut_PreservesOmittedFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, model.TaskRecord{ID: "t1", ContainerID: "c1", Title: "report", Tags: []string{"work"}, Notes: "draft"}))
	require.NoError(t, store.Put(ctx, model.TaskRecord{ID: "t1", Title: "final report"}))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "final report", got.Title)
	assert.Equal(t, "c1", got.ContainerID)
	assert.Equal(t, []string{"work"}, got.Tags)
	assert.Equal(t, "draft", got.Notes)
}

func TestPut_ClearsOnlyNamedFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, model.TaskRecord{ID: "t1", ContainerID: "c1", Title: "report", Tags: []string{"work"}, Notes: "draft"}))
	require.NoError(t, store.Put(ctx, model.TaskRecord{ID: "t1", Tags: []string{}}, model.FieldTags))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
	assert.Equal(t, "draft", got.Notes)
}

func TestPut_RemindersAndRecurrence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, model.TaskRecord{
		ID:          "t1",
		ContainerID: "c1",
		Title:       "standup",
		Reminders:   []string{"TRIGGER:PT0S", "TRIGGER:-PT15M", "TRIGGER:PT0S"},
		Recurrence:  "RRULE:FREQ=DAILY;INTERVAL=1",
	}))
	require.NoError(t, store.Put(ctx, model.TaskRecord{ID: "t1", Notes: "room 4"}))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"TRIGGER:-PT15M", "TRIGGER:PT0S"}, got.Reminders)
	assert.Equal(t, "RRULE:FREQ=DAILY;INTERVAL=1", got.Recurrence)

	require.NoError(t, store.Put(ctx, model.TaskRecord{ID: "t1"}, model.FieldReminders, model.FieldRecurrence))
	got, err = store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got.Reminders)
	assert.Empty(t, got.Recurrence)
	assert.Equal(t, "room 4", got.Notes)
}

func TestPut_RejectsMissingID(t *testing.T) {
	t.Parallel()
	err := newTestStore(t).Put(context.Background(), model.TaskRecord{Title: "orphan"})
	assert.ErrorIs(t, err, failure.ErrValidation)
}

func TestGet_MissingIsNotFound(t *testing.T) {
	t.Parallel()
	_, err := newTestStore(t).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, failure.ErrNotFound)
}

func TestFindByTitle_SubstringCaseInsensitiveMostRecentFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, model.TaskRecord{ID: "a", ContainerID: "c", Title: "Call   Mom"}))
	require.NoError(t, store.Put(ctx, model.TaskRecord{ID: "b", ContainerID: "c", Title: "call mom about trip"}))
	require.NoError(t, store.Put(ctx, model.TaskRecord{ID: "c", ContainerID: "c", Title: "buy milk"}))

	got, err := store.FindByTitle(ctx, "  CALL mom ", FindOptions{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
}

func TestFindByTitle_ExcludesCompletedUnlessAsked(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, model.TaskRecord{ID: "a", ContainerID: "c", Title: "pay rent"}))
	require.NoError(t, store.MarkCompleted(ctx, "a"))

	got, err := store.FindByTitle(ctx, "pay rent", FindOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = store.FindByTitle(ctx, "pay rent", FindOptions{IncludeCompleted: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Completed())

	rec, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, rec.Status)
}

func TestFindByTitle_ScopesByContainer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, model.TaskRecord{ID: "a", ContainerID: "home", Title: "clean"}))
	require.NoError(t, store.Put(ctx, model.TaskRecord{ID: "b", ContainerID: "work", Title: "clean desk"}))

	got, err := store.FindByTitle(ctx, "clean", FindOptions{ContainerID: "home"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestRemove_DeletesRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, model.TaskRecord{ID: "a", ContainerID: "c", Title: "temp"}))
	require.NoError(t, store.Remove(ctx, "a"))
	require.NoError(t, store.Remove(ctx, "a"))

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, failure.ErrNotFound)
}

func TestMarkCompleted_MissingIsNotFound(t *testing.T) {
	t.Parallel()
	err := newTestStore(t).MarkCompleted(context.Background(), "ghost")
	assert.ErrorIs(t, err, failure.ErrNotFound)
}

func TestList_FiltersOverdueAndTag(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	past := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, model.TaskRecord{ID: "late", ContainerID: "c", Title: "late", Due: &past, Tags: []string{"work"}}))
	require.NoError(t, store.Put(ctx, model.TaskRecord{ID: "soon", ContainerID: "c", Title: "soon", Due: &future, Tags: []string{"work"}}))
	require.NoError(t, store.Put(ctx, model.TaskRecord{ID: "none", ContainerID: "c", Title: "no due"}))

	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	got, err := store.List(ctx, Filter{DueBefore: &cutoff, Status: model.StatusActive})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "late", got[0].ID)

	got, err = store.List(ctx, Filter{Tag: "work"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestNormalizeTitle(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "buy milk now", NormalizeTitle("  Buy\tMILK   now "))
	assert.Equal(t, "", NormalizeTitle("   "))
}

package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/metalagman/tickwise/internal/failure"
	"github.com/metalagman/tickwise/internal/index"
	"github.com/metalagman/tickwise/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	records   map[string]model.TaskRecord
	matches   []model.TaskRecord
	findCalls int
	lastOpts  index.FindOptions
}

func (f *fakeIndex) Get(_ context.Context, id string) (model.TaskRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return model.TaskRecord{}, failure.NotFound("index get", id)
	}
	return rec, nil
}

func (f *fakeIndex) FindByTitle(_ context.Context, _ string, opts index.FindOptions) ([]model.TaskRecord, error) {
	f.findCalls++
	f.lastOpts = opts
	return f.matches, nil
}

func TestResolve_ByIDBypassesTitleSearch(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{
		records: map[string]model.TaskRecord{"t1": {ID: "t1", ContainerID: "c1", Title: "buy milk"}},
		matches: []model.TaskRecord{{ID: "other", Title: "buy milk"}},
	}

	res, err := New(idx).Resolve(context.Background(), model.Reference{ID: "t1", Title: "buy milk"})
	require.NoError(t, err)
	assert.Equal(t, "t1", res.Record.ID)
	assert.Equal(t, MethodID, res.Provenance.Method)
	assert.Zero(t, idx.findCalls)
}

func TestResolve_UnknownIDIsNotFound(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{matches: []model.TaskRecord{{ID: "t1", Title: "x"}}}

	_, err := New(idx).Resolve(context.Background(), model.Reference{ID: "missing", Title: "x"})
	require.ErrorIs(t, err, failure.ErrNotFound)
	assert.Contains(t, err.Error(), "missing")
	assert.Zero(t, idx.findCalls)
}

func TestResolve_TitleWithNoMatchesIsNotFound(t *testing.T) {
	t.Parallel()
	_, err := New(&fakeIndex{}).Resolve(context.Background(), model.Reference{Title: "Walk the dog"})
	require.ErrorIs(t, err, failure.ErrNotFound)
	assert.Contains(t, err.Error(), "Walk the dog")
}

func TestResolve_TitleWithOneMatch(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{matches: []model.TaskRecord{{ID: "t1", Title: "walk the dog"}}}

	res, err := New(idx).Resolve(context.Background(), model.Reference{Title: "  Walk  the DOG "})
	require.NoError(t, err)
	assert.Equal(t, "t1", res.Record.ID)
	assert.Equal(t, "walk the dog", res.Provenance.Query)
	assert.False(t, res.Provenance.Ambiguous())
}

func TestResolve_TitleWithManyMatchesPicksFirstAndReportsAlternatives(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{matches: []model.TaskRecord{
		{ID: "newest", Title: "report v3"},
		{ID: "b", Title: "report v2"},
		{ID: "c", Title: "report v1"},
		{ID: "d", Title: "report draft"},
		{ID: "e", Title: "report notes"},
	}}

	res, err := New(idx).Resolve(context.Background(), model.Reference{Title: "report"})
	require.NoError(t, err)
	assert.Equal(t, "newest", res.Record.ID)
	assert.True(t, res.Provenance.Ambiguous())
	assert.Equal(t, 5, res.Provenance.Candidates)
	assert.Equal(t, []string{"report v2", "report v1", "report draft"}, res.Provenance.Alternatives)
}

func TestResolve_PassesScopeAndCompletedOption(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{matches: []model.TaskRecord{{ID: "t1", Title: "x"}}}

	_, err := New(idx, WithCompleted(true)).Resolve(context.Background(), model.Reference{Title: "x", ContainerID: "work"})
	require.NoError(t, err)
	assert.Equal(t, index.FindOptions{ContainerID: "work", IncludeCompleted: true}, idx.lastOpts)
}

func TestResolve_EmptyReferenceIsValidationError(t *testing.T) {
	t.Parallel()
	_, err := New(&fakeIndex{}).Resolve(context.Background(), model.Reference{Title: "   "})
	assert.True(t, failure.IsValidation(err))
}

func TestResolve_DeterministicAgainstRealIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, store.Put(ctx, model.TaskRecord{ID: "z", ContainerID: "c", Title: "pay bills"}))
	require.NoError(t, store.Put(ctx, model.TaskRecord{ID: "a", ContainerID: "c", Title: "pay bills online"}))

	r := New(store)
	for range 3 {
		res, err := r.Resolve(ctx, model.Reference{Title: "pay bills"})
		require.NoError(t, err)
		assert.Equal(t, "a", res.Record.ID, "equal sync time breaks ties by id")
	}
}

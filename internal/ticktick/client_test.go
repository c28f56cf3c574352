package ticktick

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/metalagman/tickwise/internal/failure"
	"github.com/metalagman/tickwise/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

type recorder struct {
	mu   sync.Mutex
	last captured
}

func (r *recorder) get() captured {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func newServer(t *testing.T, status int, response string, opts ...Option) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := captured{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &c.body)
		}
		rec.mu.Lock()
		rec.last = c
		rec.mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, "secret-token", append([]Option{WithTimeout(5 * time.Second)}, opts...)...)
	require.NoError(t, err)
	return c, rec
}

func TestNew_RequiresToken(t *testing.T) {
	t.Parallel()
	_, err := New("", " ")
	require.Error(t, err)
}

func TestCreateTask(t *testing.T) {
	t.Parallel()
	c, rec := newServer(t, http.StatusOK, `{"id":"task-1","projectId":"inbox42"}`)
	due := time.Date(2026, 5, 1, 10, 0, 0, 0, time.FixedZone("UTC+3", 3*3600))
	high := model.PriorityHigh

	rt, err := c.CreateTask(context.Background(), "buy milk", "inbox42", model.Changes{
		Tags:     []string{"home"},
		Due:      &due,
		Priority: &high,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RemoteTask{ID: "task-1", ContainerID: "inbox42"}, rt)
	got := rec.get()

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/open/v1/task", got.path)
	assert.Equal(t, "Bearer secret-token", got.auth)
	assert.Equal(t, "buy milk", got.body["title"])
	assert.Equal(t, "inbox42", got.body["projectId"])
	assert.Equal(t, "2026-05-01T07:00:00+0000", got.body["dueDate"])
	assert.InDelta(t, 5, got.body["priority"], 0)
	assert.Equal(t, []any{"home"}, got.body["tags"])
	assert.NotContains(t, got.body, "content")
	assert.NotContains(t, got.body, "repeatFlag")
	assert.NotContains(t, got.body, "reminders")
}

func TestCreateTask_RecurringWithDueStartsAtDue(t *testing.T) {
	t.Parallel()
	c, rec := newServer(t, http.StatusOK, `{"id":"task-1","projectId":"inbox42"}`)
	due := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	rule := "RRULE:FREQ=DAILY;INTERVAL=1"

	_, err := c.CreateTask(context.Background(), "standup", "inbox42", model.Changes{
		Due:        &due,
		Recurrence: &rule,
		Reminders:  []string{"TRIGGER:PT0S"},
	})
	require.NoError(t, err)
	got := rec.get()
	assert.Equal(t, rule, got.body["repeatFlag"])
	assert.Equal(t, "2026-05-01T09:00:00+0000", got.body["startDate"])
	assert.Equal(t, "2026-05-01T09:00:00+0000", got.body["dueDate"])
	assert.Equal(t, []any{"TRIGGER:PT0S"}, got.body["reminders"])
}

func TestCreateTask_RecurringWithoutDueStartsNow(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c, rec := newServer(t, http.StatusOK, `{"id":"task-1"}`, WithClock(func() time.Time { return now }))
	rule := "RRULE:FREQ=WEEKLY;INTERVAL=2"

	_, err := c.CreateTask(context.Background(), "review", "inbox42", model.Changes{Recurrence: &rule})
	require.NoError(t, err)
	got := rec.get()
	assert.Equal(t, rule, got.body["repeatFlag"])
	assert.Equal(t, "2026-03-10T12:00:00+0000", got.body["startDate"])
	assert.Equal(t, "2026-03-10T12:00:00+0000", got.body["dueDate"])
}

func TestUpdateTask_ClearsRecurrenceAndReminders(t *testing.T) {
	t.Parallel()
	c, rec := newServer(t, http.StatusOK, `{"id":"task-1","projectId":"p1"}`)
	empty := ""

	_, err := c.UpdateTask(context.Background(), "task-1", "p1", model.Changes{Recurrence: &empty, Reminders: []string{}})
	require.NoError(t, err)
	got := rec.get()
	assert.Equal(t, "", got.body["repeatFlag"])
	assert.Equal(t, []any{}, got.body["reminders"])
	assert.NotContains(t, got.body, "startDate")
}

func TestUpdateTask_SendsIDAndProject(t *testing.T) {
	t.Parallel()
	c, rec := newServer(t, http.StatusOK, `{"id":"task-1","projectId":"p1"}`)

	_, err := c.UpdateTask(context.Background(), "task-1", "p1", model.Changes{Tags: []string{}})
	require.NoError(t, err)
	got := rec.get()
	assert.Equal(t, "/open/v1/task/task-1", got.path)
	assert.Equal(t, "task-1", got.body["id"])
	assert.Equal(t, "p1", got.body["projectId"])
	assert.Equal(t, []any{}, got.body["tags"])
	assert.NotContains(t, got.body, "title")
}

func TestUpdateTask_MoveUsesTargetProject(t *testing.T) {
	t.Parallel()
	c, rec := newServer(t, http.StatusOK, ``)
	target := "p2"

	rt, err := c.UpdateTask(context.Background(), "task-1", "p1", model.Changes{ContainerID: &target})
	require.NoError(t, err)
	got := rec.get()
	assert.Equal(t, "p2", got.body["projectId"])
	assert.Equal(t, model.RemoteTask{ID: "task-1", ContainerID: "p2"}, rt)
}

func TestCompleteAndDeletePaths(t *testing.T) {
	t.Parallel()
	c, rec := newServer(t, http.StatusOK, ``)

	require.NoError(t, c.CompleteTask(context.Background(), "task-1", "p1"))
	got := rec.get()
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/open/v1/project/p1/task/task-1/complete", got.path)

	require.NoError(t, c.DeleteTask(context.Background(), "task-1", "p1"))
	got = rec.get()
	assert.Equal(t, http.MethodDelete, got.method)
	assert.Equal(t, "/open/v1/project/p1/task/task-1", got.path)
}

func TestContainers(t *testing.T) {
	t.Parallel()
	c, rec := newServer(t, http.StatusOK, `[{"id":"p1","name":"Work"},{"id":"p2","name":"Old","closed":true}]`)

	items, err := c.Containers(context.Background())
	require.NoError(t, err)
	got := rec.get()
	assert.Equal(t, "/open/v1/project", got.path)
	assert.Equal(t, []model.Container{{ID: "p1", Name: "Work"}, {ID: "p2", Name: "Old", Closed: true}}, items)
}

func TestStatusMapping(t *testing.T) {
	t.Parallel()
	cases := []struct {
		status int
		want   error
	}{
		{status: http.StatusNotFound, want: failure.ErrNotFound},
		{status: http.StatusTooManyRequests, want: failure.ErrRemoteUnavailable},
		{status: http.StatusBadGateway, want: failure.ErrRemoteUnavailable},
		{status: http.StatusBadRequest, want: failure.ErrRemoteRejected},
		{status: http.StatusForbidden, want: failure.ErrRemoteRejected},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			t.Parallel()
			c, _ := newServer(t, tc.status, `{"errorMessage":"nope"}`)
			err := c.CompleteTask(context.Background(), "task-1", "p1")
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRejectedCarriesBody(t *testing.T) {
	t.Parallel()
	c, _ := newServer(t, http.StatusBadRequest, `{"errorMessage":"title too long"}`)
	_, err := c.CreateTask(context.Background(), "x", "p1", model.Changes{})
	require.ErrorIs(t, err, failure.ErrRemoteRejected)
	assert.Contains(t, err.Error(), "title too long")
}

func TestTransportErrorIsUnavailable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, "token")
	require.NoError(t, err)
	err = c.DeleteTask(context.Background(), "task-1", "p1")
	require.ErrorIs(t, err, failure.ErrRemoteUnavailable)
	assert.True(t, failure.Retryable(err))
}

func TestFormatDate(t *testing.T) {
	t.Parallel()
	ts := time.Date(2019, 11, 13, 6, 0, 0, 0, time.FixedZone("UTC+3", 3*3600))
	assert.Equal(t, "2019-11-13T03:00:00+0000", FormatDate(ts))
}

package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/metalagman/tickwise/internal/model"
	"github.com/metalagman/tickwise/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskTable(t *testing.T) {
	t.Parallel()
	due := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	out := taskTable([]model.TaskRecord{
		{ID: "t1", ContainerID: "p1", Title: "buy milk", Tags: []string{"home", "urgent"}, Due: &due, Priority: model.PriorityHigh, Status: model.StatusActive},
	})
	for _, want := range []string{"TITLE", "buy milk", "home,urgent", "2026-05-01 09:30", "high", "active"} {
		assert.Contains(t, out, want)
	}
}

func TestContainerTable_MarksDefaultAndClosed(t *testing.T) {
	t.Parallel()
	out := containerTable([]model.Container{
		{ID: "inbox1", Name: "Inbox"},
		{ID: "p9", Name: "Old", Closed: true},
	}, "inbox1")
	assert.Contains(t, out, "default")
	assert.Contains(t, out, "closed")
}

func TestPrintResult_JSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, orchestrator.Result{CorrelationID: "c1", Text: "ok"}, true))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "c1", got["correlation_id"])
}

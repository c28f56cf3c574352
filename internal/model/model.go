// Package model holds the shared task, intent and mutation types.
package model

import (
	"slices"
	"time"
)

// Status is the completion state of a task.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Priority is an ordinal task priority.
type Priority int

const (
	PriorityNone Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
)

var priorityNames = map[Priority]string{
	PriorityNone:   "none",
	PriorityLow:    "low",
	PriorityMedium: "medium",
	PriorityHigh:   "high",
}

// String returns the priority name.
func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return "unknown"
}

// ParsePriority maps a priority name to its level.
func ParsePriority(name string) (Priority, bool) {
	for p, n := range priorityNames {
		if n == name {
			return p, true
		}
	}
	return PriorityNone, false
}

// Valid reports whether p is one of the known levels.
func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

// TaskRecord is the last known state of a task.
type TaskRecord struct {
	ID          string     `json:"id"`
	ContainerID string     `json:"container_id"`
	Title       string     `json:"title"`
	Tags        []string   `json:"tags"`
	Notes       string     `json:"notes,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
	Priority    Priority   `json:"priority"`
	Reminders   []string   `json:"reminders,omitempty"`
	Recurrence  string     `json:"recurrence,omitempty"`
	Status      Status     `json:"status"`
	SyncedAt    time.Time  `json:"synced_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Completed reports whether the task is completed.
func (r TaskRecord) Completed() bool {
	return r.Status == StatusCompleted
}

// Clone returns a deep copy of the record.
func (r TaskRecord) Clone() TaskRecord {
	out := r
	if r.Tags != nil {
		out.Tags = slices.Clone(r.Tags)
	}
	if r.Reminders != nil {
		out.Reminders = slices.Clone(r.Reminders)
	}
	if r.Due != nil {
		due := *r.Due
		out.Due = &due
	}
	return out
}

// Apply returns the record with the changes applied.
func (r TaskRecord) Apply(c Changes) TaskRecord {
	out := r.Clone()
	if c.Title != nil {
		out.Title = *c.Title
	}
	if c.Tags != nil {
		out.Tags = slices.Clone(c.Tags)
	}
	if c.Notes != nil {
		out.Notes = *c.Notes
	}
	if c.Due != nil {
		due := *c.Due
		out.Due = &due
	}
	if c.Priority != nil {
		out.Priority = *c.Priority
	}
	if c.Reminders != nil {
		out.Reminders = slices.Clone(c.Reminders)
	}
	if c.Recurrence != nil {
		out.Recurrence = *c.Recurrence
	}
	if c.ContainerID != nil {
		out.ContainerID = *c.ContainerID
	}
	return out
}

// Container is a remote list or project.
type Container struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed,omitempty"`
}

// RemoteTask is what the remote service reports after a mutation.
type RemoteTask struct {
	ID          string
	ContainerID string
}

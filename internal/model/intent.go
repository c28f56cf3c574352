package model

import (
	"slices"
	"strings"
	"time"
)

// Action names what an intent asks for.
type Action string

const (
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionMove         Action = "move"
	ActionComplete     Action = "complete"
	ActionTag          Action = "tag"
	ActionNote         Action = "note"
	ActionBulkUpdate   Action = "bulk_update"
	ActionBulkMove     Action = "bulk_move"
	ActionBulkTag      Action = "bulk_tag"
	ActionBulkComplete Action = "bulk_complete"
)

var bulkBase = map[Action]Action{
	ActionBulkUpdate:   ActionUpdate,
	ActionBulkMove:     ActionMove,
	ActionBulkTag:      ActionTag,
	ActionBulkComplete: ActionComplete,
}

// Actions lists every known action.
func Actions() []Action {
	return []Action{
		ActionCreate, ActionUpdate, ActionDelete, ActionMove, ActionComplete, ActionTag, ActionNote,
		ActionBulkUpdate, ActionBulkMove, ActionBulkTag, ActionBulkComplete,
	}
}

// Known reports whether a is a known action.
func (a Action) Known() bool {
	return slices.Contains(Actions(), a)
}

// Bulk reports whether a fans out over a selection of tasks.
func (a Action) Bulk() bool {
	_, ok := bulkBase[a]
	return ok
}

// Single returns the per-task action a bulk action decomposes into.
func (a Action) Single() Action {
	if base, ok := bulkBase[a]; ok {
		return base
	}
	return a
}

// Mode says how a new value combines with the current one.
type Mode string

const (
	ModeReplace Mode = "replace"
	ModeMerge   Mode = "merge"
	ModeAppend  Mode = "append"
	ModeRemove  Mode = "remove"
)

// Field names a mutable task attribute. Reminders are TickTick triggers
// such as "TRIGGER:PT0S"; recurrence is an RRULE.
type Field string

const (
	FieldTitle      Field = "title"
	FieldTags       Field = "tags"
	FieldNotes      Field = "notes"
	FieldDue        Field = "due"
	FieldPriority   Field = "priority"
	FieldContainer  Field = "container"
	FieldReminders  Field = "reminders"
	FieldRecurrence Field = "recurrence"
)

// Fields lists every mutable field in a stable order.
func Fields() []Field {
	return []Field{FieldTitle, FieldTags, FieldNotes, FieldDue, FieldPriority, FieldReminders, FieldRecurrence, FieldContainer}
}

// FieldOperation is one requested field change.
type FieldOperation struct {
	Value any  `json:"value"`
	Mode  Mode `json:"mode"`
}

// Reference points at a task by id or by title text.
type Reference struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title,omitempty"`
	ContainerID string `json:"container_id,omitempty"`
}

// Empty reports whether the reference carries neither id nor title.
func (r Reference) Empty() bool {
	return strings.TrimSpace(r.ID) == "" && strings.TrimSpace(r.Title) == ""
}

// String returns the reference text as the user gave it.
func (r Reference) String() string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return id
	}
	return strings.TrimSpace(r.Title)
}

// Selector chooses tasks from the index for bulk intents.
type Selector struct {
	Overdue          bool   `json:"overdue,omitempty"`
	ContainerID      string `json:"container_id,omitempty"`
	Tag              string `json:"tag,omitempty"`
	TitleContains    string `json:"title_contains,omitempty"`
	IncludeCompleted bool   `json:"include_completed,omitempty"`
}

// Intent is a structured user request.
type Intent struct {
	Action   Action                   `json:"action"`
	Task     Reference                `json:"task"`
	Fields   map[Field]FieldOperation `json:"fields,omitempty"`
	Selector *Selector                `json:"selector,omitempty"`
}

// Changes is a resolved mutation. Nil members are left untouched.
type Changes struct {
	Title       *string
	Tags        []string
	Notes       *string
	Due         *time.Time
	Priority    *Priority
	Reminders   []string
	Recurrence  *string
	ContainerID *string
}

// Fields returns the fields carried by the changes.
func (c Changes) Fields() []Field {
	var out []Field
	if c.Title != nil {
		out = append(out, FieldTitle)
	}
	if c.Tags != nil {
		out = append(out, FieldTags)
	}
	if c.Notes != nil {
		out = append(out, FieldNotes)
	}
	if c.Due != nil {
		out = append(out, FieldDue)
	}
	if c.Priority != nil {
		out = append(out, FieldPriority)
	}
	if c.Reminders != nil {
		out = append(out, FieldReminders)
	}
	if c.Recurrence != nil {
		out = append(out, FieldRecurrence)
	}
	if c.ContainerID != nil {
		out = append(out, FieldContainer)
	}
	return out
}

// Empty reports whether no field is changed.
func (c Changes) Empty() bool {
	return len(c.Fields()) == 0
}

// Clears returns the changed fields whose new value is empty.
func (c Changes) Clears() []Field {
	var out []Field
	if c.Title != nil && *c.Title == "" {
		out = append(out, FieldTitle)
	}
	if c.Tags != nil && len(c.Tags) == 0 {
		out = append(out, FieldTags)
	}
	if c.Notes != nil && *c.Notes == "" {
		out = append(out, FieldNotes)
	}
	if c.Priority != nil && *c.Priority == PriorityNone {
		out = append(out, FieldPriority)
	}
	if c.Reminders != nil && len(c.Reminders) == 0 {
		out = append(out, FieldReminders)
	}
	if c.Recurrence != nil && *c.Recurrence == "" {
		out = append(out, FieldRecurrence)
	}
	return out
}

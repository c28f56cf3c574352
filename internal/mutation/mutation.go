// Package mutation turns requested field operations into concrete changes.
package mutation

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/metalagman/tickwise/internal/failure"
	"github.com/metalagman/tickwise/internal/model"
)

const op = "resolve fields"

type kind int

const (
	kindText kind = iota
	kindSet
	kindBlob
	kindDate
	kindOrdinal
	kindRef
	kindRule
)

func (k kind) String() string {
	switch k {
	case kindText:
		return "text"
	case kindSet:
		return "set"
	case kindBlob:
		return "blob"
	case kindDate:
		return "date"
	case kindOrdinal:
		return "ordinal"
	case kindRef:
		return "reference"
	case kindRule:
		return "rule"
	default:
		return "unknown"
	}
}

var fieldKinds = map[model.Field]kind{
	model.FieldTitle:      kindText,
	model.FieldTags:       kindSet,
	model.FieldNotes:      kindBlob,
	model.FieldDue:        kindDate,
	model.FieldPriority:   kindOrdinal,
	model.FieldReminders:  kindSet,
	model.FieldRecurrence: kindRule,
	model.FieldContainer:  kindRef,
}

// setField reads and writes one set-valued field. item normalizes a single
// member; an empty result drops it.
type setField struct {
	current func(model.TaskRecord) []string
	assign  func(*model.Changes, []string)
	item    func(string) (string, error)
}

var setFields = map[model.Field]setField{
	model.FieldTags: {
		current: func(r model.TaskRecord) []string { return r.Tags },
		assign:  func(c *model.Changes, v []string) { c.Tags = v },
		item:    func(s string) (string, error) { return strings.TrimSpace(s), nil },
	},
	model.FieldReminders: {
		current: func(r model.TaskRecord) []string { return r.Reminders },
		assign:  func(c *model.Changes, v []string) { c.Reminders = v },
		item:    asTrigger,
	},
}

// combinator folds value into out given the current record.
type combinator func(r *Resolver, f model.Field, cur model.TaskRecord, value any, out *model.Changes) error

// table is the only place that decides which kind/mode pairs are legal.
var table = map[kind]map[model.Mode]combinator{
	kindText: {
		model.ModeReplace: replaceText,
		model.ModeMerge:   replaceText,
		model.ModeAppend:  appendText,
	},
	kindSet: {
		model.ModeReplace: replaceSet,
		model.ModeMerge:   unionSet,
		model.ModeAppend:  unionSet,
		model.ModeRemove:  subtractSet,
	},
	kindBlob: {
		model.ModeReplace: replaceBlob,
		model.ModeMerge:   appendBlob,
		model.ModeAppend:  appendBlob,
	},
	kindDate: {
		model.ModeReplace: replaceDate,
		model.ModeMerge:   replaceDate,
	},
	kindOrdinal: {
		model.ModeReplace: replacePriority,
		model.ModeMerge:   replacePriority,
	},
	kindRef: {
		model.ModeReplace: replaceContainer,
		model.ModeMerge:   replaceContainer,
	},
	kindRule: {
		model.ModeReplace: replaceRule,
		model.ModeMerge:   replaceRule,
	},
}

// Resolver computes changes from field operations.
type Resolver struct {
	loc *time.Location
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLocation sets the zone for dates given without an offset.
func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// New creates a resolver. Dates without an offset default to UTC.
func New(opts ...Option) *Resolver {
	r := &Resolver{loc: time.UTC}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve combines ops with the current record. Modes are taken as given;
// an empty mode is an error here.
func (r *Resolver) Resolve(current model.TaskRecord, ops map[model.Field]model.FieldOperation, forCreate bool) (model.Changes, error) {
	var out model.Changes
	fields := make([]model.Field, 0, len(ops))
	for f := range ops {
		fields = append(fields, f)
	}
	slices.Sort(fields)

	for _, f := range fields {
		fo := ops[f]
		k, ok := fieldKinds[f]
		if !ok {
			return model.Changes{}, failure.Unsupported(op, fmt.Sprintf("unknown field %q", f))
		}
		if forCreate && fo.Mode != model.ModeReplace {
			return model.Changes{}, failure.Validation(op, fmt.Sprintf("field %q: mode %q is not allowed on create", f, fo.Mode))
		}
		fn, ok := table[k][fo.Mode]
		if !ok {
			return model.Changes{}, failure.Unsupported(op, fmt.Sprintf("field %q (%s) does not support mode %q", f, k, fo.Mode))
		}
		if err := fn(r, f, current, fo.Value, &out); err != nil {
			return model.Changes{}, fmt.Errorf("field %q: %w", f, err)
		}
	}
	return out, nil
}

// Supports reports whether mode is legal for field.
func Supports(field model.Field, mode model.Mode) bool {
	k, ok := fieldKinds[field]
	if !ok {
		return false
	}
	_, ok = table[k][mode]
	return ok
}

func replaceText(_ *Resolver, _ model.Field, _ model.TaskRecord, value any, out *model.Changes) error {
	s, err := asString(value)
	if err != nil {
		return err
	}
	out.Title = &s
	return nil
}

func appendText(_ *Resolver, _ model.Field, cur model.TaskRecord, value any, out *model.Changes) error {
	s, err := asString(value)
	if err != nil {
		return err
	}
	joined := joinNonEmpty(cur.Title, s, " ")
	out.Title = &joined
	return nil
}

func replaceSet(_ *Resolver, f model.Field, _ model.TaskRecord, value any, out *model.Changes) error {
	sf := setFields[f]
	items, err := setItems(sf, value)
	if err != nil {
		return err
	}
	sf.assign(out, dedup(items))
	return nil
}

func unionSet(_ *Resolver, f model.Field, cur model.TaskRecord, value any, out *model.Changes) error {
	sf := setFields[f]
	items, err := setItems(sf, value)
	if err != nil {
		return err
	}
	sf.assign(out, dedup(append(slices.Clone(sf.current(cur)), items...)))
	return nil
}

func subtractSet(_ *Resolver, f model.Field, cur model.TaskRecord, value any, out *model.Changes) error {
	sf := setFields[f]
	items, err := setItems(sf, value)
	if err != nil {
		return err
	}
	drop := dedup(items)
	current := dedup(sf.current(cur))
	kept := make([]string, 0, len(current))
	for _, item := range current {
		if !slices.Contains(drop, item) {
			kept = append(kept, item)
		}
	}
	sf.assign(out, kept)
	return nil
}

func setItems(sf setField, value any) ([]string, error) {
	raw, err := asSet(value)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		norm, err := sf.item(item)
		if err != nil {
			return nil, err
		}
		out = append(out, norm)
	}
	return out, nil
}

func replaceBlob(_ *Resolver, _ model.Field, _ model.TaskRecord, value any, out *model.Changes) error {
	s, err := asString(value)
	if err != nil {
		return err
	}
	out.Notes = &s
	return nil
}

func appendBlob(_ *Resolver, _ model.Field, cur model.TaskRecord, value any, out *model.Changes) error {
	s, err := asString(value)
	if err != nil {
		return err
	}
	joined := joinNonEmpty(cur.Notes, s, "\n\n")
	out.Notes = &joined
	return nil
}

func replaceDate(r *Resolver, _ model.Field, _ model.TaskRecord, value any, out *model.Changes) error {
	due, err := r.asTime(value)
	if err != nil {
		return err
	}
	out.Due = &due
	return nil
}

func replacePriority(_ *Resolver, _ model.Field, _ model.TaskRecord, value any, out *model.Changes) error {
	p, err := asPriority(value)
	if err != nil {
		return err
	}
	out.Priority = &p
	return nil
}

func replaceContainer(_ *Resolver, _ model.Field, _ model.TaskRecord, value any, out *model.Changes) error {
	s, err := asString(value)
	if err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return failure.Validation(op, "container must not be empty")
	}
	out.ContainerID = &s
	return nil
}

func replaceRule(_ *Resolver, _ model.Field, _ model.TaskRecord, value any, out *model.Changes) error {
	rule, err := asRecurrence(value)
	if err != nil {
		return err
	}
	out.Recurrence = &rule
	return nil
}

func joinNonEmpty(current, next, sep string) string {
	switch {
	case current == "":
		return next
	case next == "":
		return current
	default:
		return current + sep + next
	}
}

func dedup(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" && !slices.Contains(out, item) {
			out = append(out, item)
		}
	}
	slices.Sort(out)
	return out
}

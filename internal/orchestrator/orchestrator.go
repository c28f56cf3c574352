// Package orchestrator runs intents through resolution, mutation and dispatch.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/metalagman/tickwise/internal/db"
	"github.com/metalagman/tickwise/internal/dispatch"
	"github.com/metalagman/tickwise/internal/failure"
	"github.com/metalagman/tickwise/internal/index"
	"github.com/metalagman/tickwise/internal/intent"
	"github.com/metalagman/tickwise/internal/model"
	"github.com/metalagman/tickwise/internal/resolve"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Resolver resolves task references.
type Resolver interface {
	Resolve(ctx context.Context, ref model.Reference) (resolve.Resolution, error)
}

// Index is the read side of the task index.
type Index interface {
	Get(ctx context.Context, id string) (model.TaskRecord, error)
	List(ctx context.Context, f index.Filter) ([]model.TaskRecord, error)
}

// Mutator computes field changes.
type Mutator interface {
	Resolve(current model.TaskRecord, ops map[model.Field]model.FieldOperation, forCreate bool) (model.Changes, error)
}

// Dispatcher applies changes remotely.
type Dispatcher interface {
	Apply(ctx context.Context, req dispatch.Request) (model.TaskRecord, error)
}

// Containers resolves container names.
type Containers interface {
	Resolve(ctx context.Context, nameOrID string) (model.Container, error)
	Default() string
}

// Journal records finished commands.
type Journal interface {
	RecordCommand(ctx context.Context, cmd db.CommandRecord, items []db.ItemRecord) error
}

// Deps are the collaborators of an Engine. Parser and Journal are optional.
type Deps struct {
	Resolver   Resolver
	Index      Index
	Mutator    Mutator
	Dispatcher Dispatcher
	Containers Containers
	Parser     intent.Parser
	Journal    Journal
}

// Result is the outcome of one command.
type Result struct {
	CorrelationID string              `json:"correlation_id"`
	Action        model.Action        `json:"action"`
	Text          string              `json:"text"`
	Code          failure.Kind        `json:"code,omitempty"`
	Record        *model.TaskRecord   `json:"record,omitempty"`
	Resolution    *resolve.Resolution `json:"resolution,omitempty"`
	Items         []ItemResult        `json:"items,omitempty"`
}

// ItemResult is the outcome for one task of a bulk command.
type ItemResult struct {
	TaskID string       `json:"task_id"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Code   failure.Kind `json:"code,omitempty"`
}

// Succeeded counts successful bulk items.
func (r Result) Succeeded() int {
	n := 0
	for _, it := range r.Items {
		if it.Code == "" {
			n++
		}
	}
	return n
}

// Engine is the single entry point for front ends.
type Engine struct {
	deps  Deps
	locks *keyedMutex
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used by selectors.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine.
func New(deps Deps, opts ...Option) *Engine {
	e := &Engine{deps: deps, locks: newKeyedMutex(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle parses free text and executes the resulting intent. Parse failures
// are final.
func (e *Engine) Handle(ctx context.Context, text string) (Result, error) {
	ctx, id := withCorrelation(ctx)
	started := e.now()
	res, err := e.handle(ctx, id, text)
	e.record(ctx, text, started, res)
	return res, err
}

func (e *Engine) handle(ctx context.Context, id, text string) (Result, error) {
	if e.deps.Parser == nil {
		err := failure.Parse("handle", errors.New("no parser configured"))
		return failed(id, "", err), err
	}
	in, err := e.deps.Parser.Parse(ctx, text)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("message not understood")
		return failed(id, "", err), err
	}
	return e.execute(ctx, id, in)
}

// Execute runs one intent.
func (e *Engine) Execute(ctx context.Context, in model.Intent) (Result, error) {
	ctx, id := withCorrelation(ctx)
	started := e.now()
	res, err := e.execute(ctx, id, in)
	input, _ := json.Marshal(in)
	e.record(ctx, string(input), started, res)
	return res, err
}

// record writes the command to the journal. Journal failures are logged.
func (e *Engine) record(ctx context.Context, input string, started time.Time, res Result) {
	if e.deps.Journal == nil {
		return
	}
	cmd := db.CommandRecord{
		CorrelationID: res.CorrelationID,
		Action:        string(res.Action),
		Input:         input,
		Code:          string(res.Code),
		Text:          res.Text,
		StartedAt:     started,
		EndedAt:       e.now(),
	}
	var items []db.ItemRecord
	for _, it := range res.Items {
		items = append(items, db.ItemRecord{TaskID: it.TaskID, Title: it.Title, Code: string(it.Code), Text: it.Text})
	}
	if res.Record != nil && len(res.Items) == 0 {
		items = append(items, db.ItemRecord{TaskID: res.Record.ID, Title: res.Record.Title, Text: res.Text})
	}
	if err := e.deps.Journal.RecordCommand(context.WithoutCancel(ctx), cmd, items); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("journal command")
	}
}

func withCorrelation(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	base := zerolog.Ctx(ctx)
	if base.GetLevel() == zerolog.Disabled {
		base = &log.Logger
	}
	logger := base.With().Str("correlation_id", id).Logger()
	return logger.WithContext(ctx), id
}

func (e *Engine) execute(ctx context.Context, id string, in model.Intent) (Result, error) {
	logger := zerolog.Ctx(ctx).With().Str("action", string(in.Action)).Logger()
	ctx = logger.WithContext(ctx)

	if err := validate(in); err != nil {
		logger.Info().Err(err).Msg("intent rejected")
		return failed(id, in.Action, err), err
	}
	if in.Action.Bulk() {
		return e.executeBulk(ctx, id, in)
	}

	out, err := e.runOne(ctx, in.Action, in.Task, in.Fields)
	out.CorrelationID = id
	out.Action = in.Action
	if err != nil {
		logger.Info().Err(err).Str("code", string(out.Code)).Msg("command failed")
		return out, err
	}
	logger.Debug().Str("task_id", out.Record.ID).Msg("command done")
	return out, nil
}

func (e *Engine) runOne(ctx context.Context, action model.Action, ref model.Reference, fields map[model.Field]model.FieldOperation) (Result, error) {
	if action == model.ActionCreate {
		return e.create(ctx, ref, fields)
	}

	scoped, err := e.scopeReference(ctx, ref)
	if err != nil {
		return Result{Text: describeFailure(ref.String(), err), Code: codeOf(err)}, err
	}
	res, err := e.deps.Resolver.Resolve(ctx, scoped)
	if err != nil {
		return Result{Text: describeFailure(ref.String(), err), Code: codeOf(err)}, err
	}

	unlock, err := e.locks.Lock(ctx, res.Record.ID)
	if err != nil {
		return Result{Text: describeFailure(ref.String(), err), Code: codeOf(err), Resolution: &res}, err
	}
	defer unlock()

	cur, err := e.deps.Index.Get(ctx, res.Record.ID)
	if err != nil {
		err = failure.WithRef(err, ref.String())
		return Result{Text: describeFailure(ref.String(), err), Code: codeOf(err), Resolution: &res}, err
	}

	req := dispatch.Request{Action: action, Current: cur}
	if needsChanges(action) {
		changes, err := e.deps.Mutator.Resolve(cur, fields, false)
		if err != nil {
			return Result{Text: describeFailure(ref.String(), err), Code: codeOf(err), Resolution: &res}, err
		}
		if err := e.resolveContainer(ctx, &changes); err != nil {
			return Result{Text: describeFailure(ref.String(), err), Code: codeOf(err), Resolution: &res}, err
		}
		req.Changes = changes
	}

	rec, err := e.deps.Dispatcher.Apply(ctx, req)
	if err != nil {
		if errors.Is(err, dispatch.ErrNotIndexed) {
			return Result{Text: describeUnindexed(action, rec), Code: codeOf(err), Record: &rec, Resolution: &res}, err
		}
		if errors.Is(err, failure.ErrNotFound) {
			zerolog.Ctx(ctx).Info().Str("task_id", cur.ID).Msg("task unknown to remote")
			err = failure.WithRef(err, ref.String())
		}
		return Result{Text: describeFailure(cur.Title, err), Code: codeOf(err), Resolution: &res}, err
	}
	return Result{
		Text:       describeSuccess(action, cur, rec, req.Changes, &res.Provenance),
		Record:     &rec,
		Resolution: &res,
	}, nil
}

func (e *Engine) create(ctx context.Context, ref model.Reference, fields map[model.Field]model.FieldOperation) (Result, error) {
	changes, err := e.deps.Mutator.Resolve(model.TaskRecord{}, fields, true)
	if err != nil {
		return Result{Text: describeFailure(ref.String(), err), Code: codeOf(err)}, err
	}
	if changes.ContainerID == nil && strings.TrimSpace(ref.ContainerID) != "" {
		c := strings.TrimSpace(ref.ContainerID)
		changes.ContainerID = &c
	}
	if changes.ContainerID == nil {
		if def := e.deps.Containers.Default(); def != "" {
			changes.ContainerID = &def
		}
	}
	if err := e.resolveContainer(ctx, &changes); err != nil {
		return Result{Text: describeFailure(ref.String(), err), Code: codeOf(err)}, err
	}

	req := dispatch.Request{Action: model.ActionCreate, Changes: changes}
	if changes.ContainerID != nil {
		req.ContainerID = *changes.ContainerID
	}
	rec, err := e.deps.Dispatcher.Apply(ctx, req)
	if errors.Is(err, dispatch.ErrNotIndexed) {
		return Result{Text: describeUnindexed(model.ActionCreate, rec), Code: codeOf(err), Record: &rec}, err
	}
	if err != nil {
		title := ref.String()
		if changes.Title != nil {
			title = *changes.Title
		}
		return Result{Text: describeFailure(title, err), Code: codeOf(err)}, err
	}
	return Result{Text: describeSuccess(model.ActionCreate, model.TaskRecord{}, rec, changes, nil), Record: &rec}, nil
}

// scopeReference turns a container name on a title reference into its id.
// Id references ignore the container.
func (e *Engine) scopeReference(ctx context.Context, ref model.Reference) (model.Reference, error) {
	name := strings.TrimSpace(ref.ContainerID)
	if name == "" || strings.TrimSpace(ref.ID) != "" {
		return ref, nil
	}
	c, err := e.deps.Containers.Resolve(ctx, name)
	if err != nil {
		return model.Reference{}, err
	}
	ref.ContainerID = c.ID
	return ref, nil
}

func (e *Engine) resolveContainer(ctx context.Context, changes *model.Changes) error {
	if changes.ContainerID == nil {
		return nil
	}
	c, err := e.deps.Containers.Resolve(ctx, *changes.ContainerID)
	if err != nil {
		return err
	}
	id := c.ID
	changes.ContainerID = &id
	return nil
}

func (e *Engine) executeBulk(ctx context.Context, id string, in model.Intent) (Result, error) {
	out := Result{CorrelationID: id, Action: in.Action}
	filter, err := e.filterFor(ctx, *in.Selector)
	if err != nil {
		out.Text, out.Code = describeFailure("selection", err), codeOf(err)
		return out, err
	}
	records, err := e.deps.Index.List(ctx, filter)
	if err != nil {
		out.Text, out.Code = describeFailure("selection", err), codeOf(err)
		return out, err
	}

	single := in.Action.Single()
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			out.Items = append(out.Items, ItemResult{TaskID: rec.ID, Title: rec.Title, Text: "cancelled", Code: codeOf(err)})
			continue
		}
		res, err := e.runOne(ctx, single, model.Reference{ID: rec.ID}, in.Fields)
		item := ItemResult{TaskID: rec.ID, Title: rec.Title, Text: res.Text, Code: res.Code}
		if err != nil && item.Code == "" {
			item.Code = codeOf(err)
		}
		out.Items = append(out.Items, item)
	}
	out.Text = describeBulk(single, out)
	zerolog.Ctx(ctx).Info().
		Int("selected", len(records)).
		Int("succeeded", out.Succeeded()).
		Msg("bulk command done")
	return out, nil
}

func (e *Engine) filterFor(ctx context.Context, sel model.Selector) (index.Filter, error) {
	f := index.Filter{
		Tag:           strings.TrimSpace(sel.Tag),
		TitleContains: sel.TitleContains,
	}
	if !sel.IncludeCompleted {
		f.Status = model.StatusActive
	}
	if sel.Overdue {
		now := e.now()
		f.DueBefore = &now
	}
	if name := strings.TrimSpace(sel.ContainerID); name != "" {
		c, err := e.deps.Containers.Resolve(ctx, name)
		if err != nil {
			return index.Filter{}, err
		}
		f.ContainerID = c.ID
	}
	return f, nil
}

func needsChanges(action model.Action) bool {
	switch action {
	case model.ActionUpdate, model.ActionTag, model.ActionNote, model.ActionMove:
		return true
	default:
		return false
	}
}

var allowedFields = map[model.Action][]model.Field{
	model.ActionTag:  {model.FieldTags},
	model.ActionNote: {model.FieldNotes},
	model.ActionMove: {model.FieldContainer},
}

func validate(in model.Intent) error {
	if !in.Action.Known() {
		return failure.Validation("validate", fmt.Sprintf("unknown action %q", in.Action))
	}
	single := in.Action.Single()

	switch {
	case in.Action.Bulk():
		if in.Selector == nil || *in.Selector == (model.Selector{IncludeCompleted: in.Selector.IncludeCompleted}) {
			return failure.Validation("validate", "bulk actions need a selector with at least one criterion")
		}
	case single == model.ActionCreate:
		if _, ok := in.Fields[model.FieldTitle]; !ok {
			return failure.Validation("validate", "create needs a title")
		}
	default:
		if in.Task.Empty() {
			return failure.Validation("validate", "a task id or title is required")
		}
	}

	switch single {
	case model.ActionComplete, model.ActionDelete:
		if len(in.Fields) > 0 {
			return failure.Validation("validate", fmt.Sprintf("%s takes no fields", single))
		}
	case model.ActionUpdate:
		if len(in.Fields) == 0 {
			return failure.Validation("validate", "update needs at least one field")
		}
	case model.ActionTag, model.ActionNote, model.ActionMove:
		allowed := allowedFields[single]
		if len(in.Fields) == 0 {
			return failure.Validation("validate", fmt.Sprintf("%s needs the %s field", single, allowed[0]))
		}
		for f := range in.Fields {
			if !slices.Contains(allowed, f) {
				return failure.Validation("validate", fmt.Sprintf("%s does not accept field %q", single, f))
			}
		}
	}
	return nil
}

func failed(id string, action model.Action, err error) Result {
	return Result{CorrelationID: id, Action: action, Text: describeFailure("", err), Code: codeOf(err)}
}

func codeOf(err error) failure.Kind {
	if k := failure.KindOf(err); k != "" {
		return k
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return failure.KindCanceled
	}
	return failure.KindInternal
}

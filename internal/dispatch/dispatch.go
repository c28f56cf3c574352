// Package dispatch applies resolved mutations to the remote tracker and
// mirrors confirmed results into the local index.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/metalagman/tickwise/internal/failure"
	"github.com/metalagman/tickwise/internal/model"
	"github.com/rs/zerolog"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 500 * time.Millisecond
)

// ErrNotIndexed marks a mutation the remote confirmed but the index could
// not record. The returned record carries the remote id.
var ErrNotIndexed = errors.New("not indexed")

// Remote is the remote task service.
type Remote interface {
	CreateTask(ctx context.Context, title, containerID string, changes model.Changes) (model.RemoteTask, error)
	UpdateTask(ctx context.Context, id, containerID string, changes model.Changes) (model.RemoteTask, error)
	CompleteTask(ctx context.Context, id, containerID string) error
	DeleteTask(ctx context.Context, id, containerID string) error
}

// Index is the write side of the local task index.
type Index interface {
	Put(ctx context.Context, rec model.TaskRecord, clear ...model.Field) error
	Remove(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string) error
}

// Request is one mutation to apply.
type Request struct {
	Action model.Action
	// Current is the indexed record; unused for create.
	Current model.TaskRecord
	// ContainerID is the target container for create.
	ContainerID string
	Changes     model.Changes
}

// Dispatcher sends mutations to the remote service.
type Dispatcher struct {
	remote           Remote
	index            Index
	defaultContainer string
	attempts         int
	backoff          time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDefaultContainer sets the container used by create when none is given.
func WithDefaultContainer(id string) Option {
	return func(d *Dispatcher) {
		d.defaultContainer = strings.TrimSpace(id)
	}
}

// WithRetry bounds retries of complete and delete.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(d *Dispatcher) {
		if attempts > 0 {
			d.attempts = attempts
		}
		if backoff >= 0 {
			d.backoff = backoff
		}
	}
}

// New creates a dispatcher.
func New(remote Remote, idx Index, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		remote:   remote,
		index:    idx,
		attempts: defaultRetryAttempts,
		backoff:  defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Apply performs req remotely and, on success, updates the index. The
// returned record is the state written to the index.
func (d *Dispatcher) Apply(ctx context.Context, req Request) (model.TaskRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.TaskRecord{}, err
	}
	switch req.Action.Single() {
	case model.ActionCreate:
		return d.create(ctx, req)
	case model.ActionUpdate, model.ActionTag, model.ActionNote:
		return d.update(ctx, req.Current, req.Changes)
	case model.ActionMove:
		if req.Changes.ContainerID == nil || strings.TrimSpace(*req.Changes.ContainerID) == "" {
			return model.TaskRecord{}, failure.Validation("move", "target container is required")
		}
		return d.update(ctx, req.Current, model.Changes{ContainerID: req.Changes.ContainerID})
	case model.ActionComplete:
		return d.complete(ctx, req.Current)
	case model.ActionDelete:
		return d.delete(ctx, req.Current)
	default:
		return model.TaskRecord{}, failure.Unsupported("dispatch", fmt.Sprintf("unknown action %q", req.Action))
	}
}

func (d *Dispatcher) create(ctx context.Context, req Request) (model.TaskRecord, error) {
	if req.Changes.Title == nil || strings.TrimSpace(*req.Changes.Title) == "" {
		return model.TaskRecord{}, failure.Validation("create", "title is required")
	}
	container := strings.TrimSpace(req.ContainerID)
	if container == "" && req.Changes.ContainerID != nil {
		container = strings.TrimSpace(*req.Changes.ContainerID)
	}
	if container == "" {
		container = d.defaultContainer
	}
	if container == "" {
		return model.TaskRecord{}, failure.Validation("create", "container is required")
	}
	title := strings.TrimSpace(*req.Changes.Title)

	rt, err := d.remote.CreateTask(ctx, title, container, req.Changes)
	if err != nil {
		return model.TaskRecord{}, err
	}
	if strings.TrimSpace(rt.ID) == "" {
		return model.TaskRecord{}, failure.RemoteRejected("create", "remote returned no task id", nil)
	}

	rec := model.TaskRecord{ID: rt.ID, Status: model.StatusActive}.Apply(req.Changes)
	rec.Title = title
	rec.ContainerID = container
	if rt.ContainerID != "" {
		rec.ContainerID = rt.ContainerID
	}
	if err := d.index.Put(context.WithoutCancel(ctx), rec); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("task_id", rec.ID).Str("container_id", rec.ContainerID).Msg("created task not indexed")
		return rec, fmt.Errorf("index created task %s: %w: %w", rec.ID, ErrNotIndexed, err)
	}
	zerolog.Ctx(ctx).Info().Str("task_id", rec.ID).Str("container_id", rec.ContainerID).Msg("task created")
	return rec, nil
}

func (d *Dispatcher) update(ctx context.Context, cur model.TaskRecord, changes model.Changes) (model.TaskRecord, error) {
	if err := requireIdentity("update", cur); err != nil {
		return model.TaskRecord{}, err
	}
	if changes.Empty() {
		return model.TaskRecord{}, failure.Validation("update", "nothing to change")
	}

	if _, err := d.remote.UpdateTask(ctx, cur.ID, cur.ContainerID, changes); err != nil {
		return model.TaskRecord{}, d.remoteFailed(ctx, cur, err)
	}

	next := cur.Apply(changes)
	if err := d.index.Put(context.WithoutCancel(ctx), next, changes.Clears()...); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("task_id", cur.ID).Msg("updated task not indexed")
		return next, fmt.Errorf("index updated task %s: %w: %w", cur.ID, ErrNotIndexed, err)
	}
	zerolog.Ctx(ctx).Info().
		Str("task_id", cur.ID).
		Str("container_id", next.ContainerID).
		Interface("fields", changes.Fields()).
		Msg("task updated")
	return next, nil
}

func (d *Dispatcher) complete(ctx context.Context, cur model.TaskRecord) (model.TaskRecord, error) {
	if err := requireIdentity("complete", cur); err != nil {
		return model.TaskRecord{}, err
	}
	err := d.retry(ctx, "complete", func(ctx context.Context) error {
		return d.remote.CompleteTask(ctx, cur.ID, cur.ContainerID)
	})
	if err != nil {
		return model.TaskRecord{}, d.remoteFailed(ctx, cur, err)
	}

	next := cur.Clone()
	next.Status = model.StatusCompleted
	if err := d.index.MarkCompleted(context.WithoutCancel(ctx), cur.ID); err != nil && !errors.Is(err, failure.ErrNotFound) {
		zerolog.Ctx(ctx).Error().Err(err).Str("task_id", cur.ID).Msg("completed task not indexed")
		return next, fmt.Errorf("index completed task %s: %w: %w", cur.ID, ErrNotIndexed, err)
	}
	zerolog.Ctx(ctx).Info().Str("task_id", cur.ID).Msg("task completed")
	return next, nil
}

func (d *Dispatcher) delete(ctx context.Context, cur model.TaskRecord) (model.TaskRecord, error) {
	if err := requireIdentity("delete", cur); err != nil {
		return model.TaskRecord{}, err
	}
	err := d.retry(ctx, "delete", func(ctx context.Context) error {
		return d.remote.DeleteTask(ctx, cur.ID, cur.ContainerID)
	})
	if err != nil {
		return model.TaskRecord{}, d.remoteFailed(ctx, cur, err)
	}
	if err := d.index.Remove(context.WithoutCancel(ctx), cur.ID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("task_id", cur.ID).Msg("deleted task not unindexed")
		return cur, fmt.Errorf("unindex deleted task %s: %w: %w", cur.ID, ErrNotIndexed, err)
	}
	zerolog.Ctx(ctx).Info().Str("task_id", cur.ID).Msg("task deleted")
	return cur, nil
}

// remoteFailed evicts the record when the remote no longer knows the task.
func (d *Dispatcher) remoteFailed(ctx context.Context, cur model.TaskRecord, err error) error {
	if !errors.Is(err, failure.ErrNotFound) {
		return err
	}
	if rmErr := d.index.Remove(context.WithoutCancel(ctx), cur.ID); rmErr != nil {
		zerolog.Ctx(ctx).Warn().Err(rmErr).Str("task_id", cur.ID).Msg("evict stale task")
	} else {
		zerolog.Ctx(ctx).Info().Str("task_id", cur.ID).Msg("evicted task unknown to remote")
	}
	return failure.WithRef(err, cur.ID)
}

// retry runs fn until it succeeds, fails with a non-retryable error or
// runs out of attempts.
func (d *Dispatcher) retry(ctx context.Context, action string, fn func(context.Context) error) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := fn(ctx)
		if err != nil && !failure.Retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(&linearBackOff{step: d.backoff}),
		backoff.WithMaxTries(uint(d.attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			zerolog.Ctx(ctx).Warn().
				Err(err).
				Str("action", action).
				Int("attempt", attempt).
				Dur("backoff", wait).
				Msg("remote unavailable, retrying")
		}),
	)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Unwrap()
	}
	return err
}

// linearBackOff waits step, 2*step, 3*step and so on.
type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return b.step * time.Duration(b.n)
}

func (b *linearBackOff) Reset() {
	b.n = 0
}

func requireIdentity(op string, cur model.TaskRecord) error {
	if strings.TrimSpace(cur.ID) == "" {
		return failure.Validation(op, "task id is required")
	}
	if strings.TrimSpace(cur.ContainerID) == "" {
		return failure.Validation(op, "container id is required")
	}
	return nil
}

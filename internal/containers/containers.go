// Package containers caches the remote project list and resolves container
// names to ids.
package containers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/metalagman/tickwise/internal/failure"
	"github.com/metalagman/tickwise/internal/model"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a fetched container list is considered fresh.
const DefaultTTL = 24 * time.Hour

const idLengthThreshold = 20

// Lister fetches the remote container list.
type Lister interface {
	Containers(ctx context.Context) ([]model.Container, error)
}

// Directory resolves container references against a cached list.
type Directory struct {
	lister    Lister
	snapshots *Snapshots
	ttl       time.Duration
	defaultID string
	now       func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	items     []model.Container
	fetchedAt time.Time
	loaded    bool
}

// Option configures a Directory.
type Option func(*Directory)

// WithTTL sets the freshness window of the cached list.
func WithTTL(ttl time.Duration) Option {
	return func(d *Directory) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithDefault sets the container returned by Default.
func WithDefault(id string) Option {
	return func(d *Directory) {
		d.defaultID = strings.TrimSpace(id)
	}
}

// WithSnapshots persists fetched lists so restarts start warm.
func WithSnapshots(s *Snapshots) Option {
	return func(d *Directory) {
		d.snapshots = s
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) {
		d.now = now
	}
}

// NewDirectory creates a directory backed by lister.
func NewDirectory(lister Lister, opts ...Option) *Directory {
	d := &Directory{lister: lister, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Default returns the configured default container id.
func (d *Directory) Default() string {
	return d.defaultID
}

// LooksLikeID reports whether v is already a remote container id.
func LooksLikeID(v string) bool {
	v = strings.TrimSpace(v)
	return strings.HasPrefix(v, "inbox") || len(v) > idLengthThreshold
}

// Resolve maps a container id or name to a container. An empty value
// resolves to the default container.
func (d *Directory) Resolve(ctx context.Context, nameOrID string) (model.Container, error) {
	ref := strings.TrimSpace(nameOrID)
	if ref == "" {
		if d.defaultID == "" {
			return model.Container{}, failure.Validation("resolve container", "no container given and no default configured")
		}
		ref = d.defaultID
	}

	items, err := d.List(ctx)
	if err != nil {
		if LooksLikeID(ref) {
			return model.Container{ID: ref}, nil
		}
		return model.Container{}, err
	}
	for _, c := range items {
		if c.ID == ref {
			return c, nil
		}
	}
	for _, c := range items {
		if !c.Closed && strings.EqualFold(c.Name, ref) {
			return c, nil
		}
	}
	if LooksLikeID(ref) {
		return model.Container{ID: ref}, nil
	}
	return model.Container{}, failure.NotFound("resolve container", nameOrID)
}

// List returns the container list, refreshing it when stale. A stale list
// is returned when the refresh fails.
func (d *Directory) List(ctx context.Context) ([]model.Container, error) {
	d.warm(ctx)

	d.mu.RLock()
	items, fetchedAt := d.items, d.fetchedAt
	d.mu.RUnlock()
	if items != nil && d.now().Sub(fetchedAt) < d.ttl {
		return items, nil
	}

	v, err, _ := d.group.Do("refresh", func() (any, error) {
		return d.refresh(ctx)
	})
	if err != nil {
		if items != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Time("fetched_at", fetchedAt).Msg("container refresh failed, serving stale list")
			return items, nil
		}
		return nil, err
	}
	return v.([]model.Container), nil
}

// Invalidate forces the next List to refresh. A snapshot not yet loaded
// is skipped.
func (d *Directory) Invalidate() {
	d.mu.Lock()
	d.fetchedAt = time.Time{}
	d.loaded = true
	d.mu.Unlock()
}

func (d *Directory) refresh(ctx context.Context) ([]model.Container, error) {
	items, err := d.lister.Containers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	if items == nil {
		items = []model.Container{}
	}
	now := d.now()

	d.mu.Lock()
	d.items = items
	d.fetchedAt = now
	d.mu.Unlock()

	if d.snapshots != nil {
		if err := d.snapshots.Save(context.WithoutCancel(ctx), items, now); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("persist container snapshot")
		}
	}
	zerolog.Ctx(ctx).Debug().Int("count", len(items)).Msg("container list refreshed")
	return items, nil
}

func (d *Directory) warm(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded || d.snapshots == nil {
		return
	}
	d.loaded = true
	items, fetchedAt, err := d.snapshots.Load(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("load container snapshot")
		return
	}
	if len(items) > 0 && d.items == nil {
		d.items = items
		d.fetchedAt = fetchedAt
	}
}

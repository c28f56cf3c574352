// Package resolve turns a task reference into a concrete indexed record.
package resolve

import (
	"context"
	"strings"

	"github.com/metalagman/tickwise/internal/failure"
	"github.com/metalagman/tickwise/internal/index"
	"github.com/metalagman/tickwise/internal/model"
	"github.com/rs/zerolog"
)

// Method records how a reference was resolved.
type Method string

const (
	MethodID    Method = "id"
	MethodTitle Method = "title"
)

const maxAlternatives = 3

// Index is the subset of the task index used for resolution.
type Index interface {
	Get(ctx context.Context, id string) (model.TaskRecord, error)
	FindByTitle(ctx context.Context, text string, opts index.FindOptions) ([]model.TaskRecord, error)
}

// Provenance explains which record was picked and why.
type Provenance struct {
	Method       Method   `json:"method"`
	Query        string   `json:"query"`
	Candidates   int      `json:"candidates"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// Ambiguous reports whether more than one record matched.
func (p Provenance) Ambiguous() bool {
	return p.Candidates > 1
}

// Resolution is a resolved reference.
type Resolution struct {
	Record     model.TaskRecord `json:"record"`
	Provenance Provenance       `json:"provenance"`
}

// Resolver resolves references against the index.
type Resolver struct {
	index            Index
	includeCompleted bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCompleted makes title searches consider completed tasks.
func WithCompleted(include bool) Option {
	return func(r *Resolver) {
		r.includeCompleted = include
	}
}

// New creates a resolver.
func New(idx Index, opts ...Option) *Resolver {
	r := &Resolver{index: idx}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds the record a reference points at. An id is looked up
// directly and never falls back to title search. A title with several
// matches resolves to the most recently synced one, ties broken by id.
func (r *Resolver) Resolve(ctx context.Context, ref model.Reference) (Resolution, error) {
	if id := strings.TrimSpace(ref.ID); id != "" {
		rec, err := r.index.Get(ctx, id)
		if err != nil {
			return Resolution{}, failure.WithRef(err, id)
		}
		return Resolution{
			Record:     rec,
			Provenance: Provenance{Method: MethodID, Query: id, Candidates: 1},
		}, nil
	}

	query := index.NormalizeTitle(ref.Title)
	if query == "" {
		return Resolution{}, failure.Validation("resolve", "task reference needs an id or a title")
	}
	matches, err := r.index.FindByTitle(ctx, query, index.FindOptions{
		ContainerID:      strings.TrimSpace(ref.ContainerID),
		IncludeCompleted: r.includeCompleted,
	})
	if err != nil {
		return Resolution{}, err
	}
	if len(matches) == 0 {
		return Resolution{}, failure.NotFound("resolve", strings.TrimSpace(ref.Title))
	}

	prov := Provenance{Method: MethodTitle, Query: query, Candidates: len(matches)}
	for _, alt := range matches[1:] {
		if len(prov.Alternatives) == maxAlternatives {
			break
		}
		prov.Alternatives = append(prov.Alternatives, alt.Title)
	}
	if prov.Ambiguous() {
		zerolog.Ctx(ctx).Debug().
			Str("query", query).
			Int("candidates", len(matches)).
			Str("task_id", matches[0].ID).
			Msg("ambiguous title resolved to most recent match")
	}
	return Resolution{Record: matches[0], Provenance: prov}, nil
}

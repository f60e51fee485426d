// Package repository provides typed CRUD access to one entity type stored
// through the core operations.
package repository

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"docbucket/bucket"
	"docbucket/core"
	"docbucket/dataaccess"
	"docbucket/view"
)

// AllView is the view name FindAll, Count and DeleteAll query by default
const AllView = "all"

// Option configures a Repository
type Option func(*options)

type options struct {
	design string
	view   string
	stale  view.Stale
}

// WithDesign sets the design the repository's views live in
func WithDesign(name string) Option {
	return func(o *options) { o.design = name }
}

// WithAllView sets the view that emits every entity of the type
func WithAllView(name string) Option {
	return func(o *options) { o.view = name }
}

// WithStale sets the stale policy of repository view reads (default view.StaleFalse)
func WithStale(s view.Stale) Option {
	return func(o *options) { o.stale = s }
}

// Repository is typed access to entities of type T.
// The design defaults to the lower-cased type name and the view to "all".
type Repository[T any] struct {
	ops  core.Operations
	opts options
}

// New creates a repository for T over ops
func New[T any](ops core.Operations, opts ...Option) *Repository[T] {
	o := options{
		design: defaultDesign[T](),
		view:   AllView,
		stale:  view.StaleFalse,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Repository[T]{ops: ops, opts: o}
}

// Design returns the design name the repository queries
func (r *Repository[T]) Design() string {
	return r.opts.design
}

// EnsureAllView registers the repository's design with an all view that
// emits every document whose field equals value, reduced with _count.
func (r *Repository[T]) EnsureAllView(ctx context.Context, field, value string) error {
	design := view.Design{
		Name: r.opts.design,
		Views: map[string]view.View{
			r.opts.view: {
				Map: func(doc view.Document, emit view.Emitter) {
					if doc.Get(field).String() == value {
						emit(doc.ID, nil)
					}
				},
				Reduce: view.Count,
			},
		},
	}
	_, err := r.ops.Execute(ctx, func(ctx context.Context, b *bucket.Bucket) (any, error) {
		return nil, b.UpsertDesign(design)
	})
	return err
}

func (r *Repository[T]) Save(ctx context.Context, entity T) error {
	return r.ops.Save(ctx, entity)
}

func (r *Repository[T]) Insert(ctx context.Context, entity T) error {
	return r.ops.Insert(ctx, entity)
}

func (r *Repository[T]) Update(ctx context.Context, entity T) error {
	return r.ops.Update(ctx, entity)
}

// SaveAll saves every entity; failures are reported as one *dataaccess.BatchError
func (r *Repository[T]) SaveAll(ctx context.Context, entities []T) error {
	return r.ops.SaveAll(ctx, core.Entities(entities))
}

// FindByID returns the entity, or nil when there is none
func (r *Repository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	return core.FindByID[T](ctx, r.ops, id)
}

func (r *Repository[T]) Exists(ctx context.Context, id string) (bool, error) {
	return r.ops.Exists(ctx, id)
}

// Delete removes the entity; removing an absent entity succeeds
func (r *Repository[T]) Delete(ctx context.Context, entity T) error {
	return r.ops.Remove(ctx, entity)
}

func (r *Repository[T]) DeleteByID(ctx context.Context, id string) error {
	return r.ops.Remove(ctx, id)
}

// FindAll returns every entity emitted by the all view, in view order
func (r *Repository[T]) FindAll(ctx context.Context) ([]T, error) {
	return core.FindByView[T](ctx, r.ops, r.opts.design, r.opts.view, view.NewQuery().Stale(r.opts.stale))
}

// FindByView returns the entities behind the rows of a view in the repository's design
func (r *Repository[T]) FindByView(ctx context.Context, viewName string, q *view.Query) ([]T, error) {
	return core.FindByView[T](ctx, r.ops, r.opts.design, viewName, q)
}

// Count returns the number of entities in the all view. Views with a reduce
// function are counted by their reduced value.
func (r *Repository[T]) Count(ctx context.Context) (int, error) {
	resp, err := r.ops.QueryView(ctx, r.opts.design, r.opts.view, view.NewQuery().Stale(r.opts.stale))
	if err != nil {
		return 0, err
	}
	if len(resp.Rows) == 0 {
		return 0, nil
	}
	if resp.Rows[0].ID != "" {
		return len(resp.Rows), nil
	}
	n, ok := resp.Rows[0].Value.(float64)
	if !ok {
		return 0, dataaccess.Errorf(dataaccess.DataAccess, "count", "",
			"view %s/%s reduced to %T, not a number", r.opts.design, r.opts.view, resp.Rows[0].Value)
	}
	return int(n), nil
}

// DeleteAll removes every entity emitted by the all view
func (r *Repository[T]) DeleteAll(ctx context.Context) error {
	resp, err := r.ops.QueryView(ctx, r.opts.design, r.opts.view,
		view.NewQuery().Stale(r.opts.stale).Reduce(false))
	if err != nil {
		return fmt.Errorf("failed to list entities: %w", err)
	}
	ids := make([]any, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		ids = append(ids, row.ID)
	}
	return r.ops.RemoveAll(ctx, ids)
}

func defaultDesign[T any]() string {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return strings.ToLower(t.Name())
}

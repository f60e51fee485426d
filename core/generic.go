package core

import (
	"context"

	"docbucket/bucket"
	"docbucket/view"
)

// FindByID returns the entity stored under id, or nil when there is none
func FindByID[T any](ctx context.Context, ops Operations, id string) (*T, error) {
	var v T
	found, err := ops.FindByID(ctx, id, &v)
	if err != nil || !found {
		return nil, err
	}
	return &v, nil
}

// FindByView returns the entities behind the rows of a view, in row order
func FindByView[T any](ctx context.Context, ops Operations, design, viewName string, q *view.Query) ([]T, error) {
	var out []T
	if err := ops.FindByView(ctx, design, viewName, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Execute runs a typed callback against the live bucket
func Execute[T any](ctx context.Context, ops Operations, fn func(ctx context.Context, b *bucket.Bucket) (T, error)) (T, error) {
	var zero T
	if fn == nil {
		_, err := ops.Execute(ctx, nil)
		return zero, err
	}
	res, err := ops.Execute(ctx, func(ctx context.Context, b *bucket.Bucket) (any, error) {
		return fn(ctx, b)
	})
	if err != nil {
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		return zero, nil
	}
	return v, nil
}

// Entities adapts a typed slice for the batch operations
func Entities[T any](items []T) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

package core

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"docbucket/dataaccess"
)

// batch applies fn to every element, at most t.concurrency at a time. A
// failing element never stops the others; failures are collected into one
// *dataaccess.BatchError once every element has finished.
func (t *Template) batch(ctx context.Context, op string, items []any, fn func(context.Context, any) error) error {
	if len(items) == 0 {
		return nil
	}
	if err := t.ready(op); err != nil {
		return err
	}

	var (
		mu       sync.Mutex
		failures []dataaccess.Failure
	)
	var g errgroup.Group
	g.SetLimit(t.concurrency)
	for _, item := range items {
		g.Go(func() error {
			if err := fn(ctx, item); err != nil {
				f := dataaccess.FailureFrom(t.elementID(item), err)
				mu.Lock()
				failures = append(failures, f)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) == 0 {
		return nil
	}
	t.logger.Debug("batch finished with failures",
		slog.String("operation", op),
		slog.Int("elements", len(items)),
		slog.Int("failed", len(failures)),
	)
	return dataaccess.NewBatchError(op, failures)
}

// elementID names a batch element in failure reports; it is empty when the
// element cannot be identified
func (t *Template) elementID(item any) string {
	if id, ok := item.(string); ok {
		return id
	}
	id, err := t.converter.GetID(item)
	if err != nil {
		return ""
	}
	return id
}

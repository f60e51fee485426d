// Package core is the data access façade over a document bucket. Every
// operation converts entities through the configured converter and reports
// failures in the dataaccess taxonomy.
package core

import (
	"context"

	"docbucket/bucket"
	"docbucket/convert"
	"docbucket/view"
)

// BucketCallback is a unit of work run against the live bucket by Execute
type BucketCallback func(ctx context.Context, b *bucket.Bucket) (any, error)

// Operations is the set of data access operations over one bucket.
//
// Write modes differ only in how they treat an existing id: Save creates or
// overwrites, Insert fails with AlreadyExists, Update fails with NotFound when
// the id is absent. The *All forms process every element independently and
// return a *dataaccess.BatchError naming the elements that failed.
type Operations interface {
	Save(ctx context.Context, entity any) error
	SaveAll(ctx context.Context, entities []any) error
	Insert(ctx context.Context, entity any) error
	InsertAll(ctx context.Context, entities []any) error
	Update(ctx context.Context, entity any) error
	UpdateAll(ctx context.Context, entities []any) error

	// FindByID decodes the document into target and reports whether it exists.
	FindByID(ctx context.Context, id string, target any) (bool, error)
	Exists(ctx context.Context, id string) (bool, error)

	// QueryView returns the raw view response; q is forwarded unmodified.
	QueryView(ctx context.Context, design, viewName string, q *view.Query) (*view.Response, error)
	// FindByView decodes the source document of every row into target, a
	// pointer to a slice. Reduced queries are rejected.
	FindByView(ctx context.Context, design, viewName string, q *view.Query, target any) error

	// Remove deletes by id (a string) or by the id of an entity. Removing an
	// absent id succeeds.
	Remove(ctx context.Context, object any) error
	RemoveAll(ctx context.Context, objects []any) error

	Execute(ctx context.Context, callback BucketCallback) (any, error)
	Converter() convert.Converter
}

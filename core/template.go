package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/tidwall/gjson"

	"docbucket/bucket"
	"docbucket/convert"
	"docbucket/dataaccess"
	"docbucket/db"
	"docbucket/view"
)

// writeMode selects how a write treats an existing id
type writeMode int

const (
	modeSave writeMode = iota
	modeInsert
	modeUpdate
)

func (m writeMode) op() string {
	switch m {
	case modeInsert:
		return "insert"
	case modeUpdate:
		return "update"
	default:
		return "save"
	}
}

// Template implements Operations over a bucket and a converter. It holds no
// mutable state after construction and is safe for concurrent use.
type Template struct {
	bucket      *bucket.Bucket
	converter   convert.Converter
	logger      *slog.Logger
	timeout     time.Duration
	concurrency int
}

var _ Operations = (*Template)(nil)

// NewTemplate creates the façade. The bucket is opened and closed by its owner.
func NewTemplate(b *bucket.Bucket, conv convert.Converter, opts ...Option) (*Template, error) {
	if b == nil {
		return nil, dataaccess.NewInvalidArgument("new template", errors.New("bucket is required"))
	}
	if conv == nil {
		return nil, dataaccess.NewInvalidArgument("new template", errors.New("converter is required"))
	}

	t := &Template{
		bucket:      b,
		converter:   conv,
		logger:      slog.Default(),
		concurrency: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Save creates or overwrites the document of entity
func (t *Template) Save(ctx context.Context, entity any) error {
	return t.write(ctx, modeSave, entity)
}

// SaveAll saves every entity, reporting failed elements in a BatchError
func (t *Template) SaveAll(ctx context.Context, entities []any) error {
	return t.batch(ctx, "save all", entities, func(ctx context.Context, e any) error {
		return t.write(ctx, modeSave, e)
	})
}

// Insert creates the document of entity and fails if its id is taken
func (t *Template) Insert(ctx context.Context, entity any) error {
	return t.write(ctx, modeInsert, entity)
}

// InsertAll inserts every entity, reporting failed elements in a BatchError
func (t *Template) InsertAll(ctx context.Context, entities []any) error {
	return t.batch(ctx, "insert all", entities, func(ctx context.Context, e any) error {
		return t.write(ctx, modeInsert, e)
	})
}

// Update overwrites the document of entity and fails if it does not exist
func (t *Template) Update(ctx context.Context, entity any) error {
	return t.write(ctx, modeUpdate, entity)
}

// UpdateAll updates every entity, reporting failed elements in a BatchError
func (t *Template) UpdateAll(ctx context.Context, entities []any) error {
	return t.batch(ctx, "update all", entities, func(ctx context.Context, e any) error {
		return t.write(ctx, modeUpdate, e)
	})
}

// write converts entity and stores it with the collision policy of mode.
// Nothing reaches the store unless the converter yields an id and a JSON body.
func (t *Template) write(ctx context.Context, mode writeMode, entity any) error {
	op := mode.op()
	if err := t.ready(op); err != nil {
		return err
	}

	doc, err := t.converter.Write(entity)
	if err != nil {
		id, _ := t.converter.GetID(entity)
		return t.fail(dataaccess.NewMappingFailed(op, id, err))
	}
	if doc == nil || doc.ID == "" {
		return t.fail(dataaccess.NewMappingFailed(op, "", errors.New("converter produced no document id")))
	}
	if !gjson.ValidBytes(doc.Body) {
		return t.fail(dataaccess.NewMappingFailed(op, doc.ID, errors.New("converter produced an invalid JSON body")))
	}

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	switch mode {
	case modeInsert:
		err = t.bucket.Add(ctx, doc.ID, doc.Body, doc.Metadata.Expiry)
	case modeUpdate:
		err = t.bucket.Replace(ctx, doc.ID, doc.Body, doc.Metadata.Expiry)
	default:
		err = t.bucket.Set(ctx, doc.ID, doc.Body, doc.Metadata.Expiry)
	}
	return t.fail(translate(op, doc.ID, err))
}

// FindByID decodes the document stored under id into target. It reports false
// without an error when the document does not exist.
func (t *Template) FindByID(ctx context.Context, id string, target any) (bool, error) {
	const op = "find by id"
	if id == "" {
		return false, t.fail(dataaccess.NewInvalidArgument(op, errors.New("id is required")))
	}
	if err := checkTarget(target, reflect.Invalid); err != nil {
		return false, t.fail(dataaccess.New(dataaccess.InvalidArgument, op, id, err))
	}
	if err := t.ready(op); err != nil {
		return false, err
	}

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	item, err := t.bucket.Get(ctx, id)
	if errors.Is(err, db.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, t.fail(translate(op, id, err))
	}
	if err := t.converter.Read(item.Value, target); err != nil {
		return false, t.fail(dataaccess.NewMappingFailed(op, id, err))
	}
	return true, nil
}

// Exists reports whether a document is stored under id
func (t *Template) Exists(ctx context.Context, id string) (bool, error) {
	const op = "exists"
	if id == "" {
		return false, t.fail(dataaccess.NewInvalidArgument(op, errors.New("id is required")))
	}
	if err := t.ready(op); err != nil {
		return false, err
	}

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	ok, err := t.bucket.Exists(ctx, id)
	if err != nil {
		return false, t.fail(translate(op, id, err))
	}
	return ok, nil
}

// QueryView runs q against the view (design, viewName) unmodified
func (t *Template) QueryView(ctx context.Context, design, viewName string, q *view.Query) (*view.Response, error) {
	const op = "query view"
	if design == "" || viewName == "" {
		return nil, t.fail(dataaccess.NewInvalidArgument(op, errors.New("design and view names are required")))
	}
	if err := t.ready(op); err != nil {
		return nil, err
	}

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	resp, err := t.bucket.Query(ctx, design, viewName, q)
	if err != nil {
		return nil, t.fail(viewErr(translate(op, "", err), design, viewName))
	}
	return resp, nil
}

// FindByView runs q with include_docs forced on and decodes each row's
// document. Rows whose document has been removed since indexing are skipped.
func (t *Template) FindByView(ctx context.Context, design, viewName string, q *view.Query, target any) error {
	const op = "find by view"
	if design == "" || viewName == "" {
		return t.fail(dataaccess.NewInvalidArgument(op, errors.New("design and view names are required")))
	}
	if err := checkTarget(target, reflect.Slice); err != nil {
		return t.fail(dataaccess.NewInvalidArgument(op, err))
	}
	if q != nil && q.ReduceRequested() {
		return t.fail(viewErr(
			dataaccess.NewInvalidArgument(op, errors.New("reduced rows do not reference documents")),
			design, viewName))
	}
	if err := t.ready(op); err != nil {
		return err
	}

	query := q.Clone().IncludeDocs(true).Reduce(false)

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	resp, err := t.bucket.Query(ctx, design, viewName, query)
	if err != nil {
		return t.fail(viewErr(translate(op, "", err), design, viewName))
	}

	slice := reflect.ValueOf(target).Elem()
	out := reflect.MakeSlice(slice.Type(), 0, len(resp.Rows))
	for _, row := range resp.Rows {
		if row.Doc == nil {
			continue
		}
		elem := reflect.New(slice.Type().Elem())
		if err := t.converter.Read(row.Doc, elem.Interface()); err != nil {
			return t.fail(viewErr(dataaccess.NewMappingFailed(op, row.ID, err), design, viewName))
		}
		out = reflect.Append(out, elem.Elem())
	}
	slice.Set(out)
	return nil
}

// Remove deletes the document of object, which is either an id or an entity.
// Removing an absent document succeeds.
func (t *Template) Remove(ctx context.Context, object any) error {
	const op = "remove"
	id, err := t.idOf(object)
	if err != nil {
		if isEntity(object) {
			return t.fail(dataaccess.NewMappingFailed(op, "", err))
		}
		return t.fail(dataaccess.NewInvalidArgument(op, err))
	}
	if err := t.ready(op); err != nil {
		return err
	}

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	err = t.bucket.Delete(ctx, id)
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil
	}
	return t.fail(translate(op, id, err))
}

// RemoveAll removes every object, reporting failed elements in a BatchError
func (t *Template) RemoveAll(ctx context.Context, objects []any) error {
	return t.batch(ctx, "remove all", objects, t.Remove)
}

// Execute runs callback against the live bucket and translates the error it returns
func (t *Template) Execute(ctx context.Context, callback BucketCallback) (any, error) {
	const op = "execute"
	if callback == nil {
		return nil, t.fail(dataaccess.NewInvalidArgument(op, errors.New("callback is required")))
	}
	if err := t.ready(op); err != nil {
		return nil, err
	}

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	res, err := callback(ctx, t.bucket)
	if err != nil {
		return nil, t.fail(translate(op, "", err))
	}
	return res, nil
}

// Converter returns the converter documents are mapped with
func (t *Template) Converter() convert.Converter {
	return t.converter
}

// ready fails with NotReady unless the bucket is open
func (t *Template) ready(op string) error {
	if state := t.bucket.State(); state != bucket.StateOpen {
		return t.fail(dataaccess.NewNotReady(op,
			fmt.Errorf("%w: bucket %q is %s", bucket.ErrNotOpen, t.bucket.Name(), state)))
	}
	return nil
}

// idOf returns the id of a remove argument: a string is the id itself
func (t *Template) idOf(object any) (string, error) {
	switch v := object.(type) {
	case nil:
		return "", errors.New("cannot remove a nil value")
	case string:
		if v == "" {
			return "", errors.New("id is required")
		}
		return v, nil
	}
	id, err := t.converter.GetID(object)
	if err != nil {
		return "", fmt.Errorf("cannot identify %T: %w", object, err)
	}
	return id, nil
}

// isEntity reports whether object is a struct or map, possibly behind pointers
func isEntity(object any) bool {
	rv := reflect.ValueOf(object)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Struct || rv.Kind() == reflect.Map
}

func (t *Template) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout > 0 {
		return context.WithTimeout(ctx, t.timeout)
	}
	return context.WithCancel(ctx)
}

// fail logs unexpected failures and returns err unchanged
func (t *Template) fail(err error) error {
	de, ok := err.(*dataaccess.Error)
	if !ok {
		return err
	}
	switch de.Kind {
	case dataaccess.NotFound, dataaccess.AlreadyExists:
	default:
		dataaccess.LogError(t.logger, de)
	}
	return err
}

// checkTarget requires a non-nil pointer, to a slice when kind is reflect.Slice
func checkTarget(target any, kind reflect.Kind) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer, got %T", target)
	}
	if kind != reflect.Invalid && rv.Elem().Kind() != kind {
		return fmt.Errorf("target must point to a %s, got %T", kind, target)
	}
	return nil
}

func viewErr(err error, design, viewName string) error {
	if de, ok := err.(*dataaccess.Error); ok {
		de.WithContext("view", design+"/"+viewName)
	}
	return err
}

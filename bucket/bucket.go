// Package bucket provides the live handle to a named document bucket: a
// store plus the view engine indexing it, guarded by an
// Uninitialized -> Open -> Closed lifecycle.
package bucket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"docbucket/db"
	"docbucket/view"
)

// ErrNotOpen is returned by every data method while the bucket is not open
var ErrNotOpen = errors.New("bucket is not open")

// probeKey is looked up when the bucket opens to verify the store answers
const probeKey = "_docbucket:probe"

// State is the lifecycle state of a bucket
type State int32

const (
	StateUninitialized State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "uninitialized"
	}
}

// MarshalText renders the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Option configures a Bucket
type Option func(*Bucket)

// WithLogger sets the logger used by the bucket and its view engine
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bucket) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Bucket is safe for concurrent use. Close waits for in-flight calls.
type Bucket struct {
	name   string
	store  db.Store
	views  *view.Engine
	logger *slog.Logger

	mu    sync.RWMutex
	state State
}

// New creates an uninitialized bucket over store
func New(name string, store db.Store, opts ...Option) *Bucket {
	b := &Bucket{
		name:   name,
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.views = view.NewEngine(store, b.logger.With(slog.String("bucket", name)))
	return b
}

// Name returns the bucket name
func (b *Bucket) Name() string {
	return b.name
}

// State reports the current lifecycle state
func (b *Bucket) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Open verifies the store is reachable and makes the bucket usable.
// Opening an open bucket is a no-op; a closed bucket cannot be reopened.
func (b *Bucket) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		return nil
	case StateClosed:
		return fmt.Errorf("%w: bucket %q was closed", ErrNotOpen, b.name)
	}

	if _, err := b.store.Exists(ctx, probeKey); err != nil {
		return fmt.Errorf("failed to open bucket %q: %w", b.name, err)
	}
	b.state = StateOpen
	b.logger.Info("bucket opened", slog.String("bucket", b.name))
	return nil
}

// Close stops the view engine and closes the store. It is safe to call more than once.
func (b *Bucket) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateClosed {
		return nil
	}
	b.state = StateClosed
	b.views.Close()
	if err := b.store.Close(); err != nil {
		return fmt.Errorf("failed to close bucket %q: %w", b.name, err)
	}
	b.logger.Info("bucket closed", slog.String("bucket", b.name))
	return nil
}

// Get returns the stored document, or db.ErrKeyNotFound
func (b *Bucket) Get(ctx context.Context, id string) (*db.Item, error) {
	var item *db.Item
	err := b.read(func() (err error) {
		item, err = b.store.Get(ctx, id)
		return err
	})
	return item, err
}

// Set creates or overwrites a document
func (b *Bucket) Set(ctx context.Context, id string, body []byte, ttl time.Duration) error {
	return b.write(func() error { return b.store.Set(ctx, id, body, ttl) })
}

// Add creates a document, failing with db.ErrKeyExists if the id is taken
func (b *Bucket) Add(ctx context.Context, id string, body []byte, ttl time.Duration) error {
	return b.write(func() error { return b.store.Add(ctx, id, body, ttl) })
}

// Replace overwrites a document, failing with db.ErrKeyNotFound if it is absent
func (b *Bucket) Replace(ctx context.Context, id string, body []byte, ttl time.Duration) error {
	return b.write(func() error { return b.store.Replace(ctx, id, body, ttl) })
}

// Delete removes a document, failing with db.ErrKeyNotFound if it is absent
func (b *Bucket) Delete(ctx context.Context, id string) error {
	return b.write(func() error { return b.store.Delete(ctx, id) })
}

func (b *Bucket) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := b.read(func() (err error) {
		ok, err = b.store.Exists(ctx, id)
		return err
	})
	return ok, err
}

// Query runs a view query
func (b *Bucket) Query(ctx context.Context, design, name string, q *view.Query) (*view.Response, error) {
	var resp *view.Response
	err := b.read(func() (err error) {
		resp, err = b.views.Query(ctx, design, name, q)
		return err
	})
	return resp, err
}

// UpsertDesign registers or replaces a design document
func (b *Bucket) UpsertDesign(d view.Design) error {
	return b.read(func() error { return b.views.UpsertDesign(d) })
}

// Design returns a registered design, or view.ErrViewNotFound
func (b *Bucket) Design(name string) (view.Design, error) {
	var d view.Design
	err := b.read(func() error {
		var ok bool
		if d, ok = b.views.Design(name); !ok {
			return fmt.Errorf("%w: design %q", view.ErrViewNotFound, name)
		}
		return nil
	})
	return d, err
}

func (b *Bucket) RemoveDesign(name string) error {
	return b.read(func() error { return b.views.RemoveDesign(name) })
}

// purger is implemented by stores that keep expired documents until swept
type purger interface {
	Purge(ctx context.Context) (int64, error)
}

// Purge deletes expired documents from stores that keep them until swept.
// It returns zero for stores that expire documents on their own.
func (b *Bucket) Purge(ctx context.Context) (int64, error) {
	var n int64
	err := b.read(func() (err error) {
		p, ok := b.store.(purger)
		if !ok {
			return nil
		}
		if n, err = p.Purge(ctx); err == nil && n > 0 {
			b.views.Invalidate()
		}
		return err
	})
	return n, err
}

func (b *Bucket) read(fn func() error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.state != StateOpen {
		return fmt.Errorf("%w: bucket %q is %s", ErrNotOpen, b.name, b.state)
	}
	return fn()
}

// write runs fn and marks the view indexes out of date when it succeeds
func (b *Bucket) write(fn func() error) error {
	return b.read(func() error {
		if err := fn(); err != nil {
			return err
		}
		b.views.Invalidate()
		return nil
	})
}

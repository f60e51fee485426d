package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"docbucket/db"
)

// entry is one emitted row in an index
type entry struct {
	key   any
	id    string
	value any
}

// index is the materialised, sorted output of one view's map function
type index struct {
	entries    []entry
	built      bool
	generation uint64
}

// Engine maintains view indexes over a store. Indexes are rebuilt by scanning
// the whole store; writes only mark them out of date (see Invalidate).
type Engine struct {
	store  db.Store
	logger *slog.Logger

	mu         sync.RWMutex
	designs    map[string]Design
	indexes    map[string]*index
	generation uint64

	group  singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates an engine reading documents from store
func NewEngine(store db.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:   store,
		logger:  logger,
		designs: make(map[string]Design),
		indexes: make(map[string]*index),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// UpsertDesign registers or replaces a design; its indexes are rebuilt on next use
func (e *Engine) UpsertDesign(d Design) error {
	if err := d.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	views := make(map[string]View, len(d.Views))
	for name, v := range d.Views {
		views[name] = v
		delete(e.indexes, indexKey(d.Name, name))
	}
	for name := range e.designs[d.Name].Views {
		delete(e.indexes, indexKey(d.Name, name))
	}
	e.designs[d.Name] = Design{Name: d.Name, Views: views}
	return nil
}

// Design returns a copy of the registered design with the given name
func (e *Engine) Design(name string) (Design, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.designs[name]
	if !ok {
		return Design{}, false
	}
	return Design{Name: d.Name, Views: maps.Clone(d.Views)}, true
}

// RemoveDesign drops a design and its indexes
func (e *Engine) RemoveDesign(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.designs[name]
	if !ok {
		return fmt.Errorf("%w: design %q", ErrViewNotFound, name)
	}
	for v := range d.Views {
		delete(e.indexes, indexKey(name, v))
	}
	delete(e.designs, name)
	return nil
}

// Invalidate marks every index out of date. Called after each write.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.generation++
	e.mu.Unlock()
}

// Close stops background index refreshes and waits for them to finish
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

// Query runs q against the view (design, name)
func (e *Engine) Query(ctx context.Context, design, name string, q *Query) (*Response, error) {
	if q == nil {
		q = NewQuery()
	}
	v, err := e.lookup(design, name)
	if err != nil {
		return nil, err
	}
	if err := q.validate(v); err != nil {
		return nil, err
	}

	idx, err := e.ensureIndex(ctx, design, name, v, q.stale)
	if err != nil {
		return nil, err
	}

	rows, err := selectRows(idx.entries, q)
	if err != nil {
		return nil, err
	}

	resp := &Response{TotalRows: len(idx.entries)}
	if q.reducing(v) {
		resp.TotalRows = 0
		resp.Rows, err = reduceRows(rows, v.Reduce, q)
		if err != nil {
			return nil, err
		}
		resp.Rows = paginate(resp.Rows, q)
		return resp, nil
	}

	rows = paginate(rows, q)
	resp.Rows = make([]Row, len(rows))
	for i, ent := range rows {
		resp.Rows[i] = Row{ID: ent.id, Key: ent.key, Value: ent.value}
	}
	if q.includeDocs {
		if err := e.attachDocs(ctx, resp.Rows); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (e *Engine) lookup(design, name string) (View, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	d, ok := e.designs[design]
	if !ok {
		return View{}, fmt.Errorf("%w: design %q", ErrViewNotFound, design)
	}
	v, ok := d.Views[name]
	if !ok {
		return View{}, fmt.Errorf("%w: %s/%s", ErrViewNotFound, design, name)
	}
	return v, nil
}

// ensureIndex returns an index fresh enough for the stale policy
func (e *Engine) ensureIndex(ctx context.Context, design, name string, v View, stale Stale) (*index, error) {
	key := indexKey(design, name)

	e.mu.RLock()
	idx, ok := e.indexes[key]
	current := e.generation
	e.mu.RUnlock()

	upToDate := ok && idx.built && idx.generation == current
	switch {
	case !ok || !idx.built:
		return e.rebuildSince(ctx, design, name, v, current)
	case upToDate || stale == StaleOK:
		return idx, nil
	case stale == StaleFalse:
		return e.rebuildSince(ctx, design, name, v, current)
	default:
		e.refreshAsync(design, name, v)
		return idx, nil
	}
}

// rebuildSince rebuilds until the index covers every write up to generation.
// A shared scan that started before those writes is not enough.
func (e *Engine) rebuildSince(ctx context.Context, design, name string, v View, generation uint64) (*index, error) {
	for {
		idx, err := e.rebuild(ctx, design, name, v)
		if err != nil {
			return nil, err
		}
		if idx.generation >= generation {
			return idx, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// rebuild scans the store and replaces the index; concurrent callers share one scan
func (e *Engine) rebuild(ctx context.Context, design, name string, v View) (*index, error) {
	key := indexKey(design, name)
	res, err, _ := e.group.Do(key, func() (any, error) {
		e.mu.RLock()
		generation := e.generation
		e.mu.RUnlock()

		entries, err := e.build(ctx, design, name, v)
		if err != nil {
			return nil, err
		}
		idx := &index{entries: entries, built: true, generation: generation}

		e.mu.Lock()
		defer e.mu.Unlock()
		// The design may have been replaced while we were scanning.
		if d, ok := e.designs[design]; ok {
			if _, ok := d.Views[name]; ok {
				e.indexes[key] = idx
			}
		}
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*index), nil
}

func (e *Engine) refreshAsync(design, name string, v View) {
	if e.ctx.Err() != nil {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if _, err := e.rebuild(e.ctx, design, name, v); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warn("background view refresh failed",
				slog.String("design", design),
				slog.String("view", name),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (e *Engine) build(ctx context.Context, design, name string, v View) ([]entry, error) {
	var entries []entry
	err := e.store.ForEach(ctx, func(id string, body []byte) error {
		if !gjson.ValidBytes(body) {
			return nil
		}
		e.mapDocument(design, name, v.Map, Document{ID: id, Body: body}, func(ent entry) {
			entries = append(entries, ent)
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build index %s/%s: %w", design, name, err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if c := Compare(entries[i].key, entries[j].key); c != 0 {
			return c < 0
		}
		return entries[i].id < entries[j].id
	})
	e.logger.Debug("view index built",
		slog.String("design", design),
		slog.String("view", name),
		slog.Int("rows", len(entries)),
	)
	return entries, nil
}

// mapDocument runs the map function on one document; a panicking map
// function skips the document instead of failing the whole index
func (e *Engine) mapDocument(design, name string, fn MapFunc, doc Document, add func(entry)) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("map function failed",
				slog.String("design", design),
				slog.String("view", name),
				slog.String("id", doc.ID),
				slog.Any("panic", r),
			)
		}
	}()

	fn(doc, func(key, value any) {
		k, err := Normalize(key)
		if err != nil {
			e.logger.Warn("dropping emitted row", slog.String("id", doc.ID), slog.String("error", err.Error()))
			return
		}
		val, err := Normalize(value)
		if err != nil {
			e.logger.Warn("dropping emitted row", slog.String("id", doc.ID), slog.String("error", err.Error()))
			return
		}
		add(entry{key: k, id: doc.ID, value: val})
	})
}

func (e *Engine) attachDocs(ctx context.Context, rows []Row) error {
	for i := range rows {
		item, err := e.store.Get(ctx, rows[i].ID)
		if errors.Is(err, db.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("fetch document %q: %w", rows[i].ID, err)
		}
		rows[i].Doc = item.Value
	}
	return nil
}

func indexKey(design, name string) string {
	return design + "/" + name
}

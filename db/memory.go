package db

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store using an in-memory map (not persistent)
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]Item
	closed bool
	now    func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]Item),
		now:   time.Now,
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	item, ok := m.lookup(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	// Return a copy to prevent external modifications
	item.Value = append([]byte(nil), item.Value...)
	return &item, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.write(ctx, key, value, ttl, func(present bool) error { return nil })
}

func (m *MemoryStore) Add(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.write(ctx, key, value, ttl, func(present bool) error {
		if present {
			return ErrKeyExists
		}
		return nil
	})
}

func (m *MemoryStore) Replace(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.write(ctx, key, value, ttl, func(present bool) error {
		if !present {
			return ErrKeyNotFound
		}
		return nil
	})
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, ok := m.lookup(key); !ok {
		return ErrKeyNotFound
	}
	delete(m.items, key)
	return nil
}

func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.lookup(key)
	return ok, nil
}

// ForEach visits a snapshot of the live items in key order
func (m *MemoryStore) ForEach(ctx context.Context, fn func(key string, value []byte) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	snapshot := make([]Item, 0, len(m.items))
	for key := range m.items {
		if item, ok := m.lookup(key); ok {
			snapshot = append(snapshot, item)
		}
	}
	m.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Key < snapshot[j].Key })
	for _, item := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(item.Key, append([]byte(nil), item.Value...)); err != nil {
			return err
		}
	}
	return nil
}

// Purge drops expired items and reports how many were removed
func (m *MemoryStore) Purge(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	var n int64
	now := m.now()
	for key, item := range m.items {
		if expired(now, item.Expiry) {
			delete(m.items, key)
			n++
		}
	}
	return n, nil
}

// Close marks the store closed; later calls fail with ErrClosed
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryStore) write(ctx context.Context, key string, value []byte, ttl time.Duration, check func(present bool) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	_, present := m.lookup(key)
	if err := check(present); err != nil {
		return err
	}
	m.items[key] = Item{
		Key:    key,
		Value:  append([]byte(nil), value...),
		Expiry: expiryFrom(m.now(), ttl),
	}
	return nil
}

// lookup must be called with the lock held
func (m *MemoryStore) lookup(key string) (Item, bool) {
	item, ok := m.items[key]
	if !ok || expired(m.now(), item.Expiry) {
		return Item{}, false
	}
	return item, true
}

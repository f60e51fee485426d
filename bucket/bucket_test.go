package bucket

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docbucket/db"
	"docbucket/view"
)

// MockStore is a mock implementation of db.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, key string) (*db.Item, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Item), args.Error(1)
}

func (m *MockStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockStore) Add(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockStore) Replace(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockStore) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) ForEach(ctx context.Context, fn func(key string, value []byte) error) error {
	return m.Called(ctx, fn).Error(0)
}

func (m *MockStore) Close() error {
	return m.Called().Error(0)
}

func openBucket(t *testing.T, store db.Store) *Bucket {
	t.Helper()
	b := New("test", store)
	require.NoError(t, b.Open(context.Background()))
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBucket_Lifecycle(t *testing.T) {
	ctx := context.Background()
	b := New("users", db.NewMemoryStore())

	assert.Equal(t, StateUninitialized, b.State())
	_, err := b.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, b.Set(ctx, "a", []byte(`{}`), 0), ErrNotOpen)

	require.NoError(t, b.Open(ctx))
	require.NoError(t, b.Open(ctx), "opening twice is a no-op")
	assert.Equal(t, StateOpen, b.State())
	require.NoError(t, b.Set(ctx, "a", []byte(`{}`), 0))

	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "closing twice is a no-op")
	assert.Equal(t, StateClosed, b.State())

	_, err = b.Exists(ctx, "a")
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = b.Query(ctx, "d", "v", nil)
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, b.Open(ctx), ErrNotOpen, "a closed bucket stays closed")
}

func TestBucket_OpenProbesStore(t *testing.T) {
	store := &MockStore{}
	store.On("Exists", mock.Anything, probeKey).Return(false, db.ErrTemporary).Once()
	store.On("Exists", mock.Anything, probeKey).Return(false, nil).Once()
	store.On("Close").Return(nil)

	b := New("probe", store)
	err := b.Open(context.Background())
	assert.ErrorIs(t, err, db.ErrTemporary)
	assert.Equal(t, StateUninitialized, b.State())

	require.NoError(t, b.Open(context.Background()))
	require.NoError(t, b.Close())
	store.AssertExpectations(t)
}

func TestBucket_CloseReportsStoreError(t *testing.T) {
	store := &MockStore{}
	store.On("Close").Return(errors.New("disk gone"))

	b := New("broken", store)
	assert.Error(t, b.Close())
	assert.Equal(t, StateClosed, b.State())
	store.AssertExpectations(t)
}

func TestBucket_WriteModes(t *testing.T) {
	ctx := context.Background()
	b := openBucket(t, db.NewMemoryStore())

	require.NoError(t, b.Add(ctx, "k", []byte(`1`), 0))
	assert.ErrorIs(t, b.Add(ctx, "k", []byte(`2`), 0), db.ErrKeyExists)
	assert.ErrorIs(t, b.Replace(ctx, "other", []byte(`2`), 0), db.ErrKeyNotFound)
	require.NoError(t, b.Replace(ctx, "k", []byte(`3`), 0))

	item, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte(`3`), item.Value)

	require.NoError(t, b.Delete(ctx, "k"))
	assert.ErrorIs(t, b.Delete(ctx, "k"), db.ErrKeyNotFound)
	ok, err := b.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBucket_WritesRefreshViews(t *testing.T) {
	ctx := context.Background()
	b := openBucket(t, db.NewMemoryStore())

	require.NoError(t, b.UpsertDesign(view.Design{
		Name: "all",
		Views: map[string]view.View{
			"ids": {Map: func(doc view.Document, emit view.Emitter) { emit(doc.ID, nil) }},
		},
	}))

	require.NoError(t, b.Set(ctx, "a", []byte(`{}`), 0))
	resp, err := b.Query(ctx, "all", "ids", view.NewQuery().Stale(view.StaleFalse))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Len())

	require.NoError(t, b.Set(ctx, "b", []byte(`{}`), 0))
	resp, err = b.Query(ctx, "all", "ids", view.NewQuery().Stale(view.StaleFalse))
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Len())

	require.NoError(t, b.Delete(ctx, "a"))
	resp, err = b.Query(ctx, "all", "ids", view.NewQuery().Stale(view.StaleFalse))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Len())
}

func TestBucket_Designs(t *testing.T) {
	b := openBucket(t, db.NewMemoryStore())

	_, err := b.Design("users")
	assert.ErrorIs(t, err, view.ErrViewNotFound)

	require.NoError(t, b.UpsertDesign(view.Design{
		Name:  "users",
		Views: map[string]view.View{"all": {Map: func(view.Document, view.Emitter) {}}},
	}))
	d, err := b.Design("users")
	require.NoError(t, err)
	assert.Contains(t, d.Views, "all")

	require.NoError(t, b.RemoveDesign("users"))
	assert.ErrorIs(t, b.RemoveDesign("users"), view.ErrViewNotFound)
}

func TestBucket_Purge(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing expired", func(t *testing.T) {
		b := openBucket(t, db.NewMemoryStore())
		n, err := b.Purge(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("sqlite store sweeps expired rows", func(t *testing.T) {
		store, err := db.NewSQLiteStore(filepath.Join(t.TempDir(), "purge.db"))
		require.NoError(t, err)
		b := openBucket(t, store)

		require.NoError(t, b.Set(ctx, "short", []byte(`{}`), time.Millisecond))
		require.NoError(t, b.Set(ctx, "long", []byte(`{}`), 0))
		time.Sleep(5 * time.Millisecond)

		n, err := b.Purge(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("closed bucket", func(t *testing.T) {
		b := New("closed", db.NewMemoryStore())
		require.NoError(t, b.Close())
		_, err := b.Purge(ctx)
		assert.ErrorIs(t, err, ErrNotOpen)
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "open", StateOpen.String())
	text, err := StateClosed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "closed", string(text))
}

package db

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// headerSize is the length of the expiry header prefixed to every bolt value
const headerSize = 8

// BoltStore implements Store on a bbolt file, one bolt bucket per document bucket
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
	now    func() time.Time
}

// NewBoltStore opens (or creates) the database file at path and ensures the bucket exists
func NewBoltStore(path, bucket string, openTimeout time.Duration) (*BoltStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name must not be empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("failed to open database: %w: %w", ErrTemporary, err)
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &BoltStore{db: db, bucket: []byte(bucket), now: time.Now}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(store.bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}

	return store, nil
}

// Get retrieves a value by key
func (s *BoltStore) Get(ctx context.Context, key string) (*Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var item *Item
	err := s.view(func(bkt *bolt.Bucket) error {
		data := bkt.Get([]byte(key))
		if data == nil {
			return ErrKeyNotFound
		}
		expiry, value, err := decodeBoltValue(data)
		if err != nil {
			return err
		}
		if expired(s.now(), expiry) {
			return ErrKeyNotFound
		}
		// Copy the data since it's only valid during the transaction
		item = &Item{Key: key, Value: append([]byte(nil), value...), Expiry: expiry}
		return nil
	})
	return item, err
}

// Set stores a value, overwriting any existing one
func (s *BoltStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.write(ctx, key, value, ttl, func(present bool) error { return nil })
}

// Add stores a value only when the key is absent
func (s *BoltStore) Add(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.write(ctx, key, value, ttl, func(present bool) error {
		if present {
			return ErrKeyExists
		}
		return nil
	})
}

// Replace stores a value only when the key is present
func (s *BoltStore) Replace(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.write(ctx, key, value, ttl, func(present bool) error {
		if !present {
			return ErrKeyNotFound
		}
		return nil
	})
}

// Delete removes a key
func (s *BoltStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(bkt *bolt.Bucket) error {
		present, err := s.live(bkt, key)
		if err != nil {
			return err
		}
		if !present {
			return ErrKeyNotFound
		}
		return bkt.Delete([]byte(key))
	})
}

// Exists reports whether a live value is stored under key
func (s *BoltStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var present bool
	err := s.view(func(bkt *bolt.Bucket) error {
		var err error
		present, err = s.live(bkt, key)
		return err
	})
	return present, err
}

// ForEach iterates over all live key-value pairs in key order
func (s *BoltStore) ForEach(ctx context.Context, fn func(key string, value []byte) error) error {
	now := s.now()
	return s.view(func(bkt *bolt.Bucket) error {
		return bkt.ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			expiry, value, err := decodeBoltValue(v)
			if err != nil {
				return fmt.Errorf("key %s: %w", k, err)
			}
			if expired(now, expiry) {
				return nil
			}
			return fn(string(k), append([]byte(nil), value...))
		})
	})
}

// Purge deletes expired values and reports how many were removed.
func (s *BoltStore) Purge(ctx context.Context) (int64, error) {
	var n int64
	now := s.now()
	err := s.update(func(bkt *bolt.Bucket) error {
		var stale [][]byte
		err := bkt.ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			expiry, _, err := decodeBoltValue(v)
			if err != nil {
				return fmt.Errorf("key %s: %w", k, err)
			}
			if expired(now, expiry) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		// Keys cannot be deleted while ForEach is iterating
		for _, k := range stale {
			if err := bkt.Delete(k); err != nil {
				return err
			}
		}
		n = int64(len(stale))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database file
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) write(ctx context.Context, key string, value []byte, ttl time.Duration, check func(present bool) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkKey(key); err != nil {
		return err
	}
	now := s.now()
	return s.update(func(bkt *bolt.Bucket) error {
		present, err := s.live(bkt, key)
		if err != nil {
			return err
		}
		if err := check(present); err != nil {
			return err
		}
		return bkt.Put([]byte(key), encodeBoltValue(expiryFrom(now, ttl), value))
	})
}

func (s *BoltStore) live(bkt *bolt.Bucket, key string) (bool, error) {
	data := bkt.Get([]byte(key))
	if data == nil {
		return false, nil
	}
	expiry, _, err := decodeBoltValue(data)
	if err != nil {
		return false, err
	}
	return !expired(s.now(), expiry), nil
}

func (s *BoltStore) view(fn func(bkt *bolt.Bucket) error) error {
	return mapBoltErr(s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(s.bucket)
		if bkt == nil {
			return fmt.Errorf("bucket %q not found", s.bucket)
		}
		return fn(bkt)
	}))
}

func (s *BoltStore) update(fn func(bkt *bolt.Bucket) error) error {
	return mapBoltErr(s.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		return fn(bkt)
	}))
}

func mapBoltErr(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}

func encodeBoltValue(expiry time.Time, value []byte) []byte {
	buf := make([]byte, headerSize+len(value))
	var unix int64
	if !expiry.IsZero() {
		unix = expiry.UnixNano()
	}
	binary.BigEndian.PutUint64(buf[:headerSize], uint64(unix))
	copy(buf[headerSize:], value)
	return buf
}

func decodeBoltValue(data []byte) (time.Time, []byte, error) {
	if len(data) < headerSize {
		return time.Time{}, nil, fmt.Errorf("corrupt value: %d bytes", len(data))
	}
	var expiry time.Time
	if unix := int64(binary.BigEndian.Uint64(data[:headerSize])); unix != 0 {
		expiry = time.Unix(0, unix)
	}
	return expiry, data[headerSize:], nil
}

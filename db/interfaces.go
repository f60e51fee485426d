package db

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by every Store implementation. Backends wrap their
// native failures in these so callers can classify them with errors.Is.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrKeyExists   = errors.New("key already exists")
	ErrClosed      = errors.New("store is closed")
	ErrTemporary   = errors.New("temporary failure")
	ErrEmptyKey    = errors.New("empty key")
)

// Item is a stored value together with its expiry
type Item struct {
	Key    string
	Value  []byte
	Expiry time.Time // Zero means the item never expires
}

// Store defines the key/value operations a document bucket needs from its backend
type Store interface {
	// Get returns ErrKeyNotFound when the key is absent or expired.
	Get(ctx context.Context, key string) (*Item, error)
	// Set creates or overwrites the value under key.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Add creates the value, failing with ErrKeyExists when key is present.
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Replace overwrites the value, failing with ErrKeyNotFound when key is absent.
	Replace(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key, failing with ErrKeyNotFound when key is absent.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// ForEach visits every live item in key order. Returning an error from fn stops the scan.
	ForEach(ctx context.Context, fn func(key string, value []byte) error) error
	Close() error
}

// expiryFrom converts a relative ttl to an absolute expiry time
func expiryFrom(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// expired reports whether an item with the given expiry is no longer visible
func expired(now, expiry time.Time) bool {
	return !expiry.IsZero() && !now.Before(expiry)
}

func checkKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}

package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis, one key per document under a prefix
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	closed atomic.Bool
}

// RedisStoreOption configures RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix sets the key prefix (default "docbucket").
func WithKeyPrefix(p string) RedisStoreOption {
	return func(s *RedisStore) {
		if p != "" {
			s.prefix = p
		}
	}
}

// NewRedisStore creates a Redis-backed store around an existing client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client, prefix: "docbucket"}
	for _, o := range opts {
		o(s)
	}
	return s
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr, password string, database int, opts ...RedisStoreOption) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       database,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, mapRedisErr(err))
	}
	return NewRedisStore(client, opts...), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Item, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	k := s.keyFor(key)
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, k)
	ttlCmd := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, mapRedisErr(err)
	}

	value, err := getCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, mapRedisErr(err)
	}
	item := &Item{Key: key, Value: value}
	if ttl := ttlCmd.Val(); ttl > 0 {
		item.Expiry = time.Now().Add(ttl)
	}
	return item, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.precheck(key); err != nil {
		return err
	}
	return mapRedisErr(s.client.Set(ctx, s.keyFor(key), value, redisTTL(ttl)).Err())
}

func (s *RedisStore) Add(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.precheck(key); err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.keyFor(key), value, redisTTL(ttl)).Result()
	if err != nil {
		return mapRedisErr(err)
	}
	if !ok {
		return ErrKeyExists
	}
	return nil
}

func (s *RedisStore) Replace(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.precheck(key); err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, s.keyFor(key), value, redisTTL(ttl)).Result()
	if err != nil {
		return mapRedisErr(err)
	}
	if !ok {
		return ErrKeyNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	n, err := s.client.Del(ctx, s.keyFor(key)).Result()
	if err != nil {
		return mapRedisErr(err)
	}
	if n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	n, err := s.client.Exists(ctx, s.keyFor(key)).Result()
	if err != nil {
		return false, mapRedisErr(err)
	}
	return n > 0, nil
}

// ForEach enumerates keys with SCAN, then fetches values in key order.
// Keys that disappear between the scan and the fetch are skipped.
func (s *RedisStore) ForEach(ctx context.Context, fn func(key string, value []byte) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return err
	}
	sort.Strings(keys)

	const chunk = 256
	for start := 0; start < len(keys); start += chunk {
		end := min(start+chunk, len(keys))
		full := make([]string, 0, end-start)
		for _, key := range keys[start:end] {
			full = append(full, s.keyFor(key))
		}
		values, err := s.client.MGet(ctx, full...).Result()
		if err != nil {
			return mapRedisErr(err)
		}
		for i, v := range values {
			str, ok := v.(string)
			if !ok {
				continue
			}
			if err := fn(keys[start+i], []byte(str)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes the underlying client
func (s *RedisStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	pattern := s.prefix + ":*"
	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 512).Result()
		if err != nil {
			return nil, mapRedisErr(err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, s.prefix+":"))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (s *RedisStore) precheck(key string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return checkKey(key)
}

func (s *RedisStore) keyFor(key string) string {
	return s.prefix + ":" + key
}

// redisTTL maps a non-positive ttl to redis' "keep forever"
func redisTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}

func mapRedisErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTemporary, err)
	}
	msg := err.Error()
	for _, prefix := range []string{"LOADING", "BUSY", "TRYAGAIN", "CLUSTERDOWN", "MASTERDOWN"} {
		if strings.HasPrefix(msg, prefix) {
			return fmt.Errorf("%w: %w", ErrTemporary, err)
		}
	}
	return err
}

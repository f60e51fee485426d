package db

import (
	"context"
	"fmt"
	"path/filepath"

	"docbucket/config"
)

// Open creates the Store selected by cfg.Bucket.Backend.
//
// Supported backends:
//
//	"bolt"   - bbolt file at DBPath/DBFile (default)
//	"sqlite" - SQLite database at DBPath/DBFile
//	"redis"  - Redis server at Redis.Addr, keys prefixed by the bucket name
//	"memory" - In-memory (ephemeral, for testing)
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	path := filepath.Join(cfg.Bucket.DBPath, cfg.Bucket.DBFile)

	switch cfg.Bucket.Backend {
	case config.BackendBolt, "":
		return NewBoltStore(path, cfg.Bucket.Name, cfg.Bucket.OpenTimeout)
	case config.BackendSQLite:
		return NewSQLiteStore(path)
	case config.BackendRedis:
		prefix := cfg.Redis.Prefix
		if prefix == "" {
			prefix = cfg.Bucket.Name
		}
		return DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, WithKeyPrefix(prefix))
	case config.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: bolt, sqlite, redis, memory)", cfg.Bucket.Backend)
	}
}

package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbucket/bucket"
	"docbucket/config"
)

func TestNewContainerWithConfig(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		builder *config.ConfigBuilder
	}{
		{"memory", config.NewConfigBuilder().WithBackend(config.BackendMemory)},
		{"bolt", config.NewConfigBuilder().WithBackend(config.BackendBolt).WithDBPath(t.TempDir())},
		{"sqlite", config.NewConfigBuilder().WithBackend(config.BackendSQLite).WithDBPath(t.TempDir())},
		{"redis", config.NewConfigBuilder().WithBackend(config.BackendRedis).WithRedis(mr.Addr(), "", 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := tt.builder.WithBucket("app-" + tt.name).Build()
			require.NoError(t, err)

			container, err := NewContainerWithConfig(cfg)
			require.NoError(t, err)
			assert.NotNil(t, container.Logger)
			assert.Equal(t, bucket.StateOpen, container.Bucket.State())

			ctx := context.Background()
			require.NoError(t, container.Operations.Save(ctx, map[string]any{"id": "k", "v": 1}))
			ok, err := container.Operations.Exists(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, container.Close())
			assert.Equal(t, bucket.StateClosed, container.Bucket.State())
		})
	}
}

func TestNewContainerWithConfig_UnreachableStore(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg, err := config.NewConfigBuilder().WithBackend(config.BackendRedis).WithRedis(addr, "", 0).Build()
	require.NoError(t, err)
	cfg.Bucket.OpenTimeout = 0
	cfg.Operations.Timeout = 0

	_, err = NewContainerWithConfig(cfg)
	assert.Error(t, err)
}

func TestContainer_CloseWithoutBucket(t *testing.T) {
	assert.NoError(t, (&Container{}).Close())
}

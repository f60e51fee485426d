package sampledata

import (
	"context"
	"flag"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbucket/bucket"
	"docbucket/config"
	"docbucket/convert"
	"docbucket/core"
	"docbucket/db"
	"docbucket/view"
)

func newOps(t *testing.T) core.Operations {
	t.Helper()
	b := bucket.New("sample", db.NewMemoryStore())
	require.NoError(t, b.Open(context.Background()))
	t.Cleanup(func() { b.Close() })
	ops, err := core.NewTemplate(b, convert.NewJSONConverter())
	require.NoError(t, err)
	return ops
}

func TestParseFlags(t *testing.T) {
	// Reset flag state for testing
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"test"}
	cli := ParseFlags()
	assert.False(t, cli.MockData)
	assert.False(t, cli.ClearData)
	assert.Empty(t, cli.Backend)

	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	os.Args = []string{"test", "-mock-data", "-backend", "memory", "-port", "9000"}
	cli = ParseFlags()
	assert.True(t, cli.MockData)
	assert.False(t, cli.ClearData)
	assert.Equal(t, "memory", cli.Backend)
	assert.Equal(t, "9000", cli.Port)
}

func TestConfig_Apply(t *testing.T) {
	cfg, err := config.NewConfigBuilder().WithBackend(config.BackendBolt).Build()
	require.NoError(t, err)

	require.NoError(t, (&Config{Backend: "memory", Port: "9000"}).Apply(cfg))
	assert.Equal(t, config.BackendMemory, cfg.Bucket.Backend)
	assert.Equal(t, "9000", cfg.HTTP.Port)

	assert.Error(t, (&Config{Backend: "couch"}).Apply(cfg))
}

func TestHandleDataOperationsNoOps(t *testing.T) {
	assert.True(t, HandleDataOperations(&Config{}, nil))

	ops := newOps(t)
	assert.True(t, HandleDataOperations(&Config{}, ops))

	// Designs are registered even when no data operation is requested
	_, err := ops.QueryView(context.Background(), "customer", ByCountryView, view.NewQuery())
	assert.NoError(t, err)
}

func TestMockDataService_PopulateAndClear(t *testing.T) {
	ctx := context.Background()
	ops := newOps(t)
	svc := NewMockDataService(ops)

	require.NoError(t, svc.PopulateMockData(ctx))

	n, err := svc.Customers().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	resp, err := ops.QueryView(ctx, "customer", ByCountryView,
		view.NewQuery().Stale(view.StaleFalse).GroupLevel(1))
	require.NoError(t, err)
	require.Len(t, resp.Rows, 3)
	assert.Equal(t, []any{"GB"}, resp.Rows[0].Key)
	assert.Equal(t, float64(17), resp.Rows[0].Value)
	assert.Equal(t, []any{"US"}, resp.Rows[2].Key)
	assert.Equal(t, float64(16), resp.Rows[2].Value)

	us, err := svc.Customers().FindByView(ctx, ByCountryView,
		view.NewQuery().Stale(view.StaleFalse).StartKey([]any{"US"}).EndKey([]any{"US", map[string]any{}}))
	require.NoError(t, err)
	require.Len(t, us, 2)
	assert.Equal(t, "Grace Hopper", us[0].Name)
	assert.Equal(t, "Katherine Johnson", us[1].Name)

	require.NoError(t, ops.Save(ctx, map[string]any{"id": "note:1", "type": "note"}))
	require.NoError(t, svc.ClearAllData(ctx))

	n, err = svc.Customers().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	ok, err := ops.Exists(ctx, "note:1")
	require.NoError(t, err)
	assert.True(t, ok)
}

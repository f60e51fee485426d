package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"docbucket/bucket"
	"docbucket/config"
	"docbucket/convert"
	"docbucket/core"
	"docbucket/db"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *slog.Logger
	Bucket     *bucket.Bucket
	Operations core.Operations
}

// NewContainer loads the default configuration and wires up all dependencies
func NewContainer() (*Container, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewContainerWithConfig(cfg)
}

// NewContainerWithConfig opens the configured store and bucket and builds the
// operations façade over them
func NewContainerWithConfig(cfg *config.Config) (*Container, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))

	openTimeout := cfg.Bucket.OpenTimeout + cfg.Operations.Timeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	store, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Bucket.Backend, err)
	}

	b := bucket.New(cfg.Bucket.Name, store, bucket.WithLogger(logger))
	if err := b.Open(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}

	ops, err := core.NewTemplate(b, convert.NewJSONConverter(),
		core.WithLogger(logger),
		core.WithOperationTimeout(cfg.Operations.Timeout),
		core.WithBatchConcurrency(cfg.Operations.BatchConcurrency),
	)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create operations: %w", err)
	}

	return &Container{
		Config:     cfg,
		Logger:     logger,
		Bucket:     b,
		Operations: ops,
	}, nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	if c.Bucket != nil {
		return c.Bucket.Close()
	}
	return nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"docbucket/config"
	"docbucket/handlers"
	"docbucket/internal/middleware"
	"docbucket/routes"
)

// Application serves the document API over one bucket
type Application struct {
	container  *Container
	httpServer *http.Server
	listener   net.Listener

	stopJanitor context.CancelFunc
	wg          sync.WaitGroup
}

// NewApplication creates a new application from the default configuration
func NewApplication() (*Application, error) {
	container, err := NewContainer()
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	return &Application{container: container}, nil
}

// NewApplicationWithConfig creates a new application from cfg
func NewApplicationWithConfig(cfg *config.Config) (*Application, error) {
	container, err := NewContainerWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	return &Application{container: container}, nil
}

// Handler returns the router wrapped in the configured middleware
func (a *Application) Handler() http.Handler {
	cfg := a.container.Config
	router := routes.Setup(a.GetContainer())
	return middleware.ChainMiddleware(middleware.DefaultMiddleware(cfg.HTTP, a.container.Logger)...)(router)
}

// Start starts the HTTP server and the expired document sweep
func (a *Application) Start() error {
	cfg := a.container.Config

	ln, err := net.Listen("tcp", ":"+cfg.HTTP.Port)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", cfg.HTTP.Port, err)
	}
	a.listener = ln
	a.httpServer = &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP API server started on %s, serving bucket %q", ln.Addr(), cfg.Bucket.Name)
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	if cfg.Bucket.PurgeEvery > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		a.stopJanitor = cancel
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.runJanitor(ctx, cfg.Bucket.PurgeEvery)
		}()
	}

	return nil
}

// Addr returns the address the server listens on, once started
func (a *Application) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// runJanitor sweeps expired documents from stores that keep them until swept
func (a *Application) runJanitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.purge(ctx)
		}
	}
}

func (a *Application) purge(ctx context.Context) {
	n, err := a.container.Bucket.Purge(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.container.Logger.Warn("expired document sweep failed", slog.String("error", err.Error()))
		}
		return
	}
	if n > 0 {
		a.container.Logger.Info("expired documents purged",
			slog.String("bucket", a.container.Bucket.Name()),
			slog.Int64("count", n),
		)
	}
}

// Stop shuts the server down, waits for the sweep to finish and closes the bucket
func (a *Application) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down HTTP server: %v", err)
		}
	}

	if a.stopJanitor != nil {
		a.stopJanitor()
	}
	a.wg.Wait()

	if err := a.container.Close(); err != nil {
		return fmt.Errorf("failed to close container: %w", err)
	}
	return nil
}

func (a *Application) Run() error {
	if err := a.Start(); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("Application started. Press Ctrl+C to stop.")
	<-quit
	log.Println("Shutting down application...")

	if err := a.Stop(); err != nil {
		return fmt.Errorf("failed to stop application: %w", err)
	}

	log.Println("Application stopped")
	return nil
}

// GetContainer returns the dependencies the HTTP handlers work with
func (a *Application) GetContainer() *handlers.Container {
	return &handlers.Container{
		Operations: a.container.Operations,
		Bucket:     a.container.Bucket,
		Config:     a.container.Config,
	}
}

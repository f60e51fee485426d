package core

import (
	"log/slog"
	"time"
)

const defaultBatchConcurrency = 8

// Option configures a Template
type Option func(*Template)

// WithLogger sets the logger failures are reported to
func WithLogger(logger *slog.Logger) Option {
	return func(t *Template) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithOperationTimeout bounds every store call; zero leaves calls bounded
// only by the caller's context. An expired deadline is reported as Transient.
func WithOperationTimeout(d time.Duration) Option {
	return func(t *Template) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithBatchConcurrency limits how many elements of a batch run at once
func WithBatchConcurrency(n int) Option {
	return func(t *Template) {
		if n > 0 {
			t.concurrency = n
		}
	}
}

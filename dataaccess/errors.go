// Package dataaccess defines the error taxonomy every docbucket operation
// reports, independent of the store backend that produced the failure.
package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Kind represents the category of a data access failure
type Kind int

const (
	// DataAccess is any backend failure not covered by a narrower kind.
	DataAccess Kind = iota
	NotFound
	AlreadyExists
	MappingFailed
	InvalidArgument
	Transient
	NotReady
)

// String returns the kind as a string for logging
func (k Kind) String() string {
	switch k {
	case DataAccess:
		return "data_access"
	case NotFound:
		return "not_found"
	case AlreadyExists:
		return "already_exists"
	case MappingFailed:
		return "mapping_failed"
	case InvalidArgument:
		return "invalid_argument"
	case Transient:
		return "transient"
	case NotReady:
		return "not_ready"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON payloads.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// HTTPStatus maps a kind onto the status code the document API answers with.
func (k Kind) HTTPStatus() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case AlreadyExists:
		return http.StatusConflict
	case MappingFailed, InvalidArgument:
		return http.StatusBadRequest
	case Transient, NotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels for errors.Is matching against a kind.
var (
	ErrDataAccess      = &Error{Kind: DataAccess}
	ErrNotFound        = &Error{Kind: NotFound}
	ErrAlreadyExists   = &Error{Kind: AlreadyExists}
	ErrMappingFailed   = &Error{Kind: MappingFailed}
	ErrInvalidArgument = &Error{Kind: InvalidArgument}
	ErrTransient       = &Error{Kind: Transient}
	ErrNotReady        = &Error{Kind: NotReady}
)

// Error is a translated data access failure
type Error struct {
	Kind    Kind
	Op      string         // Operation that failed
	ID      string         // Document id, when known
	Err     error          // Original error
	Context map[string]any // Additional context
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.ID != "" {
		msg = fmt.Sprintf("%s [id=%s]", msg, e.ID)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match when target is an *Error of the same kind carrying no
// operation, which is how the package sentinels are shaped.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.ID == "" && t.Err == nil && t.Kind == e.Kind
}

// WithContext adds context to an existing Error
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates an Error of the given kind.
func New(kind Kind, op, id string, err error) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Err: err}
}

// Errorf creates an Error of the given kind with a formatted cause.
func Errorf(kind Kind, op, id, format string, args ...any) *Error {
	return New(kind, op, id, fmt.Errorf(format, args...))
}

// NewInvalidArgument creates a caller-side precondition error
func NewInvalidArgument(op string, err error) *Error {
	return New(InvalidArgument, op, "", err)
}

// NewMappingFailed creates a converter error for the given document id
func NewMappingFailed(op, id string, err error) *Error {
	return New(MappingFailed, op, id, err)
}

// NewNotReady creates an error for use outside the open lifecycle state
func NewNotReady(op string, err error) *Error {
	return New(NotReady, op, "", err)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf reports the kind of err. Batch failures report the kind of their
// first failure; errors outside the taxonomy report DataAccess.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	var batch *BatchError
	if errors.As(err, &batch) && len(batch.Failures) > 0 {
		return batch.Failures[0].Kind
	}
	return DataAccess
}

// LogError logs an Error with appropriate context
func LogError(logger *slog.Logger, err *Error) {
	logArgs := []any{
		slog.String("kind", err.Kind.String()),
		slog.String("operation", err.Op),
	}
	if err.ID != "" {
		logArgs = append(logArgs, slog.String("id", err.ID))
	}
	for k, v := range err.Context {
		logArgs = append(logArgs, slog.Any(k, v))
	}
	if err.Err != nil {
		logArgs = append(logArgs, slog.String("cause", err.Err.Error()))
	}

	level := slog.LevelError
	switch err.Kind {
	case NotFound, AlreadyExists, InvalidArgument:
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "data access failure", logArgs...)
}

package dataaccess

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errCause = errors.New("connection reset")

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"kind only", &Error{Kind: NotFound}, "not_found"},
		{"with op", New(Transient, "save", "", errCause), "save: connection reset"},
		{"with id", New(AlreadyExists, "insert", "u:1", errCause), "insert: connection reset [id=u:1]"},
		{"formatted", Errorf(InvalidArgument, "find", "", "bad %s", "target"), "find: bad target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(NotFound, "update", "u:1", errCause))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, errCause)
	assert.NotErrorIs(t, err, ErrAlreadyExists)
	assert.NotErrorIs(t, err, New(NotFound, "update", "u:1", nil), "only bare sentinels match by kind")
}

func TestError_WithContext(t *testing.T) {
	err := NewMappingFailed("read", "u:1", errCause).WithContext("view", "users/byName")
	assert.Equal(t, "users/byName", err.Context["view"])
	assert.Equal(t, MappingFailed, err.Kind)
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, InvalidArgument, NewInvalidArgument("op", errCause).Kind)
	assert.Equal(t, MappingFailed, NewMappingFailed("op", "id", errCause).Kind)
	assert.Equal(t, NotReady, NewNotReady("op", errCause).Kind)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Transient, KindOf(fmt.Errorf("wrapped: %w", ErrTransient)))
	assert.Equal(t, DataAccess, KindOf(errCause))
	assert.Equal(t, AlreadyExists, KindOf(NewBatchError("insert all", []Failure{
		{ID: "b", Kind: NotFound}, {ID: "a", Kind: AlreadyExists},
	})), "the first failure after sorting by id")

	_, ok := As(errCause)
	assert.False(t, ok)
}

func TestKind_StringAndStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		name   string
		status int
	}{
		{DataAccess, "data_access", http.StatusInternalServerError},
		{NotFound, "not_found", http.StatusNotFound},
		{AlreadyExists, "already_exists", http.StatusConflict},
		{MappingFailed, "mapping_failed", http.StatusBadRequest},
		{InvalidArgument, "invalid_argument", http.StatusBadRequest},
		{Transient, "transient", http.StatusServiceUnavailable},
		{NotReady, "not_ready", http.StatusServiceUnavailable},
		{Kind(99), "unknown", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.kind.String())
			assert.Equal(t, tt.status, tt.kind.HTTPStatus())
			text, err := tt.kind.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, tt.name, string(text))
		})
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	LogError(logger, New(Transient, "save", "u:1", errCause).WithContext("attempt", 2))
	out := buf.String()
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, `"kind":"transient"`)
	assert.Contains(t, out, `"id":"u:1"`)
	assert.Contains(t, out, `"attempt":2`)
	assert.Contains(t, out, `"cause":"connection reset"`)

	buf.Reset()
	LogError(logger, New(NotFound, "update", "u:2", nil))
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.NotContains(t, buf.String(), "cause")
}

package dataaccess

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBatchError_SortsByID(t *testing.T) {
	failures := []Failure{
		{ID: "c", Kind: Transient, Message: "timeout"},
		{ID: "a", Kind: AlreadyExists, Message: "exists"},
		{ID: "b", Kind: MappingFailed, Message: "bad"},
	}
	err := NewBatchError("insert all", failures)

	assert.Equal(t, []string{"a", "b", "c"}, err.IDs())
	assert.Equal(t, "c", failures[0].ID, "the caller's slice is not reordered")
	assert.Equal(t,
		`insert all: 3 element(s) failed: "a" (already_exists): exists; "b" (mapping_failed): bad; "c" (transient): timeout`,
		err.Error())
}

func TestFailureFrom(t *testing.T) {
	f := FailureFrom("", New(AlreadyExists, "insert", "u:1", errCause))
	assert.Equal(t, "u:1", f.ID, "the id is taken from the error when unknown")
	assert.Equal(t, AlreadyExists, f.Kind)

	f = FailureFrom("given", New(NotFound, "update", "other", nil))
	assert.Equal(t, "given", f.ID)

	f = FailureFrom("x", errCause)
	assert.Equal(t, DataAccess, f.Kind)
	assert.Equal(t, "connection reset", f.Message)
}

func TestBatchError_Unwrap(t *testing.T) {
	exists := New(AlreadyExists, "insert", "a", nil)
	err := NewBatchError("insert all", []Failure{
		FailureFrom("a", exists),
		FailureFrom("b", errCause),
		{ID: "c", Kind: Transient},
	})

	assert.True(t, errors.Is(err, ErrAlreadyExists))
	assert.True(t, errors.Is(err, errCause))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Len(t, err.Unwrap(), 2, "failures without a cause are skipped")

	var de *Error
	assert.True(t, errors.As(err, &de))
	assert.Same(t, exists, de)
}

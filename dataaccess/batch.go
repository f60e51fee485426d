package dataaccess

import (
	"fmt"
	"sort"
	"strings"
)

// Failure describes one failed element of a batch operation
type Failure struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// BatchError is the partial batch failure returned by batch operations. It
// lists only the elements that failed; successful elements are not rolled back.
type BatchError struct {
	Op       string
	Failures []Failure
}

// NewBatchError builds a BatchError from per-element errors, sorted by id so
// that reports are stable regardless of completion order.
func NewBatchError(op string, failures []Failure) *BatchError {
	sorted := make([]Failure, len(failures))
	copy(sorted, failures)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &BatchError{Op: op, Failures: sorted}
}

// FailureFrom converts an element error into a Failure.
func FailureFrom(id string, err error) Failure {
	f := Failure{ID: id, Kind: KindOf(err), Message: err.Error(), Err: err}
	if e, ok := As(err); ok && f.ID == "" {
		f.ID = e.ID
	}
	return f
}

func (b *BatchError) Error() string {
	parts := make([]string, 0, len(b.Failures))
	for _, f := range b.Failures {
		parts = append(parts, fmt.Sprintf("%q (%s): %s", f.ID, f.Kind, f.Message))
	}
	return fmt.Sprintf("%s: %d element(s) failed: %s", b.Op, len(b.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes every element cause to errors.Is and errors.As.
func (b *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(b.Failures))
	for _, f := range b.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// IDs returns the ids of the failed elements.
func (b *BatchError) IDs() []string {
	ids := make([]string, len(b.Failures))
	for i, f := range b.Failures {
		ids[i] = f.ID
	}
	return ids
}

package view

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// Document is what a map function sees: the id and the raw JSON body
type Document struct {
	ID   string
	Body []byte
}

// Get returns the value at a gjson path in the document body.
func (d Document) Get(path string) gjson.Result {
	return gjson.GetBytes(d.Body, path)
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	return json.Unmarshal(d.Body, v)
}

// Emitter receives the rows a map function produces for one document
type Emitter func(key, value any)

// MapFunc indexes one document by calling emit zero or more times
type MapFunc func(doc Document, emit Emitter)

// ReduceFunc folds the keys and values of a group of rows into one value
type ReduceFunc func(keys []any, values []any) (any, error)

// View is a map function with an optional reduce function
type View struct {
	Map    MapFunc
	Reduce ReduceFunc
}

// Design groups named views, addressed together by the design name
type Design struct {
	Name  string
	Views map[string]View
}

// Validate checks that the design can be registered
func (d Design) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: design name must not be empty", ErrInvalidDesign)
	}
	if len(d.Views) == 0 {
		return fmt.Errorf("%w: design %q has no views", ErrInvalidDesign, d.Name)
	}
	for name, v := range d.Views {
		if name == "" {
			return fmt.Errorf("%w: design %q has an unnamed view", ErrInvalidDesign, d.Name)
		}
		if v.Map == nil {
			return fmt.Errorf("%w: view %s/%s has no map function", ErrInvalidDesign, d.Name, name)
		}
	}
	return nil
}

// Count is the built-in _count reducer
func Count(keys []any, values []any) (any, error) {
	return float64(len(values)), nil
}

// Sum is the built-in _sum reducer; every value must be a number
func Sum(keys []any, values []any) (any, error) {
	var sum float64
	for _, v := range values {
		n, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("_sum: value %v is not a number", v)
		}
		sum += n
	}
	return sum, nil
}

// Stats is the built-in _stats reducer
func Stats(keys []any, values []any) (any, error) {
	stats := map[string]any{"sum": 0.0, "count": 0.0, "min": 0.0, "max": 0.0, "sumsqr": 0.0}
	if len(values) == 0 {
		return stats, nil
	}
	var sum, sumsqr float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		n, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("_stats: value %v is not a number", v)
		}
		sum += n
		sumsqr += n * n
		lo = math.Min(lo, n)
		hi = math.Max(hi, n)
	}
	stats["sum"] = sum
	stats["count"] = float64(len(values))
	stats["min"] = lo
	stats["max"] = hi
	stats["sumsqr"] = sumsqr
	return stats, nil
}

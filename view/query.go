package view

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Stale controls whether a query may be answered from an out-of-date index
type Stale int

const (
	// StaleUpdateAfter answers from the current index and refreshes it afterwards.
	StaleUpdateAfter Stale = iota
	// StaleOK answers from the current index without refreshing it.
	StaleOK
	// StaleFalse brings the index up to date before answering.
	StaleFalse
)

func (s Stale) String() string {
	switch s {
	case StaleOK:
		return "ok"
	case StaleFalse:
		return "false"
	default:
		return "update_after"
	}
}

// ParseStale accepts the couch-style parameter values
func ParseStale(s string) (Stale, error) {
	switch s {
	case "ok":
		return StaleOK, nil
	case "false":
		return StaleFalse, nil
	case "update_after", "":
		return StaleUpdateAfter, nil
	}
	return 0, fmt.Errorf("%w: stale=%q", ErrInvalidQuery, s)
}

// Query selects, paginates and reduces the rows of a view. The zero value
// (or NewQuery()) returns every row in key order. Setters return the query
// so calls can be chained.
type Query struct {
	key           any
	hasKey        bool
	keys          []any
	startKey      any
	hasStartKey   bool
	endKey        any
	hasEndKey     bool
	startKeyDocID string
	endKeyDocID   string
	exclusiveEnd  bool
	descending    bool
	limit         int
	skip          int
	stale         Stale
	group         bool
	groupLevel    int
	reduce        *bool
	includeDocs   bool
}

// NewQuery returns a query with default settings
func NewQuery() *Query {
	return &Query{}
}

// Key restricts the rows to those emitted with exactly this key
func (q *Query) Key(k any) *Query {
	q.key, q.hasKey = k, true
	return q
}

// Keys restricts the rows to these keys, returned in the order given
func (q *Query) Keys(keys ...any) *Query {
	q.keys = append([]any(nil), keys...)
	return q
}

func (q *Query) StartKey(k any) *Query {
	q.startKey, q.hasStartKey = k, true
	return q
}

func (q *Query) EndKey(k any) *Query {
	q.endKey, q.hasEndKey = k, true
	return q
}

func (q *Query) StartKeyDocID(id string) *Query {
	q.startKeyDocID = id
	return q
}

func (q *Query) EndKeyDocID(id string) *Query {
	q.endKeyDocID = id
	return q
}

// InclusiveEnd controls whether rows equal to the end key are returned (default true)
func (q *Query) InclusiveEnd(b bool) *Query {
	q.exclusiveEnd = !b
	return q
}

func (q *Query) Descending(b bool) *Query {
	q.descending = b
	return q
}

// Limit caps the number of rows returned; zero means no limit
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

func (q *Query) Skip(n int) *Query {
	q.skip = n
	return q
}

func (q *Query) Stale(s Stale) *Query {
	q.stale = s
	return q
}

func (q *Query) Group(b bool) *Query {
	q.group = b
	return q
}

func (q *Query) GroupLevel(n int) *Query {
	q.groupLevel = n
	return q
}

// Reduce sets the reduce flag explicitly. Left unset, a view with a reduce
// function is reduced.
func (q *Query) Reduce(b bool) *Query {
	q.reduce = &b
	return q
}

func (q *Query) IncludeDocs(b bool) *Query {
	q.includeDocs = b
	return q
}

// ReduceRequested reports whether the reduce flag was explicitly set to true
func (q *Query) ReduceRequested() bool {
	return q.reduce != nil && *q.reduce
}

// IncludesDocs reports whether rows will carry their source documents
func (q *Query) IncludesDocs() bool {
	return q.includeDocs
}

// StaleMode reports the stale policy of the query
func (q *Query) StaleMode() Stale {
	return q.stale
}

// Clone returns an independent copy of the query
func (q *Query) Clone() *Query {
	if q == nil {
		return NewQuery()
	}
	c := *q
	c.keys = append([]any(nil), q.keys...)
	if q.reduce != nil {
		r := *q.reduce
		c.reduce = &r
	}
	return &c
}

// validate checks the query against the view it targets
func (q *Query) validate(v View) error {
	if q.limit < 0 || q.skip < 0 || q.groupLevel < 0 {
		return fmt.Errorf("%w: limit, skip and group_level must not be negative", ErrInvalidQuery)
	}
	reducing := q.reducing(v)
	if q.ReduceRequested() && v.Reduce == nil {
		return fmt.Errorf("%w: reduce requested on a view without a reduce function", ErrInvalidQuery)
	}
	if reducing && q.includeDocs {
		return fmt.Errorf("%w: include_docs is not valid for reduced queries", ErrInvalidQuery)
	}
	if (q.group || q.groupLevel > 0) && !reducing {
		return fmt.Errorf("%w: group requires a reduced query", ErrInvalidQuery)
	}
	if q.hasKey && len(q.keys) > 0 {
		return fmt.Errorf("%w: key and keys are mutually exclusive", ErrInvalidQuery)
	}
	return nil
}

// reducing reports whether rows of v will be reduced
func (q *Query) reducing(v View) bool {
	if v.Reduce == nil {
		return false
	}
	return q.reduce == nil || *q.reduce
}

// Values encodes the query as couch-style URL parameters
func (q *Query) Values() url.Values {
	values := url.Values{}
	setJSON := func(name string, v any) {
		data, err := json.Marshal(v)
		if err == nil {
			values.Set(name, string(data))
		}
	}
	if q.hasKey {
		setJSON("key", q.key)
	}
	if len(q.keys) > 0 {
		setJSON("keys", q.keys)
	}
	if q.hasStartKey {
		setJSON("startkey", q.startKey)
	}
	if q.hasEndKey {
		setJSON("endkey", q.endKey)
	}
	if q.startKeyDocID != "" {
		values.Set("startkey_docid", q.startKeyDocID)
	}
	if q.endKeyDocID != "" {
		values.Set("endkey_docid", q.endKeyDocID)
	}
	if q.exclusiveEnd {
		values.Set("inclusive_end", "false")
	}
	if q.descending {
		values.Set("descending", "true")
	}
	if q.limit > 0 {
		values.Set("limit", strconv.Itoa(q.limit))
	}
	if q.skip > 0 {
		values.Set("skip", strconv.Itoa(q.skip))
	}
	if q.stale != StaleUpdateAfter {
		values.Set("stale", q.stale.String())
	}
	if q.group {
		values.Set("group", "true")
	}
	if q.groupLevel > 0 {
		values.Set("group_level", strconv.Itoa(q.groupLevel))
	}
	if q.reduce != nil {
		values.Set("reduce", strconv.FormatBool(*q.reduce))
	}
	if q.includeDocs {
		values.Set("include_docs", "true")
	}
	return values
}

// String renders the query as a URL query string
func (q *Query) String() string {
	return q.Values().Encode()
}

// ParseQuery builds a Query from couch-style URL parameters
func ParseQuery(values url.Values) (*Query, error) {
	q := NewQuery()

	jsonParam := func(name string, set func(any)) error {
		raw, ok := values[name]
		if !ok || len(raw) == 0 {
			return nil
		}
		var v any
		if err := json.Unmarshal([]byte(raw[0]), &v); err != nil {
			return fmt.Errorf("%w: %s is not valid JSON: %v", ErrInvalidQuery, name, err)
		}
		set(v)
		return nil
	}
	boolParam := func(name string, set func(bool)) error {
		raw := values.Get(name)
		if raw == "" {
			return nil
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidQuery, name, raw)
		}
		set(b)
		return nil
	}
	intParam := func(name string, set func(int)) error {
		raw := values.Get(name)
		if raw == "" {
			return nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidQuery, name, raw)
		}
		set(n)
		return nil
	}

	steps := []func() error{
		func() error { return jsonParam("key", func(v any) { q.Key(v) }) },
		func() error {
			return jsonParam("keys", func(v any) {
				if arr, ok := v.([]any); ok {
					q.Keys(arr...)
				} else {
					q.Keys(v)
				}
			})
		},
		func() error { return jsonParam("startkey", func(v any) { q.StartKey(v) }) },
		func() error { return jsonParam("endkey", func(v any) { q.EndKey(v) }) },
		func() error { return boolParam("inclusive_end", func(b bool) { q.InclusiveEnd(b) }) },
		func() error { return boolParam("descending", func(b bool) { q.Descending(b) }) },
		func() error { return intParam("limit", func(n int) { q.Limit(n) }) },
		func() error { return intParam("skip", func(n int) { q.Skip(n) }) },
		func() error { return boolParam("group", func(b bool) { q.Group(b) }) },
		func() error { return intParam("group_level", func(n int) { q.GroupLevel(n) }) },
		func() error { return boolParam("reduce", func(b bool) { q.Reduce(b) }) },
		func() error { return boolParam("include_docs", func(b bool) { q.IncludeDocs(b) }) },
		func() error {
			s, err := ParseStale(values.Get("stale"))
			q.Stale(s)
			return err
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	q.StartKeyDocID(values.Get("startkey_docid"))
	q.EndKeyDocID(values.Get("endkey_docid"))
	return q, nil
}

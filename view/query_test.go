package view

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare_Collation(t *testing.T) {
	ordered := []any{
		nil,
		false,
		true,
		float64(-1),
		float64(2),
		"A",
		"a",
		"b",
		[]any{"a"},
		[]any{"a", float64(1)},
		[]any{"b"},
		map[string]any{"a": float64(1)},
		map[string]any{"a": float64(2)},
		map[string]any{"b": float64(0)},
	}
	for i := range ordered {
		for j := range ordered {
			want := compareInt(i, j)
			assert.Equal(t, want, Compare(ordered[i], ordered[j]), "Compare(%v, %v)", ordered[i], ordered[j])
		}
	}
}

func TestNormalize(t *testing.T) {
	type point struct {
		X int `json:"x"`
	}
	tests := []struct {
		in   any
		want any
	}{
		{nil, nil},
		{3, float64(3)},
		{int64(4), float64(4)},
		{uint8(5), float64(5)},
		{"s", "s"},
		{[]string{"a", "b"}, []any{"a", "b"}},
		{point{X: 1}, map[string]any{"x": float64(1)}},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := Normalize(make(chan int))
	assert.Error(t, err)
}

func TestReducers(t *testing.T) {
	values := []any{float64(3), float64(1), float64(2)}

	n, err := Count(nil, values)
	require.NoError(t, err)
	assert.Equal(t, float64(3), n)

	sum, err := Sum(nil, values)
	require.NoError(t, err)
	assert.Equal(t, float64(6), sum)

	_, err = Sum(nil, []any{"x"})
	assert.Error(t, err)

	stats, err := Stats(nil, values)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"sum": float64(6), "count": float64(3), "min": float64(1), "max": float64(3), "sumsqr": float64(14),
	}, stats)
}

func TestStale_ParseAndString(t *testing.T) {
	for _, s := range []Stale{StaleUpdateAfter, StaleOK, StaleFalse} {
		parsed, err := ParseStale(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	got, err := ParseStale("")
	require.NoError(t, err)
	assert.Equal(t, StaleUpdateAfter, got)

	_, err = ParseStale("sometimes")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestQuery_ValuesRoundTrip(t *testing.T) {
	q := NewQuery().
		StartKey([]any{"Oslo"}).
		EndKey([]any{"Oslo", map[string]any{}}).
		StartKeyDocID("u:1").
		InclusiveEnd(false).
		Descending(true).
		Limit(10).
		Skip(2).
		Stale(StaleFalse).
		GroupLevel(1).
		Reduce(true)

	values := q.Values()
	assert.Equal(t, `["Oslo"]`, values.Get("startkey"))
	assert.Equal(t, "false", values.Get("inclusive_end"))
	assert.Equal(t, "false", values.Get("stale"))

	parsed, err := ParseQuery(values)
	require.NoError(t, err)
	assert.Equal(t, q.String(), parsed.String())
	assert.True(t, parsed.ReduceRequested())
	assert.Equal(t, StaleFalse, parsed.StaleMode())
}

func TestParseQuery_Errors(t *testing.T) {
	tests := []url.Values{
		{"key": {"not json"}},
		{"limit": {"ten"}},
		{"descending": {"maybe"}},
		{"stale": {"later"}},
	}
	for _, values := range tests {
		_, err := ParseQuery(values)
		assert.ErrorIs(t, err, ErrInvalidQuery, values.Encode())
	}
}

func TestParseQuery_Keys(t *testing.T) {
	q, err := ParseQuery(url.Values{"keys": {`["a",1]`}, "include_docs": {"true"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", float64(1)}, q.keys)
	assert.True(t, q.IncludesDocs())
}

func TestQuery_Clone(t *testing.T) {
	q := NewQuery().Keys("a").Reduce(false)
	c := q.Clone()
	c.Keys("b").Reduce(true)

	assert.Equal(t, []any{"a"}, q.keys)
	assert.False(t, q.ReduceRequested())
	assert.NotNil(t, (*Query)(nil).Clone())
}

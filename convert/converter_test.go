package convert

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Age   int      `json:"age"`
	Tags  []string `json:"tags,omitempty"`
	Admin bool     `json:"admin"`
}

type tagged struct {
	Key  string `json:"key" docbucket:"id"`
	ID   string `json:"other_id"`
	Body string `json:"body"`
}

type session struct {
	Token string `json:"token"`
	TTL   time.Duration
}

func (s session) DocumentID() string            { return "session:" + s.Token }
func (s session) DocumentExpiry() time.Duration { return s.TTL }

// slug takes its id from a field that has no name fallback
type slug struct {
	Slug string `json:"slug"`
}

func (s slug) DocumentID() string { return s.Slug }

type base struct {
	Id string `json:"id"`
}

type numericID struct {
	ID int `json:"id"`
}

func TestJSONConverter_GetID(t *testing.T) {
	c := NewJSONConverter()

	tests := []struct {
		name   string
		entity any
		want   string
	}{
		{"ID field", user{ID: "u:1"}, "u:1"},
		{"pointer", &user{ID: "u:2"}, "u:2"},
		{"tag wins over name", tagged{Key: "k:1", ID: "ignored"}, "k:1"},
		{"Identifiable", session{Token: "abc"}, "session:abc"},
		{"Identifiable field", slug{Slug: "intro"}, "intro"},
		{"Id field", base{Id: "b:1"}, "b:1"},
		{"map", map[string]any{"id": "m:1", "n": 1}, "m:1"},
		{"string map", map[string]string{"id": "m:2"}, "m:2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := c.GetID(tt.entity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestJSONConverter_GetIDFailures(t *testing.T) {
	c := NewJSONConverter()
	var nilUser *user

	tests := []struct {
		name   string
		entity any
	}{
		{"nil", nil},
		{"nil pointer", nilUser},
		{"empty id", user{}},
		{"no id field", struct{ Name string }{"x"}},
		{"numeric id", numericID{ID: 7}},
		{"map without id", map[string]any{"name": "x"}},
		{"map with numeric id", map[string]any{"id": 1}},
		{"int keyed map", map[int]string{1: "x"}},
		{"scalar", 42},
		{"empty Identifiable", slug{}},
		{"empty Identifiable pointer", &slug{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.GetID(tt.entity)
			assert.ErrorIs(t, err, ErrMapping)
		})
	}
}

func TestJSONConverter_Write(t *testing.T) {
	c := NewJSONConverter()

	doc, err := c.Write(user{ID: "u:1", Name: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "u:1", doc.ID)
	assert.JSONEq(t, `{"id":"u:1","name":"Alice","age":0,"admin":false}`, string(doc.Body))
	assert.Zero(t, doc.Metadata.Expiry)

	doc, err = c.Write(session{Token: "t", TTL: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, "session:t", doc.ID)
	assert.Equal(t, time.Minute, doc.Metadata.Expiry)

	_, err = c.Write(map[string]any{"id": "x", "bad": make(chan int)})
	assert.ErrorIs(t, err, ErrMapping)
}

func TestJSONConverter_Read(t *testing.T) {
	c := NewJSONConverter()

	var u user
	require.NoError(t, c.Read([]byte(`{"id":"u:1","name":"Alice"}`), &u))
	assert.Equal(t, user{ID: "u:1", Name: "Alice"}, u)

	assert.ErrorIs(t, c.Read([]byte(`{"id":1}`), &u), ErrMapping)
	assert.ErrorIs(t, c.Read([]byte(`not json`), &u), ErrMapping)
	assert.ErrorIs(t, c.Read([]byte(`{}`), u), ErrMapping, "non-pointer target")
	assert.ErrorIs(t, c.Read([]byte(`{}`), nil), ErrMapping)
}

func randomUser(r *rand.Rand) user {
	u := user{
		ID:    "u:" + uuid.NewString(),
		Name:  uuid.NewString()[:r.IntN(36)],
		Age:   r.IntN(120),
		Admin: r.IntN(2) == 1,
	}
	for i := r.IntN(4); i > 0; i-- {
		u.Tags = append(u.Tags, uuid.NewString()[:8])
	}
	return u
}

func TestJSONConverter_RoundTrip(t *testing.T) {
	c := NewJSONConverter()
	r := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 200; i++ {
		want := randomUser(r)

		doc, err := c.Write(want)
		require.NoError(t, err)
		id, err := c.GetID(want)
		require.NoError(t, err)
		assert.Equal(t, id, doc.ID, "Write and GetID agree")

		var got user
		require.NoError(t, c.Read(doc.Body, &got))
		assert.Equal(t, want, got)
	}
}

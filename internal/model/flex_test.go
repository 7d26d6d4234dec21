package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestNormalizeStages(t *testing.T) {
	tests := []struct {
		name string
		in   Flex
		want any
	}{
		{"json array in a string", Text(`["a","b"]`), []any{"a", "b"}},
		{"comma separated text", Text("registration, build ,, demo"), []any{"registration", "build", "demo"}},
		{"array", Structured([]any{"x"}), []any{"x"}},
		{"scalar", Structured("solo"), []any{"solo"}},
		{"object", Structured(map[string]any{"k": "v"}), []any{map[string]any{"k": "v"}}},
		{"empty", Flex{}, []any{}},
		{"blank text", Text("  "), []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeStages(tt.in)
			assert.False(t, got.IsText())
			assert.Equal(t, tt.want, got.Value())
		})
	}
}

func TestFlexJSON(t *testing.T) {
	var payload struct {
		Eligibility Flex `json:"eligibility_criteria"`
		Contact     Flex `json:"contact_info"`
		Notes       Flex `json:"notes"`
		Missing     Flex `json:"missing"`
	}
	raw := `{
		"eligibility_criteria": "{\"year\": 2}",
		"contact_info": {"email": "team@eph.test"},
		"notes": "bring a laptop",
		"missing": null
	}`
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	assert.Equal(t, map[string]any{"year": float64(2)}, payload.Eligibility.Value())
	assert.Equal(t, map[string]any{"email": "team@eph.test"}, payload.Contact.Value())
	assert.True(t, payload.Notes.IsText())
	assert.Equal(t, "bring a laptop", payload.Notes.String())
	assert.True(t, payload.Missing.IsZero())

	out, err := json.Marshal(payload.Notes)
	require.NoError(t, err)
	assert.Equal(t, `"bring a laptop"`, string(out))
}

func TestFlexEncodeRoundTrip(t *testing.T) {
	for _, f := range []Flex{
		Text("free text, with commas"),
		Text(""),
		Structured(map[string]any{"a": []any{"b"}}),
		Structured([]any{}),
	} {
		got := ParseFlex(f.Encode("null"))
		assert.Equal(t, f.IsText(), got.IsText())
		assert.Equal(t, f.Value(), got.Value())
	}
	assert.Equal(t, "{}", Flex{}.Encode("{}"))
	assert.True(t, ParseFlex("").IsZero())
	assert.True(t, ParseFlex("not json").IsText())
}

func TestFlexBSON(t *testing.T) {
	type doc struct {
		Stages Flex `bson:"stages"`
	}
	in := doc{Stages: Structured([]any{"one", "two"})}
	b, err := bson.Marshal(in)
	require.NoError(t, err)

	var out doc
	require.NoError(t, bson.Unmarshal(b, &out))
	assert.Equal(t, []any{"one", "two"}, out.Stages.Value())
}

func TestOrEmptyObject(t *testing.T) {
	assert.Equal(t, map[string]any{}, OrEmptyObject(Flex{}).Value())
	assert.Equal(t, "x", OrEmptyObject(Text("x")).Value())
}

func TestCompetitionHelpers(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Competition{StartDate: start, SeatsRemaining: 0}
	assert.Equal(t, start, c.RegistrationCloses())
	assert.True(t, c.IsFull())

	deadline := start.Add(-time.Hour)
	c.RegistrationDeadline = &deadline
	assert.Equal(t, deadline, c.RegistrationCloses())

	r := Registration{LeaderID: "l", TeamMemberIDs: []string{"m1", "m2"}}
	assert.Equal(t, 3, r.TeamSize())
	assert.True(t, r.Includes("m2"))
	assert.False(t, r.Includes("x"))
}

func TestNewPage(t *testing.T) {
	p := NewPage(2, 10, 25)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNextPage)
	assert.True(t, p.HasPrevPage)

	p = NewPage(1, 10, 0)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNextPage)
	assert.False(t, p.HasPrevPage)
}

package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClean(t *testing.T) {
	got, err := New().Decode(`{"themes":[],"emotions":[],"perspective":"ok"}`)
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Object["perspective"])
	assert.False(t, got.Repaired)
}

func TestDecodeFencedBlockAfterProse(t *testing.T) {
	text := "Sure! ```json\n{\"themes\":[{\"name\":\"Work\",\"count\":2}],\"perspective\":\"Keep going\"}\n```"

	got, err := New().Decode(text)
	require.NoError(t, err)
	assert.Equal(t, "Keep going", got.Object["perspective"])
	assert.Len(t, got.Object["themes"], 1)
}

func TestDecodeProseAroundObject(t *testing.T) {
	text := `Here is the analysis you asked for: {"perspective":"p","themes":[{"name":"a"}]} Let me know!`
	got, err := New().Decode(text)
	require.NoError(t, err)
	assert.Equal(t, "p", got.Object["perspective"])
}

func TestDecodeFenceWithoutLanguageAndUnclosed(t *testing.T) {
	got, err := New().Decode("```\n{\"perspective\":\"x\"}")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Object["perspective"])
}

func TestDecodeMissingMarker(t *testing.T) {
	_, err := New().Decode(`{"themes":[],"emotions":[{"name":"Calm","percentage":100}]}`)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, ReasonIncomplete, f.Reason)
}

func TestDecodeTruncatedReply(t *testing.T) {
	text := `{"themes":[{"name":"Work","count":3,"insights":["a"]}],"emotions":[{"name":"Calm","perc`

	_, err := New().Decode(text)
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Contains(t, []Reason{ReasonIncomplete, ReasonMalformed}, f.Reason, "a cut-off reply never decodes")
}

func TestDecodeRepairsMinorSyntax(t *testing.T) {
	text := `{"themes": [], "perspective": "fine",}`

	got, err := New().Decode(text)
	require.NoError(t, err)
	assert.True(t, got.Repaired)
	assert.Equal(t, "fine", got.Object["perspective"])

	_, err = New(WithRepair(false)).Decode(text)
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, ReasonMalformed, f.Reason)
}

func TestDecodeMalformed(t *testing.T) {
	testCases := map[string]string{
		"no braces":  "I could not analyse this entry.",
		"empty":      "   ",
		"array only": "[1,2,3]",
	}
	for name, text := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := New(WithRepair(false)).Decode(text)
			f, ok := AsFailure(err)
			require.True(t, ok)
			assert.Equal(t, ReasonMalformed, f.Reason)
			assert.Contains(t, f.Error(), "malformed-json")
		})
	}
}

func TestDecodeCustomMarker(t *testing.T) {
	_, err := New(WithMarker("themes")).Decode(`{"perspective":"p"}`)
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, ReasonIncomplete, f.Reason)

	_, err = New(WithMarker("")).Decode(`{"anything":1}`)
	assert.NoError(t, err)
}

func TestCandidate(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"greedy span", `x {"a":{"b":1}} y {"c":2} z`, `{"a":{"b":1}} y {"c":2}`, true},
		{"fence narrows", "{\"outside\":1}\n```json\n{\"inside\":1}\n```", `{"inside":1}`, true},
		{"no closing brace", `{"a":1,"b":`, `{"a":1,"b":`, true},
		{"no object", "none", "", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Candidate(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
